package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/joao-fontenele/orders-api/internal/domain"
)

// fakeRepository is an in-memory OrderRepository honoring the gateway
// contract: generated ids, item back-references, cascade delete, and
// AND filter semantics in insertion order.
type fakeRepository struct {
	orders     map[int64]*domain.Order
	insertions []int64
	nextOrder  int64
	nextItem   int64
	failWith   error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{orders: make(map[int64]*domain.Order)}
}

func (f *fakeRepository) Insert(_ context.Context, order *domain.Order) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.nextOrder++
	order.ID = f.nextOrder
	f.assignItemIDs(order)
	stored := cloneOrder(order)
	f.orders[order.ID] = &stored
	f.insertions = append(f.insertions, order.ID)
	return nil
}

func (f *fakeRepository) Fetch(_ context.Context, id int64) (*domain.Order, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	order, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	clone := cloneOrder(order)
	return &clone, nil
}

func (f *fakeRepository) Update(_ context.Context, order *domain.Order, replaceItems bool) (bool, error) {
	if f.failWith != nil {
		return false, f.failWith
	}
	stored, ok := f.orders[order.ID]
	if !ok {
		return false, nil
	}
	if replaceItems {
		f.assignItemIDs(order)
	}
	*stored = cloneOrder(order)
	return true, nil
}

func (f *fakeRepository) Delete(_ context.Context, id int64) (bool, error) {
	if f.failWith != nil {
		return false, f.failWith
	}
	if _, ok := f.orders[id]; !ok {
		return false, nil
	}
	delete(f.orders, id)
	for i, insertedID := range f.insertions {
		if insertedID == id {
			f.insertions = append(f.insertions[:i], f.insertions[i+1:]...)
			break
		}
	}
	return true, nil
}

func (f *fakeRepository) Query(_ context.Context, filter Filter) ([]domain.Order, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	result := []domain.Order{}
	for _, id := range f.insertions {
		order := f.orders[id]
		if filter.CustomerID != nil && order.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		result = append(result, cloneOrder(order))
	}
	return result, nil
}

func (f *fakeRepository) assignItemIDs(order *domain.Order) {
	for i := range order.Items {
		f.nextItem++
		order.Items[i].ID = f.nextItem
		order.Items[i].OrderID = order.ID
	}
}

func cloneOrder(order *domain.Order) domain.Order {
	clone := *order
	clone.Items = append([]domain.OrderItem{}, order.Items...)
	if order.ShippedAt != nil {
		shippedAt := *order.ShippedAt
		clone.ShippedAt = &shippedAt
	}
	return clone
}

type fakePublisher struct {
	published []publishedEvent
}

type publishedEvent struct {
	topic string
	key   string
	event any
}

func (f *fakePublisher) Publish(_ context.Context, topic, key string, event any) error {
	f.published = append(f.published, publishedEvent{topic: topic, key: key, event: event})
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createRequest(customerID int64, status string, items ...domain.OrderItemRequest) domain.CreateOrderRequest {
	req := domain.CreateOrderRequest{CustomerID: &customerID, Items: items}
	if status != "" {
		req.Status = &status
	}
	return req
}

func itemRequest(productID int64, quantity int) domain.OrderItemRequest {
	return domain.OrderItemRequest{ProductID: &productID, Quantity: &quantity}
}

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults status to placed and stamps created_at", func(t *testing.T) {
		svc := NewService(newFakeRepository(), nil, testLogger())

		order, err := svc.Create(ctx, createRequest(101, "", itemRequest(7, 2), itemRequest(8, 1)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if order.ID == 0 {
			t.Error("expected generated order id")
		}
		if order.Status != domain.OrderStatusPlaced {
			t.Errorf("expected status placed, got %q", order.Status)
		}
		if order.CreatedAt.IsZero() {
			t.Error("expected created_at to be set")
		}
		if order.ShippedAt != nil {
			t.Error("expected shipped_at to be null on creation")
		}
		if len(order.Items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(order.Items))
		}
		for _, item := range order.Items {
			if item.OrderID != order.ID {
				t.Errorf("expected item order_id %d, got %d", order.ID, item.OrderID)
			}
		}
	})

	t.Run("accepts supplied status case-insensitively", func(t *testing.T) {
		svc := NewService(newFakeRepository(), nil, testLogger())

		order, err := svc.Create(ctx, createRequest(101, "Shipped"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.Status != domain.OrderStatusShipped {
			t.Errorf("expected status shipped, got %q", order.Status)
		}
	})

	t.Run("accepts empty item list", func(t *testing.T) {
		svc := NewService(newFakeRepository(), nil, testLogger())

		order, err := svc.Create(ctx, createRequest(101, ""))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(order.Items) != 0 {
			t.Errorf("expected no items, got %d", len(order.Items))
		}
	})

	t.Run("rejects invalid items without persisting", func(t *testing.T) {
		repo := newFakeRepository()
		svc := NewService(repo, nil, testLogger())

		zero := 0
		product := int64(7)
		req := createRequest(101, "", itemRequest(5, 1), domain.OrderItemRequest{ProductID: &product, Quantity: &zero})

		_, err := svc.Create(ctx, req)
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if len(repo.orders) != 0 {
			t.Error("expected no order persisted on validation failure")
		}
	})

	t.Run("rejects missing customer_id", func(t *testing.T) {
		svc := NewService(newFakeRepository(), nil, testLogger())

		_, err := svc.Create(ctx, domain.CreateOrderRequest{})
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("publishes order.created", func(t *testing.T) {
		publisher := &fakePublisher{}
		svc := NewService(newFakeRepository(), publisher, testLogger())

		order, err := svc.Create(ctx, createRequest(101, "", itemRequest(7, 2)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(publisher.published) != 1 {
			t.Fatalf("expected 1 event, got %d", len(publisher.published))
		}
		if publisher.published[0].topic != TopicOrderCreated {
			t.Errorf("expected topic %q, got %q", TopicOrderCreated, publisher.published[0].topic)
		}
		event, ok := publisher.published[0].event.(domain.OrderCreatedEvent)
		if !ok {
			t.Fatalf("unexpected event type %T", publisher.published[0].event)
		}
		if event.OrderID != order.ID {
			t.Errorf("expected event order_id %d, got %d", order.ID, event.OrderID)
		}
	})

	t.Run("propagates persistence errors", func(t *testing.T) {
		repo := newFakeRepository()
		repo.failWith = &domain.PersistenceError{Op: "insert order", Err: errors.New("connection refused")}
		svc := NewService(repo, nil, testLogger())

		_, err := svc.Create(ctx, createRequest(101, ""))
		var perr *domain.PersistenceError
		if !errors.As(err, &perr) {
			t.Fatalf("expected PersistenceError, got %v", err)
		}
	})
}

func TestServiceGet(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the order with its items", func(t *testing.T) {
		svc := NewService(newFakeRepository(), nil, testLogger())
		created, err := svc.Create(ctx, createRequest(101, "", itemRequest(7, 2)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		order, err := svc.Get(ctx, created.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.ID != created.ID {
			t.Errorf("expected id %d, got %d", created.ID, order.ID)
		}
		if len(order.Items) != 1 || order.Items[0].OrderID != created.ID {
			t.Errorf("expected item owned by order %d, got %+v", created.ID, order.Items)
		}
	})

	t.Run("unknown id fails with NotFoundError", func(t *testing.T) {
		svc := NewService(newFakeRepository(), nil, testLogger())

		_, err := svc.Get(ctx, 42)
		var nferr *domain.NotFoundError
		if !errors.As(err, &nferr) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
		if nferr.ID != 42 {
			t.Errorf("expected id 42, got %d", nferr.ID)
		}
	})
}

func TestServiceUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("merges only supplied fields", func(t *testing.T) {
		svc := NewService(newFakeRepository(), nil, testLogger())
		created, err := svc.Create(ctx, createRequest(101, "", itemRequest(7, 2)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		customerID := int64(202)
		updated, err := svc.Update(ctx, created.ID, domain.UpdateOrderRequest{CustomerID: &customerID})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.CustomerID != 202 {
			t.Errorf("expected customer_id 202, got %d", updated.CustomerID)
		}
		if updated.Status != domain.OrderStatusPlaced {
			t.Errorf("expected status unchanged, got %q", updated.Status)
		}
		if len(updated.Items) != 1 {
			t.Errorf("expected items unchanged, got %d", len(updated.Items))
		}
	})

	t.Run("first transition to shipped stamps shipped_at once", func(t *testing.T) {
		publisher := &fakePublisher{}
		svc := NewService(newFakeRepository(), publisher, testLogger())
		created, err := svc.Create(ctx, createRequest(101, ""))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		shipped := "shipped"
		updated, err := svc.Update(ctx, created.ID, domain.UpdateOrderRequest{Status: &shipped})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.ShippedAt == nil {
			t.Fatal("expected shipped_at to be set")
		}
		shippedAt := *updated.ShippedAt
		if time.Since(shippedAt) > time.Minute {
			t.Errorf("expected recent shipped_at, got %v", shippedAt)
		}

		delivered := "delivered"
		updated, err = svc.Update(ctx, created.ID, domain.UpdateOrderRequest{Status: &delivered})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if updated.ShippedAt == nil || !updated.ShippedAt.Equal(shippedAt) {
			t.Errorf("expected shipped_at unchanged, got %v", updated.ShippedAt)
		}

		// Back to shipped after delivery: the marker stays at the first value.
		updated, err = svc.Update(ctx, created.ID, domain.UpdateOrderRequest{Status: &shipped})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !updated.ShippedAt.Equal(shippedAt) {
			t.Errorf("expected shipped_at to stay at first value, got %v", updated.ShippedAt)
		}

		if len(publisher.published) != 1 {
			t.Fatalf("expected exactly 1 shipped event, got %d", len(publisher.published))
		}
		if publisher.published[0].topic != TopicOrderShipped {
			t.Errorf("expected topic %q, got %q", TopicOrderShipped, publisher.published[0].topic)
		}
	})

	t.Run("replaces item collection when supplied", func(t *testing.T) {
		svc := NewService(newFakeRepository(), nil, testLogger())
		created, err := svc.Create(ctx, createRequest(101, "", itemRequest(7, 2)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		items := []domain.OrderItemRequest{itemRequest(8, 3), itemRequest(9, 1)}
		updated, err := svc.Update(ctx, created.ID, domain.UpdateOrderRequest{Items: &items})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(updated.Items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(updated.Items))
		}
		for _, item := range updated.Items {
			if item.OrderID != created.ID {
				t.Errorf("expected item order_id %d, got %d", created.ID, item.OrderID)
			}
		}
	})

	t.Run("replaces with empty collection", func(t *testing.T) {
		svc := NewService(newFakeRepository(), nil, testLogger())
		created, err := svc.Create(ctx, createRequest(101, "", itemRequest(7, 2)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		items := []domain.OrderItemRequest{}
		updated, err := svc.Update(ctx, created.ID, domain.UpdateOrderRequest{Items: &items})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(updated.Items) != 0 {
			t.Errorf("expected 0 items, got %d", len(updated.Items))
		}
	})

	t.Run("unknown id fails with NotFoundError", func(t *testing.T) {
		svc := NewService(newFakeRepository(), nil, testLogger())

		shipped := "shipped"
		_, err := svc.Update(ctx, 42, domain.UpdateOrderRequest{Status: &shipped})
		var nferr *domain.NotFoundError
		if !errors.As(err, &nferr) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
	})

	t.Run("invalid replacement item leaves order untouched", func(t *testing.T) {
		repo := newFakeRepository()
		svc := NewService(repo, nil, testLogger())
		created, err := svc.Create(ctx, createRequest(101, "", itemRequest(7, 2)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		zero := 0
		product := int64(9)
		items := []domain.OrderItemRequest{{ProductID: &product, Quantity: &zero}}
		_, err = svc.Update(ctx, created.ID, domain.UpdateOrderRequest{Items: &items})
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}

		stored, err := svc.Get(ctx, created.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(stored.Items) != 1 || stored.Items[0].ProductID != 7 {
			t.Errorf("expected original items intact, got %+v", stored.Items)
		}
	})
}

func TestServiceDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes the order and its items", func(t *testing.T) {
		svc := NewService(newFakeRepository(), nil, testLogger())
		created, err := svc.Create(ctx, createRequest(101, "", itemRequest(7, 2)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if err := svc.Delete(ctx, created.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_, err = svc.Get(ctx, created.ID)
		var nferr *domain.NotFoundError
		if !errors.As(err, &nferr) {
			t.Fatalf("expected NotFoundError after delete, got %v", err)
		}
	})

	t.Run("deleting an unknown id fails with NotFoundError", func(t *testing.T) {
		svc := NewService(newFakeRepository(), nil, testLogger())

		err := svc.Delete(ctx, 42)
		var nferr *domain.NotFoundError
		if !errors.As(err, &nferr) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
	})
}

func TestServiceList(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, svc *Service) []*domain.Order {
		t.Helper()
		var orders []*domain.Order
		for _, seed := range []struct {
			customerID int64
			status     string
		}{
			{101, "placed"},
			{102, "shipped"},
			{103, "returned"},
			{104, "canceled"},
		} {
			order, err := svc.Create(ctx, createRequest(seed.customerID, seed.status))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			orders = append(orders, order)
		}
		return orders
	}

	t.Run("no filters returns everything in insertion order", func(t *testing.T) {
		svc := NewService(newFakeRepository(), nil, testLogger())
		seeded := seed(t, svc)

		orders, err := svc.List(ctx, Filter{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(orders) != 4 {
			t.Fatalf("expected 4 orders, got %d", len(orders))
		}
		for i, order := range orders {
			if order.ID != seeded[i].ID {
				t.Errorf("expected order %d at position %d, got %d", seeded[i].ID, i, order.ID)
			}
		}
	})

	t.Run("filters by status", func(t *testing.T) {
		svc := NewService(newFakeRepository(), nil, testLogger())
		seeded := seed(t, svc)

		status := domain.OrderStatusShipped
		orders, err := svc.List(ctx, Filter{Status: &status})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(orders) != 1 || orders[0].ID != seeded[1].ID {
			t.Fatalf("expected exactly order %d, got %+v", seeded[1].ID, orders)
		}
	})

	t.Run("filters by customer", func(t *testing.T) {
		svc := NewService(newFakeRepository(), nil, testLogger())
		seeded := seed(t, svc)

		customerID := int64(101)
		orders, err := svc.List(ctx, Filter{CustomerID: &customerID})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(orders) != 1 || orders[0].ID != seeded[0].ID {
			t.Fatalf("expected exactly order %d, got %+v", seeded[0].ID, orders)
		}
	})

	t.Run("combines filters with AND", func(t *testing.T) {
		svc := NewService(newFakeRepository(), nil, testLogger())
		seed(t, svc)

		customerID := int64(102)
		status := domain.OrderStatusPlaced
		orders, err := svc.List(ctx, Filter{CustomerID: &customerID, Status: &status})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(orders) != 0 {
			t.Fatalf("expected no matches, got %d", len(orders))
		}
	})

	t.Run("no matching customer returns an empty sequence", func(t *testing.T) {
		svc := NewService(newFakeRepository(), nil, testLogger())
		seed(t, svc)

		customerID := int64(9999)
		orders, err := svc.List(ctx, Filter{CustomerID: &customerID})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if orders == nil {
			t.Fatal("expected empty slice, got nil")
		}
		if len(orders) != 0 {
			t.Fatalf("expected no orders, got %d", len(orders))
		}
	})
}
