package orders

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/joao-fontenele/orders-api/internal/domain"
)

const (
	TopicOrderCreated = "order.created"
	TopicOrderShipped = "order.shipped"
)

// EventPublisher pushes domain events to the message broker. A nil
// publisher disables eventing; publish failures never fail the request.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

// Service implements the order aggregate operations: validation, the
// shipped_at side effect, and the mapping of absent rows to not-found
// errors. The repository and publisher are injected, no globals.
type Service struct {
	repo   OrderRepository
	events EventPublisher
	logger *slog.Logger
}

func NewService(repo OrderRepository, events EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		events: events,
		logger: logger,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateOrderRequest) (*domain.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	status := domain.OrderStatusPlaced
	if req.Status != nil {
		status, _ = domain.ParseOrderStatus(*req.Status)
	}

	order := &domain.Order{
		CustomerID: *req.CustomerID,
		Status:     status,
		CreatedAt:  time.Now().UTC(),
		Items:      itemsFromRequest(req.Items),
	}

	if err := s.repo.Insert(ctx, order); err != nil {
		return nil, err
	}

	s.publish(ctx, TopicOrderCreated, order.ID, domain.OrderCreatedEvent{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Status:     order.Status,
		Items:      order.Items,
		Timestamp:  order.CreatedAt,
	})

	return order, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Order, error) {
	order, err := s.repo.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, &domain.NotFoundError{Resource: "order", ID: id}
	}
	return order, nil
}

// Update merges the supplied fields into the stored order; omitted
// fields keep their prior values. The first transition to shipped
// stamps shipped_at; later transitions leave it alone.
func (s *Service) Update(ctx context.Context, id int64, req domain.UpdateOrderRequest) (*domain.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	order, err := s.repo.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, &domain.NotFoundError{Resource: "order", ID: id}
	}

	if req.CustomerID != nil {
		order.CustomerID = *req.CustomerID
	}

	firstShipped := false
	if req.Status != nil {
		status, _ := domain.ParseOrderStatus(*req.Status)
		order.Status = status
		if status == domain.OrderStatusShipped && order.ShippedAt == nil {
			now := time.Now().UTC()
			order.ShippedAt = &now
			firstShipped = true
		}
	}

	replaceItems := false
	if req.Items != nil {
		order.Items = itemsFromRequest(*req.Items)
		replaceItems = true
	}

	found, err := s.repo.Update(ctx, order, replaceItems)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &domain.NotFoundError{Resource: "order", ID: id}
	}

	if firstShipped {
		s.publish(ctx, TopicOrderShipped, order.ID, domain.OrderShippedEvent{
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			ShippedAt:  *order.ShippedAt,
		})
	}

	return order, nil
}

// Delete removes the order and all its items. Deleting an unknown id
// is an error, mirroring a retrieve-then-delete contract.
func (s *Service) Delete(ctx context.Context, id int64) error {
	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return &domain.NotFoundError{Resource: "order", ID: id}
	}
	return nil
}

func (s *Service) List(ctx context.Context, filter Filter) ([]domain.Order, error) {
	return s.repo.Query(ctx, filter)
}

func (s *Service) publish(ctx context.Context, topic string, orderID int64, event any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, topic, strconv.FormatInt(orderID, 10), event); err != nil {
		s.logger.Error("failed to publish event", "error", err, "topic", topic, "order_id", orderID)
	}
}

func itemsFromRequest(items []domain.OrderItemRequest) []domain.OrderItem {
	out := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		out = append(out, domain.OrderItem{
			ProductID: *item.ProductID,
			Quantity:  *item.Quantity,
		})
	}
	return out
}
