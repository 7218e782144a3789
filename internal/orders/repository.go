package orders

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/joao-fontenele/orders-api/internal/domain"
)

// Filter narrows a Query. Nil fields match everything; set fields are
// combined with AND.
type Filter struct {
	CustomerID *int64
	Status     *domain.OrderStatus
}

// OrderRepository is the persistence gateway for the order aggregate.
// Absent rows are reported as (nil, nil) or (false, nil), never as an
// error: the service layer owns the not-found taxonomy.
type OrderRepository interface {
	Insert(ctx context.Context, order *domain.Order) error
	Fetch(ctx context.Context, id int64) (*domain.Order, error)
	Update(ctx context.Context, order *domain.Order, replaceItems bool) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Query(ctx context.Context, filter Filter) ([]domain.Order, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.PersistenceError{Op: "begin insert order", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (customer_id, status, created_at, shipped_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, order.CustomerID, order.Status, order.CreatedAt, order.ShippedAt).Scan(&order.ID)
	if err != nil {
		return &domain.PersistenceError{Op: "insert order", Err: err}
	}

	if err := insertItems(ctx, tx, order); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &domain.PersistenceError{Op: "commit insert order", Err: err}
	}
	return nil
}

func (r *PostgresRepository) Fetch(ctx context.Context, id int64) (*domain.Order, error) {
	order := &domain.Order{Items: []domain.OrderItem{}}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, status, created_at, shipped_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.CustomerID, &order.Status, &order.CreatedAt, &order.ShippedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, &domain.PersistenceError{Op: "fetch order", Err: err}
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "fetch order items", Err: err}
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity); err != nil {
			return nil, &domain.PersistenceError{Op: "scan order item", Err: err}
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "fetch order items", Err: err}
	}

	return order, nil
}

// Update persists the order header and, when replaceItems is set, swaps
// the whole item collection inside the same transaction. Existing item
// rows keep their ids when the collection is untouched.
func (r *PostgresRepository) Update(ctx context.Context, order *domain.Order, replaceItems bool) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, &domain.PersistenceError{Op: "begin update order", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET customer_id = $1, status = $2, shipped_at = $3
		WHERE id = $4
	`, order.CustomerID, order.Status, order.ShippedAt, order.ID)
	if err != nil {
		return false, &domain.PersistenceError{Op: "update order", Err: err}
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, &domain.PersistenceError{Op: "update order", Err: err}
	}
	if rowsAffected == 0 {
		return false, nil
	}

	if replaceItems {
		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, order.ID); err != nil {
			return false, &domain.PersistenceError{Op: "delete order items", Err: err}
		}
		if err := insertItems(ctx, tx, order); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, &domain.PersistenceError{Op: "commit update order", Err: err}
	}
	return true, nil
}

// Delete removes the order; item rows cascade through the foreign key.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return false, &domain.PersistenceError{Op: "delete order", Err: err}
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, &domain.PersistenceError{Op: "delete order", Err: err}
	}
	return rowsAffected > 0, nil
}

func (r *PostgresRepository) Query(ctx context.Context, filter Filter) ([]domain.Order, error) {
	query := `
		SELECT id, customer_id, status, created_at, shipped_at
		FROM orders
	`
	var conditions []string
	var args []any

	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += "WHERE " + strings.Join(conditions, " AND ") + "\n"
	}
	query += "ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "query orders", Err: err}
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[int64]*domain.Order)
	var orderIDs []int64

	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.CustomerID, &order.Status, &order.CreatedAt, &order.ShippedAt); err != nil {
			return nil, &domain.PersistenceError{Op: "scan order", Err: err}
		}
		order.Items = []domain.OrderItem{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "query orders", Err: err}
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, &domain.PersistenceError{Op: "query order items", Err: err}
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var item domain.OrderItem
		if err := itemRows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity); err != nil {
			return nil, &domain.PersistenceError{Op: "scan order item", Err: err}
		}
		order := orderMap[item.OrderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "query order items", Err: err}
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

func insertItems(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := tx.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity)
			VALUES ($1, $2, $3)
			RETURNING id
		`, item.OrderID, item.ProductID, item.Quantity).Scan(&item.ID)
		if err != nil {
			return &domain.PersistenceError{Op: "insert order item", Err: err}
		}
	}
	return nil
}
