package domain

import "time"

type OrderCreatedEvent struct {
	OrderID    int64       `json:"order_id"`
	CustomerID int64       `json:"customer_id"`
	Status     OrderStatus `json:"status"`
	Items      []OrderItem `json:"order_items"`
	Timestamp  time.Time   `json:"timestamp"`
}

type OrderShippedEvent struct {
	OrderID    int64     `json:"order_id"`
	CustomerID int64     `json:"customer_id"`
	ShippedAt  time.Time `json:"shipped_at"`
}
