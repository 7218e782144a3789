package domain

import (
	"strings"
	"time"
)

// OrderStatus is the lifecycle state of an order. Values are stored
// lower-case; input is matched case-insensitively.
type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "placed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusReturned  OrderStatus = "returned"
	OrderStatusCanceled  OrderStatus = "canceled"
)

// ParseOrderStatus canonicalizes a status string. Unknown values are
// rejected, never coerced.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch status := OrderStatus(strings.ToLower(s)); status {
	case OrderStatusPlaced, OrderStatusShipped, OrderStatusDelivered, OrderStatusReturned, OrderStatusCanceled:
		return status, nil
	default:
		return "", &ValidationError{Field: "status", Reason: "must be one of placed, shipped, delivered, returned, canceled"}
	}
}

type OrderItem struct {
	ID        int64 `json:"id"`
	OrderID   int64 `json:"order_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// Order is the aggregate root. Items are exclusively owned: they are
// written and deleted with the order, and every item's OrderID equals
// the order's ID.
//
// ShippedAt is a first-shipped marker: it is set once when the status
// first transitions to shipped and is never cleared by later status
// changes.
type Order struct {
	ID         int64       `json:"id"`
	CustomerID int64       `json:"customer_id"`
	Status     OrderStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	ShippedAt  *time.Time  `json:"shipped_at"`
	Items      []OrderItem `json:"order_items"`
}
