package domain

import "fmt"

// Request schemas are typed per operation: create and update have
// different required/optional field sets. Pointer fields distinguish
// "omitted" from a zero value.

type OrderItemRequest struct {
	ProductID *int64 `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

type CreateOrderRequest struct {
	CustomerID *int64             `json:"customer_id"`
	Status     *string            `json:"status"`
	Items      []OrderItemRequest `json:"order_items"`
}

func (r CreateOrderRequest) Validate() error {
	if r.CustomerID == nil {
		return &ValidationError{Field: "customer_id", Reason: "required"}
	}
	if *r.CustomerID < 0 {
		return &ValidationError{Field: "customer_id", Reason: "must be a non-negative integer"}
	}
	if r.Status != nil {
		if _, err := ParseOrderStatus(*r.Status); err != nil {
			return err
		}
	}
	return validateItems(r.Items)
}

// UpdateOrderRequest carries partial-update semantics: nil fields are
// left unchanged. A non-nil Items replaces the whole item collection,
// an empty one included.
type UpdateOrderRequest struct {
	CustomerID *int64              `json:"customer_id"`
	Status     *string             `json:"status"`
	Items      *[]OrderItemRequest `json:"order_items"`
}

func (r UpdateOrderRequest) Validate() error {
	if r.CustomerID != nil && *r.CustomerID < 0 {
		return &ValidationError{Field: "customer_id", Reason: "must be a non-negative integer"}
	}
	if r.Status != nil {
		if _, err := ParseOrderStatus(*r.Status); err != nil {
			return err
		}
	}
	if r.Items != nil {
		return validateItems(*r.Items)
	}
	return nil
}

// validateItems rejects the whole collection on the first invalid item:
// no partial item set is ever persisted.
func validateItems(items []OrderItemRequest) error {
	for i, item := range items {
		if item.ProductID == nil {
			return &ValidationError{Field: fmt.Sprintf("order_items[%d].product_id", i), Reason: "required"}
		}
		if *item.ProductID < 0 {
			return &ValidationError{Field: fmt.Sprintf("order_items[%d].product_id", i), Reason: "must be a non-negative integer"}
		}
		if item.Quantity == nil {
			return &ValidationError{Field: fmt.Sprintf("order_items[%d].quantity", i), Reason: "required"}
		}
		if *item.Quantity <= 0 {
			return &ValidationError{Field: fmt.Sprintf("order_items[%d].quantity", i), Reason: "must be a positive integer"}
		}
	}
	return nil
}
