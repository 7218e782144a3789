package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/orders-api/internal/domain"
)

// Handler turns order events into customer notifications. When a
// webhook URL is configured each notification is POSTed there;
// otherwise it is only logged.
type Handler struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHandler(webhookURL string, client *http.Client, logger *slog.Logger) *Handler {
	return &Handler{
		webhookURL: webhookURL,
		httpClient: client,
		logger:     logger,
	}
}

type notification struct {
	Type       string `json:"type"`
	OrderID    int64  `json:"order_id"`
	CustomerID int64  `json:"customer_id"`
	Message    string `json:"message"`
}

func (h *Handler) HandleOrderCreated(ctx context.Context, payload []byte) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order created event: %w", err)
	}

	h.logger.Info("order created notification",
		"order_id", event.OrderID,
		"customer_id", event.CustomerID,
		"item_count", len(event.Items),
	)

	return h.deliver(ctx, notification{
		Type:       "order.created",
		OrderID:    event.OrderID,
		CustomerID: event.CustomerID,
		Message:    fmt.Sprintf("Your order %d has been received", event.OrderID),
	})
}

func (h *Handler) HandleOrderShipped(ctx context.Context, payload []byte) error {
	var event domain.OrderShippedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order shipped event: %w", err)
	}

	h.logger.Info("order shipped notification",
		"order_id", event.OrderID,
		"customer_id", event.CustomerID,
		"shipped_at", event.ShippedAt,
	)

	return h.deliver(ctx, notification{
		Type:       "order.shipped",
		OrderID:    event.OrderID,
		CustomerID: event.CustomerID,
		Message:    fmt.Sprintf("Your order %d has shipped", event.OrderID),
	})
}

func (h *Handler) deliver(ctx context.Context, n notification) error {
	if h.webhookURL == "" {
		return nil
	}

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver notification for order %d: %w", n.OrderID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook returned status %d for order %d", resp.StatusCode, n.OrderID)
	}

	return nil
}
