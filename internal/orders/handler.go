package orders

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/orders-api/internal/domain"
)

var meter = otel.Meter("orders/handler")

// Handler is the HTTP boundary: it decodes payloads, invokes the
// service, and maps the error taxonomy to status codes (400 validation,
// 404 not found, everything else 500).
type Handler struct {
	svc           *Service
	logger        *slog.Logger
	ordersCreated metric.Int64Counter
}

func NewHandler(svc *Service, logger *slog.Logger) (*Handler, error) {
	ordersCreated, err := meter.Int64Counter("orders.created",
		metric.WithDescription("Number of orders created"),
	)
	if err != nil {
		return nil, fmt.Errorf("create orders.created counter: %w", err)
	}

	return &Handler{
		svc:           svc,
		logger:        logger,
		ordersCreated: ordersCreated,
	}, nil
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, err, "failed to create order")
		return
	}

	h.ordersCreated.Add(r.Context(), 1)
	h.logger.Info("order created", "order_id", order.ID, "customer_id", order.CustomerID)
	w.Header().Set("Location", fmt.Sprintf("/orders/%d", order.ID))
	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	order, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err, "failed to get order")
		return
	}

	h.logger.Info("order retrieved", "order_id", order.ID)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	var req domain.UpdateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.svc.Update(r.Context(), id, req)
	if err != nil {
		h.writeDomainError(w, err, "failed to update order")
		return
	}

	h.logger.Info("order updated", "order_id", order.ID, "status", order.Status)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeDomainError(w, err, "failed to delete order")
		return
	}

	h.logger.Info("order deleted", "order_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	var filter Filter

	if raw := r.URL.Query().Get("customer_id"); raw != "" {
		customerID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || customerID < 0 {
			h.writeError(w, http.StatusBadRequest, "invalid customer_id: must be a non-negative integer")
			return
		}
		filter.CustomerID = &customerID
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := domain.ParseOrderStatus(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = &status
	}

	orders, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, err, "failed to list orders")
		return
	}

	h.logger.Info("orders listed", "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 0 {
		h.writeError(w, http.StatusBadRequest, "invalid order id: must be a non-negative integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error, logMsg string) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		h.writeError(w, http.StatusBadRequest, verr.Error())
		return
	}

	var nferr *domain.NotFoundError
	if errors.As(err, &nferr) {
		h.writeError(w, http.StatusNotFound, nferr.Error())
		return
	}

	h.logger.Error(logMsg, "error", err)
	h.writeError(w, http.StatusInternalServerError, "internal server error")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
