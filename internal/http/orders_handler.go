package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/service"
	"github.com/go-chi/chi/v5"
)

type OrderService interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*domain.Order, error)
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	GetUserOrders(ctx context.Context, userID string, page, limit int) ([]*domain.Order, error)
	GetOrdersByStatus(ctx context.Context, status string, page, limit int) ([]*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id, status string) (*domain.Order, error)
	UpdatePaymentStatus(ctx context.Context, id, status string) (*domain.Order, error)
	CancelOrder(ctx context.Context, id, reason string) (*domain.Order, error)
	GetOrderSummary(ctx context.Context, start, end *time.Time) (*domain.OrderSummary, error)
	DeleteOrder(ctx context.Context, id string) error
}

type OrdersHandler struct {
	orders  OrderService
	timeout time.Duration
}

func NewOrdersHandler(orders OrderService, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
	}
}

type CreateOrderRequestDTO struct {
	Items           []service.LineItem `json:"items"`
	ShippingAddress domain.Address     `json:"shipping_address"`
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
}

type UpdatePaymentRequestDTO struct {
	PaymentStatus string `json:"payment_status"`
}

type CancelOrderRequestDTO struct {
	Reason string `json:"reason"`
}

// POST /api/v1/orders
func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateOrderRequestDTO
	if !decodeJSON(w, r, &req, false) {
		return
	}

	order, err := h.orders.CreateOrder(ctx, service.CreateOrderRequest{
		UserID:          userID,
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, order)
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	page, limit, ok := pagination(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.GetUserOrders(ctx, userID, page, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, orders)
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.orders.GetOrderByID(ctx, chi.URLParam(r, "order_id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// GET /api/v1/orders/status/{status}
func (h *OrdersHandler) ListByStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	page, limit, ok := pagination(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.GetOrdersByStatus(ctx, chi.URLParam(r, "status"), page, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, orders)
}

// PATCH /api/v1/orders/{order_id}/status
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateStatusRequestDTO
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.Status == "" {
		respondError(w, http.StatusBadRequest, "missing_status", "status is required")
		return
	}

	order, err := h.orders.UpdateOrderStatus(ctx, chi.URLParam(r, "order_id"), req.Status)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// PATCH /api/v1/orders/{order_id}/payment
func (h *OrdersHandler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdatePaymentRequestDTO
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.PaymentStatus == "" {
		respondError(w, http.StatusBadRequest, "missing_payment_status", "payment_status is required")
		return
	}

	order, err := h.orders.UpdatePaymentStatus(ctx, chi.URLParam(r, "order_id"), req.PaymentStatus)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// POST /api/v1/orders/{order_id}/cancel
func (h *OrdersHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CancelOrderRequestDTO
	if !decodeJSON(w, r, &req, true) {
		return
	}

	order, err := h.orders.CancelOrder(ctx, chi.URLParam(r, "order_id"), req.Reason)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// DELETE /api/v1/orders/{order_id}
func (h *OrdersHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.orders.DeleteOrder(ctx, chi.URLParam(r, "order_id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/orders/summary?start=&end=
func (h *OrdersHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	start, ok := parseTimeParam(w, r, "start")
	if !ok {
		return
	}
	end, ok := parseTimeParam(w, r, "end")
	if !ok {
		return
	}

	summary, err := h.orders.GetOrderSummary(ctx, start, end)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

func parseTimeParam(w http.ResponseWriter, r *http.Request, name string) (*time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_"+name, name+" must be an RFC3339 timestamp")
		return nil, false
	}
	return &t, true
}
