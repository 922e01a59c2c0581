package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/orderdesk/internal/lifecycle"
	"github.com/mmeshcher/orderdesk/internal/model"
)

type orderItemDTO struct {
	ProductRef string `json:"productRef"`
	Name       string `json:"name"`
	UnitPrice  string `json:"unitPrice"`
	Quantity   int    `json:"quantity"`
	Subtotal   string `json:"subtotal"`
}

type shipmentDTO struct {
	TrackingNumber    string     `json:"trackingNumber"`
	Carrier           string     `json:"carrier"`
	CurrentLocation   string     `json:"currentLocation,omitempty"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty"`
}

type orderResponse struct {
	ID            string                `json:"id"`
	TrackingID    string                `json:"trackingId"`
	Status        model.OrderStatus     `json:"status"`
	Items         []orderItemDTO        `json:"items"`
	Total         string                `json:"total"`
	Currency      string                `json:"currency"`
	PaymentMethod string                `json:"paymentMethod,omitempty"`
	CustomerName  string                `json:"customerName,omitempty"`
	CustomerEmail string                `json:"customerEmail,omitempty"`
	Shipment      *shipmentDTO          `json:"shipment,omitempty"`
	CancelReason  string                `json:"cancelReason,omitempty"`
	CreatedAt     time.Time             `json:"createdAt"`
	ProcessingAt  *time.Time            `json:"processingAt,omitempty"`
	ShippedAt     *time.Time            `json:"shippedAt,omitempty"`
	DeliveredAt   *time.Time            `json:"deliveredAt,omitempty"`
	CancelledAt   *time.Time            `json:"cancelledAt,omitempty"`
	UpdatedAt     time.Time             `json:"updatedAt"`
	Version       int64                 `json:"version"`
	NextStatuses  []model.OrderStatus   `json:"nextStatuses"`
	Terminal      bool                  `json:"terminal"`
	Timeline      []model.TimelineEvent `json:"timeline,omitempty"`
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func newOrderResponse(o model.Order) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		TrackingID:    o.TrackingID,
		Status:        o.Status,
		Items:         make([]orderItemDTO, 0, len(o.Items)),
		Total:         money(o.Total),
		Currency:      o.Currency,
		PaymentMethod: o.PaymentMethod,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		CancelReason:  o.CancelReason,
		CreatedAt:     o.CreatedAt,
		ProcessingAt:  o.ProcessingAt,
		ShippedAt:     o.ShippedAt,
		DeliveredAt:   o.DeliveredAt,
		CancelledAt:   o.CancelledAt,
		UpdatedAt:     o.UpdatedAt,
		Version:       o.Version,
		NextStatuses:  lifecycle.NextOrderStatuses(o.Status),
		Terminal:      lifecycle.IsTerminalOrder(o.Status),
	}
	if resp.NextStatuses == nil {
		resp.NextStatuses = []model.OrderStatus{}
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, orderItemDTO{
			ProductRef: it.ProductRef,
			Name:       it.Name,
			UnitPrice:  money(it.UnitPrice),
			Quantity:   it.Quantity,
			Subtotal:   money(it.Subtotal()),
		})
	}
	if s := o.Shipment; s != nil {
		resp.Shipment = &shipmentDTO{
			TrackingNumber:    s.TrackingNumber,
			Carrier:           s.Carrier,
			CurrentLocation:   s.CurrentLocation,
			EstimatedDelivery: s.EstimatedDelivery,
		}
	}
	return resp
}

type createOrderItem struct {
	ProductRef string          `json:"productRef"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Quantity   int             `json:"quantity"`
}

type createOrderRequest struct {
	Items         []createOrderItem `json:"items"`
	Total         decimal.Decimal   `json:"total"`
	Currency      string            `json:"currency"`
	PaymentMethod string            `json:"paymentMethod"`
	CustomerName  string            `json:"customerName"`
	CustomerEmail string            `json:"customerEmail"`
}

// CreateOrder регистрирует заказ.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actorID(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "malformed request body")
		return
	}

	in := lifecycle.NewOrderInput{
		Items:         make([]model.OrderItem, 0, len(req.Items)),
		Total:         req.Total,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethod,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, model.OrderItem{
			ProductRef: it.ProductRef,
			Name:       it.Name,
			UnitPrice:  it.UnitPrice,
			Quantity:   it.Quantity,
		})
	}

	order, err := h.service.CreateOrder(r.Context(), actorID, in)
	if err != nil {
		h.writeError(w, r, "create order", err)
		return
	}

	h.logger.Info("order created", zap.String("order_id", order.ID), zap.String("actor_id", actorID))
	writeJSON(w, http.StatusCreated, newOrderResponse(*order))
}

// ListOrders возвращает заказы с фильтром по статусу.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	var status model.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := lifecycle.ParseOrderStatus(raw)
		if err != nil {
			h.writeError(w, r, "list orders", err)
			return
		}
		status = st
	}

	limit, ok := parseLimit(r.URL.Query().Get("limit"))
	if !ok {
		h.badRequest(w, "limit must be a positive integer")
		return
	}

	orders, err := h.service.ListOrders(r.Context(), status, limit)
	if err != nil {
		h.writeError(w, r, "list orders", err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, newOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetOrder возвращает заказ вместе с хронологией.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	details, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, r, "get order", err)
		return
	}

	resp := newOrderResponse(details.Order)
	resp.Timeline = details.Timeline
	writeJSON(w, http.StatusOK, resp)
}

// GetTimeline возвращает хронологию заказа.
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	timeline, err := h.service.Timeline(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, r, "get timeline", err)
		return
	}
	writeJSON(w, http.StatusOK, timeline)
}

type statusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// UpdateOrderStatus переводит заказ в новый статус.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actorID(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "malformed request body")
		return
	}

	target, err := lifecycle.ParseOrderStatus(req.Status)
	if err != nil {
		h.writeError(w, r, "update order status", err)
		return
	}

	orderID := chi.URLParam(r, "orderID")
	order, err := h.service.TransitionOrder(r.Context(), actorID, orderID, target, req.Reason)
	if err != nil {
		h.writeError(w, r, "update order status", err)
		return
	}

	h.logger.Info("order status updated",
		zap.String("order_id", orderID),
		zap.String("status", string(order.Status)),
		zap.String("actor_id", actorID),
	)
	writeJSON(w, http.StatusOK, newOrderResponse(*order))
}

// GetInvoice возвращает счёт по заказу в HTML.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	html, err := h.service.Invoice(r.Context(), chi.URLParam(r, "orderID"), r.URL.Query().Get("lang"))
	if err != nil {
		h.writeError(w, r, "get invoice", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

// GetStats возвращает сводку для панели администратора.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, "get stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
