package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/orderdesk/internal/lifecycle"
	"github.com/mmeshcher/orderdesk/internal/model"
)

type returnItemDTO struct {
	ProductRef string `json:"productRef"`
	Name       string `json:"name"`
	UnitPrice  string `json:"unitPrice"`
	Quantity   int    `json:"quantity"`
	Subtotal   string `json:"subtotal"`
}

type refundDTO struct {
	Amount      string             `json:"amount"`
	Method      model.RefundMethod `json:"method"`
	Status      model.RefundStatus `json:"status"`
	CompletedAt *time.Time         `json:"completedAt,omitempty"`
}

type returnResponse struct {
	ID              string               `json:"id"`
	OrderID         string               `json:"orderId"`
	Status          model.ReturnStatus   `json:"status"`
	Items           []returnItemDTO      `json:"items"`
	ItemsSubtotal   string               `json:"itemsSubtotal"`
	Reason          string               `json:"reason"`
	Description     string               `json:"description,omitempty"`
	RejectionReason string               `json:"rejectionReason,omitempty"`
	Refund          *refundDTO           `json:"refund,omitempty"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
	Version         int64                `json:"version"`
	NextStatuses    []model.ReturnStatus `json:"nextStatuses"`
	Terminal        bool                 `json:"terminal"`
}

func newReturnResponse(ret model.ReturnRequest) returnResponse {
	resp := returnResponse{
		ID:              ret.ID,
		OrderID:         ret.OrderID,
		Status:          ret.Status,
		Items:           make([]returnItemDTO, 0, len(ret.Items)),
		ItemsSubtotal:   money(ret.ItemsSubtotal()),
		Reason:          ret.Reason,
		Description:     ret.Description,
		RejectionReason: ret.RejectionReason,
		CreatedAt:       ret.CreatedAt,
		UpdatedAt:       ret.UpdatedAt,
		Version:         ret.Version,
		NextStatuses:    lifecycle.NextReturnStatuses(ret.Status),
		Terminal:        lifecycle.IsTerminalReturn(ret.Status),
	}
	if resp.NextStatuses == nil {
		resp.NextStatuses = []model.ReturnStatus{}
	}
	for _, it := range ret.Items {
		resp.Items = append(resp.Items, returnItemDTO{
			ProductRef: it.ProductRef,
			Name:       it.Name,
			UnitPrice:  money(it.UnitPrice),
			Quantity:   it.Quantity,
			Subtotal:   money(it.Subtotal()),
		})
	}
	if ret.Refund != nil {
		resp.Refund = &refundDTO{
			Amount:      money(ret.Refund.Amount),
			Method:      ret.Refund.Method,
			Status:      ret.Refund.Status,
			CompletedAt: ret.Refund.CompletedAt,
		}
	}
	return resp
}

func newReturnList(returns []model.ReturnRequest) []returnResponse {
	resp := make([]returnResponse, 0, len(returns))
	for _, ret := range returns {
		resp = append(resp, newReturnResponse(ret))
	}
	return resp
}

type createReturnRequest struct {
	Items []struct {
		ProductRef string `json:"productRef"`
		Quantity   int    `json:"quantity"`
	} `json:"items"`
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

// CreateReturn создаёт заявку на возврат по заказу.
func (h *Handler) CreateReturn(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actorID(w, r)
	if !ok {
		return
	}

	var req createReturnRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "malformed request body")
		return
	}

	in := lifecycle.NewReturnInput{
		Items:       make([]lifecycle.ReturnItemInput, 0, len(req.Items)),
		Reason:      req.Reason,
		Description: req.Description,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, lifecycle.ReturnItemInput{ProductRef: it.ProductRef, Quantity: it.Quantity})
	}

	orderID := chi.URLParam(r, "orderID")
	ret, err := h.service.CreateReturn(r.Context(), actorID, orderID, in)
	if err != nil {
		h.writeError(w, r, "create return", err)
		return
	}

	h.logger.Info("return created",
		zap.String("return_id", ret.ID),
		zap.String("order_id", orderID),
		zap.String("actor_id", actorID),
	)
	writeJSON(w, http.StatusCreated, newReturnResponse(*ret))
}

// ListOrderReturns возвращает заявки на возврат по заказу.
func (h *Handler) ListOrderReturns(w http.ResponseWriter, r *http.Request) {
	returns, err := h.service.ListReturns(r.Context(), chi.URLParam(r, "orderID"), "", 0)
	if err != nil {
		h.writeError(w, r, "list order returns", err)
		return
	}
	writeJSON(w, http.StatusOK, newReturnList(returns))
}

// ListReturns возвращает заявки на возврат с фильтром по статусу.
func (h *Handler) ListReturns(w http.ResponseWriter, r *http.Request) {
	var status model.ReturnStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := lifecycle.ParseReturnStatus(raw)
		if err != nil {
			h.writeError(w, r, "list returns", err)
			return
		}
		status = st
	}

	limit, ok := parseLimit(r.URL.Query().Get("limit"))
	if !ok {
		h.badRequest(w, "limit must be a positive integer")
		return
	}

	returns, err := h.service.ListReturns(r.Context(), "", status, limit)
	if err != nil {
		h.writeError(w, r, "list returns", err)
		return
	}
	writeJSON(w, http.StatusOK, newReturnList(returns))
}

// GetReturn возвращает заявку на возврат.
func (h *Handler) GetReturn(w http.ResponseWriter, r *http.Request) {
	ret, err := h.service.GetReturn(r.Context(), chi.URLParam(r, "returnID"))
	if err != nil {
		h.writeError(w, r, "get return", err)
		return
	}
	writeJSON(w, http.StatusOK, newReturnResponse(*ret))
}

type approveRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
}

// ApproveReturn одобряет заявку.
func (h *Handler) ApproveReturn(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "malformed request body")
		return
	}

	method, err := lifecycle.ParseRefundMethod(req.Method)
	if err != nil {
		h.writeError(w, r, "approve return", err)
		return
	}

	h.returnCommand(w, r, "approve return", func(ctx context.Context, actorID, id string) (*model.ReturnRequest, error) {
		return h.service.ApproveReturn(ctx, actorID, id, req.Amount, method)
	})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// RejectReturn отклоняет заявку.
func (h *Handler) RejectReturn(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "malformed request body")
		return
	}

	h.returnCommand(w, r, "reject return", func(ctx context.Context, actorID, id string) (*model.ReturnRequest, error) {
		return h.service.RejectReturn(ctx, actorID, id, req.Reason)
	})
}

// PickUpReturn отмечает, что товар забран у покупателя.
func (h *Handler) PickUpReturn(w http.ResponseWriter, r *http.Request) {
	h.returnCommand(w, r, "pick up return", h.service.MarkReturnPickedUp)
}

// ReceiveReturn отмечает поступление товара на склад.
func (h *Handler) ReceiveReturn(w http.ResponseWriter, r *http.Request) {
	h.returnCommand(w, r, "receive return", h.service.MarkReturnReceived)
}

// RefundReturn завершает возврат средств.
func (h *Handler) RefundReturn(w http.ResponseWriter, r *http.Request) {
	h.returnCommand(w, r, "refund return", h.service.ProcessRefund)
}

type returnCommandFunc func(ctx context.Context, actorID, id string) (*model.ReturnRequest, error)

func (h *Handler) returnCommand(w http.ResponseWriter, r *http.Request, op string, cmd returnCommandFunc) {
	actorID, ok := h.actorID(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "returnID")
	ret, err := cmd(r.Context(), actorID, id)
	if err != nil {
		h.writeError(w, r, op, err)
		return
	}

	h.logger.Info(op,
		zap.String("return_id", id),
		zap.String("status", string(ret.Status)),
		zap.String("actor_id", actorID),
	)
	writeJSON(w, http.StatusOK, newReturnResponse(*ret))
}
