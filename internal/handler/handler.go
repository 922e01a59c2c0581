// Package handler содержит HTTP-обработчики административного API сервиса orderdesk.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/orderdesk/internal/lifecycle"
	"github.com/mmeshcher/orderdesk/internal/middleware"
	"github.com/mmeshcher/orderdesk/internal/model"
	"github.com/mmeshcher/orderdesk/internal/repository"
	"github.com/mmeshcher/orderdesk/internal/service"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	CreateOrder(ctx context.Context, actorID string, in lifecycle.NewOrderInput) (*model.Order, error)
	GetOrder(ctx context.Context, id string) (*service.OrderDetails, error)
	Timeline(ctx context.Context, id string) ([]model.TimelineEvent, error)
	ListOrders(ctx context.Context, status model.OrderStatus, limit int) ([]model.Order, error)
	TransitionOrder(ctx context.Context, actorID, id string, target model.OrderStatus, reason string) (*model.Order, error)
	Invoice(ctx context.Context, id, locale string) (string, error)

	CreateReturn(ctx context.Context, actorID, orderID string, in lifecycle.NewReturnInput) (*model.ReturnRequest, error)
	GetReturn(ctx context.Context, id string) (*model.ReturnRequest, error)
	ListReturns(ctx context.Context, orderID string, status model.ReturnStatus, limit int) ([]model.ReturnRequest, error)
	ApproveReturn(ctx context.Context, actorID, id string, amount decimal.Decimal, method model.RefundMethod) (*model.ReturnRequest, error)
	RejectReturn(ctx context.Context, actorID, id, reason string) (*model.ReturnRequest, error)
	MarkReturnPickedUp(ctx context.Context, actorID, id string) (*model.ReturnRequest, error)
	MarkReturnReceived(ctx context.Context, actorID, id string) (*model.ReturnRequest, error)
	ProcessRefund(ctx context.Context, actorID, id string) (*model.ReturnRequest, error)

	Stats(ctx context.Context) (*service.Stats, error)
}

// Handler реализует HTTP-обработчики административного API.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError отображает ошибку на HTTP-статус. Неожиданные ошибки пишутся в журнал.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, kind := http.StatusInternalServerError, "internal"

	switch {
	case errors.Is(err, repository.ErrNotFound):
		status, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrConflict):
		status, kind = http.StatusConflict, "conflict"
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		status, kind = http.StatusUnprocessableEntity, "invalid_transition"
	case errors.Is(err, lifecycle.ErrInvalidState):
		status, kind = http.StatusUnprocessableEntity, "invalid_state"
	case errors.Is(err, lifecycle.ErrAmountExceedsOrder):
		status, kind = http.StatusUnprocessableEntity, "amount_exceeds_order"
	case errors.Is(err, lifecycle.ErrInvalidInput):
		status, kind = http.StatusBadRequest, "invalid_input"
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error(op+" error",
			zap.Error(err),
			zap.String("path", r.URL.Path),
		)
		message = http.StatusText(status)
	}

	writeJSON(w, status, errorResponse{Error: kind, Message: message})
}

func (h *Handler) badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_input", Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// actorID возвращает идентификатор администратора. Отсутствие означает, что маршрут не защищён.
func (h *Handler) actorID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.GetActorIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: "missing actor"})
		return "", false
	}
	return id, true
}

func parseLimit(raw string) (int, bool) {
	if raw == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return min(n, maxListLimit), true
}
