// Package lifecycle реализует жизненный цикл заказов и заявок на возврат:
// допустимые переходы статусов, восстановление хронологии заказа, проверку
// возвратов и решения о необходимости уведомлений.
//
// Пакет не выполняет ввод-вывод и не читает часы: текущее время и генераторы
// идентификаторов передаются вызывающей стороной.
package lifecycle

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mmeshcher/orderdesk/internal/model"
)

var (
	// ErrInvalidTransition возвращается при попытке недопустимой смены статуса.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidState возвращается, если действие не разрешено в текущем статусе.
	ErrInvalidState = errors.New("action not allowed in current status")
	// ErrAmountExceedsOrder возвращается, если сумма возврата превышает стоимость возвращаемых позиций.
	ErrAmountExceedsOrder = errors.New("refund amount exceeds returned items subtotal")
	// ErrInvalidInput возвращается при некорректных входных данных.
	ErrInvalidInput = errors.New("invalid input")
)

// orderProgression задаёт канонический порядок статусов заказа.
var orderProgression = []model.OrderStatus{
	model.OrderStatusPending,
	model.OrderStatusProcessing,
	model.OrderStatusShipped,
	model.OrderStatusDelivered,
}

var orderTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusPending:    {model.OrderStatusProcessing, model.OrderStatusCancelled},
	model.OrderStatusProcessing: {model.OrderStatusShipped, model.OrderStatusCancelled},
	model.OrderStatusShipped:    {model.OrderStatusDelivered, model.OrderStatusCancelled},
}

var returnTransitions = map[model.ReturnStatus][]model.ReturnStatus{
	model.ReturnStatusPending:  {model.ReturnStatusApproved, model.ReturnStatusRejected},
	model.ReturnStatusApproved: {model.ReturnStatusPickedUp, model.ReturnStatusRefunded},
	model.ReturnStatusPickedUp: {model.ReturnStatusReceived, model.ReturnStatusRefunded},
	model.ReturnStatusReceived: {model.ReturnStatusRefunded},
}

var orderStatuses = []model.OrderStatus{
	model.OrderStatusPending,
	model.OrderStatusProcessing,
	model.OrderStatusShipped,
	model.OrderStatusDelivered,
	model.OrderStatusCancelled,
}

var returnStatuses = []model.ReturnStatus{
	model.ReturnStatusPending,
	model.ReturnStatusApproved,
	model.ReturnStatusRejected,
	model.ReturnStatusPickedUp,
	model.ReturnStatusReceived,
	model.ReturnStatusRefunded,
}

var refundMethods = []model.RefundMethod{
	model.RefundMethodOriginal,
	model.RefundMethodStoreCredit,
	model.RefundMethodBankTransfer,
}

// CanTransitionOrder сообщает, разрешён ли переход заказа из статуса from в статус to.
// Переход в тот же статус не разрешён.
func CanTransitionOrder(from, to model.OrderStatus) bool {
	return slices.Contains(orderTransitions[from], to)
}

// CanTransitionReturn сообщает, разрешён ли переход заявки на возврат из from в to.
func CanTransitionReturn(from, to model.ReturnStatus) bool {
	return slices.Contains(returnTransitions[from], to)
}

// NextOrderStatuses возвращает статусы, достижимые из текущего.
func NextOrderStatuses(from model.OrderStatus) []model.OrderStatus {
	return slices.Clone(orderTransitions[from])
}

// NextReturnStatuses возвращает статусы заявки, достижимые из текущего.
func NextReturnStatuses(from model.ReturnStatus) []model.ReturnStatus {
	return slices.Clone(returnTransitions[from])
}

// IsTerminalOrder сообщает, является ли статус заказа конечным.
func IsTerminalOrder(s model.OrderStatus) bool {
	return slices.Contains(orderStatuses, s) && len(orderTransitions[s]) == 0
}

// IsTerminalReturn сообщает, является ли статус заявки конечным.
func IsTerminalReturn(s model.ReturnStatus) bool {
	return slices.Contains(returnStatuses, s) && len(returnTransitions[s]) == 0
}

// ParseOrderStatus разбирает название статуса заказа без учёта регистра.
func ParseOrderStatus(s string) (model.OrderStatus, error) {
	name := normalizeName(s)
	for _, st := range orderStatuses {
		if normalizeName(string(st)) == name {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown order status %q", ErrInvalidInput, s)
}

// ParseReturnStatus разбирает название статуса возврата. Допускаются
// варианты "Picked Up", "picked_up" и "picked-up".
func ParseReturnStatus(s string) (model.ReturnStatus, error) {
	name := normalizeName(s)
	for _, st := range returnStatuses {
		if normalizeName(string(st)) == name {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown return status %q", ErrInvalidInput, s)
}

// ParseRefundMethod разбирает способ возврата средств.
func ParseRefundMethod(s string) (model.RefundMethod, error) {
	name := normalizeName(s)
	for _, m := range refundMethods {
		if normalizeName(string(m)) == name {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: unknown refund method %q", ErrInvalidInput, s)
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
