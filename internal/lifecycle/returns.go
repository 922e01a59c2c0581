package lifecycle

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/orderdesk/internal/model"
)

// returnableOrderStatuses перечисляет статусы заказа, для которых принимаются возвраты.
var returnableOrderStatuses = []model.OrderStatus{
	model.OrderStatusShipped,
	model.OrderStatusDelivered,
}

// ReturnItemInput описывает позицию в заявке на возврат.
type ReturnItemInput struct {
	ProductRef string
	Quantity   int
}

// NewReturnInput содержит данные заявки на возврат.
type NewReturnInput struct {
	Items       []ReturnItemInput
	Reason      string
	Description string
}

// NewReturn проверяет заявку на возврат относительно заказа и уже созданных
// по нему заявок и создаёт заявку в статусе Pending.
//
// Суммарное количество возвращаемого товара по всем неотклонённым заявкам не
// может превышать заказанное количество.
func NewReturn(order model.Order, existing []model.ReturnRequest, in NewReturnInput, id string, now time.Time) (model.ReturnRequest, error) {
	if !slices.Contains(returnableOrderStatuses, order.Status) {
		return model.ReturnRequest{}, fmt.Errorf("%w: order in status %s does not accept returns", ErrInvalidState, order.Status)
	}
	if len(in.Items) == 0 {
		return model.ReturnRequest{}, fmt.Errorf("%w: return must contain at least one item", ErrInvalidInput)
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return model.ReturnRequest{}, fmt.Errorf("%w: return reason is required", ErrInvalidInput)
	}

	alreadyReturned := make(map[string]int)
	for _, r := range existing {
		if r.OrderID != order.ID || r.Status == model.ReturnStatusRejected {
			continue
		}
		for _, it := range r.Items {
			alreadyReturned[it.ProductRef] += it.Quantity
		}
	}

	requested := make(map[string]int, len(in.Items))
	items := make([]model.ReturnItem, 0, len(in.Items))
	for i, it := range in.Items {
		ref := strings.TrimSpace(it.ProductRef)
		if it.Quantity <= 0 {
			return model.ReturnRequest{}, fmt.Errorf("%w: item %d: quantity must be positive", ErrInvalidInput, i)
		}
		ordered, ok := order.FindItem(ref)
		if !ok {
			return model.ReturnRequest{}, fmt.Errorf("%w: item %d: product %q is not part of order %s", ErrInvalidInput, i, ref, order.ID)
		}
		requested[ref] += it.Quantity
		if requested[ref]+alreadyReturned[ref] > ordered.Quantity {
			return model.ReturnRequest{}, fmt.Errorf("%w: item %d: returning %d of %q exceeds ordered quantity %d (already returned %d)",
				ErrInvalidInput, i, requested[ref], ref, ordered.Quantity, alreadyReturned[ref])
		}
		items = append(items, model.ReturnItem{
			ProductRef: ref,
			Name:       ordered.Name,
			UnitPrice:  ordered.UnitPrice,
			Quantity:   it.Quantity,
		})
	}

	return model.ReturnRequest{
		ID:          id,
		OrderID:     order.ID,
		Items:       items,
		Status:      model.ReturnStatusPending,
		Reason:      reason,
		Description: strings.TrimSpace(in.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ApproveReturn одобряет заявку и фиксирует сумму и способ возврата средств.
// Сумма не может превышать стоимость возвращаемых позиций.
func ApproveReturn(ret model.ReturnRequest, amount decimal.Decimal, method model.RefundMethod, now time.Time) (model.ReturnRequest, error) {
	if err := requireReturnTransition(ret, model.ReturnStatusApproved); err != nil {
		return model.ReturnRequest{}, err
	}
	if !slices.Contains(refundMethods, method) {
		return model.ReturnRequest{}, fmt.Errorf("%w: unknown refund method %q", ErrInvalidInput, method)
	}
	if !amount.IsPositive() {
		return model.ReturnRequest{}, fmt.Errorf("%w: refund amount must be positive", ErrInvalidInput)
	}
	if err := checkMoney("refund amount", amount); err != nil {
		return model.ReturnRequest{}, err
	}
	if limit := ret.ItemsSubtotal(); amount.GreaterThan(limit) {
		return model.ReturnRequest{}, fmt.Errorf("%w: %s > %s", ErrAmountExceedsOrder, amount, limit)
	}

	next := cloneReturn(ret)
	next.Status = model.ReturnStatusApproved
	next.UpdatedAt = now
	next.Refund = &model.Refund{
		Amount: amount,
		Method: method,
		Status: model.RefundStatusPending,
	}
	return next, nil
}

// RejectReturn отклоняет заявку. Причина обязательна.
func RejectReturn(ret model.ReturnRequest, reason string, now time.Time) (model.ReturnRequest, error) {
	if err := requireReturnTransition(ret, model.ReturnStatusRejected); err != nil {
		return model.ReturnRequest{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return model.ReturnRequest{}, fmt.Errorf("%w: rejection reason is required", ErrInvalidInput)
	}

	next := cloneReturn(ret)
	next.Status = model.ReturnStatusRejected
	next.RejectionReason = reason
	next.UpdatedAt = now
	return next, nil
}

// MarkPickedUp отмечает, что курьер забрал возвращаемый товар.
func MarkPickedUp(ret model.ReturnRequest, now time.Time) (model.ReturnRequest, error) {
	return advanceReturn(ret, model.ReturnStatusPickedUp, now)
}

// MarkReceived отмечает поступление возвращённого товара на склад.
func MarkReceived(ret model.ReturnRequest, now time.Time) (model.ReturnRequest, error) {
	return advanceReturn(ret, model.ReturnStatusReceived, now)
}

// ProcessRefund завершает возврат средств. Разрешено из статусов Approved,
// Picked Up и Received. Статус Refunded конечный.
func ProcessRefund(ret model.ReturnRequest, now time.Time) (model.ReturnRequest, error) {
	if err := requireReturnTransition(ret, model.ReturnStatusRefunded); err != nil {
		return model.ReturnRequest{}, err
	}
	if ret.Refund == nil {
		return model.ReturnRequest{}, fmt.Errorf("%w: return %s has no approved refund", ErrInvalidState, ret.ID)
	}

	next := cloneReturn(ret)
	next.Status = model.ReturnStatusRefunded
	next.UpdatedAt = now
	completedAt := now
	next.Refund.Status = model.RefundStatusCompleted
	next.Refund.CompletedAt = &completedAt
	return next, nil
}

func advanceReturn(ret model.ReturnRequest, target model.ReturnStatus, now time.Time) (model.ReturnRequest, error) {
	if err := requireReturnTransition(ret, target); err != nil {
		return model.ReturnRequest{}, err
	}
	next := cloneReturn(ret)
	next.Status = target
	next.UpdatedAt = now
	return next, nil
}

func requireReturnTransition(ret model.ReturnRequest, target model.ReturnStatus) error {
	if IsTerminalReturn(ret.Status) {
		return fmt.Errorf("%w: return %s is %s and can no longer change", ErrInvalidState, ret.ID, ret.Status)
	}
	if !CanTransitionReturn(ret.Status, target) {
		return fmt.Errorf("%w: return %s is %s, cannot move to %s", ErrInvalidState, ret.ID, ret.Status, target)
	}
	return nil
}

func cloneReturn(r model.ReturnRequest) model.ReturnRequest {
	c := r
	c.Items = slices.Clone(r.Items)
	if r.Refund != nil {
		refund := *r.Refund
		c.Refund = &refund
	}
	return c
}
