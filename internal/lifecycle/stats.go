package lifecycle

import (
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/orderdesk/internal/model"
)

// OrderStats содержит сводку по заказам для панели администратора.
type OrderStats struct {
	Total            int                       `json:"total"`
	ByStatus         map[model.OrderStatus]int `json:"byStatus"`
	Revenue          decimal.Decimal           `json:"revenue"`
	AwaitingShipment int                       `json:"awaitingShipment"`
}

// ReturnStats содержит сводку по заявкам на возврат.
type ReturnStats struct {
	Total              int                        `json:"total"`
	ByStatus           map[model.ReturnStatus]int `json:"byStatus"`
	RefundedTotal      decimal.Decimal            `json:"refundedTotal"`
	PendingRefundTotal decimal.Decimal            `json:"pendingRefundTotal"`
}

// SummarizeOrders считает сводку по заказам. Отменённые заказы не входят в выручку.
func SummarizeOrders(orders []model.Order) OrderStats {
	stats := OrderStats{
		ByStatus: make(map[model.OrderStatus]int, len(orderStatuses)),
		Revenue:  decimal.Zero,
	}
	for _, st := range orderStatuses {
		stats.ByStatus[st] = 0
	}

	for _, o := range orders {
		stats.Total++
		stats.ByStatus[o.Status]++
		if o.Status != model.OrderStatusCancelled {
			stats.Revenue = stats.Revenue.Add(o.Total)
		}
		if o.Status == model.OrderStatusPending || o.Status == model.OrderStatusProcessing {
			stats.AwaitingShipment++
		}
	}
	return stats
}

// SummarizeReturns считает сводку по заявкам на возврат.
func SummarizeReturns(returns []model.ReturnRequest) ReturnStats {
	stats := ReturnStats{
		ByStatus:           make(map[model.ReturnStatus]int, len(returnStatuses)),
		RefundedTotal:      decimal.Zero,
		PendingRefundTotal: decimal.Zero,
	}
	for _, st := range returnStatuses {
		stats.ByStatus[st] = 0
	}

	for _, r := range returns {
		stats.Total++
		stats.ByStatus[r.Status]++
		if r.Refund == nil {
			continue
		}
		switch r.Refund.Status {
		case model.RefundStatusCompleted:
			stats.RefundedTotal = stats.RefundedTotal.Add(r.Refund.Amount)
		case model.RefundStatusPending:
			stats.PendingRefundTotal = stats.PendingRefundTotal.Add(r.Refund.Amount)
		}
	}
	return stats
}
