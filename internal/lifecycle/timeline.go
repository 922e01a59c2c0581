package lifecycle

import (
	"fmt"
	"time"

	"github.com/mmeshcher/orderdesk/internal/model"
)

type timelineStep struct {
	status      model.OrderStatus
	offset      time.Duration
	description string
	stamp       func(o *model.Order) *time.Time
}

// Смещения от CreatedAt используются только для старых записей без явных отметок времени.
var timelineSteps = []timelineStep{
	{
		status:      model.OrderStatusPending,
		description: "Order placed",
		stamp:       func(o *model.Order) *time.Time { return &o.CreatedAt },
	},
	{
		status:      model.OrderStatusProcessing,
		offset:      time.Hour,
		description: "Order is being processed",
		stamp:       func(o *model.Order) *time.Time { return o.ProcessingAt },
	},
	{
		status:      model.OrderStatusShipped,
		offset:      24 * time.Hour,
		description: "Order shipped",
		stamp:       func(o *model.Order) *time.Time { return o.ShippedAt },
	},
	{
		status:      model.OrderStatusDelivered,
		offset:      72 * time.Hour,
		description: "Order delivered",
		stamp:       func(o *model.Order) *time.Time { return o.DeliveredAt },
	},
}

// BuildTimeline восстанавливает хронологию заказа по его статусу и отметкам времени.
//
// Хронология всегда начинается с события Pending в момент создания заказа и
// проходит статусы в каноническом порядке до текущего включительно. Для
// отменённого заказа в конец добавляется событие Cancelled. Если отметка
// времени статуса не сохранена, время вычисляется от CreatedAt, а событие
// помечается как Estimated.
func BuildTimeline(order model.Order) []model.TimelineEvent {
	last := lastReachedStep(&order)

	events := make([]model.TimelineEvent, 0, last+2)
	for _, step := range timelineSteps[:last+1] {
		ts := order.CreatedAt.Add(step.offset)
		estimated := true
		if stamp := step.stamp(&order); stamp != nil {
			ts = *stamp
			estimated = false
		}

		events = append(events, model.TimelineEvent{
			Status:      step.status,
			Timestamp:   ts,
			Description: describeStep(step, &order),
			Completed:   true,
			Estimated:   estimated,
		})
	}

	if order.Status == model.OrderStatusCancelled {
		ts := events[len(events)-1].Timestamp
		estimated := true
		if order.CancelledAt != nil {
			ts = *order.CancelledAt
			estimated = false
		}

		description := "Order cancelled"
		if order.CancelReason != "" {
			description = fmt.Sprintf("Order cancelled: %s", order.CancelReason)
		}

		events = append(events, model.TimelineEvent{
			Status:      model.OrderStatusCancelled,
			Timestamp:   ts,
			Description: description,
			Completed:   true,
			Estimated:   estimated,
		})
	}

	return events
}

// lastReachedStep возвращает индекс последнего пройденного шага канонической последовательности.
func lastReachedStep(order *model.Order) int {
	for i, st := range orderProgression {
		if st == order.Status {
			return i
		}
	}

	// Отменённый или неизвестный статус: заказ дошёл до последнего шага с сохранённой отметкой.
	last := 0
	for i := 1; i < len(timelineSteps); i++ {
		if timelineSteps[i].stamp(order) != nil {
			last = i
		}
	}
	return last
}

func describeStep(step timelineStep, order *model.Order) string {
	if step.status != model.OrderStatusShipped || order.Shipment == nil || order.Shipment.TrackingNumber == "" {
		return step.description
	}
	if order.Shipment.Carrier == "" {
		return fmt.Sprintf("%s (tracking %s)", step.description, order.Shipment.TrackingNumber)
	}
	return fmt.Sprintf("%s via %s (tracking %s)", step.description, order.Shipment.Carrier, order.Shipment.TrackingNumber)
}
