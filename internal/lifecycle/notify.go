package lifecycle

import "github.com/mmeshcher/orderdesk/internal/model"

// NotificationKind определяет тип уведомления покупателя.
type NotificationKind string

const (
	KindOrderShipped   NotificationKind = "order.shipped"
	KindOrderDelivered NotificationKind = "order.delivered"
	KindOrderCancelled NotificationKind = "order.cancelled"
	KindReturnApproved NotificationKind = "return.approved"
	KindReturnRejected NotificationKind = "return.rejected"
	KindReturnRefunded NotificationKind = "return.refunded"
)

var orderNotificationKinds = map[model.OrderStatus]NotificationKind{
	model.OrderStatusShipped:   KindOrderShipped,
	model.OrderStatusDelivered: KindOrderDelivered,
	model.OrderStatusCancelled: KindOrderCancelled,
}

var returnNotificationKinds = map[model.ReturnStatus]NotificationKind{
	model.ReturnStatusApproved: KindReturnApproved,
	model.ReturnStatusRejected: KindReturnRejected,
	model.ReturnStatusRefunded: KindReturnRefunded,
}

// Notification описывает уведомление, которое нужно доставить после успешного перехода.
// Содержит снимок заказа и, для возвратов, снимок заявки.
type Notification struct {
	Kind          NotificationKind
	Recipient     string
	RecipientName string
	Order         model.Order
	Return        *model.ReturnRequest
}

// EntityID возвращает идентификатор сущности, к которой относится уведомление.
func (n Notification) EntityID() string {
	if n.Return != nil {
		return n.Return.ID
	}
	return n.Order.ID
}

// OrderNotification решает, требуется ли уведомление после перехода заказа из статуса prev.
func OrderNotification(prev model.OrderStatus, order model.Order) (Notification, bool) {
	if prev == order.Status || order.CustomerEmail == "" {
		return Notification{}, false
	}
	kind, ok := orderNotificationKinds[order.Status]
	if !ok {
		return Notification{}, false
	}
	return Notification{
		Kind:          kind,
		Recipient:     order.CustomerEmail,
		RecipientName: order.CustomerName,
		Order:         order,
	}, true
}

// ReturnNotification решает, требуется ли уведомление после перехода заявки из статуса prev.
func ReturnNotification(prev model.ReturnStatus, ret model.ReturnRequest, order model.Order) (Notification, bool) {
	if prev == ret.Status || order.CustomerEmail == "" {
		return Notification{}, false
	}
	kind, ok := returnNotificationKinds[ret.Status]
	if !ok {
		return Notification{}, false
	}
	snapshot := cloneReturn(ret)
	return Notification{
		Kind:          kind,
		Recipient:     order.CustomerEmail,
		RecipientName: order.CustomerName,
		Order:         order,
		Return:        &snapshot,
	}, true
}
