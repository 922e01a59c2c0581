// Package model содержит доменные сущности сервиса orderdesk.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

// ReturnStatus описывает статус заявки на возврат.
type ReturnStatus string

const (
	ReturnStatusPending  ReturnStatus = "Pending"
	ReturnStatusApproved ReturnStatus = "Approved"
	ReturnStatusRejected ReturnStatus = "Rejected"
	ReturnStatusPickedUp ReturnStatus = "Picked Up"
	ReturnStatusReceived ReturnStatus = "Received"
	ReturnStatusRefunded ReturnStatus = "Refunded"
)

// MoneyScale задаёт число знаков после запятой в денежных суммах.
// Суммы хранятся в минимальных единицах валюты.
const MoneyScale = 2

// RefundMethod описывает способ возврата средств.
type RefundMethod string

const (
	RefundMethodOriginal     RefundMethod = "original"
	RefundMethodStoreCredit  RefundMethod = "store_credit"
	RefundMethodBankTransfer RefundMethod = "bank_transfer"
)

// RefundStatus описывает состояние выплаты по возврату.
type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusCompleted RefundStatus = "completed"
)

// OrderItem описывает позицию заказа.
type OrderItem struct {
	ProductRef string          `json:"productRef"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Quantity   int             `json:"quantity"`
}

// Subtotal возвращает стоимость позиции.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Shipment содержит данные об отправке заказа.
type Shipment struct {
	TrackingNumber    string     `json:"trackingNumber"`
	Carrier           string     `json:"carrier"`
	CurrentLocation   string     `json:"currentLocation,omitempty"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty"`
}

// Order описывает заказ покупателя.
type Order struct {
	ID            string
	TrackingID    string
	Status        OrderStatus
	Items         []OrderItem
	Total         decimal.Decimal
	Currency      string
	PaymentMethod string
	CustomerName  string
	CustomerEmail string
	Shipment      *Shipment
	CancelReason  string

	CreatedAt    time.Time
	ProcessingAt *time.Time
	ShippedAt    *time.Time
	DeliveredAt  *time.Time
	CancelledAt  *time.Time
	UpdatedAt    time.Time

	Version int64
}

// ItemsSubtotal возвращает сумму стоимостей всех позиций заказа.
func (o Order) ItemsSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}

// FindItem ищет позицию заказа по ссылке на товар.
func (o Order) FindItem(productRef string) (OrderItem, bool) {
	for _, it := range o.Items {
		if it.ProductRef == productRef {
			return it, true
		}
	}
	return OrderItem{}, false
}

// ReturnItem описывает возвращаемую позицию. Цена копируется из заказа.
type ReturnItem struct {
	ProductRef string          `json:"productRef"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Quantity   int             `json:"quantity"`
}

// Subtotal возвращает стоимость возвращаемой позиции.
func (i ReturnItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Refund описывает выплату по возврату.
type Refund struct {
	Amount      decimal.Decimal
	Method      RefundMethod
	Status      RefundStatus
	CompletedAt *time.Time
}

// ReturnRequest описывает заявку на возврат части заказа.
type ReturnRequest struct {
	ID              string
	OrderID         string
	Items           []ReturnItem
	Status          ReturnStatus
	Reason          string
	Description     string
	RejectionReason string
	Refund          *Refund
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64
}

// ItemsSubtotal возвращает стоимость всех возвращаемых позиций.
func (r ReturnRequest) ItemsSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range r.Items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}

// TimelineEvent описывает вычисляемое событие жизненного цикла заказа. Не хранится.
type TimelineEvent struct {
	Status      OrderStatus `json:"status"`
	Timestamp   time.Time   `json:"timestamp"`
	Description string      `json:"description"`
	Completed   bool        `json:"completed"`
	Estimated   bool        `json:"estimated"`
}

// AuditEntry описывает запись журнала действий администратора.
type AuditEntry struct {
	ActorID      string
	Action       string
	ResourceType string
	ResourceID   string
	Before       string
	After        string
	CreatedAt    time.Time
}

const (
	AuditActionOrderCreate        = "ORDER_CREATE"
	AuditActionOrderStatusUpdate  = "ORDER_STATUS_UPDATE"
	AuditActionReturnCreate       = "RETURN_CREATE"
	AuditActionReturnStatusUpdate = "RETURN_STATUS_UPDATE"

	AuditResourceOrder  = "order"
	AuditResourceReturn = "return"
)
