package lifecycle

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/orderdesk/internal/model"
)

// DefaultCurrency используется, если валюта заказа не указана.
const DefaultCurrency = "INR"

// NewOrderInput содержит данные для регистрации заказа.
type NewOrderInput struct {
	Items         []model.OrderItem
	Total         decimal.Decimal
	Currency      string
	PaymentMethod string
	CustomerName  string
	CustomerEmail string
}

// NewOrder проверяет входные данные и создаёт заказ в статусе Pending.
// Сумма заказа должна совпадать с суммой стоимостей позиций. Цены и сумма
// не могут содержать больше model.MoneyScale знаков после запятой.
func NewOrder(in NewOrderInput, id, trackingID string, now time.Time) (model.Order, error) {
	if len(in.Items) == 0 {
		return model.Order{}, fmt.Errorf("%w: order must contain at least one item", ErrInvalidInput)
	}

	items := make([]model.OrderItem, 0, len(in.Items))
	seen := make(map[string]struct{}, len(in.Items))
	for i, it := range in.Items {
		ref := strings.TrimSpace(it.ProductRef)
		if ref == "" {
			return model.Order{}, fmt.Errorf("%w: item %d: product ref is required", ErrInvalidInput, i)
		}
		if _, dup := seen[ref]; dup {
			return model.Order{}, fmt.Errorf("%w: item %d: duplicate product ref %q", ErrInvalidInput, i, ref)
		}
		seen[ref] = struct{}{}
		if it.Quantity <= 0 {
			return model.Order{}, fmt.Errorf("%w: item %d: quantity must be positive", ErrInvalidInput, i)
		}
		if it.UnitPrice.IsNegative() {
			return model.Order{}, fmt.Errorf("%w: item %d: unit price must not be negative", ErrInvalidInput, i)
		}
		if err := checkMoney(fmt.Sprintf("item %d: unit price", i), it.UnitPrice); err != nil {
			return model.Order{}, err
		}
		items = append(items, model.OrderItem{
			ProductRef: ref,
			Name:       strings.TrimSpace(it.Name),
			UnitPrice:  it.UnitPrice,
			Quantity:   it.Quantity,
		})
	}

	if err := checkMoney("total", in.Total); err != nil {
		return model.Order{}, err
	}

	code := strings.TrimSpace(in.Currency)
	if code == "" {
		code = DefaultCurrency
	}
	cur, err := ParseCurrency(code)
	if err != nil {
		return model.Order{}, err
	}

	order := model.Order{
		ID:            id,
		TrackingID:    trackingID,
		Status:        model.OrderStatusPending,
		Items:         items,
		Total:         in.Total,
		Currency:      cur,
		PaymentMethod: strings.TrimSpace(in.PaymentMethod),
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerEmail: strings.TrimSpace(in.CustomerEmail),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if subtotal := order.ItemsSubtotal(); !subtotal.Equal(order.Total) {
		return model.Order{}, fmt.Errorf("%w: total %s does not match items subtotal %s", ErrInvalidInput, order.Total, subtotal)
	}

	return order, nil
}

// TransitionOptions задаёт побочные эффекты перехода.
type TransitionOptions struct {
	// Carrier назначается при первой отправке, если перевозчик не задан.
	Carrier string
	// NewTrackingNumber генерирует трек-номер при первой отправке.
	NewTrackingNumber func() string
	// TransitTime используется для расчёта ожидаемой даты доставки.
	TransitTime time.Duration
	// Reason сохраняется как причина отмены.
	Reason string
}

// TransitionOrder переводит заказ в статус target и возвращает изменённую копию.
// Исходный заказ не изменяется.
func TransitionOrder(order model.Order, target model.OrderStatus, now time.Time, opts TransitionOptions) (model.Order, error) {
	if !slices.Contains(orderStatuses, target) {
		return model.Order{}, fmt.Errorf("%w: unknown order status %q", ErrInvalidInput, target)
	}
	if IsTerminalOrder(order.Status) {
		return model.Order{}, fmt.Errorf("%w: order %s is %s and can no longer change", ErrInvalidTransition, order.ID, order.Status)
	}
	if !CanTransitionOrder(order.Status, target) {
		return model.Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, target)
	}

	next := cloneOrder(order)
	next.Status = target
	next.UpdatedAt = now

	switch target {
	case model.OrderStatusProcessing:
		setOnce(&next.ProcessingAt, now)
	case model.OrderStatusShipped:
		setOnce(&next.ShippedAt, now)
		if err := assignShipment(&next, opts); err != nil {
			return model.Order{}, err
		}
	case model.OrderStatusDelivered:
		setOnce(&next.DeliveredAt, now)
	case model.OrderStatusCancelled:
		setOnce(&next.CancelledAt, now)
		next.CancelReason = strings.TrimSpace(opts.Reason)
	}

	return next, nil
}

// assignShipment назначает трек-номер и перевозчика при первой отправке.
// Уже назначенный трек-номер не перезаписывается.
func assignShipment(order *model.Order, opts TransitionOptions) error {
	if order.Shipment == nil {
		order.Shipment = &model.Shipment{}
	}

	if order.Shipment.TrackingNumber == "" {
		if opts.NewTrackingNumber == nil {
			return fmt.Errorf("%w: tracking number generator is not configured", ErrInvalidInput)
		}
		number := opts.NewTrackingNumber()
		if number == "" {
			return fmt.Errorf("%w: empty tracking number generated", ErrInvalidInput)
		}
		order.Shipment.TrackingNumber = number
	}

	if order.Shipment.Carrier == "" {
		order.Shipment.Carrier = opts.Carrier
	}

	if order.Shipment.EstimatedDelivery == nil && opts.TransitTime > 0 && order.ShippedAt != nil {
		eta := order.ShippedAt.Add(opts.TransitTime)
		order.Shipment.EstimatedDelivery = &eta
	}

	return nil
}

func setOnce(field **time.Time, now time.Time) {
	if *field == nil {
		t := now
		*field = &t
	}
}

func cloneOrder(o model.Order) model.Order {
	c := o
	c.Items = slices.Clone(o.Items)
	if o.Shipment != nil {
		s := *o.Shipment
		c.Shipment = &s
	}
	return c
}
