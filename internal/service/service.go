// Package service реализует команды администратора над заказами и возвратами.
//
// Каждая команда выполняется в порядке: загрузка, проверка перехода,
// атомарное сохранение с проверкой версии, уведомление. Ошибка доставки
// уведомления не отменяет уже сохранённое изменение.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/mmeshcher/orderdesk/internal/invoice"
	"github.com/mmeshcher/orderdesk/internal/lifecycle"
	"github.com/mmeshcher/orderdesk/internal/model"
	"github.com/mmeshcher/orderdesk/internal/repository"
)

var tracer = otel.Tracer("github.com/mmeshcher/orderdesk/internal/service")

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateOrder(ctx context.Context, order model.Order, actorID string) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	ListOrders(ctx context.Context, filter repository.OrderFilter) ([]model.Order, error)
	UpdateOrder(ctx context.Context, prev, next model.Order, actorID string) error
	CreateReturn(ctx context.Context, orderID, actorID string, build repository.ReturnBuilder) (*model.ReturnRequest, error)
	GetReturn(ctx context.Context, id string) (*model.ReturnRequest, error)
	ListReturns(ctx context.Context, filter repository.ReturnFilter) ([]model.ReturnRequest, error)
	UpdateReturn(ctx context.Context, prev, next model.ReturnRequest, actorID string) error
}

// Dispatcher доставляет уведомления покупателям.
type Dispatcher interface {
	Dispatch(ctx context.Context, n lifecycle.Notification) error
}

// Options задаёт параметры сервиса.
type Options struct {
	Carrier       string
	CarrierPrefix string
	TransitTime   time.Duration
	InvoiceLocale language.Tag

	// Now и NewID подменяются в тестах.
	Now               func() time.Time
	NewID             func() string
	NewTrackingNumber func() string
}

// Service содержит бизнес-логику жизненного цикла заказов и возвратов.
type Service struct {
	repo       Repository
	dispatcher Dispatcher
	logger     *zap.Logger
	opts       Options
}

// NewService создаёт сервис. dispatcher может быть nil, тогда уведомления не отправляются.
func NewService(repo Repository, dispatcher Dispatcher, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = newID
	}
	if opts.NewTrackingNumber == nil {
		opts.NewTrackingNumber = trackingNumberGenerator(opts.CarrierPrefix)
	}
	if opts.InvoiceLocale == language.Und {
		opts.InvoiceLocale = language.English
	}

	return &Service{
		repo:       repo,
		dispatcher: dispatcher,
		logger:     logger,
		opts:       opts,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func (s *Service) now() time.Time {
	return s.opts.Now().UTC()
}

// OrderDetails содержит заказ вместе с восстановленной хронологией.
type OrderDetails struct {
	Order    model.Order
	Timeline []model.TimelineEvent
}

// CreateOrder регистрирует новый заказ в статусе Pending.
func (s *Service) CreateOrder(ctx context.Context, actorID string, in lifecycle.NewOrderInput) (*model.Order, error) {
	ctx, span := tracer.Start(ctx, "service.CreateOrder")
	defer span.End()

	now := s.now()
	order, err := lifecycle.NewOrder(in, s.opts.NewID(), newTrackingID(now), now)
	if err != nil {
		return nil, fail(span, err)
	}
	order.Version = 1

	if err := s.repo.CreateOrder(ctx, order, actorID); err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.String("order.id", order.ID))

	return &order, nil
}

// GetOrder возвращает заказ и его хронологию.
func (s *Service) GetOrder(ctx context.Context, id string) (*OrderDetails, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return &OrderDetails{
		Order:    *order,
		Timeline: lifecycle.BuildTimeline(*order),
	}, nil
}

// Timeline возвращает хронологию заказа.
func (s *Service) Timeline(ctx context.Context, id string) ([]model.TimelineEvent, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return lifecycle.BuildTimeline(*order), nil
}

// ListOrders возвращает заказы, отфильтрованные по статусу.
func (s *Service) ListOrders(ctx context.Context, status model.OrderStatus, limit int) ([]model.Order, error) {
	return s.repo.ListOrders(ctx, repository.OrderFilter{Status: status, Limit: limit})
}

// TransitionOrder переводит заказ в статус target от имени администратора actorID.
func (s *Service) TransitionOrder(ctx context.Context, actorID, id string, target model.OrderStatus, reason string) (*model.Order, error) {
	ctx, span := tracer.Start(ctx, "service.TransitionOrder", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.target_status", string(target)),
	))
	defer span.End()

	current, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}

	next, err := lifecycle.TransitionOrder(*current, target, s.now(), lifecycle.TransitionOptions{
		Carrier:           s.opts.Carrier,
		NewTrackingNumber: s.opts.NewTrackingNumber,
		TransitTime:       s.opts.TransitTime,
		Reason:            reason,
	})
	if err != nil {
		return nil, fail(span, err)
	}
	next.Version = current.Version + 1

	if err := s.repo.UpdateOrder(ctx, *current, next, actorID); err != nil {
		return nil, fail(span, err)
	}

	if n, ok := lifecycle.OrderNotification(current.Status, next); ok {
		s.notify(ctx, n)
	}

	return &next, nil
}

// CreateReturn создаёт заявку на возврат части заказа.
func (s *Service) CreateReturn(ctx context.Context, actorID, orderID string, in lifecycle.NewReturnInput) (*model.ReturnRequest, error) {
	ctx, span := tracer.Start(ctx, "service.CreateReturn", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	now := s.now()
	id := s.opts.NewID()

	ret, err := s.repo.CreateReturn(ctx, orderID, actorID, func(order model.Order, existing []model.ReturnRequest) (model.ReturnRequest, error) {
		r, err := lifecycle.NewReturn(order, existing, in, id, now)
		if err != nil {
			return model.ReturnRequest{}, err
		}
		r.Version = 1
		return r, nil
	})
	if err != nil {
		return nil, fail(span, err)
	}

	return ret, nil
}

// GetReturn возвращает заявку на возврат.
func (s *Service) GetReturn(ctx context.Context, id string) (*model.ReturnRequest, error) {
	return s.repo.GetReturn(ctx, id)
}

// ListReturns возвращает заявки на возврат, отфильтрованные по заказу и статусу.
func (s *Service) ListReturns(ctx context.Context, orderID string, status model.ReturnStatus, limit int) ([]model.ReturnRequest, error) {
	if orderID != "" {
		if _, err := s.repo.GetOrder(ctx, orderID); err != nil {
			return nil, err
		}
	}
	return s.repo.ListReturns(ctx, repository.ReturnFilter{OrderID: orderID, Status: status, Limit: limit})
}

// ApproveReturn одобряет заявку и фиксирует сумму и способ возврата средств.
func (s *Service) ApproveReturn(ctx context.Context, actorID, id string, amount decimal.Decimal, method model.RefundMethod) (*model.ReturnRequest, error) {
	return s.updateReturn(ctx, "service.ApproveReturn", actorID, id, func(r model.ReturnRequest, now time.Time) (model.ReturnRequest, error) {
		return lifecycle.ApproveReturn(r, amount, method, now)
	})
}

// RejectReturn отклоняет заявку с указанием причины.
func (s *Service) RejectReturn(ctx context.Context, actorID, id, reason string) (*model.ReturnRequest, error) {
	return s.updateReturn(ctx, "service.RejectReturn", actorID, id, func(r model.ReturnRequest, now time.Time) (model.ReturnRequest, error) {
		return lifecycle.RejectReturn(r, reason, now)
	})
}

// MarkReturnPickedUp отмечает, что возвращаемый товар забран у покупателя.
func (s *Service) MarkReturnPickedUp(ctx context.Context, actorID, id string) (*model.ReturnRequest, error) {
	return s.updateReturn(ctx, "service.MarkReturnPickedUp", actorID, id, lifecycle.MarkPickedUp)
}

// MarkReturnReceived отмечает поступление товара на склад.
func (s *Service) MarkReturnReceived(ctx context.Context, actorID, id string) (*model.ReturnRequest, error) {
	return s.updateReturn(ctx, "service.MarkReturnReceived", actorID, id, lifecycle.MarkReceived)
}

// ProcessRefund завершает возврат средств по заявке.
func (s *Service) ProcessRefund(ctx context.Context, actorID, id string) (*model.ReturnRequest, error) {
	return s.updateReturn(ctx, "service.ProcessRefund", actorID, id, lifecycle.ProcessRefund)
}

type returnStep func(ret model.ReturnRequest, now time.Time) (model.ReturnRequest, error)

func (s *Service) updateReturn(ctx context.Context, op, actorID, id string, step returnStep) (*model.ReturnRequest, error) {
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attribute.String("return.id", id)))
	defer span.End()

	current, err := s.repo.GetReturn(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}

	next, err := step(*current, s.now())
	if err != nil {
		return nil, fail(span, err)
	}
	next.Version = current.Version + 1

	if err := s.repo.UpdateReturn(ctx, *current, next, actorID); err != nil {
		return nil, fail(span, err)
	}

	s.notifyReturn(ctx, current.Status, next)

	return &next, nil
}

func (s *Service) notifyReturn(ctx context.Context, prev model.ReturnStatus, ret model.ReturnRequest) {
	if s.dispatcher == nil || prev == ret.Status {
		return
	}

	order, err := s.repo.GetOrder(ctx, ret.OrderID)
	if err != nil {
		s.logger.Warn("failed to load order for return notification",
			zap.String("return_id", ret.ID),
			zap.String("order_id", ret.OrderID),
			zap.Error(err),
		)
		return
	}

	if n, ok := lifecycle.ReturnNotification(prev, ret, *order); ok {
		s.notify(ctx, n)
	}
}

func (s *Service) notify(ctx context.Context, n lifecycle.Notification) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Dispatch(ctx, n); err != nil {
		s.logger.Error("failed to dispatch notification",
			zap.String("kind", string(n.Kind)),
			zap.String("entity_id", n.EntityID()),
			zap.Error(err),
		)
	}
}

// Invoice возвращает HTML-счёт по заказу. Пустая локаль заменяется локалью по умолчанию.
func (s *Service) Invoice(ctx context.Context, id, locale string) (string, error) {
	tag, err := invoice.ParseLocale(locale, s.opts.InvoiceLocale)
	if err != nil {
		return "", fmt.Errorf("%w: %v", lifecycle.ErrInvalidInput, err)
	}

	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return "", err
	}

	doc, err := invoice.Build(*order, tag)
	if err != nil {
		return "", fmt.Errorf("%w: %v", lifecycle.ErrInvalidInput, err)
	}

	return invoice.Render(doc)
}

// Stats содержит сводку для панели администратора.
type Stats struct {
	Orders  lifecycle.OrderStats  `json:"orders"`
	Returns lifecycle.ReturnStats `json:"returns"`
}

// Stats считает сводку по всем заказам и возвратам.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	orders, err := s.repo.ListOrders(ctx, repository.OrderFilter{})
	if err != nil {
		return nil, err
	}
	returns, err := s.repo.ListReturns(ctx, repository.ReturnFilter{})
	if err != nil {
		return nil, err
	}
	return &Stats{
		Orders:  lifecycle.SummarizeOrders(orders),
		Returns: lifecycle.SummarizeReturns(returns),
	}, nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	if !isExpected(err) {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// isExpected отличает отказы бизнес-правил от сбоев инфраструктуры.
func isExpected(err error) bool {
	return errors.Is(err, lifecycle.ErrInvalidInput) ||
		errors.Is(err, lifecycle.ErrInvalidTransition) ||
		errors.Is(err, lifecycle.ErrInvalidState) ||
		errors.Is(err, lifecycle.ErrAmountExceedsOrder) ||
		errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, repository.ErrConflict)
}
