package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/orderdesk/internal/model"
)

const orderColumns = `id, tracking_id, status, items, total_minor, currency, payment_method,
	customer_name, customer_email, tracking_number, carrier, current_location, estimated_delivery,
	cancel_reason, created_at, processing_at, shipped_at, delivered_at, cancelled_at, updated_at, version`

// OrderFilter задаёт условия выборки заказов. Limit = 0 означает выборку без ограничения.
type OrderFilter struct {
	Status model.OrderStatus
	Limit  int
}

// CreateOrder сохраняет новый заказ и запись журнала в одной транзакции.
func (r *PostgresRepository) CreateOrder(ctx context.Context, order model.Order, actorID string) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	shipment := order.Shipment
	if shipment == nil {
		shipment = &model.Shipment{}
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO orders (`+orderColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
			order.ID, order.TrackingID, string(order.Status), items, toMinor(order.Total), order.Currency, order.PaymentMethod,
			order.CustomerName, order.CustomerEmail, nullString(shipment.TrackingNumber), nullString(shipment.Carrier),
			nullString(shipment.CurrentLocation), shipment.EstimatedDelivery,
			order.CancelReason, order.CreatedAt, order.ProcessingAt, order.ShippedAt, order.DeliveredAt, order.CancelledAt,
			order.UpdatedAt, order.Version,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: order %s already exists", ErrConflict, order.ID)
			}
			return fmt.Errorf("insert order: %w", err)
		}

		return insertAudit(ctx, tx, model.AuditEntry{
			ActorID:      actorID,
			Action:       model.AuditActionOrderCreate,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   order.ID,
			After:        auditJSON(orderAuditState(order)),
			CreatedAt:    order.CreatedAt,
		})
	})
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// ListOrders возвращает заказы, начиная с самых новых.
func (r *PostgresRepository) ListOrders(ctx context.Context, filter OrderFilter) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(` WHERE status = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// UpdateOrder сохраняет next, если версия заказа в БД совпадает с prev.Version.
// Иначе возвращает ErrConflict, а при отсутствии заказа ErrNotFound. Запись
// журнала пишется в той же транзакции.
func (r *PostgresRepository) UpdateOrder(ctx context.Context, prev, next model.Order, actorID string) error {
	shipment := next.Shipment
	if shipment == nil {
		shipment = &model.Shipment{}
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE orders SET
				status = $3, tracking_number = $4, carrier = $5, current_location = $6, estimated_delivery = $7,
				cancel_reason = $8, processing_at = $9, shipped_at = $10, delivered_at = $11, cancelled_at = $12,
				updated_at = $13, version = $14
			 WHERE id = $1 AND version = $2`,
			next.ID, prev.Version,
			string(next.Status), nullString(shipment.TrackingNumber), nullString(shipment.Carrier),
			nullString(shipment.CurrentLocation), shipment.EstimatedDelivery,
			next.CancelReason, next.ProcessingAt, next.ShippedAt, next.DeliveredAt, next.CancelledAt,
			next.UpdatedAt, next.Version,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: tracking number %s already assigned", ErrConflict, shipment.TrackingNumber)
			}
			return fmt.Errorf("update order: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return missingOrConflict(ctx, tx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, "order", next.ID)
		}

		return insertAudit(ctx, tx, model.AuditEntry{
			ActorID:      actorID,
			Action:       model.AuditActionOrderStatusUpdate,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   next.ID,
			Before:       auditJSON(orderAuditState(prev)),
			After:        auditJSON(orderAuditState(next)),
			CreatedAt:    next.UpdatedAt,
		})
	})
}

func missingOrConflict(ctx context.Context, q querier, existsSQL, kind, id string) error {
	var exists bool
	if err := q.QueryRow(ctx, existsSQL, id).Scan(&exists); err != nil {
		return fmt.Errorf("check %s existence: %w", kind, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return fmt.Errorf("%w: %s %s was modified concurrently", ErrConflict, kind, id)
}

type orderAudit struct {
	Status         model.OrderStatus `json:"status"`
	Version        int64             `json:"version"`
	TrackingNumber string            `json:"trackingNumber,omitempty"`
	CancelReason   string            `json:"cancelReason,omitempty"`
}

func orderAuditState(o model.Order) orderAudit {
	a := orderAudit{Status: o.Status, Version: o.Version, CancelReason: o.CancelReason}
	if o.Shipment != nil {
		a.TrackingNumber = o.Shipment.TrackingNumber
	}
	return a
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o              model.Order
		status         string
		items          []byte
		totalMinor     int64
		trackingNumber *string
		carrier        *string
		location       *string
		eta            *time.Time
	)

	err := row.Scan(
		&o.ID, &o.TrackingID, &status, &items, &totalMinor, &o.Currency, &o.PaymentMethod,
		&o.CustomerName, &o.CustomerEmail, &trackingNumber, &carrier, &location, &eta,
		&o.CancelReason, &o.CreatedAt, &o.ProcessingAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt,
		&o.UpdatedAt, &o.Version,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode items of order %s: %w", o.ID, err)
	}

	o.Status = model.OrderStatus(status)
	o.Total = fromMinor(totalMinor)

	if trackingNumber != nil || carrier != nil || location != nil || eta != nil {
		o.Shipment = &model.Shipment{
			TrackingNumber:    derefString(trackingNumber),
			Carrier:           derefString(carrier),
			CurrentLocation:   derefString(location),
			EstimatedDelivery: eta,
		}
	}

	return &o, nil
}
