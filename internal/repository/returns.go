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

const returnColumns = `id, order_id, items, status, reason, description, rejection_reason,
	refund_amount_minor, refund_method, refund_status, refund_completed_at, created_at, updated_at, version`

// ReturnFilter задаёт условия выборки заявок на возврат.
type ReturnFilter struct {
	OrderID string
	Status  model.ReturnStatus
	Limit   int
}

// ReturnBuilder строит новую заявку по заблокированному заказу и уже созданным по нему заявкам.
type ReturnBuilder func(order model.Order, existing []model.ReturnRequest) (model.ReturnRequest, error)

// CreateReturn блокирует строку заказа, передаёт заказ и его заявки в build и
// сохраняет результат. Блокировка исключает одновременное создание двух заявок,
// в сумме превышающих заказанное количество.
func (r *PostgresRepository) CreateReturn(ctx context.Context, orderID, actorID string, build ReturnBuilder) (*model.ReturnRequest, error) {
	var created model.ReturnRequest

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		order, err := scanOrder(tx.QueryRow(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
			}
			return fmt.Errorf("lock order: %w", err)
		}

		existing, err := listReturns(ctx, tx, ReturnFilter{OrderID: orderID})
		if err != nil {
			return err
		}

		ret, err := build(*order, existing)
		if err != nil {
			return err
		}

		if err := insertReturn(ctx, tx, ret); err != nil {
			return err
		}

		created = ret
		return insertAudit(ctx, tx, model.AuditEntry{
			ActorID:      actorID,
			Action:       model.AuditActionReturnCreate,
			ResourceType: model.AuditResourceReturn,
			ResourceID:   ret.ID,
			After:        auditJSON(returnAuditState(ret)),
			CreatedAt:    ret.CreatedAt,
		})
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func insertReturn(ctx context.Context, q querier, ret model.ReturnRequest) error {
	items, err := json.Marshal(ret.Items)
	if err != nil {
		return fmt.Errorf("marshal return items: %w", err)
	}
	amount, method, status, completedAt := refundColumns(ret.Refund)

	_, err = q.Exec(ctx,
		`INSERT INTO returns (`+returnColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		ret.ID, ret.OrderID, items, string(ret.Status), ret.Reason, ret.Description, ret.RejectionReason,
		amount, method, status, completedAt, ret.CreatedAt, ret.UpdatedAt, ret.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: return %s already exists", ErrConflict, ret.ID)
		}
		return fmt.Errorf("insert return: %w", err)
	}
	return nil
}

// GetReturn возвращает заявку на возврат по идентификатору.
func (r *PostgresRepository) GetReturn(ctx context.Context, id string) (*model.ReturnRequest, error) {
	ret, err := scanReturn(r.pool.QueryRow(ctx, `SELECT `+returnColumns+` FROM returns WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: return %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get return: %w", err)
	}
	return ret, nil
}

// ListReturns возвращает заявки на возврат, начиная с самых новых.
func (r *PostgresRepository) ListReturns(ctx context.Context, filter ReturnFilter) ([]model.ReturnRequest, error) {
	return listReturns(ctx, r.pool, filter)
}

func listReturns(ctx context.Context, q querier, filter ReturnFilter) ([]model.ReturnRequest, error) {
	query := `SELECT ` + returnColumns + ` FROM returns WHERE TRUE`
	var args []any
	if filter.OrderID != "" {
		args = append(args, filter.OrderID)
		query += fmt.Sprintf(` AND order_id = $%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select returns: %w", err)
	}
	defer rows.Close()

	var returns []model.ReturnRequest
	for rows.Next() {
		ret, err := scanReturn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan return: %w", err)
		}
		returns = append(returns, *ret)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return returns, nil
}

// UpdateReturn сохраняет next при совпадении версии заявки с prev.Version.
func (r *PostgresRepository) UpdateReturn(ctx context.Context, prev, next model.ReturnRequest, actorID string) error {
	amount, method, status, completedAt := refundColumns(next.Refund)

	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE returns SET
				status = $3, rejection_reason = $4, refund_amount_minor = $5, refund_method = $6,
				refund_status = $7, refund_completed_at = $8, updated_at = $9, version = $10
			 WHERE id = $1 AND version = $2`,
			next.ID, prev.Version,
			string(next.Status), next.RejectionReason, amount, method, status, completedAt,
			next.UpdatedAt, next.Version,
		)
		if err != nil {
			return fmt.Errorf("update return: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return missingOrConflict(ctx, tx, `SELECT EXISTS (SELECT 1 FROM returns WHERE id = $1)`, "return", next.ID)
		}

		return insertAudit(ctx, tx, model.AuditEntry{
			ActorID:      actorID,
			Action:       model.AuditActionReturnStatusUpdate,
			ResourceType: model.AuditResourceReturn,
			ResourceID:   next.ID,
			Before:       auditJSON(returnAuditState(prev)),
			After:        auditJSON(returnAuditState(next)),
			CreatedAt:    next.UpdatedAt,
		})
	})
}

type returnAudit struct {
	Status       model.ReturnStatus `json:"status"`
	Version      int64              `json:"version"`
	RefundAmount string             `json:"refundAmount,omitempty"`
	RefundStatus model.RefundStatus `json:"refundStatus,omitempty"`
}

func returnAuditState(r model.ReturnRequest) returnAudit {
	a := returnAudit{Status: r.Status, Version: r.Version}
	if r.Refund != nil {
		a.RefundAmount = r.Refund.Amount.StringFixed(2)
		a.RefundStatus = r.Refund.Status
	}
	return a
}

func refundColumns(refund *model.Refund) (amount *int64, method, status *string, completedAt *time.Time) {
	if refund == nil {
		return nil, nil, nil, nil
	}
	minor := toMinor(refund.Amount)
	m := string(refund.Method)
	s := string(refund.Status)
	return &minor, &m, &s, refund.CompletedAt
}

func scanReturn(row pgx.Row) (*model.ReturnRequest, error) {
	var (
		ret          model.ReturnRequest
		status       string
		items        []byte
		amountMinor  *int64
		refundMethod *string
		refundStatus *string
		completedAt  *time.Time
	)

	err := row.Scan(
		&ret.ID, &ret.OrderID, &items, &status, &ret.Reason, &ret.Description, &ret.RejectionReason,
		&amountMinor, &refundMethod, &refundStatus, &completedAt, &ret.CreatedAt, &ret.UpdatedAt, &ret.Version,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &ret.Items); err != nil {
		return nil, fmt.Errorf("decode items of return %s: %w", ret.ID, err)
	}
	ret.Status = model.ReturnStatus(status)

	if amountMinor != nil {
		ret.Refund = &model.Refund{
			Amount:      fromMinor(*amountMinor),
			Method:      model.RefundMethod(derefString(refundMethod)),
			Status:      model.RefundStatus(derefString(refundStatus)),
			CompletedAt: completedAt,
		}
	}

	return &ret, nil
}
