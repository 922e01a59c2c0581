package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/orderdesk/internal/model"
)

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{in: "2499", want: 249900},
		{in: "1499.99", want: 149999},
		{in: "0.005", want: 1},
		{in: "0", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := toMinor(decimal.RequireFromString(tt.in))
			assert.Equal(t, tt.want, got)
		})
	}

	assert.True(t, decimal.RequireFromString("1499.99").Equal(fromMinor(149999)))
}

func TestWithRetry(t *testing.T) {
	r := &PostgresRepository{delays: []time.Duration{0, 0}}

	t.Run("retries serialization failure", func(t *testing.T) {
		calls := 0
		err := r.withRetry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return &pgconn.PgError{Code: pgerrcode.SerializationFailure}
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after delays are exhausted", func(t *testing.T) {
		calls := 0
		err := r.withRetry(context.Background(), func() error {
			calls++
			return &pgconn.PgError{Code: pgerrcode.DeadlockDetected}
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry domain errors", func(t *testing.T) {
		calls := 0
		err := r.withRetry(context.Background(), func() error {
			calls++
			return ErrConflict
		})
		require.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops on cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		err := r.withRetry(ctx, func() error {
			calls++
			return ctx.Err()
		})
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: pgerrcode.UniqueViolation}))
	assert.False(t, isUniqueViolation(errors.New("duplicate")))
	assert.True(t, isRetryable(errors.New("dial tcp: connection refused")))
	assert.False(t, isRetryable(&pgconn.PgError{Code: pgerrcode.UniqueViolation}))
}

func TestRefundColumns(t *testing.T) {
	amount, method, status, completedAt := refundColumns(nil)
	assert.Nil(t, amount)
	assert.Nil(t, method)
	assert.Nil(t, status)
	assert.Nil(t, completedAt)

	done := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	amount, method, status, completedAt = refundColumns(&model.Refund{
		Amount:      decimal.NewFromInt(2499),
		Method:      model.RefundMethodOriginal,
		Status:      model.RefundStatusCompleted,
		CompletedAt: &done,
	})
	require.NotNil(t, amount)
	assert.Equal(t, int64(249900), *amount)
	assert.Equal(t, "original", *method)
	assert.Equal(t, "completed", *status)
	assert.Equal(t, done, *completedAt)
}

func TestAuditState(t *testing.T) {
	o := model.Order{Status: model.OrderStatusShipped, Version: 3, Shipment: &model.Shipment{TrackingNumber: "BD123"}}
	assert.Equal(t, orderAudit{Status: model.OrderStatusShipped, Version: 3, TrackingNumber: "BD123"}, orderAuditState(o))

	r := model.ReturnRequest{
		Status:  model.ReturnStatusApproved,
		Version: 2,
		Refund:  &model.Refund{Amount: decimal.NewFromInt(1000), Status: model.RefundStatusPending},
	}
	got := returnAuditState(r)
	assert.Equal(t, "1000.00", got.RefundAmount)
	assert.Equal(t, model.RefundStatusPending, got.RefundStatus)
}
