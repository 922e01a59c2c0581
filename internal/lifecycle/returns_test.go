package lifecycle

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/orderdesk/internal/model"
)

func testReturn(t *testing.T) model.ReturnRequest {
	t.Helper()

	order := testOrder(model.OrderStatusDelivered)
	ret, err := NewReturn(order, nil, NewReturnInput{
		Items: []ReturnItemInput{
			{ProductRef: "sku-kurta", Quantity: 1},
			{ProductRef: "sku-scarf", Quantity: 2},
		},
		Reason:      "wrong size",
		Description: "kurta is too small",
	}, "ret-1", createdAt.Add(100*time.Hour))
	require.NoError(t, err)
	return ret
}

func TestNewReturn(t *testing.T) {
	ret := testReturn(t)
	assert.Equal(t, model.ReturnStatusPending, ret.Status)
	assert.Equal(t, "01HZX0ORDER", ret.OrderID)
	require.Len(t, ret.Items, 2)
	assert.Equal(t, "Cotton kurta", ret.Items[0].Name)
	assert.True(t, ret.ItemsSubtotal().Equal(decimal.RequireFromString("2499")))
	assert.Nil(t, ret.Refund)
}

func TestNewReturn_Validation(t *testing.T) {
	delivered := testOrder(model.OrderStatusDelivered)
	existing := []model.ReturnRequest{
		{ID: "r-old", OrderID: delivered.ID, Status: model.ReturnStatusApproved,
			Items: []model.ReturnItem{{ProductRef: "sku-scarf", Quantity: 1}}},
		{ID: "r-rejected", OrderID: delivered.ID, Status: model.ReturnStatusRejected,
			Items: []model.ReturnItem{{ProductRef: "sku-kurta", Quantity: 1}}},
	}

	tests := []struct {
		name    string
		order   model.Order
		items   []ReturnItemInput
		reason  string
		wantErr error
	}{
		{
			name:    "order not shipped",
			order:   testOrder(model.OrderStatusProcessing),
			items:   []ReturnItemInput{{ProductRef: "sku-kurta", Quantity: 1}},
			reason:  "damaged",
			wantErr: ErrInvalidState,
		},
		{
			name:    "unknown product",
			order:   delivered,
			items:   []ReturnItemInput{{ProductRef: "sku-other", Quantity: 1}},
			reason:  "damaged",
			wantErr: ErrInvalidInput,
		},
		{
			name:    "quantity above ordered",
			order:   delivered,
			items:   []ReturnItemInput{{ProductRef: "sku-kurta", Quantity: 2}},
			reason:  "damaged",
			wantErr: ErrInvalidInput,
		},
		{
			name:    "cumulative quantity above ordered",
			order:   delivered,
			items:   []ReturnItemInput{{ProductRef: "sku-scarf", Quantity: 2}},
			reason:  "damaged",
			wantErr: ErrInvalidInput,
		},
		{
			name:    "missing reason",
			order:   delivered,
			items:   []ReturnItemInput{{ProductRef: "sku-kurta", Quantity: 1}},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "no items",
			order:   delivered,
			reason:  "damaged",
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReturn(tt.order, existing, NewReturnInput{Items: tt.items, Reason: tt.reason}, "ret-x", createdAt)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	// отклонённая заявка не учитывается
	_, err := NewReturn(delivered, existing, NewReturnInput{
		Items:  []ReturnItemInput{{ProductRef: "sku-kurta", Quantity: 1}, {ProductRef: "sku-scarf", Quantity: 1}},
		Reason: "damaged",
	}, "ret-ok", createdAt)
	require.NoError(t, err)
}

func TestApproveReturn_AmountBoundary(t *testing.T) {
	ret := testReturn(t)
	subtotal := ret.ItemsSubtotal()

	_, err := ApproveReturn(ret, subtotal.Add(decimal.NewFromInt(1)), model.RefundMethodOriginal, createdAt)
	require.ErrorIs(t, err, ErrAmountExceedsOrder)

	approved, err := ApproveReturn(ret, subtotal, model.RefundMethodOriginal, createdAt)
	require.NoError(t, err)
	assert.Equal(t, model.ReturnStatusApproved, approved.Status)
	require.NotNil(t, approved.Refund)
	assert.True(t, approved.Refund.Amount.Equal(subtotal))
	assert.Equal(t, model.RefundStatusPending, approved.Refund.Status)

	assert.Equal(t, model.ReturnStatusPending, ret.Status)
	assert.Nil(t, ret.Refund)
}

func TestApproveReturn_InvalidInput(t *testing.T) {
	ret := testReturn(t)

	_, err := ApproveReturn(ret, decimal.Zero, model.RefundMethodOriginal, createdAt)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = ApproveReturn(ret, decimal.NewFromInt(10), "cash", createdAt)
	require.ErrorIs(t, err, ErrInvalidInput)

	for _, amount := range []string{"0.333", "0.999", "1499.995"} {
		_, err = ApproveReturn(ret, decimal.RequireFromString(amount), model.RefundMethodOriginal, createdAt)
		require.ErrorIs(t, err, ErrInvalidInput, amount)
	}

	approved, err := ApproveReturn(ret, decimal.RequireFromString("0.990"), model.RefundMethodOriginal, createdAt)
	require.NoError(t, err)
	assert.True(t, approved.Refund.Amount.Equal(decimal.RequireFromString("0.99")))
}

func TestReturnScenario(t *testing.T) {
	ret := testReturn(t)
	now := createdAt.Add(120 * time.Hour)

	approved, err := ApproveReturn(ret, decimal.RequireFromString("2499"), model.RefundMethodOriginal, now)
	require.NoError(t, err)
	assert.Equal(t, model.ReturnStatusApproved, approved.Status)

	refunded, err := ProcessRefund(approved, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, model.ReturnStatusRefunded, refunded.Status)
	assert.Equal(t, model.RefundStatusCompleted, refunded.Refund.Status)
	require.NotNil(t, refunded.Refund.CompletedAt)
	assert.Equal(t, model.RefundStatusPending, approved.Refund.Status)

	_, err = RejectReturn(refunded, "too late", now)
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = ProcessRefund(refunded, now)
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Contains(t, err.Error(), "can no longer change")
}

func TestReturnPickupAndReceive(t *testing.T) {
	ret := testReturn(t)

	_, err := MarkPickedUp(ret, createdAt)
	require.ErrorIs(t, err, ErrInvalidState)

	approved, err := ApproveReturn(ret, decimal.NewFromInt(100), model.RefundMethodStoreCredit, createdAt)
	require.NoError(t, err)

	_, err = MarkReceived(approved, createdAt)
	require.ErrorIs(t, err, ErrInvalidState)

	picked, err := MarkPickedUp(approved, createdAt)
	require.NoError(t, err)
	assert.Equal(t, model.ReturnStatusPickedUp, picked.Status)

	received, err := MarkReceived(picked, createdAt)
	require.NoError(t, err)
	assert.Equal(t, model.ReturnStatusReceived, received.Status)

	refunded, err := ProcessRefund(received, createdAt)
	require.NoError(t, err)
	assert.Equal(t, model.ReturnStatusRefunded, refunded.Status)
}

func TestRejectReturn(t *testing.T) {
	ret := testReturn(t)

	_, err := RejectReturn(ret, "  ", createdAt)
	require.ErrorIs(t, err, ErrInvalidInput)

	rejected, err := RejectReturn(ret, "outside return window", createdAt)
	require.NoError(t, err)
	assert.Equal(t, model.ReturnStatusRejected, rejected.Status)
	assert.Equal(t, "outside return window", rejected.RejectionReason)

	_, err = ApproveReturn(rejected, decimal.NewFromInt(1), model.RefundMethodOriginal, createdAt)
	require.ErrorIs(t, err, ErrInvalidState)
	_, err = ProcessRefund(rejected, createdAt)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestProcessRefund_RequiresApproval(t *testing.T) {
	_, err := ProcessRefund(testReturn(t), createdAt)
	require.ErrorIs(t, err, ErrInvalidState)
}
