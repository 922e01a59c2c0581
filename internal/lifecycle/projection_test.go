package lifecycle

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/orderdesk/internal/model"
)

func TestOrderNotification(t *testing.T) {
	shipped := testOrder(model.OrderStatusShipped)

	n, ok := OrderNotification(model.OrderStatusProcessing, shipped)
	require.True(t, ok)
	assert.Equal(t, KindOrderShipped, n.Kind)
	assert.Equal(t, "asha@example.com", n.Recipient)
	assert.Equal(t, shipped.ID, n.EntityID())

	_, ok = OrderNotification(model.OrderStatusPending, testOrder(model.OrderStatusProcessing))
	assert.False(t, ok)

	noEmail := testOrder(model.OrderStatusDelivered)
	noEmail.CustomerEmail = ""
	_, ok = OrderNotification(model.OrderStatusShipped, noEmail)
	assert.False(t, ok)
}

func TestReturnNotification(t *testing.T) {
	order := testOrder(model.OrderStatusDelivered)
	ret := testReturn(t)
	approved, err := ApproveReturn(ret, decimal.NewFromInt(500), model.RefundMethodOriginal, createdAt)
	require.NoError(t, err)

	n, ok := ReturnNotification(model.ReturnStatusPending, approved, order)
	require.True(t, ok)
	assert.Equal(t, KindReturnApproved, n.Kind)
	require.NotNil(t, n.Return)
	assert.Equal(t, approved.ID, n.EntityID())

	picked, err := MarkPickedUp(approved, createdAt)
	require.NoError(t, err)
	_, ok = ReturnNotification(model.ReturnStatusApproved, picked, order)
	assert.False(t, ok)
}

func TestSummarizeOrders(t *testing.T) {
	orders := []model.Order{
		testOrder(model.OrderStatusPending),
		testOrder(model.OrderStatusProcessing),
		testOrder(model.OrderStatusDelivered),
		testOrder(model.OrderStatusCancelled),
	}

	stats := SummarizeOrders(orders)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[model.OrderStatusCancelled])
	assert.Equal(t, 0, stats.ByStatus[model.OrderStatusShipped])
	assert.Equal(t, 2, stats.AwaitingShipment)
	assert.True(t, stats.Revenue.Equal(decimal.RequireFromString("7497")), "revenue = %s", stats.Revenue)
}

func TestSummarizeReturns(t *testing.T) {
	returns := []model.ReturnRequest{
		{Status: model.ReturnStatusPending},
		{Status: model.ReturnStatusApproved, Refund: &model.Refund{Amount: decimal.NewFromInt(300), Status: model.RefundStatusPending}},
		{Status: model.ReturnStatusRefunded, Refund: &model.Refund{Amount: decimal.NewFromInt(2499), Status: model.RefundStatusCompleted}},
	}

	stats := SummarizeReturns(returns)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[model.ReturnStatusRefunded])
	assert.True(t, stats.RefundedTotal.Equal(decimal.NewFromInt(2499)))
	assert.True(t, stats.PendingRefundTotal.Equal(decimal.NewFromInt(300)))
}
