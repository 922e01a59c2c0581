package invoice

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/mmeshcher/orderdesk/internal/model"
)

func sampleOrder() model.Order {
	return model.Order{
		ID:         "01JKM5Z7Q8R9S0T1V2W3X4Y5Z6",
		TrackingID: "ORD-20260201-ABC123",
		Status:     model.OrderStatusShipped,
		Items: []model.OrderItem{
			{ProductRef: "sku-kurta", Name: "Cotton kurta", UnitPrice: decimal.NewFromInt(1499), Quantity: 1},
			{ProductRef: "sku-scarf", Name: "Silk scarf", UnitPrice: decimal.NewFromInt(500), Quantity: 2},
		},
		Total:         decimal.NewFromInt(2499),
		Currency:      "INR",
		PaymentMethod: "UPI",
		CustomerName:  "Asha Rao",
		CustomerEmail: "asha@example.com",
		Shipment:      &model.Shipment{TrackingNumber: "BD453957876213", Carrier: "BlueDart"},
		CreatedAt:     time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestBuild(t *testing.T) {
	doc, err := Build(sampleOrder(), language.English)
	require.NoError(t, err)

	assert.Equal(t, "ORD-20260201-ABC123", doc.Number)
	assert.Equal(t, "INR", doc.Currency)
	require.Len(t, doc.Lines, 2)
	assert.Contains(t, doc.Lines[0].UnitPrice, "1,499.00")
	assert.Contains(t, doc.Lines[1].Subtotal, "1,000.00")
	assert.Contains(t, doc.Total, "2,499.00")
	assert.Equal(t, "BlueDart", doc.Carrier)
}

func TestBuild_LargeAmountsStayExact(t *testing.T) {
	order := sampleOrder()
	order.Items = []model.OrderItem{
		{ProductRef: "sku-gold", Name: "Gold bar", UnitPrice: decimal.RequireFromString("12345678901234.57"), Quantity: 1},
	}
	order.Total = decimal.RequireFromString("12345678901234.57")

	doc, err := Build(order, language.English)
	require.NoError(t, err)
	assert.Contains(t, doc.Total, "12,345,678,901,234.57")

	order.Total = decimal.RequireFromString("0.05")
	doc, err = Build(order, language.English)
	require.NoError(t, err)
	assert.Contains(t, doc.Total, "0.05")
}

func TestBuild_LocaleSeparators(t *testing.T) {
	order := sampleOrder()
	order.Total = decimal.RequireFromString("2499.50")

	doc, err := Build(order, language.German)
	require.NoError(t, err)
	assert.Contains(t, doc.Total, "2.499,50")
}

func TestBuild_UnknownCurrency(t *testing.T) {
	order := sampleOrder()
	order.Currency = "XYZW"

	_, err := Build(order, language.English)
	require.ErrorIs(t, err, ErrInvalidLocale)
}

func TestParseLocale(t *testing.T) {
	tag, err := ParseLocale("", language.English)
	require.NoError(t, err)
	assert.Equal(t, language.English, tag)

	tag, err = ParseLocale("hi-IN", language.English)
	require.NoError(t, err)
	assert.Equal(t, "hi-IN", tag.String())

	_, err = ParseLocale("not a locale!", language.English)
	require.ErrorIs(t, err, ErrInvalidLocale)
}

func TestRender(t *testing.T) {
	doc, err := Build(sampleOrder(), language.English)
	require.NoError(t, err)

	html, err := Render(doc)
	require.NoError(t, err)

	assert.Contains(t, html, "<h1>Invoice ORD-20260201-ABC123</h1>")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "Cotton kurta")
	assert.Contains(t, html, "Silk scarf")
	assert.Contains(t, html, "2,499.00")
}

func TestRender_EscapesCustomerInput(t *testing.T) {
	order := sampleOrder()
	order.CustomerName = `<script>alert("x")</script>`
	order.Items[0].Name = `<img src=x onerror=alert(1)> | broken`

	doc, err := Build(order, language.English)
	require.NoError(t, err)

	html, err := Render(doc)
	require.NoError(t, err)

	assert.NotContains(t, html, "<script>")
	assert.NotContains(t, html, "<img")
	assert.Contains(t, html, "Silk scarf")
}
