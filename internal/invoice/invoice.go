// Package invoice формирует счёт по заказу: позиции, итоги и суммы в формате локали.
package invoice

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/mmeshcher/orderdesk/internal/model"
)

// ErrInvalidLocale возвращается, если локаль или валюта заказа не распознаны.
var ErrInvalidLocale = errors.New("invalid locale")

// Line описывает строку счёта.
type Line struct {
	ProductRef string
	Name       string
	Quantity   int
	UnitPrice  string
	Subtotal   string
}

// Document содержит данные счёта, готовые к выводу.
type Document struct {
	Number        string
	OrderID       string
	IssuedAt      time.Time
	Status        model.OrderStatus
	CustomerName  string
	CustomerEmail string
	PaymentMethod string
	Currency      string
	Lines         []Line
	Total         string
	Carrier       string
	Tracking      string
	Locale        language.Tag
}

// ParseLocale разбирает тег локали. Пустая строка даёт fallback.
func ParseLocale(raw string, fallback language.Tag) (language.Tag, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return language.Und, fmt.Errorf("%w: %q: %v", ErrInvalidLocale, raw, err)
	}
	return tag, nil
}

// Build формирует счёт по заказу. Суммы форматируются по правилам локали.
func Build(order model.Order, locale language.Tag) (Document, error) {
	unit, err := currency.ParseISO(order.Currency)
	if err != nil {
		return Document{}, fmt.Errorf("%w: currency %q: %v", ErrInvalidLocale, order.Currency, err)
	}

	p := message.NewPrinter(locale)
	format := func(d decimal.Decimal) string {
		return formatMoney(p, unit, d)
	}

	doc := Document{
		Number:        order.TrackingID,
		OrderID:       order.ID,
		IssuedAt:      order.CreatedAt,
		Status:        order.Status,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		PaymentMethod: order.PaymentMethod,
		Currency:      unit.String(),
		Lines:         make([]Line, 0, len(order.Items)),
		Total:         format(order.Total),
		Locale:        locale,
	}
	if order.Shipment != nil {
		doc.Carrier = order.Shipment.Carrier
		doc.Tracking = order.Shipment.TrackingNumber
	}

	for _, it := range order.Items {
		doc.Lines = append(doc.Lines, Line{
			ProductRef: it.ProductRef,
			Name:       it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  format(it.UnitPrice),
			Subtotal:   format(it.Subtotal()),
		})
	}

	return doc, nil
}

// formatMoney форматирует сумму без перехода через float64: целая часть
// передаётся форматтеру как int64, дробная добавляется с разделителем локали.
func formatMoney(p *message.Printer, unit currency.Unit, d decimal.Decimal) string {
	abs := d.Abs().Round(model.MoneyScale)
	whole := abs.Truncate(0)

	text := p.Sprintf("%v", number.Decimal(whole.IntPart()))

	// Дробь меньше единицы с двумя знаками представима в float64 точно до
	// округления форматтером. Из "0.45" берётся разделитель и цифры.
	frac := p.Sprintf("%v", number.Decimal(abs.Sub(whole).InexactFloat64(), number.Scale(model.MoneyScale)))
	_, size := utf8.DecodeRuneInString(frac)
	text += frac[size:]

	if d.Round(model.MoneyScale).IsNegative() {
		text = "-" + text
	}
	return p.Sprintf("%v %v", currency.Symbol(unit), text)
}

// Markdown возвращает текст счёта в разметке Markdown.
func (d Document) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Invoice %s\n\n", escape(d.Number))
	fmt.Fprintf(&b, "- **Order:** %s\n", escape(d.OrderID))
	fmt.Fprintf(&b, "- **Date:** %s\n", d.IssuedAt.UTC().Format("2006-01-02"))
	fmt.Fprintf(&b, "- **Status:** %s\n", d.Status)
	if d.CustomerName != "" || d.CustomerEmail != "" {
		fmt.Fprintf(&b, "- **Customer:** %s %s\n", escape(d.CustomerName), escape(angle(d.CustomerEmail)))
	}
	if d.PaymentMethod != "" {
		fmt.Fprintf(&b, "- **Payment:** %s\n", escape(d.PaymentMethod))
	}
	if d.Tracking != "" {
		fmt.Fprintf(&b, "- **Shipment:** %s %s\n", escape(d.Carrier), escape(d.Tracking))
	}

	b.WriteString("\n| Item | Qty | Unit price | Subtotal |\n")
	b.WriteString("|---|---:|---:|---:|\n")
	for _, l := range d.Lines {
		name := l.Name
		if name == "" {
			name = l.ProductRef
		}
		fmt.Fprintf(&b, "| %s | %d | %s | %s |\n", escape(name), l.Quantity, l.UnitPrice, l.Subtotal)
	}
	fmt.Fprintf(&b, "\n**Total (%s): %s**\n", d.Currency, d.Total)

	return b.String()
}

var (
	markdown = goldmark.New(goldmark.WithExtensions(extension.Table))
	policy   = bluemonday.UGCPolicy()
)

// Render возвращает HTML счёта. Пользовательские поля экранируются, результат
// проходит через санитайзер.
func Render(d Document) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(d.Markdown()), &buf); err != nil {
		return "", fmt.Errorf("render invoice markdown: %w", err)
	}
	return policy.Sanitize(buf.String()), nil
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, `|`, `\|`, `*`, `\*`, `_`, `\_`, "`", "\\`",
	`[`, `\[`, `]`, `\]`, `<`, `&lt;`, `>`, `&gt;`, `#`, `\#`,
)

func escape(s string) string {
	return markdownEscaper.Replace(s)
}

func angle(email string) string {
	if email == "" {
		return ""
	}
	return "<" + email + ">"
}
