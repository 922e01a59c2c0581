// Package notify формирует и доставляет уведомления покупателям о смене статуса
// заказа или заявки на возврат.
package notify

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/orderdesk/internal/lifecycle"
)

// Dispatcher доставляет уведомление.
type Dispatcher interface {
	Dispatch(ctx context.Context, n lifecycle.Notification) error
}

// Message описывает готовое к отправке уведомление.
type Message struct {
	ID        string                     `json:"id"`
	Kind      lifecycle.NotificationKind `json:"kind"`
	To        string                     `json:"to"`
	ToName    string                     `json:"toName,omitempty"`
	Subject   string                     `json:"subject"`
	Body      string                     `json:"body"`
	OrderID   string                     `json:"orderId"`
	ReturnID  string                     `json:"returnId,omitempty"`
	CreatedAt time.Time                  `json:"createdAt"`
}

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
}

var templateSources = map[lifecycle.NotificationKind][2]string{
	lifecycle.KindOrderShipped: {
		"Your order {{.TrackingID}} has shipped",
		"Hi {{.Name}},\n\nyour order {{.TrackingID}} is on its way" +
			"{{with .Carrier}} with {{.}}{{end}}{{with .TrackingNumber}} (tracking number {{.}}){{end}}." +
			"{{with .ETA}}\nExpected delivery: {{.}}.{{end}}\n",
	},
	lifecycle.KindOrderDelivered: {
		"Your order {{.TrackingID}} was delivered",
		"Hi {{.Name}},\n\nyour order {{.TrackingID}} has been delivered. We hope you enjoy it.\n",
	},
	lifecycle.KindOrderCancelled: {
		"Your order {{.TrackingID}} was cancelled",
		"Hi {{.Name}},\n\nyour order {{.TrackingID}} has been cancelled{{with .CancelReason}}: {{.}}{{end}}.\n",
	},
	lifecycle.KindReturnApproved: {
		"Return for order {{.TrackingID}} approved",
		"Hi {{.Name}},\n\nyour return for order {{.TrackingID}} was approved. " +
			"A refund of {{.RefundAmount}} {{.Currency}} will be issued via {{.RefundMethod}}.\n",
	},
	lifecycle.KindReturnRejected: {
		"Return for order {{.TrackingID}} rejected",
		"Hi {{.Name}},\n\nyour return for order {{.TrackingID}} was rejected: {{.RejectionReason}}.\n",
	},
	lifecycle.KindReturnRefunded: {
		"Refund for order {{.TrackingID}} completed",
		"Hi {{.Name}},\n\nwe have refunded {{.RefundAmount}} {{.Currency}} for your return on order {{.TrackingID}}.\n",
	},
}

type templateData struct {
	Name            string
	TrackingID      string
	Carrier         string
	TrackingNumber  string
	ETA             string
	CancelReason    string
	Currency        string
	RefundAmount    string
	RefundMethod    string
	RejectionReason string
}

// Composer собирает текст уведомлений по шаблонам.
type Composer struct {
	templates map[lifecycle.NotificationKind]messageTemplate
	now       func() time.Time
}

// NewComposer разбирает шаблоны уведомлений.
func NewComposer() (*Composer, error) {
	c := &Composer{
		templates: make(map[lifecycle.NotificationKind]messageTemplate, len(templateSources)),
		now:       time.Now,
	}
	for kind, src := range templateSources {
		subject, err := template.New(string(kind) + ".subject").Option("missingkey=error").Parse(src[0])
		if err != nil {
			return nil, fmt.Errorf("parse %s subject: %w", kind, err)
		}
		body, err := template.New(string(kind) + ".body").Option("missingkey=error").Parse(src[1])
		if err != nil {
			return nil, fmt.Errorf("parse %s body: %w", kind, err)
		}
		c.templates[kind] = messageTemplate{subject: subject, body: body}
	}
	return c, nil
}

// Compose формирует сообщение для уведомления.
func (c *Composer) Compose(n lifecycle.Notification) (Message, error) {
	tmpl, ok := c.templates[n.Kind]
	if !ok {
		return Message{}, fmt.Errorf("no template for notification kind %q", n.Kind)
	}

	data := newTemplateData(n)

	var subject, body strings.Builder
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", n.Kind, err)
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("render %s body: %w", n.Kind, err)
	}

	msg := Message{
		ID:        uuid.NewString(),
		Kind:      n.Kind,
		To:        n.Recipient,
		ToName:    n.RecipientName,
		Subject:   subject.String(),
		Body:      body.String(),
		OrderID:   n.Order.ID,
		CreatedAt: c.now().UTC(),
	}
	if n.Return != nil {
		msg.ReturnID = n.Return.ID
	}
	return msg, nil
}

func newTemplateData(n lifecycle.Notification) templateData {
	name := n.RecipientName
	if name == "" {
		name = "there"
	}

	data := templateData{
		Name:         name,
		TrackingID:   n.Order.TrackingID,
		CancelReason: n.Order.CancelReason,
		Currency:     n.Order.Currency,
	}
	if s := n.Order.Shipment; s != nil {
		data.Carrier = s.Carrier
		data.TrackingNumber = s.TrackingNumber
		if s.EstimatedDelivery != nil {
			data.ETA = s.EstimatedDelivery.UTC().Format("2 Jan 2006")
		}
	}
	if r := n.Return; r != nil {
		data.RejectionReason = r.RejectionReason
		if r.Refund != nil {
			data.RefundAmount = r.Refund.Amount.StringFixed(2)
			data.RefundMethod = strings.ReplaceAll(string(r.Refund.Method), "_", " ")
		}
	}
	return data
}
