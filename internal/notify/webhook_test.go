package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/orderdesk/internal/lifecycle"
	"github.com/mmeshcher/orderdesk/internal/model"
)

func shippedNotification() lifecycle.Notification {
	eta := time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC)
	return lifecycle.Notification{
		Kind:          lifecycle.KindOrderShipped,
		Recipient:     "asha@example.com",
		RecipientName: "Asha",
		Order: model.Order{
			ID:         "01JKORDER",
			TrackingID: "ORD-20260201-ABC123",
			Status:     model.OrderStatusShipped,
			Currency:   "INR",
			Total:      decimal.NewFromInt(2499),
			Shipment: &model.Shipment{
				TrackingNumber:    "BD453957876213",
				Carrier:           "BlueDart",
				EstimatedDelivery: &eta,
			},
		},
	}
}

func newTestComposer(t *testing.T) *Composer {
	t.Helper()
	c, err := NewComposer()
	if err != nil {
		t.Fatalf("NewComposer error: %v", err)
	}
	return c
}

func TestWebhookDispatch_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("content type = %s, want application/json", ct)
		}

		var msg Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg.Kind != lifecycle.KindOrderShipped || msg.To != "asha@example.com" || msg.OrderID != "01JKORDER" {
			t.Fatalf("unexpected message: %+v", msg)
		}
		if r.Header.Get("Idempotency-Key") != msg.ID {
			t.Fatalf("idempotency key = %s, want %s", r.Header.Get("Idempotency-Key"), msg.ID)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	d := NewWebhookDispatcher(ts.URL, newTestComposer(t))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := d.Dispatch(ctx, shippedNotification()); err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
}

func TestWebhookDispatch_TooManyRequestsRetriesOnce(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	d := NewWebhookDispatcher(ts.URL, newTestComposer(t))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := d.Dispatch(ctx, shippedNotification()); err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}

func TestWebhookDispatch_TooManyRequestsTwice(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	d := NewWebhookDispatcher(ts.URL, newTestComposer(t))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := d.Dispatch(ctx, shippedNotification()); err == nil {
		t.Fatalf("expected error after repeated 429")
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
}

func TestWebhookDispatch_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	d := NewWebhookDispatcher(ts.URL, newTestComposer(t))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := d.Dispatch(ctx, shippedNotification()); err == nil {
		t.Fatalf("expected error for 500")
	}
}

func TestNewWebhookDispatcher_AddsScheme(t *testing.T) {
	d := NewWebhookDispatcher("mailer:8081/hooks/", newTestComposer(t))
	if d.url != "http://mailer:8081/hooks" {
		t.Fatalf("url = %s, want http://mailer:8081/hooks", d.url)
	}
}
