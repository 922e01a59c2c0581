package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mmeshcher/orderdesk/internal/lifecycle"
)

const maxRetryAfter = 10 * time.Second

// WebhookDispatcher отправляет уведомления POST-запросом на внешний адрес,
// например в сервис почтовой рассылки.
type WebhookDispatcher struct {
	url        string
	composer   *Composer
	httpClient *http.Client
}

// NewWebhookDispatcher создаёт диспетчер для указанного адреса.
func NewWebhookDispatcher(url string, composer *Composer) *WebhookDispatcher {
	url = strings.TrimRight(url, "/")
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	return &WebhookDispatcher{
		url:      url,
		composer: composer,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Dispatch отправляет уведомление. При ответе 429 выполняется одна повторная
// попытка после паузы из заголовка Retry-After.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, n lifecycle.Notification) error {
	msg, err := d.composer.Compose(n)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	statusCode, retryAfter, err := d.post(ctx, msg.ID, payload)
	if err != nil {
		return err
	}

	if statusCode == http.StatusTooManyRequests {
		if retryAfter > 0 {
			timer := time.NewTimer(retryAfter)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		statusCode, _, err = d.post(ctx, msg.ID, payload)
		if err != nil {
			return err
		}
	}

	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("unexpected status: %d", statusCode)
	}
	return nil
}

func (d *WebhookDispatcher) post(ctx context.Context, id string, payload []byte) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
	if err != nil {
		return 0, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", id)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	var retryAfter time.Duration
	if resp.StatusCode == http.StatusTooManyRequests {
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = min(time.Duration(seconds)*time.Second, maxRetryAfter)
			}
		}
	}

	return resp.StatusCode, retryAfter, nil
}
