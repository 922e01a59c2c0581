package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mmeshcher/orderdesk/internal/lifecycle"
)

// Locker захватывает ключ на время ttl. Acquire возвращает false, если ключ уже занят.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisLocker реализует Locker на SETNX.
type RedisLocker struct {
	client *redis.Client
}

// NewRedisLocker создаёт Locker для Redis по адресу addr.
func NewRedisLocker(addr string) *RedisLocker {
	return &RedisLocker{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// Ping проверяет доступность Redis.
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Acquire захватывает ключ.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

// Release освобождает ключ.
func (l *RedisLocker) Release(ctx context.Context, key string) error {
	return l.client.Del(ctx, key).Err()
}

// Close закрывает соединение с Redis.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

// DedupDispatcher гарантирует, что уведомление одного вида отправляется по
// сущности не более одного раза.
type DedupDispatcher struct {
	next   Dispatcher
	locker Locker
	ttl    time.Duration
	logger *zap.Logger
}

// NewDedupDispatcher оборачивает next проверкой на повтор.
func NewDedupDispatcher(next Dispatcher, locker Locker, ttl time.Duration, logger *zap.Logger) *DedupDispatcher {
	return &DedupDispatcher{next: next, locker: locker, ttl: ttl, logger: logger}
}

// Dispatch передаёт уведомление дальше, если оно ещё не отправлялось. При
// недоступности хранилища ключей уведомление отправляется без проверки.
// При ошибке доставки ключ освобождается.
func (d *DedupDispatcher) Dispatch(ctx context.Context, n lifecycle.Notification) error {
	key := dedupKey(n)

	acquired, err := d.locker.Acquire(ctx, key, d.ttl)
	if err != nil {
		d.logger.Warn("notification dedup unavailable", zap.String("key", key), zap.Error(err))
		return d.next.Dispatch(ctx, n)
	}
	if !acquired {
		d.logger.Debug("duplicate notification skipped", zap.String("key", key))
		return nil
	}

	if err := d.next.Dispatch(ctx, n); err != nil {
		if releaseErr := d.locker.Release(ctx, key); releaseErr != nil {
			d.logger.Warn("failed to release notification key", zap.String("key", key), zap.Error(releaseErr))
		}
		return err
	}
	return nil
}

func dedupKey(n lifecycle.Notification) string {
	return fmt.Sprintf("orderdesk:notify:%s:%s", n.EntityID(), n.Kind)
}
