package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/mmeshcher/orderdesk/internal/lifecycle"
)

// LogDispatcher пишет уведомления в журнал. Используется, когда адрес рассылки не задан.
type LogDispatcher struct {
	composer *Composer
	logger   *zap.Logger
}

// NewLogDispatcher создаёт диспетчер, пишущий в logger.
func NewLogDispatcher(composer *Composer, logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{composer: composer, logger: logger}
}

// Dispatch записывает уведомление в журнал.
func (d *LogDispatcher) Dispatch(_ context.Context, n lifecycle.Notification) error {
	msg, err := d.composer.Compose(n)
	if err != nil {
		return err
	}

	d.logger.Info("notification",
		zap.String("id", msg.ID),
		zap.String("kind", string(msg.Kind)),
		zap.String("to", msg.To),
		zap.String("order_id", msg.OrderID),
		zap.String("return_id", msg.ReturnID),
		zap.String("subject", msg.Subject),
	)
	return nil
}
