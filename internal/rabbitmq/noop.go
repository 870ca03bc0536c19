package rabbitmq

import (
	"context"
	"log/slog"

	"github.com/dejobratic/storefront/internal/orders/domain"
)

// NoopEventBus logs events without sending them to a broker. Used when no broker URL is configured.
type NoopEventBus struct {
	logger *slog.Logger
}

func NewNoopEventBus(logger *slog.Logger) *NoopEventBus {
	return &NoopEventBus{logger: logger}
}

func (n *NoopEventBus) PublishOrderCreated(ctx context.Context, event domain.OrderCreated) error {
	n.logger.DebugContext(ctx, "event::order_created", "order_id", event.OrderID, "order_code", event.OrderCode)
	return nil
}

func (n *NoopEventBus) PublishOrderStatusChanged(ctx context.Context, event domain.OrderStatusChanged) error {
	n.logger.DebugContext(ctx, "event::order_status_changed",
		"order_id", event.OrderID,
		"from", event.From,
		"to", event.To,
	)
	return nil
}
