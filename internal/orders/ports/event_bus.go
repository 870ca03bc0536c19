package ports

import (
	"context"

	"github.com/dejobratic/storefront/internal/orders/domain"
)

// EventBus defines the contract for publishing order lifecycle events.
type EventBus interface {
	PublishOrderCreated(ctx context.Context, event domain.OrderCreated) error
	PublishOrderStatusChanged(ctx context.Context, event domain.OrderStatusChanged) error
}
