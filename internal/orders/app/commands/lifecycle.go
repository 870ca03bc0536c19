package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

func loadOrder(ctx context.Context, repo ports.OrderRepository, id string) (*domain.Order, error) {
	order, err := repo.GetByID(ctx, id)
	if errors.Is(err, ports.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", id, err)
	}
	return order, nil
}

// writeTransition persists change and, when the order enters cancelled, returns its
// items to stock in the same unit of work.
func writeTransition(ctx context.Context, tx ports.Tx, order domain.Order, change domain.StatusChange) error {
	err := tx.Orders().TransitionStatus(ctx, order.ID, change)
	if errors.Is(err, ports.ErrStatusConflict) {
		return fmt.Errorf("%w: order %s is no longer %s", domain.ErrInvalidStatusTransition, order.ID, change.From)
	}
	if err != nil {
		return fmt.Errorf("update status of order %s: %w", order.ID, err)
	}

	if change.To != domain.StatusCancelled {
		return nil
	}
	for _, item := range order.Items {
		if err := tx.Stock().Increment(ctx, item.VariantID, item.Quantity); err != nil {
			return fmt.Errorf("restock variant %s: %w", item.VariantID, err)
		}
	}
	return nil
}

// cancelOpenPayment invalidates the gateway link of an order that was still awaiting payment.
func cancelOpenPayment(ctx context.Context, deps Dependencies, before domain.Order, reason string) error {
	if !before.HasOpenPaymentLink() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, deps.PaymentTimeout)
	defer cancel()

	if reason == "" {
		reason = "order cancelled"
	}
	if err := deps.Gateway.CancelPayment(ctx, before.Code, reason); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPaymentCancellationFailed, err)
	}
	return nil
}

// notifier publishes committed lifecycle changes. Publishing is best effort.
type notifier struct {
	events  ports.EventBus
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func newNotifier(deps Dependencies) notifier {
	return notifier{events: deps.Events, metrics: deps.Metrics, logger: deps.Logger}
}

func (n notifier) orderCreated(ctx context.Context, order domain.Order) {
	if err := n.events.PublishOrderCreated(ctx, domain.NewOrderCreated(order)); err != nil {
		n.logger.ErrorContext(ctx, "failed to publish order created event",
			"error", err,
			"order_id", order.ID,
		)
	}
}

func (n notifier) statusChanged(ctx context.Context, order domain.Order, change domain.StatusChange) {
	n.metrics.RecordStatusTransition(ctx, string(change.From), string(change.To))
	n.logger.InfoContext(ctx, "order status changed",
		"order_id", order.ID,
		"order_code", order.Code,
		"from", change.From,
		"to", change.To,
	)

	if err := n.events.PublishOrderStatusChanged(ctx, domain.NewOrderStatusChanged(order, change)); err != nil {
		n.logger.ErrorContext(ctx, "failed to publish order status changed event",
			"error", err,
			"order_id", order.ID,
		)
	}
}
