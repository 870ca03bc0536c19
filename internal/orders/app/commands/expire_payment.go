package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

const paymentExpiredReason = "payment link expired"

type ExpirePaymentCommand struct {
	OrderID string
}

type ExpirePaymentCommandHandler struct {
	deps     Dependencies
	notifier notifier
}

func NewExpirePaymentCommandHandler(deps Dependencies) *ExpirePaymentCommandHandler {
	deps = deps.withDefaults()
	return &ExpirePaymentCommandHandler{deps: deps, notifier: newNotifier(deps)}
}

// Handle fails the payment of an order whose link timed out and invalidates the link.
func (h *ExpirePaymentCommandHandler) Handle(ctx context.Context, cmd ExpirePaymentCommand) (*domain.Order, error) {
	if strings.TrimSpace(cmd.OrderID) == "" {
		return nil, fmt.Errorf("%w: order_id is required", domain.ErrInvalidRequest)
	}

	var (
		expired domain.Order
		before  domain.Order
		change  domain.StatusChange
	)

	err := h.deps.UnitOfWork.Do(ctx, func(ctx context.Context, tx ports.Tx) error {
		order, err := loadOrder(ctx, tx.Orders(), cmd.OrderID)
		if err != nil {
			return err
		}
		if order.Status != domain.StatusPendingPayment {
			return fmt.Errorf("%w: order %s is %s", domain.ErrInvalidStatusTransition, order.ID, order.Status)
		}

		before = *order
		change, err = order.TransitionTo(domain.StatusPaymentFailed, paymentExpiredReason, h.deps.Now())
		if err != nil {
			return err
		}
		if err := writeTransition(ctx, tx, *order, change); err != nil {
			return err
		}

		expired = *order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := cancelOpenPayment(ctx, h.deps, before, paymentExpiredReason); err != nil {
		h.deps.Logger.WarnContext(ctx, "failed to cancel expired payment link",
			"error", err,
			"order_id", expired.ID,
			"order_code", expired.Code,
		)
	}

	h.notifier.statusChanged(ctx, expired, change)
	return &expired, nil
}
