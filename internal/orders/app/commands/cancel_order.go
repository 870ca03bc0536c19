package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

type CancelOrderCommand struct {
	Actor   domain.Actor
	OrderID string
	Reason  string
}

func (c CancelOrderCommand) Validate() error {
	if strings.TrimSpace(c.OrderID) == "" {
		return fmt.Errorf("%w: order_id is required", domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(c.Actor.UserID) == "" {
		return fmt.Errorf("%w: caller is required", domain.ErrInvalidRequest)
	}
	return nil
}

type CancelOrderCommandHandler struct {
	deps     Dependencies
	notifier notifier
}

func NewCancelOrderCommandHandler(deps Dependencies) *CancelOrderCommandHandler {
	deps = deps.withDefaults()
	return &CancelOrderCommandHandler{deps: deps, notifier: newNotifier(deps)}
}

func (h *CancelOrderCommandHandler) Handle(ctx context.Context, cmd CancelOrderCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var (
		cancelled domain.Order
		change    domain.StatusChange
	)

	err := h.deps.UnitOfWork.Do(ctx, func(ctx context.Context, tx ports.Tx) error {
		order, err := loadOrder(ctx, tx.Orders(), cmd.OrderID)
		if err != nil {
			return err
		}
		if !cmd.Actor.CanAccess(*order) {
			return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, cmd.OrderID)
		}
		if !order.Status.IsCancellable() {
			return fmt.Errorf("%w: order %s is %s", domain.ErrOrderNotCancellable, order.ID, order.Status)
		}

		before := *order
		change, err = order.TransitionTo(domain.StatusCancelled, cmd.Reason, h.deps.Now())
		if err != nil {
			return err
		}
		if err := writeTransition(ctx, tx, *order, change); err != nil {
			if errors.Is(err, domain.ErrInvalidStatusTransition) {
				return fmt.Errorf("%w: order %s changed concurrently", domain.ErrOrderNotCancellable, order.ID)
			}
			return err
		}
		if err := cancelOpenPayment(ctx, h.deps, before, cmd.Reason); err != nil {
			return err
		}

		cancelled = *order
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.notifier.statusChanged(ctx, cancelled, change)
	return &cancelled, nil
}
