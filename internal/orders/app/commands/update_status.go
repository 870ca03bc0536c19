package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// UpdateStatusCommand is an administrative move along the state machine.
type UpdateStatusCommand struct {
	OrderID string
	Status  domain.OrderStatus
	Reason  string
}

func (c UpdateStatusCommand) Validate() error {
	if strings.TrimSpace(c.OrderID) == "" {
		return fmt.Errorf("%w: order_id is required", domain.ErrInvalidRequest)
	}
	if !c.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidRequest, c.Status)
	}
	return nil
}

// checkReason must only run once the edge is known to be allowed.
func (c UpdateStatusCommand) checkReason() error {
	if c.Status.RequiresReason() && strings.TrimSpace(c.Reason) == "" {
		return fmt.Errorf("%w: entering %s", domain.ErrReasonRequired, c.Status)
	}
	return nil
}

type UpdateStatusCommandHandler struct {
	deps     Dependencies
	notifier notifier
}

func NewUpdateStatusCommandHandler(deps Dependencies) *UpdateStatusCommandHandler {
	deps = deps.withDefaults()
	return &UpdateStatusCommandHandler{deps: deps, notifier: newNotifier(deps)}
}

func (h *UpdateStatusCommandHandler) Handle(ctx context.Context, cmd UpdateStatusCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var (
		updated domain.Order
		change  domain.StatusChange
	)

	err := h.deps.UnitOfWork.Do(ctx, func(ctx context.Context, tx ports.Tx) error {
		order, err := loadOrder(ctx, tx.Orders(), cmd.OrderID)
		if err != nil {
			return err
		}

		if !order.Status.CanTransitionTo(cmd.Status) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidStatusTransition, order.Status, cmd.Status)
		}
		if err := cmd.checkReason(); err != nil {
			return err
		}

		before := *order
		change, err = order.TransitionTo(cmd.Status, cmd.Reason, h.deps.Now())
		if err != nil {
			return err
		}
		if err := writeTransition(ctx, tx, *order, change); err != nil {
			return err
		}
		if change.To == domain.StatusCancelled {
			if err := cancelOpenPayment(ctx, h.deps, before, cmd.Reason); err != nil {
				return err
			}
		}

		updated = *order
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.notifier.statusChanged(ctx, updated, change)
	return &updated, nil
}
