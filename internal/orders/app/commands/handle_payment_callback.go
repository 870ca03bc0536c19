package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

type PaymentCallbackCommand struct {
	Callback domain.PaymentCallback
}

type PaymentCallbackHandler interface {
	Handle(ctx context.Context, cmd PaymentCallbackCommand) (domain.CallbackOutcome, error)
}

// PaymentCallbackCommandHandler reconciles gateway notifications with order state.
// Delivery is at least once, so every path is safe to replay. The returned error only
// reports infrastructure failures and is never meant for the sender.
type PaymentCallbackCommandHandler struct {
	deps     Dependencies
	notifier notifier
}

func NewPaymentCallbackCommandHandler(deps Dependencies) *PaymentCallbackCommandHandler {
	deps = deps.withDefaults()
	return &PaymentCallbackCommandHandler{deps: deps, notifier: newNotifier(deps)}
}

func (h *PaymentCallbackCommandHandler) Handle(ctx context.Context, cmd PaymentCallbackCommand) (domain.CallbackOutcome, error) {
	cb := cmd.Callback
	logger := h.deps.Logger.With("order_code", cb.OrderCode, "callback_status", cb.Status, "callback_code", cb.Code)

	order, err := h.deps.Orders.GetByCode(ctx, cb.OrderCode)
	if errors.Is(err, ports.ErrNotFound) {
		logger.WarnContext(ctx, "payment callback for unknown order")
		return domain.CallbackIgnored, nil
	}
	if err != nil {
		return domain.CallbackIgnored, fmt.Errorf("load order by code %d: %w", cb.OrderCode, err)
	}

	target, ok := cb.TargetStatus()
	if !ok {
		logger.InfoContext(ctx, "payment callback carries no final outcome", "order_id", order.ID)
		return domain.CallbackIgnored, nil
	}

	if alreadyApplied(order.Status, target) {
		logger.InfoContext(ctx, "duplicate payment callback", "order_id", order.ID, "status", order.Status)
		return domain.CallbackDuplicate, nil
	}
	if order.Status != domain.StatusPendingPayment {
		logger.WarnContext(ctx, "payment callback conflicts with order status",
			"order_id", order.ID,
			"status", order.Status,
			"target", target,
		)
		return domain.CallbackRejected, nil
	}

	verified, err := h.verify(ctx, *order, target)
	if err != nil {
		logger.WarnContext(ctx, "payment status lookup failed", "error", err, "order_id", order.ID)
		return domain.CallbackUnverified, nil
	}
	if !verified {
		logger.WarnContext(ctx, "gateway does not confirm callback", "order_id", order.ID, "target", target)
		return domain.CallbackUnverified, nil
	}

	reason := ""
	if target == domain.StatusPaymentFailed {
		reason = cb.FailureReason()
	}

	change, err := order.TransitionTo(target, reason, h.deps.Now())
	if err != nil {
		logger.WarnContext(ctx, "payment callback rejected", "error", err, "order_id", order.ID)
		return domain.CallbackRejected, nil
	}
	if cb.TransactionID != "" {
		txnID := cb.TransactionID
		change.TransactionID = &txnID
		order.PaymentTransactionID = &txnID
	}

	err = h.deps.UnitOfWork.Do(ctx, func(ctx context.Context, tx ports.Tx) error {
		return writeTransition(ctx, tx, *order, change)
	})
	if errors.Is(err, domain.ErrInvalidStatusTransition) {
		return h.lostRace(ctx, logger, order.ID, target), nil
	}
	if err != nil {
		return domain.CallbackIgnored, fmt.Errorf("apply payment callback to order %s: %w", order.ID, err)
	}

	h.notifier.statusChanged(ctx, *order, change)
	return domain.CallbackApplied, nil
}

// verify asks the gateway whether it agrees with the outcome the callback claims.
func (h *PaymentCallbackCommandHandler) verify(ctx context.Context, order domain.Order, target domain.OrderStatus) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, h.deps.PaymentTimeout)
	defer cancel()

	status, err := h.deps.Gateway.GetPaymentStatus(ctx, order.Code)
	if err != nil {
		return false, err
	}
	if target == domain.StatusPaymentConfirmed {
		return status.Covers(order.TotalAmount), nil
	}
	return status.Closed(), nil
}

// lostRace classifies a callback whose write lost to a concurrent status change.
func (h *PaymentCallbackCommandHandler) lostRace(ctx context.Context, logger *slog.Logger, orderID string, target domain.OrderStatus) domain.CallbackOutcome {
	current, err := h.deps.Orders.GetByID(ctx, orderID)
	if err == nil && alreadyApplied(current.Status, target) {
		logger.InfoContext(ctx, "payment callback lost race to an identical update", "order_id", orderID)
		return domain.CallbackDuplicate
	}

	attrs := []any{"order_id", orderID, "target", target}
	if err == nil {
		attrs = append(attrs, "status", current.Status)
	}
	logger.WarnContext(ctx, "payment callback lost race to a conflicting update", attrs...)
	return domain.CallbackRejected
}

func alreadyApplied(current, target domain.OrderStatus) bool {
	if current == target {
		return true
	}
	return target == domain.StatusPaymentConfirmed && current.IsPaid()
}
