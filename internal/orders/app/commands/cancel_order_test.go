package commands_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dejobratic/storefront/internal/orders/app/commands"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// conflictingUnitOfWork makes every status write lose its compare-and-swap, as if another
// request changed the order after it was read.
type conflictingUnitOfWork struct {
	ports.UnitOfWork
}

func (u conflictingUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	return u.UnitOfWork.Do(ctx, func(ctx context.Context, tx ports.Tx) error {
		return fn(ctx, conflictingTx{tx})
	})
}

type conflictingTx struct {
	ports.Tx
}

func (t conflictingTx) Orders() ports.OrderRepository {
	return conflictingOrders{t.Tx.Orders()}
}

type conflictingOrders struct {
	ports.OrderRepository
}

func (conflictingOrders) TransitionStatus(context.Context, string, domain.StatusChange) error {
	return ports.ErrStatusConflict
}

func TestCancelOrder(t *testing.T) {
	ctx := context.Background()
	owner := domain.Actor{UserID: "user-1"}

	t.Run("cancels pending order and restores stock", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t, "user-1", domain.PaymentCashOnDelivery)

		cancelled, err := commands.NewCancelOrderCommandHandler(f.deps).Handle(ctx, commands.CancelOrderCommand{
			Actor:   owner,
			OrderID: order.ID,
			Reason:  "changed my mind",
		})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, cancelled.Status)
		assert.Equal(t, 5, f.stock(t, "v-1"))
		assert.Equal(t, 3, f.stock(t, "v-2"))

		stored := f.order(t, order.ID)
		assert.Equal(t, domain.StatusCancelled, stored.Status)
		require.NotNil(t, stored.Reason)
		assert.Equal(t, "changed my mind", *stored.Reason)

		changes := f.bus.statusChanges()
		require.Len(t, changes, 1)
		assert.Equal(t, domain.StatusPendingPayment, changes[0].From)
		assert.Equal(t, domain.StatusCancelled, changes[0].To)
	})

	t.Run("cancels open payment link", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t, "user-1", domain.PaymentOnline)

		_, err := commands.NewCancelOrderCommandHandler(f.deps).Handle(ctx, commands.CancelOrderCommand{
			Actor:   owner,
			OrderID: order.ID,
		})

		require.NoError(t, err)
		payment, ok := f.gateway.Payment(order.Code)
		require.True(t, ok)
		assert.Equal(t, domain.PaymentStateCancelled, payment.State)
	})

	t.Run("rolls back when payment link cannot be cancelled", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t, "user-1", domain.PaymentOnline)
		f.gateway.FailCancel(errors.New("gateway down"))

		_, err := commands.NewCancelOrderCommandHandler(f.deps).Handle(ctx, commands.CancelOrderCommand{
			Actor:   owner,
			OrderID: order.ID,
		})

		assert.ErrorIs(t, err, domain.ErrPaymentCancellationFailed)
		assert.Equal(t, domain.StatusPendingPayment, f.order(t, order.ID).Status)
		assert.Equal(t, 3, f.stock(t, "v-1"))
	})

	t.Run("hides orders of other users", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t, "user-1", domain.PaymentCashOnDelivery)

		_, err := commands.NewCancelOrderCommandHandler(f.deps).Handle(ctx, commands.CancelOrderCommand{
			Actor:   domain.Actor{UserID: "user-2"},
			OrderID: order.ID,
		})

		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
		assert.Equal(t, domain.StatusPendingPayment, f.order(t, order.ID).Status)
	})

	t.Run("admin may cancel any order", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t, "user-1", domain.PaymentCashOnDelivery)

		_, err := commands.NewCancelOrderCommandHandler(f.deps).Handle(ctx, commands.CancelOrderCommand{
			Actor:   domain.Actor{UserID: "admin-1", Admin: true},
			OrderID: order.ID,
			Reason:  "fraud check",
		})

		assert.NoError(t, err)
	})

	t.Run("rejects orders past fulfilment start", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t, "user-1", domain.PaymentCashOnDelivery)
		f.setStatus(t, order.ID, domain.StatusPaymentConfirmed, domain.StatusOrderConfirmed, domain.StatusProcessing)

		_, err := commands.NewCancelOrderCommandHandler(f.deps).Handle(ctx, commands.CancelOrderCommand{
			Actor:   owner,
			OrderID: order.ID,
		})

		assert.ErrorIs(t, err, domain.ErrOrderNotCancellable)
		assert.Equal(t, domain.StatusProcessing, f.order(t, order.ID).Status)
		assert.Equal(t, 3, f.stock(t, "v-1"))
	})

	t.Run("losing a concurrent update is not cancellable", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t, "user-1", domain.PaymentCashOnDelivery)

		deps := f.deps
		deps.UnitOfWork = conflictingUnitOfWork{f.store}

		_, err := commands.NewCancelOrderCommandHandler(deps).Handle(ctx, commands.CancelOrderCommand{
			Actor:   owner,
			OrderID: order.ID,
		})

		assert.ErrorIs(t, err, domain.ErrOrderNotCancellable)
		assert.NotErrorIs(t, err, domain.ErrInvalidStatusTransition)
		assert.Equal(t, domain.StatusPendingPayment, f.order(t, order.ID).Status)
		assert.Equal(t, 3, f.stock(t, "v-1"))
		assert.Empty(t, f.bus.statusChanges())
	})

	t.Run("returns not found for unknown order", func(t *testing.T) {
		f := newFixture(t)

		_, err := commands.NewCancelOrderCommandHandler(f.deps).Handle(ctx, commands.CancelOrderCommand{
			Actor:   owner,
			OrderID: "missing",
		})

		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})
}
