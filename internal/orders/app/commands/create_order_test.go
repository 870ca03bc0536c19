package commands_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dejobratic/storefront/internal/orders/app/commands"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// codeSequence hands out the given order codes in turn.
func codeSequence(codes ...int64) func(time.Time) (int64, error) {
	return func(time.Time) (int64, error) {
		code := codes[0]
		if len(codes) > 1 {
			codes = codes[1:]
		}
		return code, nil
	}
}

// takenCodeUnitOfWork fails the first inserts with a code collision, as if a concurrent
// checkout claimed the code between the lookup and the write.
type takenCodeUnitOfWork struct {
	ports.UnitOfWork
	collisions int
}

func (u *takenCodeUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	return u.UnitOfWork.Do(ctx, func(ctx context.Context, tx ports.Tx) error {
		return fn(ctx, takenCodeTx{Tx: tx, uow: u})
	})
}

type takenCodeTx struct {
	ports.Tx
	uow *takenCodeUnitOfWork
}

func (t takenCodeTx) Orders() ports.OrderRepository {
	return takenCodeOrders{OrderRepository: t.Tx.Orders(), uow: t.uow}
}

type takenCodeOrders struct {
	ports.OrderRepository
	uow *takenCodeUnitOfWork
}

func (o takenCodeOrders) Create(ctx context.Context, order domain.Order) error {
	if o.uow.collisions > 0 {
		o.uow.collisions--
		return ports.ErrOrderCodeTaken
	}
	return o.OrderRepository.Create(ctx, order)
}

func TestCreateOrderCodeCollision(t *testing.T) {
	ctx := context.Background()
	checkout := commands.CreateOrderCommand{
		UserID:            "user-2",
		ShippingAddressID: "addr-1",
		PaymentMethod:     domain.PaymentOnline,
	}

	t.Run("skips a code another order holds", func(t *testing.T) {
		f := newFixture(t)
		first := f.placeOrder(t, "user-1", domain.PaymentOnline)
		f.addToCart(t, "user-2", "v-1", 1)

		deps := f.deps
		deps.NewOrderCode = codeSequence(first.Code, 4242)

		order, err := commands.NewCreateOrderCommandHandler(deps).Handle(ctx, checkout)

		require.NoError(t, err)
		assert.Equal(t, int64(4242), order.Code)
		payment, ok := f.gateway.Payment(first.Code)
		require.True(t, ok)
		assert.Equal(t, domain.PaymentStatePending, payment.State)
	})

	t.Run("reruns checkout when insert hits a taken code", func(t *testing.T) {
		f := newFixture(t)
		f.addToCart(t, "user-2", "v-1", 1)

		deps := f.deps
		deps.UnitOfWork = &takenCodeUnitOfWork{UnitOfWork: f.store, collisions: 1}
		deps.NewOrderCode = codeSequence(100, 200)

		order, err := commands.NewCreateOrderCommandHandler(deps).Handle(ctx, checkout)

		require.NoError(t, err)
		assert.Equal(t, int64(200), order.Code)
		assert.Equal(t, 4, f.stock(t, "v-1"))

		orders, err := f.store.List(ctx, ports.ListFilter{})
		require.NoError(t, err)
		assert.Len(t, orders, 1)
	})

	t.Run("gives up after repeated collisions", func(t *testing.T) {
		f := newFixture(t)
		f.addToCart(t, "user-2", "v-1", 1)

		deps := f.deps
		deps.UnitOfWork = &takenCodeUnitOfWork{UnitOfWork: f.store, collisions: 10}

		_, err := commands.NewCreateOrderCommandHandler(deps).Handle(ctx, checkout)

		assert.ErrorIs(t, err, ports.ErrOrderCodeTaken)
		assert.Equal(t, 5, f.stock(t, "v-1"))
	})
}

func TestCreateOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("creates pending order from cart snapshot", func(t *testing.T) {
		f := newFixture(t)

		order := f.placeOrder(t, "user-1", domain.PaymentCashOnDelivery)

		assert.Equal(t, domain.StatusPendingPayment, order.Status)
		assert.Equal(t, "user-1", order.UserID)
		assert.Len(t, order.Items, 2)
		assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("25.50")), order.TotalAmount.String())
		assert.Equal(t, domain.ShippingStandard, order.ShippingMethod)
		assert.Nil(t, order.PaymentLink)
		assert.NotZero(t, order.Code)

		assert.Equal(t, 3, f.stock(t, "v-1"))
		assert.Equal(t, 2, f.stock(t, "v-2"))

		cart, err := f.store.GetCart(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, cart.IsEmpty())

		require.Len(t, f.bus.created, 1)
		assert.Equal(t, order.ID, f.bus.created[0].OrderID)
	})

	t.Run("keeps item prices after catalog change", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t, "user-1", domain.PaymentCashOnDelivery)

		require.NoError(t, f.store.SetPrice("v-1", decimal.RequireFromString("99.00")))

		stored := f.order(t, order.ID)
		assert.True(t, stored.Items[0].UnitPrice.Equal(decimal.RequireFromString("10.00")))
		assert.True(t, stored.TotalAmount.Equal(order.TotalAmount))
	})

	t.Run("uses express shipping rate", func(t *testing.T) {
		f := newFixture(t)
		f.addToCart(t, "user-1", "v-2", 2)

		order, err := commands.NewCreateOrderCommandHandler(f.deps).Handle(ctx, commands.CreateOrderCommand{
			UserID:            "user-1",
			ShippingAddressID: "addr-1",
			PaymentMethod:     domain.PaymentCashOnDelivery,
			ShippingMethod:    domain.ShippingExpress,
		})

		require.NoError(t, err)
		assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("13.00")), order.TotalAmount.String())
	})

	t.Run("fails on empty cart without side effects", func(t *testing.T) {
		f := newFixture(t)

		_, err := commands.NewCreateOrderCommandHandler(f.deps).Handle(ctx, commands.CreateOrderCommand{
			UserID:            "user-1",
			ShippingAddressID: "addr-1",
			PaymentMethod:     domain.PaymentCashOnDelivery,
		})

		assert.ErrorIs(t, err, domain.ErrCartEmpty)
		assert.Equal(t, 5, f.stock(t, "v-1"))
		assert.Empty(t, f.bus.created)
	})

	t.Run("rolls back every line on insufficient stock", func(t *testing.T) {
		f := newFixture(t)
		f.addToCart(t, "user-1", "v-1", 2)
		f.addToCart(t, "user-1", "v-2", 4)

		_, err := commands.NewCreateOrderCommandHandler(f.deps).Handle(ctx, commands.CreateOrderCommand{
			UserID:            "user-1",
			ShippingAddressID: "addr-1",
			PaymentMethod:     domain.PaymentCashOnDelivery,
		})

		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
		assert.Equal(t, 5, f.stock(t, "v-1"))
		assert.Equal(t, 3, f.stock(t, "v-2"))

		cart, err := f.store.GetCart(ctx, "user-1")
		require.NoError(t, err)
		assert.Len(t, cart.Lines, 2)

		orders, err := f.store.List(ctx, ports.ListFilter{})
		require.NoError(t, err)
		assert.Empty(t, orders)
	})

	t.Run("stores payment link for online payment", func(t *testing.T) {
		f := newFixture(t)

		order := f.placeOrder(t, "user-1", domain.PaymentOnline)

		require.NotNil(t, order.PaymentLink)
		payment, ok := f.gateway.Payment(order.Code)
		require.True(t, ok)
		assert.Equal(t, payment.URL, *order.PaymentLink)
		assert.True(t, payment.Amount.Equal(order.TotalAmount))
		require.NotNil(t, order.PaymentTransactionID)
		assert.Equal(t, payment.TransactionID, *order.PaymentTransactionID)
	})

	t.Run("rolls back when payment link cannot be created", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.FailCreate(errors.New("gateway down"))
		f.addToCart(t, "user-1", "v-1", 1)

		_, err := commands.NewCreateOrderCommandHandler(f.deps).Handle(ctx, commands.CreateOrderCommand{
			UserID:            "user-1",
			ShippingAddressID: "addr-1",
			PaymentMethod:     domain.PaymentOnline,
		})

		assert.ErrorIs(t, err, domain.ErrPaymentCreationFailed)
		assert.Equal(t, 5, f.stock(t, "v-1"))

		cart, err := f.store.GetCart(ctx, "user-1")
		require.NoError(t, err)
		assert.Len(t, cart.Lines, 1)

		orders, err := f.store.List(ctx, ports.ListFilter{})
		require.NoError(t, err)
		assert.Empty(t, orders)
	})

	t.Run("succeeds when event publishing fails", func(t *testing.T) {
		f := newFixture(t)
		f.bus.err = errors.New("broker unavailable")

		order := f.placeOrder(t, "user-1", domain.PaymentCashOnDelivery)

		assert.NotNil(t, order)
	})

	t.Run("validates input", func(t *testing.T) {
		f := newFixture(t)
		handler := commands.NewCreateOrderCommandHandler(f.deps)

		tests := []struct {
			name string
			cmd  commands.CreateOrderCommand
		}{
			{"missing user", commands.CreateOrderCommand{ShippingAddressID: "a", PaymentMethod: domain.PaymentOnline}},
			{"missing address", commands.CreateOrderCommand{UserID: "u", PaymentMethod: domain.PaymentOnline}},
			{"unknown payment method", commands.CreateOrderCommand{UserID: "u", ShippingAddressID: "a", PaymentMethod: "card"}},
			{"unknown shipping method", commands.CreateOrderCommand{UserID: "u", ShippingAddressID: "a", PaymentMethod: domain.PaymentOnline, ShippingMethod: "drone"}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := handler.Handle(ctx, tt.cmd)
				assert.ErrorIs(t, err, domain.ErrInvalidRequest)
			})
		}
	})
}
