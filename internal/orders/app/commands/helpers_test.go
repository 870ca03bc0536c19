package commands_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/dejobratic/storefront/internal/orders/adapters/memory"
	"github.com/dejobratic/storefront/internal/orders/app/commands"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/payment/fake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

type recordingBus struct {
	mu      sync.Mutex
	created []domain.OrderCreated
	changed []domain.OrderStatusChanged
	err     error
}

func (b *recordingBus) PublishOrderCreated(_ context.Context, event domain.OrderCreated) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created = append(b.created, event)
	return b.err
}

func (b *recordingBus) PublishOrderStatusChanged(_ context.Context, event domain.OrderStatusChanged) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.changed = append(b.changed, event)
	return b.err
}

func (b *recordingBus) statusChanges() []domain.OrderStatusChanged {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.OrderStatusChanged(nil), b.changed...)
}

type fixture struct {
	store   *memory.Store
	gateway *fake.Gateway
	bus     *recordingBus
	deps    commands.Dependencies
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	store.PutVariant(domain.Variant{ID: "v-1", SKU: "TEE-S", Price: decimal.RequireFromString("10.00"), Stock: 5})
	store.PutVariant(domain.Variant{ID: "v-2", SKU: "MUG", Price: decimal.RequireFromString("2.50"), Stock: 3})

	m, err := metrics.NewMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	gateway := fake.New()
	bus := &recordingBus{}

	return &fixture{
		store:   store,
		gateway: gateway,
		bus:     bus,
		deps: commands.Dependencies{
			UnitOfWork: store,
			Orders:     store,
			Carts:      store,
			Gateway:    gateway,
			Events:     bus,
			Metrics:    m,
			Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
			ShippingRates: map[domain.ShippingMethod]decimal.Decimal{
				domain.ShippingStandard: decimal.RequireFromString("3.00"),
				domain.ShippingExpress:  decimal.RequireFromString("8.00"),
			},
		},
	}
}

func (f *fixture) addToCart(t *testing.T, userID, variantID string, qty int) {
	t.Helper()
	require.NoError(t, f.store.SetItem(context.Background(), userID, variantID, qty))
}

func (f *fixture) stock(t *testing.T, variantID string) int {
	t.Helper()
	variant, ok := f.store.Variant(variantID)
	require.True(t, ok)
	return variant.Stock
}

func (f *fixture) placeOrder(t *testing.T, userID string, method domain.PaymentMethod) *domain.Order {
	t.Helper()
	f.addToCart(t, userID, "v-1", 2)
	f.addToCart(t, userID, "v-2", 1)

	order, err := commands.NewCreateOrderCommandHandler(f.deps).Handle(context.Background(), commands.CreateOrderCommand{
		UserID:            userID,
		ShippingAddressID: "addr-1",
		PaymentMethod:     method,
	})
	require.NoError(t, err)
	return order
}

func (f *fixture) order(t *testing.T, id string) *domain.Order {
	t.Helper()
	order, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return order
}

func (f *fixture) setStatus(t *testing.T, id string, path ...domain.OrderStatus) {
	t.Helper()
	handler := commands.NewUpdateStatusCommandHandler(f.deps)
	for _, status := range path {
		_, err := handler.Handle(context.Background(), commands.UpdateStatusCommand{OrderID: id, Status: status, Reason: "test"})
		require.NoError(t, err, "moving to %s", status)
	}
}
