package commands

import (
	"log/slog"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/shopspring/decimal"
)

const defaultPaymentTimeout = 10 * time.Second

// Dependencies are the collaborators shared by the order command handlers.
type Dependencies struct {
	UnitOfWork     ports.UnitOfWork
	Orders         ports.OrderRepository
	Carts          ports.CartRepository
	Gateway        ports.PaymentGateway
	Events         ports.EventBus
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	PaymentTimeout time.Duration
	ShippingRates  map[domain.ShippingMethod]decimal.Decimal
	Now            func() time.Time
	NewOrderCode   func(time.Time) (int64, error)
}

func (d Dependencies) withDefaults() Dependencies {
	if d.PaymentTimeout <= 0 {
		d.PaymentTimeout = defaultPaymentTimeout
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewOrderCode == nil {
		d.NewOrderCode = domain.NewOrderCode
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}
