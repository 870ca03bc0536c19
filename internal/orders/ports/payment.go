package ports

import (
	"context"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/shopspring/decimal"
)

// PaymentLinkRequest describes the checkout a link is created for.
type PaymentLinkRequest struct {
	OrderCode   int64
	Amount      decimal.Decimal
	Description string
	Items       []PaymentItem
}

type PaymentItem struct {
	Name     string
	Quantity int
	Price    decimal.Decimal
}

// PaymentLink is the redirect target returned by the gateway.
type PaymentLink struct {
	URL           string
	TransactionID string
}

// PaymentGateway is the external payment provider.
type PaymentGateway interface {
	CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) (PaymentLink, error)
	GetPaymentStatus(ctx context.Context, orderCode int64) (domain.PaymentStatus, error)
	CancelPayment(ctx context.Context, orderCode int64, reason string) error
}
