package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod tags how the customer pays for an order.
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cod"
	PaymentOnline         PaymentMethod = "online"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCashOnDelivery || m == PaymentOnline
}

// RequiresRedirect reports whether checkout needs a gateway payment link.
func (m PaymentMethod) RequiresRedirect() bool {
	return m == PaymentOnline
}

type ShippingMethod string

const (
	ShippingStandard ShippingMethod = "standard"
	ShippingExpress  ShippingMethod = "express"
)

func (m ShippingMethod) Valid() bool {
	return m == ShippingStandard || m == ShippingExpress
}

// OrderItem is an immutable snapshot of a cart line taken at checkout.
type OrderItem struct {
	VariantID string          `json:"variant_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order represents a purchase managed by the lifecycle manager.
type Order struct {
	ID                   string          `json:"id"`
	Code                 int64           `json:"order_code"`
	UserID               string          `json:"user_id"`
	Items                []OrderItem     `json:"items"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	ShippingCost         decimal.Decimal `json:"shipping_cost"`
	Status               OrderStatus     `json:"status"`
	PaymentMethod        PaymentMethod   `json:"payment_method"`
	ShippingMethod       ShippingMethod  `json:"shipping_method"`
	ShippingAddressID    string          `json:"shipping_address_id"`
	PaymentTransactionID *string         `json:"payment_transaction_id,omitempty"`
	PaymentLink          *string         `json:"payment_link,omitempty"`
	Reason               *string         `json:"reason,omitempty"`
	OrderedAt            time.Time       `json:"ordered_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// NewOrderParams carries the checkout snapshot used to build an order.
type NewOrderParams struct {
	ID                string
	Code              int64
	UserID            string
	Lines             []CartLine
	ShippingCost      decimal.Decimal
	PaymentMethod     PaymentMethod
	ShippingMethod    ShippingMethod
	ShippingAddressID string
	Now               time.Time
}

// NewOrder builds a pending order whose total is the item subtotal plus shipping.
func NewOrder(p NewOrderParams) (Order, error) {
	if len(p.Lines) == 0 {
		return Order{}, ErrCartEmpty
	}
	if strings.TrimSpace(p.UserID) == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	if p.ShippingCost.IsNegative() {
		return Order{}, fmt.Errorf("%w: shipping cost must not be negative", ErrInvalidRequest)
	}

	items := make([]OrderItem, 0, len(p.Lines))
	total := p.ShippingCost
	for _, line := range p.Lines {
		if line.Quantity <= 0 {
			return Order{}, fmt.Errorf("%w: quantity for variant %s must be positive", ErrInvalidRequest, line.VariantID)
		}
		if line.UnitPrice.IsNegative() {
			return Order{}, fmt.Errorf("%w: price for variant %s must not be negative", ErrInvalidRequest, line.VariantID)
		}
		item := OrderItem{
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		}
		items = append(items, item)
		total = total.Add(item.Subtotal())
	}

	now := p.Now.UTC()
	return Order{
		ID:                p.ID,
		Code:              p.Code,
		UserID:            p.UserID,
		Items:             items,
		TotalAmount:       total,
		ShippingCost:      p.ShippingCost,
		Status:            StatusPendingPayment,
		PaymentMethod:     p.PaymentMethod,
		ShippingMethod:    p.ShippingMethod,
		ShippingAddressID: p.ShippingAddressID,
		OrderedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// AttachPayment records the gateway link created for the order.
func (o *Order) AttachPayment(link, transactionID string) {
	o.PaymentLink = &link
	if transactionID != "" {
		o.PaymentTransactionID = &transactionID
	}
}

// HasOpenPaymentLink reports whether a gateway link may still be paid.
func (o Order) HasOpenPaymentLink() bool {
	return o.PaymentLink != nil && o.Status == StatusPendingPayment
}

func (o Order) OwnedBy(userID string) bool {
	return o.UserID == userID
}

// StatusChange describes a single applied edge of the state machine.
type StatusChange struct {
	From          OrderStatus
	To            OrderStatus
	Reason        *string
	TransactionID *string
	At            time.Time
}

// TransitionTo moves the order along an allowed edge and returns the change to persist.
// The order is left untouched when the edge is not allowed.
func (o *Order) TransitionTo(next OrderStatus, reason string, now time.Time) (StatusChange, error) {
	if !o.Status.CanTransitionTo(next) {
		return StatusChange{}, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, o.Status, next)
	}

	change := StatusChange{
		From: o.Status,
		To:   next,
		At:   now.UTC(),
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		change.Reason = &reason
		o.Reason = &reason
	}

	o.Status = next
	o.UpdatedAt = change.At
	return change, nil
}

// Actor identifies who is invoking an operation.
type Actor struct {
	UserID string
	Admin  bool
}

// CanAccess reports whether the actor may see or act on the order.
func (a Actor) CanAccess(o Order) bool {
	return a.Admin || o.OwnedBy(a.UserID)
}

const orderCodeSuffixRange = 1000

// NewOrderCode returns a numeric code shared with the payment gateway.
// Millisecond time keeps codes ordered, the random suffix separates orders placed in the
// same millisecond. The result stays below 2^53.
func NewOrderCode(now time.Time) (int64, error) {
	suffix, err := rand.Int(rand.Reader, big.NewInt(orderCodeSuffixRange))
	if err != nil {
		return 0, fmt.Errorf("generate order code: %w", err)
	}
	return now.UnixMilli()*orderCodeSuffixRange + suffix.Int64(), nil
}
