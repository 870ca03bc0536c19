package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentState is the gateway's view of a payment link.
type PaymentState string

const (
	PaymentStatePending    PaymentState = "PENDING"
	PaymentStateProcessing PaymentState = "PROCESSING"
	PaymentStatePaid       PaymentState = "PAID"
	PaymentStateCancelled  PaymentState = "CANCELLED"
	PaymentStateExpired    PaymentState = "EXPIRED"
	PaymentStateFailed     PaymentState = "FAILED"
)

const gatewaySuccessCode = "00"

// PaymentStatus is the authoritative status reported by the gateway.
type PaymentStatus struct {
	State      PaymentState
	AmountPaid decimal.Decimal
}

// Covers reports whether the gateway confirms a full payment of amount.
func (s PaymentStatus) Covers(amount decimal.Decimal) bool {
	return s.State == PaymentStatePaid && s.AmountPaid.GreaterThanOrEqual(amount)
}

// Closed reports whether the gateway considers the payment link dead without a payment.
func (s PaymentStatus) Closed() bool {
	switch s.State {
	case PaymentStateCancelled, PaymentStateExpired, PaymentStateFailed:
		return true
	default:
		return false
	}
}

// PaymentCallback is an asynchronous notification from the gateway.
type PaymentCallback struct {
	Code          string
	TransactionID string
	Cancel        bool
	Status        string
	OrderCode     int64
}

// TargetStatus maps the callback to the order status it asks for. The second result is
// false when the callback carries no actionable outcome.
func (c PaymentCallback) TargetStatus() (OrderStatus, bool) {
	state := PaymentState(strings.ToUpper(strings.TrimSpace(c.Status)))

	switch {
	case c.Cancel:
		return StatusPaymentFailed, true
	case state == PaymentStateCancelled, state == PaymentStateFailed, state == PaymentStateExpired:
		return StatusPaymentFailed, true
	case c.Code != "" && c.Code != gatewaySuccessCode:
		return StatusPaymentFailed, true
	case c.Code == gatewaySuccessCode && state == PaymentStatePaid:
		return StatusPaymentConfirmed, true
	default:
		return "", false
	}
}

// FailureReason describes why the callback failed the payment.
func (c PaymentCallback) FailureReason() string {
	if c.Cancel {
		return "payment cancelled by customer"
	}
	if c.Status != "" {
		return fmt.Sprintf("payment %s", strings.ToLower(c.Status))
	}
	return fmt.Sprintf("payment failed with code %s", c.Code)
}

// CallbackOutcome classifies how a payment callback was handled.
type CallbackOutcome string

const (
	CallbackApplied    CallbackOutcome = "applied"
	CallbackDuplicate  CallbackOutcome = "duplicate"
	CallbackIgnored    CallbackOutcome = "ignored"
	CallbackUnverified CallbackOutcome = "unverified"
	CallbackRejected   CallbackOutcome = "rejected"
)
