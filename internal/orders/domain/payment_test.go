package domain_test

import (
	"testing"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPaymentCallbackTargetStatus(t *testing.T) {
	tests := []struct {
		name     string
		callback domain.PaymentCallback
		want     domain.OrderStatus
		ok       bool
	}{
		{"paid", domain.PaymentCallback{Code: "00", Status: "PAID"}, domain.StatusPaymentConfirmed, true},
		{"paid lower case", domain.PaymentCallback{Code: "00", Status: "paid"}, domain.StatusPaymentConfirmed, true},
		{"cancel flag wins", domain.PaymentCallback{Code: "00", Status: "PAID", Cancel: true}, domain.StatusPaymentFailed, true},
		{"cancelled", domain.PaymentCallback{Code: "00", Status: "CANCELLED"}, domain.StatusPaymentFailed, true},
		{"expired", domain.PaymentCallback{Code: "00", Status: "EXPIRED"}, domain.StatusPaymentFailed, true},
		{"failed", domain.PaymentCallback{Code: "00", Status: "FAILED"}, domain.StatusPaymentFailed, true},
		{"error code", domain.PaymentCallback{Code: "01", Status: "PAID"}, domain.StatusPaymentFailed, true},
		{"pending", domain.PaymentCallback{Code: "00", Status: "PENDING"}, "", false},
		{"processing", domain.PaymentCallback{Code: "00", Status: "PROCESSING"}, "", false},
		{"empty", domain.PaymentCallback{}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.callback.TargetStatus()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPaymentStatusCovers(t *testing.T) {
	total := decimal.RequireFromString("25.00")

	assert.True(t, domain.PaymentStatus{State: domain.PaymentStatePaid, AmountPaid: total}.Covers(total))
	assert.True(t, domain.PaymentStatus{State: domain.PaymentStatePaid, AmountPaid: decimal.NewFromInt(30)}.Covers(total))
	assert.False(t, domain.PaymentStatus{State: domain.PaymentStatePaid, AmountPaid: decimal.NewFromInt(10)}.Covers(total))
	assert.False(t, domain.PaymentStatus{State: domain.PaymentStatePending, AmountPaid: total}.Covers(total))
}

func TestPaymentStatusClosed(t *testing.T) {
	for state, want := range map[domain.PaymentState]bool{
		domain.PaymentStatePending:    false,
		domain.PaymentStateProcessing: false,
		domain.PaymentStatePaid:       false,
		domain.PaymentStateCancelled:  true,
		domain.PaymentStateExpired:    true,
		domain.PaymentStateFailed:     true,
	} {
		assert.Equal(t, want, domain.PaymentStatus{State: state}.Closed(), string(state))
	}
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, "payment cancelled by customer", domain.PaymentCallback{Cancel: true}.FailureReason())
	assert.Equal(t, "payment expired", domain.PaymentCallback{Status: "EXPIRED"}.FailureReason())
	assert.Equal(t, "payment failed with code 07", domain.PaymentCallback{Code: "07"}.FailureReason())
}
