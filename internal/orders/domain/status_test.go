package domain_test

import (
	"testing"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from domain.OrderStatus
		to   domain.OrderStatus
		want bool
	}{
		{domain.StatusPendingPayment, domain.StatusPaymentConfirmed, true},
		{domain.StatusPendingPayment, domain.StatusPaymentFailed, true},
		{domain.StatusPendingPayment, domain.StatusCancelled, true},
		{domain.StatusPendingPayment, domain.StatusShipped, false},
		{domain.StatusPaymentConfirmed, domain.StatusOrderConfirmed, true},
		{domain.StatusPaymentFailed, domain.StatusCancelled, true},
		{domain.StatusPaymentFailed, domain.StatusPaymentConfirmed, false},
		{domain.StatusOnHold, domain.StatusProcessing, true},
		{domain.StatusShipped, domain.StatusDelivered, true},
		{domain.StatusShipped, domain.StatusCancelled, false},
		{domain.StatusDelivered, domain.StatusReturned, true},
		{domain.StatusPaymentReceived, domain.StatusReturned, true},
		{domain.StatusReturned, domain.StatusRefunded, true},
		{domain.StatusCompleted, domain.StatusReturned, false},
		{domain.StatusCancelled, domain.StatusPendingPayment, false},
		{domain.StatusRefunded, domain.StatusReturned, false},
		{domain.OrderStatus("unknown"), domain.StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestTerminalStatusesHaveNoOutgoingEdges(t *testing.T) {
	for status := range domain.AllowedTransitions {
		if status.IsTerminal() {
			for candidate := range domain.AllowedTransitions {
				assert.False(t, status.CanTransitionTo(candidate), "%s -> %s", status, candidate)
			}
		}
	}

	assert.True(t, domain.StatusCompleted.IsTerminal())
	assert.True(t, domain.StatusCancelled.IsTerminal())
	assert.True(t, domain.StatusRefunded.IsTerminal())
	assert.False(t, domain.StatusDelivered.IsTerminal())
	assert.False(t, domain.OrderStatus("bogus").IsTerminal())
}

func TestAdjacencyTargetsAreKnownStatuses(t *testing.T) {
	for from, targets := range domain.AllowedTransitions {
		for _, to := range targets {
			assert.True(t, to.IsValid(), "%s lists unknown target %s", from, to)
		}
	}
}

func TestIsCancellable(t *testing.T) {
	cancellable := map[domain.OrderStatus]bool{
		domain.StatusPendingPayment:   true,
		domain.StatusPaymentConfirmed: true,
		domain.StatusPaymentFailed:    true,
		domain.StatusOnHold:           true,
	}

	for status := range domain.AllowedTransitions {
		assert.Equal(t, cancellable[status], status.IsCancellable(), string(status))
		if status.IsCancellable() {
			assert.True(t, status.CanTransitionTo(domain.StatusCancelled), string(status))
		}
	}
}

func TestRequiresReason(t *testing.T) {
	assert.True(t, domain.StatusReturned.RequiresReason())
	assert.True(t, domain.StatusRefunded.RequiresReason())
	assert.True(t, domain.StatusCancelled.RequiresReason())
	assert.False(t, domain.StatusShipped.RequiresReason())
}

func TestIsPaid(t *testing.T) {
	assert.False(t, domain.StatusPendingPayment.IsPaid())
	assert.False(t, domain.StatusPaymentFailed.IsPaid())
	assert.False(t, domain.StatusCancelled.IsPaid())
	assert.True(t, domain.StatusPaymentConfirmed.IsPaid())
	assert.True(t, domain.StatusShipped.IsPaid())
}
