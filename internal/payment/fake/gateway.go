package fake

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/shopspring/decimal"
)

// ErrPaymentNotFound is returned for order codes without a link.
var ErrPaymentNotFound = errors.New("payment not found")

// Payment is the fake gateway's record of a payment link.
type Payment struct {
	OrderCode     int64
	Amount        decimal.Decimal
	URL           string
	TransactionID string
	State         domain.PaymentState
	AmountPaid    decimal.Decimal
	CancelReason  string
}

// Gateway is an in-memory payment gateway for local runs and tests.
type Gateway struct {
	mu        sync.Mutex
	payments  map[int64]*Payment
	sequence  int
	createErr error
	statusErr error
	cancelErr error
}

func New() *Gateway {
	return &Gateway{payments: make(map[int64]*Payment)}
}

func (g *Gateway) CreatePaymentLink(_ context.Context, req ports.PaymentLinkRequest) (ports.PaymentLink, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.createErr != nil {
		return ports.PaymentLink{}, g.createErr
	}

	g.sequence++
	p := &Payment{
		OrderCode:     req.OrderCode,
		Amount:        req.Amount,
		URL:           fmt.Sprintf("https://pay.example.test/checkout/%d", req.OrderCode),
		TransactionID: fmt.Sprintf("fake-%d", g.sequence),
		State:         domain.PaymentStatePending,
		AmountPaid:    decimal.Zero,
	}
	g.payments[req.OrderCode] = p

	return ports.PaymentLink{URL: p.URL, TransactionID: p.TransactionID}, nil
}

func (g *Gateway) GetPaymentStatus(_ context.Context, orderCode int64) (domain.PaymentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.statusErr != nil {
		return domain.PaymentStatus{}, g.statusErr
	}
	p, ok := g.payments[orderCode]
	if !ok {
		return domain.PaymentStatus{}, ErrPaymentNotFound
	}
	return domain.PaymentStatus{State: p.State, AmountPaid: p.AmountPaid}, nil
}

func (g *Gateway) CancelPayment(_ context.Context, orderCode int64, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancelErr != nil {
		return g.cancelErr
	}
	p, ok := g.payments[orderCode]
	if !ok {
		return ErrPaymentNotFound
	}
	p.State = domain.PaymentStateCancelled
	p.CancelReason = reason
	return nil
}

// MarkPaid records a full payment for the order's link.
func (g *Gateway) MarkPaid(orderCode int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.payments[orderCode]
	if !ok {
		return ErrPaymentNotFound
	}
	p.State = domain.PaymentStatePaid
	p.AmountPaid = p.Amount
	return nil
}

// SetStatus overrides the reported status of a link.
func (g *Gateway) SetStatus(orderCode int64, state domain.PaymentState, amountPaid decimal.Decimal) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.payments[orderCode]
	if !ok {
		return ErrPaymentNotFound
	}
	p.State = state
	p.AmountPaid = amountPaid
	return nil
}

// Payment returns a copy of the record for orderCode.
func (g *Gateway) Payment(orderCode int64) (Payment, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.payments[orderCode]
	if !ok {
		return Payment{}, false
	}
	return *p, true
}

// Count returns the number of links created so far.
func (g *Gateway) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.payments)
}

func (g *Gateway) FailCreate(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createErr = err
}

func (g *Gateway) FailStatus(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusErr = err
}

func (g *Gateway) FailCancel(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelErr = err
}
