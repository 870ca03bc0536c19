package steps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/cucumber/godog"
	idemmemory "github.com/dejobratic/storefront/internal/idempotency/memory"
	"github.com/dejobratic/storefront/internal/orders/adapters/memory"
	"github.com/dejobratic/storefront/internal/orders/app"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/payment/fake"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric/noop"
)

var admin = domain.Actor{UserID: "admin-1", Admin: true}

type eventLog struct {
	mu      sync.Mutex
	created []domain.OrderCreated
	changed []domain.OrderStatusChanged
}

func (l *eventLog) PublishOrderCreated(_ context.Context, event domain.OrderCreated) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.created = append(l.created, event)
	return nil
}

func (l *eventLog) PublishOrderStatusChanged(_ context.Context, event domain.OrderStatusChanged) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changed = append(l.changed, event)
	return nil
}

type orderLifecycle struct {
	store   *memory.Store
	gateway *fake.Gateway
	events  *eventLog
	service *app.Service

	order   *domain.Order
	outcome domain.CallbackOutcome
	lastErr error
}

func (f *orderLifecycle) reset(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
	m, err := metrics.NewMetrics(noop.NewMeterProvider().Meter("features"))
	if err != nil {
		return ctx, err
	}

	f.store = memory.NewStore()
	f.gateway = fake.New()
	f.events = &eventLog{}
	f.service = app.NewService(app.Dependencies{
		UnitOfWork:  f.store,
		Orders:      f.store,
		Carts:       f.store,
		Gateway:     f.gateway,
		Events:      f.events,
		Idempotency: idemmemory.NewStore(time.Hour),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:     m,
		ShippingRates: map[domain.ShippingMethod]decimal.Decimal{
			domain.ShippingStandard: decimal.RequireFromString("3.00"),
			domain.ShippingExpress:  decimal.RequireFromString("8.00"),
		},
	})
	f.order = nil
	f.outcome = ""
	f.lastErr = nil
	return ctx, nil
}

func (f *orderLifecycle) aVariantPricedAtWithInStock(variantID, price string, stock int) error {
	parsed, err := decimal.NewFromString(price)
	if err != nil {
		return err
	}
	f.store.PutVariant(domain.Variant{ID: variantID, SKU: variantID, Price: parsed, Stock: stock})
	return nil
}

func (f *orderLifecycle) customerHasInTheCart(userID string, quantity int, variantID string) error {
	_, err := f.service.SetCartItem(context.Background(), domain.Actor{UserID: userID}, variantID, app.SetCartItemInput{Quantity: quantity})
	return err
}

func (f *orderLifecycle) customerHasAnEmptyCart(userID string) error {
	cart, err := f.service.GetCart(context.Background(), domain.Actor{UserID: userID})
	if err != nil {
		return err
	}
	if !cart.IsEmpty() {
		return fmt.Errorf("expected an empty cart for %s, got %d lines", userID, len(cart.Lines))
	}
	return nil
}

func (f *orderLifecycle) customerChecksOut(userID, paymentMethod, shippingMethod string) error {
	f.order, f.lastErr = f.service.CreateOrder(context.Background(), domain.Actor{UserID: userID}, app.CreateOrderInput{
		ShippingAddressID: "addr-1",
		PaymentMethod:     paymentMethod,
		ShippingMethod:    shippingMethod,
	})
	return nil
}

func (f *orderLifecycle) customerCheckedOut(userID, paymentMethod, shippingMethod string) error {
	if err := f.customerChecksOut(userID, paymentMethod, shippingMethod); err != nil {
		return err
	}
	if f.lastErr != nil {
		return fmt.Errorf("checkout failed: %w", f.lastErr)
	}
	return nil
}

func (f *orderLifecycle) theGatewayHasReceivedThePayment() error {
	if f.order == nil {
		return errors.New("no order placed")
	}
	return f.gateway.MarkPaid(f.order.Code)
}

func (f *orderLifecycle) theGatewayCallsBackWithCodeAndStatus(code, status string) error {
	return f.callback(domain.PaymentCallback{Code: code, Status: status})
}

func (f *orderLifecycle) theCustomerAbandonsThePayment() error {
	if f.order == nil {
		return errors.New("no order placed")
	}
	if err := f.gateway.SetStatus(f.order.Code, domain.PaymentStateCancelled, decimal.Zero); err != nil {
		return err
	}
	return f.callback(domain.PaymentCallback{Code: "00", Cancel: true, Status: "CANCELLED"})
}

func (f *orderLifecycle) callback(cb domain.PaymentCallback) error {
	if f.order == nil {
		return errors.New("no order placed")
	}
	cb.OrderCode = f.order.Code
	if f.order.PaymentTransactionID != nil {
		cb.TransactionID = *f.order.PaymentTransactionID
	}
	f.outcome, f.lastErr = f.service.HandlePaymentCallback(context.Background(), cb)
	return f.lastErr
}

func (f *orderLifecycle) customerCancelsTheOrder(userID, reason string) error {
	if f.order == nil {
		return errors.New("no order placed")
	}
	cancelled, err := f.service.CancelOrder(context.Background(), domain.Actor{UserID: userID}, f.order.ID, app.CancelOrderInput{Reason: reason})
	f.lastErr = err
	if err == nil {
		f.order = cancelled
	}
	return nil
}

func (f *orderLifecycle) customerLooksUpTheOrder(userID string) error {
	if f.order == nil {
		return errors.New("no order placed")
	}
	_, f.lastErr = f.service.GetOrder(context.Background(), domain.Actor{UserID: userID}, f.order.ID)
	return nil
}

func (f *orderLifecycle) theAdminMovesTheOrderTo(status, reason string) error {
	if f.order == nil {
		return errors.New("no order placed")
	}
	updated, err := f.service.UpdateStatus(context.Background(), admin, f.order.ID, app.UpdateStatusInput{Status: status, Reason: reason})
	f.lastErr = err
	if err == nil {
		f.order = updated
	}
	return nil
}

func (f *orderLifecycle) theOrderStatusIs(status string) error {
	if f.order == nil {
		return fmt.Errorf("no order placed: %v", f.lastErr)
	}
	current, err := f.service.GetOrder(context.Background(), admin, f.order.ID)
	if err != nil {
		return err
	}
	if current.Status != domain.OrderStatus(status) {
		return fmt.Errorf("expected status %s, got %s", status, current.Status)
	}
	return nil
}

func (f *orderLifecycle) theOrderTotalIs(total string) error {
	want, err := decimal.NewFromString(total)
	if err != nil {
		return err
	}
	if f.order == nil {
		return fmt.Errorf("no order placed: %v", f.lastErr)
	}
	if !f.order.TotalAmount.Equal(want) {
		return fmt.Errorf("expected total %s, got %s", want, f.order.TotalAmount)
	}
	return nil
}

func (f *orderLifecycle) theOrderHasAPaymentLink() error {
	if f.order == nil || f.order.PaymentLink == nil || *f.order.PaymentLink == "" {
		return errors.New("expected the order to carry a payment link")
	}
	return nil
}

func (f *orderLifecycle) variantHasInStock(variantID string, stock int) error {
	variant, ok := f.store.Variant(variantID)
	if !ok {
		return fmt.Errorf("variant %s not found", variantID)
	}
	if variant.Stock != stock {
		return fmt.Errorf("expected %d of %s in stock, got %d", stock, variantID, variant.Stock)
	}
	return nil
}

func (f *orderLifecycle) theCartOfCustomerIsEmpty(userID string) error {
	return f.customerHasAnEmptyCart(userID)
}

func (f *orderLifecycle) theGatewayHoldsNoPaymentLinks() error {
	if n := f.gateway.Count(); n != 0 {
		return fmt.Errorf("expected no payment links, got %d", n)
	}
	return nil
}

func (f *orderLifecycle) theGatewayPaymentIs(state string) error {
	payment, ok := f.gateway.Payment(f.order.Code)
	if !ok {
		return fmt.Errorf("no gateway payment for order %d", f.order.Code)
	}
	if payment.State != domain.PaymentState(state) {
		return fmt.Errorf("expected gateway payment %s, got %s", state, payment.State)
	}
	return nil
}

func (f *orderLifecycle) theRequestFailsWithErrorCode(code int) error {
	var domainErr *domain.Error
	if !errors.As(f.lastErr, &domainErr) {
		return fmt.Errorf("expected error code %d, got %v", code, f.lastErr)
	}
	if domainErr.Code != code {
		return fmt.Errorf("expected error code %d, got %d (%v)", code, domainErr.Code, f.lastErr)
	}
	return nil
}

func (f *orderLifecycle) theResultIs(result string) error {
	if result == "ok" {
		if f.lastErr != nil {
			return fmt.Errorf("expected success, got %w", f.lastErr)
		}
		return nil
	}
	code, err := strconv.Atoi(result)
	if err != nil {
		return err
	}
	return f.theRequestFailsWithErrorCode(code)
}

func (f *orderLifecycle) theCallbackOutcomeIs(outcome string) error {
	if f.outcome != domain.CallbackOutcome(outcome) {
		return fmt.Errorf("expected callback outcome %s, got %s", outcome, f.outcome)
	}
	return nil
}

func (f *orderLifecycle) statusChangeEventsWerePublished(n int) error {
	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	if len(f.events.changed) != n {
		return fmt.Errorf("expected %d status change events, got %d", n, len(f.events.changed))
	}
	return nil
}

func InitializeScenario(sc *godog.ScenarioContext) {
	f := &orderLifecycle{}
	sc.Before(f.reset)

	sc.Step(`^a variant "([^"]*)" priced at "([^"]*)" with (\d+) in stock$`, f.aVariantPricedAtWithInStock)
	sc.Step(`^customer "([^"]*)" has (\d+) of "([^"]*)" in the cart$`, f.customerHasInTheCart)
	sc.Step(`^customer "([^"]*)" has an empty cart$`, f.customerHasAnEmptyCart)
	sc.Step(`^customer "([^"]*)" checks out with "([^"]*)" payment and "([^"]*)" shipping$`, f.customerChecksOut)
	sc.Step(`^customer "([^"]*)" checked out with "([^"]*)" payment and "([^"]*)" shipping$`, f.customerCheckedOut)
	sc.Step(`^the gateway has received the payment$`, f.theGatewayHasReceivedThePayment)
	sc.Step(`^the gateway calls back with code "([^"]*)" and status "([^"]*)"$`, f.theGatewayCallsBackWithCodeAndStatus)
	sc.Step(`^the customer abandons the payment at the gateway$`, f.theCustomerAbandonsThePayment)
	sc.Step(`^customer "([^"]*)" cancels the order because "([^"]*)"$`, f.customerCancelsTheOrder)
	sc.Step(`^customer "([^"]*)" looks up the order$`, f.customerLooksUpTheOrder)
	sc.Step(`^the admin moves the order to "([^"]*)" with reason "([^"]*)"$`, f.theAdminMovesTheOrderTo)

	sc.Step(`^the order status is "([^"]*)"$`, f.theOrderStatusIs)
	sc.Step(`^the order total is "([^"]*)"$`, f.theOrderTotalIs)
	sc.Step(`^the order has a payment link$`, f.theOrderHasAPaymentLink)
	sc.Step(`^variant "([^"]*)" has (\d+) in stock$`, f.variantHasInStock)
	sc.Step(`^the cart of customer "([^"]*)" is empty$`, f.theCartOfCustomerIsEmpty)
	sc.Step(`^the gateway holds no payment links$`, f.theGatewayHoldsNoPaymentLinks)
	sc.Step(`^the gateway payment is "([^"]*)"$`, f.theGatewayPaymentIs)
	sc.Step(`^the request fails with error code (\d+)$`, f.theRequestFailsWithErrorCode)
	sc.Step(`^the result is "([^"]*)"$`, f.theResultIs)
	sc.Step(`^the callback outcome is "([^"]*)"$`, f.theCallbackOutcomeIs)
	sc.Step(`^(\d+) status change events? (?:was|were) published$`, f.statusChangeEventsWerePublished)
}
