package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dejobratic/storefront/internal/orders/app/commands"
	"github.com/dejobratic/storefront/internal/orders/app/queries"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/shopspring/decimal"
)

// Dependencies wires the service to its adapters.
type Dependencies struct {
	UnitOfWork     ports.UnitOfWork
	Orders         ports.OrderRepository
	Carts          ports.CartRepository
	Gateway        ports.PaymentGateway
	Events         ports.EventBus
	Idempotency    ports.IdempotencyStore
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	PaymentTimeout time.Duration
	ShippingRates  map[domain.ShippingMethod]decimal.Decimal
}

// Service bundles use cases for handling orders via the API.
type Service struct {
	idemStore ports.IdempotencyStore

	createOrder     commands.CreateOrderHandler
	cancelOrder     *commands.CancelOrderCommandHandler
	updateStatus    *commands.UpdateStatusCommandHandler
	expirePayment   *commands.ExpirePaymentCommandHandler
	paymentCallback commands.PaymentCallbackHandler
	setCartItem     *commands.SetCartItemCommandHandler
	removeCartItem  *commands.RemoveCartItemCommandHandler

	getOrder   *queries.GetOrderQueryHandler
	listOrders *queries.ListOrdersQueryHandler
	getCart    *queries.GetCartQueryHandler
}

// NewService wires required dependencies.
func NewService(deps Dependencies) *Service {
	cmdDeps := commands.Dependencies{
		UnitOfWork:     deps.UnitOfWork,
		Orders:         deps.Orders,
		Carts:          deps.Carts,
		Gateway:        deps.Gateway,
		Events:         deps.Events,
		Metrics:        deps.Metrics,
		Logger:         deps.Logger,
		PaymentTimeout: deps.PaymentTimeout,
		ShippingRates:  deps.ShippingRates,
	}

	createOrder := commands.NewCreateOrderCommandHandler(cmdDeps)
	paymentCallback := commands.NewPaymentCallbackCommandHandler(cmdDeps)

	return &Service{
		idemStore: deps.Idempotency,

		createOrder:     commands.NewObservableCreateOrderHandler(createOrder, deps.Logger, deps.Metrics),
		cancelOrder:     commands.NewCancelOrderCommandHandler(cmdDeps),
		updateStatus:    commands.NewUpdateStatusCommandHandler(cmdDeps),
		expirePayment:   commands.NewExpirePaymentCommandHandler(cmdDeps),
		paymentCallback: commands.NewObservablePaymentCallbackHandler(paymentCallback, deps.Logger, deps.Metrics),
		setCartItem:     commands.NewSetCartItemCommandHandler(deps.Carts),
		removeCartItem:  commands.NewRemoveCartItemCommandHandler(deps.Carts),

		getOrder:   queries.NewGetOrderQueryHandler(deps.Orders),
		listOrders: queries.NewListOrdersQueryHandler(deps.Orders),
		getCart:    queries.NewGetCartQueryHandler(deps.Carts),
	}
}

// CreateOrderInput captures payload for creating an order.
type CreateOrderInput struct {
	ShippingAddressID string `json:"shipping_address_id"`
	PaymentMethod     string `json:"payment_method"`
	ShippingMethod    string `json:"shipping_method"`
}

// CreateOrder checks out the caller's cart.
func (s *Service) CreateOrder(ctx context.Context, actor domain.Actor, input CreateOrderInput) (*domain.Order, error) {
	return s.createOrder.Handle(ctx, commands.CreateOrderCommand{
		UserID:            actor.UserID,
		ShippingAddressID: input.ShippingAddressID,
		PaymentMethod:     domain.PaymentMethod(input.PaymentMethod),
		ShippingMethod:    domain.ShippingMethod(input.ShippingMethod),
	})
}

// GetOrder retrieves an order visible to the actor.
func (s *Service) GetOrder(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	return s.getOrder.Handle(ctx, queries.GetOrderQuery{Actor: actor, OrderID: id})
}

// ListOrdersInput carries list filters as received from the client.
type ListOrdersInput struct {
	Status   string
	Page     int
	PageSize int
}

// ListOrders returns a page of orders visible to the actor.
func (s *Service) ListOrders(ctx context.Context, actor domain.Actor, input ListOrdersInput) ([]domain.Order, error) {
	query := queries.ListOrdersQuery{
		Actor:    actor,
		Page:     input.Page,
		PageSize: input.PageSize,
	}
	if input.Status != "" {
		status := domain.OrderStatus(input.Status)
		query.Status = &status
	}
	return s.listOrders.Handle(ctx, query)
}

// CancelOrderInput captures payload for cancelling an order.
type CancelOrderInput struct {
	Reason string `json:"reason"`
}

// CancelOrder cancels an order that has not entered fulfilment.
func (s *Service) CancelOrder(ctx context.Context, actor domain.Actor, id string, input CancelOrderInput) (*domain.Order, error) {
	return s.cancelOrder.Handle(ctx, commands.CancelOrderCommand{Actor: actor, OrderID: id, Reason: input.Reason})
}

// UpdateStatusInput captures payload for an administrative status change.
type UpdateStatusInput struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// UpdateStatus moves an order along the state machine. Callers must be admins.
func (s *Service) UpdateStatus(ctx context.Context, actor domain.Actor, id string, input UpdateStatusInput) (*domain.Order, error) {
	if !actor.Admin {
		return nil, domain.ErrForbidden
	}
	return s.updateStatus.Handle(ctx, commands.UpdateStatusCommand{
		OrderID: id,
		Status:  domain.OrderStatus(input.Status),
		Reason:  input.Reason,
	})
}

// ExpirePayment applies a payment link timeout. Callers must be admins.
func (s *Service) ExpirePayment(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	if !actor.Admin {
		return nil, domain.ErrForbidden
	}
	return s.expirePayment.Handle(ctx, commands.ExpirePaymentCommand{OrderID: id})
}

// HandlePaymentCallback reconciles a gateway notification.
func (s *Service) HandlePaymentCallback(ctx context.Context, callback domain.PaymentCallback) (domain.CallbackOutcome, error) {
	return s.paymentCallback.Handle(ctx, commands.PaymentCallbackCommand{Callback: callback})
}

// GetCart returns the caller's cart at live prices.
func (s *Service) GetCart(ctx context.Context, actor domain.Actor) (domain.Cart, error) {
	return s.getCart.Handle(ctx, queries.GetCartQuery{UserID: actor.UserID})
}

// SetCartItemInput captures payload for setting a cart line quantity.
type SetCartItemInput struct {
	Quantity int `json:"quantity"`
}

func (s *Service) SetCartItem(ctx context.Context, actor domain.Actor, variantID string, input SetCartItemInput) (domain.Cart, error) {
	err := s.setCartItem.Handle(ctx, commands.SetCartItemCommand{
		UserID:    actor.UserID,
		VariantID: variantID,
		Quantity:  input.Quantity,
	})
	if err != nil {
		return domain.Cart{}, err
	}
	return s.GetCart(ctx, actor)
}

func (s *Service) RemoveCartItem(ctx context.Context, actor domain.Actor, variantID string) (domain.Cart, error) {
	err := s.removeCartItem.Handle(ctx, commands.RemoveCartItemCommand{UserID: actor.UserID, VariantID: variantID})
	if err != nil {
		return domain.Cart{}, err
	}
	return s.GetCart(ctx, actor)
}

// SaveIdempotentResponse writes response details for a caller's key.
func (s *Service) SaveIdempotentResponse(ctx context.Context, actor domain.Actor, key string, response ports.StoredResponse) error {
	return s.idemStore.Save(ctx, idempotencyKey(actor, key), response)
}

// GetIdempotentResponse retrieves response data previously stored for a caller's key.
func (s *Service) GetIdempotentResponse(ctx context.Context, actor domain.Actor, key string) (*ports.StoredResponse, error) {
	return s.idemStore.Get(ctx, idempotencyKey(actor, key))
}

// idempotencyKey scopes keys to the calling user.
func idempotencyKey(actor domain.Actor, key string) string {
	return fmt.Sprintf("%s:%s", actor.UserID, key)
}
