package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/google/uuid"
)

type CreateOrderCommand struct {
	UserID            string
	ShippingAddressID string
	PaymentMethod     domain.PaymentMethod
	ShippingMethod    domain.ShippingMethod
}

func (c CreateOrderCommand) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("%w: user_id is required", domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(c.ShippingAddressID) == "" {
		return fmt.Errorf("%w: shipping_address_id is required", domain.ErrInvalidRequest)
	}
	if !c.PaymentMethod.Valid() {
		return fmt.Errorf("%w: payment_method must be cod or online", domain.ErrInvalidRequest)
	}
	if c.ShippingMethod != "" && !c.ShippingMethod.Valid() {
		return fmt.Errorf("%w: shipping_method must be standard or express", domain.ErrInvalidRequest)
	}
	return nil
}

type CreateOrderHandler interface {
	Handle(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error)
}

type CreateOrderCommandHandler struct {
	deps     Dependencies
	notifier notifier
}

func NewCreateOrderCommandHandler(deps Dependencies) *CreateOrderCommandHandler {
	deps = deps.withDefaults()
	return &CreateOrderCommandHandler{deps: deps, notifier: newNotifier(deps)}
}

func (h *CreateOrderCommandHandler) Handle(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if cmd.ShippingMethod == "" {
		cmd.ShippingMethod = domain.ShippingStandard
	}
	shippingCost, ok := h.deps.ShippingRates[cmd.ShippingMethod]
	if !ok {
		return nil, fmt.Errorf("%w: no rate configured for shipping method %s", domain.ErrInvalidRequest, cmd.ShippingMethod)
	}

	var (
		created  domain.Order
		link     *ports.PaymentLink
		linkCode int64
	)

	place := func(ctx context.Context, tx ports.Tx) error {
		if link != nil {
			// a retried attempt must not leave the previous attempt's link open
			h.abandonPaymentLink(ctx, linkCode, link)
			link = nil
		}

		cart, err := tx.Carts().GetCart(ctx, cmd.UserID)
		if err != nil {
			return fmt.Errorf("read cart: %w", err)
		}
		if cart.IsEmpty() {
			return domain.ErrCartEmpty
		}

		lines := cart.SortedLines()
		for _, line := range lines {
			err := tx.Stock().TryDecrement(ctx, line.VariantID, line.Quantity)
			if errors.Is(err, ports.ErrInsufficientStock) || errors.Is(err, ports.ErrNotFound) {
				return fmt.Errorf("%w: variant %s", domain.ErrInsufficientStock, line.VariantID)
			}
			if err != nil {
				return fmt.Errorf("reserve stock for variant %s: %w", line.VariantID, err)
			}
		}

		now := h.deps.Now()
		code, err := h.newOrderCode(ctx, tx, now)
		if err != nil {
			return err
		}

		order, err := domain.NewOrder(domain.NewOrderParams{
			ID:                uuid.NewString(),
			Code:              code,
			UserID:            cmd.UserID,
			Lines:             lines,
			ShippingCost:      shippingCost,
			PaymentMethod:     cmd.PaymentMethod,
			ShippingMethod:    cmd.ShippingMethod,
			ShippingAddressID: cmd.ShippingAddressID,
			Now:               now,
		})
		if err != nil {
			return err
		}

		if order.PaymentMethod.RequiresRedirect() {
			issued, err := h.requestPaymentLink(ctx, order)
			if err != nil {
				return err
			}
			link, linkCode = &issued, order.Code
			order.AttachPayment(issued.URL, issued.TransactionID)
		}

		if err := tx.Orders().Create(ctx, order); err != nil {
			if errors.Is(err, ports.ErrOrderCodeTaken) {
				// the gateway link under this code belongs to the other order
				link = nil
			}
			return fmt.Errorf("save order: %w", err)
		}
		if err := tx.Carts().Clear(ctx, cmd.UserID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		created = order
		return nil
	}

	err := h.deps.UnitOfWork.Do(ctx, place)
	for attempt := 1; errors.Is(err, ports.ErrOrderCodeTaken) && attempt < maxOrderCodeAttempts; attempt++ {
		h.deps.Logger.WarnContext(ctx, "order code collision, retrying checkout", "attempt", attempt, "user_id", cmd.UserID)
		err = h.deps.UnitOfWork.Do(ctx, place)
	}
	if err != nil {
		if link != nil {
			h.abandonPaymentLink(ctx, linkCode, link)
		}
		return nil, err
	}

	h.notifier.orderCreated(ctx, created)
	return &created, nil
}

const maxOrderCodeAttempts = 3

// newOrderCode returns a code no stored order holds yet. The unique index on orders.code
// still catches a concurrent checkout that picks the same code.
func (h *CreateOrderCommandHandler) newOrderCode(ctx context.Context, tx ports.Tx, now time.Time) (int64, error) {
	for range maxOrderCodeAttempts {
		code, err := h.deps.NewOrderCode(now)
		if err != nil {
			return 0, err
		}
		_, err = tx.Orders().GetByCode(ctx, code)
		if errors.Is(err, ports.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return 0, fmt.Errorf("check order code %d: %w", code, err)
		}
	}
	return 0, fmt.Errorf("%w: no free code after %d attempts", ports.ErrOrderCodeTaken, maxOrderCodeAttempts)
}

func (h *CreateOrderCommandHandler) requestPaymentLink(ctx context.Context, order domain.Order) (ports.PaymentLink, error) {
	ctx, cancel := context.WithTimeout(ctx, h.deps.PaymentTimeout)
	defer cancel()

	req := ports.PaymentLinkRequest{
		OrderCode:   order.Code,
		Amount:      order.TotalAmount,
		Description: fmt.Sprintf("Order %d", order.Code),
	}
	for _, item := range order.Items {
		req.Items = append(req.Items, ports.PaymentItem{
			Name:     item.VariantID,
			Quantity: item.Quantity,
			Price:    item.UnitPrice,
		})
	}

	link, err := h.deps.Gateway.CreatePaymentLink(ctx, req)
	if err != nil {
		return ports.PaymentLink{}, fmt.Errorf("%w: %w", domain.ErrPaymentCreationFailed, err)
	}
	return link, nil
}

// abandonPaymentLink cancels a link whose order was rolled back after the link was issued.
func (h *CreateOrderCommandHandler) abandonPaymentLink(ctx context.Context, code int64, link *ports.PaymentLink) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.deps.PaymentTimeout)
	defer cancel()

	if err := h.deps.Gateway.CancelPayment(ctx, code, "order was not created"); err != nil {
		h.deps.Logger.WarnContext(ctx, "failed to cancel payment link of rolled back order",
			"error", err,
			"order_code", code,
			"payment_link", link.URL,
		)
	}
}
