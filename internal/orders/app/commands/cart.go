package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// SetCartItemCommand sets the quantity of a cart line. A quantity of zero or less
// removes the line. Stock is only checked at checkout.
type SetCartItemCommand struct {
	UserID    string
	VariantID string
	Quantity  int
}

type SetCartItemCommandHandler struct {
	carts ports.CartRepository
}

func NewSetCartItemCommandHandler(carts ports.CartRepository) *SetCartItemCommandHandler {
	return &SetCartItemCommandHandler{carts: carts}
}

func (h *SetCartItemCommandHandler) Handle(ctx context.Context, cmd SetCartItemCommand) error {
	if strings.TrimSpace(cmd.UserID) == "" || strings.TrimSpace(cmd.VariantID) == "" {
		return fmt.Errorf("%w: user and variant are required", domain.ErrInvalidRequest)
	}

	err := h.carts.SetItem(ctx, cmd.UserID, cmd.VariantID, cmd.Quantity)
	if errors.Is(err, ports.ErrNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrVariantNotFound, cmd.VariantID)
	}
	if err != nil {
		return fmt.Errorf("set cart item: %w", err)
	}
	return nil
}

type RemoveCartItemCommand struct {
	UserID    string
	VariantID string
}

type RemoveCartItemCommandHandler struct {
	carts ports.CartRepository
}

func NewRemoveCartItemCommandHandler(carts ports.CartRepository) *RemoveCartItemCommandHandler {
	return &RemoveCartItemCommandHandler{carts: carts}
}

func (h *RemoveCartItemCommandHandler) Handle(ctx context.Context, cmd RemoveCartItemCommand) error {
	if err := h.carts.RemoveItem(ctx, cmd.UserID, cmd.VariantID); err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return nil
}
