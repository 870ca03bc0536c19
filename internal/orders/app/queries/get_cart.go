package queries

import (
	"context"
	"fmt"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

type GetCartQuery struct {
	UserID string
}

type GetCartQueryHandler struct {
	carts ports.CartRepository
}

func NewGetCartQueryHandler(carts ports.CartRepository) *GetCartQueryHandler {
	return &GetCartQueryHandler{carts: carts}
}

func (h *GetCartQueryHandler) Handle(ctx context.Context, query GetCartQuery) (domain.Cart, error) {
	cart, err := h.carts.GetCart(ctx, query.UserID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("get cart: %w", err)
	}
	if cart.Lines == nil {
		cart.Lines = []domain.CartLine{}
	}
	return cart, nil
}
