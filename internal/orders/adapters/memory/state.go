package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

const defaultPageSize = 20

type state struct {
	orders   map[string]domain.Order
	codes    map[int64]string
	variants map[string]domain.Variant
	carts    map[string]map[string]int
}

func newState() *state {
	return &state{
		orders:   make(map[string]domain.Order),
		codes:    make(map[int64]string),
		variants: make(map[string]domain.Variant),
		carts:    make(map[string]map[string]int),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, order := range s.orders {
		c.orders[id] = order
	}
	for code, id := range s.codes {
		c.codes[code] = id
	}
	for id, variant := range s.variants {
		c.variants[id] = variant
	}
	for userID, lines := range s.carts {
		copied := make(map[string]int, len(lines))
		for variantID, qty := range lines {
			copied[variantID] = qty
		}
		c.carts[userID] = copied
	}
	return c
}

func (s *state) orderRepo() orderRepo { return orderRepo{s} }
func (s *state) cartRepo() cartRepo   { return cartRepo{s} }
func (s *state) stockRepo() stockRepo { return stockRepo{s} }

type orderRepo struct{ s *state }

func (r orderRepo) Create(_ context.Context, order domain.Order) error {
	if _, exists := r.s.orders[order.ID]; exists {
		return fmt.Errorf("order %s already exists", order.ID)
	}
	if _, exists := r.s.codes[order.Code]; exists {
		return fmt.Errorf("%w: %d", ports.ErrOrderCodeTaken, order.Code)
	}
	items := make([]domain.OrderItem, len(order.Items))
	copy(items, order.Items)
	order.Items = items

	r.s.orders[order.ID] = order
	r.s.codes[order.Code] = order.ID
	return nil
}

func (r orderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	order, ok := r.s.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &order, nil
}

func (r orderRepo) GetByCode(ctx context.Context, code int64) (*domain.Order, error) {
	id, ok := r.s.codes[code]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// List returns orders newest first. Pagination is 1-based.
func (r orderRepo) List(_ context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	var result []domain.Order
	for _, order := range r.s.orders {
		if filter.UserID != nil && order.UserID != *filter.UserID {
			continue
		}
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		result = append(result, order)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].OrderedAt.Equal(result[j].OrderedAt) {
			return result[i].Code > result[j].Code
		}
		return result[i].OrderedAt.After(result[j].OrderedAt)
	})

	if filter.PageSize <= 0 {
		filter.PageSize = defaultPageSize
	}

	start := filter.Offset()
	if start >= len(result) {
		return []domain.Order{}, nil
	}

	end := start + filter.PageSize
	if end > len(result) {
		end = len(result)
	}

	page := make([]domain.Order, end-start)
	copy(page, result[start:end])
	return page, nil
}

func (r orderRepo) TransitionStatus(_ context.Context, id string, change domain.StatusChange) error {
	order, ok := r.s.orders[id]
	if !ok {
		return ports.ErrNotFound
	}
	if order.Status != change.From {
		return ports.ErrStatusConflict
	}

	order.Status = change.To
	order.UpdatedAt = change.At
	if change.Reason != nil {
		order.Reason = change.Reason
	}
	if change.TransactionID != nil {
		order.PaymentTransactionID = change.TransactionID
	}
	r.s.orders[id] = order
	return nil
}

type cartRepo struct{ s *state }

func (r cartRepo) GetCart(_ context.Context, userID string) (domain.Cart, error) {
	cart := domain.Cart{UserID: userID}
	for variantID, qty := range r.s.carts[userID] {
		variant, ok := r.s.variants[variantID]
		if !ok {
			continue
		}
		cart.Lines = append(cart.Lines, domain.CartLine{
			VariantID: variantID,
			Quantity:  qty,
			UnitPrice: variant.Price,
		})
	}
	cart.Lines = cart.SortedLines()
	return cart, nil
}

func (r cartRepo) SetItem(ctx context.Context, userID, variantID string, quantity int) error {
	if _, ok := r.s.variants[variantID]; !ok {
		return ports.ErrNotFound
	}
	if quantity <= 0 {
		return r.RemoveItem(ctx, userID, variantID)
	}

	lines, ok := r.s.carts[userID]
	if !ok {
		lines = make(map[string]int)
		r.s.carts[userID] = lines
	}
	lines[variantID] = quantity
	return nil
}

func (r cartRepo) RemoveItem(_ context.Context, userID, variantID string) error {
	delete(r.s.carts[userID], variantID)
	return nil
}

func (r cartRepo) Clear(_ context.Context, userID string) error {
	delete(r.s.carts, userID)
	return nil
}

type stockRepo struct{ s *state }

func (r stockRepo) TryDecrement(_ context.Context, variantID string, quantity int) error {
	variant, ok := r.s.variants[variantID]
	if !ok {
		return ports.ErrNotFound
	}
	if quantity <= 0 {
		return fmt.Errorf("decrement quantity must be positive, got %d", quantity)
	}
	if variant.Stock < quantity {
		return ports.ErrInsufficientStock
	}
	variant.Stock -= quantity
	r.s.variants[variantID] = variant
	return nil
}

func (r stockRepo) Increment(_ context.Context, variantID string, quantity int) error {
	variant, ok := r.s.variants[variantID]
	if !ok {
		return ports.ErrNotFound
	}
	variant.Stock += quantity
	r.s.variants[variantID] = variant
	return nil
}
