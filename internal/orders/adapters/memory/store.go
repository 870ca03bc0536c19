package memory

import (
	"context"
	"sync"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/shopspring/decimal"
)

// Store keeps orders, carts and stock in memory for local development and tests.
// Units of work are serialized and applied by swapping in a modified copy of the state.
type Store struct {
	mu    sync.Mutex
	state *state
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{state: newState()}
}

// Do runs fn against a private copy of the state and publishes it only when fn succeeds.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	draft := s.state.clone()
	if err := fn(ctx, &tx{state: draft}); err != nil {
		return err
	}

	s.state = draft
	return nil
}

// PutVariant adds or replaces a product variant.
func (s *Store) PutVariant(variant domain.Variant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.variants[variant.ID] = variant
}

// SetPrice changes the live price of a variant.
func (s *Store) SetPrice(variantID string, price decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	variant, ok := s.state.variants[variantID]
	if !ok {
		return ports.ErrNotFound
	}
	variant.Price = price
	s.state.variants[variantID] = variant
	return nil
}

// Variant returns a copy of the stored variant.
func (s *Store) Variant(variantID string) (domain.Variant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	variant, ok := s.state.variants[variantID]
	return variant, ok
}

func (s *Store) Create(ctx context.Context, order domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.orderRepo().Create(ctx, order)
}

func (s *Store) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.orderRepo().GetByID(ctx, id)
}

func (s *Store) GetByCode(ctx context.Context, code int64) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.orderRepo().GetByCode(ctx, code)
}

func (s *Store) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.orderRepo().List(ctx, filter)
}

func (s *Store) TransitionStatus(ctx context.Context, id string, change domain.StatusChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.orderRepo().TransitionStatus(ctx, id, change)
}

func (s *Store) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.cartRepo().GetCart(ctx, userID)
}

func (s *Store) SetItem(ctx context.Context, userID, variantID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.cartRepo().SetItem(ctx, userID, variantID, quantity)
}

func (s *Store) RemoveItem(ctx context.Context, userID, variantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.cartRepo().RemoveItem(ctx, userID, variantID)
}

func (s *Store) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.cartRepo().Clear(ctx, userID)
}

type tx struct {
	state *state
}

func (t *tx) Orders() ports.OrderRepository { return t.state.orderRepo() }
func (t *tx) Carts() ports.CartRepository   { return t.state.cartRepo() }
func (t *tx) Stock() ports.StockRepository  { return t.state.stockRepo() }
