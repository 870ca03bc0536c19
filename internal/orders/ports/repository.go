package ports

import (
	"context"
	"errors"

	"github.com/dejobratic/storefront/internal/orders/domain"
)

// OrderRepository exposes persistence operations required by the application layer.
type OrderRepository interface {
	// Create returns ErrOrderCodeTaken when another order already holds order.Code.
	Create(ctx context.Context, order domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByCode(ctx context.Context, code int64) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, error)
	// TransitionStatus writes change only while the stored status equals change.From.
	// It returns ErrStatusConflict when another writer moved the order first.
	TransitionStatus(ctx context.Context, id string, change domain.StatusChange) error
}

// ListFilter narrows list queries by owner, status and pagination.
type ListFilter struct {
	UserID   *string
	Status   *domain.OrderStatus
	Page     int
	PageSize int
}

// Offset returns the number of rows to skip for a 1-based page.
func (f ListFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// CartRepository reads and edits a user's cart.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	// SetItem returns ErrNotFound when the variant does not exist.
	SetItem(ctx context.Context, userID, variantID string, quantity int) error
	RemoveItem(ctx context.Context, userID, variantID string) error
	Clear(ctx context.Context, userID string) error
}

// StockRepository mutates variant stock counters.
type StockRepository interface {
	// TryDecrement lowers stock only if at least quantity units remain.
	TryDecrement(ctx context.Context, variantID string, quantity int) error
	Increment(ctx context.Context, variantID string, quantity int) error
}

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStatusConflict is returned when a conditional status write loses a race.
	ErrStatusConflict = errors.New("order status changed concurrently")
	// ErrOrderCodeTaken is returned when a new order's gateway code is already in use.
	ErrOrderCodeTaken = errors.New("order code already in use")
	// ErrInsufficientStock is returned when a conditional decrement matches no row.
	ErrInsufficientStock = errors.New("insufficient stock")
)
