package ports

import "context"

// Tx gives access to repositories bound to a single unit of work.
type Tx interface {
	Orders() OrderRepository
	Carts() CartRepository
	Stock() StockRepository
}

// UnitOfWork runs fn atomically. Any error returned by fn rolls back every
// change made through tx.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
