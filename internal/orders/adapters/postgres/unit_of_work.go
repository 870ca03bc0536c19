package postgres

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultMaxRetries = 3

type UnitOfWork struct {
	pool       *pgxpool.Pool
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

func NewUnitOfWork(pool *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{
		pool:       pool,
		maxRetries: defaultMaxRetries,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

// Do runs fn in a transaction. Serialization failures and deadlocks rerun the
// whole transaction with exponential backoff; any other error is returned as is.
func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(u.newBackOff(), u.maxRetries), ctx)

	return backoff.Retry(func() error {
		err := pgx.BeginTxFunc(ctx, u.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
			return fn(ctx, &repositories{db: tx})
		})
		if err == nil {
			return nil
		}
		if database.IsRetryable(err) && !errors.Is(err, context.Canceled) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}

type repositories struct {
	db DBTX
}

func (r *repositories) Orders() ports.OrderRepository { return NewRepository(r.db) }
func (r *repositories) Carts() ports.CartRepository   { return NewCartRepository(r.db) }
func (r *repositories) Stock() ports.StockRepository  { return NewStockRepository(r.db) }
