package postgres

import (
	"context"
	"fmt"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

type StockRepository struct {
	db DBTX
}

func NewStockRepository(db DBTX) *StockRepository {
	return &StockRepository{db: db}
}

// TryDecrement is a single conditional update, so concurrent checkouts can never drive stock negative.
func (r *StockRepository) TryDecrement(ctx context.Context, variantID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("decrement quantity must be positive, got %d", quantity)
	}

	result, err := r.db.Exec(ctx, `
		UPDATE product_variants
		SET stock = stock - $1, updated_at = NOW()
		WHERE id = $2 AND stock >= $1`,
		quantity, variantID,
	)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if result.RowsAffected() == 1 {
		return nil
	}

	found, err := exists(ctx, r.db, `SELECT 1 FROM product_variants WHERE id = $1`, variantID)
	if err != nil {
		return fmt.Errorf("check variant: %w", err)
	}
	if !found {
		return ports.ErrNotFound
	}
	return ports.ErrInsufficientStock
}

func (r *StockRepository) Increment(ctx context.Context, variantID string, quantity int) error {
	result, err := r.db.Exec(ctx, `
		UPDATE product_variants
		SET stock = stock + $1, updated_at = NOW()
		WHERE id = $2`,
		quantity, variantID,
	)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// PutVariant inserts or replaces a variant row. Used to seed the catalog.
func (r *StockRepository) PutVariant(ctx context.Context, v domain.Variant) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO product_variants (id, sku, name, price, stock)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET sku = EXCLUDED.sku, name = EXCLUDED.name, price = EXCLUDED.price,
		    stock = EXCLUDED.stock, updated_at = NOW()`,
		v.ID, v.SKU, v.Name, v.Price, v.Stock,
	)
	if err != nil {
		return fmt.Errorf("upsert variant: %w", err)
	}
	return nil
}

func (r *StockRepository) Variant(ctx context.Context, id string) (domain.Variant, error) {
	var v domain.Variant
	err := r.db.QueryRow(ctx, `SELECT id, sku, name, price, stock FROM product_variants WHERE id = $1`, id).
		Scan(&v.ID, &v.SKU, &v.Name, &v.Price, &v.Stock)
	if err != nil {
		return domain.Variant{}, fmt.Errorf("select variant: %w", err)
	}
	return v, nil
}
