package postgres

import (
	"context"
	"fmt"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

type CartRepository struct {
	db DBTX
}

func NewCartRepository(db DBTX) *CartRepository {
	return &CartRepository{db: db}
}

// GetCart prices every line at the variant's current price.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.variant_id, c.quantity, v.price
		FROM cart_items c
		JOIN product_variants v ON v.id = c.variant_id
		WHERE c.user_id = $1
		ORDER BY c.variant_id`,
		userID,
	)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("query cart: %w", err)
	}
	defer rows.Close()

	cart := domain.Cart{UserID: userID}
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.VariantID, &line.Quantity, &line.UnitPrice); err != nil {
			return domain.Cart{}, fmt.Errorf("scan cart line: %w", err)
		}
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return domain.Cart{}, fmt.Errorf("iterate cart: %w", err)
	}

	return cart, nil
}

func (r *CartRepository) SetItem(ctx context.Context, userID, variantID string, quantity int) error {
	if quantity <= 0 {
		return r.RemoveItem(ctx, userID, variantID)
	}

	result, err := r.db.Exec(ctx, `
		INSERT INTO cart_items (user_id, variant_id, quantity)
		SELECT $1, id, $3 FROM product_variants WHERE id = $2
		ON CONFLICT (user_id, variant_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
		userID, variantID, quantity,
	)
	if err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}

	return nil
}

func (r *CartRepository) RemoveItem(ctx context.Context, userID, variantID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND variant_id = $2`, userID, variantID); err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return nil
}

func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
