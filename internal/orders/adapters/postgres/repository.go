package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `
	id, code, user_id, status, total_amount, shipping_cost, payment_method, shipping_method,
	shipping_address_id, payment_transaction_id, payment_link, reason, ordered_at, updated_at`

type Repository struct {
	db DBTX
}

func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

const orderCodeConstraint = "orders_code_key"

func (r *Repository) Create(ctx context.Context, order domain.Order) error {
	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		order.ID,
		order.Code,
		order.UserID,
		order.Status,
		order.TotalAmount,
		order.ShippingCost,
		order.PaymentMethod,
		order.ShippingMethod,
		order.ShippingAddressID,
		order.PaymentTransactionID,
		order.PaymentLink,
		order.Reason,
		order.OrderedAt,
		order.UpdatedAt,
	)
	for i, item := range order.Items {
		batch.Queue(`
			INSERT INTO order_items (order_id, line_no, variant_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)`,
			order.ID, i+1, item.VariantID, item.Quantity, item.UnitPrice,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	for range batch.Len() {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			if database.IsUniqueViolation(err, orderCodeConstraint) {
				return fmt.Errorf("%w: %d", ports.ErrOrderCodeTaken, order.Code)
			}
			return fmt.Errorf("insert order: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *Repository) GetByCode(ctx context.Context, code int64) (*domain.Order, error) {
	return r.getOne(ctx, "code = $1", code)
}

func (r *Repository) getOne(ctx context.Context, where string, arg any) (*domain.Order, error) {
	row := r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where, arg)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	items, err := r.loadItems(ctx, []string{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]

	return &order, nil
}

func (r *Repository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	filter.PageSize = pageSize

	var (
		conditions []string
		args       []any
	)
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	args = append(args, pageSize, filter.Offset())
	query += fmt.Sprintf(` ORDER BY ordered_at DESC, code DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var (
		orders []domain.Order
		ids    []string
	)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}

	return orders, nil
}

// TransitionStatus updates the row only while it still holds change.From.
func (r *Repository) TransitionStatus(ctx context.Context, id string, change domain.StatusChange) error {
	query := `
		UPDATE orders
		SET status = $1,
		    reason = COALESCE($2, reason),
		    payment_transaction_id = COALESCE($3, payment_transaction_id),
		    updated_at = $4
		WHERE id = $5 AND status = $6
	`

	result, err := r.db.Exec(ctx, query, change.To, change.Reason, change.TransactionID, change.At, id, change.From)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if result.RowsAffected() == 1 {
		return nil
	}

	found, err := exists(ctx, r.db, `SELECT 1 FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	if !found {
		return ports.ErrNotFound
	}
	return ports.ErrStatusConflict
}

func (r *Repository) loadItems(ctx context.Context, orderIDs []string) (map[string][]domain.OrderItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT order_id, variant_id, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, line_no`,
		orderIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := make(map[string][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			orderID string
			item    domain.OrderItem
		)
		if err := rows.Scan(&orderID, &item.VariantID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items[orderID] = append(items[orderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var order domain.Order
	err := row.Scan(
		&order.ID,
		&order.Code,
		&order.UserID,
		&order.Status,
		&order.TotalAmount,
		&order.ShippingCost,
		&order.PaymentMethod,
		&order.ShippingMethod,
		&order.ShippingAddressID,
		&order.PaymentTransactionID,
		&order.PaymentLink,
		&order.Reason,
		&order.OrderedAt,
		&order.UpdatedAt,
	)
	return order, err
}
