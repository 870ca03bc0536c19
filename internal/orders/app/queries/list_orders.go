package queries

import (
	"context"
	"fmt"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type ListOrdersQuery struct {
	Actor    domain.Actor
	Status   *domain.OrderStatus
	Page     int
	PageSize int
}

func (q ListOrdersQuery) Validate() error {
	if q.Page < 0 {
		return fmt.Errorf("%w: page must not be negative", domain.ErrInvalidRequest)
	}
	if q.PageSize < 0 || q.PageSize > MaxPageSize {
		return fmt.Errorf("%w: page_size must be between 1 and %d", domain.ErrInvalidRequest, MaxPageSize)
	}
	if q.Status != nil && !q.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidRequest, *q.Status)
	}
	return nil
}

type ListOrdersQueryHandler struct {
	repo ports.OrderRepository
}

func NewListOrdersQueryHandler(repo ports.OrderRepository) *ListOrdersQueryHandler {
	return &ListOrdersQueryHandler{repo: repo}
}

// Handle lists orders newest first. Customers only ever see their own orders.
func (h *ListOrdersQueryHandler) Handle(ctx context.Context, query ListOrdersQuery) ([]domain.Order, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	filter := ports.ListFilter{
		Status:   query.Status,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.PageSize == 0 {
		filter.PageSize = DefaultPageSize
	}
	if !query.Actor.Admin {
		userID := query.Actor.UserID
		filter.UserID = &userID
	}

	orders, err := h.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}
