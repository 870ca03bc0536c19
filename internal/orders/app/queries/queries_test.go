package queries_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dejobratic/storefront/internal/orders/adapters/memory"
	"github.com/dejobratic/storefront/internal/orders/app/queries"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/shopspring/decimal"
)

func seed(t *testing.T, store *memory.Store, id, userID string, status domain.OrderStatus, orderedAt time.Time) {
	t.Helper()
	order := domain.Order{
		ID:          id,
		Code:        orderedAt.UnixMilli(),
		UserID:      userID,
		Status:      status,
		TotalAmount: decimal.NewFromInt(10),
		OrderedAt:   orderedAt,
		UpdatedAt:   orderedAt,
	}
	if err := store.Create(context.Background(), order); err != nil {
		t.Fatalf("failed to seed order: %v", err)
	}
}

type failingRepository struct {
	ports.OrderRepository
	err error
}

func (r failingRepository) GetByID(context.Context, string) (*domain.Order, error) {
	return nil, r.err
}

func TestGetOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seed(t, store, "order-1", "user-1", domain.StatusPendingPayment, time.Now())
	handler := queries.NewGetOrderQueryHandler(store)

	t.Run("returns order to its owner", func(t *testing.T) {
		order, err := handler.Handle(ctx, queries.GetOrderQuery{Actor: domain.Actor{UserID: "user-1"}, OrderID: "order-1"})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if order.ID != "order-1" {
			t.Errorf("expected order-1, got %s", order.ID)
		}
	})

	t.Run("returns order to admin", func(t *testing.T) {
		if _, err := handler.Handle(ctx, queries.GetOrderQuery{Actor: domain.Actor{UserID: "a", Admin: true}, OrderID: "order-1"}); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
	})

	t.Run("hides order from other users", func(t *testing.T) {
		_, err := handler.Handle(ctx, queries.GetOrderQuery{Actor: domain.Actor{UserID: "user-2"}, OrderID: "order-1"})
		if !errors.Is(err, domain.ErrOrderNotFound) {
			t.Fatalf("expected ErrOrderNotFound, got: %v", err)
		}
	})

	t.Run("maps missing order", func(t *testing.T) {
		_, err := handler.Handle(ctx, queries.GetOrderQuery{Actor: domain.Actor{UserID: "user-1"}, OrderID: "nope"})
		if !errors.Is(err, domain.ErrOrderNotFound) {
			t.Fatalf("expected ErrOrderNotFound, got: %v", err)
		}
	})

	t.Run("requires order id", func(t *testing.T) {
		_, err := handler.Handle(ctx, queries.GetOrderQuery{Actor: domain.Actor{UserID: "user-1"}})
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Fatalf("expected ErrInvalidRequest, got: %v", err)
		}
	})

	t.Run("propagates repository errors", func(t *testing.T) {
		boom := errors.New("connection reset")
		failing := queries.NewGetOrderQueryHandler(failingRepository{err: boom})

		_, err := failing.Handle(ctx, queries.GetOrderQuery{OrderID: "order-1"})
		if !errors.Is(err, boom) {
			t.Fatalf("expected wrapped repository error, got: %v", err)
		}
	})
}

func TestListOrders(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		seed(t, store, fmt.Sprintf("u1-%02d", i), "user-1", domain.StatusPendingPayment, base.Add(time.Duration(i)*time.Minute))
	}
	seed(t, store, "u2-00", "user-2", domain.StatusShipped, base.Add(time.Hour))
	handler := queries.NewListOrdersQueryHandler(store)

	t.Run("customer sees own orders with default page size", func(t *testing.T) {
		orders, err := handler.Handle(ctx, queries.ListOrdersQuery{Actor: domain.Actor{UserID: "user-1"}})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if len(orders) != queries.DefaultPageSize {
			t.Fatalf("expected %d orders, got %d", queries.DefaultPageSize, len(orders))
		}
		if orders[0].ID != "u1-24" {
			t.Errorf("expected newest order first, got %s", orders[0].ID)
		}
		for _, order := range orders {
			if order.UserID != "user-1" {
				t.Errorf("unexpected order of %s in customer listing", order.UserID)
			}
		}
	})

	t.Run("admin filters by status", func(t *testing.T) {
		status := domain.StatusShipped
		orders, err := handler.Handle(ctx, queries.ListOrdersQuery{Actor: domain.Actor{UserID: "a", Admin: true}, Status: &status})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if len(orders) != 1 || orders[0].ID != "u2-00" {
			t.Errorf("expected only u2-00, got %v", orders)
		}
	})

	t.Run("second page holds the remainder", func(t *testing.T) {
		orders, err := handler.Handle(ctx, queries.ListOrdersQuery{Actor: domain.Actor{UserID: "user-1"}, Page: 2})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if len(orders) != 5 {
			t.Errorf("expected 5 orders, got %d", len(orders))
		}
	})

	t.Run("rejects oversized pages", func(t *testing.T) {
		_, err := handler.Handle(ctx, queries.ListOrdersQuery{Actor: domain.Actor{UserID: "user-1"}, PageSize: 101})
		if !errors.Is(err, domain.ErrInvalidRequest) {
			t.Fatalf("expected ErrInvalidRequest, got: %v", err)
		}
	})
}
