package adapters

import (
	"context"
	"time"

	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/dejobratic/storefront/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// ObservableRepository traces and times the order reads served outside a unit of work.
type ObservableRepository struct {
	repo    ports.OrderRepository
	metrics *database.Metrics
}

func NewObservableRepository(repo ports.OrderRepository, metrics *database.Metrics) *ObservableRepository {
	return &ObservableRepository{repo: repo, metrics: metrics}
}

func (r *ObservableRepository) Create(ctx context.Context, order domain.Order) error {
	_, err := observeQuery(ctx, r.metrics, "Create", "create_order", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.repo.Create(ctx, order)
	}, attribute.String("order.id", order.ID), attribute.Int64("order.code", order.Code))
	return err
}

func (r *ObservableRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return observeQuery(ctx, r.metrics, "GetByID", "get_order_by_id", func(ctx context.Context) (*domain.Order, error) {
		return r.repo.GetByID(ctx, id)
	}, attribute.String("order.id", id))
}

func (r *ObservableRepository) GetByCode(ctx context.Context, code int64) (*domain.Order, error) {
	return observeQuery(ctx, r.metrics, "GetByCode", "get_order_by_code", func(ctx context.Context) (*domain.Order, error) {
		return r.repo.GetByCode(ctx, code)
	}, attribute.Int64("order.code", code))
}

func (r *ObservableRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	attrs := []attribute.KeyValue{
		attribute.Int("page", filter.Page),
		attribute.Int("page_size", filter.PageSize),
	}
	if filter.Status != nil {
		attrs = append(attrs, attribute.String("filter.status", string(*filter.Status)))
	}
	if filter.UserID != nil {
		attrs = append(attrs, attribute.String("filter.user_id", *filter.UserID))
	}

	return observeQuery(ctx, r.metrics, "List", "list_orders", func(ctx context.Context) ([]domain.Order, error) {
		return r.repo.List(ctx, filter)
	}, attrs...)
}

func (r *ObservableRepository) TransitionStatus(ctx context.Context, id string, change domain.StatusChange) error {
	_, err := observeQuery(ctx, r.metrics, "TransitionStatus", "transition_order_status", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.repo.TransitionStatus(ctx, id, change)
	},
		attribute.String("order.id", id),
		attribute.String("order.from_status", string(change.From)),
		attribute.String("order.to_status", string(change.To)),
	)
	return err
}

// observeQuery runs fn inside an OrderRepository.<method> span and records its
// latency under operation.
func observeQuery[T any](
	ctx context.Context,
	metrics *database.Metrics,
	method, operation string,
	fn func(ctx context.Context) (T, error),
	attrs ...attribute.KeyValue,
) (T, error) {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository."+method,
		append(attrs, attribute.String("db.operation", operation))...)
	defer span.End()

	start := time.Now()
	result, err := fn(ctx)
	metrics.RecordQuery(ctx, operation, time.Since(start).Seconds(), err == nil)

	telemetry.Finish(span, err)
	return result, err
}
