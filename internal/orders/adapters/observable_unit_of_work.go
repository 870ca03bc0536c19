package adapters

import (
	"context"
	"time"

	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/dejobratic/storefront/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// ObservableUnitOfWork records one span and one duration sample per transaction.
type ObservableUnitOfWork struct {
	uow     ports.UnitOfWork
	metrics *database.Metrics
}

func NewObservableUnitOfWork(uow ports.UnitOfWork, metrics *database.Metrics) *ObservableUnitOfWork {
	return &ObservableUnitOfWork{
		uow:     uow,
		metrics: metrics,
	}
}

func (u *ObservableUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	ctx, span := telemetry.StartSpan(ctx, "UnitOfWork.Do", attribute.String("db.operation", "transaction"))
	defer span.End()

	start := time.Now()
	err := u.uow.Do(ctx, fn)
	u.metrics.RecordQuery(ctx, "transaction", time.Since(start).Seconds(), err == nil)

	telemetry.Finish(span, err)
	return err
}
