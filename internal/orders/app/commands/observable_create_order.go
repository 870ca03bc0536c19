package commands

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// ObservableCreateOrderHandler traces checkout and records its outcome by error code.
type ObservableCreateOrderHandler struct {
	next    CreateOrderHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservableCreateOrderHandler(next CreateOrderHandler, logger *slog.Logger, metrics *metrics.Metrics) *ObservableCreateOrderHandler {
	return &ObservableCreateOrderHandler{next: next, logger: logger, metrics: metrics}
}

func (o *ObservableCreateOrderHandler) Handle(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "CreateOrderCommand.Handle",
		attribute.String("user.id", cmd.UserID),
		attribute.String("order.payment_method", string(cmd.PaymentMethod)),
		attribute.String("order.shipping_method", string(cmd.ShippingMethod)),
	)
	defer span.End()

	start := time.Now()
	order, err := o.next.Handle(ctx, cmd)
	o.metrics.RecordOrderCreationDuration(ctx, time.Since(start).Seconds())
	o.metrics.RecordOrderCreated(ctx, err == nil, errorCode(err))
	telemetry.Finish(span, err)

	logger := o.logger.With("user_id", cmd.UserID, "payment_method", cmd.PaymentMethod)
	if err != nil {
		level := slog.LevelWarn
		if errorCode(err) == "internal" {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "checkout failed", "error", err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.Int64("order.code", order.Code),
		attribute.String("order.total_amount", order.TotalAmount.String()),
	)
	logger.InfoContext(ctx, "order created",
		"order_id", order.ID,
		"order_code", order.Code,
		"total_amount", order.TotalAmount.String(),
	)
	return order, nil
}

// errorCode returns the stable business code of err, or "internal".
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return strconv.Itoa(de.Code)
	}
	return "internal"
}
