package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

type ObservablePaymentCallbackHandler struct {
	next    PaymentCallbackHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservablePaymentCallbackHandler(next PaymentCallbackHandler, logger *slog.Logger, metrics *metrics.Metrics) *ObservablePaymentCallbackHandler {
	return &ObservablePaymentCallbackHandler{next: next, logger: logger, metrics: metrics}
}

func (o *ObservablePaymentCallbackHandler) Handle(ctx context.Context, cmd PaymentCallbackCommand) (domain.CallbackOutcome, error) {
	cb := cmd.Callback
	ctx, span := telemetry.StartSpan(ctx, "PaymentCallbackCommand.Handle",
		attribute.Int64("order.code", cb.OrderCode),
		attribute.String("payment.code", cb.Code),
		attribute.String("payment.status", cb.Status),
		attribute.Bool("payment.cancel", cb.Cancel),
	)
	defer span.End()

	start := time.Now()
	outcome, err := o.next.Handle(ctx, cmd)
	o.metrics.RecordPaymentCallback(ctx, string(outcome), time.Since(start).Seconds())

	span.SetAttributes(attribute.String("payment.callback_outcome", string(outcome)))
	telemetry.Finish(span, err)

	if err != nil {
		o.logger.ErrorContext(ctx, "payment callback failed", "error", err, "order_code", cb.OrderCode)
		return outcome, err
	}
	o.logger.InfoContext(ctx, "payment callback handled", "order_code", cb.OrderCode, "outcome", outcome)
	return outcome, nil
}
