package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	ordersCreatedTotal      metric.Int64Counter
	orderCreationDuration   metric.Float64Histogram
	statusTransitionsTotal  metric.Int64Counter
	paymentCallbacksTotal   metric.Int64Counter
	paymentCallbackDuration metric.Float64Histogram
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.ordersCreatedTotal, err = meter.Int64Counter(
		"orders_created_total",
		metric.WithDescription("Total number of order creation attempts"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create orders_created_total counter: %w", err)
	}

	m.orderCreationDuration, err = meter.Float64Histogram(
		"order_creation_duration_seconds",
		metric.WithDescription("Duration of order creation operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_creation_duration histogram: %w", err)
	}

	m.statusTransitionsTotal, err = meter.Int64Counter(
		"order_status_transitions_total",
		metric.WithDescription("Applied order status transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_status_transitions_total counter: %w", err)
	}

	m.paymentCallbacksTotal, err = meter.Int64Counter(
		"payment_callbacks_total",
		metric.WithDescription("Payment gateway callbacks by outcome"),
		metric.WithUnit("{callback}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create payment_callbacks_total counter: %w", err)
	}

	m.paymentCallbackDuration, err = meter.Float64Histogram(
		"payment_callback_duration_seconds",
		metric.WithDescription("Duration of payment callback handling"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create payment_callback_duration histogram: %w", err)
	}

	return m, nil
}

// RecordOrderCreated counts a creation attempt. reason is the error code label for
// failures and ignored on success.
func (m *Metrics) RecordOrderCreated(ctx context.Context, success bool, reason string) {
	attrs := []attribute.KeyValue{attribute.String("status", "success")}
	if !success {
		attrs = []attribute.KeyValue{
			attribute.String("status", "error"),
			attribute.String("reason", reason),
		}
	}
	m.ordersCreatedTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordOrderCreationDuration(ctx context.Context, durationSeconds float64) {
	m.orderCreationDuration.Record(ctx, durationSeconds)
}

func (m *Metrics) RecordStatusTransition(ctx context.Context, from, to string) {
	m.statusTransitionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

func (m *Metrics) RecordPaymentCallback(ctx context.Context, outcome string, durationSeconds float64) {
	m.paymentCallbacksTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
	m.paymentCallbackDuration.Record(ctx, durationSeconds)
}
