package rabbitmq

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records how long event publishing takes per routing key.
type Metrics struct {
	publishLatency metric.Float64Histogram
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	publishLatency, err := meter.Float64Histogram(
		"rabbitmq_publish_latency_seconds",
		metric.WithDescription("Latency of publishing order events to RabbitMQ"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create rabbitmq_publish_latency_seconds histogram: %w", err)
	}
	return &Metrics{publishLatency: publishLatency}, nil
}

func (m *Metrics) RecordPublish(ctx context.Context, routingKey string, durationSeconds float64, success bool) {
	status := "published"
	if !success {
		status = "failed"
	}
	m.publishLatency.Record(ctx, durationSeconds, metric.WithAttributes(
		attribute.String("routing_key", routingKey),
		attribute.String("status", status),
	))
}
