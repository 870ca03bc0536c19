package adapters

import (
	"context"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/dejobratic/storefront/internal/rabbitmq"
	"github.com/dejobratic/storefront/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

type ObservableEventBus struct {
	bus     ports.EventBus
	metrics *rabbitmq.Metrics
}

func NewObservableEventBus(bus ports.EventBus, metrics *rabbitmq.Metrics) *ObservableEventBus {
	return &ObservableEventBus{
		bus:     bus,
		metrics: metrics,
	}
}

func (e *ObservableEventBus) PublishOrderCreated(ctx context.Context, event domain.OrderCreated) error {
	return e.observe(ctx, "EventBus.PublishOrderCreated", domain.EventOrderCreated, event.OrderID,
		func(ctx context.Context) error { return e.bus.PublishOrderCreated(ctx, event) },
		attribute.Int64("order.code", event.OrderCode),
	)
}

func (e *ObservableEventBus) PublishOrderStatusChanged(ctx context.Context, event domain.OrderStatusChanged) error {
	return e.observe(ctx, "EventBus.PublishOrderStatusChanged", domain.EventOrderStatusChanged, event.OrderID,
		func(ctx context.Context) error { return e.bus.PublishOrderStatusChanged(ctx, event) },
		attribute.String("order.from_status", string(event.From)),
		attribute.String("order.to_status", string(event.To)),
	)
}

func (e *ObservableEventBus) observe(
	ctx context.Context,
	spanName, routingKey, orderID string,
	publish func(context.Context) error,
	attrs ...attribute.KeyValue,
) error {
	ctx, span := telemetry.StartSpan(ctx, spanName, append([]attribute.KeyValue{
		attribute.String("order.id", orderID),
		attribute.String("messaging.system", "rabbitmq"),
		attribute.String("messaging.rabbitmq.destination.routing_key", routingKey),
	}, attrs...)...)
	defer span.End()

	start := time.Now()
	err := publish(ctx)
	e.metrics.RecordPublish(ctx, routingKey, time.Since(start).Seconds(), err == nil)

	telemetry.Finish(span, err)
	return err
}
