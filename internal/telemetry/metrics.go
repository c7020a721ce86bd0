package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// InitMeterProvider initializes the Prometheus exporter and MeterProvider.
// It returns an http.Handler for the /metrics endpoint and a shutdown function.
func InitMeterProvider(serviceName, serviceVersion string) (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	return promhttp.Handler(), mp.Shutdown, nil
}

// OrderMetrics carries the order lifecycle counters. A nil *OrderMetrics is
// valid and records nothing, so wiring it stays optional.
type OrderMetrics struct {
	placed    metric.Int64Counter
	cancelled metric.Int64Counter
	rejected  metric.Int64Counter
	refunded  metric.Int64Counter
}

func NewOrderMetrics() (*OrderMetrics, error) {
	meter := otel.Meter("storefront/orders")

	placed, err := meter.Int64Counter("storefront.orders.placed",
		metric.WithDescription("Orders successfully placed"))
	if err != nil {
		return nil, err
	}

	cancelled, err := meter.Int64Counter("storefront.orders.cancelled",
		metric.WithDescription("Orders cancelled"))
	if err != nil {
		return nil, err
	}

	rejected, err := meter.Int64Counter("storefront.checkout.rejected",
		metric.WithDescription("Checkout attempts rejected before commit"))
	if err != nil {
		return nil, err
	}

	refunded, err := meter.Int64Counter("storefront.refunds.processed",
		metric.WithDescription("Refunds recorded against orders"))
	if err != nil {
		return nil, err
	}

	return &OrderMetrics{placed: placed, cancelled: cancelled, rejected: rejected, refunded: refunded}, nil
}

func (m *OrderMetrics) OrderPlaced(ctx context.Context) {
	if m == nil {
		return
	}
	m.placed.Add(ctx, 1)
}

func (m *OrderMetrics) OrderCancelled(ctx context.Context) {
	if m == nil {
		return
	}
	m.cancelled.Add(ctx, 1)
}

func (m *OrderMetrics) CheckoutRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *OrderMetrics) RefundProcessed(ctx context.Context) {
	if m == nil {
		return
	}
	m.refunded.Add(ctx, 1)
}
