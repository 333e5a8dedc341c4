package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the instruments the saga reports into. Export wiring is a
// deployment concern; with no meter provider configured the instruments are
// no-ops and saga behavior is unaffected.
type Metrics struct {
	ordersCreated   metric.Int64Counter
	ordersTerminal  metric.Int64Counter
	orderDuration   metric.Float64Histogram
	remoteRequests  metric.Int64Counter
	remoteDurations metric.Float64Histogram
}

func MustNewMetrics() *Metrics {
	meter := otel.Meter("order-svc")

	ordersCreated, err := meter.Int64Counter("orders_created_total",
		metric.WithDescription("Orders successfully created"))
	if err != nil {
		panic(err)
	}

	ordersTerminal, err := meter.Int64Counter("orders_terminal_total",
		metric.WithDescription("Orders reaching a terminal status"))
	if err != nil {
		panic(err)
	}

	orderDuration, err := meter.Float64Histogram("order_processing_duration_seconds",
		metric.WithDescription("End to end duration of order saga operations"))
	if err != nil {
		panic(err)
	}

	remoteRequests, err := meter.Int64Counter("remote_requests_total",
		metric.WithDescription("Remote dependency call attempts"))
	if err != nil {
		panic(err)
	}

	remoteDurations, err := meter.Float64Histogram("remote_request_duration_seconds",
		metric.WithDescription("Duration of remote dependency call attempts"))
	if err != nil {
		panic(err)
	}

	return &Metrics{
		ordersCreated:   ordersCreated,
		ordersTerminal:  ordersTerminal,
		orderDuration:   orderDuration,
		remoteRequests:  remoteRequests,
		remoteDurations: remoteDurations,
	}
}

// OrderCreated increments the created-orders counter.
func (m *Metrics) OrderCreated(ctx context.Context) {
	m.ordersCreated.Add(ctx, 1)
}

// OrderTerminal counts an order reaching a terminal status.
func (m *Metrics) OrderTerminal(ctx context.Context, status string) {
	m.ordersTerminal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
	))
}

// ObserveOperation records the duration of one saga operation.
func (m *Metrics) ObserveOperation(ctx context.Context, operation string, d time.Duration) {
	m.orderDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

// RemoteAttempt records one remote call attempt with its outcome.
func (m *Metrics) RemoteAttempt(ctx context.Context, service, outcome string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("outcome", outcome),
	)
	m.remoteRequests.Add(ctx, 1, attrs)
	m.remoteDurations.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("service", service),
	))
}
