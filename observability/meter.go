package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/bryce/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider and installs it
// globally. The returned provider should be shut down on application exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.WithComponent("observability").Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns the client meter from mp, or from the global provider when mp is nil.
func Meter(mp metric.MeterProvider) metric.Meter {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	return mp.Meter(InstrumentationName)
}

// Instrument names.
const (
	MetricRequests        = "bryce.client.requests"
	MetricRequestDuration = "bryce.client.request.duration"
	MetricRefreshes       = "bryce.client.refreshes"
	MetricReplays         = "bryce.client.replays"
	MetricPersistFailures = "bryce.credential.persist_failures"
)

// Request outcomes.
const (
	OutcomeSuccess      = "success"
	OutcomeUnauthorized = "unauthorized"
	OutcomeQueued       = "queued"
	OutcomeError        = "error"
)

// ClientMetrics holds the instruments recorded by the request pipeline.
type ClientMetrics struct {
	requests        metric.Int64Counter
	requestDuration metric.Float64Histogram
	refreshes       metric.Int64Counter
	replays         metric.Int64Counter
	persistFailures metric.Int64Counter
}

// NewClientMetrics creates the client instruments on meter.
func NewClientMetrics(meter metric.Meter) (*ClientMetrics, error) {
	requests, err := meter.Int64Counter(MetricRequests,
		metric.WithDescription("Completed request attempts by method and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricRequests, err)
	}

	requestDuration, err := meter.Float64Histogram(MetricRequestDuration,
		metric.WithDescription("Duration of request attempts in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricRequestDuration, err)
	}

	refreshes, err := meter.Int64Counter(MetricRefreshes,
		metric.WithDescription("Credential refreshes started by reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricRefreshes, err)
	}

	replays, err := meter.Int64Counter(MetricReplays,
		metric.WithDescription("Requests replayed after a refresh"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricReplays, err)
	}

	persistFailures, err := meter.Int64Counter(MetricPersistFailures,
		metric.WithDescription("Credential persistence failures by operation"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricPersistFailures, err)
	}

	return &ClientMetrics{
		requests:        requests,
		requestDuration: requestDuration,
		refreshes:       refreshes,
		replays:         replays,
		persistFailures: persistFailures,
	}, nil
}

// NopClientMetrics returns instruments that record nothing.
func NopClientMetrics() *ClientMetrics {
	m, _ := NewClientMetrics(noop.NewMeterProvider().Meter(InstrumentationName))
	return m
}

// RecordRequest records one completed attempt.
func (m *ClientMetrics) RecordRequest(ctx context.Context, method, outcome string, duration time.Duration) {
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", outcome),
	))
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
	))
}

// RecordRefresh records a refresh burst starting.
func (m *ClientMetrics) RecordRefresh(ctx context.Context, reason string) {
	m.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordReplays records n requests replayed at the end of a burst.
func (m *ClientMetrics) RecordReplays(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	m.replays.Add(ctx, int64(n))
}

// RecordPersistFailure records a credential backend failure.
func (m *ClientMetrics) RecordPersistFailure(ctx context.Context, op string) {
	m.persistFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
