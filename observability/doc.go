// Package observability provides OpenTelemetry tracing and metrics for the
// client.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("my-app"))
//	defer tp.Shutdown(ctx)
//
// Every dispatch of a request gets a client span; replays after a refresh
// produce a second span with the same request id.
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("my-app"))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewClientMetrics(observability.Meter(mp))
package observability
