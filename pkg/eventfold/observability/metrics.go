package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// FoldRecorder records reduction metrics.
// Use NewFoldRecorder() for OTel metrics or NoopFoldRecorder{} when disabled.
type FoldRecorder interface {
	// RecordFold records one fold completion or abort.
	RecordFold(ctx context.Context, machine string, success bool, events int, duration time.Duration)

	// RecordAnomaly records one classified anomaly.
	RecordAnomaly(ctx context.Context, machine, kind string)

	// RecordConflict records one concurrent-group resolution.
	RecordConflict(ctx context.Context, aggregateID, outcome string)
}

// otelRecorder implements FoldRecorder using OpenTelemetry.
type otelRecorder struct {
	folds        metric.Int64Counter
	foldLatency  metric.Float64Histogram
	eventsFolded metric.Int64Counter
	anomalies    metric.Int64Counter
	conflicts    metric.Int64Counter
}

var (
	defaultRecorder     *otelRecorder
	defaultRecorderOnce sync.Once
	defaultRecorderErr  error
)

// getDefaultRecorder returns the default OTel recorder instance.
// Lazily initializes the instruments on first call.
func getDefaultRecorder() (*otelRecorder, error) {
	defaultRecorderOnce.Do(func() {
		defaultRecorder, defaultRecorderErr = newOtelRecorder()
	})
	return defaultRecorder, defaultRecorderErr
}

// newOtelRecorder creates a new OTel recorder instance.
func newOtelRecorder() (*otelRecorder, error) {
	meter := otel.Meter("eventfold")

	folds, err := meter.Int64Counter("eventfold.folds",
		metric.WithDescription("Number of folds executed"),
	)
	if err != nil {
		return nil, err
	}

	foldLatency, err := meter.Float64Histogram("eventfold.fold.latency_ms",
		metric.WithDescription("Fold latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	eventsFolded, err := meter.Int64Counter("eventfold.fold.events",
		metric.WithDescription("Number of canonical events walked by folds"),
	)
	if err != nil {
		return nil, err
	}

	anomalies, err := meter.Int64Counter("eventfold.fold.anomalies",
		metric.WithDescription("Number of anomalies recorded during folds"),
	)
	if err != nil {
		return nil, err
	}

	conflicts, err := meter.Int64Counter("eventfold.conflicts",
		metric.WithDescription("Number of concurrent-group resolutions"),
	)
	if err != nil {
		return nil, err
	}

	return &otelRecorder{
		folds:        folds,
		foldLatency:  foldLatency,
		eventsFolded: eventsFolded,
		anomalies:    anomalies,
		conflicts:    conflicts,
	}, nil
}

// NewFoldRecorder returns a FoldRecorder that uses OpenTelemetry.
// If instrument creation fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewFoldRecorder() FoldRecorder {
	r, err := getDefaultRecorder()
	if err != nil {
		slog.Warn("otel metrics unavailable, using noop recorder", "error", err.Error())
		return NoopFoldRecorder{}
	}
	return r
}

// RecordFold records one fold completion or abort.
func (r *otelRecorder) RecordFold(ctx context.Context, machine string, success bool, events int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("machine", machine),
		attribute.Bool("success", success),
	)
	r.folds.Add(ctx, 1, attrs)
	r.eventsFolded.Add(ctx, int64(events), attrs)
	r.foldLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordAnomaly records one classified anomaly.
func (r *otelRecorder) RecordAnomaly(ctx context.Context, machine, kind string) {
	r.anomalies.Add(ctx, 1, metric.WithAttributes(
		attribute.String("machine", machine),
		attribute.String("kind", kind),
	))
}

// RecordConflict records one concurrent-group resolution.
func (r *otelRecorder) RecordConflict(ctx context.Context, aggregateID, outcome string) {
	r.conflicts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("aggregate_id", aggregateID),
		attribute.String("outcome", outcome),
	))
}
