package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopFoldRecorder is a FoldRecorder that does nothing.
// Use when metrics are disabled to avoid overhead.
type NoopFoldRecorder struct{}

// Compile-time interface check.
var _ FoldRecorder = NoopFoldRecorder{}

// RecordFold does nothing.
func (NoopFoldRecorder) RecordFold(_ context.Context, _ string, _ bool, _ int, _ time.Duration) {}

// RecordAnomaly does nothing.
func (NoopFoldRecorder) RecordAnomaly(_ context.Context, _, _ string) {}

// RecordConflict does nothing.
func (NoopFoldRecorder) RecordConflict(_ context.Context, _, _ string) {}

// NoopSpanner is a Spanner that does nothing.
// Use when tracing is disabled to avoid overhead.
type NoopSpanner struct{}

// Compile-time interface check.
var _ Spanner = NoopSpanner{}

// noopSpan is a span that does nothing.
// We use the OTel noop package for a proper no-op span implementation.
var noopSpan = noop.Span{}

// StartFoldSpan returns the context unchanged and a no-op span.
func (NoopSpanner) StartFoldSpan(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanner) EndSpanWithError(_ trace.Span, _ error) {}

// AddSpanEvent does nothing.
func (NoopSpanner) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}
