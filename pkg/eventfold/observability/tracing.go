package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the eventfold tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("eventfold")

// Spanner handles trace span lifecycle around folds.
// Use NewSpanner() for OTel tracing or NoopSpanner{} when disabled.
type Spanner interface {
	// StartFoldSpan starts a span covering one fold of an aggregate's
	// history through a machine.
	StartFoldSpan(ctx context.Context, machine, aggregateID string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanner implements Spanner using OpenTelemetry.
type otelSpanner struct{}

// NewSpanner returns a Spanner that uses OpenTelemetry.
//
// The spanner uses the global OTel tracer provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanner() Spanner {
	return &otelSpanner{}
}

// StartFoldSpan starts a span covering one fold.
func (s *otelSpanner) StartFoldSpan(ctx context.Context, machine, aggregateID string) (context.Context, trace.Span) {
	return StartFoldSpan(ctx, machine, aggregateID)
}

// EndSpanWithError completes a span, optionally recording an error.
func (s *otelSpanner) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

// AddSpanEvent adds an event to the current span.
func (s *otelSpanner) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	AddSpanEvent(ctx, name, attrs...)
}

// Convenience functions that operate on the global tracer.
// These are useful for simple cases where you don't need the interface.

// StartFoldSpan starts a span covering one fold.
// Uses the global OTel tracer.
func StartFoldSpan(ctx context.Context, machine, aggregateID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "eventfold.fold",
		trace.WithAttributes(
			attribute.String("machine", machine),
			attribute.String("aggregate.id", aggregateID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
