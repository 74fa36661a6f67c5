package eventfold

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/eventfold/pkg/eventfold/event"
	"github.com/randalmurphal/eventfold/pkg/eventfold/observability"
	"github.com/randalmurphal/eventfold/pkg/eventfold/reduce"
	"github.com/randalmurphal/eventfold/pkg/eventfold/schema"
	"github.com/randalmurphal/eventfold/pkg/eventfold/store"
)

// Engine folds stored event histories into frozen domain state.
// It is safe for concurrent use.
type Engine[S any] struct {
	machine   *reduce.Machine[S]
	events    store.EventStore
	anomalies *store.AnomalyLog
	schemas   *schema.Registry
	logger    *slog.Logger
	recorder  observability.FoldRecorder
	spanner   observability.Spanner
	mode      reduce.Mode
}

// EngineOption configures an Engine.
type EngineOption[S any] func(*Engine[S])

// WithLogger enables structured logging of appends and folds.
func WithLogger[S any](logger *slog.Logger) EngineOption[S] {
	return func(e *Engine[S]) {
		e.logger = logger
	}
}

// WithRecorder enables fold metrics.
func WithRecorder[S any](r observability.FoldRecorder) EngineOption[S] {
	return func(e *Engine[S]) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithMode sets the default anomaly-handling mode for folds.
func WithMode[S any](m reduce.Mode) EngineOption[S] {
	return func(e *Engine[S]) {
		e.mode = m
	}
}

// WithAnomalyLog retains fold anomalies for operator inspection.
func WithAnomalyLog[S any](log *store.AnomalyLog) EngineOption[S] {
	return func(e *Engine[S]) {
		e.anomalies = log
	}
}

// WithSpanner wraps each fold in a trace span.
func WithSpanner[S any](s observability.Spanner) EngineOption[S] {
	return func(e *Engine[S]) {
		if s != nil {
			e.spanner = s
		}
	}
}

// WithSchemas validates appended events against registered payload
// schemas before they are stored.
func WithSchemas[S any](r *schema.Registry) EngineOption[S] {
	return func(e *Engine[S]) {
		e.schemas = r
	}
}

// NewEngine creates an engine folding events with the given machine.
func NewEngine[S any](machine *reduce.Machine[S], events store.EventStore, opts ...EngineOption[S]) *Engine[S] {
	e := &Engine[S]{
		machine:  machine,
		events:   events,
		recorder: observability.NoopFoldRecorder{},
		spanner:  observability.NoopSpanner{},
		mode:     reduce.ModePermissive,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Append validates and stores one event. Duplicate delivery is harmless.
func (e *Engine[S]) Append(ctx context.Context, evt event.Event) error {
	if e.schemas != nil && e.schemas.Has(evt.Type()) {
		if err := e.schemas.Validate(evt); err != nil {
			return err
		}
	}
	if err := e.events.Append(ctx, evt); err != nil {
		return err
	}
	observability.LogAppend(e.logger, evt.AggregateID(), evt.ID(), evt.LamportClock())
	return nil
}

// Fold loads an aggregate's history and reduces it to a frozen Result.
// Per-fold options override the engine defaults.
func (e *Engine[S]) Fold(ctx context.Context, aggregateID string, opts ...reduce.FoldOption) (reduce.Result[S], error) {
	ctx, span := e.spanner.StartFoldSpan(ctx, e.machine.Name(), aggregateID)

	events, err := e.events.Load(ctx, aggregateID)
	if err != nil {
		e.spanner.EndSpanWithError(span, err)
		return reduce.Result[S]{}, err
	}

	foldOpts := append([]reduce.FoldOption{
		reduce.WithMode(e.mode),
		reduce.WithLogger(e.logger),
		reduce.WithRecorder(e.recorder),
	}, opts...)

	result, err := e.machine.Fold(ctx, events, foldOpts...)
	if err != nil {
		e.spanner.EndSpanWithError(span, err)
		return reduce.Result[S]{}, err
	}

	if e.anomalies != nil {
		e.anomalies.Append(e.machine.Name(), aggregateID, result.Anomalies)
	}
	e.spanner.EndSpanWithError(span, nil)
	return result, nil
}

// FoldAll folds every stored aggregate, keyed by aggregate ID.
// The first fold error aborts.
func (e *Engine[S]) FoldAll(ctx context.Context, opts ...reduce.FoldOption) (map[string]reduce.Result[S], error) {
	ids, err := e.events.ListAggregates(ctx)
	if err != nil {
		return nil, err
	}

	results := make(map[string]reduce.Result[S], len(ids))
	for _, id := range ids {
		result, err := e.Fold(ctx, id, opts...)
		if err != nil {
			return nil, err
		}
		results[id] = result
	}
	return results, nil
}

// Anomalies returns up to n newest retained anomalies, newest first.
// Returns nil when no anomaly log is configured.
func (e *Engine[S]) Anomalies(n int) []store.AnomalyEntry {
	if e.anomalies == nil {
		return nil
	}
	return e.anomalies.Recent(n)
}
