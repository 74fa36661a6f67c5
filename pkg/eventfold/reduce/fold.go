package reduce

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/randalmurphal/eventfold/pkg/eventfold/event"
	"github.com/randalmurphal/eventfold/pkg/eventfold/observability"
)

// Machine is an immutable, compiled reduction machine.
// It is safe for concurrent use: every fold reads only its own input slice
// and writes only to its own freshly allocated accumulator.
type Machine[S any] struct {
	name        string
	decoders    map[string]DecodeFunc
	initial     State
	terminals   map[State]struct{}
	transitions map[transitionKey]Transition[S]
	fromStates  map[State]struct{}
	inputFn     InputFunc
	precheck    PrecheckFunc[S]
	seed        func() S
	mode        Mode
}

// newMachine deep-copies the builder state into an immutable machine.
func newMachine[S any](d *Definition[S]) *Machine[S] {
	decoders := make(map[string]DecodeFunc, len(d.decoders))
	for t, fn := range d.decoders {
		decoders[t] = fn
	}

	terminals := make(map[State]struct{}, len(d.terminals))
	for s := range d.terminals {
		terminals[s] = struct{}{}
	}

	transitions := make(map[transitionKey]Transition[S], len(d.transitions))
	fromStates := make(map[State]struct{})
	for key, t := range d.transitions {
		transitions[key] = t
		fromStates[key.from] = struct{}{}
	}

	inputFn := d.inputFn
	if inputFn == nil {
		inputFn = func(evt event.Event, _ any) string { return evt.Type() }
	}

	seed := d.seed
	if seed == nil {
		seed = func() S {
			var zero S
			return zero
		}
	}

	return &Machine[S]{
		name:        d.name,
		decoders:    decoders,
		initial:     d.initial,
		terminals:   terminals,
		transitions: transitions,
		fromStates:  fromStates,
		inputFn:     inputFn,
		precheck:    d.precheck,
		seed:        seed,
		mode:        d.mode,
	}
}

// Name returns the machine's identifying name.
func (m *Machine[S]) Name() string { return m.name }

// Initial returns the designated initial state.
func (m *Machine[S]) Initial() State { return m.initial }

// IsTerminal reports whether s is a terminal state.
func (m *Machine[S]) IsTerminal(s State) bool {
	_, ok := m.terminals[s]
	return ok
}

// Result is the frozen outcome of one fold. Never modify a Result after it
// is returned; two folds of equal event multisets compare equal.
type Result[S any] struct {
	// State is the final domain accumulator.
	State S

	// Final is the machine state the fold ended in.
	Final State

	// Anomalies are the recoverable irregularities, in processing order.
	// Always empty for strict folds (they abort instead).
	Anomalies []Anomaly

	// EventCount is the number of events walked: recognized types only,
	// after duplicate removal.
	EventCount int

	// LastEventID is the ID of the last event walked, or empty when no
	// recognized events survived dedup.
	LastEventID string
}

// foldConfig holds per-fold settings.
type foldConfig struct {
	mode     Mode
	logger   *slog.Logger
	recorder observability.FoldRecorder
}

// FoldOption configures one fold call.
type FoldOption func(*foldConfig)

// WithMode overrides the machine's default anomaly-handling mode.
func WithMode(m Mode) FoldOption {
	return func(cfg *foldConfig) {
		cfg.mode = m
	}
}

// WithLogger enables structured logging of the fold lifecycle.
func WithLogger(logger *slog.Logger) FoldOption {
	return func(cfg *foldConfig) {
		cfg.logger = logger
	}
}

// WithRecorder enables metrics for the fold.
func WithRecorder(r observability.FoldRecorder) FoldOption {
	return func(cfg *foldConfig) {
		cfg.recorder = r
	}
}

// Fold reduces a collection of events to a frozen Result.
//
// Pipeline, always in this order: filter to recognized event types (others
// are silently ignored), canonicalize (total-order sort plus dedup), then a
// single left-to-right walk applying terminal-lock checks, payload decode,
// transition lookup, and guards to each survivor.
//
// Concurrent events (same aggregate, same lamport clock) each validate
// against the machine state as it stood when their group was first reached,
// and the last accepted member's transition is the one left standing. This
// makes the walk order-independent for concurrent writes without any
// separate arbitration step.
//
// In permissive mode every irregularity becomes an Anomaly in the Result
// and folding continues; the only errors returned are contract violations
// (decode errors wrapping ErrContract). In strict mode the first anomaly
// aborts with a *StrictFoldError carrying the same classification.
func (m *Machine[S]) Fold(ctx context.Context, events []event.Event, opts ...FoldOption) (Result[S], error) {
	cfg := foldConfig{
		mode:     m.mode,
		recorder: observability.NoopFoldRecorder{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	start := time.Now()

	filtered := make([]event.Event, 0, len(events))
	for _, evt := range events {
		if _, ok := m.decoders[evt.Type()]; ok {
			filtered = append(filtered, evt)
		}
	}
	canonical := event.Canonicalize(filtered)

	observability.LogFoldStart(cfg.logger, m.name, len(events), len(canonical))

	current := m.initial
	acc := m.seed()
	var anomalies []Anomaly

	// groupBase pins the state each concurrent group validates against.
	type groupSlot struct {
		aggregate string
		lamport   uint64
	}
	groupBase := make(map[groupSlot]State)

	reject := func(evt event.Event, kind Kind, reason string) *StrictFoldError {
		a := Anomaly{EventID: evt.ID(), EventType: evt.Type(), Kind: kind, Reason: reason}
		observability.LogAnomaly(cfg.logger, m.name, a.EventID, string(a.Kind), a.Reason)
		cfg.recorder.RecordAnomaly(ctx, m.name, string(a.Kind))
		if cfg.mode == ModeStrict {
			cfg.recorder.RecordFold(ctx, m.name, false, len(canonical), time.Since(start))
			return &StrictFoldError{Anomaly: a}
		}
		anomalies = append(anomalies, a)
		return nil
	}

	for _, evt := range canonical {
		// The first event of a (aggregate, clock) group pins the state
		// every member of that group is judged from; for a lone event the
		// base is just the current state.
		slot := groupSlot{aggregate: evt.AggregateID(), lamport: evt.LamportClock()}
		base, seen := groupBase[slot]
		if !seen {
			base = current
			groupBase[slot] = base
		}

		// Terminal lock: with no modeled override row out of a terminal
		// state, further events are rejected without even decoding.
		atTerminal := m.IsTerminal(base)
		if atTerminal {
			if _, any := m.fromStates[base]; !any {
				if ferr := reject(evt, KindAfterTerminal, "state "+string(base)+" is terminal"); ferr != nil {
					return Result[S]{}, ferr
				}
				continue
			}
		}

		record, err := m.decoders[evt.Type()](evt)
		if err != nil {
			if errors.Is(err, ErrContract) {
				observability.LogFoldAborted(cfg.logger, m.name, err)
				cfg.recorder.RecordFold(ctx, m.name, false, len(canonical), time.Since(start))
				return Result[S]{}, err
			}
			if ferr := reject(evt, KindMalformedPayload, err.Error()); ferr != nil {
				return Result[S]{}, ferr
			}
			continue
		}

		if m.precheck != nil {
			if err := m.precheck(acc, base, evt, record); err != nil {
				if ferr := reject(evt, guardKind(err), err.Error()); ferr != nil {
					return Result[S]{}, ferr
				}
				continue
			}
		}

		input := m.inputFn(evt, record)
		t, ok := m.transitions[transitionKey{from: base, input: input}]
		if !ok {
			kind := KindInvalidTransition
			if atTerminal {
				kind = KindAfterTerminal
			}
			if ferr := reject(evt, kind, "no transition from "+string(base)+" on "+input); ferr != nil {
				return Result[S]{}, ferr
			}
			continue
		}

		rejected := false
		for _, guard := range t.Guards {
			if err := guard(acc, evt, record); err != nil {
				if ferr := reject(evt, guardKind(err), err.Error()); ferr != nil {
					return Result[S]{}, ferr
				}
				rejected = true
				break
			}
		}
		if rejected {
			continue
		}

		if t.Apply != nil {
			acc = t.Apply(acc, evt, record)
		}
		current = t.To
	}

	result := Result[S]{
		State:      acc,
		Final:      current,
		Anomalies:  anomalies,
		EventCount: len(canonical),
	}
	if len(canonical) > 0 {
		result.LastEventID = canonical[len(canonical)-1].ID()
	}

	duration := time.Since(start)
	observability.LogFoldComplete(cfg.logger, m.name, string(current), result.EventCount, len(anomalies), float64(duration.Milliseconds()))
	cfg.recorder.RecordFold(ctx, m.name, true, result.EventCount, duration)

	return result, nil
}

// guardKind extracts the anomaly kind from a guard error.
func guardKind(err error) Kind {
	var gerr *GuardError
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return KindGuardFailed
}
