// Package reduce implements the generic deterministic reduction engine:
// the contract every domain state machine in the system follows.
//
// A machine is defined by a finite set of recognized event types with
// decoders, a state space with one initial and zero or more terminal
// states, a transition table with optional guard predicates, and an
// anomaly-handling mode. Folding a collection of events through a compiled
// machine always runs the same pipeline: filter to recognized types, sort
// and deduplicate into the canonical total order, then walk once applying
// transition validation and accumulation, and finally freeze the result.
//
// Two reductions of equal event multisets (up to permutation and duplicate
// delivery) produce equal results.
package reduce

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/eventfold/pkg/eventfold/event"
)

// State is a machine state label.
type State string

// Mode selects how a fold treats anomalies.
type Mode string

// Anomaly-handling modes.
const (
	// ModePermissive collects anomalies into the result and keeps folding.
	// A permissive fold never fails for data-quality problems.
	ModePermissive Mode = "permissive"

	// ModeStrict aborts on the first anomaly with a StrictFoldError.
	// Appropriate where any irregularity must halt processing visibly.
	ModeStrict Mode = "strict"
)

// DecodeFunc turns an event's payload into a typed record.
// Returning an error records a malformed_payload anomaly and skips the
// event, unless the error wraps ErrContract, which aborts the fold.
type DecodeFunc func(evt event.Event) (any, error)

// InputFunc derives the transition-table input from a decoded event.
// The default input is the event type; machines whose single event type
// carries the requested move in its payload override this.
type InputFunc func(evt event.Event, record any) string

// GuardFunc is a predicate over the decoded payload attached to a specific
// transition. A non-nil error rejects the event: a *GuardError keeps its
// own anomaly kind, anything else is recorded as guard_failed.
type GuardFunc[S any] func(acc S, evt event.Event, record any) error

// ApplyFunc folds an accepted event into the domain accumulator and
// returns the updated value.
type ApplyFunc[S any] func(acc S, evt event.Event, record any) S

// PrecheckFunc runs after decode and before the table lookup on every
// recognized event, regardless of which transition it requests. It is the
// hook for machine-wide guards such as declared-state consistency checks.
// current is the state the event is judged from: for a member of a
// concurrent group, the state at the group's first event, not the state
// mid-group.
type PrecheckFunc[S any] func(acc S, current State, evt event.Event, record any) error

// Transition is one row of the transition table.
type Transition[S any] struct {
	// From is the state the machine must currently be in.
	From State

	// Input selects this row; by default an event type, or whatever the
	// definition's InputFunc derives.
	Input string

	// To is the state the machine moves to when the event is accepted.
	To State

	// Guards must all pass for the event to be accepted.
	Guards []GuardFunc[S]

	// Apply updates the accumulator from the accepted event. Optional.
	Apply ApplyFunc[S]
}

type transitionKey struct {
	from  State
	input string
}

// Definition is a mutable builder for a reduction machine.
// Chain the builder methods, then call Compile to produce an immutable
// Machine. Definition is not safe for concurrent use; build from a single
// goroutine.
//
// Builder methods panic on programmer errors (empty identifiers, nil
// functions, duplicate rows); semantic problems are reported by Compile.
type Definition[S any] struct {
	name        string
	decoders    map[string]DecodeFunc
	initial     State
	initialSet  bool
	terminals   map[State]struct{}
	transitions map[transitionKey]Transition[S]
	states      map[State]struct{}
	inputFn     InputFunc
	precheck    PrecheckFunc[S]
	seed        func() S
	mode        Mode
}

// NewDefinition creates a machine definition. The name identifies the
// machine in logs, metrics, and spans.
func NewDefinition[S any](name string) *Definition[S] {
	if name == "" {
		panic("reduce: machine name cannot be empty")
	}
	return &Definition[S]{
		name:        name,
		decoders:    make(map[string]DecodeFunc),
		terminals:   make(map[State]struct{}),
		transitions: make(map[transitionKey]Transition[S]),
		states:      make(map[State]struct{}),
		mode:        ModePermissive,
	}
}

// Recognize registers an event type and its payload decoder.
// Events of unrecognized types are silently filtered before the fold;
// they are not anomalies.
func (d *Definition[S]) Recognize(eventType string, decode DecodeFunc) *Definition[S] {
	if eventType == "" {
		panic("reduce: event type cannot be empty")
	}
	if decode == nil {
		panic("reduce: decoder cannot be nil")
	}
	if _, exists := d.decoders[eventType]; exists {
		panic(fmt.Sprintf("reduce: duplicate recognized type: %s", eventType))
	}
	d.decoders[eventType] = decode
	return d
}

// Initial designates the machine's starting state.
func (d *Definition[S]) Initial(s State) *Definition[S] {
	d.initial = s
	d.initialSet = true
	d.states[s] = struct{}{}
	return d
}

// Terminal marks states from which no transition is accepted except rows
// explicitly present in the table (modeled overrides such as a force-reopen).
func (d *Definition[S]) Terminal(states ...State) *Definition[S] {
	for _, s := range states {
		d.terminals[s] = struct{}{}
		d.states[s] = struct{}{}
	}
	return d
}

// Add registers one transition-table row.
func (d *Definition[S]) Add(t Transition[S]) *Definition[S] {
	if t.Input == "" {
		panic("reduce: transition input cannot be empty")
	}
	key := transitionKey{from: t.From, input: t.Input}
	if _, exists := d.transitions[key]; exists {
		panic(fmt.Sprintf("reduce: duplicate transition (%s, %s)", t.From, t.Input))
	}
	d.transitions[key] = t
	d.states[t.From] = struct{}{}
	d.states[t.To] = struct{}{}
	return d
}

// InputBy overrides how the table input is derived from a decoded event.
func (d *Definition[S]) InputBy(fn InputFunc) *Definition[S] {
	if fn == nil {
		panic("reduce: input function cannot be nil")
	}
	d.inputFn = fn
	return d
}

// Precheck installs a machine-wide guard run on every recognized event
// after decode and before the table lookup.
func (d *Definition[S]) Precheck(fn PrecheckFunc[S]) *Definition[S] {
	d.precheck = fn
	return d
}

// Seed sets the initial domain accumulator. Defaults to the zero value of S.
func (d *Definition[S]) Seed(fn func() S) *Definition[S] {
	d.seed = fn
	return d
}

// DefaultMode sets the anomaly-handling mode folds start with.
// Individual folds may override it with WithMode.
func (d *Definition[S]) DefaultMode(m Mode) *Definition[S] {
	d.mode = m
	return d
}

// Compile validates the definition and produces an immutable Machine.
// Multiple validation errors are joined together.
//
// Validation checks (in order):
//  1. At least one event type must be recognized
//  2. The initial state must be set
//  3. When any rows exist, at least one must leave the initial state
//  4. The initial state must not be terminal
func (d *Definition[S]) Compile() (*Machine[S], error) {
	var errs []error

	if len(d.decoders) == 0 {
		errs = append(errs, ErrNoRecognizedTypes)
	}
	if !d.initialSet {
		errs = append(errs, ErrNoInitialState)
	}

	if d.initialSet {
		if _, terminal := d.terminals[d.initial]; terminal {
			errs = append(errs, fmt.Errorf("%w: %s", ErrInitialIsTerminal, d.initial))
		}
		leaving := false
		for key := range d.transitions {
			if key.from == d.initial {
				leaving = true
				break
			}
		}
		if !leaving && len(d.transitions) > 0 {
			errs = append(errs, fmt.Errorf("%w: %s", ErrInitialUnreachable, d.initial))
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return newMachine(d), nil
}

// Sentinel errors for machine compilation.
var (
	// ErrNoRecognizedTypes indicates Recognize was never called.
	ErrNoRecognizedTypes = errors.New("no recognized event types")

	// ErrNoInitialState indicates Initial was never called.
	ErrNoInitialState = errors.New("initial state not set")

	// ErrInitialIsTerminal indicates the initial state was marked terminal.
	ErrInitialIsTerminal = errors.New("initial state cannot be terminal")

	// ErrInitialUnreachable indicates no transition leaves the initial state.
	ErrInitialUnreachable = errors.New("no transition leaves the initial state")
)
