// Package merge resolves genuinely concurrent writes to one logical value.
//
// Two strategies are provided. ResolveByPriority arbitrates between
// conflicting state writes using a caller-supplied priority ranking with a
// deterministic node-ID tiebreak. The CRDT merges (grow-set union, counter
// sum) need no arbitration because they are commutative and associative by
// construction.
//
// All functions here operate on a "concurrent group": a non-empty set of
// events sharing one aggregate ID and one Lamport clock. Handing in anything
// else is a caller bug and fails fast; see the typed errors in this package.
package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/randalmurphal/eventfold/pkg/eventfold/event"
	"github.com/randalmurphal/eventfold/pkg/eventfold/observability"
)

// ErrEmptyInput indicates a merge was called with no events.
var ErrEmptyInput = errors.New("concurrent group is empty")

// MixedAggregateError indicates the group spans more than one aggregate.
// This is a caller contract violation, never resolved silently.
type MixedAggregateError struct {
	// Aggregates are the distinct aggregate IDs found, in group order.
	Aggregates []string
}

// Error implements the error interface.
func (e *MixedAggregateError) Error() string {
	return fmt.Sprintf("concurrent group spans %d aggregates: %v", len(e.Aggregates), e.Aggregates)
}

// MixedClockError indicates the group spans more than one Lamport clock.
// Events with different clocks are causally ordered, not concurrent.
type MixedClockError struct {
	// Clocks are the distinct clock values found, in group order.
	Clocks []uint64
}

// Error implements the error interface.
func (e *MixedClockError) Error() string {
	return fmt.Sprintf("concurrent group spans %d lamport clocks: %v", len(e.Clocks), e.Clocks)
}

// MissingStateKeyError indicates an event payload carries neither a "state"
// nor a "status" key, so no priority can be assigned.
type MissingStateKeyError struct {
	// EventID is the offending event.
	EventID string
}

// Error implements the error interface.
func (e *MissingStateKeyError) Error() string {
	return fmt.Sprintf("event %s: payload has neither %q nor %q key", e.EventID, "state", "status")
}

// UnknownStateError indicates a state label has no entry in the priority map.
type UnknownStateError struct {
	// EventID is the offending event.
	EventID string
	// State is the label with no priority entry.
	State string
}

// Error implements the error interface.
func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("event %s: state %q has no priority entry", e.EventID, e.State)
}

// Outcome classifies how a resolution was decided.
type Outcome string

// Resolution outcomes.
const (
	// OutcomeNoConflict means the group held a single event.
	OutcomeNoConflict Outcome = "no_conflict"

	// OutcomeTie means multiple events shared the top priority and the
	// node-ID tiebreak decided.
	OutcomeTie Outcome = "tie"

	// OutcomePriority means one event's state outranked the others.
	OutcomePriority Outcome = "priority"
)

// Resolution records the winner of a concurrent group plus enough context
// to audit the decision later.
type Resolution struct {
	// Winner is the event whose write takes effect.
	Winner event.Event

	// Outcome classifies the decision.
	Outcome Outcome

	// Note is a human-readable account of the decision.
	Note string

	// Contributors are all events in the group, in total order.
	Contributors []event.Event
}

// resolveConfig holds per-resolution settings.
type resolveConfig struct {
	ctx      context.Context
	logger   *slog.Logger
	recorder observability.FoldRecorder
}

// ResolveOption configures one resolution call.
type ResolveOption func(*resolveConfig)

// WithLogger logs each resolution's winner and outcome.
func WithLogger(logger *slog.Logger) ResolveOption {
	return func(cfg *resolveConfig) {
		cfg.logger = logger
	}
}

// WithRecorder counts resolutions by outcome.
func WithRecorder(ctx context.Context, r observability.FoldRecorder) ResolveOption {
	return func(cfg *resolveConfig) {
		if r != nil {
			cfg.ctx = ctx
			cfg.recorder = r
		}
	}
}

// ResolveByPriority deterministically picks a winner from a concurrent group.
//
// Each event's state label is read from payload["state"], falling back to
// payload["status"], and ranked through priorities. The highest-ranked event
// wins; ties among equal-priority events break by ascending node ID. A
// single-event group wins trivially with no conflict.
//
// Contract violations (empty group, mixed aggregates, mixed clocks, missing
// or unranked state labels) fail fast with a typed error.
func ResolveByPriority(group []event.Event, priorities map[string]int, opts ...ResolveOption) (Resolution, error) {
	cfg := resolveConfig{
		ctx:      context.Background(),
		recorder: observability.NoopFoldRecorder{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(group) == 0 {
		return Resolution{}, ErrEmptyInput
	}
	if err := validateGroup(group); err != nil {
		return Resolution{}, err
	}

	contributors := event.Canonicalize(group)

	if len(contributors) == 1 {
		winner := contributors[0]
		return cfg.resolved(Resolution{
			Winner:       winner,
			Outcome:      OutcomeNoConflict,
			Note:         fmt.Sprintf("single event %s, no conflict", winner.ID()),
			Contributors: contributors,
		}), nil
	}

	type ranked struct {
		evt      event.Event
		state    string
		priority int
	}

	candidates := make([]ranked, 0, len(contributors))
	for _, evt := range contributors {
		state, err := StateLabel(evt)
		if err != nil {
			return Resolution{}, err
		}
		priority, ok := priorities[state]
		if !ok {
			return Resolution{}, &UnknownStateError{EventID: evt.ID(), State: state}
		}
		candidates = append(candidates, ranked{evt: evt, state: state, priority: priority})
	}

	top := candidates[0].priority
	for _, c := range candidates[1:] {
		if c.priority > top {
			top = c.priority
		}
	}

	var leaders []ranked
	for _, c := range candidates {
		if c.priority == top {
			leaders = append(leaders, c)
		}
	}

	best := leaders[0]
	for _, c := range leaders[1:] {
		if c.evt.NodeID() < best.evt.NodeID() {
			best = c
		}
	}

	if len(leaders) > 1 {
		return cfg.resolved(Resolution{
			Winner:  best.evt,
			Outcome: OutcomeTie,
			Note: fmt.Sprintf("%d events tied at priority %d for state %q; node %s wins by node-ID order",
				len(leaders), top, best.state, best.evt.NodeID()),
			Contributors: contributors,
		}), nil
	}

	return cfg.resolved(Resolution{
		Winner:  best.evt,
		Outcome: OutcomePriority,
		Note: fmt.Sprintf("state %q (priority %d) from node %s outranks %d other write(s)",
			best.state, top, best.evt.NodeID(), len(contributors)-1),
		Contributors: contributors,
	}), nil
}

// resolved emits observability for a completed resolution.
func (cfg *resolveConfig) resolved(res Resolution) Resolution {
	aggregateID := res.Winner.AggregateID()
	observability.LogConflictResolved(cfg.logger, aggregateID, res.Winner.ID(), string(res.Outcome), res.Note)
	cfg.recorder.RecordConflict(cfg.ctx, aggregateID, string(res.Outcome))
	return res
}

// StateLabel extracts the state label from an event payload: the "state"
// key, falling back to "status". Fails with MissingStateKeyError when
// neither is present as a string.
func StateLabel(evt event.Event) (string, error) {
	payload := evt.Payload()
	if s, ok := payload["state"].(string); ok {
		return s, nil
	}
	if s, ok := payload["status"].(string); ok {
		return s, nil
	}
	return "", &MissingStateKeyError{EventID: evt.ID()}
}

// validateGroup enforces the single-aggregate, single-clock contract.
func validateGroup(group []event.Event) error {
	aggregates := distinctStrings(group, event.Event.AggregateID)
	if len(aggregates) > 1 {
		return &MixedAggregateError{Aggregates: aggregates}
	}

	var clocks []uint64
	seen := make(map[uint64]struct{})
	for _, evt := range group {
		if _, ok := seen[evt.LamportClock()]; !ok {
			seen[evt.LamportClock()] = struct{}{}
			clocks = append(clocks, evt.LamportClock())
		}
	}
	if len(clocks) > 1 {
		sort.Slice(clocks, func(i, j int) bool { return clocks[i] < clocks[j] })
		return &MixedClockError{Clocks: clocks}
	}
	return nil
}

// distinctStrings collects distinct values of fn over the group, in order.
func distinctStrings(group []event.Event, fn func(event.Event) string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, evt := range group {
		v := fn(evt)
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
