package reduce

import (
	"errors"
	"fmt"
)

// Kind classifies a recoverable irregularity encountered during a fold.
// Domain machines may introduce their own kinds; the constants below are
// the ones the engine itself produces.
type Kind string

// Engine anomaly kinds.
const (
	// KindMalformedPayload marks an event whose payload failed to decode.
	KindMalformedPayload Kind = "malformed_payload"

	// KindInvalidTransition marks an event with no table entry for the
	// machine's current state.
	KindInvalidTransition Kind = "invalid_transition"

	// KindAfterTerminal marks an event arriving after the machine reached
	// a terminal state, with no modeled override.
	KindAfterTerminal Kind = "event_after_terminal"

	// KindGuardFailed marks an event rejected by a transition guard that
	// did not classify itself further.
	KindGuardFailed Kind = "guard_failed"
)

// Anomaly is a recoverable, classified modeling violation recorded during a
// fold. In permissive mode anomalies accumulate in the result; in strict
// mode the first one aborts the fold as a StrictFoldError. Anomalies never
// include duplicate delivery, which is expected and dropped silently.
type Anomaly struct {
	// EventID is the offending event.
	EventID string `json:"event_id"`

	// EventType is the offending event's type tag.
	EventType string `json:"event_type"`

	// Kind classifies the irregularity.
	Kind Kind `json:"kind"`

	// Reason is a human-readable account of what was violated.
	Reason string `json:"reason"`
}

// String renders the anomaly for logs.
func (a Anomaly) String() string {
	return fmt.Sprintf("%s: event %s (%s): %s", a.Kind, a.EventID, a.EventType, a.Reason)
}

// StrictFoldError is returned by strict-mode folds on the first anomaly.
// It carries the same classification a permissive fold would have recorded.
type StrictFoldError struct {
	// Anomaly is the irregularity that aborted the fold.
	Anomaly Anomaly
}

// Error implements the error interface.
func (e *StrictFoldError) Error() string {
	return "strict fold aborted: " + e.Anomaly.String()
}

// ErrContract marks errors that indicate a caller bug or corrupted data
// rather than a normal hazard of concurrent production. A decoder returning
// an error wrapping ErrContract aborts the fold in both modes instead of
// being softened into a malformed_payload anomaly.
var ErrContract = errors.New("contract violation")

// GuardError lets a guard classify its own anomaly kind. A guard returning
// any other error is recorded as KindGuardFailed.
type GuardError struct {
	// Kind is the domain-specific anomaly kind.
	Kind Kind

	// Reason is a human-readable account of the failed check.
	Reason string
}

// Error implements the error interface.
func (e *GuardError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}
