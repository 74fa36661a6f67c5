// Package workitem implements the work-item lifecycle machine: the fully
// worked instance of the generic reduction engine. A work item moves
// through planning lanes toward completion, with guarded rollbacks, a
// blocked holding lane, and force-only overrides out of terminal lanes.
package workitem

import (
	"fmt"
	"strings"

	"github.com/randalmurphal/eventfold/pkg/eventfold/reduce"
)

// Lane is a work-item lifecycle lane.
type Lane string

// Canonical lanes.
const (
	// LaneNone means no work item exists yet.
	LaneNone Lane = "none"

	LanePlanned    Lane = "planned"
	LaneClaimed    Lane = "claimed"
	LaneInProgress Lane = "in_progress"
	LaneForReview  Lane = "for_review"
	LaneBlocked    Lane = "blocked"

	// LaneDone and LaneCanceled are terminal.
	LaneDone     Lane = "done"
	LaneCanceled Lane = "canceled"
)

// laneAliases maps accepted input labels to canonical lanes.
// Canonical names map to themselves.
var laneAliases = map[string]Lane{
	"none":        LaneNone,
	"planned":     LanePlanned,
	"todo":        LanePlanned,
	"backlog":     LanePlanned,
	"claimed":     LaneClaimed,
	"assigned":    LaneClaimed,
	"in_progress": LaneInProgress,
	"doing":       LaneInProgress,
	"wip":         LaneInProgress,
	"for_review":  LaneForReview,
	"review":      LaneForReview,
	"in_review":   LaneForReview,
	"blocked":     LaneBlocked,
	"on_hold":     LaneBlocked,
	"paused":      LaneBlocked,
	"done":        LaneDone,
	"complete":    LaneDone,
	"completed":   LaneDone,
	"finished":    LaneDone,
	"canceled":    LaneCanceled,
	"cancelled":   LaneCanceled,
}

// UnknownLaneError indicates a lane label with no alias mapping.
// This is a contract violation: it means a producer and this machine
// disagree about the lane vocabulary, so it aborts a fold in both modes
// rather than being skipped silently.
type UnknownLaneError struct {
	// Label is the unrecognized input.
	Label string
}

// Error implements the error interface.
func (e *UnknownLaneError) Error() string {
	return fmt.Sprintf("unknown lane label %q", e.Label)
}

// Unwrap marks the error as a contract violation for the engine.
func (e *UnknownLaneError) Unwrap() error {
	return reduce.ErrContract
}

// NormalizeLane maps an input label to its canonical lane.
// Labels are case-insensitive and surrounding whitespace is ignored.
// The empty label normalizes to LaneNone.
func NormalizeLane(label string) (Lane, error) {
	s := strings.ToLower(strings.TrimSpace(label))
	if s == "" {
		return LaneNone, nil
	}
	lane, ok := laneAliases[s]
	if !ok {
		return "", &UnknownLaneError{Label: label}
	}
	return lane, nil
}

// IsTerminal reports whether the lane is terminal.
func (l Lane) IsTerminal() bool {
	return l == LaneDone || l == LaneCanceled
}

// state converts the lane to an engine state label.
func (l Lane) state() reduce.State {
	return reduce.State(l)
}

// DefaultLanePriorities ranks lanes by lifecycle progress for concurrent
// write arbitration through the merge package. Later lanes outrank
// earlier ones; canceled outranks everything so an explicit cancellation
// is never lost to a progress write.
var DefaultLanePriorities = map[string]int{
	string(LanePlanned):    1,
	string(LaneClaimed):    2,
	string(LaneBlocked):    3,
	string(LaneInProgress): 4,
	string(LaneForReview):  5,
	string(LaneDone):       6,
	string(LaneCanceled):   7,
}
