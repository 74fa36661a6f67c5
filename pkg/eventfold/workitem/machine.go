package workitem

import (
	"strings"

	"github.com/randalmurphal/eventfold/pkg/eventfold/event"
	"github.com/randalmurphal/eventfold/pkg/eventfold/reduce"
)

// Anomaly kinds specific to the work-item machine.
const (
	// KindFromLaneMismatch marks an event whose declared source lane
	// disagrees with the machine's actual lane: a stale or replayed intent.
	KindFromLaneMismatch reduce.Kind = "from_lane_mismatch"

	// KindMissingEvidence marks a move into done without completion proof.
	KindMissingEvidence reduce.Kind = "missing_evidence"

	// KindMissingReviewRef marks a review rollback without a review_ref.
	KindMissingReviewRef reduce.Kind = "missing_review_ref"

	// KindMissingReason marks an abandon without a reason.
	KindMissingReason reduce.Kind = "missing_reason"

)

// State is the frozen projection of one work item's history.
type State struct {
	// Lane is the item's current lane.
	Lane Lane

	// Assignee is whoever last declared themselves on the item.
	Assignee string

	// ReviewRef is the review behind the most recent rollback, if any.
	ReviewRef string

	// BlockedReason explains the current or most recent block.
	BlockedReason string

	// Evidence is the completion proof once the item reached done.
	Evidence *Evidence

	// History lists every lane the item entered, in order.
	History []Lane
}

// nonTerminalLanes are the lanes an existing, unfinished item can occupy.
var nonTerminalLanes = []Lane{LanePlanned, LaneClaimed, LaneInProgress, LaneForReview, LaneBlocked}

// NewMachine compiles the work-item lifecycle machine.
//
// Lanes: planned -> claimed -> in_progress -> for_review -> done|canceled,
// with blocked reachable from (and returning to) any non-terminal lane.
// done and canceled are terminal; leaving them requires force=true with a
// reason, and entering done always requires completion evidence.
func NewMachine() (*reduce.Machine[State], error) {
	d := reduce.NewDefinition[State]("workitem").
		Recognize(EventTransition, Decode).
		Initial(LaneNone.state()).
		Terminal(LaneDone.state(), LaneCanceled.state()).
		InputBy(func(_ event.Event, record any) string {
			return string(record.(Record).To)
		}).
		Precheck(func(_ State, current reduce.State, _ event.Event, record any) error {
			declared := record.(Record).From
			if declared.state() != current {
				return &reduce.GuardError{
					Kind:   KindFromLaneMismatch,
					Reason: "declared from-lane " + string(declared) + " but item is in " + string(current),
				}
			}
			return nil
		}).
		Seed(func() State {
			return State{Lane: LaneNone}
		})

	add := func(from, to Lane, guards ...reduce.GuardFunc[State]) {
		d.Add(reduce.Transition[State]{
			From:   from.state(),
			Input:  string(to),
			To:     to.state(),
			Guards: guards,
			Apply:  apply,
		})
	}

	// Forward path.
	add(LaneNone, LanePlanned)
	add(LanePlanned, LaneClaimed)
	add(LaneClaimed, LaneInProgress)
	add(LaneInProgress, LaneForReview)
	add(LaneForReview, LaneDone, guardEvidence)

	// Guarded rollbacks.
	add(LaneForReview, LaneInProgress, guardReviewRef)
	add(LaneInProgress, LanePlanned, guardReason)

	// Blocking and cancellation from any non-terminal lane.
	for _, lane := range nonTerminalLanes {
		if lane != LaneBlocked {
			add(lane, LaneBlocked)
		}
		add(lane, LaneCanceled)
	}
	add(LaneBlocked, LaneInProgress)

	// Forced overrides out of terminal lanes. Re-entering done still
	// demands completion evidence.
	for _, terminal := range []Lane{LaneDone, LaneCanceled} {
		for _, lane := range nonTerminalLanes {
			add(terminal, lane, guardForce)
		}
	}
	add(LaneDone, LaneCanceled, guardForce)
	add(LaneCanceled, LaneDone, guardForce, guardEvidence)

	return d.Compile()
}

// apply folds an accepted transition into the projection.
func apply(acc State, _ event.Event, record any) State {
	rec := record.(Record)

	acc.Lane = rec.To
	acc.History = append(acc.History, rec.To)

	if rec.Assignee != "" {
		acc.Assignee = rec.Assignee
	}
	if rec.ReviewRef != "" {
		acc.ReviewRef = rec.ReviewRef
	}
	if rec.To == LaneBlocked && rec.Reason != "" {
		acc.BlockedReason = rec.Reason
	}
	if rec.To == LaneDone {
		acc.Evidence = rec.Evidence
	}
	return acc
}

// guardEvidence requires complete completion evidence on the payload.
func guardEvidence(_ State, _ event.Event, record any) error {
	if !record.(Record).Evidence.Complete() {
		return &reduce.GuardError{
			Kind:   KindMissingEvidence,
			Reason: "entering done requires repo, commit, and reviewer verdict",
		}
	}
	return nil
}

// guardReviewRef requires a review reference on a review rollback.
func guardReviewRef(_ State, _ event.Event, record any) error {
	if strings.TrimSpace(record.(Record).ReviewRef) == "" {
		return &reduce.GuardError{
			Kind:   KindMissingReviewRef,
			Reason: "rollback from for_review requires a review_ref",
		}
	}
	return nil
}

// guardReason requires a non-empty reason on an abandon.
func guardReason(_ State, _ event.Event, record any) error {
	if strings.TrimSpace(record.(Record).Reason) == "" {
		return &reduce.GuardError{
			Kind:   KindMissingReason,
			Reason: "abandoning in_progress requires a reason",
		}
	}
	return nil
}

// guardForce requires an explicit forced override with a reason.
// An unforced event at a terminal lane is classified event_after_terminal,
// same as an event with no modeled override at all.
func guardForce(_ State, _ event.Event, record any) error {
	rec := record.(Record)
	if !rec.Force || strings.TrimSpace(rec.Reason) == "" {
		return &reduce.GuardError{
			Kind:   reduce.KindAfterTerminal,
			Reason: "leaving a terminal lane requires force=true and a reason",
		}
	}
	return nil
}
