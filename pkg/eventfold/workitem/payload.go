package workitem

import (
	"fmt"

	"github.com/randalmurphal/eventfold/pkg/eventfold/event"
)

// EventTransition is the single event type the machine recognizes.
// The requested move lives in the payload: the declared source lane, the
// target lane, and whatever guard fields the move requires.
const EventTransition = "workitem.transition"

// Evidence is the completion proof required to enter the done lane.
type Evidence struct {
	// Repo is the repository the work landed in.
	Repo string

	// Commit is the landed commit.
	Commit string

	// Verdict is the reviewer's verdict (e.g. "approved").
	Verdict string
}

// Complete reports whether all evidence fields are present.
func (e *Evidence) Complete() bool {
	return e != nil && e.Repo != "" && e.Commit != "" && e.Verdict != ""
}

// Record is the decoded transition payload.
type Record struct {
	// From is the lane the producer believes the item is leaving.
	From Lane

	// To is the requested target lane.
	To Lane

	// Force authorizes a transition out of a terminal lane.
	Force bool

	// Reason explains an abandon, block, cancellation, or force override.
	Reason string

	// ReviewRef names the review that requested a rollback to in_progress.
	ReviewRef string

	// Assignee is the node or operator taking the item, when declared.
	Assignee string

	// Evidence is the completion proof, when carried.
	Evidence *Evidence
}

// Decode turns a transition event's payload into a Record.
//
// A missing or non-string "to" field is a decode failure (softened into a
// malformed_payload anomaly by the engine). An unrecognized lane label is
// an UnknownLaneError, which is a contract violation and aborts the fold.
func Decode(evt event.Event) (any, error) {
	payload := evt.Payload()

	rawTo, ok := payload["to"].(string)
	if !ok || rawTo == "" {
		return nil, fmt.Errorf("payload missing %q lane", "to")
	}
	to, err := NormalizeLane(rawTo)
	if err != nil {
		return nil, err
	}
	if to == LaneNone {
		return nil, fmt.Errorf("%q is not a target lane", rawTo)
	}

	rawFrom, _ := payload["from"].(string)
	from, err := NormalizeLane(rawFrom)
	if err != nil {
		return nil, err
	}

	rec := Record{
		From: from,
		To:   to,
	}
	rec.Force, _ = payload["force"].(bool)
	rec.Reason, _ = payload["reason"].(string)
	rec.ReviewRef, _ = payload["review_ref"].(string)
	rec.Assignee, _ = payload["assignee"].(string)

	if raw, ok := payload["evidence"].(map[string]any); ok {
		ev := &Evidence{}
		ev.Repo, _ = raw["repo"].(string)
		ev.Commit, _ = raw["commit"].(string)
		ev.Verdict, _ = raw["verdict"].(string)
		rec.Evidence = ev
	}

	return rec, nil
}
