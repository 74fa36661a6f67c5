package workitem

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventfold/pkg/eventfold/event"
	"github.com/randalmurphal/eventfold/pkg/eventfold/reduce"
)

var baseTime = time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC)

// move builds a transition event for the shared test item.
func move(t *testing.T, seq int, lamport uint64, payload map[string]any) event.Event {
	t.Helper()
	evt, err := event.New(EventTransition, "wp/WP-7", "n1", lamport, payload,
		event.WithID(fmt.Sprintf("%032d", seq)),
		event.WithTimestamp(baseTime.Add(time.Duration(seq)*time.Millisecond)))
	require.NoError(t, err)
	return evt
}

// completionEvidence is a complete evidence payload fragment.
func completionEvidence() map[string]any {
	return map[string]any{"repo": "missions/core", "commit": "deadbee", "verdict": "approved"}
}

// happyPath returns the five-event lifecycle ending in done.
func happyPath(t *testing.T) []event.Event {
	t.Helper()
	return []event.Event{
		move(t, 1, 1, map[string]any{"from": "none", "to": "planned"}),
		move(t, 2, 2, map[string]any{"from": "planned", "to": "claimed", "assignee": "alice"}),
		move(t, 3, 3, map[string]any{"from": "claimed", "to": "in_progress"}),
		move(t, 4, 4, map[string]any{"from": "in_progress", "to": "for_review"}),
		move(t, 5, 5, map[string]any{"from": "for_review", "to": "done", "evidence": completionEvidence()}),
	}
}

func newTestMachine(t *testing.T) *reduce.Machine[State] {
	t.Helper()
	m, err := NewMachine()
	require.NoError(t, err)
	return m
}

// TestFold_EndToEnd verifies the full lifecycle in any shuffled order:
// final lane done, five events counted, zero anomalies.
func TestFold_EndToEnd(t *testing.T) {
	m := newTestMachine(t)
	events := happyPath(t)

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 10; trial++ {
		shuffled := make([]event.Event, len(events))
		copy(shuffled, events)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		res, err := m.Fold(context.Background(), shuffled)
		require.NoError(t, err)
		assert.Equal(t, LaneDone, res.State.Lane)
		assert.Equal(t, 5, res.EventCount)
		assert.Empty(t, res.Anomalies)
		assert.Equal(t, "alice", res.State.Assignee)
		assert.True(t, res.State.Evidence.Complete())
		assert.Equal(t, []Lane{LanePlanned, LaneClaimed, LaneInProgress, LaneForReview, LaneDone}, res.State.History)
	}
}

// TestFold_PermutationEquality verifies two shuffles produce equal results,
// anomalies included.
func TestFold_PermutationEquality(t *testing.T) {
	m := newTestMachine(t)
	events := happyPath(t)
	// Inject an anomaly so the comparison covers the anomaly list too.
	events = append(events, move(t, 6, 6, map[string]any{"from": "for_review", "to": "done"}))

	forward, err := m.Fold(context.Background(), events)
	require.NoError(t, err)

	reversed := make([]event.Event, len(events))
	for i, evt := range events {
		reversed[len(events)-1-i] = evt
	}
	backward, err := m.Fold(context.Background(), reversed)
	require.NoError(t, err)

	assert.Equal(t, forward, backward)
}

// TestFold_DuplicateDelivery verifies fold(E ++ E) == fold(E).
func TestFold_DuplicateDelivery(t *testing.T) {
	m := newTestMachine(t)
	events := happyPath(t)

	once, err := m.Fold(context.Background(), events)
	require.NoError(t, err)
	twice, err := m.Fold(context.Background(), append(append([]event.Event{}, events...), events...))
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

// TestFold_LaneAliases verifies alias labels normalize before any lookup.
func TestFold_LaneAliases(t *testing.T) {
	m := newTestMachine(t)
	events := []event.Event{
		move(t, 1, 1, map[string]any{"from": "", "to": "todo"}),
		move(t, 2, 2, map[string]any{"from": "backlog", "to": "assigned"}),
		move(t, 3, 3, map[string]any{"from": "claimed", "to": "doing"}),
		move(t, 4, 4, map[string]any{"from": "wip", "to": "review"}),
	}

	res, err := m.Fold(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, LaneForReview, res.State.Lane)
	assert.Empty(t, res.Anomalies)
}

// TestFold_UnknownLane verifies an unmapped label aborts the fold in both
// modes: vocabulary disagreement is a contract violation, not an anomaly.
func TestFold_UnknownLane(t *testing.T) {
	m := newTestMachine(t)
	events := []event.Event{
		move(t, 1, 1, map[string]any{"from": "none", "to": "limbo"}),
	}

	for _, mode := range []reduce.Mode{reduce.ModePermissive, reduce.ModeStrict} {
		_, err := m.Fold(context.Background(), events, reduce.WithMode(mode))
		var laneErr *UnknownLaneError
		require.ErrorAs(t, err, &laneErr, "mode %s", mode)
		assert.Equal(t, "limbo", laneErr.Label)
		assert.ErrorIs(t, err, reduce.ErrContract)
	}
}

// TestFold_TerminalLock verifies that after done, an unforced event is
// recorded as event_after_terminal and the lane stays done.
func TestFold_TerminalLock(t *testing.T) {
	m := newTestMachine(t)
	events := append(happyPath(t),
		move(t, 6, 6, map[string]any{"from": "done", "to": "in_progress"}))

	res, err := m.Fold(context.Background(), events)
	require.NoError(t, err)

	assert.Equal(t, LaneDone, res.State.Lane)
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, reduce.KindAfterTerminal, res.Anomalies[0].Kind)
}

// TestFold_ForcedReopen verifies the modeled overrides out of done: force
// plus a reason is sufficient, with no evidence demanded on the way out.
func TestFold_ForcedReopen(t *testing.T) {
	m := newTestMachine(t)

	for _, target := range []Lane{LaneInProgress, LanePlanned} {
		events := append(happyPath(t),
			move(t, 6, 6, map[string]any{
				"from": "done", "to": string(target),
				"force": true, "reason": "regression found in QA",
			}))

		res, err := m.Fold(context.Background(), events)
		require.NoError(t, err)
		assert.Equal(t, target, res.State.Lane)
		assert.Empty(t, res.Anomalies)
	}
}

// TestFold_ReenteringDoneNeedsEvidence verifies canceled -> done demands
// both force and completion evidence.
func TestFold_ReenteringDoneNeedsEvidence(t *testing.T) {
	m := newTestMachine(t)
	prefix := []event.Event{
		move(t, 1, 1, map[string]any{"from": "none", "to": "planned"}),
		move(t, 2, 2, map[string]any{"from": "planned", "to": "canceled"}),
	}

	unproven := append(append([]event.Event{}, prefix...),
		move(t, 3, 3, map[string]any{"from": "canceled", "to": "done", "force": true, "reason": "reinstated"}))
	res, err := m.Fold(context.Background(), unproven)
	require.NoError(t, err)
	assert.Equal(t, LaneCanceled, res.State.Lane)
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, KindMissingEvidence, res.Anomalies[0].Kind)

	proven := append(append([]event.Event{}, prefix...),
		move(t, 3, 3, map[string]any{
			"from": "canceled", "to": "done",
			"force": true, "reason": "reinstated", "evidence": completionEvidence(),
		}))
	res, err = m.Fold(context.Background(), proven)
	require.NoError(t, err)
	assert.Equal(t, LaneDone, res.State.Lane)
	assert.Empty(t, res.Anomalies)
}

// TestFold_EvidenceGuard verifies a for_review -> done move without
// evidence is rejected and the identical move with evidence succeeds.
func TestFold_EvidenceGuard(t *testing.T) {
	m := newTestMachine(t)
	prefix := happyPath(t)[:4]

	bare := append(append([]event.Event{}, prefix...),
		move(t, 5, 5, map[string]any{"from": "for_review", "to": "done"}))
	res, err := m.Fold(context.Background(), bare)
	require.NoError(t, err)
	assert.Equal(t, LaneForReview, res.State.Lane)
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, KindMissingEvidence, res.Anomalies[0].Kind)

	partial := append(append([]event.Event{}, prefix...),
		move(t, 5, 5, map[string]any{"from": "for_review", "to": "done",
			"evidence": map[string]any{"repo": "missions/core", "commit": "deadbee"}}))
	res, err = m.Fold(context.Background(), partial)
	require.NoError(t, err)
	assert.Equal(t, LaneForReview, res.State.Lane, "partial evidence is no evidence")

	full := append(append([]event.Event{}, prefix...),
		move(t, 5, 5, map[string]any{"from": "for_review", "to": "done", "evidence": completionEvidence()}))
	res, err = m.Fold(context.Background(), full)
	require.NoError(t, err)
	assert.Equal(t, LaneDone, res.State.Lane)
}

// TestFold_ReviewRollback verifies the guarded for_review -> in_progress
// rollback.
func TestFold_ReviewRollback(t *testing.T) {
	m := newTestMachine(t)
	prefix := happyPath(t)[:4]

	unref := append(append([]event.Event{}, prefix...),
		move(t, 5, 5, map[string]any{"from": "for_review", "to": "in_progress"}))
	res, err := m.Fold(context.Background(), unref)
	require.NoError(t, err)
	assert.Equal(t, LaneForReview, res.State.Lane)
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, KindMissingReviewRef, res.Anomalies[0].Kind)

	ref := append(append([]event.Event{}, prefix...),
		move(t, 5, 5, map[string]any{"from": "for_review", "to": "in_progress", "review_ref": "REV-12"}))
	res, err = m.Fold(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, LaneInProgress, res.State.Lane)
	assert.Equal(t, "REV-12", res.State.ReviewRef)
}

// TestFold_AbandonNeedsReason verifies the in_progress -> planned guard.
func TestFold_AbandonNeedsReason(t *testing.T) {
	m := newTestMachine(t)
	prefix := happyPath(t)[:3]

	bare := append(append([]event.Event{}, prefix...),
		move(t, 4, 4, map[string]any{"from": "in_progress", "to": "planned"}))
	res, err := m.Fold(context.Background(), bare)
	require.NoError(t, err)
	assert.Equal(t, LaneInProgress, res.State.Lane)
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, KindMissingReason, res.Anomalies[0].Kind)

	reasoned := append(append([]event.Event{}, prefix...),
		move(t, 4, 4, map[string]any{"from": "in_progress", "to": "planned", "reason": "owner unavailable"}))
	res, err = m.Fold(context.Background(), reasoned)
	require.NoError(t, err)
	assert.Equal(t, LanePlanned, res.State.Lane)
}

// TestFold_BlockedFromAnywhere verifies blocked round-trips.
func TestFold_BlockedFromAnywhere(t *testing.T) {
	m := newTestMachine(t)
	events := []event.Event{
		move(t, 1, 1, map[string]any{"from": "none", "to": "planned"}),
		move(t, 2, 2, map[string]any{"from": "planned", "to": "blocked", "reason": "waiting on connector"}),
		move(t, 3, 3, map[string]any{"from": "blocked", "to": "in_progress"}),
		move(t, 4, 4, map[string]any{"from": "in_progress", "to": "blocked"}),
		move(t, 5, 5, map[string]any{"from": "blocked", "to": "canceled"}),
	}

	res, err := m.Fold(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, LaneCanceled, res.State.Lane)
	assert.Equal(t, "waiting on connector", res.State.BlockedReason)
	assert.Empty(t, res.Anomalies)
}

// TestFold_FromLaneMismatch verifies stale intents are skipped even when
// the declared pair would otherwise be legal.
func TestFold_FromLaneMismatch(t *testing.T) {
	m := newTestMachine(t)
	events := []event.Event{
		move(t, 1, 1, map[string]any{"from": "none", "to": "planned"}),
		// Declares planned -> claimed, but a second copy of the intent
		// arrives after the item already moved on.
		move(t, 2, 2, map[string]any{"from": "planned", "to": "claimed"}),
		move(t, 3, 3, map[string]any{"from": "planned", "to": "claimed"}),
	}

	res, err := m.Fold(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, LaneClaimed, res.State.Lane)
	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, KindFromLaneMismatch, res.Anomalies[0].Kind)
}

// TestFold_ConcurrentRollbackPrecedence verifies concurrent write
// precedence: with a done write and a rollback write at the same clock,
// the one sorting last in total order wins, for both physical arrival
// orders.
func TestFold_ConcurrentRollbackPrecedence(t *testing.T) {
	m := newTestMachine(t)
	prefix := happyPath(t)[:4]

	// Same clock; the rollback carries the later timestamp so it sorts
	// last and its transition overrides the done write's effect.
	done := move(t, 5, 5, map[string]any{"from": "for_review", "to": "done", "evidence": completionEvidence()})
	rollback := move(t, 6, 5, map[string]any{"from": "for_review", "to": "in_progress", "review_ref": "REV-3"})

	for _, order := range [][]event.Event{{done, rollback}, {rollback, done}} {
		events := append(append([]event.Event{}, prefix...), order...)
		res, err := m.Fold(context.Background(), events)
		require.NoError(t, err)
		assert.Equal(t, LaneInProgress, res.State.Lane,
			"total order, not arrival order, decides precedence")
	}
}

// TestFold_StrictMode verifies strict folds abort with the same
// classification a permissive fold would record.
func TestFold_StrictMode(t *testing.T) {
	m := newTestMachine(t)
	events := append(happyPath(t),
		move(t, 6, 6, map[string]any{"from": "done", "to": "planned"}))

	_, err := m.Fold(context.Background(), events, reduce.WithMode(reduce.ModeStrict))
	var strictErr *reduce.StrictFoldError
	require.ErrorAs(t, err, &strictErr)
	assert.Equal(t, reduce.KindAfterTerminal, strictErr.Anomaly.Kind)
}

// TestNormalizeLane covers aliases and rejections.
func TestNormalizeLane(t *testing.T) {
	testCases := []struct {
		in      string
		want    Lane
		wantErr bool
	}{
		{"doing", LaneInProgress, false},
		{"WIP", LaneInProgress, false},
		{"  review  ", LaneForReview, false},
		{"cancelled", LaneCanceled, false},
		{"", LaneNone, false},
		{"limbo", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := NormalizeLane(tc.in)
			if tc.wantErr {
				var laneErr *UnknownLaneError
				assert.ErrorAs(t, err, &laneErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

// TestDecode covers payload decoding edge cases.
func TestDecode(t *testing.T) {
	t.Run("missing to", func(t *testing.T) {
		_, err := Decode(move(t, 1, 1, map[string]any{"from": "none"}))
		assert.Error(t, err)
		assert.NotErrorIs(t, err, reduce.ErrContract, "missing field is malformed, not a contract violation")
	})

	t.Run("to none", func(t *testing.T) {
		_, err := Decode(move(t, 1, 1, map[string]any{"to": "none"}))
		assert.Error(t, err)
	})

	t.Run("full record", func(t *testing.T) {
		rec, err := Decode(move(t, 1, 1, map[string]any{
			"from": "done", "to": "doing", "force": true, "reason": "r",
			"review_ref": "REV-1", "assignee": "bob", "evidence": completionEvidence(),
		}))
		require.NoError(t, err)
		r := rec.(Record)
		assert.Equal(t, LaneDone, r.From)
		assert.Equal(t, LaneInProgress, r.To)
		assert.True(t, r.Force)
		assert.True(t, r.Evidence.Complete())
	})
}
