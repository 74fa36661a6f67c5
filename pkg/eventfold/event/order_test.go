package event

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mustEvent builds a fixed event for ordering tests.
func mustEvent(t *testing.T, id, aggregateID, nodeID string, lamport uint64, ts time.Time, payload map[string]any) Event {
	t.Helper()
	evt, err := New("test.event", aggregateID, nodeID, lamport, payload,
		WithID(id), WithTimestamp(ts))
	require.NoError(t, err)
	return evt
}

var baseTime = time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC)

// ids returns the event IDs of a slice, for order assertions.
func ids(events []Event) []string {
	out := make([]string, len(events))
	for i, evt := range events {
		out[i] = evt.ID()
	}
	return out
}

// TestSort_LamportDominates verifies the clock is the primary key even when
// wall-clock timestamps disagree.
func TestSort_LamportDominates(t *testing.T) {
	late := mustEvent(t, "00000000000000000000000000000002", "a", "n1", 2, baseTime, nil)
	early := mustEvent(t, "00000000000000000000000000000001", "a", "n1", 1, baseTime.Add(time.Hour), nil)

	sorted := Sort([]Event{late, early})
	assert.Equal(t, []string{early.ID(), late.ID()}, ids(sorted))
}

// TestSort_TimestampBreaksClockTies verifies the secondary key.
func TestSort_TimestampBreaksClockTies(t *testing.T) {
	second := mustEvent(t, "00000000000000000000000000000001", "a", "n1", 5, baseTime.Add(time.Second), nil)
	first := mustEvent(t, "00000000000000000000000000000002", "a", "n2", 5, baseTime, nil)

	sorted := Sort([]Event{second, first})
	assert.Equal(t, []string{first.ID(), second.ID()}, ids(sorted))
}

// TestSort_IDBreaksRemainingTies verifies deterministic ordering when both
// clock and timestamp collide, regardless of input order.
func TestSort_IDBreaksRemainingTies(t *testing.T) {
	a := mustEvent(t, "0000000000000000000000000000000a", "a", "alice", 5, baseTime, nil)
	b := mustEvent(t, "0000000000000000000000000000000b", "a", "bob", 5, baseTime, nil)

	assert.Equal(t, []string{a.ID(), b.ID()}, ids(Sort([]Event{a, b})))
	assert.Equal(t, []string{a.ID(), b.ID()}, ids(Sort([]Event{b, a})))
}

// TestSort_DoesNotMutateInput verifies Sort copies.
func TestSort_DoesNotMutateInput(t *testing.T) {
	a := mustEvent(t, "00000000000000000000000000000001", "a", "n1", 2, baseTime, nil)
	b := mustEvent(t, "00000000000000000000000000000002", "a", "n1", 1, baseTime, nil)

	in := []Event{a, b}
	Sort(in)
	assert.Equal(t, []string{a.ID(), b.ID()}, ids(in))
}

// TestCanonicalize_PermutationInvariance verifies that any shuffle of the
// same multiset produces the identical canonical sequence.
func TestCanonicalize_PermutationInvariance(t *testing.T) {
	var events []Event
	for i := 0; i < 20; i++ {
		events = append(events, mustEvent(t,
			uuidWithSuffix(t, i),
			"mission/M001", "n1", uint64(i%7), baseTime.Add(time.Duration(i)*time.Millisecond), nil))
	}

	want := Canonicalize(events)

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 10; trial++ {
		shuffled := make([]Event, len(events))
		copy(shuffled, events)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		assert.Equal(t, ids(want), ids(Canonicalize(shuffled)))
	}
}

// TestCanonicalize_DuplicationIdempotence verifies E ++ E collapses to E.
func TestCanonicalize_DuplicationIdempotence(t *testing.T) {
	a := mustEvent(t, "00000000000000000000000000000001", "a", "n1", 1, baseTime, nil)
	b := mustEvent(t, "00000000000000000000000000000002", "a", "n1", 2, baseTime, nil)

	once := Canonicalize([]Event{a, b})
	twice := Canonicalize([]Event{a, b, a, b, b})
	assert.Equal(t, ids(once), ids(twice))
}

// TestDedup_KeepsFirstOccurrence verifies the first sorted copy survives.
func TestDedup_KeepsFirstOccurrence(t *testing.T) {
	orig := mustEvent(t, "00000000000000000000000000000001", "a", "n1", 1, baseTime, map[string]any{"copy": "first"})
	dup := mustEvent(t, "00000000000000000000000000000001", "a", "n1", 1, baseTime.Add(time.Minute), map[string]any{"copy": "second"})

	out := Dedup(Sort([]Event{dup, orig}))
	require.Len(t, out, 1)
	assert.Equal(t, "first", out[0].Payload()["copy"])
}

// TestDedup_EquivalentIDSpellings verifies dedup keys on normalized IDs.
func TestDedup_EquivalentIDSpellings(t *testing.T) {
	hyphenated := mustEvent(t, "A3F2C9D1-E8B7-4F60-92C1-D0A4B5E6F708", "a", "n1", 1, baseTime, nil)
	bare := mustEvent(t, "a3f2c9d1e8b74f6092c1d0a4b5e6f708", "a", "n2", 1, baseTime, nil)

	out := Canonicalize([]Event{hyphenated, bare})
	assert.Len(t, out, 1)
}

// TestConcurrent covers the pairwise concurrency test.
func TestConcurrent(t *testing.T) {
	a := mustEvent(t, "00000000000000000000000000000001", "agg", "alice", 5, baseTime, nil)
	b := mustEvent(t, "00000000000000000000000000000002", "agg", "bob", 5, baseTime, nil)
	otherClock := mustEvent(t, "00000000000000000000000000000003", "agg", "bob", 6, baseTime, nil)
	otherAgg := mustEvent(t, "00000000000000000000000000000004", "other", "bob", 5, baseTime, nil)

	assert.True(t, Concurrent(a, b))
	assert.True(t, Concurrent(b, a))
	assert.False(t, Concurrent(a, a), "irreflexive")
	assert.False(t, Concurrent(a, otherClock), "different clocks are ordered")
	assert.False(t, Concurrent(a, otherAgg), "different aggregates never conflict")
}

// TestConcurrentGroups verifies grouping across interleaved aggregates.
func TestConcurrentGroups(t *testing.T) {
	a1 := mustEvent(t, "00000000000000000000000000000001", "a", "n1", 5, baseTime, nil)
	b1 := mustEvent(t, "00000000000000000000000000000002", "b", "n1", 5, baseTime.Add(time.Millisecond), nil)
	a2 := mustEvent(t, "00000000000000000000000000000003", "a", "n2", 5, baseTime.Add(2*time.Millisecond), nil)
	solo := mustEvent(t, "00000000000000000000000000000004", "a", "n1", 6, baseTime, nil)

	groups := ConcurrentGroups([]Event{solo, a2, b1, a1})
	require.Len(t, groups, 1)
	assert.Equal(t, []string{a1.ID(), a2.ID()}, ids(groups[0]))
}

// uuidWithSuffix builds a deterministic valid UUID string from an index.
func uuidWithSuffix(t *testing.T, i int) string {
	t.Helper()
	const hex = "0123456789abcdef"
	return "00000000-0000-4000-8000-0000000000" + string(hex[(i/16)%16]) + string(hex[i%16])
}
