package event

import "sort"

// Compare defines the total order over events.
//
// The key is (lamport_clock, timestamp, event_id) ascending: the Lamport
// clock dominates, the wall-clock timestamp breaks exact-clock ties, and
// the normalized event ID breaks the rest. Because IDs are unique, any two
// distinct events are strictly ordered.
//
// Returns a negative value if a sorts before b, zero only when a and b are
// the same event, and a positive value otherwise.
func Compare(a, b Event) int {
	switch {
	case a.lamport < b.lamport:
		return -1
	case a.lamport > b.lamport:
		return 1
	}

	switch {
	case a.timestamp.Before(b.timestamp):
		return -1
	case a.timestamp.After(b.timestamp):
		return 1
	}

	switch {
	case a.id < b.id:
		return -1
	case a.id > b.id:
		return 1
	}
	return 0
}

// Less reports whether a sorts before b in the total order.
func Less(a, b Event) bool {
	return Compare(a, b) < 0
}

// Sort returns a new slice with the events arranged in total order.
// The input slice is not modified.
func Sort(events []Event) []Event {
	out := make([]Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return Less(out[i], out[j])
	})
	return out
}

// Dedup removes duplicate deliveries from a totally ordered slice, keeping
// the first occurrence of each distinct event ID. Duplication is expected
// and harmless; dropped copies are not anomalies.
//
// The input must already be sorted (see Sort); the result preserves order.
func Dedup(sorted []Event) []Event {
	if len(sorted) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(sorted))
	out := make([]Event, 0, len(sorted))
	for _, evt := range sorted {
		if _, dup := seen[evt.id]; dup {
			continue
		}
		seen[evt.id] = struct{}{}
		out = append(out, evt)
	}
	return out
}

// Canonicalize sorts and deduplicates a collection of events, producing the
// one canonical sequence every replica converges on:
//
//	Canonicalize(E) == Canonicalize(shuffle(E)) == Canonicalize(E ++ E)
//
// for any permutation and any amount of duplicate delivery.
func Canonicalize(events []Event) []Event {
	return Dedup(Sort(events))
}

// Concurrent reports whether two events were produced concurrently: same
// aggregate, same Lamport clock, distinct events. An event is never
// concurrent with itself, and events on different aggregates never
// conflict regardless of clock values.
func Concurrent(a, b Event) bool {
	if a.id == b.id {
		return false
	}
	return a.aggregateID == b.aggregateID && a.lamport == b.lamport
}

// ConcurrentGroups partitions a collection into groups of genuinely
// concurrent events: each returned group shares one aggregate and one
// Lamport clock and contains at least two events. Input is canonicalized
// first; groups come back in total order of their first member, and events
// within a group keep their total order.
func ConcurrentGroups(events []Event) [][]Event {
	canonical := Canonicalize(events)

	type slot struct {
		aggregateID string
		lamport     uint64
	}
	byPosition := make(map[slot][]Event)
	var order []slot
	for _, evt := range canonical {
		key := slot{evt.aggregateID, evt.lamport}
		if _, seen := byPosition[key]; !seen {
			order = append(order, key)
		}
		byPosition[key] = append(byPosition[key], evt)
	}

	var groups [][]Event
	for _, key := range order {
		if group := byPosition[key]; len(group) > 1 {
			groups = append(groups, group)
		}
	}
	return groups
}
