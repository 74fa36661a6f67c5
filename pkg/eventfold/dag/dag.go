// Package dag builds the causal dependency graph over a collection of
// events and produces a dependency-respecting order for replay.
//
// The graph is derived from causation IDs: an event's causation_id names
// its parent. Nodes live in a flat arena addressed by integer index, so
// cycle detection and ordering are index walks rather than repeated map
// lookups. A cycle in the causation chain means corrupted data; it always
// fails closed with CyclicDependencyError and never yields a partial order.
package dag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/randalmurphal/eventfold/pkg/eventfold/event"
)

// CyclicDependencyError indicates the causation chain contains a cycle.
type CyclicDependencyError struct {
	// Members are the event IDs caught in (or downstream of) the cycle,
	// in total order.
	Members []string
}

// Error implements the error interface.
func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("causal graph contains a cycle involving: %s", strings.Join(e.Members, " -> "))
}

// DAG is an immutable causal dependency graph.
// Build one with Build; the zero value is not usable.
type DAG struct {
	// events holds the canonical (sorted, deduplicated) node arena.
	events []event.Event

	// index maps normalized event IDs to arena positions.
	index map[string]int

	// parents[i] is the arena index of events[i]'s causing event,
	// or -1 for roots and events whose parent was never delivered.
	parents []int

	// children[i] lists arena indices caused by events[i], in arena order.
	children [][]int
}

// Build constructs the causal graph for a collection of events.
// The input is canonicalized first, so duplicates and arbitrary arrival
// order are harmless. Causation IDs that reference unknown events are
// tolerated: those events are treated as roots, since the rest of their
// history may live on another aggregate or have been compacted away.
// An event naming itself as its cause is a one-event cycle; it stays in
// the graph and DependencyOrder fails on it.
func Build(events []event.Event) *DAG {
	arena := event.Canonicalize(events)

	index := make(map[string]int, len(arena))
	for i, evt := range arena {
		index[evt.ID()] = i
	}

	parents := make([]int, len(arena))
	children := make([][]int, len(arena))
	for i, evt := range arena {
		parents[i] = -1
		if pid := evt.CausationID(); pid != "" {
			if p, ok := index[pid]; ok {
				parents[i] = p
				children[p] = append(children[p], i)
			}
		}
	}

	return &DAG{
		events:   arena,
		index:    index,
		parents:  parents,
		children: children,
	}
}

// Len returns the number of distinct events in the graph.
func (d *DAG) Len() int { return len(d.events) }

// Roots returns the events with no known causal parent, in total order.
func (d *DAG) Roots() []event.Event {
	var roots []event.Event
	for i, p := range d.parents {
		if p == -1 {
			roots = append(roots, d.events[i])
		}
	}
	return roots
}

// ChildrenOf returns the events directly caused by the given event ID,
// in total order. The ID is normalized before lookup.
func (d *DAG) ChildrenOf(eventID string) []event.Event {
	id, err := event.NormalizeID(eventID)
	if err != nil {
		return nil
	}
	i, ok := d.index[id]
	if !ok {
		return nil
	}
	out := make([]event.Event, len(d.children[i]))
	for n, c := range d.children[i] {
		out[n] = d.events[c]
	}
	return out
}

// DependencyOrder returns the events arranged so every event appears after
// its causal parent. Events unordered by causation keep their total order.
//
// Fails with CyclicDependencyError if the causation chain loops; no partial
// order is ever returned.
func (d *DAG) DependencyOrder() ([]event.Event, error) {
	n := len(d.events)

	indegree := make([]int, n)
	for i, p := range d.parents {
		if p != -1 {
			indegree[i] = 1
		}
	}

	// Ready nodes are drained in arena (total) order, keeping the result
	// deterministic for any input permutation.
	var ready []int
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	out := make([]event.Event, 0, n)
	for len(ready) > 0 {
		sort.Ints(ready)
		i := ready[0]
		ready = ready[1:]

		out = append(out, d.events[i])
		for _, c := range d.children[i] {
			indegree[c]--
			if indegree[c] == 0 {
				ready = append(ready, c)
			}
		}
	}

	if len(out) < n {
		// Everything not emitted sits in or behind a cycle.
		emitted := make(map[string]struct{}, len(out))
		for _, evt := range out {
			emitted[evt.ID()] = struct{}{}
		}
		var members []string
		for _, evt := range d.events {
			if _, ok := emitted[evt.ID()]; !ok {
				members = append(members, evt.ID())
			}
		}
		return nil, &CyclicDependencyError{Members: members}
	}

	return out, nil
}
