package store

import (
	"context"
	"sort"
	"sync"

	"github.com/randalmurphal/eventfold/pkg/eventfold/event"
)

// MemoryStore is an in-memory event and clock store.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string][]event.Event // aggregateID -> events, arrival order
	seen   map[string]struct{}      // event IDs already appended
	clocks map[string]uint64        // nodeID -> clock
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[string][]event.Event),
		seen:   make(map[string]struct{}),
		clocks: make(map[string]uint64),
	}
}

// Append implements EventStore.
func (m *MemoryStore) Append(_ context.Context, evt event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if evt.ID() == "" || evt.AggregateID() == "" {
		return ErrInvalidEvent
	}

	if _, dup := m.seen[evt.ID()]; dup {
		return nil
	}
	m.seen[evt.ID()] = struct{}{}
	m.events[evt.AggregateID()] = append(m.events[evt.AggregateID()], evt)
	return nil
}

// Load implements EventStore.
func (m *MemoryStore) Load(_ context.Context, aggregateID string) ([]event.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	return event.Canonicalize(m.events[aggregateID]), nil
}

// ListAggregates implements EventStore.
func (m *MemoryStore) ListAggregates(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	ids := make([]string, 0, len(m.events))
	for id := range m.events {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// LoadClock implements ClockStore.
func (m *MemoryStore) LoadClock(_ context.Context, nodeID string) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStoreClosed
	}
	return m.clocks[nodeID], nil
}

// SaveClock implements ClockStore.
func (m *MemoryStore) SaveClock(_ context.Context, nodeID string, value uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	m.clocks[nodeID] = value
	return nil
}

// Close implements EventStore.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.events = nil
	m.seen = nil
	m.clocks = nil
	return nil
}

// Len returns the total number of stored events. Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, evts := range m.events {
		count += len(evts)
	}
	return count
}
