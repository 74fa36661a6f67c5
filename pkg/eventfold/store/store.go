// Package store provides durable storage for events, per-node logical
// clocks, and fold anomalies. The memory implementations back tests and
// ephemeral runs; the SQLite implementations are suitable for
// single-process production use.
package store

import (
	"context"
	"errors"

	"github.com/randalmurphal/eventfold/pkg/eventfold/event"
)

// EventStore persists events for later folding.
// Implementations must be safe for concurrent use.
type EventStore interface {
	// Append stores an event. Appending an event whose ID is already
	// stored is a no-op: duplicate delivery is expected and harmless.
	Append(ctx context.Context, evt event.Event) error

	// Load returns every stored event for an aggregate in canonical
	// total order with duplicates removed. Returns an empty slice (not
	// an error) for an unknown aggregate.
	Load(ctx context.Context, aggregateID string) ([]event.Event, error)

	// ListAggregates returns the distinct aggregate IDs with at least
	// one stored event, sorted.
	ListAggregates(ctx context.Context) ([]string, error)

	// Close releases any resources (connections, files).
	Close() error
}

// ClockStore persists each node's lamport clock across restarts.
// Implementations must be safe for concurrent use.
type ClockStore interface {
	// LoadClock returns the last saved clock value for a node, or 0 if
	// the node has never saved one.
	LoadClock(ctx context.Context, nodeID string) (uint64, error)

	// SaveClock stores a node's clock value, overwriting any previous one.
	SaveClock(ctx context.Context, nodeID string, value uint64) error
}

// Sentinel errors for store operations.
var (
	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("event store closed")

	// ErrInvalidEvent indicates an event that cannot be persisted.
	ErrInvalidEvent = errors.New("invalid event")
)
