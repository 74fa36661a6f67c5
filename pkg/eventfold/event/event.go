// Package event defines the causal event model for eventfold.
//
// An Event is the unit of history: an immutable record carrying causal
// metadata (Lamport clock, causation and correlation identifiers) around an
// opaque payload. Events produced independently on different nodes are later
// merged into one canonical sequence by the total order in this package.
//
// Design Influences:
//   - Lamport (1978), "Time, Clocks, and the Ordering of Events"
//   - Apache Kafka (correlation IDs, at-least-once delivery)
//   - Event-sourcing envelopes (causation chains, aggregate streams)
package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is an immutable record of something that happened to an aggregate.
// Construct events with New; never modify an Event after construction.
// Two events with the same normalized ID are the same event for every
// purpose, including deduplication.
type Event struct {
	id            string
	eventType     string
	aggregateID   string
	payload       map[string]any
	timestamp     time.Time
	nodeID        string
	lamport       uint64
	causationID   string
	correlationID string
}

// ID returns the normalized, globally unique event identifier.
func (e Event) ID() string { return e.id }

// Type returns the event type tag (e.g. "workitem.transition").
func (e Event) Type() string { return e.eventType }

// AggregateID returns the identifier of the entity this event mutates
// (e.g. "mission/M001").
func (e Event) AggregateID() string { return e.aggregateID }

// Payload returns the opaque key/value payload.
// Callers must treat the returned map as read-only.
func (e Event) Payload() map[string]any { return e.payload }

// Timestamp returns the wall-clock time the event was produced.
// Advisory only: it never decides ordering when the Lamport clock and
// event ID already differ.
func (e Event) Timestamp() time.Time { return e.timestamp }

// NodeID returns the identifier of the producing node.
// Used only as the final deterministic tiebreak during conflict resolution.
func (e Event) NodeID() string { return e.nodeID }

// LamportClock returns the logical clock value assigned by the producer.
// This is the primary ordering key.
func (e Event) LamportClock() uint64 { return e.lamport }

// CausationID returns the ID of the event that causally produced this one,
// or the empty string for causal roots.
func (e Event) CausationID() string { return e.causationID }

// CorrelationID returns the ID shared by all events in one logical
// operation or saga. Defaults to the event's own ID for roots.
func (e Event) CorrelationID() string { return e.correlationID }

// Option configures event creation.
type Option func(*eventConfig)

type eventConfig struct {
	id            string
	timestamp     time.Time
	causationID   string
	correlationID string
}

// WithID sets a specific event ID (default: auto-generated UUID).
// The ID is normalized at construction; New fails if it is not a valid
// 26-character sortable ID or a 36/32-character UUID spelling.
func WithID(id string) Option {
	return func(cfg *eventConfig) {
		cfg.id = id
	}
}

// WithTimestamp sets a specific timestamp (default: time.Now().UTC()).
func WithTimestamp(t time.Time) Option {
	return func(cfg *eventConfig) {
		cfg.timestamp = t
	}
}

// WithCausationID sets the ID of the causing event.
func WithCausationID(id string) Option {
	return func(cfg *eventConfig) {
		cfg.causationID = id
	}
}

// WithCorrelationID sets the correlation ID shared by one logical operation.
func WithCorrelationID(id string) Option {
	return func(cfg *eventConfig) {
		cfg.correlationID = id
	}
}

// New creates an immutable event.
//
// eventType must be non-empty. The payload map is captured as-is; producers
// must not mutate it after the call. The event ID (auto-generated or
// supplied via WithID) and the causation/correlation IDs are normalized to
// canonical textual form.
func New(
	eventType string,
	aggregateID string,
	nodeID string,
	lamport uint64,
	payload map[string]any,
	opts ...Option,
) (Event, error) {
	if eventType == "" {
		return Event{}, ErrEmptyType
	}

	cfg := &eventConfig{
		id:        uuid.NewString(),
		timestamp: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	id, err := NormalizeID(cfg.id)
	if err != nil {
		return Event{}, err
	}

	causationID := cfg.causationID
	if causationID != "" {
		causationID, err = NormalizeID(causationID)
		if err != nil {
			return Event{}, err
		}
	}

	// If no correlation ID, this event is the root of its operation.
	correlationID := cfg.correlationID
	if correlationID == "" {
		correlationID = id
	} else {
		correlationID, err = NormalizeID(correlationID)
		if err != nil {
			return Event{}, err
		}
	}

	return Event{
		id:            id,
		eventType:     eventType,
		aggregateID:   aggregateID,
		payload:       payload,
		timestamp:     cfg.timestamp,
		nodeID:        nodeID,
		lamport:       lamport,
		causationID:   causationID,
		correlationID: correlationID,
	}, nil
}

// NewFromParent creates an event caused by parent.
// It inherits the parent's correlation ID and sets the causation ID,
// both overridable through opts.
func NewFromParent(
	parent Event,
	eventType string,
	nodeID string,
	lamport uint64,
	payload map[string]any,
	opts ...Option,
) (Event, error) {
	parentOpts := []Option{
		WithCorrelationID(parent.CorrelationID()),
		WithCausationID(parent.ID()),
	}
	return New(eventType, parent.AggregateID(), nodeID, lamport, payload, append(parentOpts, opts...)...)
}

// wireEvent is the JSON representation of an Event.
type wireEvent struct {
	ID            string         `json:"event_id"`
	Type          string         `json:"event_type"`
	AggregateID   string         `json:"aggregate_id"`
	Payload       map[string]any `json:"payload,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	NodeID        string         `json:"node_id"`
	LamportClock  uint64         `json:"lamport_clock"`
	CausationID   string         `json:"causation_id,omitempty"`
	CorrelationID string         `json:"correlation_id"`
}

// MarshalJSON implements json.Marshaler.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEvent{
		ID:            e.id,
		Type:          e.eventType,
		AggregateID:   e.aggregateID,
		Payload:       e.payload,
		Timestamp:     e.timestamp,
		NodeID:        e.nodeID,
		LamportClock:  e.lamport,
		CausationID:   e.causationID,
		CorrelationID: e.correlationID,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
// IDs are re-normalized so persisted spellings converge on the canonical form.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	opts := []Option{
		WithID(w.ID),
		WithTimestamp(w.Timestamp),
		WithCorrelationID(w.CorrelationID),
	}
	if w.CausationID != "" {
		opts = append(opts, WithCausationID(w.CausationID))
	}

	evt, err := New(w.Type, w.AggregateID, w.NodeID, w.LamportClock, w.Payload, opts...)
	if err != nil {
		return err
	}
	*e = evt
	return nil
}
