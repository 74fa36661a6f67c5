package eventfold

import (
	"context"
	"sync"

	"github.com/randalmurphal/eventfold/pkg/eventfold/event"
	"github.com/randalmurphal/eventfold/pkg/eventfold/store"
)

// Producer stamps new events with this node's identity and lamport clock,
// persists them, and keeps the clock durable across restarts.
// Safe for concurrent use.
type Producer struct {
	nodeID string
	events store.EventStore
	clocks store.ClockStore

	mu    sync.Mutex
	clock *event.Clock
}

// ProducerOption configures a Producer.
type ProducerOption func(*producerConfig)

type producerConfig struct {
	seed uint64
}

// WithClockSeed floors the producer's clock at the given value, on top of
// whatever the clock store has persisted. Useful when restoring a node
// whose clock store was lost.
func WithClockSeed(seed uint64) ProducerOption {
	return func(c *producerConfig) {
		c.seed = seed
	}
}

// NewProducer creates a producer for nodeID, resuming the clock from the
// clock store so a restart never reissues old clock values.
func NewProducer(ctx context.Context, nodeID string, events store.EventStore, clocks store.ClockStore, opts ...ProducerOption) (*Producer, error) {
	var cfg producerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	value, err := clocks.LoadClock(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if cfg.seed > value {
		value = cfg.seed
	}

	return &Producer{
		nodeID: nodeID,
		events: events,
		clocks: clocks,
		clock:  event.NewClock(value),
	}, nil
}

// NodeID returns the producer's node identity.
func (p *Producer) NodeID() string { return p.nodeID }

// Clock returns the current clock value without advancing it.
func (p *Producer) Clock() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clock.Value()
}

// Emit builds, stamps, and persists a new event, advancing and saving the
// clock. The returned event is the stored one, IDs normalized.
func (p *Producer) Emit(ctx context.Context, eventType, aggregateID string, payload map[string]any, opts ...event.Option) (event.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	lamport := p.clock.Tick()
	evt, err := event.New(eventType, aggregateID, p.nodeID, lamport, payload, opts...)
	if err != nil {
		return event.Event{}, err
	}
	if err := p.events.Append(ctx, evt); err != nil {
		return event.Event{}, err
	}
	if err := p.clocks.SaveClock(ctx, p.nodeID, lamport); err != nil {
		return event.Event{}, err
	}
	return evt, nil
}

// EmitCaused emits an event causally linked to a parent: the clock first
// observes the parent's clock, and causation/correlation IDs carry over.
func (p *Producer) EmitCaused(ctx context.Context, parent event.Event, eventType, aggregateID string, payload map[string]any, opts ...event.Option) (event.Event, error) {
	if err := p.Observe(ctx, parent.LamportClock()); err != nil {
		return event.Event{}, err
	}
	opts = append([]event.Option{
		event.WithCausationID(parent.ID()),
		event.WithCorrelationID(parent.CorrelationID()),
	}, opts...)
	return p.Emit(ctx, eventType, aggregateID, payload, opts...)
}

// Observe advances the clock past a clock value seen from another node and
// persists it. Call this for every event received over whatever transport
// delivers them, so locally emitted events causally follow everything seen.
func (p *Producer) Observe(ctx context.Context, remote uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clocks.SaveClock(ctx, p.nodeID, p.clock.Observe(remote))
}
