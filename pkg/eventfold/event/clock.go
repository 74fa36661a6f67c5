package event

// Clock is a Lamport logical clock for one producing node.
//
// Two rules govern it (Lamport 1978):
//
//	IR1: before any local event, increment the clock.
//	IR2: on observing a remote event with clock t, set the clock to
//	     max(local, t) + 1.
//
// Clock is not goroutine-safe. Each producing node owns exactly one Clock,
// seeded from its clock store at startup and saved back after each advance;
// see the store package for persistence.
type Clock struct {
	value uint64
}

// NewClock returns a clock seeded with the given last-known value.
// Use zero for a node that has never produced an event.
func NewClock(seed uint64) *Clock {
	return &Clock{value: seed}
}

// Tick implements IR1: increments the clock before a local event.
// Returns the value to stamp on that event.
func (c *Clock) Tick() uint64 {
	c.value++
	return c.value
}

// Observe implements IR2: advances the clock past a remote event's value.
// Returns the new local value.
func (c *Clock) Observe(remote uint64) uint64 {
	if remote > c.value {
		c.value = remote
	}
	c.value++
	return c.value
}

// Value returns the current clock value without advancing it.
func (c *Clock) Value() uint64 { return c.value }
