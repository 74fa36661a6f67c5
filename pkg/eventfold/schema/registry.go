// Package schema provides a registry of payload schemas so producers can
// validate events before emitting them and consumers can reject payloads
// that drifted from the agreed shape, with version compatibility tracking
// across nodes that upgrade at different times.
package schema

import (
	"fmt"
	"sort"
	"sync"

	"github.com/randalmurphal/eventfold/pkg/eventfold/event"
)

// FieldCheck validates one payload field's decoded value.
type FieldCheck func(value any) error

// PayloadSchema describes the expected payload shape for one event type at
// one version.
type PayloadSchema struct {
	// Type is the event type this schema governs (e.g. "workitem.transition").
	Type string

	// Version is the schema version number, starting at 1.
	Version int

	// Description explains the event's purpose.
	Description string

	// Required lists payload fields that must be present and non-nil.
	Required []string

	// Checks maps field names to per-field validators. A checked field
	// that is absent from the payload is skipped unless it is also
	// listed in Required.
	Checks map[string]FieldCheck

	// Compatible lists older versions this schema can still read.
	Compatible []int

	// Deprecated marks the schema as superseded.
	Deprecated bool

	// DeprecationMessage explains what replaced it.
	DeprecationMessage string
}

// IsCompatibleWith reports whether this schema can read payloads written at
// the given version.
func (s *PayloadSchema) IsCompatibleWith(version int) bool {
	if version == s.Version {
		return true
	}
	for _, v := range s.Compatible {
		if v == version {
			return true
		}
	}
	return false
}

// Validate checks an event's payload against this schema.
func (s *PayloadSchema) Validate(evt event.Event) error {
	if evt.Type() != s.Type {
		return fmt.Errorf("event type mismatch: schema %s, event %s", s.Type, evt.Type())
	}

	payload := evt.Payload()
	for _, field := range s.Required {
		v, ok := payload[field]
		if !ok || v == nil {
			return fmt.Errorf("payload field %q is required", field)
		}
	}
	for field, check := range s.Checks {
		v, ok := payload[field]
		if !ok {
			continue
		}
		if err := check(v); err != nil {
			return fmt.Errorf("payload field %q: %w", field, err)
		}
	}
	return nil
}

// Registry manages payload schemas with version support. Safe for
// concurrent use.
type Registry struct {
	mu sync.RWMutex

	// latest maps event type -> highest registered version
	latest map[string]*PayloadSchema

	// versions maps event type -> version -> schema
	versions map[string]map[int]*PayloadSchema
}

// NewRegistry creates an empty schema registry.
func NewRegistry() *Registry {
	return &Registry{
		latest:   make(map[string]*PayloadSchema),
		versions: make(map[string]map[int]*PayloadSchema),
	}
}

// Register adds a schema. A schema with the same type and version is
// replaced.
func (r *Registry) Register(s *PayloadSchema) error {
	if s.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if s.Version <= 0 {
		return fmt.Errorf("version must be positive")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.versions[s.Type] == nil {
		r.versions[s.Type] = make(map[int]*PayloadSchema)
	}
	r.versions[s.Type][s.Version] = s

	if current, ok := r.latest[s.Type]; !ok || s.Version > current.Version {
		r.latest[s.Type] = s
	}
	return nil
}

// Get returns the latest schema for an event type.
func (r *Registry) Get(eventType string) (*PayloadSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.latest[eventType]
	return s, ok
}

// GetVersion returns a specific schema version.
func (r *Registry) GetVersion(eventType string, version int) (*PayloadSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, ok := r.versions[eventType]
	if !ok {
		return nil, false
	}
	s, ok := versions[version]
	return s, ok
}

// Has reports whether any schema exists for the event type.
func (r *Registry) Has(eventType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.latest[eventType]
	return ok
}

// Validate checks an event against the latest schema for its type.
func (r *Registry) Validate(evt event.Event) error {
	r.mu.RLock()
	s, ok := r.latest[evt.Type()]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("unknown event type: %s", evt.Type())
	}
	return s.Validate(evt)
}

// ValidateVersion checks an event against the schema registered at the
// given version, falling back to the latest schema when it declares the
// version compatible.
func (r *Registry) ValidateVersion(evt event.Event, version int) error {
	r.mu.RLock()
	s, ok := r.versions[evt.Type()][version]
	if !ok {
		if latest, has := r.latest[evt.Type()]; has && latest.IsCompatibleWith(version) {
			s, ok = latest, true
		}
	}
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("unknown event type %s at version %d", evt.Type(), version)
	}
	return s.Validate(evt)
}

// Types returns all registered event types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.latest))
	for t := range r.latest {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Versions returns the registered versions for an event type, ascending.
func (r *Registry) Versions(eventType string) []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, ok := r.versions[eventType]
	if !ok {
		return nil
	}
	result := make([]int, 0, len(versions))
	for v := range versions {
		result = append(result, v)
	}
	sort.Ints(result)
	return result
}

// LatestVersion returns the highest registered version for an event type.
func (r *Registry) LatestVersion(eventType string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.latest[eventType]
	if !ok {
		return 0, false
	}
	return s.Version, true
}

// DefaultRegistry is the process-wide schema registry.
var DefaultRegistry = NewRegistry()

// Register adds a schema to the default registry.
func Register(s *PayloadSchema) error {
	return DefaultRegistry.Register(s)
}

// MustRegister adds a schema to the default registry, panicking on error.
// Intended for package init blocks.
func MustRegister(s *PayloadSchema) {
	if err := DefaultRegistry.Register(s); err != nil {
		panic(fmt.Sprintf("failed to register payload schema: %v", err))
	}
}

// StringField returns a FieldCheck requiring a non-empty string.
func StringField() FieldCheck {
	return func(value any) error {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		if s == "" {
			return fmt.Errorf("must not be empty")
		}
		return nil
	}
}

// OneOf returns a FieldCheck requiring the value to be one of the given
// string labels.
func OneOf(labels ...string) FieldCheck {
	return func(value any) error {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		for _, l := range labels {
			if s == l {
				return nil
			}
		}
		return fmt.Errorf("%q is not one of %v", s, labels)
	}
}
