/*
registry.go - Schema registration and lookup

PURPOSE:
  Provides a registry for entity packages to register their schemas. The
  registry is the closed set of entity types: anything not registered is
  rejected with ErrInvalidEntityType.

HOW IT WORKS:
  1. Entity packages define their Schema
  2. Entity packages register it on init() into DefaultRegistry
  3. Config overrides (factory) may replace a schema at startup
  4. The engine looks schemas up per call

USAGE:
  // In research/schema.go
  func init() {
      generic.DefaultRegistry.MustRegister(Schema())
  }

  schema, err := generic.DefaultRegistry.Lookup("Research")

SEE ALSO:
  - schema.go: Schema definition
  - research/, compliance/, organization/: Registered schemas
*/
package generic

import (
	"sort"
	"sync"
)

// =============================================================================
// SCHEMA REGISTRY
// =============================================================================

// Registry holds the schemas of the known entity types.
type Registry struct {
	mu      sync.RWMutex
	schemas map[EntityType]Schema
}

// DefaultRegistry is filled by the entity packages' init functions.
var DefaultRegistry = NewRegistry()

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[EntityType]Schema)}
}

// Register validates and adds (or replaces) a schema.
func (r *Registry) Register(s Schema) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[s.EntityType] = s
	return nil
}

// MustRegister registers a schema or panics. Use from init().
func (r *Registry) MustRegister(s Schema) {
	if err := r.Register(s); err != nil {
		panic(err)
	}
}

// Lookup finds the schema for an entity type.
func (r *Registry) Lookup(t EntityType) (Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[t]
	if !ok {
		return Schema{}, &InvalidEntityTypeError{EntityType: t}
	}
	return s, nil
}

// EntityTypes returns the registered entity types, sorted.
func (r *Registry) EntityTypes() []EntityType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]EntityType, 0, len(r.schemas))
	for t := range r.schemas {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Schemas returns all registered schemas ordered by entity type.
func (r *Registry) Schemas() []Schema {
	types := r.EntityTypes()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Schema, 0, len(types))
	for _, t := range types {
		out = append(out, r.schemas[t])
	}
	return out
}
