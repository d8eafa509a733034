package calendar

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ErrDefinitionNotFound is returned when a slug is not registered.
var ErrDefinitionNotFound = errors.New("calendar: definition not found")

// Registry holds the set of recurring event type definitions projected on
// each dispatch cycle.
type Registry struct {
	mu     sync.RWMutex
	defs   map[string]Definition
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		defs:   make(map[string]Definition),
		logger: logger,
	}
}

// Register adds or replaces a definition (upsert by slug).
func (r *Registry) Register(def Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	r.defs[def.Slug] = def
	r.mu.Unlock()

	r.logger.Debug("calendar definition registered", "slug", def.Slug, "kind", def.Rule.Kind)
	return nil
}

// Get returns the definition for a slug.
func (r *Registry) Get(slug string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[slug]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrDefinitionNotFound, slug)
	}
	return def, nil
}

// Remove deletes a definition. Already-projected events are unaffected.
func (r *Registry) Remove(slug string) {
	r.mu.Lock()
	delete(r.defs, slug)
	r.mu.Unlock()
}

// List returns all registered definitions ordered by slug.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		result = append(result, def)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Slug < result[j].Slug
	})
	return result
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}
