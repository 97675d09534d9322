// Package registry provides a simple in-memory implementation of the
// domain.Registry contract (component F). Entries are registered explicitly
// by callers; there is no filesystem scanning here, matching the design
// note that the discovery mechanism is out of scope for the core.
package registry

import (
	"sort"
	"sync"

	"github.com/nova-quant/pipeline/internal/domain"
)

// InMemory is a mutex-guarded map of custom node type name to its schema
// pair, modeled on the teacher's MetadataStore-style in-memory backends.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string]domain.SchemaPair
}

// New returns an empty registry ready for Register calls.
func New() *InMemory {
	return &InMemory{entries: make(map[string]domain.SchemaPair)}
}

// Register adds or replaces a custom node type's schema pair.
func (r *InMemory) Register(typ string, pair domain.SchemaPair) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[typ] = pair
}

// Unregister removes a custom node type, if present.
func (r *InMemory) Unregister(typ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, typ)
}

// IsCustom implements domain.Registry.
func (r *InMemory) IsCustom(typ string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[typ]
	return ok
}

// Schemas implements domain.Registry.
func (r *InMemory) Schemas(typ string) (domain.SchemaPair, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.entries[typ]
	return p, ok
}

// ValidateReferences implements domain.Registry.
func (r *InMemory) ValidateReferences(types []string) (bool, []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var missing []string
	for _, t := range types {
		if seen[t] {
			continue
		}
		seen[t] = true
		if _, ok := r.entries[t]; !ok {
			missing = append(missing, t)
		}
	}
	sort.Strings(missing)
	return len(missing) == 0, missing
}
