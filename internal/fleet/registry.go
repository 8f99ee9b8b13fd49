package fleet

import (
	"fmt"
	"sync"
)

// Registry is the set of live buses. Buses are never removed; dormant buses
// keep their final index and still count for conflict checks.
type Registry struct {
	mu    sync.RWMutex
	order []*Bus
	byID  map[string]*Bus
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Bus)}
}

func (r *Registry) Add(b *Bus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[b.ID]; ok {
		return fmt.Errorf("bus %q: %w", b.ID, ErrDuplicateBus)
	}
	r.byID[b.ID] = b
	r.order = append(r.order, b)
	return nil
}

func (r *Registry) Get(id string) (*Bus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byID[id]
	return b, ok
}

// All returns the buses in registration order.
func (r *Registry) All() []*Bus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Bus, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Conflicts reports whether any other bus sits on the same waypoint index as b.
func (r *Registry) Conflicts(b *Bus) bool {
	idx := b.Index()
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.order {
		if o.ID != b.ID && o.Index() == idx {
			return true
		}
	}
	return false
}
