// Package capability holds the host-owned state that extensions may affect.
//
// A [World] is a minimal entity store standing in for the simulation engine.
// Each tick the driver creates a [Commands] over the world; the commands value
// is the capability lent to extensions through the bridge. Spawns are recorded
// in call order and applied to the world when the tick flushes them.
package capability

import (
	"slices"
	"sync"
)

// EntityID identifies a spawned entity. IDs start at 1 and never repeat.
type EntityID uint64

// Component is an opaque component name attached to an entity.
type Component string

// Entity is a spawned entity and the extension that requested it.
type Entity struct {
	ID         EntityID
	Origin     string
	Tick       uint64
	Components []Component
}

// World is the entity store mutated through Commands.
type World struct {
	mu       sync.RWMutex
	entities []Entity
	nextID   EntityID
	defaults []Component
}

// WorldOption configures a World.
type WorldOption func(*World)

// WithDefaultComponents sets the composition used by Commands.SpawnDefault.
func WithDefaultComponents(components ...Component) WorldOption {
	return func(w *World) {
		w.defaults = slices.Clone(components)
	}
}

// NewWorld creates an empty world.
func NewWorld(opts ...WorldOption) *World {
	w := &World{nextID: 1}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Commands starts a command surface for one tick.
func (w *World) Commands(tick uint64) *Commands {
	return &Commands{world: w, tick: tick}
}

// Len returns the number of entities in the world.
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entities)
}

// Entities returns a copy of all entities in spawn order.
func (w *World) Entities() []Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Entity, len(w.entities))
	for i, e := range w.entities {
		e.Components = slices.Clone(e.Components)
		out[i] = e
	}
	return out
}

// CountBy returns the number of entities per origin.
func (w *World) CountBy() map[string]int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	counts := make(map[string]int)
	for _, e := range w.entities {
		counts[e.Origin]++
	}
	return counts
}

func (w *World) apply(tick uint64, spawns []Spawn) []EntityID {
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := make([]EntityID, 0, len(spawns))
	for _, s := range spawns {
		id := w.nextID
		w.nextID++
		w.entities = append(w.entities, Entity{
			ID:         id,
			Origin:     s.Origin,
			Tick:       tick,
			Components: s.Components,
		})
		ids = append(ids, id)
	}
	return ids
}

func (w *World) defaultComposition() []Component {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.defaults)
}
