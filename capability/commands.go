package capability

import "slices"

// Spawn is one recorded spawn request.
type Spawn struct {
	Origin     string
	Components []Component
}

// Commands is the tick-scoped capability object. It queues spawn requests in
// call order; Flush applies them to the world.
//
// Commands is not safe for concurrent use. The bridge serializes access.
type Commands struct {
	world   *World
	tick    uint64
	queued  []Spawn
	flushed bool
}

// Tick returns the tick these commands belong to.
func (c *Commands) Tick() uint64 {
	return c.tick
}

// Spawn queues an entity with the given components on behalf of origin.
func (c *Commands) Spawn(origin string, components ...Component) {
	c.queued = append(c.queued, Spawn{
		Origin:     origin,
		Components: slices.Clone(components),
	})
}

// SpawnDefault queues an entity with the world's default composition.
func (c *Commands) SpawnDefault(origin string) {
	c.queued = append(c.queued, Spawn{
		Origin:     origin,
		Components: c.world.defaultComposition(),
	})
}

// Pending returns the queued spawns in call order.
func (c *Commands) Pending() []Spawn {
	return slices.Clone(c.queued)
}

// Flush applies queued spawns to the world and returns the new entity IDs.
// A second Flush is a no-op.
func (c *Commands) Flush() []EntityID {
	if c.flushed {
		return nil
	}
	c.flushed = true
	ids := c.world.apply(c.tick, c.queued)
	c.queued = nil
	return ids
}
