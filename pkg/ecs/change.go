package ecs

// changeTracker keeps a version per (component, entity index). The clock only moves forward, so a
// reader that remembers the clock at its last visit can tell what changed since then.
type changeTracker struct {
	clock    uint64
	versions [][]uint64 // Component ID -> entity index -> version of the last write
}

func newChangeTracker() changeTracker {
	return changeTracker{versions: make([][]uint64, 0)}
}

// bump records a write of component id on the entity at index.
func (c *changeTracker) bump(id ComponentID, index uint32) {
	for int(id) >= len(c.versions) {
		c.versions = append(c.versions, nil)
	}
	v := c.versions[id]
	if int(index) >= len(v) {
		grown := make([]uint64, int(index)+1, max(int(index)+1, 2*cap(v)))
		copy(grown, v)
		v = grown
		c.versions[id] = v
	}
	c.clock++
	v[index] = c.clock
}

// version returns the clock value of the last write of id on the entity at index.
func (c *changeTracker) version(id ComponentID, index uint32) uint64 {
	if int(id) >= len(c.versions) || int(index) >= len(c.versions[id]) {
		return 0
	}
	return c.versions[id][index]
}

// now returns the current clock.
func (c *changeTracker) now() uint64 {
	return c.clock
}
