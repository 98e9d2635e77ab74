// Package entity allocates and recycles entity handles. The registry is the only authority on
// liveness: every other structure treats an Entity as a weak reference and re-checks it here.
package entity

import (
	"fmt"

	"github.com/argus-labs/lattice/pkg/assert"
	"github.com/argus-labs/lattice/pkg/ecs/internal/sparse"
)

// Entity is a 31-bit handle laid out as generation:11 | index:20.
type Entity uint32

const (
	IndexBits      = 20
	GenerationBits = 11

	IndexMask      = 1<<IndexBits - 1
	GenerationMask = 1<<GenerationBits - 1

	// hiStart splits the index space. Alloc hands out indices below it and AllocHi at or above it,
	// so ids minted remotely never collide with local ones.
	hiStart = 1 << (IndexBits - 1)
)

// New composes a handle from an index and a generation.
func New(index uint32, generation uint16) Entity {
	assert.That(index <= IndexMask, "entity index %d out of range", index)
	return Entity(uint32(generation&GenerationMask)<<IndexBits | index)
}

// Index returns the slot of the entity.
func (e Entity) Index() uint32 {
	return uint32(e) & IndexMask
}

// Generation returns how many times the slot was recycled before this handle was issued.
func (e Entity) Generation() uint16 {
	return uint16(uint32(e)>>IndexBits) & GenerationMask
}

func (e Entity) String() string {
	return fmt.Sprintf("%d:%d", e.Index(), e.Generation())
}

func index(e Entity) uint32 { return e.Index() }

// Registry hands out entity handles and tracks which are alive.
type Registry struct {
	generations []uint16             // Index -> generation of the next handle issued for that slot
	alive       sparse.Dense[Entity] // Live handles, swap-removed on free
	free        [2][]uint32          // Recycled indices per partition, popped FIFO
	next        [2]uint32            // Next never-used index per partition
}

const (
	partLo = 0
	partHi = 1
)

// NewRegistry creates a registry sized for capacity live entities.
func NewRegistry(capacity int) *Registry {
	return &Registry{
		generations: make([]uint16, 0, capacity),
		alive:       sparse.NewDense(index),
		free:        [2][]uint32{make([]uint32, 0), make([]uint32, 0)},
		next:        [2]uint32{0, hiStart},
	}
}

// Alloc returns a fresh handle from the local partition.
func (r *Registry) Alloc() Entity {
	return r.alloc(partLo)
}

// AllocHi returns a fresh handle from the high partition, reserved for replicated entities.
func (r *Registry) AllocHi() Entity {
	return r.alloc(partHi)
}

func (r *Registry) alloc(part int) Entity {
	var idx uint32
	if len(r.free[part]) > 0 {
		idx = r.free[part][0]
		r.free[part] = r.free[part][1:]
	} else {
		idx = r.next[part]
		limit := uint32(hiStart)
		if part == partHi {
			limit = IndexMask + 1
		}
		assert.That(idx < limit, "entity index space exhausted")
		r.next[part]++
	}

	for int(idx) >= len(r.generations) {
		r.generations = append(r.generations, 0)
	}

	e := New(idx, r.generations[idx])
	r.alive.Add(e)
	return e
}

// Free releases a live handle. The slot's generation is bumped so the handle, and every copy of
// it, stops being alive.
func (r *Registry) Free(e Entity) {
	r.Check(e)

	r.alive.Remove(e)
	idx := e.Index()
	r.generations[idx] = (r.generations[idx] + 1) & GenerationMask

	part := partLo
	if idx >= hiStart {
		part = partHi
	}
	r.free[part] = append(r.free[part], idx)
}

// IsAlive reports whether the handle refers to a live entity.
func (r *Registry) IsAlive(e Entity) bool {
	return r.alive.Has(e)
}

// Check fails fast if the handle is not alive.
func (r *Registry) Check(e Entity) {
	assert.That(r.IsAlive(e), "entity %s is not alive", e)
}

// Len returns the number of live entities.
func (r *Registry) Len() int {
	return r.alive.Len()
}

// Alive returns the live handles. The slice is invalidated by the next Alloc or Free.
func (r *Registry) Alive() []Entity {
	return r.alive.Keys()
}
