// Package stage buffers pending commands keyed by logical tick. Ticks may arrive out of order
// (replayed network commands), so buckets live in a B-tree and drain in ascending tick order.
package stage

import (
	"github.com/argus-labs/lattice/pkg/assert"
	"github.com/google/btree"
)

// DefaultDegree is the B-tree degree used when the caller has no preference.
const DefaultDegree = 16

// bucket holds the commands staged for one tick in insertion order.
type bucket[T any] struct {
	tick  uint64
	items []T
}

func lessBucket[T any](a, b *bucket[T]) bool {
	return a.tick < b.tick
}

// Stage is an ordered multi-map from tick to a FIFO list of items.
type Stage[T any] struct {
	tree  *btree.BTreeG[*bucket[T]]
	low   uint64 // Lowest tick that has not been drained yet
	count int    // Total staged items across buckets
}

// New creates an empty stage.
func New[T any](degree int) *Stage[T] {
	assert.That(degree >= 2, "b-tree degree must be at least 2, got %d", degree)
	return &Stage[T]{
		tree:  btree.NewG[*bucket[T]](degree, lessBucket[T]),
		low:   0,
		count: 0,
	}
}

// Insert stages item at tick and returns the tick it was actually filed under. Ticks that were
// already drained are never revisited, so a late item is filed under the oldest open tick.
func (s *Stage[T]) Insert(tick uint64, item T) uint64 {
	tick = max(tick, s.low)

	b, ok := s.tree.Get(&bucket[T]{tick: tick})
	if !ok {
		b = &bucket[T]{tick: tick, items: make([]T, 0, 8)}
		s.tree.ReplaceOrInsert(b)
	}
	b.items = append(b.items, item)
	s.count++
	return tick
}

// DrainTo removes every bucket with tick <= target in ascending order and calls fn for each item,
// FIFO within a tick. Items inserted by fn at a tick <= target are drained in the same call.
// Returns the number of items drained.
func (s *Stage[T]) DrainTo(target uint64, fn func(tick uint64, item T)) int {
	drained := 0
	for {
		b, ok := s.tree.Min()
		if !ok || b.tick > target {
			break
		}
		s.tree.DeleteMin()
		s.count -= len(b.items)

		// Items fn files under an older tick land in this one.
		s.low = max(s.low, b.tick)
		for i := 0; i < len(b.items); i++ {
			fn(b.tick, b.items[i])
			drained++
		}
	}

	if target+1 > s.low {
		s.low = target + 1
	}
	return drained
}

// Len returns the number of staged items.
func (s *Stage[T]) Len() int {
	return s.count
}

// Low returns the oldest tick that can still receive items.
func (s *Stage[T]) Low() uint64 {
	return s.low
}

// Pending returns the number of items staged at tick.
func (s *Stage[T]) Pending(tick uint64) int {
	b, ok := s.tree.Get(&bucket[T]{tick: tick})
	if !ok {
		return 0
	}
	return len(b.items)
}
