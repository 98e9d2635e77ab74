// Package sparse maps small integer keys (entity indices) to dense row positions.
package sparse

import "github.com/argus-labs/lattice/pkg/assert"

// Set is a sparse array from key to row. Missing keys hold a tombstone.
type Set []int

const initialCapacity = 128
const tombstone = -1

// New creates a sparse set with the default initial capacity.
func New() Set {
	return NewWithCapacity(initialCapacity)
}

// NewWithCapacity creates a sparse set sized for keys below capacity.
func NewWithCapacity(capacity int) Set {
	s := make(Set, capacity)
	for i := range s {
		s[i] = tombstone
	}
	return s
}

// Get returns the row for a key and whether it exists.
func (s *Set) Get(key uint32) (int, bool) {
	if int(key) >= len(*s) {
		return 0, false
	}

	row := (*s)[key]
	if row == tombstone {
		return 0, false
	}
	return row, true
}

// Set stores a row for a key, growing the backing slice if needed.
func (s *Set) Set(key uint32, row int) {
	assert.That(row >= 0, "row must be non-negative, got %d", row)

	if int(key) >= len(*s) {
		oldLen := len(*s)
		newLen := max(oldLen*2, int(key)+1)

		grown := make(Set, newLen)
		copy(grown, *s)
		for i := oldLen; i < newLen; i++ {
			grown[i] = tombstone
		}
		*s = grown
	}

	(*s)[key] = row
}

// Remove tombstones a key. Returns true if the key existed.
func (s *Set) Remove(key uint32) bool {
	if int(key) >= len(*s) || (*s)[key] == tombstone {
		return false
	}
	(*s)[key] = tombstone
	return true
}

// Dense is a swap-remove list of keys with O(1) membership through a sparse index.
type Dense[K ~uint32] struct {
	keys  []K
	rows  Set
	index func(K) uint32
}

// NewDense creates a dense list. index extracts the sparse key from an element, which lets
// callers store generation-tagged handles while indexing by their slot.
func NewDense[K ~uint32](index func(K) uint32) Dense[K] {
	return Dense[K]{
		keys:  make([]K, 0),
		rows:  New(),
		index: index,
	}
}

// Len returns the number of keys.
func (d *Dense[K]) Len() int {
	return len(d.keys)
}

// Keys returns the dense key slice. The slice is invalidated by the next Add or Remove.
func (d *Dense[K]) Keys() []K {
	return d.keys
}

// Has reports whether the exact key is present.
func (d *Dense[K]) Has(key K) bool {
	row, ok := d.rows.Get(d.index(key))
	return ok && d.keys[row] == key
}

// Add appends a key. Adding a key whose slot is already taken is a bug in the caller.
func (d *Dense[K]) Add(key K) {
	_, taken := d.rows.Get(d.index(key))
	assert.That(!taken, "slot %d already present", d.index(key))

	d.keys = append(d.keys, key)
	d.rows.Set(d.index(key), len(d.keys)-1)
}

// Remove swap-removes a key. Returns false if the key is absent.
func (d *Dense[K]) Remove(key K) bool {
	row, ok := d.rows.Get(d.index(key))
	if !ok || d.keys[row] != key {
		return false
	}

	last := len(d.keys) - 1
	d.keys[row] = d.keys[last]
	d.keys = d.keys[:last]
	d.rows.Remove(d.index(key))

	// If the key was the last item nothing was swapped.
	if row != last {
		d.rows.Set(d.index(d.keys[row]), row)
	}
	return true
}

// Clear removes every key.
func (d *Dense[K]) Clear() {
	for _, key := range d.keys {
		d.rows.Remove(d.index(key))
	}
	d.keys = d.keys[:0]
}
