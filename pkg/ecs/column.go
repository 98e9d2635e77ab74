package ecs

import (
	"github.com/argus-labs/lattice/pkg/assert"
	"github.com/goccy/go-json"
)

// columnFactory creates the value store of a ref component.
type columnFactory func(capacity int) abstractColumn

// abstractColumn is the type-erased view of a column used by the world and compiled queries.
type abstractColumn interface {
	Column

	init(index uint32)
	reset(index uint32)
	setAbstract(index uint32, value any)
	pointer(index uint32) any
}

// Column is the raw value store of a ref component, indexed by entity index. Slots of entities
// that do not hold the component contain the zero value.
type Column interface {
	// ID returns the component the column stores.
	ID() ComponentID
	// Len returns the number of allocated slots.
	Len() int
	// At returns a copy of the value stored for the entity.
	At(e Entity) any
}

var _ abstractColumn = &column[struct{}]{}

// column stores the values of one ref component. Unlike archetype-local storage, a value stays
// at its entity index while the entity moves between nodes, so moves never copy payloads.
type column[T any] struct {
	id       ComponentID
	defBytes []byte // Encoded default, decoded into every new slot
	values   []T
}

// newColumnFactory returns a function that constructs columns of T.
func newColumnFactory[T any](id ComponentID, defBytes []byte) columnFactory {
	return func(capacity int) abstractColumn {
		return &column[T]{
			id:       id,
			defBytes: defBytes,
			values:   make([]T, 0, capacity),
		}
	}
}

func (c *column[T]) ID() ComponentID {
	return c.id
}

func (c *column[T]) Len() int {
	return len(c.values)
}

func (c *column[T]) At(e Entity) any {
	idx := int(e.Index())
	if idx >= len(c.values) {
		var zero T
		return zero
	}
	return c.values[idx]
}

// extend grows the slot array so index is addressable.
func (c *column[T]) extend(index uint32) {
	n := int(index) + 1
	if n <= len(c.values) {
		return
	}
	if n > cap(c.values) {
		grown := make([]T, len(c.values), max(n, cap(c.values)*2))
		copy(grown, c.values)
		c.values = grown
	}
	c.values = c.values[:n]
}

// init prepares the slot of an entity that just gained the component. Each entity decodes its
// own copy of the default so defaults holding slices or maps are never shared.
func (c *column[T]) init(index uint32) {
	c.extend(index)
	var zero T
	c.values[index] = zero
	if c.defBytes != nil {
		err := json.Unmarshal(c.defBytes, &c.values[index])
		assert.That(err == nil, "failed to decode default of component %d: %v", c.id, err)
	}
}

// reset zeroes the slot of an entity that lost the component.
func (c *column[T]) reset(index uint32) {
	if int(index) >= len(c.values) {
		return
	}
	var zero T
	c.values[index] = zero
}

func (c *column[T]) set(index uint32, value T) {
	c.extend(index)
	c.values[index] = value
}

func (c *column[T]) get(index uint32) *T {
	assert.That(int(index) < len(c.values), "column %d has no slot %d", c.id, index)
	return &c.values[index]
}

func (c *column[T]) setAbstract(index uint32, value any) {
	v, ok := value.(T)
	assert.That(ok, "component %d expects %T, got %T", c.id, *new(T), value)
	c.set(index, v)
}

// pointer returns a *T to the slot. It stays valid until the column grows, which only happens
// while a step applies commands.
func (c *column[T]) pointer(index uint32) any {
	return c.get(index)
}
