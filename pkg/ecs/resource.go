package ecs

import (
	"sync/atomic"

	"github.com/argus-labs/lattice/pkg/assert"
)

//nolint:gochecknoglobals // resource ids are process-wide like component ids
var nextResourceID atomic.Uint32

// Resource is a world-wide singleton value of type T.
type Resource[T any] struct {
	id   uint32
	name string
}

// NewResource declares a resource. The name is only used in messages.
func NewResource[T any](name string) Resource[T] {
	return Resource[T]{id: nextResourceID.Add(1), name: name}
}

// SetResource stores the value of a resource in the world.
func SetResource[T any](w *World, r Resource[T], v T) {
	w.resources[r.id] = v
}

// GetResource returns the value of a resource. Fails if it was never set.
func GetResource[T any](w *World, r Resource[T]) T {
	v, ok := ResourceOpt(w, r)
	assert.That(ok, "resource %s is not set", r.name)
	return v
}

// ResourceOpt returns the value of a resource, if set.
func ResourceOpt[T any](w *World, r Resource[T]) (T, bool) {
	v, ok := w.resources[r.id]
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true //nolint:forcetypeassert // only SetResource writes this slot
}

// RemoveResource deletes the value of a resource.
func RemoveResource[T any](w *World, r Resource[T]) {
	delete(w.resources, r.id)
}
