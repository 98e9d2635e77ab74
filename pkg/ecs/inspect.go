package ecs

import (
	"slices"

	"github.com/argus-labs/lattice/pkg/assert"
)

// IsAlive reports whether e is a live entity.
func (w *World) IsAlive(e Entity) bool {
	return w.registry.IsAlive(e)
}

// TypeOf returns the type of a live entity as of the last step.
func (w *World) TypeOf(e Entity) *Type {
	w.registry.Check(e)
	return w.typeOf(e)
}

// Has reports whether e is alive and held every component of el as of the last step.
func (w *World) Has(e Entity, el Element) bool {
	return w.registry.IsAlive(e) && w.typeOf(e).HasAll(el)
}

// Get returns the value of a ref on a live entity that has it.
func Get[T any](w *World, e Entity, r Ref[T]) T {
	return *getPtr(w, e, r)
}

// GetPtr returns a pointer to the value of a ref. Writes through the pointer are not tracked
// until Touch is called.
func GetPtr[T any](w *World, e Entity, r Ref[T]) *T {
	return getPtr(w, e, r)
}

func getPtr[T any](w *World, e Entity, r Ref[T]) *T {
	w.registry.Check(e)
	assert.That(w.typeOf(e).Has(r.id), "entity %s does not have %s", e, r)
	return w.store(r.id).(*column[T]).get(e.Index())
}

// Set overwrites the value of a ref on a live entity that has it. Unlike structural changes the
// write is visible immediately.
func Set[T any](w *World, e Entity, r Ref[T], v T) {
	w.registry.Check(e)
	assert.That(w.typeOf(e).Has(r.id), "entity %s does not have %s", e, r)
	w.store(r.id).(*column[T]).set(e.Index(), v)
	w.changes.bump(r.id, e.Index())
}

// Touch marks the refs of el as changed on e, for values mutated in place through pointers.
func (w *World) Touch(e Entity, el Element) {
	w.registry.Check(e)
	t := w.typeOf(e)
	for _, id := range el.appendIDs(nil) {
		if IsPair(id) || kindOf(id) != KindRef {
			continue
		}
		assert.That(t.Has(id), "entity %s does not have %s", e, nameOf(id))
		w.changes.bump(id, e.Index())
	}
}

// ExclusiveRelative returns the target of an exclusive relation on e. Fails if e has none.
func (w *World) ExclusiveRelative(e Entity, rel Relation) Entity {
	target, ok := w.ExclusiveRelativeOpt(e, rel)
	assert.That(ok, "entity %s has no %s relative", e, rel)
	return target
}

// ExclusiveRelativeOpt returns the target of an exclusive relation on e, if any.
func (w *World) ExclusiveRelativeOpt(e Entity, rel Relation) (Entity, bool) {
	assert.That(rel.topology == TopologyExclusive, "relation %s is not exclusive", rel)
	if !w.registry.IsAlive(e) {
		return 0, false
	}
	for _, p := range w.typeOf(e).pairs {
		if PairRelation(p) == rel.id {
			return PairTarget(p), true
		}
	}
	return 0, false
}

// Targets returns the entities e relates to through rel.
func (w *World) Targets(e Entity, rel Relation) []Entity {
	return slices.Clone(w.relations(rel.id).targetsOf(e))
}

// Subjects returns the entities that relate to e through rel.
func (w *World) Subjects(e Entity, rel Relation) []Entity {
	return slices.Clone(w.relations(rel.id).subjectsOf(e))
}

// Single returns the only entity holding el. Fails if there is none.
func (w *World) Single(el Element) Entity {
	e, ok := w.SingleOpt(el)
	assert.That(ok, "no entity has %v", el)
	return e
}

// SingleOpt returns the first entity holding el, in node creation order.
func (w *World) SingleOpt(el Element) (Entity, bool) {
	t := MakeType(el)
	for _, n := range w.graph.Nodes() {
		if n.Len() > 0 && isSubsetOrEqual(t, n.typ) {
			return n.Entities()[0], true
		}
	}
	return 0, false
}

// Store returns the value store of a ref component.
func (w *World) Store(id ComponentID) Column {
	return w.store(id)
}

// StoreOf returns the raw values of a ref, indexed by entity index. The slice is invalidated by
// the next step.
func StoreOf[T any](w *World, r Ref[T]) []T {
	return w.store(r.id).(*column[T]).values
}
