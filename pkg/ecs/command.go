package ecs

import "github.com/argus-labs/lattice/pkg/assert"

type commandKind uint8

const (
	commandSpawn commandKind = iota + 1
	commandDespawn
	commandAdd
	commandRemove
)

func (k commandKind) String() string {
	switch k {
	case commandSpawn:
		return "spawn"
	case commandDespawn:
		return "despawn"
	case commandAdd:
		return "add"
	case commandRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// command is one staged mutation.
type command struct {
	kind   commandKind
	entity Entity
	delta  *Type
	values []initValue
}

// Spawn allocates an entity and stages its insertion with the given components at the current
// tick. The entity is alive immediately but only becomes visible to queries after the next step.
func (w *World) Spawn(elems ...Element) Entity {
	return w.SpawnAt(w.tick, elems...)
}

// SpawnAt is Spawn at an explicit tick.
func (w *World) SpawnAt(tick uint64, elems ...Element) Entity {
	e := w.registry.Alloc()
	w.enqueue(tick, commandSpawn, e, elems)
	return e
}

// SpawnRemoteAt spawns an entity from the partition reserved for entities replicated from
// another world, so its id never collides with locally spawned ones.
func (w *World) SpawnRemoteAt(tick uint64, elems ...Element) Entity {
	e := w.registry.AllocHi()
	w.enqueue(tick, commandSpawn, e, elems)
	return e
}

// Despawn stages the removal of an entity at the current tick.
func (w *World) Despawn(e Entity) {
	w.DespawnAt(w.tick, e)
}

// DespawnAt is Despawn at an explicit tick.
func (w *World) DespawnAt(tick uint64, e Entity) {
	w.enqueue(tick, commandDespawn, e, nil)
}

// Add stages adding components to an entity at the current tick. Refs initialized with Init
// overwrite the current value.
func (w *World) Add(e Entity, elems ...Element) {
	w.AddAt(w.tick, e, elems...)
}

// AddAt is Add at an explicit tick.
func (w *World) AddAt(tick uint64, e Entity, elems ...Element) {
	w.enqueue(tick, commandAdd, e, elems)
}

// Remove stages removing components from an entity at the current tick. Removing a bare relation
// removes every pair of that relation.
func (w *World) Remove(e Entity, elems ...Element) {
	w.RemoveAt(w.tick, e, elems...)
}

// RemoveAt is Remove at an explicit tick.
func (w *World) RemoveAt(tick uint64, e Entity, elems ...Element) {
	w.enqueue(tick, commandRemove, e, elems)
}

// enqueue validates a command against the current state and queues it. Validation happens here so
// that applying the command during a step cannot fail.
func (w *World) enqueue(tick uint64, kind commandKind, e Entity, elems []Element) {
	w.registry.Check(e)

	cmd := command{kind: kind, entity: e}
	if kind != commandDespawn {
		cmd.delta = MakeType(elems...)
		for _, el := range elems {
			if v, ok := el.(valued); ok {
				cmd.values = append(cmd.values, v.initValue())
			}
		}
	}

	switch kind {
	case commandSpawn, commandAdd:
		for _, p := range cmd.delta.pairs {
			target := PairTarget(p)
			assert.That(target != e, "entity %s cannot relate to itself", e)
			assert.That(w.registry.IsAlive(target), "relation target %s is not alive", target)
		}
		for _, id := range cmd.delta.inverses {
			assert.That(false, "relation inverse %s is managed by the world", nameOf(id))
		}
	case commandRemove:
		assert.That(len(cmd.values) == 0, "remove does not take values")
		for _, id := range cmd.delta.inverses {
			assert.That(false, "relation inverse %s is managed by the world", nameOf(id))
		}
	case commandDespawn:
	}

	w.commands.Insert(tick, cmd)
}

// -------------------------------------------------------------------------------------------------
// Builder
// -------------------------------------------------------------------------------------------------

// EntityBuilder accumulates components for a spawn.
type EntityBuilder struct {
	world *World
	elems []Element
}

// With starts building an entity.
func (w *World) With(elems ...Element) *EntityBuilder {
	return &EntityBuilder{world: w, elems: elems}
}

// With adds components to the entity being built.
func (b *EntityBuilder) With(elems ...Element) *EntityBuilder {
	b.elems = append(b.elems, elems...)
	return b
}

// Spawn stages the built entity at the current tick.
func (b *EntityBuilder) Spawn() Entity {
	return b.world.Spawn(b.elems...)
}
