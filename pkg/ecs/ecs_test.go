package ecs_test

import (
	"testing"

	"github.com/argus-labs/lattice/pkg/ecs"
	. "github.com/argus-labs/lattice/pkg/ecs/internal/testutils" //nolint:revive // test payloads
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//nolint:gochecknoglobals // components are declared once per process
var (
	position = ecs.NewRef[Vec2](ecs.WithName("position"))
	velocity = ecs.NewRef[Vec2](ecs.WithName("velocity"))
	health   = ecs.NewRef[Health](ecs.WithName("health"), ecs.WithDefault(Health{Value: 100}))
	bag      = ecs.NewRef[Inventory](ecs.WithDefault(Inventory{Items: map[string]int{"potion": 1}}))
	label    = ecs.NewRef[Name](ecs.WithName("label"))

	player = ecs.Tag(ecs.WithName("player"))
	enemy  = ecs.Tag(ecs.WithName("enemy"))
	frozen = ecs.Tag()

	dockedTo = ecs.Rel(ecs.WithName("docked_to"), ecs.Exclusive())
	orbits   = ecs.Rel(ecs.WithName("orbits"))
	childOf  = ecs.Rel(ecs.Exclusive())
)

func newWorld(t *testing.T) *ecs.World {
	t.Helper()
	w, err := ecs.NewWorld(ecs.WorldOptions{Logger: Logger(t)})
	require.NoError(t, err)
	return w
}

// collect runs a query and returns the matched entities of the root level.
func collect(w *ecs.World, sel *ecs.Selector) []ecs.Entity {
	var out []ecs.Entity
	w.ForEach(sel, func(entities []ecs.Entity, _ []any) {
		out = append(out, entities[0])
	})
	return out
}

func TestWorld_EndToEnd(t *testing.T) {
	t.Parallel()
	w := newWorld(t)

	e := w.Spawn(position.Init(Vec2{X: 1, Y: 2}))
	w.Step()

	type match struct {
		entity ecs.Entity
		pos    Vec2
	}
	var got []match
	w.ForEach(ecs.Select(position), func(entities []ecs.Entity, values []any) {
		got = append(got, match{entities[0], *values[0].(*Vec2)})
	})
	assert.Equal(t, []match{{e, Vec2{X: 1, Y: 2}}}, got)

	w.Add(e, velocity.Init(Vec2{}))
	w.Step()

	assert.Equal(t, []ecs.Entity{e}, collect(w, ecs.Select(position)), "position is unaffected")
	assert.Equal(t, []ecs.Entity{e}, collect(w, ecs.Select(position, velocity)))
	assert.Equal(t, Vec2{X: 1, Y: 2}, ecs.Get(w, e, position))
	assert.Equal(t, Vec2{}, ecs.Get(w, e, velocity))
}

func TestWorld_GenerationInvalidation(t *testing.T) {
	t.Parallel()
	w := newWorld(t)

	e := w.Spawn(player)
	w.Step()
	w.Despawn(e)
	w.Step()
	assert.False(t, w.IsAlive(e))
	assert.False(t, w.Has(e, player))

	reused := w.Spawn(player)
	require.Equal(t, e.Index(), reused.Index())
	assert.Greater(t, reused.Generation(), e.Generation())
	assert.False(t, w.IsAlive(e), "a stale handle never aliases the new entity")
	assert.Panics(t, func() { w.Add(e, enemy) })
}

func TestWorld_DeferredVisibility(t *testing.T) {
	t.Parallel()
	w := newWorld(t)
	sel := ecs.Select(player)

	e := w.Spawn(player)
	assert.True(t, w.IsAlive(e), "alive as soon as it is staged")
	assert.Empty(t, collect(w, sel), "not visible before the step")
	assert.False(t, w.Has(e, player))

	w.Step()
	assert.Equal(t, []ecs.Entity{e}, collect(w, sel))

	w.Add(e, enemy)
	w.Remove(e, player)
	assert.Equal(t, []ecs.Entity{e}, collect(w, sel), "staged changes are invisible")
	w.Step()
	assert.Empty(t, collect(w, sel))
	assert.Equal(t, []ecs.Entity{e}, collect(w, ecs.Select(enemy)))
}

func TestWorld_MergedCommands(t *testing.T) {
	t.Parallel()
	w := newWorld(t)

	e := w.Spawn(player)
	w.Step()

	in := ecs.Select(enemy).In()
	out := ecs.Select(enemy).Out()
	w.Query(in)
	w.Query(out)

	w.Add(e, enemy)
	w.Remove(e, enemy)
	w.Step()

	assert.False(t, w.Has(e, enemy))
	assert.Empty(t, collect(w, in), "add then remove within a step is not a transition")
	assert.Empty(t, collect(w, out))
}

func TestWorld_CommandsOfDespawnedEntityAreSkipped(t *testing.T) {
	t.Parallel()
	w := newWorld(t)

	e := w.Spawn(player)
	w.Step()

	w.Despawn(e)
	w.Add(e, enemy)
	assert.NotPanics(t, w.Step)
	assert.False(t, w.IsAlive(e))
	assert.Empty(t, collect(w, ecs.Select(enemy)))
}

func TestWorld_StagingFailsFast(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fn   func(w *ecs.World, live, dead ecs.Entity)
	}{
		{
			name: "add to despawned entity",
			fn:   func(w *ecs.World, _, dead ecs.Entity) { w.Add(dead, player) },
		},
		{
			name: "despawn despawned entity",
			fn:   func(w *ecs.World, _, dead ecs.Entity) { w.Despawn(dead) },
		},
		{
			name: "relate to itself",
			fn:   func(w *ecs.World, live, _ ecs.Entity) { w.Add(live, orbits.Of(live)) },
		},
		{
			name: "relate to despawned target",
			fn:   func(w *ecs.World, live, dead ecs.Entity) { w.Add(live, orbits.Of(dead)) },
		},
		{
			name: "two targets of an exclusive relation",
			fn: func(w *ecs.World, live, _ ecs.Entity) {
				a, b := w.Spawn(), w.Spawn()
				w.Add(live, dockedTo.Of(a), dockedTo.Of(b))
			},
		},
		{
			name: "add a relation inverse",
			fn:   func(w *ecs.World, live, _ ecs.Entity) { w.Add(live, orbits.Inverse()) },
		},
		{
			name: "read a missing exclusive relative",
			fn:   func(w *ecs.World, live, _ ecs.Entity) { w.ExclusiveRelative(live, dockedTo) },
		},
		{
			name: "get a missing ref",
			fn:   func(w *ecs.World, live, _ ecs.Entity) { ecs.Get(w, live, velocity) },
		},
		{
			name: "step while stepping",
			fn: func(w *ecs.World, live, _ ecs.Entity) {
				w.Effect(ecs.Select(enemy), ecs.EffectHandlers{
					OnMatch: func(ecs.Entity, []any) { w.Step() },
				})
				w.Add(live, enemy)
				w.Step()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := newWorld(t)
			live := w.Spawn(player)
			dead := w.Spawn()
			w.Step()
			w.Despawn(dead)
			w.Step()

			assert.Panics(t, func() { tt.fn(w, live, dead) })
		})
	}
}

func TestWorld_OutOfOrderTicks(t *testing.T) {
	t.Parallel()
	w := newWorld(t)

	e := w.Spawn()
	w.Step()
	require.Equal(t, uint64(1), w.Tick())

	w.AddAt(5, e, enemy)
	w.AddAt(3, e, player)
	assert.Equal(t, 2, w.Pending())

	w.StepTo(3)
	assert.True(t, w.Has(e, player))
	assert.False(t, w.Has(e, enemy))
	assert.Equal(t, uint64(4), w.Tick())

	// Tick 2 was already drained, so the command lands in the next step.
	w.AddAt(2, e, frozen)
	w.StepTo(5)
	assert.True(t, w.Has(e, enemy))
	assert.True(t, w.Has(e, frozen))
	assert.Equal(t, 0, w.Pending())
	assert.Equal(t, uint64(6), w.Tick())
}

func TestWorld_Builder(t *testing.T) {
	t.Parallel()
	w := newWorld(t)

	e := w.With(player).With(position.Init(Vec2{X: 3}), health).Spawn()
	w.Step()

	assert.True(t, w.Has(e, ecs.MakeType(player, position, health)))
	assert.Equal(t, Vec2{X: 3}, ecs.Get(w, e, position))
	assert.Equal(t, Health{Value: 100}, ecs.Get(w, e, health), "default value")
}

func TestWorld_DefaultsAreCopiedPerEntity(t *testing.T) {
	t.Parallel()
	w := newWorld(t)

	a := w.Spawn(bag)
	b := w.Spawn(bag)
	w.Step()

	ecs.GetPtr(w, a, bag).Items["potion"] = 5
	assert.Equal(t, 1, ecs.Get(w, b, bag).Items["potion"])

	// A value passed to Init replaces the default.
	c := w.Spawn(bag.Init(Inventory{Items: map[string]int{"sword": 1}}))
	w.Step()
	assert.Equal(t, map[string]int{"sword": 1}, ecs.Get(w, c, bag).Items)
}

func TestWorld_SetAndRemoveValues(t *testing.T) {
	t.Parallel()
	w := newWorld(t)

	e := w.Spawn(health.Init(Health{Value: 7}))
	w.Step()
	ecs.Set(w, e, health, Health{Value: 8})
	assert.Equal(t, Health{Value: 8}, ecs.Get(w, e, health), "writes are immediate")

	w.Remove(e, health)
	w.Step()
	assert.False(t, w.Has(e, health))
	assert.Panics(t, func() { ecs.Set(w, e, health, Health{}) })

	w.Add(e, health)
	w.Step()
	assert.Equal(t, Health{Value: 100}, ecs.Get(w, e, health), "re-added refs start from the default")
	assert.Equal(t, Health{Value: 100}, ecs.StoreOf(w, health)[e.Index()])
	assert.Equal(t, Health{Value: 100}, w.Store(health.ID()).At(e))
}

func TestWorld_SingleAndRemote(t *testing.T) {
	t.Parallel()
	w := newWorld(t)

	_, ok := w.SingleOpt(label)
	assert.False(t, ok)
	assert.Panics(t, func() { w.Single(label) })

	e := w.SpawnRemoteAt(w.Tick(), label.Init(Name{Value: "config"}))
	w.Step()
	assert.Equal(t, e, w.Single(label))
	assert.GreaterOrEqual(t, e.Index(), uint32(1<<19), "remote entities use the high partition")
	assert.NotEqual(t, e.Index(), w.Spawn().Index())
}

func TestWorld_Resources(t *testing.T) {
	t.Parallel()
	w := newWorld(t)
	gravity := ecs.NewResource[Vec2]("gravity")

	_, ok := ecs.ResourceOpt(w, gravity)
	assert.False(t, ok)
	assert.Panics(t, func() { ecs.GetResource(w, gravity) })

	ecs.SetResource(w, gravity, Vec2{Y: -9.8})
	assert.Equal(t, Vec2{Y: -9.8}, ecs.GetResource(w, gravity))

	ecs.RemoveResource(w, gravity)
	_, ok = ecs.ResourceOpt(w, gravity)
	assert.False(t, ok)
}

func TestWorld_Dump(t *testing.T) {
	t.Parallel()
	w := newWorld(t)

	e := w.Spawn(player, position)
	w.Spawn(player)
	w.Step()

	d := w.Describe()
	for _, n := range d.Nodes {
		clear(n.Components)
	}
	assert.Equal(t, []ecs.ComponentID{position.ID(), player.ID()}, w.TypeOf(e).IDs(),
		"dumps do not share the type's ids")

	assert.Equal(t, 2, d.Entities)
	var names [][]string
	for _, n := range d.Nodes {
		if n.Entities > 0 {
			names = append(names, n.Names)
		}
	}
	assert.ElementsMatch(t, [][]string{{"position", "player"}, {"player"}}, names)

	data, err := w.Dump()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"names":["player"]`)
}
