package ecs

import (
	"slices"

	"github.com/argus-labs/lattice/pkg/assert"
	"github.com/argus-labs/lattice/pkg/ecs/internal/entity"
	"github.com/argus-labs/lattice/pkg/ecs/internal/stage"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// World owns the entity registry, the archetype graph, and every value store. It is not safe for
// concurrent use: mutations are staged and become visible together at the next Step, and queries
// between two steps observe one consistent snapshot.
type World struct {
	registry   *entity.Registry
	graph      *Graph
	stores     []abstractColumn         // Component ID -> value store, nil for non-refs
	locations  []*Node                  // Entity index -> node, nil if not in the graph
	commands   *stage.Stage[command]    // Staged commands by tick
	transition *transition              // Moves of the step being applied
	changes    changeTracker            // Write versions per ref and entity
	queries    map[string]*Query        // Compiled queries by selector key
	resources  map[uint32]any           // Resource ID -> value
	targets    map[Entity][]ComponentID // Target -> pairs ever used against it
	prunes     []*Node                  // Nodes to prune at the end of the step

	empty    *Type
	tick     uint64
	capacity int
	stepping bool
	logger   zerolog.Logger
}

// NewWorld creates a world. Options left zero are filled from ECS_* environment variables and
// defaults.
func NewWorld(opts WorldOptions) (*World, error) {
	options := newDefaultWorldOptions()

	cfg, err := loadWorldConfig()
	if err != nil {
		return nil, eris.Wrap(err, "failed to load world config")
	}
	cfg.applyToOptions(&options)
	options.apply(opts)
	if err := options.validate(); err != nil {
		return nil, eris.Wrap(err, "invalid world options")
	}

	w := &World{
		registry:  entity.NewRegistry(options.EntityCapacity),
		stores:    make([]abstractColumn, 0),
		locations: make([]*Node, 0, options.EntityCapacity),
		commands:  stage.New[command](options.StageDegree),
		changes:   newChangeTracker(),
		queries:   make(map[string]*Query),
		resources: make(map[uint32]any),
		targets:   make(map[Entity][]ComponentID),
		prunes:    make([]*Node, 0),
		empty:     MakeType(),
		capacity:  options.EntityCapacity,
		logger:    options.Logger.With().Str("component", "ecs.world").Logger(),
	}
	w.graph = newGraph(&w.logger)
	w.transition = newTransition(w.graph)
	return w, nil
}

// Tick returns the tick new commands are staged at.
func (w *World) Tick() uint64 {
	return w.tick
}

// Graph returns the archetype graph.
func (w *World) Graph() *Graph {
	return w.graph
}

// Logger returns the world logger.
func (w *World) Logger() *zerolog.Logger {
	return &w.logger
}

// Len returns the number of live entities, including spawned entities not applied yet.
func (w *World) Len() int {
	return w.registry.Len()
}

// Pending returns the number of staged commands.
func (w *World) Pending() int {
	return w.commands.Len()
}

// -------------------------------------------------------------------------------------------------
// Step
// -------------------------------------------------------------------------------------------------

// Step applies every command staged at or before the current tick and advances the tick.
func (w *World) Step() {
	w.StepTo(w.tick)
}

// StepTo applies every command staged at or before target, then updates node membership and
// notifies listeners once, then prunes the nodes that lost their relation target. Commands staged
// by listeners during the step land in the next tick.
func (w *World) StepTo(target uint64) {
	assert.That(!w.stepping, "step called while stepping")
	w.stepping = true
	defer func() { w.stepping = false }()

	applied := w.commands.DrainTo(target, w.apply)
	drained := w.transition.drain(w.commit)

	pruned := 0
	for _, n := range w.prunes {
		pruned += w.graph.prune(n)
	}
	clear(w.prunes)
	w.prunes = w.prunes[:0]

	w.tick = max(w.tick, target+1)

	w.logger.Debug().
		Uint64("tick", target).
		Int("commands", applied).
		Int("batches", drained).
		Int("pruned", pruned).
		Msg("step")
}

// commit moves the entities of a batch between node sets.
func (w *World) commit(b *transitionBatch) {
	for _, e := range b.entities {
		if b.prev != nil {
			b.prev.entities.Remove(e)
		}
		if b.next != nil {
			b.next.entities.Add(e)
		}
	}
}

func (w *World) apply(tick uint64, cmd command) {
	if !w.registry.IsAlive(cmd.entity) {
		w.logger.Debug().
			Uint64("tick", tick).
			Stringer("entity", cmd.entity).
			Stringer("command", cmd.kind).
			Msg("skipping command of despawned entity")
		return
	}

	switch cmd.kind {
	case commandSpawn, commandAdd:
		w.applyAdd(cmd)
	case commandRemove:
		w.applyRemove(cmd)
	case commandDespawn:
		w.despawn(cmd.entity)
	default:
		assert.Unreachable("unknown command kind %d", cmd.kind)
	}
}

func (w *World) applyAdd(cmd command) {
	e := cmd.entity
	from := w.typeOf(e)
	delta := cmd.delta

	var gone, replaced []ComponentID
	for _, p := range delta.pairs {
		rel, target := PairRelation(p), PairTarget(p)
		exclusive := w.topologyOf(rel) == TopologyExclusive

		if !w.registry.IsAlive(target) {
			if exclusive {
				w.logger.Debug().Stringer("entity", e).Stringer("target", target).
					Msg("relation target despawned, despawning subject")
				w.despawn(e)
				return
			}
			gone = append(gone, p)
			continue
		}

		if exclusive {
			for _, q := range from.pairs {
				if PairRelation(q) == rel && q != p {
					replaced = append(replaced, q)
				}
			}
		}
	}
	if len(gone) > 0 {
		delta = Difference(delta, defaultCatalog.makeType(gone))
	}
	if len(replaced) > 0 {
		from = Difference(from, defaultCatalog.makeType(replaced))
	}

	w.relocate(e, Sum(from, delta))

	idx := e.Index()
	for _, v := range cmd.values {
		w.store(v.id).setAbstract(idx, v.value)
		w.changes.bump(v.id, idx)
	}
}

func (w *World) applyRemove(cmd command) {
	e := cmd.entity
	from := w.typeOf(e)
	delta := cmd.delta

	ids := slices.Clone(delta.ids)
	for _, rel := range delta.relations {
		if slices.ContainsFunc(delta.pairs, func(p ComponentID) bool { return PairRelation(p) == rel }) {
			continue
		}
		// A bare relation takes all of its pairs with it.
		for _, q := range from.pairs {
			if PairRelation(q) == rel {
				ids = append(ids, q)
			}
		}
	}

	w.relocate(e, Difference(from, defaultCatalog.makeType(ids)))
}

// relocate moves a live entity to the node of to, keeping value stores and relation maps in sync
// with the components it gained and lost.
func (w *World) relocate(e Entity, to *Type) {
	idx := e.Index()
	prev := w.location(e)
	from := w.empty
	if prev != nil {
		from = prev.typ
	}
	if prev != nil && from == to {
		return
	}

	next := w.graph.resolve(to)
	w.setLocation(idx, next)
	w.transition.move(e, prev, next)

	for _, r := range to.refs {
		if !from.Has(r) {
			w.store(r).init(idx)
			w.changes.bump(r, idx)
		}
	}
	for _, r := range from.refs {
		if !to.Has(r) {
			w.store(r).reset(idx)
		}
	}

	for _, p := range from.pairs {
		if !to.Has(p) {
			w.unrelate(e, p)
		}
	}
	for _, p := range to.pairs {
		if !from.Has(p) {
			w.relate(e, p)
		}
	}
}

// despawn frees the entity first, so cycles of exclusive relations terminate, then detaches it
// from every relation it takes part in.
func (w *World) despawn(e Entity) {
	w.registry.Free(e)

	idx := e.Index()
	prev := w.location(e)
	from := w.empty
	if prev != nil {
		from = prev.typ
	}

	for _, p := range from.pairs {
		w.unrelate(e, p)
	}

	for _, inv := range from.inverses {
		rel := w.companionOf(inv)
		exclusive := w.topologyOf(rel) == TopologyExclusive
		pair := defaultCatalog.makeType([]ComponentID{rel*PairFactor + ComponentID(e)})

		for _, s := range slices.Clone(w.relations(rel).subjectsOf(e)) {
			if !w.registry.IsAlive(s) {
				continue
			}
			if exclusive {
				w.logger.Debug().Stringer("entity", s).Stringer("target", e).Msg("cascading despawn")
				w.despawn(s)
			} else {
				w.relocate(s, Difference(w.typeOf(s), pair))
			}
		}
	}

	for _, r := range from.refs {
		w.store(r).reset(idx)
	}
	w.setLocation(idx, nil)
	w.transition.move(e, prev, nil)

	for _, p := range w.targets[e] {
		if n, ok := w.graph.Lookup(defaultCatalog.makeType([]ComponentID{p})); ok {
			w.prunes = append(w.prunes, n)
		}
	}
	delete(w.targets, e)
}

// relate records subject -> target for pair p and tags the target with the relation inverse.
func (w *World) relate(subject Entity, p ComponentID) {
	rel, target := PairRelation(p), PairTarget(p)
	if !w.relations(rel).add(subject, target) {
		return
	}

	if !slices.Contains(w.targets[target], p) {
		w.targets[target] = append(w.targets[target], p)
		// Resolve the pair's own node so every node holding the pair sits above it and can be
		// pruned with it once the target is gone.
		w.graph.resolve(defaultCatalog.makeType([]ComponentID{p}))
	}

	inv := w.companionOf(rel)
	if tt := w.typeOf(target); !tt.Has(inv) {
		w.relocate(target, Sum(tt, defaultCatalog.makeType([]ComponentID{inv})))
	}
}

// unrelate removes subject -> target for pair p and untags the target when it lost its last
// subject.
func (w *World) unrelate(subject Entity, p ComponentID) {
	rel, target := PairRelation(p), PairTarget(p)
	if w.relations(rel).remove(subject, target) || !w.registry.IsAlive(target) {
		return
	}

	inv := w.companionOf(rel)
	if tt := w.typeOf(target); tt.Has(inv) {
		w.relocate(target, Difference(tt, defaultCatalog.makeType([]ComponentID{inv})))
	}
}

// relations returns the relation map of rel, held by the node of the bare relation.
func (w *World) relations(rel ComponentID) *relationMap {
	home := w.graph.resolve(defaultCatalog.makeType([]ComponentID{rel}))
	if home.relmap == nil {
		home.relmap = newRelationMap(rel)
	}
	return home.relmap
}

// -------------------------------------------------------------------------------------------------
// Locations and stores
// -------------------------------------------------------------------------------------------------

func (w *World) location(e Entity) *Node {
	idx := int(e.Index())
	if idx >= len(w.locations) {
		return nil
	}
	return w.locations[idx]
}

func (w *World) setLocation(idx uint32, n *Node) {
	for int(idx) >= len(w.locations) {
		w.locations = append(w.locations, nil)
	}
	w.locations[idx] = n
}

// typeOf returns the applied type of an entity, empty if it is not in the graph yet.
func (w *World) typeOf(e Entity) *Type {
	if n := w.location(e); n != nil {
		return n.typ
	}
	return w.empty
}

func (w *World) store(id ComponentID) abstractColumn {
	for int(id) >= len(w.stores) {
		w.stores = append(w.stores, nil)
	}
	if w.stores[id] == nil {
		info := defaultCatalog.info(id)
		assert.That(info.kind == KindRef, "component %s has no values", nameOf(id))
		w.stores[id] = info.newColumn(w.capacity)
	}
	return w.stores[id]
}

func (w *World) topologyOf(rel ComponentID) Topology {
	return defaultCatalog.info(rel).topology
}

func (w *World) companionOf(id ComponentID) ComponentID {
	return defaultCatalog.info(id).companion
}
