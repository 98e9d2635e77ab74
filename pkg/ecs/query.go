package ecs

import (
	"slices"

	"github.com/argus-labs/lattice/pkg/assert"
	"github.com/kelindar/bitmap"
)

// Query is a compiled selector. Each level of the selector (the root and every joined selector,
// in pre-order) keeps the set of nodes matching it up to date through node events, and iteration
// walks those sets directly.
type Query struct {
	world    *World
	levels   []*queryLevel       // Pre-order, root first
	width    int                 // Number of yielded values
	since    uint64              // Change clock at the last run
	monitor  monitorMode         // Set for In and Out selectors
	buffer   []Entity            // Monitored entities since the last run
	buffered map[Entity]struct{} // Entities in buffer
}

// queryLevel is one selector level compiled against the graph.
type queryLevel struct {
	parent  int         // Index of the level this one joins from, -1 for the root
	via     ComponentID // Relation joined from the parent
	inverse bool        // Join visits subjects instead of targets
	relmap  *relationMap

	typ     *Type
	base    *Node
	without []ComponentID
	changed []ComponentID
	refs    []abstractColumn
	offset  int // First value slot of this level

	nodes   []*Node       // Matched nodes in match order
	matched bitmap.Bitmap // IDs of matched nodes
	watch   func(ev NodeEvent)
}

var _ NodeListener = (*queryLevel)(nil)

// Query returns the compiled query of a selector, compiling it on first use. Queries are cached
// by selector shape.
func (w *World) Query(sel *Selector) *Query {
	key := sel.key()
	if q, ok := w.queries[key]; ok {
		return q
	}
	q := w.compile(sel)
	w.queries[key] = q
	return q
}

// ForEach runs fn for every match of the selector. entities holds the matched entity of every
// level in pre-order and values holds a pointer to every yielded ref value in declaration order.
// Both slices are reused between calls.
func (w *World) ForEach(sel *Selector, fn func(entities []Entity, values []any)) {
	w.Query(sel).ForEach(fn)
}

func (w *World) compile(sel *Selector) *Query {
	sel.validate(sel.monitor != monitorNone)

	q := &Query{
		world:    w,
		levels:   make([]*queryLevel, 0, 1+len(sel.joins)),
		monitor:  sel.monitor,
		buffer:   make([]Entity, 0),
		buffered: make(map[Entity]struct{}),
	}
	q.flatten(sel, -1, 0)
	if q.monitor != monitorNone {
		q.levels[0].watch = q.record
	}
	return q
}

// flatten compiles a selector level and its joins in pre-order.
func (q *Query) flatten(sel *Selector, parent int, via ComponentID) {
	l := q.world.compileLevel(sel)
	l.parent = parent
	l.offset = q.width
	q.width += len(l.refs)

	if parent >= 0 {
		l.via = via
		rel := via
		if kindOf(via) == KindRelationInverse {
			l.inverse = true
			rel = defaultCatalog.info(via).companion
		}
		l.relmap = q.world.relations(rel)
	}

	idx := len(q.levels)
	q.levels = append(q.levels, l)
	for _, j := range sel.joins {
		q.flatten(j.sub, idx, j.via)
	}
}

// compileLevel resolves the node of the level's required type, subscribes to it, and seeds the
// matched set with the nodes that already exist above it.
func (w *World) compileLevel(sel *Selector) *queryLevel {
	l := &queryLevel{
		typ:     defaultCatalog.makeType(slices.Clone(sel.with)),
		without: sel.without,
		changed: sel.changed,
		refs:    make([]abstractColumn, 0, len(sel.refs)),
		nodes:   make([]*Node, 0),
	}
	for _, id := range sel.refs {
		l.refs = append(l.refs, w.store(id))
	}

	l.base = w.graph.resolve(l.typ)
	l.base.Listen(l)
	for _, n := range w.graph.walk(l.base, true, nil) {
		l.include(n)
	}
	return l
}

func (l *queryLevel) OnNodeEvent(ev NodeEvent) {
	switch ev.Kind {
	case NodeCreated:
		l.include(ev.Source)
	case NodeDisposed:
		l.exclude(ev.Source)
	case EntitiesIn, EntitiesOut:
		if l.watch != nil {
			l.watch(ev)
		}
	}
}

func (l *queryLevel) matches(n *Node) bool {
	if !isSubsetOrEqual(l.typ, n.typ) {
		return false
	}
	for _, id := range l.without {
		if n.typ.Has(id) {
			return false
		}
	}
	return true
}

func (l *queryLevel) include(n *Node) {
	if l.matched.Contains(uint32(n.id)) || !l.matches(n) {
		return
	}
	l.matched.Set(uint32(n.id))
	l.nodes = append(l.nodes, n)
}

func (l *queryLevel) exclude(n *Node) {
	if !l.matched.Contains(uint32(n.id)) {
		return
	}
	l.matched.Remove(uint32(n.id))
	l.nodes = removeNode(l.nodes, n)
}

// fresh reports whether every change-filtered ref of e was written after since.
func (l *queryLevel) fresh(tracker *changeTracker, e Entity, since uint64) bool {
	for _, id := range l.changed {
		if tracker.version(id, e.Index()) <= since {
			return false
		}
	}
	return true
}

func (l *queryLevel) fetch(e Entity, values []any) {
	idx := e.Index()
	for i, col := range l.refs {
		values[l.offset+i] = col.pointer(idx)
	}
}

// -------------------------------------------------------------------------------------------------
// Iteration
// -------------------------------------------------------------------------------------------------

// ForEach runs fn for every match. Monitors yield the entities buffered since the last run and
// clear the buffer; entities that left a monitored shape are yielded with nil values.
func (q *Query) ForEach(fn func(entities []Entity, values []any)) {
	entities := make([]Entity, len(q.levels))
	values := make([]any, q.width)

	if q.monitor != monitorNone {
		q.drainMonitor(entities, values, fn)
		return
	}

	since := q.since
	q.since = q.world.changes.now()

	root := q.levels[0]
	for _, n := range root.nodes {
		for _, e := range n.Entities() {
			if !root.fresh(&q.world.changes, e, since) {
				continue
			}
			entities[0] = e
			root.fetch(e, values)
			q.descend(1, entities, values, since, fn)
		}
	}
}

func (q *Query) descend(i int, entities []Entity, values []any, since uint64, fn func([]Entity, []any)) {
	if i == len(q.levels) {
		fn(entities, values)
		return
	}

	l := q.levels[i]
	src := entities[l.parent]
	relatives := l.relmap.targetsOf(src)
	if l.inverse {
		relatives = l.relmap.subjectsOf(src)
	}

	for _, r := range relatives {
		n := q.world.location(r)
		if n == nil || !l.matched.Contains(uint32(n.id)) || !l.fresh(&q.world.changes, r, since) {
			continue
		}
		entities[i] = r
		l.fetch(r, values)
		q.descend(i+1, entities, values, since, fn)
	}
}

// Count returns the number of matches.
func (q *Query) Count() int {
	count := 0
	if q.monitor != monitorNone {
		return len(q.buffer)
	}
	q.ForEach(func([]Entity, []any) { count++ })
	return count
}

// Nodes returns the nodes currently matching the root level.
func (q *Query) Nodes() []*Node {
	return q.levels[0].nodes
}

// -------------------------------------------------------------------------------------------------
// Monitors
// -------------------------------------------------------------------------------------------------

func (q *Query) record(ev NodeEvent) {
	if (ev.Kind == EntitiesIn) != (q.monitor == monitorIn) {
		return
	}
	for _, e := range ev.Entities {
		if _, ok := q.buffered[e]; ok {
			continue
		}
		q.buffered[e] = struct{}{}
		q.buffer = append(q.buffer, e)
	}
}

func (q *Query) drainMonitor(entities []Entity, values []any, fn func([]Entity, []any)) {
	root := q.levels[0]
	buffer := q.buffer
	q.buffer = make([]Entity, 0, len(buffer))
	clear(q.buffered)

	for _, e := range buffer {
		entities[0] = e
		if q.monitor == monitorOut {
			clear(values)
			fn(entities, values)
			continue
		}

		// Entities that entered and left again before the run are not reported.
		n := q.world.location(e)
		if !q.world.registry.IsAlive(e) || n == nil || !root.matched.Contains(uint32(n.id)) {
			continue
		}
		root.fetch(e, values)
		fn(entities, values)
	}
}

// -------------------------------------------------------------------------------------------------
// Typed iteration
// -------------------------------------------------------------------------------------------------

// Each1 iterates a selector whose first yielded value is an A.
func Each1[A any](w *World, sel *Selector, fn func(e Entity, a *A)) {
	w.typedQuery(sel, 1).ForEach(func(entities []Entity, values []any) {
		fn(entities[0], valueAt[A](values, 0))
	})
}

// Each2 iterates a selector whose first two yielded values are an A and a B.
func Each2[A, B any](w *World, sel *Selector, fn func(e Entity, a *A, b *B)) {
	w.typedQuery(sel, 2).ForEach(func(entities []Entity, values []any) {
		fn(entities[0], valueAt[A](values, 0), valueAt[B](values, 1))
	})
}

// Each3 iterates a selector whose first three yielded values are an A, a B and a C.
func Each3[A, B, C any](w *World, sel *Selector, fn func(e Entity, a *A, b *B, c *C)) {
	w.typedQuery(sel, 3).ForEach(func(entities []Entity, values []any) {
		fn(entities[0], valueAt[A](values, 0), valueAt[B](values, 1), valueAt[C](values, 2))
	})
}

func (w *World) typedQuery(sel *Selector, arity int) *Query {
	q := w.Query(sel)
	assert.That(q.width >= arity, "selector yields %d values, iteration needs %d", q.width, arity)
	return q
}

// valueAt returns the i-th yielded value as a *T. Out monitors yield nil.
func valueAt[T any](values []any, i int) *T {
	if values[i] == nil {
		return nil
	}
	v, ok := values[i].(*T)
	assert.That(ok, "value %d is a %T, not a *%T", i, values[i], *new(T))
	return v
}
