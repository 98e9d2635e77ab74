package ecs

// batchKey identifies a batch by the nodes its entities move between. Zero stands for no node.
type batchKey struct {
	prev, next NodeID
}

// transitionBatch groups the entities that move between the same two nodes in one drain.
type transitionBatch struct {
	prev, next *Node
	entities   []Entity
}

type pendingMove struct {
	batch *transitionBatch
	row   int
}

// transition buffers entity moves between nodes until the end of a step. An entity moved several
// times within a step ends up in a single batch keyed by where it started and where it ended, so
// listeners only see the net effect.
type transition struct {
	graph   *Graph
	batches map[batchKey]*transitionBatch
	order   []*transitionBatch // Batches in creation order
	pending map[Entity]pendingMove
}

func newTransition(g *Graph) *transition {
	return &transition{
		graph:   g,
		batches: make(map[batchKey]*transitionBatch),
		order:   make([]*transitionBatch, 0),
		pending: make(map[Entity]pendingMove),
	}
}

// move records that e, currently at from, now belongs at to. Either may be nil.
func (t *transition) move(e Entity, from, to *Node) {
	origin := from
	if p, ok := t.pending[e]; ok {
		origin = p.batch.prev
		t.detach(e, p)
	}
	if origin == to {
		return
	}

	key := batchKey{prev: nodeID(origin), next: nodeID(to)}
	b, ok := t.batches[key]
	if !ok {
		b = &transitionBatch{prev: origin, next: to, entities: make([]Entity, 0, 1)}
		t.batches[key] = b
		t.order = append(t.order, b)
	}
	t.pending[e] = pendingMove{batch: b, row: len(b.entities)}
	b.entities = append(b.entities, e)
}

func (t *transition) detach(e Entity, p pendingMove) {
	delete(t.pending, e)

	entities := p.batch.entities
	last := len(entities) - 1
	if p.row != last {
		moved := entities[last]
		entities[p.row] = moved
		t.pending[moved] = pendingMove{batch: p.batch, row: p.row}
	}
	p.batch.entities = entities[:last]
}

// len returns the number of entities with a pending move.
func (t *transition) len() int {
	return len(t.pending)
}

// drain hands every non-empty batch to fn, then notifies the listeners whose match status the
// batch changed. Returns the number of batches drained.
func (t *transition) drain(fn func(b *transitionBatch)) int {
	drained := 0
	for _, b := range t.order {
		if len(b.entities) == 0 {
			continue
		}
		fn(b)
		t.emit(b)
		drained++
	}

	clear(t.batches)
	clear(t.pending)
	t.order = t.order[:0]
	return drained
}

func (t *transition) emit(b *transitionBatch) {
	switch {
	case b.next == nil:
		t.notify(t.graph.walk(b.prev, false, nil), EntitiesOut, b)
	case b.prev == nil:
		t.notify(t.graph.walk(b.next, false, nil), EntitiesIn, b)
	default:
		// Nodes at or below the intersection matched before and still match.
		inter := Intersection(b.prev.typ, b.next.typ)
		unaffected := func(n *Node) bool { return isSubsetOrEqual(n.typ, inter) }
		t.notify(t.graph.walk(b.prev, false, unaffected), EntitiesOut, b)
		t.notify(t.graph.walk(b.next, false, unaffected), EntitiesIn, b)
	}
}

func (t *transition) notify(nodes []*Node, kind NodeEventKind, b *transitionBatch) {
	for _, n := range nodes {
		n.emit(NodeEvent{Kind: kind, Prev: b.prev, Next: b.next, Entities: b.entities})
	}
}

func nodeID(n *Node) NodeID {
	if n == nil {
		return 0
	}
	return n.id
}
