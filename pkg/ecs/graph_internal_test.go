package ecs

import (
	"testing"

	"github.com/argus-labs/lattice/pkg/testutils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGraph() *Graph {
	logger := zerolog.Nop()
	return newGraph(&logger)
}

// recorder keeps the events a node received.
type recorder struct {
	events []NodeEvent
}

func (r *recorder) OnNodeEvent(ev NodeEvent) {
	ev.Entities = append([]Entity(nil), ev.Entities...)
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []NodeEventKind {
	out := make([]NodeEventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

// requireCoverEdges checks that next edges connect exactly the pairs (u, v) where v is a superset
// of u with no live node strictly between them.
func requireCoverEdges(t *testing.T, g *Graph) {
	t.Helper()

	nodes := g.Nodes()
	for _, u := range nodes {
		for _, v := range nodes {
			covers := IsSuperset(v.typ, u.typ)
			if covers {
				for _, w := range nodes {
					if IsSuperset(w.typ, u.typ) && IsSuperset(v.typ, w.typ) {
						covers = false
						break
					}
				}
			}
			require.Equal(t, covers, u.hasNext(v), "edge %s -> %s", u.typ, v.typ)
			if covers {
				n, ok := u.Neighbor(Xor(u.typ, v.typ))
				require.True(t, ok)
				require.Same(t, v, n)
			}
		}
	}
}

func TestGraph_LinksNearestNeighbors(t *testing.T) {
	t.Parallel()

	g := newTestGraph()
	abc := g.resolve(MakeType(tagA, tagB, tagC))
	assert.Equal(t, []*Node{abc}, g.Root().Next())

	a := g.resolve(MakeType(tagA))
	assert.Equal(t, []*Node{a}, g.Root().Next(), "A interposes between root and ABC")
	assert.Equal(t, []*Node{abc}, a.Next())

	ab := g.resolve(MakeType(tagA, tagB))
	assert.Equal(t, []*Node{ab}, a.Next())
	assert.Equal(t, []*Node{abc}, ab.Next())
	assert.Equal(t, []*Node{ab}, abc.Prev())

	b := g.resolve(MakeType(tagB))
	assert.ElementsMatch(t, []*Node{a, b}, g.Root().Next())
	assert.ElementsMatch(t, []*Node{a, b}, ab.Prev())

	assert.Same(t, ab, g.resolve(MakeType(tagB, tagA)), "resolve is idempotent")
	requireCoverEdges(t, g)
}

func TestGraph_NodeCreatedBottomUp(t *testing.T) {
	t.Parallel()

	g := newTestGraph()
	a := g.resolve(MakeType(tagA))
	b := g.resolve(MakeType(tagB))

	var order []*Node
	listen := func(n *Node) *recorder {
		r := &recorder{}
		n.Listen(r)
		n.Listen(&orderProbe{node: n, order: &order})
		return r
	}
	rootRec, aRec, bRec := listen(g.Root()), listen(a), listen(b)

	ac := g.resolve(MakeType(tagA, tagC))
	require.Len(t, rootRec.events, 1)
	require.Len(t, aRec.events, 1)
	assert.Empty(t, bRec.events, "B is not a subset of AC")
	assert.Same(t, ac, aRec.events[0].Source)
	assert.Equal(t, NodeCreated, aRec.events[0].Kind)
	assert.Equal(t, []*Node{g.Root(), a}, order)
}

type orderProbe struct {
	node  *Node
	order *[]*Node
}

func (p *orderProbe) OnNodeEvent(NodeEvent) { *p.order = append(*p.order, p.node) }

func TestGraph_Prune(t *testing.T) {
	t.Parallel()

	g := newTestGraph()
	a := g.resolve(MakeType(tagA))
	ab := g.resolve(MakeType(tagA, tagB))
	ac := g.resolve(MakeType(tagA, tagC))
	abc := g.resolve(MakeType(tagA, tagB, tagC))
	b := g.resolve(MakeType(tagB))

	rec := &recorder{}
	a.Listen(rec)

	assert.Equal(t, 2, g.prune(ab), "prunes the node and everything above it")
	assert.True(t, ab.Disposed())
	assert.True(t, abc.Disposed())
	assert.False(t, ac.Disposed())

	_, ok := g.Lookup(ab.Type())
	assert.False(t, ok)
	_, ok = g.Node(abc.ID())
	assert.False(t, ok)
	assert.Equal(t, []NodeEventKind{NodeDisposed, NodeDisposed}, rec.kinds())
	assert.Same(t, abc, rec.events[0].Source, "deepest first")

	assert.Equal(t, []*Node{ac}, a.Next())
	assert.Empty(t, b.Next())
	requireCoverEdges(t, g)

	abAgain := g.resolve(MakeType(tagA, tagB))
	assert.NotEqual(t, ab.ID(), abAgain.ID(), "node ids are never reused")
	requireCoverEdges(t, g)

	assert.Panics(t, func() { g.prune(g.Root()) })
}

func TestGraph_PruneRequiresEmpty(t *testing.T) {
	t.Parallel()

	g := newTestGraph()
	a := g.resolve(MakeType(tagA))
	a.entities.Add(Entity(1))

	assert.Panics(t, func() { g.prune(a) })
}

func TestGraph_DisposeRelinks(t *testing.T) {
	t.Parallel()

	g := newTestGraph()
	a := g.resolve(MakeType(tagA))
	ab := g.resolve(MakeType(tagA, tagB))
	abc := g.resolve(MakeType(tagA, tagB, tagC))

	// Removing a node from the middle of a chain reconnects its neighbors.
	g.dispose(ab)
	assert.Equal(t, []*Node{abc}, a.Next())
	requireCoverEdges(t, g)
}

// -------------------------------------------------------------------------------------------------
// Model-Based Fuzzing
//
// Random subsets of five tags are resolved and pruned. After every operation the edges must be
// exactly the cover relation of the live nodes.
// -------------------------------------------------------------------------------------------------

type graphOp uint8

const (
	opResolve graphOp = 80
	opPrune   graphOp = 20
)

func TestGraph_ModelBasedFuzz(t *testing.T) {
	t.Parallel()
	prng := testutils.NewRand(t)

	universe := []Component{tagA, tagB, tagC, tagD, tagE}
	g := newTestGraph()

	for range 1 << 9 {
		switch testutils.RandWeightedOp(prng, []graphOp{opResolve, opPrune}) {
		case opResolve:
			picked := make([]Element, 0, len(universe))
			for _, c := range universe {
				if prng.IntN(2) == 0 {
					picked = append(picked, c)
				}
			}
			n := g.resolve(MakeType(picked...))
			require.False(t, n.Disposed())

		case opPrune:
			nodes := g.Nodes()
			if len(nodes) < 2 {
				continue
			}
			victim := nodes[1+prng.IntN(len(nodes)-1)]
			g.prune(victim)
			for _, n := range g.Nodes() {
				require.False(t, isSubsetOrEqual(victim.typ, n.typ), "%s survived pruning %s", n.typ, victim.typ)
			}

		default:
			panic("unreachable")
		}

		requireCoverEdges(t, g)
	}
}
