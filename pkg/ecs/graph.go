package ecs

import (
	"slices"

	"github.com/argus-labs/lattice/pkg/assert"
	"github.com/kelindar/bitmap"
	"github.com/rs/zerolog"
)

// Graph is the archetype graph. Every distinct Type in use has one node; edges connect each
// node to its nearest subsets and supersets only, so the edges form the cover relation of the
// subset order and every node is reachable from the root (the empty type).
type Graph struct {
	nodes  []*Node // NodeID -> node, nil once pruned; slot 0 unused
	byType map[*Type]*Node
	root   *Node
	seen   bitmap.Bitmap // Scratch visited set for traversals
	logger *zerolog.Logger
}

func newGraph(logger *zerolog.Logger) *Graph {
	g := &Graph{
		nodes:  make([]*Node, 1, 64),
		byType: make(map[*Type]*Node),
		logger: logger,
	}
	g.root = g.create(MakeType())
	return g
}

// Root returns the node of the empty type.
func (g *Graph) Root() *Node {
	return g.root
}

// Node returns the live node with the given id.
func (g *Graph) Node(id NodeID) (*Node, bool) {
	if int(id) >= len(g.nodes) || g.nodes[id] == nil {
		return nil, false
	}
	return g.nodes[id], true
}

// Lookup returns the node of a type without creating it.
func (g *Graph) Lookup(t *Type) (*Node, bool) {
	n, ok := g.byType[t]
	return n, ok
}

// Nodes returns the live nodes in id order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.byType))
	for _, n := range g.nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Len returns the number of live nodes.
func (g *Graph) Len() int {
	return len(g.byType)
}

func (g *Graph) create(t *Type) *Node {
	n := newNode(NodeID(len(g.nodes)), t) //nolint:gosec // node count fits in 32 bits
	g.nodes = append(g.nodes, n)
	g.byType[t] = n
	return n
}

// resolve returns the node of t, creating and linking it on first use.
func (g *Graph) resolve(t *Type) *Node {
	if n, ok := g.byType[t]; ok {
		return n
	}

	n := g.create(t)

	var subs, sups []*Node
	for _, v := range g.walk(g.root, true, nil) {
		switch {
		case v == n:
		case IsSuperset(t, v.typ):
			subs = append(subs, v)
		case IsSuperset(v.typ, t):
			sups = append(sups, v)
		}
	}

	for _, v := range maximal(subs) {
		// n interposes between v and the neighbors of v it is a subset of.
		for _, x := range slices.Clone(v.next) {
			if IsSuperset(x.typ, t) {
				v.unlinkNext(x)
			}
		}
		v.linkNext(n)
	}
	for _, s := range minimal(sups) {
		n.linkNext(s)
	}

	g.logger.Debug().Uint32("node", uint32(n.id)).Stringer("type", t).Msg("node created")

	targets := append(subs, n) //nolint:gocritic // subs is not used after this
	sortShallowFirst(targets)
	for _, x := range targets {
		x.emit(NodeEvent{Kind: NodeCreated, Source: n})
	}
	return n
}

// prune disposes n and every node above it, deepest first. Every pruned node must be empty.
func (g *Graph) prune(n *Node) int {
	assert.That(n != g.root, "cannot prune the root node")
	if n.disposed {
		return 0
	}

	targets := g.walk(n, true, nil)
	sortShallowFirst(targets)
	slices.Reverse(targets)
	for _, x := range targets {
		g.dispose(x)
	}
	return len(targets)
}

func (g *Graph) dispose(n *Node) {
	assert.That(n.Len() == 0, "cannot prune node %d with %d live entities", n.id, n.Len())

	for _, x := range g.walk(n, false, nil) {
		x.emit(NodeEvent{Kind: NodeDisposed, Source: n})
	}

	prev := slices.Clone(n.prev)
	next := slices.Clone(n.next)
	for _, p := range prev {
		p.unlinkNext(n)
	}
	for _, q := range next {
		n.unlinkNext(q)
	}

	// Reconnect the subsets and supersets the node used to sit between, unless another path
	// already covers them.
	for _, p := range prev {
		for _, q := range next {
			if !coveredBy(p, q) {
				p.linkNext(q)
			}
		}
	}

	n.disposed = true
	n.hooks = nil
	delete(g.byType, n.typ)
	g.nodes[n.id] = nil

	g.logger.Debug().Uint32("node", uint32(n.id)).Stringer("type", n.typ).Msg("node pruned")
}

// coveredBy reports whether q is already reachable from p through an existing next edge.
func coveredBy(p, q *Node) bool {
	for _, r := range p.next {
		if r == q || IsSuperset(q.typ, r.typ) {
			return true
		}
	}
	return false
}

// walk collects start and every node reachable from it, upward through next edges when up is
// set and downward through prev edges otherwise. Nodes for which skip returns true are neither
// collected nor walked through.
func (g *Graph) walk(start *Node, up bool, skip func(*Node) bool) []*Node {
	g.seen.Clear()
	out := make([]*Node, 0, 8)
	queue := []*Node{start}
	g.seen.Set(uint32(start.id))

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if skip != nil && skip(n) {
			continue
		}
		out = append(out, n)

		edges := n.prev
		if up {
			edges = n.next
		}
		for _, m := range edges {
			if g.seen.Contains(uint32(m.id)) {
				continue
			}
			g.seen.Set(uint32(m.id))
			queue = append(queue, m)
		}
	}
	return out
}

// maximal returns the nodes that are not a subset of another node in the list.
func maximal(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, v := range nodes {
		top := true
		for _, w := range nodes {
			if IsSuperset(w.typ, v.typ) {
				top = false
				break
			}
		}
		if top {
			out = append(out, v)
		}
	}
	return out
}

// minimal returns the nodes that are not a superset of another node in the list.
func minimal(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, v := range nodes {
		bottom := true
		for _, w := range nodes {
			if IsSuperset(v.typ, w.typ) {
				bottom = false
				break
			}
		}
		if bottom {
			out = append(out, v)
		}
	}
	return out
}

func sortShallowFirst(nodes []*Node) {
	slices.SortFunc(nodes, func(a, b *Node) int {
		if a.depth != b.depth {
			return a.depth - b.depth
		}
		return int(a.id) - int(b.id)
	})
}
