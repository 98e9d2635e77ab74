package ecs

import (
	"slices"

	"github.com/argus-labs/lattice/pkg/ecs/internal/entity"
	"github.com/argus-labs/lattice/pkg/ecs/internal/sparse"
)

// NodeID identifies a node in the archetype graph. Ids are never reused, so a stale id never
// aliases a node created later.
type NodeID uint32

// Node is the archetype of one Type. It owns the set of entities whose type is exactly its type
// and is linked to its nearest subsets (prev) and supersets (next).
type Node struct {
	id       NodeID
	typ      *Type
	entities sparse.Dense[Entity]

	next   []*Node         // Nearest supersets, in link order
	prev   []*Node         // Nearest subsets, in link order
	edges  map[*Type]*Node // Xor(node, neighbor) -> neighbor
	depth  int             // Length of the type, used to order traversals
	relmap *relationMap    // Set on the home node of a relation
	hooks  []NodeListener  // Listeners interested in entities entering or leaving

	disposed bool
}

func newNode(id NodeID, typ *Type) *Node {
	return &Node{
		id:       id,
		typ:      typ,
		entities: sparse.NewDense(entity.Entity.Index),
		next:     make([]*Node, 0),
		prev:     make([]*Node, 0),
		edges:    make(map[*Type]*Node),
		depth:    typ.Len(),
	}
}

// ID returns the node id.
func (n *Node) ID() NodeID { return n.id }

// Type returns the type of the node.
func (n *Node) Type() *Type { return n.typ }

// Len returns the number of entities in the node.
func (n *Node) Len() int { return n.entities.Len() }

// Entities returns the entities in the node. The slice is invalidated by the next step.
func (n *Node) Entities() []Entity { return n.entities.Keys() }

// Next returns the nearest supersets of the node.
func (n *Node) Next() []*Node { return n.next }

// Prev returns the nearest subsets of the node.
func (n *Node) Prev() []*Node { return n.prev }

// Neighbor returns the linked node whose type differs from this one by delta.
func (n *Node) Neighbor(delta *Type) (*Node, bool) {
	v, ok := n.edges[delta]
	return v, ok
}

// Disposed reports whether the node has been pruned.
func (n *Node) Disposed() bool { return n.disposed }

// Listen registers a listener for events of this node.
func (n *Node) Listen(l NodeListener) {
	n.hooks = append(n.hooks, l)
}

// Unlisten removes a listener registered with Listen. It is safe to call from inside a
// listener: an emit in progress keeps delivering to the listeners it started with.
func (n *Node) Unlisten(l NodeListener) {
	if i := slices.Index(n.hooks, l); i >= 0 {
		n.hooks = slices.Delete(slices.Clone(n.hooks), i, i+1)
	}
}

func (n *Node) emit(ev NodeEvent) {
	ev.Node = n
	for _, h := range n.hooks {
		h.OnNodeEvent(ev)
	}
}

func (n *Node) linkNext(m *Node) {
	n.next = append(n.next, m)
	m.prev = append(m.prev, n)
	delta := Xor(n.typ, m.typ)
	n.edges[delta] = m
	m.edges[delta] = n
}

func (n *Node) unlinkNext(m *Node) {
	n.next = removeNode(n.next, m)
	m.prev = removeNode(m.prev, n)
	delta := Xor(n.typ, m.typ)
	delete(n.edges, delta)
	delete(m.edges, delta)
}

func (n *Node) hasNext(m *Node) bool {
	for _, x := range n.next {
		if x == m {
			return true
		}
	}
	return false
}

func removeNode(s []*Node, n *Node) []*Node {
	for i, x := range s {
		if x == n {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

// -------------------------------------------------------------------------------------------------
// Events
// -------------------------------------------------------------------------------------------------

// NodeEventKind is the kind of a node event.
type NodeEventKind uint8

const (
	// NodeCreated is sent to a node's listeners when a superset of it, or the node itself, is
	// created.
	NodeCreated NodeEventKind = iota + 1
	// NodeDisposed is sent when a superset of the node, or the node itself, is pruned.
	NodeDisposed
	// EntitiesIn is sent when entities start matching the node, i.e. land in it or in one of its
	// supersets without having been in one before.
	EntitiesIn
	// EntitiesOut is sent when entities stop matching the node.
	EntitiesOut
)

func (k NodeEventKind) String() string {
	switch k {
	case NodeCreated:
		return "node_created"
	case NodeDisposed:
		return "node_disposed"
	case EntitiesIn:
		return "entities_in"
	case EntitiesOut:
		return "entities_out"
	default:
		return "unknown"
	}
}

// NodeEvent is delivered to the listeners of a node.
type NodeEvent struct {
	Kind NodeEventKind
	// Node is the node whose listeners receive the event.
	Node *Node
	// Source is the created or disposed node.
	Source *Node
	// Prev and Next are the nodes the entities moved between. Prev is nil for spawns and Next is
	// nil for despawns.
	Prev, Next *Node
	// Entities are the moved entities. The slice is only valid during the callback.
	Entities []Entity
}

// NodeListener receives node events.
type NodeListener interface {
	OnNodeEvent(ev NodeEvent)
}
