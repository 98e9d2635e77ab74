package ecs

import (
	"fmt"
	"sync"

	"github.com/argus-labs/lattice/pkg/assert"
	"github.com/argus-labs/lattice/pkg/ecs/internal/entity"
	"github.com/goccy/go-json"
)

// Entity is an opaque handle to a set of components. See entity.Entity for the bit layout.
type Entity = entity.Entity

// ComponentID uniquely identifies a component. Ids below PairFactor are declared components; ids
// at or above it are pairs, computed as relation*PairFactor + target so they sort and hash like
// any other id.
type ComponentID uint64

// PairFactor separates declared component ids from pair ids. Entities fit in 31 bits.
const PairFactor ComponentID = 1 << 32

// Kind is the kind of a component.
type Kind uint8

const (
	KindTag Kind = iota + 1
	KindRef
	KindRelation
	KindRelationInverse
	KindPair
)

func (k Kind) String() string {
	switch k {
	case KindTag:
		return "tag"
	case KindRef:
		return "ref"
	case KindRelation:
		return "relation"
	case KindRelationInverse:
		return "relation_inverse"
	case KindPair:
		return "pair"
	default:
		return "unknown"
	}
}

// Topology controls how many targets a relation may have per subject.
type Topology uint8

const (
	// TopologyInclusive relations are many-to-many.
	TopologyInclusive Topology = iota
	// TopologyExclusive relations allow one target per subject. Despawning the target despawns
	// its subjects.
	TopologyExclusive
)

// Element is anything that contributes components to a Type: components, relations, pairs,
// initialized refs, and other types.
type Element interface {
	appendIDs(dst []ComponentID) []ComponentID
}

// valued is an element that carries an initial value for a ref component.
type valued interface {
	Element
	initValue() initValue
}

type initValue struct {
	id    ComponentID
	value any
}

// Component is a handle to a declared component or a pair.
type Component struct {
	id ComponentID
}

// ID returns the component id.
func (c Component) ID() ComponentID {
	return c.id
}

// Kind returns the component kind.
func (c Component) Kind() Kind {
	return kindOf(c.id)
}

// Name returns the name the component was declared with, or a generated one.
func (c Component) Name() string {
	return nameOf(c.id)
}

func (c Component) String() string {
	return c.Name()
}

func (c Component) appendIDs(dst []ComponentID) []ComponentID {
	return append(dst, c.id)
}

// Ref is a component that carries a value of type T.
type Ref[T any] struct {
	Component
}

// Init returns an element that adds the ref with v as its initial value.
func (r Ref[T]) Init(v T) Element {
	return refInit[T]{id: r.id, value: v}
}

type refInit[T any] struct {
	id    ComponentID
	value T
}

func (r refInit[T]) appendIDs(dst []ComponentID) []ComponentID {
	return append(dst, r.id)
}

func (r refInit[T]) initValue() initValue {
	return initValue{id: r.id, value: r.value}
}

// Relation is an entity-to-entity edge kind. The bare relation is itself an element; Of
// instantiates it against a target.
type Relation struct {
	Component
	inverse  ComponentID
	topology Topology
}

// Of returns the pair of this relation targeting the given entity.
func (r Relation) Of(target Entity) Component {
	return Component{id: r.id*PairFactor + ComponentID(target)}
}

// Inverse returns the companion component carried by entities that are targets of r.
func (r Relation) Inverse() Component {
	return Component{id: r.inverse}
}

// Topology returns whether the relation is inclusive or exclusive.
func (r Relation) Topology() Topology {
	return r.topology
}

// IsPair reports whether id is a relation instantiated against a target.
func IsPair(id ComponentID) bool {
	return id >= PairFactor
}

// PairRelation returns the relation id of a pair.
func PairRelation(id ComponentID) ComponentID {
	return id / PairFactor
}

// PairTarget returns the target entity of a pair.
func PairTarget(id ComponentID) Entity {
	return Entity(id % PairFactor) //nolint:gosec // pairs are built from 31-bit entities
}

// -------------------------------------------------------------------------------------------------
// Declaration
// -------------------------------------------------------------------------------------------------

// Option configures a component declaration.
type Option func(*componentInfo)

// WithName names the component. Names are unique and make the component visible to Search.
func WithName(name string) Option {
	return func(info *componentInfo) { info.name = name }
}

// WithDefault sets the value a ref starts with when it is added without one. Every entity gets
// its own deep copy.
func WithDefault[T any](v T) Option {
	return func(info *componentInfo) { info.def = v }
}

// Exclusive makes a relation exclusive.
func Exclusive() Option {
	return func(info *componentInfo) { info.topology = TopologyExclusive }
}

// Tag declares a zero-size marker component.
func Tag(opts ...Option) Component {
	info := defaultCatalog.declare(KindTag, opts)
	return Component{id: info.id}
}

// NewRef declares a component carrying a T.
func NewRef[T any](opts ...Option) Ref[T] {
	info := defaultCatalog.declareRef(opts, func(info *componentInfo) columnFactory {
		var defBytes []byte
		if info.def != nil {
			_, ok := info.def.(T)
			assert.That(ok, "default of %s must be a %T", info.name, *new(T))
			data, err := json.Marshal(info.def)
			assert.That(err == nil, "default of %s is not serializable: %v", info.name, err)
			defBytes = data
		}
		return newColumnFactory[T](info.id, defBytes)
	})
	return Ref[T]{Component: Component{id: info.id}}
}

// Rel declares a relation and its inverse.
func Rel(opts ...Option) Relation {
	rel, inv := defaultCatalog.declareRelation(opts)
	return Relation{
		Component: Component{id: rel.id},
		inverse:   inv.id,
		topology:  rel.topology,
	}
}

// -------------------------------------------------------------------------------------------------
// Catalog
// -------------------------------------------------------------------------------------------------

// componentInfo is the metadata of a declared component.
type componentInfo struct {
	id        ComponentID
	kind      Kind
	name      string
	topology  Topology
	companion ComponentID // Relation <-> inverse
	def       any
	newColumn columnFactory
}

// catalog holds component declarations and interned types. Components are declared from package
// initializers and parallel tests, so it is guarded by a mutex even though worlds are
// single-writer.
type catalog struct {
	mu     sync.RWMutex
	infos  []componentInfo // Component ID -> info, slot 0 unused
	byName map[string]ComponentID
	types  typeInterner
}

//nolint:gochecknoglobals // components are process-wide declarations
var defaultCatalog = newCatalog()

func newCatalog() *catalog {
	return &catalog{
		infos:  make([]componentInfo, 1, 64),
		byName: make(map[string]ComponentID),
		types:  newTypeInterner(),
	}
}

func (c *catalog) declare(kind Kind, opts []Option) componentInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.declareLocked(kind, opts, nil)
}

func (c *catalog) declareRef(opts []Option, columns func(*componentInfo) columnFactory) componentInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.declareLocked(KindRef, opts, columns)
}

func (c *catalog) declareRelation(opts []Option) (componentInfo, componentInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rel := c.declareLocked(KindRelation, opts, nil)
	invName := ""
	if rel.name != "" {
		invName = rel.name + "^-1"
	}
	inv := c.declareLocked(KindRelationInverse, []Option{WithName(invName)}, nil)

	c.infos[rel.id].companion = inv.id
	c.infos[inv.id].companion = rel.id
	c.infos[inv.id].topology = rel.topology
	return c.infos[rel.id], c.infos[inv.id]
}

func (c *catalog) declareLocked(kind Kind, opts []Option, columns func(*componentInfo) columnFactory) componentInfo {
	id := ComponentID(len(c.infos))
	assert.That(id < PairFactor, "component id space exhausted")

	info := componentInfo{id: id, kind: kind, topology: TopologyInclusive}
	for _, opt := range opts {
		opt(&info)
	}
	assert.That(kind == KindRelation || info.topology == TopologyInclusive, "only relations can be exclusive")
	assert.That(kind == KindRef || info.def == nil, "only refs can have a default value")

	if info.name != "" {
		_, taken := c.byName[info.name]
		assert.That(!taken, "component name %q is already declared", info.name)
		c.byName[info.name] = id
	}
	if columns != nil {
		info.newColumn = columns(&info)
	}

	c.infos = append(c.infos, info)
	return info
}

// info returns the metadata of a declared component. Pairs have no info of their own.
func (c *catalog) info(id ComponentID) componentInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.infoLocked(id)
}

func (c *catalog) infoLocked(id ComponentID) componentInfo {
	assert.That(!IsPair(id), "pair %d has no declaration", id)
	assert.That(id > 0 && int(id) < len(c.infos), "component %d is not declared", id)
	return c.infos[id]
}

func (c *catalog) kindLocked(id ComponentID) Kind {
	if IsPair(id) {
		return KindPair
	}
	return c.infoLocked(id).kind
}

func (c *catalog) lookup(name string) (ComponentID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byName[name]
	return id, ok
}

func kindOf(id ComponentID) Kind {
	defaultCatalog.mu.RLock()
	defer defaultCatalog.mu.RUnlock()
	return defaultCatalog.kindLocked(id)
}

func nameOf(id ComponentID) string {
	if IsPair(id) {
		return fmt.Sprintf("%s(%s)", nameOf(PairRelation(id)), PairTarget(id))
	}
	info := defaultCatalog.info(id)
	if info.name != "" {
		return info.name
	}
	return fmt.Sprintf("%s#%d", info.kind, id)
}
