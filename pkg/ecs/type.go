package ecs

import (
	"encoding/binary"
	"slices"
	"strings"

	"github.com/argus-labs/lattice/pkg/assert"
	"github.com/cespare/xxhash/v2"
)

// Type is a canonical, interned set of component ids. Two equal component sets always resolve to
// the same *Type, so types compare by pointer. The id slice is sorted and must not be modified.
type Type struct {
	ids       []ComponentID
	hash      uint64
	refs      []ComponentID // Payload-bearing components
	relations []ComponentID
	inverses  []ComponentID
	pairs     []ComponentID
}

// MakeType flattens the elements into a Type. A pair implies its bare relation. Panics if the
// result holds two pairs of the same exclusive relation.
func MakeType(elems ...Element) *Type {
	ids := make([]ComponentID, 0, len(elems)+2)
	for _, el := range elems {
		ids = el.appendIDs(ids)
	}
	return defaultCatalog.makeType(ids)
}

// IDs returns the sorted component ids.
func (t *Type) IDs() []ComponentID { return t.ids }

// Len returns the number of components.
func (t *Type) Len() int { return len(t.ids) }

// Hash returns the structural hash of the type.
func (t *Type) Hash() uint64 { return t.hash }

// Refs returns the payload-bearing components.
func (t *Type) Refs() []ComponentID { return t.refs }

// Relations returns the bare relations.
func (t *Type) Relations() []ComponentID { return t.relations }

// Inverses returns the relation inverses.
func (t *Type) Inverses() []ComponentID { return t.inverses }

// Pairs returns the relation instances.
func (t *Type) Pairs() []ComponentID { return t.pairs }

// Has reports whether the type contains id.
func (t *Type) Has(id ComponentID) bool {
	_, found := slices.BinarySearch(t.ids, id)
	return found
}

// HasAll reports whether every component of el is in the type.
func (t *Type) HasAll(el Element) bool {
	for _, id := range el.appendIDs(nil) {
		if !t.Has(id) {
			return false
		}
	}
	return true
}

func (t *Type) appendIDs(dst []ComponentID) []ComponentID {
	return append(dst, t.ids...)
}

func (t *Type) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, id := range t.ids {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(nameOf(id))
	}
	sb.WriteByte(']')
	return sb.String()
}

// -------------------------------------------------------------------------------------------------
// Algebra
//
// Every operation is a linear merge over the sorted id slices.
// -------------------------------------------------------------------------------------------------

// IsSuperset reports whether a strictly contains b. A type is never a superset of itself and the
// empty type is never a superset.
func IsSuperset(a, b *Type) bool {
	return len(a.ids) > len(b.ids) && containsAll(a.ids, b.ids)
}

// isSubsetOrEqual reports whether every id of a is in b.
func isSubsetOrEqual(a, b *Type) bool {
	return a == b || (len(a.ids) < len(b.ids) && containsAll(b.ids, a.ids))
}

func containsAll(a, b []ComponentID) bool {
	i := 0
	for _, id := range b {
		for i < len(a) && a[i] < id {
			i++
		}
		if i == len(a) || a[i] != id {
			return false
		}
		i++
	}
	return true
}

// Xor returns the symmetric difference of a and b. Adjacent graph nodes are keyed by it.
func Xor(a, b *Type) *Type {
	out := make([]ComponentID, 0, len(a.ids)+len(b.ids))
	i, j := 0, 0
	for i < len(a.ids) && j < len(b.ids) {
		switch {
		case a.ids[i] < b.ids[j]:
			out = append(out, a.ids[i])
			i++
		case a.ids[i] > b.ids[j]:
			out = append(out, b.ids[j])
			j++
		default:
			i++
			j++
		}
	}
	out = append(out, a.ids[i:]...)
	out = append(out, b.ids[j:]...)
	return defaultCatalog.internSorted(out)
}

// Sum returns the union of a and b.
func Sum(a, b *Type) *Type {
	out := make([]ComponentID, 0, len(a.ids)+len(b.ids))
	i, j := 0, 0
	for i < len(a.ids) && j < len(b.ids) {
		switch {
		case a.ids[i] < b.ids[j]:
			out = append(out, a.ids[i])
			i++
		case a.ids[i] > b.ids[j]:
			out = append(out, b.ids[j])
			j++
		default:
			out = append(out, a.ids[i])
			i++
			j++
		}
	}
	out = append(out, a.ids[i:]...)
	out = append(out, b.ids[j:]...)
	return defaultCatalog.internSorted(out)
}

// Intersection returns the components present in both a and b.
func Intersection(a, b *Type) *Type {
	out := make([]ComponentID, 0, min(len(a.ids), len(b.ids)))
	i, j := 0, 0
	for i < len(a.ids) && j < len(b.ids) {
		switch {
		case a.ids[i] < b.ids[j]:
			i++
		case a.ids[i] > b.ids[j]:
			j++
		default:
			out = append(out, a.ids[i])
			i++
			j++
		}
	}
	return defaultCatalog.internSorted(out)
}

// Difference returns a without the components of b. A bare relation stays while the result still
// holds one of its pairs, and goes away with its last pair.
func Difference(a, b *Type) *Type {
	out := make([]ComponentID, 0, len(a.ids))
	j := 0
	for _, id := range a.ids {
		for j < len(b.ids) && b.ids[j] < id {
			j++
		}
		if j < len(b.ids) && b.ids[j] == id {
			continue
		}
		out = append(out, id)
	}

	if len(a.pairs) > 0 {
		out = fixRelations(out, a)
	}
	return defaultCatalog.internSorted(out)
}

// fixRelations keeps ids consistent with the pairs left in it: relations with a surviving pair
// are restored, relations whose pairs were all removed are dropped.
func fixRelations(ids []ComponentID, from *Type) []ComponentID {
	for _, rel := range from.relations {
		hadPair, hasPair := false, false
		for _, p := range from.pairs {
			if PairRelation(p) != rel {
				continue
			}
			hadPair = true
			if _, ok := slices.BinarySearch(ids, p); ok {
				hasPair = true
				break
			}
		}

		pos, present := slices.BinarySearch(ids, rel)
		switch {
		case hasPair && !present:
			ids = slices.Insert(ids, pos, rel)
		case hadPair && !hasPair && present:
			ids = slices.Delete(ids, pos, pos+1)
		}
	}
	return ids
}

// -------------------------------------------------------------------------------------------------
// Interning
// -------------------------------------------------------------------------------------------------

type typeInterner struct {
	buckets map[uint64][]*Type // Hash -> types with that hash
}

func newTypeInterner() typeInterner {
	return typeInterner{buckets: make(map[uint64][]*Type)}
}

func hashIDs(ids []ComponentID) uint64 {
	var buf [8]byte
	d := xxhash.New()
	for _, id := range ids {
		binary.LittleEndian.PutUint64(buf[:], uint64(id))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// makeType canonicalizes an unordered id list: implied relations are added, ids are sorted and
// deduplicated.
func (c *catalog) makeType(ids []ComponentID) *Type {
	for _, id := range ids {
		if IsPair(id) {
			ids = append(ids, PairRelation(id))
		}
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)
	return c.internSorted(ids)
}

// internSorted returns the interned type for sorted, unique ids.
func (c *catalog) internSorted(ids []ComponentID) *Type {
	h := hashIDs(ids)

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range c.types.buckets[h] {
		if slices.Equal(t.ids, ids) {
			return t
		}
	}

	t := &Type{ids: slices.Clip(ids), hash: h}
	exclusive := make(map[ComponentID]ComponentID)
	for _, id := range ids {
		switch c.kindLocked(id) {
		case KindRef:
			t.refs = append(t.refs, id)
		case KindRelation:
			t.relations = append(t.relations, id)
		case KindRelationInverse:
			t.inverses = append(t.inverses, id)
		case KindPair:
			t.pairs = append(t.pairs, id)
			rel := PairRelation(id)
			if c.infoLocked(rel).topology != TopologyExclusive {
				continue
			}
			if other, seen := exclusive[rel]; seen {
				assert.That(false, "type holds two pairs of exclusive relation %d: %d and %d", rel, other, id)
			}
			exclusive[rel] = id
		case KindTag:
		default:
			assert.Unreachable("unknown kind for component %d", id)
		}
	}

	c.types.buckets[h] = append(c.types.buckets[h], t)
	return t
}
