package ecs

import (
	"slices"
	"strconv"
	"strings"

	"github.com/argus-labs/lattice/pkg/assert"
)

type monitorMode uint8

const (
	monitorNone monitorMode = iota
	monitorIn
	monitorOut
)

// Selector declares the shape a query matches: required terms, excluded terms, change filters,
// and joins that follow a relation from a matched entity to related entities matching a nested
// selector.
type Selector struct {
	with    []ComponentID // Required, in declaration order
	refs    []ComponentID // Refs whose values are yielded, in declaration order
	without []ComponentID
	changed []ComponentID
	joins   []join
	monitor monitorMode
}

type join struct {
	via ComponentID // Relation or relation inverse
	sub *Selector
}

// Select starts a selector requiring the given terms.
func Select(elems ...Element) *Selector {
	return (&Selector{}).With(elems...)
}

// With requires the given terms. Ref values are yielded in the order they are declared.
func (s *Selector) With(elems ...Element) *Selector {
	for _, el := range elems {
		for _, id := range el.appendIDs(nil) {
			if slices.Contains(s.with, id) {
				continue
			}
			s.with = append(s.with, id)
			if !IsPair(id) && kindOf(id) == KindRef {
				s.refs = append(s.refs, id)
			}
		}
	}
	return s
}

// Without excludes entities holding any of the given terms.
func (s *Selector) Without(elems ...Element) *Selector {
	for _, el := range elems {
		for _, id := range el.appendIDs(nil) {
			if !slices.Contains(s.without, id) {
				s.without = append(s.without, id)
			}
		}
	}
	return s
}

// Changed requires the given refs and skips entities whose values were not written since the
// query last ran. The first run treats every value written so far as changed.
func (s *Selector) Changed(elems ...Element) *Selector {
	s.With(elems...)
	for _, el := range elems {
		for _, id := range el.appendIDs(nil) {
			assert.That(!IsPair(id) && kindOf(id) == KindRef, "changed term %s is not a ref", nameOf(id))
			if !slices.Contains(s.changed, id) {
				s.changed = append(s.changed, id)
			}
		}
	}
	return s
}

// Join requires via and, for every matched entity, visits the entities related through it that
// match sub. A relation visits targets, a relation inverse visits subjects.
func (s *Selector) Join(via Element, sub *Selector) *Selector {
	ids := via.appendIDs(nil)
	assert.That(len(ids) == 1, "join term must be a single relation")
	id := ids[0]
	k := kindOf(id)
	assert.That(k == KindRelation || k == KindRelationInverse,
		"join term %s must be a relation or relation inverse, got %s", nameOf(id), k)
	assert.That(sub.monitor == monitorNone, "joined selector cannot be a monitor")

	if !slices.Contains(s.with, id) {
		s.with = append(s.with, id)
	}
	s.joins = append(s.joins, join{via: id, sub: sub})
	return s
}

// In turns the selector into a monitor of entities that started matching since it last ran.
func (s *Selector) In() *Selector {
	s.monitor = monitorIn
	return s
}

// Out turns the selector into a monitor of entities that stopped matching since it last ran.
func (s *Selector) Out() *Selector {
	s.monitor = monitorOut
	return s
}

// validate rejects shapes the compiler cannot serve.
func (s *Selector) validate(listener bool) {
	if listener {
		assert.That(len(s.joins) == 0, "monitors and effects cannot join")
		assert.That(len(s.without) == 0, "monitors and effects cannot exclude terms")
		assert.That(len(s.changed) == 0, "monitors and effects cannot filter changes")
	}
	for _, j := range s.joins {
		rel := j.via
		if kindOf(rel) == KindRelationInverse {
			rel = defaultCatalog.info(rel).companion
		}
		for _, id := range s.with {
			assert.That(!IsPair(id) || PairRelation(id) != rel,
				"selector requires %s and joins over %s", nameOf(id), nameOf(j.via))
		}
		j.sub.validate(false)
	}
}

// key identifies the selector shape for query caching.
func (s *Selector) key() string {
	var sb strings.Builder
	s.writeKey(&sb)
	return sb.String()
}

func (s *Selector) writeKey(sb *strings.Builder) {
	writeIDs := func(tag byte, ids []ComponentID) {
		sb.WriteByte(tag)
		for i, id := range ids {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.FormatUint(uint64(id), 10))
		}
		sb.WriteByte(';')
	}
	writeIDs('w', s.with)
	writeIDs('n', s.without)
	writeIDs('c', s.changed)
	sb.WriteByte('m')
	sb.WriteString(strconv.Itoa(int(s.monitor)))
	for _, j := range s.joins {
		sb.WriteString("(")
		sb.WriteString(strconv.FormatUint(uint64(j.via), 10))
		sb.WriteByte(':')
		j.sub.writeKey(sb)
		sb.WriteString(")")
	}
}
