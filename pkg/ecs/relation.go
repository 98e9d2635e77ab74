package ecs

import "slices"

// relationMap indexes the pairs of one relation in both directions. It lives on the home node of
// the relation (the node of the bare relation type).
type relationMap struct {
	rel      ComponentID
	objects  map[Entity][]Entity // Subject -> targets
	subjects map[Entity][]Entity // Target -> subjects
}

func newRelationMap(rel ComponentID) *relationMap {
	return &relationMap{
		rel:      rel,
		objects:  make(map[Entity][]Entity),
		subjects: make(map[Entity][]Entity),
	}
}

// add records subject -> target. Returns false if the pair was already recorded.
func (m *relationMap) add(subject, target Entity) bool {
	if slices.Contains(m.objects[subject], target) {
		return false
	}
	m.objects[subject] = append(m.objects[subject], target)
	m.subjects[target] = append(m.subjects[target], subject)
	return true
}

// remove deletes subject -> target and reports whether target has subjects left.
func (m *relationMap) remove(subject, target Entity) bool {
	m.objects[subject] = deleteEntity(m.objects[subject], target)
	if len(m.objects[subject]) == 0 {
		delete(m.objects, subject)
	}
	m.subjects[target] = deleteEntity(m.subjects[target], subject)
	if len(m.subjects[target]) == 0 {
		delete(m.subjects, target)
		return false
	}
	return true
}

func (m *relationMap) has(subject, target Entity) bool {
	return slices.Contains(m.objects[subject], target)
}

// targetsOf returns the targets of subject. The slice must not be modified.
func (m *relationMap) targetsOf(subject Entity) []Entity {
	return m.objects[subject]
}

// subjectsOf returns the subjects targeting target. The slice must not be modified.
func (m *relationMap) subjectsOf(target Entity) []Entity {
	return m.subjects[target]
}

// deleteEntity swap-removes e from s. Order of relatives is not significant.
func deleteEntity(s []Entity, e Entity) []Entity {
	i := slices.Index(s, e)
	if i < 0 {
		return s
	}
	last := len(s) - 1
	s[i] = s[last]
	return s[:last]
}
