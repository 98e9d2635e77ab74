package ecs

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rotisserie/eris"
)

// SearchParam contains parameters for a search over named components.
// We use expr lang for the where clause to filter the entities, please refer to its documentation
// for more details: https://expr-lang.org/docs/getting-started.
type SearchParam struct {
	Find  []string    // Names of the components to search for
	Match SearchMatch // A match type to use for the search
	Where string      // Optional expr language string to filter the results
	Limit int         // Maximum number of results, 0 for no limit
}

// SearchMatch is the type of match to use for the search.
type SearchMatch string

const (
	// MatchExact matches entities that have exactly the specified components.
	MatchExact SearchMatch = "exact"
	// MatchContains matches entities that contain the specified components, but may have other
	// components as well.
	MatchContains SearchMatch = "contains"
)

// validateAndGetFilter validates the search parameters and returns an expr VM program compiled
// from the where clause.
func (s *SearchParam) validateAndGetFilter() (*vm.Program, error) {
	if len(s.Find) == 0 {
		return nil, eris.Wrap(ErrInvalidSearch, "component list cannot be empty")
	}
	if s.Match != MatchExact && s.Match != MatchContains {
		return nil, eris.Wrapf(ErrInvalidSearch, "invalid `match` value: must be either '%s' or '%s'",
			MatchExact, MatchContains)
	}
	if s.Limit < 0 {
		return nil, eris.Wrap(ErrInvalidSearch, "limit cannot be negative")
	}

	if len(s.Where) == 0 {
		return nil, nil //nolint:nilnil // no filter
	}

	filter, err := expr.Compile(s.Where, expr.AsBool())
	if err != nil {
		return nil, eris.Wrap(err, "failed to parse where clause")
	}
	return filter, nil
}

// Search returns the entities holding the named components that pass the where clause, as maps
// from component name to value. Tags map to true and "_id" holds the entity.
func (w *World) Search(params SearchParam) ([]map[string]any, error) {
	filter, err := params.validateAndGetFilter()
	if err != nil {
		return nil, err
	}

	nodes, err := w.searchNodes(params.Find, params.Match)
	if err != nil {
		return nil, eris.Wrap(err, "failed to get nodes from components")
	}

	results := make([]map[string]any, 0)
	for _, n := range nodes {
		for _, e := range n.Entities() {
			if params.Limit > 0 && len(results) == params.Limit {
				return results, nil
			}

			entityMap := w.toMap(e, n)
			if filter == nil {
				results = append(results, entityMap)
				continue
			}

			// The entity map is the environment, so the program can only be type checked while it
			// runs.
			output, err := expr.Run(filter, entityMap)
			if err != nil {
				return nil, eris.Wrap(err, "failed to run filter expression")
			}
			isMatchFilter, ok := output.(bool)
			if !ok {
				return nil, eris.Wrap(ErrInvalidSearch, "where clause must evaluate to a boolean")
			}
			if isMatchFilter {
				results = append(results, entityMap)
			}
		}
	}
	return results, nil
}

// searchNodes returns the nodes that match the given components and match type.
func (w *World) searchNodes(names []string, match SearchMatch) ([]*Node, error) {
	ids := make([]ComponentID, 0, len(names))
	for _, name := range names {
		id, ok := defaultCatalog.lookup(name)
		if !ok {
			return nil, eris.Wrapf(ErrComponentNotFound, "component %s", name)
		}
		ids = append(ids, id)
	}
	t := defaultCatalog.makeType(ids)

	switch match {
	case MatchExact:
		if n, ok := w.graph.Lookup(t); ok {
			return []*Node{n}, nil
		}
		return nil, nil
	case MatchContains:
		nodes := make([]*Node, 0)
		for _, n := range w.graph.Nodes() {
			if isSubsetOrEqual(t, n.typ) {
				nodes = append(nodes, n)
			}
		}
		return nodes, nil
	}
	return nil, eris.Wrapf(ErrInvalidSearch, "unknown match %q", match)
}

// toMap converts an entity to a map of its named components.
func (w *World) toMap(e Entity, n *Node) map[string]any {
	data := make(map[string]any, n.typ.Len()+1)

	// expr compares plain integers, not named types.
	data["_id"] = uint32(e)

	for _, id := range n.typ.ids {
		if IsPair(id) {
			continue
		}
		info := defaultCatalog.info(id)
		if info.name == "" {
			continue
		}
		switch info.kind {
		case KindRef:
			data[info.name] = w.store(id).At(e)
		case KindTag, KindRelation, KindRelationInverse:
			data[info.name] = true
		case KindPair:
		}
	}
	return data
}
