package ecs

import (
	"slices"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// NodeDump describes one live node.
type NodeDump struct {
	ID         NodeID        `json:"id"`
	Components []ComponentID `json:"components"`
	Names      []string      `json:"names"`
	Entities   int           `json:"entities"`
	Next       []NodeID      `json:"next,omitempty"`
}

// WorldDump describes the shape of a world: its tick, entity count, and archetype graph.
type WorldDump struct {
	Tick     uint64     `json:"tick"`
	Entities int        `json:"entities"`
	Pending  int        `json:"pending"`
	Nodes    []NodeDump `json:"nodes"`
}

// Describe returns a description of the world's graph.
func (w *World) Describe() WorldDump {
	nodes := w.graph.Nodes()
	d := WorldDump{
		Tick:     w.tick,
		Entities: w.registry.Len(),
		Pending:  w.commands.Len(),
		Nodes:    make([]NodeDump, 0, len(nodes)),
	}
	for _, n := range nodes {
		nd := NodeDump{
			ID:         n.id,
			Components: slices.Clone(n.typ.ids),
			Names:      make([]string, 0, n.typ.Len()),
			Entities:   n.Len(),
		}
		for _, id := range n.typ.ids {
			nd.Names = append(nd.Names, nameOf(id))
		}
		for _, m := range n.next {
			nd.Next = append(nd.Next, m.id)
		}
		d.Nodes = append(d.Nodes, nd)
	}
	return d
}

// Dump encodes Describe as JSON.
func (w *World) Dump() ([]byte, error) {
	data, err := json.Marshal(w.Describe())
	if err != nil {
		return nil, eris.Wrap(err, "failed to marshal world dump")
	}
	return data, nil
}
