// Package ecs is an entity component system built around an archetype graph.
//
// Entities are handles to sets of components. Every distinct set of components in use (a Type)
// owns a node in the graph, and nodes are linked to their nearest subsets and supersets. Queries
// subscribe to the node of their required type and learn about every node created above it, so
// iterating a query only touches nodes that match.
//
// Structural changes are staged as commands and applied together by Step:
//
//	w, _ := ecs.NewWorld(ecs.WorldOptions{})
//	e := w.Spawn(Position.Init(Vec2{X: 1, Y: 2}))
//	w.Step()
//	ecs.Each1(w, ecs.Select(Position), func(e ecs.Entity, p *Vec2) { ... })
//
// Relations connect entities. A pair (relation instantiated against a target) is a component
// like any other, so entities with different targets live in different nodes. Despawning the
// target of an exclusive relation despawns its subjects, despawning the target of an inclusive
// relation only removes the pair from them.
package ecs
