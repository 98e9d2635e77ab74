package ecs

// EffectHandlers are the callbacks of an effect. Either may be nil.
type EffectHandlers struct {
	// OnMatch runs once when an entity starts matching, with pointers to its ref values in
	// declaration order.
	OnMatch func(e Entity, values []any)
	// OnUnmatch runs once when an entity stops matching, including when it is despawned.
	OnUnmatch func(e Entity)
}

// Effect runs setup and teardown callbacks as entities enter and leave a shape. Callbacks run
// during Step, after node membership is updated; commands they stage apply at the next step.
type Effect struct {
	world    *World
	level    *queryLevel
	handlers EffectHandlers
	values   []any
	disposed bool
}

// Effect registers handlers for a selector without joins, exclusions, or change filters.
// OnMatch runs right away for the entities that already match.
func (w *World) Effect(sel *Selector, handlers EffectHandlers) *Effect {
	sel.validate(true)

	l := w.compileLevel(sel)
	fx := &Effect{
		world:    w,
		level:    l,
		handlers: handlers,
		values:   make([]any, len(l.refs)),
	}
	l.watch = fx.handle

	if handlers.OnMatch != nil {
		for _, n := range l.nodes {
			for _, e := range n.Entities() {
				l.fetch(e, fx.values)
				handlers.OnMatch(e, fx.values)
			}
		}
	}
	return fx
}

func (fx *Effect) handle(ev NodeEvent) {
	if fx.disposed {
		return
	}
	switch ev.Kind {
	case EntitiesIn:
		if fx.handlers.OnMatch == nil {
			return
		}
		for _, e := range ev.Entities {
			if fx.disposed {
				return
			}
			fx.level.fetch(e, fx.values)
			fx.handlers.OnMatch(e, fx.values)
		}
	case EntitiesOut:
		if fx.handlers.OnUnmatch == nil {
			return
		}
		for _, e := range ev.Entities {
			if fx.disposed {
				return
			}
			fx.handlers.OnUnmatch(e)
		}
	case NodeCreated, NodeDisposed:
	}
}

// Dispose stops the effect. OnUnmatch is not called for entities that still match.
func (fx *Effect) Dispose() {
	if fx.disposed {
		return
	}
	fx.disposed = true
	fx.level.base.Unlisten(fx.level)
}
