package testutils

import "github.com/argus-labs/lattice/pkg/assert"

// Gen enumerates every combination of the bounded choices a test makes. Each pass through
// `for !g.Done()` replays the choices in order, and Done advances to the next combination by
// incrementing the rightmost choice that is still below its bound and zeroing the ones after it.
//
//	value:  3 1 4 4
//	bound:  5 4 4 4   -> next is 3 2 0 0
//
// See: <https://matklad.github.io/2021/11/07/generate-all-the-things.html>
type Gen struct {
	started bool
	v       [32]struct{ value, bound uint32 }
	p       int
	pMax    int
}

func NewGen() *Gen {
	return &Gen{}
}

// Done returns true when all combinations have been exhausted.
func (g *Gen) Done() bool {
	if !g.started {
		g.started = true
		return false
	}
	i := g.pMax
	for i > 0 {
		i--
		if g.v[i].value < g.v[i].bound {
			g.v[i].value++
			g.pMax = i + 1
			g.p = 0
			return false
		}
	}
	return true
}

func (g *Gen) gen(bound uint32) uint32 {
	assert.That(g.p < len(g.v), "gen: exceeded maximum depth of %d", len(g.v))
	if g.p == g.pMax {
		g.v[g.p] = struct{ value, bound uint32 }{}
		g.pMax++
	}
	g.p++
	g.v[g.p-1].bound = bound
	return g.v[g.p-1].value
}

// flip returns both booleans across passes.
func (g *Gen) flip() bool {
	return g.gen(1) == 1
}

// Subset returns one subset of items per pass; over all passes every subset is produced.
func Subset[T any](g *Gen, items []T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if g.flip() {
			out = append(out, item)
		}
	}
	return out
}
