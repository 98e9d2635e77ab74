package testutils_test

import (
	"testing"

	"github.com/argus-labs/lattice/pkg/testutils"
	"github.com/stretchr/testify/assert"
)

func TestSubset_EnumeratesEverySubset(t *testing.T) {
	t.Parallel()

	seen := make(map[string]int)
	g := testutils.NewGen()
	for !g.Done() {
		key := ""
		for _, s := range testutils.Subset(g, []string{"a", "b", "c"}) {
			key += s
		}
		seen[key]++
	}

	assert.Len(t, seen, 8)
	for key, n := range seen {
		assert.Equal(t, 1, n, "subset %q produced more than once", key)
	}
}

type op uint8

const (
	opRare   op = 1
	opCommon op = 99
)

func TestRandWeightedOp_FollowsWeights(t *testing.T) {
	t.Parallel()
	prng := testutils.NewRand(t)

	counts := make(map[op]int)
	for range 1000 {
		counts[testutils.RandWeightedOp(prng, []op{opRare, opCommon})]++
	}
	assert.Greater(t, counts[opCommon], counts[opRare])
	assert.Equal(t, 1000, counts[opRare]+counts[opCommon])
}

func TestRandElem(t *testing.T) {
	t.Parallel()
	prng := testutils.NewRand(t)

	items := []int{4, 8, 15}
	for range 100 {
		assert.Contains(t, items, testutils.RandElem(prng, items))
	}
}
