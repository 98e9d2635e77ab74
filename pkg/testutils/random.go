package testutils

import (
	"math/rand/v2"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"
)

// seed is shared by every test in the process. Set TEST_SEED to replay a failing run.
var seed = sync.OnceValue(func() uint64 { //nolint:gochecknoglobals // one seed per test binary
	if env := os.Getenv("TEST_SEED"); env != "" {
		if parsed, err := strconv.ParseUint(env, 0, 64); err == nil {
			return parsed
		}
	}
	return uint64(time.Now().UnixNano()) //nolint:gosec // wall clock is never negative here
})

// NewRand returns a PRNG seeded from TEST_SEED or the clock, and logs the seed on the test so a
// failure can be reproduced.
func NewRand(t *testing.T) *rand.Rand {
	t.Helper()
	s := seed()
	t.Logf("to reproduce: TEST_SEED=0x%x", s)
	return rand.New(rand.NewPCG(s, s)) //nolint:gosec // weak RNG is fine for tests
}

// WeightedOp is a constraint for operation types that use their value as the weight.
type WeightedOp interface {
	~uint8 | ~uint16 | ~uint32 | ~int
}

// RandWeightedOp picks one of ops with probability proportional to its value.
func RandWeightedOp[T WeightedOp](r *rand.Rand, ops []T) T {
	total := 0
	for _, op := range ops {
		total += int(op)
	}
	pick := r.IntN(total)
	for _, op := range ops {
		if pick < int(op) {
			return op
		}
		pick -= int(op)
	}
	panic("unreachable")
}

// RandElem returns a random element of a non-empty slice.
func RandElem[T any](r *rand.Rand, s []T) T {
	return s[r.IntN(len(s))]
}
