// Package assert guards invariants whose violation means the engine's indices can no longer be
// trusted. A failed assertion panics with the formatted message in every build.
package assert

import "fmt"

func That(cond bool, format string, args ...any) { //nolint:goprintffuncname // it's ok
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

// Unreachable panics unconditionally. Use it on switch arms that a valid state can never hit.
func Unreachable(format string, args ...any) {
	panic("unreachable: " + fmt.Sprintf(format, args...))
}
