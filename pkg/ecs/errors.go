package ecs

import "github.com/rotisserie/eris"

var (
	// ErrComponentNotFound is returned when a component name doesn't resolve to a declared
	// component.
	ErrComponentNotFound = eris.New("component not found")

	// ErrInvalidSearch is returned when search parameters fail validation.
	ErrInvalidSearch = eris.New("invalid search params")
)
