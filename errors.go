package boxtree

import "errors"

// Sentinel errors for index operations.
var (
	// ErrDimensionMismatch is returned when a box, point, or line has a
	// coordinate arity different from the index dimension. Coordinates are
	// never truncated or padded.
	ErrDimensionMismatch = errors.New("coordinate dimension mismatch")

	// ErrNotBuilt is returned by every query while no tree exists. Queries
	// never trigger a build.
	ErrNotBuilt = errors.New("tree not built")

	// ErrZeroDirection is returned by line queries whose direction vector
	// is zero on every axis.
	ErrZeroDirection = errors.New("line direction is zero")

	// ErrInvalidOptions is returned by New for out of range options.
	ErrInvalidOptions = errors.New("invalid options")
)
