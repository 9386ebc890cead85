package graph

import "errors"

// Sentinel errors for backend operations. Use errors.Is to test for them.
var (
	// ErrClosed is returned by any operation on a backend after Close.
	ErrClosed = errors.New("graph: backend closed")

	// ErrNotFound is returned by lookups that the caller requires to
	// succeed. Plain read operations never return it; absent keys yield
	// nil or empty results instead.
	ErrNotFound = errors.New("graph: not found")

	// ErrInvalidDirection is returned when a Direction is neither In nor Out.
	ErrInvalidDirection = errors.New("graph: invalid direction")
)
