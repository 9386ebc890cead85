package kgraph

import "github.com/kgraph-ai/kgraph/graph"

// Sentinel errors surfaced by the domain layer. Backend errors (I/O,
// connectivity) are wrapped and propagated as-is; they are never one of
// these.
var (
	// ErrNotFound indicates a direct lookup by id for an absent node, most
	// commonly an Access call naming an unknown exploration.
	ErrNotFound = graph.ErrNotFound
)
