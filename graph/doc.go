// Package graph defines the backend contract for the knowledge graph: a
// store of labeled nodes and typed directed edges with indexed lookups,
// aggregation, traversal, and shortest-path primitives.
//
// Multiple backends implement the Backend interface (see memgraph for the
// in-memory reference, redisgraph for Redis, neograph for Neo4j). Given the
// same sequence of calls, conforming backends produce observably identical
// results for every read operation; the graphtest package verifies this.
//
// Nodes are keyed by (Label, ID). Edges reference nodes by ID only; the
// graph assumes IDs are globally unique across labels, and it tolerates
// edges whose endpoints do not (yet) exist as nodes.
//
// The derived operations (GetChildren, GetRoots, AggregateOverEdge,
// AggregateGrouped, Traverse, ShortestPath) have a single shared
// implementation in this package, expressed over the primitive read
// surface. Backends delegate to it so they cannot diverge on query
// semantics.
package graph
