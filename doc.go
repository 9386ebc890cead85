// Package kgraph is an append-only knowledge graph of topics, user-authored
// explorations, and the relationships between them.
//
// The package is the domain layer: a stateless facade bound to one graph
// backend and one actor address. It models a slash-separated topic
// hierarchy, immutable explorations attached to topics, citation edges
// extracted from tags, a transaction log entry per mutation, point-in-time
// snapshots, and SHA-256 content integrity verification.
//
// Storage is pluggable. The graph subpackage defines the backend contract;
// graph/memgraph is the in-memory reference, graph/redisgraph and
// graph/neograph are durable alternatives, and graph/otelgraph adds
// OpenTelemetry instrumentation around any of them. All backends are
// behaviorally equivalent and verified by the shared graph/graphtest suite.
//
// Basic usage:
//
//	backend := memgraph.New()
//	kg := kgraph.New(backend, "0xYourAddress")
//
//	err := kg.RegisterTopic(ctx, "ai/transformers", kgraph.TopicInfo{
//		Title: "Transformers",
//	})
//	id, err := kg.Explore(ctx, kgraph.ExploreInput{
//		TopicPath: "ai/transformers",
//		Title:     "Attention Is All You Need",
//		Content:   "...",
//		Depth:     2,
//	})
//
// A KnowledgeGraph instance is single-writer by design; concurrent writers
// must be serialized externally.
package kgraph
