package kgraph

import (
	"log/slog"
	"time"

	"github.com/kgraph-ai/kgraph/contenthash"
	"github.com/kgraph-ai/kgraph/pushid"
)

// Option configures a KnowledgeGraph.
type Option func(*KnowledgeGraph)

// WithLogger sets a custom structured logger. If not provided, slog.Default
// is used.
func WithLogger(logger *slog.Logger) Option {
	return func(g *KnowledgeGraph) {
		if logger != nil {
			g.log = logger
		}
	}
}

// WithClock replaces the time source. Timestamps written to nodes and edges
// come from this function; tests use it to pin time.
func WithClock(now func() time.Time) Option {
	return func(g *KnowledgeGraph) {
		if now != nil {
			g.now = now
		}
	}
}

// WithIDGenerator replaces the push-id generator used for Exploration,
// TxLog, and Snapshot ids.
func WithIDGenerator(gen *pushid.Generator) Option {
	return func(g *KnowledgeGraph) {
		if gen != nil {
			g.ids = gen
		}
	}
}

// WithHasher replaces the content hasher. The default is SHA-256;
// replacements must be interchangeable or stored hashes stop verifying.
func WithHasher(h contenthash.Hasher) Option {
	return func(g *KnowledgeGraph) {
		if h != nil {
			g.hasher = h
		}
	}
}
