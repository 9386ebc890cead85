package kgraph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kgraph-ai/kgraph/contenthash"
	"github.com/kgraph-ai/kgraph/graph"
	"github.com/kgraph-ai/kgraph/pushid"
)

// KnowledgeGraph is the domain layer: a stateless facade bound to one
// backend and one actor address. All mutating methods follow the same
// protocol: upsert domain nodes and edges, write secondary structural
// edges, append one TxLog entry.
//
// The instance is single-writer by design. There is no internal locking;
// concurrent writers must be serialized externally per (actor, backend)
// pair.
type KnowledgeGraph struct {
	backend graph.Backend
	address string

	log    *slog.Logger
	now    func() time.Time
	ids    *pushid.Generator
	hasher contenthash.Hasher
}

// New binds a knowledge graph to a backend and an actor address. The
// address identifies the writer on CREATED, EXPLORED, and PAID_FOR edges
// and in the transaction log; it comes from the caller's wallet and is
// never verified here.
func New(backend graph.Backend, address string, opts ...Option) *KnowledgeGraph {
	g := &KnowledgeGraph{
		backend: backend,
		address: address,
		log:     slog.Default(),
		now:     time.Now,
		ids:     pushid.New(),
		hasher:  contenthash.SHA256{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Backend returns the underlying graph backend.
func (g *KnowledgeGraph) Backend() graph.Backend {
	return g.backend
}

// Address returns the actor address this instance writes as.
func (g *KnowledgeGraph) Address() string {
	return g.address
}

// nowMillis is the timestamp written to nodes and edges.
func (g *KnowledgeGraph) nowMillis() int64 {
	return g.now().UnixMilli()
}

// appendTxLog records one transaction log node for a completed mutation.
// Every mutating operation calls this exactly once, last.
func (g *KnowledgeGraph) appendTxLog(ctx context.Context, op, targetID string, targetType graph.Label) error {
	id := g.ids.Generate()
	err := g.backend.CreateNode(ctx, graph.Node{
		Label: graph.LabelTxLog,
		ID:    id,
		Properties: map[string]any{
			"op":          op,
			"actor":       g.address,
			"target_id":   targetID,
			"target_type": string(targetType),
			"timestamp":   g.nowMillis(),
		},
	})
	if err != nil {
		return fmt.Errorf("append tx log for %s: %w", op, err)
	}
	g.log.Debug("tx log appended", "op", op, "actor", g.address, "target", targetID)
	return nil
}
