package kgraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/kgraph-ai/kgraph/graph"
)

// RegisterTopic upserts a topic under its slash-separated path. Nested
// paths get a PARENT_OF edge from the parent path; the parent node itself
// is not auto-created, so callers should register ancestors first (a
// missing parent leaves a dangling edge, which the graph tolerates).
//
// Registration is merge-idempotent on path. Re-registering an existing
// topic overwrites title, description, created_at, and created_by with the
// current caller's values.
func (g *KnowledgeGraph) RegisterTopic(ctx context.Context, path string, info TopicInfo) error {
	now := g.nowMillis()

	err := g.backend.MergeNode(ctx, graph.LabelTopic, path, map[string]any{
		"path":        path,
		"title":       info.Title,
		"description": info.Description,
		"created_at":  now,
		"created_by":  g.address,
	})
	if err != nil {
		return fmt.Errorf("register topic %q: %w", path, err)
	}

	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		parent := path[:idx]
		err := g.backend.MergeEdge(ctx, graph.Edge{
			Type: graph.EdgeParentOf,
			From: parent,
			To:   path,
		})
		if err != nil {
			return fmt.Errorf("register topic %q: link parent: %w", path, err)
		}
	}

	if err := g.appendTxLog(ctx, "registerTopic", path, graph.LabelTopic); err != nil {
		return err
	}
	g.log.Info("topic registered", "path", path, "actor", g.address)
	return nil
}

// Explore appends a new exploration to a topic and returns its generated
// id. Explorations are append-only: identical inputs always produce a new
// node with a new id.
//
// When both Price and GatewayURL are set, the exploration is gated: the
// stored content is nil and only the content hash remains, computed from
// the original content supplied here.
//
// Tags of the form "builds-on:<id>" become BUILDS_ON citation edges;
// malformed or empty suffixes are ignored.
func (g *KnowledgeGraph) Explore(ctx context.Context, in ExploreInput) (string, error) {
	entryID := g.ids.Generate()
	now := g.nowMillis()
	gated := in.Price != "" && in.GatewayURL != ""
	hash := g.hasher.Sum(in.Content)

	err := g.backend.MergeNode(ctx, graph.LabelUser, g.address, map[string]any{
		"address": g.address,
	})
	if err != nil {
		return "", fmt.Errorf("explore: upsert user: %w", err)
	}

	var content any = in.Content
	if gated {
		content = nil
	}
	var price, gatewayURL any
	if in.Price != "" {
		price = in.Price
	}
	if in.GatewayURL != "" {
		gatewayURL = in.GatewayURL
	}

	err = g.backend.CreateNode(ctx, graph.Node{
		Label: graph.LabelExploration,
		ID:    entryID,
		Properties: map[string]any{
			"topic_path":   in.TopicPath,
			"title":        in.Title,
			"content":      content,
			"summary":      in.Summary,
			"depth":        in.Depth,
			"tags":         in.Tags,
			"price":        price,
			"gateway_url":  gatewayURL,
			"content_hash": hash,
			"created_at":   now,
			"updated_at":   now,
		},
	})
	if err != nil {
		return "", fmt.Errorf("explore: create exploration: %w", err)
	}

	if err := g.backend.CreateEdge(ctx, graph.Edge{Type: graph.EdgeCreated, From: g.address, To: entryID}); err != nil {
		return "", fmt.Errorf("explore: link author: %w", err)
	}
	if err := g.backend.CreateEdge(ctx, graph.Edge{Type: graph.EdgeInTopic, From: entryID, To: in.TopicPath}); err != nil {
		return "", fmt.Errorf("explore: link topic: %w", err)
	}
	if err := g.backend.IncrementEdgeProperty(ctx, graph.EdgeExplored, g.address, in.TopicPath, "count", 1); err != nil {
		return "", fmt.Errorf("explore: bump explored count: %w", err)
	}

	for _, parentID := range parseBuildsOn(in.Tags) {
		if err := g.backend.CreateEdge(ctx, graph.Edge{Type: graph.EdgeBuildsOn, From: entryID, To: parentID}); err != nil {
			return "", fmt.Errorf("explore: link builds-on %q: %w", parentID, err)
		}
	}

	if err := g.appendTxLog(ctx, "explore", entryID, graph.LabelExploration); err != nil {
		return "", err
	}
	g.log.Info("exploration created", "id", entryID, "topic", in.TopicPath, "gated", gated)
	return entryID, nil
}

// parseBuildsOn extracts cited exploration ids from a comma-separated tags
// string. Only tags literally prefixed "builds-on:" count; empty suffixes
// are dropped.
func parseBuildsOn(tags string) []string {
	var ids []string
	for _, tag := range strings.Split(tags, ",") {
		tag = strings.TrimSpace(tag)
		suffix, ok := strings.CutPrefix(tag, "builds-on:")
		if !ok || suffix == "" {
			continue
		}
		ids = append(ids, suffix)
	}
	return ids
}

// Access records the caller's access to an exploration and returns its
// content. Unknown entry ids fail with ErrNotFound. The graph layer only
// records a free access; payment, if any, happens outside and gated
// explorations come back with empty content.
//
// Access writes no transaction log entry: the log records content
// mutations (registrations and explorations), and the merged PAID_FOR
// edge is bookkeeping, not content.
func (g *KnowledgeGraph) Access(ctx context.Context, ownerAddress, topicPath, entryID string) (*AccessResult, error) {
	n, err := g.backend.GetNode(ctx, graph.LabelExploration, entryID)
	if err != nil {
		return nil, fmt.Errorf("access %q: %w", entryID, err)
	}
	if n == nil {
		return nil, fmt.Errorf("access %q: %w", entryID, ErrNotFound)
	}

	err = g.backend.MergeEdge(ctx, graph.Edge{
		Type: graph.EdgePaidFor,
		From: g.address,
		To:   entryID,
		Properties: map[string]any{
			"amount":      "0",
			"currency":    "FREE",
			"tx_hash":     "",
			"accessed_at": g.nowMillis(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("access %q: record access: %w", entryID, err)
	}

	content := ""
	if v, ok := n.Properties["content"]; ok && v != nil {
		if s, ok := v.(string); ok {
			content = s
		}
	}
	return &AccessResult{Content: content, Paid: false}, nil
}
