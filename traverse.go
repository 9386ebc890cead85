package kgraph

import (
	"context"
	"fmt"

	"github.com/kgraph-ai/kgraph/graph"
)

// GetLineage returns the citation chain an exploration builds on: the
// exploration itself first, then its ancestors along BUILDS_ON. When the
// citation graph forks, only the single longest chain is returned.
func (g *KnowledgeGraph) GetLineage(ctx context.Context, entryID string) ([]Exploration, error) {
	paths, err := g.backend.Traverse(ctx, entryID, graph.EdgeBuildsOn, graph.Out, 0)
	if err != nil {
		return nil, fmt.Errorf("get lineage of %q: %w", entryID, err)
	}
	var longest *graph.Path
	for i := range paths {
		if longest == nil || len(paths[i].Nodes) > len(longest.Nodes) {
			longest = &paths[i]
		}
	}
	if longest == nil {
		return []Exploration{}, nil
	}
	return explorationsFromNodes(longest.Nodes), nil
}

// GetDescendants returns every exploration that transitively builds on the
// given one, excluding it, in first-seen traversal order.
func (g *KnowledgeGraph) GetDescendants(ctx context.Context, entryID string) ([]Exploration, error) {
	paths, err := g.backend.Traverse(ctx, entryID, graph.EdgeBuildsOn, graph.In, 0)
	if err != nil {
		return nil, fmt.Errorf("get descendants of %q: %w", entryID, err)
	}
	seen := map[string]bool{entryID: true}
	var out []Exploration
	for _, p := range paths {
		for i := range p.Nodes {
			n := &p.Nodes[i]
			if seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			out = append(out, explorationFromNode(n))
		}
	}
	if out == nil {
		out = []Exploration{}
	}
	return out, nil
}

// GetShortestPath returns the fewest-edge chain between two explorations
// over BUILDS_ON edges treated as undirected, or an empty slice when no
// chain connects them.
func (g *KnowledgeGraph) GetShortestPath(ctx context.Context, fromID, toID string) ([]Exploration, error) {
	p, err := g.backend.ShortestPath(ctx, fromID, toID, graph.EdgeBuildsOn)
	if err != nil {
		return nil, fmt.Errorf("get shortest path %q -> %q: %w", fromID, toID, err)
	}
	if p == nil {
		return []Exploration{}, nil
	}
	return explorationsFromNodes(p.Nodes), nil
}

func explorationsFromNodes(nodes []graph.Node) []Exploration {
	out := make([]Exploration, 0, len(nodes))
	for i := range nodes {
		out = append(out, explorationFromNode(&nodes[i]))
	}
	return out
}
