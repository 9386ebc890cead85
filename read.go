package kgraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/kgraph-ai/kgraph/graph"
)

// ListTopics returns the root topics: those with no incoming PARENT_OF
// edge, sorted by path.
func (g *KnowledgeGraph) ListTopics(ctx context.Context) ([]Topic, error) {
	nodes, err := g.backend.GetRoots(ctx, graph.LabelTopic, graph.EdgeParentOf)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	topics := make([]Topic, 0, len(nodes))
	for i := range nodes {
		topics = append(topics, topicFromNode(&nodes[i]))
	}
	return topics, nil
}

// ListSubtopics returns the direct children of a topic path.
func (g *KnowledgeGraph) ListSubtopics(ctx context.Context, path string) ([]Topic, error) {
	nodes, err := g.backend.GetChildren(ctx, graph.LabelTopic, path, graph.EdgeParentOf, graph.LabelTopic)
	if err != nil {
		return nil, fmt.Errorf("list subtopics of %q: %w", path, err)
	}
	topics := make([]Topic, 0, len(nodes))
	for i := range nodes {
		topics = append(topics, topicFromNode(&nodes[i]))
	}
	return topics, nil
}

// GetTopicInfo returns a registered topic, or nil when the path is unknown.
func (g *KnowledgeGraph) GetTopicInfo(ctx context.Context, path string) (*Topic, error) {
	n, err := g.backend.GetNode(ctx, graph.LabelTopic, path)
	if err != nil {
		return nil, fmt.Errorf("get topic %q: %w", path, err)
	}
	if n == nil {
		return nil, nil
	}
	t := topicFromNode(n)
	return &t, nil
}

// createdExplorations resolves every exploration the user authored, in
// creation order. Returns nil when the user has no CREATED edges at all.
func (g *KnowledgeGraph) createdExplorations(ctx context.Context, address string) ([]Exploration, error) {
	edges, err := g.backend.GetEdges(ctx, address, graph.EdgeCreated, graph.Out)
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return nil, nil
	}
	out := make([]Exploration, 0, len(edges))
	for _, e := range edges {
		n, err := g.backend.GetNode(ctx, graph.LabelExploration, e.To)
		if err != nil {
			return nil, err
		}
		if n == nil {
			continue
		}
		out = append(out, explorationFromNode(n))
	}
	return out, nil
}

// GetExplorations returns the user's explorations in one topic, keyed by
// entry id. The result is nil when the user has created nothing, and an
// empty map when they have creations but none in this topic.
func (g *KnowledgeGraph) GetExplorations(ctx context.Context, address, topicPath string) (map[string]Exploration, error) {
	created, err := g.createdExplorations(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("get explorations for %q: %w", address, err)
	}
	if created == nil {
		return nil, nil
	}
	out := make(map[string]Exploration)
	for _, e := range created {
		if e.TopicPath == topicPath {
			out[e.ID] = e
		}
	}
	return out, nil
}

// GetExplorationsByUser returns all of the user's explorations grouped by
// topic, with "/" replaced by "|" in the topic keys. Nil when the user has
// created nothing.
func (g *KnowledgeGraph) GetExplorationsByUser(ctx context.Context, address string) (map[string]map[string]Exploration, error) {
	created, err := g.createdExplorations(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("get explorations by user %q: %w", address, err)
	}
	if created == nil {
		return nil, nil
	}
	out := make(map[string]map[string]Exploration)
	for _, e := range created {
		key := strings.ReplaceAll(e.TopicPath, "/", "|")
		if out[key] == nil {
			out[key] = make(map[string]Exploration)
		}
		out[key][e.ID] = e
	}
	return out, nil
}

// GetExplorers returns the addresses of users who explored the topic, in
// first-explore order. At most one EXPLORED edge exists per (user, topic),
// so addresses do not repeat.
func (g *KnowledgeGraph) GetExplorers(ctx context.Context, topicPath string) ([]string, error) {
	edges, err := g.backend.GetEdges(ctx, topicPath, graph.EdgeExplored, graph.In)
	if err != nil {
		return nil, fmt.Errorf("get explorers of %q: %w", topicPath, err)
	}
	addrs := make([]string, 0, len(edges))
	for _, e := range edges {
		addrs = append(addrs, e.From)
	}
	return addrs, nil
}

// GetTopicStats returns aggregate activity for one topic: how many
// distinct users explored it, and max/avg over the depths of all
// explorations in it.
func (g *KnowledgeGraph) GetTopicStats(ctx context.Context, topicPath string) (TopicStats, error) {
	m, err := g.backend.AggregateOverEdge(ctx, graph.LabelTopic, topicPath, graph.EdgeExplored, graph.LabelUser,
		[]graph.Metric{graph.MetricCount, graph.MetricMax, graph.MetricAvg})
	if err != nil {
		return TopicStats{}, fmt.Errorf("get topic stats for %q: %w", topicPath, err)
	}
	return TopicStats{
		ExplorerCount: int(m[graph.MetricCount]),
		MaxDepth:      int(m[graph.MetricMax]),
		AvgDepth:      m[graph.MetricAvg],
	}, nil
}

// GetFrontierMap returns per-topic statistics. With a parent path, the map
// covers the parent's direct subtopics; with an empty path it covers the
// root topics. Keys are topic paths.
func (g *KnowledgeGraph) GetFrontierMap(ctx context.Context, parentPath string) (map[string]TopicStats, error) {
	if parentPath != "" {
		grouped, err := g.backend.AggregateGrouped(ctx,
			graph.LabelTopic, parentPath, graph.EdgeParentOf,
			graph.LabelTopic, graph.EdgeInTopic, graph.LabelExploration,
			[]graph.Metric{graph.MetricCountDistinct, graph.MetricMax, graph.MetricAvg})
		if err != nil {
			return nil, fmt.Errorf("get frontier map for %q: %w", parentPath, err)
		}
		out := make(map[string]TopicStats, len(grouped))
		for path, m := range grouped {
			out[path] = TopicStats{
				ExplorerCount: int(m[graph.MetricCountDistinct]),
				MaxDepth:      int(m[graph.MetricMax]),
				AvgDepth:      m[graph.MetricAvg],
			}
		}
		return out, nil
	}

	roots, err := g.ListTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("get frontier map: %w", err)
	}
	out := make(map[string]TopicStats, len(roots))
	for _, t := range roots {
		stats, err := g.GetTopicStats(ctx, t.Path)
		if err != nil {
			return nil, err
		}
		out[t.Path] = stats
	}
	return out, nil
}
