package graph

import (
	"context"
	"math"
	"sort"
)

// Reader is the primitive read surface the shared query algorithms build
// on. Every Backend satisfies it; backends delegate their derived
// operations here so query semantics cannot diverge between them.
type Reader interface {
	GetNode(ctx context.Context, label Label, id string) (*Node, error)
	FindNodes(ctx context.Context, label Label, filter map[string]any) ([]Node, error)
	GetEdges(ctx context.Context, nodeID string, edgeType EdgeType, dir Direction) ([]Edge, error)
}

// NodeByID resolves a node by ID across all labels, in AllLabels order.
// Returns nil when no label holds the ID.
func NodeByID(ctx context.Context, r Reader, id string) (*Node, error) {
	for _, label := range AllLabels {
		n, err := r.GetNode(ctx, label, id)
		if err != nil {
			return nil, err
		}
		if n != nil {
			return n, nil
		}
	}
	return nil, nil
}

// ChildrenOf implements GetChildren over the primitive reads: follow
// outgoing edges of edgeType from the parent and resolve targets under
// childLabel. Targets missing under childLabel are skipped.
func ChildrenOf(ctx context.Context, r Reader, parentID string, edgeType EdgeType, childLabel Label) ([]Node, error) {
	edges, err := r.GetEdges(ctx, parentID, edgeType, Out)
	if err != nil {
		return nil, err
	}
	children := make([]Node, 0, len(edges))
	for _, e := range edges {
		child, err := r.GetNode(ctx, childLabel, e.To)
		if err != nil {
			return nil, err
		}
		if child != nil {
			children = append(children, *child)
		}
	}
	return children, nil
}

// RootsOf implements GetRoots: nodes of label with no incoming edge of the
// given type, ordered by ID.
func RootsOf(ctx context.Context, r Reader, label Label, incoming EdgeType) ([]Node, error) {
	nodes, err := r.FindNodes(ctx, label, nil)
	if err != nil {
		return nil, err
	}
	roots := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		in, err := r.GetEdges(ctx, n.ID, incoming, In)
		if err != nil {
			return nil, err
		}
		if len(in) == 0 {
			roots = append(roots, n)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].ID < roots[j].ID })
	return roots, nil
}

// RunTraverse implements Traverse: depth-first enumeration of acyclic
// simple paths from startID. The visited set is shared across sibling
// branches on purpose: it prunes overlapping branches so each reachable
// node appears in at most one returned path, which is what the domain's
// longest-chain queries need. Do not make the visited set per-branch.
//
// Edges to IDs that resolve to no node (the graph tolerates dangling edges)
// do not extend paths. maxDepth limits the number of edges per path;
// maxDepth <= 0 means unlimited.
func RunTraverse(ctx context.Context, r Reader, startID string, edgeType EdgeType, dir Direction, maxDepth int) ([]Path, error) {
	if !dir.Valid() {
		return nil, ErrInvalidDirection
	}
	start, err := NodeByID(ctx, r, startID)
	if err != nil {
		return nil, err
	}
	if start == nil {
		return nil, nil
	}

	visited := map[string]bool{startID: true}
	var paths []Path

	var dfs func(n *Node, nodes []Node, edges []Edge) error
	dfs = func(n *Node, nodes []Node, edges []Edge) error {
		extended := false
		if maxDepth <= 0 || len(edges) < maxDepth {
			next, err := r.GetEdges(ctx, n.ID, edgeType, dir)
			if err != nil {
				return err
			}
			for _, e := range next {
				neighborID := e.Neighbor(dir)
				if visited[neighborID] {
					continue
				}
				neighbor, err := NodeByID(ctx, r, neighborID)
				if err != nil {
					return err
				}
				if neighbor == nil {
					continue
				}
				visited[neighborID] = true
				extended = true
				if err := dfs(neighbor, append(nodes[:len(nodes):len(nodes)], *neighbor), append(edges[:len(edges):len(edges)], e)); err != nil {
					return err
				}
			}
		}
		if !extended {
			paths = append(paths, Path{
				Nodes: append([]Node(nil), nodes...),
				Edges: append([]Edge(nil), edges...),
			})
		}
		return nil
	}

	if err := dfs(start, []Node{*start}, nil); err != nil {
		return nil, err
	}
	return paths, nil
}

// RunShortestPath implements ShortestPath: breadth-first search over edges
// of edgeType treated as undirected, returning the path with the fewest
// edges or nil when none exists. The start node alone is not a path, so a
// result always has at least one edge. The search walks through IDs even
// when they resolve to no node; unresolvable IDs are simply omitted from
// the returned node sequence.
func RunShortestPath(ctx context.Context, r Reader, fromID, toID string, edgeType EdgeType) (*Path, error) {
	type step struct {
		prev string
		edge Edge
	}
	cameFrom := make(map[string]step)
	seen := map[string]bool{fromID: true}
	queue := []string{fromID}

	found := false
	for len(queue) > 0 && !found {
		id := queue[0]
		queue = queue[1:]
		for _, dir := range []Direction{Out, In} {
			edges, err := r.GetEdges(ctx, id, edgeType, dir)
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				neighbor := e.Other(id)
				if seen[neighbor] {
					continue
				}
				seen[neighbor] = true
				cameFrom[neighbor] = step{prev: id, edge: e}
				if neighbor == toID {
					found = true
					break
				}
				queue = append(queue, neighbor)
			}
			if found {
				break
			}
		}
	}
	if !found {
		return nil, nil
	}

	// Walk back from the target to collect the ID chain and edges.
	var ids []string
	var edges []Edge
	for id := toID; ; {
		ids = append(ids, id)
		s, ok := cameFrom[id]
		if !ok {
			break
		}
		edges = append(edges, s.edge)
		id = s.prev
	}
	// Reverse into from -> to order.
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}

	path := &Path{Edges: edges}
	for _, id := range ids {
		n, err := NodeByID(ctx, r, id)
		if err != nil {
			return nil, err
		}
		if n != nil {
			path.Nodes = append(path.Nodes, *n)
		}
	}
	return path, nil
}

// RunAggregateOverEdge implements AggregateOverEdge. Source nodes are
// deduplicated over incoming edges of edgeType on the target; depth values
// come from the depth property of nodes reached via incoming IN_TOPIC
// edges. The asymmetry (source count from one edge type, depth statistics
// from another) mirrors the domain's topic-stats query and is deliberate.
func RunAggregateOverEdge(ctx context.Context, r Reader, targetID string, edgeType EdgeType, sourceLabel Label, metrics []Metric) (map[Metric]float64, error) {
	in, err := r.GetEdges(ctx, targetID, edgeType, In)
	if err != nil {
		return nil, err
	}
	sources := make(map[string]bool, len(in))
	for _, e := range in {
		sources[e.From] = true
	}

	depths, err := collectDepths(ctx, r, targetID, EdgeInTopic, LabelExploration)
	if err != nil {
		return nil, err
	}

	out := make(map[Metric]float64, len(metrics))
	for _, m := range metrics {
		switch m {
		case MetricCount:
			out[m] = float64(len(sources))
		case MetricMax:
			out[m] = maxOf(depths)
		case MetricAvg:
			out[m] = avgOf(depths)
		case MetricSum:
			out[m] = sumOf(depths)
		}
	}
	return out, nil
}

// RunAggregateGrouped implements AggregateGrouped: per child of the parent
// (via parentToChild edges under childLabel), count_distinct counts the
// incoming EXPLORED edges on the child, while max and avg run over the
// depth properties of leaves joined via incoming childToLeaf edges.
func RunAggregateGrouped(ctx context.Context, r Reader, parentID string, parentToChild EdgeType, childLabel Label, childToLeaf EdgeType, leafLabel Label, metrics []Metric) (map[string]map[Metric]float64, error) {
	children, err := ChildrenOf(ctx, r, parentID, parentToChild, childLabel)
	if err != nil {
		return nil, err
	}

	out := make(map[string]map[Metric]float64, len(children))
	for _, child := range children {
		explored, err := r.GetEdges(ctx, child.ID, EdgeExplored, In)
		if err != nil {
			return nil, err
		}
		depths, err := collectDepths(ctx, r, child.ID, childToLeaf, leafLabel)
		if err != nil {
			return nil, err
		}

		group := make(map[Metric]float64, len(metrics))
		for _, m := range metrics {
			switch m {
			case MetricCountDistinct:
				group[m] = float64(len(explored))
			case MetricMax:
				group[m] = maxOf(depths)
			case MetricAvg:
				group[m] = avgOf(depths)
			case MetricSum:
				group[m] = sumOf(depths)
			}
		}
		out[child.ID] = group
	}
	return out, nil
}

// collectDepths gathers the depth property of every node under leafLabel
// reaching targetID via an incoming edge of edgeType.
func collectDepths(ctx context.Context, r Reader, targetID string, edgeType EdgeType, leafLabel Label) ([]float64, error) {
	edges, err := r.GetEdges(ctx, targetID, edgeType, In)
	if err != nil {
		return nil, err
	}
	depths := make([]float64, 0, len(edges))
	for _, e := range edges {
		leaf, err := r.GetNode(ctx, leafLabel, e.From)
		if err != nil {
			return nil, err
		}
		if leaf == nil {
			continue
		}
		if d, ok := leaf.FloatProp("depth"); ok {
			depths = append(depths, d)
		}
	}
	return depths, nil
}

func maxOf(vals []float64) float64 {
	m := 0.0
	for _, v := range vals {
		if v > m {
			m = v
		}
	}
	return m
}

func sumOf(vals []float64) float64 {
	s := 0.0
	for _, v := range vals {
		s += v
	}
	return s
}

// avgOf rounds to 2 decimal places to match the contract.
func avgOf(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return math.Round(sumOf(vals)/float64(len(vals))*100) / 100
}
