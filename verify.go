package kgraph

import (
	"context"
	"fmt"

	"github.com/kgraph-ai/kgraph/graph"
)

// VerifyIntegrity recomputes the content hash of every exploration and
// reports mismatches. Gated explorations (nil content) and explorations
// without a stored hash cannot be checked and count as valid.
func (g *KnowledgeGraph) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	nodes, err := g.backend.FindNodes(ctx, graph.LabelExploration, nil)
	if err != nil {
		return nil, fmt.Errorf("verify integrity: %w", err)
	}

	report := &IntegrityReport{Invalid: []string{}}
	for i := range nodes {
		n := &nodes[i]
		report.Total++

		v, ok := n.Properties["content"]
		if !ok || v == nil {
			continue
		}
		content, ok := v.(string)
		if !ok {
			report.Invalid = append(report.Invalid, n.ID)
			continue
		}
		stored := n.StringProp("content_hash")
		if stored == "" {
			continue
		}
		if g.hasher.Sum(content) != stored {
			report.Invalid = append(report.Invalid, n.ID)
		}
	}
	report.Valid = report.Total - len(report.Invalid)
	return report, nil
}
