package kgraph

import (
	"github.com/kgraph-ai/kgraph/graph"
)

// TopicInfo carries the caller-supplied fields of a topic registration.
type TopicInfo struct {
	Title       string
	Description string
}

// Topic is a registered subject area, keyed by its slash-separated path.
type Topic struct {
	Path        string
	Title       string
	Description string
	CreatedAt   int64
	CreatedBy   string
}

func topicFromNode(n *graph.Node) Topic {
	return Topic{
		Path:        n.ID,
		Title:       n.StringProp("title"),
		Description: n.StringProp("description"),
		CreatedAt:   int64Prop(n, "created_at"),
		CreatedBy:   n.StringProp("created_by"),
	}
}

// ExploreInput is the payload of an Explore call. Price and GatewayURL are
// optional; when both are set the exploration is gated and its content is
// withheld from the graph.
type ExploreInput struct {
	TopicPath  string
	Title      string
	Content    string
	Summary    string
	Depth      int
	Tags       string
	Price      string
	GatewayURL string
}

// Exploration is an immutable authored artifact attached to one topic.
// Content is nil for gated explorations.
type Exploration struct {
	ID          string
	TopicPath   string
	Title       string
	Content     *string
	Summary     string
	Depth       int
	Tags        string
	Price       string
	GatewayURL  string
	ContentHash string
	CreatedAt   int64
	UpdatedAt   int64
}

// Gated reports whether the exploration's content is withheld.
func (e *Exploration) Gated() bool {
	return e.Content == nil
}

func explorationFromNode(n *graph.Node) Exploration {
	e := Exploration{
		ID:          n.ID,
		TopicPath:   n.StringProp("topic_path"),
		Title:       n.StringProp("title"),
		Summary:     n.StringProp("summary"),
		Depth:       n.IntProp("depth"),
		Tags:        n.StringProp("tags"),
		Price:       n.StringProp("price"),
		GatewayURL:  n.StringProp("gateway_url"),
		ContentHash: n.StringProp("content_hash"),
		CreatedAt:   int64Prop(n, "created_at"),
		UpdatedAt:   int64Prop(n, "updated_at"),
	}
	if n.Properties != nil {
		if v, ok := n.Properties["content"]; ok && v != nil {
			if s, ok := v.(string); ok {
				e.Content = &s
			}
		}
	}
	return e
}

// AccessResult is what an Access call hands back. Content is "" for gated
// explorations. Paid is always false; payment execution is outside the
// graph layer.
type AccessResult struct {
	Content string
	Paid    bool
}

// TopicStats summarizes exploration activity on one topic. ExplorerCount is
// the number of distinct users who explored it; MaxDepth and AvgDepth are
// computed over the depths of all explorations in the topic, with AvgDepth
// rounded to 2 decimal places.
type TopicStats struct {
	ExplorerCount int
	MaxDepth      int
	AvgDepth      float64
}

// SnapshotInfo is the accounting record returned by TakeSnapshot. The
// counts reflect graph state immediately before the snapshot node and its
// INCLUDES edges were inserted.
type SnapshotInfo struct {
	ID        string
	CreatedAt int64
	NodeCount int
	RelCount  int
	TxCount   int
}

// TxEntry is one transaction log record. Entries are ordered by timestamp
// and, within one millisecond, by id (push ids are monotonic per writer).
type TxEntry struct {
	ID         string
	Op         string
	Actor      string
	TargetID   string
	TargetType string
	Timestamp  int64
}

func txEntryFromNode(n *graph.Node) TxEntry {
	return TxEntry{
		ID:         n.ID,
		Op:         n.StringProp("op"),
		Actor:      n.StringProp("actor"),
		TargetID:   n.StringProp("target_id"),
		TargetType: n.StringProp("target_type"),
		Timestamp:  int64Prop(n, "timestamp"),
	}
}

// IntegrityReport is the result of VerifyIntegrity. Invalid lists the ids
// of explorations whose stored hash no longer matches their content.
type IntegrityReport struct {
	Total   int
	Valid   int
	Invalid []string
}

func int64Prop(n *graph.Node, key string) int64 {
	f, ok := n.FloatProp(key)
	if !ok {
		return 0
	}
	return int64(f)
}
