// Package redisgraph implements the graph backend on Redis using go-redis.
//
// Layout (all keys under a configurable prefix, default "kg:"):
//
//	{p}node:{label}:{id}   JSON-encoded property map
//	{p}ids:{label}         set of node IDs under the label
//	{p}edge:seq            edge sequence counter
//	{p}edge:{n}            hash: type, from, to, props (JSON)
//	{p}edges               list of edge sequence numbers, insertion order
//	{p}edges:{type}        list of sequence numbers per edge type
//	{p}idx:out:{from}:{type}, {p}idx:in:{to}:{type}
//	                       per-endpoint edge index lists
//	{p}ekey:{type}:{from}:{to}
//	                       sequence number of the first structural edge,
//	                       the merge/increment target
//	{p}lock                best-effort transaction mutex
//
// Property values round-trip through JSON, so integers surface as float64
// on read; the graph package's numeric coercion keeps query results
// identical to the in-memory reference. Derived operations delegate to the
// shared algorithms in the graph package.
//
// The backend is durable: Close tears down the connection but keeps data.
// Reset clears the keyspace under the prefix and exists for tests.
package redisgraph

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kgraph-ai/kgraph/graph"
)

// Options configures the Redis connection, mirroring the shape of a
// redis URL plus timeouts.
type Options struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379").
	URL string

	// TLS configuration for secure connections.
	TLS *tls.Config

	// KeyPrefix namespaces every key written by the backend. Defaults to
	// "kg:".
	KeyPrefix string

	// ConnectTimeout is the maximum time to wait for connection
	// establishment. Defaults to 5s.
	ConnectTimeout time.Duration

	// ReadTimeout and WriteTimeout bound individual commands. Default 30s
	// and 5s.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// LockTTL bounds how long the WithTransaction mutex may be held before
	// it expires on its own. Defaults to 30s.
	LockTTL time.Duration
}

// Backend implements graph.Backend on a Redis keyspace.
type Backend struct {
	client *redis.Client
	prefix string
	lockID string
	ttl    time.Duration
	closed atomic.Bool
}

var _ graph.Backend = (*Backend)(nil)

// New creates a Redis graph backend with the given options. The connection
// is verified in Initialize, not here.
func New(opts Options) (*Backend, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "kg:"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.LockTTL == 0 {
		opts.LockTTL = 30 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("redisgraph: parse url: %w", err)
	}
	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	return &Backend{
		client: redis.NewClient(redisOpts),
		prefix: opts.KeyPrefix,
		lockID: uuid.New().String(),
		ttl:    opts.LockTTL,
	}, nil
}

func (b *Backend) key(parts ...string) string {
	out := b.prefix
	for i, p := range parts {
		if i > 0 {
			out += ":"
		}
		out += p
	}
	return out
}

func (b *Backend) nodeKey(label graph.Label, id string) string {
	return b.key("node", string(label), id)
}

func (b *Backend) idxKey(dir graph.Direction, endpoint string, t graph.EdgeType) string {
	return b.key("idx", string(dir), endpoint, string(t))
}

func (b *Backend) ekeyKey(t graph.EdgeType, from, to string) string {
	return b.key("ekey", string(t), from, to)
}

func (b *Backend) check() error {
	if b.closed.Load() {
		return graph.ErrClosed
	}
	return nil
}

// Initialize verifies connectivity.
func (b *Backend) Initialize(ctx context.Context) error {
	if err := b.check(); err != nil {
		return err
	}
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redisgraph: ping: %w", err)
	}
	return nil
}

// Close tears down the connection. Stored data is kept; Redis is a durable
// backend.
func (b *Backend) Close(ctx context.Context) error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.client.Close()
}

// Reset deletes every key under the backend's prefix. Test hook.
func (b *Backend) Reset(ctx context.Context) error {
	if err := b.check(); err != nil {
		return err
	}
	iter := b.client.Scan(ctx, 0, b.prefix+"*", 256).Iterator()
	for iter.Next(ctx) {
		if err := b.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redisgraph: reset: %w", err)
		}
	}
	return iter.Err()
}

// WithTransaction serializes fn behind a best-effort mutex (SET NX with a
// per-instance token) so fn runs at most once at a time per keyspace. Redis
// has no multi-statement rollback, so partial writes on error remain the
// caller's concern.
func (b *Backend) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.check(); err != nil {
		return err
	}
	lockKey := b.key("lock")
	token := b.lockID + ":" + uuid.New().String()

	for {
		ok, err := b.client.SetNX(ctx, lockKey, token, b.ttl).Result()
		if err != nil {
			return fmt.Errorf("redisgraph: acquire lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
	defer func() {
		// Release only if we still hold it; an expired lock may have been
		// re-acquired by another instance.
		current, err := b.client.Get(context.WithoutCancel(ctx), lockKey).Result()
		if err == nil && current == token {
			b.client.Del(context.WithoutCancel(ctx), lockKey)
		}
	}()

	return fn(ctx)
}

func encodeProps(props map[string]any) (string, error) {
	if props == nil {
		props = map[string]any{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("redisgraph: encode properties: %w", err)
	}
	return string(raw), nil
}

func decodeProps(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var props map[string]any
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, fmt.Errorf("redisgraph: decode properties: %w", err)
	}
	return props, nil
}

func (b *Backend) CreateNode(ctx context.Context, n graph.Node) error {
	if err := b.check(); err != nil {
		return err
	}
	raw, err := encodeProps(n.Properties)
	if err != nil {
		return err
	}
	pipe := b.client.TxPipeline()
	pipe.Set(ctx, b.nodeKey(n.Label, n.ID), raw, 0)
	pipe.SAdd(ctx, b.key("ids", string(n.Label)), n.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (b *Backend) MergeNode(ctx context.Context, label graph.Label, id string, props map[string]any) error {
	if err := b.check(); err != nil {
		return err
	}
	existing, err := b.loadProps(ctx, b.nodeKey(label, id))
	if err != nil {
		return err
	}
	merged := graph.MergeProps(existing, props)
	return b.CreateNode(ctx, graph.Node{Label: label, ID: id, Properties: merged})
}

// loadProps returns the decoded property map at key, or nil when absent.
func (b *Backend) loadProps(ctx context.Context, key string) (map[string]any, error) {
	raw, err := b.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeProps(raw)
}

func (b *Backend) CreateEdge(ctx context.Context, e graph.Edge) error {
	if err := b.check(); err != nil {
		return err
	}
	seq, err := b.client.Incr(ctx, b.key("edge", "seq")).Result()
	if err != nil {
		return err
	}
	raw, err := encodeProps(e.Properties)
	if err != nil {
		return err
	}
	n := strconv.FormatInt(seq, 10)
	pipe := b.client.TxPipeline()
	pipe.HSet(ctx, b.key("edge", n), map[string]any{
		"type": string(e.Type), "from": e.From, "to": e.To, "props": raw,
	})
	pipe.RPush(ctx, b.key("edges"), n)
	pipe.RPush(ctx, b.key("edges", string(e.Type)), n)
	pipe.RPush(ctx, b.idxKey(graph.Out, e.From, e.Type), n)
	pipe.RPush(ctx, b.idxKey(graph.In, e.To, e.Type), n)
	pipe.SetNX(ctx, b.ekeyKey(e.Type, e.From, e.To), n, 0)
	_, err = pipe.Exec(ctx)
	return err
}

// firstEdgeSeq returns the sequence number of the first structural match
// for (type, from, to), or "" when none exists.
func (b *Backend) firstEdgeSeq(ctx context.Context, t graph.EdgeType, from, to string) (string, error) {
	n, err := b.client.Get(ctx, b.ekeyKey(t, from, to)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return n, err
}

func (b *Backend) MergeEdge(ctx context.Context, e graph.Edge) error {
	if err := b.check(); err != nil {
		return err
	}
	n, err := b.firstEdgeSeq(ctx, e.Type, e.From, e.To)
	if err != nil {
		return err
	}
	if n == "" {
		return b.CreateEdge(ctx, e)
	}
	return b.updateEdgeProps(ctx, n, func(props map[string]any) map[string]any {
		return graph.MergeProps(props, e.Properties)
	})
}

func (b *Backend) IncrementEdgeProperty(ctx context.Context, t graph.EdgeType, from, to, property string, delta float64) error {
	if err := b.check(); err != nil {
		return err
	}
	n, err := b.firstEdgeSeq(ctx, t, from, to)
	if err != nil {
		return err
	}
	if n == "" {
		return b.CreateEdge(ctx, graph.Edge{Type: t, From: from, To: to, Properties: map[string]any{property: delta}})
	}
	return b.updateEdgeProps(ctx, n, func(props map[string]any) map[string]any {
		current, _ := graph.ToFloat(props[property])
		if props == nil {
			props = map[string]any{}
		}
		props[property] = current + delta
		return props
	})
}

func (b *Backend) updateEdgeProps(ctx context.Context, seq string, update func(map[string]any) map[string]any) error {
	edgeKey := b.key("edge", seq)
	raw, err := b.client.HGet(ctx, edgeKey, "props").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	props, err := decodeProps(raw)
	if err != nil {
		return err
	}
	encoded, err := encodeProps(update(props))
	if err != nil {
		return err
	}
	return b.client.HSet(ctx, edgeKey, "props", encoded).Err()
}

func (b *Backend) GetNode(ctx context.Context, label graph.Label, id string) (*graph.Node, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	raw, err := b.client.Get(ctx, b.nodeKey(label, id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	props, err := decodeProps(raw)
	if err != nil {
		return nil, err
	}
	return &graph.Node{Label: label, ID: id, Properties: props}, nil
}

func (b *Backend) FindNodes(ctx context.Context, label graph.Label, filter map[string]any) ([]graph.Node, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	ids, err := b.client.SMembers(ctx, b.key("ids", string(label))).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	var out []graph.Node
	for _, id := range ids {
		n, err := b.GetNode(ctx, label, id)
		if err != nil {
			return nil, err
		}
		if n == nil || !graph.MatchesFilter(n, filter) {
			continue
		}
		out = append(out, *n)
	}
	return out, nil
}

func (b *Backend) GetEdges(ctx context.Context, nodeID string, edgeType graph.EdgeType, dir graph.Direction) ([]graph.Edge, error) {
	if !dir.Valid() {
		return nil, graph.ErrInvalidDirection
	}
	if err := b.check(); err != nil {
		return nil, err
	}
	seqs, err := b.client.LRange(ctx, b.idxKey(dir, nodeID, edgeType), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	edges := make([]graph.Edge, 0, len(seqs))
	for _, n := range seqs {
		e, err := b.loadEdge(ctx, n)
		if err != nil {
			return nil, err
		}
		if e != nil {
			edges = append(edges, *e)
		}
	}
	return edges, nil
}

func (b *Backend) loadEdge(ctx context.Context, seq string) (*graph.Edge, error) {
	fields, err := b.client.HGetAll(ctx, b.key("edge", seq)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	props, err := decodeProps(fields["props"])
	if err != nil {
		return nil, err
	}
	return &graph.Edge{
		Type:       graph.EdgeType(fields["type"]),
		From:       fields["from"],
		To:         fields["to"],
		Properties: props,
	}, nil
}

func (b *Backend) NodeCount(ctx context.Context, label graph.Label) (int, error) {
	if err := b.check(); err != nil {
		return 0, err
	}
	if label != "" {
		n, err := b.client.SCard(ctx, b.key("ids", string(label))).Result()
		return int(n), err
	}
	total := 0
	for _, l := range graph.AllLabels {
		n, err := b.client.SCard(ctx, b.key("ids", string(l))).Result()
		if err != nil {
			return 0, err
		}
		total += int(n)
	}
	return total, nil
}

func (b *Backend) EdgeCount(ctx context.Context, edgeType graph.EdgeType) (int, error) {
	if err := b.check(); err != nil {
		return 0, err
	}
	key := b.key("edges")
	if edgeType != "" {
		key = b.key("edges", string(edgeType))
	}
	n, err := b.client.LLen(ctx, key).Result()
	return int(n), err
}

func (b *Backend) GetChildren(ctx context.Context, parentLabel graph.Label, parentID string, edgeType graph.EdgeType, childLabel graph.Label) ([]graph.Node, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	return graph.ChildrenOf(ctx, b, parentID, edgeType, childLabel)
}

func (b *Backend) GetRoots(ctx context.Context, label graph.Label, incoming graph.EdgeType) ([]graph.Node, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	return graph.RootsOf(ctx, b, label, incoming)
}

func (b *Backend) AggregateOverEdge(ctx context.Context, targetLabel graph.Label, targetID string, edgeType graph.EdgeType, sourceLabel graph.Label, metrics []graph.Metric) (map[graph.Metric]float64, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	return graph.RunAggregateOverEdge(ctx, b, targetID, edgeType, sourceLabel, metrics)
}

func (b *Backend) AggregateGrouped(ctx context.Context, parentLabel graph.Label, parentID string, parentToChild graph.EdgeType, childLabel graph.Label, childToLeaf graph.EdgeType, leafLabel graph.Label, metrics []graph.Metric) (map[string]map[graph.Metric]float64, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	return graph.RunAggregateGrouped(ctx, b, parentID, parentToChild, childLabel, childToLeaf, leafLabel, metrics)
}

func (b *Backend) Traverse(ctx context.Context, startID string, edgeType graph.EdgeType, dir graph.Direction, maxDepth int) ([]graph.Path, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	return graph.RunTraverse(ctx, b, startID, edgeType, dir, maxDepth)
}

func (b *Backend) ShortestPath(ctx context.Context, fromID, toID string, edgeType graph.EdgeType) (*graph.Path, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	return graph.RunShortestPath(ctx, b, fromID, toID, edgeType)
}
