package graph

import "encoding/json"

// CloneProps returns a shallow copy of a property map. nil stays nil.
func CloneProps(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

// MergeProps shallow-merges src onto dst: new keys are added, existing keys
// overwritten, untouched keys preserved. dst may be nil.
func MergeProps(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// ToFloat coerces a scalar property value to float64. Backends differ in
// how they round-trip numbers (ints stay ints in memory, become float64
// through JSON), so every numeric comparison in the graph goes through this.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// ValueEquals compares two property values for the exact-match filter of
// FindNodes. Numeric values compare by magnitude across representations;
// everything else compares by ==, with nil equal only to nil.
func ValueEquals(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	fa, aok := ToFloat(a)
	fb, bok := ToFloat(b)
	if aok && bok {
		return fa == fb
	}
	if aok != bok {
		return false
	}
	return a == b
}

// MatchesFilter reports whether every filter entry matches the node's
// properties exactly. An empty or nil filter matches all nodes.
func MatchesFilter(n *Node, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := n.Properties[k]
		if !ok || !ValueEquals(got, want) {
			return false
		}
	}
	return true
}
