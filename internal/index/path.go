package index

import (
	"fmt"
	"strings"
)

// lookupPath resolves a dotted property path against the generic predicate
// map produced by graph.Node.AsMap / graph.Edge.AsMap. A bare field name
// (no "properties." prefix) addresses top-level fields first, falling back
// to properties; this mirrors internal/graph's predicate path resolution so
// indexes and predicates agree on what a path means.
func lookupPath(entity map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = entity
	if parts[0] != "properties" {
		if v, ok := entity[parts[0]]; ok {
			cur = v
			parts = parts[1:]
		} else if props, ok := entity["properties"].(map[string]any); ok {
			cur = props
		} else {
			return nil, false
		}
	} else {
		parts = parts[1:]
		props, ok := entity["properties"].(map[string]any)
		if !ok {
			return nil, false
		}
		cur = props
	}

	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func sortableFallback(v any) string {
	return fmt.Sprint(v)
}
