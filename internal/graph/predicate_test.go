package graph

import "testing"

func TestCmpOperators(t *testing.T) {
	node := &Node{
		ID:   "n1",
		Type: NodeEntity,
		Properties: map[string]any{
			"name": "Ada Lovelace",
			"age":  36.0,
			"tags": []any{"math", "computing"},
		},
	}
	entity := node.AsMap()

	cases := []struct {
		name string
		pred Predicate
		want bool
	}{
		{"eq top-level type", Cmp{Path: "type", Op: OpEq, Value: "Entity"}, true},
		{"eq property match", Cmp{Path: "name", Op: OpEq, Value: "Ada Lovelace"}, true},
		{"eq property mismatch", Cmp{Path: "name", Op: OpEq, Value: "Someone Else"}, false},
		{"ne property", Cmp{Path: "name", Op: OpNe, Value: "Someone Else"}, true},
		{"lt numeric", Cmp{Path: "age", Op: OpLt, Value: 40.0}, true},
		{"gte numeric false", Cmp{Path: "age", Op: OpGte, Value: 40.0}, false},
		{"in list", Cmp{Path: "tags", Op: OpContains, Value: "math"}, true},
		{"starts with", Cmp{Path: "name", Op: OpStartsWith, Value: "Ada"}, true},
		{"ends with false", Cmp{Path: "name", Op: OpEndsWith, Value: "Ada"}, false},
		{"regex", Cmp{Path: "name", Op: OpRegex, Value: "^Ada.*"}, true},
		{"exists true", Cmp{Path: "name", Op: OpExists, Value: true}, true},
		{"exists false on missing path", Cmp{Path: "missing", Op: OpExists, Value: false}, true},
		{"in operator against list value", Cmp{Path: "name", Op: OpIn, Value: []any{"Ada Lovelace", "Other"}}, true},
		{"nin operator", Cmp{Path: "name", Op: OpNin, Value: []any{"Other"}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.pred.Match(entity); got != tc.want {
				t.Errorf("Match() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAndOr(t *testing.T) {
	entity := (&Node{Type: NodeEntity, Properties: map[string]any{"age": 36.0}}).AsMap()

	and := And{
		Cmp{Path: "type", Op: OpEq, Value: "Entity"},
		Cmp{Path: "age", Op: OpGt, Value: 10.0},
	}
	if !and.Match(entity) {
		t.Error("And.Match() = false, want true")
	}
	and = append(and, Cmp{Path: "age", Op: OpGt, Value: 100.0})
	if and.Match(entity) {
		t.Error("And.Match() with a failing clause = true, want false")
	}

	or := Or{
		Cmp{Path: "age", Op: OpGt, Value: 100.0},
		Cmp{Path: "age", Op: OpEq, Value: 36.0},
	}
	if !or.Match(entity) {
		t.Error("Or.Match() = false, want true")
	}
}

func TestLookupPathDottedProperties(t *testing.T) {
	entity := (&Node{
		Type: NodeEntity,
		Properties: map[string]any{
			"nested": map[string]any{"inner": "value"},
		},
	}).AsMap()

	if !(Cmp{Path: "properties.nested.inner", Op: OpEq, Value: "value"}).Match(entity) {
		t.Error("expected dotted properties.* path to resolve nested value")
	}
	if !(Cmp{Path: "nested.inner", Op: OpEq, Value: "value"}).Match(entity) {
		t.Error("expected bare dotted path to fall back into properties")
	}
	if (Cmp{Path: "nested.missing", Op: OpExists, Value: true}).Match(entity) {
		t.Error("expected missing nested path to report not found")
	}
}

func TestEdgeAsMap(t *testing.T) {
	edge := &Edge{ID: "e1", SourceID: "a", TargetID: "b", Type: EdgeCauses, Properties: map[string]any{"weight": 1.0}}
	m := edge.AsMap()
	if m["source_id"] != "a" || m["target_id"] != "b" || m["type"] != "Causes" {
		t.Errorf("AsMap() = %v, missing expected top-level fields", m)
	}
}
