package query

import (
	"context"
	"testing"
	"time"

	"github.com/kgraphdb/kgraph/internal/graph"
	"github.com/kgraphdb/kgraph/internal/index"
	"github.com/kgraphdb/kgraph/internal/kgerrors"
)

func newTestExecutor(t *testing.T) (*Executor, graph.Store) {
	t.Helper()
	store := graph.NewMemoryStore(graph.CascadeDelete)
	idx := index.NewManager(0)
	return NewExecutor(store, idx, 0), store
}

func TestExecutorNodeLookupByID(t *testing.T) {
	ctx := context.Background()
	ex, store := newTestExecutor(t)
	id, err := store.PutNode(ctx, &graph.Node{Type: graph.NodeEntity, Properties: map[string]any{"name": "Ada"}})
	if err != nil {
		t.Fatalf("PutNode() error = %v", err)
	}

	rows, err := ex.Execute(ctx, Plan{Steps: []Step{{Kind: StepNodeLookup, ByID: id}}})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(rows) != 1 || rows[0]["id"] != id {
		t.Errorf("Execute(NodeLookup by id) = %v, want single row for %s", rows, id)
	}
}

func TestExecutorNodeLookupByIDNotFoundReturnsEmpty(t *testing.T) {
	ex, _ := newTestExecutor(t)
	rows, err := ex.Execute(context.Background(), Plan{Steps: []Step{{Kind: StepNodeLookup, ByID: "missing"}}})
	if err != nil {
		t.Fatalf("Execute() error = %v, want nil (not-found node lookup yields empty rows)", err)
	}
	if len(rows) != 0 {
		t.Errorf("Execute() = %v, want empty", rows)
	}
}

func TestExecutorFilterSortLimitPipeline(t *testing.T) {
	ctx := context.Background()
	ex, store := newTestExecutor(t)
	store.PutNode(ctx, &graph.Node{Type: graph.NodeEntity, Properties: map[string]any{"name": "Charlie", "age": 40.0}})
	store.PutNode(ctx, &graph.Node{Type: graph.NodeEntity, Properties: map[string]any{"name": "Ada", "age": 20.0}})
	store.PutNode(ctx, &graph.Node{Type: graph.NodeEntity, Properties: map[string]any{"name": "Bob", "age": 60.0}})

	limit := 2
	plan := Plan{Steps: []Step{
		{Kind: StepNodeLookup, Criteria: graph.Cmp{Path: "type", Op: graph.OpEq, Value: "Entity"}},
		{Kind: StepFilter, Conditions: []Condition{{Property: "age", Op: graph.OpLt, Value: 50.0}}},
		{Kind: StepSort, SortKeys: []SortKey{{Property: "name", Direction: Asc}}},
		{Kind: StepLimit, Limit: &limit},
	}}

	rows, err := ex.Execute(ctx, plan)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Execute() = %d rows, want 2 (Bob filtered out by age<50; Ada and Charlie remain)", len(rows))
	}
	names := []string{rows[0]["properties"].(map[string]any)["name"].(string), rows[1]["properties"].(map[string]any)["name"].(string)}
	if names[0] != "Ada" || names[1] != "Charlie" {
		t.Errorf("Execute() sorted names = %v, want [Ada Charlie]", names)
	}
}

func TestExecutorResultTooLarge(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore(graph.CascadeDelete)
	idx := index.NewManager(0)
	ex := NewExecutor(store, idx, 1)

	store.PutNode(ctx, &graph.Node{Type: graph.NodeEntity})
	store.PutNode(ctx, &graph.Node{Type: graph.NodeEntity})

	_, err := ex.Execute(ctx, Plan{Steps: []Step{
		{Kind: StepNodeLookup, Criteria: graph.Cmp{Path: "type", Op: graph.OpEq, Value: "Entity"}},
	}})
	if kgerrors.KindOf(err) != kgerrors.ResultTooLarge {
		t.Fatalf("Execute() kind = %v, want ResultTooLarge", kgerrors.KindOf(err))
	}
}

func TestExecutorRespectsCancelledContext(t *testing.T) {
	ex, _ := newTestExecutor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ex.Execute(ctx, Plan{Steps: []Step{{Kind: StepNodeLookup, ByID: "n1"}}})
	if kgerrors.KindOf(err) != kgerrors.Cancelled {
		t.Fatalf("Execute() kind = %v, want Cancelled", kgerrors.KindOf(err))
	}
}

func TestExecutorRespectsDeadline(t *testing.T) {
	ex, _ := newTestExecutor(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := ex.Execute(ctx, Plan{Steps: []Step{{Kind: StepNodeLookup, ByID: "n1"}}})
	if kgerrors.KindOf(err) != kgerrors.Timeout {
		t.Fatalf("Execute() kind = %v, want Timeout", kgerrors.KindOf(err))
	}
}

func TestExecutorTraversalBFS(t *testing.T) {
	ctx := context.Background()
	ex, store := newTestExecutor(t)
	a, _ := store.PutNode(ctx, &graph.Node{Type: graph.NodeEntity})
	b, _ := store.PutNode(ctx, &graph.Node{Type: graph.NodeEntity})
	c, _ := store.PutNode(ctx, &graph.Node{Type: graph.NodeEntity})
	store.PutEdge(ctx, &graph.Edge{SourceID: a, TargetID: b, Type: graph.EdgeRelatedTo})
	store.PutEdge(ctx, &graph.Edge{SourceID: b, TargetID: c, Type: graph.EdgeRelatedTo})

	rows, err := ex.Execute(ctx, Plan{Steps: []Step{
		{Kind: StepTraversal, StartID: a, Direction: graph.DirectionOutgoing, MaxDepth: 2},
	}})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Execute(traversal depth 2) = %d rows, want 2 (b, c)", len(rows))
	}
}

func TestExecutorAggregateCount(t *testing.T) {
	ctx := context.Background()
	ex, store := newTestExecutor(t)
	store.PutNode(ctx, &graph.Node{Type: graph.NodeEntity})
	store.PutNode(ctx, &graph.Node{Type: graph.NodeEntity})

	rows, err := ex.Execute(ctx, Plan{Steps: []Step{
		{Kind: StepNodeLookup, Criteria: graph.Cmp{Path: "type", Op: graph.OpEq, Value: "Entity"}},
		{Kind: StepAggregate, Aggregation: AggCount},
	}})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(rows) != 1 || rows[0]["count"] != 2 {
		t.Errorf("Execute(aggregate count) = %v, want [{count: 2}]", rows)
	}
}

func TestExecutorAggregateGroup(t *testing.T) {
	ctx := context.Background()
	ex, store := newTestExecutor(t)
	store.PutNode(ctx, &graph.Node{Type: graph.NodeEntity, Properties: map[string]any{"team": "red"}})
	store.PutNode(ctx, &graph.Node{Type: graph.NodeEntity, Properties: map[string]any{"team": "red"}})
	store.PutNode(ctx, &graph.Node{Type: graph.NodeEntity, Properties: map[string]any{"team": "blue"}})

	rows, err := ex.Execute(ctx, Plan{Steps: []Step{
		{Kind: StepNodeLookup, Criteria: graph.Cmp{Path: "type", Op: graph.OpEq, Value: "Entity"}},
		{Kind: StepAggregate, Aggregation: AggGroup, AggregateField: "team"},
	}})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Execute(aggregate group) = %d groups, want 2", len(rows))
	}
}

func TestExecutorProjection(t *testing.T) {
	ctx := context.Background()
	ex, store := newTestExecutor(t)
	id, _ := store.PutNode(ctx, &graph.Node{Type: graph.NodeEntity, Properties: map[string]any{"name": "Ada", "age": 36.0}})

	rows, err := ex.Execute(ctx, Plan{Steps: []Step{
		{Kind: StepNodeLookup, ByID: id},
		{Kind: StepProjection, Paths: []string{"properties.name"}},
	}})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	props, ok := rows[0]["properties"].(map[string]any)
	if !ok || props["name"] != "Ada" {
		t.Errorf("Execute(projection) = %v, want only properties.name", rows)
	}
	if _, ok := props["age"]; ok {
		t.Errorf("Execute(projection) kept age, want only projected fields")
	}
}

func TestExecutorJoinForPattern(t *testing.T) {
	ctx := context.Background()
	ex, store := newTestExecutor(t)
	a, _ := store.PutNode(ctx, &graph.Node{Type: graph.NodeEntity})
	b, _ := store.PutNode(ctx, &graph.Node{Type: graph.NodeConcept})
	store.PutEdge(ctx, &graph.Edge{SourceID: a, TargetID: b, Type: graph.EdgeRelatedTo})

	rows, err := ex.Execute(ctx, Plan{Steps: []Step{
		{Kind: StepNodeLookup, ByID: a},
		{Kind: StepJoin, EdgeType: graph.EdgeRelatedTo, Direction: graph.DirectionOutgoing,
			Criteria: graph.Cmp{Path: "type", Op: graph.OpEq, Value: "Concept"}},
	}})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(rows) != 1 || rows[0]["id"] != b {
		t.Errorf("Execute(join) = %v, want single row for %s", rows, b)
	}
}

func TestExecutorSortNullsLastAscendingFirstDescending(t *testing.T) {
	ctx := context.Background()
	ex, store := newTestExecutor(t)
	store.PutNode(ctx, &graph.Node{Type: graph.NodeEntity, Properties: map[string]any{"name": "Ada", "age": 20.0}})
	store.PutNode(ctx, &graph.Node{Type: graph.NodeEntity, Properties: map[string]any{"name": "NoAge"}})

	ascRows, err := ex.Execute(ctx, Plan{Steps: []Step{
		{Kind: StepNodeLookup, Criteria: graph.Cmp{Path: "type", Op: graph.OpEq, Value: "Entity"}},
		{Kind: StepSort, SortKeys: []SortKey{{Property: "properties.age", Direction: Asc}}},
	}})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	names := []string{ascRows[0]["properties"].(map[string]any)["name"].(string), ascRows[1]["properties"].(map[string]any)["name"].(string)}
	if names[0] != "Ada" || names[1] != "NoAge" {
		t.Errorf("Execute(sort asc) names = %v, want [Ada NoAge] (nulls sort last ascending)", names)
	}

	descRows, err := ex.Execute(ctx, Plan{Steps: []Step{
		{Kind: StepNodeLookup, Criteria: graph.Cmp{Path: "type", Op: graph.OpEq, Value: "Entity"}},
		{Kind: StepSort, SortKeys: []SortKey{{Property: "properties.age", Direction: Desc}}},
	}})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	names = []string{descRows[0]["properties"].(map[string]any)["name"].(string), descRows[1]["properties"].(map[string]any)["name"].(string)}
	if names[0] != "NoAge" || names[1] != "Ada" {
		t.Errorf("Execute(sort desc) names = %v, want [NoAge Ada] (nulls sort first descending)", names)
	}
}
