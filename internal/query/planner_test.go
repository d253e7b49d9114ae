package query

import (
	"testing"

	"github.com/kgraphdb/kgraph/internal/graph"
	"github.com/kgraphdb/kgraph/internal/kgerrors"
)

func TestValidateNodeSpec(t *testing.T) {
	if err := Validate(Spec{Kind: KindNode}); kgerrors.KindOf(err) != kgerrors.InvalidQuery {
		t.Errorf("Validate(empty node spec) kind = %v, want InvalidQuery", kgerrors.KindOf(err))
	}
	if err := Validate(Spec{Kind: KindNode, NodeID: "n1"}); err != nil {
		t.Errorf("Validate(node by id) error = %v, want nil", err)
	}
}

func TestValidateTraversalSpec(t *testing.T) {
	if err := Validate(Spec{Kind: KindTraversal}); kgerrors.KindOf(err) != kgerrors.InvalidQuery {
		t.Errorf("Validate(traversal without start_id) kind = %v, want InvalidQuery", kgerrors.KindOf(err))
	}
	if err := Validate(Spec{Kind: KindTraversal, StartID: "n1", Direction: "sideways"}); kgerrors.KindOf(err) != kgerrors.InvalidQuery {
		t.Errorf("Validate(bad direction) kind = %v, want InvalidQuery", kgerrors.KindOf(err))
	}
	if err := Validate(Spec{Kind: KindTraversal, StartID: "n1", MaxDepth: -1}); kgerrors.KindOf(err) != kgerrors.InvalidQuery {
		t.Errorf("Validate(negative max_depth) kind = %v, want InvalidQuery", kgerrors.KindOf(err))
	}
	if err := Validate(Spec{Kind: KindTraversal, StartID: "n1", Direction: "both"}); err != nil {
		t.Errorf("Validate(valid traversal) error = %v, want nil", err)
	}
}

func TestValidateLimitOffsetAndSort(t *testing.T) {
	badLimit := -1
	if err := Validate(Spec{Kind: KindNode, NodeID: "n1", Limit: &badLimit}); kgerrors.KindOf(err) != kgerrors.InvalidQuery {
		t.Errorf("Validate(negative limit) kind = %v, want InvalidQuery", kgerrors.KindOf(err))
	}
	if err := Validate(Spec{Kind: KindNode, NodeID: "n1", Sort: []SortKey{}}); kgerrors.KindOf(err) != kgerrors.InvalidQuery {
		t.Errorf("Validate(empty non-nil sort) kind = %v, want InvalidQuery", kgerrors.KindOf(err))
	}
}

func TestValidateAggregateRequiresTarget(t *testing.T) {
	if err := Validate(Spec{Kind: KindAggregate, Aggregation: AggCount}); kgerrors.KindOf(err) != kgerrors.InvalidQuery {
		t.Errorf("Validate(aggregate w/o target) kind = %v, want InvalidQuery", kgerrors.KindOf(err))
	}
	target := Spec{Kind: KindNode, NodeID: "n1"}
	if err := Validate(Spec{Kind: KindAggregate, Aggregation: AggCount, Target: &target}); err != nil {
		t.Errorf("Validate(valid aggregate) error = %v, want nil", err)
	}
	if err := Validate(Spec{Kind: KindAggregate, Aggregation: "bogus", Target: &target}); kgerrors.KindOf(err) != kgerrors.InvalidQuery {
		t.Errorf("Validate(bad aggregation) kind = %v, want InvalidQuery", kgerrors.KindOf(err))
	}
}

func TestEnumerateTraversalCandidates(t *testing.T) {
	spec := Spec{Kind: KindTraversal, StartID: "a", EndID: "z", MaxDepth: 5}

	withoutIndex := Enumerate(spec, PlanContext{})
	if len(withoutIndex) != 2 {
		t.Fatalf("Enumerate() without index = %d plans, want 2 (basic + bidirectional)", len(withoutIndex))
	}

	withIndex := Enumerate(spec, PlanContext{HasTraversalIndex: true})
	if len(withIndex) != 3 {
		t.Fatalf("Enumerate() with index = %d plans, want 3", len(withIndex))
	}
	labels := map[string]bool{}
	for _, p := range withIndex {
		labels[p.Label] = true
	}
	for _, want := range []string{"basic", "index_based", "bidirectional"} {
		if !labels[want] {
			t.Errorf("Enumerate() missing candidate labeled %q", want)
		}
	}
}

func TestEnumerateTraversalNoBidirectionalWithoutEndOrDepth(t *testing.T) {
	spec := Spec{Kind: KindTraversal, StartID: "a", MaxDepth: 5}
	plans := Enumerate(spec, PlanContext{})
	if len(plans) != 1 {
		t.Fatalf("Enumerate() without end_id = %d plans, want 1 (no bidirectional)", len(plans))
	}
}

func TestEnumeratePatternReverseJoinOrder(t *testing.T) {
	spec := Spec{Kind: KindPattern, Pattern: []PatternSegment{
		{NodeConstraints: graph.Cmp{Path: "type", Op: graph.OpEq, Value: "Entity"}},
		{EdgeType: "related_to"},
		{EdgeType: "causes"},
	}}
	plans := Enumerate(spec, PlanContext{})
	if len(plans) != 2 {
		t.Fatalf("Enumerate(3-segment pattern) = %d plans, want 2 (basic + reverse)", len(plans))
	}
}

func TestRewritePushesFilterBeforeNonBindingStep(t *testing.T) {
	plan := Plan{Steps: []Step{
		{Kind: StepNodeLookup, Criteria: graph.Cmp{Path: "type", Op: graph.OpEq, Value: "Entity"}},
		{Kind: StepSort, SortKeys: []SortKey{{Property: "name"}}},
		{Kind: StepFilter, Conditions: []Condition{{Property: "age", Op: graph.OpGt, Value: 10}}},
	}}
	out := Rewrite(plan)
	if out.Steps[1].Kind != StepFilter {
		t.Errorf("Rewrite() step[1].Kind = %v, want Filter pushed before Sort", out.Steps[1].Kind)
	}
}

func TestRewriteDoesNotPushFilterPastPinnedLookup(t *testing.T) {
	plan := Plan{Steps: []Step{
		{Kind: StepNodeLookup, ByID: "n1"},
		{Kind: StepFilter, Conditions: []Condition{{Property: "age", Op: graph.OpGt, Value: 10}}},
	}}
	out := Rewrite(plan)
	if out.Steps[0].Kind != StepNodeLookup || out.Steps[1].Kind != StepFilter {
		t.Errorf("Rewrite() reordered steps around a pinned lookup: %+v", out.Steps)
	}
}

func TestRewriteMergesAdjacentFilters(t *testing.T) {
	plan := Plan{Steps: []Step{
		{Kind: StepFilter, Conditions: []Condition{{Property: "a", Op: graph.OpEq, Value: 1}}},
		{Kind: StepFilter, Conditions: []Condition{{Property: "b", Op: graph.OpEq, Value: 2}}},
	}}
	out := Rewrite(plan)
	if len(out.Steps) != 1 {
		t.Fatalf("Rewrite() = %d steps, want 1 merged filter", len(out.Steps))
	}
	if len(out.Steps[0].Conditions) != 2 {
		t.Errorf("Rewrite() merged filter has %d conditions, want 2", len(out.Steps[0].Conditions))
	}
}

func TestRewriteFusesTraversalFilter(t *testing.T) {
	plan := Plan{Steps: []Step{
		{Kind: StepTraversal, StartID: "a", MaxDepth: 2},
		{Kind: StepFilter, Conditions: []Condition{{Property: "type", Op: graph.OpEq, Value: "Entity"}}},
	}}
	out := Rewrite(plan)
	if len(out.Steps) != 1 {
		t.Fatalf("Rewrite() = %d steps, want 1 fused traversal", len(out.Steps))
	}
	if len(out.Steps[0].FusedFilter) != 1 {
		t.Errorf("Rewrite() fused traversal FusedFilter has %d entries, want 1", len(out.Steps[0].FusedFilter))
	}
}

func TestRewriteSortBeforeLimit(t *testing.T) {
	limit := 10
	plan := Plan{Steps: []Step{
		{Kind: StepLimit, Limit: &limit},
		{Kind: StepSort, SortKeys: []SortKey{{Property: "name"}}},
	}}
	out := Rewrite(plan)
	if out.Steps[0].Kind != StepSort || out.Steps[1].Kind != StepLimit {
		t.Errorf("Rewrite() did not reorder Sort before Limit: %+v", out.Steps)
	}
}

func TestCostAndSelectPicksMinimumCost(t *testing.T) {
	plans := []Plan{
		{Steps: []Step{{Kind: StepTraversal, MaxDepth: 3, Mode: TraversalBasic}}, Label: "basic"},
		{Steps: []Step{{Kind: StepTraversal, MaxDepth: 3, Mode: TraversalIndexBased}}, Label: "index_based"},
	}
	for i := range plans {
		plans[i].Cost = Cost(plans[i])
	}
	selected, idx := Select(plans)
	if selected.Label != "index_based" || idx != 1 {
		t.Errorf("Select() = (%v, %d), want index_based plan (cheaper)", selected.Label, idx)
	}
}

func TestBuildCandidatesRejectsInvalidSpec(t *testing.T) {
	if _, err := BuildCandidates(Spec{Kind: KindNode}, PlanContext{}); kgerrors.KindOf(err) != kgerrors.InvalidQuery {
		t.Errorf("BuildCandidates(invalid spec) kind = %v, want InvalidQuery", kgerrors.KindOf(err))
	}
}

func TestBuildCandidatesDefaultsOmittedDirectionToOutgoing(t *testing.T) {
	plans, err := BuildCandidates(Spec{Kind: KindTraversal, StartID: "a", MaxDepth: 2}, PlanContext{})
	if err != nil {
		t.Fatalf("BuildCandidates() error = %v", err)
	}
	for _, p := range plans {
		for _, step := range p.Steps {
			if step.Kind == StepTraversal && step.Direction != graph.DirectionOutgoing {
				t.Errorf("BuildCandidates() traversal step Direction = %q, want %q (omitted direction defaults to outgoing)", step.Direction, graph.DirectionOutgoing)
			}
		}
	}
}

func TestBuildCandidatesDefaultsOmittedDirectionInAggregateTarget(t *testing.T) {
	target := Spec{Kind: KindTraversal, StartID: "a", MaxDepth: 2}
	plans, err := BuildCandidates(Spec{Kind: KindAggregate, Aggregation: AggCount, Target: &target}, PlanContext{})
	if err != nil {
		t.Fatalf("BuildCandidates() error = %v", err)
	}
	for _, p := range plans {
		for _, step := range p.Steps {
			if step.Kind == StepTraversal && step.Direction != graph.DirectionOutgoing {
				t.Errorf("BuildCandidates() aggregate target traversal step Direction = %q, want %q", step.Direction, graph.DirectionOutgoing)
			}
		}
	}
}
