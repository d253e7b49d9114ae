package query

import (
	"github.com/kgraphdb/kgraph/internal/graph"
	"github.com/kgraphdb/kgraph/internal/kgerrors"
)

const opPlanner = "query.Planner"

// PlanContext carries the facts the planner needs that aren't in the spec
// itself: whether an index applicable to a traversal's
// edge_types already exists, which governs whether an index-based
// candidate plan is enumerable at all.
type PlanContext struct {
	HasTraversalIndex bool
}

// Validate type-checks spec and enforces its bounds (non-negative
// limit/offset, non-empty sort, direction legality) before any storage call.
func Validate(spec Spec) error {
	switch spec.Kind {
	case KindNode:
		if spec.NodeID == "" && spec.NodeCriteria == nil {
			return kgerrors.Newf(kgerrors.InvalidQuery, opPlanner+".Validate", "node spec requires id or criteria")
		}
	case KindEdge:
		if spec.EdgeID == "" && spec.EdgeCriteria == nil && spec.SourceID == "" && spec.TargetID == "" {
			return kgerrors.Newf(kgerrors.InvalidQuery, opPlanner+".Validate", "edge spec requires id, criteria, or source/target")
		}
	case KindTraversal:
		if spec.StartID == "" {
			return kgerrors.Newf(kgerrors.InvalidQuery, opPlanner+".Validate", "traversal spec requires start_id")
		}
		switch spec.Direction {
		case "", "outgoing", "incoming", "both":
		default:
			return kgerrors.Newf(kgerrors.InvalidQuery, opPlanner+".Validate", "invalid direction %q", spec.Direction)
		}
		if spec.MaxDepth < 0 {
			return kgerrors.Newf(kgerrors.InvalidQuery, opPlanner+".Validate", "max_depth must be non-negative")
		}
	case KindPattern:
		if len(spec.Pattern) == 0 {
			return kgerrors.Newf(kgerrors.InvalidQuery, opPlanner+".Validate", "pattern spec requires at least one segment")
		}
	case KindAggregate:
		if spec.Target == nil {
			return kgerrors.Newf(kgerrors.InvalidQuery, opPlanner+".Validate", "aggregate spec requires a target sub-spec")
		}
		switch spec.Aggregation {
		case AggCount, AggSum, AggAvg, AggMin, AggMax, AggGroup:
		default:
			return kgerrors.Newf(kgerrors.InvalidQuery, opPlanner+".Validate", "invalid aggregation %q", spec.Aggregation)
		}
		if err := Validate(*spec.Target); err != nil {
			return err
		}
	default:
		return kgerrors.Newf(kgerrors.InvalidQuery, opPlanner+".Validate", "unknown spec kind %q", spec.Kind)
	}

	if spec.Limit != nil && *spec.Limit < 0 {
		return kgerrors.Newf(kgerrors.InvalidQuery, opPlanner+".Validate", "limit must be non-negative")
	}
	if spec.Offset != nil && *spec.Offset < 0 {
		return kgerrors.Newf(kgerrors.InvalidQuery, opPlanner+".Validate", "offset must be non-negative")
	}
	if spec.Sort != nil && len(spec.Sort) == 0 {
		return kgerrors.Newf(kgerrors.InvalidQuery, opPlanner+".Validate", "sort, if present, must be non-empty")
	}
	return nil
}

// tailSteps builds the shared modifier tail (filter, sort, limit, projection)
// every basic plan appends after its core lookup/traversal/pattern step.
func tailSteps(spec Spec) []Step {
	var steps []Step
	if len(spec.Filter) > 0 {
		steps = append(steps, Step{Kind: StepFilter, Conditions: spec.Filter})
	}
	if len(spec.Sort) > 0 {
		steps = append(steps, Step{Kind: StepSort, SortKeys: spec.Sort})
	}
	if spec.Limit != nil || spec.Offset != nil {
		steps = append(steps, Step{Kind: StepLimit, Limit: spec.Limit, Offset: spec.Offset})
	}
	if len(spec.Projection) > 0 {
		steps = append(steps, Step{Kind: StepProjection, Paths: spec.Projection})
	}
	return steps
}

// Enumerate produces every candidate plan for spec: always the basic plan,
// plus index-based and bidirectional traversal variants and alternate
// pattern join orders where applicable.
func Enumerate(spec Spec, ctx PlanContext) []Plan {
	var plans []Plan

	switch spec.Kind {
	case KindNode:
		steps := []Step{{Kind: StepNodeLookup, ByID: spec.NodeID, Criteria: spec.NodeCriteria}}
		steps = append(steps, tailSteps(spec)...)
		plans = append(plans, Plan{Steps: steps, Label: "basic"})

	case KindEdge:
		steps := []Step{{
			Kind: StepEdgeLookup, ByID: spec.EdgeID, Criteria: spec.EdgeCriteria,
			SourceID: spec.SourceID, TargetID: spec.TargetID, EdgeType: spec.EdgeType,
		}}
		steps = append(steps, tailSteps(spec)...)
		plans = append(plans, Plan{Steps: steps, Label: "basic"})

	case KindTraversal:
		base := Step{
			Kind: StepTraversal, StartID: spec.StartID, EndID: spec.EndID,
			Direction: spec.Direction, EdgeTypes: spec.EdgeTypes, MaxDepth: spec.MaxDepth,
		}
		basic := base
		basic.Mode = TraversalBasic
		steps := append([]Step{basic}, tailSteps(spec)...)
		plans = append(plans, Plan{Steps: steps, Label: "basic"})

		if ctx.HasTraversalIndex {
			idx := base
			idx.Mode = TraversalIndexBased
			steps := append([]Step{idx}, tailSteps(spec)...)
			plans = append(plans, Plan{Steps: steps, Label: "index_based"})
		}

		if spec.EndID != "" && spec.MaxDepth > 2 {
			bidi := base
			bidi.Mode = TraversalBidirectional
			steps := append([]Step{bidi}, tailSteps(spec)...)
			plans = append(plans, Plan{Steps: steps, Label: "bidirectional"})
		}

	case KindPattern:
		steps := patternSteps(spec.Pattern)
		steps = append(steps, tailSteps(spec)...)
		plans = append(plans, Plan{Steps: steps, Label: "basic"})

		if len(spec.Pattern) >= 3 {
			reversed := make([]PatternSegment, len(spec.Pattern))
			for i, seg := range spec.Pattern {
				reversed[len(spec.Pattern)-1-i] = seg
			}
			rsteps := patternSteps(reversed)
			rsteps = append(rsteps, tailSteps(spec)...)
			plans = append(plans, Plan{Steps: rsteps, Label: "reverse_join_order"})
		}

	case KindAggregate:
		inner := Enumerate(*spec.Target, ctx)
		var steps []Step
		if len(inner) > 0 {
			steps = append(steps, inner[0].Steps...)
		}
		steps = append(steps, Step{Kind: StepAggregate, Aggregation: spec.Aggregation, AggregateField: spec.AggregateField})
		plans = append(plans, Plan{Steps: steps, Label: "basic"})
	}

	return plans
}

// patternSteps renders a pattern into a Join-chained step sequence: one
// NodeLookup per constrained seed followed by Join steps per edge segment.
func patternSteps(segments []PatternSegment) []Step {
	if len(segments) == 0 {
		return nil
	}
	steps := []Step{{Kind: StepNodeLookup, Criteria: segments[0].NodeConstraints}}
	for _, seg := range segments[1:] {
		steps = append(steps, Step{
			Kind: StepJoin, EdgeType: seg.EdgeType, Direction: seg.Direction,
			Criteria: seg.NodeConstraints,
		})
	}
	return steps
}

// Rewrite applies the four rewrite rules in fixed order, idempotently:
// filter pushdown, filter merge, traversal fusion, sort-before-limit.
func Rewrite(plan Plan) Plan {
	steps := append([]Step(nil), plan.Steps...)
	steps = pushdownFilters(steps)
	steps = mergeAdjacentFilters(steps)
	steps = fuseTraversalFilter(steps)
	steps = sortBeforeLimit(steps)
	plan.Steps = steps
	return plan
}

// pushdownFilters moves each Filter as early as legal: past steps that
// don't bind new entities the filter's properties might reference, but
// never past a Traversal or Join that introduces the entity, nor past a
// NodeLookup/EdgeLookup (by id or by criteria) that binds the rows it
// reads, nor past another Filter (adjacent filters are merged instead).
func pushdownFilters(steps []Step) []Step {
	changed := true
	for changed {
		changed = false
		for i := 1; i < len(steps); i++ {
			if steps[i].Kind != StepFilter {
				continue
			}
			prev := steps[i-1]
			if prev.Kind == StepTraversal || prev.Kind == StepJoin || prev.Kind == StepFilter || prev.Kind == StepNodeLookup || prev.Kind == StepEdgeLookup {
				continue
			}
			steps[i-1], steps[i] = steps[i], steps[i-1]
			changed = true
		}
	}
	return steps
}

// mergeAdjacentFilters merges consecutive Filter steps into one conjunction.
func mergeAdjacentFilters(steps []Step) []Step {
	var out []Step
	for _, s := range steps {
		if s.Kind == StepFilter && len(out) > 0 && out[len(out)-1].Kind == StepFilter {
			out[len(out)-1].Conditions = append(out[len(out)-1].Conditions, s.Conditions...)
			continue
		}
		out = append(out, s)
	}
	return out
}

// fuseTraversalFilter folds a Filter immediately following a Traversal into
// the traversal's per-step predicate, when the filter only needs
// already-bound fields (modeled here as: the filter directly follows the
// traversal with no intervening step).
func fuseTraversalFilter(steps []Step) []Step {
	var out []Step
	for i := 0; i < len(steps); i++ {
		if steps[i].Kind == StepTraversal && i+1 < len(steps) && steps[i+1].Kind == StepFilter {
			t := steps[i]
			t.FusedFilter = append(t.FusedFilter, steps[i+1].Conditions...)
			out = append(out, t)
			i++
			continue
		}
		out = append(out, steps[i])
	}
	return out
}

// sortBeforeLimit guarantees Sort always precedes Limit.
func sortBeforeLimit(steps []Step) []Step {
	sortIdx, limitIdx := -1, -1
	for i, s := range steps {
		if s.Kind == StepSort {
			sortIdx = i
		}
		if s.Kind == StepLimit {
			limitIdx = i
		}
	}
	if sortIdx == -1 || limitIdx == -1 || sortIdx < limitIdx {
		return steps
	}
	out := append([]Step(nil), steps...)
	out[sortIdx], out[limitIdx] = out[limitIdx], out[sortIdx]
	return out
}

// Cost computes a plan's additive cost from the step cost table.
func Cost(plan Plan) int {
	return planCost(plan.Steps)
}

// Select picks the minimum-cost plan, ties broken by enumeration order.
func Select(plans []Plan) (Plan, int) {
	best := 0
	bestCost := Cost(plans[0])
	for i := 1; i < len(plans); i++ {
		c := Cost(plans[i])
		if c < bestCost {
			best, bestCost = i, c
		}
	}
	return plans[best], best
}

// normalizeDirection defaults an omitted traversal direction to "outgoing".
// Applied once here, before Validate/Enumerate ever
// see the spec, so no downstream layer (the store's EdgesOf, the executor,
// an MCP tool handler passing an omitted field through) has to treat "" as
// a third direction meaning "both".
func normalizeDirection(spec Spec) Spec {
	if spec.Kind == KindTraversal && spec.Direction == "" {
		spec.Direction = graph.DirectionOutgoing
	}
	if spec.Kind == KindAggregate && spec.Target != nil {
		normalized := normalizeDirection(*spec.Target)
		spec.Target = &normalized
	}
	return spec
}

// BuildCandidates produces the validated, enumerated, rewritten, and costed
// candidate plans for spec; Select picks the winner from them.
func BuildCandidates(spec Spec, ctx PlanContext) ([]Plan, error) {
	spec = normalizeDirection(spec)
	if err := Validate(spec); err != nil {
		return nil, err
	}
	candidates := Enumerate(spec, ctx)
	for i := range candidates {
		candidates[i] = Rewrite(candidates[i])
		candidates[i].Cost = Cost(candidates[i])
	}
	return candidates, nil
}
