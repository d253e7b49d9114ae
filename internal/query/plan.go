package query

import "github.com/kgraphdb/kgraph/internal/graph"

// StepKind names a plan step shape.
type StepKind string

const (
	StepNodeLookup   StepKind = "NodeLookup"
	StepEdgeLookup   StepKind = "EdgeLookup"
	StepTraversal    StepKind = "Traversal"
	StepFilter       StepKind = "Filter"
	StepSort         StepKind = "Sort"
	StepLimit        StepKind = "Limit"
	StepProjection   StepKind = "Projection"
	StepJoin         StepKind = "Join"
	StepAggregate    StepKind = "Aggregate"
	StepUnion        StepKind = "Union"
	StepIntersection StepKind = "Intersection"
	StepDifference   StepKind = "Difference"
)

// TraversalMode distinguishes the three traversal strategies the planner
// may enumerate, each with its own cost.
type TraversalMode string

const (
	TraversalBasic         TraversalMode = "breadth_first"
	TraversalIndexBased    TraversalMode = "index_based"
	TraversalBidirectional TraversalMode = "bidirectional"
)

// Step is one element of a plan. Exactly one of the typed payload fields is
// meaningful, selected by Kind. This mirrors the tagged-variant style used
// throughout the engine rather than an interface-per-step hierarchy, since
// steps need to be cheaply cloned and rewritten by the planner.
type Step struct {
	Kind StepKind

	// NodeLookup / EdgeLookup
	ByID     string
	Criteria graph.Predicate

	// EdgeLookup composite
	SourceID string
	TargetID string
	EdgeType graph.EdgeType

	// Traversal
	StartID     string
	EndID       string
	Direction   graph.Direction
	EdgeTypes   []graph.EdgeType
	MaxDepth    int
	Mode        TraversalMode
	FusedFilter []Condition // per-step predicate folded in by traversal fusion

	// Filter
	Conditions []Condition

	// Sort
	SortKeys []SortKey

	// Limit
	Limit  *int
	Offset *int

	// Projection
	Paths []string

	// Aggregate
	Aggregation    Aggregation
	AggregateField string
}

// Plan is an ordered, costed sequence of steps.
type Plan struct {
	Steps []Step
	Cost  int
	Label string // enumeration-order tag, e.g. "basic", "index_based", "bidirectional"
}

// stepCost returns a step's cost from the per-step base cost table. Depth/condition-scaled
// costs are computed from the step's own fields rather than hardcoded, so a
// Traversal's cost reflects its actual max_depth and a Filter's cost
// reflects its actual condition count.
func stepCost(s Step) int {
	switch s.Kind {
	case StepNodeLookup:
		if s.ByID != "" {
			return 1
		}
		return 100
	case StepEdgeLookup:
		if s.ByID != "" {
			return 1
		}
		return 100
	case StepTraversal:
		depth := s.MaxDepth
		if depth <= 0 {
			depth = 1
		}
		switch s.Mode {
		case TraversalIndexBased:
			return 10 * depth
		case TraversalBidirectional:
			return 50 * depth
		default:
			return 100 * depth
		}
	case StepFilter:
		n := len(s.Conditions)
		if n == 0 {
			n = 1
		}
		return 10 * n
	case StepSort:
		return 50
	case StepLimit:
		return 1
	case StepProjection:
		return 5
	case StepJoin:
		return 200
	case StepAggregate:
		return 100
	default:
		return 0
	}
}

func planCost(steps []Step) int {
	total := 0
	for _, s := range steps {
		total += stepCost(s)
	}
	return total
}
