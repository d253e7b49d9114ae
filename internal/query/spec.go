// Package query implements the cost-based query processor (C4): a tagged
// query spec, a planner (validate/enumerate/rewrite/cost/select), an
// executor, and a non-mutating explain path.
package query

import "github.com/kgraphdb/kgraph/internal/graph"

// Kind tags which shape a Spec carries.
type Kind string

const (
	KindNode      Kind = "node"
	KindEdge      Kind = "edge"
	KindTraversal Kind = "traversal"
	KindPattern   Kind = "pattern"
	KindAggregate Kind = "aggregate"
)

// Spec is the tagged-variant structured query request: exactly one of the
// five Kind shapes, plus the optional filter/sort/limit/projection modifiers.
type Spec struct {
	Kind Kind

	// node
	NodeID       string
	NodeCriteria graph.Predicate

	// edge
	EdgeID       string
	EdgeCriteria graph.Predicate
	SourceID     string
	TargetID     string
	EdgeType     graph.EdgeType

	// traversal
	StartID   string
	EndID     string
	Direction graph.Direction
	EdgeTypes []graph.EdgeType
	MaxDepth  int

	// pattern
	Pattern []PatternSegment

	// aggregate
	Target         *Spec
	Aggregation    Aggregation
	AggregateField string

	// modifiers
	Filter     []Condition
	Sort       []SortKey
	Limit      *int
	Offset     *int
	Projection []string
}

// PatternSegment is one {node-constraints, edge-step} entry of an ordered
// pattern spec.
type PatternSegment struct {
	NodeConstraints graph.Predicate
	EdgeType        graph.EdgeType
	Direction       graph.Direction
}

// Aggregation selects the aggregate function applied to the target rows.
type Aggregation string

const (
	AggCount Aggregation = "count"
	AggSum   Aggregation = "sum"
	AggAvg   Aggregation = "avg"
	AggMin   Aggregation = "min"
	AggMax   Aggregation = "max"
	AggGroup Aggregation = "group"
)

// Condition is one (property, operator, value) filter predicate.
type Condition struct {
	Property string
	Op       graph.Op
	Value    any
}

// SortDirection is ascending or descending.
type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// SortKey is one (property, direction) entry of an ordered sort list.
type SortKey struct {
	Property  string
	Direction SortDirection
}
