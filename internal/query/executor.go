package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/kgraphdb/kgraph/internal/graph"
	"github.com/kgraphdb/kgraph/internal/index"
	"github.com/kgraphdb/kgraph/internal/kgerrors"
)

const opExecutor = "query.Executor"

// Executor interprets a costed Plan against the graph store and index
// manager, bounded by maxResultSize and the context deadline.
type Executor struct {
	Store         graph.Store
	Indexes       *index.Manager
	MaxResultSize int
}

// NewExecutor builds an Executor. maxResultSize <= 0 uses the spec's
// default of 10,000.
func NewExecutor(store graph.Store, idx *index.Manager, maxResultSize int) *Executor {
	if maxResultSize <= 0 {
		maxResultSize = 10000
	}
	return &Executor{Store: store, Indexes: idx, MaxResultSize: maxResultSize}
}

// Execute runs every step of plan in order, threading each step's output
// into the next.
func (ex *Executor) Execute(ctx context.Context, plan Plan) ([]map[string]any, error) {
	var rows []map[string]any
	for _, step := range plan.Steps {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return nil, kgerrors.Newf(kgerrors.Timeout, opExecutor+".Execute", "deadline exceeded")
			}
			return nil, kgerrors.Newf(kgerrors.Cancelled, opExecutor+".Execute", "cancelled")
		default:
		}

		next, err := ex.runStep(ctx, step, rows)
		if err != nil {
			return nil, err
		}
		rows = next
		if len(rows) > ex.MaxResultSize {
			return nil, kgerrors.Newf(kgerrors.ResultTooLarge, opExecutor+".Execute",
				"result size %d exceeds max_result_size %d", len(rows), ex.MaxResultSize)
		}
	}
	return rows, nil
}

func (ex *Executor) runStep(ctx context.Context, step Step, in []map[string]any) ([]map[string]any, error) {
	switch step.Kind {
	case StepNodeLookup:
		return ex.nodeLookup(ctx, step)
	case StepEdgeLookup:
		return ex.edgeLookup(ctx, step)
	case StepTraversal:
		return ex.traverse(ctx, step, in)
	case StepFilter:
		return filterRows(in, step.Conditions), nil
	case StepSort:
		return sortRows(in, step.SortKeys), nil
	case StepLimit:
		return limitRows(in, step.Offset, step.Limit), nil
	case StepProjection:
		return projectRows(in, step.Paths), nil
	case StepJoin:
		return ex.join(ctx, step, in)
	case StepAggregate:
		return aggregateRows(in, step.Aggregation, step.AggregateField), nil
	default:
		return nil, kgerrors.Newf(kgerrors.Unsupported, opExecutor+".runStep", "step kind %q not supported", step.Kind)
	}
}

func (ex *Executor) nodeLookup(ctx context.Context, step Step) ([]map[string]any, error) {
	if step.ByID != "" {
		n, err := ex.Store.GetNode(ctx, step.ByID)
		if err != nil {
			if kgerrors.KindOf(err) == kgerrors.NotFound {
				return nil, nil
			}
			return nil, err
		}
		return []map[string]any{n.AsMap()}, nil
	}
	nodes, err := ex.Store.QueryNodes(ctx, step.Criteria)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.AsMap())
	}
	return out, nil
}

func (ex *Executor) edgeLookup(ctx context.Context, step Step) ([]map[string]any, error) {
	if step.ByID != "" {
		e, err := ex.Store.GetEdge(ctx, step.ByID)
		if err != nil {
			if kgerrors.KindOf(err) == kgerrors.NotFound {
				return nil, nil
			}
			return nil, err
		}
		return []map[string]any{e.AsMap()}, nil
	}
	if step.SourceID != "" || step.TargetID != "" {
		edges, err := ex.Store.FindEdges(ctx, graph.EdgeCriteria{SourceID: step.SourceID, TargetID: step.TargetID, Type: step.EdgeType})
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(edges))
		for _, e := range edges {
			out = append(out, e.AsMap())
		}
		return out, nil
	}
	edges, err := ex.Store.QueryEdges(ctx, step.Criteria)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.AsMap())
	}
	return out, nil
}

// traverse runs a BFS: expand from each input node
// (or step.StartID if there is no input), respecting a per-invocation
// visited set, emitting nodes first seen at depth >= 1.
func (ex *Executor) traverse(ctx context.Context, step Step, in []map[string]any) ([]map[string]any, error) {
	starts := []string{step.StartID}
	if len(in) > 0 {
		starts = starts[:0]
		for _, row := range in {
			if id, ok := row["id"].(string); ok {
				starts = append(starts, id)
			}
		}
	}

	maxDepth := step.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 1
	}

	seen := map[string]bool{}
	var out []map[string]any
	for _, start := range starts {
		// The start node itself is excluded from the output unless the
		// traversal explicitly targets it.
		if step.EndID != "" && step.EndID == start && !seen[start] {
			if n, err := ex.Store.GetNode(ctx, start); err == nil {
				seen[start] = true
				out = append(out, n.AsMap())
			}
		}
		visited := map[string]bool{start: true}
		frontier := []string{start}
		for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
			var nextFrontier []string
			for _, nodeID := range frontier {
				edges, err := ex.Store.EdgesOf(ctx, nodeID, step.Direction, step.EdgeTypes)
				if err != nil {
					return nil, err
				}
				for _, e := range edges {
					var other string
					switch {
					case e.SourceID == nodeID:
						other = e.TargetID
					case e.TargetID == nodeID:
						other = e.SourceID
					default:
						continue
					}
					if visited[other] {
						continue
					}
					visited[other] = true
					nextFrontier = append(nextFrontier, other)

					n, err := ex.Store.GetNode(ctx, other)
					if err != nil {
						continue
					}
					if len(step.FusedFilter) > 0 && !matchConditions(n.AsMap(), step.FusedFilter) {
						continue
					}
					if !seen[other] {
						seen[other] = true
						out = append(out, n.AsMap())
					}
				}
			}
			frontier = nextFrontier
		}
	}
	return out, nil
}

// join implements the pattern-matcher's basic per-edge-step expansion:
// for each bound row, expand via the declared edge type/direction and keep
// only neighbors matching the segment's node constraints.
func (ex *Executor) join(ctx context.Context, step Step, in []map[string]any) ([]map[string]any, error) {
	var out []map[string]any
	for _, row := range in {
		id, _ := row["id"].(string)
		if id == "" {
			continue
		}
		var types []graph.EdgeType
		if step.EdgeType != "" {
			types = []graph.EdgeType{step.EdgeType}
		}
		edges, err := ex.Store.EdgesOf(ctx, id, step.Direction, types)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			other := e.TargetID
			if e.TargetID == id {
				other = e.SourceID
			}
			n, err := ex.Store.GetNode(ctx, other)
			if err != nil {
				continue
			}
			m := n.AsMap()
			if step.Criteria != nil && !step.Criteria.Match(m) {
				continue
			}
			out = append(out, m)
		}
	}
	return out, nil
}

func matchConditions(entity map[string]any, conditions []Condition) bool {
	for _, c := range conditions {
		cmp := graph.Cmp{Path: c.Property, Op: c.Op, Value: c.Value}
		if !cmp.Match(entity) {
			return false
		}
	}
	return true
}

func filterRows(rows []map[string]any, conditions []Condition) []map[string]any {
	if len(conditions) == 0 {
		return rows
	}
	var out []map[string]any
	for _, r := range rows {
		if matchConditions(r, conditions) {
			out = append(out, r)
		}
	}
	return out
}

// lookupViaPredicate reuses graph's AsMap convention (top-level + properties)
// by replicating the resolution rule locally, since graph.lookupPath is
// unexported; query.Condition/Sort/Projection all need the same rule.
func lookupViaPredicate(entity map[string]any, path string) (any, bool) {
	parts := splitPath(path)
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

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	parts = append(parts, path[start:])
	return parts
}

// sortRows is a stable, lexicographic multi-key sort: nulls
// sort last ascending/first descending, strings compare by codepoint order.
func sortRows(rows []map[string]any, keys []SortKey) []map[string]any {
	if len(keys) == 0 {
		return rows
	}
	out := append([]map[string]any(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		for _, k := range keys {
			vi, oki := lookupViaPredicate(out[i], k.Property)
			vj, okj := lookupViaPredicate(out[j], k.Property)
			if !oki && !okj {
				continue
			}
			if !oki || !okj {
				if k.Direction == Desc {
					return !oki && okj
				}
				return oki && !okj
			}
			cmp := compareAny(vi, vj)
			if cmp == 0 {
				continue
			}
			if k.Direction == Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return out
}

func compareAny(a, b any) int {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		default:
			return 0
		}
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as2, bs2 := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as2 < bs2:
		return -1
	case as2 > bs2:
		return 1
	default:
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func limitRows(rows []map[string]any, offset, limit *int) []map[string]any {
	off := 0
	if offset != nil {
		off = *offset
	}
	if off > len(rows) {
		return nil
	}
	rows = rows[off:]
	if limit != nil && *limit < len(rows) {
		rows = rows[:*limit]
	}
	return rows
}

func projectRows(rows []map[string]any, paths []string) []map[string]any {
	if len(paths) == 0 {
		return rows
	}
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		projected := map[string]any{}
		for _, path := range paths {
			v, ok := lookupViaPredicate(r, path)
			if !ok {
				continue
			}
			setDotted(projected, path, v)
		}
		out = append(out, projected)
	}
	return out
}

func setDotted(dst map[string]any, path string, value any) {
	parts := splitPath(path)
	cur := dst
	for i, part := range parts {
		if i == len(parts)-1 {
			cur[part] = value
			return
		}
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[part] = next
		}
		cur = next
	}
}

// aggregateRows applies the aggregation to rows. count ignores field;
// sum/avg/min/max skip non-numeric values; group partitions by field value.
func aggregateRows(rows []map[string]any, agg Aggregation, field string) []map[string]any {
	switch agg {
	case AggCount:
		return []map[string]any{{"count": len(rows)}}
	case AggSum, AggAvg, AggMin, AggMax:
		var sum float64
		var count int
		var min, max float64
		first := true
		for _, r := range rows {
			v, ok := lookupViaPredicate(r, field)
			if !ok {
				continue
			}
			f, ok := toFloat(v)
			if !ok {
				continue
			}
			sum += f
			count++
			if first || f < min {
				min = f
			}
			if first || f > max {
				max = f
			}
			first = false
		}
		switch agg {
		case AggSum:
			return []map[string]any{{"sum": sum}}
		case AggAvg:
			avg := float64(0)
			if count > 0 {
				avg = sum / float64(count)
			}
			return []map[string]any{{"avg": avg}}
		case AggMin:
			return []map[string]any{{"min": min}}
		default:
			return []map[string]any{{"max": max}}
		}
	case AggGroup:
		groups := map[string][]map[string]any{}
		var order []string
		for _, r := range rows {
			v, ok := lookupViaPredicate(r, field)
			key := "null"
			if ok {
				key = fmt.Sprint(v)
			}
			if _, exists := groups[key]; !exists {
				order = append(order, key)
			}
			groups[key] = append(groups[key], r)
		}
		out := make([]map[string]any, 0, len(order))
		for _, key := range order {
			out = append(out, map[string]any{
				"group": key,
				"count": len(groups[key]),
				"items": groups[key],
			})
		}
		return out
	default:
		return rows
	}
}
