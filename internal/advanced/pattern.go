package advanced

import (
	"context"
	"sort"

	"github.com/kgraphdb/kgraph/internal/graph"
	"github.com/kgraphdb/kgraph/internal/kgerrors"
)

const opPattern = "advanced.Pattern"

// PatternComplexity classifies a pattern by size and constraint shape; it
// governs whether matching expands greedily or with full backtracking.
type PatternComplexity string

const (
	ComplexitySimple      PatternComplexity = "simple"
	ComplexityModerate    PatternComplexity = "moderate"
	ComplexityComplex     PatternComplexity = "complex"
	ComplexityVeryComplex PatternComplexity = "very_complex"
)

// PropertyConstraint is one explicit {path, operator, value} constraint on
// a pattern node.
type PropertyConstraint struct {
	Path  string
	Op    graph.Op
	Value any
}

// complex reports whether this constraint uses an operator other than
// plain equality or a nested property path, either of which pushes the
// pattern into the Complex classification.
func (pc PropertyConstraint) complex() bool {
	return pc.Op != graph.OpEq || pathDepth(pc.Path) > 1
}

func pathDepth(path string) int {
	depth := 0
	for _, r := range path {
		if r == '.' {
			depth++
		}
	}
	return depth
}

// NodeConstraint is one pattern node's explicit constraints.
type NodeConstraint struct {
	Type       graph.NodeType
	Properties []PropertyConstraint
}

func (nc NodeConstraint) count() int {
	n := len(nc.Properties)
	if nc.Type != "" {
		n++
	}
	return n
}

func (nc NodeConstraint) hasComplexConstraint() bool {
	for _, pc := range nc.Properties {
		if pc.complex() {
			return true
		}
	}
	return false
}

func (nc NodeConstraint) match(entity map[string]any) bool {
	if nc.Type != "" {
		t, _ := entity["type"].(string)
		if t != string(nc.Type) {
			return false
		}
	}
	for _, pc := range nc.Properties {
		cmp := graph.Cmp{Path: pc.Path, Op: pc.Op, Value: pc.Value}
		if !cmp.Match(entity) {
			return false
		}
	}
	return true
}

// EdgeConstraint is one pattern edge, referencing source/target node
// indices into Pattern.Nodes. Direction defaults to outgoing (From -> To).
type EdgeConstraint struct {
	From, To  int
	Type      graph.EdgeType
	Direction graph.Direction
}

// Pattern is a {nodes, edges} subgraph pattern; each edge constraint
// references its endpoints by node index.
type Pattern struct {
	Nodes     []NodeConstraint
	Edges     []EdgeConstraint
	Recursive bool
	Limit     int // default max_results_per_query when <= 0
}

// Classify buckets the pattern into a complexity class.
func (p Pattern) Classify() PatternComplexity {
	n, e := len(p.Nodes), len(p.Edges)
	if p.Recursive || (n > 5 && e > 10) {
		return ComplexityVeryComplex
	}
	if n > 3 {
		return ComplexityComplex
	}
	for _, nc := range p.Nodes {
		if nc.hasComplexConstraint() {
			return ComplexityComplex
		}
	}
	if n == 1 || (n == 2 && e == 1) {
		return ComplexitySimple
	}
	if n <= 3 && e <= 5 {
		return ComplexityModerate
	}
	return ComplexityComplex
}

// PatternMatch is one assignment of pattern-node indices to concrete node
// ids, plus the concrete edge ids bound in pattern order.
type PatternMatch struct {
	NodeIDs []string
	EdgeIDs []string
}

// FindPatterns matches pattern against the graph: seed on the
// most-constrained node (ties broken by declaration order), then expand
// greedily (Moderate) or with full backtracking (Complex/VeryComplex).
// Simple patterns reuse the same search, which degenerates to direct
// lookup/enumeration for 1 node or 2 nodes + 1 edge. Node-id bindings must
// be distinct across a match; results are bounded by limit.
func (e *Engine) FindPatterns(ctx context.Context, pattern Pattern, limit int) ([]PatternMatch, error) {
	if len(pattern.Nodes) == 0 {
		return nil, kgerrors.Newf(kgerrors.InvalidQuery, opPattern+".FindPatterns", "pattern requires at least one node")
	}
	if limit <= 0 {
		limit = pattern.Limit
	}
	if limit <= 0 {
		limit = 1000
	}

	greedy := pattern.Classify() == ComplexityModerate

	seedIdx := mostConstrainedNode(pattern.Nodes)
	order := processingOrder(pattern, seedIdx)

	seeds, err := e.candidatesFor(ctx, pattern.Nodes[seedIdx])
	if err != nil {
		return nil, err
	}
	sort.Slice(seeds, func(i, j int) bool { return seeds[i].ID < seeds[j].ID })

	var results []PatternMatch
	for _, seed := range seeds {
		if len(results) >= limit {
			break
		}
		select {
		case <-ctx.Done():
			return nil, kgerrors.FromContext(opPattern+".FindPatterns", ctx.Err())
		default:
		}

		nodeIDs := make([]string, len(pattern.Nodes))
		edgeIDs := make([]string, len(pattern.Edges))
		nodeIDs[seedIdx] = seed.ID
		used := map[string]bool{seed.ID: true}
		bound := map[int]bool{seedIdx: true}

		if err := e.matchStep(ctx, pattern, order, 1, nodeIDs, edgeIDs, used, bound, greedy, limit, &results); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func mostConstrainedNode(nodes []NodeConstraint) int {
	best, bestCount := 0, -1
	for i, n := range nodes {
		if c := n.count(); c > bestCount {
			best, bestCount = i, c
		}
	}
	return best
}

// processingOrder walks the pattern's edge graph breadth-first from seed so
// every subsequent node in the order connects to some already-placed node;
// nodes unreachable from seed (a disconnected pattern) are appended last and
// matched independently via candidatesFor.
func processingOrder(pattern Pattern, seed int) []int {
	n := len(pattern.Nodes)
	visited := make([]bool, n)
	order := []int{seed}
	visited[seed] = true
	queue := []int{seed}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, ec := range pattern.Edges {
			var other int = -1
			switch {
			case ec.From == cur && !visited[ec.To]:
				other = ec.To
			case ec.To == cur && !visited[ec.From]:
				other = ec.From
			}
			if other >= 0 {
				visited[other] = true
				order = append(order, other)
				queue = append(queue, other)
			}
		}
	}
	for i := 0; i < n; i++ {
		if !visited[i] {
			order = append(order, i)
			visited[i] = true
		}
	}
	return order
}

// connectingEdges returns the indices of pattern edges that connect nodeIdx
// to an already-bound node.
func connectingEdges(pattern Pattern, nodeIdx int, bound map[int]bool) []int {
	var idxs []int
	for i, ec := range pattern.Edges {
		if (ec.From == nodeIdx && bound[ec.To]) || (ec.To == nodeIdx && bound[ec.From]) {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

// matchStep assigns a concrete id to order[pos] and recurses; at the leaf it
// validates every pattern edge (including ones not used to seed candidates,
// e.g. a cycle-closing edge) and records a match.
func (e *Engine) matchStep(ctx context.Context, pattern Pattern, order []int, pos int, nodeIDs, edgeIDs []string, used map[string]bool, bound map[int]bool, greedy bool, limit int, results *[]PatternMatch) error {
	if len(*results) >= limit {
		return nil
	}
	select {
	case <-ctx.Done():
		return kgerrors.FromContext(opPattern+".FindPatterns", ctx.Err())
	default:
	}

	if pos == len(order) {
		match, ok, err := e.finalizeMatch(ctx, pattern, nodeIDs, edgeIDs)
		if err != nil {
			return err
		}
		if ok {
			*results = append(*results, match)
		}
		return nil
	}

	nodeIdx := order[pos]
	constraint := pattern.Nodes[nodeIdx]
	connIdxs := connectingEdges(pattern, nodeIdx, bound)

	var candidates []*graph.Node
	if len(connIdxs) == 0 {
		var err error
		candidates, err = e.candidatesFor(ctx, constraint)
		if err != nil {
			return err
		}
	} else {
		ec := pattern.Edges[connIdxs[0]]
		boundIdx, boundIsFrom := ec.To, false
		if ec.From != nodeIdx {
			boundIdx, boundIsFrom = ec.From, true
		}
		neighbors, err := e.neighborIDs(ctx, nodeIDs[boundIdx], ec, boundIsFrom)
		if err != nil {
			return err
		}
		for id := range neighbors {
			if used[id] {
				continue
			}
			n, err := e.Store.GetNode(ctx, id)
			if err != nil {
				continue
			}
			if !constraint.match(n.AsMap()) {
				continue
			}
			candidates = append(candidates, n)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	for _, cand := range candidates {
		if used[cand.ID] {
			continue
		}
		assignedEdges := map[int]string{}
		ok := true
		for _, ei := range connIdxs {
			ec := pattern.Edges[ei]
			fromID, toID := nodeIDs[ec.From], nodeIDs[ec.To]
			if ec.From == nodeIdx {
				fromID = cand.ID
			} else {
				toID = cand.ID
			}
			edges, err := e.concreteEdges(ctx, ec, fromID, toID)
			if err != nil {
				return err
			}
			if len(edges) == 0 {
				ok = false
				break
			}
			assignedEdges[ei] = edges[0].ID
		}
		if !ok {
			continue
		}

		nodeIDs[nodeIdx] = cand.ID
		for ei, eid := range assignedEdges {
			edgeIDs[ei] = eid
		}
		used[cand.ID] = true
		bound[nodeIdx] = true

		before := len(*results)
		if err := e.matchStep(ctx, pattern, order, pos+1, nodeIDs, edgeIDs, used, bound, greedy, limit, results); err != nil {
			return err
		}
		found := len(*results) > before

		delete(used, cand.ID)
		bound[nodeIdx] = false
		nodeIDs[nodeIdx] = ""
		for ei := range assignedEdges {
			edgeIDs[ei] = ""
		}

		if len(*results) >= limit {
			return nil
		}
		if greedy && found {
			return nil
		}
	}
	return nil
}

// finalizeMatch validates any pattern edge not already bound during the
// walk (disconnected-component edges, chiefly) and returns the completed
// match.
func (e *Engine) finalizeMatch(ctx context.Context, pattern Pattern, nodeIDs, edgeIDs []string) (PatternMatch, bool, error) {
	final := append([]string(nil), edgeIDs...)
	for i, ec := range pattern.Edges {
		if final[i] != "" {
			continue
		}
		edges, err := e.concreteEdges(ctx, ec, nodeIDs[ec.From], nodeIDs[ec.To])
		if err != nil {
			return PatternMatch{}, false, err
		}
		if len(edges) == 0 {
			return PatternMatch{}, false, nil
		}
		final[i] = edges[0].ID
	}
	return PatternMatch{NodeIDs: append([]string(nil), nodeIDs...), EdgeIDs: final}, true, nil
}

// candidatesFor enumerates every node satisfying a pattern node's explicit
// constraints, via the store's predicate-scan path.
func (e *Engine) candidatesFor(ctx context.Context, nc NodeConstraint) ([]*graph.Node, error) {
	var preds graph.And
	if nc.Type != "" {
		preds = append(preds, graph.Cmp{Path: "type", Op: graph.OpEq, Value: string(nc.Type)})
	}
	for _, pc := range nc.Properties {
		preds = append(preds, graph.Cmp{Path: pc.Path, Op: pc.Op, Value: pc.Value})
	}
	if len(preds) == 0 {
		return e.Store.ScanNodes(ctx)
	}
	return e.Store.QueryNodes(ctx, preds)
}

// neighborIDs returns, for a bound node boundID, the candidate neighbor ids
// reachable via ec (respecting its type and direction, relative to which
// side boundID occupies), with the connecting edge id(s) for each.
func (e *Engine) neighborIDs(ctx context.Context, boundID string, ec EdgeConstraint, boundIsFrom bool) (map[string][]string, error) {
	var dir graph.Direction
	switch ec.Direction {
	case graph.DirectionIncoming:
		if boundIsFrom {
			dir = graph.DirectionIncoming
		} else {
			dir = graph.DirectionOutgoing
		}
	case graph.DirectionBoth:
		dir = graph.DirectionBoth
	default:
		if boundIsFrom {
			dir = graph.DirectionOutgoing
		} else {
			dir = graph.DirectionIncoming
		}
	}
	var types []graph.EdgeType
	if ec.Type != "" {
		types = []graph.EdgeType{ec.Type}
	}
	edges, err := e.Store.EdgesOf(ctx, boundID, dir, types)
	if err != nil {
		return nil, err
	}
	out := map[string][]string{}
	for _, edge := range edges {
		var other string
		switch {
		case edge.SourceID == boundID:
			other = edge.TargetID
		case edge.TargetID == boundID:
			other = edge.SourceID
		default:
			continue
		}
		out[other] = append(out[other], edge.ID)
	}
	return out, nil
}

// concreteEdges returns every concrete edge between fromID and toID
// satisfying ec's type and direction (trying both orientations when
// Direction is "both").
func (e *Engine) concreteEdges(ctx context.Context, ec EdgeConstraint, fromID, toID string) ([]*graph.Edge, error) {
	var out []*graph.Edge
	try := func(src, dst string) error {
		edges, err := e.Store.FindEdges(ctx, graph.EdgeCriteria{SourceID: src, TargetID: dst, Type: ec.Type})
		if err != nil {
			return err
		}
		out = append(out, edges...)
		return nil
	}
	switch ec.Direction {
	case graph.DirectionIncoming:
		if err := try(toID, fromID); err != nil {
			return nil, err
		}
	case graph.DirectionBoth:
		if err := try(fromID, toID); err != nil {
			return nil, err
		}
		if err := try(toID, fromID); err != nil {
			return nil, err
		}
	default:
		if err := try(fromID, toID); err != nil {
			return nil, err
		}
	}
	return out, nil
}
