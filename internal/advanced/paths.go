// Package advanced implements the Advanced Query Engine (C5): path finding,
// subgraph pattern matching, and semantic similarity search over C1/C2/C3.
package advanced

import (
	"context"
	"strings"

	"github.com/kgraphdb/kgraph/internal/graph"
	"github.com/kgraphdb/kgraph/internal/kgerrors"
)

const opAdvanced = "advanced.Engine"

// Engine holds the store the advanced operations read from; the index
// manager is passed per call to SemanticSearch and FindSimilarNodes. It has
// no mutable state of its own.
type Engine struct {
	Store graph.Store
}

// New builds an Engine.
func New(store graph.Store) *Engine {
	return &Engine{Store: store}
}

// PathOptions configures find_paths.
type PathOptions struct {
	MaxLength     int // default 10
	EdgeTypes     []graph.EdgeType
	Bidirectional bool
	Predicate     func(*graph.Edge) bool
}

// Path is a reconstructed simple path: nodes in order, and the edges
// connecting consecutive nodes, also in order.
type Path struct {
	Nodes []*graph.Node
	Edges []*graph.Edge
}

// FindPaths returns every simple path from start to end up to
// opts.MaxLength edges.
func (e *Engine) FindPaths(ctx context.Context, start, end string, opts PathOptions) ([]Path, error) {
	if opts.MaxLength <= 0 {
		opts.MaxLength = 10
	}
	if opts.Bidirectional {
		return e.findPathsBidirectional(ctx, start, end, opts)
	}
	return e.findPathsUnidirectional(ctx, start, end, opts)
}

type frame struct {
	nodeID  string
	path    []string
	edgeIDs []string
	visited map[string]bool
}

// findPathsUnidirectional performs plain BFS from start, enqueueing
// (path, visited) pairs and emitting a path whenever the frontier node
// equals end.
func (e *Engine) findPathsUnidirectional(ctx context.Context, start, end string, opts PathOptions) ([]Path, error) {
	var results []Path
	queue := []frame{{nodeID: start, path: []string{start}, visited: map[string]bool{start: true}}}

	for len(queue) > 0 {
		select {
		case <-ctx.Done():
			return nil, kgerrors.FromContext(opAdvanced+".FindPaths", ctx.Err())
		default:
		}

		cur := queue[0]
		queue = queue[1:]

		if cur.nodeID == end && len(cur.path) > 1 {
			nodes, edges, err := e.reconstruct(ctx, cur.path, cur.edgeIDs)
			if err != nil {
				return nil, err
			}
			results = append(results, Path{Nodes: nodes, Edges: edges})
			continue
		}
		if len(cur.path)-1 >= opts.MaxLength {
			continue
		}

		edges, err := e.Store.EdgesOf(ctx, cur.nodeID, graph.DirectionOutgoing, opts.EdgeTypes)
		if err != nil {
			return nil, err
		}
		for _, edge := range edges {
			if opts.Predicate != nil && !opts.Predicate(edge) {
				continue
			}
			next := edge.TargetID
			if cur.visited[next] {
				continue
			}
			visited := make(map[string]bool, len(cur.visited)+1)
			for k := range cur.visited {
				visited[k] = true
			}
			visited[next] = true

			queue = append(queue, frame{
				nodeID:  next,
				path:    append(append([]string(nil), cur.path...), next),
				edgeIDs: append(append([]string(nil), cur.edgeIDs...), edge.ID),
				visited: visited,
			})
		}
	}
	return results, nil
}

// findPathsBidirectional alternately expands frontiers from start (forward)
// and end (backward), each to depth ceil(maxLength/2), stitching at any
// meeting node. The backward half's edges are walked in forward storage
// order when stitched, never emitted reversed.
func (e *Engine) findPathsBidirectional(ctx context.Context, start, end string, opts PathOptions) ([]Path, error) {
	halfDepth := (opts.MaxLength + 1) / 2

	forward := map[string][]frame{start: {{nodeID: start, path: []string{start}, visited: map[string]bool{start: true}}}}
	backward := map[string][]frame{end: {{nodeID: end, path: []string{end}, visited: map[string]bool{end: true}}}}

	forwardFrontier := []frame{forward[start][0]}
	backwardFrontier := []frame{backward[end][0]}

	var results []Path
	seenPath := map[string]bool{}

	expand := func(frontier []frame, dir graph.Direction) ([]frame, map[string][]frame, error) {
		next := map[string][]frame{}
		var nextFrontier []frame
		for _, f := range frontier {
			edges, err := e.Store.EdgesOf(ctx, f.nodeID, dir, opts.EdgeTypes)
			if err != nil {
				return nil, nil, err
			}
			for _, edge := range edges {
				if opts.Predicate != nil && !opts.Predicate(edge) {
					continue
				}
				var nb string
				if dir == graph.DirectionOutgoing {
					nb = edge.TargetID
				} else {
					nb = edge.SourceID
				}
				if f.visited[nb] {
					continue
				}
				visited := make(map[string]bool, len(f.visited)+1)
				for k := range f.visited {
					visited[k] = true
				}
				visited[nb] = true
				nf := frame{
					nodeID:  nb,
					path:    append(append([]string(nil), f.path...), nb),
					edgeIDs: append(append([]string(nil), f.edgeIDs...), edge.ID),
					visited: visited,
				}
				next[nb] = append(next[nb], nf)
				nextFrontier = append(nextFrontier, nf)
			}
		}
		return nextFrontier, next, nil
	}

	for depth := 0; depth < halfDepth; depth++ {
		select {
		case <-ctx.Done():
			return nil, kgerrors.FromContext(opAdvanced+".FindPaths", ctx.Err())
		default:
		}

		meet := func(fFrames, bFrames []frame) error {
			for _, ff := range fFrames {
				for _, bf := range bFrames {
					if len(ff.path)-1+len(bf.path)-1 > opts.MaxLength {
						continue
					}
					nodeIDs, edgeIDs, ok := stitchIDs(ff, bf)
					if !ok {
						continue
					}
					key := strings.Join(nodeIDs, "\x1f")
					if seenPath[key] {
						continue
					}
					seenPath[key] = true
					nodes, edges, err := e.reconstruct(ctx, nodeIDs, edgeIDs)
					if err != nil {
						return err
					}
					results = append(results, Path{Nodes: nodes, Edges: edges})
				}
			}
			return nil
		}

		var err error
		forwardFrontier, forward, err = expand(forwardFrontier, graph.DirectionOutgoing)
		if err != nil {
			return nil, err
		}
		for node, fFrames := range forward {
			if bFrames, ok := backward[node]; ok {
				if err := meet(fFrames, bFrames); err != nil {
					return nil, err
				}
			}
		}

		backwardFrontier, backward, err = expand(backwardFrontier, graph.DirectionIncoming)
		if err != nil {
			return nil, err
		}
		for node, bFrames := range backward {
			if fFrames, ok := forward[node]; ok {
				if err := meet(fFrames, bFrames); err != nil {
					return nil, err
				}
			}
		}
	}
	return results, nil
}

// stitchIDs joins a forward half-path (start..meet) with a backward
// half-path (end..meet, walked backward from end) into a single start->end
// node/edge id sequence. The backward half is reversed as a whole before
// concatenation, so every edge id stays in the direction it is stored,
// never flipped. Returns ok=false when the halves share a node other than
// the meeting point, which would make the stitched path non-simple.
func stitchIDs(fwd, bwd frame) ([]string, []string, bool) {
	reversedNodes := make([]string, len(bwd.path))
	for i, n := range bwd.path {
		reversedNodes[len(bwd.path)-1-i] = n
	}
	// fwd.path ends at the meeting node; reversedNodes starts at it.
	fullNodes := append(append([]string(nil), fwd.path...), reversedNodes[1:]...)

	seen := make(map[string]bool, len(fullNodes))
	for _, id := range fullNodes {
		if seen[id] {
			return nil, nil, false
		}
		seen[id] = true
	}

	fullEdgeIDs := append([]string(nil), fwd.edgeIDs...)
	for i := len(bwd.edgeIDs) - 1; i >= 0; i-- {
		fullEdgeIDs = append(fullEdgeIDs, bwd.edgeIDs[i])
	}
	return fullNodes, fullEdgeIDs, true
}

// reconstruct fetches the concrete node and edge records for a path before
// returning.
func (e *Engine) reconstruct(ctx context.Context, nodeIDs, edgeIDs []string) ([]*graph.Node, []*graph.Edge, error) {
	nodes := make([]*graph.Node, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		n, err := e.Store.GetNode(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, n)
	}
	edges := make([]*graph.Edge, 0, len(edgeIDs))
	for _, id := range edgeIDs {
		edge, err := e.Store.GetEdge(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		edges = append(edges, edge)
	}
	return nodes, edges, nil
}
