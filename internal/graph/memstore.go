package graph

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kgraphdb/kgraph/internal/kgerrors"
)

// MemoryStore is the default, authoritative in-process Store implementation:
// plain maps under a single RWMutex, with adjacency side-tables so EdgesOf
// doesn't scan the whole edge set on every traversal step.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	edges map[string]*Edge

	cascade CascadePolicy

	// out[nodeID] / in[nodeID] hold edge ids, kept in sync with PutEdge /
	// DeleteEdge.
	out map[string][]string
	in  map[string][]string
}

// NewMemoryStore builds an empty in-memory graph store. cascade controls
// DeleteNode's behavior when the node still has incident edges.
func NewMemoryStore(cascade CascadePolicy) *MemoryStore {
	return &MemoryStore{
		nodes:   make(map[string]*Node),
		edges:   make(map[string]*Edge),
		out:     make(map[string][]string),
		in:      make(map[string][]string),
		cascade: cascade,
	}
}

const opPrefix = "graph.MemoryStore"

func (s *MemoryStore) PutNode(_ context.Context, node *Node) (string, error) {
	if node == nil {
		return "", kgerrors.Newf(kgerrors.InvalidArgument, opPrefix+".PutNode", "node is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := node.ID
	if id == "" {
		id = uuid.NewString()
	} else if _, exists := s.nodes[id]; exists {
		return "", kgerrors.Newf(kgerrors.AlreadyExists, opPrefix+".PutNode", "node %q already exists", id)
	}

	clone := node.Clone()
	clone.ID = id
	now := time.Now()
	if clone.Metadata.CreatedAt.IsZero() {
		clone.Metadata.CreatedAt = now
	}
	clone.Metadata.UpdatedAt = now
	if clone.Properties == nil {
		clone.Properties = map[string]any{}
	}

	s.nodes[id] = clone
	return id, nil
}

func (s *MemoryStore) GetNode(_ context.Context, id string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, kgerrors.Newf(kgerrors.NotFound, opPrefix+".GetNode", "node %q not found", id)
	}
	return n.Clone(), nil
}

func (s *MemoryStore) UpdateNode(_ context.Context, id string, patch Patch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return false, kgerrors.Newf(kgerrors.NotFound, opPrefix+".UpdateNode", "node %q not found", id)
	}
	if n.Properties == nil {
		n.Properties = map[string]any{}
	}
	for k, v := range patch.Properties {
		n.Properties[k] = v
	}
	if len(patch.Metadata) > 0 {
		if n.Metadata.Extra == nil {
			n.Metadata.Extra = map[string]any{}
		}
		for k, v := range patch.Metadata {
			n.Metadata.Extra[k] = v
		}
	}
	n.Metadata.UpdatedAt = time.Now()
	return true, nil
}

func (s *MemoryStore) DeleteNode(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[id]; !ok {
		return false, kgerrors.Newf(kgerrors.NotFound, opPrefix+".DeleteNode", "node %q not found", id)
	}
	incident := len(s.out[id]) + len(s.in[id])
	if incident > 0 {
		if s.cascade == CascadeReject {
			return false, kgerrors.Newf(kgerrors.IntegrityViolation, opPrefix+".DeleteNode",
				"node %q has %d incident edges", id, incident)
		}
		for _, eid := range append(append([]string(nil), s.out[id]...), s.in[id]...) {
			s.deleteEdgeLocked(eid)
		}
	}
	delete(s.nodes, id)
	delete(s.out, id)
	delete(s.in, id)
	return true, nil
}

func (s *MemoryStore) QueryNodes(_ context.Context, pred Predicate) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Node
	for _, n := range s.nodes {
		if pred == nil || pred.Match(n.AsMap()) {
			out = append(out, n.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) ScanNodes(ctx context.Context) ([]*Node, error) {
	return s.QueryNodes(ctx, nil)
}

func (s *MemoryStore) PutEdge(_ context.Context, edge *Edge) (string, error) {
	if edge == nil {
		return "", kgerrors.Newf(kgerrors.InvalidArgument, opPrefix+".PutEdge", "edge is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[edge.SourceID]; !ok {
		return "", kgerrors.Newf(kgerrors.NotFound, opPrefix+".PutEdge", "source node %q not found", edge.SourceID)
	}
	if _, ok := s.nodes[edge.TargetID]; !ok {
		return "", kgerrors.Newf(kgerrors.NotFound, opPrefix+".PutEdge", "target node %q not found", edge.TargetID)
	}

	id := edge.ID
	if id == "" {
		id = uuid.NewString()
	} else if _, exists := s.edges[id]; exists {
		return "", kgerrors.Newf(kgerrors.AlreadyExists, opPrefix+".PutEdge", "edge %q already exists", id)
	}

	clone := edge.Clone()
	clone.ID = id
	now := time.Now()
	if clone.Metadata.CreatedAt.IsZero() {
		clone.Metadata.CreatedAt = now
	}
	clone.Metadata.UpdatedAt = now
	if clone.Properties == nil {
		clone.Properties = map[string]any{}
	}

	s.edges[id] = clone
	s.out[clone.SourceID] = append(s.out[clone.SourceID], id)
	s.in[clone.TargetID] = append(s.in[clone.TargetID], id)
	return id, nil
}

func (s *MemoryStore) GetEdge(_ context.Context, id string) (*Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.edges[id]
	if !ok {
		return nil, kgerrors.Newf(kgerrors.NotFound, opPrefix+".GetEdge", "edge %q not found", id)
	}
	return e.Clone(), nil
}

func (s *MemoryStore) UpdateEdge(_ context.Context, id string, patch Patch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.edges[id]
	if !ok {
		return false, kgerrors.Newf(kgerrors.NotFound, opPrefix+".UpdateEdge", "edge %q not found", id)
	}
	if e.Properties == nil {
		e.Properties = map[string]any{}
	}
	for k, v := range patch.Properties {
		e.Properties[k] = v
	}
	if len(patch.Metadata) > 0 {
		if e.Metadata.Extra == nil {
			e.Metadata.Extra = map[string]any{}
		}
		for k, v := range patch.Metadata {
			e.Metadata.Extra[k] = v
		}
	}
	e.Metadata.UpdatedAt = time.Now()
	return true, nil
}

func (s *MemoryStore) DeleteEdge(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.edges[id]; !ok {
		return false, kgerrors.Newf(kgerrors.NotFound, opPrefix+".DeleteEdge", "edge %q not found", id)
	}
	s.deleteEdgeLocked(id)
	return true, nil
}

// deleteEdgeLocked removes an edge and its adjacency entries. Caller holds s.mu.
func (s *MemoryStore) deleteEdgeLocked(id string) {
	e, ok := s.edges[id]
	if !ok {
		return
	}
	delete(s.edges, id)
	s.out[e.SourceID] = removeString(s.out[e.SourceID], id)
	s.in[e.TargetID] = removeString(s.in[e.TargetID], id)
}

func removeString(list []string, target string) []string {
	for i, v := range list {
		if v == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func (s *MemoryStore) QueryEdges(_ context.Context, pred Predicate) ([]*Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Edge
	for _, e := range s.edges {
		if pred == nil || pred.Match(e.AsMap()) {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) FindEdges(_ context.Context, criteria EdgeCriteria) ([]*Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Edge
	for _, e := range s.edges {
		if criteria.SourceID != "" && e.SourceID != criteria.SourceID {
			continue
		}
		if criteria.TargetID != "" && e.TargetID != criteria.TargetID {
			continue
		}
		if criteria.Type != "" && e.Type != criteria.Type {
			continue
		}
		out = append(out, e.Clone())
	}
	return out, nil
}

func (s *MemoryStore) ScanEdges(ctx context.Context) ([]*Edge, error) {
	return s.QueryEdges(ctx, nil)
}

func (s *MemoryStore) EdgesOf(_ context.Context, nodeID string, dir Direction, edgeTypes []EdgeType) ([]*Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[nodeID]; !ok {
		return nil, kgerrors.Newf(kgerrors.NotFound, opPrefix+".EdgesOf", "node %q not found", nodeID)
	}

	wanted := func(t EdgeType) bool {
		if len(edgeTypes) == 0 {
			return true
		}
		for _, want := range edgeTypes {
			if t == want {
				return true
			}
		}
		return false
	}

	seen := make(map[string]bool)
	var out []*Edge
	collect := func(ids []string) {
		for _, id := range ids {
			if seen[id] {
				continue
			}
			e, ok := s.edges[id]
			if !ok || !wanted(e.Type) {
				continue
			}
			seen[id] = true
			out = append(out, e.Clone())
		}
	}

	if dir == DirectionOutgoing || dir == DirectionBoth {
		collect(s.out[nodeID])
	}
	if dir == DirectionIncoming || dir == DirectionBoth {
		collect(s.in[nodeID])
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
