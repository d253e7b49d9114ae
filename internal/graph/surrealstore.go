package graph

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/kgraphdb/kgraph/internal/kgerrors"
	"github.com/surrealdb/surrealdb.go"
)

// SurrealConfig holds the remote connection parameters for SurrealStore.
// There is no embedded/cgo path: SurrealStore always dials a running
// SurrealDB server over its Go client.
type SurrealConfig struct {
	URL       string
	Username  string
	Password  string
	Namespace string
	Database  string
	Timeout   time.Duration
	Cascade   CascadePolicy
}

// SurrealStore is the optional durable Store backend, for deployments that
// want persistence behind the same interface MemoryStore implements. Nodes
// and edges are kept in two SCHEMALESS tables ("kg_node", "kg_edge") with
// their full entity encoded as a single JSON-in-object payload, so the store
// doesn't need a SurrealQL schema migration for every new property shape.
type SurrealStore struct {
	db     *surrealdb.DB
	config SurrealConfig
}

const opSurreal = "graph.SurrealStore"

// NewSurrealStore connects to a remote SurrealDB instance and returns a Store
// backed by it. The caller is responsible for closing it.
func NewSurrealStore(ctx context.Context, cfg SurrealConfig) (*SurrealStore, error) {
	if cfg.Namespace == "" {
		cfg.Namespace = "kgraph"
	}
	if cfg.Database == "" {
		cfg.Database = "kgraph"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.URL == "" {
		return nil, kgerrors.Newf(kgerrors.InvalidArgument, opSurreal+".New", "URL is required")
	}

	db, err := surrealdb.New(cfg.URL)
	if err != nil {
		return nil, kgerrors.Newf(kgerrors.Backend, opSurreal+".New", "connect: %w", err)
	}

	if cfg.Username != "" {
		if _, err := db.SignIn(map[string]any{"user": cfg.Username, "pass": cfg.Password}); err != nil {
			return nil, kgerrors.Newf(kgerrors.Backend, opSurreal+".New", "sign in: %w", err)
		}
	}
	if err := db.Use(cfg.Namespace, cfg.Database); err != nil {
		return nil, kgerrors.Newf(kgerrors.Backend, opSurreal+".New", "use namespace/database: %w", err)
	}

	return &SurrealStore{db: db, config: cfg}, nil
}

func (s *SurrealStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SurrealStore) exec(query string, vars map[string]any) ([]map[string]any, error) {
	rows, err := surrealdb.Query[[]map[string]any](s.db, query, vars)
	if err != nil {
		return nil, err
	}
	if rows == nil || len(*rows) == 0 {
		return nil, nil
	}
	first := (*rows)[0]
	return first.Result, nil
}

func nodeToRow(n *Node) map[string]any {
	return map[string]any{
		"id":         "kg_node:" + n.ID,
		"entity_id":  n.ID,
		"type":       string(n.Type),
		"properties": n.Properties,
		"metadata":   n.Metadata,
		"embeddings": n.Embeddings,
	}
}

func rowToNode(row map[string]any) (*Node, error) {
	blob, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	var aux struct {
		EntityID   string               `json:"entity_id"`
		Type       NodeType             `json:"type"`
		Properties map[string]any       `json:"properties"`
		Metadata   Metadata             `json:"metadata"`
		Embeddings map[string][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(blob, &aux); err != nil {
		return nil, err
	}
	return &Node{
		ID:         aux.EntityID,
		Type:       aux.Type,
		Properties: aux.Properties,
		Metadata:   aux.Metadata,
		Embeddings: aux.Embeddings,
	}, nil
}

func edgeToRow(e *Edge) map[string]any {
	return map[string]any{
		"id":         "kg_edge:" + e.ID,
		"entity_id":  e.ID,
		"source_id":  e.SourceID,
		"target_id":  e.TargetID,
		"type":       string(e.Type),
		"properties": e.Properties,
		"metadata":   e.Metadata,
	}
}

func rowToEdge(row map[string]any) (*Edge, error) {
	blob, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	var aux struct {
		EntityID   string         `json:"entity_id"`
		SourceID   string         `json:"source_id"`
		TargetID   string         `json:"target_id"`
		Type       EdgeType       `json:"type"`
		Properties map[string]any `json:"properties"`
		Metadata   Metadata       `json:"metadata"`
	}
	if err := json.Unmarshal(blob, &aux); err != nil {
		return nil, err
	}
	return &Edge{
		ID:         aux.EntityID,
		SourceID:   aux.SourceID,
		TargetID:   aux.TargetID,
		Type:       aux.Type,
		Properties: aux.Properties,
		Metadata:   aux.Metadata,
	}, nil
}

func (s *SurrealStore) PutNode(_ context.Context, node *Node) (string, error) {
	if node == nil {
		return "", kgerrors.Newf(kgerrors.InvalidArgument, opSurreal+".PutNode", "node is nil")
	}
	clone := node.Clone()
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	} else if existing, _ := s.exec("SELECT entity_id FROM kg_node WHERE entity_id = $id", map[string]any{"id": clone.ID}); len(existing) > 0 {
		return "", kgerrors.Newf(kgerrors.AlreadyExists, opSurreal+".PutNode", "node %q already exists", clone.ID)
	}
	now := time.Now()
	if clone.Metadata.CreatedAt.IsZero() {
		clone.Metadata.CreatedAt = now
	}
	clone.Metadata.UpdatedAt = now

	_, err := s.exec("INSERT INTO kg_node $row", map[string]any{"row": nodeToRow(clone)})
	if err != nil {
		return "", kgerrors.Newf(kgerrors.Backend, opSurreal+".PutNode", "insert: %w", err)
	}
	return clone.ID, nil
}

func (s *SurrealStore) GetNode(_ context.Context, id string) (*Node, error) {
	rows, err := s.exec("SELECT * FROM kg_node WHERE entity_id = $id", map[string]any{"id": id})
	if err != nil {
		return nil, kgerrors.Newf(kgerrors.Backend, opSurreal+".GetNode", "select: %w", err)
	}
	if len(rows) == 0 {
		return nil, kgerrors.Newf(kgerrors.NotFound, opSurreal+".GetNode", "node %q not found", id)
	}
	return rowToNode(rows[0])
}

func (s *SurrealStore) UpdateNode(ctx context.Context, id string, patch Patch) (bool, error) {
	n, err := s.GetNode(ctx, id)
	if err != nil {
		return false, err
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
	_, err = s.exec("UPDATE kg_node SET properties = $p, metadata = $m WHERE entity_id = $id",
		map[string]any{"p": n.Properties, "m": n.Metadata, "id": id})
	if err != nil {
		return false, kgerrors.Newf(kgerrors.Backend, opSurreal+".UpdateNode", "update: %w", err)
	}
	return true, nil
}

func (s *SurrealStore) DeleteNode(ctx context.Context, id string) (bool, error) {
	incident, err := s.FindEdges(ctx, EdgeCriteria{SourceID: id})
	if err != nil {
		return false, err
	}
	incidentIn, err := s.FindEdges(ctx, EdgeCriteria{TargetID: id})
	if err != nil {
		return false, err
	}
	if len(incident)+len(incidentIn) > 0 {
		if s.config.Cascade == CascadeReject {
			return false, kgerrors.Newf(kgerrors.IntegrityViolation, opSurreal+".DeleteNode",
				"node %q has %d incident edges", id, len(incident)+len(incidentIn))
		}
		for _, e := range append(incident, incidentIn...) {
			if _, err := s.DeleteEdge(ctx, e.ID); err != nil {
				return false, err
			}
		}
	}
	rows, err := s.exec("DELETE kg_node WHERE entity_id = $id RETURN BEFORE", map[string]any{"id": id})
	if err != nil {
		return false, kgerrors.Newf(kgerrors.Backend, opSurreal+".DeleteNode", "delete: %w", err)
	}
	if len(rows) == 0 {
		return false, kgerrors.Newf(kgerrors.NotFound, opSurreal+".DeleteNode", "node %q not found", id)
	}
	return true, nil
}

func (s *SurrealStore) QueryNodes(_ context.Context, pred Predicate) ([]*Node, error) {
	rows, err := s.exec("SELECT * FROM kg_node", nil)
	if err != nil {
		return nil, kgerrors.Newf(kgerrors.Backend, opSurreal+".QueryNodes", "select: %w", err)
	}
	var out []*Node
	for _, r := range rows {
		n, err := rowToNode(r)
		if err != nil {
			continue
		}
		if pred == nil || pred.Match(n.AsMap()) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *SurrealStore) ScanNodes(ctx context.Context) ([]*Node, error) {
	return s.QueryNodes(ctx, nil)
}

func (s *SurrealStore) PutEdge(ctx context.Context, edge *Edge) (string, error) {
	if edge == nil {
		return "", kgerrors.Newf(kgerrors.InvalidArgument, opSurreal+".PutEdge", "edge is nil")
	}
	if _, err := s.GetNode(ctx, edge.SourceID); err != nil {
		return "", kgerrors.WithOp(opSurreal+".PutEdge", err)
	}
	if _, err := s.GetNode(ctx, edge.TargetID); err != nil {
		return "", kgerrors.WithOp(opSurreal+".PutEdge", err)
	}

	clone := edge.Clone()
	if clone.ID == "" {
		clone.ID = uuid.NewString()
	}
	now := time.Now()
	if clone.Metadata.CreatedAt.IsZero() {
		clone.Metadata.CreatedAt = now
	}
	clone.Metadata.UpdatedAt = now

	_, err := s.exec("INSERT INTO kg_edge $row", map[string]any{"row": edgeToRow(clone)})
	if err != nil {
		return "", kgerrors.Newf(kgerrors.Backend, opSurreal+".PutEdge", "insert: %w", err)
	}
	return clone.ID, nil
}

func (s *SurrealStore) GetEdge(_ context.Context, id string) (*Edge, error) {
	rows, err := s.exec("SELECT * FROM kg_edge WHERE entity_id = $id", map[string]any{"id": id})
	if err != nil {
		return nil, kgerrors.Newf(kgerrors.Backend, opSurreal+".GetEdge", "select: %w", err)
	}
	if len(rows) == 0 {
		return nil, kgerrors.Newf(kgerrors.NotFound, opSurreal+".GetEdge", "edge %q not found", id)
	}
	return rowToEdge(rows[0])
}

func (s *SurrealStore) UpdateEdge(ctx context.Context, id string, patch Patch) (bool, error) {
	e, err := s.GetEdge(ctx, id)
	if err != nil {
		return false, err
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
	_, err = s.exec("UPDATE kg_edge SET properties = $p, metadata = $m WHERE entity_id = $id",
		map[string]any{"p": e.Properties, "m": e.Metadata, "id": id})
	if err != nil {
		return false, kgerrors.Newf(kgerrors.Backend, opSurreal+".UpdateEdge", "update: %w", err)
	}
	return true, nil
}

func (s *SurrealStore) DeleteEdge(_ context.Context, id string) (bool, error) {
	rows, err := s.exec("DELETE kg_edge WHERE entity_id = $id RETURN BEFORE", map[string]any{"id": id})
	if err != nil {
		return false, kgerrors.Newf(kgerrors.Backend, opSurreal+".DeleteEdge", "delete: %w", err)
	}
	if len(rows) == 0 {
		return false, kgerrors.Newf(kgerrors.NotFound, opSurreal+".DeleteEdge", "edge %q not found", id)
	}
	return true, nil
}

func (s *SurrealStore) QueryEdges(_ context.Context, pred Predicate) ([]*Edge, error) {
	rows, err := s.exec("SELECT * FROM kg_edge", nil)
	if err != nil {
		return nil, kgerrors.Newf(kgerrors.Backend, opSurreal+".QueryEdges", "select: %w", err)
	}
	var out []*Edge
	for _, r := range rows {
		e, err := rowToEdge(r)
		if err != nil {
			continue
		}
		if pred == nil || pred.Match(e.AsMap()) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *SurrealStore) FindEdges(_ context.Context, criteria EdgeCriteria) ([]*Edge, error) {
	query := "SELECT * FROM kg_edge WHERE true"
	vars := map[string]any{}
	if criteria.SourceID != "" {
		query += " AND source_id = $source_id"
		vars["source_id"] = criteria.SourceID
	}
	if criteria.TargetID != "" {
		query += " AND target_id = $target_id"
		vars["target_id"] = criteria.TargetID
	}
	if criteria.Type != "" {
		query += " AND type = $type"
		vars["type"] = string(criteria.Type)
	}
	rows, err := s.exec(query, vars)
	if err != nil {
		return nil, kgerrors.Newf(kgerrors.Backend, opSurreal+".FindEdges", "select: %w", err)
	}
	out := make([]*Edge, 0, len(rows))
	for _, r := range rows {
		e, err := rowToEdge(r)
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *SurrealStore) ScanEdges(ctx context.Context) ([]*Edge, error) {
	return s.QueryEdges(ctx, nil)
}

func (s *SurrealStore) EdgesOf(ctx context.Context, nodeID string, dir Direction, edgeTypes []EdgeType) ([]*Edge, error) {
	if _, err := s.GetNode(ctx, nodeID); err != nil {
		return nil, kgerrors.WithOp(opSurreal+".EdgesOf", err)
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
	if dir == DirectionOutgoing || dir == DirectionBoth {
		edges, err := s.FindEdges(ctx, EdgeCriteria{SourceID: nodeID})
		if err != nil {
			return nil, kgerrors.Newf(kgerrors.Backend, opSurreal+".EdgesOf", "outgoing: %w", err)
		}
		for _, e := range edges {
			if wanted(e.Type) && !seen[e.ID] {
				seen[e.ID] = true
				out = append(out, e)
			}
		}
	}
	if dir == DirectionIncoming || dir == DirectionBoth {
		edges, err := s.FindEdges(ctx, EdgeCriteria{TargetID: nodeID})
		if err != nil {
			return nil, kgerrors.Newf(kgerrors.Backend, opSurreal+".EdgesOf", "incoming: %w", err)
		}
		for _, e := range edges {
			if wanted(e.Type) && !seen[e.ID] {
				seen[e.ID] = true
				out = append(out, e)
			}
		}
	}
	return out, nil
}
