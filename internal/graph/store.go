package graph

import "context"

// Store is the authoritative graph persistence contract (C1). An in-memory
// implementation (MemoryStore) and a durable one (SurrealStore) are
// interchangeable behind this interface; callers above C1 (the index
// manager, the query processor) only ever see ids, never own entities.
//
// Every operation may fail with a *kgerrors.Error of kind NotFound,
// AlreadyExists, IntegrityViolation, or Backend.
type Store interface {
	PutNode(ctx context.Context, node *Node) (string, error)
	GetNode(ctx context.Context, id string) (*Node, error)
	UpdateNode(ctx context.Context, id string, patch Patch) (bool, error)
	DeleteNode(ctx context.Context, id string) (bool, error)
	QueryNodes(ctx context.Context, pred Predicate) ([]*Node, error)
	ScanNodes(ctx context.Context) ([]*Node, error)

	PutEdge(ctx context.Context, edge *Edge) (string, error)
	GetEdge(ctx context.Context, id string) (*Edge, error)
	UpdateEdge(ctx context.Context, id string, patch Patch) (bool, error)
	DeleteEdge(ctx context.Context, id string) (bool, error)
	QueryEdges(ctx context.Context, pred Predicate) ([]*Edge, error)
	FindEdges(ctx context.Context, criteria EdgeCriteria) ([]*Edge, error)
	ScanEdges(ctx context.Context) ([]*Edge, error)

	// EdgesOf returns edges incident to nodeID, filtered by direction and
	// (optionally) edge types. Used by traversal and path finding.
	EdgesOf(ctx context.Context, nodeID string, dir Direction, edgeTypes []EdgeType) ([]*Edge, error)

	Close() error
}

// CascadePolicy controls what DeleteNode does when the node has incident
// edges. Reject is the default; Delete cascades to the incident edges.
type CascadePolicy int

const (
	CascadeReject CascadePolicy = iota
	CascadeDelete
)
