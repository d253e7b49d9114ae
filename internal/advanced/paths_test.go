package advanced

import (
	"context"
	"testing"

	"github.com/kgraphdb/kgraph/internal/graph"
)

func newLineGraph(t *testing.T, length int) (graph.Store, []string) {
	t.Helper()
	store := graph.NewMemoryStore(graph.CascadeDelete)
	ctx := context.Background()
	ids := make([]string, length)
	for i := range ids {
		id, err := store.PutNode(ctx, &graph.Node{Type: graph.NodeEntity})
		if err != nil {
			t.Fatalf("PutNode() error = %v", err)
		}
		ids[i] = id
	}
	for i := 0; i < length-1; i++ {
		if _, err := store.PutEdge(ctx, &graph.Edge{SourceID: ids[i], TargetID: ids[i+1], Type: graph.EdgeRelatedTo}); err != nil {
			t.Fatalf("PutEdge() error = %v", err)
		}
	}
	return store, ids
}

func TestFindPathsUnidirectionalSimplePath(t *testing.T) {
	store, ids := newLineGraph(t, 4)
	e := New(store)

	paths, err := e.FindPaths(context.Background(), ids[0], ids[3], PathOptions{MaxLength: 10})
	if err != nil {
		t.Fatalf("FindPaths() error = %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("FindPaths() = %d paths, want 1", len(paths))
	}
	if len(paths[0].Nodes) != 4 || paths[0].Nodes[0].ID != ids[0] || paths[0].Nodes[3].ID != ids[3] {
		t.Errorf("FindPaths() path nodes = %v, want line from %s to %s", paths[0].Nodes, ids[0], ids[3])
	}
	if len(paths[0].Edges) != 3 {
		t.Errorf("FindPaths() path has %d edges, want 3", len(paths[0].Edges))
	}
}

func TestFindPathsRespectsMaxLength(t *testing.T) {
	store, ids := newLineGraph(t, 5)
	e := New(store)

	paths, err := e.FindPaths(context.Background(), ids[0], ids[4], PathOptions{MaxLength: 2})
	if err != nil {
		t.Fatalf("FindPaths() error = %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("FindPaths(max_length too short) = %v, want no paths found", paths)
	}
}

func TestFindPathsBidirectionalMatchesUnidirectional(t *testing.T) {
	store, ids := newLineGraph(t, 6)
	e := New(store)
	ctx := context.Background()

	uni, err := e.FindPaths(ctx, ids[0], ids[5], PathOptions{MaxLength: 10})
	if err != nil {
		t.Fatalf("FindPaths(unidirectional) error = %v", err)
	}
	bidi, err := e.FindPaths(ctx, ids[0], ids[5], PathOptions{MaxLength: 10, Bidirectional: true})
	if err != nil {
		t.Fatalf("FindPaths(bidirectional) error = %v", err)
	}
	if len(uni) != 1 || len(bidi) != 1 {
		t.Fatalf("FindPaths() = uni:%d bidi:%d, want 1 each", len(uni), len(bidi))
	}
	if len(uni[0].Nodes) != len(bidi[0].Nodes) {
		t.Errorf("bidirectional path length = %d, want %d (same as unidirectional)", len(bidi[0].Nodes), len(uni[0].Nodes))
	}
	for i := range uni[0].Nodes {
		if uni[0].Nodes[i].ID != bidi[0].Nodes[i].ID {
			t.Errorf("bidirectional path node[%d] = %s, want %s (edges in forward order)", i, bidi[0].Nodes[i].ID, uni[0].Nodes[i].ID)
		}
	}
}

func TestFindPathsBidirectionalRespectsOddMaxLength(t *testing.T) {
	store, ids := newLineGraph(t, 7)
	e := New(store)
	ctx := context.Background()

	uni, err := e.FindPaths(ctx, ids[0], ids[6], PathOptions{MaxLength: 5})
	if err != nil {
		t.Fatalf("FindPaths(unidirectional) error = %v", err)
	}
	bidi, err := e.FindPaths(ctx, ids[0], ids[6], PathOptions{MaxLength: 5, Bidirectional: true})
	if err != nil {
		t.Fatalf("FindPaths(bidirectional) error = %v", err)
	}
	if len(uni) != 0 {
		t.Fatalf("FindPaths(unidirectional) = %d paths, want 0 (chain is 6 edges, max_length 5)", len(uni))
	}
	if len(bidi) != 0 {
		t.Errorf("FindPaths(bidirectional) = %d paths, want 0 to match unidirectional (a meeting-depth overrun would stitch a 6-edge path)", len(bidi))
	}
}

func TestFindPathsNoPathExists(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore(graph.CascadeDelete)
	a, _ := store.PutNode(ctx, &graph.Node{Type: graph.NodeEntity})
	b, _ := store.PutNode(ctx, &graph.Node{Type: graph.NodeEntity})
	e := New(store)

	paths, err := e.FindPaths(ctx, a, b, PathOptions{})
	if err != nil {
		t.Fatalf("FindPaths() error = %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("FindPaths(disconnected) = %v, want empty", paths)
	}
}

func TestFindPathsEdgeTypeFilter(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore(graph.CascadeDelete)
	a, _ := store.PutNode(ctx, &graph.Node{Type: graph.NodeEntity})
	b, _ := store.PutNode(ctx, &graph.Node{Type: graph.NodeEntity})
	store.PutEdge(ctx, &graph.Edge{SourceID: a, TargetID: b, Type: graph.EdgeCauses})
	e := New(store)

	paths, err := e.FindPaths(ctx, a, b, PathOptions{EdgeTypes: []graph.EdgeType{graph.EdgeRelatedTo}})
	if err != nil {
		t.Fatalf("FindPaths() error = %v", err)
	}
	if len(paths) != 0 {
		t.Errorf("FindPaths(wrong edge type filter) = %v, want empty", paths)
	}
}
