package advanced

import (
	"context"
	"testing"

	"github.com/kgraphdb/kgraph/internal/graph"
	"github.com/kgraphdb/kgraph/internal/index"
)

func addNodeWithEmbedding(t *testing.T, store graph.Store, name string, emb []float32) *graph.Node {
	t.Helper()
	id, err := store.PutNode(context.Background(), &graph.Node{
		Type:       graph.NodeConcept,
		Properties: map[string]any{"name": name},
		Metadata:   graph.Metadata{Embedding: emb},
	})
	if err != nil {
		t.Fatalf("PutNode(%s) error = %v", name, err)
	}
	n, err := store.GetNode(context.Background(), id)
	if err != nil {
		t.Fatalf("GetNode(%s) error = %v", name, err)
	}
	return n
}

// TestSemanticSearchBruteForceFallback covers the brute-force cosine scan
// used when no vector index has been declared.
func TestSemanticSearchBruteForceFallback(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore(graph.CascadeReject)
	e := New(store)

	cat := addNodeWithEmbedding(t, store, "cat", []float32{1, 0, 0})
	_ = addNodeWithEmbedding(t, store, "car", []float32{0, 1, 0})

	matches, err := e.SemanticSearch(ctx, nil, nil, SemanticQuery{Embedding: []float32{1, 0, 0}}, SemanticOptions{Threshold: 0.5, Limit: 10})
	if err != nil {
		t.Fatalf("SemanticSearch() error = %v", err)
	}
	if len(matches) != 1 || matches[0].Node.ID != cat.ID {
		t.Fatalf("SemanticSearch() = %+v, want exactly [cat]", matches)
	}
	if matches[0].Similarity != 1 {
		t.Errorf("SemanticSearch() similarity = %v, want 1", matches[0].Similarity)
	}
}

// TestSemanticSearchPrefersVectorIndex checks that a declared vector index
// is consulted before the brute-force scan.
func TestSemanticSearchPrefersVectorIndex(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore(graph.CascadeReject)
	e := New(store)

	idx := index.NewManager(100)
	if err := idx.CreateIndex("default_vector", index.KindVector, index.Spec{EmbeddingKind: "default"}); err != nil {
		t.Fatalf("CreateIndex() error = %v", err)
	}

	feline := addNodeWithEmbedding(t, store, "feline", []float32{1, 0, 0})
	idx.IndexEntity(feline.ID, feline.AsMap(), []float32{1, 0, 0})

	matches, err := e.SemanticSearch(ctx, idx, nil, SemanticQuery{Embedding: []float32{1, 0, 0}}, SemanticOptions{Threshold: 0.5, Limit: 10})
	if err != nil {
		t.Fatalf("SemanticSearch() error = %v", err)
	}
	if len(matches) != 1 || matches[0].Node.ID != feline.ID {
		t.Fatalf("SemanticSearch() = %+v, want exactly [feline]", matches)
	}
}

// TestSemanticSearchBlendsFullTextScores checks that a text query ranked
// through the vector index blends cosine similarity with the normalized
// term-hit score when a full-text index is also declared: of two nodes at
// equal cosine distance, the one whose text matches the query wins.
func TestSemanticSearchBlendsFullTextScores(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore(graph.CascadeReject)
	e := New(store)

	idx := index.NewManager(0)
	if err := idx.CreateIndex("vec", index.KindVector, index.Spec{EmbeddingKind: "default"}); err != nil {
		t.Fatalf("CreateIndex(vec) error = %v", err)
	}
	if err := idx.CreateIndex("text", index.KindFullText, index.Spec{Paths: []string{"properties.name"}}); err != nil {
		t.Fatalf("CreateIndex(text) error = %v", err)
	}

	named := addNodeWithEmbedding(t, store, "graph engines", []float32{1, 0, 0})
	other := addNodeWithEmbedding(t, store, "something else", []float32{1, 0, 0})
	idx.IndexEntity(named.ID, named.AsMap(), []float32{1, 0, 0})
	idx.IndexEntity(other.ID, other.AsMap(), []float32{1, 0, 0})

	embed := func(context.Context, string) ([]float32, error) { return []float32{1, 0, 0}, nil }
	matches, err := e.SemanticSearch(ctx, idx, embed, SemanticQuery{Text: "graph engines"}, SemanticOptions{Threshold: 0.5, Limit: 10})
	if err != nil {
		t.Fatalf("SemanticSearch() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("SemanticSearch() = %d matches, want 2", len(matches))
	}
	if matches[0].Node.ID != named.ID {
		t.Fatalf("SemanticSearch() top match = %s, want the text-matching node %s", matches[0].Node.ID, named.ID)
	}
	// Both nodes are at cosine 1 against the query; the text-matching node
	// keeps a blended score of 1 (0.5*1 + 0.5*1), the other drops to 0.5.
	if matches[0].Similarity != 1 || matches[1].Similarity != 0.5 {
		t.Errorf("SemanticSearch() blended scores = %v, %v, want 1, 0.5", matches[0].Similarity, matches[1].Similarity)
	}
}

// TestSemanticSearchNodeIDSeed covers resolving the query vector from an
// existing node's stored embedding, and FindSimilarNodes excluding the seed
// node from its own results.
func TestSemanticSearchNodeIDSeed(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore(graph.CascadeReject)
	e := New(store)

	seed := addNodeWithEmbedding(t, store, "seed", []float32{1, 0, 0})
	twin := addNodeWithEmbedding(t, store, "twin", []float32{1, 0, 0})

	matches, err := e.FindSimilarNodes(ctx, nil, nil, seed.ID, SemanticOptions{Threshold: 0.9, Limit: 10})
	if err != nil {
		t.Fatalf("FindSimilarNodes() error = %v", err)
	}
	if len(matches) != 1 || matches[0].Node.ID != twin.ID {
		t.Fatalf("FindSimilarNodes() = %+v, want exactly [twin] (seed excluded)", matches)
	}
}

// TestSemanticSearchTextSubstringFallback covers the last-resort fallback
// when no embedding is available and no full-text index exists.
func TestSemanticSearchTextSubstringFallback(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore(graph.CascadeReject)
	e := New(store)

	id, err := store.PutNode(ctx, &graph.Node{
		Type:       graph.NodeConcept,
		Properties: map[string]any{"name": "Graph Databases", "summary": "a graph database stores nodes"},
	})
	if err != nil {
		t.Fatalf("PutNode() error = %v", err)
	}

	matches, err := e.SemanticSearch(ctx, nil, nil, SemanticQuery{Text: "graph"}, SemanticOptions{})
	if err != nil {
		t.Fatalf("SemanticSearch() error = %v", err)
	}
	if len(matches) != 1 || matches[0].Node.ID != id {
		t.Fatalf("SemanticSearch() = %+v, want exactly one substring match", matches)
	}
	if matches[0].Similarity != 2 {
		t.Errorf("SemanticSearch() score = %v, want 2 (two matching properties)", matches[0].Similarity)
	}
}

func TestSemanticSearchRequiresSomeInput(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore(graph.CascadeReject)
	e := New(store)

	if _, err := e.SemanticSearch(ctx, nil, nil, SemanticQuery{}, SemanticOptions{}); err == nil {
		t.Fatal("SemanticSearch() with no text/embedding/node id = nil error, want failure")
	}
}
