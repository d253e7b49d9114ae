package facade

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kgraphdb/kgraph/internal/advanced"
	"github.com/kgraphdb/kgraph/internal/config"
	"github.com/kgraphdb/kgraph/internal/graph"
	"github.com/kgraphdb/kgraph/internal/index"
	"github.com/kgraphdb/kgraph/internal/kgerrors"
	"github.com/kgraphdb/kgraph/internal/query"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxPathLength:                   10,
		MaxRecursionDepth:               5,
		EnableSemanticSearch:            true,
		MaxResultsPerQuery:              1000,
		AdvancedTimeoutMs:               30000,
		MaxQueryCacheSize:               100,
		MaxResultSize:                   10000,
		DefaultTimeoutMs:                30000,
		CacheDefaultTTLMs:               3_600_000,
		CacheMaxSize:                    1000,
		CacheDefaultSimilarityThreshold: 0.85,
		CacheEmbeddingDimensions:        32,
		IndexingMaxIndexes:              100,
		IndexingVectorDimensions:        32,
		IndexingVectorDistanceMetric:    "cosine",
		IndexingEnableFullText:          true,
	}
}

func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	f, err := New(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = f.Shutdown(context.Background()) })
	return f
}

// TestCRUDRoundTrip walks a node/edge lifecycle end to end: add, traverse,
// reject delete-in-use, delete edge then node, and traverse again.
func TestCRUDRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)

	x, err := f.AddNode(ctx, graph.NodeConcept, map[string]any{"name": "AI"}, nil)
	if err != nil {
		t.Fatalf("AddNode(AI) error = %v", err)
	}
	y, err := f.AddNode(ctx, graph.NodeConcept, map[string]any{"name": "ML"}, nil)
	if err != nil {
		t.Fatalf("AddNode(ML) error = %v", err)
	}
	e, err := f.AddEdge(ctx, y.ID, x.ID, graph.EdgeIsA, map[string]any{})
	if err != nil {
		t.Fatalf("AddEdge() error = %v", err)
	}

	spec := query.Spec{
		Kind:      query.KindTraversal,
		StartID:   y.ID,
		Direction: graph.DirectionOutgoing,
		EdgeTypes: []graph.EdgeType{graph.EdgeIsA},
		MaxDepth:  1,
	}

	rows, err := f.ExecuteQuery(ctx, spec, nil)
	if err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}
	if len(rows) != 1 || rows[0]["id"] != x.ID {
		t.Fatalf("ExecuteQuery() = %+v, want exactly [%s]", rows, x.ID)
	}

	if _, err := f.DeleteNode(ctx, x.ID); !errors.Is(err, kgerrors.Sentinel(kgerrors.IntegrityViolation)) {
		t.Fatalf("DeleteNode(X) with incident edge error = %v, want IntegrityViolation", err)
	}

	if ok, err := f.DeleteEdge(ctx, e.ID); err != nil || !ok {
		t.Fatalf("DeleteEdge() = %v, %v", ok, err)
	}

	if ok, err := f.DeleteNode(ctx, x.ID); err != nil || !ok {
		t.Fatalf("DeleteNode(X) after edge removed = %v, %v", ok, err)
	}

	rows, err = f.ExecuteQuery(ctx, spec, nil)
	if err != nil {
		t.Fatalf("ExecuteQuery() after deletion error = %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("ExecuteQuery() after deletion = %+v, want empty", rows)
	}
}

// TestExecuteQueryIsCachedAndInvalidatedOnMutation covers the facade's
// read-cache-first / write-invalidates wiring.
func TestExecuteQueryIsCachedAndInvalidatedOnMutation(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)

	n, err := f.AddNode(ctx, graph.NodeConcept, map[string]any{"name": "Ada"}, nil)
	if err != nil {
		t.Fatalf("AddNode() error = %v", err)
	}

	spec := query.Spec{Kind: query.KindNode, NodeID: n.ID}

	first, err := f.ExecuteQuery(ctx, spec, nil)
	if err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("ExecuteQuery() = %+v, want 1 row", first)
	}

	if _, err := f.UpdateNode(ctx, n.ID, graph.Patch{Properties: map[string]any{"name": "Ada Lovelace"}}); err != nil {
		t.Fatalf("UpdateNode() error = %v", err)
	}

	second, err := f.ExecuteQuery(ctx, spec, nil)
	if err != nil {
		t.Fatalf("ExecuteQuery() after update error = %v", err)
	}
	props, _ := second[0]["properties"].(map[string]any)
	if props["name"] != "Ada Lovelace" {
		t.Fatalf("ExecuteQuery() after update = %+v, want updated name (cache should have been invalidated)", second)
	}
}

// stubEmbedder maps fixed strings to fixed vectors, standing in for a real
// embedding provider.
type stubEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (s *stubEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	s.calls++
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

// TestSemanticSearchCacheExactAndApproximate checks that repeating a
// semantic search is served from the cache, and that a near-identical query
// (by embedding similarity) reuses the cached result instead of rescanning.
func TestSemanticSearchCacheExactAndApproximate(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{vectors: map[string][]float32{
		"cat":    {1, 0, 0},
		"feline": {0.95, 0.312, 0}, // cosine ~0.95 against "cat"
	}}
	f, err := New(ctx, testConfig(), WithEmbeddingProvider(emb))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = f.Shutdown(ctx) })

	if _, err := f.AddNode(ctx, graph.NodeConcept, map[string]any{"name": "cat"}, []float32{1, 0, 0}); err != nil {
		t.Fatalf("AddNode() error = %v", err)
	}

	first, err := f.SemanticSearch(ctx, advanced.SemanticQuery{Text: "cat"}, advanced.SemanticOptions{Threshold: 0.5})
	if err != nil {
		t.Fatalf("SemanticSearch(cat) error = %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("SemanticSearch(cat) = %d matches, want 1", len(first))
	}

	statsBefore := f.cache.Stats()
	repeat, err := f.SemanticSearch(ctx, advanced.SemanticQuery{Text: "cat"}, advanced.SemanticOptions{Threshold: 0.5})
	if err != nil {
		t.Fatalf("SemanticSearch(cat) repeat error = %v", err)
	}
	if len(repeat) != 1 {
		t.Fatalf("SemanticSearch(cat) repeat = %d matches, want 1", len(repeat))
	}
	statsAfter := f.cache.Stats()
	if statsAfter["hits"].(int64) != statsBefore["hits"].(int64)+1 {
		t.Errorf("repeat search did not hit the cache: hits %v -> %v", statsBefore["hits"], statsAfter["hits"])
	}

	near, err := f.SemanticSearch(ctx, advanced.SemanticQuery{Text: "feline"}, advanced.SemanticOptions{Threshold: 0.5})
	if err != nil {
		t.Fatalf("SemanticSearch(feline) error = %v", err)
	}
	if len(near) != 1 {
		t.Fatalf("SemanticSearch(feline) = %d matches, want 1 (approximate cache hit)", len(near))
	}
	statsNear := f.cache.Stats()
	if statsNear["hits"].(int64) != statsAfter["hits"].(int64)+1 {
		t.Errorf("near-identical search did not hit the cache: hits %v -> %v", statsAfter["hits"], statsNear["hits"])
	}
	// An approximate hit rescales the cached score by the query similarity,
	// so it must come back strictly below the exact-hit score.
	if near[0].Similarity >= first[0].Similarity {
		t.Errorf("approximate hit similarity = %v, want < exact %v (scaled by query similarity)", near[0].Similarity, first[0].Similarity)
	}
}

func TestExplainQueryDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)

	n, err := f.AddNode(ctx, graph.NodeConcept, map[string]any{"name": "Ada"}, nil)
	if err != nil {
		t.Fatalf("AddNode() error = %v", err)
	}

	statsBefore, err := f.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}

	spec := query.Spec{Kind: query.KindNode, NodeID: n.ID}
	result, err := f.ExplainQuery(spec)
	if err != nil {
		t.Fatalf("ExplainQuery() error = %v", err)
	}
	if len(result.Candidates) == 0 {
		t.Fatal("ExplainQuery() returned no candidates")
	}

	statsAfter, err := f.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if statsAfter["node_count"] != statsBefore["node_count"] {
		t.Fatalf("ExplainQuery() changed node_count: before=%v after=%v", statsBefore["node_count"], statsAfter["node_count"])
	}
}

func TestAddEdgeMissingEndpointFails(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)

	if _, err := f.AddEdge(ctx, "missing-1", "missing-2", graph.EdgeRelatedTo, nil); err == nil {
		t.Fatal("AddEdge() with missing endpoints = nil error, want failure")
	}
}

func TestEventsEmittedInOrder(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)

	<-f.Events() // initialized

	n, err := f.AddNode(ctx, graph.NodeConcept, map[string]any{"name": "Ada"}, nil)
	if err != nil {
		t.Fatalf("AddNode() error = %v", err)
	}
	ev := <-f.Events()
	if ev.Type != EventNodeAdded || ev.Payload["id"] != n.ID {
		t.Fatalf("first event = %+v, want node_added for %s", ev, n.ID)
	}
}

// TestConcurrentEdgeInsertIsolation runs two concurrent writers each
// inserting 1,000 edges between pre-existing nodes and checks totals,
// endpoint resolvability, and index posting-list counts afterwards.
func TestConcurrentEdgeInsertIsolation(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t)
	go func() {
		for range f.Events() {
		}
	}()

	const nodesPerWriter = 50
	const edgesPerWriter = 1000
	if err := f.CreateIndex("batch_idx", index.KindProperty, index.Spec{Paths: []string{"properties.batch"}}); err != nil {
		t.Fatalf("CreateIndex() error = %v", err)
	}

	makeNodes := func() []string {
		ids := make([]string, nodesPerWriter)
		for i := range ids {
			n, err := f.AddNode(ctx, graph.NodeEntity, nil, nil)
			if err != nil {
				t.Fatalf("AddNode() error = %v", err)
			}
			ids[i] = n.ID
		}
		return ids
	}
	nodesA := makeNodes()
	nodesB := makeNodes()

	var wg sync.WaitGroup
	insert := func(nodes []string, batch int) {
		defer wg.Done()
		for i := 0; i < edgesPerWriter; i++ {
			src := nodes[i%len(nodes)]
			dst := nodes[(i+1)%len(nodes)]
			if _, err := f.AddEdge(ctx, src, dst, graph.EdgeRelatedTo, map[string]any{"batch": float64(batch)}); err != nil {
				t.Errorf("AddEdge() error = %v", err)
			}
		}
	}
	wg.Add(2)
	go insert(nodesA, 1)
	go insert(nodesB, 2)
	wg.Wait()

	edgeIDs, err := f.ListEdgeIDs(ctx)
	if err != nil {
		t.Fatalf("ListEdgeIDs() error = %v", err)
	}
	if len(edgeIDs) != 2*edgesPerWriter {
		t.Fatalf("ListEdgeIDs() = %d edges, want %d", len(edgeIDs), 2*edgesPerWriter)
	}

	for _, id := range edgeIDs {
		e, err := f.GetEdge(ctx, id)
		if err != nil {
			t.Fatalf("GetEdge(%s) error = %v", id, err)
		}
		if _, err := f.GetNode(ctx, e.SourceID); err != nil {
			t.Errorf("edge %s source %s not resolvable: %v", id, e.SourceID, err)
		}
		if _, err := f.GetNode(ctx, e.TargetID); err != nil {
			t.Errorf("edge %s target %s not resolvable: %v", id, e.TargetID, err)
		}
	}

	batch1, err := f.indexes.Query("batch_idx", []any{1.0})
	if err != nil {
		t.Fatalf("Query(batch=1) error = %v", err)
	}
	batch2, err := f.indexes.Query("batch_idx", []any{2.0})
	if err != nil {
		t.Fatalf("Query(batch=2) error = %v", err)
	}
	if len(batch1) != edgesPerWriter {
		t.Errorf("Query(batch=1) = %d ids, want %d", len(batch1), edgesPerWriter)
	}
	if len(batch2) != edgesPerWriter {
		t.Errorf("Query(batch=2) = %d ids, want %d", len(batch2), edgesPerWriter)
	}

	seen := map[string]bool{}
	for _, id := range append(append([]string(nil), batch1...), batch2...) {
		if seen[id] {
			t.Errorf("posting lists contain duplicate id %s", id)
		}
		seen[id] = true
	}
}
