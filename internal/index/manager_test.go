package index

import (
	"testing"

	"github.com/kgraphdb/kgraph/internal/kgerrors"
)

func entityOf(id, kind string, props map[string]any) map[string]any {
	out := map[string]any{"id": id, "type": kind, "properties": props}
	return out
}

func TestManagerCreateIndexValidation(t *testing.T) {
	m := NewManager(1)

	if err := m.CreateIndex("", KindProperty, Spec{Paths: []string{"name"}}); kgerrors.KindOf(err) != kgerrors.InvalidArgument {
		t.Fatalf("CreateIndex(empty name) kind = %v, want InvalidArgument", kgerrors.KindOf(err))
	}

	if err := m.CreateIndex("by_name", KindProperty, Spec{Paths: []string{"name"}}); err != nil {
		t.Fatalf("CreateIndex() error = %v", err)
	}
	if err := m.CreateIndex("by_name", KindProperty, Spec{Paths: []string{"name"}}); kgerrors.KindOf(err) != kgerrors.AlreadyExists {
		t.Fatalf("CreateIndex(dup) kind = %v, want AlreadyExists", kgerrors.KindOf(err))
	}

	if err := m.CreateIndex("by_age", KindProperty, Spec{Paths: []string{"age"}}); kgerrors.KindOf(err) != kgerrors.Unsupported {
		t.Fatalf("CreateIndex(over max) kind = %v, want Unsupported", kgerrors.KindOf(err))
	}
}

func TestManagerCreateIndexUnlimited(t *testing.T) {
	m := NewManager(0)
	for i, name := range []string{"a", "b", "c"} {
		if err := m.CreateIndex(name, KindProperty, Spec{Paths: []string{"p"}}); err != nil {
			t.Fatalf("CreateIndex(%d) error = %v", i, err)
		}
	}
}

func TestManagerPropertyIndexQuery(t *testing.T) {
	m := NewManager(0)
	if err := m.CreateIndex("by_name", KindProperty, Spec{Paths: []string{"name"}}); err != nil {
		t.Fatalf("CreateIndex() error = %v", err)
	}

	m.IndexEntity("n1", entityOf("n1", "Entity", map[string]any{"name": "Ada"}), nil)
	m.IndexEntity("n2", entityOf("n2", "Entity", map[string]any{"name": "Bob"}), nil)

	got, err := m.Query("by_name", []any{"Ada"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 1 || got[0] != "n1" {
		t.Errorf("Query(Ada) = %v, want [n1]", got)
	}

	if _, err := m.Query("missing", []any{"Ada"}); kgerrors.KindOf(err) != kgerrors.NotFound {
		t.Errorf("Query(missing index) kind = %v, want NotFound", kgerrors.KindOf(err))
	}

	if err := m.CreateIndex("vec", KindVector, Spec{}); err != nil {
		t.Fatalf("CreateIndex(vec) error = %v", err)
	}
	if _, err := m.Query("vec", []any{"Ada"}); kgerrors.KindOf(err) != kgerrors.Unsupported {
		t.Errorf("Query(non-property index) kind = %v, want Unsupported", kgerrors.KindOf(err))
	}
}

func TestManagerReindexEntityMovesKeyTuple(t *testing.T) {
	m := NewManager(0)
	m.CreateIndex("by_name", KindProperty, Spec{Paths: []string{"name"}})

	m.IndexEntity("n1", entityOf("n1", "Entity", map[string]any{"name": "Ada"}), nil)
	m.ReindexEntity("n1", entityOf("n1", "Entity", map[string]any{"name": "Grace"}), nil)

	if got, _ := m.Query("by_name", []any{"Ada"}); len(got) != 0 {
		t.Errorf("Query(old key) = %v, want empty after reindex", got)
	}
	got, _ := m.Query("by_name", []any{"Grace"})
	if len(got) != 1 || got[0] != "n1" {
		t.Errorf("Query(new key) = %v, want [n1]", got)
	}
}

func TestManagerRemoveEntity(t *testing.T) {
	m := NewManager(0)
	m.CreateIndex("by_name", KindProperty, Spec{Paths: []string{"name"}})
	m.IndexEntity("n1", entityOf("n1", "Entity", map[string]any{"name": "Ada"}), nil)

	m.RemoveEntity("n1")

	got, _ := m.Query("by_name", []any{"Ada"})
	if len(got) != 0 {
		t.Errorf("Query() after RemoveEntity = %v, want empty", got)
	}
}

func TestManagerVectorTopK(t *testing.T) {
	m := NewManager(0)
	if err := m.CreateIndex("embeddings", KindVector, Spec{}); err != nil {
		t.Fatalf("CreateIndex() error = %v", err)
	}

	m.IndexEntity("a", entityOf("a", "Entity", nil), []float32{1, 0, 0})
	m.IndexEntity("b", entityOf("b", "Entity", nil), []float32{0, 1, 0})
	m.IndexEntity("c", entityOf("c", "Entity", nil), []float32{0.9, 0.1, 0})

	got, err := m.VectorTopK("embeddings", []float32{1, 0, 0}, 2, 0)
	if err != nil {
		t.Fatalf("VectorTopK() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" {
		t.Errorf("VectorTopK() = %v, want a first", got)
	}

	if _, err := m.VectorTopK("embeddings", []float32{1, 0}, 2, 0); kgerrors.KindOf(err) != kgerrors.DimensionMismatch {
		t.Errorf("VectorTopK(mismatched dims) kind = %v, want DimensionMismatch", kgerrors.KindOf(err))
	}

	m.CreateIndex("by_name", KindProperty, Spec{Paths: []string{"name"}})
	if _, err := m.VectorTopK("by_name", []float32{1}, 1, 0); kgerrors.KindOf(err) != kgerrors.Unsupported {
		t.Errorf("VectorTopK(non-vector index) kind = %v, want Unsupported", kgerrors.KindOf(err))
	}
}

func TestManagerFullTextTopK(t *testing.T) {
	m := NewManager(0)
	m.CreateIndex("body", KindFullText, Spec{Paths: []string{"description"}})

	m.IndexEntity("n1", entityOf("n1", "Entity", map[string]any{"description": "graph databases are fun"}), nil)
	m.IndexEntity("n2", entityOf("n2", "Entity", map[string]any{"description": "relational databases"}), nil)

	got, err := m.FullTextTopK("body", "databases graph", 10)
	if err != nil {
		t.Fatalf("FullTextTopK() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "n1" {
		t.Errorf("FullTextTopK() = %v, want n1 first (matches both terms)", got)
	}
}

func TestManagerHasKind(t *testing.T) {
	m := NewManager(0)
	if _, ok := m.HasKind(KindVector); ok {
		t.Error("HasKind(vector) = true before any vector index declared")
	}
	m.CreateIndex("embeddings", KindVector, Spec{})
	name, ok := m.HasKind(KindVector)
	if !ok || name != "embeddings" {
		t.Errorf("HasKind(vector) = (%q, %v), want (embeddings, true)", name, ok)
	}
}

func TestManagerTemporalIndexing(t *testing.T) {
	m := NewManager(0)
	if err := m.CreateIndex("by_created", KindTemporal, Spec{Paths: []string{"properties.ts"}}); err != nil {
		t.Fatalf("CreateIndex() error = %v", err)
	}
	// Temporal has no public query surface on Manager; this just exercises
	// that indexing/removing a temporal-backed entity doesn't panic and
	// that it integrates into the IndexEntity/RemoveEntity dispatch.
	m.IndexEntity("n1", entityOf("n1", "Entity", map[string]any{"ts": int64(1000)}), nil)
	m.RemoveEntity("n1")
}

func TestPropertyIndexMultiPathKeyTuple(t *testing.T) {
	p := newPropertyIndex([]string{"properties.first", "properties.last"})
	p.index("n1", entityOf("n1", "Entity", map[string]any{"first": "Ada", "last": "Lovelace"}))

	key, found := p.keyTuple(entityOf("n1", "Entity", map[string]any{"first": "Ada", "last": "Lovelace"}))
	if !found {
		t.Fatal("keyTuple() found = false, want true")
	}
	if got := p.lookup(key); len(got) != 1 || got[0] != "n1" {
		t.Errorf("lookup(key) = %v, want [n1]", got)
	}
}

func TestTokenizeDropsShortTokensAndPunctuation(t *testing.T) {
	got := tokenize("Go, is a fun systems-language!")
	want := []string{"fun", "systems", "language"}
	if len(got) != len(want) {
		t.Fatalf("tokenize() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tokenize()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	sim, err := CosineSimilarity([]float32{0, 0, 0}, []float32{1, 2, 3})
	if err != nil {
		t.Fatalf("CosineSimilarity() error = %v", err)
	}
	if sim != 0 {
		t.Errorf("CosineSimilarity(zero vector) = %v, want 0", sim)
	}
}

func TestCosineSimilarityIdentical(t *testing.T) {
	sim, err := CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3})
	if err != nil {
		t.Fatalf("CosineSimilarity() error = %v", err)
	}
	if sim < 0.999 || sim > 1.001 {
		t.Errorf("CosineSimilarity(identical) = %v, want ~1", sim)
	}
}
