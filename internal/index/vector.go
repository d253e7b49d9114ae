package index

import (
	"math"
	"sort"

	"github.com/kgraphdb/kgraph/internal/kgerrors"
)

// vectorIndex stores (id -> primary embedding vector) and serves
// top_k via brute-force cosine similarity, fully in process so the engine
// never delegates vector math to a database.
type vectorIndex struct {
	vectors map[string][]float32
}

func newVectorIndex() *vectorIndex {
	return &vectorIndex{vectors: make(map[string][]float32)}
}

func (v *vectorIndex) index(id string, vec []float32) {
	if vec == nil {
		delete(v.vectors, id)
		return
	}
	v.vectors[id] = append([]float32(nil), vec...)
}

func (v *vectorIndex) remove(id string) {
	delete(v.vectors, id)
}

// topK returns the k highest-scoring (id, similarity) pairs with similarity
// >= threshold, descending by similarity then ascending by id.
func (v *vectorIndex) topK(query []float32, k int, threshold float64) ([]ScoredID, error) {
	var out []ScoredID
	for id, vec := range v.vectors {
		sim, err := CosineSimilarity(query, vec)
		if err != nil {
			return nil, err
		}
		if sim < threshold {
			continue
		}
		out = append(out, ScoredID{ID: id, Score: sim})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	if k > 0 && k < len(out) {
		out = out[:k]
	}
	return out, nil
}

// CosineSimilarity computes sim(a,b) = dot(a,b) /
// (||a||*||b||); unequal-length vectors fail DimensionMismatch; either zero
// vector yields 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, kgerrors.Newf(kgerrors.DimensionMismatch, "index.CosineSimilarity",
			"vectors of length %d and %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		af, bf := float64(a[i]), float64(b[i])
		dot += af * bf
		normA += af * af
		normB += bf * bf
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
