package advanced

import (
	"context"
	"sort"
	"strings"

	"github.com/kgraphdb/kgraph/internal/graph"
	"github.com/kgraphdb/kgraph/internal/index"
	"github.com/kgraphdb/kgraph/internal/kgerrors"
)

const opSemantic = "advanced.Semantic"

// EmbedFunc computes a query embedding from raw text. The advanced engine
// takes it as a parameter rather than owning an embedder, since a provider
// is optional and callers above the engine own the wiring.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// SemanticQuery is one of the three accepted inputs to SemanticSearch: raw
// text, a precomputed embedding, or an existing node id whose stored
// embedding is reused.
type SemanticQuery struct {
	Text      string
	Embedding []float32
	NodeID    string
}

// SemanticOptions configures SemanticSearch.
type SemanticOptions struct {
	EmbeddingKind string  // default "default"; does not select which vector index is searched
	Threshold     float64 // default 0.7
	Limit         int     // default 10
}

// SemanticMatch pairs a hydrated node with its similarity (or full-text /
// substring) score.
type SemanticMatch struct {
	Node       *graph.Node
	Similarity float64
}

// SemanticSearch resolves a query vector, prefers a declared vector index,
// falls back to a brute-force cosine scan over every node carrying an
// embedding, and, for text queries with no embedding available at all,
// falls back to a full-text index or, lacking one, per-property substring
// containment. Text queries ranked through either cosine path are re-ranked
// by blendTextScores when a full-text index is also declared.
func (e *Engine) SemanticSearch(ctx context.Context, idx *index.Manager, embed EmbedFunc, q SemanticQuery, opts SemanticOptions) ([]SemanticMatch, error) {
	if opts.EmbeddingKind == "" {
		opts.EmbeddingKind = "default"
	}
	if opts.Threshold <= 0 {
		opts.Threshold = 0.7
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if q.Text == "" && len(q.Embedding) == 0 && q.NodeID == "" {
		return nil, kgerrors.Newf(kgerrors.InvalidArgument, opSemantic+".SemanticSearch", "text, embedding, or node id is required")
	}

	vec, err := e.resolveQueryVector(ctx, q, embed)
	if err != nil {
		return nil, err
	}

	if vec != nil {
		var matches []SemanticMatch
		if idx != nil {
			if name, ok := idx.HasKind(index.KindVector); ok {
				scored, err := idx.VectorTopK(name, vec, opts.Limit, opts.Threshold)
				if err != nil {
					return nil, err
				}
				matches, err = e.hydrate(ctx, scored)
				if err != nil {
					return nil, err
				}
				return blendTextScores(matches, idx, q.Text), nil
			}
		}
		matches, err := e.bruteForceSimilar(ctx, vec, opts.Threshold, opts.Limit)
		if err != nil {
			return nil, err
		}
		return blendTextScores(matches, idx, q.Text), nil
	}

	if q.Text == "" {
		return nil, kgerrors.Newf(kgerrors.InvalidArgument, opSemantic+".SemanticSearch", "no embedding available and no text given")
	}
	if idx != nil {
		if name, ok := idx.HasKind(index.KindFullText); ok {
			scored := mustFullTextTopK(idx, name, q.Text, opts.Limit)
			return e.hydrate(ctx, scored)
		}
	}
	return e.textSubstringFallback(ctx, q.Text, opts.Limit)
}

func mustFullTextTopK(idx *index.Manager, name, query string, limit int) []index.ScoredID {
	scored, err := idx.FullTextTopK(name, query, limit)
	if err != nil {
		return nil
	}
	return scored
}

// blendTextScores re-ranks vector-sourced matches for a text query by
// blending cosine similarity with the normalized full-text term-hit score,
// half and half, the way hybrid event recall ranks. A non-text query, a
// missing full-text index, or an empty posting scan leaves the pure cosine
// ranking untouched.
func blendTextScores(matches []SemanticMatch, idx *index.Manager, text string) []SemanticMatch {
	if text == "" || idx == nil || len(matches) == 0 {
		return matches
	}
	name, ok := idx.HasKind(index.KindFullText)
	if !ok {
		return matches
	}
	scored, err := idx.FullTextTopK(name, text, 0)
	if err != nil || len(scored) == 0 {
		return matches
	}
	// scored is sorted descending, so the first entry carries the max
	// term-hit count used for normalization.
	tf := make(map[string]float64, len(scored))
	for _, s := range scored {
		tf[s.ID] = s.Score / scored[0].Score
	}
	for i, m := range matches {
		matches[i].Similarity = 0.5*m.Similarity + 0.5*tf[m.Node.ID]
	}
	sortMatches(matches)
	return matches
}

// FindSimilarNodes is SemanticSearch seeded from an existing node's own
// embedding, excluding the node itself from the results.
func (e *Engine) FindSimilarNodes(ctx context.Context, idx *index.Manager, embed EmbedFunc, nodeID string, opts SemanticOptions) ([]SemanticMatch, error) {
	matches, err := e.SemanticSearch(ctx, idx, embed, SemanticQuery{NodeID: nodeID}, opts)
	if err != nil {
		return nil, err
	}
	out := matches[:0]
	for _, m := range matches {
		if m.Node.ID == nodeID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (e *Engine) resolveQueryVector(ctx context.Context, q SemanticQuery, embed EmbedFunc) ([]float32, error) {
	switch {
	case len(q.Embedding) > 0:
		return q.Embedding, nil
	case q.NodeID != "":
		n, err := e.Store.GetNode(ctx, q.NodeID)
		if err != nil {
			return nil, err
		}
		if n.Metadata.Embedding != nil {
			return n.Metadata.Embedding, nil
		}
		return n.Embeddings["default"], nil
	case q.Text != "" && embed != nil:
		return embed(ctx, q.Text)
	default:
		return nil, nil
	}
}

func (e *Engine) hydrate(ctx context.Context, scored []index.ScoredID) ([]SemanticMatch, error) {
	out := make([]SemanticMatch, 0, len(scored))
	for _, s := range scored {
		n, err := e.Store.GetNode(ctx, s.ID)
		if err != nil {
			continue
		}
		out = append(out, SemanticMatch{Node: n, Similarity: s.Score})
	}
	return out, nil
}

// bruteForceSimilar scans every node carrying an embedding, computes cosine
// similarity against query, filters by threshold, and returns the top
// `limit` descending (ties broken by node id).
func (e *Engine) bruteForceSimilar(ctx context.Context, query []float32, threshold float64, limit int) ([]SemanticMatch, error) {
	nodes, err := e.Store.ScanNodes(ctx)
	if err != nil {
		return nil, err
	}

	var out []SemanticMatch
	for _, n := range nodes {
		vec := n.Metadata.Embedding
		if vec == nil {
			vec = n.Embeddings["default"]
		}
		if vec == nil {
			continue
		}
		sim, err := index.CosineSimilarity(query, vec)
		if err != nil {
			continue
		}
		if sim < threshold {
			continue
		}
		out = append(out, SemanticMatch{Node: n, Similarity: sim})
	}
	sortMatches(out)
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// textSubstringFallback is the last resort for text queries: per
// string-valued property substring containment, score = count of matching
// properties.
func (e *Engine) textSubstringFallback(ctx context.Context, text string, limit int) ([]SemanticMatch, error) {
	nodes, err := e.Store.ScanNodes(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(text)

	var out []SemanticMatch
	for _, n := range nodes {
		score := 0
		for _, v := range n.Properties {
			s, ok := v.(string)
			if !ok {
				continue
			}
			if strings.Contains(strings.ToLower(s), needle) {
				score++
			}
		}
		if score > 0 {
			out = append(out, SemanticMatch{Node: n, Similarity: float64(score)})
		}
	}
	sortMatches(out)
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func sortMatches(out []SemanticMatch) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity == out[j].Similarity {
			return out[i].Node.ID < out[j].Node.ID
		}
		return out[i].Similarity > out[j].Similarity
	})
}
