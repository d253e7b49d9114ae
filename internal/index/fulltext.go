package index

import (
	"sort"
	"strings"
	"unicode"
)

// fullTextIndex tokenizes designated string fields and maps term -> posting
// list with per-term hit counts per document. Scoring is minimal TF only
// (no IDF, no BM25; the blended cosine/term-hit ranking for text queries
// lives one layer up, in advanced.SemanticSearch).
type fullTextIndex struct {
	paths    []string
	postings map[string]map[string]int // term -> id -> hit count
	termsOf  map[string][]string       // id -> terms currently posted, for cleanup
}

func newFullTextIndex(paths []string) *fullTextIndex {
	return &fullTextIndex{
		paths:    append([]string(nil), paths...),
		postings: make(map[string]map[string]int),
		termsOf:  make(map[string][]string),
	}
}

// tokenize lowercases, strips non-alphanumeric runes, splits on whitespace,
// and drops tokens shorter than 3 characters.
func tokenize(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(' ')
		}
	}
	var tokens []string
	for _, tok := range strings.Fields(b.String()) {
		if len(tok) >= 3 {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

func (f *fullTextIndex) index(id string, entity map[string]any) {
	f.remove(id)
	counts := make(map[string]int)
	for _, path := range f.paths {
		v, ok := lookupPath(entity, path)
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		for _, term := range tokenize(s) {
			counts[term]++
		}
	}
	if len(counts) == 0 {
		return
	}
	terms := make([]string, 0, len(counts))
	for term, n := range counts {
		if f.postings[term] == nil {
			f.postings[term] = make(map[string]int)
		}
		f.postings[term][id] = n
		terms = append(terms, term)
	}
	f.termsOf[id] = terms
}

func (f *fullTextIndex) remove(id string) {
	for _, term := range f.termsOf[id] {
		delete(f.postings[term], id)
		if len(f.postings[term]) == 0 {
			delete(f.postings, term)
		}
	}
	delete(f.termsOf, id)
}

// topK ranks documents by summed per-term hit counts across the query's
// tokens, descending, ties broken by id for determinism.
func (f *fullTextIndex) topK(query string, k int) []ScoredID {
	scores := make(map[string]int)
	for _, term := range tokenize(query) {
		for id, n := range f.postings[term] {
			scores[id] += n
		}
	}
	out := make([]ScoredID, 0, len(scores))
	for id, score := range scores {
		out = append(out, ScoredID{ID: id, Score: float64(score)})
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
	return out
}

// ScoredID pairs an entity id with a ranking score (term hits or cosine
// similarity, depending on which index produced it).
type ScoredID struct {
	ID    string
	Score float64
}
