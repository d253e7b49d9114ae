package mcptools

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// idSuggestion pairs a candidate entity id with its edit distance from the
// id the caller asked for.
type idSuggestion struct {
	id       string
	distance int
}

// SuggestIDs returns up to limit entity ids within an edit distance
// proportional to the queried id's length (half its length plus one), so
// both a near-miss UUID prefix and a typo'd short id surface as
// did-you-mean candidates. Results are ordered by ascending distance, then
// by id for deterministic output.
func SuggestIDs(query string, candidates []string, limit int) []string {
	q := normalizeID(query)
	maxDistance := len(q)/2 + 1

	suggestions := make([]idSuggestion, 0, len(candidates))
	for _, cand := range candidates {
		d := levenshtein.ComputeDistance(q, normalizeID(cand))
		if d > maxDistance {
			continue
		}
		suggestions = append(suggestions, idSuggestion{id: cand, distance: d})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].distance == suggestions[j].distance {
			return suggestions[i].id < suggestions[j].id
		}
		return suggestions[i].distance < suggestions[j].distance
	})

	if limit > 0 && len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	out := make([]string, len(suggestions))
	for i, s := range suggestions {
		out[i] = s.id
	}
	return out
}

// normalizeID trims whitespace and lowercases an id so distance is
// forgiving about case and copy-paste padding.
func normalizeID(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
