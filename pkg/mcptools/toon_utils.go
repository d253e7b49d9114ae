package mcptools

import (
	"fmt"
	"sort"

	"github.com/toon-format/toon-go"
)

// MarshalTOON converts a Go value into a TOON string. On failure, it returns a
// human-friendly error string so MCP tools still provide feedback instead of
// silently failing.
func MarshalTOON(data interface{}) string {
	out, err := toon.MarshalString(data, toon.WithLengthMarkers(true))
	if err != nil {
		return fmt.Sprintf("error: failed to marshal to TOON: %v", err)
	}
	return out
}

// EmptyResult builds a standard TOON response for a tool call that found
// nothing, optionally suggesting near-miss ids so the caller can retry.
func EmptyResult(message string, suggestions []string) string {
	payload := map[string]interface{}{
		"message": message,
	}
	if len(suggestions) > 0 {
		payload["did_you_mean"] = suggestions
	}
	return MarshalTOON(payload)
}

// TopCounts converts a map of counts into a sorted list of "key (count)"
// strings limited to the provided size, ordered by count descending then key
// ascending for deterministic output.
func TopCounts(counts map[string]int, limit int) []string {
	type kv struct {
		Key   string
		Count int
	}

	items := make([]kv, 0, len(counts))
	for k, v := range counts {
		items = append(items, kv{Key: k, Count: v})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Count == items[j].Count {
			return items[i].Key < items[j].Key
		}
		return items[i].Count > items[j].Count
	})

	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}

	out := make([]string, 0, limit)
	for idx := 0; idx < limit; idx++ {
		out = append(out, fmt.Sprintf("%s (%d)", items[idx].Key, items[idx].Count))
	}
	return out
}
