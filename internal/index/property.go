package index

import (
	"sort"
	"strings"
)

// propertyIndex maps a canonicalized key-tuple string (over the declared
// paths) to the set of entity ids whose current properties derive that
// tuple, keyed by dotted property paths.
type propertyIndex struct {
	paths    []string
	postings map[string]map[string]struct{}
	// keyOf tracks which key-tuple an entity is currently posted under, so
	// reindex/remove can clean up the old posting without a full scan.
	keyOf map[string]string
}

func newPropertyIndex(paths []string) *propertyIndex {
	return &propertyIndex{
		paths:    append([]string(nil), paths...),
		postings: make(map[string]map[string]struct{}),
		keyOf:    make(map[string]string),
	}
}

func (p *propertyIndex) keyTuple(entity map[string]any) (string, bool) {
	parts := make([]string, 0, len(p.paths))
	found := false
	for _, path := range p.paths {
		v, ok := lookupPath(entity, path)
		if ok {
			found = true
		}
		parts = append(parts, toComparable(v))
	}
	return strings.Join(parts, "\x1f"), found
}

func (p *propertyIndex) index(id string, entity map[string]any) {
	p.remove(id)
	key, found := p.keyTuple(entity)
	if !found {
		return
	}
	if p.postings[key] == nil {
		p.postings[key] = make(map[string]struct{})
	}
	p.postings[key][id] = struct{}{}
	p.keyOf[id] = key
}

func (p *propertyIndex) remove(id string) {
	key, ok := p.keyOf[id]
	if !ok {
		return
	}
	delete(p.postings[key], id)
	if len(p.postings[key]) == 0 {
		delete(p.postings, key)
	}
	delete(p.keyOf, id)
}

func (p *propertyIndex) lookup(key string) []string {
	set := p.postings[key]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func toComparable(v any) string {
	if v == nil {
		return "\x00"
	}
	switch t := v.(type) {
	case string:
		return t
	default:
		return sortableFallback(t)
	}
}
