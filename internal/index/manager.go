// Package index maintains the secondary indexes (property, full-text,
// vector, temporal) that the query processor and advanced query engine
// consult instead of falling back to a full store scan.
package index

import (
	"sync"

	"github.com/kgraphdb/kgraph/internal/kgerrors"
)

// Kind is one of the four declared index kinds.
type Kind string

const (
	KindProperty Kind = "property"
	KindFullText Kind = "full_text"
	KindVector   Kind = "vector"
	KindTemporal Kind = "temporal"
)

// Spec declares an index at creation time: the property paths it derives
// keys from (property/full-text/temporal). EmbeddingKind is kept with a
// vector index's declaration but does not route vectors: every vector
// index receives the primary embedding passed to IndexEntity.
type Spec struct {
	Paths         []string
	EmbeddingKind string
}

type declared struct {
	kind Kind
	spec Spec

	property *propertyIndex
	fullText *fullTextIndex
	vector   *vectorIndex
	temporal *temporalIndex
}

// Manager coordinates all declared indexes and keeps them in lockstep with
// the graph store per the facade's write-then-reindex ordering.
type Manager struct {
	mu      sync.RWMutex
	indexes map[string]*declared
	maxIdx  int
}

// NewManager builds an empty index manager. maxIndexes bounds create_index
// (spec key indexing.max_indexes, default 100); 0 means unbounded.
func NewManager(maxIndexes int) *Manager {
	return &Manager{indexes: make(map[string]*declared), maxIdx: maxIndexes}
}

const opManager = "index.Manager"

// CreateIndex declares a new named index of the given kind.
func (m *Manager) CreateIndex(name string, kind Kind, spec Spec) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name == "" {
		return kgerrors.Newf(kgerrors.InvalidArgument, opManager+".CreateIndex", "index name is required")
	}
	if _, exists := m.indexes[name]; exists {
		return kgerrors.Newf(kgerrors.AlreadyExists, opManager+".CreateIndex", "index %q already exists", name)
	}
	if m.maxIdx > 0 && len(m.indexes) >= m.maxIdx {
		return kgerrors.Newf(kgerrors.Unsupported, opManager+".CreateIndex", "max_indexes (%d) reached", m.maxIdx)
	}

	d := &declared{kind: kind, spec: spec}
	switch kind {
	case KindProperty:
		d.property = newPropertyIndex(spec.Paths)
	case KindFullText:
		d.fullText = newFullTextIndex(spec.Paths)
	case KindVector:
		d.vector = newVectorIndex()
	case KindTemporal:
		path := "metadata.created_at"
		if len(spec.Paths) > 0 {
			path = spec.Paths[0]
		}
		d.temporal = newTemporalIndex(path)
	default:
		return kgerrors.Newf(kgerrors.InvalidArgument, opManager+".CreateIndex", "unknown index kind %q", kind)
	}
	m.indexes[name] = d
	return nil
}

// IndexEntity adds/overwrites an entity across every declared index,
// matching the entity's current snapshot. entity is the generic predicate
// map (graph.Node.AsMap / graph.Edge.AsMap); embedding is the entity's
// primary embedding vector, or nil if it carries none.
func (m *Manager) IndexEntity(id string, entity map[string]any, embedding []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.indexes {
		switch d.kind {
		case KindProperty:
			d.property.index(id, entity)
		case KindFullText:
			d.fullText.index(id, entity)
		case KindVector:
			d.vector.index(id, embedding)
		case KindTemporal:
			d.temporal.index(id, entity)
		}
	}
}

// ReindexEntity is remove-then-index so a changed key tuple never leaves a
// stale posting behind.
func (m *Manager) ReindexEntity(id string, entity map[string]any, embedding []float32) {
	m.RemoveEntity(id)
	m.IndexEntity(id, entity, embedding)
}

// RemoveEntity removes an entity from every declared index.
func (m *Manager) RemoveEntity(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.indexes {
		switch d.kind {
		case KindProperty:
			d.property.remove(id)
		case KindFullText:
			d.fullText.remove(id)
		case KindVector:
			d.vector.remove(id)
		case KindTemporal:
			d.temporal.remove(id)
		}
	}
}

// Query looks up a property index by exact key-tuple values over the
// index's declared paths, in declaration order; other index kinds are
// rejected as Unsupported.
func (m *Manager) Query(name string, values []any) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.indexes[name]
	if !ok {
		return nil, kgerrors.Newf(kgerrors.NotFound, opManager+".Query", "index %q not declared", name)
	}
	if d.kind != KindProperty {
		return nil, kgerrors.Newf(kgerrors.Unsupported, opManager+".Query", "index %q is not a property index", name)
	}
	key, _ := d.property.keyTuple(flattenForLookup(d.property.paths, values))
	return d.property.lookup(key), nil
}

// flattenForLookup builds a minimal entity map so keyTuple's lookupPath
// resolution (bare field vs. properties-prefixed) works the same for a
// caller-supplied value list as it does for a real indexed entity.
func flattenForLookup(paths []string, values []any) map[string]any {
	out := map[string]any{"properties": map[string]any{}}
	props := out["properties"].(map[string]any)
	for i, path := range paths {
		if i >= len(values) {
			break
		}
		if path == "id" || path == "type" {
			out[path] = values[i]
			continue
		}
		key := path
		if len(path) > len("properties.") && path[:len("properties.")] == "properties." {
			key = path[len("properties."):]
		}
		props[key] = values[i]
	}
	return out
}

// VectorTopK delegates to the named vector index.
func (m *Manager) VectorTopK(name string, query []float32, k int, threshold float64) ([]ScoredID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.indexes[name]
	if !ok {
		return nil, kgerrors.Newf(kgerrors.NotFound, opManager+".VectorTopK", "index %q not declared", name)
	}
	if d.kind != KindVector {
		return nil, kgerrors.Newf(kgerrors.Unsupported, opManager+".VectorTopK", "index %q is not a vector index", name)
	}
	return d.vector.topK(query, k, threshold)
}

// FullTextTopK delegates to the named full-text index.
func (m *Manager) FullTextTopK(name string, query string, k int) ([]ScoredID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.indexes[name]
	if !ok {
		return nil, kgerrors.Newf(kgerrors.NotFound, opManager+".FullTextTopK", "index %q not declared", name)
	}
	if d.kind != KindFullText {
		return nil, kgerrors.Newf(kgerrors.Unsupported, opManager+".FullTextTopK", "index %q is not a full-text index", name)
	}
	return d.fullText.topK(query, k), nil
}

// HasKind reports whether any declared index has the given kind, used by
// the advanced query engine to pick vector-index-first vs. brute-force.
func (m *Manager) HasKind(kind Kind) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, d := range m.indexes {
		if d.kind == kind {
			return name, true
		}
	}
	return "", false
}
