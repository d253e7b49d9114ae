// Package facade is the single coordinating entry point: ordered
// initialization of the graph store, index manager, semantic cache, query
// processor, and advanced query engine; write-path ordering (mutate, then
// reindex, then invalidate, then emit); and read-path cache-first routing.
package facade

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/kgraphdb/kgraph/internal/advanced"
	"github.com/kgraphdb/kgraph/internal/cache"
	"github.com/kgraphdb/kgraph/internal/config"
	"github.com/kgraphdb/kgraph/internal/graph"
	"github.com/kgraphdb/kgraph/internal/index"
	"github.com/kgraphdb/kgraph/internal/kgerrors"
	"github.com/kgraphdb/kgraph/internal/query"
	"github.com/kgraphdb/kgraph/pkg/embedder"
)

const opFacade = "facade.Facade"

// EventType names a surface-level notification topic.
type EventType string

const (
	EventNodeAdded   EventType = "node_added"
	EventNodeUpdated EventType = "node_updated"
	EventNodeDeleted EventType = "node_deleted"
	EventEdgeAdded   EventType = "edge_added"
	EventEdgeUpdated EventType = "edge_updated"
	EventEdgeDeleted EventType = "edge_deleted"
	EventInitialized EventType = "initialized"
	EventShutdown    EventType = "shutdown"
)

// Event is one observable notification emitted over Facade.Events().
type Event struct {
	Type    EventType
	Payload map[string]any
}

// Option configures optional collaborators at construction time.
type Option func(*Facade)

func WithLogger(l Logger) Option { return func(f *Facade) { f.logger = l } }

func WithSecurityHooks(h SecurityHooks) Option { return func(f *Facade) { f.security = h } }

func WithPerformanceMonitor(p PerformanceMonitor) Option { return func(f *Facade) { f.perf = p } }

func WithEmbeddingProvider(p EmbeddingProvider) Option {
	return func(f *Facade) { f.embedProvider = p }
}

// Facade wires C1-C5 behind the single entry point the host process (an MCP
// server, an HTTP server, a test) talks to.
type Facade struct {
	cfg      *config.Config
	store    graph.Store
	indexes  *index.Manager
	cache    *cache.Cache
	executor *query.Executor
	advanced *advanced.Engine

	logger        Logger
	security      SecurityHooks
	perf          PerformanceMonitor
	embedProvider EmbeddingProvider

	// writeMu serializes the facade's compound write path (store mutation,
	// reindex, cache invalidation, event emission) so the three never
	// observe an interleaved partial update from a concurrent writer; the
	// store's own internal lock only protects the single storage call.
	writeMu sync.Mutex

	eventsMu sync.Mutex
	closed   bool
	events   chan Event
}

// New builds a Facade: Graph Store -> Index Manager -> Semantic Cache ->
// Query Processor -> Advanced Query Engine, in that order.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Facade, error) {
	if cfg == nil {
		return nil, kgerrors.Newf(kgerrors.InvalidArgument, opFacade+".New", "configuration is required")
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	indexes := index.NewManager(cfg.IndexingMaxIndexes)
	if cfg.EnableSemanticSearch {
		if err := indexes.CreateIndex("default_vector", index.KindVector, index.Spec{EmbeddingKind: "default"}); err != nil {
			return nil, kgerrors.WithOp(opFacade+".New", err)
		}
	}
	if cfg.IndexingEnableFullText {
		spec := index.Spec{Paths: []string{"properties.name", "properties.title", "properties.description", "properties.content", "properties.text"}}
		if err := indexes.CreateIndex("default_text", index.KindFullText, spec); err != nil {
			return nil, kgerrors.WithOp(opFacade+".New", err)
		}
	}

	c := cache.New(cache.Config{
		MaxSize:             cfg.CacheMaxSize,
		DefaultTTL:          cfg.CacheDefaultTTL(),
		SimilarityThreshold: cfg.CacheDefaultSimilarityThreshold,
	})

	f := &Facade{
		cfg:      cfg,
		store:    store,
		indexes:  indexes,
		cache:    c,
		executor: query.NewExecutor(store, indexes, cfg.MaxResultSize),
		advanced: advanced.New(store),
		logger:   NoopLogger{},
		security: NoopSecurityHooks{},
		perf:     NoopPerformanceMonitor{},
		events:   make(chan Event, 256),
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.embedProvider == nil && cfg.HasEmbedder() {
		emb, err := embedder.New(embedder.Config{
			OllamaURL:     cfg.OllamaURL,
			OllamaModel:   cfg.OllamaModel,
			OpenAIKey:     cfg.OpenAIKey,
			OpenAIBaseURL: cfg.OpenAIURL,
			OpenAIModel:   cfg.OpenAIModel,
			Dimension:     cfg.IndexingVectorDimensions,
		})
		if err == nil {
			f.embedProvider = embedderAdapter{embed: emb}
		} else {
			// A failed provider degrades to the pseudo-embedding fallback
			// instead of failing startup.
			f.logger.Warn("embedding provider configured but failed to initialize", "error", err.Error())
		}
	}

	f.emit(Event{Type: EventInitialized})
	return f, nil
}

func newStore(ctx context.Context, cfg *config.Config) (graph.Store, error) {
	if !cfg.UsesDurableBackend() {
		cascade := graph.CascadeReject
		if cfg.DeleteCascade {
			cascade = graph.CascadeDelete
		}
		return graph.NewMemoryStore(cascade), nil
	}
	cascade := graph.CascadeReject
	if cfg.DeleteCascade {
		cascade = graph.CascadeDelete
	}
	return graph.NewSurrealStore(ctx, graph.SurrealConfig{
		URL:       cfg.SurrealDBURL,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Cascade:   cascade,
	})
}

// Events returns the channel observers read surface-level notifications
// from.
func (f *Facade) Events() <-chan Event { return f.events }

func (f *Facade) emit(ev Event) {
	f.eventsMu.Lock()
	defer f.eventsMu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.events <- ev:
	default:
		f.logger.Warn("event channel full, dropping event", "type", string(ev.Type))
	}
}

// Shutdown closes the underlying store and the event channel. No further
// operations should be called on the facade afterwards.
func (f *Facade) Shutdown(context.Context) error {
	err := f.store.Close()
	f.emit(Event{Type: EventShutdown})

	f.eventsMu.Lock()
	f.closed = true
	close(f.events)
	f.eventsMu.Unlock()
	return err
}

// ---- Nodes ----

// AddNode creates a node, indexes it, and emits node_added.
func (f *Facade) AddNode(ctx context.Context, nodeType graph.NodeType, properties map[string]any, embedding []float32) (*graph.Node, error) {
	node := &graph.Node{Type: nodeType, Properties: properties}
	if embedding != nil {
		node.Metadata.Embedding = embedding
	}
	if err := f.security.ApplyNodeSecurityPolicies(ctx, node); err != nil {
		return nil, err
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	id, err := f.store.PutNode(ctx, node)
	if err != nil {
		return nil, err
	}
	stored, err := f.store.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}

	f.indexes.IndexEntity(id, stored.AsMap(), primaryEmbedding(stored))
	f.emit(Event{Type: EventNodeAdded, Payload: map[string]any{"id": id, "type": string(nodeType)}})
	return stored, nil
}

// GetNode is a direct C1 passthrough; the result cache only memoizes C4/C5
// queries, not single-entity lookups.
func (f *Facade) GetNode(ctx context.Context, id string) (*graph.Node, error) {
	return f.store.GetNode(ctx, id)
}

// ListNodeIDs returns every node id currently in the store, for callers
// that need to suggest a near match after a failed lookup.
func (f *Facade) ListNodeIDs(ctx context.Context) ([]string, error) {
	nodes, err := f.store.ScanNodes(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids, nil
}

// UpdateNode merges patch, reindexes, and invalidates every cache entry
// that referenced id, before emitting node_updated.
func (f *Facade) UpdateNode(ctx context.Context, id string, patch graph.Patch) (bool, error) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	ok, err := f.store.UpdateNode(ctx, id, patch)
	if err != nil || !ok {
		return ok, err
	}

	stored, err := f.store.GetNode(ctx, id)
	if err != nil {
		return false, err
	}
	f.indexes.ReindexEntity(id, stored.AsMap(), primaryEmbedding(stored))
	f.cache.Invalidate(cache.InvalidateCriteria{EntityID: id})
	f.emit(Event{Type: EventNodeUpdated, Payload: map[string]any{"id": id}})
	return true, nil
}

// DeleteNode removes the node (subject to the store's cascade policy),
// unindexes it, invalidates referencing cache entries, and emits
// node_deleted.
func (f *Facade) DeleteNode(ctx context.Context, id string) (bool, error) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	ok, err := f.store.DeleteNode(ctx, id)
	if err != nil || !ok {
		return ok, err
	}

	f.indexes.RemoveEntity(id)
	f.cache.Invalidate(cache.InvalidateCriteria{EntityID: id})
	f.emit(Event{Type: EventNodeDeleted, Payload: map[string]any{"id": id}})
	return true, nil
}

// ---- Edges ----

// AddEdge creates an edge between two existing nodes, indexes it, and
// invalidates cache entries referencing either endpoint (a new edge can
// change traversal/pattern results rooted at source or target).
func (f *Facade) AddEdge(ctx context.Context, sourceID, targetID string, edgeType graph.EdgeType, properties map[string]any) (*graph.Edge, error) {
	edge := &graph.Edge{SourceID: sourceID, TargetID: targetID, Type: edgeType, Properties: properties}
	if err := f.security.ApplyEdgeSecurityPolicies(ctx, edge); err != nil {
		return nil, err
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	id, err := f.store.PutEdge(ctx, edge)
	if err != nil {
		return nil, err
	}
	stored, err := f.store.GetEdge(ctx, id)
	if err != nil {
		return nil, err
	}

	f.indexes.IndexEntity(id, stored.AsMap(), nil)
	f.cache.Invalidate(cache.InvalidateCriteria{EntityID: sourceID})
	f.cache.Invalidate(cache.InvalidateCriteria{EntityID: targetID})
	f.emit(Event{Type: EventEdgeAdded, Payload: map[string]any{
		"id": id, "source": sourceID, "target": targetID, "type": string(edgeType),
	}})
	return stored, nil
}

// GetEdge is a direct C1 passthrough.
func (f *Facade) GetEdge(ctx context.Context, id string) (*graph.Edge, error) {
	return f.store.GetEdge(ctx, id)
}

// ListEdgeIDs returns every edge id currently in the store, for callers
// that need to suggest a near match after a failed lookup.
func (f *Facade) ListEdgeIDs(ctx context.Context) ([]string, error) {
	edges, err := f.store.ScanEdges(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.ID
	}
	return ids, nil
}

// UpdateEdge merges patch, reindexes, and invalidates cache entries
// referencing the edge and both its endpoints.
func (f *Facade) UpdateEdge(ctx context.Context, id string, patch graph.Patch) (bool, error) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	ok, err := f.store.UpdateEdge(ctx, id, patch)
	if err != nil || !ok {
		return ok, err
	}

	stored, err := f.store.GetEdge(ctx, id)
	if err != nil {
		return false, err
	}
	f.indexes.ReindexEntity(id, stored.AsMap(), nil)
	f.cache.Invalidate(cache.InvalidateCriteria{EntityID: id})
	f.cache.Invalidate(cache.InvalidateCriteria{EntityID: stored.SourceID})
	f.cache.Invalidate(cache.InvalidateCriteria{EntityID: stored.TargetID})
	f.emit(Event{Type: EventEdgeUpdated, Payload: map[string]any{"id": id}})
	return true, nil
}

// DeleteEdge removes the edge, unindexes it, invalidates cache entries
// referencing it and both endpoints, and emits edge_deleted.
func (f *Facade) DeleteEdge(ctx context.Context, id string) (bool, error) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	existing, err := f.store.GetEdge(ctx, id)
	if err != nil {
		return false, err
	}
	ok, err := f.store.DeleteEdge(ctx, id)
	if err != nil || !ok {
		return ok, err
	}

	f.indexes.RemoveEntity(id)
	f.cache.Invalidate(cache.InvalidateCriteria{EntityID: id})
	f.cache.Invalidate(cache.InvalidateCriteria{EntityID: existing.SourceID})
	f.cache.Invalidate(cache.InvalidateCriteria{EntityID: existing.TargetID})
	f.emit(Event{Type: EventEdgeDeleted, Payload: map[string]any{"id": id}})
	return true, nil
}

// ---- Queries (C4) ----

// ExecuteQuery runs spec through the cost-based planner/executor, checking
// the semantic cache first and populating it on a miss. cacheCtx is an
// arbitrary caller-supplied context value folded into the cache key (e.g.
// tenant, caller identity); pass nil when there is none.
func (f *Facade) ExecuteQuery(ctx context.Context, spec query.Spec, cacheCtx any) ([]map[string]any, error) {
	cctx, cancel := context.WithTimeout(ctx, f.cfg.QueryDefaultTimeout())
	defer cancel()

	emb := pseudoEmbedding(fingerprintText(spec), f.cfg.CacheEmbeddingDimensions)
	if hit, ok := f.cache.Lookup(spec, cacheCtx, emb, 0); ok {
		if rows, ok := hit.Result.([]map[string]any); ok {
			return rows, nil
		}
	}

	candidates, err := query.BuildCandidates(spec, query.PlanContext{HasTraversalIndex: f.hasTraversalIndex()})
	if err != nil {
		return nil, err
	}
	plan, _ := query.Select(candidates)

	rows, err := f.executor.Execute(cctx, plan)
	if err != nil {
		return nil, err
	}

	refs := entityRefs(rows)
	for _, id := range []string{spec.NodeID, spec.EdgeID, spec.SourceID, spec.TargetID, spec.StartID, spec.EndID} {
		if id != "" {
			refs = append(refs, id)
		}
	}
	f.cache.Put(spec, cacheCtx, rows, emb, 0, 1, refs)
	return rows, nil
}

// ExplainQuery runs validate/enumerate/rewrite/cost without ever touching
// storage.
func (f *Facade) ExplainQuery(spec query.Spec) (*query.ExplainResult, error) {
	return query.Explain(spec, query.PlanContext{HasTraversalIndex: f.hasTraversalIndex()})
}

func (f *Facade) hasTraversalIndex() bool {
	if _, ok := f.indexes.HasKind(index.KindProperty); ok {
		return true
	}
	_, ok := f.indexes.HasKind(index.KindTemporal)
	return ok
}

// ---- Advanced queries (C5) ----

// FindPaths delegates to the advanced engine, applying the configured
// default max_path_length and deadline, with cache-first routing keyed by
// the (start, end, options) tuple.
func (f *Facade) FindPaths(ctx context.Context, start, end string, opts advanced.PathOptions) ([]advanced.Path, error) {
	if opts.MaxLength <= 0 {
		opts.MaxLength = f.cfg.MaxPathLength
	}
	cctx, cancel := context.WithTimeout(ctx, f.cfg.AdvancedTimeout())
	defer cancel()

	var key any
	if opts.Predicate == nil {
		key = map[string]any{
			"op": "find_paths", "start": start, "end": end,
			"max_length": opts.MaxLength, "edge_types": opts.EdgeTypes, "bidirectional": opts.Bidirectional,
		}
		if hit, ok := f.cache.Lookup(key, nil, nil, 0); ok {
			if paths, ok := hit.Result.([]advanced.Path); ok {
				return paths, nil
			}
		}
	}

	paths, err := f.advanced.FindPaths(cctx, start, end, opts)
	if err != nil {
		return nil, err
	}
	if key != nil {
		refs := []string{start, end}
		for _, p := range paths {
			for _, n := range p.Nodes {
				refs = append(refs, n.ID)
			}
			for _, e := range p.Edges {
				refs = append(refs, e.ID)
			}
		}
		f.cache.Put(key, nil, paths, nil, 0, 1, refs)
	}
	return paths, nil
}

// FindPatterns delegates to the advanced engine, applying the configured
// default max_results_per_query and deadline.
func (f *Facade) FindPatterns(ctx context.Context, pattern advanced.Pattern, limit int) ([]advanced.PatternMatch, error) {
	if limit <= 0 {
		limit = f.cfg.MaxResultsPerQuery
	}
	cctx, cancel := context.WithTimeout(ctx, f.cfg.AdvancedTimeout())
	defer cancel()
	return f.advanced.FindPatterns(cctx, pattern, limit)
}

// SemanticSearch delegates to the advanced engine, rejecting the call
// outright when advanced_query.enable_semantic_search is false. Results are
// memoized: a repeat of the same query is an exact cache hit, and a query
// whose embedding lands within the similarity threshold of a cached one is
// an approximate hit with its per-match scores scaled by that similarity.
func (f *Facade) SemanticSearch(ctx context.Context, q advanced.SemanticQuery, opts advanced.SemanticOptions) ([]advanced.SemanticMatch, error) {
	if !f.cfg.EnableSemanticSearch {
		return nil, kgerrors.Newf(kgerrors.Unsupported, opFacade+".SemanticSearch", "semantic search disabled by configuration")
	}
	cctx, cancel := context.WithTimeout(ctx, f.cfg.AdvancedTimeout())
	defer cancel()

	key := map[string]any{
		"op": "semantic_search", "text": q.Text, "node_id": q.NodeID, "embedding": q.Embedding,
		"kind": opts.EmbeddingKind, "threshold": opts.Threshold, "limit": opts.Limit,
	}
	queryText := q.Text
	if queryText == "" {
		queryText = q.NodeID
	}
	emb := f.embeddingForCache(cctx, queryText)
	if hit, ok := f.cache.Lookup(key, nil, emb, 0); ok {
		if matches, ok := hit.Result.([]advanced.SemanticMatch); ok {
			return adaptMatches(matches, hit), nil
		}
	}

	matches, err := f.advanced.SemanticSearch(cctx, f.indexes, f.embedFunc(), q, opts)
	if err != nil {
		return nil, err
	}
	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, m.Node.ID)
	}
	f.cache.Put(key, nil, matches, emb, 0, 1, refs)
	return matches, nil
}

// adaptMatches rescales per-match scores by the hit similarity on an
// approximate cache hit, so rankings served for a near-miss query are
// calibrated to the query actually asked. Exact hits pass through.
func adaptMatches(matches []advanced.SemanticMatch, hit cache.Hit) []advanced.SemanticMatch {
	if hit.Source != cache.SourceSemantic {
		return matches
	}
	out := make([]advanced.SemanticMatch, len(matches))
	for i, m := range matches {
		m.Similarity *= hit.Similarity
		out[i] = m
	}
	return out
}

// FindSimilarNodes is SemanticSearch seeded from an existing node's own
// embedding.
func (f *Facade) FindSimilarNodes(ctx context.Context, nodeID string, opts advanced.SemanticOptions) ([]advanced.SemanticMatch, error) {
	if !f.cfg.EnableSemanticSearch {
		return nil, kgerrors.Newf(kgerrors.Unsupported, opFacade+".FindSimilarNodes", "semantic search disabled by configuration")
	}
	cctx, cancel := context.WithTimeout(ctx, f.cfg.AdvancedTimeout())
	defer cancel()
	return f.advanced.FindSimilarNodes(cctx, f.indexes, f.embedFunc(), nodeID, opts)
}

func (f *Facade) embedFunc() advanced.EmbedFunc {
	if f.embedProvider == nil {
		return nil
	}
	return f.embedProvider.GenerateEmbedding
}

// ---- Indexes (C2) ----

// CreateIndex declares a new named index.
func (f *Facade) CreateIndex(name string, kind index.Kind, spec index.Spec) error {
	return f.indexes.CreateIndex(name, kind, spec)
}

// ---- Cache (C3) ----

// Invalidate removes every cache entry matching criteria.
func (f *Facade) Invalidate(criteria cache.InvalidateCriteria) int {
	return f.cache.Invalidate(criteria)
}

// Clear empties the result cache entirely.
func (f *Facade) Clear() {
	f.cache.Clear()
}

// Stats reports cache performance counters plus current graph size.
func (f *Facade) Stats(ctx context.Context) (map[string]any, error) {
	nodes, err := f.store.ScanNodes(ctx)
	if err != nil {
		return nil, err
	}
	edges, err := f.store.ScanEdges(ctx)
	if err != nil {
		return nil, err
	}
	stats := f.cache.Stats()
	stats["node_count"] = len(nodes)
	stats["edge_count"] = len(edges)

	nodeTypeCounts := make(map[string]int)
	for _, n := range nodes {
		nodeTypeCounts[string(n.Type)]++
	}
	edgeTypeCounts := make(map[string]int)
	for _, e := range edges {
		edgeTypeCounts[string(e.Type)]++
	}
	stats["node_type_counts"] = nodeTypeCounts
	stats["edge_type_counts"] = edgeTypeCounts
	return stats, nil
}

// ---- helpers ----

func primaryEmbedding(n *graph.Node) []float32 {
	if n.Metadata.Embedding != nil {
		return n.Metadata.Embedding
	}
	return n.Embeddings["default"]
}

func entityRefs(rows []map[string]any) []string {
	var refs []string
	for _, r := range rows {
		if id, ok := r["id"].(string); ok {
			refs = append(refs, id)
		}
	}
	return refs
}

// embeddingForCache produces the approximate-lookup vector for a cache
// entry: the configured embedding provider when available, otherwise the
// hash-based pseudo-embedding fallback. queryText should be the natural
// query text when the operation has one (semantic search). Structured
// queries (ExecuteQuery) do not call this; they use pseudoEmbedding of
// their fingerprint directly.
func (f *Facade) embeddingForCache(ctx context.Context, queryText string) []float32 {
	if f.embedProvider != nil && queryText != "" {
		if vec, err := f.embedProvider.GenerateEmbedding(ctx, queryText); err == nil {
			return vec
		}
	}
	return pseudoEmbedding(queryText, f.cfg.CacheEmbeddingDimensions)
}

func fingerprintText(v any) string {
	return cache.FingerprintKey(v, nil)
}

// pseudoEmbedding deterministically derives a fixed-dimension vector from
// text via repeated FNV-1a hashing, a stand-in for a real embedding model
// when no provider is configured, so the semantic cache's approximate
// lookup still has something to compare against.
func pseudoEmbedding(text string, dims int) []float32 {
	if dims <= 0 {
		dims = 768
	}
	out := make([]float32, dims)
	seed := []byte(text)
	for i := range out {
		h := fnv.New64a()
		h.Write(seed)
		h.Write([]byte{byte(i), byte(i >> 8)})
		sum := h.Sum64()
		out[i] = float32(sum%2000)/1000 - 1
	}
	return out
}
