// Package cache implements the semantic result cache (C3): exact-key lookup
// with an embedding-similarity fallback, capacity-bounded strictly-oldest
// eviction, lazy TTL expiry, and criteria-based invalidation.
package cache

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kgraphdb/kgraph/internal/index"
)

// Entry is the cached payload for one (query, context) fingerprint.
type Entry struct {
	Key          string
	Query        any
	Context      any
	Result       any
	Embedding    []float32
	TTL          time.Duration
	Confidence   float64
	InsertedAt   time.Time
	LastAccessed time.Time
	// EntityRefs lists entity ids the result cites, for invalidate-by-entity.
	EntityRefs []string
}

func (e *Entry) expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.InsertedAt) > e.TTL
}

// Source identifies how a Lookup hit was satisfied.
type Source string

const (
	SourceExact    Source = "exact"
	SourceSemantic Source = "semantic"
)

// Hit is returned by Lookup on a cache hit.
type Hit struct {
	Result     any
	Source     Source
	Similarity float64
}

// Config configures a Cache; zero values take the built-in defaults.
type Config struct {
	MaxSize             int
	DefaultTTL          time.Duration
	SimilarityThreshold float64
}

// Cache is the semantic result cache. Lookup takes the main mutex
// exclusively (it updates hit/miss counters and access times), so lookups
// and mutations serialize against each other; evictMu only serializes
// eviction sweeps.
type Cache struct {
	mu      sync.RWMutex
	evictMu sync.Mutex

	entries map[string]*Entry

	maxSize             int
	defaultTTL          time.Duration
	similarityThreshold float64

	hits   int64
	misses int64
}

// New builds a semantic cache. cfg.MaxSize defaults to 1000,
// cfg.DefaultTTL to 1 hour, cfg.SimilarityThreshold to 0.85.
func New(cfg Config) *Cache {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1000
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.85
	}
	return &Cache{
		entries:             make(map[string]*Entry),
		maxSize:             cfg.MaxSize,
		defaultTTL:          cfg.DefaultTTL,
		similarityThreshold: cfg.SimilarityThreshold,
	}
}

// FingerprintKey computes the stable exact-key hash of (query, context).
// Go's json.Marshal already emits map keys in sorted order, which gives us
// a canonical encoding without a bespoke serializer.
func FingerprintKey(query, context any) string {
	blob, _ := json.Marshal(struct {
		Q any `json:"query"`
		C any `json:"context"`
	}{query, context})
	sum := sha256.Sum256(blob)
	return fmt.Sprintf("%x", sum)
}

// Lookup tries the exact key first, then falls back to an approximate
// cosine-similarity scan against queryEmbedding (nil skips the semantic
// fallback entirely; the cache never fails a read, a miss is returned
// instead). threshold <= 0 uses the cache's configured default.
func (c *Cache) Lookup(query, context any, queryEmbedding []float32, threshold float64) (Hit, bool) {
	now := time.Now()
	key := FingerprintKey(query, context)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		if e.expired(now) {
			delete(c.entries, key)
		} else {
			e.LastAccessed = now
			c.hits++
			return Hit{Result: e.Result, Source: SourceExact, Similarity: 1}, true
		}
	}

	if queryEmbedding == nil {
		c.misses++
		return Hit{}, false
	}
	if threshold <= 0 {
		threshold = c.similarityThreshold
	}

	var best *Entry
	var bestSim float64
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			continue
		}
		if e.Embedding == nil {
			continue
		}
		sim, err := index.CosineSimilarity(queryEmbedding, e.Embedding)
		if err != nil {
			continue
		}
		if sim >= threshold && (best == nil || sim > bestSim) {
			best, bestSim = e, sim
		}
	}
	if best == nil {
		c.misses++
		return Hit{}, false
	}
	best.LastAccessed = now
	c.hits++
	return Hit{Result: best.Result, Source: SourceSemantic, Similarity: bestSim}, true
}

// Put inserts a result under the (query, context) fingerprint. ttl <= 0
// uses the cache's configured default TTL.
func (c *Cache) Put(query, context, result any, embedding []float32, ttl time.Duration, confidence float64, entityRefs []string) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	key := FingerprintKey(query, context)
	now := time.Now()
	entry := &Entry{
		Key:          key,
		Query:        query,
		Context:      context,
		Result:       result,
		Embedding:    embedding,
		TTL:          ttl,
		Confidence:   confidence,
		InsertedAt:   now,
		LastAccessed: now,
		EntityRefs:   entityRefs,
	}

	c.mu.Lock()
	c.entries[key] = entry
	overflow := len(c.entries) > c.maxSize
	c.mu.Unlock()

	if overflow {
		c.evictOldest()
	}
}

// evictOldest evicts entries strictly oldest-by-insertion-time first until
// the cache is back under capacity. It holds evictMu and the main mutex
// exclusively for the whole sweep, so lookups wait until it finishes.
func (c *Cache) evictOldest() {
	c.evictMu.Lock()
	defer c.evictMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.entries) > c.maxSize {
		var oldestKey string
		var oldestAt time.Time
		first := true
		for k, e := range c.entries {
			if first || e.InsertedAt.Before(oldestAt) {
				oldestKey, oldestAt, first = k, e.InsertedAt, false
			}
		}
		if oldestKey == "" {
			return
		}
		delete(c.entries, oldestKey)
	}
}

// InvalidateCriteria selects which entries Invalidate removes; the zero
// value matches nothing, so callers set exactly one field.
type InvalidateCriteria struct {
	ExactKey         string
	ContextPredicate func(context any) bool
	OlderThan        time.Time
	EntityID         string
}

// Invalidate removes every entry matching criteria before returning, so a
// mutating caller can guarantee no stale entry is observable once its own
// write completes. Callers invoke this inline, never asynchronously.
func (c *Cache) Invalidate(criteria InvalidateCriteria) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		match := false
		switch {
		case criteria.ExactKey != "":
			match = k == criteria.ExactKey
		case criteria.ContextPredicate != nil:
			match = criteria.ContextPredicate(e.Context)
		case !criteria.OlderThan.IsZero():
			match = e.InsertedAt.Before(criteria.OlderThan)
		case criteria.EntityID != "":
			for _, ref := range e.EntityRefs {
				if ref == criteria.EntityID {
					match = true
					break
				}
			}
		}
		if match {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Clear empties the cache entirely.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
	c.hits, c.misses = 0, 0
}

// Stats reports cache performance counters (size, hits, misses, hit rate);
// per-entry last-accessed times are not included. Eviction itself uses
// insertion order, not access order.
func (c *Cache) Stats() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}

	return map[string]any{
		"size":                 len(c.entries),
		"max_size":             c.maxSize,
		"hits":                 c.hits,
		"misses":               c.misses,
		"hit_rate":             hitRate,
		"similarity_threshold": c.similarityThreshold,
	}
}
