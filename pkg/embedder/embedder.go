// Package embedder produces the vector embeddings the knowledge-graph
// engine consumes: query vectors for semantic search and the result cache's
// approximate keys, and node vectors at ingest time. Providers are selected
// and sized by New; the produced vectors must match the width the engine's
// vector indexes are declared with, so New validates the selected model's
// known output width against that configuration up front instead of letting
// every later cosine comparison fail with a dimension mismatch.
package embedder

import "context"

// Embedder produces fixed-width embedding vectors for text.
type Embedder interface {
	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedDocuments embeds a batch of texts, one vector per input, in
	// input order. Used at bulk-ingest time.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension reports the width of the vectors this embedder produces,
	// or 0 when the model's width is not known ahead of the first call.
	Dimension() int
}
