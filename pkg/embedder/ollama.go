package embedder

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaEmbedder embeds text through a local Ollama server.
type OllamaEmbedder struct {
	embedder embeddings.Embedder
	model    string
}

// NewOllamaEmbedder connects to the Ollama server at url and embeds with
// model. The underlying langchaingo embedder is built once here, not per
// call.
func NewOllamaEmbedder(url, model string) (*OllamaEmbedder, error) {
	if url == "" {
		return nil, fmt.Errorf("ollama URL is required")
	}
	if model == "" {
		return nil, fmt.Errorf("ollama model name is required")
	}

	client, err := ollama.New(
		ollama.WithServerURL(url),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	emb, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("build ollama embedder: %w", err)
	}

	return &OllamaEmbedder{embedder: emb, model: model}, nil
}

func (o *OllamaEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	vec, err := o.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query with %s: %w", o.model, err)
	}
	return vec, nil
}

func (o *OllamaEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vecs, err := o.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d documents with %s: %w", len(texts), o.model, err)
	}
	return vecs, nil
}

// Dimension reports the known output width for the configured model, or 0
// for models this table doesn't cover.
func (o *OllamaEmbedder) Dimension() int {
	return ollamaModelDimension(o.model)
}

// ollamaModelDimension maps common Ollama embedding models to their output
// widths. Unknown models report 0, which skips the factory's up-front
// dimension check.
func ollamaModelDimension(model string) int {
	switch model {
	case "nomic-embed-text":
		return 768
	case "mxbai-embed-large":
		return 1024
	case "all-minilm", "sentence-transformers/all-MiniLM-L6-v2":
		return 384
	case "sentence-transformers/all-mpnet-base-v2":
		return 768
	default:
		return 0
	}
}
