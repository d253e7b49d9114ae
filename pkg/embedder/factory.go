package embedder

import "fmt"

// Config selects and sizes an embedding provider. At most one provider is
// expected to be set; Ollama wins when both are, preferring a local server
// over a metered API.
type Config struct {
	OllamaURL   string
	OllamaModel string

	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string

	// Dimension is the vector width the engine's vector indexes are
	// declared with (indexing.vector_dimensions). When both it and the
	// selected model's known output width are non-zero and they disagree,
	// New fails fast: mixing widths would only surface later as a
	// DimensionMismatch on every cosine comparison.
	Dimension int
}

// New builds the Embedder cfg describes, or an error when no provider is
// configured or the selected model's output width contradicts cfg.Dimension.
func New(cfg Config) (Embedder, error) {
	var (
		emb Embedder
		err error
	)
	switch {
	case cfg.OllamaURL != "" || cfg.OllamaModel != "":
		emb, err = NewOllamaEmbedder(cfg.OllamaURL, cfg.OllamaModel)
	case cfg.OpenAIKey != "":
		model := cfg.OpenAIModel
		if model == "" {
			model = "text-embedding-3-large"
		}
		emb, err = NewOpenAIEmbedder(cfg.OpenAIKey, cfg.OpenAIBaseURL, model)
	default:
		return nil, fmt.Errorf("no embedding provider configured: set ollama-url/ollama-model or openai-key")
	}
	if err != nil {
		return nil, err
	}
	if err := checkDimension(emb, cfg.Dimension); err != nil {
		return nil, err
	}
	return emb, nil
}

// checkDimension rejects a provider whose known output width cannot fit the
// engine's declared vector-index width. Either side reporting 0 (unknown)
// skips the check.
func checkDimension(e Embedder, want int) error {
	got := e.Dimension()
	if want > 0 && got > 0 && got != want {
		return fmt.Errorf("embedding model produces %d-dimension vectors but indexing.vector_dimensions is %d", got, want)
	}
	return nil
}
