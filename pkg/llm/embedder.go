package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/askdocs/askdocs/internal/types"
)

// EmbedderConfig configures the embedding model client.
type EmbedderConfig struct {
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Embedder turns text into embedding vectors using an Ollama model.
type Embedder struct {
	config EmbedderConfig
	llm    *ollama.LLM
}

func NewEmbedder(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	emb, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding model: %w", err)
	}

	return &Embedder{config: config, llm: emb}, nil
}

// Embed returns the model's vector for text. Backend failures surface as
// *types.UpstreamError and an empty model response as ErrEmptyEmbedding; a
// failed embed is never substituted with a zero vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	embeddings, err := e.llm.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, &types.UpstreamError{
			Op:      "embed",
			Timeout: errors.Is(err, context.DeadlineExceeded),
			Err:     err,
		}
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, fmt.Errorf("embed: %w", types.ErrEmptyEmbedding)
	}
	return embeddings[0], nil
}
