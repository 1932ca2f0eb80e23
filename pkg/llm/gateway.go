package llm

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// GatewayConfig configures the combined embedding/generation client.
type GatewayConfig struct {
	BaseURL         string
	EmbedModel      string
	ChatModel       string
	MaxTokens       int
	Temperature     float64
	EmbedTimeout    time.Duration
	GenerateTimeout time.Duration
}

// Gateway bundles the embedder and chat engine behind one collaborator,
// plus a liveness probe against the backing Ollama server.
type Gateway struct {
	*Embedder
	*ChatEngine

	baseURL string
	probe   *http.Client
}

func NewGateway(config GatewayConfig) (*Gateway, error) {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}

	embedder, err := NewEmbedder(EmbedderConfig{
		Model:   config.EmbedModel,
		BaseURL: config.BaseURL,
		Timeout: config.EmbedTimeout,
	})
	if err != nil {
		return nil, err
	}

	chat, err := NewChatEngine(ChatConfig{
		Model:       config.ChatModel,
		BaseURL:     config.BaseURL,
		MaxTokens:   config.MaxTokens,
		Temperature: config.Temperature,
		Timeout:     config.GenerateTimeout,
	})
	if err != nil {
		return nil, err
	}

	return &Gateway{
		Embedder:   embedder,
		ChatEngine: chat,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		probe:      &http.Client{Timeout: 5 * time.Second},
	}, nil
}

// IsAvailable reports whether the backend answers at all. Every failure is
// swallowed into false.
func (g *Gateway) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/api/version", nil)
	if err != nil {
		return false
	}
	resp, err := g.probe.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
