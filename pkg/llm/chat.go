package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/askdocs/askdocs/internal/types"
)

// ChatConfig configures the generation model client.
type ChatConfig struct {
	Model          string
	BaseURL        string
	MaxTokens      int
	Temperature    float64
	Timeout        time.Duration
	SystemTemplate string
}

// ChatEngine generates answers with an Ollama chat model.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

func NewChatEngine(config ChatConfig) (*ChatEngine, error) {
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	} else if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.Timeout == 0 {
		// Generation against a local model can legitimately take minutes.
		config.Timeout = 5 * time.Minute
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = "You are a helpful assistant. Answer the question using the provided context when it is given, and cite no sources the context does not contain."
	}

	model, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat model: %w", err)
	}

	return &ChatEngine{config: config, llm: model}, nil
}

// Generate answers question. A non-empty contextText is prepended as
// grounding material; otherwise the model answers from general knowledge.
// Streamed fragments are concatenated in arrival order into one string.
func (ce *ChatEngine) Generate(ctx context.Context, question, contextText string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, ce.config.Timeout)
	defer cancel()

	prompt := question
	if contextText != "" {
		prompt = fmt.Sprintf("Use the following context to answer the question.\n\nContext:\n%s\nQuestion: %s", contextText, question)
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, ce.config.SystemTemplate),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	var answer strings.Builder
	resp, err := ce.llm.GenerateContent(ctx, content,
		llms.WithMaxTokens(ce.config.MaxTokens),
		llms.WithTemperature(ce.config.Temperature),
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			answer.Write(chunk)
			return nil
		}),
	)
	if err != nil {
		return "", &types.UpstreamError{
			Op:      "generate",
			Timeout: errors.Is(err, context.DeadlineExceeded),
			Err:     err,
		}
	}

	if answer.Len() > 0 {
		return answer.String(), nil
	}
	// Some model configurations skip the streaming callback entirely.
	if resp != nil && len(resp.Choices) > 0 {
		return resp.Choices[0].Content, nil
	}
	return "", &types.UpstreamError{Op: "generate", Err: fmt.Errorf("no response from model")}
}
