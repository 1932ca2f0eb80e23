package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  base_url: "http://localhost:11434"
  chat_model: "llama3"
  embed_model: "nomic-embed-text"
  max_tokens: 1000
  temperature: 0.5

database:
  url: "postgres://localhost:5432/test"
  vector_dim: 768

chunker:
  min_tokens: 200
  max_tokens: 400
  overlap_tokens: 30
  chars_per_token: 4

retrieval:
  top_k: 3

scraper:
  max_depth: 5
  rate_limit: 1.5
  ignore_patterns:
    - "/test/"
  allowed_extensions:
    - ".html"
    - "/"

server:
  port: "9090"

ui:
  streaming: false
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	// Test loading config
	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	// Verify loaded values
	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, "llama3", config.LLM.ChatModel)
	assert.Equal(t, "nomic-embed-text", config.LLM.EmbedModel)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.5, config.LLM.Temperature)
	assert.Equal(t, "postgres://localhost:5432/test", config.Database.URL)
	assert.Equal(t, 200, config.Chunker.MinTokens)
	assert.Equal(t, 400, config.Chunker.MaxTokens)
	assert.Equal(t, 3, config.Retrieval.TopK)
	assert.Equal(t, 5, config.Scraper.MaxDepth)
	assert.Equal(t, "9090", config.Server.Port)
	assert.False(t, config.UI.Streaming)
}

func TestLoadConfigDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("{}"), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, "mistral", config.LLM.ChatModel)
	assert.Equal(t, "nomic-embed-text", config.LLM.EmbedModel)
	assert.Equal(t, 2000, config.LLM.MaxTokens)
	assert.Equal(t, 500, config.Chunker.MinTokens)
	assert.Equal(t, 1000, config.Chunker.MaxTokens)
	assert.Equal(t, 75, config.Chunker.OverlapTokens)
	assert.Equal(t, 4, config.Chunker.CharsPerToken)
	assert.Equal(t, 5, config.Retrieval.TopK)
	assert.Equal(t, 768, config.Database.VectorDim)
	assert.Equal(t, "8080", config.Server.Port)
	assert.Empty(t, config.Validate())
}

func TestConfigValidation(t *testing.T) {
	valid := func() Config {
		var c Config
		applyDefaults(&c)
		return c
	}

	tests := []struct {
		name          string
		mutate        func(*Config)
		errorMessages []string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name: "llm out of range",
			mutate: func(c *Config) {
				c.LLM.MaxTokens = 5000
				c.LLM.Temperature = 3.0
			},
			errorMessages: []string{
				"llm.max_tokens: max_tokens must be between 1 and 4096",
				"llm.temperature: temperature must be between 0 and 2",
			},
		},
		{
			name: "missing base url and bad database url",
			mutate: func(c *Config) {
				c.LLM.BaseURL = ""
				c.Database.URL = "://bad"
			},
			errorMessages: []string{
				"llm.base_url: model server URL is required",
				"database.url: invalid database URL",
			},
		},
		{
			name: "chunker constraints",
			mutate: func(c *Config) {
				c.Chunker.MinTokens = 800
				c.Chunker.MaxTokens = 400
				c.Chunker.OverlapTokens = 400
			},
			errorMessages: []string{
				"chunker.max_tokens: max_tokens must be at least min_tokens",
				"chunker.overlap_tokens: overlap_tokens must be non-negative and less than max_tokens",
			},
		},
		{
			name: "retrieval and scraper",
			mutate: func(c *Config) {
				c.Retrieval.TopK = 0
				c.Scraper.RateLimit = -1
				c.Scraper.AllowedExtensions = []string{"html"}
			},
			errorMessages: []string{
				"retrieval.top_k: top_k must be positive",
				"scraper.rate_limit: rate_limit must be positive",
				"scraper.allowed_extensions: invalid extension format: html",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(&config)

			errors := config.Validate()
			assert.Len(t, errors, len(tt.errorMessages))
			for i, msg := range tt.errorMessages {
				assert.Contains(t, errors[i].Error(), msg)
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	// Set environment variables
	os.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	os.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	os.Setenv("PORT", "3000")
	defer func() {
		os.Unsetenv("OLLAMA_BASE_URL")
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("PORT")
	}()

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/test", config.Database.URL)
	assert.Equal(t, "3000", config.Server.Port)
}
