package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbedderDefaults(t *testing.T) {
	e, err := NewEmbedder(EmbedderConfig{})
	require.NoError(t, err)

	assert.Equal(t, "nomic-embed-text", e.config.Model)
	assert.Equal(t, "http://localhost:11434", e.config.BaseURL)
	assert.Equal(t, 30*time.Second, e.config.Timeout)
}

func TestNewChatEngineDefaults(t *testing.T) {
	ce, err := NewChatEngine(ChatConfig{})
	require.NoError(t, err)

	assert.Equal(t, "mistral", ce.config.Model)
	assert.Equal(t, 2000, ce.config.MaxTokens)
	assert.Equal(t, 0.7, ce.config.Temperature)
	assert.Equal(t, 5*time.Minute, ce.config.Timeout)
	assert.NotEmpty(t, ce.config.SystemTemplate)
}

func TestNewChatEngineRejectsBadConfig(t *testing.T) {
	_, err := NewChatEngine(ChatConfig{MaxTokens: -1})
	assert.Error(t, err)

	_, err = NewChatEngine(ChatConfig{Temperature: 2.5})
	assert.Error(t, err)

	_, err = NewChatEngine(ChatConfig{Temperature: -0.1})
	assert.Error(t, err)
}

func TestGatewayIsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/version", r.URL.Path)
		w.Write([]byte(`{"version":"0.1.0"}`))
	}))
	defer server.Close()

	gateway, err := NewGateway(GatewayConfig{BaseURL: server.URL})
	require.NoError(t, err)

	assert.True(t, gateway.IsAvailable(context.Background()))

	server.Close()
	assert.False(t, gateway.IsAvailable(context.Background()))
}

func TestGatewayIsAvailableRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	gateway, err := NewGateway(GatewayConfig{BaseURL: server.URL})
	require.NoError(t, err)

	assert.False(t, gateway.IsAvailable(context.Background()))
}
