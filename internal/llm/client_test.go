package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aspor-platform/docintake/internal/common"
)

func TestGenerateParsesTextBlocks(t *testing.T) {
	var gotPath, gotAPIKey string
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("x-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": "Primera parte. "},
				{"type": "tool_use", "text": "ignorado"},
				{"type": "text", "text": "Segunda parte."},
			},
		})
	}))
	defer ts.Close()

	c := NewClient(common.LLMConfig{
		Endpoint:  ts.URL,
		APIKey:    "k-123",
		Model:     "informes-v1",
		MaxTokens: 8000,
	}, nil)

	text, err := c.Generate(context.Background(), "analiza esto")
	require.NoError(t, err)
	assert.Equal(t, "Primera parte. Segunda parte.", text)
	assert.Equal(t, "/v1/messages", gotPath)
	assert.Equal(t, "k-123", gotAPIKey)
	assert.Equal(t, "informes-v1", gotBody["model"])

	msgs := gotBody["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "analiza esto", msgs[0].(map[string]any)["content"])
}

func TestGenerateNonOKStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "throttled", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c := NewClient(common.LLMConfig{Endpoint: ts.URL}, nil)
	_, err := c.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestGenerateEmptyContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"content": []any{}})
	}))
	defer ts.Close()

	c := NewClient(common.LLMConfig{Endpoint: ts.URL}, nil)
	_, err := c.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text content")
}

func TestGenerateHonorsContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	c := NewClient(common.LLMConfig{Endpoint: ts.URL}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Generate(ctx, "p")
	assert.Error(t, err)
}
