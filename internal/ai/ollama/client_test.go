package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus302/aanvraagapp/internal/ai"
)

func TestGenerateSendsNumCtx(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "  # Title\n", Done: true})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, nil)
	out, err := c.Generate(context.Background(), "convert this", nil)
	require.NoError(t, err)

	assert.Equal(t, "# Title", out)
	assert.Equal(t, DefaultModel, got.Model)
	assert.False(t, got.Stream)
	require.NotNil(t, got.Options)
	assert.Equal(t, 32768, got.Options.NumCtx)
}

func TestGenerateWithSchemaIsUnsupported(t *testing.T) {
	t.Parallel()

	c := New(Config{BaseURL: "http://127.0.0.1:1"}, nil)
	_, err := c.Generate(context.Background(), "x", &ai.Schema{Type: ai.TypeObject})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ai.ErrUnsupportedCapability))
}

func TestEmbedAddsPrefixes(t *testing.T) {
	var requests []embedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		requests = append(requests, req)
		resp := embedResponse{}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{0.1, 0.2})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/"}, nil)

	docs, err := c.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	_, err = c.EmbedQuery(context.Background(), "innovatie")
	require.NoError(t, err)

	require.Len(t, requests, 2)
	assert.Equal(t, DefaultEmbeddingModel, requests[0].Model)
	assert.Equal(t, []string{"title: none | text: a", "title: none | text: b"}, requests[0].Input)
	assert.Equal(t, []string{"task: search result | query: innovatie"}, requests[1].Input)
}

func TestEmbedRejectsCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1}}})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, nil)
	_, err := c.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.Error(t, err)
}

func TestStatusErrorIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL}, nil)
	_, err := c.Generate(context.Background(), "x", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "model not found")
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	require.NoError(t, New(Config{BaseURL: srv.URL}, nil).Ping(context.Background()))
}
