package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"finverse-chatbot/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProviderNormalizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req ollamaEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, "savings", req.Prompt)
		_ = json.NewEncoder(w).Encode(ollamaEmbeddingResponse{Embedding: []float64{3, 4}})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "")
	res, err := p.Generate(context.Background(), "savings", TaskRetrievalQuery)
	require.NoError(t, err)

	assert.InDelta(t, 0.6, res.Embedding.Values[0], 1e-6)
	assert.InDelta(t, 0.8, res.Embedding.Values[1], 1e-6)
	assert.Equal(t, "ollama/nomic-embed-text", p.ModelVersion())
}

func TestOllamaProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "missing").Generate(context.Background(), "x", TaskRetrievalQuery)
	assert.Error(t, err)
}

func TestOllamaProviderHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewOllamaProvider(srv.URL, "").Generate(ctx, "x", TaskRetrievalQuery)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNormalizeZeroVector(t *testing.T) {
	assert.Equal(t, []float32{0, 0}, normalizeVector([]float32{0, 0}))

	v := normalizeVector([]float32{1, 2, 2})
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
}

type countingProvider struct {
	calls int
}

func (c *countingProvider) Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error) {
	c.calls++
	return &EmbeddingResponse{Embedding: EmbeddingResponseEmbedding{Values: []float32{0.6, 0.8}}}, nil
}

func (c *countingProvider) ModelVersion() string { return "fake/v1" }

func TestCachedProviderMemoizesQueries(t *testing.T) {
	inner := &countingProvider{}
	p := NewCachedProvider(inner, cache.NewMemoryClient(time.Minute), time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := p.Generate(ctx, "best savings account", TaskRetrievalQuery)
		require.NoError(t, err)
		assert.Equal(t, []float32{0.6, 0.8}, res.Embedding.Values)
	}
	assert.Equal(t, 1, inner.calls)

	_, err := p.Generate(ctx, "best savings account", TaskRetrievalDocument)
	require.NoError(t, err)
	_, err = p.Generate(ctx, "best savings account", TaskRetrievalDocument)
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls, "documents bypass the cache")
	assert.Equal(t, "fake/v1", p.ModelVersion())
}
