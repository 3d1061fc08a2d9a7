package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"finverse-chatbot/pkg/cache"
)

// CachedProvider memoizes query embeddings. Document embeddings are not
// cached; they are generated once per ingest.
type CachedProvider struct {
	inner EmbeddingProvider
	cache cache.Client
	ttl   time.Duration
}

func NewCachedProvider(inner EmbeddingProvider, c cache.Client, ttl time.Duration) *CachedProvider {
	return &CachedProvider{inner: inner, cache: c, ttl: ttl}
}

func (p *CachedProvider) ModelVersion() string {
	return p.inner.ModelVersion()
}

func (p *CachedProvider) Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error) {
	if taskType != TaskRetrievalQuery {
		return p.inner.Generate(ctx, text, taskType)
	}

	key := p.key(text)
	if raw, err := p.cache.Get(ctx, key); err == nil {
		var values []float32
		if json.Unmarshal(raw, &values) == nil && len(values) > 0 {
			return &EmbeddingResponse{Embedding: EmbeddingResponseEmbedding{Values: values}}, nil
		}
	}

	res, err := p.inner.Generate(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(res.Embedding.Values); err == nil {
		// a failed write only costs a recompute next time
		_ = p.cache.Set(ctx, key, raw, p.ttl)
	}
	return res, nil
}

func (p *CachedProvider) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + p.inner.ModelVersion() + ":" + hex.EncodeToString(sum[:])
}
