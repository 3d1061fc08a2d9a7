package contract

import (
	"context"

	"finverse-chatbot/internal/entity"

	"github.com/google/uuid"
)

// ScoredDocumentEmbedding wraps DocumentEmbedding with its similarity score
type ScoredDocumentEmbedding struct {
	Embedding  *entity.DocumentEmbedding
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
}

// SimilarityFilter narrows a nearest-neighbour search.
// Model is mandatory: vectors from different embedding models are never compared.
type SimilarityFilter struct {
	Model         string
	Threshold     float64
	ProductID     *uuid.UUID
	InstitutionID *uuid.UUID
}

type DocumentEmbeddingRepository interface {
	CreateBulk(ctx context.Context, embeddings []*entity.DocumentEmbedding) error
	DeleteBySource(ctx context.Context, sourceType string, sourceId uuid.UUID) error
	Count(ctx context.Context, model string) (int64, error)
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, filter SimilarityFilter) ([]*ScoredDocumentEmbedding, error)
}
