package implementation

import (
	"context"

	"finverse-chatbot/internal/entity"
	"finverse-chatbot/internal/mapper"
	"finverse-chatbot/internal/model"
	"finverse-chatbot/internal/repository/contract"
	"finverse-chatbot/internal/repository/scope"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type DocumentEmbeddingRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DocumentEmbeddingMapper
}

func NewDocumentEmbeddingRepository(db *gorm.DB) contract.DocumentEmbeddingRepository {
	return &DocumentEmbeddingRepositoryImpl{
		db:     db,
		mapper: mapper.NewDocumentEmbeddingMapper(),
	}
}

func (r *DocumentEmbeddingRepositoryImpl) CreateBulk(ctx context.Context, embeddings []*entity.DocumentEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	models := make([]*model.DocumentEmbedding, len(embeddings))
	for i, e := range embeddings {
		models[i] = r.mapper.ToModel(e)
	}

	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return err
	}

	for i, m := range models {
		*embeddings[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

// DeleteBySource hard-deletes previous chunks so re-indexing never leaves stale vectors
func (r *DocumentEmbeddingRepositoryImpl) DeleteBySource(ctx context.Context, sourceType string, sourceId uuid.UUID) error {
	return r.db.WithContext(ctx).
		Unscoped().
		Where("source_type = ? AND source_id = ?", sourceType, sourceId).
		Delete(&model.DocumentEmbedding{}).Error
}

func (r *DocumentEmbeddingRepositoryImpl) Count(ctx context.Context, embeddingModel string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.DocumentEmbedding{}).
		Scopes(scope.ForEmbeddingModel(embeddingModel)).
		Count(&count).Error
	return count, err
}

// SearchSimilarWithScore returns embeddings with similarity scores, filtered by threshold
func (r *DocumentEmbeddingRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, filter contract.SimilarityFilter) ([]*contract.ScoredDocumentEmbedding, error) {
	if limit <= 0 {
		limit = 5
	}

	// Cosine distance in pgvector is: 1 - cosine_similarity
	type result struct {
		model.DocumentEmbedding
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	query := r.db.WithContext(ctx).
		Table("document_embeddings").
		Select("document_embeddings.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Scopes(scope.LiveEmbeddings, scope.ForEmbeddingModel(filter.Model)).
		Where("1 - (embedding_value <=> ?) >= ?", queryVector, filter.Threshold)

	// a product scope also admits its institution's profile documents
	switch {
	case filter.ProductID != nil && filter.InstitutionID != nil:
		query = query.Where(
			"((document_embeddings.source_type = ? AND document_embeddings.source_id = ?) OR (document_embeddings.source_type = ? AND document_embeddings.institution_id = ?))",
			entity.SourceTypeProduct, *filter.ProductID, entity.SourceTypeInstitution, *filter.InstitutionID,
		)
	case filter.ProductID != nil:
		query = query.Where("document_embeddings.source_type = ? AND document_embeddings.source_id = ?", entity.SourceTypeProduct, *filter.ProductID)
	case filter.InstitutionID != nil:
		query = query.Where("document_embeddings.institution_id = ?", *filter.InstitutionID)
	}

	err := query.
		Scopes(scope.OrderBySimilarityDesc).
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredDocumentEmbedding, len(results))
	for i, res := range results {
		scored[i] = &contract.ScoredDocumentEmbedding{
			Embedding:  r.mapper.ToEntity(&res.DocumentEmbedding),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}
