package mapper

import (
	"time"

	"finverse-chatbot/internal/entity"
	"finverse-chatbot/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type DocumentEmbeddingMapper struct{}

func NewDocumentEmbeddingMapper() *DocumentEmbeddingMapper {
	return &DocumentEmbeddingMapper{}
}

func (m *DocumentEmbeddingMapper) ToEntity(e *model.DocumentEmbedding) *entity.DocumentEmbedding {
	if e == nil {
		return nil
	}

	var deletedAt *time.Time
	if e.DeletedAt.Valid {
		t := e.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !e.UpdatedAt.IsZero() {
		t := e.UpdatedAt
		updatedAt = &t
	}

	return &entity.DocumentEmbedding{
		Id:              e.Id,
		SourceId:        e.SourceId,
		SourceType:      e.SourceType,
		SourceName:      e.SourceName,
		InstitutionId:   e.InstitutionId,
		InstitutionName: e.InstitutionName,
		ChunkIndex:      e.ChunkIndex,
		Document:        e.Document,
		EmbeddingValue:  e.EmbeddingValue.Slice(),
		EmbeddingModel:  e.EmbeddingModel,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       updatedAt,
		DeletedAt:       deletedAt,
		IsDeleted:       e.DeletedAt.Valid,
	}
}

func (m *DocumentEmbeddingMapper) ToModel(e *entity.DocumentEmbedding) *model.DocumentEmbedding {
	if e == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if e.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *e.DeletedAt, Valid: true}
	} else if e.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if e.UpdatedAt != nil {
		updatedAt = *e.UpdatedAt
	}

	return &model.DocumentEmbedding{
		Id:              e.Id,
		SourceId:        e.SourceId,
		SourceType:      e.SourceType,
		SourceName:      e.SourceName,
		InstitutionId:   e.InstitutionId,
		InstitutionName: e.InstitutionName,
		ChunkIndex:      e.ChunkIndex,
		Document:        e.Document,
		EmbeddingValue:  pgvector.NewVector(e.EmbeddingValue),
		EmbeddingModel:  e.EmbeddingModel,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       updatedAt,
		DeletedAt:       deletedAt,
	}
}
