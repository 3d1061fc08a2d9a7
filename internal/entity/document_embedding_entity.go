package entity

import (
	"time"

	"github.com/google/uuid"
)

// Source types of indexed documents
const (
	SourceTypeProduct     = "product"
	SourceTypeInstitution = "institution"
)

type DocumentEmbedding struct {
	Id              uuid.UUID
	SourceId        uuid.UUID
	SourceType      string
	SourceName      string
	InstitutionId   *uuid.UUID
	InstitutionName string
	ChunkIndex      int
	Document        string
	EmbeddingValue  []float32
	EmbeddingModel  string
	CreatedAt       time.Time
	UpdatedAt       *time.Time
	DeletedAt       *time.Time
	IsDeleted       bool
}
