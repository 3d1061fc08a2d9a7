package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type DocumentEmbedding struct {
	Id              uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SourceId        uuid.UUID       `gorm:"type:uuid;not null;index"`
	SourceType      string          `gorm:"type:varchar(50);not null;index"`
	SourceName      string          `gorm:"type:varchar(255)"`
	InstitutionId   *uuid.UUID      `gorm:"type:uuid;index"`
	InstitutionName string          `gorm:"type:varchar(255)"`
	ChunkIndex      int             `gorm:"default:0"`
	Document        string          `gorm:"type:text"`
	EmbeddingValue  pgvector.Vector `gorm:"type:vector(768)"`
	EmbeddingModel  string          `gorm:"type:varchar(100);not null;index"`
	CreatedAt       time.Time       `gorm:"autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime"`
	DeletedAt       gorm.DeletedAt  `gorm:"index"`
}

func (DocumentEmbedding) TableName() string {
	return "document_embeddings"
}
