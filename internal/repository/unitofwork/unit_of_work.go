package unitofwork

import (
	"context"

	"finverse-chatbot/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	CatalogRepository() contract.CatalogRepository
	DocumentEmbeddingRepository() contract.DocumentEmbeddingRepository
}
