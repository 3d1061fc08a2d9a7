package unitofwork

import (
	"context"

	"finverse-chatbot/internal/pkg/logger"

	"gorm.io/gorm"
)

type RepositoryFactoryImpl struct {
	db     *gorm.DB
	logger logger.ILogger
}

func NewRepositoryFactory(db *gorm.DB, logger logger.ILogger) RepositoryFactory {
	return &RepositoryFactoryImpl{
		db:     db,
		logger: logger,
	}
}

// NewUnitOfWork is short lived, one per request or ingest batch
func (f *RepositoryFactoryImpl) NewUnitOfWork(ctx context.Context) UnitOfWork {
	return NewUnitOfWork(f.db, f.logger)
}
