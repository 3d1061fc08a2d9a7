package service

import (
	"context"
	"time"

	"finverse-chatbot/internal/dto"
	"finverse-chatbot/internal/pkg/logger"
	"finverse-chatbot/internal/repository/memory"
	"finverse-chatbot/internal/repository/unitofwork"
)

// Pinger is satisfied by *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

type IHealthService interface {
	Check(ctx context.Context) *dto.HealthResponse
}

type healthService struct {
	db             Pinger
	uowFactory     unitofwork.RepositoryFactory
	sessionRepo    *memory.SessionRepository
	embeddingModel string
	logger         logger.ILogger
}

func NewHealthService(db Pinger, uowFactory unitofwork.RepositoryFactory, sessionRepo *memory.SessionRepository, embeddingModel string, logger logger.ILogger) IHealthService {
	return &healthService{
		db:             db,
		uowFactory:     uowFactory,
		sessionRepo:    sessionRepo,
		embeddingModel: embeddingModel,
		logger:         logger,
	}
}

// Check reports "degraded" rather than failing when the database is unreachable
func (s *healthService) Check(ctx context.Context) *dto.HealthResponse {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	res := &dto.HealthResponse{
		Status:         "healthy",
		Database:       "connected",
		EmbeddingModel: s.embeddingModel,
		ActiveSessions: s.sessionRepo.Count(),
	}

	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Warn("HEALTH", "Database ping failed", map[string]interface{}{"error": err.Error()})
		res.Status = "degraded"
		res.Database = "unreachable"
		return res
	}

	count, err := s.uowFactory.NewUnitOfWork(ctx).DocumentEmbeddingRepository().Count(ctx, s.embeddingModel)
	if err != nil {
		s.logger.Warn("HEALTH", "Embedding count failed", map[string]interface{}{"error": err.Error()})
		res.Status = "degraded"
		return res
	}
	res.IndexedDocuments = count
	return res
}
