package service

import (
	"context"
	"encoding/json"
	"fmt"

	"finverse-chatbot/internal/dto"
	"finverse-chatbot/internal/pkg/logger"
	"finverse-chatbot/internal/repository/specification"
	"finverse-chatbot/internal/repository/unitofwork"
	"finverse-chatbot/pkg/events"

	"github.com/google/uuid"
)

// IIngestService queues catalog records for asynchronous indexing
type IIngestService interface {
	QueueCatalog(ctx context.Context) (int, error)
	HandleCatalogEvent(ctx context.Context, event events.Event) error
}

type ingestService struct {
	uowFactory unitofwork.RepositoryFactory
	publisher  IPublisherService
	logger     logger.ILogger
}

func NewIngestService(uowFactory unitofwork.RepositoryFactory, publisher IPublisherService, logger logger.ILogger) IIngestService {
	return &ingestService{
		uowFactory: uowFactory,
		publisher:  publisher,
		logger:     logger,
	}
}

// QueueCatalog publishes one index message per active institution and product
// and returns how many were queued.
func (s *ingestService) QueueCatalog(ctx context.Context) (int, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	institutions, err := uow.CatalogRepository().FindInstitutions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list institutions: %w", err)
	}
	products, err := uow.CatalogRepository().FindProducts(ctx, specification.ActiveProducts{})
	if err != nil {
		return 0, fmt.Errorf("list products: %w", err)
	}

	queued := 0
	for _, i := range institutions {
		if err := s.queue(ctx, dto.IndexKindInstitution, i.Id); err != nil {
			return queued, err
		}
		queued++
	}
	for _, p := range products {
		if err := s.queue(ctx, dto.IndexKindProduct, p.Id); err != nil {
			return queued, err
		}
		queued++
	}

	s.logger.Info("INGEST", "Catalog queued for indexing", map[string]interface{}{
		"institutions": len(institutions),
		"products":     len(products),
	})
	return queued, nil
}

// HandleCatalogEvent re-indexes a product edited in the catalog API, and its
// institution profile whose product list may have changed.
func (s *ingestService) HandleCatalogEvent(ctx context.Context, event events.Event) error {
	raw, _ := event.Payload()["product_id"].(string)
	productId, err := uuid.Parse(raw)
	if err != nil {
		s.logger.Warn("INGEST", "Catalog event without a valid product_id", map[string]interface{}{
			"event": event.EventType(),
		})
		return nil
	}

	if err := s.queue(ctx, dto.IndexKindProduct, productId); err != nil {
		return err
	}

	if raw, ok := event.Payload()["institution_id"].(string); ok {
		if institutionId, err := uuid.Parse(raw); err == nil {
			return s.queue(ctx, dto.IndexKindInstitution, institutionId)
		}
	}
	return nil
}

func (s *ingestService) queue(ctx context.Context, kind string, id uuid.UUID) error {
	payload, err := json.Marshal(dto.IndexMessage{Kind: kind, Id: id})
	if err != nil {
		return err
	}
	if err := s.publisher.Publish(ctx, payload); err != nil {
		return fmt.Errorf("queue %s %s: %w", kind, id, err)
	}
	return nil
}
