package service

import (
	"context"
	"fmt"
	"time"

	"finverse-chatbot/internal/dto"
	"finverse-chatbot/internal/entity"
	"finverse-chatbot/internal/pkg/logger"
	"finverse-chatbot/internal/repository/specification"
	"finverse-chatbot/internal/repository/unitofwork"
	"finverse-chatbot/pkg/embedding"
	"finverse-chatbot/pkg/utils"

	"github.com/google/uuid"
)

// IIndexerService builds the document embeddings searched by the semantic retriever
type IIndexerService interface {
	Index(ctx context.Context, msg dto.IndexMessage) (int, error)
	IndexProduct(ctx context.Context, productId uuid.UUID) (int, error)
	IndexInstitution(ctx context.Context, institutionId uuid.UUID) (int, error)
	IndexAll(ctx context.Context) (*dto.IndexReport, error)
}

type ChunkConfig struct {
	Size    int
	Overlap int
}

// ChunkSize 1500 chars is roughly 375 tokens, well inside embedding model limits
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{Size: 1500, Overlap: 200}
}

type indexerService struct {
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
	chunks            ChunkConfig
	logger            logger.ILogger
}

func NewIndexerService(
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
	chunks ChunkConfig,
	logger logger.ILogger,
) IIndexerService {
	if chunks.Size <= 0 {
		chunks = DefaultChunkConfig()
	}
	return &indexerService{
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
		chunks:            chunks,
		logger:            logger,
	}
}

func (s *indexerService) Index(ctx context.Context, msg dto.IndexMessage) (int, error) {
	switch msg.Kind {
	case dto.IndexKindProduct:
		return s.IndexProduct(ctx, msg.Id)
	case dto.IndexKindInstitution:
		return s.IndexInstitution(ctx, msg.Id)
	default:
		return 0, fmt.Errorf("unknown index kind %q", msg.Kind)
	}
}

// IndexProduct replaces the embeddings of one product. A missing or inactive
// product only has its old embeddings removed.
func (s *indexerService) IndexProduct(ctx context.Context, productId uuid.UUID) (int, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	product, err := uow.CatalogRepository().FindProduct(ctx, productId)
	if err != nil {
		return 0, fmt.Errorf("load product %s: %w", productId, err)
	}
	if product == nil || !product.IsActive {
		s.logger.Info("INDEXER", "Product gone, removing embeddings", map[string]interface{}{"product_id": productId.String()})
		return 0, uow.DocumentEmbeddingRepository().DeleteBySource(ctx, entity.SourceTypeProduct, productId)
	}

	institutionId := product.InstitutionId
	return s.replace(ctx, uow, source{
		id:              product.Id,
		kind:            entity.SourceTypeProduct,
		name:            product.Name,
		institutionId:   &institutionId,
		institutionName: product.InstitutionName,
		document:        productDocument(product),
	})
}

func (s *indexerService) IndexInstitution(ctx context.Context, institutionId uuid.UUID) (int, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	institution, err := uow.CatalogRepository().FindInstitution(ctx, institutionId)
	if err != nil {
		return 0, fmt.Errorf("load institution %s: %w", institutionId, err)
	}
	if institution == nil || !institution.IsActive {
		return 0, uow.DocumentEmbeddingRepository().DeleteBySource(ctx, entity.SourceTypeInstitution, institutionId)
	}

	products, err := uow.CatalogRepository().FindProducts(ctx,
		specification.ActiveProducts{},
		specification.ByInstitutionID{InstitutionID: institutionId},
		specification.OrderBy{Field: "products.name"},
	)
	if err != nil {
		return 0, fmt.Errorf("load products of institution %s: %w", institutionId, err)
	}

	id := institution.Id
	return s.replace(ctx, uow, source{
		id:              institution.Id,
		kind:            entity.SourceTypeInstitution,
		name:            institution.Name,
		institutionId:   &id,
		institutionName: institution.Name,
		document:        institutionDocument(institution, products),
	})
}

// IndexAll re-indexes every active institution and product. Individual
// failures are recorded in the report and do not stop the run.
func (s *indexerService) IndexAll(ctx context.Context) (*dto.IndexReport, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	report := &dto.IndexReport{}

	institutions, err := uow.CatalogRepository().FindInstitutions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list institutions: %w", err)
	}
	products, err := uow.CatalogRepository().FindProducts(ctx, specification.ActiveProducts{})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	for _, institution := range institutions {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		n, err := s.IndexInstitution(ctx, institution.Id)
		if err != nil {
			report.Failed = append(report.Failed, institution.Name)
			s.logger.Error("INDEXER", "Institution indexing failed", map[string]interface{}{"institution": institution.Name, "error": err.Error()})
			continue
		}
		report.Institutions++
		report.Chunks += n
	}

	for _, product := range products {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		n, err := s.IndexProduct(ctx, product.Id)
		if err != nil {
			report.Failed = append(report.Failed, product.Name)
			s.logger.Error("INDEXER", "Product indexing failed", map[string]interface{}{"product": product.Name, "error": err.Error()})
			continue
		}
		report.Products++
		report.Chunks += n
	}

	s.logger.Info("INDEXER", "Catalog indexed", map[string]interface{}{
		"institutions": report.Institutions,
		"products":     report.Products,
		"chunks":       report.Chunks,
		"failed":       len(report.Failed),
		"model":        s.embeddingProvider.ModelVersion(),
	})
	return report, nil
}

type source struct {
	id              uuid.UUID
	kind            string
	name            string
	institutionId   *uuid.UUID
	institutionName string
	document        string
}

// replace embeds every chunk first, then swaps old and new rows in one transaction
func (s *indexerService) replace(ctx context.Context, uow unitofwork.UnitOfWork, src source) (int, error) {
	chunks := utils.SplitText(src.document, s.chunks.Size, s.chunks.Overlap)
	model := s.embeddingProvider.ModelVersion()

	embeddings := make([]*entity.DocumentEmbedding, 0, len(chunks))
	for i, chunk := range chunks {
		res, err := s.embeddingProvider.Generate(ctx, chunk, embedding.TaskRetrievalDocument)
		if err != nil {
			return 0, fmt.Errorf("embed chunk %d of %s %s: %w", i, src.kind, src.id, err)
		}
		if len(res.Embedding.Values) != embedding.Dimensions {
			return 0, fmt.Errorf("embedding of %s %s has %d dimensions, want %d", src.kind, src.id, len(res.Embedding.Values), embedding.Dimensions)
		}

		embeddings = append(embeddings, &entity.DocumentEmbedding{
			Id:              uuid.New(),
			SourceId:        src.id,
			SourceType:      src.kind,
			SourceName:      src.name,
			InstitutionId:   src.institutionId,
			InstitutionName: src.institutionName,
			ChunkIndex:      i,
			Document:        chunk,
			EmbeddingValue:  res.Embedding.Values,
			EmbeddingModel:  model,
			CreatedAt:       time.Now(),
		})
	}

	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = uow.Rollback()
		}
	}()

	if err := uow.DocumentEmbeddingRepository().DeleteBySource(ctx, src.kind, src.id); err != nil {
		return 0, fmt.Errorf("delete old embeddings: %w", err)
	}
	if err := uow.DocumentEmbeddingRepository().CreateBulk(ctx, embeddings); err != nil {
		return 0, fmt.Errorf("create embeddings: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("commit embeddings: %w", err)
	}
	committed = true

	s.logger.Debug("INDEXER", "Source indexed", map[string]interface{}{
		"source_type": src.kind,
		"source_id":   src.id.String(),
		"chunks":      len(embeddings),
	})
	return len(embeddings), nil
}
