package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"finverse-chatbot/internal/dto"
	"finverse-chatbot/internal/entity"
	"finverse-chatbot/internal/pkg/logger"
	"finverse-chatbot/internal/repository/contract"
	"finverse-chatbot/internal/repository/specification"
	"finverse-chatbot/internal/repository/unitofwork"
	"finverse-chatbot/pkg/embedding"
	"finverse-chatbot/pkg/rag/structured"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalogRepo struct {
	products     map[uuid.UUID]*entity.Product
	institutions map[uuid.UUID]*entity.Institution
}

func (r *fakeCatalogRepo) QueryRows(ctx context.Context, q *structured.CompiledQuery) ([]structured.Row, error) {
	return nil, nil
}

func (r *fakeCatalogRepo) ListInstitutionNames(ctx context.Context) ([]string, error) {
	var names []string
	for _, i := range r.institutions {
		names = append(names, i.Name)
	}
	return names, nil
}

func (r *fakeCatalogRepo) FindProduct(ctx context.Context, id uuid.UUID) (*entity.Product, error) {
	return r.products[id], nil
}

// FindProducts ignores specs except ByInstitutionID
func (r *fakeCatalogRepo) FindProducts(ctx context.Context, specs ...specification.Specification) ([]*entity.Product, error) {
	var out []*entity.Product
	for _, p := range r.products {
		keep := p.IsActive
		for _, s := range specs {
			if by, ok := s.(specification.ByInstitutionID); ok && p.InstitutionId != by.InstitutionID {
				keep = false
			}
		}
		if keep {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeCatalogRepo) FindInstitution(ctx context.Context, id uuid.UUID) (*entity.Institution, error) {
	return r.institutions[id], nil
}

func (r *fakeCatalogRepo) FindInstitutions(ctx context.Context) ([]*entity.Institution, error) {
	var out []*entity.Institution
	for _, i := range r.institutions {
		out = append(out, i)
	}
	return out, nil
}

type fakeEmbeddingRepo struct {
	mu      sync.Mutex
	rows    map[string][]*entity.DocumentEmbedding
	failAdd bool
}

func sourceKey(kind string, id uuid.UUID) string {
	return kind + ":" + id.String()
}

func (r *fakeEmbeddingRepo) CreateBulk(ctx context.Context, embeddings []*entity.DocumentEmbedding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAdd {
		return errors.New("insert failed")
	}
	for _, e := range embeddings {
		key := sourceKey(e.SourceType, e.SourceId)
		r.rows[key] = append(r.rows[key], e)
	}
	return nil
}

func (r *fakeEmbeddingRepo) DeleteBySource(ctx context.Context, sourceType string, sourceId uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, sourceKey(sourceType, sourceId))
	return nil
}

func (r *fakeEmbeddingRepo) Count(ctx context.Context, model string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, rows := range r.rows {
		n += int64(len(rows))
	}
	return n, nil
}

func (r *fakeEmbeddingRepo) SearchSimilarWithScore(ctx context.Context, emb []float32, limit int, filter contract.SimilarityFilter) ([]*contract.ScoredDocumentEmbedding, error) {
	return nil, nil
}

type fakeUnitOfWork struct {
	catalog    *fakeCatalogRepo
	embeddings *fakeEmbeddingRepo
	began      int
	committed  int
	rolledBack int
}

func (u *fakeUnitOfWork) Begin(ctx context.Context) error { u.began++; return nil }
func (u *fakeUnitOfWork) Commit() error                   { u.committed++; return nil }
func (u *fakeUnitOfWork) Rollback() error                 { u.rolledBack++; return nil }

func (u *fakeUnitOfWork) CatalogRepository() contract.CatalogRepository { return u.catalog }

func (u *fakeUnitOfWork) DocumentEmbeddingRepository() contract.DocumentEmbeddingRepository {
	return u.embeddings
}

type fakeFactory struct {
	uow *fakeUnitOfWork
}

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return f.uow
}

type fullEmbedder struct {
	err   error
	calls int
}

func (e *fullEmbedder) Generate(ctx context.Context, text string, taskType string) (*embedding.EmbeddingResponse, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return &embedding.EmbeddingResponse{Embedding: embedding.EmbeddingResponseEmbedding{Values: make([]float32, embedding.Dimensions)}}, nil
}

func (e *fullEmbedder) ModelVersion() string {
	return "fake/768"
}

type catalogFixture struct {
	uow         *fakeUnitOfWork
	institution *entity.Institution
	product     *entity.Product
}

func newCatalogFixture() *catalogFixture {
	rate := 3.5
	institution := &entity.Institution{Id: uuid.New(), Name: "First National Bank", CountryCode: "LK", IsActive: true}
	product := &entity.Product{
		Id:              uuid.New(),
		Name:            "High Yield Savings Account",
		Description:     "A savings account with a competitive rate.",
		Details:         entity.ProductDetails{InterestRate: &rate, Features: []string{"No monthly fee"}},
		IsActive:        true,
		InstitutionId:   institution.Id,
		InstitutionName: institution.Name,
		CategoryName:    "Savings",
	}
	return &catalogFixture{
		uow: &fakeUnitOfWork{
			catalog: &fakeCatalogRepo{
				products:     map[uuid.UUID]*entity.Product{product.Id: product},
				institutions: map[uuid.UUID]*entity.Institution{institution.Id: institution},
			},
			embeddings: &fakeEmbeddingRepo{rows: map[string][]*entity.DocumentEmbedding{}},
		},
		institution: institution,
		product:     product,
	}
}

func TestIndexProductReplacesEmbeddings(t *testing.T) {
	f := newCatalogFixture()
	svc := NewIndexerService(&fakeFactory{uow: f.uow}, &fullEmbedder{}, ChunkConfig{Size: 1500, Overlap: 200}, logger.NewNopLogger())

	n, err := svc.IndexProduct(context.Background(), f.product.Id)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// indexing twice must not duplicate chunks
	_, err = svc.IndexProduct(context.Background(), f.product.Id)
	require.NoError(t, err)

	rows := f.uow.embeddings.rows[sourceKey(entity.SourceTypeProduct, f.product.Id)]
	require.Len(t, rows, 1)
	assert.Equal(t, "fake/768", rows[0].EmbeddingModel)
	assert.Equal(t, f.institution.Id, *rows[0].InstitutionId)
	assert.Contains(t, rows[0].Document, "Interest rate: 3.5%")
	assert.Equal(t, 2, f.uow.committed)
	assert.Zero(t, f.uow.rolledBack)
}

func TestIndexInactiveProductRemovesEmbeddings(t *testing.T) {
	f := newCatalogFixture()
	svc := NewIndexerService(&fakeFactory{uow: f.uow}, &fullEmbedder{}, DefaultChunkConfig(), logger.NewNopLogger())

	_, err := svc.IndexProduct(context.Background(), f.product.Id)
	require.NoError(t, err)

	f.product.IsActive = false
	n, err := svc.IndexProduct(context.Background(), f.product.Id)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.uow.embeddings.rows[sourceKey(entity.SourceTypeProduct, f.product.Id)])
}

func TestIndexEmbeddingFailureLeavesOldRows(t *testing.T) {
	f := newCatalogFixture()
	embedder := &fullEmbedder{}
	svc := NewIndexerService(&fakeFactory{uow: f.uow}, embedder, DefaultChunkConfig(), logger.NewNopLogger())

	_, err := svc.IndexProduct(context.Background(), f.product.Id)
	require.NoError(t, err)

	embedder.err = errors.New("quota exceeded")
	_, err = svc.IndexProduct(context.Background(), f.product.Id)
	require.Error(t, err)
	assert.Len(t, f.uow.embeddings.rows[sourceKey(entity.SourceTypeProduct, f.product.Id)], 1)
}

func TestIndexCreateFailureRollsBack(t *testing.T) {
	f := newCatalogFixture()
	f.uow.embeddings.failAdd = true
	svc := NewIndexerService(&fakeFactory{uow: f.uow}, &fullEmbedder{}, DefaultChunkConfig(), logger.NewNopLogger())

	_, err := svc.IndexProduct(context.Background(), f.product.Id)
	require.Error(t, err)
	assert.Equal(t, 1, f.uow.rolledBack)
	assert.Zero(t, f.uow.committed)
}

func TestIndexAllCoversInstitutionsAndProducts(t *testing.T) {
	f := newCatalogFixture()
	svc := NewIndexerService(&fakeFactory{uow: f.uow}, &fullEmbedder{}, DefaultChunkConfig(), logger.NewNopLogger())

	report, err := svc.IndexAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Institutions)
	assert.Equal(t, 1, report.Products)
	assert.Equal(t, 2, report.Chunks)
	assert.Empty(t, report.Failed)

	profile := f.uow.embeddings.rows[sourceKey(entity.SourceTypeInstitution, f.institution.Id)]
	require.Len(t, profile, 1)
	assert.True(t, strings.Contains(profile[0].Document, "- High Yield Savings Account (Savings)"))
}

func TestIndexRejectsUnknownKind(t *testing.T) {
	f := newCatalogFixture()
	svc := NewIndexerService(&fakeFactory{uow: f.uow}, &fullEmbedder{}, DefaultChunkConfig(), logger.NewNopLogger())

	_, err := svc.Index(context.Background(), dto.IndexMessage{Kind: "notebook", Id: uuid.New()})
	assert.Error(t, err)
}
