package contract

import (
	"context"

	"finverse-chatbot/internal/entity"
	"finverse-chatbot/internal/repository/specification"
	"finverse-chatbot/pkg/rag/structured"

	"github.com/google/uuid"
)

// CatalogRepository is read-only access to institutions and products
type CatalogRepository interface {
	// QueryRows executes a compiled structured query inside a read-only transaction
	QueryRows(ctx context.Context, query *structured.CompiledQuery) ([]structured.Row, error)
	ListInstitutionNames(ctx context.Context) ([]string, error)
	FindProduct(ctx context.Context, id uuid.UUID) (*entity.Product, error)
	FindProducts(ctx context.Context, specs ...specification.Specification) ([]*entity.Product, error)
	FindInstitution(ctx context.Context, id uuid.UUID) (*entity.Institution, error)
	FindInstitutions(ctx context.Context) ([]*entity.Institution, error)
}
