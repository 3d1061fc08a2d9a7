package implementation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finverse-chatbot/internal/entity"
	"finverse-chatbot/internal/mapper"
	"finverse-chatbot/internal/model"
	"finverse-chatbot/internal/pkg/logger"
	"finverse-chatbot/internal/repository/contract"
	"finverse-chatbot/internal/repository/specification"
	"finverse-chatbot/pkg/rag/structured"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CatalogRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ProductMapper
}

func NewCatalogRepository(db *gorm.DB, logger logger.ILogger) contract.CatalogRepository {
	return &CatalogRepositoryImpl{
		db:     db,
		mapper: mapper.NewProductMapper(logger),
	}
}

func (r *CatalogRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

// QueryRows runs the compiled query in its own READ ONLY transaction so the
// structured path can never write, whatever the plan contained.
func (r *CatalogRepositoryImpl) QueryRows(ctx context.Context, q *structured.CompiledQuery) ([]structured.Row, error) {
	if q == nil || q.From == "" || len(q.Select) == 0 {
		return nil, fmt.Errorf("empty compiled query")
	}

	var rows []map[string]interface{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SET TRANSACTION READ ONLY").Error; err != nil {
			return err
		}

		query := tx.Table(q.From).Select(strings.Join(q.Select, ", "))
		for _, clause := range q.Where {
			query = query.Where(clause.SQL, clause.Args...)
		}
		if q.Order != "" {
			query = query.Order(q.Order)
		}
		if q.Limit > 0 {
			query = query.Limit(q.Limit)
		}
		return query.Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}

	result := make([]structured.Row, len(rows))
	for i, row := range rows {
		for k, v := range row {
			switch val := v.(type) {
			case []byte:
				row[k] = string(val)
			case [16]byte:
				row[k] = uuid.UUID(val).String()
			}
		}
		result[i] = structured.Row(row)
	}
	return result, nil
}

func (r *CatalogRepositoryImpl) ListInstitutionNames(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&model.Institution{}).
		Where("is_active = ?", true).
		Order("name ASC").
		Pluck("name", &names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (r *CatalogRepositoryImpl) FindProduct(ctx context.Context, id uuid.UUID) (*entity.Product, error) {
	var m model.Product
	err := r.db.WithContext(ctx).
		Preload("Institution").
		Preload("ProductType.Category").
		Where("products.id = ?", id).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *CatalogRepositoryImpl) FindProducts(ctx context.Context, specs ...specification.Specification) ([]*entity.Product, error) {
	var models []*model.Product
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Product{}), specs...)
	err := query.
		Preload("Institution").
		Preload("ProductType.Category").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *CatalogRepositoryImpl) FindInstitution(ctx context.Context, id uuid.UUID) (*entity.Institution, error) {
	var m model.Institution
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.InstitutionToEntity(&m), nil
}

func (r *CatalogRepositoryImpl) FindInstitutions(ctx context.Context) ([]*entity.Institution, error) {
	var models []*model.Institution
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	entities := make([]*entity.Institution, len(models))
	for i, m := range models {
		entities[i] = r.mapper.InstitutionToEntity(m)
	}
	return entities, nil
}
