package mapper

import (
	"encoding/json"
	"time"

	"finverse-chatbot/internal/entity"
	"finverse-chatbot/internal/model"
	"finverse-chatbot/internal/pkg/logger"
)

type ProductMapper struct {
	logger logger.ILogger
}

func NewProductMapper(logger logger.ILogger) *ProductMapper {
	return &ProductMapper{logger: logger}
}

// ToEntity flattens the product with its institution, type and category names.
// Malformed details are logged and yield an empty attribute set.
func (m *ProductMapper) ToEntity(p *model.Product) *entity.Product {
	if p == nil {
		return nil
	}

	var details entity.ProductDetails
	if len(p.Details) > 0 {
		if err := json.Unmarshal(p.Details, &details); err != nil {
			details = entity.ProductDetails{}
			m.logger.Error("MAPPER", "Malformed product details", map[string]interface{}{
				"product_id": p.Id.String(),
				"error":      err.Error(),
			})
		}
	}

	var updatedAt *time.Time
	if !p.UpdatedAt.IsZero() {
		t := p.UpdatedAt
		updatedAt = &t
	}

	e := &entity.Product{
		Id:            p.Id,
		Name:          p.Name,
		Slug:          p.Slug,
		Description:   p.Description,
		Details:       details,
		IsFeatured:    p.IsFeatured,
		IsActive:      p.IsActive,
		InstitutionId: p.InstitutionId,
		ProductTypeId: p.ProductTypeId,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     updatedAt,
	}
	if p.Institution != nil {
		e.InstitutionName = p.Institution.Name
	}
	if p.ProductType != nil {
		e.ProductTypeName = p.ProductType.Name
		if p.ProductType.Category != nil {
			e.CategoryName = p.ProductType.Category.Name
		}
	}
	return e
}

func (m *ProductMapper) ToEntities(products []*model.Product) []*entity.Product {
	entities := make([]*entity.Product, len(products))
	for i, p := range products {
		entities[i] = m.ToEntity(p)
	}
	return entities
}

func (m *ProductMapper) InstitutionToEntity(i *model.Institution) *entity.Institution {
	if i == nil {
		return nil
	}
	return &entity.Institution{
		Id:            i.Id,
		Name:          i.Name,
		Slug:          i.Slug,
		LicenseNumber: i.LicenseNumber,
		CountryCode:   i.CountryCode,
		IsActive:      i.IsActive,
	}
}
