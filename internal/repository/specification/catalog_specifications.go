package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActiveProducts keeps only products that are listed
type ActiveProducts struct{}

func (s ActiveProducts) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("products.is_active = ?", true)
}

// ByInstitutionID filters products offered by one institution
type ByInstitutionID struct {
	InstitutionID uuid.UUID
}

func (s ByInstitutionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("products.institution_id = ?", s.InstitutionID)
}

// ByProductTypeID filters products of one product type
type ByProductTypeID struct {
	ProductTypeID uuid.UUID
}

func (s ByProductTypeID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("products.product_type_id = ?", s.ProductTypeID)
}

// ExcludeProductID drops one product from the result
type ExcludeProductID struct {
	ProductID uuid.UUID
}

func (s ExcludeProductID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("products.id <> ?", s.ProductID)
}
