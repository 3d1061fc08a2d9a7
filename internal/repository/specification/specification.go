package specification

import "gorm.io/gorm"

// Specification narrows a catalog query. Implementations reference columns
// with their table name since product queries join institutions and types.
type Specification interface {
	Apply(db *gorm.DB) *gorm.DB
}
