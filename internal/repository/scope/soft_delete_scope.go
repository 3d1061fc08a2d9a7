package scope

import "gorm.io/gorm"

// LiveEmbeddings excludes soft deleted chunks from raw table queries,
// which bypass GORM's model-level soft delete handling
func LiveEmbeddings(db *gorm.DB) *gorm.DB {
	return db.Where("document_embeddings.deleted_at IS NULL")
}
