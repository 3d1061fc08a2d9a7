package scope

import "gorm.io/gorm"

// ForEmbeddingModel keeps vectors produced by one embedding model. An empty
// model matches every row.
func ForEmbeddingModel(model string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if model == "" {
			return db
		}
		return db.Where("document_embeddings.embedding_model = ?", model)
	}
}

func OrderBySimilarityDesc(db *gorm.DB) *gorm.DB {
	return db.Order("similarity DESC")
}
