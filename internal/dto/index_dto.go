package dto

import "github.com/google/uuid"

// Index message kinds
const (
	IndexKindProduct     = "product"
	IndexKindInstitution = "institution"
)

// IndexMessage asks the consumer to (re)build the embeddings of one catalog record
type IndexMessage struct {
	Kind string    `json:"kind"`
	Id   uuid.UUID `json:"id"`
}

// IndexReport summarises one indexing run
type IndexReport struct {
	Products     int      `json:"products"`
	Institutions int      `json:"institutions"`
	Chunks       int      `json:"chunks"`
	Failed       []string `json:"failed,omitempty"`
}
