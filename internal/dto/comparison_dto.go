package dto

import (
	"fmt"

	"github.com/google/uuid"
)

// CompareProductsRequest accepts snake_case and camelCase ids like the chat routes do
type CompareProductsRequest struct {
	ProductIds       []string `json:"product_ids"`
	ProductIdsAlt    []string `json:"productIds"`
	ComparisonFields []string `json:"comparison_fields"`
	ConversationId   string   `json:"conversation_id"`
	SessionId        string   `json:"sessionId"`
}

type CompareInput struct {
	ProductIds     []uuid.UUID `validate:"min=2,max=10"`
	Fields         []string    `validate:"max=20"`
	ConversationId string      `validate:"max=128"`
}

// Normalize parses and deduplicates the product ids, keeping request order
func (r CompareProductsRequest) Normalize() (CompareInput, error) {
	raw := r.ProductIds
	if len(raw) == 0 {
		raw = r.ProductIdsAlt
	}

	in := CompareInput{
		Fields:         r.ComparisonFields,
		ConversationId: firstNonEmpty(r.ConversationId, r.SessionId),
	}
	seen := make(map[uuid.UUID]bool, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return in, fmt.Errorf("invalid product id %q", s)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		in.ProductIds = append(in.ProductIds, id)
	}
	return in, nil
}

type ComparedProduct struct {
	Id          string `json:"id"`
	Name        string `json:"name"`
	Institution string `json:"institution"`
	ProductType string `json:"product_type,omitempty"`
	Category    string `json:"category,omitempty"`
}

// ComparisonField is one row of the comparison table. Values are keyed by product id.
type ComparisonField struct {
	FieldName  string                 `json:"field_name"`
	FieldLabel string                 `json:"field_label"`
	Values     map[string]interface{} `json:"values"`
	BestOption string                 `json:"best_option,omitempty"`
	Notes      string                 `json:"notes,omitempty"`
}

type BestProduct struct {
	ProductId     string      `json:"product_id"`
	ProductName   string      `json:"product_name"`
	Institution   string      `json:"institution"`
	Wins          int         `json:"wins,omitempty"`
	TotalCriteria int         `json:"total_criteria,omitempty"`
	Value         interface{} `json:"value,omitempty"`
}

type KeyDifference struct {
	Field                string  `json:"field"`
	Label                string  `json:"label"`
	MinValue             float64 `json:"min_value"`
	MaxValue             float64 `json:"max_value"`
	DifferencePercentage float64 `json:"difference_percentage"`
}

type ComparisonSummary struct {
	TotalProducts           int                    `json:"total_products"`
	InstitutionsRepresented int                    `json:"institutions_represented"`
	ProductTypes            []string               `json:"product_types"`
	OverallBest             *BestProduct           `json:"overall_best,omitempty"`
	Recommendations         map[string]BestProduct `json:"recommendations"`
	KeyDifferences          []KeyDifference        `json:"key_differences"`
}

type ComparisonTable struct {
	Fields  []ComparisonField `json:"comparison_fields"`
	Summary ComparisonSummary `json:"summary"`
}

type ComparisonResponse struct {
	Status         string            `json:"status"`
	ComparisonId   string            `json:"comparison_id"`
	ConversationId string            `json:"conversation_id,omitempty"`
	Summary        string            `json:"summary"`
	Comparison     ComparisonTable   `json:"comparison"`
	Products       []ComparedProduct `json:"products"`
	Cached         bool              `json:"cached"`
}
