package structured

import (
	"context"
	"fmt"

	"finverse-chatbot/internal/pkg/logger"
	"finverse-chatbot/pkg/catalog"
)

// Row is one catalog record keyed by logical field name
type Row map[string]interface{}

// RowQuerier executes compiled queries against the catalog store
type RowQuerier interface {
	QueryRows(ctx context.Context, q *CompiledQuery) ([]Row, error)
}

// Result holds the rows of one structured retrieval
type Result struct {
	Plan      *Plan
	Rows      []Row
	Truncated bool
}

// Retriever validates, compiles and executes structured plans
type Retriever struct {
	schema    *catalog.SchemaDescriptor
	querier   RowQuerier
	resultCap int
	logger    logger.ILogger
}

func NewRetriever(schema *catalog.SchemaDescriptor, querier RowQuerier, resultCap int, logger logger.ILogger) *Retriever {
	if resultCap <= 0 {
		resultCap = DefaultResultCap
	}
	return &Retriever{
		schema:    schema,
		querier:   querier,
		resultCap: resultCap,
		logger:    logger,
	}
}

// Retrieve runs plan. An invalid plan is rejected with ErrInvalidPlan before any query is issued.
func (r *Retriever) Retrieve(ctx context.Context, plan *Plan) (*Result, error) {
	q, err := Compile(plan, r.schema, r.resultCap)
	if err != nil {
		r.logger.Warn("STRUCTURED", "Plan rejected", map[string]interface{}{"error": err.Error()})
		return &Result{Plan: plan}, err
	}

	// one extra row tells us whether the cap cut anything off
	limit := q.Limit
	q.Limit = limit + 1

	rows, err := r.querier.QueryRows(ctx, q)
	if err != nil {
		return &Result{Plan: plan}, fmt.Errorf("structured query: %w", err)
	}

	result := &Result{Plan: plan, Rows: rows}
	if len(rows) > limit {
		result.Rows = rows[:limit]
		result.Truncated = true
	}

	r.logger.Debug("STRUCTURED", "Rows retrieved", map[string]interface{}{
		"table":     plan.TargetTable,
		"filters":   len(plan.Filters),
		"rows":      len(result.Rows),
		"truncated": result.Truncated,
	})
	return result, nil
}
