package stats

import (
	"sync/atomic"

	"finverse-chatbot/pkg/rag/intent"
)

// QueryStats is a point-in-time copy of the counters
type QueryStats struct {
	Total       int64 `json:"total_queries"`
	SQL         int64 `json:"sql_queries"`
	Vector      int64 `json:"vector_queries"`
	Hybrid      int64 `json:"hybrid_queries"`
	Unsupported int64 `json:"unsupported_queries"`
	Errors      int64 `json:"errors"`
}

// Aggregator counts processed queries since start-up.
// Counters only grow; concurrent increments are never lost.
type Aggregator struct {
	total       atomic.Int64
	sql         atomic.Int64
	vector      atomic.Int64
	hybrid      atomic.Int64
	unsupported atomic.Int64
	errors      atomic.Int64
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Increment records one processed query of type t
func (a *Aggregator) Increment(t intent.QueryType) {
	switch t {
	case intent.QueryTypeSQL:
		a.sql.Add(1)
	case intent.QueryTypeVector:
		a.vector.Add(1)
	case intent.QueryTypeHybrid:
		a.hybrid.Add(1)
	case intent.QueryTypeUnsupported:
		a.unsupported.Add(1)
	}
	a.total.Add(1)
}

// IncrementErrors records a request whose pipeline failed
func (a *Aggregator) IncrementErrors() {
	a.errors.Add(1)
}

func (a *Aggregator) Snapshot() QueryStats {
	return QueryStats{
		Total:       a.total.Load(),
		SQL:         a.sql.Load(),
		Vector:      a.vector.Load(),
		Hybrid:      a.hybrid.Load(),
		Unsupported: a.unsupported.Load(),
		Errors:      a.errors.Load(),
	}
}
