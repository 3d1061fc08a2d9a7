package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finverse-chatbot/internal/pkg/logger"
	"finverse-chatbot/pkg/rag/intent"
	"finverse-chatbot/pkg/rag/search"
	"finverse-chatbot/pkg/rag/structured"

	"golang.org/x/sync/errgroup"
)

// ErrRetrievalTimeout marks a branch that exceeded its timeout; it contributes no results
var ErrRetrievalTimeout = errors.New("retrieval branch timed out")

// StructuredRetriever runs validated plans against the catalog
type StructuredRetriever interface {
	Retrieve(ctx context.Context, plan *structured.Plan) (*structured.Result, error)
}

// SemanticRetriever runs nearest-neighbour search over indexed documents
type SemanticRetriever interface {
	Search(ctx context.Context, query string, topK int, scope search.Scope) ([]search.RetrievedPassage, error)
}

// Retrieval is everything gathered for one request
type Retrieval struct {
	Plan          *structured.Plan
	Rows          []structured.Row
	Truncated     bool
	Passages      []search.RetrievedPassage
	StructuredErr error
	SemanticErr   error
	// Fallback is set when a sql route found nothing and passages were fetched instead
	Fallback bool
}

// Degraded reports whether any branch failed
func (r Retrieval) Degraded() bool {
	return r.StructuredErr != nil || r.SemanticErr != nil
}

type Config struct {
	SQLTimeout       time.Duration
	SemanticTimeout  time.Duration
	TopK             int
	SemanticFallback bool
}

func DefaultConfig() Config {
	return Config{
		SQLTimeout:       3 * time.Second,
		SemanticTimeout:  5 * time.Second,
		TopK:             5,
		SemanticFallback: true,
	}
}

// HybridExecutor fans retrieval out to the branches a classification needs
type HybridExecutor struct {
	structured StructuredRetriever
	semantic   SemanticRetriever
	config     Config
	logger     logger.ILogger
}

func NewHybridExecutor(structuredRetriever StructuredRetriever, semanticRetriever SemanticRetriever, config Config, logger logger.ILogger) *HybridExecutor {
	defaults := DefaultConfig()
	if config.SQLTimeout <= 0 {
		config.SQLTimeout = defaults.SQLTimeout
	}
	if config.SemanticTimeout <= 0 {
		config.SemanticTimeout = defaults.SemanticTimeout
	}
	if config.TopK <= 0 {
		config.TopK = defaults.TopK
	}
	return &HybridExecutor{
		structured: structuredRetriever,
		semantic:   semanticRetriever,
		config:     config,
		logger:     logger,
	}
}

// Execute never fails: branch errors are recorded on the Retrieval and the
// branch contributes an empty result.
func (e *HybridExecutor) Execute(ctx context.Context, classification intent.Classification, plan *structured.Plan, query string, scope search.Scope) Retrieval {
	out := Retrieval{
		Plan:     plan,
		Rows:     []structured.Row{},
		Passages: []search.RetrievedPassage{},
	}

	semanticQuery := classification.SemanticHint
	if semanticQuery == "" {
		semanticQuery = query
	}

	start := time.Now()

	switch classification.Type {
	case intent.QueryTypeSQL:
		e.runStructured(ctx, plan, &out)
		if e.config.SemanticFallback && len(out.Rows) == 0 && e.semantic != nil {
			e.runSemantic(ctx, semanticQuery, scope, &out)
			out.Fallback = true
		}

	case intent.QueryTypeVector:
		e.runSemantic(ctx, semanticQuery, scope, &out)

	case intent.QueryTypeHybrid:
		// branches write disjoint fields of their own copies, merged after Wait
		var structuredOut, semanticOut Retrieval
		var g errgroup.Group
		g.Go(func() error {
			e.runStructured(ctx, plan, &structuredOut)
			return nil
		})
		g.Go(func() error {
			e.runSemantic(ctx, semanticQuery, scope, &semanticOut)
			return nil
		})
		_ = g.Wait()

		if structuredOut.Rows != nil {
			out.Rows = structuredOut.Rows
		}
		out.Truncated = structuredOut.Truncated
		out.StructuredErr = structuredOut.StructuredErr
		if semanticOut.Passages != nil {
			out.Passages = semanticOut.Passages
		}
		out.SemanticErr = semanticOut.SemanticErr

	default:
		return out
	}

	e.logger.Info("EXECUTOR", "Retrieval completed", map[string]interface{}{
		"query_type":  string(classification.Type),
		"rows":        len(out.Rows),
		"passages":    len(out.Passages),
		"degraded":    out.Degraded(),
		"fallback":    out.Fallback,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return out
}

func (e *HybridExecutor) runStructured(ctx context.Context, plan *structured.Plan, out *Retrieval) {
	if e.structured == nil || plan == nil {
		out.StructuredErr = fmt.Errorf("%w: no plan for structured route", structured.ErrInvalidPlan)
		e.logger.Warn("EXECUTOR", "Structured branch skipped", map[string]interface{}{"error": out.StructuredErr.Error()})
		return
	}

	branchCtx, cancel := context.WithTimeout(ctx, e.config.SQLTimeout)
	defer cancel()

	result, err := await(branchCtx, func(ctx context.Context) (*structured.Result, error) {
		return e.structured.Retrieve(ctx, plan)
	})
	if err != nil {
		out.StructuredErr = e.branchError(branchCtx, err)
		e.logger.Warn("EXECUTOR", "Structured branch returned no context", map[string]interface{}{"error": out.StructuredErr.Error()})
		return
	}
	if result != nil {
		if result.Rows != nil {
			out.Rows = result.Rows
		}
		out.Truncated = result.Truncated
	}
}

func (e *HybridExecutor) runSemantic(ctx context.Context, query string, scope search.Scope, out *Retrieval) {
	if e.semantic == nil {
		return
	}

	branchCtx, cancel := context.WithTimeout(ctx, e.config.SemanticTimeout)
	defer cancel()

	passages, err := await(branchCtx, func(ctx context.Context) ([]search.RetrievedPassage, error) {
		return e.semantic.Search(ctx, query, e.config.TopK, scope)
	})
	if err != nil {
		out.SemanticErr = e.branchError(branchCtx, err)
		e.logger.Warn("EXECUTOR", "Semantic branch returned no context", map[string]interface{}{"error": out.SemanticErr.Error()})
		return
	}
	if passages != nil {
		out.Passages = passages
	}
}

type outcome[T any] struct {
	value T
	err   error
}

// await returns when call does or when ctx ends, whichever comes first.
// A call that ignores ctx keeps running, but its late result is dropped.
func await[T any](ctx context.Context, call func(context.Context) (T, error)) (T, error) {
	done := make(chan outcome[T], 1)
	go func() {
		v, err := call(ctx)
		done <- outcome[T]{value: v, err: err}
	}()

	select {
	case o := <-done:
		return o.value, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (e *HybridExecutor) branchError(branchCtx context.Context, err error) error {
	if errors.Is(branchCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrRetrievalTimeout, err)
	}
	return err
}
