package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"finverse-chatbot/internal/pkg/logger"
	"finverse-chatbot/internal/repository/contract"
	"finverse-chatbot/pkg/embedding"

	"github.com/google/uuid"
)

// ErrSemanticDegraded means the query could not be embedded; callers continue without passages
var ErrSemanticDegraded = errors.New("semantic search degraded")

// RetrievedPassage is one ranked chunk with enough source metadata for citation
type RetrievedPassage struct {
	SourceID        string
	SourceType      string
	SourceName      string
	InstitutionName string
	Score           float64
	Text            string
}

// Scope narrows the search to one product and its institution
type Scope struct {
	ProductID     *uuid.UUID
	InstitutionID *uuid.UUID
}

// Index is the nearest-neighbour store over document embeddings
type Index interface {
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, filter contract.SimilarityFilter) ([]*contract.ScoredDocumentEmbedding, error)
}

// Config encapsulates search parameters
type Config struct {
	TopK          int
	MinSimilarity float64
	// CandidateFactor over-fetches chunks so deduplication by source still fills TopK
	CandidateFactor int
}

// DefaultConfig returns default search configuration
func DefaultConfig() Config {
	return Config{
		TopK:            5,
		MinSimilarity:   0.35,
		CandidateFactor: 3,
	}
}

// Orchestrator handles vector search and candidate filtering
type Orchestrator struct {
	embeddingProvider embedding.EmbeddingProvider
	index             Index
	config            Config
	logger            logger.ILogger
}

// NewOrchestrator creates a new search orchestrator
func NewOrchestrator(embeddingProvider embedding.EmbeddingProvider, index Index, config Config, logger logger.ILogger) *Orchestrator {
	if config.TopK <= 0 {
		config.TopK = DefaultConfig().TopK
	}
	if config.CandidateFactor <= 0 {
		config.CandidateFactor = 1
	}
	return &Orchestrator{
		embeddingProvider: embeddingProvider,
		index:             index,
		config:            config,
		logger:            logger,
	}
}

// Search embeds query and returns up to topK passages by descending score.
// topK <= 0 uses the configured default.
func (o *Orchestrator) Search(ctx context.Context, query string, topK int, scope Scope) ([]RetrievedPassage, error) {
	if topK <= 0 {
		topK = o.config.TopK
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []RetrievedPassage{}, nil
	}

	embeddingRes, err := o.embeddingProvider.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		o.logger.Warn("SEARCH", "Embedding generation failed", map[string]interface{}{
			"error": err.Error(),
		})
		return []RetrievedPassage{}, fmt.Errorf("%w: %v", ErrSemanticDegraded, err)
	}

	filter := contract.SimilarityFilter{
		Model:         o.embeddingProvider.ModelVersion(),
		Threshold:     o.config.MinSimilarity,
		ProductID:     scope.ProductID,
		InstitutionID: scope.InstitutionID,
	}

	scored, err := o.index.SearchSimilarWithScore(ctx, embeddingRes.Embedding.Values, topK*o.config.CandidateFactor, filter)
	if err != nil {
		o.logger.Error("SEARCH", "Vector search failed", map[string]interface{}{
			"error": err.Error(),
		})
		return []RetrievedPassage{}, fmt.Errorf("vector search: %w", err)
	}

	passages := o.filterAndDeduplicate(scored, topK)

	o.logger.Debug("SEARCH", "Semantic search completed", map[string]interface{}{
		"raw":    len(scored),
		"kept":   len(passages),
		"model":  filter.Model,
		"scoped": scope.ProductID != nil || scope.InstitutionID != nil,
		"top_k":  topK,
	})

	return passages, nil
}

// filterAndDeduplicate keeps the best chunk per source above the threshold
func (o *Orchestrator) filterAndDeduplicate(results []*contract.ScoredDocumentEmbedding, topK int) []RetrievedPassage {
	ranked := make([]*contract.ScoredDocumentEmbedding, 0, len(results))
	for _, res := range results {
		if res != nil && res.Embedding != nil {
			ranked = append(ranked, res)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Similarity > ranked[j].Similarity
	})

	passages := make([]RetrievedPassage, 0, topK)
	seen := make(map[string]bool)

	for _, res := range ranked {
		if res.Similarity < o.config.MinSimilarity {
			continue
		}
		key := res.Embedding.SourceType + ":" + res.Embedding.SourceId.String()
		if seen[key] {
			continue
		}
		seen[key] = true

		passages = append(passages, RetrievedPassage{
			SourceID:        res.Embedding.SourceId.String(),
			SourceType:      res.Embedding.SourceType,
			SourceName:      res.Embedding.SourceName,
			InstitutionName: res.Embedding.InstitutionName,
			Score:           res.Similarity,
			Text:            res.Embedding.Document,
		})
		if len(passages) == topK {
			break
		}
	}

	return passages
}
