package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"finverse-chatbot/internal/pkg/logger"
	"finverse-chatbot/pkg/catalog"
	"finverse-chatbot/pkg/llm"
	"finverse-chatbot/pkg/rag/structured"
	"finverse-chatbot/pkg/store"
)

// ErrClassificationDegraded marks a model-assisted classification that fell back to rules
var ErrClassificationDegraded = errors.New("classification degraded to rule-based result")

// QueryType is the retrieval route chosen for a message
type QueryType string

const (
	QueryTypeSQL         QueryType = "sql"
	QueryTypeVector      QueryType = "vector"
	QueryTypeHybrid      QueryType = "hybrid"
	QueryTypeUnsupported QueryType = "unsupported"
)

func (t QueryType) Valid() bool {
	switch t {
	case QueryTypeSQL, QueryTypeVector, QueryTypeHybrid, QueryTypeUnsupported:
		return true
	}
	return false
}

// Classification is the routing decision for one message
type Classification struct {
	Type           QueryType
	Signals        structured.Signals
	StructuredHint *structured.Plan
	SemanticHint   string
	VagueCues      []string
	FollowUp       bool
	Degraded       bool
}

type Config struct {
	UseLLM         bool
	VagueThreshold int
	LLMTimeout     time.Duration
	HistoryTurns   int
}

func DefaultConfig() Config {
	return Config{
		UseLLM:         false,
		VagueThreshold: 1,
		LLMTimeout:     5 * time.Second,
		HistoryTurns:   6,
	}
}

// Classifier routes messages to structured, semantic or hybrid retrieval
type Classifier struct {
	schema      *catalog.SchemaDescriptor
	planner     *structured.Planner
	llmProvider llm.LLMProvider
	config      Config
	logger      logger.ILogger
}

// NewClassifier creates a classifier. llmProvider may be nil, in which case only rules are used.
func NewClassifier(schema *catalog.SchemaDescriptor, planner *structured.Planner, llmProvider llm.LLMProvider, config Config, logger logger.ILogger) *Classifier {
	if config.VagueThreshold <= 0 {
		config.VagueThreshold = 1
	}
	if config.HistoryTurns <= 0 {
		config.HistoryTurns = 6
	}
	return &Classifier{
		schema:      schema,
		planner:     planner,
		llmProvider: llmProvider,
		config:      config,
		logger:      logger,
	}
}

type classifyOptions struct {
	seed []structured.Filter
}

type Option func(*classifyOptions)

// WithSeed scopes the conversation to catalog rows matching filters, e.g. one product
func WithSeed(filters ...structured.Filter) Option {
	return func(o *classifyOptions) {
		o.seed = append(o.seed, filters...)
	}
}

var (
	listingCues = []string{
		"list", "show me", "show all", "all", "compare", "comparison", "lowest", "highest",
		"cheapest", "how many", "top", "rank", "sort", "minimum", "maximum",
	}
	vagueCues = []string{
		"best", "better", "recommend", "recommendation", "suitable", "suit", "good for",
		"should i", "worth", "advice", "advise", "explain", "how does", "how do", "why",
		"what is a", "what are the benefits", "pros and cons", "someone who", "young professionals",
		"students", "retirees", "first time", "travel", "travels", "beginner", "ideal", "safe",
	}
	followUpMarkers = []string{
		"it", "its", "that", "that one", "this one", "those", "them", "they", "what about",
		"how about", "and for", "same", "instead",
	}
)

const followUpMaxWords = 8

// Classify decides the retrieval route for message. It never fails: a model
// problem downgrades to the rule-based result.
func (c *Classifier) Classify(ctx context.Context, message string, history []store.Turn, opts ...Option) Classification {
	var o classifyOptions
	for _, opt := range opts {
		opt(&o)
	}

	message = strings.TrimSpace(message)
	lower := strings.ToLower(message)
	history = lastTurns(history, c.config.HistoryTurns)

	signals := c.detect(message)
	result := Classification{SemanticHint: message}

	ownDomain := c.schema.MentionsDomain(message)
	// weak matches ("the rate?") only carry meaning against an earlier financial turn
	weakOnly := !ownDomain && !signals.Empty()
	if c.isFollowUp(lower) && (ownDomain || weakOnly || pureReference(lower)) {
		if prev, ok := lastUserText(history); ok {
			inherited := c.inherit(&signals, prev)
			switch {
			case inherited != "":
				result.FollowUp = true
				result.SemanticHint = message + " (" + inherited + ")"
			case weakOnly && c.schema.MentionsDomain(prev):
				result.FollowUp = true
				result.SemanticHint = message + " (" + prev + ")"
			}
		}
	}
	result.Signals = signals

	seeded := len(o.seed) > 0
	if !seeded && !result.FollowUp && !ownDomain {
		result.Signals = structured.Signals{}
		result.Type = QueryTypeUnsupported
		c.logger.Debug("INTENT", "Message outside the financial domain", map[string]interface{}{"message": message})
		return result
	}

	result.VagueCues = matchAll(lower, vagueCues)
	semantic := len(result.VagueCues) >= c.config.VagueThreshold

	listing := len(matchAll(lower, listingCues)) > 0
	structuredSignal := seeded || len(signals.Fields) > 0 || len(signals.Institutions) > 0 ||
		(signals.Category != nil && listing)

	if seeded && len(signals.Fields) == 0 {
		// general questions about a single product also draw on its documents
		semantic = true
	}

	if structuredSignal {
		plan, ok := c.planner.Plan(message, signals, o.seed)
		if ok {
			result.StructuredHint = plan
		} else {
			structuredSignal = false
		}
	}

	if c.config.UseLLM && c.llmProvider != nil {
		vote, err := c.classifyWithModel(ctx, message, history)
		if err != nil {
			result.Degraded = true
			c.logger.Warn("INTENT", "Model classification failed, using rules", map[string]interface{}{
				"error": fmt.Errorf("%w: %v", ErrClassificationDegraded, err).Error(),
			})
		} else if vote == QueryTypeVector || vote == QueryTypeHybrid {
			semantic = true
		}
	}

	switch {
	case structuredSignal && semantic:
		result.Type = QueryTypeHybrid
	case structuredSignal:
		result.Type = QueryTypeSQL
	default:
		result.Type = QueryTypeVector
		result.StructuredHint = nil
	}

	c.logger.Info("INTENT", "Message classified", map[string]interface{}{
		"type":       result.Type,
		"fields":     len(signals.Fields),
		"vague_cues": result.VagueCues,
		"follow_up":  result.FollowUp,
		"degraded":   result.Degraded,
	})
	return result
}

func (c *Classifier) detect(message string) structured.Signals {
	s := structured.Signals{
		Fields:       c.schema.MatchFields(message),
		Institutions: c.schema.MatchInstitutions(message),
	}
	if cat, ok := c.schema.MatchCategory(message); ok {
		s.Category = &cat
	}
	return s
}

func (c *Classifier) isFollowUp(lower string) bool {
	if len(strings.Fields(lower)) > followUpMaxWords {
		return false
	}
	return len(matchAll(lower, followUpMarkers)) > 0
}

// inherit fills entity kinds missing from signals with those of the previous
// user message and returns a description of what was carried over.
func (c *Classifier) inherit(signals *structured.Signals, previous string) string {
	prev := c.detect(previous)
	var carried []string

	if len(signals.Institutions) == 0 && len(prev.Institutions) > 0 {
		signals.Institutions = prev.Institutions
		for _, inst := range prev.Institutions {
			carried = append(carried, inst.Name)
		}
	}
	if signals.Category == nil && prev.Category != nil {
		signals.Category = prev.Category
		carried = append(carried, prev.Category.Phrase)
	}
	if len(signals.Fields) == 0 && len(prev.Fields) > 0 {
		signals.Fields = prev.Fields
		for _, f := range prev.Fields {
			carried = append(carried, f.Keyword)
		}
	}
	return strings.Join(dedupe(carried), ", ")
}

var referenceWords = map[string]bool{
	"a": true, "about": true, "again": true, "an": true, "and": true, "any": true, "are": true,
	"do": true, "does": true, "for": true, "how": true, "instead": true, "is": true, "it": true,
	"its": true, "me": true, "more": true, "of": true, "ok": true, "okay": true, "one": true,
	"please": true, "same": true, "so": true, "tell": true, "that": true, "the": true, "them": true,
	"then": true, "there": true, "they": true, "this": true, "those": true, "what": true,
	"which": true, "s": true, "worth": true, "good": true, "better": true, "best": true,
}

// pureReference reports whether lower only points back at earlier turns,
// e.g. "what about that one?", without introducing a new subject.
func pureReference(lower string) bool {
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for _, w := range words {
		if !referenceWords[w] {
			return false
		}
	}
	return len(words) > 0
}

func lastTurns(history []store.Turn, n int) []store.Turn {
	if n > 0 && len(history) > n {
		return history[len(history)-n:]
	}
	return history
}

func lastUserText(history []store.Turn) (string, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == store.RoleUser {
			return history[i].Text, true
		}
	}
	return "", false
}

func matchAll(lower string, phrases []string) []string {
	var out []string
	for _, p := range phrases {
		if catalog.ContainsPhrase(lower, p) {
			out = append(out, p)
		}
	}
	return out
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, it := range items {
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}
