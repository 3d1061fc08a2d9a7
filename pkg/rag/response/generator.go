package response

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"finverse-chatbot/internal/pkg/logger"
	"finverse-chatbot/pkg/llm"
	"finverse-chatbot/pkg/rag/intent"
	"finverse-chatbot/pkg/rag/search"
	"finverse-chatbot/pkg/rag/structured"
	"finverse-chatbot/pkg/store"
)

// ErrGenerationFailure means the answer model failed after its retry
var ErrGenerationFailure = errors.New("answer generation failed")

// Source is one citation shown next to the answer
type Source struct {
	Name        string `json:"name"`
	Institution string `json:"institution"`
}

// Input is the AnswerContext of one request
type Input struct {
	Message   string
	QueryType intent.QueryType
	Rows      []structured.Row
	Passages  []search.RetrievedPassage
	History   []store.Turn
	// Related are products similar to the one being discussed. They are
	// extra context only and never ground an answer on their own.
	Related []structured.Row
}

// Answer is the generated reply
type Answer struct {
	Text      string
	QueryType intent.QueryType
	Sources   []Source
	Grounded  bool
	Failed    bool
	Err       error
}

type Config struct {
	Timeout           time.Duration
	RetryBackoff      time.Duration
	HistoryCharBudget int
	MaxSources        int
	Temperature       float64
}

func DefaultConfig() Config {
	return Config{
		Timeout:           20 * time.Second,
		RetryBackoff:      500 * time.Millisecond,
		HistoryCharBudget: 4000,
		MaxSources:        5,
		Temperature:       0.2,
	}
}

// Generator creates answers grounded in retrieved rows and passages
type Generator struct {
	llmProvider llm.LLMProvider
	config      Config
	logger      logger.ILogger
}

// NewGenerator creates a new response generator
func NewGenerator(llmProvider llm.LLMProvider, config Config, logger logger.ILogger) *Generator {
	defaults := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.RetryBackoff < 0 {
		config.RetryBackoff = 0
	}
	if config.HistoryCharBudget <= 0 {
		config.HistoryCharBudget = defaults.HistoryCharBudget
	}
	if config.MaxSources <= 0 {
		config.MaxSources = defaults.MaxSources
	}
	return &Generator{
		llmProvider: llmProvider,
		config:      config,
		logger:      logger,
	}
}

// Generate answers in.Message. It never returns provider errors to the caller;
// a failed generation is reported through Answer.Failed and Answer.Err.
func (g *Generator) Generate(ctx context.Context, in Input) Answer {
	if in.QueryType == intent.QueryTypeUnsupported {
		return Answer{
			Text:      UnsupportedMessage,
			QueryType: in.QueryType,
			Sources:   []Source{},
		}
	}

	// nothing to ground on: refuse rather than let the model speculate
	if len(in.Rows) == 0 && len(in.Passages) == 0 {
		g.logger.Info("GENERATION", "No grounding context, returning no-results answer", map[string]interface{}{
			"query_type": string(in.QueryType),
		})
		return Answer{
			Text:      NoResultsMessage,
			QueryType: in.QueryType,
			Sources:   []Source{},
		}
	}

	messages := make([]llm.Message, 0, len(in.History)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: buildSystemPrompt()})
	messages = append(messages, g.boundHistory(in.History)...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: buildUserPrompt(in)})

	text, err := g.chatWithRetry(ctx, messages)
	if err != nil {
		g.logger.Error("GENERATION", "Answer generation failed", map[string]interface{}{
			"error":      err.Error(),
			"query_type": string(in.QueryType),
		})
		return Answer{
			Text:      ApologyMessage,
			QueryType: in.QueryType,
			Sources:   []Source{},
			Failed:    true,
			Err:       err,
		}
	}

	sources := g.collectSources(in.Rows, in.Related, in.Passages)

	g.logger.Info("GENERATION", "Answer generated", map[string]interface{}{
		"query_type": string(in.QueryType),
		"rows":       len(in.Rows),
		"passages":   len(in.Passages),
		"related":    len(in.Related),
		"sources":    len(sources),
	})

	return Answer{
		Text:      text,
		QueryType: in.QueryType,
		Sources:   sources,
		Grounded:  true,
	}
}

// chatWithRetry makes at most two attempts, each bounded by the configured timeout
func (g *Generator) chatWithRetry(ctx context.Context, messages []llm.Message) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrGenerationFailure, ctx.Err())
			case <-time.After(g.config.RetryBackoff):
			}
		}

		text, err := g.chatOnce(ctx, messages)
		if err == nil {
			return text, nil
		}
		lastErr = err

		g.logger.Warn("GENERATION", "Model call failed", map[string]interface{}{
			"attempt": attempt,
			"error":   err.Error(),
		})

		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("%w: %v", ErrGenerationFailure, lastErr)
}

func (g *Generator) chatOnce(ctx context.Context, messages []llm.Message) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	text, err := g.llmProvider.Chat(callCtx, messages, llm.WithTemperature(g.config.Temperature))
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("empty response from model")
	}
	return text, nil
}

// boundHistory keeps the newest turns that fit the character budget
func (g *Generator) boundHistory(turns []store.Turn) []llm.Message {
	used := 0
	start := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		n := len(turns[i].Text)
		if used+n > g.config.HistoryCharBudget {
			break
		}
		used += n
		start = i
	}

	messages := make([]llm.Message, 0, len(turns)-start)
	for _, t := range turns[start:] {
		role := llm.RoleUser
		if t.Role == store.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: t.Text})
	}
	return messages
}

// collectSources lists row products first, then related products, then
// passage sources, deduplicated
func (g *Generator) collectSources(rows, related []structured.Row, passages []search.RetrievedPassage) []Source {
	sources := make([]Source, 0, g.config.MaxSources)
	seen := make(map[string]bool)

	add := func(name, institution string) {
		if name == "" || len(sources) >= g.config.MaxSources {
			return
		}
		key := strings.ToLower(name) + "|" + strings.ToLower(institution)
		if seen[key] {
			return
		}
		seen[key] = true
		sources = append(sources, Source{Name: name, Institution: institution})
	}

	for _, row := range rows {
		name, _ := row["name"].(string)
		institution, ok := row["institution"].(string)
		if !ok {
			// institution listing rows name the institution itself
			institution = name
		}
		add(name, institution)
	}
	for _, row := range related {
		name, _ := row["name"].(string)
		institution, _ := row["institution"].(string)
		add(name, institution)
	}
	for _, p := range passages {
		add(p.SourceName, p.InstitutionName)
	}
	return sources
}
