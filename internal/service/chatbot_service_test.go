package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finverse-chatbot/internal/dto"
	"finverse-chatbot/internal/entity"
	"finverse-chatbot/internal/pkg/logger"
	"finverse-chatbot/internal/repository/contract"
	"finverse-chatbot/internal/repository/memory"
	"finverse-chatbot/internal/repository/specification"
	"finverse-chatbot/pkg/catalog"
	"finverse-chatbot/pkg/embedding"
	"finverse-chatbot/pkg/llm"
	"finverse-chatbot/pkg/rag/executor"
	"finverse-chatbot/pkg/rag/intent"
	"finverse-chatbot/pkg/rag/response"
	"finverse-chatbot/pkg/rag/search"
	"finverse-chatbot/pkg/rag/stats"
	"finverse-chatbot/pkg/rag/structured"
	"finverse-chatbot/pkg/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuerier struct {
	mu    sync.Mutex
	rows  []structured.Row
	last  *structured.CompiledQuery
	calls int
}

func (f *fakeQuerier) QueryRows(ctx context.Context, q *structured.CompiledQuery) ([]structured.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = q
	return f.rows, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Generate(ctx context.Context, text string, taskType string) (*embedding.EmbeddingResponse, error) {
	return &embedding.EmbeddingResponse{Embedding: embedding.EmbeddingResponseEmbedding{Values: []float32{1, 0, 0}}}, nil
}

func (fakeEmbedder) ModelVersion() string {
	return "fake/v1"
}

type fakeIndex struct {
	mu         sync.Mutex
	results    []*contract.ScoredDocumentEmbedding
	lastFilter contract.SimilarityFilter
}

func (f *fakeIndex) SearchSimilarWithScore(ctx context.Context, emb []float32, limit int, filter contract.SimilarityFilter) ([]*contract.ScoredDocumentEmbedding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	return f.results, nil
}

type fakeChatLLM struct {
	reply string
	err   error
}

func (f *fakeChatLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return f.reply, f.err
}

func (f *fakeChatLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return f.reply, f.err
}

type fakeProducts struct {
	products   map[uuid.UUID]*entity.Product
	err        error
	related    []*entity.Product
	relatedErr error
	lastSpecs  []specification.Specification
}

func (f *fakeProducts) FindProduct(ctx context.Context, id uuid.UUID) (*entity.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.products[id], nil
}

func (f *fakeProducts) FindProducts(ctx context.Context, specs ...specification.Specification) ([]*entity.Product, error) {
	f.lastSpecs = specs
	if f.relatedErr != nil {
		return nil, f.relatedErr
	}
	return f.related, nil
}

type chatbotFixture struct {
	service  IChatbotService
	querier  *fakeQuerier
	index    *fakeIndex
	llm      *fakeChatLLM
	products *fakeProducts
	sessions *memory.SessionRepository
}

func newChatbotFixture(t *testing.T) *chatbotFixture {
	t.Helper()
	log := logger.NewNopLogger()
	schema := catalog.NewDescriptor([]string{"First National Bank", "People's Credit Union", "Sampath Bank PLC"})

	querier := &fakeQuerier{rows: []structured.Row{{
		"productId":    uuid.NewString(),
		"name":         "High Yield Savings Account",
		"institution":  "First National Bank",
		"category":     "Savings",
		"interestRate": 3.5,
	}}}
	index := &fakeIndex{results: []*contract.ScoredDocumentEmbedding{{
		Embedding: &entity.DocumentEmbedding{
			SourceId:        uuid.New(),
			SourceType:      entity.SourceTypeProduct,
			SourceName:      "Travel Saver",
			InstitutionName: "Sampath Bank PLC",
			Document:        "Travel Saver has no foreign transaction fees.",
		},
		Similarity: 0.82,
	}}}
	chatLLM := &fakeChatLLM{reply: "Here is what I found."}
	products := &fakeProducts{products: map[uuid.UUID]*entity.Product{}}
	sessions := memory.NewSessionRepository(time.Minute, 10)

	generatorCfg := response.DefaultConfig()
	generatorCfg.RetryBackoff = time.Millisecond

	svc := NewChatbotService(
		intent.NewClassifier(schema, structured.NewPlanner(schema, 20), nil, intent.DefaultConfig(), log),
		executor.NewHybridExecutor(
			structured.NewRetriever(schema, querier, 20, log),
			search.NewOrchestrator(fakeEmbedder{}, index, search.DefaultConfig(), log),
			executor.DefaultConfig(),
			log,
		),
		response.NewGenerator(chatLLM, generatorCfg, log),
		sessions,
		stats.NewAggregator(),
		products,
		nil,
		log,
	)

	return &chatbotFixture{
		service:  svc,
		querier:  querier,
		index:    index,
		llm:      chatLLM,
		products: products,
		sessions: sessions,
	}
}

func TestChatRoutesAndCountsEachQueryType(t *testing.T) {
	f := newChatbotFixture(t)
	ctx := context.Background()

	sqlRes := f.service.Chat(ctx, dto.ChatInput{Message: "What is the interest rate on First National's savings account?"})
	assert.Equal(t, "sql", sqlRes.QueryType)
	assert.True(t, sqlRes.Success)
	assert.Equal(t, "Here is what I found.", sqlRes.Answer)
	assert.Equal(t, []dto.SourceDTO{{Name: "High Yield Savings Account", Institution: "First National Bank"}}, sqlRes.Sources)
	assert.NotEmpty(t, sqlRes.ConversationId)

	vectorRes := f.service.Chat(ctx, dto.ChatInput{Message: "Which savings account is best for someone who travels a lot?"})
	assert.Equal(t, "vector", vectorRes.QueryType)
	assert.Equal(t, []dto.SourceDTO{{Name: "Travel Saver", Institution: "Sampath Bank PLC"}}, vectorRes.Sources)

	hybridRes := f.service.Chat(ctx, dto.ChatInput{Message: "Which bank has the best savings account for young professionals and what are its interest rates?"})
	assert.Equal(t, "hybrid", hybridRes.QueryType)
	assert.Len(t, hybridRes.Sources, 2)

	unsupportedRes := f.service.Chat(ctx, dto.ChatInput{Message: "What's the weather today?"})
	assert.Equal(t, "unsupported", unsupportedRes.QueryType)
	assert.Equal(t, response.UnsupportedMessage, unsupportedRes.Answer)
	assert.Empty(t, unsupportedRes.Sources)
	assert.True(t, unsupportedRes.Success)

	snapshot := f.service.Stats(ctx).Stats
	assert.Equal(t, stats.QueryStats{Total: 4, SQL: 1, Vector: 1, Hybrid: 1, Unsupported: 1}, snapshot)
}

func TestChatGenerationFailureKeepsHTTPShape(t *testing.T) {
	f := newChatbotFixture(t)
	f.llm.err = errors.New("provider down")

	res := f.service.Chat(context.Background(), dto.ChatInput{Message: "What is the interest rate on First National's savings account?"})

	assert.False(t, res.Success)
	assert.Equal(t, response.ApologyMessage, res.Answer)
	assert.Equal(t, failedAnswerMessage, res.Message)
	assert.Empty(t, res.Sources)

	snapshot := f.service.Stats(context.Background()).Stats
	assert.Equal(t, int64(1), snapshot.Total)
	assert.Equal(t, int64(1), snapshot.Errors)
}

func TestChatKeepsConversationHistory(t *testing.T) {
	f := newChatbotFixture(t)
	ctx := context.Background()

	first := f.service.Chat(ctx, dto.ChatInput{Message: "What is the interest rate on First National's savings account?", ConversationId: "conv-1"})
	require.Equal(t, "conv-1", first.ConversationId)
	f.service.Chat(ctx, dto.ChatInput{Message: "What's the weather today?", ConversationId: "conv-1"})

	history, err := f.service.History(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, history.Messages, 4)
	assert.Equal(t, "user", history.Messages[0].Role)
	assert.Equal(t, "What is the interest rate on First National's savings account?", history.Messages[0].Content)
	assert.Equal(t, "assistant", history.Messages[1].Role)
	assert.Equal(t, response.UnsupportedMessage, history.Messages[3].Content)

	require.NoError(t, f.service.DeleteConversation(ctx, "conv-1"))
	assert.ErrorIs(t, f.service.DeleteConversation(ctx, "conv-1"), ErrConversationNotFound)

	_, err = f.service.History(ctx, "conv-1")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestProductChatScopesRetrievalToProduct(t *testing.T) {
	f := newChatbotFixture(t)
	product := &entity.Product{
		Id:              uuid.New(),
		Name:            "High Yield Savings Account",
		IsActive:        true,
		InstitutionId:   uuid.New(),
		InstitutionName: "First National Bank",
	}
	f.products.products[product.Id] = product

	res := f.service.ProductChat(context.Background(), dto.ChatInput{
		Message:   "What is the interest rate?",
		ProductId: &product.Id,
	})

	assert.True(t, res.Success)
	assert.NotEqual(t, "unsupported", res.QueryType)
	require.NotNil(t, f.querier.last)
	var args []interface{}
	for _, clause := range f.querier.last.Where {
		args = append(args, clause.Args...)
	}
	assert.Contains(t, args, product.Id.String())
}

func TestProductChatUnknownProduct(t *testing.T) {
	f := newChatbotFixture(t)
	missing := uuid.New()

	res := f.service.ProductChat(context.Background(), dto.ChatInput{Message: "Tell me about it", ProductId: &missing})

	assert.True(t, res.Success)
	assert.Equal(t, response.ProductNotFoundMessage, res.Answer)
	assert.Equal(t, "unsupported", res.QueryType)
	assert.Zero(t, f.querier.calls)
	assert.Equal(t, int64(1), f.service.Stats(context.Background()).Stats.Unsupported)
}

func TestProductChatLookupFailure(t *testing.T) {
	f := newChatbotFixture(t)
	f.products.err = errors.New("connection refused")
	id := uuid.New()

	res := f.service.ProductChat(context.Background(), dto.ChatInput{Message: "Tell me about it", ProductId: &id})

	assert.False(t, res.Success)
	assert.Equal(t, response.ApologyMessage, res.Answer)
	snapshot := f.service.Stats(context.Background()).Stats
	assert.Equal(t, stats.QueryStats{Total: 1, Unsupported: 1, Errors: 1}, snapshot)
}

func TestProductChatAddsSameTypeProducts(t *testing.T) {
	f := newChatbotFixture(t)
	typeId := uuid.New()
	product := &entity.Product{
		Id:              uuid.New(),
		Name:            "High Yield Savings Account",
		IsActive:        true,
		InstitutionId:   uuid.New(),
		InstitutionName: "First National Bank",
		ProductTypeId:   &typeId,
	}
	f.products.products[product.Id] = product
	f.products.related = []*entity.Product{
		product,
		{Id: uuid.New(), Name: "Kids Saver", InstitutionName: "Sampath Bank PLC", ProductTypeId: &typeId},
		{Id: uuid.New(), Name: "Senior Saver", InstitutionName: "People's Credit Union", ProductTypeId: &typeId},
		{Id: uuid.New(), Name: "Goal Saver", InstitutionName: "First National Bank", ProductTypeId: &typeId},
		{Id: uuid.New(), Name: "Holiday Saver", InstitutionName: "First National Bank", ProductTypeId: &typeId},
	}

	res := f.service.ProductChat(context.Background(), dto.ChatInput{
		Message:   "What is the interest rate?",
		ProductId: &product.Id,
	})

	require.True(t, res.Success)
	require.GreaterOrEqual(t, len(res.Sources), 4)
	assert.Equal(t, []dto.SourceDTO{
		{Name: "High Yield Savings Account", Institution: "First National Bank"},
		{Name: "Kids Saver", Institution: "Sampath Bank PLC"},
		{Name: "Senior Saver", Institution: "People's Credit Union"},
		{Name: "Goal Saver", Institution: "First National Bank"},
	}, res.Sources[:4])

	assert.Contains(t, f.products.lastSpecs, specification.ByProductTypeID{ProductTypeID: typeId})
	assert.Contains(t, f.products.lastSpecs, specification.ExcludeProductID{ProductID: product.Id})
	assert.Contains(t, f.products.lastSpecs, specification.Limit{N: maxRelatedProducts})
}

func TestProductChatRelatedLookupFailureStillAnswers(t *testing.T) {
	f := newChatbotFixture(t)
	typeId := uuid.New()
	product := &entity.Product{
		Id:              uuid.New(),
		Name:            "High Yield Savings Account",
		IsActive:        true,
		InstitutionName: "First National Bank",
		ProductTypeId:   &typeId,
	}
	f.products.products[product.Id] = product
	f.products.relatedErr = errors.New("timeout")

	res := f.service.ProductChat(context.Background(), dto.ChatInput{Message: "What is the interest rate?", ProductId: &product.Id})

	assert.True(t, res.Success)
	assert.Equal(t, "High Yield Savings Account", res.Sources[0].Name)
	assert.Zero(t, f.service.Stats(context.Background()).Stats.Errors)
}

func TestListAndCleanupConversations(t *testing.T) {
	f := newChatbotFixture(t)
	ctx := context.Background()

	f.sessions.Append("stale", store.Turn{Role: store.RoleUser, Text: "hi", Timestamp: time.Now().Add(-48 * time.Hour)})
	f.service.Chat(ctx, dto.ChatInput{Message: "What is the interest rate on First National's savings account?", ConversationId: "fresh"})

	listed := f.service.ListConversations(ctx, 100)
	assert.Equal(t, "success", listed.Status)
	require.Len(t, listed.Conversations, 2)
	assert.Equal(t, "fresh", listed.Conversations[0].Id)
	assert.Equal(t, 2, listed.Conversations[0].MessageCount)
	assert.Equal(t, "stale", listed.Conversations[1].Id)

	cleaned := f.service.CleanupConversations(ctx, 24*time.Hour)
	assert.Equal(t, 1, cleaned.DeletedCount)
	assert.Equal(t, "Deleted 1 old conversations", cleaned.Message)

	remaining := f.service.ListConversations(ctx, 100).Conversations
	require.Len(t, remaining, 1)
	assert.Equal(t, "fresh", remaining[0].Id)
}
