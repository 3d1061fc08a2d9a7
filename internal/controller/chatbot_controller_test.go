package controller

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finverse-chatbot/internal/dto"
	"finverse-chatbot/internal/pkg/logger"
	"finverse-chatbot/internal/pkg/serverutils"
	"finverse-chatbot/internal/service"
	"finverse-chatbot/pkg/events"
	"finverse-chatbot/pkg/rag/stats"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChatbotService struct {
	lastInput     dto.ChatInput
	failed        bool
	lastLimit     int
	lastOlderThan time.Duration
}

func (s *stubChatbotService) Chat(ctx context.Context, in dto.ChatInput) *dto.ChatResponse {
	s.lastInput = in
	res := &dto.ChatResponse{
		Answer:         "answer",
		Sources:        []dto.SourceDTO{{Name: "High Yield Savings Account", Institution: "First National Bank"}},
		QueryType:      "sql",
		ConversationId: "generated",
		Success:        !s.failed,
	}
	if s.failed {
		res.Message = "Failed to generate an answer"
	}
	return res
}

func (s *stubChatbotService) ProductChat(ctx context.Context, in dto.ChatInput) *dto.ChatResponse {
	s.lastInput = in
	return &dto.ChatResponse{Answer: "product answer", Sources: []dto.SourceDTO{}, QueryType: "sql", ConversationId: in.ConversationId, Success: true}
}

func (s *stubChatbotService) Stats(ctx context.Context) *dto.StatsResponse {
	return &dto.StatsResponse{Status: "success", Stats: stats.QueryStats{Total: 3, SQL: 1, Vector: 1, Unsupported: 1}}
}

func (s *stubChatbotService) History(ctx context.Context, conversationId string) (*dto.HistoryResponse, error) {
	if conversationId != "known" {
		return nil, service.ErrConversationNotFound
	}
	return &dto.HistoryResponse{Status: "success", ConversationId: conversationId, Messages: []dto.HistoryMessage{}}, nil
}

func (s *stubChatbotService) DeleteConversation(ctx context.Context, conversationId string) error {
	if conversationId != "known" {
		return service.ErrConversationNotFound
	}
	return nil
}

func (s *stubChatbotService) ListConversations(ctx context.Context, limit int) *dto.ConversationsResponse {
	s.lastLimit = limit
	return &dto.ConversationsResponse{Status: "success", Conversations: []dto.ConversationSummary{{Id: "known", MessageCount: 2}}}
}

func (s *stubChatbotService) CleanupConversations(ctx context.Context, olderThan time.Duration) *dto.CleanupResponse {
	s.lastOlderThan = olderThan
	return &dto.CleanupResponse{Status: "success", Message: "Deleted 4 old conversations", DeletedCount: 4}
}

type stubIngestService struct {
	queued int
	err    error
}

func (s *stubIngestService) QueueCatalog(ctx context.Context) (int, error) {
	return s.queued, s.err
}

func (s *stubIngestService) HandleCatalogEvent(ctx context.Context, event events.Event) error {
	return nil
}

type stubHealthService struct {
	status string
}

func (s *stubHealthService) Check(ctx context.Context) *dto.HealthResponse {
	return &dto.HealthResponse{Status: s.status, Database: "connected"}
}

func newTestApp(chat *stubChatbotService, ingest *stubIngestService, health *stubHealthService) *fiber.App {
	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware())
	NewChatbotController(chat, ingest, health, logger.NewNopLogger()).RegisterRoutes(app)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func TestChatAcceptsBothDialects(t *testing.T) {
	chat := &stubChatbotService{}
	app := newTestApp(chat, &stubIngestService{}, &stubHealthService{status: "healthy"})

	status, body := doJSON(t, app, "POST", "/chat", `{"query":"List all personal loans","conversation_id":"abc"}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "answer", body["answer"])
	assert.Equal(t, "sql", body["query_type"])
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "List all personal loans", chat.lastInput.Message)
	assert.Equal(t, "abc", chat.lastInput.ConversationId)

	_, _ = doJSON(t, app, "POST", "/chat", `{"message":"hello","sessionId":"s-1"}`)
	assert.Equal(t, "hello", chat.lastInput.Message)
	assert.Equal(t, "s-1", chat.lastInput.ConversationId)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	app := newTestApp(&stubChatbotService{}, &stubIngestService{}, &stubHealthService{status: "healthy"})

	status, body := doJSON(t, app, "POST", "/chat", `{"query":"   "}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])
}

func TestChatFailureStaysOK(t *testing.T) {
	app := newTestApp(&stubChatbotService{failed: true}, &stubIngestService{}, &stubHealthService{status: "healthy"})

	status, body := doJSON(t, app, "POST", "/chat", `{"query":"List all personal loans"}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Failed to generate an answer", body["message"])
}

func TestProductChat(t *testing.T) {
	chat := &stubChatbotService{}
	app := newTestApp(chat, &stubIngestService{}, &stubHealthService{status: "healthy"})

	status, _ := doJSON(t, app, "POST", "/product-chat", `{"sessionId":"s-1","product_id":"7d4c2b8e-0000-0000-0000-000000000001","message":"What is the rate?"}`)
	assert.Equal(t, fiber.StatusOK, status)
	require.NotNil(t, chat.lastInput.ProductId)
	assert.Equal(t, "7d4c2b8e-0000-0000-0000-000000000001", chat.lastInput.ProductId.String())

	status, _ = doJSON(t, app, "POST", "/product-chat", `{"message":"What is the rate?"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = doJSON(t, app, "POST", "/product-chat", `{"productId":"nope","message":"What is the rate?"}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, chat.lastInput.ProductId)
}

func TestStatsShape(t *testing.T) {
	app := newTestApp(&stubChatbotService{}, &stubIngestService{}, &stubHealthService{status: "healthy"})

	status, body := doJSON(t, app, "GET", "/stats", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "success", body["status"])
	counters := body["stats"].(map[string]interface{})
	assert.Equal(t, float64(3), counters["total_queries"])
	assert.Equal(t, float64(0), counters["errors"])
}

func TestIngest(t *testing.T) {
	app := newTestApp(&stubChatbotService{}, &stubIngestService{queued: 12}, &stubHealthService{status: "healthy"})
	status, body := doJSON(t, app, "POST", "/ingest", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(12), body["ingested_count"])

	app = newTestApp(&stubChatbotService{}, &stubIngestService{err: errors.New("db down")}, &stubHealthService{status: "healthy"})
	status, body = doJSON(t, app, "POST", "/ingest", "")
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "Internal server error", body["message"])
}

func TestConversationEndpoints(t *testing.T) {
	app := newTestApp(&stubChatbotService{}, &stubIngestService{}, &stubHealthService{status: "healthy"})

	status, body := doJSON(t, app, "GET", "/conversations/known/history", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "known", body["conversation_id"])

	status, _ = doJSON(t, app, "GET", "/conversations/missing/history", "")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = doJSON(t, app, "DELETE", "/conversations/known", "")
	assert.Equal(t, fiber.StatusOK, status)

	status, body = doJSON(t, app, "DELETE", "/conversations/missing", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "Conversation not found", body["message"])
}

func TestListAndCleanupConversationEndpoints(t *testing.T) {
	chat := &stubChatbotService{}
	app := newTestApp(chat, &stubIngestService{}, &stubHealthService{status: "healthy"})

	status, body := doJSON(t, app, "GET", "/conversations", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 100, chat.lastLimit)
	conversations := body["conversations"].([]interface{})
	require.Len(t, conversations, 1)
	assert.Equal(t, "known", conversations[0].(map[string]interface{})["id"])

	status, _ = doJSON(t, app, "GET", "/conversations?limit=5", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 5, chat.lastLimit)

	status, body = doJSON(t, app, "POST", "/conversations/cleanup", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 30*24*time.Hour, chat.lastOlderThan)
	assert.Equal(t, float64(4), body["deleted_count"])

	status, _ = doJSON(t, app, "POST", "/conversations/cleanup?days=7", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 7*24*time.Hour, chat.lastOlderThan)

	status, _ = doJSON(t, app, "POST", "/conversations/cleanup?days=0", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestHealth(t *testing.T) {
	app := newTestApp(&stubChatbotService{}, &stubIngestService{}, &stubHealthService{status: "healthy"})
	status, _ := doJSON(t, app, "GET", "/health", "")
	assert.Equal(t, fiber.StatusOK, status)

	app = newTestApp(&stubChatbotService{}, &stubIngestService{}, &stubHealthService{status: "degraded"})
	status, body := doJSON(t, app, "GET", "/health", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, "degraded", body["status"])
}
