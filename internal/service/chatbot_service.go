package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finverse-chatbot/internal/dto"
	"finverse-chatbot/internal/entity"
	"finverse-chatbot/internal/pkg/logger"
	"finverse-chatbot/internal/repository/memory"
	"finverse-chatbot/internal/repository/specification"
	"finverse-chatbot/pkg/events"
	"finverse-chatbot/pkg/rag/executor"
	"finverse-chatbot/pkg/rag/intent"
	"finverse-chatbot/pkg/rag/response"
	"finverse-chatbot/pkg/rag/search"
	"finverse-chatbot/pkg/rag/stats"
	"finverse-chatbot/pkg/rag/structured"
	"finverse-chatbot/pkg/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrConversationNotFound = errors.New("conversation not found")

const failedAnswerMessage = "Failed to generate an answer"

// IChatbotService defines the chatbot service interface
type IChatbotService interface {
	Chat(ctx context.Context, in dto.ChatInput) *dto.ChatResponse
	ProductChat(ctx context.Context, in dto.ChatInput) *dto.ChatResponse
	Stats(ctx context.Context) *dto.StatsResponse
	History(ctx context.Context, conversationId string) (*dto.HistoryResponse, error)
	DeleteConversation(ctx context.Context, conversationId string) error
	ListConversations(ctx context.Context, limit int) *dto.ConversationsResponse
	CleanupConversations(ctx context.Context, olderThan time.Duration) *dto.CleanupResponse
}

// maxRelatedProducts bounds the same-type alternatives shown in product chat
const maxRelatedProducts = 3

// ProductFinder loads catalog products for product-scoped chat
type ProductFinder interface {
	FindProduct(ctx context.Context, id uuid.UUID) (*entity.Product, error)
	FindProducts(ctx context.Context, specs ...specification.Specification) ([]*entity.Product, error)
}

// chatbotService coordinates the query engine components
type chatbotService struct {
	classifier  *intent.Classifier
	executor    *executor.HybridExecutor
	generator   *response.Generator
	sessionRepo *memory.SessionRepository
	stats       *stats.Aggregator
	products    ProductFinder
	publisher   events.Publisher
	logger      logger.ILogger
}

func NewChatbotService(
	classifier *intent.Classifier,
	hybridExecutor *executor.HybridExecutor,
	generator *response.Generator,
	sessionRepo *memory.SessionRepository,
	aggregator *stats.Aggregator,
	products ProductFinder,
	publisher events.Publisher,
	logger logger.ILogger,
) IChatbotService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &chatbotService{
		classifier:  classifier,
		executor:    hybridExecutor,
		generator:   generator,
		sessionRepo: sessionRepo,
		stats:       aggregator,
		products:    products,
		publisher:   publisher,
		logger:      logger,
	}
}

// turn carries what one pass through the pipeline needs besides the message
type turn struct {
	seed    []structured.Filter
	scope   search.Scope
	product *entity.Product
	related []structured.Row
}

func (cs *chatbotService) Chat(ctx context.Context, in dto.ChatInput) *dto.ChatResponse {
	return cs.answer(ctx, in, turn{})
}

func (cs *chatbotService) ProductChat(ctx context.Context, in dto.ChatInput) *dto.ChatResponse {
	conversationId := ensureConversationId(in.ConversationId)

	if in.ProductId == nil {
		return cs.productNotFound(conversationId, in.Message)
	}

	product, err := cs.products.FindProduct(ctx, *in.ProductId)
	if err != nil {
		cs.logger.Error("CHATBOT", "Product lookup failed", map[string]interface{}{
			"product_id": in.ProductId.String(),
			"error":      err.Error(),
		})
		cs.stats.Increment(intent.QueryTypeUnsupported)
		cs.stats.IncrementErrors()
		return &dto.ChatResponse{
			Answer:         response.ApologyMessage,
			Sources:        []dto.SourceDTO{},
			QueryType:      string(intent.QueryTypeUnsupported),
			ConversationId: conversationId,
			Success:        false,
			Message:        failedAnswerMessage,
		}
	}
	if product == nil || !product.IsActive {
		return cs.productNotFound(conversationId, in.Message)
	}

	in.ConversationId = conversationId
	institutionId := product.InstitutionId
	return cs.answer(ctx, in, turn{
		seed: []structured.Filter{{
			Field:    "productId",
			Operator: structured.OpEq,
			Value:    product.Id.String(),
		}},
		scope: search.Scope{
			ProductID:     &product.Id,
			InstitutionID: &institutionId,
		},
		product: product,
		related: cs.relatedProducts(ctx, product),
	})
}

// relatedProducts returns up to maxRelatedProducts other listed products of
// the same type. A failed lookup only costs the extra context.
func (cs *chatbotService) relatedProducts(ctx context.Context, product *entity.Product) []structured.Row {
	if product.ProductTypeId == nil {
		return nil
	}

	products, err := cs.products.FindProducts(ctx,
		specification.ActiveProducts{},
		specification.ByProductTypeID{ProductTypeID: *product.ProductTypeId},
		specification.ExcludeProductID{ProductID: product.Id},
		specification.OrderBy{Field: "products.is_featured", Desc: true},
		specification.Limit{N: maxRelatedProducts},
	)
	if err != nil {
		cs.logger.Warn("CHATBOT", "Related product lookup failed", map[string]interface{}{
			"product_id": product.Id.String(),
			"error":      err.Error(),
		})
		return nil
	}

	rows := make([]structured.Row, 0, maxRelatedProducts)
	for _, p := range products {
		if p == nil || p.Id == product.Id || len(rows) == maxRelatedProducts {
			continue
		}
		rows = append(rows, productRow(p))
	}
	return rows
}

func (cs *chatbotService) answer(ctx context.Context, in dto.ChatInput, t turn) *dto.ChatResponse {
	ctx, span := otel.Tracer("finverse-chatbot/chatbot").Start(ctx, "chatbot.answer")
	defer span.End()

	start := time.Now()
	conversationId := ensureConversationId(in.ConversationId)
	history := cs.sessionRepo.History(conversationId, 0)

	var opts []intent.Option
	if len(t.seed) > 0 {
		opts = append(opts, intent.WithSeed(t.seed...))
	}
	classification := cs.classifier.Classify(ctx, in.Message, history, opts...)

	var retrieval executor.Retrieval
	if classification.Type != intent.QueryTypeUnsupported {
		retrieval = cs.executor.Execute(ctx, classification, classification.StructuredHint, in.Message, t.scope)
	}

	answer := cs.generator.Generate(ctx, response.Input{
		Message:   in.Message,
		QueryType: classification.Type,
		Rows:      retrieval.Rows,
		Passages:  retrieval.Passages,
		History:   history,
		Related:   t.related,
	})

	// counted once a response exists, never at classification time
	cs.stats.Increment(answer.QueryType)
	if answer.Failed {
		cs.stats.IncrementErrors()
		span.SetStatus(codes.Error, "generation failed")
		if answer.Err != nil {
			span.RecordError(answer.Err)
		}
	}

	now := time.Now()
	cs.sessionRepo.Append(conversationId, store.Turn{
		Role:      store.RoleUser,
		Text:      in.Message,
		Timestamp: now,
		QueryType: string(classification.Type),
	})
	cs.sessionRepo.Append(conversationId, store.Turn{
		Role:      store.RoleAssistant,
		Text:      answer.Text,
		Timestamp: now,
		QueryType: string(answer.QueryType),
	})

	latency := time.Since(start)
	span.SetAttributes(
		attribute.String("chat.query_type", string(answer.QueryType)),
		attribute.Int("chat.rows", len(retrieval.Rows)),
		attribute.Int("chat.passages", len(retrieval.Passages)),
		attribute.Bool("chat.degraded", retrieval.Degraded() || classification.Degraded),
		attribute.Bool("chat.product_scoped", t.product != nil),
	)

	productId := ""
	if t.product != nil {
		productId = t.product.Id.String()
	}
	cs.publish(events.NewChatQueryAnswered(events.ChatQueryAnswered{
		ConversationID: conversationId,
		QueryType:      string(answer.QueryType),
		ProductID:      productId,
		SourceCount:    len(answer.Sources),
		Failed:         answer.Failed,
		Degraded:       retrieval.Degraded() || classification.Degraded,
		Latency:        latency,
	}))

	cs.logger.Info("CHATBOT", "Chat answered", map[string]interface{}{
		"conversation_id": conversationId,
		"query_type":      string(answer.QueryType),
		"sources":         len(answer.Sources),
		"failed":          answer.Failed,
		"latency_ms":      latency.Milliseconds(),
	})

	res := &dto.ChatResponse{
		Answer:         answer.Text,
		Sources:        toSourceDTOs(answer.Sources),
		QueryType:      string(answer.QueryType),
		ConversationId: conversationId,
		Success:        !answer.Failed,
	}
	if answer.Failed {
		res.Message = failedAnswerMessage
	}
	return res
}

func (cs *chatbotService) productNotFound(conversationId, message string) *dto.ChatResponse {
	cs.stats.Increment(intent.QueryTypeUnsupported)

	now := time.Now()
	cs.sessionRepo.Append(conversationId, store.Turn{Role: store.RoleUser, Text: message, Timestamp: now, QueryType: string(intent.QueryTypeUnsupported)})
	cs.sessionRepo.Append(conversationId, store.Turn{Role: store.RoleAssistant, Text: response.ProductNotFoundMessage, Timestamp: now, QueryType: string(intent.QueryTypeUnsupported)})

	return &dto.ChatResponse{
		Answer:         response.ProductNotFoundMessage,
		Sources:        []dto.SourceDTO{},
		QueryType:      string(intent.QueryTypeUnsupported),
		ConversationId: conversationId,
		Success:        true,
	}
}

// publish is fire-and-forget; the chat response never waits on the bus
func (cs *chatbotService) publish(event events.Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := cs.publisher.Publish(ctx, event); err != nil {
			cs.logger.Warn("CHATBOT", "Failed to publish event", map[string]interface{}{
				"event": event.EventType(),
				"error": err.Error(),
			})
		}
	}()
}

func (cs *chatbotService) Stats(ctx context.Context) *dto.StatsResponse {
	return &dto.StatsResponse{
		Status: "success",
		Stats:  cs.stats.Snapshot(),
	}
}

func (cs *chatbotService) History(ctx context.Context, conversationId string) (*dto.HistoryResponse, error) {
	session, ok := cs.sessionRepo.Get(conversationId)
	if !ok {
		return nil, ErrConversationNotFound
	}

	messages := make([]dto.HistoryMessage, len(session.Turns))
	for i, t := range session.Turns {
		messages[i] = dto.HistoryMessage{
			Role:      string(t.Role),
			Content:   t.Text,
			Timestamp: t.Timestamp,
			QueryType: t.QueryType,
		}
	}

	return &dto.HistoryResponse{
		Status:         "success",
		ConversationId: conversationId,
		Messages:       messages,
	}, nil
}

func (cs *chatbotService) DeleteConversation(ctx context.Context, conversationId string) error {
	if !cs.sessionRepo.Delete(conversationId) {
		return ErrConversationNotFound
	}
	return nil
}

func (cs *chatbotService) ListConversations(ctx context.Context, limit int) *dto.ConversationsResponse {
	sessions := cs.sessionRepo.List(limit)

	conversations := make([]dto.ConversationSummary, len(sessions))
	for i, s := range sessions {
		conversations[i] = dto.ConversationSummary{
			Id:           s.ID,
			CreatedAt:    s.CreatedAt,
			UpdatedAt:    s.LastActivity,
			MessageCount: s.TurnCount,
		}
	}
	return &dto.ConversationsResponse{
		Status:        "success",
		Conversations: conversations,
	}
}

func (cs *chatbotService) CleanupConversations(ctx context.Context, olderThan time.Duration) *dto.CleanupResponse {
	deleted := cs.sessionRepo.Cleanup(olderThan)
	cs.logger.Info("CHATBOT", "Old conversations removed", map[string]interface{}{
		"deleted":    deleted,
		"older_than": olderThan.String(),
	})
	return &dto.CleanupResponse{
		Status:       "success",
		Message:      fmt.Sprintf("Deleted %d old conversations", deleted),
		DeletedCount: deleted,
	}
}

func ensureConversationId(id string) string {
	if id == "" {
		return uuid.New().String()
	}
	return id
}

func toSourceDTOs(sources []response.Source) []dto.SourceDTO {
	out := make([]dto.SourceDTO, len(sources))
	for i, s := range sources {
		out[i] = dto.SourceDTO{Name: s.Name, Institution: s.Institution}
	}
	return out
}
