package dto

import (
	"strings"
	"time"

	"finverse-chatbot/pkg/rag/stats"

	"github.com/google/uuid"
)

// ChatRequest accepts both widget dialects: {query, conversation_id} and {message, sessionId}
type ChatRequest struct {
	Query          string `json:"query"`
	ConversationId string `json:"conversation_id"`
	Message        string `json:"message"`
	SessionId      string `json:"sessionId"`
}

// ChatInput is the normalized form of every chat request
type ChatInput struct {
	Message        string     `validate:"required,max=2000"`
	ConversationId string     `validate:"max=128"`
	ProductId      *uuid.UUID `validate:"-"`
}

// Normalize picks whichever dialect the client used. A missing id stays empty.
func (r ChatRequest) Normalize() ChatInput {
	return ChatInput{
		Message:        firstNonEmpty(r.Query, r.Message),
		ConversationId: firstNonEmpty(r.ConversationId, r.SessionId),
	}
}

type ProductChatRequest struct {
	SessionId      string `json:"sessionId"`
	ConversationId string `json:"conversation_id"`
	ProductId      string `json:"productId"`
	ProductIdAlt   string `json:"product_id"`
	Message        string `json:"message"`
	Query          string `json:"query"`
}

// ProductIdValue returns the raw product id from either field
func (r ProductChatRequest) ProductIdValue() string {
	return firstNonEmpty(r.ProductId, r.ProductIdAlt)
}

// Normalize parses the product id; ok is false when it is missing or malformed
func (r ProductChatRequest) Normalize() (ChatInput, bool) {
	in := ChatInput{
		Message:        firstNonEmpty(r.Message, r.Query),
		ConversationId: firstNonEmpty(r.SessionId, r.ConversationId),
	}
	id, err := uuid.Parse(r.ProductIdValue())
	if err != nil {
		return in, false
	}
	in.ProductId = &id
	return in, true
}

type SourceDTO struct {
	Name        string `json:"name"`
	Institution string `json:"institution"`
}

type ChatResponse struct {
	Answer         string      `json:"answer"`
	Sources        []SourceDTO `json:"sources"`
	QueryType      string      `json:"query_type"`
	ConversationId string      `json:"conversation_id"`
	Success        bool        `json:"success"`
	Message        string      `json:"message,omitempty"`
}

type StatsResponse struct {
	Status string           `json:"status"`
	Stats  stats.QueryStats `json:"stats"`
}

type IngestResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	IngestedCount int    `json:"ingested_count"`
}

type HistoryMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	QueryType string    `json:"query_type,omitempty"`
}

type HistoryResponse struct {
	Status         string           `json:"status"`
	ConversationId string           `json:"conversation_id"`
	Messages       []HistoryMessage `json:"messages"`
}

type ConversationSummary struct {
	Id           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

type ConversationsResponse struct {
	Status        string                `json:"status"`
	Conversations []ConversationSummary `json:"conversations"`
}

type CleanupResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	DeletedCount int    `json:"deleted_count"`
}

type HealthResponse struct {
	Status           string `json:"status"`
	Database         string `json:"database"`
	EmbeddingModel   string `json:"embedding_model"`
	IndexedDocuments int64  `json:"indexed_documents"`
	ActiveSessions   int    `json:"active_sessions"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
