package events

import (
	"context"
	"time"
)

// Event types published by the chatbot service
const (
	EventChatQueryAnswered = "CHAT_QUERY_ANSWERED"
	// EventCatalogProductChanged is published by the catalog API when a product is created or edited
	EventCatalogProductChanged = "CATALOG_PRODUCT_CHANGED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "CHAT_QUERY_ANSWERED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Publisher sends events to the bus
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event; used when no bus is configured
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) error {
	return nil
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// ChatQueryAnswered records the outcome of one chat request
type ChatQueryAnswered struct {
	ConversationID string
	QueryType      string
	ProductID      string
	SourceCount    int
	Failed         bool
	Degraded       bool
	Latency        time.Duration
}

func NewChatQueryAnswered(a ChatQueryAnswered) BaseEvent {
	data := map[string]interface{}{
		"conversation_id": a.ConversationID,
		"query_type":      a.QueryType,
		"source_count":    a.SourceCount,
		"failed":          a.Failed,
		"degraded":        a.Degraded,
		"latency_ms":      a.Latency.Milliseconds(),
	}
	if a.ProductID != "" {
		data["product_id"] = a.ProductID
	}
	return BaseEvent{
		Type:       EventChatQueryAnswered,
		Data:       data,
		OccurredAt: time.Now(),
	}
}
