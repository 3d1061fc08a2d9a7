package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewChatQueryAnswered(t *testing.T) {
	e := NewChatQueryAnswered(ChatQueryAnswered{
		ConversationID: "c-1",
		QueryType:      "sql",
		SourceCount:    2,
		Latency:        1500 * time.Millisecond,
	})

	assert.Equal(t, EventChatQueryAnswered, e.EventType())
	assert.Equal(t, "c-1", e.Payload()["conversation_id"])
	assert.Equal(t, int64(1500), e.Payload()["latency_ms"])
	assert.NotContains(t, e.Payload(), "product_id")
	assert.WithinDuration(t, time.Now(), e.Timestamp(), time.Second)

	scoped := NewChatQueryAnswered(ChatQueryAnswered{ProductID: "p-1"})
	assert.Equal(t, "p-1", scoped.Payload()["product_id"])
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), BaseEvent{Type: "X"}))
}
