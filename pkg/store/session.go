package store

import "time"

// Role of a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	QueryType string    `json:"query_type,omitempty"`
}

// Session is the in-memory conversation state for one conversation id
type Session struct {
	ID           string    `json:"id"`
	Turns        []Turn    `json:"turns"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	// TurnCount is filled on listings, where Turns is left empty
	TurnCount int `json:"turn_count,omitempty"`
}
