package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatRequestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		req      ChatRequest
		wantMsg  string
		wantConv string
	}{
		{"query dialect", ChatRequest{Query: " rates? ", ConversationId: "c1"}, "rates?", "c1"},
		{"message dialect", ChatRequest{Message: "fees?", SessionId: "s1"}, "fees?", "s1"},
		{"query wins", ChatRequest{Query: "a", Message: "b"}, "a", ""},
		{"empty", ChatRequest{Query: "   "}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.req.Normalize()
			assert.Equal(t, tt.wantMsg, in.Message)
			assert.Equal(t, tt.wantConv, in.ConversationId)
			assert.Nil(t, in.ProductId)
		})
	}
}

func TestProductChatRequestNormalize(t *testing.T) {
	in, ok := ProductChatRequest{SessionId: "s", ProductId: "6f1c7e1a-3b2d-4c5e-8f9a-0b1c2d3e4f5a", Message: "fees?"}.Normalize()
	require.True(t, ok)
	assert.Equal(t, "6f1c7e1a-3b2d-4c5e-8f9a-0b1c2d3e4f5a", in.ProductId.String())
	assert.Equal(t, "fees?", in.Message)

	in, ok = ProductChatRequest{ProductIdAlt: "6f1c7e1a-3b2d-4c5e-8f9a-0b1c2d3e4f5a", Query: "q", ConversationId: "c"}.Normalize()
	require.True(t, ok)
	assert.Equal(t, "c", in.ConversationId)

	_, ok = ProductChatRequest{ProductId: "not-a-uuid", Message: "q"}.Normalize()
	assert.False(t, ok)
}
