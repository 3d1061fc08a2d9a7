package factory

import (
	"context"
	"fmt"

	"finverse-chatbot/pkg/llm"
	"finverse-chatbot/pkg/llm/gemini"
	"finverse-chatbot/pkg/llm/ollama"
)

// NewLLMProvider builds the chat model backend selected by providerType
func NewLLMProvider(ctx context.Context, providerType, modelName, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "gemini":
		return gemini.NewProvider(ctx, apiKey, modelName)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
