package ai

import (
	"fmt"
	"os"

	"github.com/felixgeelhaar/stepwise/pkg/domain/ai"
)

// NewProvider builds the named provider. API keys come from the environment.
func NewProvider(providerName string, modelName string) (ai.Provider, error) {
	switch providerName {
	case "openai", "":
		return NewOpenAIProvider(modelName, os.Getenv("OPENAI_API_KEY")), nil
	case "anthropic":
		return NewAnthropicProvider(modelName, os.Getenv("ANTHROPIC_API_KEY")), nil
	case "gemini":
		return NewGeminiProvider(modelName, os.Getenv("GEMINI_API_KEY")), nil
	case "ollama":
		return NewOllamaProvider(modelName), nil
	case "mock":
		return &MockProvider{Model: modelName}, nil
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", providerName)
	}
}

// GetDefaultProvider returns a provider based on environment variables or configured defaults.
func GetDefaultProvider(providerName, modelName string) (ai.Provider, error) {
	if envProvider := os.Getenv("STEPWISE_AI_PROVIDER"); envProvider != "" {
		providerName = envProvider
	}
	if envModel := os.Getenv("STEPWISE_AI_MODEL"); envModel != "" {
		modelName = envModel
	}

	return NewProvider(providerName, modelName)
}
