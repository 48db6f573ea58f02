// Package ai defines the port through which task generation reaches a hosted
// language model.
package ai

import (
	"context"
	"encoding/json"
)

// OutputSchema constrains a completion to a JSON document.
type OutputSchema struct {
	Name   string
	Schema json.RawMessage
}

// CompletionRequest represents a prompt to the model.
type CompletionRequest struct {
	Prompt      string
	System      string
	Temperature float32
	MaxTokens   int
	// Schema, when set, asks the provider for schema-constrained output.
	Schema *OutputSchema
}

// CompletionResponse represents the model's answer.
type CompletionResponse struct {
	Text  string
	Usage TokenUsage
	Model string
}

// TokenUsage tracks costs.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// Provider is the interface for all model backends.
type Provider interface {
	ID() string
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
