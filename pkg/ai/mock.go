package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/felixgeelhaar/stepwise/pkg/domain/ai"
)

// MockProvider answers without network access. With Response set it returns
// that text verbatim; otherwise it derives a fixed four-step plan from the
// prompt so offline runs still produce a valid task list.
type MockProvider struct {
	Model    string
	Response string
	Err      error

	mu    sync.Mutex
	calls int
	last  ai.CompletionRequest
}

func (p *MockProvider) ID() string {
	return "mock:" + p.Model
}

// Calls reports how many completions were requested.
func (p *MockProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// LastRequest returns the most recent completion request.
func (p *MockProvider) LastRequest() ai.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *MockProvider) Complete(_ context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	p.mu.Lock()
	p.calls++
	p.last = req
	p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}

	text := p.Response
	if text == "" {
		text = cannedPlan(req.Prompt)
	}
	return &ai.CompletionResponse{
		Text:  text,
		Model: p.Model,
		Usage: ai.TokenUsage{InputTokens: len(req.Prompt) / 4, OutputTokens: len(text) / 4},
	}, nil
}

func cannedPlan(prompt string) string {
	goal := "the goal"
	if i := strings.Index(prompt, `Context: "`); i >= 0 {
		rest := prompt[i+len(`Context: "`):]
		if j := strings.Index(rest, `"`); j > 0 {
			goal = rest[:j]
		}
	}

	type item struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Timeframe   string `json:"timeframe"`
	}
	doc := struct {
		Tasks []item `json:"tasks"`
	}{Tasks: []item{
		{"Clarify the outcome", fmt.Sprintf("Write down what done looks like for %q.", goal), "30 minutes"},
		{"List the required resources", "Collect the tools, materials and information needed.", "1 hour"},
		{"Do the core work", "Work through the main steps in order.", "3 hours"},
		{"Review and wrap up", "Check the result against the outcome and close loose ends.", "1 hour"},
	}}
	b, _ := json.Marshal(doc)
	return string(b)
}
