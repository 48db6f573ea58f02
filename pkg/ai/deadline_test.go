package ai_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	infraAI "github.com/felixgeelhaar/stepwise/pkg/ai"
	"github.com/felixgeelhaar/stepwise/pkg/domain/ai"
)

type slowProvider struct {
	delay time.Duration
	calls atomic.Int32
}

func (s *slowProvider) ID() string { return "slow:test" }

func (s *slowProvider) Complete(ctx context.Context, _ ai.CompletionRequest) (*ai.CompletionResponse, error) {
	s.calls.Add(1)
	select {
	case <-time.After(s.delay):
		return &ai.CompletionResponse{Text: "ok"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestWithDeadline_ZeroReturnsInner(t *testing.T) {
	inner := &infraAI.MockProvider{Model: "test"}
	if got := infraAI.WithDeadline(inner, 0); got != inner {
		t.Errorf("expected inner provider unchanged, got %T", got)
	}
}

func TestWithDeadline_DelegatesID(t *testing.T) {
	p := infraAI.WithDeadline(&infraAI.MockProvider{Model: "test"}, time.Second)
	if p.ID() != "mock:test" {
		t.Errorf("expected ID 'mock:test', got %q", p.ID())
	}
}

func TestWithDeadline_Success(t *testing.T) {
	inner := &slowProvider{delay: time.Millisecond}
	p := infraAI.WithDeadline(inner, time.Second)
	resp, err := p.Complete(context.Background(), ai.CompletionRequest{Prompt: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "ok" {
		t.Errorf("unexpected text %q", resp.Text)
	}
}

func TestWithDeadline_ExpiresWithoutRetry(t *testing.T) {
	inner := &slowProvider{delay: time.Second}
	p := infraAI.WithDeadline(inner, 20*time.Millisecond)
	if _, err := p.Complete(context.Background(), ai.CompletionRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected deadline error")
	}
	if inner.calls.Load() != 1 {
		t.Errorf("expected exactly one attempt, got %d", inner.calls.Load())
	}
}
