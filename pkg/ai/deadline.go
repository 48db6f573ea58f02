package ai

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/timeout"
	"github.com/felixgeelhaar/stepwise/pkg/domain/ai"
)

type completeFunc func(ctx context.Context) (*ai.CompletionResponse, error)

// DeadlineProvider bounds every completion by a fixed duration. It never
// retries: a failed call is reported to the caller as is.
type DeadlineProvider struct {
	inner ai.Provider
	run   func(ctx context.Context, fn completeFunc) (*ai.CompletionResponse, error)
}

// WithDeadline wraps inner when limit is positive and returns inner unchanged
// otherwise, leaving the transport default in charge.
func WithDeadline(inner ai.Provider, limit time.Duration) ai.Provider {
	if limit <= 0 {
		return inner
	}
	t := timeout.New[*ai.CompletionResponse](timeout.Config{
		DefaultTimeout: limit,
	})
	return &DeadlineProvider{
		inner: inner,
		run: func(ctx context.Context, fn completeFunc) (*ai.CompletionResponse, error) {
			return t.Execute(ctx, limit, func(ctx context.Context) (*ai.CompletionResponse, error) {
				return fn(ctx)
			})
		},
	}
}

func (p *DeadlineProvider) ID() string {
	return p.inner.ID()
}

func (p *DeadlineProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	return p.run(ctx, func(ctx context.Context) (*ai.CompletionResponse, error) {
		return p.inner.Complete(ctx, req)
	})
}
