package wiring

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/stepwise/internal/infrastructure/config"
	"github.com/felixgeelhaar/stepwise/internal/infrastructure/sse"
	"github.com/felixgeelhaar/stepwise/pkg/application"
	domainai "github.com/felixgeelhaar/stepwise/pkg/domain/ai"
	"github.com/felixgeelhaar/stepwise/pkg/infrastructure/webhook"
)

// AppServices exposes the application layer services wired together with a workspace.
type AppServices struct {
	Workspace  *Workspace
	Provider   domainai.Provider
	Generation *application.GenerationService
	Store      *application.TaskStore
	Relay      *webhook.Relay
	// Notifier is nil when no webhook url is configured.
	Notifier *webhook.CompletionNotifier
	Events   *sse.Broker
}

// BuildAppServices wires every service for a repo root using the configured provider.
func BuildAppServices(ctx context.Context, root string, logger *slog.Logger) (*AppServices, error) {
	return BuildAppServicesWithProvider(ctx, root, logger, LoadAIProvider)
}

// BuildAppServicesWithProvider allows callers to supply a custom AI provider resolver.
// A resolver failure is returned alongside services built on the default
// provider, so read-only commands keep working.
func BuildAppServicesWithProvider(ctx context.Context, root string, logger *slog.Logger, resolver func(config.AIConfig) (domainai.Provider, error)) (*AppServices, error) {
	if logger == nil {
		logger = slog.Default()
	}

	workspace, err := NewWorkspace(ctx, root, logger)
	if err != nil {
		return nil, err
	}

	cfg := workspace.Config
	provider, err := resolver(cfg.AI)
	var loadErr error
	if err != nil {
		loadErr = fmt.Errorf("AI provider config fallback: %w", err)
		fallback, fallbackErr := LoadAIProvider(config.AIConfig{TimeoutSec: cfg.AI.TimeoutSec})
		if fallbackErr != nil {
			_ = workspace.Close()
			return nil, fmt.Errorf("fallback AI provider failed: %w", fallbackErr)
		}
		provider = fallback
	}

	relay := webhook.NewRelay(cfg.Webhook.URL, nil, logger)

	events := sse.NewBroker(logger)

	var notifier *webhook.CompletionNotifier
	storeCfg := application.TaskStoreConfig{Slot: workspace.Slot, Changes: events, Logger: logger}
	if cfg.Webhook.URL != "" {
		notifier = webhook.NewCompletionNotifier(relay, nil)
		storeCfg.Notifier = notifier
	}

	store, err := application.NewTaskStore(storeCfg)
	if err != nil {
		_ = workspace.Close()
		return nil, err
	}
	if err := store.Load(ctx); err != nil {
		_ = workspace.Close()
		return nil, err
	}

	return &AppServices{
		Workspace: workspace,
		Provider:  provider,
		Generation: application.NewGenerationService(provider, application.GenerationConfig{
			Temperature: cfg.AI.Temperature,
			MaxTokens:   cfg.AI.MaxTokens,
			Logger:      logger,
		}),
		Store:    store,
		Relay:    relay,
		Notifier: notifier,
		Events:   events,
	}, loadErr
}

// Close releases the workspace.
func (s *AppServices) Close() error {
	return s.Workspace.Close()
}
