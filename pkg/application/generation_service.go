package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/felixgeelhaar/stepwise/pkg/domain/ai"
	"github.com/felixgeelhaar/stepwise/pkg/domain/tasks"
)

var (
	// ErrInvalidInput is returned when the context is empty or blank.
	ErrInvalidInput = errors.New("context is required and must be a non-empty string")
	// ErrGenerationFailed is matched by every *GenerationError.
	ErrGenerationFailed = errors.New("failed to generate tasks")
)

// GenerationError hides the provider failure behind ErrGenerationFailed while
// keeping the cause available to logs.
type GenerationError struct {
	Cause error
}

func (e *GenerationError) Error() string {
	if e.Cause == nil {
		return ErrGenerationFailed.Error()
	}
	return fmt.Sprintf("%s: %v", ErrGenerationFailed, e.Cause)
}

func (e *GenerationError) Unwrap() error { return e.Cause }

func (e *GenerationError) Is(target error) bool { return target == ErrGenerationFailed }

const (
	// DefaultTemperature keeps answers varied across identical requests.
	DefaultTemperature float32 = 0.7

	generationSystemPrompt = "You are a practical planning assistant. You break goals into a short list of concrete tasks and answer only with the requested JSON document."

	generationPromptTemplate = `Based on the following context, generate 3-5 specific, actionable tasks that would help someone accomplish their goal. Each task should be practical and achievable.

Context: "%s"

Please provide tasks that are:
- Specific and actionable
- Realistic in scope
- Properly sequenced if order matters
- Include reasonable time estimates

Focus on breaking down the main goal into concrete steps that can be completed and checked off.`
)

// GenerationConfig tunes the completion request.
type GenerationConfig struct {
	Temperature float32
	MaxTokens   int
	Logger      *slog.Logger
}

// GenerationService turns a free-text goal into task candidates.
type GenerationService struct {
	provider    ai.Provider
	temperature float32
	maxTokens   int
	logger      *slog.Logger
}

func NewGenerationService(provider ai.Provider, cfg GenerationConfig) *GenerationService {
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &GenerationService{
		provider:    provider,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      cfg.Logger.With("svc", "application.Generation"),
	}
}

// ProviderID names the backend in use.
func (s *GenerationService) ProviderID() string {
	return s.provider.ID()
}

// BuildPrompt embeds content verbatim into the generation instruction.
func BuildPrompt(content string) string {
	return fmt.Sprintf(generationPromptTemplate, content)
}

// Generate asks the provider for 3-5 tasks. Blank content fails with
// ErrInvalidInput before any call is made; every other failure is reported as
// a *GenerationError with no partial result.
func (s *GenerationService) Generate(ctx context.Context, content, threadID string) ([]tasks.Candidate, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrInvalidInput
	}

	logger := s.logger.With("thread_id", threadID, "provider", s.provider.ID())
	logger.Info("generating tasks")

	resp, err := s.provider.Complete(ctx, ai.CompletionRequest{
		Prompt:      BuildPrompt(content),
		System:      generationSystemPrompt,
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
		Schema: &ai.OutputSchema{
			Name:   tasks.SchemaName,
			Schema: tasks.Schema(),
		},
	})
	if err != nil {
		logger.Error("task generation failed", "error", err)
		return nil, &GenerationError{Cause: err}
	}

	parsed, err := tasks.ValidateResponse([]byte(extractJSONPayload(resp.Text)))
	if err != nil {
		logger.Error("model output rejected", "error", err)
		return nil, &GenerationError{Cause: err}
	}

	logger.Info("tasks generated",
		"count", len(parsed.Tasks),
		"model", resp.Model,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return parsed.Tasks, nil
}

// extractJSONPayload strips code fences and surrounding prose some models add
// even in structured mode.
func extractJSONPayload(text string) string {
	clean := strings.TrimSpace(text)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)

	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start == -1 || end <= start {
		return clean
	}
	return clean[start : end+1]
}
