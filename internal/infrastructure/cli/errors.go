package cli

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/stepwise/pkg/application"
	"github.com/felixgeelhaar/stepwise/pkg/infrastructure/webhook"
)

// CLIError wraps domain errors with user-facing messages and actionable hints.
type CLIError struct {
	Message  string
	Hint     string
	Err      error
	ExitCode int
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a CLIError with a default exit code of 1.
func NewCLIError(msg, hint string, err error) *CLIError {
	return &CLIError{
		Message:  msg,
		Hint:     hint,
		Err:      err,
		ExitCode: 1,
	}
}

// MapError converts known domain errors into CLIErrors with actionable hints.
// Unmapped errors are returned as-is.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, application.ErrInvalidInput):
		return NewCLIError("context is required", "Describe your goal, e.g. 'stepwise generate I want to build a PC'", err)
	case errors.Is(err, application.ErrGenerationFailed):
		return NewCLIError("failed to generate tasks", "Check the API key for your provider or run 'stepwise config show'", err)
	case errors.Is(err, application.ErrTaskNotFound):
		return NewCLIError("task not found", "Run 'stepwise tasks list' to see task IDs", err)
	case errors.Is(err, webhook.ErrRelayUnreachable):
		return NewCLIError("webhook sink unreachable", "Set webhook.url in .stepwise/config.yaml or STEPWISE_WEBHOOK_URL", err)
	}

	return err
}
