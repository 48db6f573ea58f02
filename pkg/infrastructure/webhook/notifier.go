package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/stepwise/pkg/domain/tasks"
)

// ErrDeliveryFailed is matched by every *DeliveryError.
var ErrDeliveryFailed = errors.New("webhook delivery failed")

// DeliveryError reports a sink that answered with a non-2xx status.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s: sink returned status %d", ErrDeliveryFailed, e.StatusCode)
}

func (e *DeliveryError) Is(target error) bool { return target == ErrDeliveryFailed }

// CompletionNotifier announces completed tasks through a Relay.
type CompletionNotifier struct {
	relay *Relay
	now   func() time.Time
}

func NewCompletionNotifier(relay *Relay, now func() time.Time) *CompletionNotifier {
	if now == nil {
		now = time.Now
	}
	return &CompletionNotifier{relay: relay, now: now}
}

// NotifyCompleted sends a task_completed envelope for t.
func (n *CompletionNotifier) NotifyCompleted(ctx context.Context, t tasks.Task) error {
	body, err := json.Marshal(tasks.NewCompletionEnvelope(t, n.now()))
	if err != nil {
		return fmt.Errorf("marshal completion envelope: %w", err)
	}

	resp, err := n.relay.Forward(ctx, body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	return nil
}
