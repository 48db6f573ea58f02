package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/stepwise/pkg/domain/tasks"
)

// ErrTaskNotFound is returned by lookups for an unknown id.
var ErrTaskNotFound = errors.New("task not found")

// CompletionNotifier is told about every task that gets checked off.
type CompletionNotifier interface {
	NotifyCompleted(ctx context.Context, task tasks.Task) error
}

// ToggleResult describes a completion toggle.
type ToggleResult struct {
	Task tasks.Task
	// CompletedNow is set when the task went from open to completed.
	CompletedNow bool
	// NotifyErr holds the notification failure, if any. The toggle itself
	// is kept regardless.
	NotifyErr error
}

// ChangePublisher receives every persisted mutation. Optional; Publish must
// not block.
type ChangePublisher interface {
	Publish(change tasks.Change)
}

// TaskStoreConfig wires the store's collaborators.
type TaskStoreConfig struct {
	Slot     tasks.Slot
	Notifier CompletionNotifier
	Changes  ChangePublisher
	Logger   *slog.Logger
}

// TaskStore holds the current task list and mirrors it to a storage slot.
type TaskStore struct {
	mu       sync.Mutex
	tasks    []tasks.Task
	slot     tasks.Slot
	notifier CompletionNotifier
	changes  ChangePublisher
	logger   *slog.Logger

	// persisted is the blob last read from or written to the slot.
	persisted []byte
}

func NewTaskStore(cfg TaskStoreConfig) (*TaskStore, error) {
	if cfg.Slot == nil {
		return nil, fmt.Errorf("storage slot is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &TaskStore{
		slot:     cfg.Slot,
		notifier: cfg.Notifier,
		changes:  cfg.Changes,
		logger:   cfg.Logger.With("svc", "application.TaskStore"),
	}, nil
}

// Load reads the persisted list once at startup. A missing or unreadable blob
// leaves the store empty; only storage access errors are returned.
func (s *TaskStore) Load(ctx context.Context) error {
	data, err := s.slot.Read(ctx)
	if errors.Is(err, tasks.ErrSlotEmpty) {
		s.replace(nil, nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read task list: %w", err)
	}

	loaded, err := decodeTasks(data)
	if err != nil {
		s.logger.Warn("discarding persisted task list", "error", err)
		s.replace(nil, nil)
		return nil
	}

	s.replace(loaded, data)
	s.logger.Debug("task list loaded", "count", len(loaded))
	return nil
}

// Reload re-reads the slot after a write by another process and reports
// whether the list changed. A blob matching the last one seen is ignored,
// as is one that does not parse.
func (s *TaskStore) Reload(ctx context.Context) (bool, error) {
	// Held across the read so an own write cannot land between read and compare.
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.slot.Read(ctx)
	if errors.Is(err, tasks.ErrSlotEmpty) {
		data, err = nil, nil
	}
	if err != nil {
		return false, fmt.Errorf("read task list: %w", err)
	}

	if bytes.Equal(data, s.persisted) {
		return false, nil
	}
	var loaded []tasks.Task
	if len(data) > 0 {
		if loaded, err = decodeTasks(data); err != nil {
			s.logger.Warn("ignoring unreadable task list", "error", err)
			return false, nil
		}
	}

	s.tasks = loaded
	s.persisted = data
	s.publishLocked(tasks.ChangeReplaced, "")
	s.logger.Debug("task list reloaded", "count", len(loaded))
	return true, nil
}

func (s *TaskStore) replace(ts []tasks.Task, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = ts
	s.persisted = data
}

func decodeTasks(data []byte) ([]tasks.Task, error) {
	var ts []tasks.Task
	if err := json.Unmarshal(data, &ts); err != nil {
		return nil, fmt.Errorf("%w: %v", tasks.ErrPersistenceParse, err)
	}
	for i, t := range ts {
		if t.ID == "" {
			return nil, fmt.Errorf("%w: task %d has no id", tasks.ErrPersistenceParse, i)
		}
	}
	return ts, nil
}

// Tasks returns a copy of the list in order.
func (s *TaskStore) Tasks() []tasks.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tasks.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Get returns the task with the given id.
func (s *TaskStore) Get(id string) (tasks.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.tasks[i], nil
	}
	return tasks.Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
}

// Stats returns the completion counter.
func (s *TaskStore) Stats() tasks.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tasks.CountStats(s.tasks)
}

// SetAll replaces the list with fresh open tasks built from candidates.
func (s *TaskStore) SetAll(ctx context.Context, candidates []tasks.Candidate) ([]tasks.Task, error) {
	next := tasks.FromCandidates(candidates)
	if err := s.Replace(ctx, next); err != nil {
		return nil, err
	}
	out := make([]tasks.Task, len(next))
	copy(out, next)
	return out, nil
}

// Replace swaps in a fully formed list. A failed write leaves the previous
// list in place.
func (s *TaskStore) Replace(ctx context.Context, ts []tasks.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]tasks.Task, len(ts))
	copy(next, ts)
	prev := s.tasks
	s.tasks = next
	if err := s.persistLocked(ctx); err != nil {
		s.tasks = prev
		return err
	}
	s.publishLocked(tasks.ChangeReplaced, "")
	return nil
}

// Clear empties the list and the storage slot.
func (s *TaskStore) Clear(ctx context.Context) error {
	return s.Replace(ctx, nil)
}

// Update merges patch into the task with the given id. An unknown id is a
// no-op reported by the boolean.
func (s *TaskStore) Update(ctx context.Context, id string, patch tasks.Patch) (tasks.Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return tasks.Task{}, false, nil
	}
	prev := s.tasks[i]
	s.tasks[i] = patch.Apply(prev)
	if err := s.persistLocked(ctx); err != nil {
		s.tasks[i] = prev
		return prev, true, err
	}
	s.publishLocked(tasks.ChangeUpdated, id)
	return s.tasks[i], true, nil
}

// ToggleCompletion flips the completed flag of a task. Checking a task off
// notifies exactly once; the notification outcome is reported in the result
// and never undoes the toggle. The notification runs detached from ctx so a
// caller going away does not abort a relay call already issued.
func (s *TaskStore) ToggleCompletion(ctx context.Context, id string) (ToggleResult, bool, error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return ToggleResult{}, false, nil
	}

	toggled, completedNow, err := tasks.ToggleCompletion(s.tasks[i])
	if err != nil {
		s.mu.Unlock()
		return ToggleResult{}, true, err
	}
	prev := s.tasks[i]
	s.tasks[i] = toggled
	persistErr := s.persistLocked(ctx)
	if persistErr != nil {
		s.tasks[i] = prev
	} else {
		kind := tasks.ChangeReopened
		if toggled.Completed {
			kind = tasks.ChangeCompleted
		}
		s.publishLocked(kind, id)
	}
	s.mu.Unlock()

	if persistErr != nil {
		return ToggleResult{Task: prev}, true, persistErr
	}

	result := ToggleResult{Task: toggled, CompletedNow: completedNow}
	if completedNow && s.notifier != nil {
		if err := s.notifier.NotifyCompleted(context.WithoutCancel(ctx), toggled); err != nil {
			s.logger.Warn("completion notification failed", "task_id", toggled.ID, "error", err)
			result.NotifyErr = err
		}
	}
	return result, true, nil
}

func (s *TaskStore) indexOf(id string) int {
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *TaskStore) publishLocked(kind tasks.ChangeKind, id string) {
	if s.changes == nil {
		return
	}
	stats := tasks.CountStats(s.tasks)
	s.changes.Publish(tasks.Change{
		Kind:      kind,
		TaskID:    id,
		Completed: stats.Completed,
		Total:     stats.Total,
		Timestamp: time.Now().UTC(),
	})
}

// persistLocked mirrors the list to the slot. An empty list clears the slot.
func (s *TaskStore) persistLocked(ctx context.Context) error {
	if len(s.tasks) == 0 {
		if err := s.slot.Clear(ctx); err != nil {
			return fmt.Errorf("clear task list: %w", err)
		}
		s.persisted = nil
		return nil
	}

	data, err := json.Marshal(s.tasks)
	if err != nil {
		return fmt.Errorf("marshal task list: %w", err)
	}
	if err := s.slot.Write(ctx, data); err != nil {
		return fmt.Errorf("write task list: %w", err)
	}
	s.persisted = data
	return nil
}
