package tasks

import "time"

// ChangeKind names a mutation of the task list.
type ChangeKind string

const (
	ChangeReplaced  ChangeKind = "tasks.replaced"
	ChangeUpdated   ChangeKind = "task.updated"
	ChangeCompleted ChangeKind = "task.completed"
	ChangeReopened  ChangeKind = "task.reopened"
)

// Change describes one persisted mutation, with the counter as it stands afterwards.
type Change struct {
	Kind      ChangeKind `json:"type"`
	TaskID    string     `json:"task_id,omitempty"`
	Completed int        `json:"completed"`
	Total     int        `json:"total"`
	Timestamp time.Time  `json:"timestamp"`
}
