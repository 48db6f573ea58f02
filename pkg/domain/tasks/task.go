// Package tasks holds the task list domain: generated candidates, persisted
// tasks, the output schema the model must follow and the persistence port.
package tasks

import (
	"time"

	"github.com/google/uuid"
)

// Candidate is a generated task before it is given an identity.
type Candidate struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Timeframe   string `json:"timeframe"`
}

// Response is the structured document returned by the model.
type Response struct {
	Tasks []Candidate `json:"tasks"`
}

// Task is an entry of the user's task list.
type Task struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Timeframe   string `json:"timeframe"`
	Completed   bool   `json:"completed"`
}

// Candidate returns the generated triple of the task.
func (t Task) Candidate() Candidate {
	return Candidate{Name: t.Name, Description: t.Description, Timeframe: t.Timeframe}
}

// NewTask assigns a fresh id to a candidate.
func NewTask(c Candidate) Task {
	return Task{
		ID:          uuid.New().String(),
		Name:        c.Name,
		Description: c.Description,
		Timeframe:   c.Timeframe,
	}
}

// FromCandidates builds an open task for each candidate, preserving order.
func FromCandidates(cs []Candidate) []Task {
	out := make([]Task, 0, len(cs))
	for _, c := range cs {
		out = append(out, NewTask(c))
	}
	return out
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Timeframe   *string `json:"timeframe,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Timeframe == nil && p.Completed == nil
}

// Apply returns t with the present fields of p merged in.
func (p Patch) Apply(t Task) Task {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Timeframe != nil {
		t.Timeframe = *p.Timeframe
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	return t
}

// Stats feeds the completion counter.
type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

// CountStats tallies completed tasks.
func CountStats(ts []Task) Stats {
	s := Stats{Total: len(ts)}
	for _, t := range ts {
		if t.Completed {
			s.Completed++
		}
	}
	return s
}

// EventTaskCompleted is the event name sent to the webhook sink.
const EventTaskCompleted = "task_completed"

// CompletionEnvelope is the body delivered when a task gets checked off.
type CompletionEnvelope struct {
	Event     string    `json:"event"`
	Task      Candidate `json:"task"`
	Timestamp string    `json:"timestamp"`
}

// NewCompletionEnvelope builds the notification for t at the given instant.
// The timestamp is ISO-8601 in UTC with millisecond precision.
func NewCompletionEnvelope(t Task, at time.Time) CompletionEnvelope {
	return CompletionEnvelope{
		Event:     EventTaskCompleted,
		Task:      t.Candidate(),
		Timestamp: at.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}
