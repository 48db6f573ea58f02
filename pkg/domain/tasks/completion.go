package tasks

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// Completion states and events. These stay untyped string constants so they
// convert directly to statekit identifiers.
const (
	StateOpen      = "open"
	StateCompleted = "completed"

	EventComplete = "complete"
	EventReopen   = "reopen"
)

// CompletionContext carries the task identity through the machine.
type CompletionContext struct {
	TaskID string
}

// CompletionMachine models the checkbox of a single task.
type CompletionMachine struct {
	interpreter *statekit.Interpreter[CompletionContext]
}

// NewCompletionMachine starts a machine in the state matching completed.
func NewCompletionMachine(taskID string, completed bool) (*CompletionMachine, error) {
	initial := StateOpen
	if completed {
		initial = StateCompleted
	}

	builder := statekit.NewMachine[CompletionContext]("task-completion").
		WithInitial(statekit.StateID(initial)).
		WithContext(CompletionContext{TaskID: taskID})

	builder.State(StateOpen).
		On(EventComplete).Target(StateCompleted).
		Done()

	builder.State(StateCompleted).
		On(EventReopen).Target(StateOpen).
		Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build completion machine: %w", err)
	}

	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()
	return &CompletionMachine{interpreter: interpreter}, nil
}

// Toggle fires whichever event flips the current state and returns the event
// that was applied.
func (m *CompletionMachine) Toggle() (string, error) {
	event := EventComplete
	if m.Completed() {
		event = EventReopen
	}

	before := m.Current()
	m.interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	if m.Current() == before {
		return "", fmt.Errorf("event %q not accepted in state %q", event, before)
	}
	return event, nil
}

// Current returns the state name.
func (m *CompletionMachine) Current() string {
	return string(m.interpreter.State().Value)
}

// Completed reports whether the machine is in the completed state.
func (m *CompletionMachine) Completed() bool {
	return m.Current() == StateCompleted
}

// ToggleCompletion flips t.Completed through the completion machine. It
// reports whether the transition was open to completed.
func ToggleCompletion(t Task) (Task, bool, error) {
	m, err := NewCompletionMachine(t.ID, t.Completed)
	if err != nil {
		return t, false, err
	}
	event, err := m.Toggle()
	if err != nil {
		return t, false, err
	}
	t.Completed = m.Completed()
	return t, event == EventComplete, nil
}
