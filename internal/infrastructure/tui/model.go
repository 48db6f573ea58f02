// Package tui is the terminal view over the task list.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/stepwise/pkg/application"
	"github.com/felixgeelhaar/stepwise/pkg/domain"
	"github.com/felixgeelhaar/stepwise/pkg/domain/tasks"
)

// Generator produces task candidates from a goal.
type Generator interface {
	Generate(ctx context.Context, content, threadID string) ([]tasks.Candidate, error)
}

// Store is the task list shown by the model.
type Store interface {
	Tasks() []tasks.Task
	Stats() tasks.Stats
	SetAll(ctx context.Context, candidates []tasks.Candidate) ([]tasks.Task, error)
	Update(ctx context.Context, id string, patch tasks.Patch) (tasks.Task, bool, error)
	ToggleCompletion(ctx context.Context, id string) (application.ToggleResult, bool, error)
}

type mode int

const (
	modeBrowse mode = iota
	modeContext
	modeEdit
)

type field string

const (
	fieldName        field = "name"
	fieldDescription field = "description"
	fieldTimeframe   field = "timeframe"
)

type generatedMsg struct {
	candidates []tasks.Candidate
	err        error
}

type toggledMsg struct {
	result application.ToggleResult
	found  bool
	err    error
}

// Model is the bubbletea model.
type Model struct {
	ctx       context.Context
	generator Generator
	store     Store
	threadID  domain.ThreadID

	mode       mode
	input      textinput.Model
	edit       textinput.Model
	editField  field
	spinner    spinner.Model
	generating bool
	cursor     int

	tasks     []tasks.Task
	stats     tasks.Stats
	notice    string
	noticeErr bool
}

func NewModel(ctx context.Context, generator Generator, store Store) Model {
	input := textinput.New()
	input.Placeholder = "I'd like to build a PC"
	input.Prompt = "Context: "
	input.CharLimit = 500

	edit := textinput.New()
	edit.CharLimit = 500

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:       ctx,
		generator: generator,
		store:     store,
		threadID:  domain.NewThreadID(),
		input:     input,
		edit:      edit,
		spinner:   sp,
	}
	m.refresh()
	if len(m.tasks) == 0 {
		m.mode = modeContext
		m.input.Focus()
	}
	return m
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m *Model) refresh() {
	m.tasks = m.store.Tasks()
	m.stats = m.store.Stats()
	if m.cursor >= len(m.tasks) {
		m.cursor = max(len(m.tasks)-1, 0)
	}
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case generatedMsg:
		m.generating = false
		if msg.err != nil {
			m.setNotice("Generation Failed: Failed to generate tasks. Please try again.", true)
			return m, nil
		}
		created, err := m.store.SetAll(m.ctx, msg.candidates)
		if err != nil {
			m.setNotice("Generation Failed: tasks could not be saved.", true)
			return m, nil
		}
		m.refresh()
		m.cursor = 0
		m.mode = modeBrowse
		m.input.Blur()
		m.setNotice(fmt.Sprintf("Tasks Generated: Generated %d tasks successfully!", len(created)), false)
		return m, nil

	case toggledMsg:
		m.refresh()
		switch {
		case msg.err != nil:
			m.setNotice("Update Failed: could not save the task.", true)
		case !msg.found, !msg.result.CompletedNow:
		case msg.result.NotifyErr != nil:
			m.setNotice("Webhook Failed: Failed to send completion notification.", true)
		default:
			m.setNotice("Webhook Sent Successfully: Task completion notification sent!", false)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.generating {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.mode {
		case modeContext:
			return m.updateContext(msg)
		case modeEdit:
			return m.updateEdit(msg)
		default:
			return m.updateBrowse(msg)
		}
	}
	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.tasks)-1 {
			m.cursor++
		}
	case "g":
		m.mode = modeContext
		cmd := m.input.Focus()
		return m, cmd
	case " ":
		if len(m.tasks) == 0 {
			return m, nil
		}
		return m, m.toggle(m.tasks[m.cursor].ID)
	case "e":
		return m.startEdit(fieldName)
	case "d":
		return m.startEdit(fieldDescription)
	case "t":
		return m.startEdit(fieldTimeframe)
	}
	return m, nil
}

func (m Model) updateContext(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.input.Blur()
		m.mode = modeBrowse
		return m, nil
	case tea.KeyEnter:
		content := m.input.Value()
		if strings.TrimSpace(content) == "" {
			m.setNotice("Context Required: Please enter a context to generate tasks.", true)
			return m, nil
		}
		if m.generating {
			return m, nil
		}
		m.generating = true
		m.notice = ""
		return m, tea.Batch(m.spinner.Tick, m.generate(content))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) startEdit(f field) (tea.Model, tea.Cmd) {
	if len(m.tasks) == 0 {
		return m, nil
	}
	t := m.tasks[m.cursor]
	value := t.Name
	switch f {
	case fieldDescription:
		value = t.Description
	case fieldTimeframe:
		value = t.Timeframe
	}

	m.mode = modeEdit
	m.editField = f
	m.edit.Prompt = string(f) + ": "
	m.edit.SetValue(value)
	m.edit.CursorEnd()
	cmd := m.edit.Focus()
	return m, cmd
}

func (m Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.edit.Blur()
		m.mode = modeBrowse
		return m, nil
	case tea.KeyEnter:
		value := m.edit.Value()
		var patch tasks.Patch
		switch m.editField {
		case fieldName:
			patch.Name = &value
		case fieldDescription:
			patch.Description = &value
		case fieldTimeframe:
			patch.Timeframe = &value
		}
		if _, _, err := m.store.Update(m.ctx, m.tasks[m.cursor].ID, patch); err != nil {
			m.setNotice("Update Failed: could not save the task.", true)
		}
		m.edit.Blur()
		m.mode = modeBrowse
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.edit, cmd = m.edit.Update(msg)
	return m, cmd
}

func (m Model) generate(content string) tea.Cmd {
	ctx, gen, thread := m.ctx, m.generator, m.threadID.String()
	return func() tea.Msg {
		candidates, err := gen.Generate(ctx, content, thread)
		return generatedMsg{candidates: candidates, err: err}
	}
}

func (m Model) toggle(id string) tea.Cmd {
	ctx, store := m.ctx, m.store
	return func() tea.Msg {
		res, found, err := store.ToggleCompletion(ctx, id)
		return toggledMsg{result: res, found: found, err: err}
	}
}

func (m Model) View() string {
	sections := []string{headerStyle.Render("AI Task Generator")}

	input := m.input.View()
	if m.generating {
		input += "\n" + m.spinner.View() + " Generating Tasks..."
	}
	sections = append(sections, input)

	if len(m.tasks) == 0 {
		sections = append(sections, mutedStyle.Render("No tasks yet. Enter a context above to generate your first set of tasks."))
	} else {
		sections = append(sections, fmt.Sprintf("Your Tasks  %s", mutedStyle.Render(fmt.Sprintf("%d of %d completed", m.stats.Completed, m.stats.Total))))
		for i, t := range m.tasks {
			sections = append(sections, m.renderTask(i, t))
		}
	}

	if m.mode == modeEdit {
		sections = append(sections, m.edit.View())
	}

	if m.notice != "" {
		style := noticeOKStyle
		if m.noticeErr {
			style = noticeErrStyle
		}
		sections = append(sections, style.Render(m.notice))
	}

	sections = append(sections, mutedStyle.Render(m.help()))
	return baseStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...)) + "\n"
}

func (m Model) renderTask(i int, t tasks.Task) string {
	pointer := "  "
	if i == m.cursor && m.mode != modeContext {
		pointer = cursorStyle.Render("> ")
	}
	box := "[ ]"
	if t.Completed {
		box = "[x]"
	}

	name := nameStyle.Render(t.Name)
	body := fmt.Sprintf("%s\n      Timeframe: %s", t.Description, t.Timeframe)
	if t.Completed {
		name = doneStyle.Render(t.Name)
		body = doneStyle.Render(body)
	}
	return fmt.Sprintf("%s%s %s\n      %s", pointer, box, name, body)
}

func (m Model) help() string {
	switch m.mode {
	case modeContext:
		return "[enter] Generate  [esc] Back to list  [ctrl+c] Quit"
	case modeEdit:
		return "[enter] Save  [esc] Cancel"
	default:
		return "[space] Toggle  [e/d/t] Edit name/description/timeframe  [g] New context  [q] Quit"
	}
}
