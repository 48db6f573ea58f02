package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/felixgeelhaar/stepwise/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/stepwise/pkg/application"
	"github.com/felixgeelhaar/stepwise/pkg/domain"
	"github.com/felixgeelhaar/stepwise/pkg/domain/tasks"
)

type Server struct {
	mcpServer  *mcp.Server
	generation *application.GenerationService
	store      *application.TaskStore
	threadID   domain.ThreadID
	logger     *slog.Logger
	closeFn    func() error
}

var (
	Version     = "dev"
	BuildCommit = "unknown"
	BuildDate   = "unknown"
)

// mcpErr returns a user-friendly error for MCP clients.
// Internal details are omitted; only the friendly message is returned.
func mcpErr(friendly string) error {
	return fmt.Errorf("%s", friendly)
}

// NewServer wires the services for root and registers every tool.
func NewServer(ctx context.Context, root string, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	services, err := wiring.BuildAppServices(ctx, root, logger)
	if services == nil {
		return nil, fmt.Errorf("build services: %w", err)
	}
	if err != nil {
		logger.Warn("using fallback AI provider", "error", err)
	}
	return NewServerWithServices(services, logger), nil
}

// NewServerWithServices registers tools over already built services.
func NewServerWithServices(services *wiring.AppServices, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	threadID := domain.NewThreadID()

	info := mcp.ServerInfo{
		Name:    "stepwise",
		Version: Version,
	}

	s := &Server{
		mcpServer: mcp.NewServer(info,
			mcp.WithTitle("Stepwise MCP Server"),
			mcp.WithDescription("Stepwise breaks a goal into 3-5 actionable tasks and tracks their completion."),
			mcp.WithBuildInfo(BuildCommit, BuildDate),
			mcp.WithInstructions("Call generate_tasks with a goal, then list_tasks, update_task and toggle_task to work through the list."),
		),
		generation: services.Generation,
		store:      services.Store,
		threadID:   threadID,
		logger:     logger.With("svc", "mcp.Server", "thread_id", threadID.String()),
		closeFn:    services.Close,
	}

	s.registerTools()
	s.registerSchemaResource()
	return s
}

// Close releases the underlying workspace.
func (s *Server) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

type GenerateTasksArgs struct {
	Content string `json:"content" jsonschema:"description=The goal to break down into tasks"`
}

type UpdateTaskArgs struct {
	ID          string  `json:"id" jsonschema:"description=The task ID"`
	Name        *string `json:"name,omitempty" jsonschema:"description=New task name"`
	Description *string `json:"description,omitempty" jsonschema:"description=New task description"`
	Timeframe   *string `json:"timeframe,omitempty" jsonschema:"description=New time estimate"`
}

type ToggleTaskArgs struct {
	ID string `json:"id" jsonschema:"description=The task ID"`
}

type TaskList struct {
	Tasks     []tasks.Task `json:"tasks"`
	Completed int          `json:"completed"`
	Total     int          `json:"total"`
}

type ToggleResult struct {
	Task         tasks.Task `json:"task"`
	CompletedNow bool       `json:"completed_now"`
	Notified     bool       `json:"notified"`
	NotifyError  string     `json:"notify_error,omitempty"`
}

func (s *Server) registerTools() {
	s.mcpServer.Tool("generate_tasks").
		Description("Generate 3-5 actionable tasks for a goal. Replaces the current task list.").
		Handler(s.handleGenerateTasks)

	s.mcpServer.Tool("list_tasks").
		Description("List the current tasks with the completion counter").
		Handler(s.handleListTasks)

	s.mcpServer.Tool("update_task").
		Description("Edit the name, description or timeframe of a task. Omitted fields are left unchanged.").
		Handler(s.handleUpdateTask)

	s.mcpServer.Tool("toggle_task").
		Description("Mark a task completed or open again. Completing a task sends the webhook notification.").
		Handler(s.handleToggleTask)
}

func (s *Server) handleGenerateTasks(ctx context.Context, args GenerateTasksArgs) (TaskList, error) {
	candidates, err := s.generation.Generate(ctx, args.Content, s.threadID.String())
	if errors.Is(err, application.ErrInvalidInput) {
		return TaskList{}, mcpErr("Content is required and must be a non-empty string.")
	}
	if err != nil {
		s.logger.Error("generate_tasks failed", "error", err)
		return TaskList{}, mcpErr("Failed to generate tasks. Please try again.")
	}
	if _, err := s.store.SetAll(ctx, candidates); err != nil {
		s.logger.Error("saving generated tasks failed", "error", err)
		return TaskList{}, mcpErr("Tasks were generated but could not be saved.")
	}
	return s.list(), nil
}

func (s *Server) handleListTasks(_ context.Context, _ struct{}) (TaskList, error) {
	return s.list(), nil
}

func (s *Server) handleUpdateTask(ctx context.Context, args UpdateTaskArgs) (tasks.Task, error) {
	patch := tasks.Patch{Name: args.Name, Description: args.Description, Timeframe: args.Timeframe}
	task, found, err := s.store.Update(ctx, args.ID, patch)
	if err != nil {
		return tasks.Task{}, mcpErr("Failed to save the task.")
	}
	if !found {
		return tasks.Task{}, mcpErr(fmt.Sprintf("Task '%s' not found. Use list_tasks to see the available IDs.", args.ID))
	}
	return task, nil
}

func (s *Server) handleToggleTask(ctx context.Context, args ToggleTaskArgs) (ToggleResult, error) {
	res, found, err := s.store.ToggleCompletion(ctx, args.ID)
	if err != nil {
		return ToggleResult{}, mcpErr("Failed to save the task.")
	}
	if !found {
		return ToggleResult{}, mcpErr(fmt.Sprintf("Task '%s' not found. Use list_tasks to see the available IDs.", args.ID))
	}

	out := ToggleResult{Task: res.Task, CompletedNow: res.CompletedNow}
	if res.CompletedNow {
		out.Notified = res.NotifyErr == nil
		if res.NotifyErr != nil {
			out.NotifyError = "Failed to send completion notification."
		}
	}
	return out, nil
}

func (s *Server) list() TaskList {
	stats := s.store.Stats()
	return TaskList{Tasks: s.store.Tasks(), Completed: stats.Completed, Total: stats.Total}
}

func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr, mcp.WithDefaultCORS())
}

func (s *Server) ServeWebSocket(ctx context.Context, addr string) error {
	return mcp.ServeWebSocket(ctx, s.mcpServer, addr)
}
