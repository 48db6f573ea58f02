// Package web serves the browser view and the JSON API for the task list.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/stepwise/pkg/application"
	"github.com/felixgeelhaar/stepwise/pkg/domain"
	"github.com/felixgeelhaar/stepwise/pkg/domain/tasks"
)

//go:embed templates/*
var templatesFS embed.FS

// Generator produces task candidates from a goal.
type Generator interface {
	Generate(ctx context.Context, content, threadID string) ([]tasks.Candidate, error)
}

// Store is the task list the view renders and mutates.
type Store interface {
	Tasks() []tasks.Task
	Stats() tasks.Stats
	SetAll(ctx context.Context, candidates []tasks.Candidate) ([]tasks.Task, error)
	Update(ctx context.Context, id string, patch tasks.Patch) (tasks.Task, bool, error)
	ToggleCompletion(ctx context.Context, id string) (application.ToggleResult, bool, error)
	Clear(ctx context.Context) error
}

var placeholders = []string{
	"How can I prepare for exam",
	"I am preparing to move out",
	"I'd like to build a PC",
}

// Config wires the server.
type Config struct {
	Addr      string
	Store     Store
	Generator Generator
	// Webhook serves POST /api/webhook. Optional.
	Webhook http.Handler
	// Events streams task list changes on GET /api/events. Optional.
	Events   http.Handler
	ThreadID domain.ThreadID
	Logger   *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	addr      string
	store     Store
	generator Generator
	webhook   http.Handler
	events    http.Handler
	threadID  domain.ThreadID
	tmpl      *template.Template
	logger    *slog.Logger
	server    *http.Server

	generating atomic.Bool

	streams     context.Context
	stopStreams context.CancelFunc

	mu          sync.Mutex
	notices     []Notice
	lastContext string
}

// NoticeKind selects the notice styling.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a one-shot message shown on the next render.
type Notice struct {
	Kind  NoticeKind
	Title string
	Text  string
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("task store is required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ThreadID.IsZero() {
		cfg.ThreadID = domain.NewThreadID()
	}

	funcMap := template.FuncMap{
		"noticeClass": noticeClass,
	}
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		addr:      cfg.Addr,
		store:     cfg.Store,
		generator: cfg.Generator,
		webhook:   cfg.Webhook,
		events:    cfg.Events,
		threadID:  cfg.ThreadID,
		tmpl:      tmpl,
		logger:    cfg.Logger.With("svc", "web.Server", "thread_id", cfg.ThreadID.String()),
	}
	s.streams, s.stopStreams = context.WithCancel(context.Background())
	// Built up front so Shutdown may run before Start.
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
	}
	s.server.RegisterOnShutdown(s.stopStreams)
	return s, nil
}

// Handler returns the routed mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /generate", s.handleGenerate)
	mux.HandleFunc("POST /tasks/clear", s.handleClear)
	mux.HandleFunc("POST /tasks/{id}", s.handleEdit)
	mux.HandleFunc("POST /tasks/{id}/toggle", s.handleToggle)

	mux.HandleFunc("POST /api/generate-tasks", s.handleAPIGenerate)
	mux.HandleFunc("GET /api/tasks", s.handleAPITasks)
	if s.webhook != nil {
		mux.Handle("POST /api/webhook", s.webhook)
	}
	if s.events != nil {
		mux.Handle("GET /api/events", s.stream(s.events))
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}

// stream ends long-lived responses when the server shuts down, since
// Shutdown itself waits for them.
func (s *Server) stream(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		stop := context.AfterFunc(s.streams, cancel)
		defer stop()
		h.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("web server starting", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// PageData holds data for template rendering.
type PageData struct {
	Title       string
	Placeholder string
	Context     string
	Generating  bool
	Live        bool
	Tasks       []tasks.Task
	Stats       tasks.Stats
	Notices     []Notice
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	notices := s.notices
	s.notices = nil
	lastContext := s.lastContext
	s.mu.Unlock()

	s.render(w, "index.html", PageData{
		Title:       "AI Task Generator",
		Placeholder: placeholders[rand.IntN(len(placeholders))],
		Context:     lastContext,
		Generating:  s.generating.Load(),
		Live:        s.events != nil,
		Tasks:       s.store.Tasks(),
		Stats:       s.store.Stats(),
		Notices:     notices,
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	defer s.redirectHome(w, r)

	content := r.FormValue("context")
	s.mu.Lock()
	s.lastContext = content
	s.mu.Unlock()

	if strings.TrimSpace(content) == "" {
		s.notify(NoticeError, "Context Required", "Please enter a context to generate tasks.")
		return
	}
	if !s.generating.CompareAndSwap(false, true) {
		s.notify(NoticeError, "Generation In Progress", "Tasks are already being generated. Please wait.")
		return
	}
	defer s.generating.Store(false)

	candidates, err := s.generator.Generate(r.Context(), content, s.threadID.String())
	if err != nil {
		s.logger.Error("generation failed", "error", err)
		s.notify(NoticeError, "Generation Failed", "Failed to generate tasks. Please try again.")
		return
	}

	created, err := s.store.SetAll(r.Context(), candidates)
	if err != nil {
		s.logger.Error("saving generated tasks failed", "error", err)
		s.notify(NoticeError, "Generation Failed", "Tasks were generated but could not be saved.")
		return
	}
	s.notify(NoticeSuccess, "Tasks Generated", fmt.Sprintf("Generated %d tasks successfully!", len(created)))
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	defer s.redirectHome(w, r)

	if err := r.ParseForm(); err != nil {
		s.notify(NoticeError, "Update Failed", "Could not read the submitted form.")
		return
	}
	patch := patchFromForm(r)
	if patch.IsEmpty() {
		return
	}

	if _, _, err := s.store.Update(r.Context(), r.PathValue("id"), patch); err != nil {
		s.logger.Error("updating task failed", "error", err)
		s.notify(NoticeError, "Update Failed", "Could not save the task.")
	}
}

// patchFromForm only includes fields that were actually submitted.
func patchFromForm(r *http.Request) tasks.Patch {
	var p tasks.Patch
	if v, ok := r.PostForm["name"]; ok && len(v) > 0 {
		p.Name = &v[0]
	}
	if v, ok := r.PostForm["description"]; ok && len(v) > 0 {
		p.Description = &v[0]
	}
	if v, ok := r.PostForm["timeframe"]; ok && len(v) > 0 {
		p.Timeframe = &v[0]
	}
	return p
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	defer s.redirectHome(w, r)

	res, found, err := s.store.ToggleCompletion(r.Context(), r.PathValue("id"))
	switch {
	case err != nil:
		s.logger.Error("toggling task failed", "error", err)
		s.notify(NoticeError, "Update Failed", "Could not save the task.")
	case !found:
	case !res.CompletedNow:
	case res.NotifyErr != nil:
		s.notify(NoticeError, "Webhook Failed", "Failed to send completion notification.")
	default:
		s.notify(NoticeSuccess, "Webhook Sent Successfully", "Task completion notification sent!")
	}
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	defer s.redirectHome(w, r)

	if err := s.store.Clear(r.Context()); err != nil {
		s.logger.Error("clearing tasks failed", "error", err)
		s.notify(NoticeError, "Clear Failed", "Could not clear the task list.")
	}
}

func (s *Server) notify(kind NoticeKind, title, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, Notice{Kind: kind, Title: title, Text: text})
}

func (s *Server) redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("template error", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func noticeClass(k NoticeKind) string {
	switch k {
	case NoticeSuccess:
		return "notice-success"
	case NoticeError:
		return "notice-error"
	default:
		return "notice-info"
	}
}
