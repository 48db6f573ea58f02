package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/felixgeelhaar/stepwise/pkg/application"
	"github.com/felixgeelhaar/stepwise/pkg/domain/tasks"
)

const (
	msgInvalidContent   = "Content is required and must be a string"
	msgGenerationFailed = "Failed to generate tasks"
)

type generateRequest struct {
	Content  any    `json:"content"`
	ThreadID string `json:"threadId"`
}

type generateResponse struct {
	Tasks []tasks.Candidate `json:"tasks"`
}

type tasksResponse struct {
	Tasks     []tasks.Task `json:"tasks"`
	Completed int          `json:"completed"`
	Total     int          `json:"total"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleAPIGenerate returns candidates without touching the store; the caller
// decides what to keep.
func (s *Server) handleAPIGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidContent})
		return
	}
	content, ok := req.Content.(string)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidContent})
		return
	}

	candidates, err := s.generator.Generate(r.Context(), content, req.ThreadID)
	switch {
	case errors.Is(err, application.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgInvalidContent})
	case err != nil:
		s.logger.Error("api generation failed", "request_thread_id", req.ThreadID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgGenerationFailed})
	default:
		writeJSON(w, http.StatusOK, generateResponse{Tasks: candidates})
	}
}

func (s *Server) handleAPITasks(w http.ResponseWriter, r *http.Request) {
	stats := s.store.Stats()
	writeJSON(w, http.StatusOK, tasksResponse{
		Tasks:     s.store.Tasks(),
		Completed: stats.Completed,
		Total:     stats.Total,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
