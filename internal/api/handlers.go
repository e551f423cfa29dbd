package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/drover-dev/drover/internal/project"
	"github.com/drover-dev/drover/pkg/session"
	"github.com/drover-dev/drover/pkg/task"
)

// version is set via -ldflags at build time
var version = "dev"

// SetVersion sets the version string (called from main).
func SetVersion(v string) {
	version = v
}

// Response types

// HealthResponse is the response for /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// VersionResponse is the response for /version.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ProjectResponse represents a project in API responses.
type ProjectResponse struct {
	ID           string `json:"id"`
	Path         string `json:"path"`
	Name         string `json:"name"`
	RegisteredAt string `json:"registered_at"`
}

// RegisterProjectRequest is the request body for registering a project.
type RegisterProjectRequest struct {
	Path string `json:"path"`
}

// LogResponse wraps a session log tail.
type LogResponse struct {
	SessionID string   `json:"session_id"`
	Lines     []string `json:"lines"`
}

// StopResponse reports the stop outcome.
type StopResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// Handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{
		Version: version,
		Service: "drover-service",
	})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects := s.registry.List()
	response := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		response = append(response, toProjectResponse(p))
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleRegisterProject(w http.ResponseWriter, r *http.Request) {
	var req RegisterProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "Path is required")
		return
	}

	p, err := s.manager.RegisterProject(req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, toProjectResponse(p))
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Project not found")
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

func (s *Server) handleUnregisterProject(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.UnregisterProject(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	p, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Project not found")
		return
	}

	status, err := s.manager.StatusOf(p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	p, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Project not found")
		return
	}

	doc, err := s.manager.Store(p).Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "Project has no implementation document")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	p, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Project not found")
		return
	}

	sess, err := s.manager.Sessions(p).Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "Project has no session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request) {
	p, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Project not found")
		return
	}

	sessions := s.manager.Sessions(p)
	sess, err := sessions.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "Project has no session")
		return
	}

	lines := 100
	if q := r.URL.Query().Get("lines"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "lines must be a positive integer")
			return
		}
		lines = n
	}

	log, err := session.OpenLog(sessions.LogPathFor(sess.ID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	tail, err := log.Tail(lines)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, LogResponse{SessionID: sess.ID, Lines: tail})
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	p, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Project not found")
		return
	}

	force := r.URL.Query().Get("force") == "true"
	sess, err := s.manager.Sessions(p).Stop(session.DefaultGracePeriod, force)
	switch {
	case errors.Is(err, session.ErrNotRunning):
		writeError(w, http.StatusConflict, "No running session")
		return
	case errors.Is(err, session.ErrStillAlive):
		writeError(w, http.StatusConflict,
			"Agent survived the grace period; retry with force=true")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, StopResponse{
		SessionID: sess.ID,
		Status:    string(sess.Status),
	})
}

func (s *Server) handleResetTask(w http.ResponseWriter, r *http.Request) {
	p, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Project not found")
		return
	}
	specID := chi.URLParam(r, "specID")
	taskID := chi.URLParam(r, "taskID")

	store := s.manager.Store(p)
	doc, err := store.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "Project has no implementation document")
		return
	}

	target := doc.FindTask(specID, taskID)
	if target == nil {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}
	if target.Status == task.StatusCompleted {
		writeError(w, http.StatusConflict, "Completed tasks cannot be reset")
		return
	}

	task.ResetToPending(doc, specID, taskID)
	if err := store.Save(doc, task.ActorUser); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, target)
}

func toProjectResponse(p *project.Project) ProjectResponse {
	return ProjectResponse{
		ID:           p.ID,
		Path:         p.Path,
		Name:         p.Name,
		RegisteredAt: p.RegisteredAt.Format("2006-01-02T15:04:05Z"),
	}
}

// Helpers

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
