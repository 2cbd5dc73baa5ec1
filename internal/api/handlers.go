package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maltedev/catalog-scraper/internal/catalog"
	"github.com/maltedev/catalog-scraper/internal/jobs"
)

// RunService is implemented by *jobs.Manager.
type RunService interface {
	Submit(ctx context.Context, sections []string, mode string) (*jobs.Run, error)
	Get(ctx context.Context, runID string) (*jobs.Run, error)
	List(ctx context.Context) []*jobs.Run
	Sections() []catalog.Section
}

type Handlers struct {
	runs   RunService
	logger *slog.Logger
}

func NewHandlers(runs RunService, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		runs:   runs,
		logger: logger.With("component", "api"),
	}
}

// Routes mounts the run endpoints on r.
func (h *Handlers) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/sections", h.ListSections)
		r.Post("/runs", h.CreateRun)
		r.Get("/runs", h.ListRuns)
		r.Get("/runs/{runID}", h.GetRun)
	})
}

// CreateRunRequest represents a new scraping run request
type CreateRunRequest struct {
	Sections []string `json:"sections"`
	Mode     string   `json:"mode"`
}

// CreateRunResponse represents the run creation response
type CreateRunResponse struct {
	RunID   string      `json:"run_id"`
	Status  jobs.Status `json:"status"`
	Message string      `json:"message"`
}

// CreateRun queues a new run
func (h *Handlers) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	run, err := h.runs.Submit(r.Context(), req.Sections, req.Mode)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownSection) || errors.Is(err, catalog.ErrUnknownMode) {
			h.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to submit run", "error", err)
		h.respondError(w, http.StatusServiceUnavailable, "failed to submit run")
		return
	}

	h.respondJSON(w, http.StatusAccepted, CreateRunResponse{
		RunID:   run.ID,
		Status:  run.Status,
		Message: "Run queued",
	})
}

// GetRun handles run status retrieval
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		h.respondError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	run, err := h.runs.Get(r.Context(), runID)
	if err != nil {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}

	h.respondJSON(w, http.StatusOK, run)
}

func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.runs.List(r.Context()))
}

func (h *Handlers) ListSections(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.runs.Sections())
}

// Health reports liveness
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "catalog-scraper",
	})
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
