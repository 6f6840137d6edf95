package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bobarin/scenecut/internal/apperr"
	"github.com/bobarin/scenecut/internal/db"
	"github.com/bobarin/scenecut/internal/models"
)

// Inline media makes render requests large.
const maxRequestBytes = 512 << 20

// Renderer runs a render job in-process.
type Renderer interface {
	Render(ctx context.Context, jobID string, req *models.JobRequest) (*models.RenderResult, error)
}

// JobQueue accepts async jobs and returns their results.
type JobQueue interface {
	EnqueueRender(ctx context.Context, jobID uuid.UUID, req *models.JobRequest) error
	GetResult(ctx context.Context, jobID uuid.UUID) (*models.RenderResult, error)
}

// JobStore is the render job history.
type JobStore interface {
	CreateRenderJob(ctx context.Context, job *models.RenderJob) error
	GetRenderJob(ctx context.Context, id uuid.UUID) (*models.RenderJob, error)
}

type Handler struct {
	renderer Renderer
	queue    JobQueue // nil disables the async API
	store    JobStore // nil when no database is configured
	logger   *zap.Logger
}

func NewHandler(renderer Renderer, q JobQueue, store JobStore, logger *zap.Logger) *Handler {
	return &Handler{
		renderer: renderer,
		queue:    q,
		store:    store,
		logger:   logger.Named("api"),
	}
}

// Render handles POST /v1/render
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJobRequest(w, r)
	if !ok {
		return
	}

	jobID := uuid.New()
	result, err := h.renderer.Render(r.Context(), jobID.String(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if apperr.Is(err, apperr.KindInput) {
			status = http.StatusBadRequest
		}
		h.logger.Warn("render failed",
			zap.String("job_id", jobID.String()),
			zap.String("kind", string(apperr.KindOf(err))),
			zap.Error(err),
		)
		respondJSON(w, status, models.ErrorResult(err.Error()))
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// SubmitJob handles POST /v1/jobs
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		respondError(w, http.StatusServiceUnavailable, "Async jobs are not enabled")
		return
	}

	req, ok := decodeJobRequest(w, r)
	if !ok {
		return
	}

	// Reject bad input now rather than after the job is dequeued
	req.ApplyDefaults()
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID := uuid.New()
	if h.store != nil {
		job := &models.RenderJob{
			ID:           jobID,
			Status:       models.JobStatusQueued,
			SceneCount:   len(req.Scenes),
			Resolution:   string(req.Resolution),
			OutputFormat: req.OutputFormat,
		}
		if err := h.store.CreateRenderJob(r.Context(), job); err != nil {
			h.logger.Error("failed to create job record", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "Failed to create job")
			return
		}
	}

	if err := h.queue.EnqueueRender(r.Context(), jobID, req); err != nil {
		h.logger.Error("failed to enqueue job", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to enqueue job")
		return
	}

	h.logger.Info("job queued", zap.String("job_id", jobID.String()), zap.Int("scenes", len(req.Scenes)))
	respondJSON(w, http.StatusAccepted, models.SubmitJobResponse{
		JobID:  jobID,
		Status: models.JobStatusQueued,
	})
}

// GetJob handles GET /v1/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		respondError(w, http.StatusServiceUnavailable, "Async jobs are not enabled")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	resp := models.JobStatusResponse{JobID: id, Status: models.JobStatusQueued}

	if h.store != nil {
		job, err := h.store.GetRenderJob(r.Context(), id)
		switch {
		case err == nil:
			resp.Job = job
			resp.Status = job.Status
		case !errors.Is(err, db.ErrJobNotFound):
			h.logger.Error("failed to get job", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "Failed to get job")
			return
		}
	}

	result, err := h.queue.GetResult(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get job result", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to get job result")
		return
	}

	if result != nil {
		resp.Result = result
		if resp.Job == nil {
			resp.Status = models.JobStatusSucceeded
			if !result.Success {
				resp.Status = models.JobStatusFailed
			}
		}
	} else if h.store != nil && resp.Job == nil {
		respondError(w, http.StatusNotFound, "Job not found")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func decodeJobRequest(w http.ResponseWriter, r *http.Request) (*models.JobRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	var req models.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return nil, false
		}
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	return &req, true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"async_jobs": h.queue != nil,
		"job_store":  h.store != nil,
	})
}
