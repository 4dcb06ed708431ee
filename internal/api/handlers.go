package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/bobarin/montage/internal/db"
	"github.com/bobarin/montage/internal/models"
	"github.com/bobarin/montage/internal/progress"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// JobStore is the read side of job persistence.
type JobStore interface {
	GetJob(ctx context.Context, id uuid.UUID) (*models.RenderJob, error)
	ListJobs(ctx context.Context, limit, offset int) ([]models.RenderJob, error)
}

type Submitter interface {
	Submit(ctx context.Context, req models.RenderRequest) (*models.RenderJob, error)
}

// Subscriber streams status updates for one job.
type Subscriber interface {
	Subscribe(jobID uuid.UUID) (<-chan progress.Update, func())
}

type Handler struct {
	jobs      JobStore
	submitter Submitter
	hub       Subscriber
}

func NewHandler(jobs JobStore, submitter Submitter, hub Subscriber) *Handler {
	return &Handler{
		jobs:      jobs,
		submitter: submitter,
		hub:       hub,
	}
}

// CreateJob handles POST /v1/jobs
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req models.RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	job, err := h.submitter.Submit(r.Context(), req)
	if err != nil {
		if errors.Is(err, models.ErrInvalidRequest) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("component", "api").Msg("failed to submit job")
		respondError(w, http.StatusInternalServerError, "Failed to create job")
		return
	}

	respondJSON(w, http.StatusAccepted, models.CreateJobResponse{
		JobID:  job.ID,
		Status: job.Status,
	})
}

// ListJobs handles GET /v1/jobs
// Query params:
//   - limit:  max results per page (default 20, max 100)
//   - offset: number of results to skip (default 0)
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	jobs, err := h.jobs.ListJobs(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	out := make([]models.JobResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, models.NewJobResponse(job))
	}

	respondJSON(w, http.StatusOK, models.ListJobsResponse{
		Jobs:   out,
		Limit:  limit,
		Offset: offset,
	})
}

// GetJob handles GET /v1/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, models.NewJobResponse(*job))
}

func (h *Handler) loadJob(w http.ResponseWriter, r *http.Request) (*models.RenderJob, bool) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job ID")
		return nil, false
	}

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if errors.Is(err, db.ErrJobNotFound) {
		respondError(w, http.StatusNotFound, "Job not found")
		return nil, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get job")
		return nil, false
	}
	return job, true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
