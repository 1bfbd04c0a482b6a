package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/de-tools/data-profiler/pkg/adapters"
	"github.com/de-tools/data-profiler/pkg/models/domain"
	"github.com/de-tools/data-profiler/pkg/services/workflow"
	jobstore "github.com/de-tools/data-profiler/pkg/store/duckdb/jobs"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type Handler struct {
	jobs workflow.Controller
}

func NewHandler(jobs workflow.Controller) *Handler {
	return &Handler{jobs: jobs}
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	var statuses []domain.JobStatus
	for _, s := range r.URL.Query()["status"] {
		status := domain.JobStatus(s)
		if !status.Valid() {
			http.Error(w, fmt.Sprintf("invalid status %q", s), http.StatusBadRequest)
			return
		}
		statuses = append(statuses, status)
	}

	list, err := h.jobs.List(ctx, statuses)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list jobs")
		http.Error(w, "failed to list jobs", http.StatusInternalServerError)
		return
	}

	writeJSON(w, r, http.StatusOK, adapters.MapJobsDomainToApi(list))
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	job, err := h.jobs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, jobstore.ErrJobNotFound) {
			http.Error(w, fmt.Sprintf("job %s not found", id), http.StatusNotFound)
			return
		}
		zerolog.Ctx(ctx).Error().Err(err).Str("job_id", id).Msg("failed to get job")
		http.Error(w, "failed to get job", http.StatusInternalServerError)
		return
	}

	writeJSON(w, r, http.StatusOK, adapters.MapJobDomainToApi(job))
}

// CancelJob stops a queued or running job. Finished and unknown jobs answer
// with a conflict.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := h.jobs.Cancel(ctx, id); err != nil {
		if errors.Is(err, workflow.ErrJobNotRunning) {
			http.Error(w, fmt.Sprintf("job %s is not running", id), http.StatusConflict)
			return
		}
		zerolog.Ctx(ctx).Error().Err(err).Str("job_id", id).Msg("failed to cancel job")
		http.Error(w, "failed to cancel job", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to encode response")
	}
}
