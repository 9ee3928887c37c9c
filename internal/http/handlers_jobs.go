package httpx

import (
	"net/http"
	"strconv"

	"github.com/zecrep/aggregator/internal/domain/model"
	"github.com/zecrep/aggregator/internal/service"
)

// JobHandlers provides HTTP handlers for range proof job operations.
type JobHandlers struct {
	Svc *service.JobService
}

// CreateJob accepts a range proof request and enqueues a job. The job is
// returned immediately with status pending; the proof resolves asynchronously.
func (h *JobHandlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req model.CreateJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Svc.Create(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]any{"job": job})
}

// GetJob returns a single job by id.
func (h *JobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.Svc.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"job": job})
}

// ListJobs returns jobs filtered by optional address and status query params.
func (h *JobHandlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter := model.JobFilter{
		Address: r.URL.Query().Get("address"),
		Status:  model.JobStatus(r.URL.Query().Get("status")),
		Limit:   parseIntQuery(r, "limit", 0),
	}

	jobs, err := h.Svc.List(r.Context(), filter)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}

// parseIntQuery parses an integer query parameter, returning fallback when
// absent or malformed.
func parseIntQuery(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
