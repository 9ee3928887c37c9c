package httpx

import (
	"net/http"
	"time"

	"github.com/zecrep/aggregator/internal/service"
)

// StatsHandlers provides HTTP handlers for aggregate store statistics.
type StatsHandlers struct {
	Svc *service.JobService
}

// GetStats returns aggregate job and tier counts.
func (h *StatsHandlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.Stats(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"stats": map[string]any{
			"total_jobs":     stats.TotalJobs,
			"jobs_by_status": stats.JobsByStatus,
			"total_tiers":    stats.TotalTiers,
			"tiers_by_tier":  stats.TiersByTier,
			"timestamp":      time.Now().UTC(),
		},
	})
}

// GetJobStats returns job counts grouped by status.
func (h *StatsHandlers) GetJobStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.Stats(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"by_status": stats.JobsByStatus,
		"total":     stats.TotalJobs,
		"timestamp": time.Now().UTC(),
	})
}

// GetTierStats returns the tier distribution across known addresses.
func (h *StatsHandlers) GetTierStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.Stats(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"distribution": stats.TiersByTier,
		"total":        stats.TotalTiers,
		"timestamp":    time.Now().UTC(),
	})
}
