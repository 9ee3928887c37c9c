package httpx

import (
	"net/http"

	"github.com/zecrep/aggregator/internal/observability/metrics"
)

// MetricsHandlers serves the in-process metrics snapshot.
type MetricsHandlers struct {
	Recorder *metrics.Recorder
}

// GetMetrics returns everything the recorder has seen since startup.
func (h *MetricsHandlers) GetMetrics(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Recorder.Snapshot())
}
