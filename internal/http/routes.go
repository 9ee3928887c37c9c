package httpx

import (
	"log/slog"
	"net/http"

	"github.com/zecrep/aggregator/internal/observability/metrics"
	"github.com/zecrep/aggregator/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Jobs     *service.JobService
	Tiers    *service.TierService
	Webhooks *service.WebhookService
	Recorder *metrics.Recorder // Optional: backing for GET /metrics
	Logger   *slog.Logger      // Optional: logger for middleware
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	jobHandlers := &JobHandlers{Svc: services.Jobs}
	tierHandlers := &TierHandlers{Svc: services.Tiers}
	webhookHandlers := &WebhookHandlers{Svc: services.Webhooks}
	statsHandlers := &StatsHandlers{Svc: services.Jobs}

	mux.HandleFunc("POST /api/jobs/range", jobHandlers.CreateJob)
	mux.HandleFunc("GET /api/jobs/range", jobHandlers.ListJobs)
	mux.HandleFunc("GET /api/jobs/range/{id}", jobHandlers.GetJob)

	mux.HandleFunc("GET /api/reputation/tier", tierHandlers.GetTier)
	mux.HandleFunc("GET /api/reputation/history", tierHandlers.GetHistory)

	mux.HandleFunc("POST /api/webhooks/subscribe", webhookHandlers.Subscribe)
	mux.HandleFunc("GET /api/webhooks/subscriptions", webhookHandlers.ListSubscriptions)
	mux.HandleFunc("DELETE /api/webhooks/subscriptions/{id}", webhookHandlers.Unsubscribe)

	mux.HandleFunc("GET /api/stats", statsHandlers.GetStats)
	mux.HandleFunc("GET /api/stats/jobs", statsHandlers.GetJobStats)
	mux.HandleFunc("GET /api/stats/tiers", statsHandlers.GetTierStats)

	if services.Recorder != nil {
		metricsHandlers := &MetricsHandlers{Recorder: services.Recorder}
		mux.HandleFunc("GET /metrics", metricsHandlers.GetMetrics)
	}

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	return mux
}
