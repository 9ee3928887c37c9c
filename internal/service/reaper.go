package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zecrep/aggregator/config"
	"github.com/zecrep/aggregator/internal/core"
	"github.com/zecrep/aggregator/internal/observability/statsd"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo    core.JobRepository  // Required: job repository
	Config  config.ReaperConfig // Required: reaper configuration
	Logger  *slog.Logger        // Optional: structured logger
	Metrics statsd.Sink         // Optional: metrics sink (StatsD-compatible)
}

// ReaperService removes jobs past their retention window to prevent store
// bloat. Terminal and stuck jobs alike are eligible once their updated_at
// falls behind the configured max age.
type ReaperService struct {
	repo    core.JobRepository
	config  config.ReaperConfig
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", opts.Config.Interval,
			"job_max_age", opts.Config.JobMaxAge,
		)
	}

	return &ReaperService{
		repo:    opts.Repo,
		config:  opts.Config,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// MustNewReaperService constructs a new ReaperService and panics on error.
func MustNewReaperService(opts ReaperServiceOptions) *ReaperService {
	svc, err := NewReaperService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create ReaperService: %v", err))
	}
	return svc
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	}

	waitWithJitter(ctx, s.config.Interval, s.logger)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.runCleanup(ctx); err != nil && !isContextCancellation(err) {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "initial cleanup failed", "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if err := s.runCleanup(ctx); err != nil && !isContextCancellation(err) {
				if s.logger != nil {
					s.logger.ErrorContext(ctx, "cleanup failed", "error", err)
				}
				// Continue running despite errors
			}
		}
	}
}

// RunOnce performs a single cleanup pass. Exposed for tests and manual runs.
func (s *ReaperService) RunOnce(ctx context.Context) (int64, error) {
	removed, err := s.repo.CleanupOldJobs(ctx, s.config.JobMaxAge)
	if err != nil {
		return 0, fmt.Errorf("cleanup old jobs: %w", err)
	}
	return removed, nil
}

func (s *ReaperService) runCleanup(ctx context.Context) error {
	start := time.Now()
	removed, err := s.RunOnce(ctx)
	elapsed := time.Since(start)

	if s.metrics != nil {
		result := "success"
		if err != nil {
			result = "error"
		}
		s.metrics.Count("reaper.jobs_removed", removed, map[string]string{"result": result})
		s.metrics.Timing("reaper.duration", elapsed, nil)
	}

	if err != nil {
		return err
	}

	if s.logger != nil && removed > 0 {
		s.logger.InfoContext(ctx, "removed old jobs", "count", removed, "max_age", s.config.JobMaxAge)
	}
	return nil
}

// isContextCancellation reports whether err stems from context cancellation
// or deadline expiry.
func isContextCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
