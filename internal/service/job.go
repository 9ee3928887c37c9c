package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zecrep/aggregator/internal/core"
	"github.com/zecrep/aggregator/internal/domain/model"
	"github.com/zecrep/aggregator/internal/observability/metrics"
	"github.com/zecrep/aggregator/internal/observability/statsd"
)

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo    core.JobRepository // Required: job repository
	Logger  *slog.Logger       // Optional: structured logger
	Metrics statsd.Sink        // Optional: metrics sink (StatsD-compatible)
}

// JobService provides business logic for range proof job operations.
//
// This service manages:
// - Job submission with synchronous validation
// - Job lookup and listing for the read API
// - Aggregate store statistics.
type JobService struct {
	repo    core.JobRepository
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_service")
	}

	return &JobService{
		repo:    opts.Repo,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// Create validates and persists a new pending job. Validation failures are
// returned synchronously and nothing is persisted.
func (s *JobService) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	job, err := s.repo.Create(ctx, req)
	if err != nil {
		if !model.IsValidationError(err) {
			metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
				Transition: "submit",
				Result:     metrics.ResultError,
				Err:        err,
			})
		}
		return nil, fmt.Errorf("create job: %w", err)
	}

	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		Transition: "submit",
		Result:     metrics.ResultSuccess,
	})

	if s.logger != nil {
		s.logger.DebugContext(ctx, "job created",
			"id", job.ID,
			"address", job.Address,
			"status", job.Status,
		)
	}

	return job, nil
}

// GetByID returns the job with the given id.
func (s *JobService) GetByID(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job by id: %w", err)
	}
	return job, nil
}

// List returns jobs matching the filter, most recently updated first.
func (s *JobService) List(ctx context.Context, filter model.JobFilter) ([]*model.Job, error) {
	jobs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Stats returns aggregate job and tier counts.
func (s *JobService) Stats(ctx context.Context) (*model.StoreStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("store stats: %w", err)
	}
	return stats, nil
}
