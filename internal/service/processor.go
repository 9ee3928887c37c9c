package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zecrep/aggregator/internal/core"
	"github.com/zecrep/aggregator/internal/domain/model"
	"github.com/zecrep/aggregator/internal/observability/metrics"
	"github.com/zecrep/aggregator/internal/observability/statsd"
)

// ProverArtifact is a successful proof outcome handed back by the prover
// gateway, already validated and mapped to domain types.
type ProverArtifact struct {
	Tier         model.Tier
	ProofHash    string
	Result       *model.JobResult
	NotesScanned int
}

// ProverGateway produces range proof artifacts for an address. Implementations
// must bound each call; a hung prover fails the job, never the worker.
type ProverGateway interface {
	Prove(ctx context.Context, address, viewingKey string) (*ProverArtifact, error)
}

// ProcessorServiceConfig groups tuning knobs for ProcessorService.
type ProcessorServiceConfig struct {
	Interval  time.Duration // polling interval; defaults to 5s
	BatchSize int           // max jobs claimed and processed per tick; defaults to 10
}

// ProcessorServiceOptions groups dependencies for ProcessorService.
type ProcessorServiceOptions struct {
	Jobs     core.JobRepository // Required: job repository
	Prover   ProverGateway      // Required: prover gateway
	Tiers    *TierService       // Required: tier history writes
	Webhooks *WebhookService    // Optional: event fan-out
	Config   ProcessorServiceConfig
	Logger   *slog.Logger // Optional: structured logger
	Metrics  statsd.Sink  // Optional: metrics sink (StatsD-compatible)
}

// ProcessorService drives pending jobs to a terminal state. Each tick it
// claims up to BatchSize pending jobs, invokes the prover for each, and
// records the outcome plus the resulting tier history and webhook events.
type ProcessorService struct {
	jobs     core.JobRepository
	prover   ProverGateway
	tiers    *TierService
	webhooks *WebhookService
	logger   *slog.Logger
	metrics  statsd.Sink

	interval  time.Duration
	batchSize int
}

const (
	defaultProcessorInterval  = 5 * time.Second
	defaultProcessorBatchSize = 10
)

// NewProcessorService constructs a new ProcessorService.
func NewProcessorService(opts ProcessorServiceOptions) (*ProcessorService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Prover == nil {
		return nil, errors.New("ProverGateway is required")
	}
	if opts.Tiers == nil {
		return nil, errors.New("TierService is required")
	}

	interval := opts.Config.Interval
	if interval <= 0 {
		interval = defaultProcessorInterval
	}
	batchSize := opts.Config.BatchSize
	if batchSize <= 0 {
		batchSize = defaultProcessorBatchSize
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "processor_service")
	}

	return &ProcessorService{
		jobs:      opts.Jobs,
		prover:    opts.Prover,
		tiers:     opts.Tiers,
		webhooks:  opts.Webhooks,
		logger:    logger,
		metrics:   opts.Metrics,
		interval:  interval,
		batchSize: batchSize,
	}, nil
}

// MustNewProcessorService constructs a new ProcessorService and panics on error.
func MustNewProcessorService(opts ProcessorServiceOptions) *ProcessorService {
	svc, err := NewProcessorService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create ProcessorService: %v", err))
	}
	return svc
}

// Run starts the polling loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ProcessorService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting processor service",
			"interval", s.interval,
			"batch_size", s.batchSize,
		)
	}

	// Add jitter to prevent thundering herd if multiple instances start together
	waitWithJitter(ctx, s.interval, s.logger)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "processor service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick claims up to batchSize pending jobs and processes them concurrently.
func (s *ProcessorService) tick(ctx context.Context) {
	claimed := make([]*model.Job, 0, s.batchSize)
	for len(claimed) < s.batchSize {
		job, err := s.jobs.ClaimNext(ctx)
		if err != nil {
			if errors.Is(err, model.ErrNoJobsPending) {
				break
			}
			if isContextCancellation(err) {
				return
			}
			if s.logger != nil {
				s.logger.ErrorContext(ctx, "failed to claim next job", "error", err)
			}
			metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
				Transition: "claim",
				Result:     metrics.ResultError,
				Err:        err,
			})
			return
		}
		claimed = append(claimed, job)
	}
	if len(claimed) == 0 {
		return
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(s.batchSize)
	for _, job := range claimed {
		group.Go(func() error {
			s.processJob(gctx, job)
			return nil
		})
	}
	_ = group.Wait()
}

// ProcessOne claims and processes a single job. Exposed for tests and manual
// drains; returns model.ErrNoJobsPending when the queue is empty.
func (s *ProcessorService) ProcessOne(ctx context.Context) (*model.Job, error) {
	job, err := s.jobs.ClaimNext(ctx)
	if err != nil {
		return nil, err
	}
	s.processJob(ctx, job)
	return s.jobs.GetByID(ctx, job.ID)
}

func (s *ProcessorService) processJob(ctx context.Context, job *model.Job) {
	start := time.Now()

	if s.logger != nil {
		s.logger.InfoContext(ctx, "processing job", "job_id", job.ID, "address", job.Address)
	}

	artifact, err := s.prover.Prove(ctx, job.Address, job.ViewingKey)
	if err != nil {
		s.failJob(ctx, job, err, time.Since(start))
		return
	}

	// Capture the previous tier before recording the new one so upgrade and
	// downgrade events carry the transition.
	var oldTier *model.Tier
	if prev, prevErr := s.tiers.Latest(ctx, job.Address); prevErr == nil {
		t := prev.Tier
		oldTier = &t
	}

	ok, completeErr := s.jobs.Complete(ctx, job.ID, model.CompleteParams{
		Tier:      artifact.Tier,
		ProofHash: artifact.ProofHash,
		Result:    artifact.Result,
	})
	if completeErr != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to complete job", "job_id", job.ID, "error", completeErr)
		}
		metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
			Transition: "complete",
			Result:     metrics.ResultError,
			Duration:   time.Since(start),
			Err:        completeErr,
		})
		return
	}
	if !ok {
		// The job left processing under us; nothing to record.
		metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
			Transition: "complete",
			Result:     metrics.ResultNoop,
		})
		return
	}

	s.recordOutcome(ctx, job, artifact, oldTier)

	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		Transition: "complete",
		Result:     metrics.ResultSuccess,
		Duration:   time.Since(start),
	})

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job completed",
			"job_id", job.ID,
			"tier", artifact.Tier,
			"notes_scanned", artifact.NotesScanned,
		)
	}
}

func (s *ProcessorService) failJob(ctx context.Context, job *model.Job, cause error, elapsed time.Duration) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, "prover call failed", "job_id", job.ID, "error", cause)
	}

	ok, err := s.jobs.Fail(ctx, job.ID, cause.Error())
	if err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to mark job failed", "job_id", job.ID, "error", err)
	}

	result := metrics.ResultError
	if err == nil && !ok {
		result = metrics.ResultNoop
	}
	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		Transition: "fail",
		Result:     result,
		Duration:   elapsed,
		Err:        cause,
	})
}

// recordOutcome appends the tier history entry and dispatches webhook events.
// Both are best-effort relative to the already-completed job.
func (s *ProcessorService) recordOutcome(ctx context.Context, job *model.Job, artifact *ProverArtifact, oldTier *model.Tier) {
	encryptedTotal := ""
	if artifact.Result != nil {
		encryptedTotal = artifact.Result.EncryptedPayload
	}

	if err := s.tiers.Record(ctx, &model.TierRecord{
		Address:        job.Address,
		Tier:           artifact.Tier,
		Score:          artifact.Tier.Score(),
		EncryptedTotal: encryptedTotal,
		UpdatedAt:      time.Now().UTC(),
	}); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to record tier history", "job_id", job.ID, "error", err)
	}

	if s.webhooks == nil {
		return
	}

	data := model.TierEventData{
		Address:   job.Address,
		OldTier:   oldTier,
		NewTier:   artifact.Tier,
		Score:     artifact.Tier.Score(),
		ProofHash: artifact.ProofHash,
	}

	events := []model.WebhookEvent{model.EventBadgeMinted}
	if oldTier != nil {
		switch {
		case artifact.Tier.Rank() > oldTier.Rank():
			events = append(events, model.EventTierUpgrade)
		case artifact.Tier.Rank() < oldTier.Rank():
			events = append(events, model.EventTierDowngrade)
		}
	} else {
		// First resolved tier counts as an upgrade from nothing.
		events = append(events, model.EventTierUpgrade)
	}

	for _, event := range events {
		if err := s.webhooks.Dispatch(ctx, event, data); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "webhook dispatch failed", "event", event, "error", err)
		}
	}
}

// waitWithJitter sleeps a random duration up to 10% of interval to prevent
// thundering herd when multiple instances start together.
func waitWithJitter(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	maxJitter := int64(interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// If crypto/rand fails, skip jitter rather than failing startup
		if logger != nil {
			logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}
