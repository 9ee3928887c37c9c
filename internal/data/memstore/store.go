// Package memstore provides a volatile, mutex-guarded implementation of the
// repository interfaces. It mirrors the semantics of the PostgreSQL backend
// and backs local development and tests.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zecrep/aggregator/internal/data"
	"github.com/zecrep/aggregator/internal/domain/model"
)

// Store is an in-memory job store. All methods are safe for concurrent use.
type Store struct {
	mu           sync.Mutex
	jobs         map[string]*model.Job
	tiers        *TierStore
	timeProvider data.TimeProvider
}

// New creates an empty in-memory job store.
func New() *Store {
	return NewWithTimeProvider(&data.RealTimeProvider{})
}

// NewWithTimeProvider creates a store with an injected clock for tests.
func NewWithTimeProvider(tp data.TimeProvider) *Store {
	return &Store{
		jobs:         make(map[string]*model.Job),
		timeProvider: tp,
	}
}

func cloneJob(job *model.Job) *model.Job {
	cp := *job
	if job.Result != nil {
		res := *job.Result
		if job.Result.InEuint64 != nil {
			enc := *job.Result.InEuint64
			res.InEuint64 = &enc
		}
		cp.Result = &res
	}
	if job.Error != nil {
		msg := *job.Error
		cp.Error = &msg
	}
	return &cp
}

// Create validates the request, assigns an id, and stores a pending job.
func (s *Store) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.timeProvider.Now().UTC()
	job := &model.Job{
		ID:          uuid.New().String(),
		Status:      model.JobStatusPending,
		Address:     model.NormalizeAddress(req.Address),
		ViewingKey:  req.ViewingKey,
		Tier:        req.Tier,
		ProofHash:   req.ProofHash,
		SubmittedAt: now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = cloneJob(job)
	return job, nil
}

// Save upserts a job by id.
func (s *Store) Save(ctx context.Context, job *model.Job) error {
	if job == nil || strings.TrimSpace(job.ID) == "" {
		return errors.New("job with id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// GetByID returns the job with the given id or data.ErrJobNotFound.
func (s *Store) GetByID(ctx context.Context, id string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, data.ErrJobNotFound
	}
	return cloneJob(job), nil
}

// List returns jobs matching the filter, most recently updated first.
func (s *Store) List(ctx context.Context, filter model.JobFilter) ([]*model.Job, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("invalid job status: %s", filter.Status)
	}
	address := model.NormalizeAddress(filter.Address)

	s.mu.Lock()
	defer s.mu.Unlock()

	matched := []*model.Job{}
	for _, job := range s.jobs {
		if address != "" && job.Address != address {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		matched = append(matched, cloneJob(job))
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	if limit := filter.EffectiveLimit(); len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Update merges the non-nil fields of upd into the job and refreshes updated_at.
func (s *Store) Update(ctx context.Context, id string, upd model.JobUpdate) (*model.Job, error) {
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, fmt.Errorf("invalid job status: %s", *upd.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, data.ErrJobNotFound
	}

	if upd.Status != nil {
		job.Status = *upd.Status
	}
	if upd.Tier != nil {
		job.Tier = *upd.Tier
	}
	if upd.ProofHash != nil {
		job.ProofHash = *upd.ProofHash
	}
	if upd.Result != nil {
		job.Result = upd.Result
	}
	if upd.Error != nil {
		msg := *upd.Error
		job.Error = &msg
	}
	job.UpdatedAt = s.timeProvider.Now().UTC()

	return cloneJob(job), nil
}

// ClaimNext atomically transitions the oldest pending job to processing. The
// store mutex makes the check-and-set atomic, so at most one concurrent
// claimant wins a given job.
func (s *Store) ClaimNext(ctx context.Context) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest *model.Job
	for _, job := range s.jobs {
		if job.Status != model.JobStatusPending {
			continue
		}
		if oldest == nil ||
			job.SubmittedAt.Before(oldest.SubmittedAt) ||
			(job.SubmittedAt.Equal(oldest.SubmittedAt) && job.ID < oldest.ID) {
			oldest = job
		}
	}
	if oldest == nil {
		return nil, model.ErrNoJobsPending
	}

	oldest.Status = model.JobStatusProcessing
	oldest.UpdatedAt = s.timeProvider.Now().UTC()
	return cloneJob(oldest), nil
}

// Complete records the prover outcome on a processing job and clears the
// viewing key. Returns false when the job was not in processing.
func (s *Store) Complete(ctx context.Context, id string, params model.CompleteParams) (bool, error) {
	if !params.Tier.Valid() {
		return false, fmt.Errorf("invalid tier: %s", params.Tier)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status != model.JobStatusProcessing {
		return false, nil
	}

	job.Status = model.JobStatusCompleted
	job.Tier = params.Tier
	job.ProofHash = params.ProofHash
	job.Result = params.Result
	job.Error = nil
	job.ViewingKey = ""
	job.UpdatedAt = s.timeProvider.Now().UTC()
	return true, nil
}

// Fail records a failure reason on a processing job and clears the viewing
// key. Returns false when the job was not in processing.
func (s *Store) Fail(ctx context.Context, id, errMsg string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok || job.Status != model.JobStatusProcessing {
		return false, nil
	}

	job.Status = model.JobStatusFailed
	job.Error = &errMsg
	job.Result = nil
	job.ViewingKey = ""
	job.UpdatedAt = s.timeProvider.Now().UTC()
	return true, nil
}

// CleanupOldJobs removes jobs whose updated_at is at or before now-maxAge.
// A zero maxAge removes every stored job.
func (s *Store) CleanupOldJobs(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := s.timeProvider.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, job := range s.jobs {
		if !job.UpdatedAt.After(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed, nil
}

// AttachTierStore lets Stats report tier counts alongside job counts.
func (s *Store) AttachTierStore(tiers *TierStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers = tiers
}

// Stats returns aggregate job counts, plus latest-tier counts per address
// when a tier store is attached.
func (s *Store) Stats(ctx context.Context) (*model.StoreStats, error) {
	s.mu.Lock()
	tiers := s.tiers
	stats := &model.StoreStats{
		JobsByStatus: make(map[model.JobStatus]int),
		TiersByTier:  make(map[model.Tier]int),
	}
	for _, job := range s.jobs {
		stats.JobsByStatus[job.Status]++
		stats.TotalJobs++
	}
	s.mu.Unlock()

	if tiers != nil {
		stats.TotalTiers, stats.TiersByTier = tiers.tierCounts()
	}
	return stats, nil
}
