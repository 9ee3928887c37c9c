// Package core contains repository interface definitions (ports in hexagonal
// architecture). These interfaces define the contracts between the service
// layer and the storage backends. Service implementations should depend on
// these interfaces, not concrete implementations; the PostgreSQL and in-memory
// backends implement them with identical semantics.
package core

import (
	"context"
	"time"

	"github.com/zecrep/aggregator/internal/domain/model"
)

//go:generate mockgen -source=interfaces.go -destination=../mocks/repositories.go -package=mocks

// JobRepository defines the interface for job data operations.
type JobRepository interface {
	// Create validates the request, assigns an id, and persists a pending
	// job. Validation failures are returned synchronously; nothing is stored.
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	// Save upserts a job by id. Saving an identical record twice is a no-op.
	Save(ctx context.Context, job *model.Job) error
	// GetByID returns ErrJobNotFound when the id is absent.
	GetByID(ctx context.Context, id string) (*model.Job, error)
	// List returns jobs matching the filter, most recently updated first.
	List(ctx context.Context, filter model.JobFilter) ([]*model.Job, error)
	// Update merges the non-nil fields into an existing job and refreshes
	// updated_at. Returns ErrJobNotFound when the id is absent.
	Update(ctx context.Context, id string, upd model.JobUpdate) (*model.Job, error)
	// ClaimNext atomically transitions the oldest pending job to processing.
	// At most one concurrent claimant wins a given job; returns
	// model.ErrNoJobsPending when nothing is claimable.
	ClaimNext(ctx context.Context) (*model.Job, error)
	// Complete records the prover outcome on a processing job and clears the
	// viewing key. Returns false when the job was not in processing.
	Complete(ctx context.Context, id string, params model.CompleteParams) (bool, error)
	// Fail records a failure reason on a processing job and clears the
	// viewing key. Returns false when the job was not in processing.
	Fail(ctx context.Context, id, errMsg string) (bool, error)
	// CleanupOldJobs removes jobs whose updated_at precedes now-maxAge and
	// returns the number removed.
	CleanupOldJobs(ctx context.Context, maxAge time.Duration) (int64, error)
	// Stats returns aggregate job and tier counts.
	Stats(ctx context.Context) (*model.StoreStats, error)
}

// TierRepository defines the interface for tier history data operations.
type TierRepository interface {
	// Append adds a record to the address's history, retaining at most
	// model.TierHistoryCap entries per address.
	Append(ctx context.Context, record *model.TierRecord) error
	// Latest returns ErrTierNotFound when the address has no history.
	Latest(ctx context.Context, address string) (*model.TierRecord, error)
	// History returns at most limit records, most recent first.
	History(ctx context.Context, address string, limit int) ([]*model.TierRecord, error)
}

// WebhookRepository defines the interface for webhook subscription data operations.
type WebhookRepository interface {
	Create(ctx context.Context, sub *model.WebhookSubscription) error
	GetByID(ctx context.Context, id string) (*model.WebhookSubscription, error)
	// List returns subscriptions, optionally filtered by owner address.
	List(ctx context.Context, ownerAddress string) ([]*model.WebhookSubscription, error)
	// Delete returns ErrSubscriptionNotFound when the id is absent.
	Delete(ctx context.Context, id string) error
	// ListActiveByEvent returns active subscriptions whose event set contains event.
	ListActiveByEvent(ctx context.Context, event model.WebhookEvent) ([]*model.WebhookSubscription, error)
	// TouchLastTriggered records a successful delivery; best-effort.
	TouchLastTriggered(ctx context.Context, id string, at time.Time) error
}

// CacheRepository defines the interface for the TTL cache in front of tier reads.
type CacheRepository interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) (bool, error)
}
