package data

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zecrep/aggregator/internal/domain/model"
	"github.com/zecrep/aggregator/internal/testutil"
)

func newJobRepo(db *sql.DB, tp TimeProvider) *JobRepo {
	return NewJobRepo(db, RepoConfig{TimeProvider: tp})
}

func TestJobRepo_CreateAndGet(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := newJobRepo(db, nil)

		job, err := repo.Create(ctx, testutil.NewJobRequest().
			WithAddress("0xABCD111111111111111111111111111111111111").
			WithTier(model.TierSilver).
			Build())
		require.NoError(t, err)

		assert.NotEmpty(t, job.ID)
		assert.Equal(t, model.JobStatusPending, job.Status)
		assert.Equal(t, "0xabcd111111111111111111111111111111111111", job.Address)
		assert.Equal(t, model.TierSilver, job.Tier)

		stored, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.ID, stored.ID)
		assert.Equal(t, "zxviews1test", stored.ViewingKey)

		_, err = repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
		require.ErrorIs(t, err, ErrJobNotFound)
	})
}

func TestJobRepo_Create_ValidationRejectedBeforeInsert(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := newJobRepo(db, nil)

		_, err := repo.Create(ctx, testutil.NewJobRequest().WithAddress("nope").Build())
		require.Error(t, err)
		assert.True(t, model.IsValidationError(err))

		jobs, err := repo.List(ctx, model.JobFilter{})
		require.NoError(t, err)
		assert.Empty(t, jobs)
	})
}

func TestJobRepo_List(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		tp := NewFixedTimeProvider(testutil.TestTime())
		repo := newJobRepo(db, tp)

		otherAddr := "0x2222222222222222222222222222222222222222"
		first, err := repo.Create(ctx, testutil.NewJobRequest().Build())
		require.NoError(t, err)
		tp.AddTime(time.Minute)
		second, err := repo.Create(ctx, testutil.NewJobRequest().WithAddress(otherAddr).Build())
		require.NoError(t, err)

		all, err := repo.List(ctx, model.JobFilter{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, second.ID, all[0].ID)
		assert.Equal(t, first.ID, all[1].ID)

		byAddress, err := repo.List(ctx, model.JobFilter{Address: otherAddr})
		require.NoError(t, err)
		require.Len(t, byAddress, 1)
		assert.Equal(t, second.ID, byAddress[0].ID)

		limited, err := repo.List(ctx, model.JobFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, limited, 1)

		_, err = repo.List(ctx, model.JobFilter{Status: "bogus"})
		require.Error(t, err)
	})
}

func TestJobRepo_Update(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := newJobRepo(db, nil)

		job, err := repo.Create(ctx, testutil.NewJobRequest().Build())
		require.NoError(t, err)

		tier := model.TierGold
		hash := testutil.TestProofHash
		updated, err := repo.Update(ctx, job.ID, model.JobUpdate{
			Tier:      &tier,
			ProofHash: &hash,
			Result:    &model.JobResult{EncryptedPayload: "enc:x"},
		})
		require.NoError(t, err)
		assert.Equal(t, model.TierGold, updated.Tier)
		assert.Equal(t, hash, updated.ProofHash)
		require.NotNil(t, updated.Result)
		assert.Equal(t, "enc:x", updated.Result.EncryptedPayload)
		assert.Equal(t, model.JobStatusPending, updated.Status)

		_, err = repo.Update(ctx, "00000000-0000-0000-0000-000000000000", model.JobUpdate{Tier: &tier})
		require.ErrorIs(t, err, ErrJobNotFound)
	})
}

func TestJobRepo_Save_Upsert(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := newJobRepo(db, nil)

		now := testutil.TestTime()
		job := &model.Job{
			ID:          "11111111-1111-1111-1111-111111111111",
			Status:      model.JobStatusPending,
			Address:     testutil.TestAddress,
			ViewingKey:  "zxviews1abc",
			SubmittedAt: now,
			UpdatedAt:   now,
		}
		require.NoError(t, repo.Save(ctx, job))
		require.NoError(t, repo.Save(ctx, job), "saving an identical record twice is a no-op")

		job.Status = model.JobStatusProcessing
		require.NoError(t, repo.Save(ctx, job))

		stored, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusProcessing, stored.Status)
	})
}

func TestJobRepo_ClaimNext(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		tp := NewFixedTimeProvider(testutil.TestTime())
		repo := newJobRepo(db, tp)

		_, err := repo.ClaimNext(ctx)
		require.ErrorIs(t, err, model.ErrNoJobsPending)

		first, err := repo.Create(ctx, testutil.NewJobRequest().Build())
		require.NoError(t, err)
		tp.AddTime(time.Minute)
		_, err = repo.Create(ctx, testutil.NewJobRequest().Build())
		require.NoError(t, err)

		claimed, err := repo.ClaimNext(ctx)
		require.NoError(t, err)
		assert.Equal(t, first.ID, claimed.ID, "oldest pending job wins")
		assert.Equal(t, model.JobStatusProcessing, claimed.Status)
		assert.Equal(t, "zxviews1test", claimed.ViewingKey)
	})
}

func TestJobRepo_ClaimNext_SingleWinner(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := newJobRepo(db, nil)

		_, err := repo.Create(ctx, testutil.NewJobRequest().Build())
		require.NoError(t, err)

		const claimants = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < claimants; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, claimErr := repo.ClaimNext(ctx); claimErr == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, wins)
	})
}

func TestJobRepo_Complete(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := newJobRepo(db, nil)

		job, err := repo.Create(ctx, testutil.NewJobRequest().Build())
		require.NoError(t, err)

		// Completing a pending job is a no-op.
		ok, err := repo.Complete(ctx, job.ID, model.CompleteParams{Tier: model.TierGold})
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = repo.ClaimNext(ctx)
		require.NoError(t, err)

		ok, err = repo.Complete(ctx, job.ID, model.CompleteParams{
			Tier:      model.TierGold,
			ProofHash: testutil.TestProofHash,
			Result: &model.JobResult{
				EncryptedPayload: "enc:total",
				InEuint64:        &model.EncryptedUint64{Data: "0xff"},
			},
		})
		require.NoError(t, err)
		assert.True(t, ok)

		stored, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, stored.Status)
		assert.Equal(t, model.TierGold, stored.Tier)
		assert.Equal(t, testutil.TestProofHash, stored.ProofHash)
		require.NotNil(t, stored.Result)
		assert.Equal(t, "enc:total", stored.Result.EncryptedPayload)
		assert.Empty(t, stored.ViewingKey, "viewing key must not survive completion")

		_, err = repo.Complete(ctx, job.ID, model.CompleteParams{Tier: "bogus"})
		require.Error(t, err)
	})
}

func TestJobRepo_Fail(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := newJobRepo(db, nil)

		job, err := repo.Create(ctx, testutil.NewJobRequest().Build())
		require.NoError(t, err)
		_, err = repo.ClaimNext(ctx)
		require.NoError(t, err)

		ok, err := repo.Fail(ctx, job.ID, "prover unreachable")
		require.NoError(t, err)
		assert.True(t, ok)

		stored, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, stored.Status)
		require.NotNil(t, stored.Error)
		assert.Equal(t, "prover unreachable", *stored.Error)
		assert.Empty(t, stored.ViewingKey)

		// Terminal jobs are not failable again.
		ok, err = repo.Fail(ctx, job.ID, "again")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestJobRepo_CleanupOldJobs(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		tp := NewFixedTimeProvider(testutil.TestTime())
		repo := newJobRepo(db, tp)

		stale, err := repo.Create(ctx, testutil.NewJobRequest().Build())
		require.NoError(t, err)
		tp.AddTime(48 * time.Hour)
		fresh, err := repo.Create(ctx, testutil.NewJobRequest().Build())
		require.NoError(t, err)

		removed, err := repo.CleanupOldJobs(ctx, 24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)

		_, err = repo.GetByID(ctx, stale.ID)
		require.ErrorIs(t, err, ErrJobNotFound)
		_, err = repo.GetByID(ctx, fresh.ID)
		require.NoError(t, err)

		// A zero max age flushes jobs stamped at the current instant too.
		removed, err = repo.CleanupOldJobs(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)

		_, err = repo.GetByID(ctx, fresh.ID)
		require.ErrorIs(t, err, ErrJobNotFound)
	})
}

func TestJobRepo_Stats(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := newJobRepo(db, nil)
		tiers := NewTierRepo(db, RepoConfig{})

		job, err := repo.Create(ctx, testutil.NewJobRequest().Build())
		require.NoError(t, err)
		_, err = repo.Create(ctx, testutil.NewJobRequest().Build())
		require.NoError(t, err)
		_, err = repo.ClaimNext(ctx)
		require.NoError(t, err)
		ok, err := repo.Complete(ctx, job.ID, model.CompleteParams{Tier: model.TierGold})
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, tiers.Append(ctx, testutil.NewTierRecord().WithTier(model.TierGold).Build()))

		stats, err := repo.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.TotalJobs)
		assert.Equal(t, 1, stats.JobsByStatus[model.JobStatusPending])
		assert.Equal(t, 1, stats.JobsByStatus[model.JobStatusCompleted])
		assert.Equal(t, 1, stats.TotalTiers)
		assert.Equal(t, 1, stats.TiersByTier[model.TierGold])
	})
}
