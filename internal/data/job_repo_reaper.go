package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zecrep/aggregator/internal/data/pgxutil"
	"github.com/zecrep/aggregator/internal/domain/model"
)

// Advisory lock namespace for reaper operations.
// Using two-arg pg_try_advisory_xact_lock(major, minor) for proper namespacing.
// Major key 1000 is reserved for aggregator reaper operations.
const (
	advisoryLockReaperMajor   = 1000
	advisoryLockReaperCleanup = 1 // minor key for CleanupOldJobs
)

// CleanupOldJobs removes jobs whose updated_at is at or before now-maxAge,
// regardless of status; a zero maxAge removes every stored job. Uses an
// advisory lock so concurrent reaper instances do not conflict. Returns the
// number of jobs removed.
func (r *JobRepo) CleanupOldJobs(ctx context.Context, maxAge time.Duration) (int64, error) {
	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockReaperMajor, advisoryLockReaperCleanup).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			cutoffTime := r.timeProvider.Now().Add(-maxAge)

			res, err := tx.ExecContext(ctx, `
				DELETE FROM jobs
				WHERE updated_at <= $1
			`, cutoffTime.UTC())
			if err != nil {
				return fmt.Errorf("cleanup old jobs: %w", err)
			}

			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

// Stats returns aggregate job and tier counts for observability endpoints.
func (r *JobRepo) Stats(ctx context.Context) (*model.StoreStats, error) {
	stats := &model.StoreStats{
		JobsByStatus: make(map[model.JobStatus]int),
		TiersByTier:  make(map[model.Tier]int),
	}

	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status model.JobStatus
		var count int
		if scanErr := rows.Scan(&status, &count); scanErr != nil {
			return nil, fmt.Errorf("scan job stats: %w", scanErr)
		}
		stats.JobsByStatus[status] = count
		stats.TotalJobs += count
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}

	tierRows, err := r.DB.QueryContext(ctx, `
		SELECT tier, COUNT(*) FROM (
			SELECT DISTINCT ON (address) address, tier
			FROM tier_history
			ORDER BY address, updated_at DESC, id DESC
		) latest
		GROUP BY tier
	`)
	if err != nil {
		return nil, fmt.Errorf("tier stats: %w", err)
	}
	defer tierRows.Close()
	for tierRows.Next() {
		var tier model.Tier
		var count int
		if scanErr := tierRows.Scan(&tier, &count); scanErr != nil {
			return nil, fmt.Errorf("scan tier stats: %w", scanErr)
		}
		stats.TiersByTier[tier] = count
		stats.TotalTiers += count
	}
	if rowsErr := tierRows.Err(); rowsErr != nil {
		return nil, rowsErr
	}

	return stats, nil
}
