package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/zecrep/aggregator/internal/data/pgxutil"
	"github.com/zecrep/aggregator/internal/domain/model"
)

// SQL used by ClaimNext to atomically claim the oldest pending job.
// FOR UPDATE SKIP LOCKED guarantees at most one concurrent claimant wins.
const claimNextUpdateSQL = `
  WITH cte AS (
    SELECT id FROM jobs
    WHERE status = 'pending'
    ORDER BY submitted_at ASC, id ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE jobs j
  SET
    status = 'processing',
    updated_at = $1
  FROM cte
  WHERE j.id = cte.id
  RETURNING j.id, j.status, j.address, j.viewing_key, j.tier, j.proof_hash, j.result, j.error, j.submitted_at, j.updated_at`

// ClaimNext atomically transitions the oldest pending job to processing and
// returns it. Returns model.ErrNoJobsPending when the queue is empty.
func (r *JobRepo) ClaimNext(ctx context.Context) (*model.Job, error) {
	var job *model.Job
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{
			Isolation: sql.LevelReadCommitted,
			ReadOnly:  false,
		},
		Fn: func(tx pgx.Tx) error {
			rows, qerr := tx.Query(ctx, claimNextUpdateSQL, r.timeProvider.Now().UTC())
			if qerr != nil {
				return fmt.Errorf("claim job: %w", qerr)
			}
			defer rows.Close()

			j, cerr := collectJobFromRows(rows)
			if errors.Is(cerr, pgx.ErrNoRows) {
				return model.ErrNoJobsPending
			}
			if cerr != nil {
				return fmt.Errorf("claim job: %w", cerr)
			}
			job = j
			return nil
		},
	})
	if err != nil {
		if errors.Is(err, model.ErrNoJobsPending) {
			return nil, model.ErrNoJobsPending
		}
		return nil, err
	}
	return job, nil
}

// Complete records the prover outcome on a processing job. The viewing key is
// cleared in the same statement as the status transition so no terminal row
// ever retains it. Returns false when the job was not in processing.
func (r *JobRepo) Complete(ctx context.Context, id string, params model.CompleteParams) (bool, error) {
	if !params.Tier.Valid() {
		return false, fmt.Errorf("invalid tier: %s", params.Tier)
	}

	resultJSON, err := marshalResult(params.Result)
	if err != nil {
		return false, err
	}

	query := `
		UPDATE jobs
		SET status = 'completed',
		    tier = $2,
		    proof_hash = $3,
		    result = $4,
		    error = NULL,
		    viewing_key = '',
		    updated_at = $5
		WHERE id = $1 AND status = 'processing'
	`

	res, err := r.DB.ExecContext(ctx, query, id, params.Tier, params.ProofHash,
		resultJSON, r.timeProvider.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Fail records a failure reason on a processing job, clearing the viewing key
// and any provisional result. Returns false when the job was not in processing.
func (r *JobRepo) Fail(ctx context.Context, id, errMsg string) (bool, error) {
	query := `
		UPDATE jobs
		SET status = 'failed',
		    error = $2,
		    result = NULL,
		    viewing_key = '',
		    updated_at = $3
		WHERE id = $1 AND status = 'processing'
	`

	res, err := r.DB.ExecContext(ctx, query, id, errMsg, r.timeProvider.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("fail rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}
