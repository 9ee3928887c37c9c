package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/zecrep/aggregator/internal/data/pgxutil"
	"github.com/zecrep/aggregator/internal/domain/model"
)

// RepoConfig holds configuration options for the data-layer repositories.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo provides PostgreSQL-backed operations for range proof jobs.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &JobRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const jobColumns = `
  id,
  status,
  address,
  viewing_key,
  tier,
  proof_hash,
  result,
  error,
  submitted_at,
  updated_at
`

// Create validates the request, assigns an id, and inserts a pending job.
func (r *JobRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}
	if validateErr := req.Validate(); validateErr != nil {
		return nil, validateErr
	}

	now := r.timeProvider.Now().UTC()
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

	query := `
      INSERT INTO jobs(id, status, address, viewing_key, tier, proof_hash, submitted_at, updated_at)
      VALUES ($1, 'pending', $2, $3, $4, $5, $6, $6)
      RETURNING ` + jobColumns

	var created *model.Job
	if txErr := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			rows, err := tx.Query(ctx, query,
				job.ID, job.Address, job.ViewingKey,
				nullableString(string(job.Tier)), nullableString(job.ProofHash), now)
			if err != nil {
				return fmt.Errorf("insert job: %w", err)
			}
			j, collectErr := collectJobFromRows(rows)
			rows.Close()
			if collectErr != nil {
				return fmt.Errorf("collect job: %w", collectErr)
			}
			created = j
			return nil
		},
	}); txErr != nil {
		return nil, txErr
	}

	return created, nil
}

// Save upserts a job by id. Saving an identical record twice is a no-op.
func (r *JobRepo) Save(ctx context.Context, job *model.Job) error {
	if job == nil || strings.TrimSpace(job.ID) == "" {
		return errors.New("job with id is required")
	}

	resultJSON, err := marshalResult(job.Result)
	if err != nil {
		return err
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO jobs (id, status, address, viewing_key, tier, proof_hash, result, error, submitted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			address = EXCLUDED.address,
			viewing_key = EXCLUDED.viewing_key,
			tier = EXCLUDED.tier,
			proof_hash = EXCLUDED.proof_hash,
			result = EXCLUDED.result,
			error = EXCLUDED.error,
			submitted_at = EXCLUDED.submitted_at,
			updated_at = EXCLUDED.updated_at
	`, job.ID, job.Status, job.Address, job.ViewingKey,
		nullableString(string(job.Tier)), nullableString(job.ProofHash),
		resultJSON, job.Error, job.SubmittedAt.UTC(), job.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

// GetByID returns the job with the given id or ErrJobNotFound.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJobFromRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs matching the filter, most recently updated first.
func (r *JobRepo) List(ctx context.Context, filter model.JobFilter) ([]*model.Job, error) {
	limit := filter.EffectiveLimit()

	b := &filterQueryBuilder{
		query:  `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`,
		argIdx: 1,
	}
	if filter.Address != "" {
		b.addFilter("address", model.NormalizeAddress(filter.Address))
	}
	if filter.Status != "" {
		if !filter.Status.Valid() {
			return nil, fmt.Errorf("invalid job status: %s", filter.Status)
		}
		b.addFilter("status", filter.Status)
	}
	b.query += fmt.Sprintf(" ORDER BY updated_at DESC, id DESC LIMIT $%d", b.argIdx)
	b.args = append(b.args, limit)

	rows, err := r.DB.QueryContext(ctx, b.query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*model.Job{}
	for rows.Next() {
		job, scanErr := scanJobFromRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan job: %w", scanErr)
		}
		jobs = append(jobs, job)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}
	return jobs, nil
}

// Update merges the non-nil fields of upd into the job and refreshes updated_at.
func (r *JobRepo) Update(ctx context.Context, id string, upd model.JobUpdate) (*model.Job, error) {
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, fmt.Errorf("invalid job status: %s", *upd.Status)
	}

	b := &setClauseBuilder{argIdx: 2, args: []any{id}}
	if upd.Status != nil {
		b.set("status", *upd.Status)
	}
	if upd.Tier != nil {
		b.set("tier", nullableString(string(*upd.Tier)))
	}
	if upd.ProofHash != nil {
		b.set("proof_hash", nullableString(*upd.ProofHash))
	}
	if upd.Result != nil {
		resultJSON, err := marshalResult(upd.Result)
		if err != nil {
			return nil, err
		}
		b.set("result", resultJSON)
	}
	if upd.Error != nil {
		b.set("error", *upd.Error)
	}
	b.set("updated_at", r.timeProvider.Now().UTC())

	query := `UPDATE jobs SET ` + strings.Join(b.clauses, ", ") +
		` WHERE id = $1 RETURNING ` + jobColumns

	row := r.DB.QueryRowContext(ctx, query, b.args...)
	job, err := scanJobFromRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("update job: %w", err)
	}
	return job, nil
}

// filterQueryBuilder accumulates AND-joined equality filters.
type filterQueryBuilder struct {
	query  string
	args   []any
	argIdx int
}

func (b *filterQueryBuilder) addFilter(column string, value any) {
	b.query += fmt.Sprintf(" AND %s = $%d", column, b.argIdx)
	b.args = append(b.args, value)
	b.argIdx++
}

// setClauseBuilder accumulates SET clauses for partial updates.
type setClauseBuilder struct {
	clauses []string
	args    []any
	argIdx  int
}

func (b *setClauseBuilder) set(column string, value any) {
	b.clauses = append(b.clauses, fmt.Sprintf("%s = $%d", column, b.argIdx))
	b.args = append(b.args, value)
	b.argIdx++
}

func marshalResult(result *model.JobResult) ([]byte, error) {
	if result == nil {
		return nil, nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal job result: %w", err)
	}
	return raw, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type jobRowScanner interface {
	Scan(dest ...any) error
}

type jobRowData struct {
	tier, proofHash, errMsg sql.NullString
	result                  []byte
}

func (d *jobRowData) scanInto(scanner jobRowScanner, job *model.Job) error {
	return scanner.Scan(
		&job.ID,
		&job.Status,
		&job.Address,
		&job.ViewingKey,
		&d.tier,
		&d.proofHash,
		&d.result,
		&d.errMsg,
		&job.SubmittedAt,
		&job.UpdatedAt,
	)
}

func (d *jobRowData) apply(job *model.Job) error {
	job.Tier = model.Tier(d.tier.String)
	job.ProofHash = d.proofHash.String
	if d.errMsg.Valid {
		msg := d.errMsg.String
		job.Error = &msg
	}
	if len(d.result) > 0 {
		var res model.JobResult
		if err := json.Unmarshal(d.result, &res); err != nil {
			return fmt.Errorf("unmarshal job result: %w", err)
		}
		job.Result = &res
	}
	job.SubmittedAt = job.SubmittedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	return nil
}

func scanJobFromRow(scanner jobRowScanner) (*model.Job, error) {
	job := &model.Job{}
	var data jobRowData
	if err := data.scanInto(scanner, job); err != nil {
		return nil, err
	}
	if err := data.apply(job); err != nil {
		return nil, err
	}
	return job, nil
}

func collectJobFromRows(rows pgx.Rows) (*model.Job, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}
	job, err := scanJobFromRow(rows)
	if err != nil {
		return nil, err
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}
	return job, nil
}
