package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zecrep/aggregator/internal/data/pgxutil"
	"github.com/zecrep/aggregator/internal/domain/model"
)

// TierRepo provides PostgreSQL-backed operations for per-address tier history.
type TierRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewTierRepo creates a new TierRepo instance with the given database connection and configuration.
func NewTierRepo(db *sql.DB, cfg RepoConfig) *TierRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &TierRepo{DB: db, timeProvider: tp, logger: cfg.Logger}
}

const tierColumns = `address, tier, score, encrypted_total, volume_zats, updated_at`

// Append adds a record to the address's history and trims entries beyond the
// retention cap inside the same transaction.
func (r *TierRepo) Append(ctx context.Context, record *model.TierRecord) error {
	if record == nil {
		return errors.New("tier record is required")
	}
	if !record.Tier.Valid() {
		return fmt.Errorf("invalid tier: %s", record.Tier)
	}

	address := model.NormalizeAddress(record.Address)
	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = r.timeProvider.Now()
	}

	return pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO tier_history (address, tier, score, encrypted_total, volume_zats, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, address, record.Tier, record.Score, record.EncryptedTotal,
				record.VolumeZats, updatedAt.UTC()); err != nil {
				return fmt.Errorf("insert tier record: %w", err)
			}

			if _, err := tx.ExecContext(ctx, `
				DELETE FROM tier_history
				WHERE address = $1 AND id NOT IN (
					SELECT id FROM tier_history
					WHERE address = $1
					ORDER BY updated_at DESC, id DESC
					LIMIT $2
				)
			`, address, model.TierHistoryCap); err != nil {
				return fmt.Errorf("trim tier history: %w", err)
			}
			return nil
		},
	})
}

// Latest returns the most recent tier record for the address or ErrTierNotFound.
func (r *TierRepo) Latest(ctx context.Context, address string) (*model.TierRecord, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+tierColumns+`
		FROM tier_history
		WHERE address = $1
		ORDER BY updated_at DESC, id DESC
		LIMIT 1
	`, model.NormalizeAddress(address))

	record, err := scanTierRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTierNotFound
		}
		return nil, fmt.Errorf("latest tier: %w", err)
	}
	return record, nil
}

// History returns at most limit records for the address, most recent first.
func (r *TierRepo) History(ctx context.Context, address string, limit int) ([]*model.TierRecord, error) {
	if limit <= 0 || limit > model.TierHistoryCap {
		limit = model.TierHistoryCap
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+tierColumns+`
		FROM tier_history
		WHERE address = $1
		ORDER BY updated_at DESC, id DESC
		LIMIT $2
	`, model.NormalizeAddress(address), limit)
	if err != nil {
		return nil, fmt.Errorf("tier history: %w", err)
	}
	defer rows.Close()

	records := []*model.TierRecord{}
	for rows.Next() {
		record, scanErr := scanTierRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan tier record: %w", scanErr)
		}
		records = append(records, record)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}
	return records, nil
}

func scanTierRecord(scanner interface{ Scan(dest ...any) error }) (*model.TierRecord, error) {
	record := &model.TierRecord{}
	if err := scanner.Scan(
		&record.Address,
		&record.Tier,
		&record.Score,
		&record.EncryptedTotal,
		&record.VolumeZats,
		&record.UpdatedAt,
	); err != nil {
		return nil, err
	}
	record.UpdatedAt = record.UpdatedAt.UTC()
	return record, nil
}
