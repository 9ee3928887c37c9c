package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/zecrep/aggregator/internal/domain/model"
)

// WebhookRepo provides PostgreSQL-backed operations for webhook subscriptions.
type WebhookRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewWebhookRepo creates a new WebhookRepo instance with the given database connection and configuration.
func NewWebhookRepo(db *sql.DB, cfg RepoConfig) *WebhookRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &WebhookRepo{DB: db, timeProvider: tp, logger: cfg.Logger}
}

const webhookColumns = `id, owner_address, callback_url, events, secret, active, created_at, last_triggered_at`

// Create inserts a webhook subscription. Returns ErrSubscriptionExists on a
// duplicate id.
func (r *WebhookRepo) Create(ctx context.Context, sub *model.WebhookSubscription) error {
	if sub == nil || strings.TrimSpace(sub.ID) == "" {
		return errors.New("subscription with id is required")
	}

	events, err := json.Marshal(sub.Events)
	if err != nil {
		return fmt.Errorf("marshal subscription events: %w", err)
	}

	createdAt := sub.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.timeProvider.Now()
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO webhook_subscriptions (id, owner_address, callback_url, events, secret, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, sub.ID, sub.OwnerAddress, sub.CallbackURL, events, sub.Secret, sub.Active, createdAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrSubscriptionExists
		}
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

// GetByID returns the subscription with the given id or ErrSubscriptionNotFound.
func (r *WebhookRepo) GetByID(ctx context.Context, id string) (*model.WebhookSubscription, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+webhookColumns+` FROM webhook_subscriptions WHERE id = $1
	`, id)

	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

// List returns subscriptions ordered by creation time, optionally filtered by
// owner address.
func (r *WebhookRepo) List(ctx context.Context, ownerAddress string) ([]*model.WebhookSubscription, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhook_subscriptions`
	args := []any{}
	if ownerAddress != "" {
		query += ` WHERE owner_address = $1`
		args = append(args, ownerAddress)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

// Delete removes the subscription or returns ErrSubscriptionNotFound.
func (r *WebhookRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM webhook_subscriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// ListActiveByEvent returns active subscriptions whose event set contains event.
func (r *WebhookRepo) ListActiveByEvent(ctx context.Context, event model.WebhookEvent) ([]*model.WebhookSubscription, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+webhookColumns+`
		FROM webhook_subscriptions
		WHERE active AND events @> $1
		ORDER BY created_at ASC, id ASC
	`, fmt.Sprintf(`[%q]`, string(event)))
	if err != nil {
		return nil, fmt.Errorf("list subscriptions by event: %w", err)
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

// TouchLastTriggered records a successful delivery. Best-effort; a missing id
// is not an error.
func (r *WebhookRepo) TouchLastTriggered(ctx context.Context, id string, at time.Time) error {
	if _, err := r.DB.ExecContext(ctx, `
		UPDATE webhook_subscriptions SET last_triggered_at = $2 WHERE id = $1
	`, id, at.UTC()); err != nil {
		return fmt.Errorf("touch subscription: %w", err)
	}
	return nil
}

func collectSubscriptions(rows *sql.Rows) ([]*model.WebhookSubscription, error) {
	subs := []*model.WebhookSubscription{}
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return subs, nil
}

func scanSubscription(scanner interface{ Scan(dest ...any) error }) (*model.WebhookSubscription, error) {
	sub := &model.WebhookSubscription{}
	var events []byte
	var lastTriggered sql.NullTime
	if err := scanner.Scan(
		&sub.ID,
		&sub.OwnerAddress,
		&sub.CallbackURL,
		&events,
		&sub.Secret,
		&sub.Active,
		&sub.CreatedAt,
		&lastTriggered,
	); err != nil {
		return nil, err
	}
	if len(events) > 0 {
		if err := json.Unmarshal(events, &sub.Events); err != nil {
			return nil, fmt.Errorf("unmarshal subscription events: %w", err)
		}
	}
	sub.CreatedAt = sub.CreatedAt.UTC()
	if lastTriggered.Valid {
		t := lastTriggered.Time.UTC()
		sub.LastTriggeredAt = &t
	}
	return sub, nil
}
