package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zecrep/aggregator/internal/core"
	"github.com/zecrep/aggregator/internal/domain/model"
)

// TierServiceConfig groups tuning knobs for TierService.
type TierServiceConfig struct {
	CacheTTL time.Duration // TTL for cached latest-tier lookups; defaults to 5m
}

// TierServiceOptions groups dependencies for TierService.
type TierServiceOptions struct {
	Repo   core.TierRepository  // Required: tier history repository
	Cache  core.CacheRepository // Optional: TTL cache in front of latest-tier reads
	Config TierServiceConfig
	Logger *slog.Logger // Optional: structured logger
}

// TierService provides reputation reads over per-address tier history, with
// an optional cache in front of the hot latest-tier lookup.
type TierService struct {
	repo     core.TierRepository
	cache    core.CacheRepository
	cacheTTL time.Duration
	logger   *slog.Logger
}

const defaultTierCacheTTL = 5 * time.Minute

// NewTierService constructs a new TierService.
func NewTierService(opts TierServiceOptions) (*TierService, error) {
	if opts.Repo == nil {
		return nil, errors.New("TierRepository is required")
	}

	ttl := opts.Config.CacheTTL
	if ttl <= 0 {
		ttl = defaultTierCacheTTL
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "tier_service")
	}

	return &TierService{
		repo:     opts.Repo,
		cache:    opts.Cache,
		cacheTTL: ttl,
		logger:   logger,
	}, nil
}

// MustNewTierService constructs a new TierService and panics on error.
func MustNewTierService(opts TierServiceOptions) *TierService {
	svc, err := NewTierService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create TierService: %v", err))
	}
	return svc
}

func tierCacheKey(address string) string {
	return "tier:latest:" + model.NormalizeAddress(address)
}

// Latest returns the most recent tier record for the address, consulting the
// cache first when one is wired. Cache failures fall through to the repository.
func (s *TierService) Latest(ctx context.Context, address string) (*model.TierRecord, error) {
	key := tierCacheKey(address)

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil && len(raw) > 0 {
			var record model.TierRecord
			if unmarshalErr := json.Unmarshal(raw, &record); unmarshalErr == nil {
				return &record, nil
			}
		}
	}

	record, err := s.repo.Latest(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("latest tier: %w", err)
	}

	if s.cache != nil {
		if raw, marshalErr := json.Marshal(record); marshalErr == nil {
			if cacheErr := s.cache.Set(ctx, key, raw, s.cacheTTL); cacheErr != nil && s.logger != nil {
				s.logger.DebugContext(ctx, "tier cache set failed", "error", cacheErr)
			}
		}
	}

	return record, nil
}

// History returns at most limit records for the address, most recent first.
func (s *TierService) History(ctx context.Context, address string, limit int) ([]*model.TierRecord, error) {
	records, err := s.repo.History(ctx, address, limit)
	if err != nil {
		return nil, fmt.Errorf("tier history: %w", err)
	}
	return records, nil
}

// Record appends a resolved tier to the address's history and invalidates the
// cached latest entry so subsequent reads see the new tier.
func (s *TierService) Record(ctx context.Context, record *model.TierRecord) error {
	if err := s.repo.Append(ctx, record); err != nil {
		return fmt.Errorf("append tier record: %w", err)
	}

	if s.cache != nil {
		if _, err := s.cache.Delete(ctx, tierCacheKey(record.Address)); err != nil && s.logger != nil {
			s.logger.DebugContext(ctx, "tier cache invalidation failed", "error", err)
		}
	}
	return nil
}
