package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zecrep/aggregator/internal/data"
	"github.com/zecrep/aggregator/internal/domain/model"
)

// TierStore is an in-memory per-address tier history, most recent first,
// capped at model.TierHistoryCap entries per address.
type TierStore struct {
	mu           sync.Mutex
	history      map[string][]*model.TierRecord
	timeProvider data.TimeProvider
}

// NewTierStore creates an empty in-memory tier history store.
func NewTierStore() *TierStore {
	return NewTierStoreWithTimeProvider(&data.RealTimeProvider{})
}

// NewTierStoreWithTimeProvider creates a tier store with an injected clock for tests.
func NewTierStoreWithTimeProvider(tp data.TimeProvider) *TierStore {
	return &TierStore{
		history:      make(map[string][]*model.TierRecord),
		timeProvider: tp,
	}
}

func cloneTierRecord(record *model.TierRecord) *model.TierRecord {
	cp := *record
	return &cp
}

// Append adds a record to the address's history and trims entries beyond the
// retention cap.
func (s *TierStore) Append(ctx context.Context, record *model.TierRecord) error {
	if record == nil {
		return errors.New("tier record is required")
	}
	if !record.Tier.Valid() {
		return fmt.Errorf("invalid tier: %s", record.Tier)
	}

	cp := cloneTierRecord(record)
	cp.Address = model.NormalizeAddress(cp.Address)
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = s.timeProvider.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append([]*model.TierRecord{cp}, s.history[cp.Address]...)
	if len(entries) > model.TierHistoryCap {
		entries = entries[:model.TierHistoryCap]
	}
	s.history[cp.Address] = entries
	return nil
}

// Latest returns the most recent tier record for the address or data.ErrTierNotFound.
func (s *TierStore) Latest(ctx context.Context, address string) (*model.TierRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.history[model.NormalizeAddress(address)]
	if len(entries) == 0 {
		return nil, data.ErrTierNotFound
	}
	return cloneTierRecord(entries[0]), nil
}

// History returns at most limit records for the address, most recent first.
func (s *TierStore) History(ctx context.Context, address string, limit int) ([]*model.TierRecord, error) {
	if limit <= 0 || limit > model.TierHistoryCap {
		limit = model.TierHistoryCap
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.history[model.NormalizeAddress(address)]
	if len(entries) > limit {
		entries = entries[:limit]
	}
	records := make([]*model.TierRecord, 0, len(entries))
	for _, record := range entries {
		records = append(records, cloneTierRecord(record))
	}
	return records, nil
}

// tierCounts returns the count of addresses per latest tier.
func (s *TierStore) tierCounts() (total int, byTier map[model.Tier]int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byTier = make(map[model.Tier]int)
	for _, entries := range s.history {
		if len(entries) == 0 {
			continue
		}
		byTier[entries[0].Tier]++
		total++
	}
	return total, byTier
}
