package memstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zecrep/aggregator/internal/data"
	"github.com/zecrep/aggregator/internal/domain/model"
)

// WebhookStore is an in-memory webhook subscription registry.
type WebhookStore struct {
	mu           sync.Mutex
	subs         map[string]*model.WebhookSubscription
	timeProvider data.TimeProvider
}

// NewWebhookStore creates an empty in-memory webhook subscription store.
func NewWebhookStore() *WebhookStore {
	return NewWebhookStoreWithTimeProvider(&data.RealTimeProvider{})
}

// NewWebhookStoreWithTimeProvider creates a webhook store with an injected clock for tests.
func NewWebhookStoreWithTimeProvider(tp data.TimeProvider) *WebhookStore {
	return &WebhookStore{
		subs:         make(map[string]*model.WebhookSubscription),
		timeProvider: tp,
	}
}

func cloneSubscription(sub *model.WebhookSubscription) *model.WebhookSubscription {
	cp := *sub
	cp.Events = append([]model.WebhookEvent(nil), sub.Events...)
	if sub.LastTriggeredAt != nil {
		t := *sub.LastTriggeredAt
		cp.LastTriggeredAt = &t
	}
	return &cp
}

// Create stores a subscription. Returns data.ErrSubscriptionExists on a
// duplicate id.
func (s *WebhookStore) Create(ctx context.Context, sub *model.WebhookSubscription) error {
	if sub == nil || strings.TrimSpace(sub.ID) == "" {
		return errors.New("subscription with id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subs[sub.ID]; exists {
		return data.ErrSubscriptionExists
	}

	cp := cloneSubscription(sub)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.timeProvider.Now().UTC()
	}
	s.subs[cp.ID] = cp
	return nil
}

// GetByID returns the subscription or data.ErrSubscriptionNotFound.
func (s *WebhookStore) GetByID(ctx context.Context, id string) (*model.WebhookSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]
	if !ok {
		return nil, data.ErrSubscriptionNotFound
	}
	return cloneSubscription(sub), nil
}

// List returns subscriptions ordered by creation time, optionally filtered by
// owner address.
func (s *WebhookStore) List(ctx context.Context, ownerAddress string) ([]*model.WebhookSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := []*model.WebhookSubscription{}
	for _, sub := range s.subs {
		if ownerAddress != "" && sub.OwnerAddress != ownerAddress {
			continue
		}
		matched = append(matched, cloneSubscription(sub))
	}
	sortSubscriptions(matched)
	return matched, nil
}

// Delete removes the subscription or returns data.ErrSubscriptionNotFound.
func (s *WebhookStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[id]; !ok {
		return data.ErrSubscriptionNotFound
	}
	delete(s.subs, id)
	return nil
}

// ListActiveByEvent returns active subscriptions whose event set contains event.
func (s *WebhookStore) ListActiveByEvent(ctx context.Context, event model.WebhookEvent) ([]*model.WebhookSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := []*model.WebhookSubscription{}
	for _, sub := range s.subs {
		if !sub.Active || !sub.HasEvent(event) {
			continue
		}
		matched = append(matched, cloneSubscription(sub))
	}
	sortSubscriptions(matched)
	return matched, nil
}

// TouchLastTriggered records a successful delivery. Best-effort; a missing id
// is not an error.
func (s *WebhookStore) TouchLastTriggered(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub, ok := s.subs[id]; ok {
		t := at.UTC()
		sub.LastTriggeredAt = &t
	}
	return nil
}

func sortSubscriptions(subs []*model.WebhookSubscription) {
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].CreatedAt.Equal(subs[j].CreatedAt) {
			return subs[i].CreatedAt.Before(subs[j].CreatedAt)
		}
		return subs[i].ID < subs[j].ID
	})
}
