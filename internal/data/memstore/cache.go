package memstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zecrep/aggregator/internal/data"
)

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// Cache is an in-memory TTL cache used when Redis is not configured.
type Cache struct {
	mu           sync.Mutex
	entries      map[string]cacheEntry
	timeProvider data.TimeProvider
}

// NewCache creates an empty in-memory TTL cache.
func NewCache() *Cache {
	return NewCacheWithTimeProvider(&data.RealTimeProvider{})
}

// NewCacheWithTimeProvider creates a cache with an injected clock for tests.
func NewCacheWithTimeProvider(tp data.TimeProvider) *Cache {
	return &Cache{
		entries:      make(map[string]cacheEntry),
		timeProvider: tp,
	}
}

// Set stores a value under key. A non-positive TTL means no expiry.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	entry := cacheEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = c.timeProvider.Now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry
	return nil
}

// Get returns the value for key, or nil, nil when absent or expired.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("key cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && c.timeProvider.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, nil
	}
	return append([]byte(nil), entry.value...), nil
}

// Delete removes key from the cache. Returns true when a live entry was removed.
func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("key cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	delete(c.entries, key)
	if !entry.expiresAt.IsZero() && c.timeProvider.Now().After(entry.expiresAt) {
		return false, nil
	}
	return true, nil
}
