package data

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zecrep/aggregator/internal/testutil"
)

func TestRedisCacheRepo(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	t.Cleanup(func() {
		_ = client.Close()
	})

	ctx := context.Background()
	repo := NewRedisCacheRepo(client)

	// Unique key prefix keeps parallel runs from colliding.
	key := "test:" + uuid.New().String()

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, key, []byte("value"), time.Minute))

		value, err := repo.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("value"), value)
	})

	t.Run("missing key returns nil", func(t *testing.T) {
		value, err := repo.Get(ctx, key+":absent")
		require.NoError(t, err)
		assert.Nil(t, value)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, key+":del", []byte("x"), time.Minute))

		removed, err := repo.Delete(ctx, key+":del")
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = repo.Delete(ctx, key+":del")
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("ttl expiry", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, key+":ttl", []byte("x"), 50*time.Millisecond))

		require.Eventually(t, func() bool {
			value, err := repo.Get(ctx, key+":ttl")
			return err == nil && value == nil
		}, 2*time.Second, 25*time.Millisecond)
	})

	t.Run("empty key rejected", func(t *testing.T) {
		require.Error(t, repo.Set(ctx, "", []byte("x"), 0))
		_, err := repo.Get(ctx, "")
		require.Error(t, err)
		_, err = repo.Delete(ctx, "")
		require.Error(t, err)
	})
}
