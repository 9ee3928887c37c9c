package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zecrep/aggregator/internal/domain/model"
	"github.com/zecrep/aggregator/internal/testutil"
)

func testSubscription(id string, events ...model.WebhookEvent) *model.WebhookSubscription {
	if len(events) == 0 {
		events = model.DefaultWebhookEvents()
	}
	return &model.WebhookSubscription{
		ID:           id,
		OwnerAddress: testutil.TestAddress,
		CallbackURL:  "https://partner.example.com/hooks/" + id,
		Events:       events,
		Secret:       "hush",
		Active:       true,
	}
}

func TestWebhookRepo_CreateAndGet(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewWebhookRepo(db, RepoConfig{})

		sub := testSubscription("wh_one")
		require.NoError(t, repo.Create(ctx, sub))

		stored, err := repo.GetByID(ctx, "wh_one")
		require.NoError(t, err)
		assert.Equal(t, sub.CallbackURL, stored.CallbackURL)
		assert.Equal(t, sub.Events, stored.Events)
		assert.Equal(t, "hush", stored.Secret)
		assert.True(t, stored.Active)
		assert.Nil(t, stored.LastTriggeredAt)

		require.ErrorIs(t, repo.Create(ctx, testSubscription("wh_one")), ErrSubscriptionExists)

		_, err = repo.GetByID(ctx, "wh_missing")
		require.ErrorIs(t, err, ErrSubscriptionNotFound)
	})
}

func TestWebhookRepo_List(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		tp := NewFixedTimeProvider(testutil.TestTime())
		repo := NewWebhookRepo(db, RepoConfig{TimeProvider: tp})

		require.NoError(t, repo.Create(ctx, testSubscription("wh_first")))
		tp.AddTime(time.Minute)

		other := testSubscription("wh_other")
		other.OwnerAddress = "0x2222222222222222222222222222222222222222"
		require.NoError(t, repo.Create(ctx, other))
		tp.AddTime(time.Minute)

		require.NoError(t, repo.Create(ctx, testSubscription("wh_second")))

		all, err := repo.List(ctx, "")
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "wh_first", all[0].ID)
		assert.Equal(t, "wh_other", all[1].ID)
		assert.Equal(t, "wh_second", all[2].ID)

		mine, err := repo.List(ctx, testutil.TestAddress)
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Equal(t, "wh_first", mine[0].ID)
		assert.Equal(t, "wh_second", mine[1].ID)
	})
}

func TestWebhookRepo_Delete(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewWebhookRepo(db, RepoConfig{})

		require.NoError(t, repo.Create(ctx, testSubscription("wh_gone")))
		require.NoError(t, repo.Delete(ctx, "wh_gone"))
		require.ErrorIs(t, repo.Delete(ctx, "wh_gone"), ErrSubscriptionNotFound)
	})
}

func TestWebhookRepo_ListActiveByEvent(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewWebhookRepo(db, RepoConfig{})

		require.NoError(t, repo.Create(ctx, testSubscription("wh_upgrades", model.EventTierUpgrade)))
		require.NoError(t, repo.Create(ctx, testSubscription("wh_both", model.EventTierUpgrade, model.EventBadgeMinted)))

		inactive := testSubscription("wh_inactive", model.EventTierUpgrade)
		inactive.Active = false
		require.NoError(t, repo.Create(ctx, inactive))

		matched, err := repo.ListActiveByEvent(ctx, model.EventTierUpgrade)
		require.NoError(t, err)
		require.Len(t, matched, 2)

		matched, err = repo.ListActiveByEvent(ctx, model.EventBadgeMinted)
		require.NoError(t, err)
		require.Len(t, matched, 1)
		assert.Equal(t, "wh_both", matched[0].ID)

		matched, err = repo.ListActiveByEvent(ctx, model.EventTierDowngrade)
		require.NoError(t, err)
		assert.Empty(t, matched)
	})
}

func TestWebhookRepo_TouchLastTriggered(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewWebhookRepo(db, RepoConfig{})

		require.NoError(t, repo.Create(ctx, testSubscription("wh_touch")))

		at := testutil.TestTime().Add(time.Hour)
		require.NoError(t, repo.TouchLastTriggered(ctx, "wh_touch", at))

		stored, err := repo.GetByID(ctx, "wh_touch")
		require.NoError(t, err)
		require.NotNil(t, stored.LastTriggeredAt)
		assert.True(t, stored.LastTriggeredAt.Equal(at))

		// Missing ids are ignored.
		require.NoError(t, repo.TouchLastTriggered(ctx, "wh_missing", at))
	})
}
