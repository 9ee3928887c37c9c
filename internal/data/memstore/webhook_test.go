package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zecrep/aggregator/internal/data"
	"github.com/zecrep/aggregator/internal/domain/model"
	"github.com/zecrep/aggregator/internal/testutil"
)

func newTestSubscription(id string, events ...model.WebhookEvent) *model.WebhookSubscription {
	if len(events) == 0 {
		events = model.DefaultWebhookEvents()
	}
	return &model.WebhookSubscription{
		ID:           id,
		OwnerAddress: testutil.TestAddress,
		CallbackURL:  "https://partner.example.com/hooks/" + id,
		Events:       events,
		Active:       true,
	}
}

func TestWebhookStore_CreateAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewWebhookStore()

	sub := newTestSubscription("wh_one")
	require.NoError(t, store.Create(ctx, sub))

	stored, err := store.GetByID(ctx, "wh_one")
	require.NoError(t, err)
	assert.Equal(t, sub.CallbackURL, stored.CallbackURL)
	assert.False(t, stored.CreatedAt.IsZero())

	require.ErrorIs(t, store.Create(ctx, newTestSubscription("wh_one")), data.ErrSubscriptionExists)

	require.Error(t, store.Create(ctx, nil))
	require.Error(t, store.Create(ctx, &model.WebhookSubscription{ID: "  "}))

	_, err = store.GetByID(ctx, "missing")
	require.ErrorIs(t, err, data.ErrSubscriptionNotFound)
}

func TestWebhookStore_List(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tp := data.NewFixedTimeProvider(testutil.TestTime())
	store := NewWebhookStoreWithTimeProvider(tp)

	first := newTestSubscription("wh_first")
	require.NoError(t, store.Create(ctx, first))
	tp.AddTime(time.Minute)

	other := newTestSubscription("wh_other")
	other.OwnerAddress = "0x2222222222222222222222222222222222222222"
	require.NoError(t, store.Create(ctx, other))
	tp.AddTime(time.Minute)

	second := newTestSubscription("wh_second")
	require.NoError(t, store.Create(ctx, second))

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "wh_first", all[0].ID)
	assert.Equal(t, "wh_other", all[1].ID)
	assert.Equal(t, "wh_second", all[2].ID)

	mine, err := store.List(ctx, testutil.TestAddress)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "wh_first", mine[0].ID)
	assert.Equal(t, "wh_second", mine[1].ID)
}

func TestWebhookStore_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewWebhookStore()

	require.NoError(t, store.Create(ctx, newTestSubscription("wh_gone")))
	require.NoError(t, store.Delete(ctx, "wh_gone"))

	_, err := store.GetByID(ctx, "wh_gone")
	require.ErrorIs(t, err, data.ErrSubscriptionNotFound)

	require.ErrorIs(t, store.Delete(ctx, "wh_gone"), data.ErrSubscriptionNotFound)
}

func TestWebhookStore_ListActiveByEvent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewWebhookStore()

	upgrades := newTestSubscription("wh_upgrades", model.EventTierUpgrade)
	require.NoError(t, store.Create(ctx, upgrades))

	badges := newTestSubscription("wh_badges", model.EventBadgeMinted)
	require.NoError(t, store.Create(ctx, badges))

	inactive := newTestSubscription("wh_inactive", model.EventTierUpgrade)
	inactive.Active = false
	require.NoError(t, store.Create(ctx, inactive))

	matched, err := store.ListActiveByEvent(ctx, model.EventTierUpgrade)
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "wh_upgrades", matched[0].ID)

	matched, err = store.ListActiveByEvent(ctx, model.EventTierDowngrade)
	require.NoError(t, err)
	assert.Empty(t, matched)
}

func TestWebhookStore_TouchLastTriggered(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewWebhookStore()

	require.NoError(t, store.Create(ctx, newTestSubscription("wh_touch")))

	at := testutil.TestTime().Add(time.Hour)
	require.NoError(t, store.TouchLastTriggered(ctx, "wh_touch", at))

	stored, err := store.GetByID(ctx, "wh_touch")
	require.NoError(t, err)
	require.NotNil(t, stored.LastTriggeredAt)
	assert.Equal(t, at, *stored.LastTriggeredAt)

	// Missing ids are ignored.
	require.NoError(t, store.TouchLastTriggered(ctx, "missing", at))
}
