package service

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zecrep/aggregator/internal/data"
	"github.com/zecrep/aggregator/internal/data/memstore"
	"github.com/zecrep/aggregator/internal/domain/model"
	"github.com/zecrep/aggregator/internal/testutil"
)

func newWebhookService(t *testing.T) (*memstore.WebhookStore, *WebhookService) {
	t.Helper()

	store := memstore.NewWebhookStore()
	svc, err := NewWebhookService(WebhookServiceOptions{
		Repo:   store,
		Config: WebhookServiceConfig{Timeout: 2 * time.Second},
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	return store, svc
}

// capturedDelivery records one callback received by a test subscriber.
type capturedDelivery struct {
	event          string
	subscriptionID string
	signature      string
	body           []byte
}

// deliverySink is an httptest handler that collects callbacks.
type deliverySink struct {
	mu         sync.Mutex
	deliveries []capturedDelivery
	status     int
}

func newDeliverySink(status int) *deliverySink {
	return &deliverySink{status: status}
}

func (d *deliverySink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	d.mu.Lock()
	d.deliveries = append(d.deliveries, capturedDelivery{
		event:          r.Header.Get("X-ZecRep-Event"),
		subscriptionID: r.Header.Get("X-ZecRep-Subscription-Id"),
		signature:      r.Header.Get("X-ZecRep-Signature"),
		body:           body,
	})
	d.mu.Unlock()
	w.WriteHeader(d.status)
}

func (d *deliverySink) all() []capturedDelivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]capturedDelivery(nil), d.deliveries...)
}

func TestNewWebhookService_RequiresRepo(t *testing.T) {
	t.Parallel()

	_, err := NewWebhookService(WebhookServiceOptions{})
	require.Error(t, err)
}

func TestWebhookService_Subscribe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, svc := newWebhookService(t)

	sub, err := svc.Subscribe(ctx, testutil.NewSubscribeRequest().Build())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sub.ID, "wh_"))
	assert.NotContains(t, sub.ID, "-")
	assert.True(t, sub.Active)
	assert.Equal(t, model.DefaultWebhookEvents(), sub.Events)

	stored, err := store.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.CallbackURL, stored.CallbackURL)
}

func TestWebhookService_Subscribe_Invalid(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, svc := newWebhookService(t)

	_, err := svc.Subscribe(ctx, nil)
	require.Error(t, err)

	_, err = svc.Subscribe(ctx, testutil.NewSubscribeRequest().WithCallbackURL("ftp://x").Build())
	require.Error(t, err)
	assert.True(t, model.IsValidationError(err))
}

func TestWebhookService_Unsubscribe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, svc := newWebhookService(t)

	sub, err := svc.Subscribe(ctx, testutil.NewSubscribeRequest().Build())
	require.NoError(t, err)

	require.NoError(t, svc.Unsubscribe(ctx, sub.ID))

	err = svc.Unsubscribe(ctx, sub.ID)
	require.ErrorIs(t, err, data.ErrSubscriptionNotFound)
}

func TestWebhookService_Dispatch_DeliversSignedPayload(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, svc := newWebhookService(t)

	sink := newDeliverySink(http.StatusOK)
	server := httptest.NewServer(sink)
	t.Cleanup(server.Close)

	sub, err := svc.Subscribe(ctx, testutil.NewSubscribeRequest().
		WithCallbackURL(server.URL).
		WithEvents(model.EventTierUpgrade).
		WithSecret("topsecret").
		Build())
	require.NoError(t, err)

	old := model.TierBronze
	eventData := model.TierEventData{
		Address:   testutil.TestAddress,
		OldTier:   &old,
		NewTier:   model.TierGold,
		Score:     model.TierGold.Score(),
		ProofHash: testutil.TestProofHash,
	}
	require.NoError(t, svc.Dispatch(ctx, model.EventTierUpgrade, eventData))
	svc.Close()

	deliveries := sink.all()
	require.Len(t, deliveries, 1)

	got := deliveries[0]
	assert.Equal(t, "tier_upgrade", got.event)
	assert.Equal(t, sub.ID, got.subscriptionID)
	assert.True(t, hmac.Equal([]byte(SignPayload("topsecret", got.body)), []byte(got.signature)))

	var payload model.WebhookPayload
	require.NoError(t, json.Unmarshal(got.body, &payload))
	assert.Equal(t, model.EventTierUpgrade, payload.Event)
	assert.Equal(t, testutil.TestAddress, payload.Data.Address)
	assert.Equal(t, model.TierGold, payload.Data.NewTier)
	require.NotNil(t, payload.Data.OldTier)
	assert.Equal(t, model.TierBronze, *payload.Data.OldTier)
	assert.Equal(t, testutil.TestProofHash, payload.Data.ProofHash)

	stored, err := store.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastTriggeredAt)
}

func TestWebhookService_Dispatch_FiltersByEvent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, svc := newWebhookService(t)

	badges := newDeliverySink(http.StatusOK)
	badgeServer := httptest.NewServer(badges)
	t.Cleanup(badgeServer.Close)

	downgrades := newDeliverySink(http.StatusOK)
	downgradeServer := httptest.NewServer(downgrades)
	t.Cleanup(downgradeServer.Close)

	_, err := svc.Subscribe(ctx, testutil.NewSubscribeRequest().
		WithCallbackURL(badgeServer.URL).
		WithEvents(model.EventBadgeMinted).
		Build())
	require.NoError(t, err)

	_, err = svc.Subscribe(ctx, testutil.NewSubscribeRequest().
		WithCallbackURL(downgradeServer.URL).
		WithEvents(model.EventTierDowngrade).
		Build())
	require.NoError(t, err)

	require.NoError(t, svc.Dispatch(ctx, model.EventBadgeMinted, model.TierEventData{
		Address: testutil.TestAddress,
		NewTier: model.TierGold,
		Score:   model.TierGold.Score(),
	}))
	svc.Close()

	assert.Len(t, badges.all(), 1)
	assert.Empty(t, downgrades.all())
}

func TestWebhookService_Dispatch_FailingSubscriberDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, svc := newWebhookService(t)

	failing := newDeliverySink(http.StatusInternalServerError)
	failingServer := httptest.NewServer(failing)
	t.Cleanup(failingServer.Close)

	healthy := newDeliverySink(http.StatusOK)
	healthyServer := httptest.NewServer(healthy)
	t.Cleanup(healthyServer.Close)

	bad, err := svc.Subscribe(ctx, testutil.NewSubscribeRequest().
		WithCallbackURL(failingServer.URL).
		WithEvents(model.EventBadgeMinted).
		Build())
	require.NoError(t, err)

	_, err = svc.Subscribe(ctx, testutil.NewSubscribeRequest().
		WithCallbackURL(healthyServer.URL).
		WithEvents(model.EventBadgeMinted).
		Build())
	require.NoError(t, err)

	require.NoError(t, svc.Dispatch(ctx, model.EventBadgeMinted, model.TierEventData{
		Address: testutil.TestAddress,
		NewTier: model.TierSilver,
		Score:   model.TierSilver.Score(),
	}))
	svc.Close()

	assert.Len(t, failing.all(), 1)
	assert.Len(t, healthy.all(), 1)

	// A failed delivery never counts as triggered.
	stored, err := store.GetByID(ctx, bad.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.LastTriggeredAt)
}

func TestWebhookService_Dispatch_NoSubscribersIsNoop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, svc := newWebhookService(t)

	require.NoError(t, svc.Dispatch(ctx, model.EventTierUpgrade, model.TierEventData{
		Address: testutil.TestAddress,
		NewTier: model.TierGold,
	}))
}

func TestWebhookService_UnsignedDeliveryOmitsSignatureHeader(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, svc := newWebhookService(t)

	sink := newDeliverySink(http.StatusOK)
	server := httptest.NewServer(sink)
	t.Cleanup(server.Close)

	_, err := svc.Subscribe(ctx, testutil.NewSubscribeRequest().
		WithCallbackURL(server.URL).
		WithEvents(model.EventBadgeMinted).
		Build())
	require.NoError(t, err)

	require.NoError(t, svc.Dispatch(ctx, model.EventBadgeMinted, model.TierEventData{
		Address: testutil.TestAddress,
		NewTier: model.TierBronze,
	}))
	svc.Close()

	deliveries := sink.all()
	require.Len(t, deliveries, 1)
	assert.Empty(t, deliveries[0].signature)
}

func TestSignPayload(t *testing.T) {
	t.Parallel()

	sig := SignPayload("secret", []byte(`{"event":"badge_minted"}`))
	assert.True(t, strings.HasPrefix(sig, "sha256="))
	assert.Len(t, sig, len("sha256=")+64)

	// Deterministic for a given secret and body.
	assert.Equal(t, sig, SignPayload("secret", []byte(`{"event":"badge_minted"}`)))
	assert.NotEqual(t, sig, SignPayload("other", []byte(`{"event":"badge_minted"}`)))
}
