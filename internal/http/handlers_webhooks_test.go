package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zecrep/aggregator/internal/testutil"
)

func TestSubscribe(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)

	body := `{"owner_address":"` + testutil.TestAddress + `","callback_url":"https://partner.example.com/hooks","secret":"hush"}`
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/subscribe", strings.NewReader(body))

	var resp struct {
		Subscription map[string]any `json:"subscription"`
	}
	rec := f.do(t, req, &resp)

	require.Equal(t, http.StatusCreated, rec.Code)
	sub := resp.Subscription
	require.NotNil(t, sub)
	id, _ := sub["id"].(string)
	assert.True(t, strings.HasPrefix(id, "wh_"))
	assert.Equal(t, testutil.TestAddress, sub["owner_address"])
	assert.Equal(t, "https://partner.example.com/hooks", sub["callback_url"])
	assert.Equal(t, true, sub["active"])
	assert.ElementsMatch(t, []any{"tier_upgrade", "badge_minted"}, sub["events"])

	// The signing secret never comes back.
	assert.NotContains(t, rec.Body.String(), "hush")
}

func TestSubscribe_Invalid(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)

	body := `{"owner_address":"` + testutil.TestAddress + `","callback_url":"ftp://nope"}`
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/subscribe", strings.NewReader(body))

	var resp map[string]string
	rec := f.do(t, req, &resp)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", resp["error"])
	assert.Equal(t, "callback_url", resp["field"])
}

func TestListSubscriptions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newRouterFixture(t)

	otherAddr := "0x2222222222222222222222222222222222222222"
	_, err := f.webhooks.Subscribe(ctx, testutil.NewSubscribeRequest().Build())
	require.NoError(t, err)
	_, err = f.webhooks.Subscribe(ctx, testutil.NewSubscribeRequest().WithOwnerAddress(otherAddr).Build())
	require.NoError(t, err)

	var resp struct {
		Subscriptions []map[string]any `json:"subscriptions"`
		Count         int              `json:"count"`
	}
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/webhooks/subscriptions", nil), &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, resp.Count)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/webhooks/subscriptions?owner_address="+otherAddr, nil), &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, otherAddr, resp.Subscriptions[0]["owner_address"])
}

func TestUnsubscribe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newRouterFixture(t)

	sub, err := f.webhooks.Subscribe(ctx, testutil.NewSubscribeRequest().Build())
	require.NoError(t, err)

	var resp map[string]any
	rec := f.do(t, httptest.NewRequest(http.MethodDelete, "/api/webhooks/subscriptions/"+sub.ID, nil), &resp)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, resp["deleted"])
	assert.Equal(t, sub.ID, resp["id"])

	rec = f.do(t, httptest.NewRequest(http.MethodDelete, "/api/webhooks/subscriptions/"+sub.ID, nil), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_found")
}
