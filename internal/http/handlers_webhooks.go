package httpx

import (
	"net/http"

	"github.com/zecrep/aggregator/internal/domain/model"
	"github.com/zecrep/aggregator/internal/service"
)

// WebhookHandlers provides HTTP handlers for webhook subscription management.
type WebhookHandlers struct {
	Svc *service.WebhookService
}

// Subscribe registers a webhook subscription.
func (h *WebhookHandlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req model.SubscribeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	sub, err := h.Svc.Subscribe(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]any{"subscription": sub})
}

// ListSubscriptions returns subscriptions, optionally filtered by owner address.
func (h *WebhookHandlers) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.Svc.List(r.Context(), r.URL.Query().Get("owner_address"))
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"subscriptions": subs, "count": len(subs)})
}

// Unsubscribe removes a subscription by id.
func (h *WebhookHandlers) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.Svc.Unsubscribe(r.Context(), id); err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"deleted": true, "id": id})
}
