package model

import (
	"net/url"
	"strings"
	"time"
)

// WebhookEvent identifies a tier transition event partners can subscribe to.
type WebhookEvent string

const (
	// EventTierUpgrade fires when a completed job raises an address's tier.
	EventTierUpgrade WebhookEvent = "tier_upgrade"
	// EventTierDowngrade fires when a completed job lowers an address's tier.
	EventTierDowngrade WebhookEvent = "tier_downgrade"
	// EventBadgeMinted fires on every job completion.
	EventBadgeMinted WebhookEvent = "badge_minted"
)

// Valid returns true if the WebhookEvent is in the known set.
func (e WebhookEvent) Valid() bool {
	return e == EventTierUpgrade || e == EventTierDowngrade || e == EventBadgeMinted
}

// DefaultWebhookEvents is the event set applied when a subscriber omits one.
func DefaultWebhookEvents() []WebhookEvent {
	return []WebhookEvent{EventTierUpgrade, EventBadgeMinted}
}

// WebhookSubscription is a standing registration for push notifications.
// Secret, when set, is used to HMAC-sign callback bodies and is never
// serialized back to callers.
type WebhookSubscription struct {
	ID              string         `json:"id"                           db:"id"`
	OwnerAddress    string         `json:"owner_address"                db:"owner_address"`
	CallbackURL     string         `json:"callback_url"                 db:"callback_url"`
	Events          []WebhookEvent `json:"events"                       db:"events"`
	Secret          string         `json:"-"                            db:"secret"`
	Active          bool           `json:"active"                       db:"active"`
	CreatedAt       time.Time      `json:"created_at"                   db:"created_at"`
	LastTriggeredAt *time.Time     `json:"last_triggered_at,omitempty"  db:"last_triggered_at"`
}

// HasEvent reports whether the subscription's event set contains event.
func (s *WebhookSubscription) HasEvent(event WebhookEvent) bool {
	for _, e := range s.Events {
		if e == event {
			return true
		}
	}
	return false
}

// SubscribeRequest represents a request to register a webhook subscription.
type SubscribeRequest struct {
	OwnerAddress string         `json:"owner_address"`
	CallbackURL  string         `json:"callback_url"`
	Events       []WebhookEvent `json:"events,omitempty"`
	Secret       string         `json:"secret,omitempty"`
}

// Validate validates the SubscribeRequest fields and applies the default
// event set when none is given.
func (r *SubscribeRequest) Validate() error {
	if strings.TrimSpace(r.OwnerAddress) == "" {
		return &ValidationError{Field: "owner_address", Message: "is required and cannot be empty"}
	}
	if strings.TrimSpace(r.CallbackURL) == "" {
		return &ValidationError{Field: "callback_url", Message: "is required and cannot be empty"}
	}
	u, err := url.Parse(r.CallbackURL)
	if err != nil || u.Host == "" {
		return &ValidationError{Field: "callback_url", Message: "must be a valid URL"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Field: "callback_url", Message: "must use http or https scheme"}
	}
	if len(r.Events) == 0 {
		r.Events = DefaultWebhookEvents()
	}
	for _, e := range r.Events {
		if !e.Valid() {
			return &ValidationError{Field: "events", Message: "must be one of: tier_upgrade, tier_downgrade, badge_minted"}
		}
	}
	return nil
}

// TierEventData is the data block carried by webhook callbacks.
type TierEventData struct {
	Address   string `json:"address"`
	OldTier   *Tier  `json:"old_tier,omitempty"`
	NewTier   Tier   `json:"new_tier"`
	Score     int    `json:"score"`
	ProofHash string `json:"proof_reference"`
}

// WebhookPayload is the JSON body POSTed to subscriber callback URLs.
type WebhookPayload struct {
	Event     WebhookEvent  `json:"event"`
	Timestamp time.Time     `json:"timestamp"`
	Data      TierEventData `json:"data"`
}
