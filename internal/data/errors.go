package data

import "errors"

// Shared sentinel errors for data-layer repositories. Both the PostgreSQL
// and in-memory backends return these so callers can branch without knowing
// which backend is wired.
var (
	// ErrJobNotFound is returned when a job id is absent.
	ErrJobNotFound = errors.New("job not found")
	// ErrTierNotFound is returned when an address has no tier history.
	ErrTierNotFound = errors.New("tier record not found")
	// ErrSubscriptionNotFound is returned when a webhook subscription id is absent.
	ErrSubscriptionNotFound = errors.New("webhook subscription not found")
	// ErrSubscriptionExists is returned on a duplicate subscription id.
	ErrSubscriptionExists = errors.New("webhook subscription already exists")
)
