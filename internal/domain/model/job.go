// Package model defines the core data types and structures used throughout the aggregator.
package model

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// JobStatus represents the current status of a range proof job.
type JobStatus string

const (
	// JobStatusPending indicates a job is waiting to be picked up.
	JobStatusPending JobStatus = "pending"
	// JobStatusProcessing indicates a job has been claimed by a processor.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates the prover finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the prover call failed or timed out.
	JobStatusFailed JobStatus = "failed"
)

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusProcessing ||
		s == JobStatusCompleted || s == JobStatusFailed
}

// Terminal returns true if no transition leaves this status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ErrNoJobsPending is returned when no pending jobs are available for claiming.
var ErrNoJobsPending = errors.New("no pending jobs")

var (
	addressPattern   = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	proofHashPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{64}$`)
)

// ValidAddress reports whether s is a 0x-prefixed 20-byte hex address.
func ValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// ValidProofHash reports whether s is a 0x-prefixed 32-byte hex digest.
func ValidProofHash(s string) bool {
	return proofHashPattern.MatchString(s)
}

// NormalizeAddress lowercases an address for storage and comparison.
func NormalizeAddress(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// EncryptedUint64 is a ciphertext handle in the FHE gateway's inEuint64 format.
type EncryptedUint64 struct {
	Data         string `json:"data"`
	SecurityZone int    `json:"security_zone"`
}

// JobResult is the encrypted artifact produced by the prover for a completed job.
type JobResult struct {
	EncryptedPayload string           `json:"encrypted_payload"`
	InEuint64        *EncryptedUint64 `json:"in_euint64,omitempty"`
}

// Job represents a range proof job tracked end-to-end.
//
// ViewingKey is the caller's secret input; it is held only until the prover
// call resolves and is excluded from JSON so it can never cross the read path.
type Job struct {
	ID          string     `json:"id"               db:"id"`
	Status      JobStatus  `json:"status"           db:"status"`
	Address     string     `json:"address"          db:"address"`
	ViewingKey  string     `json:"-"                db:"viewing_key"`
	Tier        Tier       `json:"tier,omitempty"   db:"tier"`
	ProofHash   string     `json:"proof_hash,omitempty" db:"proof_hash"`
	Result      *JobResult `json:"result,omitempty" db:"result"`
	Error       *string    `json:"error,omitempty"  db:"error"`
	SubmittedAt time.Time  `json:"submitted_at"     db:"submitted_at"`
	UpdatedAt   time.Time  `json:"updated_at"       db:"updated_at"`
}

// CreateJobRequest represents a request to create a new range proof job.
// Tier and ProofHash are provisional; the prover's completion values are
// authoritative.
type CreateJobRequest struct {
	Address    string `json:"address"`
	ViewingKey string `json:"secret_input"`
	Tier       Tier   `json:"tier,omitempty"`
	ProofHash  string `json:"proof_reference,omitempty"`
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if !ValidAddress(r.Address) {
		return &ValidationError{Field: "address", Message: "must be a 0x-prefixed 20 byte hex address"}
	}
	if strings.TrimSpace(r.ViewingKey) == "" {
		return &ValidationError{Field: "secret_input", Message: "is required and cannot be empty"}
	}
	if r.Tier != "" && !r.Tier.Valid() {
		return &ValidationError{Field: "tier", Message: "must be one of: BRONZE, SILVER, GOLD, PLATINUM"}
	}
	if r.ProofHash != "" && !ValidProofHash(r.ProofHash) {
		return &ValidationError{Field: "proof_reference", Message: "must be a 0x-prefixed 32 byte hex digest"}
	}
	return nil
}

// List page size bounds, shared by every storage backend.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// JobFilter narrows List results.
type JobFilter struct {
	Address string
	Status  JobStatus
	Limit   int
}

// EffectiveLimit resolves the requested page size: non-positive limits fall
// back to DefaultListLimit and requests are capped at MaxListLimit.
func (f JobFilter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		return MaxListLimit
	}
	return f.Limit
}

// JobUpdate is a partial update applied to an existing job. Nil fields are
// left untouched; updated_at always advances.
type JobUpdate struct {
	Status    *JobStatus
	Tier      *Tier
	ProofHash *string
	Result    *JobResult
	Error     *string
}

// CompleteParams carries the prover outcome recorded on a completed job.
type CompleteParams struct {
	Tier      Tier
	ProofHash string
	Result    *JobResult
}

// StoreStats aggregates job and tier counts for observability endpoints.
type StoreStats struct {
	TotalJobs    int               `json:"total_jobs"`
	JobsByStatus map[JobStatus]int `json:"jobs_by_status"`
	TotalTiers   int               `json:"total_tiers"`
	TiersByTier  map[Tier]int      `json:"tiers_by_tier"`
}
