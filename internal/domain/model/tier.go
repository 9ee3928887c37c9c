package model

import "time"

// Tier is the ordered categorical outcome assigned to an address on job
// completion. BRONZE < SILVER < GOLD < PLATINUM.
type Tier string

const (
	TierBronze   Tier = "BRONZE"
	TierSilver   Tier = "SILVER"
	TierGold     Tier = "GOLD"
	TierPlatinum Tier = "PLATINUM"
)

// TierHistoryCap bounds the retained history entries per address.
const TierHistoryCap = 100

// Valid returns true if the Tier is in the known enumeration.
func (t Tier) Valid() bool {
	return t == TierBronze || t == TierSilver || t == TierGold || t == TierPlatinum
}

// Rank returns the ordering position of the tier, 0 for unknown values.
func (t Tier) Rank() int {
	switch t {
	case TierBronze:
		return 1
	case TierSilver:
		return 2
	case TierGold:
		return 3
	case TierPlatinum:
		return 4
	default:
		return 0
	}
}

// Score returns the fixed reputation score for the tier.
func (t Tier) Score() int {
	switch t {
	case TierBronze:
		return 100
	case TierSilver:
		return 200
	case TierGold:
		return 500
	case TierPlatinum:
		return 1000
	default:
		return 0
	}
}

// TierRecord is a snapshot of a resolved tier for an address, appended to an
// ordered per-address history. It is the externally visible reputation
// outcome, distinct from the transient Job that produced it.
type TierRecord struct {
	Address        string    `json:"address"                   db:"address"`
	Tier           Tier      `json:"tier"                      db:"tier"`
	Score          int       `json:"score"                     db:"score"`
	EncryptedTotal string    `json:"encrypted_total"           db:"encrypted_total"`
	VolumeZats     int64     `json:"volume_zats,omitempty"     db:"volume_zats"`
	UpdatedAt      time.Time `json:"updated_at"                db:"updated_at"`
}
