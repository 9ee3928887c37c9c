package testutil

import (
	"time"

	"github.com/zecrep/aggregator/internal/domain/model"
)

// TestAddress is a valid address used across tests.
const TestAddress = "0x1111111111111111111111111111111111111111"

// TestProofHash is a valid proof hash used across tests.
const TestProofHash = "0xabcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789"

// JobRequestBuilder provides a fluent interface for building CreateJobRequest objects for testing.
type JobRequestBuilder struct {
	req *model.CreateJobRequest
}

// NewJobRequest creates a new JobRequestBuilder with sensible defaults.
func NewJobRequest() *JobRequestBuilder {
	return &JobRequestBuilder{
		req: &model.CreateJobRequest{
			Address:    TestAddress,
			ViewingKey: "zxviews1test",
		},
	}
}

// WithAddress sets the account address.
func (b *JobRequestBuilder) WithAddress(address string) *JobRequestBuilder {
	b.req.Address = address
	return b
}

// WithViewingKey sets the secret viewing key.
func (b *JobRequestBuilder) WithViewingKey(key string) *JobRequestBuilder {
	b.req.ViewingKey = key
	return b
}

// WithTier sets the provisional tier hint.
func (b *JobRequestBuilder) WithTier(tier model.Tier) *JobRequestBuilder {
	b.req.Tier = tier
	return b
}

// WithProofHash sets the provisional proof reference.
func (b *JobRequestBuilder) WithProofHash(hash string) *JobRequestBuilder {
	b.req.ProofHash = hash
	return b
}

// Build returns the constructed CreateJobRequest.
func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	return b.req
}

// TierRecordBuilder provides a fluent interface for building TierRecord objects for testing.
type TierRecordBuilder struct {
	record *model.TierRecord
}

// NewTierRecord creates a new TierRecordBuilder with sensible defaults.
func NewTierRecord() *TierRecordBuilder {
	return &TierRecordBuilder{
		record: &model.TierRecord{
			Address:        TestAddress,
			Tier:           model.TierSilver,
			Score:          model.TierSilver.Score(),
			EncryptedTotal: "enc:0",
			UpdatedAt:      TestTime(),
		},
	}
}

// WithAddress sets the address.
func (b *TierRecordBuilder) WithAddress(address string) *TierRecordBuilder {
	b.record.Address = address
	return b
}

// WithTier sets the tier and its derived score.
func (b *TierRecordBuilder) WithTier(tier model.Tier) *TierRecordBuilder {
	b.record.Tier = tier
	b.record.Score = tier.Score()
	return b
}

// WithEncryptedTotal sets the ciphertext reference.
func (b *TierRecordBuilder) WithEncryptedTotal(total string) *TierRecordBuilder {
	b.record.EncryptedTotal = total
	return b
}

// WithVolumeZats sets the volume hint.
func (b *TierRecordBuilder) WithVolumeZats(volume int64) *TierRecordBuilder {
	b.record.VolumeZats = volume
	return b
}

// WithUpdatedAt sets the record timestamp.
func (b *TierRecordBuilder) WithUpdatedAt(at time.Time) *TierRecordBuilder {
	b.record.UpdatedAt = at
	return b
}

// Build returns the constructed TierRecord.
func (b *TierRecordBuilder) Build() *model.TierRecord {
	return b.record
}

// SubscribeRequestBuilder provides a fluent interface for building SubscribeRequest objects for testing.
type SubscribeRequestBuilder struct {
	req *model.SubscribeRequest
}

// NewSubscribeRequest creates a new SubscribeRequestBuilder with sensible defaults.
func NewSubscribeRequest() *SubscribeRequestBuilder {
	return &SubscribeRequestBuilder{
		req: &model.SubscribeRequest{
			OwnerAddress: TestAddress,
			CallbackURL:  "https://partner.example.com/hooks/zecrep",
		},
	}
}

// WithOwnerAddress sets the subscriber's address.
func (b *SubscribeRequestBuilder) WithOwnerAddress(address string) *SubscribeRequestBuilder {
	b.req.OwnerAddress = address
	return b
}

// WithCallbackURL sets the callback URL.
func (b *SubscribeRequestBuilder) WithCallbackURL(url string) *SubscribeRequestBuilder {
	b.req.CallbackURL = url
	return b
}

// WithEvents sets the subscribed event set.
func (b *SubscribeRequestBuilder) WithEvents(events ...model.WebhookEvent) *SubscribeRequestBuilder {
	b.req.Events = events
	return b
}

// WithSecret sets the signing secret.
func (b *SubscribeRequestBuilder) WithSecret(secret string) *SubscribeRequestBuilder {
	b.req.Secret = secret
	return b
}

// Build returns the constructed SubscribeRequest.
func (b *SubscribeRequestBuilder) Build() *model.SubscribeRequest {
	return b.req
}
