package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	validAddress   = "0x1111111111111111111111111111111111111111"
	validProofHash = "0xabcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789"
)

func TestJobStatus_Valid(t *testing.T) {
	t.Parallel()

	for _, status := range []JobStatus{JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed} {
		assert.True(t, status.Valid(), "status %s should be valid", status)
	}
	assert.False(t, JobStatus("queued").Valid())
	assert.False(t, JobStatus("").Valid())
}

func TestJobStatus_Terminal(t *testing.T) {
	t.Parallel()

	assert.False(t, JobStatusPending.Terminal())
	assert.False(t, JobStatusProcessing.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
}

func TestValidAddress(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidAddress(validAddress))
	assert.True(t, ValidAddress("0xAbCd111111111111111111111111111111111111"))
	assert.False(t, ValidAddress(""))
	assert.False(t, ValidAddress("1111111111111111111111111111111111111111"))
	assert.False(t, ValidAddress("0x111"))
	assert.False(t, ValidAddress("0xzz11111111111111111111111111111111111111"))
}

func TestValidProofHash(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidProofHash(validProofHash))
	assert.False(t, ValidProofHash("0x1234"))
	assert.False(t, ValidProofHash(""))
}

func TestCreateJobRequest_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		req       CreateJobRequest
		wantField string
	}{
		{
			name: "valid minimal",
			req:  CreateJobRequest{Address: validAddress, ViewingKey: "zxviews1abc"},
		},
		{
			name: "valid with hints",
			req: CreateJobRequest{
				Address:    validAddress,
				ViewingKey: "zxviews1abc",
				Tier:       TierGold,
				ProofHash:  validProofHash,
			},
		},
		{
			name:      "bad address",
			req:       CreateJobRequest{Address: "not-an-address", ViewingKey: "zxviews1abc"},
			wantField: "address",
		},
		{
			name:      "missing secret",
			req:       CreateJobRequest{Address: validAddress, ViewingKey: "   "},
			wantField: "secret_input",
		},
		{
			name:      "unknown tier",
			req:       CreateJobRequest{Address: validAddress, ViewingKey: "k", Tier: "DIAMOND"},
			wantField: "tier",
		},
		{
			name:      "malformed proof reference",
			req:       CreateJobRequest{Address: validAddress, ViewingKey: "k", ProofHash: "0xnope"},
			wantField: "proof_reference",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.req.Validate()
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.True(t, IsValidationError(err))
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestCreateJobRequest_SecretInputFieldName(t *testing.T) {
	t.Parallel()

	var req CreateJobRequest
	err := json.Unmarshal([]byte(`{"address":"`+validAddress+`","secret_input":"zxviews1abc"}`), &req)
	require.NoError(t, err)
	assert.Equal(t, "zxviews1abc", req.ViewingKey)
}

func TestJob_ViewingKeyNeverSerialized(t *testing.T) {
	t.Parallel()

	job := Job{
		ID:         "job-1",
		Status:     JobStatusPending,
		Address:    validAddress,
		ViewingKey: "zxviews1supersecret",
	}

	b, err := json.Marshal(job)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "zxviews1supersecret")
	assert.NotContains(t, string(b), "viewing_key")
}

func TestJobFilter_EffectiveLimit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultListLimit, JobFilter{}.EffectiveLimit())
	assert.Equal(t, DefaultListLimit, JobFilter{Limit: -1}.EffectiveLimit())
	assert.Equal(t, 25, JobFilter{Limit: 25}.EffectiveLimit())
	assert.Equal(t, MaxListLimit, JobFilter{Limit: MaxListLimit}.EffectiveLimit())
	assert.Equal(t, MaxListLimit, JobFilter{Limit: MaxListLimit + 1}.EffectiveLimit())
}

func TestTier_RankOrdering(t *testing.T) {
	t.Parallel()

	assert.Less(t, TierBronze.Rank(), TierSilver.Rank())
	assert.Less(t, TierSilver.Rank(), TierGold.Rank())
	assert.Less(t, TierGold.Rank(), TierPlatinum.Rank())
	assert.Equal(t, 0, Tier("DIAMOND").Rank())
}

func TestTier_Score(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 100, TierBronze.Score())
	assert.Equal(t, 200, TierSilver.Score())
	assert.Equal(t, 500, TierGold.Score())
	assert.Equal(t, 1000, TierPlatinum.Score())
	assert.Equal(t, 0, Tier("").Score())
}
