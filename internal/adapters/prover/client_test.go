package prover

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zecrep/aggregator/internal/domain/model"
)

const testProofHash = "0xabcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789"

func TestProveSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/prove", r.URL.Path)

		var req ProveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "0x1111111111111111111111111111111111111111", req.Address)
		assert.Equal(t, "zxviews-test", req.ViewingKey)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"artifact": map[string]any{
				"tier":              "GOLD",
				"proof_hash":        testProofHash,
				"encrypted_payload": "0xdead",
				"in_euint64":        map[string]any{"data": "0xbeef", "security_zone": 0},
				"notes_scanned":     12,
			},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	artifact, err := client.Prove(context.Background(), ProveRequest{
		Address:    "0x1111111111111111111111111111111111111111",
		ViewingKey: "zxviews-test",
	})
	require.NoError(t, err)
	assert.Equal(t, model.TierGold, artifact.Tier)
	assert.Equal(t, testProofHash, artifact.ProofHash)
	assert.Equal(t, "0xdead", artifact.EncryptedPayload)
	require.NotNil(t, artifact.InEuint64)
	assert.Equal(t, "0xbeef", artifact.InEuint64.Data)
	assert.Equal(t, 12, artifact.NotesScanned)
}

func TestProveReportedFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "no notes found"})
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Prove(context.Background(), ProveRequest{Address: "0x1", ViewingKey: "k"})
	var proverErr *Error
	require.ErrorAs(t, err, &proverErr)
	assert.Contains(t, proverErr.Message, "no notes found")
}

func TestProveNon200(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Prove(context.Background(), ProveRequest{Address: "0x1", ViewingKey: "k"})
	var proverErr *Error
	require.ErrorAs(t, err, &proverErr)
	assert.Equal(t, http.StatusInternalServerError, proverErr.StatusCode)
}

func TestProveInvalidTier(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":  true,
			"artifact": map[string]any{"tier": "DIAMOND", "encrypted_payload": "0x00"},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Prove(context.Background(), ProveRequest{Address: "0x1", ViewingKey: "k"})
	var proverErr *Error
	require.ErrorAs(t, err, &proverErr)
	assert.Contains(t, proverErr.Message, "invalid tier")
}

func TestProveTimeout(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	client, err := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = client.Prove(context.Background(), ProveRequest{Address: "0x1", ViewingKey: "k"})
	require.Error(t, err)
	var proverErr *Error
	if errors.As(err, &proverErr) {
		assert.Zero(t, proverErr.StatusCode)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{})
	require.Error(t, err)
}
