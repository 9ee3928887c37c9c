// Package prover provides an HTTP client adapter for the external prover
// sidecar that scans shielded notes and produces range proof artifacts.
package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zecrep/aggregator/internal/domain/model"
)

// Config captures the subset of prover behaviour we need.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
}

// Client calls the prover sidecar over HTTP. Every call is bounded by the
// configured timeout, so a hung prover fails the job rather than wedging a
// processor worker.
type Client struct {
	baseURL string
	client  *http.Client
}

// ProveRequest is the payload sent to the prover.
type ProveRequest struct {
	Address    string `json:"address"`
	ViewingKey string `json:"viewing_key"`
}

// Artifact is the successful prover outcome.
type Artifact struct {
	Tier             model.Tier             `json:"tier"`
	ProofHash        string                 `json:"proof_hash"`
	EncryptedPayload string                 `json:"encrypted_payload"`
	InEuint64        *model.EncryptedUint64 `json:"in_euint64,omitempty"`
	NotesScanned     int                    `json:"notes_scanned,omitempty"`
}

type proveResponse struct {
	Success  bool      `json:"success"`
	Artifact *Artifact `json:"artifact,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Error is a prover-reported or transport-level failure. StatusCode is zero
// when the request never reached the prover.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("prover: status %d: %s", e.StatusCode, e.Message)
	}
	return "prover: " + e.Message
}

// NewClient builds a prover client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("prover base url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: baseURL,
		client:  hc,
	}, nil
}

// MustNewClient builds a prover client and panics on error.
func MustNewClient(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create prover client: %v", err))
	}
	return client
}

// Prove requests a range proof for the address. The returned artifact's tier
// and proof hash are validated before being handed to the caller.
func (c *Client) Prove(ctx context.Context, req ProveRequest) (*Artifact, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode prove request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prove", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create prove request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(snippet))}
	}

	var decoded proveResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&decoded); decodeErr != nil {
		return nil, fmt.Errorf("decode prove response: %w", decodeErr)
	}

	if !decoded.Success || decoded.Artifact == nil {
		msg := decoded.Error
		if msg == "" {
			msg = "prover returned no artifact"
		}
		return nil, &Error{StatusCode: resp.StatusCode, Message: msg}
	}

	artifact := decoded.Artifact
	if !artifact.Tier.Valid() {
		return nil, &Error{StatusCode: resp.StatusCode, Message: fmt.Sprintf("invalid tier %q in artifact", artifact.Tier)}
	}
	if artifact.ProofHash != "" && !model.ValidProofHash(artifact.ProofHash) {
		return nil, &Error{StatusCode: resp.StatusCode, Message: fmt.Sprintf("invalid proof hash %q in artifact", artifact.ProofHash)}
	}

	return artifact, nil
}
