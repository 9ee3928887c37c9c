package prover

import (
	"context"

	"github.com/zecrep/aggregator/internal/domain/model"
	"github.com/zecrep/aggregator/internal/service"
)

// Gateway adapts Client to the processor's ProverGateway interface.
type Gateway struct {
	client *Client
}

var _ service.ProverGateway = (*Gateway)(nil)

// NewGateway wraps a prover client for use by the processor service.
func NewGateway(client *Client) *Gateway {
	return &Gateway{client: client}
}

// Prove requests a range proof and maps the artifact to domain types.
func (g *Gateway) Prove(ctx context.Context, address, viewingKey string) (*service.ProverArtifact, error) {
	artifact, err := g.client.Prove(ctx, ProveRequest{
		Address:    address,
		ViewingKey: viewingKey,
	})
	if err != nil {
		return nil, err
	}

	return &service.ProverArtifact{
		Tier:      artifact.Tier,
		ProofHash: artifact.ProofHash,
		Result: &model.JobResult{
			EncryptedPayload: artifact.EncryptedPayload,
			InEuint64:        artifact.InEuint64,
		},
		NotesScanned: artifact.NotesScanned,
	}, nil
}
