package services

import (
	"fmt"

	"solana-gif-portal/internal/config"
	"solana-gif-portal/internal/wallet"

	"github.com/gagliardetto/solana-go/rpc"
)

// RequestContext binds one outbound call to an endpoint, a commitment level
// and the signer of the current session. It is built per call and never
// reused.
type RequestContext struct {
	Endpoint   string
	Commitment rpc.CommitmentType
	Signer     wallet.Signer
}

// SignerSource yields the signing capability of the current session
type SignerSource interface {
	Signer() (wallet.Signer, error)
}

// ContextBuilder constructs RequestContexts from fixed ledger configuration
// and the ambient session signer.
type ContextBuilder struct {
	endpoint   string
	commitment rpc.CommitmentType
	signers    SignerSource
}

// NewContextBuilder creates a ContextBuilder
func NewContextBuilder(cfg config.LedgerConfig, signers SignerSource) *ContextBuilder {
	return &ContextBuilder{
		endpoint:   cfg.Endpoint,
		commitment: cfg.Commitment,
		signers:    signers,
	}
}

// Build returns a fresh RequestContext. It fails when there is no session.
func (b *ContextBuilder) Build() (RequestContext, error) {
	signer, err := b.signers.Signer()
	if err != nil {
		return RequestContext{}, fmt.Errorf("build request context: %w", err)
	}
	return RequestContext{
		Endpoint:   b.endpoint,
		Commitment: b.commitment,
		Signer:     signer,
	}, nil
}
