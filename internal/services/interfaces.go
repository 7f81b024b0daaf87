package services

import (
	"context"

	"solana-gif-portal/internal/models"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// LedgerRPC is the subset of the Solana JSON-RPC API the portal uses.
// SolanaClient is the production implementation.
type LedgerRPC interface {
	LatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (solana.Hash, error)
	// SendTransaction submits tx and returns once it reaches commitment.
	SendTransaction(ctx context.Context, tx *solana.Transaction, commitment rpc.CommitmentType) (solana.Signature, error)
	// AccountData returns the raw data of account, or models.ErrAccountNotFound.
	AccountData(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) ([]byte, error)
	Balance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (uint64, error)
	Health(ctx context.Context) error
}

// ListSource is what the reconciler reads from
type ListSource interface {
	FetchListAccount(ctx context.Context) (models.ListAccount, error)
	FetchBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
}

// Gateway is the Remote Program Gateway
type Gateway interface {
	ListSource
	InitializeListAccount(ctx context.Context) (solana.Signature, error)
	AppendEntry(ctx context.Context, link string) (solana.Signature, error)
	UpvoteEntry(ctx context.Context, link string) (solana.Signature, error)
	TransferValue(ctx context.Context, amount uint64, recipient solana.PublicKey) (solana.Signature, error)
	// FundingKey is the account tips are paid from.
	FundingKey() solana.PublicKey
}

// EventSink receives view updates pushed to connected clients
type EventSink interface {
	Publish(kind string, payload interface{})
}
