package services

import (
	"context"
	"errors"
	"fmt"

	"solana-gif-portal/internal/anchor"
	"solana-gif-portal/internal/models"
	"solana-gif-portal/internal/wallet"
	"solana-gif-portal/pkg/logger"
	"solana-gif-portal/pkg/metrics"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// ProgramIdentity is the fixed on-chain identity the gateway talks to.
// It is loaded once at start-up and injected.
type ProgramIdentity struct {
	ProgramID solana.PublicKey
	// BaseAccount holds the shared list. Its key co-signs initialization.
	BaseAccount wallet.Signer
	// FundingKey pays tips. FundingSigner is set when the client holds its key.
	FundingKey    solana.PublicKey
	FundingSigner wallet.Signer
}

// ProgramGateway is the Remote Program Gateway backed by the GIF program
type ProgramGateway struct {
	contexts *ContextBuilder
	ledger   LedgerRPC
	identity ProgramIdentity
	metrics  *metrics.MetricsCollector
}

// NewProgramGateway creates a ProgramGateway
func NewProgramGateway(contexts *ContextBuilder, ledger LedgerRPC, identity ProgramIdentity, mc *metrics.MetricsCollector) *ProgramGateway {
	if identity.FundingKey.IsZero() && identity.FundingSigner != nil {
		identity.FundingKey = identity.FundingSigner.PublicKey()
	}
	return &ProgramGateway{
		contexts: contexts,
		ledger:   ledger,
		identity: identity,
		metrics:  mc,
	}
}

// BaseAccount returns the shared list account address
func (g *ProgramGateway) BaseAccount() solana.PublicKey {
	return g.identity.BaseAccount.PublicKey()
}

// FundingKey returns the account TransferValue debits
func (g *ProgramGateway) FundingKey() solana.PublicKey {
	return g.identity.FundingKey
}

// InitializeListAccount creates the shared list. A second call is expected
// to be rejected by the program.
func (g *ProgramGateway) InitializeListAccount(ctx context.Context) (solana.Signature, error) {
	return g.submit(ctx, anchor.InstructionStartStuffOff, func(rc RequestContext) (solana.Instruction, []wallet.Signer, error) {
		ix, err := anchor.StartStuffOff(g.identity.ProgramID, g.BaseAccount(), rc.Signer.PublicKey())
		return ix, []wallet.Signer{g.identity.BaseAccount}, err
	})
}

// AppendEntry submits link on behalf of the session's address
func (g *ProgramGateway) AppendEntry(ctx context.Context, link string) (solana.Signature, error) {
	if link == "" {
		return solana.Signature{}, fmt.Errorf("append entry: empty link: %w", models.ErrInvalidInput)
	}
	return g.submit(ctx, anchor.InstructionAddGif, func(rc RequestContext) (solana.Instruction, []wallet.Signer, error) {
		ix, err := anchor.AddGif(g.identity.ProgramID, g.BaseAccount(), rc.Signer.PublicKey(), link)
		return ix, nil, err
	})
}

// UpvoteEntry upvotes the entry whose link equals link. With duplicate
// links the program decides which entry is hit.
func (g *ProgramGateway) UpvoteEntry(ctx context.Context, link string) (solana.Signature, error) {
	if link == "" {
		return solana.Signature{}, fmt.Errorf("upvote entry: empty link: %w", models.ErrInvalidInput)
	}
	return g.submit(ctx, anchor.InstructionUpvote, func(RequestContext) (solana.Instruction, []wallet.Signer, error) {
		ix, err := anchor.Upvote(g.identity.ProgramID, g.BaseAccount(), link)
		return ix, nil, err
	})
}

// TransferValue sends amount lamports from the funding identity to recipient
func (g *ProgramGateway) TransferValue(ctx context.Context, amount uint64, recipient solana.PublicKey) (solana.Signature, error) {
	return g.submit(ctx, anchor.InstructionSendSol, func(RequestContext) (solana.Instruction, []wallet.Signer, error) {
		var cosigners []wallet.Signer
		if g.identity.FundingSigner != nil {
			cosigners = append(cosigners, g.identity.FundingSigner)
		}
		ix, err := anchor.SendSol(g.identity.ProgramID, g.identity.FundingKey, recipient, amount, len(cosigners) > 0)
		return ix, cosigners, err
	})
}

// FetchListAccount reads and decodes the shared list
func (g *ProgramGateway) FetchListAccount(ctx context.Context) (models.ListAccount, error) {
	rc, err := g.contexts.Build()
	if err != nil {
		return models.ListAccount{}, err
	}

	data, err := g.ledger.AccountData(ctx, g.BaseAccount(), rc.Commitment)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			return models.ListAccount{}, err
		}
		return models.ListAccount{}, models.Wrap(models.ErrNetwork, "fetch list account", err)
	}

	acc, err := anchor.DecodeBaseAccount(data)
	if err != nil {
		// Foreign or truncated data means the list was never created here.
		return models.ListAccount{}, models.Wrap(models.ErrAccountNotFound, "decode list account", err)
	}
	return acc, nil
}

// FetchBalance returns the lamport balance of account
func (g *ProgramGateway) FetchBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	rc, err := g.contexts.Build()
	if err != nil {
		return 0, err
	}

	lamports, err := g.ledger.Balance(ctx, account, rc.Commitment)
	if err != nil {
		return 0, models.Wrap(models.ErrNetwork, "fetch balance", err)
	}
	return lamports, nil
}

type instructionBuilder func(rc RequestContext) (solana.Instruction, []wallet.Signer, error)

// submit builds, signs and sends a single-instruction transaction paid by
// the session signer.
func (g *ProgramGateway) submit(ctx context.Context, name string, build instructionBuilder) (solana.Signature, error) {
	rc, err := g.contexts.Build()
	if err != nil {
		return solana.Signature{}, err
	}

	log := logger.GetLogger().WithContext(ctx).WithFields(map[string]interface{}{
		"instruction": name,
		"payer":       rc.Signer.PublicKey().String(),
	})

	sig, err := g.send(ctx, rc, build)
	if g.metrics != nil {
		g.metrics.RecordSubmission(name, err == nil)
	}
	if err != nil {
		log.Error("Program submission failed", zap.Error(err))
		return solana.Signature{}, models.Wrap(models.ErrSubmissionFailed, name, err)
	}

	log.Info("Program submission confirmed", zap.String("signature", sig.String()))
	return sig, nil
}

func (g *ProgramGateway) send(ctx context.Context, rc RequestContext, build instructionBuilder) (solana.Signature, error) {
	ix, cosigners, err := build(rc)
	if err != nil {
		return solana.Signature{}, err
	}

	blockhash, err := g.ledger.LatestBlockhash(ctx, rc.Commitment)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction([]solana.Instruction{ix}, blockhash, solana.TransactionPayer(rc.Signer.PublicKey()))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}

	if err := signTransaction(ctx, tx, append([]wallet.Signer{rc.Signer}, cosigners...)); err != nil {
		return solana.Signature{}, err
	}

	return g.ledger.SendTransaction(ctx, tx, rc.Commitment)
}

// signTransaction fills every required signature slot of tx from signers
func signTransaction(ctx context.Context, tx *solana.Transaction, signers []wallet.Signer) error {
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("serialize message: %w", err)
	}

	required := int(tx.Message.Header.NumRequiredSignatures)
	tx.Signatures = make([]solana.Signature, required)

	for i, key := range tx.Message.AccountKeys[:required] {
		var signer wallet.Signer
		for _, s := range signers {
			if s.PublicKey().Equals(key) {
				signer = s
				break
			}
		}
		if signer == nil {
			return fmt.Errorf("no signer for required key %s", key)
		}

		sig, err := signer.Sign(ctx, message)
		if err != nil {
			return fmt.Errorf("sign with %s: %w", key, err)
		}
		tx.Signatures[i] = sig
	}

	return nil
}
