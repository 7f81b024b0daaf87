package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solana-gif-portal/internal/config"
	"solana-gif-portal/internal/models"
	"solana-gif-portal/pkg/metrics"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// confirmPollInterval is how often SendTransaction polls signature status
const confirmPollInterval = 500 * time.Millisecond

// SolanaClient wraps the Solana RPC client with configuration
type SolanaClient struct {
	client  *rpc.Client
	config  *config.LedgerConfig
	metrics *metrics.MetricsCollector
}

// NewSolanaClient creates a client bound to the configured endpoint
func NewSolanaClient(cfg *config.LedgerConfig, mc *metrics.MetricsCollector) *SolanaClient {
	return &SolanaClient{
		client:  rpc.New(cfg.Endpoint),
		config:  cfg,
		metrics: mc,
	}
}

// call bounds fn by the configured RPC timeout and records its latency
func (s *SolanaClient) call(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)
	if s.metrics != nil {
		s.metrics.RecordRPCCall(method, time.Since(start), err == nil)
	}
	return err
}

// LatestBlockhash implements LedgerRPC
func (s *SolanaClient) LatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (solana.Hash, error) {
	var hash solana.Hash
	err := s.call(ctx, "getLatestBlockhash", func(ctx context.Context) error {
		out, err := s.client.GetLatestBlockhash(ctx, commitment)
		if err != nil {
			return err
		}
		hash = out.Value.Blockhash
		return nil
	})
	return hash, err
}

// SendTransaction implements LedgerRPC
func (s *SolanaClient) SendTransaction(ctx context.Context, tx *solana.Transaction, commitment rpc.CommitmentType) (solana.Signature, error) {
	var sig solana.Signature
	err := s.call(ctx, "sendTransaction", func(ctx context.Context) error {
		var err error
		sig, err = s.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			PreflightCommitment: commitment,
		})
		if err != nil {
			return err
		}
		return s.awaitConfirmation(ctx, sig, commitment)
	})
	return sig, err
}

// awaitConfirmation polls until sig reaches commitment or fails on chain
func (s *SolanaClient) awaitConfirmation(ctx context.Context, sig solana.Signature, commitment rpc.CommitmentType) error {
	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()

	for {
		out, err := s.client.GetSignatureStatuses(ctx, false, sig)
		if err != nil {
			return fmt.Errorf("get signature status: %w", err)
		}
		if len(out.Value) > 0 && out.Value[0] != nil {
			status := out.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction %s failed: %v", sig, status.Err)
			}
			if reached(status.ConfirmationStatus, commitment) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("awaiting confirmation of %s: %w", sig, ctx.Err())
		case <-ticker.C:
		}
	}
}

func reached(status rpc.ConfirmationStatusType, commitment rpc.CommitmentType) bool {
	rank := map[rpc.ConfirmationStatusType]int{
		rpc.ConfirmationStatusProcessed: 1,
		rpc.ConfirmationStatusConfirmed: 2,
		rpc.ConfirmationStatusFinalized: 3,
	}
	want := map[rpc.CommitmentType]int{
		rpc.CommitmentProcessed: 1,
		rpc.CommitmentConfirmed: 2,
		rpc.CommitmentFinalized: 3,
	}[commitment]
	if want == 0 {
		want = 1
	}
	return rank[status] >= want
}

// AccountData implements LedgerRPC
func (s *SolanaClient) AccountData(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) ([]byte, error) {
	var data []byte
	err := s.call(ctx, "getAccountInfo", func(ctx context.Context) error {
		out, err := s.client.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: commitment,
		})
		if err != nil {
			if errors.Is(err, rpc.ErrNotFound) {
				return models.ErrAccountNotFound
			}
			return err
		}
		data = out.Value.Data.GetBinary()
		return nil
	})
	return data, err
}

// Balance implements LedgerRPC
func (s *SolanaClient) Balance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (uint64, error) {
	var lamports uint64
	err := s.call(ctx, "getBalance", func(ctx context.Context) error {
		out, err := s.client.GetBalance(ctx, account, commitment)
		if err != nil {
			return err
		}
		lamports = out.Value
		return nil
	})
	return lamports, err
}

// Health implements LedgerRPC
func (s *SolanaClient) Health(ctx context.Context) error {
	return s.call(ctx, "getHealth", func(ctx context.Context) error {
		status, err := s.client.GetHealth(ctx)
		if err != nil {
			return err
		}
		if status != "ok" {
			return fmt.Errorf("node reports %q", status)
		}
		return nil
	})
}
