package services

import (
	"testing"

	"solana-gif-portal/internal/config"
	"solana-gif-portal/internal/models"
	"solana-gif-portal/internal/wallet"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSigners struct {
	signer wallet.Signer
	err    error
}

func (s staticSigners) Signer() (wallet.Signer, error) { return s.signer, s.err }

func TestContextBuilder(t *testing.T) {
	cfg := config.LedgerConfig{Endpoint: rpc.DevNet.RPC, Commitment: rpc.CommitmentConfirmed}

	t.Run("WithSession", func(t *testing.T) {
		key, err := solana.NewRandomPrivateKey()
		require.NoError(t, err)
		signer := wallet.NewKeypairSigner(key)

		rc, err := NewContextBuilder(cfg, staticSigners{signer: signer}).Build()
		require.NoError(t, err)
		assert.Equal(t, rpc.DevNet.RPC, rc.Endpoint)
		assert.Equal(t, rpc.CommitmentConfirmed, rc.Commitment)
		assert.True(t, rc.Signer.PublicKey().Equals(key.PublicKey()))
	})

	t.Run("WithoutSession", func(t *testing.T) {
		_, err := NewContextBuilder(cfg, staticSigners{err: models.ErrSessionRequired}).Build()
		assert.ErrorIs(t, err, models.ErrSessionRequired)
	})

	t.Run("FreshPerCall", func(t *testing.T) {
		m := wallet.NewManager(nil, nil)
		b := NewContextBuilder(cfg, m)
		_, err := b.Build()
		assert.ErrorIs(t, err, models.ErrSessionRequired)
	})
}
