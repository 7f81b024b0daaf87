package wallet

import (
	"context"
	"fmt"
	"sync"

	"solana-gif-portal/internal/models"

	"github.com/gagliardetto/solana-go"
)

// ApproveFunc decides an interactive connect prompt
type ApproveFunc func(key solana.PublicKey) bool

// AutoApprove accepts every prompt
func AutoApprove(solana.PublicKey) bool { return true }

// KeygenWallet is a Provider backed by a solana-keygen key file. It stands
// in for a browser wallet: it remembers whether it has been authorized and
// refuses to sign until it is.
type KeygenWallet struct {
	mu           sync.Mutex
	key          solana.PrivateKey
	trusted      bool
	approve      ApproveFunc
	onDisconnect []func()
}

// NewKeygenWallet wraps key. trusted marks a prior authorization.
func NewKeygenWallet(key solana.PrivateKey, trusted bool, approve ApproveFunc) *KeygenWallet {
	if approve == nil {
		approve = AutoApprove
	}
	return &KeygenWallet{key: key, trusted: trusted, approve: approve}
}

// LoadKeygenWallet reads a solana-keygen JSON key file
func LoadKeygenWallet(path string, trusted bool, approve ApproveFunc) (*KeygenWallet, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load wallet keypair: %w", err)
	}
	return NewKeygenWallet(key, trusted, approve), nil
}

// Connect implements Provider
func (w *KeygenWallet) Connect(_ context.Context, opts ConnectOptions) (solana.PublicKey, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	pub := w.key.PublicKey()
	if opts.OnlyIfTrusted {
		if !w.trusted {
			return solana.PublicKey{}, models.ErrUserRejected
		}
		return pub, nil
	}

	if !w.approve(pub) {
		return solana.PublicKey{}, models.ErrUserRejected
	}
	w.trusted = true
	return pub, nil
}

// Sign implements Provider
func (w *KeygenWallet) Sign(_ context.Context, message []byte) (solana.Signature, error) {
	w.mu.Lock()
	trusted := w.trusted
	w.mu.Unlock()

	if !trusted {
		return solana.Signature{}, models.ErrUserRejected
	}
	return w.key.Sign(message)
}

// OnDisconnect implements DisconnectNotifier
func (w *KeygenWallet) OnDisconnect(fn func()) {
	w.mu.Lock()
	w.onDisconnect = append(w.onDisconnect, fn)
	w.mu.Unlock()
}

// Disconnect revokes the authorization and notifies listeners
func (w *KeygenWallet) Disconnect() {
	w.mu.Lock()
	w.trusted = false
	handlers := append([]func(){}, w.onDisconnect...)
	w.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
}

// KeypairSigner signs with a locally held key. The client uses it for the
// list account co-signature and for the funding identity.
type KeypairSigner struct {
	key solana.PrivateKey
}

// NewKeypairSigner wraps key
func NewKeypairSigner(key solana.PrivateKey) *KeypairSigner {
	return &KeypairSigner{key: key}
}

// LoadKeypairSigner reads a solana-keygen JSON key file
func LoadKeypairSigner(path string) (*KeypairSigner, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", path, err)
	}
	return NewKeypairSigner(key), nil
}

// PublicKey implements Signer
func (s *KeypairSigner) PublicKey() solana.PublicKey { return s.key.PublicKey() }

// Sign implements Signer
func (s *KeypairSigner) Sign(_ context.Context, message []byte) (solana.Signature, error) {
	return s.key.Sign(message)
}
