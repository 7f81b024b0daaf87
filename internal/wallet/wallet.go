// Package wallet tracks the connected signing identity. The wallet itself
// is an external capability reached through Provider; Manager owns the one
// Session per client instance and gates every signed operation on it.
package wallet

import (
	"context"
	"errors"
	"sync"

	"solana-gif-portal/internal/models"
	"solana-gif-portal/pkg/logger"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// ConnectOptions controls how the wallet is asked for authorization
type ConnectOptions struct {
	// OnlyIfTrusted asks the wallet to answer without prompting, succeeding
	// only when a prior authorization exists.
	OnlyIfTrusted bool
}

// Provider is the wallet capability
type Provider interface {
	Connect(ctx context.Context, opts ConnectOptions) (solana.PublicKey, error)
	Sign(ctx context.Context, message []byte) (solana.Signature, error)
}

// DisconnectNotifier is implemented by providers that report wallet-side
// disconnects.
type DisconnectNotifier interface {
	OnDisconnect(fn func())
}

// Signer signs serialized transaction messages for one public key
type Signer interface {
	PublicKey() solana.PublicKey
	Sign(ctx context.Context, message []byte) (solana.Signature, error)
}

// Alerter surfaces a message to the user
type Alerter interface {
	Alert(message string)
}

// Manager is the Session Manager
type Manager struct {
	mu        sync.RWMutex
	provider  Provider
	alerter   Alerter
	address   *solana.PublicKey
	listeners []func(models.Session)
}

// NewManager creates a Manager. A nil provider means no wallet is installed;
// a nil alerter drops alerts.
func NewManager(provider Provider, alerter Alerter) *Manager {
	m := &Manager{provider: provider, alerter: alerter}
	if n, ok := provider.(DisconnectNotifier); ok {
		n.OnDisconnect(m.EndSession)
	}
	return m
}

// Available reports whether a wallet capability is present
func (m *Manager) Available() bool {
	return m.provider != nil
}

// Subscribe registers fn to run after every session change
func (m *Manager) Subscribe(fn func(models.Session)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Session returns the current session
func (m *Manager) Session() models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionLocked()
}

func (m *Manager) sessionLocked() models.Session {
	if m.address == nil {
		return models.Session{}
	}
	return models.Session{Connected: true, Address: m.address.String()}
}

// ProbeExistingSession asks the wallet, without prompting, whether it is
// already authorized. It never alerts; any failure leaves the session absent.
func (m *Manager) ProbeExistingSession(ctx context.Context) models.Session {
	log := logger.GetLogger().WithContext(ctx)

	if m.provider == nil {
		log.Debug("No wallet capability present, skipping probe")
		return m.Session()
	}

	key, err := m.provider.Connect(ctx, ConnectOptions{OnlyIfTrusted: true})
	if err != nil {
		log.Debug("Wallet declined silent connect", zap.Error(err))
		return m.Session()
	}

	log.Info("Restored wallet session", zap.String("address", key.String()))
	return m.setAddress(key)
}

// RequestSession prompts the wallet for authorization
func (m *Manager) RequestSession(ctx context.Context) (models.Session, error) {
	log := logger.GetLogger().WithContext(ctx)

	if m.provider == nil {
		if m.alerter != nil {
			m.alerter.Alert("Wallet not found, install a wallet to continue")
		}
		return m.Session(), models.ErrCapabilityUnavailable
	}

	key, err := m.provider.Connect(ctx, ConnectOptions{})
	if err != nil {
		if errors.Is(err, models.ErrUserRejected) {
			log.Info("Wallet connection declined")
			return m.Session(), err
		}
		log.Warn("Wallet connect failed", zap.Error(err))
		return m.Session(), models.Wrap(models.ErrCapabilityUnavailable, "connect", err)
	}

	log.Info("Connected wallet", zap.String("address", key.String()))
	return m.setAddress(key), nil
}

// EndSession clears the session. It is also invoked on wallet-side disconnects.
func (m *Manager) EndSession() {
	m.mu.Lock()
	if m.address == nil {
		m.mu.Unlock()
		return
	}
	m.address = nil
	s, listeners := m.sessionLocked(), m.listenersLocked()
	m.mu.Unlock()

	logger.GetLogger().Info("Wallet session ended")
	notify(listeners, s)
}

// Signer returns the signing capability of the current session
func (m *Manager) Signer() (Signer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.address == nil {
		return nil, models.ErrSessionRequired
	}
	return &sessionSigner{provider: m.provider, key: *m.address}, nil
}

func (m *Manager) setAddress(key solana.PublicKey) models.Session {
	m.mu.Lock()
	changed := m.address == nil || !m.address.Equals(key)
	m.address = &key
	s, listeners := m.sessionLocked(), m.listenersLocked()
	m.mu.Unlock()

	if changed {
		notify(listeners, s)
	}
	return s
}

func (m *Manager) listenersLocked() []func(models.Session) {
	return append([]func(models.Session){}, m.listeners...)
}

func notify(listeners []func(models.Session), s models.Session) {
	for _, fn := range listeners {
		fn(s)
	}
}

type sessionSigner struct {
	provider Provider
	key      solana.PublicKey
}

func (s *sessionSigner) PublicKey() solana.PublicKey { return s.key }

func (s *sessionSigner) Sign(ctx context.Context, message []byte) (solana.Signature, error) {
	return s.provider.Sign(ctx, message)
}
