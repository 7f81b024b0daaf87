package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"solana-gif-portal/internal/config"
	"solana-gif-portal/internal/models"
	"solana-gif-portal/internal/testutil"
	"solana-gif-portal/internal/wallet"
	"solana-gif-portal/pkg/cache"
	"solana-gif-portal/pkg/logger"
	"solana-gif-portal/pkg/metrics"
	"solana-gif-portal/pkg/mutex"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	logger.UseLogger(zap.NewNop())
}

type recordingSink struct {
	mu     sync.Mutex
	events []string
	views  []models.ViewState
	alerts []string
}

func (s *recordingSink) Publish(kind string, payload interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, kind)
	switch v := payload.(type) {
	case models.ViewState:
		s.views = append(s.views, v)
	case map[string]string:
		s.alerts = append(s.alerts, v["message"])
	}
}

func (s *recordingSink) lastView() models.ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.views) == 0 {
		return models.ViewState{}
	}
	return s.views[len(s.views)-1]
}

func (s *recordingSink) alertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

type fixture struct {
	ledger     *testutil.FakeLedger
	programID  solana.PublicKey
	userKey    solana.PrivateKey
	wallet     *wallet.KeygenWallet
	base       *wallet.KeypairSigner
	sessions   *wallet.Manager
	gateway    *ProgramGateway
	reconciler *Reconciler
	portal     *Portal
	events     *recordingSink
	metrics    *metrics.MetricsCollector
}

type fixtureOption func(*fixtureSettings)

type fixtureSettings struct {
	trusted  bool
	approve  wallet.ApproveFunc
	noWallet bool
	cacheTTL time.Duration
}

func withTrustedWallet() fixtureOption {
	return func(s *fixtureSettings) { s.trusted = true }
}

func withoutWallet() fixtureOption {
	return func(s *fixtureSettings) { s.noWallet = true }
}

func withApprove(fn wallet.ApproveFunc) fixtureOption {
	return func(s *fixtureSettings) { s.approve = fn }
}

func withCacheTTL(ttl time.Duration) fixtureOption {
	return func(s *fixtureSettings) { s.cacheTTL = ttl }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	settings := fixtureSettings{approve: wallet.AutoApprove, cacheTTL: time.Minute}
	for _, opt := range opts {
		opt(&settings)
	}

	programID := solana.NewWallet().PublicKey()
	userKey, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	baseKey, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	f := &fixture{
		ledger:    testutil.NewFakeLedger(programID),
		programID: programID,
		userKey:   userKey,
		base:      wallet.NewKeypairSigner(baseKey),
		events:    &recordingSink{},
		metrics:   metrics.NewMetricsCollector(),
	}

	var provider wallet.Provider
	if !settings.noWallet {
		f.wallet = wallet.NewKeygenWallet(userKey, settings.trusted, settings.approve)
		provider = f.wallet
	}
	f.sessions = wallet.NewManager(provider, SinkAlerter{Sink: f.events})

	ledgerCfg := config.LedgerConfig{Endpoint: rpc.DevNet.RPC, Commitment: rpc.CommitmentProcessed}
	f.gateway = NewProgramGateway(NewContextBuilder(ledgerCfg, f.sessions), f.ledger, ProgramIdentity{
		ProgramID:     programID,
		BaseAccount:   f.base,
		FundingSigner: f.base,
	}, f.metrics)

	balances := cache.New[uint64](settings.cacheTTL, 0)
	locks := mutex.New(0)
	t.Cleanup(func() {
		balances.Stop()
		locks.Stop()
	})

	f.reconciler = NewReconciler(f.gateway, balances, locks, 8, f.metrics)
	f.portal = NewPortal(f.sessions, f.gateway, f.reconciler, config.ProgramConfig{
		TipLamports:   1,
		SuggestedGifs: []string{"https://media.giphy.com/media/a.gif"},
	}, f.events)

	return f
}

func (f *fixture) user() solana.PublicKey { return f.userKey.PublicKey() }

func (f *fixture) seedList(t *testing.T, entries ...models.GifEntry) {
	t.Helper()
	require.NoError(t, f.ledger.SetList(f.base.PublicKey(), models.ListAccount{
		TotalGifs: uint64(len(entries)),
		GifList:   entries,
	}))
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	_, err := f.portal.Connect(context.Background())
	require.NoError(t, err)
}
