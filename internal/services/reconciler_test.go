package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"solana-gif-portal/internal/models"
	"solana-gif-portal/pkg/cache"
	"solana-gif-portal/pkg/mutex"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedSource holds every balance lookup until the test releases it, and
// records the order lookups complete in.
type gatedSource struct {
	list     models.ListAccount
	balances map[solana.PublicKey]uint64
	gates    map[solana.PublicKey]chan struct{}
	done     chan solana.PublicKey
	fetched  chan struct{}
	fetchErr error
	balErr   error
}

func newGatedSource(entries []models.GifEntry, balances map[solana.PublicKey]uint64) *gatedSource {
	s := &gatedSource{
		list:     models.ListAccount{TotalGifs: uint64(len(entries)), GifList: entries},
		balances: balances,
		gates:    make(map[solana.PublicKey]chan struct{}),
		done:     make(chan solana.PublicKey, len(entries)),
		fetched:  make(chan struct{}, 1),
	}
	for _, e := range entries {
		s.gates[e.UserAddress] = make(chan struct{})
	}
	return s
}

func (s *gatedSource) FetchListAccount(context.Context) (models.ListAccount, error) {
	select {
	case s.fetched <- struct{}{}:
	default:
	}
	if s.fetchErr != nil {
		return models.ListAccount{}, s.fetchErr
	}
	return s.list, nil
}

func (s *gatedSource) FetchBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	if gate, ok := s.gates[account]; ok {
		select {
		case <-gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	defer func() {
		select {
		case s.done <- account:
		default:
		}
	}()
	if s.balErr != nil {
		return 0, s.balErr
	}
	return s.balances[account], nil
}

func (s *gatedSource) openAll() {
	for _, g := range s.gates {
		close(g)
	}
}

func newTestReconciler(t *testing.T, source ListSource) *Reconciler {
	t.Helper()
	balances := cache.New[uint64](0, 0)
	locks := mutex.New(0)
	t.Cleanup(func() {
		balances.Stop()
		locks.Stop()
	})
	return NewReconciler(source, balances, locks, 8, nil)
}

func authors(n int) []solana.PublicKey {
	keys := make([]solana.PublicKey, n)
	for i := range keys {
		keys[i] = solana.NewWallet().PublicKey()
	}
	return keys
}

func TestReconcilerInitialState(t *testing.T) {
	r := newTestReconciler(t, newGatedSource(nil, nil))
	assert.Equal(t, models.ListLoading, r.State().Status)
}

func TestReconcilerSingleEntry(t *testing.T) {
	x := solana.NewWallet().PublicKey()
	source := newGatedSource(
		[]models.GifEntry{{GifLink: "a.gif", UserAddress: x}},
		map[solana.PublicKey]uint64{x: 5},
	)
	source.openAll()
	r := newTestReconciler(t, source)

	state := r.Refresh(context.Background())

	require.Equal(t, models.ListReady, state.Status)
	assert.Equal(t, []models.DisplayEntry{
		{GifEntry: models.GifEntry{GifLink: "a.gif", UserAddress: x, Votes: 0}, Balance: 5},
	}, state.Entries)
	assert.Equal(t, state, r.State())
}

func TestReconcilerPreservesOrderUnderAnyCompletionOrder(t *testing.T) {
	keys := authors(4)
	entries := make([]models.GifEntry, len(keys))
	balances := make(map[solana.PublicKey]uint64, len(keys))
	for i, k := range keys {
		entries[i] = models.GifEntry{GifLink: fmt.Sprintf("%d.gif", i), UserAddress: k, Votes: uint64(i)}
		balances[k] = uint64(100 + i)
	}

	orders := [][]int{
		{0, 1, 2, 3},
		{3, 2, 1, 0},
		{2, 0, 3, 1},
		{1, 3, 0, 2},
	}

	for _, order := range orders {
		t.Run(fmt.Sprint(order), func(t *testing.T) {
			source := newGatedSource(entries, balances)
			r := newTestReconciler(t, source)

			result := make(chan models.ListState, 1)
			go func() { result <- r.Refresh(context.Background()) }()

			var completed []solana.PublicKey
			for _, i := range order {
				close(source.gates[keys[i]])
				select {
				case k := <-source.done:
					completed = append(completed, k)
				case <-time.After(5 * time.Second):
					t.Fatal("balance lookup did not complete")
				}
			}

			state := <-result
			require.Equal(t, models.ListReady, state.Status)
			require.Len(t, state.Entries, len(entries))
			for i, e := range state.Entries {
				assert.Equal(t, entries[i], e.GifEntry)
				assert.Equal(t, uint64(100+i), e.Balance)
			}
			for i, k := range completed {
				assert.Equal(t, keys[order[i]], k)
			}
		})
	}
}

func TestReconcilerFetchFailureIsUninitialized(t *testing.T) {
	for _, err := range []error{models.ErrAccountNotFound, models.ErrNetwork, errors.New("boom")} {
		source := newGatedSource(nil, nil)
		source.fetchErr = err
		r := newTestReconciler(t, source)

		state := r.Refresh(context.Background())

		assert.Equal(t, models.ListUninitialized, state.Status)
		assert.Empty(t, state.Entries)
		assert.False(t, state.Available())
	}
}

func TestReconcilerEmptyList(t *testing.T) {
	r := newTestReconciler(t, newGatedSource([]models.GifEntry{}, nil))

	state := r.Refresh(context.Background())

	assert.Equal(t, models.ListEmpty, state.Status)
	assert.Empty(t, state.Entries)
	assert.True(t, state.Available())
}

func TestReconcilerBalanceFailureKeepsPreviousState(t *testing.T) {
	x := solana.NewWallet().PublicKey()
	source := newGatedSource(
		[]models.GifEntry{{GifLink: "a.gif", UserAddress: x}},
		map[solana.PublicKey]uint64{x: 5},
	)
	source.openAll()
	r := newTestReconciler(t, source)

	first := r.Refresh(context.Background())
	require.Equal(t, models.ListReady, first.Status)

	source.list.GifList = append(source.list.GifList, models.GifEntry{GifLink: "b.gif", UserAddress: x})
	source.balErr = errors.New("rpc timeout")

	second := r.Refresh(context.Background())
	assert.Equal(t, first, second)
	assert.Equal(t, first, r.State())
}

func TestReconcilerBalanceFailureBeforeAnyListStaysLoading(t *testing.T) {
	x := solana.NewWallet().PublicKey()
	source := newGatedSource([]models.GifEntry{{GifLink: "a.gif", UserAddress: x}}, nil)
	source.openAll()
	source.balErr = errors.New("rpc timeout")
	r := newTestReconciler(t, source)

	done := make(chan models.ListState, 1)
	go func() { done <- r.Refresh(context.Background()) }()

	select {
	case state := <-done:
		assert.Equal(t, models.ListLoading, state.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("refresh hung on a failed balance lookup")
	}
}

func TestReconcilerPublishesToSubscribers(t *testing.T) {
	r := newTestReconciler(t, newGatedSource([]models.GifEntry{}, nil))

	var mu sync.Mutex
	var seen []models.ListStatus
	r.Subscribe(func(s models.ListState) {
		mu.Lock()
		seen = append(seen, s.Status)
		mu.Unlock()
	})

	r.Refresh(context.Background())
	r.Reset()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []models.ListStatus{models.ListEmpty, models.ListLoading}, seen)
}

func TestReconcilerResetDuringRefreshStaysLoading(t *testing.T) {
	x := solana.NewWallet().PublicKey()
	source := newGatedSource(
		[]models.GifEntry{{GifLink: "a.gif", UserAddress: x}},
		map[solana.PublicKey]uint64{x: 5},
	)
	r := newTestReconciler(t, source)

	result := make(chan models.ListState, 1)
	go func() { result <- r.Refresh(context.Background()) }()

	select {
	case <-source.fetched:
	case <-time.After(time.Second):
		t.Fatal("refresh never fetched the list")
	}
	r.Reset()
	source.openAll()

	select {
	case state := <-result:
		assert.Equal(t, models.ListLoading, state.Status)
	case <-time.After(time.Second):
		t.Fatal("refresh did not return")
	}
	assert.Equal(t, models.ListLoading, r.State().Status)

	state := r.Refresh(context.Background())
	assert.Equal(t, models.ListReady, state.Status, "a refresh after the reset publishes normally")
}

func TestReconcilerCollapsesDuplicateAuthors(t *testing.T) {
	f := newFixture(t, withTrustedWallet())
	f.seedList(t,
		models.GifEntry{GifLink: "a.gif", UserAddress: f.user()},
		models.GifEntry{GifLink: "b.gif", UserAddress: f.user()},
		models.GifEntry{GifLink: "c.gif", UserAddress: f.user()},
	)
	f.ledger.SetBalance(f.user(), 42)

	f.connect(t)

	state := f.reconciler.State()
	require.Equal(t, models.ListReady, state.Status)
	for _, e := range state.Entries {
		assert.Equal(t, uint64(42), e.Balance)
	}
	assert.Equal(t, 1, f.ledger.Calls("getBalance"))

	f.reconciler.Refresh(context.Background())
	assert.Equal(t, 1, f.ledger.Calls("getBalance"), "second refresh served from cache")

	f.reconciler.Invalidate(f.user())
	f.reconciler.Refresh(context.Background())
	assert.Equal(t, 2, f.ledger.Calls("getBalance"))
}

func TestReconcilerWithoutCacheFetchesEveryRefresh(t *testing.T) {
	f := newFixture(t, withTrustedWallet(), withCacheTTL(0))
	f.seedList(t, models.GifEntry{GifLink: "a.gif", UserAddress: f.user()})
	f.connect(t)

	f.reconciler.Refresh(context.Background())
	assert.Equal(t, 2, f.ledger.Calls("getBalance"))
}
