package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"solana-gif-portal/internal/models"
	"solana-gif-portal/pkg/cache"
	"solana-gif-portal/pkg/logger"
	"solana-gif-portal/pkg/metrics"
	"solana-gif-portal/pkg/mutex"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Reconciler turns the raw list account into the UI-ready ListState,
// joining each entry with its author's balance.
type Reconciler struct {
	source      ListSource
	balances    *cache.Cache[uint64]
	locks       *mutex.KeyedMutex
	concurrency int
	metrics     *metrics.MetricsCollector

	// refreshMu serializes refreshes so results publish in call order.
	refreshMu sync.Mutex

	mu        sync.RWMutex
	state     models.ListState
	epoch     uint64
	listeners []func(models.ListState)
}

// NewReconciler creates a Reconciler. balances may be shared with other
// components; concurrency bounds in-flight balance lookups.
func NewReconciler(source ListSource, balances *cache.Cache[uint64], locks *mutex.KeyedMutex, concurrency int, mc *metrics.MetricsCollector) *Reconciler {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Reconciler{
		source:      source,
		balances:    balances,
		locks:       locks,
		concurrency: concurrency,
		metrics:     mc,
		state:       models.LoadingState(),
	}
}

// State returns the last published state
func (r *Reconciler) State() models.ListState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Subscribe registers fn to run after every published state
func (r *Reconciler) Subscribe(fn func(models.ListState)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Reset returns the list to Loading, used when the session ends. A refresh
// already in flight when Reset runs does not publish its result.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	r.epoch++
	epoch := r.epoch
	r.mu.Unlock()
	r.publishAt(epoch, models.LoadingState())
}

// Refresh fetches the list account and publishes the reconciled state.
// A failed fetch publishes Uninitialized. A failed balance lookup leaves the
// previous state in place. Refresh never returns an error; the outcome is
// the returned state.
func (r *Reconciler) Refresh(ctx context.Context) models.ListState {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	log := logger.GetLogger().WithContext(ctx)
	epoch := r.currentEpoch()

	acc, err := r.source.FetchListAccount(ctx)
	if err != nil {
		log.Warn("List account unavailable", zap.Error(err))
		return r.publishAt(epoch, models.UninitializedState())
	}

	if len(acc.GifList) == 0 {
		return r.publishAt(epoch, models.EmptyState())
	}

	entries, err := r.join(ctx, acc.GifList)
	if err != nil {
		log.Error("Balance join failed, keeping previous list",
			zap.Error(err),
			zap.Int("entries", len(acc.GifList)),
		)
		return r.State()
	}

	log.Debug("List reconciled", zap.Int("entries", len(entries)))
	return r.publishAt(epoch, models.ReadyState(entries))
}

// join runs one balance lookup per entry concurrently. Each lookup writes
// only its own slot, so completion order cannot affect the result.
func (r *Reconciler) join(ctx context.Context, list []models.GifEntry) ([]models.DisplayEntry, error) {
	slots := make([]models.DisplayEntry, len(list))
	var filled int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, entry := range list {
		g.Go(func() error {
			balance, err := r.balance(gctx, entry.UserAddress)
			if err != nil {
				return fmt.Errorf("balance of %s: %w", entry.UserAddress, err)
			}
			slots[i] = models.DisplayEntry{GifEntry: entry, Balance: balance}
			atomic.AddInt64(&filled, 1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if n := atomic.LoadInt64(&filled); n != int64(len(list)) {
		return nil, fmt.Errorf("joined %d of %d entries", n, len(list))
	}
	return slots, nil
}

// balance looks up account, collapsing concurrent lookups of one address
// into a single RPC call when caching is enabled.
func (r *Reconciler) balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	key := account.String()

	if v, ok := r.balances.Get(key); ok {
		r.recordCacheHit()
		return v, nil
	}

	unlock, contended := r.locks.Lock(key)
	defer unlock()
	if contended && r.metrics != nil {
		r.metrics.RecordDuplicateWait()
	}

	if v, ok := r.balances.Get(key); ok {
		r.recordCacheHit()
		return v, nil
	}

	if r.metrics != nil {
		r.metrics.RecordCacheMiss()
	}
	v, err := r.source.FetchBalance(ctx, account)
	if err != nil {
		return 0, err
	}
	r.balances.Set(key, v)
	return v, nil
}

// Invalidate drops cached balances for the given addresses, used after a
// transfer changes them.
func (r *Reconciler) Invalidate(accounts ...solana.PublicKey) {
	for _, a := range accounts {
		r.balances.Delete(a.String())
	}
}

func (r *Reconciler) recordCacheHit() {
	if r.metrics != nil {
		r.metrics.RecordCacheHit()
	}
}

func (r *Reconciler) currentEpoch() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.epoch
}

// publishAt stores s unless a Reset happened after epoch was read, in which
// case the current state is returned unchanged.
func (r *Reconciler) publishAt(epoch uint64, s models.ListState) models.ListState {
	r.mu.Lock()
	if epoch != r.epoch {
		current := r.state
		r.mu.Unlock()
		logger.GetLogger().Debug("Dropping refresh superseded by reset", zap.String("status", string(s.Status)))
		return current
	}
	r.state = s
	listeners := append([]func(models.ListState){}, r.listeners...)
	r.mu.Unlock()

	if r.metrics != nil && s.Status != models.ListLoading {
		r.metrics.RecordRefresh(string(s.Status))
	}
	for _, fn := range listeners {
		fn(s)
	}
	return s
}
