package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a snapshot of the portal's counters
type Metrics struct {
	// HTTP request metrics
	TotalRequests       int64         `json:"total_requests"`
	SuccessfulRequests  int64         `json:"successful_requests"`
	FailedRequests      int64         `json:"failed_requests"`
	ActiveRequests      int64         `json:"active_requests"`
	AverageResponseTime time.Duration `json:"average_response_time"`

	// Ledger metrics
	RPCCalls       int64         `json:"rpc_calls"`
	RPCFailures    int64         `json:"rpc_failures"`
	AverageRPCTime time.Duration `json:"average_rpc_time"`
	Submissions    int64         `json:"submissions"`
	Rejections     int64         `json:"rejections"`

	// Reconciler metrics
	Refreshes      int64 `json:"refreshes"`
	Uninitialized  int64 `json:"uninitialized"`
	CacheHits      int64 `json:"cache_hits"`
	CacheMisses    int64 `json:"cache_misses"`
	DuplicateWaits int64 `json:"duplicate_waits"`
}

// MetricsCollector provides thread-safe metrics collection. Every counter is
// mirrored into a private Prometheus registry.
type MetricsCollector struct {
	totalRequests, successfulRequests, failedRequests, activeRequests int64
	rpcCalls, rpcFailures, submissions, rejections                    int64
	refreshes, uninitialized, cacheHits, cacheMisses, duplicateWaits  int64

	mu                sync.Mutex
	totalResponseTime time.Duration
	totalRPCTime      time.Duration

	startTime time.Time
	registry  *prometheus.Registry
	prom      promCollectors
}

type promCollectors struct {
	requests    *prometheus.CounterVec
	rpcDuration *prometheus.HistogramVec
	submissions *prometheus.CounterVec
	refreshes   *prometheus.CounterVec
	cache       *prometheus.CounterVec
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	mc := &MetricsCollector{
		startTime: time.Now(),
		registry:  prometheus.NewRegistry(),
		prom: promCollectors{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gif_portal",
				Name:      "http_requests_total",
				Help:      "HTTP requests by outcome.",
			}, []string{"outcome"}),
			rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "gif_portal",
				Name:      "rpc_duration_seconds",
				Help:      "Ledger RPC latency by method and outcome.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method", "outcome"}),
			submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gif_portal",
				Name:      "submissions_total",
				Help:      "Program submissions by instruction and outcome.",
			}, []string{"instruction", "outcome"}),
			refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gif_portal",
				Name:      "list_refreshes_total",
				Help:      "List refreshes by resulting status.",
			}, []string{"status"}),
			cache: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gif_portal",
				Name:      "balance_lookups_total",
				Help:      "Balance lookups by source.",
			}, []string{"source"}),
		},
	}

	mc.registry.MustRegister(
		mc.prom.requests,
		mc.prom.rpcDuration,
		mc.prom.submissions,
		mc.prom.refreshes,
		mc.prom.cache,
	)

	return mc
}

// Registry returns the Prometheus registry backing this collector
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	return mc.registry
}

// RecordRequest records a new request
func (mc *MetricsCollector) RecordRequest() {
	atomic.AddInt64(&mc.totalRequests, 1)
	atomic.AddInt64(&mc.activeRequests, 1)
}

// RecordRequestComplete records request completion
func (mc *MetricsCollector) RecordRequestComplete(duration time.Duration, success bool) {
	atomic.AddInt64(&mc.activeRequests, -1)

	if success {
		atomic.AddInt64(&mc.successfulRequests, 1)
		mc.prom.requests.WithLabelValues("success").Inc()
	} else {
		atomic.AddInt64(&mc.failedRequests, 1)
		mc.prom.requests.WithLabelValues("failure").Inc()
	}

	mc.mu.Lock()
	mc.totalResponseTime += duration
	mc.mu.Unlock()
}

// RecordRPCCall records one ledger RPC call
func (mc *MetricsCollector) RecordRPCCall(method string, duration time.Duration, success bool) {
	atomic.AddInt64(&mc.rpcCalls, 1)
	if !success {
		atomic.AddInt64(&mc.rpcFailures, 1)
	}
	mc.prom.rpcDuration.WithLabelValues(method, outcome(success)).Observe(duration.Seconds())

	mc.mu.Lock()
	mc.totalRPCTime += duration
	mc.mu.Unlock()
}

// RecordSubmission records the outcome of a program instruction
func (mc *MetricsCollector) RecordSubmission(instruction string, success bool) {
	if success {
		atomic.AddInt64(&mc.submissions, 1)
	} else {
		atomic.AddInt64(&mc.rejections, 1)
	}
	mc.prom.submissions.WithLabelValues(instruction, outcome(success)).Inc()
}

// RecordRefresh records a completed list refresh and its resulting status
func (mc *MetricsCollector) RecordRefresh(status string) {
	atomic.AddInt64(&mc.refreshes, 1)
	if status == "uninitialized" {
		atomic.AddInt64(&mc.uninitialized, 1)
	}
	mc.prom.refreshes.WithLabelValues(status).Inc()
}

// RecordCacheHit records a balance served from cache
func (mc *MetricsCollector) RecordCacheHit() {
	atomic.AddInt64(&mc.cacheHits, 1)
	mc.prom.cache.WithLabelValues("cache").Inc()
}

// RecordCacheMiss records a balance fetched from the ledger
func (mc *MetricsCollector) RecordCacheMiss() {
	atomic.AddInt64(&mc.cacheMisses, 1)
	mc.prom.cache.WithLabelValues("rpc").Inc()
}

// RecordDuplicateWait records a lookup that waited on another lookup for
// the same address.
func (mc *MetricsCollector) RecordDuplicateWait() {
	atomic.AddInt64(&mc.duplicateWaits, 1)
}

// GetMetrics returns a copy of current metrics
func (mc *MetricsCollector) GetMetrics() *Metrics {
	m := &Metrics{
		TotalRequests:      atomic.LoadInt64(&mc.totalRequests),
		SuccessfulRequests: atomic.LoadInt64(&mc.successfulRequests),
		FailedRequests:     atomic.LoadInt64(&mc.failedRequests),
		ActiveRequests:     atomic.LoadInt64(&mc.activeRequests),
		RPCCalls:           atomic.LoadInt64(&mc.rpcCalls),
		RPCFailures:        atomic.LoadInt64(&mc.rpcFailures),
		Submissions:        atomic.LoadInt64(&mc.submissions),
		Rejections:         atomic.LoadInt64(&mc.rejections),
		Refreshes:          atomic.LoadInt64(&mc.refreshes),
		Uninitialized:      atomic.LoadInt64(&mc.uninitialized),
		CacheHits:          atomic.LoadInt64(&mc.cacheHits),
		CacheMisses:        atomic.LoadInt64(&mc.cacheMisses),
		DuplicateWaits:     atomic.LoadInt64(&mc.duplicateWaits),
	}

	mc.mu.Lock()
	defer mc.mu.Unlock()

	if completed := m.SuccessfulRequests + m.FailedRequests; completed > 0 {
		m.AverageResponseTime = mc.totalResponseTime / time.Duration(completed)
	}
	if m.RPCCalls > 0 {
		m.AverageRPCTime = mc.totalRPCTime / time.Duration(m.RPCCalls)
	}

	return m
}

// GetCacheHitRatio returns the balance cache hit ratio as a percentage
func (mc *MetricsCollector) GetCacheHitRatio() float64 {
	hits := atomic.LoadInt64(&mc.cacheHits)
	total := hits + atomic.LoadInt64(&mc.cacheMisses)
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// GetUptime returns how long the collector has been running
func (mc *MetricsCollector) GetUptime() time.Duration {
	return time.Since(mc.startTime)
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
