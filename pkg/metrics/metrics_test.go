package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCollector(t *testing.T) {
	collector := NewMetricsCollector()

	t.Run("InitialState", func(t *testing.T) {
		metrics := collector.GetMetrics()
		assert.Equal(t, int64(0), metrics.TotalRequests)
		assert.Equal(t, int64(0), metrics.Refreshes)
		assert.Equal(t, int64(0), metrics.CacheHits)
		assert.Equal(t, float64(0), collector.GetCacheHitRatio())
	})

	t.Run("Requests", func(t *testing.T) {
		collector.RecordRequest()
		assert.Equal(t, int64(1), collector.GetMetrics().ActiveRequests)

		collector.RecordRequestComplete(100*time.Millisecond, true)
		metrics := collector.GetMetrics()
		assert.Equal(t, int64(1), metrics.SuccessfulRequests)
		assert.Equal(t, int64(0), metrics.ActiveRequests)
		assert.Equal(t, 100*time.Millisecond, metrics.AverageResponseTime)
		assert.Equal(t, float64(1), testutil.ToFloat64(collector.prom.requests.WithLabelValues("success")))
	})

	t.Run("RPC", func(t *testing.T) {
		collector.RecordRPCCall("getBalance", 50*time.Millisecond, true)
		collector.RecordRPCCall("getBalance", 100*time.Millisecond, false)

		metrics := collector.GetMetrics()
		assert.Equal(t, int64(2), metrics.RPCCalls)
		assert.Equal(t, int64(1), metrics.RPCFailures)
		assert.Equal(t, 75*time.Millisecond, metrics.AverageRPCTime)
	})

	t.Run("Submissions", func(t *testing.T) {
		collector.RecordSubmission("add_gif", true)
		collector.RecordSubmission("upvote", false)

		metrics := collector.GetMetrics()
		assert.Equal(t, int64(1), metrics.Submissions)
		assert.Equal(t, int64(1), metrics.Rejections)
		assert.Equal(t, float64(1), testutil.ToFloat64(collector.prom.submissions.WithLabelValues("upvote", "failure")))
	})

	t.Run("Reconciler", func(t *testing.T) {
		collector.RecordRefresh("ready")
		collector.RecordRefresh("uninitialized")
		collector.RecordCacheHit()
		collector.RecordCacheHit()
		collector.RecordCacheMiss()
		collector.RecordDuplicateWait()

		metrics := collector.GetMetrics()
		assert.Equal(t, int64(2), metrics.Refreshes)
		assert.Equal(t, int64(1), metrics.Uninitialized)
		assert.Equal(t, int64(1), metrics.DuplicateWaits)
		assert.InDelta(t, 66.67, collector.GetCacheHitRatio(), 0.1)
	})

	t.Run("Registry", func(t *testing.T) {
		families, err := collector.Registry().Gather()
		require.NoError(t, err)
		assert.NotEmpty(t, families)
	})
}
