package middleware

import (
	"strconv"
	"time"

	"solana-gif-portal/pkg/logger"
	"solana-gif-portal/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PerformanceMiddleware warns about requests slower than threshold. Program
// writes wait for confirmation, so the threshold should sit above a slot or two.
func PerformanceMiddleware(threshold time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		duration := time.Since(startTime)
		if threshold > 0 && duration > threshold && !c.IsWebsocket() {
			logger.GetLogger().WithContext(c.Request.Context()).Warn("Slow request",
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Duration("duration", duration),
				zap.Duration("threshold", threshold),
			)
		}
	}
}

// ConcurrencyMiddleware reports the active request count
func ConcurrencyMiddleware(metricsCollector *metrics.MetricsCollector) gin.HandlerFunc {
	return func(c *gin.Context) {
		activeRequests := metricsCollector.GetMetrics().ActiveRequests
		c.Header("X-Active-Requests", strconv.FormatInt(activeRequests, 10))

		c.Next()
	}
}
