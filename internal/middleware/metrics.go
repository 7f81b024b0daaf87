package middleware

import (
	"time"

	"solana-gif-portal/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// MetricsMiddleware creates a middleware that tracks request metrics.
// Websocket upgrades are long-lived and are left out.
func MetricsMiddleware(metricsCollector *metrics.MetricsCollector) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.IsWebsocket() {
			c.Next()
			return
		}

		startTime := time.Now()
		metricsCollector.RecordRequest()

		c.Next()

		// Rate-limited and client errors count as failures
		success := c.Writer.Status() < 400
		metricsCollector.RecordRequestComplete(time.Since(startTime), success)
	}
}
