package handlers

import (
	"context"
	"net/http"
	"time"

	"solana-gif-portal/internal/services"

	"github.com/gin-gonic/gin"
)

// HealthChecker reports on the ledger dependencies
type HealthChecker interface {
	CheckRPC(ctx context.Context) *services.HealthCheck
	GetDetailedHealth(ctx context.Context) map[string]*services.HealthCheck
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	checker HealthChecker
	version string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker HealthChecker, version string) *HealthHandler {
	return &HealthHandler{checker: checker, version: version}
}

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status    services.HealthStatus            `json:"status"`
	Timestamp time.Time                        `json:"timestamp"`
	Services  map[string]*services.HealthCheck `json:"services"`
	Version   string                           `json:"version,omitempty"`
}

// GetHealth returns the overall health status. Degraded still answers 200.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	checks := h.checker.GetDetailedHealth(c.Request.Context())
	overall := services.Overall(checks)

	statusCode := http.StatusOK
	if overall == services.HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, HealthResponse{
		Status:    overall,
		Timestamp: time.Now(),
		Services:  checks,
		Version:   h.version,
	})
}

// GetLiveness returns a simple liveness check
func (h *HealthHandler) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// GetReadiness reports ready once the RPC node answers
func (h *HealthHandler) GetReadiness(c *gin.Context) {
	check := h.checker.CheckRPC(c.Request.Context())

	if check.Status == services.HealthStatusUnhealthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "not_ready",
			"message":   check.Message,
			"timestamp": time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}
