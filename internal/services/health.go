package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solana-gif-portal/internal/anchor"
	"solana-gif-portal/internal/models"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// HealthStatus represents the health status of a service
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck represents a health check result
type HealthCheck struct {
	Service      string        `json:"service"`
	Status       HealthStatus  `json:"status"`
	Message      string        `json:"message,omitempty"`
	ResponseTime time.Duration `json:"response_time"`
	Timestamp    time.Time     `json:"timestamp"`
}

// LedgerHealthChecker probes the RPC node and the shared list account
type LedgerHealthChecker struct {
	ledger      LedgerRPC
	baseAccount solana.PublicKey
	commitment  rpc.CommitmentType
	timeout     time.Duration
}

// NewLedgerHealthChecker creates a health checker
func NewLedgerHealthChecker(ledger LedgerRPC, baseAccount solana.PublicKey, commitment rpc.CommitmentType) *LedgerHealthChecker {
	return &LedgerHealthChecker{
		ledger:      ledger,
		baseAccount: baseAccount,
		commitment:  commitment,
		timeout:     5 * time.Second,
	}
}

// CheckRPC asks the node for its health
func (h *LedgerHealthChecker) CheckRPC(ctx context.Context) *HealthCheck {
	start := time.Now()
	check := &HealthCheck{Service: "solana_rpc", Timestamp: start}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.ledger.Health(ctx); err != nil {
		check.Status = HealthStatusUnhealthy
		check.Message = fmt.Sprintf("health check failed: %v", err)
	} else {
		check.Status = HealthStatusHealthy
		check.Message = "node is healthy"
	}

	check.ResponseTime = time.Since(start)
	return check
}

// CheckListAccount verifies the shared list account exists and decodes.
// A missing account is degraded, not unhealthy: the list can still be
// initialized from the client.
func (h *LedgerHealthChecker) CheckListAccount(ctx context.Context) *HealthCheck {
	start := time.Now()
	check := &HealthCheck{Service: "list_account", Timestamp: start}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	data, err := h.ledger.AccountData(ctx, h.baseAccount, h.commitment)
	switch {
	case errors.Is(err, models.ErrAccountNotFound):
		check.Status = HealthStatusDegraded
		check.Message = "list account not initialized"
	case err != nil:
		check.Status = HealthStatusUnhealthy
		check.Message = fmt.Sprintf("account lookup failed: %v", err)
	default:
		acc, err := anchor.DecodeBaseAccount(data)
		if err != nil {
			check.Status = HealthStatusDegraded
			check.Message = fmt.Sprintf("account data not a GIF list: %v", err)
		} else {
			check.Status = HealthStatusHealthy
			check.Message = fmt.Sprintf("%d entries", len(acc.GifList))
		}
	}

	check.ResponseTime = time.Since(start)
	return check
}

// GetDetailedHealth returns every check keyed by name
func (h *LedgerHealthChecker) GetDetailedHealth(ctx context.Context) map[string]*HealthCheck {
	return map[string]*HealthCheck{
		"rpc":          h.CheckRPC(ctx),
		"list_account": h.CheckListAccount(ctx),
	}
}

// Overall folds checks into one status
func Overall(checks map[string]*HealthCheck) HealthStatus {
	status := HealthStatusHealthy
	for _, check := range checks {
		if check.Status == HealthStatusUnhealthy {
			return HealthStatusUnhealthy
		}
		if check.Status == HealthStatusDegraded {
			status = HealthStatusDegraded
		}
	}
	return status
}
