package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `json:"server"`
	Ledger     LedgerConfig     `json:"ledger"`
	Program    ProgramConfig    `json:"program"`
	Wallet     WalletConfig     `json:"wallet"`
	Cache      CacheConfig      `json:"cache"`
	Reconciler ReconcilerConfig `json:"reconciler"`
	RateLimit  RateLimitConfig  `json:"rate_limit"`
	Logging    LoggingConfig    `json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `json:"port"`
	Host         string        `json:"host"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`

	// SlowRequestThreshold is the duration above which a request is logged as slow
	SlowRequestThreshold time.Duration `json:"slow_request_threshold"`
}

// LedgerConfig holds the network endpoint and consistency level every
// request context is built from.
type LedgerConfig struct {
	Endpoint   string             `json:"endpoint"`
	Commitment rpc.CommitmentType `json:"commitment"`
	Timeout    time.Duration      `json:"timeout"`
}

// ProgramConfig identifies the GIF program and the shared list account.
type ProgramConfig struct {
	ProgramID          string   `json:"program_id"`
	BaseAccountKeypair string   `json:"base_account_keypair"`
	FundingKeypair     string   `json:"funding_keypair"`
	TipLamports        uint64   `json:"tip_lamports"`
	SuggestedGifs      []string `json:"suggested_gifs"`
}

// WalletConfig describes the local signing capability. An empty Keypair
// means no wallet is installed.
type WalletConfig struct {
	Keypair     string `json:"keypair"`
	Trusted     bool   `json:"trusted"`
	AutoApprove bool   `json:"auto_approve"`
}

// CacheConfig holds balance cache configuration
type CacheConfig struct {
	TTL             time.Duration `json:"ttl"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

// ReconcilerConfig bounds the balance fan-out
type ReconcilerConfig struct {
	LookupConcurrency int `json:"lookup_concurrency"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute"`
	WindowSize        time.Duration `json:"window_size"`
	CleanupInterval   time.Duration `json:"cleanup_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string   `json:"level"`
	Environment string   `json:"environment"`
	OutputPaths []string `json:"output_paths"`
}

var defaultSuggestedGifs = []string{
	"https://i.gifer.com/Lha3.gif",
	"https://i.gifer.com/F1XC.gif",
	"https://i.gifer.com/T5Ra.gif",
	"https://i.gifer.com/Fufa.gif",
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "127.0.0.1"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second),

			SlowRequestThreshold: getDurationEnv("SERVER_SLOW_REQUEST_THRESHOLD", 15*time.Second),
		},
		Ledger: LedgerConfig{
			Endpoint:   getEnv("SOLANA_RPC_ENDPOINT", rpc.DevNet.RPC),
			Commitment: rpc.CommitmentType(getEnv("SOLANA_COMMITMENT", string(rpc.CommitmentProcessed))),
			Timeout:    getDurationEnv("SOLANA_RPC_TIMEOUT", 30*time.Second),
		},
		Program: ProgramConfig{
			ProgramID:          getEnv("GIF_PROGRAM_ID", ""),
			BaseAccountKeypair: getEnv("GIF_BASE_ACCOUNT_KEYPAIR", "keypair.json"),
			FundingKeypair:     getEnv("GIF_FUNDING_KEYPAIR", ""),
			TipLamports:        getUint64Env("GIF_TIP_LAMPORTS", 1),
			SuggestedGifs:      getStringSliceEnv("GIF_SUGGESTED", defaultSuggestedGifs),
		},
		Wallet: WalletConfig{
			Keypair:     getEnv("WALLET_KEYPAIR", ""),
			Trusted:     getBoolEnv("WALLET_TRUSTED", false),
			AutoApprove: getBoolEnv("WALLET_AUTO_APPROVE", true),
		},
		Cache: CacheConfig{
			TTL:             getDurationEnv("BALANCE_CACHE_TTL", 5*time.Second),
			CleanupInterval: getDurationEnv("BALANCE_CACHE_CLEANUP_INTERVAL", time.Minute),
		},
		Reconciler: ReconcilerConfig{
			LookupConcurrency: getIntEnv("BALANCE_LOOKUP_CONCURRENCY", 16),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getIntEnv("RATE_LIMIT_REQUESTS_PER_MINUTE", 30),
			WindowSize:        getDurationEnv("RATE_LIMIT_WINDOW_SIZE", time.Minute),
			CleanupInterval:   getDurationEnv("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Environment: getEnv("LOG_ENVIRONMENT", "development"),
			OutputPaths: getStringSliceEnv("LOG_OUTPUT_PATHS", []string{"stdout"}),
		},
	}
}

// Validate checks the values that cannot be defaulted
func (c *Config) Validate() error {
	if _, err := solana.PublicKeyFromBase58(c.Program.ProgramID); err != nil {
		return fmt.Errorf("invalid GIF_PROGRAM_ID %q: %w", c.Program.ProgramID, err)
	}

	switch c.Ledger.Commitment {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	default:
		return fmt.Errorf("unsupported commitment %q", c.Ledger.Commitment)
	}

	if c.Program.BaseAccountKeypair == "" {
		return fmt.Errorf("GIF_BASE_ACCOUNT_KEYPAIR is required")
	}

	if c.Reconciler.LookupConcurrency <= 0 {
		return fmt.Errorf("BALANCE_LOOKUP_CONCURRENCY must be positive")
	}

	return nil
}

// FundingKeypairPath returns the keypair that pays tips. The source funds
// tips from the base account, so that is the default.
func (p ProgramConfig) FundingKeypairPath() string {
	if p.FundingKeypair != "" {
		return p.FundingKeypair
	}
	return p.BaseAccountKeypair
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getUint64Env(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if uint64Value, err := strconv.ParseUint(value, 10, 64); err == nil {
			return uint64Value
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
