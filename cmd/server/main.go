package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solana-gif-portal/internal/config"
	"solana-gif-portal/internal/handlers"
	"solana-gif-portal/internal/middleware"
	"solana-gif-portal/internal/services"
	"solana-gif-portal/internal/wallet"
	"solana-gif-portal/pkg/cache"
	"solana-gif-portal/pkg/logger"
	"solana-gif-portal/pkg/metrics"
	"solana-gif-portal/pkg/mutex"
	"solana-gif-portal/pkg/ratelimiter"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const version = "1.0.0"

// Server represents the main application server
type Server struct {
	httpServer  *http.Server
	config      *config.Config
	ledger      services.LedgerRPC
	metrics     *metrics.MetricsCollector
	balances    *cache.Cache[uint64]
	locks       *mutex.KeyedMutex
	sessions    *wallet.Manager
	portal      *services.Portal
	events      *handlers.EventHub
	rateLimiter *ratelimiter.RateLimiter
	router      *handlers.Router
	stop        chan struct{}
}

func main() {
	cfg := config.LoadConfig()

	loggerConfig := &logger.Config{
		Level:       cfg.Logging.Level,
		Environment: cfg.Logging.Environment,
		OutputPaths: cfg.Logging.OutputPaths,
	}

	if err := logger.Initialize(loggerConfig); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log := logger.GetLogger()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}

	log.Info("Starting Solana GIF portal",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("rpc_endpoint", cfg.Ledger.Endpoint),
		zap.String("commitment", string(cfg.Ledger.Commitment)),
		zap.String("program_id", cfg.Program.ProgramID),
		zap.Bool("wallet_installed", cfg.Wallet.Keypair != ""),
		zap.Duration("balance_cache_ttl", cfg.Cache.TTL),
		zap.Int("rate_limit_rpm", cfg.RateLimit.RequestsPerMinute),
		zap.String("log_level", cfg.Logging.Level),
	)

	server, err := NewServer(cfg)
	if err != nil {
		log.Fatal("Failed to create server", zap.Error(err))
	}

	if err := server.Start(); err != nil {
		log.Fatal("Server failed to start", zap.Error(err))
	}
}

// NewServer loads the program identity and wallet from disk and connects to
// the configured RPC node.
func NewServer(cfg *config.Config) (*Server, error) {
	log := logger.GetLogger()

	log.Info("Initializing server components")

	identity, err := loadProgramIdentity(cfg.Program)
	if err != nil {
		return nil, err
	}

	var provider wallet.Provider
	if cfg.Wallet.Keypair != "" {
		approve := wallet.AutoApprove
		if !cfg.Wallet.AutoApprove {
			approve = func(solana.PublicKey) bool { return false }
		}
		w, err := wallet.LoadKeygenWallet(cfg.Wallet.Keypair, cfg.Wallet.Trusted, approve)
		if err != nil {
			return nil, err
		}
		provider = w
	} else {
		log.Warn("No wallet keypair configured, sessions cannot be opened")
	}

	mc := metrics.NewMetricsCollector()

	log.Debug("Initializing Solana RPC client")
	ledger := services.NewSolanaClient(&cfg.Ledger, mc)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ledger.Health(ctx); err != nil {
		log.Warn("Solana RPC health check failed", zap.Error(err))
	} else {
		log.Info("Solana RPC connection healthy")
	}

	return newServer(cfg, ledger, identity, provider, mc), nil
}

// newServer wires every component around ledger and provider
func newServer(cfg *config.Config, ledger services.LedgerRPC, identity services.ProgramIdentity, provider wallet.Provider, mc *metrics.MetricsCollector) *Server {
	s := &Server{
		config:  cfg,
		ledger:  ledger,
		metrics: mc,
		stop:    make(chan struct{}),
	}

	s.events = handlers.NewEventHub(func() handlers.Event {
		return handlers.NewEvent(services.EventView, s.portal.View())
	})
	s.sessions = wallet.NewManager(provider, services.SinkAlerter{Sink: s.events})

	contexts := services.NewContextBuilder(cfg.Ledger, s.sessions)
	gateway := services.NewProgramGateway(contexts, ledger, identity, mc)

	s.balances = cache.New[uint64](cfg.Cache.TTL, cfg.Cache.CleanupInterval)
	s.locks = mutex.New(cfg.Cache.CleanupInterval)
	reconciler := services.NewReconciler(gateway, s.balances, s.locks, cfg.Reconciler.LookupConcurrency, mc)

	s.portal = services.NewPortal(s.sessions, gateway, reconciler, cfg.Program, s.events)

	s.rateLimiter = ratelimiter.New(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.WindowSize)

	checker := services.NewLedgerHealthChecker(ledger, gateway.BaseAccount(), cfg.Ledger.Commitment)
	s.router = handlers.NewRouter(
		s.portal,
		handlers.NewHealthHandler(checker, version),
		s.events,
		s.rateLimiter.Middleware(ratelimiter.ClientIP),
	)

	logger.GetLogger().Info("Server components initialized",
		zap.String("base_account", gateway.BaseAccount().String()),
		zap.Bool("wallet_available", s.sessions.Available()),
	)

	return s
}

func loadProgramIdentity(cfg config.ProgramConfig) (services.ProgramIdentity, error) {
	programID, err := solana.PublicKeyFromBase58(cfg.ProgramID)
	if err != nil {
		return services.ProgramIdentity{}, fmt.Errorf("parse program id: %w", err)
	}

	base, err := wallet.LoadKeypairSigner(cfg.BaseAccountKeypair)
	if err != nil {
		return services.ProgramIdentity{}, err
	}

	funding := base
	if path := cfg.FundingKeypairPath(); path != cfg.BaseAccountKeypair {
		if funding, err = wallet.LoadKeypairSigner(path); err != nil {
			return services.ProgramIdentity{}, err
		}
	}

	return services.ProgramIdentity{
		ProgramID:     programID,
		BaseAccount:   base,
		FundingSigner: funding,
	}, nil
}

// Engine builds the Gin engine with the full middleware stack and routes
func (s *Server) Engine() *gin.Engine {
	engine := gin.New()
	s.setupMiddleware(engine)
	s.setupRoutes(engine)
	return engine
}

// Start starts the HTTP server with graceful shutdown handling
func (s *Server) Start() error {
	log := logger.GetLogger()

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", s.config.Server.Host, s.config.Server.Port),
		Handler:           s.Engine(),
		ReadTimeout:       s.config.Server.ReadTimeout,
		WriteTimeout:      s.config.Server.WriteTimeout,
		IdleTimeout:       s.config.Server.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	log.Info("HTTP server configured",
		zap.String("address", s.httpServer.Addr),
		zap.Duration("read_timeout", s.config.Server.ReadTimeout),
		zap.Duration("write_timeout", s.config.Server.WriteTimeout),
	)

	s.startCleanupRoutines()

	// Restore an already authorized session without prompting.
	view := s.portal.Probe(context.Background())
	log.Info("Initial view", zap.String("screen", string(view.Screen)))

	go func() {
		log.Info("Starting HTTP server", zap.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	return s.waitForShutdown()
}

// setupMiddleware configures the middleware stack
func (s *Server) setupMiddleware(engine *gin.Engine) {
	engine.Use(logger.RecoveryMiddleware())
	engine.Use(logger.LoggingMiddleware())
	engine.Use(middleware.MetricsMiddleware(s.metrics))
	engine.Use(middleware.PerformanceMiddleware(s.config.Server.SlowRequestThreshold))
	engine.Use(middleware.ConcurrencyMiddleware(s.metrics))
	engine.Use(s.corsMiddleware())
}

// setupRoutes configures all application routes
func (s *Server) setupRoutes(engine *gin.Engine) {
	s.router.SetupHealthRoutes(engine)
	s.router.SetupRoutes(engine)

	engine.GET("/metrics", s.metricsHandler)
	engine.GET("/metrics/prometheus", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))
	engine.GET("/status", s.statusHandler)
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, X-Correlation-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) metricsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":         "solana-gif-portal",
		"version":         version,
		"uptime":          s.metrics.GetUptime().String(),
		"cache_hit_ratio": s.metrics.GetCacheHitRatio(),
		"cached_balances": s.balances.Size(),
		"ws_clients":      s.events.Clients(),
		"metrics":         s.metrics.GetMetrics(),
	})
}

func (s *Server) statusHandler(c *gin.Context) {
	rpcHealthy := s.ledger.Health(c.Request.Context()) == nil
	view := s.portal.View()

	c.JSON(http.StatusOK, gin.H{
		"service":     "solana-gif-portal",
		"status":      "running",
		"rpc_healthy": rpcHealthy,
		"screen":      view.Screen,
		"connected":   view.Session.Connected,
		"uptime":      s.metrics.GetUptime().String(),
		"version":     version,
	})
}

// startCleanupRoutines starts background cleanup tasks
func (s *Server) startCleanupRoutines() {
	interval := s.config.RateLimit.CleanupInterval
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.rateLimiter.Cleanup()
			case <-s.stop:
				return
			}
		}
	}()

	logger.GetLogger().Debug("Rate limiter cleanup started", zap.Duration("interval", interval))
}

// waitForShutdown waits for interrupt signal and performs graceful shutdown
func (s *Server) waitForShutdown() error {
	log := logger.GetLogger()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Info("Received shutdown signal", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	s.cleanup()

	log.Info("Server gracefully stopped")
	return nil
}

// cleanup stops background workers
func (s *Server) cleanup() {
	close(s.stop)
	s.balances.Stop()
	s.locks.Stop()

	if err := logger.GetLogger().Sync(); err != nil {
		fmt.Printf("Error syncing logger: %v\n", err)
	}
}
