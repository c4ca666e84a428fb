package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/voltx/rec-hub/internal/adapter/cache"
	"github.com/voltx/rec-hub/internal/adapter/grpc/server"
	"github.com/voltx/rec-hub/internal/adapter/http/fiber/handlers"
	"github.com/voltx/rec-hub/internal/adapter/http/fiber/middleware"
	"github.com/voltx/rec-hub/internal/adapter/queue"
	"github.com/voltx/rec-hub/internal/adapter/storage/memory"
	"github.com/voltx/rec-hub/internal/adapter/storage/postgres"
	"github.com/voltx/rec-hub/internal/adapter/vault"
	wsAdapter "github.com/voltx/rec-hub/internal/adapter/websocket"
	"github.com/voltx/rec-hub/internal/domain"
	"github.com/voltx/rec-hub/internal/observability/telemetry"
	"github.com/voltx/rec-hub/internal/ports"
	"github.com/voltx/rec-hub/internal/service/auth"
	"github.com/voltx/rec-hub/internal/service/health"
	"github.com/voltx/rec-hub/internal/service/ledger"
	"github.com/voltx/rec-hub/internal/service/relay"
	"github.com/voltx/rec-hub/pkg/config"
)

// outboxStore is a ledger store that also exposes its outbox to the relay.
type outboxStore interface {
	ports.LedgerStore
	ports.OutboxStore
}

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	// 2. Initialize Logger
	logger, err := telemetry.NewLogger(cfg.Logging, cfg.App)
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting REC hub",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("broker", cfg.Events.Broker),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Pull secrets from Vault
	if cfg.Vault.Enabled {
		sm, err := vault.NewSecretManager(cfg.Vault, logger)
		if err != nil {
			logger.Fatal("Failed to create Vault client", zap.Error(err))
		}
		if err := sm.Apply(ctx, cfg); err != nil {
			logger.Fatal("Failed to read secrets from Vault", zap.Error(err))
		}
	}
	if cfg.JWT.Secret == "" {
		logger.Fatal("jwt.secret is required")
	}

	// 4. Initialize OpenTelemetry (Distributed Tracing)
	if cfg.OpenTelemetry.Enabled {
		tp, err := telemetry.InitTracer(ctx, cfg.OpenTelemetry, cfg.App)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Error("Error shutting down tracer provider", zap.Error(err))
			}
		}()
	}

	healthService := health.NewService(cfg.App.Version, logger)

	// 5. Initialize Ledger Store
	store := openStore(cfg, logger, healthService)
	defer store.Close()

	// 6. Initialize Cache (Redis, or in-process when no URL is configured)
	var appCache ports.Cache
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		appCache = redisCache
		healthService.RegisterChecker("cache", healthService.PingCheck("cache", func(context.Context) error {
			return redisCache.Ping()
		}))
	} else {
		logger.Warn("redis.url not set, using in-process cache; sessions and idempotency keys are not shared")
		appCache = cache.NewLocalCache(time.Minute, logger)
	}
	defer appCache.Close()

	// 7. Initialize Message Queue behind a circuit breaker
	mq, err := queue.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to message broker", zap.Error(err))
	}
	if mq != nil {
		breakerQueue := queue.NewBreakerQueue(mq, cfg.CircuitBreaker, logger)
		defer breakerQueue.Close()

		healthService.RegisterOptional("broker", healthService.PingCheck("broker", func(context.Context) error {
			return breakerQueue.Ping()
		}))
		healthService.RegisterOptional("broker_breaker", health.StatusCheck(func() (health.Status, string) {
			state := breakerQueue.State()
			if state == gobreaker.StateClosed {
				return health.StatusHealthy, state.String()
			}
			return health.StatusDegraded, state.String()
		}))

		r := relay.NewRelay(store, breakerQueue, relay.Config{
			Interval:    cfg.Events.RelayInterval,
			BatchSize:   cfg.Events.BatchSize,
			MaxAttempts: cfg.Events.MaxAttempts,
		}, logger)
		go r.Run(ctx)
	}

	// 8. Initialize Services (Business Logic Layer)
	wsHub := wsAdapter.NewHub(logger)
	go wsHub.Run(ctx)

	var owner domain.Address
	if cfg.Token.Owner != "" {
		owner, _ = domain.ParseAddress(cfg.Token.Owner)
	}
	ledgerService := ledger.NewService(ledger.Config{
		Name:         cfg.Token.Name,
		Symbol:       cfg.Token.Symbol,
		InitialOwner: owner,
	}, store, logger, ledger.WithListeners(telemetry.NewMetricsListener(), wsHub))
	if err := ledgerService.Restore(ctx); err != nil {
		logger.Fatal("Failed to restore ledger state", zap.Error(err))
	}
	healthService.RegisterOptional("ledger", health.StatusCheck(func() (health.Status, string) {
		if ledgerService.Paused(context.Background()) {
			return health.StatusDegraded, "ledger is paused"
		}
		return health.StatusHealthy, "accepting writes"
	}))

	authService := auth.NewService(authConfig(cfg), appCache, logger)

	// 9. Initialize Fiber HTTP Server
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		ServerHeader:          cfg.App.Name,
		DisableStartupMessage: true,
		BodyLimit:             cfg.HTTP.BodyLimit,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		IdleTimeout:           cfg.HTTP.IdleTimeout,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	// Global Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
	}))
	if cfg.CORS.Enabled {
		app.Use(middleware.NewCORS(cfg.CORS))
	}
	if cfg.Prometheus.Enabled {
		app.Use(middleware.Metrics())
	}
	if cfg.CircuitBreaker.Enabled {
		app.Use(middleware.CircuitBreaker(cfg.CircuitBreaker, logger))
	}

	// Health Check Endpoints
	health.NewFiberHandler(healthService).RegisterRoutes(app)

	// Metrics endpoint for Prometheus
	if cfg.Prometheus.Enabled {
		metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
		app.Get(cfg.Prometheus.Path, func(c *fiber.Ctx) error {
			metricsHandler(c.Context())
			return nil
		})
	}

	// API v1 Routes
	handlers.RegisterRoutes(app, handlers.RouterConfig{
		Ledger:       ledgerService,
		Auth:         authService,
		Cache:        appCache,
		RateLimiting: cfg.RateLimiting,
		Idempotency:  cfg.Idempotency,
		Log:          logger,
	})

	// Ledger event stream
	app.Use("/ws", wsAdapter.Upgrade())
	app.Get("/ws/events", wsHub.Handler())

	// 10. Initialize gRPC Server
	var grpcServer *server.GRPCServer
	if cfg.GRPC.Enabled {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
		if err != nil {
			logger.Fatal("Failed to listen for gRPC", zap.Error(err))
		}
		grpcServer = server.NewGRPCServer(ledgerService, authService, cfg.GRPC, logger)
		go func() {
			logger.Info("Starting gRPC Server", zap.Int("port", cfg.GRPC.Port))
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC Server failed", zap.Error(err))
				stop()
			}
		}()
	}

	// 11. Start HTTP Server
	go func() {
		logger.Info("Starting HTTP Server", zap.Int("port", cfg.HTTP.Port))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			logger.Error("HTTP Server failed", zap.Error(err))
			stop()
		}
	}()

	// 12. Graceful Shutdown
	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("HTTP server forced to shutdown", zap.Error(err))
	}
	if grpcServer != nil {
		grpcServer.Stop()
	}

	logger.Info("Server exited gracefully")
}

// openStore connects the configured ledger store and registers its health
// check. Postgres runs migrations first when auto_migrate is set.
func openStore(cfg *config.Config, logger *zap.Logger, hs *health.Service) outboxStore {
	outbox := cfg.Events.Broker != "none" && cfg.Events.Broker != ""

	switch cfg.Storage.Driver {
	case "postgres":
		db, err := postgres.NewConnection(cfg.Database, logger)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		if cfg.Database.AutoMigrate {
			if err := postgres.RunMigrations(db); err != nil {
				logger.Fatal("Failed to run migrations", zap.Error(err))
			}
		}
		store := postgres.NewLedgerStore(db, logger, postgres.WithOutbox(outbox))
		hs.RegisterChecker("database", hs.PingCheck("database", store.Ping))
		return store
	default:
		logger.Warn("Using in-memory ledger store; state is lost on restart")
		store := memory.NewStore(logger)
		if outbox {
			store.EnableOutbox()
		}
		return store
	}
}

func authConfig(cfg *config.Config) auth.Config {
	keys := make([]auth.APIKey, 0, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		account, _ := domain.ParseAddress(k.Account)
		keys = append(keys, auth.APIKey{ID: k.ID, Account: account, Hash: k.Hash})
	}
	return auth.Config{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		AccessTTL:  cfg.JWT.AccessTokenDuration,
		RefreshTTL: cfg.JWT.RefreshTokenDuration,
		NonceTTL:   cfg.Auth.NonceTTL,
		APIKeys:    keys,
	}
}
