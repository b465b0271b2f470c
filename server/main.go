package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slotify/api/routes"
	"slotify/internal/clock"
	"slotify/internal/finalize"
	"slotify/internal/ledger"
	"slotify/internal/notify"
	"slotify/internal/shared/config"
	"slotify/internal/shared/database"
	"slotify/pkg/logger"
	"slotify/pkg/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	appLogger := logger.GetDefault()

	// Smart environment loading
	if err := godotenv.Load(); err != nil {
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	db, err := database.InitDB(cfg)
	if err != nil {
		appLogger.Error("failed to connect", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	clk := clock.NewSystem()

	// Hold ledger backend. Memory serves one instance; Redis shares hold
	// state across replicas via atomic Lua scripts.
	var (
		holdLedger ledger.Ledger
		sweeper    *ledger.Sweeper
	)
	switch cfg.Hold.Backend {
	case "redis":
		redisLedger := ledger.NewRedis(db.Redis, clk)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := redisLedger.PreloadScripts(ctx); err != nil {
			appLogger.Error("failed to preload hold ledger scripts", slog.Any("error", err))
			// Scripts load lazily on first use, so keep going.
		}
		cancel()
		holdLedger = redisLedger
		appLogger.Info("hold ledger backend: redis", slog.String("addr", cfg.Redis.Addr))
	default:
		memLedger := ledger.NewMemory(clk)
		sweeper = ledger.NewSweeper(memLedger, cfg.Hold.SweepInterval)
		sweeper.Start()
		defer sweeper.Stop()
		holdLedger = memLedger
		appLogger.Info("hold ledger backend: memory",
			slog.Duration("ttl", cfg.Hold.TTL),
			slog.Duration("sweep_interval", cfg.Hold.SweepInterval),
		)
	}

	// Rate limiter
	var rateLimiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = ratelimit.NewRateLimiter(db.Redis, &ratelimit.Config{
			Enabled:         cfg.RateLimit.Enabled,
			WindowDuration:  cfg.RateLimit.WindowDuration,
			DefaultRequests: cfg.RateLimit.DefaultRequests,
			PublicRequests:  cfg.RateLimit.PublicRequests,
			SessionRequests: cfg.RateLimit.SessionRequests,
			ConfirmRequests: cfg.RateLimit.ConfirmRequests,
			HealthRequests:  cfg.RateLimit.HealthRequests,
			WhitelistedIPs:  cfg.RateLimit.WhitelistedIPs,
		})
		appLogger.Info("Rate limiter initialized",
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("default_requests", cfg.RateLimit.DefaultRequests),
		)
	} else {
		appLogger.Info("Rate limiting disabled")
	}

	// Booking event publisher (optional)
	var publisher finalize.Publisher
	if cfg.Kafka.Enabled {
		producer, err := notify.NewProducer(&notify.ProducerConfig{
			Brokers:   cfg.Kafka.Brokers,
			Topic:     cfg.Kafka.Topic,
			RetryMax:  cfg.Kafka.RetryMax,
			TimeoutMs: cfg.Kafka.TimeoutMs,
		})
		if err != nil {
			appLogger.Error("failed to create Kafka producer", slog.Any("error", err))
			appLogger.Info("Continuing without booking event publishing")
		} else {
			publisher = producer
			defer producer.Close()
			appLogger.Info("Kafka booking events enabled", slog.String("topic", cfg.Kafka.Topic))
		}
	}

	router := setupRouter(cfg, db, holdLedger, clk, publisher, rateLimiter)

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("🚀 Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("version", cfg.APIVersion),
			slog.String("hold_backend", cfg.Hold.Backend),
			slog.Bool("rate_limiting", cfg.RateLimit.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", slog.Any("error", err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	appLogger.Info("Server exited gracefully")
}

func setupRouter(cfg *config.Config, db *database.DB, ldg ledger.Ledger, clk clock.Clock, publisher finalize.Publisher, rateLimiter *ratelimit.RateLimiter) *gin.Engine {
	engine := gin.New()
	appLogger := logger.GetDefault()

	engine.Use(RequestLoggerMiddleware(appLogger), gin.Recovery())

	engine.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-RateLimit-*"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if rateLimiter != nil {
		engine.Use(ratelimit.Middleware(rateLimiter))
	}

	appRouter := routes.NewRouter(cfg, db, ldg, clk, publisher)
	appRouter.SetupRoutes(engine)

	return engine
}

func RequestLoggerMiddleware(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		l.LogHTTPRequest(c, duration)
	}
}
