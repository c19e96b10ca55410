package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appaccounting "github.com/Smashkat12/crechebooks-sub003/internal/application/accounting"
	"github.com/Smashkat12/crechebooks-sub003/internal/domain/accounting"
	"github.com/Smashkat12/crechebooks-sub003/internal/infrastructure/auth"
	"github.com/Smashkat12/crechebooks-sub003/internal/infrastructure/cache"
	"github.com/Smashkat12/crechebooks-sub003/internal/infrastructure/config"
	"github.com/Smashkat12/crechebooks-sub003/internal/infrastructure/logger"
	"github.com/Smashkat12/crechebooks-sub003/internal/infrastructure/oauthstate"
	"github.com/Smashkat12/crechebooks-sub003/internal/infrastructure/persistence"
	"github.com/Smashkat12/crechebooks-sub003/internal/infrastructure/ratelimit"
	"github.com/Smashkat12/crechebooks-sub003/internal/infrastructure/retry"
	"github.com/Smashkat12/crechebooks-sub003/internal/infrastructure/xero"
	"github.com/Smashkat12/crechebooks-sub003/internal/interfaces/http/handler"
	"github.com/Smashkat12/crechebooks-sub003/internal/interfaces/http/middleware"
	"github.com/Smashkat12/crechebooks-sub003/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting CrecheBooks Accounting Sync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database connection with a zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	connectionRepo := persistence.NewGormConnectionRepository(db.DB)
	mappingRepo := persistence.NewGormMappingRepository(db.DB)
	parentRepo := persistence.NewGormParentRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)

	// OAuth state codec. A short key weakens the handshake, so refuse to start.
	codec, err := oauthstate.NewCodec(cfg.OAuthState.EncryptionKey)
	if err != nil {
		log.Fatal("Failed to initialize OAuth state codec", zap.Error(err))
	}

	// Pending connection store: redis-backed, in-memory fallback outside production.
	pendingFactory := cache.NewPendingStoreFactory(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	},
		cache.WithPendingFactoryLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	pendingStore, err := pendingFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create pending connection store", zap.Error(err))
	}

	// Sliding window store for the per-tenant provider rate limit.
	windowFactory := ratelimit.NewStoreFactory(ratelimit.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	},
		ratelimit.WithFactoryLogger(log),
		ratelimit.WithLocalFallback(cfg.App.Env != "production"),
	)
	windowStore, err := windowFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create rate limit store", zap.Error(err))
	}
	limiter := ratelimit.NewLimiter(windowStore, cfg.RateLimit.Requests, cfg.RateLimit.Window,
		ratelimit.WithLogger(log))

	// Retry executor gates every provider call through the limiter.
	executor := retry.NewExecutor(retry.Config{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
		MaxDelay:   cfg.Retry.MaxDelay,
	}, limiter, retry.WithLogger(log))

	// Provider adapters register by name; the configured one is resolved once
	// here and business logic never sees vendor strings again.
	registry := accounting.NewRegistry()

	xeroAdapter, err := xero.NewAdapter(
		xero.NewConfig(cfg.Xero.ClientID, cfg.Xero.ClientSecret, cfg.Xero.RedirectURI),
		connectionRepo,
		xero.WithLogger(log),
	)
	if err != nil {
		log.Fatal("Failed to initialize Xero adapter", zap.Error(err))
	}
	registry.Register(xeroAdapter)

	provider, err := registry.Get(cfg.Accounting.Provider)
	if err != nil {
		log.Fatal("Unknown accounting provider",
			zap.String("provider", cfg.Accounting.Provider),
			zap.Error(err),
		)
	}
	log.Info("Accounting provider selected", zap.String("provider", provider.Name()))

	// Application services
	syncService := appaccounting.NewSyncService(
		provider,
		connectionRepo,
		mappingRepo,
		parentRepo,
		invoiceRepo,
		paymentRepo,
		codec,
		pendingStore,
		executor,
		appaccounting.WithLogger(log),
		appaccounting.WithStateMaxAge(cfg.OAuthState.MaxAge),
	)
	orchestrator := appaccounting.NewOrchestrator(syncService, log)

	// Identity
	jwtService := auth.NewJWTService(cfg.JWT)

	// HTTP handlers
	accountingHandler := handler.NewAccountingHandler(syncService, orchestrator, log)
	systemHandler := handler.NewSystemHandler()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack, applied in order:
	// request ID, panic recovery, request logging, security headers, CORS.
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// API routes
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// JWT authentication for the API surface. The OAuth callback stays
	// unauthenticated: the encrypted state token carries tenant identity.
	jwtConfig := middleware.DefaultJWTConfig(jwtService)
	jwtConfig.Logger = log
	r.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))

	// Inbound rate limiting shares the provider limiter's sliding window,
	// keyed by tenant.
	if cfg.HTTP.RateLimitEnabled {
		r.Use(middleware.RateLimit(limiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.RateLimit.Requests),
			zap.Duration("window", cfg.RateLimit.Window),
		)
	}

	r.Register(accountingHandler)
	r.Register(systemHandler)
	r.Setup()

	// Simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
