package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appsettlement "github.com/debtsettle/backend/internal/application/settlement"
	"github.com/debtsettle/backend/internal/domain/settlement"
	"github.com/debtsettle/backend/internal/infrastructure/auth"
	"github.com/debtsettle/backend/internal/infrastructure/cache"
	"github.com/debtsettle/backend/internal/infrastructure/config"
	"github.com/debtsettle/backend/internal/infrastructure/export"
	"github.com/debtsettle/backend/internal/infrastructure/logger"
	"github.com/debtsettle/backend/internal/infrastructure/persistence"
	"github.com/debtsettle/backend/internal/infrastructure/scheduler"
	"github.com/debtsettle/backend/internal/infrastructure/telemetry"
	"github.com/debtsettle/backend/internal/interfaces/http/handler"
	"github.com/debtsettle/backend/internal/interfaces/http/middleware"
	"github.com/debtsettle/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	// Telemetry comes up before the final logger so log records can be
	// bridged to the collector.
	ctx := context.Background()
	telCfg := telemetry.ConfigFrom(cfg.Telemetry, version)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telCfg, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telCfg, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telCfg, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize logger provider", zap.Error(err))
	}

	log, err := logger.New(logCfg, loggerProvider.ZapCore(zapcore.InfoLevel))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting debt settlement backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
		zap.Bool("telemetry", telCfg.Enabled),
	)

	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfigFrom(cfg.Telemetry), log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	store, err := cache.NewFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).Create()
	if err != nil {
		log.Fatal("Failed to initialize cache", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("Error closing cache", zap.Error(err))
		}
	}()

	// Repositories
	customerRepo := persistence.NewGormCustomerRepository(db.DB)
	debtRepo := persistence.NewGormDebtRepository(db.DB)
	instrumentRepo := persistence.NewGormInstrumentRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	auditSink := persistence.NewGormAuditSink(db.DB)
	scope := persistence.NewGormTransactionScope(db.DB)

	generator, err := settlement.NewBankSlipGenerator(cfg.Settlement.BankCodes, cfg.Settlement.Agency, cfg.Settlement.Account)
	if err != nil {
		log.Fatal("Invalid instrument identifier settings", zap.Error(err))
	}

	metrics, err := telemetry.NewSettlementMetrics(meterProvider.Meter("debtsettle/settlement"))
	if err != nil {
		log.Fatal("Failed to create settlement metrics", zap.Error(err))
	}

	// Application services
	rules, err := settlementRules(cfg.Settlement)
	if err != nil {
		log.Fatal("Invalid settlement rules", zap.Error(err))
	}
	negotiationService := appsettlement.NewNegotiationService(scope, generator, auditSink, store, rules, log)
	negotiationService.SetMetrics(metrics)
	cancellationService := appsettlement.NewCancellationService(scope, auditSink, store, log)
	cancellationService.SetMetrics(metrics)
	paymentService := appsettlement.NewPaymentService(scope, store, rules, log)
	queryService := appsettlement.NewQueryService(customerRepo, debtRepo, instrumentRepo, paymentRepo, store, rules, log)
	debtStatusService := appsettlement.NewDebtStatusService(scope, store, cfg.Scheduler.BatchSize, log)
	debtStatusService.SetMetrics(metrics)

	// Background recompute of debt statuses
	var debtScheduler *scheduler.DebtStatusScheduler
	if cfg.Scheduler.Enabled {
		debtScheduler, err = scheduler.NewDebtStatusScheduler(debtStatusService,
			scheduler.DebtStatusSchedulerConfigFrom(cfg.Scheduler), log)
		if err != nil {
			log.Fatal("Failed to create debt status scheduler", zap.Error(err))
		}
		if err := debtScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start debt status scheduler", zap.Error(err))
		}
	}

	exporter := export.NewDebtStatementExporter(queryService, log)
	jwtService := auth.NewJWTService(cfg.JWT)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware order:
	// 1. RequestID - generate/propagate request ID
	// 2. Recovery - catch panics
	// 3. Tracing + SpanEnricher - server span per route
	// 4. Logger - access log inside the span so trace ids are logged
	// 5. Security headers, body limit
	tracingCfg := middleware.DefaultTracingConfig()
	tracingCfg.ServiceName = telCfg.ServiceName
	tracingCfg.Enabled = telCfg.Enabled
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Tracing(tracingCfg), middleware.SpanEnricher())
	engine.Use(logger.GinMiddleware(log, "/api/v1/health"))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	routes := r.RegisterSettlement(router.SettlementHandlers{
		Health: handler.NewHealthHandler(db, version).WithCacheCheck(func(ctx context.Context) error {
			return cache.HealthCheck(ctx, store)
		}),
		Settlement: handler.NewSettlementHandler(queryService, negotiationService, cancellationService, exporter),
		Payment:    handler.NewPaymentHandler(paymentService, queryService),
		RequireAuth: middleware.JWTAuth(middleware.JWTMiddlewareConfig{
			Validator: jwtService,
			Required:  cfg.JWT.Required || cfg.App.Env == "production",
			Logger:    log,
		}),
	})
	r.Setup()
	for _, route := range routes {
		log.Debug("Route registered", zap.String("method", route.Method), zap.String("path", route.Path))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr), zap.Int("routes", len(routes)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg.HTTP))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if debtScheduler != nil {
		if err := debtScheduler.Stop(shutdownCtx); err != nil {
			log.Warn("Debt status scheduler did not stop cleanly", zap.Error(err))
		}
	}
	stats := db.Stats()
	log.Info("Database pool at shutdown",
		zap.Int("open", stats.OpenConnections),
		zap.Int("in_use", stats.InUse),
		zap.Int64("wait_count", stats.WaitCount),
	)

	for name, shutdown := range map[string]func(context.Context) error{
		"tracer": tracerProvider.Shutdown,
		"meter":  meterProvider.Shutdown,
		"logger": loggerProvider.Shutdown,
	} {
		if err := shutdown(shutdownCtx); err != nil {
			log.Warn("Telemetry provider shutdown failed", zap.String("provider", name), zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}

func shutdownTimeout(cfg config.HTTPConfig) time.Duration {
	if cfg.ShutdownTimeout > 0 {
		return cfg.ShutdownTimeout
	}
	return 30 * time.Second
}
