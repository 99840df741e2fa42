package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/asakaida/relcalc/internal/handlers"
	"github.com/asakaida/relcalc/internal/infrastructure/auth"
	infracache "github.com/asakaida/relcalc/internal/infrastructure/cache"
	"github.com/asakaida/relcalc/internal/infrastructure/config"
	"github.com/asakaida/relcalc/internal/infrastructure/database"
	"github.com/asakaida/relcalc/internal/infrastructure/logging"
	"github.com/asakaida/relcalc/internal/infrastructure/metrics"
	"github.com/asakaida/relcalc/internal/infrastructure/middleware"
	"github.com/asakaida/relcalc/internal/infrastructure/scheduler"
	"github.com/asakaida/relcalc/internal/repositories/sqlstore"
	"github.com/asakaida/relcalc/internal/services"
	"github.com/asakaida/relcalc/pkg/cache"
	"github.com/asakaida/relcalc/pkg/cache/memorycache"
)

const (
	defaultEnv      = "dev"
	shutdownTimeout = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Get environment from ENV variable or use default
	env := os.Getenv("ENV")
	if env == "" {
		env = defaultEnv
	}

	// Initialize configuration
	if err := config.InitConfig(env); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	appLogger, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	defer func() { _ = appLogger.Sync() }()
	logger := appLogger.Logger.With(zap.String("environment", cfg.App.Environment))

	// Connect to database
	db, err := database.Open(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	logger.Info("connected to database", zap.String("dialect", db.Dialect()))

	if err := db.RunMigrations(); err != nil {
		return err
	}

	// Metrics
	collector := metrics.NewCollector()
	exporter := metrics.NewPrometheusExporter(collector)
	recorder := metrics.NewRecorder(collector, exporter)

	// Catalog cache
	var catalogCache cache.Cache
	cacheTTL := time.Duration(cfg.Cache.TTLMinutes) * time.Minute
	if cfg.Cache.Enabled {
		mc, err := memorycache.New(&memorycache.Config{
			MaxSizeBytes:  cfg.Cache.MaxMemoryBytes,
			DefaultTTL:    cacheTTL,
			EnableMetrics: cfg.Cache.Metrics,
			OnEvict:       func(string) { recorder.RecordCacheEviction() },
		})
		if err != nil {
			return fmt.Errorf("failed to create cache: %w", err)
		}
		defer mc.Close()
		catalogCache = mc
		collector.SetCache(mc)
	}

	// Initialize repositories and services
	catalogRepo := sqlstore.NewCatalogRepository(db.DB)
	analysisRepo := sqlstore.NewAnalysisRepository(db.DB)
	catalogService := services.NewCatalogService(catalogRepo, catalogCache, cacheTTL, recorder)
	analysisService := services.NewAnalysisService(catalogService, analysisRepo, recorder, logger)

	warmCtx, cancelWarm := context.WithTimeout(context.Background(), 10*time.Second)
	if catalog, err := catalogService.Catalog(warmCtx); err != nil {
		logger.Warn("catalog not loaded, run the seed command", zap.Error(err))
	} else {
		logger.Info("catalog loaded", zap.Int("relationships", len(catalog.Relationships())))
	}
	cancelWarm()

	// Other replicas announce reseeds through LISTEN/NOTIFY
	if db.Dialect() == "postgres" {
		watcher := infracache.NewCatalogWatcher(cfg.Database.ConnectionString(), catalogService, logger)
		if err := watcher.Start(); err != nil {
			logger.Warn("catalog watcher disabled", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	// Rate limiting
	var limiter middleware.Limiter
	var memoryLimiter *middleware.MemoryLimiter
	if cfg.RateLimit.RedisURL != "" {
		redisLimiter, err := middleware.NewRedisLimiter(cfg.RateLimit.RedisURL, cfg.RateLimit.PerMinute, logger)
		if err != nil {
			return err
		}
		defer redisLimiter.Close()
		pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisLimiter.Ping(pingCtx); err != nil {
			logger.Warn("redis unreachable, rate limiting fails open until it recovers", zap.Error(err))
		}
		cancelPing()
		limiter = redisLimiter
		logger.Info("rate limiting with redis")
	} else {
		memoryLimiter = middleware.NewMemoryLimiter(cfg.RateLimit.PerMinute)
		limiter = memoryLimiter
	}

	tokens, err := auth.NewTokenManager(
		cfg.Security.SecretKey,
		cfg.Security.Algorithm,
		time.Duration(cfg.Security.AccessTokenExpireMinutes)*time.Minute,
	)
	if err != nil {
		return fmt.Errorf("failed to create token manager: %w", err)
	}

	// HTTP API
	router, err := handlers.NewRouter(handlers.RouterOptions{
		App:         cfg.App,
		CORSOrigins: cfg.CORS.Origins,
		MaxInFlight: cfg.Server.MaxInFlight(),
		API:         handlers.NewAPIHandler(catalogService, analysisService, db, logger),
		Limiter:     limiter,
		Verifier:    tokens,
		Collector:   collector,
		Exporter:    exporter,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// gRPC health
	healthReporter := handlers.NewHealthReporter(db, logger)
	healthReporter.Refresh(context.Background())
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(metrics.UnaryServerInterceptor(collector, exporter)),
	)
	healthReporter.Register(grpcServer)
	reflection.Register(grpcServer)

	// Prometheus
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", exporter.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Background jobs
	jobs := scheduler.New(logger)
	if memoryLimiter != nil {
		if err := jobs.Every("ratelimit-cleanup", time.Minute, func() {
			if n := memoryLimiter.Cleanup(10 * time.Minute); n > 0 {
				logger.Debug("removed idle rate limiters", zap.Int("count", n))
			}
		}); err != nil {
			return err
		}
	}
	if err := jobs.Every("metrics-refresh", 10*time.Second, exporter.Update); err != nil {
		return err
	}
	if err := jobs.Every("health-refresh", 15*time.Second, func() {
		healthReporter.Refresh(context.Background())
	}); err != nil {
		return err
	}
	jobs.Start()

	if cfg.Server.DevReload {
		watching := config.Watch(func(err error) {
			if err != nil {
				logger.Warn("failed to reread config files", zap.Error(err))
				return
			}
			reloaded, err := config.Load()
			if err != nil {
				logger.Warn("ignoring invalid config change", zap.Error(err))
				return
			}
			if err := appLogger.SetLevel(reloaded.Log.Level); err != nil {
				logger.Warn("ignoring invalid log level", zap.Error(err))
				return
			}
			logger.Info("config reloaded", zap.String("log_level", appLogger.Level().String()))
		})
		logger.Info("dev reload enabled", zap.Bool("watching", watching))
	}

	// Start servers
	serverErrors := make(chan error, 3)

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC port: %w", err)
	}
	go func() {
		logger.Info("gRPC server listening", zap.Int("port", cfg.Server.GRPCPort))
		if err := grpcServer.Serve(grpcListener); err != nil {
			serverErrors <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	go func() {
		logger.Info("metrics server listening", zap.Int("port", cfg.Server.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	go func() {
		logger.Info("HTTP server listening",
			zap.String("addr", httpServer.Addr),
			zap.Int("max_in_flight", cfg.Server.MaxInFlight()),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case runErr = <-serverErrors:
		logger.Error("server failed", zap.Error(runErr))
	case sig := <-sigChan:
		logger.Info("received signal, initiating graceful shutdown", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	healthReporter.Shutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, forcing gRPC stop")
		grpcServer.Stop()
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics shutdown incomplete", zap.Error(err))
	}
	if err := jobs.Stop(shutdownCtx); err != nil {
		logger.Warn("background jobs still running", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return runErr
}
