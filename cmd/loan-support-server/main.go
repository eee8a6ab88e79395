package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/iwvelando/loan-support/internal/assistant"
	"github.com/iwvelando/loan-support/internal/calculator"
	"github.com/iwvelando/loan-support/internal/config"
	"github.com/iwvelando/loan-support/internal/ingest"
	"github.com/iwvelando/loan-support/internal/server"
	"github.com/iwvelando/loan-support/internal/simulate"
	"github.com/iwvelando/loan-support/internal/storage"
	"github.com/iwvelando/loan-support/pkg/constants"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 10 * time.Second

// initializeLogger creates a zap logger based on configuration and CLI override
func initializeLogger(loggingConfig config.LoggingConfig, logLevelOverride string) (*zap.Logger, error) {
	level := loggingConfig.Level
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	if level == "" {
		level = "info"
	}

	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	format := loggingConfig.Format
	if format == "" {
		format = "json"
	}

	var zapConfig zap.Config
	switch format {
	case "console":
		zapConfig = zap.NewDevelopmentConfig()
	case "json":
		zapConfig = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)

	if loggingConfig.OutputFile != "" {
		if dir := filepath.Dir(loggingConfig.OutputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %v", dir, err)
			}
		}
		zapConfig.OutputPaths = []string{loggingConfig.OutputFile}
		zapConfig.ErrorOutputPaths = []string{loggingConfig.OutputFile}
	}

	return zapConfig.Build()
}

// buildCache returns the configured result cache and a cleanup function.
func buildCache(ctx context.Context, conf *config.Configuration) (storage.Cache, func(), error) {
	switch conf.Cache.Backend {
	case config.CacheMemory:
		cache := storage.NewMemoryCache(conf.Cache.MaxEntries)
		return cache, func() { _ = cache.Close() }, nil
	case config.CacheRedis:
		cache, err := storage.NewRedisCache(ctx, storage.RedisOptions{
			Address:  conf.Cache.Redis.Address,
			Password: conf.Cache.Redis.Password,
			DB:       conf.Cache.Redis.DB,
			Prefix:   conf.Cache.Redis.Prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return cache, func() { _ = cache.Close() }, nil
	default:
		return storage.NopCache{}, func() {}, nil
	}
}

// buildAudit returns the configured calculation audit log and a cleanup function.
func buildAudit(conf *config.Configuration) (storage.CalculationRepository, func(), error) {
	switch conf.Audit.Backend {
	case config.AuditMemory:
		return storage.NewMemoryRepository(conf.Audit.Capacity), func() {}, nil
	case config.AuditPostgres:
		repo, err := storage.OpenPostgres(conf.Audit.DSN)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	default:
		return storage.NopRepository{}, func() {}, nil
	}
}

// serve runs srv until ctx is done, then shuts it down gracefully. It returns
// the listener error when the server cannot start.
func serve(ctx context.Context, logger *zap.Logger, srv *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server", zap.String("op", "main.serve"))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func main() {
	configLocation := flag.String("config", constants.DefaultServerConfigFile, "path to configuration file")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	addressFlag := flag.String("address", "", "listen address override (e.g. :5000)")
	envFile := flag.String("env-file", ".env", "optional dotenv file loaded before configuration")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load env file %s\", \"error\": \"%v\"}\n", *envFile, err)
		os.Exit(1)
	}

	conf, err := config.LoadConfiguration(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}
	if *addressFlag != "" {
		conf.Address = *addressFlag
	}

	logger, err := initializeLogger(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache, closeCache, err := buildCache(ctx, conf)
	if err != nil {
		logger.Fatal("failed to initialize result cache",
			zap.String("op", "main"),
			zap.String("backend", conf.Cache.Backend),
			zap.Error(err),
		)
	}
	defer closeCache()

	audit, closeAudit, err := buildAudit(conf)
	if err != nil {
		logger.Fatal("failed to initialize audit log",
			zap.String("op", "main"),
			zap.String("backend", conf.Audit.Backend),
			zap.Error(err),
		)
	}
	defer closeAudit()

	rnd := simulate.NewRand(conf.Mock.Seed)

	var limiter *server.RateLimiter
	if conf.RateLimit.Requests > 0 {
		limiter = server.NewRateLimiter(conf.RateLimit.Requests, conf.RateLimit.Window)
		defer limiter.Stop()
	}

	handler := server.NewHandler(server.Options{
		Logger:         logger,
		Version:        version,
		MaxRequestSize: conf.MaxRequestBytes(),
		AllowedOrigins: conf.CORS.AllowedOrigins,
		JWTSecret:      conf.Auth.JWTSecret,
		RateLimiter:    limiter,
		Calculator: calculator.NewService(logger, calculator.Options{
			Cache:    cache,
			CacheTTL: conf.Cache.TTL,
			Audit:    audit,
			Delay:    conf.Mock.EligibilityDelay,
			Rand:     rnd,
		}),
		Ingester:  ingest.NewMockIngester(logger, rnd, conf.Mock.IngestDelay, conf.Mock.DocumentsPath),
		Assistant: assistant.NewMockAssistant(logger, rnd, conf.Mock.AskDelay),
	})

	srv := &http.Server{
		Addr:              conf.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("loan-support server listening",
		zap.String("op", "main"),
		zap.String("address", conf.Address),
		zap.String("version", version),
		zap.String("cache", conf.Cache.Backend),
		zap.String("audit", conf.Audit.Backend),
	)
	if err := serve(ctx, logger, srv); err != nil {
		logger.Fatal("server exited with error",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
	logger.Info("server exited", zap.String("op", "main"))
}
