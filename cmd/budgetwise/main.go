package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budgetwise/internal/amqp"
	"budgetwise/internal/auth"
	"budgetwise/internal/cache"
	"budgetwise/internal/cli"
	"budgetwise/internal/extraction"
	apphttp "budgetwise/internal/http"
	applog "budgetwise/internal/log"
	"budgetwise/internal/services"
)

const (
	shutdownTimeout      = 30 * time.Second
	cacheCleanupInterval = time.Minute
)

func main() {
	cli.LoadEnvFile()

	boot := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	store := cli.InitStore(ctx, logger, cfg)
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Error("Failed to close storage backend", applog.FieldError, err)
		}
	}()

	cacheManager := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	cacheManager.StartCleanup(cacheCleanupInterval)
	defer cacheManager.Stop()

	// Ledger events are optional; without a broker the export worker only
	// picks changes up on its next reconcile.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("Ledger events enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("Ledger events disabled - no AMQP_URL provided")
	}

	opts := services.Options{
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL,
		Manager:   cacheManager,
	}
	ledger := services.NewLedgerService(store.Store, publisher, opts)
	goals := services.NewGoalService(store.Store, ledger, opts)
	loans := services.NewLoanService(store.Store, opts)

	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		logger.Error("Failed to initialize token validator", applog.FieldError, err)
		os.Exit(1)
	}

	deps := apphttp.Deps{
		Ledger:             ledger,
		Goals:              goals,
		Loans:              loans,
		Tokens:             tokens,
		Store:              store.Store,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		MaxUploadBytes:     cfg.ExtractionMaxBytes,
	}
	if cfg.ExtractionEnabled() {
		analyzer, err := extraction.NewClient(extraction.Config{
			APIKey:   cfg.AnthropicAPIKey,
			Model:    cfg.AnthropicModel,
			Timeout:  cfg.ExtractionTimeout,
			MaxBytes: cfg.ExtractionMaxBytes,
		})
		if err != nil {
			logger.Error("Failed to initialize extraction client", applog.FieldError, err)
			os.Exit(1)
		}
		deps.Analyzer = analyzer
		logger.Info("Statement analysis enabled", "model", cfg.AnthropicModel)
	} else {
		logger.Info("Statement analysis disabled - no ANTHROPIC_API_KEY provided")
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, deps)
	if err != nil {
		logger.Error("Failed to build HTTP server", applog.FieldError, err)
		os.Exit(1)
	}

	shutdownCtx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	})

	logger.Info("Starting budgetwise server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		applog.FieldOperation, applog.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
