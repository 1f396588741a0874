package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetwise/internal/amqp"
	"budgetwise/internal/cli"
	applog "budgetwise/internal/log"
	"budgetwise/internal/sheets"
	gsheet "budgetwise/internal/sheets/google"
	sheetsmem "budgetwise/internal/sheets/memory"
	"budgetwise/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	boot := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("Starting budget-worker", applog.FieldOperation, applog.OpStartup)

	if cfg.DataBackend == "memory" {
		logger.Warn("Memory backend is process-local; the worker will not see the server's ledgers")
	}

	ctx := context.Background()
	store := cli.InitStore(ctx, logger, cfg)
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Error("Failed to close storage backend", applog.FieldError, err)
		}
	}()

	var exporter sheets.LedgerExporter
	if cfg.ExportEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID: cfg.GoogleSpreadsheetID,
			SheetName:     cfg.GoogleSheetName,
		}, logger.WithComponent(applog.ComponentSheets).Logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		exporter = sheetsmem.New()
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, exporting in memory")
	}

	exportWorker := worker.NewExportWorker(exporter, store.Store, cfg.ExportBatchSize, cfg.ExportInterval, logger)

	runCtx, done := cli.GracefulShutdown(logger, shutdownTimeout, nil)
	g, gctx := errgroup.WithContext(runCtx)

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		g.Go(func() error {
			return amqpClient.ConsumeLedgerEvents(gctx, exportWorker.HandleEvent)
		})
	} else {
		logger.Info("Skipping ledger event consumption - no AMQP_URL provided")
	}

	g.Go(func() error {
		return exportWorker.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Worker shutdown complete")
}
