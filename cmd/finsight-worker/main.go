package main

import (
	"context"
	"os"
	"time"

	"finsight/internal/cli"
	"finsight/internal/events"
	"finsight/internal/log"
	"finsight/internal/sheets"
	gsheet "finsight/internal/sheets/google"
	mem "finsight/internal/sheets/memory"
	"finsight/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(cli.SetupLogger("info"))
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentWorker)

	logger.Info("Starting finsight-worker")

	startCtx, startCancel := context.WithTimeout(context.Background(), 2*cfg.APITimeout)
	backend := cli.MustConnect(startCtx, cfg, logger)
	startCancel()
	defer backend.Close()

	// Google Sheets when configured, otherwise exports stay in memory and
	// only show up in the logs.
	var exporter sheets.TransactionExporter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err.Error())
			os.Exit(1)
		}
		exporter = client
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, exporting to memory")
		exporter = mem.New()
	}

	w := worker.New(backend.Store, exporter, worker.Config{Debounce: cfg.ExportDebounce}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// Startup reconcile covers events missed while the worker was down.
	if res, err := w.Flush(ctx); err != nil {
		log.LogError(ctx, logger, "Startup export failed", err, log.OpExport, nil)
	} else {
		logger.Info("Startup export complete", log.FieldCount, res.Count, "ref", res.Ref)
	}

	stopSchedule, err := w.Schedule(ctx, cfg.ExportSchedule)
	if err != nil {
		logger.Error("Failed to start export schedule", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer stopSchedule()

	if cfg.AMQPURL == "" {
		logger.Info("Change feed disabled - no AMQP_URL provided, relying on the schedule")
		cli.WaitForShutdown(ctx, done)
		return
	}

	feed, err := events.Dial(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer feed.Close()

	if err := w.Run(ctx, feed); err != nil {
		log.LogError(ctx, logger, "Message consumption failed", err, log.OpShutdown, nil)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	last, exports := w.Last()
	logger.Info("Worker shutdown complete", "exports", exports, log.FieldVersion, last.Version)
}
