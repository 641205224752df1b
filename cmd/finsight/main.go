package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finsight/internal/cli"
	"finsight/internal/events"
	apphttp "finsight/internal/http"
	"finsight/internal/insights"
	"finsight/internal/log"
	"finsight/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(cli.SetupLogger("info"))
	logger := cli.SetupLogger(cfg.LogLevel)

	startCtx, startCancel := context.WithTimeout(context.Background(), 2*cfg.APITimeout)
	backend := cli.MustConnect(startCtx, cfg, logger)
	startCancel()
	defer backend.Close()

	assistant, err := insights.New(backend.Client.BaseURL(), backend.Session, logger)
	if err != nil {
		logger.Warn("Insights chat disabled", log.FieldError, err.Error())
	}

	deps := apphttp.Deps{
		Store:      backend.Store,
		Dashboard:  services.NewDashboardService(backend.Store, backend.Client, logger),
		Budgets:    services.NewBudgetService(backend.Store, backend.Client, logger),
		Goals:      services.NewGoalService(backend.Client, logger),
		Categories: backend.Categories,
		Prefs:      backend.State,
		Importer:   backend.Client,
		Ready:      backend.State.Ping,
	}
	if assistant != nil {
		deps.Assistant = assistant
	}

	srv := apphttp.NewServer(":"+cfg.Port, deps, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, logger)

	// Change feed for the export worker, optional.
	var feed *events.Client
	bridgeCtx, stopBridge := context.WithCancel(context.Background())
	defer stopBridge()
	if cfg.AMQPURL != "" {
		feed, err = events.Dial(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to connect to AMQP", log.FieldError, err.Error())
			os.Exit(1)
		}
		bridge := events.NewBridge(feed, 0, logger)
		detach := bridge.Attach(backend.Store)
		defer detach()
		go bridge.Run(bridgeCtx)
		logger.Info("Publishing transaction events", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("Change feed disabled - no AMQP_URL provided")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		stopBridge()
		if feed != nil {
			if err := feed.Close(); err != nil {
				logger.Warn("Failed to close AMQP client", log.FieldError, err.Error())
			}
		}
	})

	logger.Info("Starting finsight server", "port", cfg.Port, "api", cfg.APIBaseURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
