package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"finsight/internal/cli"
	"finsight/internal/insights"
	"finsight/internal/log"
	"finsight/internal/report"
	"finsight/internal/services"
)

func main() {
	ask := flag.String("ask", "", "question for the insights chat, answered after the report")
	logout := flag.Bool("logout", false, "sign out and forget the stored session")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(cli.SetupLogger("warn"))
	// The report owns stdout; logs go to stderr.
	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), Output: os.Stderr})
	log.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 3*cfg.APITimeout)
	defer cancel()

	backend := cli.MustConnect(ctx, cfg, logger)
	defer backend.Close()

	if *logout {
		if err := backend.Auth.Logout(ctx); err != nil {
			log.LogError(ctx, logger, "Logout failed", err, log.OpLogout, nil)
			os.Exit(1)
		}
		fmt.Println("Signed out.")
		return
	}

	ov, err := services.NewDashboardService(backend.Store, backend.Client, logger).Overview(ctx)
	if err != nil {
		log.LogError(ctx, logger, "Failed to build overview", err, log.OpLoad, nil)
		os.Exit(1)
	}
	if err := report.Write(os.Stdout, ov); err != nil {
		log.LogError(ctx, logger, "Failed to write report", err, log.OpExport, nil)
		os.Exit(1)
	}

	question := strings.TrimSpace(*ask)
	if question == "" {
		return
	}
	assistant, err := insights.New(backend.Client.BaseURL(), backend.Session, logger)
	if err != nil {
		log.LogError(ctx, logger, "Insights chat unavailable", err, log.OpStartup, nil)
		os.Exit(1)
	}
	ans, err := assistant.Ask(ctx, question, ov)
	if err != nil {
		log.LogError(ctx, logger, "Insights question failed", err, "ask", nil)
		os.Exit(1)
	}
	fmt.Printf("\n> %s\n%s\n", question, ans.Text)
}
