// Package cli provides common CLI initialization utilities.
// This package consolidates the start-up steps shared by cmd/finsight,
// cmd/finsight-worker and cmd/finsight-report.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finsight/internal/api"
	"finsight/internal/cache"
	"finsight/internal/categories"
	"finsight/internal/config"
	"finsight/internal/localstate"
	"finsight/internal/log"
	"finsight/internal/services"
	"finsight/internal/session"
	"finsight/internal/store"
)

const (
	responseCacheSize = 32
	cacheSweep        = time.Minute
)

// SetupLogger initializes structured logging at the given level and sets it
// as the default logger.
func SetupLogger(level string) *log.Logger {
	logger := log.New(log.Config{Level: log.ParseLevel(level), Component: log.ComponentApp})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg
}

// Backend is the client-side engine every binary runs on: local state, the
// session, the API client and the transaction cache.
type Backend struct {
	State      *localstate.Store
	Session    *session.Store
	Client     *api.Client
	Store      *store.Store
	Categories *categories.Set
	Auth       *services.AuthService

	caches *cache.Manager
}

// Connect opens the local state, wires the engine against cfg.APIBaseURL and
// restores the session, logging in with the configured credentials when
// none is stored. session.ErrNoSession is returned when neither works.
func Connect(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Backend, error) {
	state, err := localstate.Open(cfg.StateDBPath)
	if err != nil {
		return nil, fmt.Errorf("open local state %s: %w", cfg.StateDBPath, err)
	}

	b := &Backend{State: state, caches: cache.NewManager()}
	b.Session = session.New(state, session.WithLogger(logger))

	responses := cache.NewLRUCache[[]byte](responseCacheSize, cfg.ProfileCacheTTL)
	b.caches.Register(responses)
	b.caches.StartCleanup(cacheSweep)

	b.Client = api.New(cfg.APIBaseURL,
		api.WithTimeout(cfg.APITimeout),
		api.WithTokenSource(b.Session),
		api.WithLogger(logger),
		api.WithResponseCache(responses))
	b.Store = store.New(b.Client, store.WithLogger(logger))

	b.Categories = categories.New(state)
	if err := b.Categories.Load(ctx); err != nil {
		b.Close()
		return nil, err
	}
	b.Auth = services.NewAuthService(b.Client, b.Session, b.Store, b.Categories, logger)

	sess, err := b.Auth.Resume(ctx, cfg.Email, cfg.Password)
	if err != nil {
		b.Close()
		return nil, err
	}
	logger.InfoContext(ctx, "Session ready", log.FieldUser, sess.Username, "api", b.Client.BaseURL())
	return b, nil
}

// Close stops cache maintenance and closes the local state.
func (b *Backend) Close() error {
	b.caches.Stop()
	return b.State.Close()
}

// MustConnect is Connect for binaries: failures are logged and the process
// exits.
func MustConnect(ctx context.Context, cfg *config.Config, logger *log.Logger) *Backend {
	b, err := Connect(ctx, cfg, logger)
	if errors.Is(err, session.ErrNoSession) {
		logger.Error("No stored session; set FINSIGHT_EMAIL and FINSIGHT_PASSWORD to log in")
		os.Exit(1)
	}
	if err != nil {
		log.LogError(ctx, logger, "Failed to start", err, log.OpStartup, nil)
		os.Exit(1)
	}
	return b
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that is cancelled on SIGINT or SIGTERM, and a channel
// that is closed once cleanup has returned or timeout has passed.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			defer close(finished)
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
		}()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-finished:
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
