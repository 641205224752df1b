// Package worker keeps a spreadsheet export in step with the backend. Change
// events only signal that something moved: every export reloads the full
// transaction collection from the backend and replaces the sheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"finsight/internal/events"
	"finsight/internal/log"
	"finsight/internal/sheets"
	"finsight/internal/store"
)

// Loader refreshes the transaction cache. *store.Store satisfies it.
type Loader interface {
	Load(ctx context.Context) (store.Snapshot, error)
}

// Config holds configuration for the export worker
type Config struct {
	// Debounce is how long to wait after an event before exporting, so a
	// burst of changes costs one export (default: 5s)
	Debounce time.Duration

	// RetryDelay is how long to wait before retrying a failed export
	// (default: 30s)
	RetryDelay time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Debounce:   5 * time.Second,
		RetryDelay: 30 * time.Second,
	}
}

// Result describes the most recent successful export.
type Result struct {
	Ref     string
	Count   int
	Version uint64
	At      time.Time
}

type ExportWorker struct {
	loader   Loader
	exporter sheets.TransactionExporter
	config   Config
	logger   *log.Logger

	flushMu sync.Mutex
	last    Result
	exports int

	pending chan struct{}

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func New(loader Loader, exporter sheets.TransactionExporter, config Config, logger *log.Logger) *ExportWorker {
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultConfig().RetryDelay
	}
	if config.Debounce < 0 {
		config.Debounce = 0
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &ExportWorker{
		loader:   loader,
		exporter: exporter,
		config:   config,
		logger:   logger.WithComponent(log.ComponentWorker),
		pending:  make(chan struct{}, 1),
	}
}

// HandleMessage reacts to a change event. While the worker is running the
// export is debounced and the message is acknowledged at once; otherwise the
// export runs inline and its error is returned so the message is requeued.
func (w *ExportWorker) HandleMessage(ctx context.Context, msg *events.Message) error {
	w.logger.DebugContext(ctx, "Processing change event",
		log.FieldOperation, string(msg.Op),
		log.FieldTransactionID, msg.TransactionID,
		log.FieldVersion, msg.Version)

	if w.IsRunning() {
		w.schedule()
		return nil
	}
	_, err := w.Flush(ctx)
	return err
}

func (w *ExportWorker) schedule() {
	select {
	case w.pending <- struct{}{}:
	default:
	}
}

// Flush reloads the cache from the backend and replaces the sheet with the
// result. Concurrent calls run one at a time.
func (w *ExportWorker) Flush(ctx context.Context) (Result, error) {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	snap, err := w.loader.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("reload transactions: %w", err)
	}

	ref, err := w.exporter.ReplaceTransactions(ctx, snap.Transactions)
	if err != nil {
		return Result{}, fmt.Errorf("export transactions: %w", err)
	}

	w.last = Result{Ref: ref, Count: len(snap.Transactions), Version: snap.Version, At: time.Now()}
	w.exports++
	w.logger.InfoContext(ctx, "Exported transactions",
		log.FieldCount, len(snap.Transactions),
		log.FieldVersion, snap.Version,
		"ref", ref)
	return w.last, nil
}

// Last returns the most recent successful export and how many have run.
func (w *ExportWorker) Last() (Result, int) {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()
	return w.last, w.exports
}

// Start begins the debounce loop. Returns an error if already running.
func (w *ExportWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("export worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	go w.runLoop(ctx, stopCh, doneCh)

	w.logger.InfoContext(ctx, "Export worker started",
		"debounce", w.config.Debounce,
		"retry_delay", w.config.RetryDelay)
	return nil
}

// Stop gracefully stops the worker and waits for completion. Concurrent
// callers all wait for the same loop to exit.
func (w *ExportWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	// Only the first caller owns stopCh.
	stopCh, doneCh := w.stopCh, w.doneCh
	w.stopCh = nil
	w.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
	}

	// Wait for completion or context cancellation
	select {
	case <-doneCh:
		w.logger.InfoContext(ctx, "Export worker stopped gracefully")
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Export worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *ExportWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// runLoop coalesces pending signals into one export per debounce window.
func (w *ExportWorker) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)
	defer func() {
		// A loop that exits because ctx ended is no longer running.
		w.mu.Lock()
		if ctx.Err() != nil {
			w.running = false
		}
		w.mu.Unlock()
	}()

	var fire <-chan time.Time
	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-w.pending:
			if fire == nil {
				fire = time.After(w.config.Debounce)
			}
		case <-fire:
			fire = nil
			if _, err := w.Flush(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.LogError(ctx, w.logger, "Export failed, will retry", err, log.OpExport,
					log.LogFields{"retry_in": w.config.RetryDelay.String()})
				fire = time.After(w.config.RetryDelay)
			}
		}
	}
}

// Consumer delivers change events to a handler until ctx ends.
// *events.Client satisfies it.
type Consumer interface {
	Consume(ctx context.Context, handler events.Handler) error
}

// Run starts the worker, feeds it from c and blocks until ctx ends or the
// consumer fails. The worker is stopped before Run returns.
func (w *ExportWorker) Run(ctx context.Context, c Consumer) error {
	if err := w.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.Consume(gctx, w.HandleMessage)
	})
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return w.Stop(stopCtx)
	})

	err := g.Wait()
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

// Schedule forces a full export on the given cron spec, independent of the
// event feed. The returned func stops the schedule and waits for a running
// export to finish.
func (w *ExportWorker) Schedule(ctx context.Context, spec string) (stop func(), err error) {
	c := cron.New()
	_, err = c.AddFunc(spec, func() {
		if _, err := w.Flush(ctx); err != nil {
			log.LogError(ctx, w.logger, "Scheduled export failed", err, log.OpExport,
				log.LogFields{"schedule": spec})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("parse export schedule %q: %w", spec, err)
	}
	c.Start()
	w.logger.InfoContext(ctx, "Export schedule started", "schedule", spec)
	return func() { <-c.Stop().Done() }, nil
}
