// Package persist periodically copies the in-memory ledger to a durable
// store and restores it at boot.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/catclicker/catclicker/internal/ledger"
	"github.com/catclicker/catclicker/internal/metrics"
)

const (
	// DefaultInterval is how often a changed ledger is flushed.
	DefaultInterval = 10 * time.Second

	// DefaultMaxRetries is the max attempts for a single flush, counting the
	// first one.
	DefaultMaxRetries = 3
)

// Store persists full ledger snapshots.
type Store interface {
	LoadState(ctx context.Context) (ledger.State, error)
	SaveState(ctx context.Context, st ledger.State) error
}

// Source is the ledger being persisted. ledger.Memory implements it.
type Source interface {
	Version() uint64
	Snapshot() ledger.State
	Restore(st ledger.State) error
}

// Worker flushes ledger snapshots to a Store.
type Worker struct {
	store      Store
	source     Source
	logger     *slog.Logger
	metrics    metrics.Recorder
	interval   time.Duration
	maxRetries int
	retryDelay time.Duration

	flushMu      sync.Mutex
	savedVersion uint64

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewWorker creates a snapshot worker.
func NewWorker(store Store, source Source, logger *slog.Logger, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:      store,
		source:     source,
		logger:     logger.With("component", "persist.worker"),
		metrics:    recorder,
		interval:   DefaultInterval,
		maxRetries: DefaultMaxRetries,
		retryDelay: time.Second,
	}
}

// SetInterval overrides the flush interval.
func (w *Worker) SetInterval(interval time.Duration) {
	if interval > 0 {
		w.interval = interval
	}
}

// Restore loads the persisted state into the ledger. It must run before
// the server starts accepting clicks.
func (w *Worker) Restore(ctx context.Context) error {
	st, err := w.store.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if err := w.source.Restore(st); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}

	w.flushMu.Lock()
	w.savedVersion = w.source.Version()
	w.flushMu.Unlock()

	w.logger.Info("ledger restored",
		"countries", len(st.Countries),
		"sessions", len(st.Sessions),
	)
	return nil
}

// Run flushes on every tick until ctx is cancelled or Shutdown is called.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	w.logger.Info("snapshot worker started", "interval", w.interval.String())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("snapshot worker stopping")
			return nil
		case <-ticker.C:
			if err := w.flushWithRetry(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("snapshot flush failed", "error", err)
			}
		}
	}
}

// Flush writes the current snapshot if the ledger changed since the last
// successful flush.
func (w *Worker) Flush(ctx context.Context) error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	version := w.source.Version()
	if version == w.savedVersion {
		w.metrics.IncSnapshotFlush("skipped")
		return nil
	}

	start := time.Now()
	st := w.source.Snapshot()
	if err := w.store.SaveState(ctx, st); err != nil {
		w.metrics.IncSnapshotFlush("error")
		return err
	}
	// Writes that raced with Snapshot bump the version again, so the next
	// tick picks them up.
	w.savedVersion = version
	w.metrics.IncSnapshotFlush("ok")

	w.logger.Debug("snapshot flushed",
		"countries", len(st.Countries),
		"sessions", len(st.Sessions),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Shutdown stops the loop and performs a final flush.
// It implements server.ShutdownFunc for integration with graceful shutdown.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	w.stopped = true
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			w.logger.Warn("snapshot worker shutdown timed out")
			return ctx.Err()
		}
	}

	if err := w.Flush(ctx); err != nil {
		return fmt.Errorf("final snapshot: %w", err)
	}
	w.logger.Info("snapshot worker shutdown complete")
	return nil
}

func (w *Worker) flushWithRetry(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = w.retryDelay
	bo.MaxInterval = 4 * w.retryDelay
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(w.maxRetries-1)), ctx)
	notify := func(err error, delay time.Duration) {
		w.logger.Warn("snapshot flush failed, retrying",
			"backoff_seconds", delay.Seconds(),
			"error", err,
		)
	}
	return backoff.RetryNotify(func() error { return w.Flush(ctx) }, policy, notify)
}
