// Package sync refreshes the dashboard in the background.
//
// Each cycle runs a full refresh of every enabled board. Cycles that start
// while the connection is unconfigured are skipped quietly, and a cycle
// overtaken by a newer fetch is dropped without counting as a failure.
package sync

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jra3/sprintdash/internal/dashboard"
)

// Refresher is the part of the dashboard the worker drives.
type Refresher interface {
	Refresh(ctx context.Context, boardNames []string) (dashboard.Result, error)
}

// Worker periodically refreshes the dashboard cache.
type Worker struct {
	dash     Refresher
	interval time.Duration
	log      *zap.Logger

	mu       sync.RWMutex
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
	lastSync time.Time
	lastErr  error
	runs     int
}

type Config struct {
	// Interval between refreshes (default: 5 minutes)
	Interval time.Duration
	Logger   *zap.Logger
}

func DefaultConfig() Config {
	return Config{Interval: 5 * time.Minute}
}

func NewWorker(dash Refresher, cfg Config) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Worker{
		dash:     dash,
		interval: cfg.Interval,
		log:      cfg.Logger.Named("sync"),
	}
}

// Start begins refreshing in the background. Calling Start on a running
// worker is a no-op.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	go w.run(ctx, stopCh, doneCh)
}

// Stop waits for the current cycle to finish and halts the worker.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running || w.stopCh == nil {
		w.mu.Unlock()
		return
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.stopCh = nil
	w.mu.Unlock()

	close(stopCh)
	<-doneCh
}

func (w *Worker) Running() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// LastSync returns the time of the last successful refresh.
func (w *Worker) LastSync() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastSync
}

// LastError returns the error of the most recent cycle, nil if it succeeded
// or was skipped.
func (w *Worker) LastError() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastErr
}

// Runs counts completed cycles, skipped ones included.
func (w *Worker) Runs() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.runs
}

// SyncNow runs one refresh immediately.
func (w *Worker) SyncNow(ctx context.Context) error {
	start := time.Now()
	res, err := w.dash.Refresh(ctx, nil)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.runs++

	switch {
	case errors.Is(err, dashboard.ErrConfigMissing):
		w.log.Debug("skipping refresh, connection not configured")
		w.lastErr = nil
		return nil
	case errors.Is(err, dashboard.ErrStaleFetch):
		w.log.Info("refresh superseded by a newer fetch")
		w.lastErr = nil
		return nil
	case err != nil:
		w.lastErr = err
		return err
	}

	w.lastErr = nil
	w.lastSync = time.Now()
	w.log.Info("refreshed",
		zap.Int("sprints", len(res.Items)),
		zap.Uint64("generation", res.Generation),
		zap.Duration("took", time.Since(start)))
	return nil
}

func (w *Worker) run(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		close(doneCh)
	}()

	if err := w.SyncNow(ctx); err != nil {
		w.log.Warn("initial refresh failed", zap.Error(err))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if err := w.SyncNow(ctx); err != nil {
				w.log.Warn("refresh failed", zap.Error(err))
			}
		}
	}
}
