package background

import (
	"context"
	"log/slog"
	"time"
)

// StaleReaper is anything that can sweep stale lockout state
type StaleReaper interface {
	ReapStale(ctx context.Context) (int64, error)
}

// Reaper periodically removes lockout rows whose window has long expired.
// It is owned by main: launched once at startup and stopped on shutdown.
// Missing a sweep costs nothing but disk; the read path handles expiry on
// its own.
type Reaper struct {
	lockouts StaleReaper
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewReaper creates a new Reaper
func NewReaper(lockouts StaleReaper, logger *slog.Logger, interval time.Duration) *Reaper {
	return &Reaper{
		lockouts: lockouts,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called or ctx is cancelled
func (r *Reaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Run immediately on startup
	r.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			r.runSweep(ctx)
		case <-r.stopCh:
			r.logger.Info("lockout reaper stopped")
			return
		case <-ctx.Done():
			r.logger.Info("lockout reaper context cancelled")
			return
		}
	}
}

// runSweep performs one bounded sweep
func (r *Reaper) runSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rowsDeleted, err := r.lockouts.ReapStale(sweepCtx)
	if err != nil {
		r.logger.Error("failed to reap stale lockout records", slog.Any("error", err))
		return
	}

	if rowsDeleted > 0 {
		r.logger.Info("stale lockout records reaped", slog.Int64("rows_deleted", rowsDeleted))
	}
}

// Stop signals the reaper to stop
func (r *Reaper) Stop() {
	close(r.stopCh)
}
