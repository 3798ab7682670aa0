package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/1broseidon/perch/internal/fault"
	"github.com/1broseidon/perch/internal/platform"
)

// DefaultReconcileInterval is how often the published surface is checked.
const DefaultReconcileInterval = 5 * time.Second

// SurfaceChecker reports whether a window still exists.
type SurfaceChecker interface {
	Alive(id platform.WindowID) (bool, error)
}

// HandleSource yields the published surface handle, zero when not ready.
type HandleSource interface {
	Load() platform.WindowID
}

// ReconcilerConfig holds configuration for the reconciler.
type ReconcilerConfig struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Reconciler periodically checks that the published surface still exists.
// A window destroyed behind our back (xkill, a crashing window manager)
// leaves a stale handle that every other loop would keep failing on; the
// reconciler reports the loss once through onLost.
type Reconciler struct {
	interval time.Duration
	handle   HandleSource
	checker  SurfaceChecker
	onLost   func()
	logger   *slog.Logger
	lost     bool
}

// NewReconciler creates a new reconciler with the given configuration.
func NewReconciler(cfg ReconcilerConfig, handle HandleSource, checker SurfaceChecker, onLost func()) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		interval: interval,
		handle:   handle,
		checker:  checker,
		onLost:   onLost,
		logger:   logger,
	}
}

// Run starts the reconciliation loop. Blocks until context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	defer fault.Recover(r.logger, "reconciler")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Debug("reconciler started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("reconciler stopped")
			return
		case <-ticker.C:
			r.reconcile()
		}
	}
}

// reconcile performs a single reconciliation pass.
func (r *Reconciler) reconcile() {
	if r.lost {
		return
	}
	id := r.handle.Load()
	if id == 0 {
		return
	}

	alive, err := r.checker.Alive(id)
	if err != nil {
		r.logger.Warn("reconciler: failed to check surface", "handle", id, "error", err)
		return
	}
	if alive {
		return
	}

	r.lost = true
	r.logger.Error("reconciler: overlay surface was destroyed externally", "handle", id)
	if r.onLost != nil {
		r.onLost()
	}
}

// ReconcileNow triggers an immediate reconciliation pass.
func (r *Reconciler) ReconcileNow() {
	r.reconcile()
}
