// Package arbiter keeps the overlay above every competing surface by
// re-asserting its stacking level on a fixed interval and on stacking
// change notifications.
package arbiter

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/1broseidon/perch/internal/diag"
	"github.com/1broseidon/perch/internal/fault"
	"github.com/1broseidon/perch/internal/platform"
)

// Interval bounds and the default floor.
const (
	DefaultInterval = 100 * time.Millisecond
	MinInterval     = 10 * time.Millisecond
	MaxInterval     = 5 * time.Second
	DefaultFloor    = platform.LayerAbove
)

// Diagnostic condition kinds.
const (
	KindProbe   = "probe_failed"
	KindClamped = "clamped"
	KindLevel   = "set_level_failed"
	KindReorder = "reorder_failed"
	KindVerify  = "verify_failed"
)

// HandleSource yields the published surface handle, zero when not ready.
type HandleSource interface {
	Load() platform.WindowID
}

// Config holds configuration for the arbiter.
type Config struct {
	Interval time.Duration
	Floor    platform.Layer
	// FallbackMultiplier stretches the poll interval while a stacking
	// notification source is attached. Values below 2 disable stretching.
	FallbackMultiplier int
	DiagnosticEvery    int
	Logger             *slog.Logger
}

// Stats is a point-in-time copy of the arbiter counters.
type Stats struct {
	Ticks         uint64 `json:"ticks"`
	Skipped       uint64 `json:"skipped"`
	Nudges        uint64 `json:"nudges"`
	ProbeFailures uint64 `json:"probe_failures"`
	Clamps        uint64 `json:"clamps"`
	LastRequested int64  `json:"last_requested"`
	// LastApplied is -1 until a level has been verified.
	LastApplied int64 `json:"last_applied"`
}

// Arbiter runs the probe, compute, apply loop.
type Arbiter struct {
	handle  HandleSource
	probe   platform.Probe
	control platform.Control
	verify  platform.LevelReader
	logger  *slog.Logger
	diag    *diag.Limiter

	interval    atomic.Int64
	floor       atomic.Int64
	multiplier  int
	eventDriven atomic.Bool

	nudges chan struct{}
	reset  chan struct{}

	ticks         atomic.Uint64
	skipped       atomic.Uint64
	nudged        atomic.Uint64
	probeFailures atomic.Uint64
	clamps        atomic.Uint64
	lastRequested atomic.Int64
	lastApplied   atomic.Int64
}

// New creates an arbiter. Verification is enabled when control also
// implements platform.LevelReader.
func New(cfg Config, handle HandleSource, probe platform.Probe, control platform.Control) *Arbiter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &Arbiter{
		handle:     handle,
		probe:      probe,
		control:    control,
		logger:     logger,
		diag:       diag.NewLimiter(logger, cfg.DiagnosticEvery),
		multiplier: cfg.FallbackMultiplier,
		nudges:     make(chan struct{}, 1),
		reset:      make(chan struct{}, 1),
	}
	if v, ok := control.(platform.LevelReader); ok {
		a.verify = v
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	a.interval.Store(int64(min(max(interval, MinInterval), MaxInterval)))
	a.floor.Store(int64(cfg.Floor))
	a.lastApplied.Store(-1)
	return a
}

// Run ticks until ctx is cancelled. A panic inside the loop is fatal.
func (a *Arbiter) Run(ctx context.Context) {
	defer fault.Recover(a.logger, "arbiter")

	a.logger.Info("arbiter started", "interval", a.Interval(), "floor", a.Floor(), "verify", a.verify != nil)

	timer := time.NewTimer(a.pollInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("arbiter stopped")
			return
		case <-a.nudges:
			a.nudged.Add(1)
			a.Tick()
		case <-a.reset:
		case <-timer.C:
			a.Tick()
		}
		timer.Reset(a.pollInterval())
	}
}

// Tick performs one arbitration pass.
func (a *Arbiter) Tick() {
	a.ticks.Add(1)

	id := a.handle.Load()
	if id == 0 {
		a.skipped.Add(1)
		return
	}

	snap, err := a.probe.Snapshot()
	if err != nil {
		a.probeFailures.Add(1)
		a.diag.Warn(KindProbe, "stacking probe failed, raising to front", "error", err)
		a.raise(id, 0)
		return
	}

	top, found := snap.Without(id).Topmost()
	desired := a.Floor()
	if found {
		desired = top.Layer + 1
	}

	a.lastRequested.Store(int64(desired))
	if err := a.control.SetLevel(id, desired); err != nil {
		a.diag.Warn(KindLevel, "set level failed", "level", desired, "error", err)
	} else if a.verify != nil {
		a.checkApplied(id, desired)
	}

	a.raise(id, restackSibling(top, found))
}

// restackSibling picks the window to restack above. Window managers only
// restack against managed clients, so an override-redirect competitor on top
// means a raise to the front instead.
func restackSibling(top platform.Surface, found bool) platform.WindowID {
	if !found || top.Layer >= platform.LayerOverride {
		return 0
	}
	return top.ID
}

func (a *Arbiter) checkApplied(id platform.WindowID, requested platform.Layer) {
	applied, err := a.verify.AppliedLevel(id)
	if err != nil {
		a.diag.Warn(KindVerify, "level verification failed", "error", err)
		return
	}
	a.lastApplied.Store(int64(applied))
	if applied < requested {
		a.clamps.Add(1)
		a.diag.Warn(KindClamped, "level clamped by window manager",
			"requested", requested, "applied", applied)
	}
}

func (a *Arbiter) raise(id, sibling platform.WindowID) {
	if err := a.control.RaiseAbove(id, sibling); err != nil {
		a.diag.Warn(KindReorder, "reorder failed", "sibling", uint32(sibling), "error", err)
	}
}

// Nudge requests an immediate tick. It never blocks; nudges arriving while
// one is pending are merged.
func (a *Arbiter) Nudge() {
	select {
	case a.nudges <- struct{}{}:
	default:
	}
}

// SetEventDriven records whether a stacking notification source is attached,
// which enables the fallback multiplier.
func (a *Arbiter) SetEventDriven(on bool) {
	a.eventDriven.Store(on)
	a.poke()
}

// SetInterval changes the poll interval of a running arbiter.
func (a *Arbiter) SetInterval(d time.Duration) error {
	if d < MinInterval || d > MaxInterval {
		return fmt.Errorf("interval %s outside [%s, %s]", d, MinInterval, MaxInterval)
	}
	a.interval.Store(int64(d))
	a.poke()
	return nil
}

// SetFloor changes the level used when no competitor is found or the
// probe fails.
func (a *Arbiter) SetFloor(l platform.Layer) {
	a.floor.Store(int64(l))
}

// SetDiagnosticEvery changes the diagnostic emission period.
func (a *Arbiter) SetDiagnosticEvery(n int) {
	a.diag.SetEvery(n)
}

func (a *Arbiter) poke() {
	select {
	case a.reset <- struct{}{}:
	default:
	}
}

// Interval returns the configured poll interval.
func (a *Arbiter) Interval() time.Duration {
	return time.Duration(a.interval.Load())
}

// Floor returns the configured floor level.
func (a *Arbiter) Floor() platform.Layer {
	return platform.Layer(a.floor.Load())
}

func (a *Arbiter) pollInterval() time.Duration {
	d := a.Interval()
	if a.eventDriven.Load() && a.multiplier > 1 {
		d *= time.Duration(a.multiplier)
	}
	return d
}

// Stats returns a snapshot of the counters.
func (a *Arbiter) Stats() Stats {
	return Stats{
		Ticks:         a.ticks.Load(),
		Skipped:       a.skipped.Load(),
		Nudges:        a.nudged.Load(),
		ProbeFailures: a.probeFailures.Load(),
		Clamps:        a.clamps.Load(),
		LastRequested: a.lastRequested.Load(),
		LastApplied:   a.lastApplied.Load(),
	}
}
