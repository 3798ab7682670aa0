// Package spaces keeps the overlay on the active virtual desktop.
package spaces

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/1broseidon/perch/internal/fault"
	"github.com/1broseidon/perch/internal/platform"
)

// Strategy selects how desktop membership is maintained.
type Strategy string

const (
	// StrategyPin marks the surface sticky at creation and does nothing at runtime.
	StrategyPin Strategy = "pin"
	// StrategyFollow reacts to desktop-change notifications.
	StrategyFollow Strategy = "follow"
)

// FollowMode is the action taken per notification under StrategyFollow.
type FollowMode string

const (
	// FollowMove sets the surface's desktop to the active one.
	FollowMove FollowMode = "move"
	// FollowRespawn asks the supervisor for a clean restart.
	FollowRespawn FollowMode = "respawn"
)

// HandleSource yields the published surface handle, zero when not ready.
type HandleSource interface {
	Load() platform.WindowID
}

// Respawner performs an announced, non-error process restart. On success it
// does not return.
type Respawner interface {
	Respawn(reason string) error
}

// Config holds configuration for the tracker.
type Config struct {
	Strategy     Strategy
	Mode         FollowMode
	PollInterval time.Duration
	// Post runs a poller-detected change on the goroutine that owns the
	// surface. Nil runs it on the poller goroutine.
	Post   func(fn func())
	Logger *slog.Logger
}

// Stats is a point-in-time copy of the tracker counters.
type Stats struct {
	Handled  uint64 `json:"handled"`
	Dropped  uint64 `json:"dropped"`
	Failures uint64 `json:"failures"`
	Polled   uint64 `json:"polled"`
}

// Tracker applies the configured strategy.
type Tracker struct {
	cfg       Config
	handle    HandleSource
	desktops  platform.Desktops
	respawner Respawner
	logger    *slog.Logger

	// mu serializes notification handling between the event loop and the poller.
	mu      sync.Mutex
	last    platform.Desktop
	hasLast bool

	handled  atomic.Uint64
	dropped  atomic.Uint64
	failures atomic.Uint64
	polled   atomic.Uint64
}

// New creates a tracker. respawner may be nil unless Mode is FollowRespawn.
func New(cfg Config, handle HandleSource, desktops platform.Desktops, respawner Respawner) (*Tracker, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyPin
	}
	if cfg.Mode == "" {
		cfg.Mode = FollowMove
	}
	switch cfg.Strategy {
	case StrategyPin, StrategyFollow:
	default:
		return nil, fmt.Errorf("unknown space strategy %q", cfg.Strategy)
	}
	switch cfg.Mode {
	case FollowMove:
	case FollowRespawn:
		if respawner == nil && cfg.Strategy == StrategyFollow {
			return nil, fmt.Errorf("follow mode %q requires a respawner", cfg.Mode)
		}
	default:
		return nil, fmt.Errorf("unknown follow mode %q", cfg.Mode)
	}

	return &Tracker{
		cfg:       cfg,
		handle:    handle,
		desktops:  desktops,
		respawner: respawner,
		logger:    cfg.Logger,
	}, nil
}

// Strategy returns the configured strategy.
func (t *Tracker) Strategy() Strategy { return t.cfg.Strategy }

// Follows reports whether the tracker needs desktop-change notifications.
func (t *Tracker) Follows() bool { return t.cfg.Strategy == StrategyFollow }

// Baseline records the current desktop as already handled, so a rewrite of
// the same value after start-up causes no action. It is a no-op once a
// desktop has been recorded.
func (t *Tracker) Baseline() {
	if !t.Follows() {
		return
	}
	desk, err := t.desktops.CurrentDesktop()
	if err != nil {
		t.logger.Debug("failed to read initial desktop", "error", err)
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasLast {
		t.last, t.hasLast = desk, true
	}
}

// Notify handles one desktop-change notification. Under the pin strategy it
// does nothing. Otherwise the current desktop is read and, when it differs
// from the last handled one, exactly one move or respawn is attempted.
func (t *Tracker) Notify() {
	if !t.Follows() {
		return
	}
	desk, err := t.desktops.CurrentDesktop()
	if err != nil {
		t.failures.Add(1)
		t.logger.Warn("failed to read current desktop", "error", err)
		return
	}
	t.changed(desk, false)
}

// changed performs the action for a desktop change unless desk was already
// handled.
func (t *Tracker) changed(desk platform.Desktop, polled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hasLast && desk == t.last {
		return
	}

	id := t.handle.Load()
	if id == 0 {
		t.dropped.Add(1)
		t.logger.Debug("desktop change before surface is ready, dropped")
		return
	}

	if polled {
		t.polled.Add(1)
	}
	t.handled.Add(1)
	t.last, t.hasLast = desk, true

	switch t.cfg.Mode {
	case FollowRespawn:
		t.logger.Info("desktop changed, requesting respawn", "desktop", uint32(desk))
		if err := t.respawner.Respawn("desktop changed"); err != nil {
			t.failures.Add(1)
			t.logger.Error("respawn failed", "error", err)
		}
	default:
		if err := t.desktops.SetDesktop(id, desk); err != nil {
			t.failures.Add(1)
			t.logger.Warn("failed to move surface to desktop", "desktop", uint32(desk), "error", err)
			return
		}
		t.logger.Debug("surface moved to desktop", "desktop", uint32(desk))
	}
}

// Poll reads the current desktop every PollInterval and synthesizes a
// notification when it differs from the last handled one. The action runs
// through Config.Post. It returns immediately when polling is disabled or
// the strategy is pin.
func (t *Tracker) Poll(ctx context.Context) {
	if !t.Follows() || t.cfg.PollInterval <= 0 {
		return
	}
	defer fault.Recover(t.logger, "spaces poller")

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.pollOnce()
		}
	}
}

func (t *Tracker) pollOnce() {
	desk, err := t.desktops.CurrentDesktop()
	if err != nil {
		t.logger.Debug("desktop poll failed", "error", err)
		return
	}

	t.mu.Lock()
	if !t.hasLast {
		t.last, t.hasLast = desk, true
		t.mu.Unlock()
		return
	}
	same := desk == t.last
	t.mu.Unlock()
	if same {
		return
	}
	t.post(func() { t.changed(desk, true) })
}

func (t *Tracker) post(fn func()) {
	if t.cfg.Post == nil {
		fn()
		return
	}
	t.cfg.Post(fn)
}

// Stats returns a snapshot of the counters.
func (t *Tracker) Stats() Stats {
	return Stats{
		Handled:  t.handled.Load(),
		Dropped:  t.dropped.Load(),
		Failures: t.failures.Load(),
		Polled:   t.polled.Load(),
	}
}
