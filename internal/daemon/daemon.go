package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/1broseidon/perch/internal/arbiter"
	"github.com/1broseidon/perch/internal/config"
	"github.com/1broseidon/perch/internal/fault"
	"github.com/1broseidon/perch/internal/input"
	"github.com/1broseidon/perch/internal/ipc"
	"github.com/1broseidon/perch/internal/platform"
	"github.com/1broseidon/perch/internal/spaces"
	"github.com/1broseidon/perch/internal/submit"
	"github.com/1broseidon/perch/internal/surface"
)

// ErrSurfaceLost is returned by Run when the overlay window was destroyed by
// someone else. The caller should restart the process.
var ErrSurfaceLost = errors.New("overlay surface lost")

// submitQueue bounds submissions waiting for slow sinks.
const submitQueue = 16

// Options configure a Daemon.
type Options struct {
	Config *config.Config
	// ConfigPath enables hot reload and RELOAD when set.
	ConfigPath string
	// Display overrides $DISPLAY.
	Display string
	// LogLevel, when set, is adjusted on reload.
	LogLevel   *slog.LevelVar
	Logger     *slog.Logger
	InstanceID string
	Lineage    string
	Generation int
	// Respawner handles announced restarts. Required for follow/respawn.
	Respawner Respawner
}

// Respawner restarts the process and runs a cleanup hook first.
type Respawner interface {
	spaces.Respawner
	SetCleanup(fn func())
}

// Daemon owns the overlay and every loop acting on it.
type Daemon struct {
	opts   Options
	logger *slog.Logger

	cfgMu sync.RWMutex
	cfg   *config.Config

	slot     surface.Slot
	desktops platform.Desktops
	arbiter  *arbiter.Arbiter
	tracker  *spaces.Tracker
	router   *input.Router
	sinks    submit.Fanout
	submits  chan string
	server   *ipc.Server
}

// New validates options and prepares the components that do not need a
// display connection.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Daemon{
		opts:    opts,
		logger:  opts.Logger,
		cfg:     opts.Config,
		submits: make(chan string, submitQueue),
	}, nil
}

// Config returns the current configuration.
func (d *Daemon) Config() *config.Config {
	d.cfgMu.RLock()
	defer d.cfgMu.RUnlock()
	return d.cfg
}

// Status implements ipc.StatusProvider.
func (d *Daemon) Status() ipc.StatusData {
	cfg := d.Config()
	status := ipc.StatusData{
		InstanceID: d.opts.InstanceID,
		Lineage:    d.opts.Lineage,
		Generation: d.opts.Generation,
		Handle:     uint32(d.slot.Load()),
		Desktop:    -1,
		Strategy:   string(cfg.Spaces.Strategy),
	}
	if d.desktops != nil {
		if cur, err := d.desktops.CurrentDesktop(); err == nil {
			status.Desktop = int64(cur)
		}
	}
	if cfg.Spaces.Strategy == spaces.StrategyFollow {
		status.FollowMode = string(cfg.Spaces.FollowMode)
	}
	if d.arbiter != nil {
		status.Arbiter = d.arbiter.Stats()
	}
	if d.tracker != nil {
		status.Spaces = d.tracker.Stats()
	}
	if d.router != nil {
		status.Input = d.router.Stats()
	}
	return status
}

// Reload re-reads ConfigPath and applies it.
func (d *Daemon) Reload() error {
	if d.opts.ConfigPath == "" {
		return fmt.Errorf("no config file in use")
	}
	res, err := config.LoadFromPath(d.opts.ConfigPath)
	if err != nil {
		return err
	}
	d.applyConfig(res.Config)
	return nil
}

// applyConfig applies the settings that can change at runtime and logs the
// ones that need a restart.
func (d *Daemon) applyConfig(next *config.Config) {
	d.cfgMu.Lock()
	prev := d.cfg
	d.cfg = next
	d.cfgMu.Unlock()

	for _, w := range next.Warnings() {
		d.logger.Warn("config warning", "warning", w)
	}

	if d.opts.LogLevel != nil {
		d.opts.LogLevel.Set(next.Log.SlogLevel())
	}
	if d.arbiter != nil {
		if err := d.arbiter.SetInterval(next.Arbiter.Interval); err != nil {
			d.logger.Warn("arbiter interval not applied", "error", err)
		}
		d.arbiter.SetFloor(next.Floor())
		d.arbiter.SetDiagnosticEvery(next.Arbiter.DiagnosticEvery)
	}

	if prev.Spaces != next.Spaces {
		d.logger.Warn("spaces settings change takes effect after restart")
	}
	if prev.Surface != next.Surface {
		d.logger.Warn("surface settings change takes effect after restart")
	}
	if prev.Submit != next.Submit || prev.Input != next.Input || prev.IPC != next.IPC {
		d.logger.Warn("input, submit and ipc settings change takes effect after restart")
	}
	d.logger.Info("config applied",
		"interval", next.Arbiter.Interval,
		"floor", next.Floor(),
		"diagnostic_every", next.Arbiter.DiagnosticEvery)
}

// enqueueSubmit hands text to the submit worker without blocking the UI
// goroutine. Submissions beyond the queue are dropped and logged.
func (d *Daemon) enqueueSubmit(text string) {
	select {
	case d.submits <- text:
	default:
		d.logger.Warn("submit queue full, dropping submission")
	}
}

func (d *Daemon) submitLoop(ctx context.Context) {
	defer fault.Recover(d.logger, "submit worker")
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-d.submits:
			if err := d.sinks.Submit(ctx, text); err != nil {
				d.logger.Warn("submit failed", "error", err)
			}
		}
	}
}
