//go:build linux

package daemon

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/1broseidon/perch/internal/arbiter"
	"github.com/1broseidon/perch/internal/config"
	"github.com/1broseidon/perch/internal/hotkeys"
	"github.com/1broseidon/perch/internal/input"
	"github.com/1broseidon/perch/internal/ipc"
	"github.com/1broseidon/perch/internal/platform"
	"github.com/1broseidon/perch/internal/runtimepath"
	"github.com/1broseidon/perch/internal/spaces"
	"github.com/1broseidon/perch/internal/surface"
	"github.com/1broseidon/perch/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
)

// Run connects to the display, creates the overlay and blocks in the X event
// loop until ctx is cancelled. The calling goroutine becomes the UI goroutine.
func (d *Daemon) Run(ctx context.Context) error {
	cfg := d.Config()
	logger := d.logger

	conn, err := x11.NewConnection(d.opts.Display)
	if err != nil {
		return fmt.Errorf("failed to connect to display: %w", err)
	}
	defer conn.Close()
	backend := platform.NewLinuxBackend(conn)
	d.desktops = backend

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.sinks = buildSinks(cfg, logger)

	// Input: the router owns the buffer, the tap feeds it system-wide keys.
	var (
		overlay *surface.Overlay
		tap     *hotkeys.Handler
	)
	d.router = input.NewRouter(input.Config{
		Region: surfaceOptions(cfg).InputRegion,
		OnSubmit: func(text string) {
			d.enqueueSubmit(text)
		},
		OnChange: func(active bool, text string) {
			if overlay != nil {
				overlay.Render(surface.View{Active: active, Text: text})
			}
		},
		OnActiveChange: func(active bool) {
			if tap != nil {
				tap.SetActive(active)
			}
		},
		Logger: logger.With("component", "input"),
	})
	if cfg.Input.Enabled {
		tap = hotkeys.NewHandler(conn, d.router, logger.With("component", "keys"))
	}

	overlay, err = surface.Create(conn, surfaceOptions(cfg), logger.With("component", "surface"))
	if err != nil {
		return err
	}
	if err := d.slot.Publish(overlay.Handle()); err != nil {
		overlay.Destroy()
		return err
	}
	logger.Info("overlay created", "handle", overlay.Handle(),
		"focusable", overlay.CanBecomeFocused(), "first_click", overlay.AcceptsFirstClick())

	overlay.OnPointerDown(func(x, y int) bool {
		if !cfg.Input.Enabled {
			return true
		}
		return d.router.PointerDown(x, y)
	})
	if tap != nil {
		overlay.OnKeyPress(tap.HandleLocal)
	}
	overlay.Render(surface.View{})

	var teardownOnce sync.Once
	teardown := func() {
		teardownOnce.Do(func() {
			if d.server != nil {
				d.server.Stop()
			}
			if tap != nil {
				tap.SetActive(false)
			}
			d.slot.Clear(overlay.Handle())
			overlay.Destroy()
			conn.XUtil.Sync()
		})
	}
	defer teardown()
	if d.opts.Respawner != nil {
		d.opts.Respawner.SetCleanup(teardown)
	}

	// Level arbitration.
	d.arbiter = arbiter.New(arbiterConfig(cfg, logger), &d.slot, backend, backend)
	if cfg.Arbiter.EventDriven {
		if err := conn.WatchStacking(d.arbiter.Nudge); err != nil {
			logger.Warn("stacking notifications unavailable, polling only", "error", err)
		} else {
			d.arbiter.SetEventDriven(true)
		}
	}

	// Desktop membership.
	var respawner spaces.Respawner
	if d.opts.Respawner != nil {
		respawner = d.opts.Respawner
	}
	// Poller-detected changes run between X events, never beside them.
	uiTasks := make(chan func())
	sc := spacesConfig(cfg, logger)
	sc.Post = func(fn func()) {
		select {
		case uiTasks <- fn:
		case <-ctx.Done():
		}
	}
	d.tracker, err = spaces.New(sc, &d.slot, backend, respawner)
	if err != nil {
		return err
	}
	if d.tracker.Follows() {
		d.tracker.Baseline()
		if err := conn.WatchCurrentDesktop(d.tracker.Notify); err != nil {
			logger.Warn("desktop notifications unavailable", "error", err)
		}
	}

	// Status endpoint.
	if cfg.IPC.Enabled {
		if err := d.startServer(cfg); err != nil {
			logger.Warn("status endpoint disabled", "error", err)
		}
	}

	var lost atomic.Bool
	reconciler := NewReconciler(ReconcilerConfig{Logger: logger.With("component", "reconciler")}, &d.slot, backend, func() {
		lost.Store(true)
		cancel()
	})

	go d.arbiter.Run(ctx)
	go d.tracker.Poll(ctx)
	go d.submitLoop(ctx)
	go reconciler.Run(ctx)
	if d.opts.ConfigPath != "" {
		d.startWatcher(ctx)
	}

	handle := xproto.Window(overlay.Handle())
	go func() {
		<-ctx.Done()
		conn.Quit()
		conn.Wake(handle)
	}()

	logger.Info("entering event loop",
		"strategy", cfg.Spaces.Strategy, "interval", cfg.Arbiter.Interval, "floor", cfg.Floor())
	conn.EventLoopWith(uiTasks)
	logger.Info("event loop stopped")
	if lost.Load() {
		return ErrSurfaceLost
	}
	return nil
}

func (d *Daemon) startServer(cfg *config.Config) error {
	path := cfg.IPC.Socket
	if path == "" {
		var err error
		if path, err = runtimepath.SocketPath(); err != nil {
			return err
		}
	}
	server, err := ipc.NewServer(path, d, d.Reload, d.logger.With("component", "ipc"))
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return err
	}
	d.server = server
	return nil
}

func (d *Daemon) startWatcher(ctx context.Context) {
	watcher, err := config.NewWatcher(d.opts.ConfigPath, d.logger.With("component", "config"), d.applyConfig)
	if err != nil {
		d.logger.Warn("config hot reload disabled", "error", err)
		return
	}
	go watcher.Run(ctx)
}
