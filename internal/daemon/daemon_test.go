package daemon

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/1broseidon/perch/internal/arbiter"
	"github.com/1broseidon/perch/internal/config"
	"github.com/1broseidon/perch/internal/platform"
	"github.com/1broseidon/perch/internal/spaces"
	"github.com/1broseidon/perch/internal/submit"
	"github.com/1broseidon/perch/internal/surface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSurfaceOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	opts := surfaceOptions(cfg)

	assert.Equal(t, surface.DefaultOptions(), opts)

	cfg.Spaces.Strategy = spaces.StrategyFollow
	cfg.Surface.OverrideRedirect = true
	opts = surfaceOptions(cfg)
	assert.Equal(t, surface.Pinned, opts.Spaces)
	assert.True(t, opts.OverrideRedirect)
}

func TestArbiterConfigFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Arbiter.Floor = 5
	cfg.Arbiter.FallbackMultiplier = 4

	ac := arbiterConfig(cfg, quietLogger())
	assert.Equal(t, platform.LayerFullscreen, ac.Floor)
	assert.Equal(t, 4, ac.FallbackMultiplier)
	assert.Equal(t, arbiter.DefaultInterval, ac.Interval)
}

type nopSink struct{}

func (nopSink) Submit(context.Context, string) error { return nil }

func TestBuildSinks(t *testing.T) {
	orig := dbusConnector
	t.Cleanup(func() { dbusConnector = orig })

	cfg := config.DefaultConfig()
	assert.Len(t, buildSinks(cfg, quietLogger()), 1)

	cfg.Submit.DBusNotify = true
	dbusConnector = func(*slog.Logger) (submit.Sink, error) { return nopSink{}, nil }
	assert.Len(t, buildSinks(cfg, quietLogger()), 2)

	dbusConnector = func(*slog.Logger) (submit.Sink, error) { return nil, errors.New("no session bus") }
	assert.Len(t, buildSinks(cfg, quietLogger()), 1)

	cfg.Submit.Log = false
	assert.Empty(t, buildSinks(cfg, quietLogger()))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Arbiter.Interval = time.Hour
	_, err := New(Options{Config: cfg, Logger: quietLogger()})
	assert.Error(t, err)
}

type noopControl struct{}

func (noopControl) Snapshot() (platform.Snapshot, error)             { return nil, nil }
func (noopControl) SetLevel(platform.WindowID, platform.Layer) error { return nil }
func (noopControl) RaiseAbove(id, sibling platform.WindowID) error   { return nil }

func TestReloadAppliesLiveSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: {level: debug}\narbiter: {interval: 300ms, floor: 4, diagnostic_every: 7}\n"), 0644))

	var level slog.LevelVar
	d, err := New(Options{ConfigPath: path, LogLevel: &level, Logger: quietLogger()})
	require.NoError(t, err)
	d.arbiter = arbiter.New(arbiter.Config{Logger: quietLogger()}, &d.slot, noopControl{}, noopControl{})

	require.NoError(t, d.Reload())
	assert.Equal(t, 300*time.Millisecond, d.arbiter.Interval())
	assert.Equal(t, platform.LayerDock, d.arbiter.Floor())
	assert.Equal(t, slog.LevelDebug, level.Level())
	assert.Equal(t, 4, d.Config().Arbiter.Floor)
}

func TestReloadWithoutPathFails(t *testing.T) {
	d, err := New(Options{Logger: quietLogger()})
	require.NoError(t, err)
	assert.Error(t, d.Reload())
}

func TestStatusWithoutDisplay(t *testing.T) {
	d, err := New(Options{InstanceID: "id-1", Generation: 3, Logger: quietLogger()})
	require.NoError(t, err)

	status := d.Status()
	assert.Equal(t, "id-1", status.InstanceID)
	assert.Equal(t, 3, status.Generation)
	assert.Equal(t, uint32(0), status.Handle)
	assert.Equal(t, int64(-1), status.Desktop)
	assert.Equal(t, "pin", status.Strategy)
	assert.Empty(t, status.FollowMode)
}

type recordSink struct {
	got chan string
}

func (r recordSink) Submit(_ context.Context, text string) error {
	r.got <- text
	return nil
}

func TestSubmitLoopDelivers(t *testing.T) {
	d, err := New(Options{Logger: quietLogger()})
	require.NoError(t, err)
	sink := recordSink{got: make(chan string, 1)}
	d.sinks = submit.Fanout{sink}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.submitLoop(ctx)

	d.enqueueSubmit("hello")
	select {
	case text := <-sink.got:
		assert.Equal(t, "hello", text)
	case <-time.After(2 * time.Second):
		t.Fatal("submission not delivered")
	}
}

func TestEnqueueSubmitDropsWhenFull(t *testing.T) {
	d, err := New(Options{Logger: quietLogger()})
	require.NoError(t, err)
	for i := 0; i < submitQueue+5; i++ {
		d.enqueueSubmit("x")
	}
	assert.Len(t, d.submits, submitQueue)
}
