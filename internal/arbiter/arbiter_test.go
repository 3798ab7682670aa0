package arbiter

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/perch/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const self platform.WindowID = 100

type fixedHandle platform.WindowID

func (h fixedHandle) Load() platform.WindowID { return platform.WindowID(h) }

type fakeProbe struct {
	mu   sync.Mutex
	snap platform.Snapshot
	err  error
	hook func(*fakeProbe)
}

func (p *fakeProbe) Snapshot() (platform.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hook != nil {
		p.hook(p)
	}
	if p.err != nil {
		return nil, p.err
	}
	return append(platform.Snapshot(nil), p.snap...), nil
}

type raiseCall struct {
	id, sibling platform.WindowID
}

type fakeControl struct {
	mu         sync.Mutex
	levels     []platform.Layer
	raises     []raiseCall
	setErr     error
	ceiling    platform.Layer
	hasCeiling bool
}

func (c *fakeControl) SetLevel(id platform.WindowID, level platform.Layer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.levels = append(c.levels, level)
	return nil
}

func (c *fakeControl) RaiseAbove(id, sibling platform.WindowID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.raises = append(c.raises, raiseCall{id, sibling})
	return nil
}

func (c *fakeControl) lastLevel() platform.Layer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.levels[len(c.levels)-1]
}

func (c *fakeControl) calls() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.levels), len(c.raises)
}

// verifyingControl reads back min(requested, ceiling).
type verifyingControl struct {
	fakeControl
}

func (c *verifyingControl) AppliedLevel(id platform.WindowID) (platform.Layer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l := c.levels[len(c.levels)-1]
	if c.hasCeiling && l > c.ceiling {
		l = c.ceiling
	}
	return l, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestTickRequestsCompetitorPlusOne(t *testing.T) {
	for _, layer := range []platform.Layer{0, 2, 3, 5, 6, 41} {
		probe := &fakeProbe{snap: platform.Snapshot{
			{ID: 1, Layer: platform.LayerNormal, Stack: 0},
			{ID: 2, Layer: layer, Stack: 1},
			{ID: self, Layer: 99, Stack: 2},
		}}
		control := &fakeControl{}
		a := New(Config{Floor: DefaultFloor, Logger: quietLogger()}, fixedHandle(self), probe, control)

		a.Tick()

		want := max(layer, platform.LayerNormal) + 1
		assert.Equal(t, want, control.lastLevel(), "competitor layer %d", layer)
	}
}

func TestTickUsesFloorWithoutCompetitors(t *testing.T) {
	probe := &fakeProbe{snap: platform.Snapshot{{ID: self, Layer: platform.LayerAbove}}}
	control := &fakeControl{}
	a := New(Config{Floor: platform.LayerAbove, Logger: quietLogger()}, fixedHandle(self), probe, control)

	a.Tick()

	assert.Equal(t, platform.LayerAbove, control.lastLevel())
	require.Len(t, control.raises, 1)
	assert.Equal(t, raiseCall{self, 0}, control.raises[0], "no competitor means absolute front")
}

func TestTickIgnoresFloorWhenCompetitorFound(t *testing.T) {
	probe := &fakeProbe{snap: platform.Snapshot{{ID: 1, Layer: platform.LayerDesktop}}}
	control := &fakeControl{}
	a := New(Config{Floor: platform.LayerAbove, Logger: quietLogger()}, fixedHandle(self), probe, control)

	a.Tick()

	assert.Equal(t, platform.LayerBelow, control.lastLevel())
	assert.Equal(t, int64(platform.LayerBelow), a.Stats().LastRequested)
}

func TestTickRaisesToFrontAboveOverrideRedirectCompetitor(t *testing.T) {
	probe := &fakeProbe{snap: platform.Snapshot{
		{ID: 1, Layer: platform.LayerAbove, Stack: 0},
		{ID: 2, Layer: platform.LayerOverride, Stack: 1},
	}}
	control := &fakeControl{}
	a := New(Config{Floor: DefaultFloor, Logger: quietLogger()}, fixedHandle(self), probe, control)

	a.Tick()

	require.Len(t, control.raises, 1)
	assert.Equal(t, raiseCall{self, 0}, control.raises[0], "unmanaged sibling is never used")
}

func TestRestackSibling(t *testing.T) {
	cases := []struct {
		name  string
		top   platform.Surface
		found bool
		want  platform.WindowID
	}{
		{"none", platform.Surface{}, false, 0},
		{"managed", platform.Surface{ID: 5, Layer: platform.LayerFullscreen}, true, 5},
		{"override", platform.Surface{ID: 6, Layer: platform.LayerOverride}, true, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, restackSibling(tc.top, tc.found))
		})
	}
}

func TestTickReordersAboveTopmostCompetitor(t *testing.T) {
	probe := &fakeProbe{snap: platform.Snapshot{
		{ID: 1, Layer: platform.LayerAbove, Stack: 0},
		{ID: 2, Layer: platform.LayerAbove, Stack: 3},
		{ID: 3, Layer: platform.LayerNormal, Stack: 4},
	}}
	control := &fakeControl{}
	a := New(Config{Logger: quietLogger()}, fixedHandle(self), probe, control)

	a.Tick()
	a.Tick()

	require.Len(t, control.raises, 2)
	assert.Equal(t, raiseCall{self, 2}, control.raises[0])
	assert.Equal(t, control.raises[0], control.raises[1])
}

func TestConvergesAgainstEscalatingCompetitor(t *testing.T) {
	control := &fakeControl{}
	competitor := platform.LayerNormal
	probe := &fakeProbe{}
	probe.hook = func(p *fakeProbe) {
		competitor++
		p.snap = platform.Snapshot{{ID: 7, Layer: competitor}}
	}
	a := New(Config{Floor: DefaultFloor, Logger: quietLogger()}, fixedHandle(self), probe, control)

	for i := 0; i < 200; i++ {
		a.Tick()
		require.Greater(t, control.lastLevel(), competitor, "tick %d", i)
	}
}

func TestZeroHandleSkipsWithoutControlCalls(t *testing.T) {
	probe := &fakeProbe{}
	control := &fakeControl{}
	a := New(Config{Logger: quietLogger()}, fixedHandle(0), probe, control)

	for i := 0; i < 5; i++ {
		a.Tick()
	}

	levels, raises := control.calls()
	assert.Zero(t, levels)
	assert.Zero(t, raises)
	stats := a.Stats()
	assert.Equal(t, uint64(5), stats.Ticks)
	assert.Equal(t, uint64(5), stats.Skipped)
}

func TestProbeFailureRaisesToFrontEveryTick(t *testing.T) {
	probe := &fakeProbe{err: platform.ErrProbeDenied}
	control := &fakeControl{}
	var buf bytes.Buffer
	a := New(Config{DiagnosticEvery: 50, Logger: slog.New(slog.NewTextHandler(&buf, nil))},
		fixedHandle(self), probe, control)

	for i := 0; i < 60; i++ {
		a.Tick()
	}

	levels, raises := control.calls()
	assert.Zero(t, levels, "no level computation on probe failure")
	assert.Equal(t, 60, raises)
	for _, r := range control.raises {
		assert.Equal(t, raiseCall{self, 0}, r)
	}
	assert.Equal(t, uint64(60), a.Stats().ProbeFailures)
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("stacking probe failed")))
}

func TestClampedLevelIsCounted(t *testing.T) {
	probe := &fakeProbe{snap: platform.Snapshot{{ID: 1, Layer: platform.LayerFullscreen}}}
	control := &verifyingControl{}
	control.ceiling, control.hasCeiling = platform.LayerAbove, true
	a := New(Config{Logger: quietLogger()}, fixedHandle(self), probe, control)

	a.Tick()
	a.Tick()

	stats := a.Stats()
	assert.Equal(t, uint64(2), stats.Clamps)
	assert.Equal(t, int64(platform.LayerOverride), stats.LastRequested)
	assert.Equal(t, int64(platform.LayerAbove), stats.LastApplied)
}

func TestUnverifiedLevelLeavesAppliedUnknown(t *testing.T) {
	probe := &fakeProbe{}
	control := &fakeControl{}
	a := New(Config{Logger: quietLogger()}, fixedHandle(self), probe, control)

	a.Tick()

	assert.Equal(t, int64(-1), a.Stats().LastApplied)
	assert.Zero(t, a.Stats().Clamps)
}

func TestSetLevelFailureStillReorders(t *testing.T) {
	probe := &fakeProbe{}
	control := &fakeControl{setErr: errors.New("bad window")}
	a := New(Config{Logger: quietLogger()}, fixedHandle(self), probe, control)

	a.Tick()

	_, raises := control.calls()
	assert.Equal(t, 1, raises)
}

func TestSetIntervalValidatesRange(t *testing.T) {
	a := New(Config{Logger: quietLogger()}, fixedHandle(0), &fakeProbe{}, &fakeControl{})
	assert.Equal(t, DefaultInterval, a.Interval())

	assert.Error(t, a.SetInterval(time.Millisecond))
	assert.Error(t, a.SetInterval(10*time.Second))
	require.NoError(t, a.SetInterval(250*time.Millisecond))
	assert.Equal(t, 250*time.Millisecond, a.Interval())
}

func TestNewClampsInterval(t *testing.T) {
	a := New(Config{Interval: time.Microsecond, Logger: quietLogger()}, fixedHandle(0), &fakeProbe{}, &fakeControl{})
	assert.Equal(t, MinInterval, a.Interval())
}

func TestFallbackMultiplierAppliesOnlyWhenEventDriven(t *testing.T) {
	a := New(Config{Interval: 100 * time.Millisecond, FallbackMultiplier: 5, Logger: quietLogger()},
		fixedHandle(0), &fakeProbe{}, &fakeControl{})
	assert.Equal(t, 100*time.Millisecond, a.pollInterval())
	a.SetEventDriven(true)
	assert.Equal(t, 500*time.Millisecond, a.pollInterval())
}

func TestRunTicksAndStopsOnCancel(t *testing.T) {
	probe := &fakeProbe{}
	control := &fakeControl{}
	a := New(Config{Interval: MinInterval, Logger: quietLogger()}, fixedHandle(self), probe, control)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return a.Stats().Ticks >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNudgeTriggersImmediateTick(t *testing.T) {
	probe := &fakeProbe{}
	control := &fakeControl{}
	a := New(Config{Interval: MaxInterval, Logger: quietLogger()}, fixedHandle(self), probe, control)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	a.Nudge()
	require.Eventually(t, func() bool { return a.Stats().Ticks >= 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(1), a.Stats().Nudges)
}
