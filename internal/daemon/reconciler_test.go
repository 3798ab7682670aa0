package daemon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/1broseidon/perch/internal/platform"
	"github.com/stretchr/testify/assert"
)

type staticHandle platform.WindowID

func (h staticHandle) Load() platform.WindowID { return platform.WindowID(h) }

type fakeChecker struct {
	alive bool
	err   error
	calls int
}

func (f *fakeChecker) Alive(platform.WindowID) (bool, error) {
	f.calls++
	return f.alive, f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReconcilerReportsLossOnce(t *testing.T) {
	checker := &fakeChecker{alive: false}
	lost := 0
	r := NewReconciler(ReconcilerConfig{Logger: quietLogger()}, staticHandle(7), checker, func() { lost++ })

	r.ReconcileNow()
	r.ReconcileNow()
	assert.Equal(t, 1, lost)
	assert.Equal(t, 1, checker.calls)
}

func TestReconcilerIgnoresLiveAndUnpublished(t *testing.T) {
	checker := &fakeChecker{alive: true}
	lost := 0
	r := NewReconciler(ReconcilerConfig{Logger: quietLogger()}, staticHandle(7), checker, func() { lost++ })
	r.ReconcileNow()
	assert.Equal(t, 0, lost)

	r = NewReconciler(ReconcilerConfig{Logger: quietLogger()}, staticHandle(0), checker, func() { lost++ })
	r.ReconcileNow()
	assert.Equal(t, 0, lost)
	assert.Equal(t, 1, checker.calls)
}

func TestReconcilerCheckErrorIsNotLoss(t *testing.T) {
	checker := &fakeChecker{err: errors.New("connection reset")}
	lost := 0
	r := NewReconciler(ReconcilerConfig{Logger: quietLogger()}, staticHandle(7), checker, func() { lost++ })
	r.ReconcileNow()
	assert.Equal(t, 0, lost)
}

func TestReconcilerRunStopsOnCancel(t *testing.T) {
	checker := &fakeChecker{alive: true}
	r := NewReconciler(ReconcilerConfig{Interval: 5 * time.Millisecond, Logger: quietLogger()}, staticHandle(7), checker, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}
}
