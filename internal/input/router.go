// Package input implements the focusless text entry state machine. The
// overlay never owns keyboard focus; instead key events are intercepted and
// either consumed into the buffer or forwarded untouched.
package input

import (
	"log/slog"
	"sync/atomic"
	"unicode"
	"unicode/utf8"

	"github.com/1broseidon/perch/internal/platform"
)

// Config holds configuration for the router.
type Config struct {
	// Region is the input field, relative to the surface origin.
	Region platform.Rect
	// OnSubmit receives the buffer contents when Return is pressed.
	OnSubmit func(text string)
	// OnChange is called after every state or buffer change.
	OnChange func(active bool, text string)
	// OnActiveChange is called when the Active state flips.
	OnActiveChange func(active bool)
	Logger         *slog.Logger
}

// Stats is a point-in-time copy of the router counters.
type Stats struct {
	Active    bool   `json:"active"`
	BufferLen int64  `json:"buffer_len"`
	Submitted uint64 `json:"submitted"`
	Swallowed uint64 `json:"swallowed"`
	Forwarded uint64 `json:"forwarded"`
}

// Router is the Inactive/Active state machine. PointerDown and HandleKey must
// be called from the UI goroutine; Active and Stats are safe from any
// goroutine.
type Router struct {
	cfg    Config
	logger *slog.Logger

	active atomic.Bool
	buf    []rune

	bufLen    atomic.Int64
	submitted atomic.Uint64
	swallowed atomic.Uint64
	forwarded atomic.Uint64
}

// NewRouter creates a router in the Inactive state with an empty buffer.
func NewRouter(cfg Config) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{cfg: cfg, logger: logger}
}

// PointerDown moves to Active when (x, y) lies in the input region and to
// Inactive otherwise. It returns true when the press should drag the surface.
func (r *Router) PointerDown(x, y int) (drag bool) {
	inside := r.cfg.Region.Contains(x, y)
	r.setActive(inside)
	return !inside
}

func (r *Router) setActive(on bool) {
	if r.active.Swap(on) == on {
		return
	}
	r.logger.Debug("input state changed", "active", on)
	if r.cfg.OnActiveChange != nil {
		r.cfg.OnActiveChange(on)
	}
	r.changed()
}

// Active reports whether key events are being captured.
func (r *Router) Active() bool {
	return r.active.Load()
}

// Text returns the buffer contents. UI goroutine only.
func (r *Router) Text() string {
	return string(r.buf)
}

// HandleKey decides the fate of one key-down. Both interception paths call
// it so filtering is identical regardless of who holds focus.
func (r *Router) HandleKey(ev KeyEvent) Verdict {
	v := r.decide(ev)
	if v == Swallow {
		r.swallowed.Add(1)
	} else {
		r.forwarded.Add(1)
	}
	return v
}

func (r *Router) decide(ev KeyEvent) Verdict {
	if !r.active.Load() {
		return Forward
	}
	if ev.Key.navigation() || ev.Mods&reserved != 0 {
		return Forward
	}

	switch ev.Key {
	case KeyDelete:
		if n := len(r.buf); n > 0 {
			r.buf = r.buf[:n-1]
			r.changed()
		}
		return Swallow
	case KeyReturn:
		text := string(r.buf)
		r.buf = r.buf[:0]
		r.submitted.Add(1)
		r.changed()
		r.logger.Debug("input submitted", "length", utf8.RuneCountInString(text))
		if r.cfg.OnSubmit != nil {
			r.cfg.OnSubmit(text)
		}
		return Swallow
	}

	if !printable(ev.Text) {
		return Forward
	}
	r.buf = append(r.buf, []rune(ev.Text)...)
	r.changed()
	return Swallow
}

func (r *Router) changed() {
	r.bufLen.Store(int64(len(r.buf)))
	if r.cfg.OnChange != nil {
		r.cfg.OnChange(r.active.Load(), string(r.buf))
	}
}

func printable(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !unicode.IsPrint(c) {
			return false
		}
	}
	return true
}

// Stats returns a snapshot of the counters.
func (r *Router) Stats() Stats {
	return Stats{
		Active:    r.active.Load(),
		BufferLen: r.bufLen.Load(),
		Submitted: r.submitted.Load(),
		Swallowed: r.swallowed.Load(),
		Forwarded: r.forwarded.Load(),
	}
}
