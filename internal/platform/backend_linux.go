//go:build linux

package platform

import (
	"errors"
	"fmt"

	"github.com/1broseidon/perch/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
)

// LinuxBackend implements Probe, Control, LevelReader and Desktops on an
// EWMH window manager over a shared X11 connection.
type LinuxBackend struct {
	conn *x11.Connection
}

var (
	_ Probe       = (*LinuxBackend)(nil)
	_ Control     = (*LinuxBackend)(nil)
	_ LevelReader = (*LinuxBackend)(nil)
	_ Desktops    = (*LinuxBackend)(nil)
)

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection) *LinuxBackend {
	return &LinuxBackend{conn: conn}
}

func (b *LinuxBackend) connection() (*x11.Connection, error) {
	if b == nil || b.conn == nil || b.conn.XUtil == nil {
		return nil, fmt.Errorf("x11 connection is not initialized")
	}
	return b.conn, nil
}

// Snapshot enumerates visible windows with their layer, bottom to top.
func (b *LinuxBackend) Snapshot() (Snapshot, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	windows, err := conn.StackedWindows()
	if err != nil {
		var access xproto.AccessError
		if errors.As(err, &access) {
			return nil, fmt.Errorf("%w: %v", ErrProbeDenied, err)
		}
		return nil, err
	}

	snap := make(Snapshot, 0, len(windows))
	for i, w := range windows {
		if !w.Viewable {
			continue
		}
		snap = append(snap, Surface{
			ID:    WindowID(w.ID),
			Layer: Classify(WindowState{Types: w.Types, States: w.States, OverrideRedirect: w.OverrideRedirect}),
			Stack: i,
		})
	}
	return snap, nil
}

// SetLevel requests level for id. Managed windows top out at LayerAbove;
// anything higher is requested as above and reads back lower. Override-redirect
// windows are already in the override layer and need no request.
func (b *LinuxBackend) SetLevel(id WindowID, level Layer) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	if id == 0 {
		return ErrNoSurface
	}

	info, err := conn.Describe(xproto.Window(id))
	if err != nil {
		return err
	}
	if info.OverrideRedirect {
		return nil
	}

	switch {
	case level >= LayerAbove:
		return conn.SetAbove(xproto.Window(id), true, false)
	case level <= LayerBelow:
		return conn.SetAbove(xproto.Window(id), false, true)
	default:
		return conn.SetAbove(xproto.Window(id), false, false)
	}
}

// AppliedLevel reads back the layer the window manager actually gave id.
func (b *LinuxBackend) AppliedLevel(id WindowID) (Layer, error) {
	conn, err := b.connection()
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, ErrNoSurface
	}

	info, err := conn.Describe(xproto.Window(id))
	if err != nil {
		return 0, err
	}
	return Classify(WindowState{Types: info.Types, States: info.States, OverrideRedirect: info.OverrideRedirect}), nil
}

// RaiseAbove restacks id directly above sibling, or to the front when sibling
// is zero.
func (b *LinuxBackend) RaiseAbove(id, sibling WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	if id == 0 {
		return ErrNoSurface
	}

	info, err := conn.Describe(xproto.Window(id))
	if err != nil {
		return err
	}
	return conn.RaiseAbove(xproto.Window(id), xproto.Window(sibling), info.OverrideRedirect)
}

// Alive reports whether id still names an existing window.
func (b *LinuxBackend) Alive(id WindowID) (bool, error) {
	conn, err := b.connection()
	if err != nil {
		return false, err
	}
	if id == 0 {
		return false, ErrNoSurface
	}
	_, err = xproto.GetWindowAttributes(conn.XUtil.Conn(), xproto.Window(id)).Reply()
	if err == nil {
		return true, nil
	}
	var gone xproto.WindowError
	if errors.As(err, &gone) {
		return false, nil
	}
	return false, err
}

// Frame returns the on-screen rectangle of id.
func (b *LinuxBackend) Frame(id WindowID) (Rect, error) {
	conn, err := b.connection()
	if err != nil {
		return Rect{}, err
	}
	x, y, w, h, err := conn.Frame(xproto.Window(id))
	if err != nil {
		return Rect{}, err
	}
	return Rect{X: x, Y: y, Width: w, Height: h}, nil
}

// CurrentDesktop returns _NET_CURRENT_DESKTOP.
func (b *LinuxBackend) CurrentDesktop() (Desktop, error) {
	conn, err := b.connection()
	if err != nil {
		return 0, err
	}
	d, err := conn.GetCurrentDesktop()
	if err != nil {
		return 0, err
	}
	return Desktop(d), nil
}

// SetDesktop moves id to desktop.
func (b *LinuxBackend) SetDesktop(id WindowID, desktop Desktop) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	if id == 0 {
		return ErrNoSurface
	}
	return conn.SetWindowDesktop(xproto.Window(id), uint32(desktop))
}
