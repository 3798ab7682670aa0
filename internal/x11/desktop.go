package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xprop"
)

// stickyDesktop is the _NET_WM_DESKTOP value for "all desktops".
const stickyDesktop = 0xFFFFFFFF

// GetCurrentDesktop returns the current virtual desktop number (0-indexed).
// Uses _NET_CURRENT_DESKTOP atom.
func (c *Connection) GetCurrentDesktop() (uint32, error) {
	desktop, err := ewmh.CurrentDesktopGet(c.XUtil)
	if err != nil {
		return 0, fmt.Errorf("failed to get current desktop: %w", err)
	}
	return uint32(desktop), nil
}

// GetWindowDesktop returns the desktop number a window is on.
// Uses _NET_WM_DESKTOP atom. 0xFFFFFFFF means the window is sticky.
func (c *Connection) GetWindowDesktop(windowID xproto.Window) (uint32, error) {
	desktop, err := ewmh.WmDesktopGet(c.XUtil, windowID)
	if err != nil {
		return 0, fmt.Errorf("failed to get window desktop: %w", err)
	}
	return uint32(desktop), nil
}

// SetWindowDesktop moves a window to the specified virtual desktop.
// Sends a _NET_WM_DESKTOP client message to the root window per EWMH spec.
// We build the message manually because the xgbutil ewmh.WmDesktopReq
// helper panics on this library version (uint vs int type assertion).
func (c *Connection) SetWindowDesktop(windowID xproto.Window, desktop uint32) error {
	atom, err := xprop.Atm(c.XUtil, "_NET_WM_DESKTOP")
	if err != nil {
		return fmt.Errorf("failed to intern _NET_WM_DESKTOP: %w", err)
	}

	const sourceIndication = 2 // pager/direct action
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: windowID,
		Type:   atom,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{desktop, sourceIndication, 0, 0, 0}),
	}

	return xproto.SendEventChecked(
		c.XUtil.Conn(),
		false,
		c.Root,
		xproto.EventMaskSubstructureRedirect|xproto.EventMaskSubstructureNotify,
		string(ev.Bytes()),
	).Check()
}

// PinToAllDesktops marks an unmapped window as sticky by writing
// _NET_WM_DESKTOP and _NET_WM_STATE_STICKY directly, so the window manager
// sees both when it first manages the window.
func (c *Connection) PinToAllDesktops(windowID xproto.Window) error {
	if err := ewmh.WmDesktopSet(c.XUtil, windowID, stickyDesktop); err != nil {
		return fmt.Errorf("failed to set _NET_WM_DESKTOP: %w", err)
	}
	states, err := ewmh.WmStateGet(c.XUtil, windowID)
	if err != nil {
		states = nil
	}
	if !containsString(states, "_NET_WM_STATE_STICKY") {
		states = append(states, "_NET_WM_STATE_STICKY")
	}
	if err := ewmh.WmStateSet(c.XUtil, windowID, states); err != nil {
		return fmt.Errorf("failed to set _NET_WM_STATE_STICKY: %w", err)
	}
	return nil
}

// WatchCurrentDesktop calls fn on the event loop goroutine every time the
// window manager rewrites _NET_CURRENT_DESKTOP on the root window.
func (c *Connection) WatchCurrentDesktop(fn func()) error {
	return c.watchRootProperty("_NET_CURRENT_DESKTOP", fn)
}

// WatchStacking calls fn whenever the window manager rewrites
// _NET_CLIENT_LIST_STACKING. Override-redirect windows do not appear there,
// so this complements polling rather than replacing it.
func (c *Connection) WatchStacking(fn func()) error {
	return c.watchRootProperty("_NET_CLIENT_LIST_STACKING", fn)
}

func (c *Connection) watchRootProperty(name string, fn func()) error {
	atom, err := xprop.Atm(c.XUtil, name)
	if err != nil {
		return fmt.Errorf("failed to intern %s: %w", name, err)
	}
	if err := c.selectRootEvents(); err != nil {
		return err
	}
	xevent.PropertyNotifyFun(func(xu *xgbutil.XUtil, ev xevent.PropertyNotifyEvent) {
		if ev.Atom == atom {
			fn()
		}
	}).Connect(c.XUtil, c.Root)
	return nil
}

// selectRootEvents selects property notifications on the root window.
func (c *Connection) selectRootEvents() error {
	return xproto.ChangeWindowAttributesChecked(
		c.XUtil.Conn(),
		c.Root,
		xproto.CwEventMask,
		[]uint32{uint32(xproto.EventMaskPropertyChange)},
	).Check()
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
