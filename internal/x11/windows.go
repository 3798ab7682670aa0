package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// WindowInfo is the stacking-relevant state of one window.
type WindowInfo struct {
	ID               xproto.Window
	Types            []string
	States           []string
	OverrideRedirect bool
	Viewable         bool
}

// HasState reports whether name is present in _NET_WM_STATE.
func (w WindowInfo) HasState(name string) bool {
	return containsString(w.States, name)
}

// HasType reports whether name is present in _NET_WM_WINDOW_TYPE.
func (w WindowInfo) HasType(name string) bool {
	return containsString(w.Types, name)
}

// StackedWindows returns managed clients from _NET_CLIENT_LIST_STACKING
// (bottom to top) followed by mapped override-redirect children of the root
// in server stacking order. The latter always draw above managed frames.
func (c *Connection) StackedWindows() ([]WindowInfo, error) {
	clients, err := ewmh.ClientListStackingGet(c.XUtil)
	if err != nil {
		return nil, fmt.Errorf("failed to read _NET_CLIENT_LIST_STACKING: %w", err)
	}

	out := make([]WindowInfo, 0, len(clients))
	for _, win := range clients {
		info := c.describe(win)
		// Managed clients are reparented, so their own map state says little.
		info.Viewable = !info.HasState("_NET_WM_STATE_HIDDEN")
		out = append(out, info)
	}

	tree, err := xproto.QueryTree(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to query root children: %w", err)
	}
	for _, win := range tree.Children {
		attrs, err := xproto.GetWindowAttributes(c.XUtil.Conn(), win).Reply()
		if err != nil || !attrs.OverrideRedirect || attrs.MapState != xproto.MapStateViewable {
			continue
		}
		out = append(out, WindowInfo{ID: win, OverrideRedirect: true, Viewable: true})
	}
	return out, nil
}

// Describe reads the window type, state and override-redirect flag of win.
func (c *Connection) Describe(win xproto.Window) (WindowInfo, error) {
	attrs, err := xproto.GetWindowAttributes(c.XUtil.Conn(), win).Reply()
	if err != nil {
		return WindowInfo{}, fmt.Errorf("failed to get attributes of 0x%x: %w", win, err)
	}
	info := c.describe(win)
	info.OverrideRedirect = attrs.OverrideRedirect
	info.Viewable = attrs.MapState == xproto.MapStateViewable
	return info, nil
}

func (c *Connection) describe(win xproto.Window) WindowInfo {
	// Missing properties are normal for many clients; treat them as empty.
	types, _ := ewmh.WmWindowTypeGet(c.XUtil, win)
	states, _ := ewmh.WmStateGet(c.XUtil, win)
	return WindowInfo{ID: win, Types: types, States: states}
}

// SetAbove asks the window manager to put win in the "above" layer (above
// true) or the "below" layer (below true), clearing the other. Both false
// returns the window to the normal layer.
func (c *Connection) SetAbove(win xproto.Window, above, below bool) error {
	if err := ewmh.WmStateReq(c.XUtil, win, stateAction(above), "_NET_WM_STATE_ABOVE"); err != nil {
		return fmt.Errorf("failed to request _NET_WM_STATE_ABOVE: %w", err)
	}
	if err := ewmh.WmStateReq(c.XUtil, win, stateAction(below), "_NET_WM_STATE_BELOW"); err != nil {
		return fmt.Errorf("failed to request _NET_WM_STATE_BELOW: %w", err)
	}
	return nil
}

func stateAction(add bool) int {
	if add {
		return ewmh.StateAdd
	}
	return ewmh.StateRemove
}

// RaiseAbove restacks win directly above sibling, or to the top of its layer
// when sibling is zero. Managed windows go through _NET_RESTACK_WINDOW so the
// window manager moves the frame; override-redirect windows are configured
// directly since no one else will.
func (c *Connection) RaiseAbove(win, sibling xproto.Window, overrideRedirect bool) error {
	if overrideRedirect {
		return xproto.ConfigureWindowChecked(
			c.XUtil.Conn(),
			win,
			xproto.ConfigWindowStackMode,
			[]uint32{xproto.StackModeAbove},
		).Check()
	}

	if err := ewmh.RestackWindowExtra(c.XUtil, win, xproto.StackModeAbove, sibling, 2); err != nil {
		return fmt.Errorf("failed to send _NET_RESTACK_WINDOW: %w", err)
	}
	if sibling == 0 {
		// Some window managers ignore restack requests without a sibling but
		// honour a plain ConfigureRequest.
		xproto.ConfigureWindow(c.XUtil.Conn(), win, xproto.ConfigWindowStackMode, []uint32{xproto.StackModeAbove})
	}
	return nil
}

// Frame returns the window's geometry in root coordinates.
func (c *Connection) Frame(win xproto.Window) (x, y, width, height int, err error) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(win)).Reply()
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("failed to get geometry of 0x%x: %w", win, err)
	}
	pos, err := xproto.TranslateCoordinates(c.XUtil.Conn(), win, c.Root, 0, 0).Reply()
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("failed to translate coordinates of 0x%x: %w", win, err)
	}
	return int(pos.DstX), int(pos.DstY), int(geom.Width), int(geom.Height), nil
}
