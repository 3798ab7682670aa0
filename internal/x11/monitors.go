package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// Monitor represents a physical display
type Monitor struct {
	Name   string
	X      int
	Y      int
	Width  int
	Height int
}

func (m Monitor) contains(x, y int) bool {
	return x >= m.X && x < m.X+m.Width && y >= m.Y && y < m.Y+m.Height
}

// Monitors lists active CRTCs via XRandR.
func (c *Connection) Monitors() ([]Monitor, error) {
	if err := randr.Init(c.XUtil.Conn()); err != nil {
		return nil, fmt.Errorf("randr init failed: %w", err)
	}

	resources, err := randr.GetScreenResources(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var monitors []Monitor
	for i, crtc := range resources.Crtcs {
		info, err := randr.GetCrtcInfo(c.XUtil.Conn(), crtc, resources.ConfigTimestamp).Reply()
		if err != nil || info.Width == 0 || info.Height == 0 || len(info.Outputs) == 0 {
			continue
		}
		name := fmt.Sprintf("crtc-%d", i)
		if out, err := randr.GetOutputInfo(c.XUtil.Conn(), info.Outputs[0], resources.ConfigTimestamp).Reply(); err == nil {
			name = string(out.Name)
		}
		monitors = append(monitors, Monitor{
			Name:   name,
			X:      int(info.X),
			Y:      int(info.Y),
			Width:  int(info.Width),
			Height: int(info.Height),
		})
	}
	return monitors, nil
}

// PlacementArea returns the usable area of the monitor under the pointer,
// clipped to the current desktop's _NET_WORKAREA when the window manager
// publishes one. Without RandR the whole root window is used.
func (c *Connection) PlacementArea() (Monitor, error) {
	area, err := c.pointerMonitor()
	if err != nil {
		return Monitor{}, err
	}

	workAreas, err := ewmh.WorkareaGet(c.XUtil)
	if err != nil || len(workAreas) == 0 {
		return area, nil
	}
	idx := 0
	if cur, err := ewmh.CurrentDesktopGet(c.XUtil); err == nil && int(cur) < len(workAreas) {
		idx = int(cur)
	}
	wa := workAreas[idx]

	x1 := max(area.X, int(wa.X))
	y1 := max(area.Y, int(wa.Y))
	x2 := min(area.X+area.Width, int(wa.X)+int(wa.Width))
	y2 := min(area.Y+area.Height, int(wa.Y)+int(wa.Height))
	if x2 > x1 && y2 > y1 {
		area.X, area.Y = x1, y1
		area.Width, area.Height = x2-x1, y2-y1
	}
	return area, nil
}

func (c *Connection) pointerMonitor() (Monitor, error) {
	monitors, err := c.Monitors()
	if err != nil || len(monitors) == 0 {
		return c.rootMonitor()
	}

	pointer, err := xproto.QueryPointer(c.XUtil.Conn(), c.Root).Reply()
	if err == nil {
		for _, mon := range monitors {
			if mon.contains(int(pointer.RootX), int(pointer.RootY)) {
				return mon, nil
			}
		}
	}
	return monitors[0], nil
}

func (c *Connection) rootMonitor() (Monitor, error) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(c.Root)).Reply()
	if err != nil {
		return Monitor{}, fmt.Errorf("failed to get root geometry: %w", err)
	}
	return Monitor{Name: "root", Width: int(geom.Width), Height: int(geom.Height)}, nil
}

// Centered returns the top-left corner that centres a width x height box in m.
func (m Monitor) Centered(width, height int) (x, y int) {
	return m.X + (m.Width-width)/2, m.Y + (m.Height-height)/2
}
