package platform

import (
	"errors"
	"strconv"
)

// WindowID is a platform-neutral window identifier. Zero means "no window".
type WindowID uint32

// Layer is an ordered stacking priority. Higher values draw above lower ones.
type Layer int

// Stacking layers as observed on an EWMH window manager, bottom to top.
const (
	LayerDesktop Layer = iota
	LayerBelow
	LayerNormal
	LayerAbove
	LayerDock
	LayerFullscreen
	LayerOverride
)

// String returns a short name for known layers and the number otherwise.
func (l Layer) String() string {
	switch l {
	case LayerDesktop:
		return "desktop"
	case LayerBelow:
		return "below"
	case LayerNormal:
		return "normal"
	case LayerAbove:
		return "above"
	case LayerDock:
		return "dock"
	case LayerFullscreen:
		return "fullscreen"
	case LayerOverride:
		return "override"
	default:
		return strconv.Itoa(int(l))
	}
}

// Desktop identifies a virtual desktop. Compared by equality only.
type Desktop uint32

// AllDesktops is the EWMH sticky desktop value.
const AllDesktops Desktop = 0xFFFFFFFF

// Rect describes a rectangular region in screen coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Contains reports whether the point lies inside r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Surface is one entry of a stacking snapshot.
type Surface struct {
	ID    WindowID
	Layer Layer
	// Stack is the position in the server's stacking order, 0 = bottom.
	Stack int
}

// Snapshot is the list of on-screen surfaces seen during one probe.
type Snapshot []Surface

// Without returns the snapshot minus every surface in ids.
func (s Snapshot) Without(ids ...WindowID) Snapshot {
	out := make(Snapshot, 0, len(s))
	for _, surf := range s {
		skip := false
		for _, id := range ids {
			if surf.ID == id {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, surf)
		}
	}
	return out
}

// Topmost returns the surface with the highest layer, ties broken by stacking
// position. ok is false for an empty snapshot.
func (s Snapshot) Topmost() (top Surface, ok bool) {
	for i, surf := range s {
		if i == 0 || surf.Layer > top.Layer || (surf.Layer == top.Layer && surf.Stack > top.Stack) {
			top = surf
			ok = true
		}
	}
	return top, ok
}

var (
	// ErrProbeDenied is returned when the server refuses to enumerate windows.
	ErrProbeDenied = errors.New("window enumeration denied")
	// ErrNoSurface is returned when an operation needs a surface that is not published.
	ErrNoSurface = errors.New("surface not ready")
)

// Probe reads compositor state without changing it.
type Probe interface {
	Snapshot() (Snapshot, error)
}

// Control changes stacking of a surface.
type Control interface {
	SetLevel(id WindowID, level Layer) error
	// RaiseAbove stacks id directly above sibling, or at the absolute front
	// when sibling is zero. Must be safe to repeat.
	RaiseAbove(id WindowID, sibling WindowID) error
}

// LevelReader is implemented by controls that can verify an applied level.
type LevelReader interface {
	AppliedLevel(id WindowID) (Layer, error)
}

// Desktops reads and changes virtual desktop membership.
type Desktops interface {
	CurrentDesktop() (Desktop, error)
	SetDesktop(id WindowID, desktop Desktop) error
}
