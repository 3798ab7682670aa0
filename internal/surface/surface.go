// Package surface owns the overlay window: its creation properties, the
// handle slot shared with background loops, and painting of the text field.
package surface

import "github.com/1broseidon/perch/internal/platform"

// Capabilities describes how a surface interacts with focus.
type Capabilities interface {
	// CanBecomeFocused reports whether the surface may take keyboard focus.
	CanBecomeFocused() bool
	// AcceptsFirstClick reports whether a click while unfocused is handled
	// by the surface instead of only activating it.
	AcceptsFirstClick() bool
}

// SpaceMode selects how the surface belongs to virtual desktops.
type SpaceMode int

const (
	// AllSpaces marks the surface sticky at creation.
	AllSpaces SpaceMode = iota
	// Pinned leaves the surface on one desktop; a tracker may move it.
	Pinned
)

// Options are the declarative properties fixed at creation.
type Options struct {
	Title string
	// X and Y place the surface; negative values centre it on the monitor
	// under the pointer.
	X, Y                int
	Width, Height       int
	OverrideRedirect    bool
	HasShadow           bool
	ExcludedFromCapture bool
	Draggable           bool
	Spaces              SpaceMode
	// InputRegion is relative to the surface origin.
	InputRegion platform.Rect
}

// DefaultOptions returns the stock overlay geometry.
func DefaultOptions() Options {
	return Options{
		Title:               "perch",
		X:                   -1,
		Y:                   -1,
		Width:               400,
		Height:              300,
		ExcludedFromCapture: true,
		Draggable:           true,
		Spaces:              AllSpaces,
		InputRegion:         platform.Rect{X: 20, Y: 135, Width: 250, Height: 30},
	}
}

// View is what the text field shows.
type View struct {
	Active bool
	Text   string
}

// PointerHandler receives pointer-down positions relative to the surface.
// It returns true when the press should start a background drag.
type PointerHandler func(x, y int) (drag bool)
