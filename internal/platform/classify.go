package platform

// WindowState is the subset of window properties that decides its layer.
type WindowState struct {
	Types            []string
	States           []string
	OverrideRedirect bool
}

// Classify maps EWMH window type and state onto the layer scale. The order of
// checks follows the EWMH stacking recommendation: override-redirect windows
// are outside window manager control, then fullscreen, dock, above, below,
// desktop.
func Classify(w WindowState) Layer {
	if w.OverrideRedirect {
		return LayerOverride
	}
	switch {
	case has(w.States, "_NET_WM_STATE_FULLSCREEN"):
		return LayerFullscreen
	case has(w.Types, "_NET_WM_WINDOW_TYPE_DOCK"):
		return LayerDock
	case has(w.States, "_NET_WM_STATE_ABOVE"):
		return LayerAbove
	case has(w.Types, "_NET_WM_WINDOW_TYPE_DESKTOP"):
		return LayerDesktop
	case has(w.States, "_NET_WM_STATE_BELOW"):
		return LayerBelow
	default:
		return LayerNormal
	}
}

func has(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
