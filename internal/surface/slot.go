package surface

import (
	"errors"
	"sync/atomic"

	"github.com/1broseidon/perch/internal/platform"
)

// ErrAlreadyPublished is returned when a second live handle is published.
var ErrAlreadyPublished = errors.New("surface handle already published")

// Slot holds the handle of the one live overlay surface. The UI goroutine
// writes it; background loops only read it. Zero means not ready.
type Slot struct {
	id atomic.Uint32
}

// Publish stores id. It fails when a different non-zero handle is live.
func (s *Slot) Publish(id platform.WindowID) error {
	if id == 0 {
		return platform.ErrNoSurface
	}
	if s.id.CompareAndSwap(0, uint32(id)) || s.id.Load() == uint32(id) {
		return nil
	}
	return ErrAlreadyPublished
}

// Clear resets the slot to "not ready" if it still holds id.
func (s *Slot) Clear(id platform.WindowID) {
	s.id.CompareAndSwap(uint32(id), 0)
}

// Load returns the published handle, or zero.
func (s *Slot) Load() platform.WindowID {
	return platform.WindowID(s.id.Load())
}
