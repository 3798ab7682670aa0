// Package fault defines process exit codes and the panic guard used at the
// top of every goroutine the overlay starts.
package fault

import (
	"log/slog"
	"os"
	"runtime/debug"
)

const (
	// ExitCrash reports an unexpected fault. Terminal for the supervisor.
	ExitCrash = 70
	// ExitRespawn reports a deliberate, announced respawn.
	ExitRespawn = 75
)

// Exit terminates the process. Tests replace it.
var Exit = os.Exit

// Recover must be deferred directly. It converts a panic into a logged fatal
// exit with ExitCrash, since window state cannot be resumed mid-mutation.
func Recover(logger *slog.Logger, origin string) {
	r := recover()
	if r == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("unexpected fault", "origin", origin, "panic", r, "stack", string(debug.Stack()))
	Exit(ExitCrash)
}
