package supervisor

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"syscall"

	"github.com/1broseidon/perch/internal/fault"
)

// Respawner restarts the current process on request. Under a supervisor it
// announces the respawn on the control pipe and exits with
// fault.ExitRespawn; otherwise it re-executes itself in place.
type Respawner struct {
	logger  *slog.Logger
	control io.Writer
	cleanup func()

	exit func(int)
	exec func(argv0 string, argv []string, envv []string) error
}

// NewRespawner inspects the environment for a supervisor.
func NewRespawner(logger *slog.Logger) *Respawner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Respawner{logger: logger, exit: fault.Exit, exec: syscall.Exec}
	if os.Getenv(EnvSupervised) == "1" {
		r.control = os.NewFile(controlFD, "perch-control")
	}
	return r
}

// Supervised reports whether a supervisor is listening.
func (r *Respawner) Supervised() bool {
	return r.control != nil
}

// SetCleanup sets a hook run once before the process is replaced or exits.
func (r *Respawner) SetCleanup(fn func()) {
	r.cleanup = fn
}

// Respawn does not return on success.
func (r *Respawner) Respawn(reason string) error {
	if r.cleanup != nil {
		cleanup := r.cleanup
		r.cleanup = nil
		cleanup()
	}

	if r.Supervised() {
		if _, err := fmt.Fprintf(r.control, "%s %s\n", announcePrefix, reason); err != nil {
			return fmt.Errorf("failed to announce respawn: %w", err)
		}
		r.logger.Info("respawn announced", "reason", reason)
		r.exit(fault.ExitRespawn)
		return nil
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve executable: %w", err)
	}
	r.logger.Info("re-executing in place", "reason", reason, "path", self)
	if err := r.exec(self, os.Args, os.Environ()); err != nil {
		return fmt.Errorf("failed to re-execute: %w", err)
	}
	return nil
}

// Generation returns the launch generation given by the supervisor, or 0.
func Generation() int {
	n, err := strconv.Atoi(os.Getenv(EnvGeneration))
	if err != nil {
		return 0
	}
	return n
}

// Lineage returns the supervisor lineage id, or "".
func Lineage() string {
	return os.Getenv(EnvLineage)
}
