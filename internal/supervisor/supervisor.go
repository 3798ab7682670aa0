// Package supervisor runs the overlay process as a child and relaunches it
// when, and only when, the child announced a deliberate respawn and exited
// with fault.ExitRespawn.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/1broseidon/perch/internal/fault"
	"github.com/google/uuid"
)

// Environment passed to supervised children.
const (
	EnvSupervised = "PERCH_SUPERVISED"
	EnvGeneration = "PERCH_GENERATION"
	EnvLineage    = "PERCH_LINEAGE"
)

// controlFD is the child's end of the announcement pipe (first ExtraFiles entry).
const controlFD = 3

// announcePrefix starts the one-line respawn announcement.
const announcePrefix = "respawn"

// DefaultMinSpacing is the minimum time between two launches.
const DefaultMinSpacing = 200 * time.Millisecond

// Config holds configuration for the supervisor.
type Config struct {
	// Path and Args describe the child command; Args excludes the program name.
	Path       string
	Args       []string
	MinSpacing time.Duration
	Logger     *slog.Logger
}

// Supervisor launches and relaunches the child.
type Supervisor struct {
	cfg     Config
	logger  *slog.Logger
	lineage string

	// Generation of the most recent launch, starting at 1.
	generation int
}

// New creates a supervisor.
func New(cfg Config) *Supervisor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MinSpacing <= 0 {
		cfg.MinSpacing = DefaultMinSpacing
	}
	return &Supervisor{cfg: cfg, logger: cfg.Logger, lineage: uuid.NewString()}
}

// Lineage identifies this supervisor across child generations.
func (s *Supervisor) Lineage() string { return s.lineage }

// Generation returns the number of launches so far.
func (s *Supervisor) Generation() int { return s.generation }

// Run launches the child until it exits for a reason other than an announced
// respawn, and returns that exit code. Cancelling ctx sends SIGTERM to the
// running child and returns its exit code once it is gone.
func (s *Supervisor) Run(ctx context.Context) (int, error) {
	var lastStart time.Time
	for {
		if wait := s.cfg.MinSpacing - time.Since(lastStart); !lastStart.IsZero() && wait > 0 {
			select {
			case <-ctx.Done():
				return 0, nil
			case <-time.After(wait):
			}
		}
		lastStart = time.Now()
		s.generation++

		res, err := s.launch(ctx)
		if err != nil {
			return fault.ExitCrash, err
		}
		if ctx.Err() != nil {
			s.logger.Info("child stopped", "code", res.code, "generation", s.generation)
			return res.code, nil
		}

		switch {
		case res.code == fault.ExitRespawn && res.announced:
			s.logger.Info("child requested respawn", "reason", res.reason, "generation", s.generation)
			continue
		case res.code == fault.ExitRespawn:
			s.logger.Error("child exited with respawn code without announcement, treating as crash",
				"generation", s.generation)
			return fault.ExitCrash, nil
		case res.code == fault.ExitCrash:
			s.logger.Error("child crashed", "generation", s.generation)
		default:
			s.logger.Info("child exited", "code", res.code, "generation", s.generation)
		}
		return res.code, nil
	}
}

type result struct {
	code      int
	announced bool
	reason    string
}

func (s *Supervisor) launch(ctx context.Context) (result, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return result{}, fmt.Errorf("failed to create control pipe: %w", err)
	}
	defer r.Close()

	cmd := exec.Command(s.cfg.Path, s.cfg.Args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{w}
	cmd.Env = append(os.Environ(),
		EnvSupervised+"=1",
		EnvGeneration+"="+strconv.Itoa(s.generation),
		EnvLineage+"="+s.lineage,
	)

	if err := cmd.Start(); err != nil {
		w.Close()
		return result{}, fmt.Errorf("failed to start child: %w", err)
	}
	w.Close()
	s.logger.Debug("child started", "pid", cmd.Process.Pid, "generation", s.generation)

	announced := make(chan string, 1)
	go readAnnouncement(r, announced)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = cmd.Process.Signal(syscall.SIGTERM)
		case <-stop:
		}
	}()

	res := result{code: exitCode(cmd.Wait())}
	// The write end closes when the child exits, so this cannot block long.
	if reason, ok := <-announced; ok {
		res.announced, res.reason = true, reason
	}
	return res, nil
}

// readAnnouncement delivers the reason of the first respawn line and closes
// out at EOF.
func readAnnouncement(r *os.File, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if reason, ok := parseAnnouncement(scanner.Text()); ok {
			out <- reason
			// Drain so the child never blocks on a full pipe.
			for scanner.Scan() {
			}
			return
		}
	}
}

func parseAnnouncement(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == announcePrefix {
		return "", true
	}
	if reason, ok := strings.CutPrefix(line, announcePrefix+" "); ok {
		return strings.TrimSpace(reason), true
	}
	return "", false
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return 128 + int(status.Signal())
		}
		return exitErr.ExitCode()
	}
	return fault.ExitCrash
}
