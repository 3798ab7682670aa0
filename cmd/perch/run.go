package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/1broseidon/perch/internal/daemon"
	"github.com/1broseidon/perch/internal/fault"
	"github.com/1broseidon/perch/internal/runtimepath"
	"github.com/1broseidon/perch/internal/supervisor"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the overlay under a supervisor (foreground)",
	Long: `Start the overlay as a supervised child process.

The supervisor relaunches the overlay when it announces a deliberate respawn
(spaces.follow_mode: respawn) and exits with the child's exit code otherwise.
SIGINT and SIGTERM are forwarded to the child.`,
	Args: cobra.NoArgs,
	RunE: runSupervisor,
}

var surfaceCmd = &cobra.Command{
	Use:    "surface",
	Short:  "Run the overlay process itself",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE:   runSurface,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(surfaceCmd)
}

func runSupervisor(cmd *cobra.Command, args []string) error {
	lockPath, err := runtimepath.LockPath()
	if err != nil {
		return err
	}
	lock, err := supervisor.AcquireLock(lockPath)
	if err != nil {
		return err
	}

	self, err := os.Executable()
	if err != nil {
		lock.Release()
		return fmt.Errorf("failed to resolve executable: %w", err)
	}
	childArgs := []string{"surface", "--config", globalOpts.configPath}
	if globalOpts.verbose {
		childArgs = append(childArgs, "--verbose")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := supervisor.New(supervisor.Config{
		Path:   self,
		Args:   childArgs,
		Logger: logger.With("component", "supervisor"),
	})
	logger.Info("supervisor started", "lineage", sup.Lineage(), "version", version)

	code, err := sup.Run(ctx)
	lock.Release()
	if err != nil {
		logger.Error("supervisor failed", "error", err)
	}
	os.Exit(code)
	return nil
}

func runSurface(cmd *cobra.Command, args []string) error {
	defer fault.Recover(logger, "main")

	respawner := supervisor.NewRespawner(logger.With("component", "respawn"))
	if !respawner.Supervised() {
		lockPath, err := runtimepath.LockPath()
		if err != nil {
			return err
		}
		lock, err := supervisor.AcquireLock(lockPath)
		if err != nil {
			return err
		}
		defer lock.Release()
	}

	instanceID := uuid.NewString()
	logger = logger.With("instance", instanceID, "generation", supervisor.Generation())

	d, err := daemon.New(daemon.Options{
		Config:     cfg,
		ConfigPath: globalOpts.configPath,
		LogLevel:   &logLevel,
		Logger:     logger,
		InstanceID: instanceID,
		Lineage:    supervisor.Lineage(),
		Generation: supervisor.Generation(),
		Respawner:  respawner,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("perch starting", "version", version, "supervised", respawner.Supervised())
	err = d.Run(ctx)
	if errors.Is(err, daemon.ErrSurfaceLost) {
		return respawner.Respawn("surface lost")
	}
	return err
}
