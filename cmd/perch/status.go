package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/1broseidon/perch/internal/ipc"
)

var statusOpts struct {
	json bool
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the running overlay",
	Long: `Query the running overlay over its control socket and print its
identity, current desktop, arbiter counters and input state.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Ask the running overlay to re-read its config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().Reload(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "reloaded")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reloadCmd)

	statusCmd.Flags().BoolVar(&statusOpts.json, "json", false, "Output raw JSON")
}

// newClient honours ipc.socket from the config.
func newClient() *ipc.Client {
	if cfg != nil && cfg.IPC.Socket != "" {
		return ipc.NewClientAt(cfg.IPC.Socket)
	}
	return ipc.NewClient()
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := newClient().GetStatus()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if statusOpts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}
	printStatus(out, status)
	return nil
}

func printStatus(w io.Writer, s *ipc.StatusData) {
	fmt.Fprintf(w, "instance:   %s (pid %d, generation %d)\n", s.InstanceID, s.PID, s.Generation)
	if s.Lineage != "" {
		fmt.Fprintf(w, "lineage:    %s\n", s.Lineage)
	}
	fmt.Fprintf(w, "uptime:     %s\n", time.Duration(s.UptimeSeconds)*time.Second)
	fmt.Fprintf(w, "surface:    0x%x\n", s.Handle)
	if s.Desktop >= 0 {
		fmt.Fprintf(w, "desktop:    %d\n", s.Desktop)
	} else {
		fmt.Fprintln(w, "desktop:    unknown")
	}
	strategy := s.Strategy
	if s.FollowMode != "" {
		strategy += "/" + s.FollowMode
	}
	fmt.Fprintf(w, "spaces:     %s (handled %d, dropped %d, failures %d)\n",
		strategy, s.Spaces.Handled, s.Spaces.Dropped, s.Spaces.Failures)
	fmt.Fprintf(w, "arbiter:    ticks %d, nudges %d, skipped %d, probe failures %d, clamps %d\n",
		s.Arbiter.Ticks, s.Arbiter.Nudges, s.Arbiter.Skipped, s.Arbiter.ProbeFailures, s.Arbiter.Clamps)
	fmt.Fprintf(w, "level:      requested %d, applied %d\n", s.Arbiter.LastRequested, s.Arbiter.LastApplied)
	state := "inactive"
	if s.Input.Active {
		state = "active"
	}
	fmt.Fprintf(w, "input:      %s, buffer %d, submitted %d, swallowed %d, forwarded %d\n",
		state, s.Input.BufferLen, s.Input.Submitted, s.Input.Swallowed, s.Input.Forwarded)
}
