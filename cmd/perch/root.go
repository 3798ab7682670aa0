package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/1broseidon/perch/internal/config"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	cfgSources *config.LoadResult
	globalOpts struct {
		verbose    bool
		configPath string
	}
	logLevel slog.LevelVar
	logger   *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "perch",
	Short: "Keep a small overlay above every other window",
	Long: `perch keeps a small overlay window above all other windows on an
X11/EWMH desktop, including other always-on-top clients, follows virtual
desktop switches, and accepts typed text without ever taking keyboard focus
from the application you are working in.

Use "perch run" to start the overlay under its supervisor.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if globalOpts.configPath == "" {
			path, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			globalOpts.configPath = path
		}

		res, err := config.LoadFromPath(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfgSources = res
		cfg = res.Config

		setupLogger(cmd.ErrOrStderr(), cfg.Log)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: $XDG_CONFIG_HOME/perch/config.yaml)")
}

// setupLogger configures the global slog logger. Level comes from the config
// unless --verbose forces debug; the level variable is later adjusted on
// config reload.
func setupLogger(w io.Writer, lc config.LogConfig) {
	level := lc.SlogLevel()
	if globalOpts.verbose {
		level = slog.LevelDebug
	}
	logLevel.Set(level)

	logger = newLogger(w, lc.Format, &logLevel)
	slog.SetDefault(logger)
}

// newLogger builds a text handler for terminals and a JSON handler otherwise,
// unless format forces one of them.
func newLogger(w io.Writer, format string, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	useJSON := format == "json"
	if format == "" || format == "auto" {
		useJSON = !isTerminal(w)
	}
	if useJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
