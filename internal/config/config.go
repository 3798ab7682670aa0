// Package config loads and validates the perch YAML configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/1broseidon/perch/internal/arbiter"
	"github.com/1broseidon/perch/internal/platform"
	"github.com/1broseidon/perch/internal/spaces"
	"gopkg.in/yaml.v3"
)

// Region is a rectangle relative to the surface origin.
type Region struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is auto (text on a terminal, json otherwise), text or json.
	Format string `yaml:"format"`
}

// SurfaceConfig describes the overlay window at creation.
type SurfaceConfig struct {
	Title              string `yaml:"title"`
	X                  int    `yaml:"x"` // negative = centre on the pointer's monitor
	Y                  int    `yaml:"y"`
	Width              int    `yaml:"width"`
	Height             int    `yaml:"height"`
	OverrideRedirect   bool   `yaml:"override_redirect"`
	HasShadow          bool   `yaml:"has_shadow"`
	ExcludeFromCapture bool   `yaml:"exclude_from_capture"`
	Draggable          bool   `yaml:"draggable"`
	InputRegion        Region `yaml:"input_region"`
}

// ArbiterConfig tunes the level arbitration loop.
type ArbiterConfig struct {
	Interval           time.Duration `yaml:"interval"`
	Floor              int           `yaml:"floor"`
	DiagnosticEvery    int           `yaml:"diagnostic_every"`
	EventDriven        bool          `yaml:"event_driven"`
	FallbackMultiplier int           `yaml:"fallback_multiplier"`
}

// SpacesConfig selects the virtual-desktop strategy.
type SpacesConfig struct {
	Strategy     spaces.Strategy   `yaml:"strategy"`
	FollowMode   spaces.FollowMode `yaml:"follow_mode"`
	PollInterval time.Duration     `yaml:"poll_interval"` // 0 = off
}

// InputConfig toggles the focusless input router.
type InputConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SubmitConfig selects where submitted text goes.
type SubmitConfig struct {
	Log        bool `yaml:"log"`
	DBusNotify bool `yaml:"dbus_notify"`
}

// IPCConfig configures the status socket.
type IPCConfig struct {
	Enabled bool `yaml:"enabled"`
	// Socket overrides the default $XDG_RUNTIME_DIR/perch.sock.
	Socket string `yaml:"socket,omitempty"`
}

// Config is the effective configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Surface SurfaceConfig `yaml:"surface"`
	Arbiter ArbiterConfig `yaml:"arbiter"`
	Spaces  SpacesConfig  `yaml:"spaces"`
	Input   InputConfig   `yaml:"input"`
	Submit  SubmitConfig  `yaml:"submit"`
	IPC     IPCConfig     `yaml:"ipc"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Surface: SurfaceConfig{
			Title:              "perch",
			X:                  -1,
			Y:                  -1,
			Width:              400,
			Height:             300,
			ExcludeFromCapture: true,
			Draggable:          true,
			InputRegion:        Region{X: 20, Y: 135, Width: 250, Height: 30},
		},
		Arbiter: ArbiterConfig{
			Interval:           arbiter.DefaultInterval,
			Floor:              int(arbiter.DefaultFloor),
			DiagnosticEvery:    50,
			EventDriven:        true,
			FallbackMultiplier: 1,
		},
		Spaces: SpacesConfig{
			Strategy:   spaces.StrategyPin,
			FollowMode: spaces.FollowMove,
		},
		Input:  InputConfig{Enabled: true},
		Submit: SubmitConfig{Log: true},
		IPC:    IPCConfig{Enabled: true},
	}
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Floor returns the arbiter floor as a layer.
func (c *Config) Floor() platform.Layer {
	return platform.Layer(c.Arbiter.Floor)
}

// SlogLevel maps Level to a slog level. "warning" is accepted as warn and
// anything unrecognised yields info.
func (l LogConfig) SlogLevel() slog.Level {
	name := strings.ToLower(strings.TrimSpace(l.Level))
	if name == "warning" {
		name = "warn"
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid("log.level", "must be one of debug, info, warn, error (got %q)", c.Log.Level)
	}
	switch c.Log.Format {
	case "auto", "text", "json":
	default:
		return invalid("log.format", "must be one of auto, text, json (got %q)", c.Log.Format)
	}

	s := c.Surface
	if s.Width <= 0 {
		return invalid("surface.width", "must be positive (got %d)", s.Width)
	}
	if s.Height <= 0 {
		return invalid("surface.height", "must be positive (got %d)", s.Height)
	}
	r := s.InputRegion
	if r.Width <= 0 || r.Height <= 0 {
		return invalid("surface.input_region", "must have a positive size (got %dx%d)", r.Width, r.Height)
	}
	if r.X < 0 || r.Y < 0 || r.X+r.Width > s.Width || r.Y+r.Height > s.Height {
		return invalid("surface.input_region", "must lie inside the %dx%d surface", s.Width, s.Height)
	}

	a := c.Arbiter
	if a.Interval < arbiter.MinInterval || a.Interval > arbiter.MaxInterval {
		return invalid("arbiter.interval", "must be between %s and %s (got %s)",
			arbiter.MinInterval, arbiter.MaxInterval, a.Interval)
	}
	if a.Floor < int(platform.LayerDesktop) || a.Floor > int(platform.LayerOverride) {
		return invalid("arbiter.floor", "must be between %d and %d (got %d)",
			platform.LayerDesktop, platform.LayerOverride, a.Floor)
	}
	if a.DiagnosticEvery < 1 {
		return invalid("arbiter.diagnostic_every", "must be at least 1 (got %d)", a.DiagnosticEvery)
	}
	if a.FallbackMultiplier < 1 {
		return invalid("arbiter.fallback_multiplier", "must be at least 1 (got %d)", a.FallbackMultiplier)
	}

	switch c.Spaces.Strategy {
	case spaces.StrategyPin, spaces.StrategyFollow:
	default:
		return invalid("spaces.strategy", "must be pin or follow (got %q)", c.Spaces.Strategy)
	}
	switch c.Spaces.FollowMode {
	case spaces.FollowMove, spaces.FollowRespawn:
	default:
		return invalid("spaces.follow_mode", "must be move or respawn (got %q)", c.Spaces.FollowMode)
	}
	if c.Spaces.PollInterval < 0 {
		return invalid("spaces.poll_interval", "must not be negative (got %s)", c.Spaces.PollInterval)
	}
	if c.Spaces.PollInterval > 0 && c.Spaces.PollInterval < arbiter.MinInterval {
		return invalid("spaces.poll_interval", "must be 0 or at least %s (got %s)",
			arbiter.MinInterval, c.Spaces.PollInterval)
	}

	return nil
}

// Warnings returns non-fatal notes about the configuration.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.Spaces.Strategy == spaces.StrategyPin && c.Spaces.PollInterval > 0 {
		warnings = append(warnings, "spaces.poll_interval has no effect with strategy pin")
	}
	if !c.Arbiter.EventDriven && c.Arbiter.FallbackMultiplier > 1 {
		warnings = append(warnings, "arbiter.fallback_multiplier has no effect without event_driven")
	}
	if c.Surface.OverrideRedirect && c.Spaces.Strategy == spaces.StrategyFollow && c.Spaces.FollowMode == spaces.FollowMove {
		warnings = append(warnings, "override-redirect surfaces are not desktop members; follow/move is a no-op")
	}
	return warnings
}

func invalid(path, format string, args ...any) error {
	return &ValidationError{Path: path, Err: fmt.Errorf(format, args...)}
}
