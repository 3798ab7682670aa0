package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/1broseidon/perch/internal/spaces"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.TrimSpace(data)+"\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.Arbiter.Interval != 100*time.Millisecond {
		t.Fatalf("expected default interval 100ms, got %s", cfg.Arbiter.Interval)
	}
	if cfg.Arbiter.Floor != 3 {
		t.Fatalf("expected default floor 3, got %d", cfg.Arbiter.Floor)
	}
	if cfg.Spaces.Strategy != spaces.StrategyPin {
		t.Fatalf("expected default strategy pin, got %q", cfg.Spaces.Strategy)
	}
	if len(cfg.Warnings()) != 0 {
		t.Fatalf("expected no warnings for defaults, got %v", cfg.Warnings())
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	res, err := LoadFromPath(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(res.Files) != 0 {
		t.Fatalf("expected no files, got %v", res.Files)
	}
	if res.Config.Surface.Width != 400 {
		t.Fatalf("expected default width, got %d", res.Config.Surface.Width)
	}
}

func TestLoadFromPath_EmptyFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "# empty")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Arbiter.Interval != 100*time.Millisecond {
		t.Fatalf("expected default interval, got %s", res.Config.Arbiter.Interval)
	}
}

func TestLoadFromPath_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
arbiter:
  interval: 250ms
  floor: 4
spaces:
  strategy: follow
  follow_mode: respawn
surface:
  input_region:
    width: 200
`)

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := res.Config
	if cfg.Arbiter.Interval != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %s", cfg.Arbiter.Interval)
	}
	if cfg.Arbiter.Floor != 4 {
		t.Fatalf("expected floor 4, got %d", cfg.Arbiter.Floor)
	}
	if cfg.Arbiter.DiagnosticEvery != 50 {
		t.Fatalf("expected untouched diagnostic_every, got %d", cfg.Arbiter.DiagnosticEvery)
	}
	if cfg.Spaces.Strategy != spaces.StrategyFollow || cfg.Spaces.FollowMode != spaces.FollowRespawn {
		t.Fatalf("unexpected spaces config %+v", cfg.Spaces)
	}
	if cfg.Surface.InputRegion.Width != 200 || cfg.Surface.InputRegion.X != 20 {
		t.Fatalf("expected merged input region, got %+v", cfg.Surface.InputRegion)
	}
}

func TestLoadFromPath_StrictUnknownKeyErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "unknown_key: 1")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error for unknown key")
	}
	if !strings.Contains(err.Error(), "unknown_key") && !strings.Contains(err.Error(), "field") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Fatalf("expected error to include file path, got %v", err)
	}
}

func TestLoadFromPath_ValidationErrorHasSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
arbiter:
  interval: 1ms
`)

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if verr.Path != "arbiter.interval" {
		t.Fatalf("expected path arbiter.interval, got %q", verr.Path)
	}
	if verr.Source.Line != 2 {
		t.Fatalf("expected line 2, got %d", verr.Source.Line)
	}
	if !strings.Contains(err.Error(), path+":2:") {
		t.Fatalf("expected file:line prefix, got %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"interval too long", func(c *Config) { c.Arbiter.Interval = 6 * time.Second }, "arbiter.interval"},
		{"floor too high", func(c *Config) { c.Arbiter.Floor = 7 }, "arbiter.floor"},
		{"floor negative", func(c *Config) { c.Arbiter.Floor = -1 }, "arbiter.floor"},
		{"diagnostic zero", func(c *Config) { c.Arbiter.DiagnosticEvery = 0 }, "arbiter.diagnostic_every"},
		{"multiplier zero", func(c *Config) { c.Arbiter.FallbackMultiplier = 0 }, "arbiter.fallback_multiplier"},
		{"bad strategy", func(c *Config) { c.Spaces.Strategy = "teleport" }, "spaces.strategy"},
		{"bad follow mode", func(c *Config) { c.Spaces.FollowMode = "jump" }, "spaces.follow_mode"},
		{"tiny poll", func(c *Config) { c.Spaces.PollInterval = time.Millisecond }, "spaces.poll_interval"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"zero width", func(c *Config) { c.Surface.Width = 0 }, "surface.width"},
		{"region outside", func(c *Config) { c.Surface.InputRegion.X = 300 }, "surface.input_region"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Path != tt.path {
				t.Fatalf("expected path %q, got %q", tt.path, verr.Path)
			}
		})
	}
}

func TestLoadFromPath_IncludeDirectoryOrderAndMainOverrides(t *testing.T) {
	dir := t.TempDir()
	incDir := filepath.Join(dir, "conf.d")
	if err := os.Mkdir(incDir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, filepath.Join(incDir, "10-a.yaml"), "arbiter: {floor: 4, diagnostic_every: 10}")
	writeFile(t, filepath.Join(incDir, "20-b.yml"), "arbiter: {floor: 5}")
	writeFile(t, filepath.Join(incDir, "ignored.txt"), "arbiter: {floor: 6}")

	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, `
include: conf.d
arbiter:
  diagnostic_every: 20
`)

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Arbiter.Floor != 5 {
		t.Fatalf("expected later include to win floor, got %d", res.Config.Arbiter.Floor)
	}
	if res.Config.Arbiter.DiagnosticEvery != 20 {
		t.Fatalf("expected main file to win, got %d", res.Config.Arbiter.DiagnosticEvery)
	}
	if len(res.Files) != 3 {
		t.Fatalf("expected 3 files, got %v", res.Files)
	}
}

func TestLoadFromPath_IncludeMissingPathHasContext(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "include: missing.yaml")

	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "missing.yaml") || !strings.Contains(err.Error(), ":1:") {
		t.Fatalf("expected include context, got %v", err)
	}
}

func TestLoadFromPath_IncludeCycleDetection(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	writeFile(t, a, "include: b.yaml")
	writeFile(t, b, "include: a.yaml")

	_, err := LoadFromPath(a)
	if err == nil || !strings.Contains(err.Error(), "include cycle") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestExplain_SourceAndDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
spaces:
  strategy: follow
`)
	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	val, src, err := Explain(res, "spaces.strategy")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if val != "follow" {
		t.Fatalf("expected follow, got %#v", val)
	}
	if src.Kind != SourceFile || src.Line != 2 {
		t.Fatalf("expected file source at line 2, got %#v", src)
	}

	val, src, err = Explain(res, "arbiter.interval")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if val != "100ms" {
		t.Fatalf("expected 100ms, got %#v", val)
	}
	if src.Kind != SourceDefault {
		t.Fatalf("expected default source, got %#v", src)
	}

	if _, _, err := Explain(res, "arbiter.nope"); err == nil {
		t.Fatalf("expected unknown path error")
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Arbiter.Interval = 300 * time.Millisecond
	cfg.Spaces.Strategy = spaces.StrategyFollow
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Arbiter.Interval != 300*time.Millisecond || res.Config.Spaces.Strategy != spaces.StrategyFollow {
		t.Fatalf("round trip lost values: %+v", res.Config)
	}
}

func TestWarnings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Spaces.PollInterval = time.Second
	cfg.Arbiter.EventDriven = false
	cfg.Arbiter.FallbackMultiplier = 3
	if got := len(cfg.Warnings()); got != 2 {
		t.Fatalf("expected 2 warnings, got %d: %v", got, cfg.Warnings())
	}
}

func TestLogConfigSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for name, want := range cases {
		if got := (LogConfig{Level: name}).SlogLevel(); got != want {
			t.Fatalf("SlogLevel(%q)=%v, want %v", name, got, want)
		}
	}
}

func TestWarningLevelLoadsAsWarn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "log:\n  level: warning\n")

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if got := res.Config.Log.SlogLevel(); got != slog.LevelWarn {
		t.Fatalf("level=%v, want warn", got)
	}
}
