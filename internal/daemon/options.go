// Package daemon wires the overlay surface, its background loops and the
// status endpoint into one running process.
package daemon

import (
	"log/slog"

	"github.com/1broseidon/perch/internal/arbiter"
	"github.com/1broseidon/perch/internal/config"
	"github.com/1broseidon/perch/internal/platform"
	"github.com/1broseidon/perch/internal/spaces"
	"github.com/1broseidon/perch/internal/submit"
	"github.com/1broseidon/perch/internal/surface"
)

// surfaceOptions maps the surface section of cfg to creation options. The
// pin strategy makes the surface sticky; follow leaves it on one desktop.
func surfaceOptions(cfg *config.Config) surface.Options {
	s := cfg.Surface
	opts := surface.Options{
		Title:               s.Title,
		X:                   s.X,
		Y:                   s.Y,
		Width:               s.Width,
		Height:              s.Height,
		OverrideRedirect:    s.OverrideRedirect,
		HasShadow:           s.HasShadow,
		ExcludedFromCapture: s.ExcludeFromCapture,
		Draggable:           s.Draggable,
		Spaces:              surface.AllSpaces,
		InputRegion: platform.Rect{
			X:      s.InputRegion.X,
			Y:      s.InputRegion.Y,
			Width:  s.InputRegion.Width,
			Height: s.InputRegion.Height,
		},
	}
	if cfg.Spaces.Strategy == spaces.StrategyFollow {
		opts.Spaces = surface.Pinned
	}
	return opts
}

func arbiterConfig(cfg *config.Config, logger *slog.Logger) arbiter.Config {
	return arbiter.Config{
		Interval:           cfg.Arbiter.Interval,
		Floor:              cfg.Floor(),
		FallbackMultiplier: cfg.Arbiter.FallbackMultiplier,
		DiagnosticEvery:    cfg.Arbiter.DiagnosticEvery,
		Logger:             logger.With("component", "arbiter"),
	}
}

func spacesConfig(cfg *config.Config, logger *slog.Logger) spaces.Config {
	return spaces.Config{
		Strategy:     cfg.Spaces.Strategy,
		Mode:         cfg.Spaces.FollowMode,
		PollInterval: cfg.Spaces.PollInterval,
		Logger:       logger.With("component", "spaces"),
	}
}

// dbusConnector is replaced in tests.
var dbusConnector = func(logger *slog.Logger) (submit.Sink, error) {
	return submit.NewDBusSink(logger)
}

// buildSinks returns the configured submit sinks. An unavailable session bus
// disables only the D-Bus sink.
func buildSinks(cfg *config.Config, logger *slog.Logger) submit.Fanout {
	var sinks submit.Fanout
	if cfg.Submit.Log {
		sinks = append(sinks, submit.LogSink{Logger: logger.With("component", "submit")})
	}
	if cfg.Submit.DBusNotify {
		sink, err := dbusConnector(logger)
		if err != nil {
			logger.Warn("desktop notifications disabled", "error", err)
		} else {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}
