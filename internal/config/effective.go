package config

import (
	"fmt"
)

type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// BuildEffectiveConfig applies raw on top of DefaultConfig. Validation is
// left to the caller so errors can be tied to their file location.
func BuildEffectiveConfig(raw RawConfig) *Config {
	cfg := DefaultConfig()

	if l := raw.Log; l != nil {
		setIf(&cfg.Log.Level, l.Level)
		setIf(&cfg.Log.Format, l.Format)
	}

	if s := raw.Surface; s != nil {
		setIf(&cfg.Surface.Title, s.Title)
		setIf(&cfg.Surface.X, s.X)
		setIf(&cfg.Surface.Y, s.Y)
		setIf(&cfg.Surface.Width, s.Width)
		setIf(&cfg.Surface.Height, s.Height)
		setIf(&cfg.Surface.OverrideRedirect, s.OverrideRedirect)
		setIf(&cfg.Surface.HasShadow, s.HasShadow)
		setIf(&cfg.Surface.ExcludeFromCapture, s.ExcludeFromCapture)
		setIf(&cfg.Surface.Draggable, s.Draggable)
		if r := s.InputRegion; r != nil {
			setIf(&cfg.Surface.InputRegion.X, r.X)
			setIf(&cfg.Surface.InputRegion.Y, r.Y)
			setIf(&cfg.Surface.InputRegion.Width, r.Width)
			setIf(&cfg.Surface.InputRegion.Height, r.Height)
		}
	}

	if a := raw.Arbiter; a != nil {
		setIf(&cfg.Arbiter.Interval, a.Interval)
		setIf(&cfg.Arbiter.Floor, a.Floor)
		setIf(&cfg.Arbiter.DiagnosticEvery, a.DiagnosticEvery)
		setIf(&cfg.Arbiter.EventDriven, a.EventDriven)
		setIf(&cfg.Arbiter.FallbackMultiplier, a.FallbackMultiplier)
	}

	if s := raw.Spaces; s != nil {
		setIf(&cfg.Spaces.Strategy, s.Strategy)
		setIf(&cfg.Spaces.FollowMode, s.FollowMode)
		setIf(&cfg.Spaces.PollInterval, s.PollInterval)
	}

	if raw.Input != nil {
		setIf(&cfg.Input.Enabled, raw.Input.Enabled)
	}
	if raw.Submit != nil {
		setIf(&cfg.Submit.Log, raw.Submit.Log)
		setIf(&cfg.Submit.DBusNotify, raw.Submit.DBusNotify)
	}
	if raw.IPC != nil {
		setIf(&cfg.IPC.Enabled, raw.IPC.Enabled)
		setIf(&cfg.IPC.Socket, raw.IPC.Socket)
	}

	return cfg
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
