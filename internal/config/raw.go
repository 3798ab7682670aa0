package config

import (
	"fmt"
	"time"

	"github.com/1broseidon/perch/internal/spaces"
	"gopkg.in/yaml.v3"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		// Not present.
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

// Raw* mirror the effective types with pointer fields so a file only
// overrides what it sets.

type RawRegion struct {
	X      *int `yaml:"x"`
	Y      *int `yaml:"y"`
	Width  *int `yaml:"width"`
	Height *int `yaml:"height"`
}

type RawLogConfig struct {
	Level  *string `yaml:"level"`
	Format *string `yaml:"format"`
}

type RawSurfaceConfig struct {
	Title              *string    `yaml:"title"`
	X                  *int       `yaml:"x"`
	Y                  *int       `yaml:"y"`
	Width              *int       `yaml:"width"`
	Height             *int       `yaml:"height"`
	OverrideRedirect   *bool      `yaml:"override_redirect"`
	HasShadow          *bool      `yaml:"has_shadow"`
	ExcludeFromCapture *bool      `yaml:"exclude_from_capture"`
	Draggable          *bool      `yaml:"draggable"`
	InputRegion        *RawRegion `yaml:"input_region"`
}

type RawArbiterConfig struct {
	Interval           *time.Duration `yaml:"interval"`
	Floor              *int           `yaml:"floor"`
	DiagnosticEvery    *int           `yaml:"diagnostic_every"`
	EventDriven        *bool          `yaml:"event_driven"`
	FallbackMultiplier *int           `yaml:"fallback_multiplier"`
}

type RawSpacesConfig struct {
	Strategy     *spaces.Strategy   `yaml:"strategy"`
	FollowMode   *spaces.FollowMode `yaml:"follow_mode"`
	PollInterval *time.Duration     `yaml:"poll_interval"`
}

type RawInputConfig struct {
	Enabled *bool `yaml:"enabled"`
}

type RawSubmitConfig struct {
	Log        *bool `yaml:"log"`
	DBusNotify *bool `yaml:"dbus_notify"`
}

type RawIPCConfig struct {
	Enabled *bool   `yaml:"enabled"`
	Socket  *string `yaml:"socket"`
}

type RawConfig struct {
	Include IncludeList       `yaml:"include"`
	Log     *RawLogConfig     `yaml:"log"`
	Surface *RawSurfaceConfig `yaml:"surface"`
	Arbiter *RawArbiterConfig `yaml:"arbiter"`
	Spaces  *RawSpacesConfig  `yaml:"spaces"`
	Input   *RawInputConfig   `yaml:"input"`
	Submit  *RawSubmitConfig  `yaml:"submit"`
	IPC     *RawIPCConfig     `yaml:"ipc"`
}

// merge returns c with every field set in overlay replaced.
func (c RawConfig) merge(overlay RawConfig) RawConfig {
	out := c
	out.Include = nil

	if overlay.Log != nil {
		base := RawLogConfig{}
		if out.Log != nil {
			base = *out.Log
		}
		mergePtr(&base.Level, overlay.Log.Level)
		mergePtr(&base.Format, overlay.Log.Format)
		out.Log = &base
	}

	if overlay.Surface != nil {
		base := RawSurfaceConfig{}
		if out.Surface != nil {
			base = *out.Surface
		}
		o := overlay.Surface
		mergePtr(&base.Title, o.Title)
		mergePtr(&base.X, o.X)
		mergePtr(&base.Y, o.Y)
		mergePtr(&base.Width, o.Width)
		mergePtr(&base.Height, o.Height)
		mergePtr(&base.OverrideRedirect, o.OverrideRedirect)
		mergePtr(&base.HasShadow, o.HasShadow)
		mergePtr(&base.ExcludeFromCapture, o.ExcludeFromCapture)
		mergePtr(&base.Draggable, o.Draggable)
		if o.InputRegion != nil {
			region := RawRegion{}
			if base.InputRegion != nil {
				region = *base.InputRegion
			}
			region = mergeRawRegion(region, *o.InputRegion)
			base.InputRegion = &region
		}
		out.Surface = &base
	}

	if overlay.Arbiter != nil {
		base := RawArbiterConfig{}
		if out.Arbiter != nil {
			base = *out.Arbiter
		}
		o := overlay.Arbiter
		mergePtr(&base.Interval, o.Interval)
		mergePtr(&base.Floor, o.Floor)
		mergePtr(&base.DiagnosticEvery, o.DiagnosticEvery)
		mergePtr(&base.EventDriven, o.EventDriven)
		mergePtr(&base.FallbackMultiplier, o.FallbackMultiplier)
		out.Arbiter = &base
	}

	if overlay.Spaces != nil {
		base := RawSpacesConfig{}
		if out.Spaces != nil {
			base = *out.Spaces
		}
		mergePtr(&base.Strategy, overlay.Spaces.Strategy)
		mergePtr(&base.FollowMode, overlay.Spaces.FollowMode)
		mergePtr(&base.PollInterval, overlay.Spaces.PollInterval)
		out.Spaces = &base
	}

	if overlay.Input != nil {
		base := RawInputConfig{}
		if out.Input != nil {
			base = *out.Input
		}
		mergePtr(&base.Enabled, overlay.Input.Enabled)
		out.Input = &base
	}

	if overlay.Submit != nil {
		base := RawSubmitConfig{}
		if out.Submit != nil {
			base = *out.Submit
		}
		mergePtr(&base.Log, overlay.Submit.Log)
		mergePtr(&base.DBusNotify, overlay.Submit.DBusNotify)
		out.Submit = &base
	}

	if overlay.IPC != nil {
		base := RawIPCConfig{}
		if out.IPC != nil {
			base = *out.IPC
		}
		mergePtr(&base.Enabled, overlay.IPC.Enabled)
		mergePtr(&base.Socket, overlay.IPC.Socket)
		out.IPC = &base
	}

	return out
}

func mergeRawRegion(base RawRegion, overlay RawRegion) RawRegion {
	mergePtr(&base.X, overlay.X)
	mergePtr(&base.Y, overlay.Y)
	mergePtr(&base.Width, overlay.Width)
	mergePtr(&base.Height, overlay.Height)
	return base
}

func mergePtr[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}
