package engine

import (
	"github.com/Iron-Ham/vitals/internal/config"
	"github.com/Iron-Ham/vitals/internal/logging"
	"github.com/Iron-Ham/vitals/internal/profile"
)

// Options configures a new Engine. The zero value is usable: it yields an
// engine with default window and subscriber limits, built-in profiles, and
// no file logging.
type Options struct {
	// Logger is used for all engine logging when set. When nil, a file
	// logger is created from LogDir and LogLevel, or a no-op logger if
	// LogDir is empty.
	Logger *logging.Logger

	// LogDir is the directory for log files. Ignored when Logger is set.
	LogDir string

	// LogLevel is the minimum log level (debug, info, warn, error).
	// Ignored when Logger is set.
	LogLevel string

	// LogRotation bounds log file growth. The zero value falls back to
	// DefaultRotationConfig.
	LogRotation logging.RotationConfig

	// WindowSize is the per-session classification window capacity in
	// bytes. Zero uses the classifier default.
	WindowSize int

	// MaxSubscribersPerEvent is the soft subscriber cap per event name.
	// Zero uses the bus default.
	MaxSubscribersPerEvent int

	// ProfileOverrides adjusts the built-in agent profiles by agent type.
	ProfileOverrides map[string]profile.Override

	// ProfileOverridePath is a YAML file watched for profile overrides.
	// Empty disables watching.
	ProfileOverridePath string

	// EventLog mirrors every published event to the debug log when true.
	EventLog bool
}

// OptionsFromConfig maps a loaded configuration onto engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		WindowSize:             cfg.Classifier.WindowSize,
		MaxSubscribersPerEvent: cfg.Bus.MaxSubscribersPerEvent,
		ProfileOverrides:       profileOverrides(cfg.Profiles),
		ProfileOverridePath:    cfg.Engine.ProfileOverridePath,
		EventLog:               cfg.Engine.EventLog,
	}

	if cfg.Logging.Enabled {
		opts.LogDir = cfg.LogDir()
		opts.LogLevel = cfg.Logging.Level
		opts.LogRotation = logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		}
	}

	return opts
}

// profileOverrides converts config override entries into profile overrides.
func profileOverrides(overrides map[string]config.ProfileOverride) map[string]profile.Override {
	if len(overrides) == 0 {
		return nil
	}

	out := make(map[string]profile.Override, len(overrides))
	for agentType, o := range overrides {
		out[agentType] = profile.Override{
			BusyPatterns:   o.BusyPatterns,
			PromptPatterns: o.PromptPatterns,
			Replace:        o.Replace,
		}
	}
	return out
}
