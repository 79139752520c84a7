// Package config provides configuration management for vitals.
// Configuration is loaded from ~/.config/vitals/config.yaml (or
// $XDG_CONFIG_HOME/vitals/config.yaml), with environment variables
// prefixed VITALS_ taking precedence over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all configuration for vitals.
type Config struct {
	// Engine contains engine-level settings.
	Engine EngineConfig `mapstructure:"engine"`

	// Classifier contains terminal output classification settings.
	Classifier ClassifierConfig `mapstructure:"classifier"`

	// Bus contains event bus settings.
	Bus BusConfig `mapstructure:"bus"`

	// Logging contains logging settings.
	Logging LoggingConfig `mapstructure:"logging"`

	// Profiles contains per-agent-type pattern overrides, keyed by
	// agent type (e.g. "claude", "gemini").
	Profiles map[string]ProfileOverride `mapstructure:"profiles"`
}

// EngineConfig contains engine-level settings.
type EngineConfig struct {
	// EventLog mirrors every published event to the debug log when true.
	EventLog bool `mapstructure:"event_log"`

	// ProfileOverridePath is an optional YAML file to watch for profile
	// overrides. Empty disables watching.
	ProfileOverridePath string `mapstructure:"profile_override_path"`
}

// ClassifierConfig contains terminal output classification settings.
type ClassifierConfig struct {
	// WindowSize is the per-session output window capacity in bytes.
	// Older output is evicted once the window fills.
	WindowSize int `mapstructure:"window_size"`
}

// BusConfig contains event bus settings.
type BusConfig struct {
	// MaxSubscribersPerEvent is the soft cap on subscribers for a single
	// event name. Crossing it logs a warning, subscriptions still succeed.
	MaxSubscribersPerEvent int `mapstructure:"max_subscribers_per_event"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Enabled controls whether file logging is active.
	Enabled bool `mapstructure:"enabled"`

	// Level is the minimum log level (debug, info, warn, error).
	Level string `mapstructure:"level"`

	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `mapstructure:"max_size_mb"`

	// MaxBackups is the number of rotated log files to keep.
	MaxBackups int `mapstructure:"max_backups"`

	// Dir overrides the log directory. Empty uses <config dir>/logs.
	Dir string `mapstructure:"dir"`
}

// ProfileOverride adjusts the classification patterns for one agent type.
type ProfileOverride struct {
	// BusyPatterns are busy patterns to add or substitute. Patterns
	// prefixed with "re:" are compiled as regular expressions, all
	// others match as case-insensitive substrings.
	BusyPatterns []string `mapstructure:"busy_patterns"`

	// PromptPatterns are prompt patterns to add or substitute.
	PromptPatterns []string `mapstructure:"prompt_patterns"`

	// Replace substitutes the built-in patterns entirely instead of
	// prepending the override patterns to them.
	Replace bool `mapstructure:"replace"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			EventLog:            false,
			ProfileOverridePath: "",
		},
		Classifier: ClassifierConfig{
			WindowSize: 4096,
		},
		Bus: BusConfig{
			MaxSubscribersPerEvent: 64,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Dir:        "",
		},
		Profiles: map[string]ProfileOverride{},
	}
}

// SetDefaults registers all default values with viper so that partial
// config files only need to specify the values they change.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("engine.event_log", defaults.Engine.EventLog)
	viper.SetDefault("engine.profile_override_path", defaults.Engine.ProfileOverridePath)

	viper.SetDefault("classifier.window_size", defaults.Classifier.WindowSize)

	viper.SetDefault("bus.max_subscribers_per_event", defaults.Bus.MaxSubscribersPerEvent)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load unmarshals the current viper state into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get loads the configuration, falling back to defaults if loading fails.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LogDir returns the directory for log files. An explicit logging.dir
// wins, otherwise logs live under the config directory.
func (c *Config) LogDir() string {
	if c.Logging.Dir != "" {
		return c.Logging.Dir
	}
	return filepath.Join(ConfigDir(), "logs")
}

// ConfigDir returns the vitals configuration directory, honoring
// XDG_CONFIG_HOME when set.
func ConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "vitals")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ".vitals"
	}
	return filepath.Join(home, ".config", "vitals")
}

// ConfigFile returns the path to the configuration file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
