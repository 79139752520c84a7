package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	// Verify default engine config
	if cfg.Engine.EventLog {
		t.Error("Engine.EventLog should be false by default")
	}
	if cfg.Engine.ProfileOverridePath != "" {
		t.Errorf("Engine.ProfileOverridePath = %q, want empty", cfg.Engine.ProfileOverridePath)
	}

	// Verify default classifier config
	if cfg.Classifier.WindowSize != 4096 {
		t.Errorf("Classifier.WindowSize = %d, want 4096", cfg.Classifier.WindowSize)
	}

	// Verify default bus config
	if cfg.Bus.MaxSubscribersPerEvent != 64 {
		t.Errorf("Bus.MaxSubscribersPerEvent = %d, want 64", cfg.Bus.MaxSubscribersPerEvent)
	}

	// Verify default logging config
	if !cfg.Logging.Enabled {
		t.Error("Logging.Enabled should be true by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.MaxSizeMB != 10 {
		t.Errorf("Logging.MaxSizeMB = %d, want 10", cfg.Logging.MaxSizeMB)
	}
	if cfg.Logging.MaxBackups != 3 {
		t.Errorf("Logging.MaxBackups = %d, want 3", cfg.Logging.MaxBackups)
	}
	if cfg.Logging.Dir != "" {
		t.Errorf("Logging.Dir = %q, want empty", cfg.Logging.Dir)
	}

	// Verify profiles start empty
	if cfg.Profiles == nil {
		t.Error("Profiles should be an empty map, not nil")
	}
	if len(cfg.Profiles) != 0 {
		t.Errorf("Profiles has %d entries, want 0", len(cfg.Profiles))
	}
}

func TestConfigDir(t *testing.T) {
	// Test with XDG_CONFIG_HOME set
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		original := os.Getenv("XDG_CONFIG_HOME")
		defer func() { _ = os.Setenv("XDG_CONFIG_HOME", original) }()

		_ = os.Setenv("XDG_CONFIG_HOME", "/custom/config")
		result := ConfigDir()
		expected := "/custom/config/vitals"
		if result != expected {
			t.Errorf("ConfigDir() = %q, want %q", result, expected)
		}
	})

	// Test without XDG_CONFIG_HOME
	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		original := os.Getenv("XDG_CONFIG_HOME")
		defer func() { _ = os.Setenv("XDG_CONFIG_HOME", original) }()

		_ = os.Setenv("XDG_CONFIG_HOME", "")
		result := ConfigDir()

		// Should be based on home directory
		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, ".config", "vitals")
		if result != expected {
			t.Errorf("ConfigDir() = %q, want %q", result, expected)
		}
	})
}

func TestConfigFile(t *testing.T) {
	original := os.Getenv("XDG_CONFIG_HOME")
	defer func() { _ = os.Setenv("XDG_CONFIG_HOME", original) }()

	_ = os.Setenv("XDG_CONFIG_HOME", "/custom/config")
	result := ConfigFile()
	expected := "/custom/config/vitals/config.yaml"
	if result != expected {
		t.Errorf("ConfigFile() = %q, want %q", result, expected)
	}
}

func TestConfig_LogDir(t *testing.T) {
	t.Run("explicit dir wins", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Dir = "/var/log/vitals"
		if result := cfg.LogDir(); result != "/var/log/vitals" {
			t.Errorf("LogDir() = %q, want %q", result, "/var/log/vitals")
		}
	})

	t.Run("defaults to logs under config dir", func(t *testing.T) {
		original := os.Getenv("XDG_CONFIG_HOME")
		defer func() { _ = os.Setenv("XDG_CONFIG_HOME", original) }()

		_ = os.Setenv("XDG_CONFIG_HOME", "/custom/config")
		cfg := Default()
		expected := "/custom/config/vitals/logs"
		if result := cfg.LogDir(); result != expected {
			t.Errorf("LogDir() = %q, want %q", result, expected)
		}
	})
}

func TestSetDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	SetDefaults()

	if got := viper.GetInt("classifier.window_size"); got != 4096 {
		t.Errorf("classifier.window_size = %d, want 4096", got)
	}
	if got := viper.GetInt("bus.max_subscribers_per_event"); got != 64 {
		t.Errorf("bus.max_subscribers_per_event = %d, want 64", got)
	}
	if !viper.GetBool("logging.enabled") {
		t.Error("logging.enabled should default to true")
	}
	if got := viper.GetString("logging.level"); got != "info" {
		t.Errorf("logging.level = %q, want %q", got, "info")
	}
}

func TestGet(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	// Set defaults in viper first (normally done by cmd init)
	SetDefaults()

	// Get() should return defaults when no config file exists
	cfg := Get()
	if cfg == nil {
		t.Fatal("Get() returned nil")
	}

	// Should have default values
	if cfg.Classifier.WindowSize != 4096 {
		t.Errorf("Get().Classifier.WindowSize = %d, want 4096", cfg.Classifier.WindowSize)
	}
	if cfg.Bus.MaxSubscribersPerEvent != 64 {
		t.Errorf("Get().Bus.MaxSubscribersPerEvent = %d, want 64", cfg.Bus.MaxSubscribersPerEvent)
	}
}

func TestGet_FallsBackToDefaultsOnInvalidConfig(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	SetDefaults()
	viper.Set("classifier.window_size", -1)

	cfg := Get()
	if cfg.Classifier.WindowSize != 4096 {
		t.Errorf("Get() with invalid config: WindowSize = %d, want default 4096", cfg.Classifier.WindowSize)
	}
}

func TestLoad_FromFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := `classifier:
  window_size: 8192
bus:
  max_subscribers_per_event: 8
logging:
  level: debug
profiles:
  claude:
    busy_patterns:
      - "re:(?m)^Crunching"
      - "please wait"
    replace: true
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	SetDefaults()
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Classifier.WindowSize != 8192 {
		t.Errorf("Classifier.WindowSize = %d, want 8192", cfg.Classifier.WindowSize)
	}
	if cfg.Bus.MaxSubscribersPerEvent != 8 {
		t.Errorf("Bus.MaxSubscribersPerEvent = %d, want 8", cfg.Bus.MaxSubscribersPerEvent)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}

	// Keys absent from the file keep their defaults
	if cfg.Logging.MaxSizeMB != 10 {
		t.Errorf("Logging.MaxSizeMB = %d, want default 10", cfg.Logging.MaxSizeMB)
	}

	override, ok := cfg.Profiles["claude"]
	if !ok {
		t.Fatal("Profiles missing claude override")
	}
	if len(override.BusyPatterns) != 2 {
		t.Fatalf("claude override has %d busy patterns, want 2", len(override.BusyPatterns))
	}
	if override.BusyPatterns[0] != "re:(?m)^Crunching" {
		t.Errorf("BusyPatterns[0] = %q, want %q", override.BusyPatterns[0], "re:(?m)^Crunching")
	}
	if !override.Replace {
		t.Error("claude override should have Replace set")
	}
}

func TestLoad_InvalidConfig(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	SetDefaults()
	viper.Set("logging.level", "loud")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should fail for invalid log level")
	}
	if _, ok := err.(ValidationErrors); !ok {
		t.Errorf("Load() error type = %T, want ValidationErrors", err)
	}
}
