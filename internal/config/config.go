// Package config loads the dirwatch CLI configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	dwerrors "github.com/Aman-CERP/dirwatch/internal/errors"
)

// DefaultFileName is the configuration file looked up in the working
// directory when no explicit path is given.
const DefaultFileName = ".dirwatch.yaml"

// Duration decodes yaml duration strings like "250ms" as well as plain
// nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler. Integers are nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!int" {
		var n int64
		if err := value.Decode(&n); err != nil {
			return fmt.Errorf("parse duration: %w", err)
		}
		*d = Duration(n)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the complete dirwatch CLI configuration.
type Config struct {
	Watch   WatchConfig   `yaml:"watch"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// WatchConfig configures the watch engine.
type WatchConfig struct {
	// Backend selects the notification backend: "", "fsnotify" or "poll".
	Backend string `yaml:"backend"`

	// PollInterval is the scan interval for the polling backend.
	PollInterval Duration `yaml:"poll_interval"`

	// EventBufferSize is the internal queue size.
	EventBufferSize int `yaml:"event_buffer_size"`

	// DebounceWindow keeps a live batch open for this long so rapid
	// successive changes coalesce into one delivery. Zero disables it.
	DebounceWindow Duration `yaml:"debounce_window"`

	// WaitForInitialSync blocks watch startup until the initial scan
	// has been computed.
	WaitForInitialSync bool `yaml:"wait_for_initial_sync"`
}

// OutputConfig configures how events are printed.
type OutputConfig struct {
	// JSON forces JSON-lines output regardless of TTY detection.
	JSON bool `yaml:"json"`

	// EventLog is an optional file that every delivered event is
	// appended to. Guarded by a lock file against concurrent sessions.
	EventLog string `yaml:"event_log"`
}

// LoggingConfig configures diagnostic logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Watch: WatchConfig{
			PollInterval:       Duration(100 * time.Millisecond),
			EventBufferSize:    1000,
			WaitForInitialSync: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the configuration from path. A missing file is not an
// error: defaults are returned. A malformed file is a hard error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, dwerrors.New(dwerrors.ErrCodeConfigNotFound, "read config file", err).
			WithDetail("path", path)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, dwerrors.New(dwerrors.ErrCodeConfigInvalid, "parse config file", err).
			WithDetail("path", path)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	switch c.Watch.Backend {
	case "", "fsnotify", "poll":
	default:
		return dwerrors.ConfigError(
			fmt.Sprintf("unknown watch backend %q", c.Watch.Backend), nil)
	}
	if c.Watch.PollInterval < 0 {
		return dwerrors.ConfigError("poll_interval must not be negative", nil)
	}
	if c.Watch.EventBufferSize < 0 {
		return dwerrors.ConfigError("event_buffer_size must not be negative", nil)
	}
	if c.Watch.DebounceWindow < 0 {
		return dwerrors.ConfigError("debounce_window must not be negative", nil)
	}
	return nil
}
