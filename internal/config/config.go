// Package config handles loading and merging configuration files.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Validation errors.
var (
	ErrInvalidLogLevel  = errors.New("invalid log level")
	ErrInvalidLogFormat = errors.New("invalid log format")
	ErrInvalidColorMode = errors.New("invalid color mode")
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Color modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Config represents the cmdguard configuration.
type Config struct {
	Version int          `yaml:"version"`
	Log     LogConfig    `yaml:"log"`
	Output  OutputConfig `yaml:"output"`

	// Source is the file the configuration was read from, if any.
	Source string `yaml:"-"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File receives the log. Hook mode writes nowhere else.
	File string `yaml:"file"`
}

// OutputConfig controls terminal output of the CLI commands.
type OutputConfig struct {
	Color string `yaml:"color"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Log: LogConfig{
			Level:  "info",
			Format: FormatText,
		},
		Output: OutputConfig{
			Color: ColorAuto,
		},
	}
}

// Load loads configuration. An explicit path is used alone and must exist.
// Otherwise, if a local config exists it is used exclusively, else the
// global config is used. No merging between files occurs.
func Load(explicit string) (*Config, error) {
	return load(explicit, localConfigPath(), globalConfigPath())
}

func load(explicit, local, global string) (*Config, error) {
	cfg := Default()

	switch {
	case explicit != "":
		if err := cfg.loadFrom(explicit); err != nil {
			return nil, err
		}
	case local != "" && exists(local):
		if err := cfg.loadFrom(local); err != nil {
			return nil, err
		}
	case global != "":
		if err := cfg.loadFrom(global); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		if cfg.Source != "" {
			return nil, fmt.Errorf("%s: %w", cfg.Source, err)
		}
		return nil, err
	}
	return cfg, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// loadFrom loads and merges a config file into the current config.
func (c *Config) loadFrom(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read config: %w", err)
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("cannot parse config %s: %w", path, err)
	}

	c.merge(&overlay)
	c.Source = path
	return nil
}

// merge applies the values set in overlay onto the current config.
func (c *Config) merge(overlay *Config) {
	if overlay.Version > 0 {
		c.Version = overlay.Version
	}
	c.Log.Level = override(c.Log.Level, overlay.Log.Level)
	c.Log.Format = override(c.Log.Format, overlay.Log.Format)
	c.Log.File = override(c.Log.File, overlay.Log.File)
	c.Output.Color = override(c.Output.Color, overlay.Output.Color)
}

func override(base, value string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return base
}

// Validate checks every enumerated setting.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Log.Format)
	}
	switch strings.ToLower(c.Output.Color) {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidColorMode, c.Output.Color)
	}
	return nil
}

// ParseLevel converts a level name such as "debug" or "warn" to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, name)
	}
	return level, nil
}

func globalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "cmdguard", "config.yml")
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() string {
	return globalConfigPath()
}

func localConfigPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, ".cmdguard.yml")
}

// LocalConfigPath returns the path to the config file of the working directory.
func LocalConfigPath() string {
	return localConfigPath()
}
