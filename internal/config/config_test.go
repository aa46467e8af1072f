package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, FormatText, cfg.Log.Format)
	assert.Empty(t, cfg.Log.File)
	assert.Equal(t, ColorAuto, cfg.Output.Color)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeConfig(t, tmpDir, "config.yml", `
version: 1
log:
  level: debug
  format: json
  file: /tmp/cmdguard.log
output:
  color: never
`)

	cfg := Default()
	require.NoError(t, cfg.loadFrom(configPath))

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, FormatJSON, cfg.Log.Format)
	assert.Equal(t, "/tmp/cmdguard.log", cfg.Log.File)
	assert.Equal(t, ColorNever, cfg.Output.Color)
	assert.Equal(t, configPath, cfg.Source)
}

func TestLoadFromPartialFileKeepsDefaults(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), "config.yml", "log:\n  level: warn\n")

	cfg := Default()
	require.NoError(t, cfg.loadFrom(configPath))

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, FormatText, cfg.Log.Format)
	assert.Equal(t, ColorAuto, cfg.Output.Color)
}

func TestLoadFromInvalidYAML(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), "config.yml", "log: [unclosed")

	err := Default().loadFrom(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot parse config")
}

func TestLoadFromMissingFile(t *testing.T) {
	err := Default().loadFrom(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	explicit := writeConfig(t, dir, "explicit.yml", "log:\n  level: error\n")
	local := writeConfig(t, dir, "local.yml", "log:\n  level: debug\n")
	global := writeConfig(t, dir, "global.yml", "log:\n  level: warn\n  format: json\n")
	missing := filepath.Join(dir, "missing.yml")

	tests := []struct {
		name     string
		explicit string
		local    string
		global   string
		level    string
		format   string
		source   string
	}{
		{"explicit wins", explicit, local, global, "error", FormatText, explicit},
		{"local used exclusively", "", local, global, "debug", FormatText, local},
		{"global when no local", "", missing, global, "warn", FormatJSON, global},
		{"defaults when nothing exists", "", missing, missing, "info", FormatText, ""},
		{"defaults when paths unknown", "", "", "", "info", FormatText, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := load(tt.explicit, tt.local, tt.global)
			require.NoError(t, err)
			assert.Equal(t, tt.level, cfg.Log.Level)
			assert.Equal(t, tt.format, cfg.Log.Format)
			assert.Equal(t, tt.source, cfg.Source)
		})
	}
}

func TestLoadExplicitMissing(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "nope.yml"), "", "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"level", "log:\n  level: loud\n", ErrInvalidLogLevel},
		{"format", "log:\n  format: xml\n", ErrInvalidLogFormat},
		{"color", "output:\n  color: sometimes\n", ErrInvalidColorMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), "config.yml", tt.content)
			_, err := load(path, "", "")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), path)
		})
	}
}

func TestMerge(t *testing.T) {
	cfg := Default()
	cfg.merge(&Config{
		Version: 2,
		Log:     LogConfig{Format: " json ", File: "/var/log/cmdguard.log"},
	})

	assert.Equal(t, 2, cfg.Version)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, FormatJSON, cfg.Log.Format)
	assert.Equal(t, "/var/log/cmdguard.log", cfg.Log.File)
	assert.Equal(t, ColorAuto, cfg.Output.Color)
}

func TestValidateIsCaseInsensitive(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "DEBUG"
	cfg.Log.Format = "JSON"
	cfg.Output.Color = "Always"
	assert.NoError(t, cfg.Validate())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		level slog.Level
		ok    bool
	}{
		{"debug", slog.LevelDebug, true},
		{"info", slog.LevelInfo, true},
		{"WARN", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"", slog.LevelInfo, false},
		{"verbose", slog.LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrInvalidLogLevel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.level, got)
		})
	}
}

func TestConfigPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	assert.Equal(t, filepath.Join(home, ".config", "cmdguard", "config.yml"), GlobalConfigPath())

	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, ".cmdguard.yml"), LocalConfigPath())
}
