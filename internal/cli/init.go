// Package cli provides CLI command implementations.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/adrianpk/cmdguard/internal/config"
)

// RunInit creates a cmdguard configuration file in the working directory
// when local is set, or in the user's config directory otherwise.
func RunInit(w io.Writer, local bool) error {
	configPath := config.GlobalConfigPath()
	if local {
		configPath = config.LocalConfigPath()
	}
	if configPath == "" {
		return errors.New("cannot determine config location")
	}

	created, err := WriteDefaultConfig(configPath)
	if err != nil {
		return err
	}
	if !created {
		fmt.Fprintf(w, "Config already exists: %s\n", configPath)
		return nil
	}
	fmt.Fprintf(w, "Created config: %s\n", configPath)
	return nil
}

// WriteDefaultConfig writes the default configuration to configPath unless a
// file is already there. It reports whether it wrote one.
func WriteDefaultConfig(configPath string) (bool, error) {
	if _, err := os.Stat(configPath); err == nil {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return false, fmt.Errorf("cannot create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0644); err != nil {
		return false, fmt.Errorf("cannot write config: %w", err)
	}
	return true, nil
}

const defaultConfig = `version: 1

log:
  # debug, info, warn or error
  level: info
  # text or json
  format: text
  # hook decisions are only logged when a file is set
  file: ""

output:
  # auto, always or never
  color: auto
`
