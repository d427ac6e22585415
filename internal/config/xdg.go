// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Veltrix Contributors

package config

import (
	"os"
	"path/filepath"
)

const appName = "dispatch"

// ConfigDir returns the XDG config directory for the dispatch host
// application, checking XDG_CONFIG_HOME first and falling back to
// ~/.config, adapted from the teacher's directory-resolution convention.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DefaultConfigPath returns the conventional location for the dispatch
// YAML config file within ConfigDir.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
