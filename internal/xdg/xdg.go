// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

// Package xdg locates craftsmen's files under the XDG Base Directory layout.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "craftsmen"

// ConfigFileName is the file looked up in ConfigDir when no --config is given.
const ConfigFileName = "config.yaml"

// ConfigDir returns $XDG_CONFIG_HOME/craftsmen, falling back to
// ~/.config/craftsmen.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile resolves the config file to load. An explicit path always wins.
// Otherwise the default file in ConfigDir is used if it exists, and "" means
// run on defaults and environment alone.
func ConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	path := filepath.Join(ConfigDir(), ConfigFileName)
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		return path
	}
	return ""
}
