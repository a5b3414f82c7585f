// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

// Package xdg resolves XDG Base Directory paths for CyberWhale.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "cyberwhale"

// ConfigDir returns $XDG_CONFIG_HOME/cyberwhale, defaulting the base to
// ~/.config.
func ConfigDir() string {
	return dir("XDG_CONFIG_HOME", ".config")
}

// StateDir returns $XDG_STATE_HOME/cyberwhale, defaulting the base to
// ~/.local/state.
func StateDir() string {
	return dir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

// ConfigFile is the config file read when --config is not given.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// CertDir holds the generated development certificates.
func CertDir() string {
	return filepath.Join(StateDir(), "certs")
}

// TokenFile is where the CLI keeps its session token.
func TokenFile() string {
	return filepath.Join(StateDir(), "session.token")
}

func dir(env, fallback string) string {
	base := os.Getenv(env)
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), fallback)
	}
	return filepath.Join(base, appName)
}

// EnsureDir creates path and its parents with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.Code("XDG_MKDIR_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
