// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package xdg locates Gatekeep files under the XDG Base Directory layout.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "gatekeep"

// ConfigFileName is the file DefaultConfigFile looks for.
const ConfigFileName = "gatekeep.yaml"

// ConfigDir returns the XDG config directory for gatekeep.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DefaultConfigFile returns ConfigDir()/gatekeep.yaml when that file exists,
// or "" when it does not.
func DefaultConfigFile() (string, error) {
	path := filepath.Join(ConfigDir(), ConfigFileName)
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", nil
	case err != nil:
		return "", oops.Code("CONFIG_INVALID").With("file", path).Wrap(err)
	case info.IsDir():
		return "", oops.Code("CONFIG_INVALID").With("file", path).Errorf("%s is a directory", path)
	}
	return path, nil
}
