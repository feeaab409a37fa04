// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "hash-password"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	cmd := NewRootCmd()
	for _, name := range []string{"config", "env-file", "addr", "auth-type", "session-name", "session-ttl", "database-url"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing flag --%s", name)
	}

	envFile, err := cmd.PersistentFlags().GetString("env-file")
	require.NoError(t, err)
	assert.Equal(t, ".env", envFile)
}

func TestRootCmd_Help(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "authentication")
}

func TestServeCmd_InvalidConfig(t *testing.T) {
	t.Setenv("AUTH_TYPE", "jwt_auth")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"serve", "--env-file", ""})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_auth")
}

func TestRootFlags_LoadDefaultConfigFile(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)
	t.Setenv("SESSION_NAME", "")
	dir := filepath.Join(base, "gatekeep")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gatekeep.yaml"), []byte("session:\n  name: from_xdg\n"), 0o600))

	cmd := NewRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--env-file", ""}))
	cfg, err := (&rootFlags{}).load(cmd)
	require.NoError(t, err)
	assert.Equal(t, "from_xdg", cfg.Session.Name)
}
