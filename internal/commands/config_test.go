/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/RingLanguage/vscode-ring-debugger-extension/internal/dap"
)

const sampleConfig = `
backend:
  path: /opt/ring/bin/ring
  args: ["-dap", "debug", "--trace"]
  cwd: /work
  env:
    RING_HOME: /opt/ring
port: 4711
launchTimeout: 3s
progress:
  steps: 10
  stepDelay: 50ms
`

func TestParseRelayConfig(t *testing.T) {
	t.Parallel()

	config, err := parseRelayConfig(strings.NewReader(sampleConfig))
	require.NoError(t, err)

	require.Equal(t, "/opt/ring/bin/ring", config.Backend.Path)
	require.Equal(t, []string{"-dap", "debug", "--trace"}, config.Backend.Args)
	require.Equal(t, "/work", config.Backend.Cwd)
	require.Equal(t, map[string]string{"RING_HOME": "/opt/ring"}, config.Backend.Env)
	require.Equal(t, uint16(4711), config.Port)
	require.Equal(t, 3*time.Second, config.LaunchTimeout)

	sessionConfig := config.SessionConfig()
	require.Equal(t, 3*time.Second, sessionConfig.LaunchTimeout)
	require.Equal(t, 10, sessionConfig.Progress.Steps)
	require.Equal(t, 50*time.Millisecond, sessionConfig.Progress.StepDelay)
}

func TestParseRelayConfigRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	_, err := parseRelayConfig(strings.NewReader("backend:\n  pth: ring\n"))
	require.Error(t, err)

	config, err := parseRelayConfig(strings.NewReader(""))
	require.NoError(t, err, "an empty file is a valid configuration")
	require.Equal(t, RelayConfig{}, config)
}

func TestLoadRelayConfigMissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadRelayConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestBackendConfigEnvironment(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := filepath.Join(dir, "first.env")
	second := filepath.Join(dir, "second.env")
	require.NoError(t, os.WriteFile(first, []byte("# comment\nRING_HOME=/first\nRING_LIB=lib\n"), 0o600))
	require.NoError(t, os.WriteFile(second, []byte("export RING_MODE=\"debug\"\n"), 0o600))

	config := RelayConfig{
		Backend: BackendSection{
			Path:     "ring",
			Env:      map[string]string{"RING_HOME": "/override"},
			EnvFiles: []string{first, second},
		},
	}

	backendConfig, err := config.BackendConfig()
	require.NoError(t, err)
	require.Equal(t, []string{"RING_HOME=/override", "RING_LIB=lib", "RING_MODE=debug"}, backendConfig.Env)
	require.Equal(t, "ring", backendConfig.Path)

	config.Backend.EnvFiles = append(config.Backend.EnvFiles, filepath.Join(dir, "missing.env"))
	_, err = config.BackendConfig()
	require.Error(t, err)

	config = RelayConfig{Backend: BackendSection{Env: map[string]string{"": "value"}}}
	_, err = config.BackendConfig()
	require.Error(t, err, "empty variable names are rejected")
}

// Flags are bound to package variables, so these tests must not run in parallel.
func TestMergeFlags(t *testing.T) {
	fileConfig, err := parseRelayConfig(strings.NewReader(sampleConfig))
	require.NoError(t, err)

	t.Run("file wins over flag defaults", func(t *testing.T) {
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		addRelayFlags(fs)
		require.NoError(t, fs.Parse(nil))

		merged := mergeFlags(fileConfig, flagConfig, envFilePath, fs)
		require.Equal(t, "/opt/ring/bin/ring", merged.Backend.Path)
		require.Equal(t, uint16(4711), merged.Port)
		require.Equal(t, 3*time.Second, merged.LaunchTimeout)
		require.Equal(t, []string{"-dap", "debug", "--trace"}, merged.Backend.Args)
	})

	t.Run("explicit flags win over file", func(t *testing.T) {
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		addRelayFlags(fs)
		require.NoError(t, fs.Parse([]string{
			"--port", "5000",
			"--backend-arg", "-dap", "--backend-arg", "run",
			"--env-file", "extra.env",
		}))

		merged := mergeFlags(fileConfig, flagConfig, envFilePath, fs)
		require.Equal(t, uint16(5000), merged.Port)
		require.Equal(t, []string{"-dap", "run"}, merged.Backend.Args)
		require.Equal(t, "/opt/ring/bin/ring", merged.Backend.Path)
		require.Equal(t, []string{"extra.env"}, merged.Backend.EnvFiles)
	})

	t.Run("defaults without a file", func(t *testing.T) {
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		addRelayFlags(fs)
		require.NoError(t, fs.Parse(nil))

		merged := mergeFlags(RelayConfig{}, flagConfig, envFilePath, fs)
		require.Equal(t, dap.DefaultBackendPath, merged.Backend.Path)
		require.Equal(t, dap.DefaultBackendArgs, merged.Backend.Args)
		require.Equal(t, dap.DefaultLaunchTimeout, merged.LaunchTimeout)
		require.Equal(t, uint16(0), merged.Port)
	})
}
