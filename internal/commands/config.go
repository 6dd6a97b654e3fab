/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/RingLanguage/vscode-ring-debugger-extension/internal/dap"
)

// RelayConfig is the configuration of the relay as it appears in the configuration file.
// Values given explicitly on the command line take precedence over the file.
type RelayConfig struct {
	Backend       BackendSection  `yaml:"backend"`
	Port          uint16          `yaml:"port"`
	LaunchTimeout time.Duration   `yaml:"launchTimeout"`
	Progress      ProgressSection `yaml:"progress"`
}

type BackendSection struct {
	Path     string            `yaml:"path"`
	Args     []string          `yaml:"args"`
	Cwd      string            `yaml:"cwd"`
	Env      map[string]string `yaml:"env"`
	EnvFiles []string          `yaml:"envFiles"`
}

type ProgressSection struct {
	Steps      int           `yaml:"steps"`
	StartDelay time.Duration `yaml:"startDelay"`
	StepDelay  time.Duration `yaml:"stepDelay"`
}

// LoadRelayConfig reads the configuration file at a given path.
// Unknown keys are reported as errors so that typos do not go unnoticed.
func LoadRelayConfig(path string) (RelayConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return RelayConfig{}, fmt.Errorf("could not read configuration file '%s': %w", path, err)
	}

	config, err := parseRelayConfig(bytes.NewReader(content))
	if err != nil {
		return RelayConfig{}, fmt.Errorf("invalid configuration file '%s': %w", path, err)
	}
	return config, nil
}

func parseRelayConfig(r io.Reader) (RelayConfig, error) {
	var config RelayConfig

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return RelayConfig{}, err
	}

	return config, nil
}

// BackendConfig resolves the backend section, including the environment files it refers to.
// Variables set directly in the configuration override the ones coming from environment files.
func (c RelayConfig) BackendConfig() (dap.BackendConfig, error) {
	env := map[string]string{}

	if len(c.Backend.EnvFiles) > 0 {
		fileEnv, err := godotenv.Read(c.Backend.EnvFiles...)
		if err != nil {
			return dap.BackendConfig{}, fmt.Errorf("could not read environment files %s: %w", strings.Join(c.Backend.EnvFiles, ", "), err)
		}
		for k, v := range fileEnv {
			env[k] = v
		}
	}
	for k, v := range c.Backend.Env {
		env[k] = v
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	backendConfig := dap.BackendConfig{
		Path: c.Backend.Path,
		Args: c.Backend.Args,
		Cwd:  c.Backend.Cwd,
	}
	for _, k := range keys {
		backendConfig.Env = append(backendConfig.Env, k+"="+env[k])
	}

	if err := backendConfig.Validate(); err != nil {
		return dap.BackendConfig{}, err
	}
	return backendConfig, nil
}

func (c RelayConfig) SessionConfig() dap.SessionConfig {
	return dap.SessionConfig{
		LaunchTimeout: c.LaunchTimeout,
		Progress: dap.ProgressConfig{
			Steps:      c.Progress.Steps,
			StartDelay: c.Progress.StartDelay,
			StepDelay:  c.Progress.StepDelay,
		},
	}
}
