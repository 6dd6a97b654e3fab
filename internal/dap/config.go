// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package dap

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultLaunchTimeout is how long a launch or attach request waits for configurationDone
	// before it is forwarded to the backend anyway.
	DefaultLaunchTimeout = 10 * time.Second

	DefaultProgressSteps      = 100
	DefaultProgressStartDelay = 100 * time.Millisecond
	DefaultProgressStepDelay  = 500 * time.Millisecond

	DefaultBackendPath = "ring"
)

// DefaultBackendArgs select the DAP interpreter mode of the backend and its debug subcommand.
var DefaultBackendArgs = []string{"-dap", "debug"}

// ProgressConfig controls the simulated progress sequence started from the debug console.
type ProgressConfig struct {
	Steps      int
	StartDelay time.Duration
	StepDelay  time.Duration
}

// SessionConfig contains configuration options for a debug session.
type SessionConfig struct {
	// LaunchTimeout bounds the wait for configurationDone before launch is forwarded.
	// If zero, DefaultLaunchTimeout is used.
	LaunchTimeout time.Duration

	Progress ProgressConfig

	// SourceLoader reads program sources for breakpoint locations and disassembly.
	// If nil, sources are read from the file system.
	SourceLoader SourceLoader

	// EventQueueCapacity is the initial capacity of the session event queue.
	// If zero, defaults to 16.
	EventQueueCapacity int
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.LaunchTimeout <= 0 {
		c.LaunchTimeout = DefaultLaunchTimeout
	}
	if c.Progress.Steps <= 0 {
		c.Progress.Steps = DefaultProgressSteps
	}
	if c.Progress.StartDelay <= 0 {
		c.Progress.StartDelay = DefaultProgressStartDelay
	}
	if c.Progress.StepDelay <= 0 {
		c.Progress.StepDelay = DefaultProgressStepDelay
	}
	if c.EventQueueCapacity <= 0 {
		c.EventQueueCapacity = 16
	}
	return c
}

// BackendConfig describes how the debugger backend process is started.
type BackendConfig struct {
	// Path to the backend executable. If empty, DefaultBackendPath is used.
	Path string

	// Args passed to the backend. If nil, DefaultBackendArgs are used.
	Args []string

	// Env is appended to the relay's own environment, in "KEY=value" form.
	Env []string

	// Cwd is the working directory of the backend. If empty, the relay's working directory is used.
	Cwd string
}

func (c BackendConfig) withDefaults() BackendConfig {
	if c.Path == "" {
		c.Path = DefaultBackendPath
	}
	if c.Args == nil {
		c.Args = append([]string(nil), DefaultBackendArgs...)
	}
	return c
}

// Validate checks the configuration for values that can never produce a working backend.
func (c BackendConfig) Validate() error {
	var errs []error

	for _, e := range c.Env {
		if len(e) == 0 || e[0] == '=' || !strings.ContainsRune(e, '=') {
			errs = append(errs, fmt.Errorf("invalid environment entry '%s', expected KEY=value", e))
		}
	}

	for i, a := range c.Args {
		if strings.ContainsRune(a, 0) {
			errs = append(errs, fmt.Errorf("backend argument %d contains a NUL character", i))
		}
	}

	return errors.Join(errs...)
}
