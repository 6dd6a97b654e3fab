// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package dap

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/go-logr/logr"
	json "github.com/goccy/go-json"
	"github.com/google/go-dap"

	"github.com/RingLanguage/vscode-ring-debugger-extension/pkg/process"
)

const (
	// maxLoggedLineLength limits how much of a dropped backend line ends up in the log.
	maxLoggedLineLength = 256

	// How long Stop waits for the backend to exit after it was told to stop.
	backendStopTimeout = 5 * time.Second
)

// Backend is the debugger backend as seen by a session.
type Backend interface {
	// Send writes a single DAP message to the backend.
	// Returns ErrBackendNotRunning if the backend has exited.
	Send(msg dap.Message) error

	// Stop terminates the backend together with any processes it started.
	Stop() error

	// CloseInput closes the backend's input stream, letting it exit on its own.
	CloseInput() error
}

// BackendListener receives everything the backend produces.
// Methods may be called from arbitrary goroutines, but never concurrently for the same stream.
// OnBackendExited is called exactly once, after all messages and output have been delivered.
type BackendListener interface {
	OnBackendMessage(msg *RawMessage)
	OnBackendOutput(text string)
	OnBackendExited(exitCode int32, err error)
}

// BackendLauncher starts a backend for a session.
// The backend must be stopped when the passed context is cancelled.
type BackendLauncher func(ctx context.Context, listener BackendListener) (Backend, error)

// processBackend is a backend running as a child process.
// DAP messages are written to its stdin as newline-delimited JSON and read back from its stderr.
// Its stdout is the console output of the debugged program.
type processBackend struct {
	executor process.Executor
	pid      process.Pid_t
	stdin    io.WriteCloser

	// writeMu serializes writes to stdin
	writeMu sync.Mutex

	exit *process.ExitWaiter
	log  logr.Logger
}

// NewProcessBackendLauncher returns a launcher that starts the backend executable described by config.
func NewProcessBackendLauncher(executor process.Executor, config BackendConfig, log logr.Logger) BackendLauncher {
	config = config.withDefaults()

	return func(ctx context.Context, listener BackendListener) (Backend, error) {
		if validationErr := config.Validate(); validationErr != nil {
			return nil, fmt.Errorf("invalid debugger backend configuration: %w", validationErr)
		}

		cmd := exec.Command(config.Path, config.Args...)
		cmd.Dir = config.Cwd
		cmd.Env = append(os.Environ(), config.Env...)

		framer := NewLineFramer(listener.OnBackendMessage, func(line []byte, err error) {
			log.V(1).Info("Dropping malformed message from debugger backend",
				"line", truncateForLog(line),
				"error", err.Error())
		})
		cmd.Stderr = framer
		cmd.Stdout = outputWriter(listener.OnBackendOutput)

		stdin, pipeErr := cmd.StdinPipe()
		if pipeErr != nil {
			return nil, fmt.Errorf("could not create debugger backend input pipe: %w", pipeErr)
		}

		b := &processBackend{
			executor: executor,
			stdin:    stdin,
			exit:     process.NewExitWaiter(),
			log:      log,
		}

		exitHandler := process.ProcessExitHandlerFunc(func(pid process.Pid_t, exitCode int32, err error) {
			b.exit.OnProcessExited(pid, exitCode, err)
			framer.Flush()
			log.V(1).Info("Debugger backend exited", "PID", pid, "exitCode", exitCode)
			listener.OnBackendExited(exitCode, err)
		})

		pid, _, startErr := executor.StartProcess(ctx, cmd, exitHandler)
		if startErr != nil {
			return nil, fmt.Errorf("could not start debugger backend '%s': %w", config.Path, startErr)
		}
		b.pid = pid

		log.Info("Debugger backend started", "PID", pid, "path", config.Path, "args", config.Args)
		return b, nil
	}
}

func (b *processBackend) hasExited() bool {
	select {
	case <-b.exit.Done():
		return true
	default:
		return false
	}
}

func (b *processBackend) Send(msg dap.Message) error {
	if b.hasExited() {
		return ErrBackendNotRunning
	}

	data, marshalErr := json.Marshal(msg)
	if marshalErr != nil {
		return fmt.Errorf("could not encode message for debugger backend: %w", marshalErr)
	}
	data = append(data, '\n')

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if _, writeErr := b.stdin.Write(data); writeErr != nil {
		if b.hasExited() || isClosedChannelError(writeErr) {
			return fmt.Errorf("%w: %w", ErrBackendNotRunning, writeErr)
		}
		return fmt.Errorf("could not write message to debugger backend: %w", writeErr)
	}

	return nil
}

// Stop stops the backend process tree and waits until the backend exit was reported.
func (b *processBackend) Stop() error {
	if b.hasExited() {
		return nil
	}
	if stopErr := b.executor.StopProcess(b.pid); stopErr != nil {
		return stopErr
	}

	ctx, cancel := context.WithTimeout(context.Background(), backendStopTimeout)
	defer cancel()
	if _, waitErr := b.exit.Wait(ctx); waitErr != nil {
		return fmt.Errorf("debugger backend (PID %d) did not exit after being stopped: %w", b.pid, waitErr)
	}
	return nil
}

func (b *processBackend) CloseInput() error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return b.stdin.Close()
}

func truncateForLog(line []byte) string {
	if len(line) <= maxLoggedLineLength {
		return string(line)
	}
	return string(line[:maxLoggedLineLength]) + "..."
}

var _ Backend = (*processBackend)(nil)
