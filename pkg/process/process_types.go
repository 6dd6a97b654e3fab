/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package process

import (
	"context"
	"os/exec"
	"time"
)

type Pid_t int32

const (
	// Exit codes of finished processes are non-negative.
	UnknownExitCode int32 = -1

	// The process was never started.
	UnknownPID Pid_t = -1
)

// Executor starts and stops child processes, such as the debugger backend.
type Executor interface {
	// StartProcess starts cmd. Cancelling ctx stops the process and its children.
	// The exit handler is called exactly once, after the process exited and its output pipes were drained.
	StartProcess(ctx context.Context, cmd *exec.Cmd, exitHandler ProcessExitHandler) (Pid_t, time.Time, error)

	// StopProcess stops the process with a given PID together with its children.
	// Stopping a process that is already gone is not an error.
	StopProcess(pid Pid_t) error
}

type ProcessExitHandler interface {
	// OnProcessExited reports the end of a process.
	// A non-nil err means the process could not be tracked, and exitCode is not meaningful.
	OnProcessExited(pid Pid_t, exitCode int32, err error)
}

type ProcessExitHandlerFunc func(Pid_t, int32, error)

func (f ProcessExitHandlerFunc) OnProcessExited(pid Pid_t, exitCode int32, err error) {
	f(pid, exitCode, err)
}
