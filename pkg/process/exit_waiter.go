/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package process

import (
	"context"
	"sync"
)

// ProcessExit describes how a process ended.
type ProcessExit struct {
	PID      Pid_t
	ExitCode int32
	Err      error
}

// ExitWaiter is a ProcessExitHandler that remembers the first exit reported to it,
// so that the exit can be awaited by any number of goroutines.
type ExitWaiter struct {
	once sync.Once
	done chan struct{}
	exit ProcessExit
}

func NewExitWaiter() *ExitWaiter {
	return &ExitWaiter{
		done: make(chan struct{}),
		exit: ProcessExit{PID: UnknownPID, ExitCode: UnknownExitCode},
	}
}

func (w *ExitWaiter) OnProcessExited(pid Pid_t, exitCode int32, err error) {
	w.once.Do(func() {
		w.exit = ProcessExit{PID: pid, ExitCode: exitCode, Err: err}
		close(w.done)
	})
}

// Done returns a channel that is closed once the process has exited.
func (w *ExitWaiter) Done() <-chan struct{} {
	return w.done
}

// Wait blocks until the process exits or the context is cancelled.
func (w *ExitWaiter) Wait(ctx context.Context) (ProcessExit, error) {
	select {
	case <-w.done:
		return w.exit, nil
	case <-ctx.Done():
		return ProcessExit{PID: UnknownPID, ExitCode: UnknownExitCode}, ctx.Err()
	}
}

var _ ProcessExitHandler = (*ExitWaiter)(nil)
