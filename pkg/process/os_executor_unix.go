//go:build !windows

/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"
)

const signalAndWaitTimeout = 10 * time.Second

func (e *OSExecutor) stopSingleProcess(pid Pid_t, trySignal bool) error {
	proc, err := FindProcess(pid)
	if err != nil {
		// Already gone.
		return nil
	}

	exited := e.exitChannel(pid, 2*signalAndWaitTimeout)

	if trySignal {
		// Give the process a chance to gracefully exit.
		err = signalAndWaitForExit(proc, syscall.SIGTERM, exited)
		switch {
		case err == nil:
			e.log.V(1).Info("Process stopped by SIGTERM", "PID", pid)
			return nil
		case !errors.Is(err, context.DeadlineExceeded):
			return err
		}
	}

	err = signalAndWaitForExit(proc, syscall.SIGKILL, exited)
	switch {
	case err == nil:
		e.log.V(1).Info("Process stopped by SIGKILL", "PID", pid)
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("process %d did not exit after SIGKILL: %w", pid, err)
	default:
		return err
	}
}

// Sends a given signal to a process and waits for it to exit.
// If the process does not exit within the timeout, the function returns context.DeadlineExceeded.
func signalAndWaitForExit(proc *os.Process, sig syscall.Signal, exited <-chan struct{}) error {
	err := proc.Signal(sig)
	switch {
	case errors.Is(err, os.ErrProcessDone):
		return nil
	case err != nil:
		return fmt.Errorf("could not send signal %s to process %d: %w", sig.String(), proc.Pid, err)
	}

	timer := time.NewTimer(signalAndWaitTimeout)
	defer timer.Stop()

	select {
	case <-exited:
		return nil
	case <-timer.C:
		return context.DeadlineExceeded
	}
}

func FindProcess(pid Pid_t) (*os.Process, error) {
	osPid, err := PidT_ToInt(pid)
	if err != nil {
		return nil, err
	}

	process, err := os.FindProcess(osPid)
	if err != nil {
		return nil, err
	}

	// Check if the process actually exists for Unix systems
	if err = process.Signal(syscall.Signal(0)); err != nil {
		return nil, err
	}

	return process, nil
}
