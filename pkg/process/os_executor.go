/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/tklauser/ps"

	"github.com/RingLanguage/vscode-ring-debugger-extension/pkg/resiliency"
)

const (
	// How long to keep retrying when a child process refuses to stop.
	childStopTimeout = 2 * time.Second

	// Polling interval used when waiting for a process that was not started by this executor.
	exitPollInterval = 100 * time.Millisecond
)

type runningProcess struct {
	cmd       *exec.Cmd
	startTime time.Time
	exited    chan struct{} // Closed when the process has exited and its output was consumed
}

type OSExecutor struct {
	running map[Pid_t]*runningProcess
	lock    sync.Mutex
	log     logr.Logger
}

func NewOSExecutor(log logr.Logger) *OSExecutor {
	return &OSExecutor{
		running: make(map[Pid_t]*runningProcess),
		log:     log.WithName("os-executor"),
	}
}

func (e *OSExecutor) StartProcess(ctx context.Context, cmd *exec.Cmd, handler ProcessExitHandler) (Pid_t, time.Time, error) {
	if err := cmd.Start(); err != nil {
		return UnknownPID, time.Time{}, fmt.Errorf("could not start process '%s': %w", cmd.Path, err)
	}
	processStartTime := time.Now()

	osPid := cmd.Process.Pid
	pid, err := IntToPidT(osPid)
	if err != nil {
		_ = cmd.Process.Kill()
		return UnknownPID, time.Time{}, err
	}

	psProcess, psProcessErr := ps.FindProcess(osPid)
	if psProcessErr != nil {
		e.log.Error(psProcessErr, "Could not find process startup time", "PID", osPid)
	} else if psProcess != nil {
		// This is what the OS process startup timestamp is, so it is the most accurate value we can get.
		processStartTime = psProcess.CreationTime()
	}

	rp := &runningProcess{
		cmd:       cmd,
		startTime: processStartTime,
		exited:    make(chan struct{}),
	}

	e.lock.Lock()
	e.running[pid] = rp
	e.lock.Unlock()

	go func() {
		// Wait() returns only after all output copying goroutines (if any) have finished,
		// so the exit handler always observes the complete process output.
		waitErr := cmd.Wait()
		exitCode, execErr := getProcessExecResult(waitErr, cmd)

		e.lock.Lock()
		delete(e.running, pid)
		e.lock.Unlock()
		close(rp.exited)

		if handler != nil {
			handler.OnProcessExited(pid, exitCode, execErr)
		}
	}()

	go func() {
		select {
		case <-rp.exited:
		case <-ctx.Done():
			if stopErr := e.StopProcess(pid); stopErr != nil {
				e.log.Error(stopErr, "Could not stop process after its context was cancelled", "PID", pid)
			}
		}
	}()

	return pid, processStartTime, nil
}

func (e *OSExecutor) StopProcess(pid Pid_t) error {
	tree, err := GetProcessTree(pid)
	if errors.Is(err, ErrorProcessNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not get process tree for process %d: %w", pid, err)
	}

	e.log.V(1).Info("Stopping process tree", "root", pid, "tree", tree)

	// If the root process cannot be stopped, don't bother with the rest of the tree.
	if stopErr := e.stopSingleProcess(pid, true); stopErr != nil {
		e.log.Error(stopErr, "Could not stop root process", "root", pid)
		return stopErr
	}

	var childStoppingErrors []error
	for _, child := range tree[1:] {
		// Retry stopping the child process as we occasionally see transient "Access Denied" errors.
		b := resiliency.NewBackOff(50*time.Millisecond, 500*time.Millisecond, childStopTimeout)
		_, childErr := resiliency.RetryGet(context.Background(), b, func() (struct{}, error) {
			return struct{}{}, e.stopSingleProcess(child, false)
		})
		if childErr != nil {
			childStoppingErrors = append(childStoppingErrors, childErr)
		}
	}
	if len(childStoppingErrors) > 0 {
		return fmt.Errorf("some children processes could not be stopped: %w", errors.Join(childStoppingErrors...))
	}

	return nil
}

// Returns a channel that is closed when the process exits.
// For processes started by this executor the channel is closed only after the process output was consumed.
func (e *OSExecutor) exitChannel(pid Pid_t, timeout time.Duration) <-chan struct{} {
	e.lock.Lock()
	rp, found := e.running[pid]
	e.lock.Unlock()
	if found {
		return rp.exited
	}

	exited := make(chan struct{})
	go func() {
		defer close(exited)
		deadline := time.Now().Add(timeout)
		for time.Now().Before(deadline) {
			if _, findErr := FindProcess(pid); findErr != nil {
				return
			}
			time.Sleep(exitPollInterval)
		}
	}()
	return exited
}

// Returns the process execution error and process exit code depending on the result of command wait call.
func getProcessExecResult(waitErr error, cmd *exec.Cmd) (int32, error) {
	var ee *exec.ExitError
	if waitErr == nil {
		return int32(cmd.ProcessState.ExitCode()), nil
	} else if errors.As(waitErr, &ee) {
		return int32(ee.ExitCode()), nil
	} else {
		return UnknownExitCode, waitErr
	}
}

var _ Executor = (*OSExecutor)(nil)
