//go:build windows

/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package process

import (
	"errors"
	"fmt"
	"os"
	"time"
)

const killWaitTimeout = 10 * time.Second

// There is no graceful stop signal for console-less processes on Windows, so trySignal is ignored.
func (e *OSExecutor) stopSingleProcess(pid Pid_t, _ bool) error {
	proc, err := FindProcess(pid)
	if err != nil {
		return nil
	}

	exited := e.exitChannel(pid, killWaitTimeout)

	if killErr := proc.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
		return fmt.Errorf("could not kill process %d: %w", pid, killErr)
	}

	timer := time.NewTimer(killWaitTimeout)
	defer timer.Stop()

	select {
	case <-exited:
		e.log.V(1).Info("Process killed", "PID", pid)
		return nil
	case <-timer.C:
		return fmt.Errorf("process %d did not exit after being killed", pid)
	}
}

func FindProcess(pid Pid_t) (*os.Process, error) {
	osPid, err := PidT_ToInt(pid)
	if err != nil {
		return nil, err
	}

	return os.FindProcess(osPid)
}
