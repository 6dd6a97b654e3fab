/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package process

import (
	"context"
	"time"

	ps "github.com/shirou/gopsutil/v4/process"
)

const DefaultMonitorPollInterval = 2 * time.Second

// WaitForExit blocks until the process with a given PID no longer exists, or the context is cancelled.
// The process does not need to be a child of the current process; its existence is polled.
// Returns ErrorProcessNotFound if the process is not running when the call is made.
func WaitForExit(ctx context.Context, pid Pid_t, pollInterval time.Duration) error {
	if pollInterval <= 0 {
		pollInterval = DefaultMonitorPollInterval
	}

	exists, err := ps.PidExistsWithContext(ctx, int32(pid))
	if err != nil {
		return err
	}
	if !exists {
		return ErrorProcessNotFound
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			exists, err = ps.PidExistsWithContext(ctx, int32(pid))
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}
			if !exists {
				return nil
			}
		}
	}
}

// MonitorPid returns a context that is cancelled when the process with a given PID exits.
// The error, if any, is returned when the process cannot be monitored.
func MonitorPid(ctx context.Context, pid Pid_t, pollInterval time.Duration) (context.Context, error) {
	monitorCtx, cancel := context.WithCancel(ctx)

	exists, err := ps.PidExistsWithContext(ctx, int32(pid))
	if err != nil || !exists {
		cancel()
		if err == nil {
			err = ErrorProcessNotFound
		}
		return monitorCtx, err
	}

	go func() {
		defer cancel()
		_ = WaitForExit(monitorCtx, pid, pollInterval)
	}()

	return monitorCtx, nil
}
