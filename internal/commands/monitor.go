/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/RingLanguage/vscode-ring-debugger-extension/pkg/process"
)

var (
	monitorPidInt64 int64 = int64(process.UnknownPID)
	monitorInterval uint8
)

func AddMonitorFlags(cmd *cobra.Command) {
	cmd.Flags().Int64VarP(&monitorPidInt64, "monitor", "m", int64(process.UnknownPID), "If present, tells ring-dap to monitor a given process ID (PID), typically the editor, and shut down if the monitored process exits for any reason.")
	cmd.Flags().Uint8VarP(&monitorInterval, "monitor-interval", "i", 0, "If present, specifies the time in seconds between checks for the monitor PID.")
}

// Monitor returns a context that is cancelled when the monitored process exits.
// If no process is monitored, or the PID is invalid, the passed context is returned unchanged.
func Monitor(ctx context.Context, log logr.Logger) context.Context {
	if monitorPidInt64 == int64(process.UnknownPID) {
		return ctx
	}

	pid, err := process.Int64ToPidT(monitorPidInt64)
	if err != nil {
		log.Error(err, "Invalid PID to monitor", "PID", monitorPidInt64)
		return ctx
	}

	monitorCtx, err := process.MonitorPid(ctx, pid, time.Duration(monitorInterval)*time.Second)
	if err != nil {
		// The process we were asked to stay alive for is already gone.
		log.Info("Monitored process is not running, shutting down", "PID", pid, "Error", err.Error())
		return monitorCtx
	}

	go func() {
		<-monitorCtx.Done()
		if ctx.Err() == nil {
			log.Info("Monitored process exited, shutting down", "PID", pid)
		}
	}()

	return monitorCtx
}
