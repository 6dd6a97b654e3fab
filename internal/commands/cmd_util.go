/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"os"

	"github.com/RingLanguage/vscode-ring-debugger-extension/pkg/logger"
	"github.com/RingLanguage/vscode-ring-debugger-extension/pkg/osutil"
)

// ErrorExit reports the error on stderr, flushes the log and terminates the process with a given exit code.
// stdout is not used because it may be carrying the debug adapter protocol.
func ErrorExit(log *logger.Logger, err error, exitCode int) {
	_, _ = os.Stderr.WriteString(err.Error() + string(osutil.LineSep()))
	log.Flush()
	os.Exit(exitCode)
}
