// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package osutil holds small platform differences used by the logger and the CLI.
package osutil

import (
	"os"
	"runtime"
)

const (
	// Diagnostics log files may contain program output and source paths.
	PermissionOnlyOwnerReadWrite os.FileMode = 0600
	// Directories need the traverse bit too.
	PermissionOnlyOwnerReadWriteTraverse os.FileMode = 0700
)

func IsWindows() bool {
	return runtime.GOOS == "windows"
}

// CRLF is the Windows line ending.
func CRLF() []byte {
	return []byte("\r\n")
}

// LineSep is the line ending native to the current platform.
func LineSep() []byte {
	if IsWindows() {
		return CRLF()
	}
	return []byte("\n")
}
