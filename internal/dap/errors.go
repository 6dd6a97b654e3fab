/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"errors"
	"io"
	"net"
	"os"
)

var (
	// ErrTransportClosed is returned when reading from or writing to a closed transport.
	ErrTransportClosed = errors.New("transport is closed")

	// ErrMalformedMessage is returned when a message cannot be parsed as a DAP message.
	// Malformed messages are dropped; they never end a session.
	ErrMalformedMessage = errors.New("malformed DAP message")

	// ErrBackendNotRunning is returned when a message is sent to a backend that has not started or has exited.
	ErrBackendNotRunning = errors.New("debugger backend is not running")

	// ErrSessionTerminated is returned when a session that already ended is asked to run again.
	ErrSessionTerminated = errors.New("session terminated")
)

// Error ids carried by DAP error responses produced by the relay.
const (
	errorIdVariableNotFound  = 1002
	errorIdBackendNotRunning = 1003
	errorIdBackendExited     = 1004
	errorIdInvalidArguments  = 1005
	errorIdInternal          = 1006
)

// IsMalformedMessage returns true if the error indicates a message that could not be parsed.
func IsMalformedMessage(err error) bool {
	return errors.Is(err, ErrMalformedMessage)
}

// isClosedChannelError returns true if the error is the expected result of the peer
// going away or the channel being closed locally.
func isClosedChannelError(err error) bool {
	return errors.Is(err, ErrTransportClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, os.ErrClosed)
}
