// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package dap

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/go-dap"
)

// Transport provides an abstraction for DAP message I/O with the editor.
// Implementations must be safe for concurrent use by one reader and multiple writers.
type Transport interface {
	// ReadMessage reads the next DAP protocol message from the transport.
	// This method blocks until a complete message is available.
	// A message whose content cannot be decoded yields an error matching ErrMalformedMessage;
	// the transport stays usable after such an error.
	ReadMessage() (dap.Message, error)

	// WriteMessage writes a DAP protocol message to the transport.
	WriteMessage(msg dap.Message) error

	// Close closes the transport, releasing any associated resources.
	// After Close is called, any blocked ReadMessage or WriteMessage calls
	// should return with an error.
	Close() error
}

// streamTransport implements Transport over a pair of byte streams using
// the Content-Length framing of the Debug Adapter Protocol.
type streamTransport struct {
	reader *bufio.Reader
	writer *bufio.Writer
	closer func() error

	// writeMu protects concurrent writes
	writeMu sync.Mutex

	// closed indicates whether the transport has been closed
	closed bool
	mu     sync.Mutex
}

// NewStdioTransport creates a new Transport backed by stdin and stdout streams.
func NewStdioTransport(stdin io.ReadCloser, stdout io.WriteCloser) Transport {
	return &streamTransport{
		reader: bufio.NewReader(stdin),
		writer: bufio.NewWriter(stdout),
		closer: func() error {
			var errs []error
			if closeErr := stdin.Close(); closeErr != nil {
				errs = append(errs, fmt.Errorf("failed to close stdin: %w", closeErr))
			}
			if closeErr := stdout.Close(); closeErr != nil {
				errs = append(errs, fmt.Errorf("failed to close stdout: %w", closeErr))
			}
			return errors.Join(errs...)
		},
	}
}

// NewTCPTransport creates a new Transport backed by a network connection.
func NewTCPTransport(conn net.Conn) Transport {
	return &streamTransport{
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
		closer: conn.Close,
	}
}

func (t *streamTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *streamTransport) ReadMessage() (dap.Message, error) {
	if t.isClosed() {
		return nil, ErrTransportClosed
	}

	content, readErr := dap.ReadBaseMessage(t.reader)
	if readErr != nil {
		if t.isClosed() {
			return nil, ErrTransportClosed
		}
		return nil, fmt.Errorf("failed to read DAP message: %w", readErr)
	}

	return decodeClientMessage(content)
}

func (t *streamTransport) WriteMessage(msg dap.Message) error {
	if t.isClosed() {
		return ErrTransportClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	writeErr := dap.WriteProtocolMessage(t.writer, msg)
	if writeErr != nil {
		return fmt.Errorf("failed to write DAP message: %w", writeErr)
	}

	flushErr := t.writer.Flush()
	if flushErr != nil {
		return fmt.Errorf("failed to flush DAP message: %w", flushErr)
	}

	return nil
}

func (t *streamTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	t.closed = true
	return t.closer()
}

// decodeClientMessage decodes a message received from the editor.
// Requests that go-dap does not recognize (custom commands such as toggleFormatting)
// are returned as RawMessage values.
func decodeClientMessage(content []byte) (dap.Message, error) {
	msg, decodeErr := dap.DecodeProtocolMessage(content)
	if decodeErr == nil {
		if dr, isDisconnect := msg.(*dap.DisconnectRequest); isDisconnect {
			return newDisconnectRequest(dr, content), nil
		}
		return msg, nil
	}

	raw, rawErr := ParseRawMessage(content)
	if rawErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, decodeErr)
	}
	return raw, nil
}

// disconnectRequest is a disconnect request that remembers whether terminateDebuggee was given.
// go-dap drops "terminateDebuggee": false, which is the editor asking to leave the debuggee running.
type disconnectRequest struct {
	dap.DisconnectRequest
	terminateDebuggee *bool
}

func newDisconnectRequest(req *dap.DisconnectRequest, content []byte) *disconnectRequest {
	var raw struct {
		Arguments struct {
			TerminateDebuggee *bool `json:"terminateDebuggee"`
		} `json:"arguments"`
	}
	// The content was decoded by go-dap already, so errors here only mean the flag is absent.
	_ = json.Unmarshal(content, &raw)

	return &disconnectRequest{
		DisconnectRequest: *req,
		terminateDebuggee: raw.Arguments.TerminateDebuggee,
	}
}
