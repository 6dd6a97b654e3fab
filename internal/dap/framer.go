// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package dap

import (
	"bytes"
	"fmt"
	"io"
)

// maxLineLength bounds the amount of data buffered while waiting for a line feed.
// A backend that writes more than this without a newline is not speaking line-delimited DAP.
const maxLineLength = 16 * 1024 * 1024

// LineFramer turns the backend's DAP stream into discrete messages.
//
// Every non-empty line is expected to hold exactly one JSON encoded DAP message.
// Data is accepted in arbitrary chunks; a trailing partial line is kept until the
// rest of it arrives. Lines that do not parse are reported to the drop callback
// and skipped.
//
// LineFramer implements io.Writer so that it can be used directly as the backend
// process's stderr. It is not safe for concurrent use.
type LineFramer struct {
	pending   []byte
	onMessage func(*RawMessage)
	onDropped func(line []byte, err error)
}

func NewLineFramer(onMessage func(*RawMessage), onDropped func(line []byte, err error)) *LineFramer {
	if onDropped == nil {
		onDropped = func([]byte, error) {}
	}

	return &LineFramer{
		onMessage: onMessage,
		onDropped: onDropped,
	}
}

func (f *LineFramer) Write(p []byte) (int, error) {
	f.pending = append(f.pending, p...)

	for {
		idx := bytes.IndexByte(f.pending, '\n')
		if idx < 0 {
			break
		}

		line := f.pending[:idx]
		f.pending = f.pending[idx+1:]
		f.processLine(line)
	}

	if len(f.pending) > maxLineLength {
		f.onDropped(f.pending[:256], fmt.Errorf("%w: line exceeds %d bytes", ErrMalformedMessage, maxLineLength))
		f.pending = nil
	} else if len(f.pending) == 0 {
		f.pending = nil
	} else {
		// Do not keep the (possibly large) backing array of already processed lines alive.
		f.pending = bytes.Clone(f.pending)
	}

	return len(p), nil
}

// Flush processes whatever is left in the buffer as a final line.
// It is meant to be called once the stream has ended.
func (f *LineFramer) Flush() {
	if len(f.pending) == 0 {
		return
	}

	line := f.pending
	f.pending = nil
	f.processLine(line)
}

func (f *LineFramer) processLine(line []byte) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}

	msg, err := ParseRawMessage(bytes.Clone(line))
	if err != nil {
		f.onDropped(line, err)
		return
	}

	f.onMessage(msg)
}

var _ io.Writer = (*LineFramer)(nil)

// outputWriter forwards every chunk written to it as text.
type outputWriter func(text string)

func (w outputWriter) Write(p []byte) (int, error) {
	if len(p) > 0 {
		w(string(p))
	}
	return len(p), nil
}
