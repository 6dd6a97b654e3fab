/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/google/go-dap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPTransport(t *testing.T) {
	t.Parallel()

	// Create a listener
	listener, listenErr := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, listenErr)
	defer listener.Close()

	// Accept connection in goroutine
	var serverConn net.Conn
	var acceptErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		serverConn, acceptErr = listener.Accept()
	}()

	clientConn, dialErr := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, dialErr)

	wg.Wait()
	require.NoError(t, acceptErr)
	require.NotNil(t, serverConn)

	defer clientConn.Close()
	defer serverConn.Close()

	clientTransport := NewTCPTransport(clientConn)
	serverTransport := NewTCPTransport(serverConn)

	t.Run("write and read message", func(t *testing.T) {
		request := &dap.InitializeRequest{
			Request: dap.Request{
				ProtocolMessage: dap.ProtocolMessage{Seq: 1, Type: "request"},
				Command:         "initialize",
			},
		}

		writeErr := clientTransport.WriteMessage(request)
		require.NoError(t, writeErr)

		received, readErr := serverTransport.ReadMessage()
		require.NoError(t, readErr)

		initReq, ok := received.(*dap.InitializeRequest)
		require.True(t, ok)
		assert.Equal(t, 1, initReq.Seq)
		assert.Equal(t, "initialize", initReq.Command)
	})

	t.Run("close prevents further operations", func(t *testing.T) {
		closeErr := clientTransport.Close()
		assert.NoError(t, closeErr)

		writeErr := clientTransport.WriteMessage(&dap.InitializeRequest{})
		assert.ErrorIs(t, writeErr, ErrTransportClosed)

		// Double close should not panic
		_ = clientTransport.Close()
	})
}

// nopWriteCloser collects everything written to it.
type nopWriteCloser struct {
	bytes.Buffer
}

func (*nopWriteCloser) Close() error { return nil }

func frame(content string) string {
	return fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(content), content)
}

func TestStdioTransport(t *testing.T) {
	t.Parallel()

	t.Run("write and read message", func(t *testing.T) {
		serverRead, clientWrite := io.Pipe()
		clientRead, serverWrite := io.Pipe()

		clientTransport := NewStdioTransport(clientRead, clientWrite)
		serverTransport := NewStdioTransport(serverRead, serverWrite)

		defer clientTransport.Close()
		defer serverTransport.Close()

		request := &dap.InitializeRequest{
			Request: dap.Request{
				ProtocolMessage: dap.ProtocolMessage{Seq: 1, Type: "request"},
				Command:         "initialize",
			},
		}

		var wg sync.WaitGroup
		wg.Add(1)

		var received dap.Message
		var readErr error

		go func() {
			defer wg.Done()
			received, readErr = serverTransport.ReadMessage()
		}()

		writeErr := clientTransport.WriteMessage(request)
		require.NoError(t, writeErr)

		wg.Wait()

		require.NoError(t, readErr)
		initReq, ok := received.(*dap.InitializeRequest)
		require.True(t, ok)
		assert.Equal(t, 1, initReq.Seq)
	})

	t.Run("custom request is returned as raw message", func(t *testing.T) {
		input := io.NopCloser(bytes.NewBufferString(frame(`{"seq":7,"type":"request","command":"toggleFormatting"}`)))
		transport := NewStdioTransport(input, &nopWriteCloser{})
		defer transport.Close()

		msg, readErr := transport.ReadMessage()
		require.NoError(t, readErr)

		raw, ok := msg.(*RawMessage)
		require.True(t, ok, "expected *RawMessage, got %T", msg)
		assert.Equal(t, 7, raw.Seq)
		assert.Equal(t, "toggleFormatting", raw.Command)
	})

	t.Run("malformed message does not end the stream", func(t *testing.T) {
		stream := frame(`{"seq":1,`) + frame(`{"seq":2,"type":"request","command":"threads"}`)
		transport := NewStdioTransport(io.NopCloser(bytes.NewBufferString(stream)), &nopWriteCloser{})
		defer transport.Close()

		_, readErr := transport.ReadMessage()
		require.Error(t, readErr)
		assert.True(t, IsMalformedMessage(readErr))

		msg, readErr := transport.ReadMessage()
		require.NoError(t, readErr)
		_, ok := msg.(*dap.ThreadsRequest)
		assert.True(t, ok, "expected *dap.ThreadsRequest, got %T", msg)
	})

	t.Run("close prevents further operations", func(t *testing.T) {
		transport := NewStdioTransport(io.NopCloser(bytes.NewBuffer(nil)), &nopWriteCloser{})

		closeErr := transport.Close()
		assert.NoError(t, closeErr)

		writeErr := transport.WriteMessage(&dap.InitializeRequest{})
		assert.Error(t, writeErr)

		_, readErr := transport.ReadMessage()
		assert.ErrorIs(t, readErr, ErrTransportClosed)

		// Double close should be safe
		closeErr = transport.Close()
		assert.NoError(t, closeErr)
	})
}

func TestDecodeDisconnectKeepsTerminateDebuggee(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		arguments string
		expected  *bool
	}{
		{"no arguments", "", nil},
		{"flag absent", `,"arguments":{"restart":false}`, nil},
		{"explicit true", `,"arguments":{"terminateDebuggee":true}`, ptrTo(true)},
		{"explicit false", `,"arguments":{"terminateDebuggee":false}`, ptrTo(false)},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			msg, err := decodeClientMessage([]byte(`{"seq":4,"type":"request","command":"disconnect"` + tc.arguments + `}`))
			require.NoError(t, err)

			dr, isDisconnect := msg.(*disconnectRequest)
			require.True(t, isDisconnect, "unexpected message type %T", msg)
			assert.Equal(t, 4, dr.GetSeq())
			assert.Equal(t, "disconnect", dr.GetRequest().Command)
			assert.Equal(t, tc.expected, dr.terminateDebuggee)
		})
	}
}

func ptrTo[T any](v T) *T {
	return &v
}
