/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/google/go-dap"
	"github.com/stretchr/testify/require"

	ringdap "github.com/RingLanguage/vscode-ring-debugger-extension/internal/dap"
	"github.com/RingLanguage/vscode-ring-debugger-extension/pkg/testutil"
)

func TestServeConnectionsRunsSessionPerConnection(t *testing.T) {
	t.Parallel()
	testCtx, testCancel := testutil.GetTestContext(t, 20*time.Second)
	defer testCancel()

	log := testutil.NewLogForTesting(t.Name())
	launcher := func(_ context.Context, _ ringdap.BackendListener) (ringdap.Backend, error) {
		return nil, errors.New("no debugger backend in tests")
	}
	newSession := func(transport ringdap.Transport) *ringdap.Session {
		return ringdap.NewSession(transport, launcher, ringdap.SessionConfig{}, log)
	}

	listener, err := listen(testCtx, "127.0.0.1:0")
	require.NoError(t, err)

	serveCtx, serveCancel := context.WithCancel(testCtx)
	served := make(chan error, 1)
	go func() {
		served <- serveConnections(serveCtx, listener, newSession, log)
	}()

	for i := 0; i < 2; i++ {
		conn, dialErr := net.Dial("tcp", listener.Addr().String())
		require.NoError(t, dialErr)
		defer conn.Close()

		require.NoError(t, dap.WriteProtocolMessage(conn, &dap.InitializeRequest{
			Request: dap.Request{
				ProtocolMessage: dap.ProtocolMessage{Seq: 1, Type: "request"},
				Command:         "initialize",
			},
			Arguments: dap.InitializeRequestArguments{AdapterID: "ring"},
		}))

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
		msg, readErr := dap.ReadProtocolMessage(bufio.NewReader(conn))
		require.NoError(t, readErr)
		resp, isInitialize := msg.(*dap.InitializeResponse)
		require.True(t, isInitialize, "unexpected message %T", msg)
		require.True(t, resp.Success)
		require.Equal(t, 1, resp.RequestSeq)
	}

	serveCancel()
	select {
	case serveErr := <-served:
		require.NoError(t, serveErr)
	case <-testCtx.Done():
		t.Fatal("server did not stop after cancellation")
	}
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	cmd, err := NewVersionCommand(testutil.NewLogForTesting(t.Name()))
	require.NoError(t, err)

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), `"version":`)
	require.Contains(t, out.String(), `"goVersion":`)
}
