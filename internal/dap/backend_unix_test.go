//go:build !windows

// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package dap

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-dap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RingLanguage/vscode-ring-debugger-extension/pkg/process"
	"github.com/RingLanguage/vscode-ring-debugger-extension/pkg/testutil"
)

type backendExit struct {
	exitCode int32
	err      error
}

// recordingListener collects everything a backend produces.
type recordingListener struct {
	mu       sync.Mutex
	messages []*RawMessage
	output   strings.Builder
	exited   chan backendExit
}

func newRecordingListener() *recordingListener {
	return &recordingListener{exited: make(chan backendExit, 1)}
}

func (l *recordingListener) OnBackendMessage(msg *RawMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

func (l *recordingListener) OnBackendOutput(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.WriteString(text)
}

func (l *recordingListener) OnBackendExited(exitCode int32, err error) {
	l.exited <- backendExit{exitCode: exitCode, err: err}
}

func (l *recordingListener) waitExit(t *testing.T) backendExit {
	t.Helper()
	select {
	case exit := <-l.exited:
		return exit
	case <-time.After(10 * time.Second):
		require.FailNow(t, "backend exit was not reported")
		return backendExit{}
	}
}

func threadsRequest(seq int) *dap.ThreadsRequest {
	return &dap.ThreadsRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Seq: seq, Type: messageTypeRequest},
			Command:         "threads",
		},
	}
}

func TestProcessBackendRelaysStreams(t *testing.T) {
	t.Parallel()
	ctx, cancel := testutil.GetTestContext(t, 20*time.Second)
	defer cancel()

	log := testutil.NewLogForTesting(t.Name())
	// Echoes the first request to stdout, reports an event on stderr, then exits.
	script := `read line; echo "got: $line"; ` +
		`printf 'not json\n{"seq":5,"type":"event","event":"stopped","body":{"reason":"entry"}}\n' >&2; ` +
		`exit 3`
	launcher := NewProcessBackendLauncher(process.NewOSExecutor(log), BackendConfig{Path: "sh", Args: []string{"-c", script}}, log)

	listener := newRecordingListener()
	backend, launchErr := launcher(ctx, listener)
	require.NoError(t, launchErr)

	require.NoError(t, backend.Send(threadsRequest(1)))

	exit := listener.waitExit(t)
	require.NoError(t, exit.err)
	assert.Equal(t, int32(3), exit.exitCode)

	listener.mu.Lock()
	defer listener.mu.Unlock()
	require.Len(t, listener.messages, 1, "malformed lines are dropped")
	assert.Equal(t, "stopped", listener.messages[0].Event)
	assert.Contains(t, listener.output.String(), `got: {"seq":1,"type":"request","command":"threads"`)

	require.ErrorIs(t, backend.Send(threadsRequest(2)), ErrBackendNotRunning)
	require.NoError(t, backend.Stop(), "stopping a backend that is gone is not an error")
}

func TestProcessBackendStopWaitsForExit(t *testing.T) {
	t.Parallel()
	ctx, cancel := testutil.GetTestContext(t, 20*time.Second)
	defer cancel()

	log := testutil.NewLogForTesting(t.Name())
	launcher := NewProcessBackendLauncher(process.NewOSExecutor(log), BackendConfig{Path: "sleep", Args: []string{"30"}}, log)

	listener := newRecordingListener()
	backend, launchErr := launcher(ctx, listener)
	require.NoError(t, launchErr)

	require.NoError(t, backend.Stop())
	assert.ErrorIs(t, backend.Send(threadsRequest(1)), ErrBackendNotRunning, "backend is gone once Stop returns")

	exit := listener.waitExit(t)
	assert.NotEqual(t, int32(0), exit.exitCode)
}
