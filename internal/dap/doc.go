/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

/*
Package dap implements a Debug Adapter Protocol (DAP) relay for the Ring debugger.

# Architecture Overview

The relay sits between an editor (a DAP client) and a debugger backend process.
The editor talks to the relay using standard DAP framing (Content-Length headers)
over stdio or a TCP connection. The backend is a child process that reads
newline-delimited JSON DAP messages on its stdin, writes DAP messages the same way
on its stderr, and writes the console output of the debugged program on its stdout.

# Key Components

  - Session: owns one debug session. A single loop goroutine processes every event,
    so session state needs no locking.
  - Transport: the editor side of the session (NewStdioTransport, NewTCPTransport).
  - BackendLauncher: starts the backend (NewProcessBackendLauncher).
  - LineFramer: splits the backend's DAP stream into messages. Partial lines are
    buffered until complete; lines that do not parse are dropped.
  - RawMessage: a backend message kept in wire form. Sequence numbers are reset to 0
    before the message reaches the editor.
  - VariableTable: handles for scopes and structured variables.

# Request Handling

Requests are either proxied to the backend (launch, attach, setBreakpoints, threads,
stackTrace, scopes, variables, continue, next, stepIn, stepOut) or answered by the relay
from its own state (breakpoint locations, memory, data and instruction breakpoints,
disassembly, completions, exception info, evaluate, setVariable, setExpression).

Launch and attach wait for configurationDone, but never longer than the configured
launch timeout; other requests are handled while they wait.

# Usage

	launcher := dap.NewProcessBackendLauncher(process.NewOSExecutor(log), dap.BackendConfig{}, log)
	transport := dap.NewStdioTransport(os.Stdin, os.Stdout)
	session := dap.NewSession(transport, launcher, dap.SessionConfig{}, log)
	err := session.Run(ctx)
*/
package dap
