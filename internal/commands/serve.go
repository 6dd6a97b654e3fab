/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/RingLanguage/vscode-ring-debugger-extension/internal/dap"
	"github.com/RingLanguage/vscode-ring-debugger-extension/pkg/logger"
	"github.com/RingLanguage/vscode-ring-debugger-extension/pkg/process"
	"github.com/RingLanguage/vscode-ring-debugger-extension/pkg/resiliency"
)

const listenTimeout = 10 * time.Second

// sessionFactory creates a session for a new client connection.
type sessionFactory func(transport dap.Transport) *dap.Session

func runRelay(log *logger.Logger) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		log := log.Logger.WithName("relay")

		config, err := resolveConfig(cmd.Flags())
		if err != nil {
			return err
		}

		backendConfig, err := config.BackendConfig()
		if err != nil {
			return fmt.Errorf("invalid debugger backend configuration: %w", err)
		}
		sessionConfig := config.SessionConfig()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = Monitor(ctx, log)

		executor := process.NewOSExecutor(log)
		launcher := dap.NewProcessBackendLauncher(executor, backendConfig, log)
		newSession := func(transport dap.Transport) *dap.Session {
			return dap.NewSession(transport, launcher, sessionConfig, log)
		}

		if config.Port == 0 {
			return serveStdio(ctx, newSession, log)
		}

		listener, err := listen(ctx, fmt.Sprintf("127.0.0.1:%d", config.Port))
		if err != nil {
			return err
		}
		log.Info("Listening for debug adapter connections", "address", listener.Addr().String())
		return serveConnections(ctx, listener, newSession, log)
	}
}

func serveStdio(ctx context.Context, newSession sessionFactory, log logr.Logger) error {
	session := newSession(dap.NewStdioTransport(os.Stdin, os.Stdout))
	log.V(1).Info("Serving debug session over stdio", "sessionID", session.ID())
	return ignoreCancellation(session.Run(ctx))
}

// listen binds the TCP listener. The port may still be held by a previous instance
// that is shutting down, so binding is retried for a while.
func listen(ctx context.Context, address string) (net.Listener, error) {
	b := resiliency.NewBackOff(100*time.Millisecond, time.Second, listenTimeout)

	listener, err := resiliency.RetryGet(ctx, b, func() (net.Listener, error) {
		var lc net.ListenConfig
		return lc.Listen(ctx, "tcp", address)
	})
	if err != nil {
		return nil, fmt.Errorf("could not listen on %s: %w", address, err)
	}
	return listener, nil
}

// serveConnections runs one debug session per accepted connection, until the context is cancelled.
// Returns after all sessions have ended.
func serveConnections(ctx context.Context, listener net.Listener, newSession sessionFactory, log logr.Logger) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			if ctx.Err() != nil || errors.Is(acceptErr, net.ErrClosed) {
				return nil
			}
			log.Error(acceptErr, "Could not accept connection")
			return acceptErr
		}

		session := newSession(dap.NewTCPTransport(conn))
		log.V(1).Info("Client connected", "remote", conn.RemoteAddr().String(), "sessionID", session.ID())

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer resiliency.RecoverPanic(log, nil)

			if runErr := ignoreCancellation(session.Run(ctx)); runErr != nil {
				log.Error(runErr, "Debug session failed", "sessionID", session.ID())
			}
			log.V(1).Info("Client disconnected", "sessionID", session.ID())
		}()
	}
}

func ignoreCancellation(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
