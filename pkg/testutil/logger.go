// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package testutil

import (
	"testing"

	"github.com/go-logr/logr"
	"go.uber.org/zap/zapcore"

	"github.com/RingLanguage/vscode-ring-debugger-extension/pkg/logger"
)

// NewLogForTesting returns a logger that only shows errors, unless tests run with -v.
func NewLogForTesting(name string) logr.Logger {
	log := logger.New(name)
	if testing.Verbose() {
		log.SetLevel(zapcore.DebugLevel)
	} else {
		log.SetLevel(zapcore.ErrorLevel)
	}
	return log.Logger.WithName(name).WithValues("test", true)
}
