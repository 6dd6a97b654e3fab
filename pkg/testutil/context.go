// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

// Overrides the timeout of every test context, e.g. "10m" when stepping through tests in a debugger.
const testTimeoutOverrideVar = "RING_DAP_TEST_CONTEXT_TIMEOUT"

// GetTestContext returns a context that ends with the test deadline (from "go test -timeout")
// or after testTimeout, whichever comes first. A zero testTimeout means "test deadline only".
func GetTestContext(t *testing.T, testTimeout time.Duration) (context.Context, context.CancelFunc) {
	if override, found := os.LookupEnv(testTimeoutOverrideVar); found {
		timeout, err := time.ParseDuration(override)
		if err != nil {
			panic(fmt.Sprintf("%s value '%s' is not a valid duration: %s", testTimeoutOverrideVar, override, err.Error()))
		}
		return context.WithTimeout(context.Background(), timeout)
	}

	var deadline time.Time
	if testDeadline, ok := t.Deadline(); ok {
		deadline = testDeadline
	}
	if testTimeout > 0 {
		if timeoutDeadline := time.Now().Add(testTimeout); deadline.IsZero() || timeoutDeadline.Before(deadline) {
			deadline = timeoutDeadline
		}
	}

	if deadline.IsZero() {
		return context.WithCancel(context.Background())
	}
	return context.WithDeadline(context.Background(), deadline)
}
