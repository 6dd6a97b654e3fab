/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package resiliency

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
)

// Logs a panic value and associated call stack and returns it as an error.
// The returned error is marked as permanent, so that retry loops do not repeat a panicking operation.
func MakePanicError(panicVal any, log logr.Logger) error {
	if panicVal == nil {
		return nil
	}

	panicErr, isError := panicVal.(error)
	if !isError {
		panicErr = fmt.Errorf("%v", panicVal)
	}
	var permanent *backoff.PermanentError
	if !errors.As(panicErr, &permanent) {
		panicErr = Permanent(panicErr)
	}

	log.Error(panicErr, "A goroutine ended prematurely due to panic", "stack", string(debug.Stack()))

	return panicErr
}

// RecoverPanic must be deferred directly. It stops a panic from crashing the process,
// logs it, and passes the resulting error to onPanic (if not nil).
//
//	defer resiliency.RecoverPanic(log, nil)
func RecoverPanic(log logr.Logger, onPanic func(error)) {
	if panicErr := MakePanicError(recover(), log); panicErr != nil && onPanic != nil {
		onPanic(panicErr)
	}
}
