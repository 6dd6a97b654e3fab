// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package resiliency

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Permanent wraps an error to indicate that the operation should not be retried.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// NewBackOff returns an exponential back-off policy that starts at initial, grows up to max between attempts,
// and gives up after maxElapsed.
func NewBackOff(initial, max, maxElapsed time.Duration) backoff.BackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(initial),
		backoff.WithMaxInterval(max),
		backoff.WithMaxElapsedTime(maxElapsed),
	)
}

// RetryGet calls factory with the given back-off policy until it succeeds,
// the policy gives up, or the context is done.
// If the policy times out, the returned error includes the error from the last attempt.
func RetryGet[T any](ctx context.Context, b backoff.BackOff, factory func() (T, error)) (T, error) {
	var lastAttemptErr error

	retval, err := backoff.RetryNotifyWithData(
		factory,
		backoff.WithContext(b, ctx),
		func(err error, _ time.Duration) {
			lastAttemptErr = err
		},
	)
	if err == nil {
		return retval, nil
	}

	var zero T
	if errors.Is(err, context.DeadlineExceeded) && lastAttemptErr != nil {
		return zero, errors.Join(lastAttemptErr, err)
	}
	return zero, err
}
