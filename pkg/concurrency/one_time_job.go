/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package concurrency

import (
	"context"
	"sync"
)

// OneTimeJob is something that happens at most once and produces a result others can wait for,
// e.g. "the client finished configuration" or "the launch request went out".
type OneTimeJob[T any] struct {
	lock   sync.Mutex
	done   chan struct{}
	isDone bool
	result T
}

func NewOneTimeJob[T any]() *OneTimeJob[T] {
	return &OneTimeJob[T]{done: make(chan struct{})}
}

// TryComplete marks the job as done with the given result.
// Returns false (and leaves the result alone) if the job was done already.
func (otj *OneTimeJob[T]) TryComplete(res T) bool {
	otj.lock.Lock()
	defer otj.lock.Unlock()

	if otj.isDone {
		return false
	}
	otj.isDone = true
	otj.result = res
	close(otj.done)
	return true
}

// Done returns a channel that is closed when the job is done.
func (otj *OneTimeJob[T]) Done() <-chan struct{} {
	return otj.done
}

// WaitResultContext waits for the job to be done and returns its result,
// or gives up with the context error.
func (otj *OneTimeJob[T]) WaitResultContext(ctx context.Context) (T, error) {
	select {
	case <-otj.done:
		return otj.result, nil // Channel close happens-before the read of result.
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
