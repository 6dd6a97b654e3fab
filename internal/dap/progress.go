// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package dap

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/go-dap"
)

const firstProgressId = 10000

// progressTask is a simulated long running operation.
// The cancelled flag is the only state shared between the session loop and the task goroutine.
type progressTask struct {
	id          string
	cancellable bool
	cancelled   atomic.Bool
}

// progressTracker owns the progress tasks of a session. It is only accessed from the session loop.
type progressTracker struct {
	nextId          int
	nextCancellable bool
	tasks           map[string]*progressTask
}

func newProgressTracker() *progressTracker {
	return &progressTracker{
		nextId:          firstProgressId,
		nextCancellable: true,
		tasks:           make(map[string]*progressTask),
	}
}

// Start creates a new task. Every other task is cancellable.
func (t *progressTracker) Start() *progressTask {
	task := &progressTask{
		id:          strconv.Itoa(t.nextId),
		cancellable: t.nextCancellable,
	}
	t.nextId++
	t.nextCancellable = !t.nextCancellable
	t.tasks[task.id] = task
	return task
}

// Cancel requests cancellation of the task. Returns false if there is no such task.
func (t *progressTracker) Cancel(id string) bool {
	task, found := t.tasks[id]
	if !found {
		return false
	}
	task.cancelled.Store(true)
	return true
}

func (t *progressTracker) Finish(id string) {
	delete(t.tasks, id)
}

func (t *progressTracker) Len() int {
	return len(t.tasks)
}

// runProgress reports the progress of a task to the client until it completes or is cancelled.
// Cancellation is checked once per step.
func (s *Session) runProgress(ctx context.Context, task *progressTask) {
	defer s.post(sessionEvent{kind: progressFinished, progressId: task.id})

	cfg := s.config.Progress

	if !sleepContext(ctx, cfg.StartDelay) {
		return
	}

	title := "Long running operation"
	if task.cancellable {
		title = "Cancellable operation"
	}
	start := &dap.ProgressStartEvent{
		Event: s.newEvent("progressStart"),
		Body: dap.ProgressStartEventBody{
			ProgressId:  task.id,
			Title:       title,
			Cancellable: task.cancellable,
			Percentage:  0,
		},
	}
	s.send(start)
	s.sendOutput("console", fmt.Sprintf("start progress: %s\n", task.id))

	endMessage := "progress ended"

	for i := 0; i < cfg.Steps; i++ {
		if !sleepContext(ctx, cfg.StepDelay) {
			return
		}

		if task.cancelled.Load() {
			endMessage = "progress cancelled"
			s.sendOutput("console", fmt.Sprintf("cancel progress: %s\n", task.id))
			break
		}

		s.send(&dap.ProgressUpdateEvent{
			Event: s.newEvent("progressUpdate"),
			Body: dap.ProgressUpdateEventBody{
				ProgressId: task.id,
				Message:    fmt.Sprintf("progress: %d", i),
				Percentage: i * 100 / cfg.Steps,
			},
		})
	}

	s.send(&dap.ProgressEndEvent{
		Event: s.newEvent("progressEnd"),
		Body: dap.ProgressEndEventBody{
			ProgressId: task.id,
			Message:    endMessage,
		},
	})
	s.sendOutput("console", fmt.Sprintf("end progress: %s\n", task.id))
}

// sleepContext waits for the duration. Returns false if the context was cancelled first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
