// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package dap

import (
	"sync/atomic"

	"github.com/go-logr/logr"
)

type SessionState int32

const (
	StateUninitialized SessionState = iota
	StateInitialized
	StateConfigurationPending
	StateLaunching
	StateRunning
	StateTerminated
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateInitialized:
		return "Initialized"
	case StateConfigurationPending:
		return "ConfigurationPending"
	case StateLaunching:
		return "Launching"
	case StateRunning:
		return "Running"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// lifecycleEvent is something that happened to a session and may move it to another state.
type lifecycleEvent int

const (
	lifecycleInitialize lifecycleEvent = iota
	lifecycleConfigurationDone
	lifecycleLaunchRequested
	lifecycleLaunchForwarded
	lifecycleLaunchSucceeded
	lifecycleBackendExited
	lifecycleDisconnect
)

func (e lifecycleEvent) String() string {
	switch e {
	case lifecycleInitialize:
		return "initialize"
	case lifecycleConfigurationDone:
		return "configurationDone"
	case lifecycleLaunchRequested:
		return "launchRequested"
	case lifecycleLaunchForwarded:
		return "launchForwarded"
	case lifecycleLaunchSucceeded:
		return "launchSucceeded"
	case lifecycleBackendExited:
		return "backendExited"
	case lifecycleDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

type transitionKey struct {
	from  SessionState
	event lifecycleEvent
}

// Transitions that are not listed leave the state unchanged.
// backendExited and disconnect lead to Terminated from every state and are handled separately.
var sessionTransitions = map[transitionKey]SessionState{
	{StateUninitialized, lifecycleInitialize}:               StateInitialized,
	{StateInitialized, lifecycleConfigurationDone}:          StateInitialized,
	{StateInitialized, lifecycleLaunchRequested}:            StateConfigurationPending,
	{StateConfigurationPending, lifecycleConfigurationDone}: StateConfigurationPending,
	{StateConfigurationPending, lifecycleLaunchForwarded}:   StateLaunching,
	{StateLaunching, lifecycleLaunchSucceeded}:              StateRunning,
}

// lifecycle holds the state of a session. The state is only changed by the session loop,
// but can be read from any goroutine.
type lifecycle struct {
	state atomic.Int32
	log   logr.Logger
}

func newLifecycle(log logr.Logger) *lifecycle {
	l := &lifecycle{log: log}
	l.state.Store(int32(StateUninitialized))
	return l
}

func (l *lifecycle) State() SessionState {
	return SessionState(l.state.Load())
}

// Fire applies the event and returns the resulting state.
func (l *lifecycle) Fire(event lifecycleEvent) SessionState {
	current := l.State()
	if current == StateTerminated {
		return current
	}

	var next SessionState
	switch event {
	case lifecycleBackendExited, lifecycleDisconnect:
		next = StateTerminated
	default:
		var found bool
		next, found = sessionTransitions[transitionKey{current, event}]
		if !found {
			l.log.V(1).Info("Ignoring lifecycle event", "state", current.String(), "event", event.String())
			return current
		}
	}

	if next != current {
		l.log.V(1).Info("Session state changed", "from", current.String(), "to", next.String(), "event", event.String())
		l.state.Store(int32(next))
	}
	return next
}
