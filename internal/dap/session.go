// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package dap

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	json "github.com/goccy/go-json"
	"github.com/google/go-dap"
	"github.com/google/uuid"
	"github.com/smallnest/chanx"

	"github.com/RingLanguage/vscode-ring-debugger-extension/pkg/concurrency"
	"github.com/RingLanguage/vscode-ring-debugger-extension/pkg/resiliency"
)

type sessionEventKind int

const (
	clientMessageReceived sessionEventKind = iota
	clientChannelClosed
	backendMessageReceived
	backendOutputReceived
	backendExited
	launchGateOpened
	progressFinished
)

// sessionEvent is a unit of work for the session loop.
type sessionEvent struct {
	kind sessionEventKind

	clientMessage  dap.Message
	backendMessage *RawMessage
	output         string
	exitCode       int32
	err            error
	progressId     string
}

// Session relays one debug session between an editor and a debugger backend.
//
// All session state is owned by a single loop goroutine that consumes events from the client
// reader, the backend streams, and background tasks (launch gating, progress reporting).
// Handlers never block that loop.
type Session struct {
	id        string
	transport Transport
	launcher  BackendLauncher
	config    SessionConfig
	log       logr.Logger

	lifecycle *lifecycle

	// configurationDone is completed when the client sends configurationDone.
	configurationDone *concurrency.OneTimeJob[struct{}]

	// launchDone is completed with the command ("launch" or "attach") once it has been forwarded to the backend.
	launchDone *concurrency.OneTimeJob[string]

	seq     sequenceCounter
	started atomic.Bool

	lifetimeCtx context.Context
	cancel      context.CancelFunc
	events      *chanx.UnboundedChan[sessionEvent]
	wg          sync.WaitGroup

	// Everything below is only accessed from the session loop.

	backend          Backend
	backendExited    bool
	terminateBackend bool
	terminatedSent   bool

	pending     *pendingRequests
	variables   *variableStore
	breakpoints *breakpointStore
	sources     *sourceCache
	progress    *progressTracker

	programPath         string
	useInvalidatedEvent bool

	cancelledRequests      map[int]bool
	namedException         string
	breakOnOtherExceptions bool
	dataBreakpoints        map[string]dap.DataBreakpoint
	instructionBreakpoints map[int64]bool
}

func NewSession(transport Transport, launcher BackendLauncher, config SessionConfig, log logr.Logger) *Session {
	id := uuid.New().String()
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	log = log.WithValues("sessionID", id)

	return &Session{
		id:                     id,
		transport:              transport,
		launcher:               launcher,
		config:                 config.withDefaults(),
		log:                    log,
		lifecycle:              newLifecycle(log),
		configurationDone:      concurrency.NewOneTimeJob[struct{}](),
		launchDone:             concurrency.NewOneTimeJob[string](),
		terminateBackend:       true,
		pending:                newPendingRequests(),
		variables:              newVariableStore(),
		breakpoints:            newBreakpointStore(),
		sources:                newSourceCache(config.SourceLoader, log),
		progress:               newProgressTracker(),
		cancelledRequests:      make(map[int]bool),
		dataBreakpoints:        make(map[string]dap.DataBreakpoint),
		instructionBreakpoints: make(map[int64]bool),
	}
}

func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state of the session.
func (s *Session) State() SessionState {
	return s.lifecycle.State()
}

// WaitLaunched waits until launch (or attach) has been forwarded to the backend
// and returns the command that was forwarded.
func (s *Session) WaitLaunched(ctx context.Context) (string, error) {
	return s.launchDone.WaitResultContext(ctx)
}

// Run processes messages until the client disconnects, the client channel closes,
// or the context is cancelled. A session can be run only once.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrSessionTerminated
	}

	s.lifetimeCtx, s.cancel = context.WithCancel(ctx)
	defer s.cancel()
	s.events = chanx.NewUnboundedChan[sessionEvent](s.lifetimeCtx, s.config.EventQueueCapacity)

	s.log.V(1).Info("Debug session started")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.readClient()
	}()

	result := s.loop()

	s.shutdown()
	s.cancel()
	s.wg.Wait()

	s.log.V(1).Info("Debug session ended", "state", s.State().String())
	return result
}

func (s *Session) loop() error {
	for {
		select {
		case <-s.lifetimeCtx.Done():
			return s.lifetimeCtx.Err()

		case ev, isOpen := <-s.events.Out:
			if !isOpen {
				return s.lifetimeCtx.Err()
			}
			if done := s.handleEventRecovering(ev); done {
				return nil
			}
		}
	}
}

// handleEvent processes a single event. Returns true if the session should end.
func (s *Session) handleEvent(ev sessionEvent) bool {
	switch ev.kind {
	case clientMessageReceived:
		return s.dispatch(ev.clientMessage)

	case clientChannelClosed:
		s.log.V(1).Info("Client channel closed")
		s.lifecycle.Fire(lifecycleDisconnect)
		return true

	case backendMessageReceived:
		s.handleBackendMessage(ev.backendMessage)

	case backendOutputReceived:
		s.sendOutput("stdout", ev.output)

	case backendExited:
		s.handleBackendExited(ev.exitCode, ev.err)

	case launchGateOpened:
		s.forwardLaunch(ev.clientMessage)

	case progressFinished:
		s.progress.Finish(ev.progressId)
	}

	return false
}

// handleEventRecovering keeps the session alive if handling an event panics.
// A request that could not be handled gets an error response; its backend bookkeeping is dropped.
func (s *Session) handleEventRecovering(ev sessionEvent) (done bool) {
	defer resiliency.RecoverPanic(s.log, func(panicErr error) {
		if ev.kind != clientMessageReceived {
			return
		}
		rm, isRequest := ev.clientMessage.(dap.RequestMessage)
		if !isRequest {
			return
		}
		req := rm.GetRequest()
		s.pending.Remove(req.Seq)
		s.sendErrorResponse(req, errorIdInternal, "internal error while handling '{command}': {reason}",
			map[string]string{"command": req.Command, "reason": panicErr.Error()})
	})

	return s.handleEvent(ev)
}

// post queues an event for the session loop. Events posted after the session ended are discarded.
func (s *Session) post(ev sessionEvent) {
	select {
	case s.events.In <- ev:
	case <-s.lifetimeCtx.Done():
	}
}

// goBackground runs a function on its own goroutine, tracked by the session.
func (s *Session) goBackground(f func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer resiliency.RecoverPanic(s.log, nil)
		f()
	}()
}

func (s *Session) readClient() {
	defer resiliency.RecoverPanic(s.log, func(panicErr error) {
		s.post(sessionEvent{kind: clientChannelClosed, err: panicErr})
	})

	for {
		msg, readErr := s.transport.ReadMessage()
		if readErr != nil {
			if IsMalformedMessage(readErr) {
				s.log.V(1).Info("Dropping malformed message from client", "error", readErr.Error())
				continue
			}

			if s.lifetimeCtx.Err() == nil && !isClosedChannelError(readErr) {
				s.log.Error(readErr, "Could not read message from client")
			}
			s.post(sessionEvent{kind: clientChannelClosed, err: readErr})
			return
		}

		s.log.V(1).Info("Received message from client", "type", fmt.Sprintf("%T", msg))
		s.post(sessionEvent{kind: clientMessageReceived, clientMessage: msg})
	}
}

func (s *Session) shutdown() {
	if s.backend != nil && !s.backendExited {
		if s.terminateBackend {
			if stopErr := s.backend.Stop(); stopErr != nil {
				s.log.Error(stopErr, "Could not stop debugger backend")
			}
		} else {
			s.log.V(1).Info("Leaving debugger backend running, closing its input")
			if closeErr := s.backend.CloseInput(); closeErr != nil {
				s.log.V(1).Info("Could not close debugger backend input", "error", closeErr.Error())
			}
		}
	}

	if closeErr := s.transport.Close(); closeErr != nil {
		s.log.V(1).Info("Error closing client transport", "error", closeErr.Error())
	}
}

// Messages sent to the client

func (s *Session) newResponse(req *dap.Request) dap.Response {
	return dap.Response{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  s.seq.Next(),
			Type: messageTypeResponse,
		},
		Command:    req.Command,
		RequestSeq: req.Seq,
		Success:    true,
	}
}

func (s *Session) newEvent(event string) dap.Event {
	return dap.Event{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  s.seq.Next(),
			Type: messageTypeEvent,
		},
		Event: event,
	}
}

// send writes a message to the client. Failures are logged; the session keeps going
// until the reader notices the channel is gone.
func (s *Session) send(msg dap.Message) {
	if writeErr := s.transport.WriteMessage(msg); writeErr != nil {
		if isClosedChannelError(writeErr) {
			s.log.V(1).Info("Client channel is closed, message not sent", "type", fmt.Sprintf("%T", msg))
		} else {
			s.log.Error(writeErr, "Could not send message to client", "type", fmt.Sprintf("%T", msg))
		}
	}
}

func (s *Session) sendOutput(category, text string) {
	s.send(&dap.OutputEvent{
		Event: s.newEvent("output"),
		Body: dap.OutputEventBody{
			Category: category,
			Output:   text,
		},
	})
}

// sendErrorResponse sends a structured error. The format may refer to variables as {name}.
func (s *Session) sendErrorResponse(req *dap.Request, id int, format string, variables map[string]string) {
	resp := s.newResponse(req)
	resp.Success = false
	resp.Message = expandErrorFormat(format, variables)

	s.send(&dap.ErrorResponse{
		Response: resp,
		Body: dap.ErrorResponseBody{
			Error: &dap.ErrorMessage{
				Id:        id,
				Format:    format,
				Variables: variables,
				ShowUser:  true,
			},
		},
	})
}

func expandErrorFormat(format string, variables map[string]string) string {
	result := format
	for name, value := range variables {
		result = strings.ReplaceAll(result, "{"+name+"}", value)
	}
	return result
}

// sendTerminated sends the terminated event unless one was already delivered.
func (s *Session) sendTerminated() {
	if s.terminatedSent {
		return
	}
	s.terminatedSent = true
	s.send(&dap.TerminatedEvent{Event: s.newEvent("terminated")})
}

func (s *Session) sendInvalidated(area dap.InvalidatedAreas) {
	if !s.useInvalidatedEvent {
		return
	}
	body := dap.InvalidatedEventBody{}
	body.Areas = append(body.Areas, area)
	s.send(&dap.InvalidatedEvent{
		Event: s.newEvent("invalidated"),
		Body:  body,
	})
}

// Backend

type backendListener struct {
	s *Session
}

func (l backendListener) OnBackendMessage(msg *RawMessage) {
	l.s.post(sessionEvent{kind: backendMessageReceived, backendMessage: msg})
}

func (l backendListener) OnBackendOutput(text string) {
	l.s.post(sessionEvent{kind: backendOutputReceived, output: text})
}

func (l backendListener) OnBackendExited(exitCode int32, err error) {
	l.s.post(sessionEvent{kind: backendExited, exitCode: exitCode, err: err})
}

var _ BackendListener = backendListener{}

func (s *Session) startBackend() error {
	backend, launchErr := s.launcher(s.lifetimeCtx, backendListener{s})
	if launchErr != nil {
		return launchErr
	}
	s.backend = backend
	return nil
}

// forward sends a client request to the backend. The response arrives later as a backend message.
func (s *Session) forward(msg dap.Message, req *dap.Request) {
	if s.backend == nil || s.backendExited {
		s.sendErrorResponse(req, errorIdBackendNotRunning, "debugger backend is not running, cannot handle '{command}'",
			map[string]string{"command": req.Command})
		return
	}

	s.pending.Add(req.Seq, req.Command, msg)
	if sendErr := s.backend.Send(msg); sendErr != nil {
		s.pending.Remove(req.Seq)
		s.log.Error(sendErr, "Could not forward request to debugger backend", "command", req.Command)
		s.sendErrorResponse(req, errorIdBackendNotRunning, "debugger backend is not running, cannot handle '{command}'",
			map[string]string{"command": req.Command})
		return
	}

	s.log.V(1).Info("Forwarded request to debugger backend", "command", req.Command, "seq", req.Seq)
}

func (s *Session) handleBackendMessage(msg *RawMessage) {
	switch msg.Type {
	case messageTypeResponse:
		pr, found := s.pending.Remove(msg.RequestSeq)
		if !found {
			s.log.V(1).Info("Debugger backend sent a response to an unknown request", "requestSeq", msg.RequestSeq)
		}
		command := msg.Command
		if command == "" {
			command = pr.command
		}
		s.observeBackendResponse(msg, command, pr.request)

	case messageTypeEvent:
		if forward := s.observeBackendEvent(msg); !forward {
			return
		}
	}

	s.send(NormalizeSeq(msg))
}

func (s *Session) observeBackendResponse(msg *RawMessage, command string, request dap.Message) {
	if !msg.Success {
		return
	}

	switch command {
	case "launch", "attach":
		s.lifecycle.Fire(lifecycleLaunchSucceeded)

	case "scopes":
		var body dap.ScopesResponseBody
		if err := msg.DecodeBody(&body); err != nil {
			s.log.V(1).Info("Could not inspect scopes response", "error", err.Error())
			return
		}
		for _, scope := range body.Scopes {
			tag, known := scopeTagFor(scope.Name)
			if !known || scope.VariablesReference == 0 {
				continue
			}
			if bindErr := s.variables.handles.Bind(scope.VariablesReference, HandleEntry{Scope: tag}); bindErr != nil {
				s.log.V(1).Info("Could not bind scope reference", "scope", scope.Name, "error", bindErr.Error())
			}
		}

	case "variables":
		s.observeVariablesResponse(msg, request)

	case "setBreakpoints":
		sbr, isSetBreakpoints := request.(*dap.SetBreakpointsRequest)
		if !isSetBreakpoints {
			return
		}
		var body dap.SetBreakpointsResponseBody
		if err := msg.DecodeBody(&body); err != nil {
			s.log.V(1).Info("Could not inspect setBreakpoints response", "error", err.Error())
			return
		}
		s.breakpoints.ReplaceFromBackend(sbr.Arguments.Source.Path, body.Breakpoints)
	}
}

func (s *Session) observeVariablesResponse(msg *RawMessage, request dap.Message) {
	var body dap.VariablesResponseBody
	if err := msg.DecodeBody(&body); err != nil {
		s.log.V(1).Info("Could not inspect variables response", "error", err.Error())
		return
	}

	if vr, isVariables := request.(*dap.VariablesRequest); isVariables {
		if scope, isScope := s.variables.ScopeOf(vr.Arguments.VariablesReference); isScope {
			for _, v := range body.Variables {
				s.variables.Record(scope, v.Name, ParseValue(v.Value), v.VariablesReference)
			}
		}
	}

	if !s.variables.valuesInHex {
		return
	}

	rewritten := false
	for i := range body.Variables {
		v := &body.Variables[i]
		value := ParseValue(v.Value)
		if !value.IsInteger() {
			continue
		}
		if v.Type != "" && v.Type != "integer" && v.Type != "int" && v.Type != "number" {
			continue
		}
		v.Value = s.variables.FormatInteger(int64(value.Number))
		rewritten = true
	}

	if rewritten {
		if err := msg.SetBody(body); err != nil {
			s.log.V(1).Info("Could not rewrite variables response", "error", err.Error())
		}
	}
}

// observeBackendEvent inspects an event from the backend. Returns false if the event must not reach the client.
func (s *Session) observeBackendEvent(msg *RawMessage) bool {
	switch msg.Event {
	case "initialized":
		// The relay sent its own initialized event when the backend started.
		return false

	case "terminated":
		if s.terminatedSent {
			return false
		}
		s.terminatedSent = true

	case "breakpoint":
		var body dap.BreakpointEventBody
		if err := msg.DecodeBody(&body); err != nil {
			s.log.V(1).Info("Could not inspect breakpoint event", "error", err.Error())
			break
		}
		s.breakpoints.ObserveBackendEvent(body.Reason, body.Breakpoint)
	}

	return true
}

func (s *Session) handleBackendExited(exitCode int32, exitErr error) {
	s.backendExited = true

	drained := s.pending.Drain()
	seqs := make([]int, 0, len(drained))
	for seq := range drained {
		seqs = append(seqs, seq)
	}
	sort.Ints(seqs)
	for _, seq := range seqs {
		pr := drained[seq]
		req := &dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Seq: seq, Type: messageTypeRequest},
			Command:         pr.command,
		}
		s.sendErrorResponse(req, errorIdBackendExited, "debugger backend exited before responding to '{command}'",
			map[string]string{"command": pr.command})
	}

	switch {
	case exitErr != nil:
		s.log.Error(exitErr, "Debugger backend could not be tracked")
		s.sendOutput("stderr", fmt.Sprintf("debugger backend exited unexpectedly: %v\n", exitErr))
	case exitCode != 0:
		s.sendOutput("stderr", fmt.Sprintf("debugger backend exited with code %d\n", exitCode))
	default:
		s.sendOutput("console", "debugger backend exited\n")
	}

	s.sendTerminated()
	s.lifecycle.Fire(lifecycleBackendExited)
}

func scopeTagFor(name string) (ScopeTag, bool) {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "local"):
		return ScopeLocals, true
	case strings.Contains(lower, "global"):
		return ScopeGlobals, true
	default:
		return "", false
	}
}

// remarshal converts between two representations of the same JSON value.
func remarshal(from any, to any) error {
	data, marshalErr := json.Marshal(from)
	if marshalErr != nil {
		return marshalErr
	}
	return json.Unmarshal(data, to)
}
