// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package dap

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/go-dap"
)

// Debug console commands.
var (
	newBreakpointCommand = regexp.MustCompile(`^\s*new\s+(\d+)`)
	delBreakpointCommand = regexp.MustCompile(`^\s*del\s+(\d+)`)
	progressCommand      = regexp.MustCompile(`^\s*progress\b`)
)

const toggleFormattingCommand = "toggleFormatting"

// maxDisassembledInstructions bounds a single disassemble response.
const maxDisassembledInstructions = 4096

// dispatch handles a message from the client. Returns true if the session should end.
func (s *Session) dispatch(msg dap.Message) bool {
	switch m := msg.(type) {
	case *dap.InitializeRequest:
		s.onInitialize(m)
	case *dap.ConfigurationDoneRequest:
		s.onConfigurationDone(m)
	case *dap.LaunchRequest:
		s.onLaunch(m, &m.Request, m.Arguments)
	case *dap.AttachRequest:
		s.onLaunch(m, &m.Request, m.Arguments)
	case *disconnectRequest:
		return s.onDisconnect(&m.DisconnectRequest, m.terminateDebuggee)
	case *dap.DisconnectRequest:
		var terminate *bool
		if m.Arguments != nil && m.Arguments.TerminateDebuggee {
			terminate = &m.Arguments.TerminateDebuggee
		}
		return s.onDisconnect(m, terminate)

	case *dap.SetBreakpointsRequest,
		*dap.ThreadsRequest,
		*dap.StackTraceRequest,
		*dap.ScopesRequest,
		*dap.ContinueRequest,
		*dap.NextRequest,
		*dap.StepInRequest,
		*dap.StepOutRequest:
		s.forward(msg, msg.(dap.RequestMessage).GetRequest())
	case *dap.VariablesRequest:
		s.onVariables(m)

	case *dap.EvaluateRequest:
		s.onEvaluate(m)
	case *dap.SetExpressionRequest:
		s.onSetExpression(m)
	case *dap.SetVariableRequest:
		s.onSetVariable(m)
	case *dap.ReadMemoryRequest:
		s.onReadMemory(m)
	case *dap.WriteMemoryRequest:
		s.onWriteMemory(m)
	case *dap.DataBreakpointInfoRequest:
		s.onDataBreakpointInfo(m)
	case *dap.SetDataBreakpointsRequest:
		s.onSetDataBreakpoints(m)
	case *dap.DisassembleRequest:
		s.onDisassemble(m)
	case *dap.SetInstructionBreakpointsRequest:
		s.onSetInstructionBreakpoints(m)
	case *dap.CompletionsRequest:
		s.onCompletions(m)
	case *dap.BreakpointLocationsRequest:
		s.onBreakpointLocations(m)
	case *dap.ExceptionInfoRequest:
		s.onExceptionInfo(m)
	case *dap.SetExceptionBreakpointsRequest:
		s.onSetExceptionBreakpoints(m)
	case *dap.CancelRequest:
		s.onCancel(m)
	case *dap.StepInTargetsRequest:
		s.send(&dap.StepInTargetsResponse{
			Response: s.newResponse(&m.Request),
			Body:     dap.StepInTargetsResponseBody{Targets: []dap.StepInTarget{}},
		})

	case *RawMessage:
		s.onRawMessage(m)

	case dap.RequestMessage:
		s.sendEmptyResponse(m.GetRequest())

	case dap.ResponseMessage:
		// Answers to reverse requests issued by the backend.
		if s.backend != nil && !s.backendExited {
			if sendErr := s.backend.Send(msg); sendErr != nil {
				s.log.Error(sendErr, "Could not forward response to debugger backend")
			}
		}

	default:
		s.log.Info("Unexpected message type from client", "type", fmt.Sprintf("%T", msg))
	}

	return false
}

func (s *Session) sendEmptyResponse(req *dap.Request) {
	resp := s.newResponse(req)
	s.send(&resp)
}

// Lifecycle

func (s *Session) onInitialize(req *dap.InitializeRequest) {
	s.useInvalidatedEvent = req.Arguments.SupportsInvalidatedEvent
	s.lifecycle.Fire(lifecycleInitialize)

	s.send(&dap.InitializeResponse{
		Response: s.newResponse(&req.Request),
		Body:     relayCapabilities(),
	})

	if s.backend != nil || s.backendExited {
		return
	}

	if launchErr := s.startBackend(); launchErr != nil {
		s.log.Error(launchErr, "Could not start debugger backend")
		s.backendExited = true
		s.sendOutput("stderr", fmt.Sprintf("could not start debugger backend: %v\n", launchErr))
		s.sendTerminated()
		s.lifecycle.Fire(lifecycleBackendExited)
		return
	}

	s.send(&dap.InitializedEvent{Event: s.newEvent("initialized")})
}

func (s *Session) onConfigurationDone(req *dap.ConfigurationDoneRequest) {
	s.configurationDone.TryComplete(struct{}{})
	s.lifecycle.Fire(lifecycleConfigurationDone)
	s.send(&dap.ConfigurationDoneResponse{Response: s.newResponse(&req.Request)})
}

// onLaunch handles launch and attach. The request is held back until the client finished
// configuration, or the launch timeout elapsed, whichever comes first.
func (s *Session) onLaunch(msg dap.Message, req *dap.Request, arguments []byte) {
	var args struct {
		Program string `json:"program"`
	}
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			s.log.V(1).Info("Could not read launch arguments", "command", req.Command, "error", err.Error())
		}
	}
	if args.Program != "" {
		s.programPath = args.Program
	}

	s.lifecycle.Fire(lifecycleLaunchRequested)
	s.goBackground(func() {
		s.awaitConfigurationDone(msg)
	})
}

func (s *Session) awaitConfigurationDone(msg dap.Message) {
	waitCtx, cancel := context.WithTimeout(s.lifetimeCtx, s.config.LaunchTimeout)
	defer cancel()

	if _, waitErr := s.configurationDone.WaitResultContext(waitCtx); waitErr != nil {
		if s.lifetimeCtx.Err() != nil {
			return
		}
		s.log.Info("Client did not finish configuration in time, proceeding with launch", "timeout", s.config.LaunchTimeout.String())
	}

	s.post(sessionEvent{kind: launchGateOpened, clientMessage: msg})
}

func (s *Session) forwardLaunch(msg dap.Message) {
	req := msg.(dap.RequestMessage).GetRequest()
	s.lifecycle.Fire(lifecycleLaunchForwarded)
	s.forward(msg, req)
	s.launchDone.TryComplete(req.Command)
}

// onDisconnect ends the session. The backend is stopped unless the editor explicitly asked
// to leave the debuggee running (terminateDebuggee: false).
func (s *Session) onDisconnect(req *dap.DisconnectRequest, terminateDebuggee *bool) bool {
	s.terminateBackend = terminateDebuggee == nil || *terminateDebuggee

	s.send(&dap.DisconnectResponse{Response: s.newResponse(&req.Request)})
	s.sendTerminated()
	s.lifecycle.Fire(lifecycleDisconnect)
	return true
}

// Variables

func (s *Session) onVariables(req *dap.VariablesRequest) {
	ref := req.Arguments.VariablesReference
	if !s.variables.handles.IsLocal(ref) {
		s.forward(req, &req.Request)
		return
	}

	vars, _ := s.variables.Children(ref)
	vars = pageVariables(vars, req.Arguments.Start, req.Arguments.Count)

	s.send(&dap.VariablesResponse{
		Response: s.newResponse(&req.Request),
		Body:     dap.VariablesResponseBody{Variables: vars},
	})
}

func pageVariables(vars []dap.Variable, start, count int) []dap.Variable {
	if start > 0 {
		if start >= len(vars) {
			return []dap.Variable{}
		}
		vars = vars[start:]
	}
	if count > 0 && count < len(vars) {
		vars = vars[:count]
	}
	return vars
}

func (s *Session) onEvaluate(req *dap.EvaluateRequest) {
	args := req.Arguments

	if args.Context == "repl" && s.evaluateConsoleCommand(req) {
		return
	}

	var v *RuntimeVariable
	if strings.HasPrefix(args.Expression, "$") {
		found, isKnown := s.variables.Lookup(args.Expression[1:])
		if !isKnown {
			s.sendErrorResponse(&req.Request, errorIdVariableNotFound, "variable '{lexpr}' not found",
				map[string]string{"lexpr": args.Expression})
			return
		}
		v = found
	} else {
		v = NewRuntimeVariable("eval", ParseValue(args.Expression))
	}

	dv := s.variables.ToDAP(v)
	s.send(&dap.EvaluateResponse{
		Response: s.newResponse(&req.Request),
		Body: dap.EvaluateResponseBody{
			Result:             dv.Value,
			Type:               dv.Type,
			PresentationHint:   dv.PresentationHint,
			VariablesReference: dv.VariablesReference,
			MemoryReference:    dv.MemoryReference,
		},
	})
}

// evaluateConsoleCommand handles the commands understood by the debug console.
// Returns false if the expression is not one of them.
func (s *Session) evaluateConsoleCommand(req *dap.EvaluateRequest) bool {
	expr := req.Arguments.Expression

	if m := newBreakpointCommand.FindStringSubmatch(expr); m != nil {
		line, err := strconv.Atoi(m[1])
		if err != nil {
			return false
		}

		bp := s.breakpoints.Create(s.programPath, line)
		s.sendBreakpointEvent("new", bp)
		if sf, found := s.sources.Get(s.programPath); found && len(sf.Columns(line)) > 0 {
			if s.breakpoints.Verify(bp.Id) {
				s.sendBreakpointEvent("changed", bp)
			}
		}
		s.sendEvaluateResult(req, "breakpoint created")
		return true
	}

	if m := delBreakpointCommand.FindStringSubmatch(expr); m != nil {
		line, err := strconv.Atoi(m[1])
		if err != nil {
			return false
		}

		if bp, found := s.breakpoints.Delete(s.programPath, line); found {
			s.sendBreakpointEvent("removed", bp)
			s.sendEvaluateResult(req, "breakpoint deleted")
		} else {
			s.sendEvaluateResult(req, fmt.Sprintf("no breakpoint at line %d", line))
		}
		return true
	}

	if progressCommand.MatchString(expr) {
		task := s.progress.Start()
		s.goBackground(func() {
			s.runProgress(s.lifetimeCtx, task)
		})
		s.sendEvaluateResult(req, "progress started")
		return true
	}

	return false
}

func (s *Session) sendEvaluateResult(req *dap.EvaluateRequest, result string) {
	s.send(&dap.EvaluateResponse{
		Response: s.newResponse(&req.Request),
		Body:     dap.EvaluateResponseBody{Result: result},
	})
}

func (s *Session) sendBreakpointEvent(reason string, bp *BreakpointRecord) {
	s.send(&dap.BreakpointEvent{
		Event: s.newEvent("breakpoint"),
		Body: dap.BreakpointEventBody{
			Reason:     reason,
			Breakpoint: bp.toDAP(),
		},
	})
}

func (s *Session) onSetExpression(req *dap.SetExpressionRequest) {
	expr := req.Arguments.Expression
	if !strings.HasPrefix(expr, "$") {
		s.sendErrorResponse(&req.Request, errorIdVariableNotFound, "'{lexpr}' not an assignable expression",
			map[string]string{"lexpr": expr})
		return
	}

	v, found := s.variables.Lookup(expr[1:])
	if !found {
		s.sendErrorResponse(&req.Request, errorIdVariableNotFound, "variable '{lexpr}' not found",
			map[string]string{"lexpr": expr})
		return
	}

	v.SetValue(ParseValue(req.Arguments.Value))
	dv := s.variables.ToDAP(v)
	s.send(&dap.SetExpressionResponse{
		Response: s.newResponse(&req.Request),
		Body: dap.SetExpressionResponseBody{
			Value:              dv.Value,
			Type:               dv.Type,
			VariablesReference: dv.VariablesReference,
		},
	})
	s.sendMemoryEvent(v)
}

func (s *Session) onSetVariable(req *dap.SetVariableRequest) {
	args := req.Arguments

	v, found := s.variables.LookupIn(args.VariablesReference, args.Name)
	if !found {
		v, found = s.variables.Lookup(args.Name)
	}
	if !found {
		s.log.V(1).Info("setVariable for an unknown variable", "name", args.Name, "variablesReference", args.VariablesReference)
		s.send(&dap.SetVariableResponse{Response: s.newResponse(&req.Request)})
		return
	}

	v.SetValue(ParseValue(args.Value))
	dv := s.variables.ToDAP(v)
	s.send(&dap.SetVariableResponse{
		Response: s.newResponse(&req.Request),
		Body: dap.SetVariableResponseBody{
			Value:              dv.Value,
			Type:               dv.Type,
			VariablesReference: dv.VariablesReference,
		},
	})
	s.sendMemoryEvent(v)
}

func (s *Session) sendMemoryEvent(v *RuntimeVariable) {
	memory := v.Memory()
	if memory == nil || v.reference == 0 {
		return
	}
	s.send(&dap.MemoryEvent{
		Event: s.newEvent("memory"),
		Body: dap.MemoryEventBody{
			MemoryReference: strconv.Itoa(v.reference),
			Offset:          0,
			Count:           len(memory),
		},
	})
}

// Memory

func (s *Session) onReadMemory(req *dap.ReadMemoryRequest) {
	args := req.Arguments
	count := max(args.Count, 0)

	var data []byte
	if owner, found := s.variables.MemoryOwner(args.MemoryReference); found {
		memory := owner.Memory()
		start := min(max(args.Offset, 0), len(memory))
		data = memory[start : start+min(count, len(memory)-start)]
	}

	s.send(&dap.ReadMemoryResponse{
		Response: s.newResponse(&req.Request),
		Body: dap.ReadMemoryResponseBody{
			Address:         strconv.Itoa(args.Offset),
			Data:            base64.StdEncoding.EncodeToString(data),
			UnreadableBytes: count - len(data),
		},
	})
}

func (s *Session) onWriteMemory(req *dap.WriteMemoryRequest) {
	args := req.Arguments

	data, decodeErr := base64.StdEncoding.DecodeString(args.Data)
	if decodeErr != nil {
		s.sendErrorResponse(&req.Request, errorIdInvalidArguments, "memory data is not valid base64: {reason}",
			map[string]string{"reason": decodeErr.Error()})
		return
	}

	written := 0
	if owner, found := s.variables.MemoryOwner(args.MemoryReference); found {
		written = owner.WriteMemory(data, args.Offset)
	}

	s.send(&dap.WriteMemoryResponse{
		Response: s.newResponse(&req.Request),
		Body: dap.WriteMemoryResponseBody{
			BytesWritten: written,
		},
	})
	if written > 0 {
		s.sendInvalidated("variables")
	}
}

// Data and instruction breakpoints

func (s *Session) onDataBreakpointInfo(req *dap.DataBreakpointInfoRequest) {
	var args struct {
		VariablesReference int    `json:"variablesReference"`
		Name               string `json:"name"`
	}
	if err := remarshal(req.Arguments, &args); err != nil {
		s.log.V(1).Info("Could not read dataBreakpointInfo arguments", "error", err.Error())
	}

	body := dap.DataBreakpointInfoResponseBody{
		Description: "cannot break on data access",
	}

	if args.VariablesReference != 0 && args.Name != "" {
		body.DataId = args.Name
		body.Description = args.Name
		if scope, isScope := s.variables.ScopeOf(args.VariablesReference); isScope && scope == ScopeGlobals {
			body.AccessTypes = append(body.AccessTypes, "write")
		} else {
			body.AccessTypes = append(body.AccessTypes, "read", "write", "readWrite")
		}
		body.CanPersist = true
	}

	s.send(&dap.DataBreakpointInfoResponse{
		Response: s.newResponse(&req.Request),
		Body:     body,
	})
}

func (s *Session) onSetDataBreakpoints(req *dap.SetDataBreakpointsRequest) {
	clear(s.dataBreakpoints)

	breakpoints := make([]dap.Breakpoint, 0, len(req.Arguments.Breakpoints))
	for _, dbp := range req.Arguments.Breakpoints {
		s.dataBreakpoints[dbp.DataId] = dbp
		breakpoints = append(breakpoints, dap.Breakpoint{Verified: true})
	}

	s.send(&dap.SetDataBreakpointsResponse{
		Response: s.newResponse(&req.Request),
		Body:     dap.SetDataBreakpointsResponseBody{Breakpoints: breakpoints},
	})
}

func (s *Session) onSetInstructionBreakpoints(req *dap.SetInstructionBreakpointsRequest) {
	clear(s.instructionBreakpoints)

	breakpoints := make([]dap.Breakpoint, 0, len(req.Arguments.Breakpoints))
	for _, ibp := range req.Arguments.Breakpoints {
		address, parseErr := strconv.ParseInt(ibp.InstructionReference, 0, 64)
		if parseErr != nil {
			breakpoints = append(breakpoints, dap.Breakpoint{Verified: false})
			continue
		}
		s.instructionBreakpoints[address+int64(ibp.Offset)] = true
		breakpoints = append(breakpoints, dap.Breakpoint{Verified: true})
	}

	s.send(&dap.SetInstructionBreakpointsResponse{
		Response: s.newResponse(&req.Request),
		Body:     dap.SetInstructionBreakpointsResponseBody{Breakpoints: breakpoints},
	})
}

// onDisassemble models the program as a sequence of instructions, one per word of its source.
// Addresses outside of the program disassemble to "nop".
func (s *Session) onDisassemble(req *dap.DisassembleRequest) {
	args := req.Arguments
	count := min(max(args.InstructionCount, 0), maxDisassembledInstructions)
	instructions := make([]dap.DisassembledInstruction, 0, count)

	base, parseErr := strconv.ParseInt(args.MemoryReference, 0, 64)
	if parseErr != nil {
		s.log.V(1).Info("Invalid memory reference for disassembly", "memoryReference", args.MemoryReference)
		s.send(&dap.DisassembleResponse{
			Response: s.newResponse(&req.Request),
			Body:     dap.DisassembleResponseBody{Instructions: instructions},
		})
		return
	}

	var program []instruction
	if sf, found := s.sources.Get(s.programPath); found {
		program = sf.instructions
	}

	start := base + int64(args.Offset) + int64(args.InstructionOffset)
	lastLine := 0
	for i := 0; i < count; i++ {
		address := start + int64(i)
		di := dap.DisassembledInstruction{
			Address:     s.formatAddress(address),
			Instruction: "nop",
		}
		if address >= 0 && address < int64(len(program)) {
			in := program[address]
			di.Instruction = in.name
			if in.line != lastLine {
				di.Line = in.line
				lastLine = in.line
			}
		}
		instructions = append(instructions, di)
	}

	s.send(&dap.DisassembleResponse{
		Response: s.newResponse(&req.Request),
		Body:     dap.DisassembleResponseBody{Instructions: instructions},
	})
}

func (s *Session) formatAddress(address int64) string {
	if s.variables.valuesInHex {
		return fmt.Sprintf("0x%08x", address)
	}
	return fmt.Sprintf("%08d", address)
}

// Source information

func (s *Session) onCompletions(req *dap.CompletionsRequest) {
	s.send(&dap.CompletionsResponse{
		Response: s.newResponse(&req.Request),
		Body: dap.CompletionsResponseBody{
			Targets: []dap.CompletionItem{
				{Label: "item 10", SortText: "10"},
				{Label: "item 1", SortText: "01"},
				{Label: "item 2", SortText: "02"},
				{Label: "array[]", SelectionStart: 6, SortText: "03"},
				{Label: "func(arg)", SelectionStart: 5, SelectionLength: 3, SortText: "04"},
			},
		},
	})
}

func (s *Session) onBreakpointLocations(req *dap.BreakpointLocationsRequest) {
	var args struct {
		Source struct {
			Path string `json:"path"`
		} `json:"source"`
		Line      int `json:"line"`
		Column    int `json:"column"`
		EndLine   int `json:"endLine"`
		EndColumn int `json:"endColumn"`
	}
	if err := remarshal(req.Arguments, &args); err != nil {
		s.log.V(1).Info("Could not read breakpointLocations arguments", "error", err.Error())
	}

	endLine := max(args.EndLine, args.Line)
	locations := []dap.BreakpointLocation{}

	path := args.Source.Path
	if path == "" {
		path = s.programPath
	}
	if sf, found := s.sources.Get(path); found {
		for _, line := range sf.CandidateLines(args.Line, endLine) {
			for _, col := range sf.Columns(line) {
				if line == args.Line && args.Column > 0 && col < args.Column {
					continue
				}
				if line == endLine && args.EndColumn > 0 && col > args.EndColumn {
					continue
				}
				locations = append(locations, dap.BreakpointLocation{Line: line, Column: col})
			}
		}
	}

	s.send(&dap.BreakpointLocationsResponse{
		Response: s.newResponse(&req.Request),
		Body:     dap.BreakpointLocationsResponseBody{Breakpoints: locations},
	})
}

// Exceptions

func (s *Session) onExceptionInfo(req *dap.ExceptionInfoRequest) {
	s.send(&dap.ExceptionInfoResponse{
		Response: s.newResponse(&req.Request),
		Body: dap.ExceptionInfoResponseBody{
			ExceptionId: "Exception ID",
			Description: "This is a descriptive description of the exception.",
			BreakMode:   "always",
			Details: &dap.ExceptionDetails{
				Message:    "Message contained in the exception.",
				TypeName:   "Short type name of the exception object",
				StackTrace: "stack frame 1\nstack frame 2",
			},
		},
	})
}

func (s *Session) onSetExceptionBreakpoints(req *dap.SetExceptionBreakpointsRequest) {
	var args struct {
		Filters       []string `json:"filters"`
		FilterOptions []struct {
			FilterId  string `json:"filterId"`
			Condition string `json:"condition"`
		} `json:"filterOptions"`
	}
	if err := remarshal(req.Arguments, &args); err != nil {
		s.log.V(1).Info("Could not read setExceptionBreakpoints arguments", "error", err.Error())
	}

	s.namedException = ""
	s.breakOnOtherExceptions = false

	for _, f := range args.Filters {
		if f == "otherExceptions" {
			s.breakOnOtherExceptions = true
		}
	}
	for _, fo := range args.FilterOptions {
		switch fo.FilterId {
		case "namedException":
			s.namedException = fo.Condition
		case "otherExceptions":
			s.breakOnOtherExceptions = true
		}
	}

	s.log.V(1).Info("Exception breakpoints updated", "namedException", s.namedException, "otherExceptions", s.breakOnOtherExceptions)
	s.send(&dap.SetExceptionBreakpointsResponse{Response: s.newResponse(&req.Request)})
}

// Cancellation

func (s *Session) onCancel(req *dap.CancelRequest) {
	var args struct {
		RequestId  int    `json:"requestId"`
		ProgressId string `json:"progressId"`
	}
	if err := remarshal(req.Arguments, &args); err != nil {
		s.log.V(1).Info("Could not read cancel arguments", "error", err.Error())
	}

	if args.RequestId != 0 {
		s.cancelledRequests[args.RequestId] = true
	}
	if args.ProgressId != "" && !s.progress.Cancel(args.ProgressId) {
		s.log.V(1).Info("Cancellation requested for unknown progress", "progressId", args.ProgressId)
	}

	s.send(&dap.CancelResponse{Response: s.newResponse(&req.Request)})
}

// Custom requests

func (s *Session) onRawMessage(msg *RawMessage) {
	if msg.Type != messageTypeRequest {
		s.log.V(1).Info("Ignoring unexpected message from client", "type", msg.Type)
		return
	}

	req := &dap.Request{
		ProtocolMessage: dap.ProtocolMessage{Seq: msg.Seq, Type: messageTypeRequest},
		Command:         msg.Command,
	}

	switch msg.Command {
	case toggleFormattingCommand:
		s.variables.valuesInHex = !s.variables.valuesInHex
		s.sendInvalidated("variables")
		s.sendEmptyResponse(req)
	default:
		s.log.V(1).Info("Unsupported request, sending empty response", "command", msg.Command)
		s.sendEmptyResponse(req)
	}
}
