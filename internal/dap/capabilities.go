// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package dap

import (
	"github.com/google/go-dap"
)

// relayCapabilities returns the capabilities the relay declares in its initialize response.
// Step back, data breakpoints and function breakpoints are handled but not declared.
func relayCapabilities() dap.Capabilities {
	return dap.Capabilities{
		SupportsConfigurationDoneRequest:   true,
		SupportsEvaluateForHovers:          true,
		SupportsCompletionsRequest:         true,
		CompletionTriggerCharacters:        []string{".", "["},
		SupportsCancelRequest:              true,
		SupportsBreakpointLocationsRequest: true,
		SupportsStepInTargetsRequest:       true,
		SupportsExceptionFilterOptions:     true,
		SupportsExceptionInfoRequest:       true,
		SupportsSetVariable:                true,
		SupportsSetExpression:              true,
		SupportsDisassembleRequest:         true,
		SupportsSteppingGranularity:        true,
		SupportsReadMemoryRequest:          true,
		SupportsWriteMemoryRequest:         true,
		SupportSuspendDebuggee:             true,
		SupportTerminateDebuggee:           true,
		SupportsDelayedStackTraceLoading:   true,
	}
}
