// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package dap

import (
	"fmt"
)

type ScopeTag string

const (
	ScopeLocals  ScopeTag = "locals"
	ScopeGlobals ScopeTag = "globals"
)

// LocalHandleBase is the first handle the relay allocates on its own.
// Handles below it belong to the debugger backend.
const LocalHandleBase = 1_000_000

// HandleEntry is what a variable handle refers to: either a scope or a single variable.
type HandleEntry struct {
	Scope    ScopeTag
	Variable *RuntimeVariable
}

// VariableTable maps opaque integer handles to scopes and variables for the lifetime of one session.
//
// Handles are allocated by Create and are never reused or invalidated.
// Handle 0 is never allocated; it means "nothing to expand".
type VariableTable struct {
	next    int
	entries map[int]HandleEntry
}

func NewVariableTable() *VariableTable {
	return &VariableTable{
		next:    LocalHandleBase,
		entries: make(map[int]HandleEntry),
	}
}

// Create allocates a new handle for the entry.
func (t *VariableTable) Create(entry HandleEntry) int {
	handle := t.next
	t.next++
	t.entries[handle] = entry
	return handle
}

// Bind records what a backend-owned handle refers to.
func (t *VariableTable) Bind(handle int, entry HandleEntry) error {
	if handle <= 0 || handle >= LocalHandleBase {
		return fmt.Errorf("handle %d is not a backend handle", handle)
	}
	t.entries[handle] = entry
	return nil
}

// Get returns the entry for the handle. The second result is false if the handle is unknown.
func (t *VariableTable) Get(handle int) (HandleEntry, bool) {
	entry, found := t.entries[handle]
	return entry, found
}

// IsLocal reports whether the handle was allocated by the relay.
func (t *VariableTable) IsLocal(handle int) bool {
	return handle >= LocalHandleBase && handle < t.next
}

func (t *VariableTable) Len() int {
	return len(t.entries)
}
