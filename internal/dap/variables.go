// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package dap

import (
	"sort"
	"strconv"
	"strings"

	"github.com/google/go-dap"
)

// Variables whose name contains this marker need one extra expansion before their value is shown.
const lazyMarker = "lazy"

// variableStore holds the variables the relay knows about, indexed by scope and name,
// and renders them in DAP wire form. It is only accessed from the session loop.
type variableStore struct {
	handles     *VariableTable
	scopes      map[ScopeTag]map[string]*RuntimeVariable
	valuesInHex bool
}

func newVariableStore() *variableStore {
	return &variableStore{
		handles: NewVariableTable(),
		scopes: map[ScopeTag]map[string]*RuntimeVariable{
			ScopeLocals:  {},
			ScopeGlobals: {},
		},
	}
}

// Lookup finds a variable by name, locals first.
func (s *variableStore) Lookup(name string) (*RuntimeVariable, bool) {
	for _, scope := range []ScopeTag{ScopeLocals, ScopeGlobals} {
		if v, found := s.scopes[scope][name]; found {
			return v, true
		}
	}
	return nil, false
}

// LookupIn finds a variable in the container identified by the handle:
// a scope, or a list variable whose children are searched by name.
func (s *variableStore) LookupIn(handle int, name string) (*RuntimeVariable, bool) {
	entry, found := s.handles.Get(handle)
	if !found {
		return nil, false
	}

	if entry.Variable == nil {
		v, found := s.scopes[entry.Scope][name]
		return v, found
	}

	if entry.Variable.Value.Kind != ValueList {
		return nil, false
	}
	for _, child := range entry.Variable.Value.List {
		if child.Name == name {
			return child, true
		}
	}
	return nil, false
}

// Record stores a variable reported by the backend. An already known variable is updated in place,
// so handles that refer to it stay valid.
func (s *variableStore) Record(scope ScopeTag, name string, value RuntimeValue, backendReference int) *RuntimeVariable {
	vars, found := s.scopes[scope]
	if !found {
		vars = map[string]*RuntimeVariable{}
		s.scopes[scope] = vars
	}

	v, known := vars[name]
	if !known {
		v = NewRuntimeVariable(name, value)
		vars[name] = v
	} else {
		v.SetValue(value)
	}
	v.backendReference = backendReference
	return v
}

// ScopeOf returns the scope a handle refers to, if it refers to one.
func (s *variableStore) ScopeOf(handle int) (ScopeTag, bool) {
	entry, found := s.handles.Get(handle)
	if !found || entry.Variable != nil {
		return "", false
	}
	return entry.Scope, true
}

// Children renders the variables reachable through a relay-owned handle.
func (s *variableStore) Children(handle int) ([]dap.Variable, bool) {
	entry, found := s.handles.Get(handle)
	if !found {
		return nil, false
	}

	var children []*RuntimeVariable
	switch {
	case entry.Variable == nil:
		vars := s.scopes[entry.Scope]
		names := make([]string, 0, len(vars))
		for name := range vars {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			children = append(children, vars[name])
		}
	case entry.Variable.Value.Kind == ValueList:
		children = entry.Variable.Value.List
	}

	rendered := make([]dap.Variable, 0, len(children))
	for _, child := range children {
		rendered = append(rendered, s.ToDAP(child))
	}
	return rendered, true
}

// ToDAP renders a variable in wire form, allocating handles for children and memory as needed.
func (s *variableStore) ToDAP(v *RuntimeVariable) dap.Variable {
	dv := dap.Variable{
		Name:         v.Name,
		Value:        "???",
		Type:         v.Value.TypeName(),
		EvaluateName: "$" + v.Name,
	}

	switch {
	case strings.Contains(v.Name, lazyMarker):
		if v.lazyReference == 0 {
			inner := NewRuntimeVariable("", v.Value)
			inner.backendReference = v.backendReference
			wrapper := NewRuntimeVariable("", ListValue(inner))
			v.lazyReference = s.handles.Create(HandleEntry{Variable: wrapper})
		}
		dv.Value = "lazy var"
		dv.VariablesReference = v.lazyReference
		dv.PresentationHint = &dap.VariablePresentationHint{Lazy: true}

	case v.Value.Kind == ValueList:
		if v.reference == 0 {
			v.reference = s.handles.Create(HandleEntry{Variable: v})
		}
		dv.Value = "Object"
		dv.VariablesReference = v.reference

	default:
		dv.Value = s.FormatValue(v.Value)
		dv.VariablesReference = v.backendReference
	}

	if v.Memory() != nil {
		if v.reference == 0 {
			v.reference = s.handles.Create(HandleEntry{Variable: v})
		}
		dv.MemoryReference = strconv.Itoa(v.reference)
	}

	return dv
}

// FormatValue renders a scalar value for display.
func (s *variableStore) FormatValue(value RuntimeValue) string {
	switch value.Kind {
	case ValueBoolean:
		return strconv.FormatBool(value.Boolean)
	case ValueNumber:
		if value.IsInteger() {
			return s.FormatInteger(int64(value.Number))
		}
		return strconv.FormatFloat(value.Number, 'g', -1, 64)
	case ValueString:
		return `"` + value.Text + `"`
	default:
		return "Object"
	}
}

// FormatInteger renders an integer in the current display base.
func (s *variableStore) FormatInteger(n int64) string {
	if !s.valuesInHex {
		return strconv.FormatInt(n, 10)
	}
	if n < 0 {
		return "-0x" + strconv.FormatUint(uint64(-n), 16)
	}
	return "0x" + strconv.FormatInt(n, 16)
}

// MemoryOwner returns the variable whose memory is identified by the reference.
func (s *variableStore) MemoryOwner(memoryReference string) (*RuntimeVariable, bool) {
	handle, err := strconv.Atoi(memoryReference)
	if err != nil {
		return nil, false
	}
	entry, found := s.handles.Get(handle)
	if !found || entry.Variable == nil {
		return nil, false
	}
	return entry.Variable, true
}
