// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package dap

import (
	"math"
	"strconv"
	"strings"
)

type ValueKind int

const (
	ValueString ValueKind = iota
	ValueNumber
	ValueBoolean
	ValueList
)

// RuntimeValue is the value of a variable as the relay understands it:
// a boolean, a number, a string, or an ordered list of child variables.
type RuntimeValue struct {
	Kind    ValueKind
	Boolean bool
	Number  float64
	Text    string
	List    []*RuntimeVariable
}

func BooleanValue(b bool) RuntimeValue {
	return RuntimeValue{Kind: ValueBoolean, Boolean: b}
}

func NumberValue(n float64) RuntimeValue {
	return RuntimeValue{Kind: ValueNumber, Number: n}
}

func StringValue(s string) RuntimeValue {
	return RuntimeValue{Kind: ValueString, Text: s}
}

func ListValue(children ...*RuntimeVariable) RuntimeValue {
	return RuntimeValue{Kind: ValueList, List: children}
}

// IsInteger reports whether the value is a number without a fractional part that fits in an int64.
func (v RuntimeValue) IsInteger() bool {
	return v.Kind == ValueNumber &&
		v.Number == math.Trunc(v.Number) &&
		v.Number >= -(1<<63) && v.Number < 1<<63
}

// TypeName returns the type shown to the editor.
func (v RuntimeValue) TypeName() string {
	switch v.Kind {
	case ValueBoolean:
		return "boolean"
	case ValueNumber:
		if v.IsInteger() {
			return "integer"
		}
		return "float"
	case ValueList:
		return "object"
	default:
		return "string"
	}
}

// ParseValue converts text typed by the user (or rendered by the backend) into a runtime value.
// The rules are applied in order:
//   - "true" and "false" become booleans
//   - text starting with a single or double quote becomes a string with the quotes removed
//   - text that parses as a floating point number becomes a number
//   - anything else is kept as a string
//
// Surrounding whitespace is ignored.
func ParseValue(text string) RuntimeValue {
	value := strings.TrimSpace(text)

	switch value {
	case "true":
		return BooleanValue(true)
	case "false":
		return BooleanValue(false)
	}

	if len(value) > 0 && (value[0] == '"' || value[0] == '\'') {
		quote := value[0]
		unquoted := value[1:]
		if len(unquoted) > 0 && unquoted[len(unquoted)-1] == quote {
			unquoted = unquoted[:len(unquoted)-1]
		}
		return StringValue(unquoted)
	}

	if n, err := strconv.ParseFloat(value, 64); err == nil && !math.IsNaN(n) {
		return NumberValue(n)
	}

	return StringValue(value)
}

// RuntimeVariable is a named value tracked by the relay.
type RuntimeVariable struct {
	Name  string
	Value RuntimeValue

	// Handle of this variable in the reference table, allocated when the variable
	// first needs one (children or memory). 0 means none was allocated yet.
	reference int

	// Handle of the extra indirection layer shown for lazy variables.
	lazyReference int

	// Handle the backend uses for the children of this variable, if the variable came from the backend.
	backendReference int

	memory []byte
}

func NewRuntimeVariable(name string, value RuntimeValue) *RuntimeVariable {
	return &RuntimeVariable{Name: name, Value: value}
}

// SetValue replaces the value in place. Memory is re-derived from the new value on next access.
func (v *RuntimeVariable) SetValue(value RuntimeValue) {
	v.Value = value
	v.memory = nil
}

// Memory returns the raw bytes backing a string variable, or nil for other kinds of values.
func (v *RuntimeVariable) Memory() []byte {
	if v.memory == nil && v.Value.Kind == ValueString {
		v.memory = []byte(v.Value.Text)
	}
	return v.memory
}

// WriteMemory overwrites memory starting at offset and returns the number of bytes written.
// Writes never grow the memory; the part of data that does not fit is discarded.
func (v *RuntimeVariable) WriteMemory(data []byte, offset int) int {
	memory := v.Memory()
	if memory == nil || offset < 0 || offset >= len(memory) {
		return 0
	}

	written := copy(memory[offset:], data)
	v.memory = memory
	v.Value = StringValue(string(memory))
	return written
}
