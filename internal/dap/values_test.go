// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package dap

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseValue(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input    string
		expected RuntimeValue
	}{
		{"true", BooleanValue(true)},
		{"false", BooleanValue(false)},
		{"  true ", BooleanValue(true)},
		{"True", StringValue("True")},
		{`"hello"`, StringValue("hello")},
		{`'hello'`, StringValue("hello")},
		{`"true"`, StringValue("true")},
		{`"42"`, StringValue("42")},
		{`"unterminated`, StringValue("unterminated")},
		{"42", NumberValue(42)},
		{"-3.5", NumberValue(-3.5)},
		{"1e3", NumberValue(1000)},
		{"NaN", StringValue("NaN")},
		{"abc", StringValue("abc")},
		{"", StringValue("")},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseValue(tc.input))
		})
	}
}

func TestRuntimeValueTypeName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "boolean", BooleanValue(false).TypeName())
	assert.Equal(t, "integer", NumberValue(7).TypeName())
	assert.Equal(t, "float", NumberValue(7.25).TypeName())
	assert.Equal(t, "string", StringValue("x").TypeName())
	assert.Equal(t, "object", ListValue().TypeName())
}

func TestRuntimeValueIsInteger(t *testing.T) {
	t.Parallel()

	assert.True(t, NumberValue(0).IsInteger())
	assert.True(t, NumberValue(-(1 << 63)).IsInteger())
	assert.True(t, NumberValue(1<<62).IsInteger())
	assert.False(t, NumberValue(1<<63).IsInteger())
	assert.False(t, NumberValue(-(1<<63)-4096).IsInteger())
	assert.False(t, NumberValue(math.Inf(1)).IsInteger())
	assert.False(t, NumberValue(0.5).IsInteger())
	assert.False(t, StringValue("1").IsInteger())
}

func TestRuntimeVariableMemory(t *testing.T) {
	t.Parallel()

	v := NewRuntimeVariable("greeting", StringValue("hello"))
	assert.Equal(t, []byte("hello"), v.Memory())

	written := v.WriteMemory([]byte("J"), 0)
	assert.Equal(t, 1, written)
	assert.Equal(t, "Jello", v.Value.Text)

	// Writes never grow the memory.
	written = v.WriteMemory([]byte("y!!!"), 4)
	assert.Equal(t, 1, written)
	assert.Equal(t, "Jelly", v.Value.Text)

	assert.Equal(t, 0, v.WriteMemory([]byte("x"), 5))
	assert.Equal(t, 0, v.WriteMemory([]byte("x"), -1))

	v.SetValue(NumberValue(3))
	assert.Nil(t, v.Memory(), "numbers have no memory")
}
