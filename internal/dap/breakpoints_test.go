// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package dap

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-dap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakpointStoreCreateAndDelete(t *testing.T) {
	t.Parallel()

	s := newBreakpointStore()
	first := s.Create("main.ring", 10)
	second := s.Create("main.ring", 3)
	third := s.Create("main.ring", 10)

	assert.Equal(t, 1, first.Id)
	assert.Equal(t, 2, second.Id)
	assert.Equal(t, 3, third.Id)
	assert.False(t, first.Verified)
	assert.Equal(t, []int{3, 10}, s.Lines("main.ring"))

	removed, found := s.Delete("main.ring", 10)
	require.True(t, found)
	assert.Equal(t, first.Id, removed.Id, "oldest breakpoint on the line goes first")

	removed, found = s.Delete("main.ring", 10)
	require.True(t, found)
	assert.Equal(t, third.Id, removed.Id)

	_, found = s.Delete("main.ring", 10)
	assert.False(t, found)
	_, found = s.Delete("other.ring", 3)
	assert.False(t, found)

	assert.Equal(t, []int{3}, s.Lines("main.ring"))

	// Ids are never reused.
	next := s.Create("main.ring", 10)
	assert.Equal(t, 4, next.Id)
}

func TestBreakpointStoreVerify(t *testing.T) {
	t.Parallel()

	s := newBreakpointStore()
	bp := s.Create("main.ring", 1)

	assert.True(t, s.Verify(bp.Id))
	assert.True(t, bp.Verified)
	assert.False(t, s.Verify(bp.Id), "already verified")
	assert.False(t, s.Verify(999))
}

func TestBreakpointStoreFollowsBackendIds(t *testing.T) {
	t.Parallel()

	s := newBreakpointStore()
	s.ReplaceFromBackend("main.ring", []dap.Breakpoint{
		{Id: 7, Line: 4, Verified: true},
		{Id: 8, Line: 9},
	})

	local := s.Create("main.ring", 12)
	assert.Equal(t, 9, local.Id)

	s.ObserveBackendEvent("changed", dap.Breakpoint{Id: 8, Line: 9, Verified: true})
	s.ObserveBackendEvent("new", dap.Breakpoint{Id: 20, Line: 1})

	got := []BreakpointRecord{*s.byId[7], *s.byId[8], *s.byId[9]}
	expected := []BreakpointRecord{
		{Id: 7, Source: "main.ring", Line: 4, Verified: true},
		{Id: 8, Source: "main.ring", Line: 9, Verified: true},
		{Id: 9, Source: "main.ring", Line: 12},
	}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("unexpected breakpoints (-want +got):\n%s", diff)
	}

	assert.Equal(t, 21, s.Create("main.ring", 2).Id)

	// A new setBreakpoints response replaces everything known for the source.
	s.ReplaceFromBackend("main.ring", []dap.Breakpoint{{Id: 30, Line: 5}})
	assert.Equal(t, []int{5}, s.Lines("main.ring"))

	s.ObserveBackendEvent("removed", dap.Breakpoint{Id: 30})
	assert.Empty(t, s.Lines("main.ring"))
}

func TestBreakpointRecordToDAP(t *testing.T) {
	t.Parallel()

	withSource := (&BreakpointRecord{Id: 3, Source: "/work/game/main.ring", Line: 5, Verified: true}).toDAP()
	expected := dap.Breakpoint{
		Id:       3,
		Verified: true,
		Line:     5,
		Source:   &dap.Source{Path: "/work/game/main.ring", Name: "main.ring"},
	}
	if diff := cmp.Diff(expected, withSource); diff != "" {
		t.Errorf("unexpected breakpoint (-want +got):\n%s", diff)
	}

	assert.Nil(t, (&BreakpointRecord{Id: 4, Line: 1}).toDAP().Source)
}
