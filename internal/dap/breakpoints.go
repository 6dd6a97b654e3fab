// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package dap

import (
	"path/filepath"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/google/go-dap"
)

// BreakpointRecord is a source breakpoint known to the relay, either reported by the backend
// or created locally from the debug console.
type BreakpointRecord struct {
	Id       int
	Source   string
	Line     int
	Verified bool
}

func (r *BreakpointRecord) toDAP() dap.Breakpoint {
	bp := dap.Breakpoint{
		Id:       r.Id,
		Verified: r.Verified,
		Line:     r.Line,
	}
	if r.Source != "" {
		bp.Source = &dap.Source{Path: r.Source, Name: filepath.Base(r.Source)}
	}
	return bp
}

// breakpointStore tracks breakpoints per source, ordered by line.
// Ids are unique for the whole session: locally assigned ids continue after the highest id seen so far.
type breakpointStore struct {
	lastId   int
	bySource map[string]*treemap.Map // source -> line (int) -> []*BreakpointRecord
	byId     map[int]*BreakpointRecord
}

func newBreakpointStore() *breakpointStore {
	return &breakpointStore{
		bySource: make(map[string]*treemap.Map),
		byId:     make(map[int]*BreakpointRecord),
	}
}

func (s *breakpointStore) lines(source string) *treemap.Map {
	lines, found := s.bySource[source]
	if !found {
		lines = treemap.NewWithIntComparator()
		s.bySource[source] = lines
	}
	return lines
}

func (s *breakpointStore) add(r *BreakpointRecord) {
	lines := s.lines(r.Source)
	existing, _ := lines.Get(r.Line)
	records, _ := existing.([]*BreakpointRecord)
	lines.Put(r.Line, append(records, r))
	s.byId[r.Id] = r
	if r.Id > s.lastId {
		s.lastId = r.Id
	}
}

// Create adds a new, unverified breakpoint at the line.
func (s *breakpointStore) Create(source string, line int) *BreakpointRecord {
	r := &BreakpointRecord{
		Id:     s.lastId + 1,
		Source: source,
		Line:   line,
	}
	s.add(r)
	return r
}

// Delete removes the oldest breakpoint at the line.
func (s *breakpointStore) Delete(source string, line int) (*BreakpointRecord, bool) {
	lines, found := s.bySource[source]
	if !found {
		return nil, false
	}

	existing, found := lines.Get(line)
	if !found {
		return nil, false
	}

	removed := existing.([]*BreakpointRecord)[0]
	s.remove(removed)
	return removed, true
}

func (s *breakpointStore) remove(r *BreakpointRecord) {
	delete(s.byId, r.Id)

	lines, found := s.bySource[r.Source]
	if !found {
		return
	}
	existing, found := lines.Get(r.Line)
	if !found {
		return
	}

	records := existing.([]*BreakpointRecord)
	remaining := make([]*BreakpointRecord, 0, len(records))
	for _, other := range records {
		if other != r {
			remaining = append(remaining, other)
		}
	}
	if len(remaining) == 0 {
		lines.Remove(r.Line)
	} else {
		lines.Put(r.Line, remaining)
	}
}

// Verify marks the breakpoint as verified. Returns true if the flag changed.
func (s *breakpointStore) Verify(id int) bool {
	r, found := s.byId[id]
	if !found || r.Verified {
		return false
	}
	r.Verified = true
	return true
}

// ReplaceFromBackend records the breakpoints the backend reported for a source,
// replacing whatever was known for that source before.
func (s *breakpointStore) ReplaceFromBackend(source string, breakpoints []dap.Breakpoint) {
	if lines, found := s.bySource[source]; found {
		for _, records := range lines.Values() {
			for _, r := range records.([]*BreakpointRecord) {
				delete(s.byId, r.Id)
			}
		}
		lines.Clear()
	}

	for _, bp := range breakpoints {
		id := bp.Id
		if id == 0 {
			id = s.lastId + 1
		}
		s.add(&BreakpointRecord{
			Id:       id,
			Source:   source,
			Line:     bp.Line,
			Verified: bp.Verified,
		})
	}
}

// ObserveBackendEvent updates the store from a breakpoint event sent by the backend.
func (s *breakpointStore) ObserveBackendEvent(reason string, bp dap.Breakpoint) {
	if bp.Id > s.lastId {
		s.lastId = bp.Id
	}

	r, found := s.byId[bp.Id]
	if !found {
		return
	}

	switch reason {
	case "removed":
		s.remove(r)
	default:
		if bp.Verified {
			r.Verified = true
		}
	}
}

// Lines returns the lines that have breakpoints in the source, in ascending order.
func (s *breakpointStore) Lines(source string) []int {
	lines, found := s.bySource[source]
	if !found {
		return nil
	}

	keys := lines.Keys()
	result := make([]int, 0, len(keys))
	for _, k := range keys {
		result = append(result, k.(int))
	}
	return result
}
