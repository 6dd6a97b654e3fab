// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package dap

import (
	"os"
	"regexp"
	"strings"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/go-logr/logr"
)

// SourceLoader returns the content of a source file.
type SourceLoader func(path string) ([]byte, error)

var wordPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// instruction is one entry of the address model used for disassembly:
// every word of the program, in order, is one instruction.
type instruction struct {
	name string
	line int // 1-based
}

// sourceFile is a program source split into the positions the relay can reason about.
type sourceFile struct {
	// line (int, 1-based) -> []int of 1-based columns where a word starts
	columns      *treemap.Map
	instructions []instruction
}

func parseSourceFile(content []byte) *sourceFile {
	sf := &sourceFile{
		columns: treemap.NewWithIntComparator(),
	}

	lines := strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")

	for i, text := range lines {
		line := i + 1
		matches := wordPattern.FindAllStringIndex(text, -1)
		if len(matches) == 0 {
			continue
		}

		cols := make([]int, 0, len(matches))
		for _, m := range matches {
			cols = append(cols, m[0]+1)
			sf.instructions = append(sf.instructions, instruction{name: text[m[0]:m[1]], line: line})
		}
		sf.columns.Put(line, cols)
	}

	return sf
}

// Columns returns candidate breakpoint columns for the line. Lines without any word have none.
func (sf *sourceFile) Columns(line int) []int {
	cols, found := sf.columns.Get(line)
	if !found {
		return nil
	}
	return cols.([]int)
}

// CandidateLines returns the lines in [from, to] that have at least one candidate column, in order.
func (sf *sourceFile) CandidateLines(from, to int) []int {
	var lines []int
	it := sf.columns.Iterator()
	for it.Next() {
		line := it.Key().(int)
		if line > to {
			break
		}
		if line >= from {
			lines = append(lines, line)
		}
	}
	return lines
}

// sourceCache loads each source file once per session.
type sourceCache struct {
	load  SourceLoader
	files map[string]*sourceFile
	log   logr.Logger
}

func newSourceCache(load SourceLoader, log logr.Logger) *sourceCache {
	if load == nil {
		load = os.ReadFile
	}
	return &sourceCache{
		load:  load,
		files: make(map[string]*sourceFile),
		log:   log,
	}
}

// Get returns the parsed source, or false if it cannot be read.
func (c *sourceCache) Get(path string) (*sourceFile, bool) {
	if path == "" {
		return nil, false
	}

	if sf, found := c.files[path]; found {
		return sf, sf != nil
	}

	content, err := c.load(path)
	if err != nil {
		c.log.V(1).Info("Source file is not available", "path", path, "error", err.Error())
		c.files[path] = nil
		return nil, false
	}

	sf := parseSourceFile(content)
	c.files[path] = sf
	return sf, true
}
