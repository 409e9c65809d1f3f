// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package chunkedfile provides golden files for tests of tree
// transformations.
//
// A chunked file consists of several chunks separated by "---" lines.
// Each chunk begins with a line "### name" naming a test case; the
// remaining lines are the output expected for that case.
//
// Example:
//
//	### sum
//	state 0 -> start
//	state 1 -> resume1
//	---
//	### empty
//	state 0 -> start
//
// A client test calls Check with the actual output of each case, then
// Done. Any discrepancy, and any chunk that was never checked, is
// reported using the client's reporter, which is typically a testing.T.
package chunkedfile // import "go.exprtree.net/internal/chunkedfile"

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

const debug = false

// A Chunk is the expected output of one named case.
type Chunk struct {
	Name    string
	Want    string
	line    int
	checked bool
}

// Reporter is implemented by *testing.T.
type Reporter interface {
	Errorf(format string, args ...interface{})
}

// A File is a parsed chunked file.
type File struct {
	filename string
	report   Reporter
	chunks   []*Chunk
	byName   map[string]*Chunk
}

// Read parses a chunked file. It reports failures using the reporter.
func Read(filename string, report Reporter) *File {
	data, err := os.ReadFile(filename)
	if err != nil {
		report.Errorf("%s", err)
		return &File{filename: filename, report: report, byName: map[string]*Chunk{}}
	}
	eol := "\n"
	if runtime.GOOS == "windows" {
		eol = "\r\n"
	}
	return readBytes(filename, data, report, eol)
}

func readBytes(filename string, data []byte, report Reporter, eol string) *File {
	f := &File{filename: filename, report: report, byName: make(map[string]*Chunk)}
	linenum := 1
	for i, chunk := range strings.Split(string(data), eol+"---"+eol) {
		if debug {
			fmt.Printf("chunk %d at line %d: %s\n", i, linenum, chunk)
		}
		start := linenum
		linenum += strings.Count(chunk, "\n") + 2

		header, body, _ := strings.Cut(chunk, "\n")
		name := strings.TrimSpace(strings.TrimPrefix(header, "###"))
		if !strings.HasPrefix(header, "###") || name == "" {
			report.Errorf("\n%s:%d: chunk lacks a ### name line", filename, start)
			continue
		}
		if _, dup := f.byName[name]; dup {
			report.Errorf("\n%s:%d: duplicate chunk %q", filename, start, name)
			continue
		}
		c := &Chunk{Name: name, Want: normalize(body), line: start}
		f.chunks = append(f.chunks, c)
		f.byName[name] = c
	}
	return f
}

func normalize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n")) + "\n"
}

// Chunks returns the chunks in file order.
func (f *File) Chunks() []*Chunk { return f.chunks }

// Check compares got with the chunk called name, ignoring leading and
// trailing blank space, and reports a diff if they differ.
func (f *File) Check(name, got string) {
	c, ok := f.byName[name]
	if !ok {
		f.report.Errorf("\n%s: no chunk %q; got:\n%s", f.filename, name, got)
		return
	}
	c.checked = true
	got = normalize(got)
	if got == c.Want {
		return
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(c.Want),
		B:        difflib.SplitLines(got),
		FromFile: "want",
		ToFile:   "got",
		Context:  3,
	})
	f.report.Errorf("\n%s:%d: %s differs:\n%s", f.filename, c.line, name, diff)
}

// Done reports chunks that were never checked.
func (f *File) Done() {
	for _, c := range f.chunks {
		if !c.checked {
			f.report.Errorf("\n%s:%d: chunk %q was not checked", f.filename, c.line, c.Name)
		}
	}
}
