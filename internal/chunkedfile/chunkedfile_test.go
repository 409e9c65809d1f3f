// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
package chunkedfile

import (
	"fmt"
	"strings"
	"testing"
)

type testReporter struct {
	reported []string
}

func (r *testReporter) Errorf(format string, args ...interface{}) {
	formatted := fmt.Sprintf(format, args...)
	r.reported = append(r.reported, formatted)
}

func (r *testReporter) assertNone(t *testing.T) {
	t.Helper()
	if len(r.reported) > 0 {
		t.Errorf("reporter expected no errors, got %q", r.reported)
	}
}

func (r *testReporter) assertOne(t *testing.T, substr string) {
	t.Helper()
	if len(r.reported) != 1 {
		t.Fatalf("reporter expected 1 error, got %q", r.reported)
	}
	if !strings.Contains(r.reported[0], substr) {
		t.Fatalf("reporter expected %q, got %q", substr, r.reported[0])
	}
}

func (r *testReporter) reset() {
	r.reported = nil
}

func TestChunkedFile(t *testing.T) {
	data := []byte(`### first
a
b
---
### second

c
`)

	reporter := &testReporter{}
	f := readBytes("test.golden", data, reporter, "\n")
	reporter.assertNone(t)

	chunks := f.Chunks()
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Name != "first" || chunks[0].Want != "a\nb\n" {
		t.Errorf("first chunk = %q %q", chunks[0].Name, chunks[0].Want)
	}
	if chunks[1].Name != "second" || chunks[1].Want != "c\n" || chunks[1].line != 5 {
		t.Errorf("second chunk = %q %q at line %d", chunks[1].Name, chunks[1].Want, chunks[1].line)
	}

	f.Check("first", "\na\nb")
	reporter.assertNone(t)

	f.Check("second", "d\n")
	reporter.assertOne(t, "test.golden:5: second differs")
	if !strings.Contains(reporter.reported[0], "-c") || !strings.Contains(reporter.reported[0], "+d") {
		t.Errorf("report lacks a diff: %s", reporter.reported[0])
	}
	reporter.reset()

	f.Check("third", "x")
	reporter.assertOne(t, `no chunk "third"`)
	reporter.reset()

	f.Done()
	reporter.assertNone(t)
}

func TestUncheckedAndMalformed(t *testing.T) {
	reporter := &testReporter{}
	f := readBytes("test.golden", []byte("### a\nx\n---\nno header\n"), reporter, "\n")
	reporter.assertOne(t, "test.golden:4: chunk lacks a ### name line")
	reporter.reset()

	f.Done()
	reporter.assertOne(t, `chunk "a" was not checked`)
	reporter.reset()

	readBytes("test.golden", []byte("### a\n---\n### a\n"), reporter, "\n")
	reporter.assertOne(t, `duplicate chunk "a"`)
}

func TestReadMissingFile(t *testing.T) {
	reporter := &testReporter{}
	f := Read("testdata/does-not-exist.golden", reporter)
	if len(reporter.reported) != 1 || len(f.Chunks()) != 0 {
		t.Errorf("Read of a missing file: %q, %d chunks", reporter.reported, len(f.Chunks()))
	}
}
