// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package exprtest defines utilities for testing code that builds
// expression trees.
package exprtest // import "go.exprtree.net/exprtest"

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"go.exprtree.net/compile"
	"go.exprtree.net/expr"
	"go.exprtree.net/exprpb"
)

// A Reporter is a value to which test failures may be reported.
// It is satisfied by *testing.T.
type Reporter interface {
	Helper()
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// MustCompile compiles n to a Go func of type F, failing the test
// if it cannot.
func MustCompile[F any](t Reporter, n expr.Node) F {
	t.Helper()
	fn, err := compile.Func[F](n)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return fn
}

// Diff returns a unified diff between want and got, or "" if they
// are equal.
func Diff(want, got string) string {
	if want == got {
		return ""
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "want",
		ToFile:   "got",
		Context:  3,
	})
	if err != nil {
		return err.Error()
	}
	return diff
}

// EqualTree reports whether the rendering of got by expr.String equals
// want, ignoring leading and trailing blank space, and reports a diff
// if it does not.
func EqualTree(t Reporter, got expr.Node, want string) bool {
	t.Helper()
	g := strings.TrimSpace(expr.String(got)) + "\n"
	w := strings.TrimSpace(want) + "\n"
	if d := Diff(w, g); d != "" {
		t.Errorf("tree differs:\n%s", d)
		return false
	}
	return true
}

// SameSnapshot reports whether the trees a and b have equal exprpb
// snapshots, and reports a diff of their renderings if not.
func SameSnapshot(t Reporter, a, b expr.Node) bool {
	t.Helper()
	eq, err := exprpb.Equal(a, b)
	if err != nil {
		t.Errorf("snapshot: %v", err)
		return false
	}
	if !eq {
		t.Errorf("snapshots differ:\n%s", Diff(expr.String(a), expr.String(b)))
	}
	return eq
}
