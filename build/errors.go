// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package build

import (
	"fmt"

	"go.exprtree.net/expr"
)

// A DuplicateNameError reports a second declaration of a name in one scope.
type DuplicateNameError struct {
	Name string
	Kind ScopeKind
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s redeclared in this %s scope", e.Name, e.Kind)
}

// An OutOfScopeError reports use of a scope that is closed or that is
// not the session's current scope.
type OutOfScopeError struct {
	Op     string
	Reason string
}

func (e *OutOfScopeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// A NoEnclosingConstructError reports a break, continue or return with
// no enclosing loop or lambda.
type NoEnclosingConstructError struct {
	Op        string
	Construct string // "loop" or "lambda"
}

func (e *NoEnclosingConstructError) Error() string {
	return fmt.Sprintf("%s outside %s", e.Op, e.Construct)
}

// An InvalidRethrowError reports a rethrow outside a catch clause of
// the same lambda.
type InvalidRethrowError struct{}

func (e *InvalidRethrowError) Error() string { return "rethrow outside catch clause" }

// A StaleHandleError reports use of a loop or lambda handle whose scope
// has been closed.
type StaleHandleError struct {
	Handle string // "loop" or "lambda"
}

func (e *StaleHandleError) Error() string {
	return fmt.Sprintf("stale %s reference: its scope has been closed", e.Handle)
}

// A FaultFinallyError reports a try with both a fault and a finally
// clause while AllowFaultAndFinally is false.
type FaultFinallyError struct{}

func (e *FaultFinallyError) Error() string {
	return "try has both fault and finally clauses (set build.AllowFaultAndFinally to compose them)"
}

// An AbstractSignatureError reports a lambda type that is not a
// concrete func type.
type AbstractSignatureError = expr.AbstractSignatureError
