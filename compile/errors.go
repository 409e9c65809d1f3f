// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compile

import (
	"bytes"
	"fmt"

	"go.exprtree.net/expr"
)

// An Error is a problem found while compiling a tree, before any of it
// runs.
type Error struct {
	Node expr.Node // offending node, may be nil
	Msg  string
}

func (e *Error) Error() string { return "compile: " + e.Msg }

// A Frame records one activation of a compiled lambda.
type Frame struct {
	parent *Frame
	fn     *expr.Lambda
}

// Name returns the name of the frame's lambda.
func (fr *Frame) Name() string {
	if fr.fn == nil || fr.fn.Name == "" {
		return "<lambda>"
	}
	return fr.fn.Name
}

// Parent returns the frame of the lambda activation in which this
// frame's lambda value was created.
func (fr *Frame) Parent() *Frame { return fr.parent }

// An EvalError is a fault detected while evaluating compiled code, such
// as a failed type assertion, an index out of range or a panic in a
// called Go function. Compiled code may catch it like any other error.
type EvalError struct {
	Msg   string
	Frame *Frame
	cause error
}

func (e *EvalError) Error() string { return e.Msg }

// Unwrap returns the underlying error, if any.
func (e *EvalError) Unwrap() error { return e.cause }

// Backtrace returns a user-friendly error message describing the stack
// of lambdas that led to this error.
func (e *EvalError) Backtrace() string {
	var buf bytes.Buffer
	e.Frame.WriteBacktrace(&buf)
	fmt.Fprintf(&buf, "Error: %s", e.Msg)
	return buf.String()
}

// WriteBacktrace writes a user-friendly description of the stack to buf.
func (fr *Frame) WriteBacktrace(out *bytes.Buffer) {
	fmt.Fprintf(out, "Traceback (most recent call last):\n")
	var print func(fr *Frame)
	print = func(fr *Frame) {
		if fr != nil {
			print(fr.parent)
			fmt.Fprintf(out, "  in %s\n", fr.Name())
		}
	}
	print(fr)
}

// An Exception carries an error thrown by a compiled lambda whose
// signature has no error result. Such lambdas panic with an *Exception.
type Exception struct {
	Err error
}

func (e *Exception) Error() string { return "uncaught error: " + e.Err.Error() }

func (e *Exception) Unwrap() error { return e.Err }
