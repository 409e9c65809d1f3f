// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package build

import (
	"context"
	"fmt"
	"reflect"

	"go.exprtree.net/expr"
	"go.exprtree.net/internal/lower"
	"go.exprtree.net/task"
)

// AsyncOptions configure an async lambda.
type AsyncOptions struct {
	// Cancellation, if not nil, is a context.Context-valued node
	// checked each time the lambda resumes after an await. It is
	// usually a parameter of the lambda.
	Cancellation expr.Node
}

// AsyncLambda begins a root async lambda of the func type fnType,
// whose result must be *task.Task[T]. The body computes a T; Return
// takes a T. Build lowers the lambda to a state machine.
func (sess *Session) AsyncLambda(fnType reflect.Type, opts *AsyncOptions, names ...string) (*LambdaBuilder, error) {
	if sess.current != nil {
		return nil, &OutOfScopeError{Op: "AsyncLambda", Reason: "another scope is open"}
	}
	return newLambda(sess, nil, fnType, names, asyncOptions(opts))
}

// AsyncLambda begins an async lambda nested in sc.
func (sc *Scope) AsyncLambda(fnType reflect.Type, opts *AsyncOptions, names ...string) (*LambdaBuilder, error) {
	if err := sc.check("AsyncLambda"); err != nil {
		return nil, err
	}
	return newLambda(sc.sess, sc, fnType, names, asyncOptions(opts))
}

var contextType = reflect.TypeOf((*context.Context)(nil)).Elem()

func asyncOptions(opts *AsyncOptions) *AsyncOptions {
	if opts == nil {
		return &AsyncOptions{}
	}
	o := *opts
	return &o
}

// Await returns a node that awaits x. sc must be inside an async
// lambda, without crossing a nested synchronous lambda. The scope is
// not modified; the node is placed by the caller.
func (sc *Scope) Await(x expr.Node) (*expr.Await, error) {
	if err := sc.check("Await"); err != nil {
		return nil, err
	}
	lb, err := sc.EnclosingLambda()
	if err != nil || lb.async == nil {
		return nil, &NoEnclosingConstructError{Op: "await", Construct: "async lambda"}
	}
	return sc.sess.registry.Await(x)
}

// SetCancellation makes the async lambda check ctx, a
// context.Context-valued node such as one of its parameters, each time
// it resumes after an await.
func (lb *LambdaBuilder) SetCancellation(ctx expr.Node) error {
	if lb.async == nil {
		return fmt.Errorf("SetCancellation: lambda is not async")
	}
	if ctx == nil || expr.IsVoid(ctx.Type()) || !ctx.Type().Implements(contextType) {
		return fmt.Errorf("SetCancellation: %s does not implement context.Context", typeOf(ctx))
	}
	lb.async.Cancellation = ctx
	return nil
}

// Async reports whether the lambda is async.
func (lb *LambdaBuilder) Async() bool { return lb.async != nil }

// States returns the number of await sites of a built async lambda.
func (lb *LambdaBuilder) States() int {
	if lb.table == nil {
		return 0
	}
	return lb.table.Len()
}

// A Table maps the states of a lowered async lambda to their resume
// points and awaiters.
type Table = lower.Table

// Table returns the state table of a built async lambda, or nil.
func (lb *LambdaBuilder) Table() *Table { return lb.table }

func isTask(t reflect.Type) bool {
	_, ok := task.ResultType(t)
	return ok
}

func taskResult(t reflect.Type) reflect.Type {
	r, _ := task.ResultType(t)
	return r
}
