// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package build

import (
	"fmt"
	"reflect"

	"go.exprtree.net/expr"
	"go.exprtree.net/internal/lower"
)

// A LambdaBuilder builds one lambda. Its parameters are derived once
// from a Go func type. Returns funnel through a single leave label,
// created on the first Return, with the value carried in a result
// variable. The body is populated through Body().
type LambdaBuilder struct {
	sess   *Session
	scope  *Scope
	name   string
	sig    *expr.Signature
	params []*expr.Var
	result reflect.Type // type of returned values; Void if none

	// lazily materialised
	resultVar *expr.Var
	leave     *expr.Target
	self      *expr.Var

	async  *AsyncOptions // nil for synchronous lambdas
	table  *lower.Table
	built  bool
	closed bool
}

// Lambda begins a root lambda of the func type fnType. Parameters are
// named after names, or p0, p1, ... No other scope may be open.
func (sess *Session) Lambda(fnType reflect.Type, names ...string) (*LambdaBuilder, error) {
	if sess.current != nil {
		return nil, &OutOfScopeError{Op: "Lambda", Reason: "another scope is open"}
	}
	return newLambda(sess, nil, fnType, names, nil)
}

// Lambda begins a lambda nested in sc, closed over its variables. The
// lambda's scope is current until it is built or closed.
func (sc *Scope) Lambda(fnType reflect.Type, names ...string) (*LambdaBuilder, error) {
	if err := sc.check("Lambda"); err != nil {
		return nil, err
	}
	return newLambda(sc.sess, sc, fnType, names, nil)
}

func newLambda(sess *Session, parent *Scope, fnType reflect.Type, names []string, async *AsyncOptions) (*LambdaBuilder, error) {
	sig, err := expr.SignatureOf(fnType)
	if err != nil {
		return nil, err
	}
	if len(names) > len(sig.In) {
		return nil, fmt.Errorf("Lambda: %d parameter names for %s", len(names), fnType)
	}
	lb := &LambdaBuilder{sess: sess, sig: sig, result: sig.Result, async: async}
	if async != nil {
		if sig.HasError || !isTask(sig.Result) {
			return nil, fmt.Errorf("async lambda %s must return *task.Task[T]", fnType)
		}
		lb.result = taskResult(sig.Result)
	}
	for i, t := range sig.In {
		name := fmt.Sprintf("p%d", i)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		lb.params = append(lb.params, expr.NewVar(name, t))
	}

	lb.scope = sess.push(parent, LambdaScope)
	lb.scope.lambda = lb
	for _, p := range lb.params {
		if _, dup := lb.scope.names[p.Name]; dup {
			lb.scope.dispose()
			return nil, &DuplicateNameError{Name: p.Name, Kind: LambdaScope}
		}
		lb.scope.bind(p.Name, p)
	}
	return lb, nil
}

// SetName sets the name of the lambda, used in backtraces.
func (lb *LambdaBuilder) SetName(name string) *LambdaBuilder {
	lb.name = name
	return lb
}

// Body returns the scope of the lambda body.
func (lb *LambdaBuilder) Body() *Scope { return lb.scope }

// Params returns the parameter variables.
func (lb *LambdaBuilder) Params() []*expr.Var { return lb.params }

// Param returns the i'th parameter variable.
func (lb *LambdaBuilder) Param(i int) *expr.Var { return lb.params[i] }

// Signature returns the lambda's signature.
func (lb *LambdaBuilder) Signature() *expr.Signature { return lb.sig }

// Context returns a handle to the lambda.
func (lb *LambdaBuilder) Context() LambdaContext { return LambdaContext{h: lb.scope.handle()} }

// ResultVar returns the variable holding the returned value, creating
// it if needed, or nil if the lambda returns no value.
func (lb *LambdaBuilder) ResultVar() *expr.Var {
	if lb.resultVar == nil && !expr.IsVoid(lb.result) {
		lb.resultVar = expr.NewVar("result", lb.result)
	}
	return lb.resultVar
}

// LeaveTarget returns the lambda's single leave label, creating it if
// needed.
func (lb *LambdaBuilder) LeaveTarget() *expr.Target {
	if lb.leave == nil {
		lb.leave = expr.NewTarget("leave", expr.Void)
	}
	return lb.leave
}

// Self returns the variable through which the lambda may call itself,
// creating it if needed.
func (lb *LambdaBuilder) Self() *expr.Var {
	if lb.self == nil {
		lb.self = expr.NewVar("self", lb.sig.Func)
	}
	return lb.self
}

// Return adds a return of value to the session's current scope, which
// must be inside the lambda. value must be nil if the lambda has no
// result and non-nil otherwise.
func (lb *LambdaBuilder) Return(value expr.Node) error {
	if lb.closed || lb.built {
		return &StaleHandleError{Handle: "lambda"}
	}
	cur := lb.sess.current
	if cur == nil || !cur.sameLambda(lb.scope) {
		return &OutOfScopeError{Op: "Return", Reason: "current scope is not inside the lambda"}
	}
	switch {
	case expr.IsVoid(lb.result) && value != nil:
		return fmt.Errorf("Return: value in lambda without result")
	case !expr.IsVoid(lb.result) && value == nil:
		return fmt.Errorf("Return: missing value of type %s", lb.result)
	}
	if value != nil {
		if err := cur.Add(expr.Set(lb.ResultVar(), value)); err != nil {
			return err
		}
	}
	return cur.Add(expr.Return(lb.LeaveTarget(), nil))
}

// body assembles the lambda body from the populated scope.
func (lb *LambdaBuilder) body() expr.Node {
	body := lb.scope.node()
	if lb.leave == nil && lb.resultVar == nil {
		return body
	}
	var vars []*expr.Var
	var list []expr.Node
	rv := lb.resultVar
	if rv == nil && !expr.IsVoid(lb.result) {
		rv = lb.ResultVar()
	}
	if rv != nil {
		vars = append(vars, rv)
		if t := body.Type(); !expr.IsVoid(t) && t.AssignableTo(rv.T) {
			body = expr.Set(rv, body)
		}
	}
	list = append(list, body, expr.NewLabel(lb.LeaveTarget(), nil))
	if rv != nil {
		list = append(list, rv)
		return &expr.Block{Vars: vars, List: list, T: rv.T}
	}
	return &expr.Block{Vars: vars, List: list, T: expr.Void}
}

// Build closes the lambda scope and returns the lambda. If Self was
// requested, the result is a block that binds the self variable to
// the lambda and yields it. Async lambdas are lowered to state
// machines.
func (lb *LambdaBuilder) Build() (expr.Node, error) {
	if lb.closed || lb.built {
		return nil, &OutOfScopeError{Op: "Build", Reason: "lambda already built or closed"}
	}
	if err := lb.scope.check("Build"); err != nil {
		return nil, err
	}
	l := &expr.Lambda{Name: lb.name, Sig: lb.sig, Params: lb.params, Body: lb.body()}
	lb.scope.dispose()
	lb.built = true

	var n expr.Node = l
	if lb.async != nil {
		lowered, table, err := lower.Async(l, lower.Options{Cancellation: lb.async.Cancellation})
		if err != nil {
			lb.Close()
			return nil, err
		}
		lb.table = table
		n = lowered
	}
	if lb.self != nil {
		n = &expr.Block{
			Vars: []*expr.Var{lb.self},
			List: []expr.Node{expr.Set(lb.self, n), lb.self},
			T:    lb.sig.Func,
		}
	}
	lb.Close()
	return n, nil
}

// Close releases the builder. It disposes the lambda scope if the
// lambda was not built and clears the lazily created variables. It is
// safe to call more than once.
func (lb *LambdaBuilder) Close() {
	if lb.closed {
		return
	}
	lb.closed = true
	lb.scope.dispose()
	lb.resultVar, lb.leave, lb.self = nil, nil, nil
}
