// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package build

import (
	"fmt"
	"reflect"

	"go.exprtree.net/expr"
)

// A TryBuilder accumulates the clauses of a try statement. Clauses are
// built as they are added; the first error is sticky and reported by End.
type TryBuilder struct {
	sc       *Scope
	body     expr.Node
	handlers []*expr.Catch
	fault    expr.Node
	finally  expr.Node
	err      error
}

// Try begins a try statement whose protected region is populated by body.
func (sc *Scope) Try(body func(*Scope) error) *TryBuilder {
	b := &TryBuilder{sc: sc}
	c, err := sc.open("Try", TryScope)
	if err != nil {
		b.err = err
		return b
	}
	b.body, b.err = c.populate(func() error { return body(c) })
	return b
}

// Catch adds a clause handling errors whose dynamic type is assignable
// to t. The caught error is bound to a variable of type t.
func (b *TryBuilder) Catch(t reflect.Type, fn func(*Scope, *expr.Var) error) *TryBuilder {
	return b.CatchWhen(t, nil, fn)
}

// CatchWhen is like Catch, but the clause is selected only if filter,
// applied to the caught error, yields true. A filter that fails at run
// time does not select the clause.
func (b *TryBuilder) CatchWhen(t reflect.Type, filter func(e *expr.Var) expr.Node, fn func(*Scope, *expr.Var) error) *TryBuilder {
	if b.err != nil {
		return b
	}
	if t == nil || !t.Implements(expr.ErrorType) {
		b.err = fmt.Errorf("Catch: %s does not implement error", expr.TypeName(t))
		return b
	}
	c, err := b.sc.open("Catch", CatchScope)
	if err != nil {
		b.err = err
		return b
	}
	v := expr.NewVar("", t)
	h := &expr.Catch{Var: v, Test: t}
	if filter != nil {
		h.Filter = filter(v)
	}
	h.Body, b.err = c.populate(func() error { return fn(c, v) })
	b.handlers = append(b.handlers, h)
	return b
}

// CatchAll adds a clause handling any error.
func (b *TryBuilder) CatchAll(fn func(*Scope) error) *TryBuilder {
	return b.Catch(expr.ErrorType, func(c *Scope, _ *expr.Var) error { return fn(c) })
}

// Fault adds the clause that runs when an error leaves the try.
func (b *TryBuilder) Fault(fn func(*Scope) error) *TryBuilder {
	if b.err != nil {
		return b
	}
	if b.fault != nil {
		b.err = fmt.Errorf("Fault: try already has a fault clause")
		return b
	}
	if b.finally != nil && !AllowFaultAndFinally {
		b.err = &FaultFinallyError{}
		return b
	}
	b.fault, b.err = b.clause("Fault", FaultScope, fn)
	return b
}

// Finally adds the clause that runs on every exit from the try.
func (b *TryBuilder) Finally(fn func(*Scope) error) *TryBuilder {
	if b.err != nil {
		return b
	}
	if b.finally != nil {
		b.err = fmt.Errorf("Finally: try already has a finally clause")
		return b
	}
	if b.fault != nil && !AllowFaultAndFinally {
		b.err = &FaultFinallyError{}
		return b
	}
	b.finally, b.err = b.clause("Finally", FinallyScope, fn)
	return b
}

func (b *TryBuilder) clause(op string, kind ScopeKind, fn func(*Scope) error) (expr.Node, error) {
	c, err := b.sc.open(op, kind)
	if err != nil {
		return nil, err
	}
	return c.populate(func() error { return fn(c) })
}

// Node returns the try statement without adding it to the scope.
func (b *TryBuilder) Node() (expr.Node, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.handlers) == 0 && b.fault == nil && b.finally == nil {
		return nil, fmt.Errorf("try has no catch, fault or finally clause")
	}
	body := voidOf(b.body)
	for _, h := range b.handlers {
		h.Body = voidOf(h.Body)
	}
	if b.fault != nil && b.finally != nil {
		inner := &expr.Try{Body: body, Handlers: b.handlers, Fault: b.fault}
		return &expr.Try{Body: inner, Finally: b.finally}, nil
	}
	return &expr.Try{Body: body, Handlers: b.handlers, Fault: b.fault, Finally: b.finally}, nil
}

// voidOf returns n as a statement that discards its value.
func voidOf(n expr.Node) expr.Node {
	if expr.IsVoid(n.Type()) {
		return n
	}
	if b, ok := n.(*expr.Block); ok {
		return &expr.Block{Vars: b.Vars, List: b.List, T: expr.Void}
	}
	return expr.NewVoidBlock(nil, n)
}

// End adds the try statement to the scope.
func (b *TryBuilder) End() error {
	n, err := b.Node()
	if err != nil {
		return err
	}
	return b.sc.Add(n)
}
