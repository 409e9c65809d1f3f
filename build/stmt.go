// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package build

import (
	"fmt"

	"go.exprtree.net/expr"
)

// Set adds the assignment target = value.
func (sc *Scope) Set(target, value expr.Node) error {
	return sc.Add(expr.Set(target, value))
}

// Block adds a nested block populated by fn.
func (sc *Scope) Block(fn func(*Scope) error) error {
	c, err := sc.open("Block", BlockScope)
	if err != nil {
		return err
	}
	n, err := c.populate(func() error { return fn(c) })
	if err != nil {
		return err
	}
	sc.emit(n)
	return nil
}

// Break adds a jump out of the innermost enclosing loop.
func (sc *Scope) Break() error {
	if err := sc.check("Break"); err != nil {
		return err
	}
	lc, err := sc.EnclosingLoop(0)
	if err != nil {
		return err
	}
	return lc.Break()
}

// Continue adds a jump to the next iteration of the innermost
// enclosing loop.
func (sc *Scope) Continue() error {
	if err := sc.check("Continue"); err != nil {
		return err
	}
	lc, err := sc.EnclosingLoop(0)
	if err != nil {
		return err
	}
	return lc.Continue()
}

// Return adds a return from the innermost enclosing lambda. value must
// be nil if the lambda has no result.
func (sc *Scope) Return(value expr.Node) error {
	if err := sc.check("Return"); err != nil {
		return err
	}
	lb, err := sc.EnclosingLambda()
	if err != nil {
		return err
	}
	return lb.Return(value)
}

// Throw adds a throw of the error x.
func (sc *Scope) Throw(x expr.Node) error {
	if x == nil || !x.Type().Implements(expr.ErrorType) {
		return fmt.Errorf("Throw: %s does not implement error", typeOf(x))
	}
	return sc.Add(expr.Raise(x))
}

// Rethrow adds a rethrow of the error being handled. It is legal only
// inside a catch clause of the same lambda.
func (sc *Scope) Rethrow() error {
	if err := sc.check("Rethrow"); err != nil {
		return err
	}
	if !sc.inCatch() {
		return &InvalidRethrowError{}
	}
	return sc.Add(expr.Rethrow())
}

// inCatch reports whether sc is nested in a catch clause of its lambda.
func (sc *Scope) inCatch() bool {
	for s := sc; s != nil && s.kind != LambdaScope; s = s.parent {
		if s.kind == CatchScope {
			return true
		}
	}
	return false
}

func typeOf(x expr.Node) string {
	if x == nil {
		return "nil"
	}
	return expr.TypeName(x.Type())
}

// An IfBuilder accumulates the arms of a conditional statement. The
// first error encountered is sticky and reported by End.
type IfBuilder struct {
	sc    *Scope
	tests []expr.Node
	arms  []expr.Node
	els   expr.Node
	err   error
}

// If begins a conditional statement whose first arm, populated by
// then, runs if test is true.
func (sc *Scope) If(test expr.Node, then func(*Scope) error) *IfBuilder {
	b := &IfBuilder{sc: sc}
	return b.ElseIf(test, then)
}

// ElseIf adds an arm that runs if no earlier test was true and test is.
func (b *IfBuilder) ElseIf(test expr.Node, then func(*Scope) error) *IfBuilder {
	if b.err != nil {
		return b
	}
	if b.els != nil {
		b.err = fmt.Errorf("ElseIf after Else")
		return b
	}
	arm, err := b.arm("If", then)
	if err != nil {
		b.err = err
		return b
	}
	b.tests = append(b.tests, test)
	b.arms = append(b.arms, arm)
	return b
}

// Else adds the arm that runs if no test was true.
func (b *IfBuilder) Else(fn func(*Scope) error) *IfBuilder {
	if b.err != nil {
		return b
	}
	if b.els != nil {
		b.err = fmt.Errorf("Else called twice")
		return b
	}
	b.els, b.err = b.arm("Else", fn)
	return b
}

func (b *IfBuilder) arm(op string, fn func(*Scope) error) (expr.Node, error) {
	c, err := b.sc.open(op, BlockScope)
	if err != nil {
		return nil, err
	}
	return c.populate(func() error { return fn(c) })
}

// End adds the conditional to the scope.
func (b *IfBuilder) End() error {
	if b.err != nil {
		return b.err
	}
	var n expr.Node = b.els
	if n == nil {
		n = expr.Empty()
	}
	for i := len(b.tests) - 1; i >= 0; i-- {
		n = &expr.Cond{Test: b.tests[i], Then: b.arms[i], Else: n, T: expr.Void}
	}
	return b.sc.Add(n)
}
