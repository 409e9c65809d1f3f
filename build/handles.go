// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package build

import (
	"go.exprtree.net/expr"
)

// A handle refers to a scope by arena slot and generation, so that it
// does not keep the scope alive and detects its closure.
type handle struct {
	sess *Session
	slot int
	gen  uint32
}

func (sc *Scope) handle() handle { return handle{sess: sc.sess, slot: sc.slot, gen: sc.gen} }

func (h handle) scope(what string) (*Scope, error) {
	if h.sess != nil {
		if sc := h.sess.lookup(h.slot, h.gen); sc != nil && !sc.closed {
			return sc, nil
		}
	}
	return nil, &StaleHandleError{Handle: what}
}

// loopLabels are the jump targets of one loop.
type loopLabels struct {
	brk, cont *expr.Target
	markable  bool // continue point may be placed by MarkContinue
	marked    bool
}

func newLoopLabels() *loopLabels {
	return &loopLabels{
		brk:  expr.NewTarget("break", expr.Void),
		cont: expr.NewTarget("continue", expr.Void),
	}
}

// A LoopContext is a handle to a loop under construction. It remains
// valid only while the loop's body scope is open; afterwards its
// methods fail with a *StaleHandleError.
type LoopContext struct {
	h handle
}

func (sc *Scope) loopContext() LoopContext { return LoopContext{h: sc.handle()} }

func (lc LoopContext) loop() (*Scope, error) { return lc.h.scope("loop") }

// BreakTarget returns the target that leaves the loop.
func (lc LoopContext) BreakTarget() (*expr.Target, error) {
	sc, err := lc.loop()
	if err != nil {
		return nil, err
	}
	return sc.loop.brk, nil
}

// ContinueTarget returns the target that starts the next iteration.
func (lc LoopContext) ContinueTarget() (*expr.Target, error) {
	sc, err := lc.loop()
	if err != nil {
		return nil, err
	}
	return sc.loop.cont, nil
}

// Break adds a jump out of the loop to the session's current scope,
// which must be nested in the loop within the same lambda.
func (lc LoopContext) Break() error { return lc.jump("Break", expr.GotoBreak) }

// Continue adds a jump to the next iteration of the loop to the
// session's current scope.
func (lc LoopContext) Continue() error { return lc.jump("Continue", expr.GotoContinue) }

func (lc LoopContext) jump(op string, kind expr.GotoKind) error {
	loop, err := lc.loop()
	if err != nil {
		return err
	}
	cur := loop.sess.current
	if cur == nil || !cur.sameLambda(loop) {
		return &OutOfScopeError{Op: op, Reason: "current scope is not inside the loop"}
	}
	target := loop.loop.brk
	if kind == expr.GotoContinue {
		target = loop.loop.cont
	}
	return cur.Add(&expr.Goto{Kind: kind, Target: target})
}

// MarkContinue places the continue point of a For loop at the current
// position of its body: statements added afterwards, followed by the
// step, run on continue. Without a mark only the step runs.
func (lc LoopContext) MarkContinue() error {
	loop, err := lc.loop()
	if err != nil {
		return err
	}
	if err := loop.check("MarkContinue"); err != nil {
		return err
	}
	switch {
	case !loop.loop.markable:
		return &OutOfScopeError{Op: "MarkContinue", Reason: "loop is not a For loop"}
	case loop.loop.marked:
		return &OutOfScopeError{Op: "MarkContinue", Reason: "continue point already marked"}
	}
	loop.loop.marked = true
	loop.emit(expr.NewLabel(loop.loop.cont, nil))
	return nil
}

// A LambdaContext is a handle to a lambda under construction. It
// remains valid only while the lambda's scope is open.
type LambdaContext struct {
	h handle
}

func (lc LambdaContext) builder() (*LambdaBuilder, error) {
	sc, err := lc.h.scope("lambda")
	if err != nil {
		return nil, err
	}
	return sc.lambda, nil
}

// Return adds a return of value to the session's current scope.
func (lc LambdaContext) Return(value expr.Node) error {
	lb, err := lc.builder()
	if err != nil {
		return err
	}
	return lb.Return(value)
}

// Self returns the variable through which the lambda calls itself.
func (lc LambdaContext) Self() (*expr.Var, error) {
	lb, err := lc.builder()
	if err != nil {
		return nil, err
	}
	return lb.Self(), nil
}
