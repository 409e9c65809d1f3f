// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package build

import (
	"fmt"
	"reflect"

	"go.exprtree.net/expr"
)

// A Scope is a lexical region under construction: an ordered list of
// statements and the variables declared in it. A Scope is closed
// exactly once, by Build or when its construct finishes; afterwards it
// rejects all population.
type Scope struct {
	sess   *Session
	parent *Scope
	kind   ScopeKind
	slot   int
	gen    uint32
	closed bool

	names map[string]*expr.Var // declared and bound names
	vars  []*expr.Var          // block variables, in declaration order
	list  []expr.Node

	loop   *loopLabels    // LoopScope only
	lambda *LambdaBuilder // LambdaScope only
}

// Kind returns the kind of construct that opened the scope.
func (sc *Scope) Kind() ScopeKind { return sc.kind }

// Parent returns the enclosing scope, or nil for a root scope.
func (sc *Scope) Parent() *Scope { return sc.parent }

// Session returns the session the scope belongs to.
func (sc *Scope) Session() *Session { return sc.sess }

// Closed reports whether the scope has been closed.
func (sc *Scope) Closed() bool { return sc.closed }

// Len returns the number of statements added so far.
func (sc *Scope) Len() int { return len(sc.list) }

func (sc *Scope) String() string {
	return fmt.Sprintf("%s scope (%d vars, %d statements)", sc.kind, len(sc.vars), len(sc.list))
}

// check reports whether sc may be populated.
func (sc *Scope) check(op string) error {
	if sc == nil || sc.closed {
		return &OutOfScopeError{Op: op, Reason: "scope is closed"}
	}
	if sc.sess.current != sc {
		return &OutOfScopeError{Op: op, Reason: "scope is not the current scope"}
	}
	return nil
}

// Declare declares a variable in this scope. Shadowing a name of an
// enclosing scope is allowed. An empty name declares an anonymous
// variable that Lookup cannot find.
func (sc *Scope) Declare(name string, t reflect.Type) (*expr.Var, error) {
	if err := sc.check("Declare"); err != nil {
		return nil, err
	}
	if expr.IsVoid(t) {
		return nil, fmt.Errorf("Declare %s: variable of void type", name)
	}
	if name != "" {
		if _, dup := sc.names[name]; dup {
			return nil, &DuplicateNameError{Name: name, Kind: sc.kind}
		}
	}
	v := expr.NewVar(name, t)
	sc.bind(name, v)
	sc.vars = append(sc.vars, v)
	return v, nil
}

// bind makes v visible under name without declaring it as a block
// variable; used for parameters and catch variables.
func (sc *Scope) bind(name string, v *expr.Var) {
	if name != "" {
		sc.names[name] = v
	}
}

// hidden declares a compiler-generated block variable.
func (sc *Scope) hidden(name string, t reflect.Type) *expr.Var {
	v := expr.NewVar(name, t)
	sc.vars = append(sc.vars, v)
	return v
}

// Add appends a statement. The node is not validated.
func (sc *Scope) Add(n expr.Node) error {
	if err := sc.check("Add"); err != nil {
		return err
	}
	if n == nil {
		return fmt.Errorf("Add: nil node")
	}
	sc.list = append(sc.list, n)
	return nil
}

// Lookup returns the variable bound to name in this scope or the
// nearest enclosing scope that binds it.
func (sc *Scope) Lookup(name string) (*expr.Var, bool) {
	for s := sc; s != nil; s = s.parent {
		if v, ok := s.names[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// FindAncestor returns the nearest scope, starting with sc itself,
// for which pred returns true, or nil.
func (sc *Scope) FindAncestor(pred func(*Scope) bool) *Scope {
	for s := sc; s != nil; s = s.parent {
		if pred(s) {
			return s
		}
	}
	return nil
}

// EnclosingLoop returns a handle to the loop depth levels out from sc
// (0 is the innermost), not crossing a lambda boundary.
func (sc *Scope) EnclosingLoop(depth int) (LoopContext, error) {
	for s := sc; s != nil; s = s.parent {
		if s.kind == LoopScope {
			if depth == 0 {
				return s.loopContext(), nil
			}
			depth--
		}
		if s.kind == LambdaScope {
			break
		}
	}
	return LoopContext{}, &NoEnclosingConstructError{Op: "break/continue", Construct: "loop"}
}

// EnclosingLambda returns the builder of the innermost lambda enclosing sc.
func (sc *Scope) EnclosingLambda() (*LambdaBuilder, error) {
	if s := sc.FindAncestor(func(s *Scope) bool { return s.kind == LambdaScope }); s != nil {
		return s.lambda, nil
	}
	return nil, &NoEnclosingConstructError{Op: "return", Construct: "lambda"}
}

// within reports whether sc is anc or nested in it.
func (sc *Scope) within(anc *Scope) bool {
	for s := sc; s != nil; s = s.parent {
		if s == anc {
			return true
		}
	}
	return false
}

// sameLambda reports whether sc is nested in anc without crossing a
// lambda boundary.
func (sc *Scope) sameLambda(anc *Scope) bool {
	for s := sc; s != nil; s = s.parent {
		if s == anc {
			return true
		}
		if s.kind == LambdaScope {
			return false
		}
	}
	return false
}

// Build closes the scope and returns its node: a no-op if it has no
// statements, the statement itself if it has one and no variables,
// and a block otherwise. Call Build once.
func (sc *Scope) Build() (expr.Node, error) {
	if err := sc.check("Build"); err != nil {
		return nil, err
	}
	n := sc.node()
	sc.dispose()
	return n, nil
}

func (sc *Scope) node() expr.Node {
	switch {
	case len(sc.list) == 0:
		return expr.Empty()
	case len(sc.list) == 1 && len(sc.vars) == 0:
		return sc.list[0]
	}
	return expr.NewBlock(sc.vars, sc.list...)
}

// block returns the scope's node as a block even if it would collapse,
// for constructs that place labels in it.
func (sc *Scope) block() *expr.Block {
	return expr.NewBlock(sc.vars, sc.list...)
}

// Dispose closes the scope without building it, together with any
// scopes still open inside it. It is safe to call more than once.
func (sc *Scope) Dispose() { sc.dispose() }

func (sc *Scope) dispose() {
	if sc.closed {
		return
	}
	sess := sc.sess
	for c := sess.current; c != nil && c != sc && c.within(sc); c = sess.current {
		c.dispose()
	}
	sc.closed = true
	sc.names, sc.vars, sc.list = nil, nil, nil
	sess.release(sc.slot)
	if sess.current == sc {
		sess.current = sc.parent
	}
}

// open opens a child scope of sc, which must be current.
func (sc *Scope) open(op string, kind ScopeKind) (*Scope, error) {
	if err := sc.check(op); err != nil {
		return nil, err
	}
	return sc.sess.push(sc, kind), nil
}

// populate calls fn once and builds sc. On every path sc is closed, so
// no partially built node escapes a failed population.
func (sc *Scope) populate(fn func() error) (expr.Node, error) {
	defer sc.dispose()
	if err := fn(); err != nil {
		return nil, err
	}
	return sc.Build()
}

// populateBlock is like populate but always yields a block.
func (sc *Scope) populateBlock(fn func() error) (*expr.Block, error) {
	defer sc.dispose()
	if err := fn(); err != nil {
		return nil, err
	}
	if err := sc.check("Build"); err != nil {
		return nil, err
	}
	return sc.block(), nil
}

func (sc *Scope) emit(n expr.Node) { sc.list = append(sc.list, n) }
