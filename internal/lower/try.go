// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lower

// This file lowers try statements containing awaits.
//
// An await in the protected body stays inside the try: the body
// becomes a region with its own dispatch, entered through a label
// placed just before the try, and the finally clause runs only when
// the state is negative, that is, not when the machine suspends.
//
// An await in a handler, fault or finally clause cannot stay inside
// the clause, since the clause is not a block that dispatch can
// reach. The error is instead captured by a catch-all handler and the
// clause runs after the try:
//
//	caught = nil
//	try { body } catch (error e) { caught = e }
//	finally:
//	<finally clause>
//	if caught != nil { throw caught }
//	if pending == 1 { goto L1 } ...
//
// Jumps out of a body with a captured finally are recorded in pending
// and replayed after the clause.

import (
	"go.exprtree.net/expr"
)

var nilError = expr.Zero(expr.ErrorType)

func (l *lowerer) try(n *expr.Try) {
	for _, h := range n.Handlers {
		if l.has(h.Filter) {
			l.fail(h.Filter, "await in catch filter")
			return
		}
	}
	suspends := l.has(n.Finally) || l.has(n.Fault)
	for _, h := range n.Handlers {
		suspends = suspends || l.has(h.Body)
	}
	if !suspends {
		l.protected(n.Body, n.Handlers, n.Fault, n.Finally)
		return
	}

	// Peel one clause at a time: try { try { try {body} catch } fault } finally.
	switch {
	case n.Finally != nil:
		inner := n.Body
		if len(n.Handlers) > 0 || n.Fault != nil {
			inner = &expr.Try{Body: n.Body, Handlers: n.Handlers, Fault: n.Fault}
		}
		if l.has(n.Finally) {
			l.captureFinally(inner, n.Finally)
		} else {
			l.protected(inner, nil, nil, n.Finally)
		}
	case n.Fault != nil:
		inner := n.Body
		if len(n.Handlers) > 0 {
			inner = &expr.Try{Body: n.Body, Handlers: n.Handlers}
		}
		if l.has(n.Fault) {
			l.captureFault(inner, n.Fault)
		} else {
			l.protected(inner, nil, n.Fault, nil)
		}
	default:
		l.captureHandlers(n.Body, n.Handlers)
	}
}

// protected emits a try whose body is lowered as a region of its own.
func (l *lowerer) protected(body expr.Node, handlers []*expr.Catch, fault, finally expr.Node) {
	if !l.has(body) {
		l.emit(&expr.Try{Body: voidOf(body), Handlers: handlers, Fault: fault, Finally: finally})
		return
	}
	r := l.push()
	l.stmt(body)
	l.pop()
	if len(r.entries) > 0 {
		entry := l.label("try")
		outer := l.top()
		for _, e := range r.entries {
			outer.entries = append(outer.entries, Entry{State: e.State, Label: entry})
		}
		l.emit(expr.NewLabel(entry, nil))
		if finally != nil {
			finally = expr.If(expr.Less(l.state, expr.Constant(0)), finally)
		}
	}
	l.emit(&expr.Try{
		Body:     &expr.Block{List: l.dispatch(r), T: expr.Void},
		Handlers: handlers,
		Fault:    fault,
		Finally:  finally,
	})
}

// captureHandlers lowers a try whose handlers contain awaits. Each
// such handler only records the error and its own index; its body
// runs after the try, with the caught error in a hoisted variable.
func (l *lowerer) captureHandlers(body expr.Node, handlers []*expr.Catch) {
	type deferred struct {
		index  int
		caught *expr.Var
		h      *expr.Catch
	}
	which := l.temp("which", expr.IntType)
	l.emit(expr.Set(which, expr.Constant(0)))
	var later []deferred
	var hs []*expr.Catch
	for i, h := range handlers {
		if !l.has(h.Body) {
			hs = append(hs, h)
			continue
		}
		v := h.Var
		if v == nil {
			v = expr.NewVar(l.name("err"), h.Test)
		}
		caught := l.temp("caught", h.Test)
		hs = append(hs, &expr.Catch{
			Var:    v,
			Test:   h.Test,
			Filter: h.Filter,
			Body:   expr.NewVoidBlock(nil, expr.Set(caught, v), expr.Set(which, expr.Constant(i+1))),
		})
		later = append(later, deferred{i + 1, caught, h})
	}
	l.protected(body, hs, nil, nil)
	for _, d := range later {
		skip := l.label("skip")
		l.emit(expr.If(expr.NotEqual(which, expr.Constant(d.index)), expr.Jump(skip, nil)))
		hbody := d.h.Body
		if d.h.Var != nil {
			hbody = substitute(hbody, d.h.Var, d.caught)
		}
		l.stmt(replaceRethrow(hbody, d.caught))
		l.emit(expr.NewLabel(skip, nil))
	}
}

// captureFault lowers a try whose fault clause contains awaits.
func (l *lowerer) captureFault(body, fault expr.Node) {
	caught := l.catchAll(body)
	skip := l.label("skip")
	l.emit(expr.If(expr.Equal(caught, nilError), expr.Jump(skip, nil)))
	l.stmt(fault)
	l.emit(expr.Raise(caught))
	l.emit(expr.NewLabel(skip, nil))
}

// captureFinally lowers a try whose finally clause contains awaits.
func (l *lowerer) captureFinally(body, finally expr.Node) {
	pending := l.temp("pending", expr.IntType)
	after := l.label("finally")
	l.emit(expr.Set(pending, expr.Constant(0)))

	defined := definedTargets(body)
	var jumps []*expr.Goto
	var pre func(expr.Node) expr.Node
	pre = func(n expr.Node) expr.Node {
		switch n := n.(type) {
		case *expr.Lambda:
			return n
		case *expr.Goto:
			if defined[n.Target] {
				return nil
			}
			jumps = append(jumps, n)
			return expr.NewVoidBlock(nil,
				expr.Set(pending, expr.Constant(len(jumps))),
				expr.Jump(after, nil))
		}
		return nil
	}
	body = expr.Rewrite(body, pre)

	caught := l.catchAll(body)
	l.emit(expr.NewLabel(after, nil))
	l.stmt(finally)
	l.emit(expr.If(expr.NotEqual(caught, nilError), expr.Raise(caught)))
	for i, g := range jumps {
		l.emit(expr.If(expr.Equal(pending, expr.Constant(i+1)), g))
	}
}

// catchAll emits try { body } catch (error e) { caught = e } and
// returns the hoisted variable caught.
func (l *lowerer) catchAll(body expr.Node) *expr.Var {
	caught := l.temp("caught", expr.ErrorType)
	e := expr.NewVar(l.name("err"), expr.ErrorType)
	l.emit(expr.Set(caught, nilError))
	l.protected(body, []*expr.Catch{{Var: e, Test: expr.ErrorType, Body: expr.Set(caught, e)}}, nil, nil)
	return caught
}

// definedTargets returns the jump targets whose labels lie in n,
// outside nested lambdas.
func definedTargets(n expr.Node) map[*expr.Target]bool {
	defined := make(map[*expr.Target]bool)
	expr.Walk(n, func(x expr.Node) bool {
		switch x := x.(type) {
		case *expr.Lambda:
			return false
		case *expr.Label:
			defined[x.Target] = true
		case *expr.Loop:
			defined[x.Break] = true
			if x.Continue != nil {
				defined[x.Continue] = true
			}
		}
		return true
	})
	return defined
}

// substitute replaces the variable from by to throughout n.
func substitute(n expr.Node, from, to *expr.Var) expr.Node {
	return expr.Rewrite(n, func(x expr.Node) expr.Node {
		if x == from {
			return to
		}
		return nil
	})
}

// replaceRethrow replaces the rethrows in n that refer to the error
// handled by the enclosing clause with a throw of caught.
func replaceRethrow(n expr.Node, caught *expr.Var) expr.Node {
	var pre func(expr.Node) expr.Node
	pre = func(x expr.Node) expr.Node {
		switch x := x.(type) {
		case *expr.Lambda:
			return x
		case *expr.Throw:
			if x.X == nil {
				return expr.Raise(caught)
			}
		case *expr.Try:
			// Rethrows in the handlers of x refer to x's own error.
			return &expr.Try{
				Body:     expr.Rewrite(x.Body, pre),
				Handlers: x.Handlers,
				Fault:    expr.Rewrite(x.Fault, pre),
				Finally:  expr.Rewrite(x.Finally, pre),
			}
		}
		return nil
	}
	return expr.Rewrite(n, pre)
}

// voidOf returns n as a statement that discards its value.
func voidOf(n expr.Node) expr.Node {
	if expr.IsVoid(n.Type()) {
		return n
	}
	return expr.NewVoidBlock(nil, n)
}

// untype replaces jump targets that carry values, outside nested
// lambdas, by void targets and hoisted variables: goto t v becomes
// { tmp = v; goto t' } and the label yields tmp. Flattened blocks can
// then hold the labels without giving them values.
func (l *lowerer) untype(body expr.Node) expr.Node {
	type retarget struct {
		t *expr.Target
		v *expr.Var
	}
	typed := make(map[*expr.Target]retarget)
	add := func(t *expr.Target) {
		if _, ok := typed[t]; !ok && !expr.IsVoid(t.T) {
			typed[t] = retarget{t: l.label("label"), v: l.temp("tmp", t.T)}
		}
	}
	expr.Walk(body, func(n expr.Node) bool {
		switch n := n.(type) {
		case *expr.Lambda:
			return false
		case *expr.Label:
			add(n.Target)
		case *expr.Loop:
			add(n.Break)
		}
		return true
	})
	if len(typed) == 0 {
		return body
	}

	var pre func(expr.Node) expr.Node
	rw := func(n expr.Node) expr.Node { return expr.Rewrite(n, pre) }
	def := func(lab *expr.Label) expr.Node {
		if lab.Default == nil {
			return expr.Zero(lab.Target.T)
		}
		return rw(lab.Default)
	}
	pre = func(n expr.Node) expr.Node {
		switch n := n.(type) {
		case *expr.Lambda:
			return n
		case *expr.Goto:
			r, ok := typed[n.Target]
			if !ok {
				return nil
			}
			var v expr.Node = expr.Zero(n.Target.T)
			if n.Value != nil {
				v = rw(n.Value)
			}
			return expr.NewVoidBlock(nil, expr.Set(r.v, v), &expr.Goto{Kind: n.Kind, Target: r.t})
		case *expr.Block:
			list := make([]expr.Node, 0, len(n.List))
			for i, x := range n.List {
				if lab, ok := x.(*expr.Label); ok {
					if r, ok := typed[lab.Target]; ok {
						list = append(list, expr.Set(r.v, def(lab)), &expr.Label{Target: r.t})
						if i == len(n.List)-1 {
							list = append(list, r.v)
						}
						continue
					}
				}
				list = append(list, rw(x))
			}
			return &expr.Block{Vars: n.Vars, List: list, T: n.T}
		case *expr.Label:
			if r, ok := typed[n.Target]; ok {
				return &expr.Block{List: []expr.Node{expr.Set(r.v, def(n)), &expr.Label{Target: r.t}, r.v}, T: n.Target.T}
			}
		case *expr.Loop:
			if r, ok := typed[n.Break]; ok {
				return &expr.Block{
					List: []expr.Node{&expr.Loop{Body: rw(n.Body), Break: r.t, Continue: n.Continue}, r.v},
					T:    n.Break.T,
				}
			}
		}
		return nil
	}
	return rw(body)
}
