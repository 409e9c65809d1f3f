// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package expr

// Walk traverses an expression tree in depth-first order.
// It starts by calling f(n); n must not be nil.
// If f returns true, Walk calls itself
// recursively for each non-nil child of n.
// Walk then calls f(nil).
//
// The variable of a Catch is visited before its filter and body.
func Walk(n Node, f func(Node) bool) {
	if n == nil {
		panic("nil")
	}
	if !f(n) {
		return
	}
	walkChildren(n, f)
	f(nil)
}

func walk(n Node, f func(Node) bool) {
	if n != nil {
		Walk(n, f)
	}
}

func walkChildren(n Node, f func(Node) bool) {
	switch n := n.(type) {
	case *Const, *Default, *Var:
		// no children
	case *Assign:
		walk(n.Target, f)
		walk(n.Value, f)
	case *Unary:
		walk(n.X, f)
	case *Binary:
		walk(n.X, f)
		walk(n.Y, f)
	case *Call:
		walk(n.Fn, f)
		for _, arg := range n.Args {
			walk(arg, f)
		}
	case *MethodCall:
		walk(n.Recv, f)
		for _, arg := range n.Args {
			walk(arg, f)
		}
	case *Field:
		walk(n.X, f)
	case *Index:
		walk(n.X, f)
		walk(n.I, f)
	case *Len:
		walk(n.X, f)
	case *Convert:
		walk(n.X, f)
	case *TypeIs:
		walk(n.X, f)
	case *Cond:
		walk(n.Test, f)
		walk(n.Then, f)
		walk(n.Else, f)
	case *Block:
		for _, v := range n.Vars {
			walk(v, f)
		}
		for _, x := range n.List {
			walk(x, f)
		}
	case *Loop:
		walk(n.Body, f)
	case *Label:
		walk(n.Default, f)
	case *Goto:
		walk(n.Value, f)
	case *Try:
		walk(n.Body, f)
		for _, h := range n.Handlers {
			if h.Var != nil {
				walk(h.Var, f)
			}
			walk(h.Filter, f)
			walk(h.Body, f)
		}
		walk(n.Fault, f)
		walk(n.Finally, f)
	case *Throw:
		walk(n.X, f)
	case *Lambda:
		for _, p := range n.Params {
			walk(p, f)
		}
		walk(n.Body, f)
	case *Await:
		walk(n.X, f)
	default:
		panic(n)
	}
}

// Rewrite returns a copy of n in which nodes have been replaced.
// For each node x, visited in depth-first order, pre(x) is called;
// a non-nil result replaces x and its subtree is not visited.
// Otherwise the children of x are rewritten, and x is copied only if
// one of them changed. Variables and targets are never copied.
func Rewrite(n Node, pre func(Node) Node) Node {
	if n == nil {
		return nil
	}
	if r := pre(n); r != nil {
		return r
	}
	rw := func(x Node) Node { return Rewrite(x, pre) }

	switch n := n.(type) {
	case *Const, *Default, *Var:
		return n
	case *Assign:
		t, v := rw(n.Target), rw(n.Value)
		if t != n.Target || v != n.Value {
			return &Assign{Target: t, Value: v}
		}
	case *Unary:
		if x := rw(n.X); x != n.X {
			return &Unary{Op: n.Op, X: x}
		}
	case *Binary:
		x, y := rw(n.X), rw(n.Y)
		if x != n.X || y != n.Y {
			return &Binary{Op: n.Op, X: x, Y: y}
		}
	case *Call:
		fn := rw(n.Fn)
		args, changed := rewriteList(n.Args, rw)
		if fn != n.Fn || changed {
			return &Call{Fn: fn, Args: args}
		}
	case *MethodCall:
		recv := rw(n.Recv)
		args, changed := rewriteList(n.Args, rw)
		if recv != n.Recv || changed {
			return &MethodCall{Recv: recv, Name: n.Name, Func: n.Func, Args: args}
		}
	case *Field:
		if x := rw(n.X); x != n.X {
			return &Field{X: x, Name: n.Name, Index: n.Index, T: n.T}
		}
	case *Index:
		x, i := rw(n.X), rw(n.I)
		if x != n.X || i != n.I {
			return &Index{X: x, I: i, T: n.T}
		}
	case *Len:
		if x := rw(n.X); x != n.X {
			return &Len{X: x}
		}
	case *Convert:
		if x := rw(n.X); x != n.X {
			return &Convert{X: x, T: n.T}
		}
	case *TypeIs:
		if x := rw(n.X); x != n.X {
			return &TypeIs{X: x, T: n.T}
		}
	case *Cond:
		test, then, els := rw(n.Test), rw(n.Then), rw(n.Else)
		if test != n.Test || then != n.Then || els != n.Else {
			return &Cond{Test: test, Then: then, Else: els, T: n.T}
		}
	case *Block:
		if list, changed := rewriteList(n.List, rw); changed {
			return &Block{Vars: n.Vars, List: list, T: n.T}
		}
	case *Loop:
		if body := rw(n.Body); body != n.Body {
			return &Loop{Body: body, Break: n.Break, Continue: n.Continue}
		}
	case *Label:
		if def := rw(n.Default); def != n.Default {
			return &Label{Target: n.Target, Default: def}
		}
	case *Goto:
		if v := rw(n.Value); v != n.Value {
			return &Goto{Kind: n.Kind, Target: n.Target, Value: v}
		}
	case *Try:
		body, fault, finally := rw(n.Body), rw(n.Fault), rw(n.Finally)
		changed := body != n.Body || fault != n.Fault || finally != n.Finally
		handlers := make([]*Catch, len(n.Handlers))
		for i, h := range n.Handlers {
			filter, hbody := rw(h.Filter), rw(h.Body)
			if filter != h.Filter || hbody != h.Body {
				changed = true
				h = &Catch{Var: h.Var, Test: h.Test, Filter: filter, Body: hbody}
			}
			handlers[i] = h
		}
		if changed {
			return &Try{Body: body, Handlers: handlers, Finally: finally, Fault: fault}
		}
	case *Throw:
		if x := rw(n.X); x != n.X {
			return &Throw{X: x}
		}
	case *Lambda:
		if body := rw(n.Body); body != n.Body {
			return &Lambda{Name: n.Name, Sig: n.Sig, Params: n.Params, Body: body}
		}
	case *Await:
		if x := rw(n.X); x != n.X {
			return &Await{X: x, Shape: n.Shape}
		}
	default:
		panic(n)
	}
	return n
}

func rewriteList(list []Node, rw func(Node) Node) ([]Node, bool) {
	var out []Node
	for i, x := range list {
		y := rw(x)
		if y != x && out == nil {
			out = make([]Node, len(list))
			copy(out, list[:i])
		}
		if out != nil {
			out[i] = y
		}
	}
	if out == nil {
		return list, false
	}
	return out, true
}
