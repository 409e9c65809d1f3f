// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compile turns expression trees into invokable Go functions.
//
// Compile first resolves the tree: every variable reference must be
// bound by an enclosing lambda parameter, block or catch clause, every
// goto must target a label of the same lambda, and no Await may remain
// (async lambdas must be lowered first). It then returns a Go func
// value, made with reflect.MakeFunc, that interprets the tree.
//
// Compiled functions may be called concurrently; each call has its own
// frame. Closures share the variables they capture, as in Go.
package compile // import "go.exprtree.net/compile"

import (
	"fmt"
	"log"
	"reflect"

	"go.exprtree.net/expr"
)

const debug = false

// A program holds the immutable results of resolution.
type program struct {
	// labels maps each block to the positions of the labels it contains.
	labels map[*expr.Block]map[*expr.Target]int
}

// Compile returns the Go func value denoted by n, which must be a node
// of func type with no free variables, such as a *expr.Lambda.
func Compile(n expr.Node) (reflect.Value, error) {
	if n == nil {
		return reflect.Value{}, &Error{Msg: "nil node"}
	}
	if t := n.Type(); expr.IsVoid(t) || t.Kind() != reflect.Func {
		return reflect.Value{}, &Error{Node: n, Msg: fmt.Sprintf("cannot compile node of type %s, want func", expr.TypeName(n.Type()))}
	}
	fn, err := Eval(n)
	if err != nil {
		return reflect.Value{}, err
	}
	return fn, nil
}

// Func is like Compile but returns the function as a value of type F,
// which must be the type of n.
func Func[F any](n expr.Node) (F, error) {
	var zero F
	fn, err := Compile(n)
	if err != nil {
		return zero, err
	}
	f, ok := fn.Interface().(F)
	if !ok {
		return zero, &Error{Node: n, Msg: fmt.Sprintf("node has type %s, not %T", fn.Type(), zero)}
	}
	return f, nil
}

// Eval resolves and evaluates the closed node n and returns its value.
// Errors thrown by n are returned as is.
func Eval(n expr.Node) (reflect.Value, error) {
	prog, err := resolve(n)
	if err != nil {
		return reflect.Value{}, err
	}
	fr := &frame{prog: prog, env: &env{}, Frame: &Frame{}}
	v, err := fr.eval(n)
	if err != nil {
		if j, ok := err.(*jump); ok {
			return reflect.Value{}, fr.errorf("goto %s: label not in scope", j.target)
		}
		return reflect.Value{}, err
	}
	if debug {
		log.Printf("compile: evaluated %T to %v", n, v)
	}
	return v, nil
}

// resolve checks the tree rooted at n and computes label positions.
func resolve(n expr.Node) (*program, error) {
	r := &resolver{
		prog:  &program{labels: make(map[*expr.Block]map[*expr.Target]int)},
		bound: make(map[*expr.Var]bool),
	}
	r.fn = &fnScope{defined: make(map[*expr.Target]bool)}
	r.node(n)
	r.checkGotos()
	if r.err != nil {
		return nil, r.err
	}
	return r.prog, nil
}

type fnScope struct {
	parent  *fnScope
	defined map[*expr.Target]bool
	gotos   []*expr.Goto
	catches int // depth of enclosing catch handlers
}

type resolver struct {
	prog  *program
	bound map[*expr.Var]bool
	fn    *fnScope
	all   []*fnScope
	err   error
}

func (r *resolver) errorf(n expr.Node, format string, args ...interface{}) {
	if r.err == nil {
		r.err = &Error{Node: n, Msg: fmt.Sprintf(format, args...)}
	}
}

func (r *resolver) bind(vars ...*expr.Var) func() {
	var added []*expr.Var
	for _, v := range vars {
		if v != nil && !r.bound[v] {
			r.bound[v] = true
			added = append(added, v)
		}
	}
	return func() {
		for _, v := range added {
			delete(r.bound, v)
		}
	}
}

func (r *resolver) node(n expr.Node) {
	if n == nil || r.err != nil {
		return
	}
	switch n := n.(type) {
	case *expr.Var:
		if !r.bound[n] {
			r.errorf(n, "variable %s used outside its scope", n.Name)
		}

	case *expr.Block:
		unbind := r.bind(n.Vars...)
		labels := make(map[*expr.Target]int)
		for i, x := range n.List {
			if l, ok := x.(*expr.Label); ok {
				if _, dup := labels[l.Target]; dup {
					r.errorf(l, "label %s defined twice in one block", l.Target)
				}
				labels[l.Target] = i
			}
			r.node(x)
		}
		if len(labels) > 0 {
			r.prog.labels[n] = labels
		}
		unbind()

	case *expr.Label:
		r.fn.defined[n.Target] = true
		r.node(n.Default)

	case *expr.Loop:
		r.fn.defined[n.Break] = true
		if n.Continue != nil {
			r.fn.defined[n.Continue] = true
		}
		r.node(n.Body)

	case *expr.Goto:
		r.fn.gotos = append(r.fn.gotos, n)
		r.node(n.Value)

	case *expr.Try:
		r.node(n.Body)
		for _, h := range n.Handlers {
			if h.Test == nil || !h.Test.Implements(expr.ErrorType) {
				r.errorf(n, "catch clause type %s does not implement error", expr.TypeName(h.Test))
			}
			unbind := r.bind(h.Var)
			r.node(h.Filter)
			r.fn.catches++
			r.node(h.Body)
			r.fn.catches--
			unbind()
		}
		r.node(n.Fault)
		r.node(n.Finally)

	case *expr.Throw:
		if n.X == nil && r.fn.catches == 0 {
			r.errorf(n, "rethrow outside catch handler")
		}
		r.node(n.X)

	case *expr.Lambda:
		if n.Sig == nil || len(n.Sig.In) != len(n.Params) {
			r.errorf(n, "lambda %s: parameter count does not match signature", n.Name)
			return
		}
		outer := r.fn
		r.fn = &fnScope{parent: outer, defined: make(map[*expr.Target]bool)}
		r.all = append(r.all, r.fn)
		unbind := r.bind(n.Params...)
		r.node(n.Body)
		unbind()
		r.fn = outer

	case *expr.Await:
		r.errorf(n, "await outside async lambda (the tree was not lowered)")

	default:
		expr.Walk(n, func(x expr.Node) bool {
			if x == n {
				return true
			}
			if x != nil {
				r.node(x)
			}
			return false
		})
	}
}

func (r *resolver) checkGotos() {
	for _, fn := range append(r.all, r.fn) {
		for _, g := range fn.gotos {
			if !fn.defined[g.Target] {
				r.errorf(g, "%s %s: no such label in enclosing lambda", g.Kind, g.Target)
			}
		}
	}
}
