// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compile

// This file bridges compiled code and Go functions in both directions.

import (
	"log"
	"reflect"

	"go.exprtree.net/expr"
)

// args evaluates the arguments of a call of a function of type ft.
func (fr *frame) args(ft reflect.Type, nodes []expr.Node) ([]reflect.Value, error) {
	nin := ft.NumIn()
	if ft.IsVariadic() {
		if len(nodes) < nin-1 {
			return nil, fr.errorf("too few arguments in call of %s: got %d, want at least %d", ft, len(nodes), nin-1)
		}
	} else if len(nodes) != nin {
		return nil, fr.errorf("wrong number of arguments in call of %s: got %d, want %d", ft, len(nodes), nin)
	}
	args := make([]reflect.Value, len(nodes))
	for i, n := range nodes {
		v, err := fr.eval(n)
		if err != nil {
			return nil, err
		}
		var pt reflect.Type
		if ft.IsVariadic() && i >= nin-1 {
			pt = ft.In(nin - 1).Elem()
		} else {
			pt = ft.In(i)
		}
		if args[i], err = fr.assignTo(v, pt); err != nil {
			return nil, err
		}
	}
	return args, nil
}

// call calls the Go function fn. A panic in fn becomes an EvalError,
// except for an *Exception, whose error is rethrown. A non-nil trailing
// error result is thrown.
func (fr *frame) call(fn reflect.Value, args []reflect.Value) (reflect.Value, error) {
	var out []reflect.Value
	if err := fr.protect(func() { out = fn.Call(args) }); err != nil {
		return reflect.Value{}, err
	}
	ft := fn.Type()
	if n := ft.NumOut(); n > 0 && ft.Out(n-1) == expr.ErrorType {
		if e := out[n-1]; !e.IsNil() {
			return reflect.Value{}, e.Interface().(error)
		}
		out = out[:n-1]
	}
	if len(out) == 0 {
		return reflect.Value{}, nil
	}
	return out[0], nil
}

// protect calls f, converting a panic into an error.
func (fr *frame) protect(f func()) (err error) {
	defer func() {
		switch x := recover().(type) {
		case nil:
		case *Exception:
			err = x.Err
		case error:
			err = &EvalError{Msg: "panic: " + x.Error(), Frame: fr.Frame, cause: x}
		default:
			err = fr.errorf("panic: %v", x)
		}
	}()
	f()
	return nil
}

// closure returns the Go func value of lambda l closed over the
// current environment.
func (fr *frame) closure(l *expr.Lambda) reflect.Value {
	outer, creator, prog := fr.env, fr.Frame, fr.prog
	return reflect.MakeFunc(l.Sig.Func, func(in []reflect.Value) []reflect.Value {
		callee := &frame{
			Frame: &Frame{parent: creator, fn: l},
			prog:  prog,
			env:   newEnv(outer, l.Params),
		}
		for i, p := range l.Params {
			callee.env.vars[p].Set(in[i])
		}
		if debug {
			log.Printf("compile: call %s", callee.Name())
		}
		v, err := callee.eval(l.Body)
		if j, ok := err.(*jump); ok {
			err = callee.errorf("%s: label not in scope", j)
		}
		return callee.results(l.Sig, v, err)
	})
}

// results converts the outcome of a lambda body into Go results.
func (fr *frame) results(sig *expr.Signature, v reflect.Value, err error) []reflect.Value {
	var out []reflect.Value
	if err == nil && !expr.IsVoid(sig.Result) {
		v, err = fr.assignTo(v, sig.Result)
	}
	if err != nil {
		if !sig.HasError {
			panic(&Exception{Err: err})
		}
		if !expr.IsVoid(sig.Result) {
			out = append(out, reflect.Zero(sig.Result))
		}
		return append(out, reflect.ValueOf(&err).Elem())
	}
	if !expr.IsVoid(sig.Result) {
		out = append(out, v)
	}
	if sig.HasError {
		out = append(out, reflect.Zero(expr.ErrorType))
	}
	return out
}
