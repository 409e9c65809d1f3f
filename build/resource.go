// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package build

import (
	"reflect"
	"sync"

	"go.exprtree.net/expr"
)

var lockerType = reflect.TypeOf((*sync.Locker)(nil)).Elem()

// With adds a block in which value is bound to a new variable named name.
func (sc *Scope) With(name string, value expr.Node, body func(*Scope, *expr.Var) error) error {
	return sc.resource("With", name, value, body, nil)
}

// Using adds a block in which resource is bound to a variable named
// name and disposed on every exit. The resource must have a Close or
// Dispose method; a nil resource is not disposed.
func (sc *Scope) Using(name string, resource expr.Node, body func(*Scope, *expr.Var) error) error {
	t := resource.Type()
	dispose := expr.Disposer(t)
	if dispose == nil {
		return &expr.MissingCapabilityError{Capability: "disposable", T: t,
			Msg: "no method Close() error or Dispose()"}
	}
	return sc.resource("Using", name, resource, body, func(v *expr.Var) (expr.Node, expr.Node) {
		release := dispose(v)
		if nilable(t) {
			release = expr.If(expr.Not(expr.Equal(v, expr.Zero(t))), release)
		}
		return nil, release
	})
}

// Lock adds a block that runs while locker, a sync.Locker, is held.
func (sc *Scope) Lock(locker expr.Node, body func(*Scope) error) error {
	t := locker.Type()
	if expr.IsVoid(t) || !t.Implements(lockerType) {
		return &expr.MissingCapabilityError{Capability: "lockable", T: t,
			Msg: "does not implement sync.Locker"}
	}
	lock, err := lockerMethod(t, "Lock")
	if err != nil {
		return err
	}
	unlock, err := lockerMethod(t, "Unlock")
	if err != nil {
		return err
	}
	return sc.resource("Lock", "", locker, func(c *Scope, _ *expr.Var) error { return body(c) },
		func(v *expr.Var) (expr.Node, expr.Node) {
			return lock(v), unlock(v)
		})
}

func lockerMethod(t reflect.Type, name string) (func(expr.Node) expr.Node, error) {
	// Probe the method type once; the receiver node varies.
	m, err := expr.Method(expr.Zero(t), name)
	if err != nil {
		return nil, err
	}
	return func(x expr.Node) expr.Node {
		return &expr.MethodCall{Recv: x, Name: m.Name, Func: m.Func}
	}, nil
}

// resource builds { var v T; v = value; [acquire;] try { body } finally { release } },
// omitting the try if there is nothing to release.
func (sc *Scope) resource(op, name string, value expr.Node, body func(*Scope, *expr.Var) error,
	guard func(v *expr.Var) (acquire, release expr.Node)) error {
	w, err := sc.open(op, BlockScope)
	if err != nil {
		return err
	}
	n, err := w.populate(func() error {
		v, err := w.Declare(name, value.Type())
		if err != nil {
			return err
		}
		w.emit(expr.Set(v, value))
		var acquire, release expr.Node
		if guard != nil {
			acquire, release = guard(v)
		}
		if acquire != nil {
			w.emit(acquire)
		}
		c, err := w.open(op, ResourceScope)
		if err != nil {
			return err
		}
		inner, err := c.populate(func() error { return body(c, v) })
		if err != nil {
			return err
		}
		if release != nil {
			inner = &expr.Try{Body: voidOf(inner), Finally: release}
		}
		w.emit(inner)
		return nil
	})
	if err != nil {
		return err
	}
	sc.emit(n)
	return nil
}
