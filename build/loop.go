// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package build

import (
	"reflect"

	"go.exprtree.net/expr"
)

// A LoopBody populates the body scope of a loop.
type LoopBody func(body *Scope, loop LoopContext) error

// An ElemBody populates the body scope of a loop with a loop variable.
type ElemBody func(body *Scope, v *expr.Var, loop LoopContext) error

// openLoop opens the body scope of a new loop.
func (sc *Scope) openLoop(op string) (*Scope, error) {
	c, err := sc.open(op, LoopScope)
	if err != nil {
		return nil, err
	}
	c.loop = newLoopLabels()
	return c, nil
}

// Loop adds a loop that runs body until it breaks.
func (sc *Scope) Loop(body LoopBody) error {
	c, err := sc.openLoop("Loop")
	if err != nil {
		return err
	}
	labels := c.loop
	n, err := c.populate(func() error { return body(c, c.loopContext()) })
	if err != nil {
		return err
	}
	sc.emit(expr.NewLoop(n, labels.brk, labels.cont))
	return nil
}

// While adds a loop that runs body while test is true. The test is
// evaluated before each iteration.
func (sc *Scope) While(test expr.Node, body LoopBody) error {
	c, err := sc.openLoop("While")
	if err != nil {
		return err
	}
	labels := c.loop
	n, err := c.populate(func() error {
		c.emit(expr.If(expr.Not(test), expr.Break(labels.brk)))
		return body(c, c.loopContext())
	})
	if err != nil {
		return err
	}
	sc.emit(expr.NewLoop(n, labels.brk, labels.cont))
	return nil
}

// DoWhile adds a loop that runs body, then repeats while test is true.
// Continue jumps to the test.
func (sc *Scope) DoWhile(body LoopBody, test expr.Node) error {
	c, err := sc.openLoop("DoWhile")
	if err != nil {
		return err
	}
	labels := c.loop
	n, err := c.populate(func() error { return body(c, c.loopContext()) })
	if err != nil {
		return err
	}
	iter := expr.NewVoidBlock(nil,
		n,
		expr.NewLabel(labels.cont, nil),
		expr.If(expr.Not(test), expr.Break(labels.brk)))
	sc.emit(expr.NewLoop(iter, labels.brk, nil))
	return nil
}

// For adds a counting loop:
//
//	for v := init; cond(v); v = step(v) { body }
//
// The variable is declared in a wrapper scope, visible to cond, step
// and body. The step runs where the body falls through, preceded by the
// statements after LoopContext.MarkContinue if the body marked a
// continue point; continue jumps there.
func (sc *Scope) For(name string, init expr.Node, cond, step func(v *expr.Var) expr.Node, body ElemBody) error {
	w, err := sc.open("For", BlockScope)
	if err != nil {
		return err
	}
	n, err := w.populate(func() error {
		v, err := w.Declare(name, init.Type())
		if err != nil {
			return err
		}
		w.emit(expr.Set(v, init))

		c, err := w.openLoop("For")
		if err != nil {
			return err
		}
		labels := c.loop
		labels.markable = true
		b, err := c.populateBlock(func() error {
			c.emit(expr.If(expr.Not(cond(v)), expr.Break(labels.brk)))
			if err := body(c, v, c.loopContext()); err != nil {
				return err
			}
			if !labels.marked {
				c.emit(expr.NewLabel(labels.cont, nil))
			}
			c.emit(expr.Set(v, step(v)))
			return nil
		})
		if err != nil {
			return err
		}
		b.T = expr.Void
		w.emit(expr.NewLoop(b, labels.brk, nil))
		return nil
	})
	if err != nil {
		return err
	}
	sc.emit(n)
	return nil
}

// ForEach adds a loop over the elements of collection, binding each in
// turn to a fresh variable named name. Arrays, slices and pointers to
// arrays are indexed; other types must be enumerable. An enumerator
// with a Close or Dispose method is disposed on every exit from the
// loop.
func (sc *Scope) ForEach(name string, collection expr.Node, body ElemBody) error {
	t := collection.Type()
	switch {
	case t.Kind() == reflect.Slice, t.Kind() == reflect.Array,
		t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Array:
		return sc.forIndex(name, collection, body)
	}
	shape, err := sc.sess.registry.Enumerable(t)
	if err != nil {
		return err
	}
	return sc.forEnum(name, collection, shape, body)
}

func (sc *Scope) forIndex(name string, collection expr.Node, body ElemBody) error {
	w, err := sc.open("ForEach", BlockScope)
	if err != nil {
		return err
	}
	n, err := w.populate(func() error {
		coll := w.hidden("coll", collection.Type())
		i := w.hidden("i", expr.IntType)
		w.emit(expr.Set(coll, collection))
		length := expr.Node(expr.Length(coll))
		if t := collection.Type(); t.Kind() == reflect.Ptr {
			length = expr.Constant(t.Elem().Len())
		}

		c, err := w.openLoop("ForEach")
		if err != nil {
			return err
		}
		labels := c.loop
		b, err := c.populateBlock(func() error {
			c.emit(expr.If(expr.GreaterEqual(i, length), expr.Break(labels.brk)))
			elem, err := expr.IndexOf(coll, i)
			if err != nil {
				return err
			}
			v, err := c.Declare(name, elem.Type())
			if err != nil {
				return err
			}
			c.emit(expr.Set(v, elem))
			if err := body(c, v, c.loopContext()); err != nil {
				return err
			}
			c.emit(expr.NewLabel(labels.cont, nil))
			c.emit(expr.Set(i, expr.Add(i, expr.Constant(1))))
			return nil
		})
		if err != nil {
			return err
		}
		b.T = expr.Void
		w.emit(expr.NewLoop(b, labels.brk, nil))
		return nil
	})
	if err != nil {
		return err
	}
	sc.emit(n)
	return nil
}

func (sc *Scope) forEnum(name string, collection expr.Node, shape *expr.EnumShape, body ElemBody) error {
	w, err := sc.open("ForEach", BlockScope)
	if err != nil {
		return err
	}
	n, err := w.populate(func() error {
		e := w.hidden("enum", shape.Enumerator)
		w.emit(expr.Set(e, shape.GetEnumerator(collection)))

		c, err := w.openLoop("ForEach")
		if err != nil {
			return err
		}
		labels := c.loop
		b, err := c.populateBlock(func() error {
			c.emit(expr.If(expr.Not(shape.Next(e)), expr.Break(labels.brk)))
			v, err := c.Declare(name, shape.Elem)
			if err != nil {
				return err
			}
			c.emit(expr.Set(v, shape.Current(e)))
			return body(c, v, c.loopContext())
		})
		if err != nil {
			return err
		}
		b.T = expr.Void
		var loop expr.Node = expr.NewLoop(b, labels.brk, labels.cont)
		if shape.Dispose != nil {
			dispose := shape.Dispose(e)
			if nilable(shape.Enumerator) {
				dispose = expr.If(expr.Not(expr.Equal(e, expr.Zero(shape.Enumerator))), dispose)
			}
			loop = &expr.Try{Body: loop, Finally: dispose}
		}
		w.emit(loop)
		return nil
	})
	if err != nil {
		return err
	}
	sc.emit(n)
	return nil
}

func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return true
	}
	return false
}
