// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compile

import (
	"fmt"
	"reflect"

	"go.exprtree.net/expr"
)

// A jump is the error used internally to unwind the evaluator to the
// Label, Loop or Block that handles target. Any other error is a
// thrown exception.
type jump struct {
	target *expr.Target
	value  reflect.Value // invalid if target.T is Void
}

func (j *jump) Error() string { return "goto " + j.target.Name }

func isJump(err error) bool {
	_, ok := err.(*jump)
	return ok
}

// An env holds the variable cells of one block, catch clause or
// lambda activation. Cells are addressable; closures share them.
type env struct {
	parent *env
	vars   map[*expr.Var]reflect.Value
}

func newEnv(parent *env, vars []*expr.Var) *env {
	e := &env{parent: parent, vars: make(map[*expr.Var]reflect.Value, len(vars))}
	for _, v := range vars {
		e.vars[v] = reflect.New(v.T).Elem()
	}
	return e
}

func (e *env) lookup(v *expr.Var) (reflect.Value, bool) {
	for ; e != nil; e = e.parent {
		if cell, ok := e.vars[v]; ok {
			return cell, true
		}
	}
	return reflect.Value{}, false
}

// A frame is the evaluation state of one lambda activation.
type frame struct {
	*Frame
	prog   *program
	env    *env
	caught []error // errors being handled by enclosing catch clauses
}

func (fr *frame) errorf(format string, args ...interface{}) *EvalError {
	return &EvalError{Msg: fmt.Sprintf(format, args...), Frame: fr.Frame}
}

// eval evaluates n. Void results are the invalid reflect.Value.
func (fr *frame) eval(n expr.Node) (reflect.Value, error) {
	switch n := n.(type) {
	case *expr.Const:
		if !n.Value.IsValid() {
			return reflect.Zero(n.T), nil
		}
		return fr.assignTo(n.Value, n.T)

	case *expr.Default:
		if expr.IsVoid(n.T) {
			return reflect.Value{}, nil
		}
		return reflect.Zero(n.T), nil

	case *expr.Var:
		cell, ok := fr.env.lookup(n)
		if !ok {
			return reflect.Value{}, fr.errorf("variable %s used outside its scope", n.Name)
		}
		return copyValue(cell), nil

	case *expr.Assign:
		return fr.assign(n)

	case *expr.Unary:
		x, err := fr.eval(n.X)
		if err != nil {
			return reflect.Value{}, err
		}
		return fr.unary(n.Op, x)

	case *expr.Binary:
		return fr.binary(n)

	case *expr.Call:
		fn, err := fr.eval(n.Fn)
		if err != nil {
			return reflect.Value{}, err
		}
		if !fn.IsValid() || fn.Kind() == reflect.Interface && fn.IsNil() {
			return reflect.Value{}, fr.errorf("call of nil function")
		}
		if fn.Kind() == reflect.Interface {
			fn = fn.Elem()
		}
		if fn.Kind() != reflect.Func {
			return reflect.Value{}, fr.errorf("call of non-function %s", fn.Type())
		}
		if fn.IsNil() {
			return reflect.Value{}, fr.errorf("call of nil function")
		}
		args, err := fr.args(fn.Type(), n.Args)
		if err != nil {
			return reflect.Value{}, err
		}
		return fr.call(fn, args)

	case *expr.MethodCall:
		recv, err := fr.eval(n.Recv)
		if err != nil {
			return reflect.Value{}, err
		}
		if isNil(recv) && recv.Kind() == reflect.Interface {
			return reflect.Value{}, fr.errorf("%s call on nil %s", n.Name, expr.TypeName(n.Recv.Type()))
		}
		m := recv.MethodByName(n.Name)
		if !m.IsValid() {
			return reflect.Value{}, fr.errorf("%s has no method %s", recv.Type(), n.Name)
		}
		args, err := fr.args(m.Type(), n.Args)
		if err != nil {
			return reflect.Value{}, err
		}
		return fr.call(m, args)

	case *expr.Field:
		x, err := fr.eval(n.X)
		if err != nil {
			return reflect.Value{}, err
		}
		if x.Kind() == reflect.Ptr {
			if x.IsNil() {
				return reflect.Value{}, fr.errorf("field %s of nil %s", n.Name, x.Type())
			}
			x = x.Elem()
		}
		return copyValue(x.FieldByIndex(n.Index)), nil

	case *expr.Index:
		return fr.index(n)

	case *expr.Len:
		x, err := fr.eval(n.X)
		if err != nil {
			return reflect.Value{}, err
		}
		switch x.Kind() {
		case reflect.Array, reflect.Slice, reflect.String, reflect.Map, reflect.Chan:
			return reflect.ValueOf(x.Len()), nil
		}
		return reflect.Value{}, fr.errorf("len of %s", x.Type())

	case *expr.Convert:
		x, err := fr.eval(n.X)
		if err != nil {
			return reflect.Value{}, err
		}
		return fr.convert(x, n.T)

	case *expr.TypeIs:
		x, err := fr.eval(n.X)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(instanceOf(x, n.T)), nil

	case *expr.Cond:
		ok, err := fr.test(n.Test)
		if err != nil {
			return reflect.Value{}, err
		}
		branch := n.Else
		if ok {
			branch = n.Then
		}
		v, err := fr.eval(branch)
		if err != nil || expr.IsVoid(n.T) {
			return reflect.Value{}, err
		}
		return fr.assignTo(v, n.T)

	case *expr.Block:
		return fr.block(n)

	case *expr.Loop:
		for {
			_, err := fr.eval(n.Body)
			if err == nil {
				continue
			}
			if j, ok := err.(*jump); ok {
				if j.target == n.Break {
					return j.value, nil
				}
				if j.target == n.Continue {
					continue
				}
			}
			return reflect.Value{}, err
		}

	case *expr.Label:
		if expr.IsVoid(n.Target.T) {
			if n.Default != nil {
				_, err := fr.eval(n.Default)
				return reflect.Value{}, err
			}
			return reflect.Value{}, nil
		}
		if n.Default == nil {
			return reflect.Zero(n.Target.T), nil
		}
		v, err := fr.eval(n.Default)
		if err != nil {
			return reflect.Value{}, err
		}
		return fr.assignTo(v, n.Target.T)

	case *expr.Goto:
		j := &jump{target: n.Target}
		if !expr.IsVoid(n.Target.T) {
			j.value = reflect.Zero(n.Target.T)
		}
		if n.Value != nil {
			v, err := fr.eval(n.Value)
			if err != nil {
				return reflect.Value{}, err
			}
			if !expr.IsVoid(n.Target.T) {
				if j.value, err = fr.assignTo(v, n.Target.T); err != nil {
					return reflect.Value{}, err
				}
			}
		}
		return reflect.Value{}, j

	case *expr.Try:
		return fr.try(n)

	case *expr.Throw:
		if n.X == nil {
			if len(fr.caught) == 0 {
				return reflect.Value{}, fr.errorf("rethrow outside catch handler")
			}
			return reflect.Value{}, fr.caught[len(fr.caught)-1]
		}
		x, err := fr.eval(n.X)
		if err != nil {
			return reflect.Value{}, err
		}
		if isNil(x) {
			return reflect.Value{}, fr.errorf("throw of nil %s", expr.TypeName(n.X.Type()))
		}
		e, ok := x.Interface().(error)
		if !ok {
			return reflect.Value{}, fr.errorf("throw of non-error %s", x.Type())
		}
		return reflect.Value{}, e

	case *expr.Lambda:
		return fr.closure(n), nil

	case *expr.Await:
		return reflect.Value{}, fr.errorf("await outside async lambda")
	}
	return reflect.Value{}, fr.errorf("unexpected node %T", n)
}

func (fr *frame) test(n expr.Node) (bool, error) {
	v, err := fr.eval(n)
	if err != nil {
		return false, err
	}
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if v.Kind() != reflect.Bool {
		return false, fr.errorf("condition has type %s, want bool", expr.TypeName(n.Type()))
	}
	return v.Bool(), nil
}

func (fr *frame) block(b *expr.Block) (reflect.Value, error) {
	if len(b.Vars) > 0 {
		saved := fr.env
		fr.env = newEnv(saved, b.Vars)
		defer func() { fr.env = saved }()
	}
	labels := fr.prog.labels[b]
	var result reflect.Value
	for i := 0; i < len(b.List); {
		v, err := fr.eval(b.List[i])
		if err != nil {
			if j, ok := err.(*jump); ok {
				if pos, ok := labels[j.target]; ok {
					result = j.value
					i = pos + 1
					continue
				}
			}
			return reflect.Value{}, err
		}
		result = v
		i++
	}
	if expr.IsVoid(b.T) {
		return reflect.Value{}, nil
	}
	return fr.assignTo(result, b.T)
}

// try implements the protected region: handlers in declaration order,
// then the fault handler if an error is still leaving, then finally.
// An error raised by the finally clause replaces the outcome.
func (fr *frame) try(t *expr.Try) (reflect.Value, error) {
	result, err := fr.eval(t.Body)
	if err != nil && !isJump(err) {
		for _, h := range t.Handlers {
			saved := fr.env
			fr.env = newEnv(saved, nil)
			if h.Var != nil {
				fr.env.vars[h.Var] = reflect.New(h.Var.T).Elem()
			}
			if !fr.matches(h, err) {
				fr.env = saved
				continue
			}
			fr.caught = append(fr.caught, err)
			result, err = fr.eval(h.Body)
			fr.caught = fr.caught[:len(fr.caught)-1]
			fr.env = saved
			break
		}
	}
	if err != nil && !isJump(err) && t.Fault != nil {
		if _, ferr := fr.eval(t.Fault); ferr != nil {
			err = ferr
		}
	}
	if t.Finally != nil {
		if _, ferr := fr.eval(t.Finally); ferr != nil {
			return reflect.Value{}, ferr
		}
	}
	if err != nil || expr.IsVoid(t.Type()) {
		return reflect.Value{}, err
	}
	return fr.assignTo(result, t.Type())
}

// matches reports whether handler h catches e, binding its variable
// in the current env. A filter that fails counts as no match.
func (fr *frame) matches(h *expr.Catch, e error) bool {
	if !reflect.TypeOf(e).AssignableTo(h.Test) {
		return false
	}
	if h.Var != nil {
		fr.env.vars[h.Var].Set(reflect.ValueOf(e))
	}
	if h.Filter == nil {
		return true
	}
	ok, err := fr.test(h.Filter)
	return err == nil && ok
}

func (fr *frame) assign(n *expr.Assign) (reflect.Value, error) {
	if ix, ok := n.Target.(*expr.Index); ok && ix.X.Type().Kind() == reflect.Map {
		m, err := fr.eval(ix.X)
		if err != nil {
			return reflect.Value{}, err
		}
		k, err := fr.eval(ix.I)
		if err != nil {
			return reflect.Value{}, err
		}
		v, err := fr.eval(n.Value)
		if err != nil {
			return reflect.Value{}, err
		}
		if m.IsNil() {
			return reflect.Value{}, fr.errorf("assignment to entry in nil map")
		}
		if k, err = fr.assignTo(k, m.Type().Key()); err != nil {
			return reflect.Value{}, err
		}
		if v, err = fr.assignTo(v, m.Type().Elem()); err != nil {
			return reflect.Value{}, err
		}
		m.SetMapIndex(k, v)
		return v, nil
	}

	cell, err := fr.lvalue(n.Target)
	if err != nil {
		return reflect.Value{}, err
	}
	v, err := fr.eval(n.Value)
	if err != nil {
		return reflect.Value{}, err
	}
	if v, err = fr.assignTo(v, cell.Type()); err != nil {
		return reflect.Value{}, err
	}
	if !cell.CanSet() {
		return reflect.Value{}, fr.errorf("cannot assign to %s", expr.String(n.Target))
	}
	cell.Set(v)
	return v, nil
}

// lvalue returns the addressable storage denoted by n.
func (fr *frame) lvalue(n expr.Node) (reflect.Value, error) {
	switch n := n.(type) {
	case *expr.Var:
		cell, ok := fr.env.lookup(n)
		if !ok {
			return reflect.Value{}, fr.errorf("variable %s used outside its scope", n.Name)
		}
		return cell, nil

	case *expr.Field:
		var x reflect.Value
		var err error
		if n.X.Type().Kind() == reflect.Ptr {
			x, err = fr.eval(n.X)
			if err == nil {
				if x.IsNil() {
					return reflect.Value{}, fr.errorf("field %s of nil %s", n.Name, x.Type())
				}
				x = x.Elem()
			}
		} else {
			x, err = fr.lvalue(n.X)
		}
		if err != nil {
			return reflect.Value{}, err
		}
		return x.FieldByIndex(n.Index), nil

	case *expr.Index:
		var x reflect.Value
		var err error
		if n.X.Type().Kind() == reflect.Array {
			x, err = fr.lvalue(n.X)
		} else {
			x, err = fr.eval(n.X)
		}
		if err != nil {
			return reflect.Value{}, err
		}
		i, err := fr.eval(n.I)
		if err != nil {
			return reflect.Value{}, err
		}
		return fr.element(x, i)
	}
	return reflect.Value{}, fr.errorf("cannot assign to %s", expr.String(n))
}

func (fr *frame) index(n *expr.Index) (reflect.Value, error) {
	x, err := fr.eval(n.X)
	if err != nil {
		return reflect.Value{}, err
	}
	i, err := fr.eval(n.I)
	if err != nil {
		return reflect.Value{}, err
	}
	if x.Kind() == reflect.Map {
		k, err := fr.assignTo(i, x.Type().Key())
		if err != nil {
			return reflect.Value{}, err
		}
		v := x.MapIndex(k)
		if !v.IsValid() {
			return reflect.Zero(x.Type().Elem()), nil
		}
		return copyValue(v), nil
	}
	elem, err := fr.element(x, i)
	if err != nil {
		return reflect.Value{}, err
	}
	return copyValue(elem), nil
}

// element returns the i'th element of the array, slice or string x.
func (fr *frame) element(x, i reflect.Value) (reflect.Value, error) {
	if x.Kind() == reflect.Ptr && x.Type().Elem().Kind() == reflect.Array {
		if x.IsNil() {
			return reflect.Value{}, fr.errorf("index of nil %s", x.Type())
		}
		x = x.Elem()
	}
	switch x.Kind() {
	case reflect.Array, reflect.Slice, reflect.String:
	default:
		return reflect.Value{}, fr.errorf("cannot index %s", x.Type())
	}
	var k int
	switch i.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		k = int(i.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		k = int(i.Uint())
	default:
		return reflect.Value{}, fr.errorf("index of type %s, want integer", i.Type())
	}
	if k < 0 || k >= x.Len() {
		return reflect.Value{}, fr.errorf("index %d out of range [0:%d]", k, x.Len())
	}
	return x.Index(k), nil
}

// convert implements Convert: a checked type assertion from interface
// values, otherwise an assignment or a Go conversion.
func (fr *frame) convert(x reflect.Value, t reflect.Type) (reflect.Value, error) {
	if x.Kind() == reflect.Interface {
		if x.IsNil() {
			if t.Kind() == reflect.Interface {
				return reflect.Zero(t), nil
			}
			return reflect.Value{}, fr.errorf("interface conversion: %s is nil, not %s", x.Type(), t)
		}
		dyn := x.Elem()
		if dyn.Type().AssignableTo(t) {
			return fr.assignTo(dyn, t)
		}
		if t.Kind() == reflect.Interface {
			return reflect.Value{}, fr.errorf("interface conversion: %s is not %s: missing method", dyn.Type(), t)
		}
		if dyn.Type().ConvertibleTo(t) && isNumber(dyn.Kind()) && isNumber(t.Kind()) {
			return dyn.Convert(t), nil
		}
		return reflect.Value{}, fr.errorf("interface conversion: %s is %s, not %s", x.Type(), dyn.Type(), t)
	}
	if x.Type().AssignableTo(t) {
		return fr.assignTo(x, t)
	}
	if x.Type().ConvertibleTo(t) {
		var v reflect.Value
		if err := fr.protect(func() { v = x.Convert(t) }); err != nil {
			return reflect.Value{}, err
		}
		return v, nil
	}
	return reflect.Value{}, fr.errorf("cannot convert %s to %s", x.Type(), t)
}

// assignTo returns x as a value of type t.
func (fr *frame) assignTo(x reflect.Value, t reflect.Type) (reflect.Value, error) {
	if !x.IsValid() {
		return reflect.Zero(t), nil
	}
	if x.Type() == t {
		return x, nil
	}
	if x.Kind() == reflect.Interface && t.Kind() != reflect.Interface {
		return fr.convert(x, t)
	}
	if x.Type().AssignableTo(t) {
		v := reflect.New(t).Elem()
		v.Set(x)
		return v, nil
	}
	if x.Type().ConvertibleTo(t) && t.Kind() != reflect.String {
		return x.Convert(t), nil
	}
	return reflect.Value{}, fr.errorf("cannot use %s as %s", x.Type(), t)
}

// instanceOf reports whether the dynamic type of x is assignable to t.
func instanceOf(x reflect.Value, t reflect.Type) bool {
	if isNil(x) {
		return false
	}
	if x.Kind() == reflect.Interface {
		x = x.Elem()
	}
	return x.Type().AssignableTo(t)
}

func isNil(x reflect.Value) bool {
	if !x.IsValid() {
		return true
	}
	switch x.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return x.IsNil()
	}
	return false
}

// copyValue returns a fresh copy of the value in cell, so that later
// stores to the cell are not observed.
func copyValue(cell reflect.Value) reflect.Value {
	v := reflect.New(cell.Type()).Elem()
	v.Set(cell)
	return v
}
