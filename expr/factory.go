// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package expr

// This file defines helpers that construct nodes and compute their types.

import (
	"fmt"
	"reflect"
)

// Constant returns a constant of the dynamic type of v.
// A nil v yields a nil of type AnyType.
func Constant(v interface{}) *Const {
	if v == nil {
		return &Const{T: AnyType}
	}
	rv := reflect.ValueOf(v)
	return &Const{Value: rv, T: rv.Type()}
}

// ConstantOf returns a constant of type t. It panics if v is not
// assignable or convertible to t.
func ConstantOf(v interface{}, t reflect.Type) *Const {
	if v == nil {
		return &Const{Value: reflect.Zero(t), T: t}
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type() == t:
	case rv.Type().AssignableTo(t):
		x := reflect.New(t).Elem()
		x.Set(rv)
		rv = x
	case rv.Type().ConvertibleTo(t):
		rv = rv.Convert(t)
	default:
		panic(fmt.Sprintf("ConstantOf: %s is not assignable to %s", rv.Type(), t))
	}
	return &Const{Value: rv, T: t}
}

// Zero returns a node yielding the zero value of t.
func Zero(t reflect.Type) *Default { return &Default{T: t} }

// Empty returns a node that does nothing.
func Empty() *Default { return &Default{T: Void} }

// IsEmpty reports whether n is a no-op.
func IsEmpty(n Node) bool {
	d, ok := n.(*Default)
	return ok && IsVoid(d.T)
}

// Set returns the assignment target = value.
func Set(target, value Node) *Assign { return &Assign{Target: target, Value: value} }

func Not(x Node) *Unary    { return &Unary{Op: NOT, X: x} }
func Negate(x Node) *Unary { return &Unary{Op: NEGATE, X: x} }

func Add(x, y Node) *Binary          { return &Binary{Op: ADD, X: x, Y: y} }
func Sub(x, y Node) *Binary          { return &Binary{Op: SUB, X: x, Y: y} }
func Mul(x, y Node) *Binary          { return &Binary{Op: MUL, X: x, Y: y} }
func Div(x, y Node) *Binary          { return &Binary{Op: DIV, X: x, Y: y} }
func Rem(x, y Node) *Binary          { return &Binary{Op: REM, X: x, Y: y} }
func Equal(x, y Node) *Binary        { return &Binary{Op: EQL, X: x, Y: y} }
func NotEqual(x, y Node) *Binary     { return &Binary{Op: NEQ, X: x, Y: y} }
func Less(x, y Node) *Binary         { return &Binary{Op: LT, X: x, Y: y} }
func LessEqual(x, y Node) *Binary    { return &Binary{Op: LE, X: x, Y: y} }
func Greater(x, y Node) *Binary      { return &Binary{Op: GT, X: x, Y: y} }
func GreaterEqual(x, y Node) *Binary { return &Binary{Op: GE, X: x, Y: y} }
func AndAlso(x, y Node) *Binary      { return &Binary{Op: ANDALSO, X: x, Y: y} }
func OrElse(x, y Node) *Binary       { return &Binary{Op: ORELSE, X: x, Y: y} }

// Invoke returns the call fn(args...).
func Invoke(fn Node, args ...Node) *Call { return &Call{Fn: fn, Args: args} }

// Func returns a constant holding the Go function fn.
// It panics if fn is not a func.
func Func(fn interface{}) *Const {
	c := Constant(fn)
	if c.T.Kind() != reflect.Func {
		panic(fmt.Sprintf("Func: %s is not a func", c.T))
	}
	return c
}

// Method returns the call recv.name(args...).
func Method(recv Node, name string, args ...Node) (*MethodCall, error) {
	ft, ok := methodType(recv.Type(), name)
	if !ok {
		return nil, fmt.Errorf("%s has no method %s%s", TypeName(recv.Type()), name, suggest(recv.Type(), name))
	}
	return &MethodCall{Recv: recv, Name: name, Func: ft, Args: args}, nil
}

// methodType returns the type of the method value t.name, without receiver.
func methodType(t reflect.Type, name string) (reflect.Type, bool) {
	if IsVoid(t) {
		return nil, false
	}
	m, ok := t.MethodByName(name)
	if !ok {
		return nil, false
	}
	if t.Kind() == reflect.Interface {
		return m.Type, true
	}
	// Drop the receiver.
	in := make([]reflect.Type, 0, m.Type.NumIn()-1)
	for i := 1; i < m.Type.NumIn(); i++ {
		in = append(in, m.Type.In(i))
	}
	out := make([]reflect.Type, 0, m.Type.NumOut())
	for i := 0; i < m.Type.NumOut(); i++ {
		out = append(out, m.Type.Out(i))
	}
	return reflect.FuncOf(in, out, m.Type.IsVariadic()), true
}

// FieldOf returns the member x.name: a struct field of x (or *x), or
// a call of a method of x with no parameters and one value result.
func FieldOf(x Node, name string) (Node, error) {
	t := x.Type()
	if !IsVoid(t) {
		st := t
		if st.Kind() == reflect.Ptr {
			st = st.Elem()
		}
		if st.Kind() == reflect.Struct {
			if f, ok := st.FieldByName(name); ok && f.IsExported() {
				return &Field{X: x, Name: name, Index: f.Index, T: f.Type}, nil
			}
		}
		if ft, ok := methodType(t, name); ok && ft.NumIn() == 0 && !IsVoid(resultType(ft)) {
			return &MethodCall{Recv: x, Name: name, Func: ft}, nil
		}
	}
	return nil, fmt.Errorf("%s has no field or property %s%s", TypeName(t), name, suggest(t, name))
}

// IndexOf returns the element selection x[i].
func IndexOf(x, i Node) (*Index, error) {
	t := x.Type()
	if IsVoid(t) {
		return nil, fmt.Errorf("cannot index void value")
	}
	switch t.Kind() {
	case reflect.Array, reflect.Slice, reflect.Map:
		return &Index{X: x, I: i, T: t.Elem()}, nil
	case reflect.String:
		return &Index{X: x, I: i, T: reflect.TypeOf(byte(0))}, nil
	case reflect.Ptr:
		if t.Elem().Kind() == reflect.Array {
			return &Index{X: x, I: i, T: t.Elem().Elem()}, nil
		}
	}
	return nil, fmt.Errorf("cannot index %s", t)
}

// Length returns len(x).
func Length(x Node) *Len { return &Len{X: x} }

// ConvertTo returns the conversion of x to t.
func ConvertTo(x Node, t reflect.Type) *Convert { return &Convert{X: x, T: t} }

// IsType returns the type test "x is t".
func IsType(x Node, t reflect.Type) *TypeIs { return &TypeIs{X: x, T: t} }

// If returns the statement if test { then }.
func If(test, then Node) *Cond {
	return &Cond{Test: test, Then: then, Else: Empty(), T: Void}
}

// IfElse returns the conditional if test { then } else { els }.
// Its type is that of the branches if they agree, otherwise Void.
func IfElse(test, then, els Node) *Cond {
	t := then.Type()
	if t != els.Type() {
		t = Void
	}
	return &Cond{Test: test, Then: then, Else: els, T: t}
}

// NewBlock returns a block whose value is that of its last node.
func NewBlock(vars []*Var, list ...Node) *Block {
	t := Void
	if len(list) > 0 {
		t = list[len(list)-1].Type()
	}
	return &Block{Vars: vars, List: list, T: t}
}

// NewVoidBlock returns a block that discards the value of its last node.
func NewVoidBlock(vars []*Var, list ...Node) *Block {
	return &Block{Vars: vars, List: list, T: Void}
}

// NewLoop returns a loop. A nil brk is replaced by a fresh void target.
func NewLoop(body Node, brk, cont *Target) *Loop {
	if brk == nil {
		brk = NewTarget("break", Void)
	}
	return &Loop{Body: body, Break: brk, Continue: cont}
}

// NewLabel returns the label of t with default value def.
func NewLabel(t *Target, def Node) *Label {
	if def == nil && !IsVoid(t.T) {
		def = Zero(t.T)
	}
	return &Label{Target: t, Default: def}
}

// Jump returns goto t, carrying value (which may be nil).
func Jump(t *Target, value Node) *Goto { return &Goto{Kind: GotoJump, Target: t, Value: value} }

func Break(t *Target) *Goto    { return &Goto{Kind: GotoBreak, Target: t} }
func Continue(t *Target) *Goto { return &Goto{Kind: GotoContinue, Target: t} }

// Return returns a jump to the return target t of a lambda.
func Return(t *Target, value Node) *Goto {
	return &Goto{Kind: GotoReturn, Target: t, Value: value}
}

// Raise returns a node that throws the error x.
func Raise(x Node) *Throw { return &Throw{X: x} }

// Rethrow returns a node that rethrows the error being handled.
func Rethrow() *Throw { return &Throw{} }

// NewLambda returns a lambda of the given signature.
func NewLambda(name string, sig *Signature, params []*Var, body Node) *Lambda {
	return &Lambda{Name: name, Sig: sig, Params: params, Body: body}
}
