// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package expr

import "reflect"

func (*Assign) node()     {}
func (*Await) node()      {}
func (*Binary) node()     {}
func (*Block) node()      {}
func (*Call) node()       {}
func (*Cond) node()       {}
func (*Const) node()      {}
func (*Convert) node()    {}
func (*Default) node()    {}
func (*Field) node()      {}
func (*Goto) node()       {}
func (*Index) node()      {}
func (*Label) node()      {}
func (*Lambda) node()     {}
func (*Len) node()        {}
func (*Loop) node()       {}
func (*MethodCall) node() {}
func (*Throw) node()      {}
func (*Try) node()        {}
func (*TypeIs) node()     {}
func (*Unary) node()      {}
func (*Var) node()        {}

// A Const is a constant value.
type Const struct {
	Value reflect.Value // may be the zero Value for a nil of interface type T
	T     reflect.Type
}

func (x *Const) Type() reflect.Type { return x.T }

// A Default yields the zero value of T, or nothing if T is Void.
type Default struct {
	T reflect.Type
}

func (x *Default) Type() reflect.Type { return x.T }

func (x *Var) Type() reflect.Type { return x.T }

// An Assign stores Value into Target, which must be a *Var, *Field or
// *Index, and yields the stored value.
type Assign struct {
	Target Node
	Value  Node
}

func (x *Assign) Type() reflect.Type { return x.Target.Type() }

// A Unary represents a unary operation: Op X.
type Unary struct {
	Op Op // = NOT | NEGATE
	X  Node
}

func (x *Unary) Type() reflect.Type {
	if x.Op == NOT {
		return BoolType
	}
	return x.X.Type()
}

// A Binary represents a binary operation: X Op Y.
// ANDALSO and ORELSE evaluate Y only if needed.
type Binary struct {
	Op Op
	X  Node
	Y  Node
}

func (x *Binary) Type() reflect.Type {
	if x.Op.IsComparison() || x.Op.IsLogical() {
		return BoolType
	}
	return x.X.Type()
}

// A Call invokes a value of func type: Fn(Args).
//
// If the function's last result is an error, a non-nil error is thrown
// and the call yields the remaining result, if any.
type Call struct {
	Fn   Node
	Args []Node
}

func (x *Call) Type() reflect.Type { return resultType(x.Fn.Type()) }

// A MethodCall invokes the named method of Recv: Recv.Name(Args).
// Func is the type of the method value, without receiver.
type MethodCall struct {
	Recv Node
	Name string
	Func reflect.Type
	Args []Node
}

func (x *MethodCall) Type() reflect.Type { return resultType(x.Func) }

// A Field selects a struct field: X.Name.
// X may be a struct or a pointer to a struct.
type Field struct {
	X     Node
	Name  string
	Index []int
	T     reflect.Type
}

func (x *Field) Type() reflect.Type { return x.T }

// An Index selects an element of an array, slice, string or map: X[I].
type Index struct {
	X Node
	I Node
	T reflect.Type
}

func (x *Index) Type() reflect.Type { return x.T }

// A Len yields the length of an array, slice, string, map or channel.
type Len struct {
	X Node
}

func (x *Len) Type() reflect.Type { return IntType }

// A Convert converts X to type T. Conversion from an interface type
// is a checked type assertion.
type Convert struct {
	X Node
	T reflect.Type
}

func (x *Convert) Type() reflect.Type { return x.T }

// A TypeIs reports whether the dynamic type of X is assignable to T.
// A nil X is never an instance of T.
type TypeIs struct {
	X Node
	T reflect.Type
}

func (x *TypeIs) Type() reflect.Type { return BoolType }

// A Cond is a conditional: if Test { Then } else { Else }.
// If T is Void the branches' values are discarded.
type Cond struct {
	Test Node
	Then Node
	Else Node // non-nil
	T    reflect.Type
}

func (x *Cond) Type() reflect.Type { return x.T }

// A Block is a sequence of nodes evaluated in order, with its own local
// variables. Its value is that of the last node, unless T is Void.
type Block struct {
	Vars []*Var
	List []Node
	T    reflect.Type
}

func (x *Block) Type() reflect.Type { return x.T }

// A Loop evaluates Body repeatedly until a Goto to Break leaves it.
// A Goto to Continue starts the next iteration.
type Loop struct {
	Body     Node
	Break    *Target // non-nil
	Continue *Target // may be nil
}

func (x *Loop) Type() reflect.Type { return x.Break.T }

// A Label marks the position of a jump target within a Block.
// Reached by falling through, it yields Default; reached by a Goto, it
// yields the Goto's value.
type Label struct {
	Target  *Target
	Default Node // may be nil if Target.T is Void
}

func (x *Label) Type() reflect.Type { return x.Target.T }

// A Goto transfers control to the Label of Target, carrying Value.
type Goto struct {
	Kind   GotoKind
	Target *Target
	Value  Node // nil if Target.T is Void
}

func (x *Goto) Type() reflect.Type { return Void }

// A Catch is one handler of a Try. It handles errors whose dynamic type
// is assignable to Test and for which Filter, if any, yields true.
type Catch struct {
	Var    *Var         // may be nil; otherwise of type Test
	Test   reflect.Type // an error type
	Filter Node         // may be nil; evaluated with Var bound
	Body   Node
}

// A Try is a protected region with handlers.
// Fault runs only when an error leaves the Try; Finally runs on every
// exit path.
type Try struct {
	Body     Node
	Handlers []*Catch
	Finally  Node // may be nil
	Fault    Node // may be nil
}

func (x *Try) Type() reflect.Type { return x.Body.Type() }

// A Throw raises the error X. A Throw with nil X rethrows the error
// being handled by the innermost enclosing Catch.
type Throw struct {
	X Node
}

func (x *Throw) Type() reflect.Type { return Void }

// A Lambda is a function literal. Its value is a Go func of type Sig.Func
// closed over the variables in scope where it is evaluated.
type Lambda struct {
	Name   string
	Sig    *Signature
	Params []*Var
	Body   Node
}

func (x *Lambda) Type() reflect.Type { return x.Sig.Func }

// An Await suspends the enclosing async lambda until the awaitable X
// completes and yields its result. Await nodes must be removed by the
// async lowering before compilation.
type Await struct {
	X     Node
	Shape *AwaitShape
}

func (x *Await) Type() reflect.Type { return x.Shape.Result }

// resultType returns the value type of a call of a function of type ft.
func resultType(ft reflect.Type) reflect.Type {
	if ft == nil || ft.Kind() != reflect.Func {
		return Void
	}
	n := ft.NumOut()
	if n > 0 && ft.Out(n-1) == ErrorType {
		n--
	}
	if n == 0 {
		return Void
	}
	return ft.Out(0)
}
