// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package expr defines the typed expression tree that the builders in
// package build assemble and that package compile turns into Go
// functions.
//
// Every node has a static type, a reflect.Type. Nodes whose evaluation
// produces no value have type Void. Thrown values are always Go errors.
//
// Nodes are plain structs and may be constructed directly, but the
// helper functions in this package compute result types and should be
// preferred. Helpers that must inspect method sets (Field, Method,
// Await) report failures as errors; the remaining helpers never fail
// and defer type checking to compile time.
package expr // import "go.exprtree.net/expr"

import (
	"fmt"
	"reflect"
	"sync/atomic"
)

// A Node is a node in an expression tree.
type Node interface {
	// Type returns the static type of the value produced by the node,
	// or Void.
	Type() reflect.Type
	node()
}

type void struct{}

var (
	// Void is the type of nodes that produce no value.
	Void = reflect.TypeOf(void{})

	// ErrorType is the type of the built-in error interface.
	ErrorType = reflect.TypeOf((*error)(nil)).Elem()

	// AnyType is the type of the empty interface.
	AnyType = reflect.TypeOf((*interface{})(nil)).Elem()

	// BoolType is the type of boolean tests.
	BoolType = reflect.TypeOf(false)

	// IntType is the type of lengths and indices.
	IntType = reflect.TypeOf(0)
)

// IsVoid reports whether t denotes the absence of a value.
func IsVoid(t reflect.Type) bool { return t == nil || t == Void }

// TypeName returns a short description of t suitable for messages.
func TypeName(t reflect.Type) string {
	if IsVoid(t) {
		return "void"
	}
	return t.String()
}

// ids is the process-wide source of variable and label identities.
// Names derived from it are unique even across independent sessions.
var ids int64

func nextID() int64 { return atomic.AddInt64(&ids, 1) }

// A Var is a variable: a lambda parameter, a block local or a catch
// variable. Variables are compared by identity; Name is informational.
type Var struct {
	Name string
	T    reflect.Type
	id   int64
}

// NewVar returns a new variable of the specified type.
// An empty name is replaced by a unique generated one.
func NewVar(name string, t reflect.Type) *Var {
	id := nextID()
	if name == "" {
		name = fmt.Sprintf("$v%d", id)
	}
	return &Var{Name: name, T: t, id: id}
}

// ID returns the unique identity of the variable.
func (v *Var) ID() int64 { return v.id }

func (v *Var) String() string { return v.Name }

// A Target is the destination of a Goto. Targets of non-void type carry
// a value from the Goto to the corresponding Label.
type Target struct {
	Name string
	T    reflect.Type
	id   int64
}

// NewTarget returns a new jump target. If name is empty or already
// used, the result still has a unique identity; the name is decorated
// with the identity so that printed trees remain unambiguous.
func NewTarget(name string, t reflect.Type) *Target {
	if t == nil {
		t = Void
	}
	id := nextID()
	if name == "" {
		name = "L"
	}
	return &Target{Name: fmt.Sprintf("%s#%d", name, id), T: t, id: id}
}

// NewNamedTarget returns a jump target whose name is used verbatim.
// Callers are responsible for the uniqueness of the name.
func NewNamedTarget(name string, t reflect.Type) *Target {
	if t == nil {
		t = Void
	}
	return &Target{Name: name, T: t, id: nextID()}
}

// ID returns the unique identity of the target.
func (t *Target) ID() int64 { return t.id }

func (t *Target) String() string { return t.Name }
