// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package expr

// This file defines the structural capabilities that constructs
// require of the types they operate on: awaitable, enumerable,
// disposable and lockable. A capability is found either in the
// method set of the type or in an explicit registration.

import (
	"fmt"
	"reflect"
	"sync"
)

// Method names of the capability protocols.
const (
	AwaiterMethod    = "Awaiter"    // awaitable: Awaiter() A
	ResultMethod     = "Result"     // awaiter:   Result() (R, error)
	EnumeratorMethod = "Enumerator" // enumerable: Enumerator() E
	NextMethod       = "Next"       // enumerator: Next() bool
	CurrentMethod    = "Current"    // enumerator: Current() T
	CloseMethod      = "Close"      // disposable: Close() error
	DisposeMethod    = "Dispose"    // disposable: Dispose()
)

// An AwaitShape describes how to await operands of one type.
type AwaitShape struct {
	Operand reflect.Type
	Awaiter reflect.Type
	Result  reflect.Type // Void if the awaiter yields no value

	GetAwaiter func(x Node) Node // yields the awaiter of operand x
	GetResult  func(a Node) Node // yields the result of awaiter a
}

// An EnumShape describes how to iterate over values of one type.
type EnumShape struct {
	Collection reflect.Type
	Enumerator reflect.Type
	Elem       reflect.Type

	GetEnumerator func(x Node) Node
	Next          func(e Node) Node // yields bool
	Current       func(e Node) Node
	Dispose       func(e Node) Node // nil if the enumerator is not disposable
}

// A MissingAwaiterCapabilityError reports an await operand whose type
// has no zero-argument Awaiter method.
type MissingAwaiterCapabilityError struct {
	T reflect.Type
}

func (e *MissingAwaiterCapabilityError) Error() string {
	return fmt.Sprintf("cannot await %s: no method %s() with one result", TypeName(e.T), AwaiterMethod)
}

// A MissingResultCapabilityError reports an awaiter type without a
// zero-argument Result method.
type MissingResultCapabilityError struct {
	Operand reflect.Type
	Awaiter reflect.Type
}

func (e *MissingResultCapabilityError) Error() string {
	return fmt.Sprintf("cannot await %s: awaiter %s has no method %s()", TypeName(e.Operand), TypeName(e.Awaiter), ResultMethod)
}

// A MissingCapabilityError reports a type that lacks a structural
// capability other than awaiting.
type MissingCapabilityError struct {
	Capability string // "enumerable", "disposable" or "lockable"
	T          reflect.Type
	Msg        string
}

func (e *MissingCapabilityError) Error() string {
	msg := fmt.Sprintf("%s is not %s", TypeName(e.T), e.Capability)
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	return msg
}

// A Registry associates capabilities with types. Lookups fall back to
// the method set of the type and cache what they find, so the
// structural check runs once per type.
type Registry struct {
	mu    sync.RWMutex
	await map[reflect.Type]*AwaitShape
	enum  map[reflect.Type]*EnumShape
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		await: make(map[reflect.Type]*AwaitShape),
		enum:  make(map[reflect.Type]*EnumShape),
	}
}

// DefaultRegistry is used by NewAwait and the builders unless told otherwise.
var DefaultRegistry = NewRegistry()

// RegisterAwaitable makes values of type operand awaitable using Go
// functions getAwaiter, of type func(operand) A, and getResult, of type
// func(A) with results (), (R), (error) or (R, error).
func (r *Registry) RegisterAwaitable(operand reflect.Type, getAwaiter, getResult interface{}) error {
	ga, gr := reflect.ValueOf(getAwaiter), reflect.ValueOf(getResult)
	if ga.Kind() != reflect.Func || ga.Type().NumIn() != 1 || ga.Type().NumOut() != 1 ||
		!operand.AssignableTo(ga.Type().In(0)) {
		return fmt.Errorf("RegisterAwaitable: getAwaiter must be func(%s) A, got %T", operand, getAwaiter)
	}
	awaiter := ga.Type().Out(0)
	if gr.Kind() != reflect.Func || gr.Type().NumIn() != 1 || !awaiter.AssignableTo(gr.Type().In(0)) {
		return fmt.Errorf("RegisterAwaitable: getResult must be func(%s) R, got %T", awaiter, getResult)
	}
	if !validResults(gr.Type()) {
		return fmt.Errorf("RegisterAwaitable: getResult has unsupported results: %s", gr.Type())
	}
	shape := &AwaitShape{
		Operand:    operand,
		Awaiter:    awaiter,
		Result:     resultType(gr.Type()),
		GetAwaiter: func(x Node) Node { return Invoke(Func(getAwaiter), x) },
		GetResult:  func(a Node) Node { return Invoke(Func(getResult), a) },
	}
	r.mu.Lock()
	r.await[operand] = shape
	r.mu.Unlock()
	return nil
}

// Awaitable returns the await shape of operand type t.
func (r *Registry) Awaitable(t reflect.Type) (*AwaitShape, error) {
	r.mu.RLock()
	shape, ok := r.await[t]
	r.mu.RUnlock()
	if ok {
		return shape, nil
	}

	at, ok := methodType(t, AwaiterMethod)
	if !ok || at.NumIn() != 0 || at.NumOut() != 1 || at.Out(0) == ErrorType {
		return nil, &MissingAwaiterCapabilityError{T: t}
	}
	awaiter := at.Out(0)
	rt, ok := methodType(awaiter, ResultMethod)
	if !ok || rt.NumIn() != 0 || !validResults(rt) {
		return nil, &MissingResultCapabilityError{Operand: t, Awaiter: awaiter}
	}
	shape = &AwaitShape{
		Operand: t,
		Awaiter: awaiter,
		Result:  resultType(rt),
		GetAwaiter: func(x Node) Node {
			return &MethodCall{Recv: x, Name: AwaiterMethod, Func: at}
		},
		GetResult: func(a Node) Node {
			return &MethodCall{Recv: a, Name: ResultMethod, Func: rt}
		},
	}
	r.mu.Lock()
	r.await[t] = shape
	r.mu.Unlock()
	return shape, nil
}

// Enumerable returns the enumeration shape of collection type t.
func (r *Registry) Enumerable(t reflect.Type) (*EnumShape, error) {
	r.mu.RLock()
	shape, ok := r.enum[t]
	r.mu.RUnlock()
	if ok {
		return shape, nil
	}

	et, ok := methodType(t, EnumeratorMethod)
	if !ok || et.NumIn() != 0 || et.NumOut() != 1 {
		return nil, &MissingCapabilityError{Capability: "enumerable", T: t,
			Msg: fmt.Sprintf("no method %s() with one result", EnumeratorMethod)}
	}
	enumerator := et.Out(0)
	nt, ok := methodType(enumerator, NextMethod)
	if !ok || nt.NumIn() != 0 || nt.NumOut() != 1 || nt.Out(0).Kind() != reflect.Bool {
		return nil, &MissingCapabilityError{Capability: "enumerable", T: t,
			Msg: fmt.Sprintf("enumerator %s has no method %s() bool", enumerator, NextMethod)}
	}
	ct, ok := methodType(enumerator, CurrentMethod)
	if !ok || ct.NumIn() != 0 || ct.NumOut() != 1 {
		return nil, &MissingCapabilityError{Capability: "enumerable", T: t,
			Msg: fmt.Sprintf("enumerator %s has no method %s() with one result", enumerator, CurrentMethod)}
	}
	shape = &EnumShape{
		Collection: t,
		Enumerator: enumerator,
		Elem:       ct.Out(0),
		GetEnumerator: func(x Node) Node {
			return &MethodCall{Recv: x, Name: EnumeratorMethod, Func: et}
		},
		Next: func(e Node) Node {
			return &MethodCall{Recv: e, Name: NextMethod, Func: nt}
		},
		Current: func(e Node) Node {
			return &MethodCall{Recv: e, Name: CurrentMethod, Func: ct}
		},
		Dispose: Disposer(enumerator),
	}
	r.mu.Lock()
	r.enum[t] = shape
	r.mu.Unlock()
	return shape, nil
}

// Disposer returns a function that builds the disposal call for values
// of type t, or nil if t has neither Close() error nor Dispose().
func Disposer(t reflect.Type) func(x Node) Node {
	if ft, ok := methodType(t, CloseMethod); ok && ft.NumIn() == 0 &&
		(ft.NumOut() == 0 || ft.NumOut() == 1 && ft.Out(0) == ErrorType) {
		return func(x Node) Node { return &MethodCall{Recv: x, Name: CloseMethod, Func: ft} }
	}
	if ft, ok := methodType(t, DisposeMethod); ok && ft.NumIn() == 0 && ft.NumOut() == 0 {
		return func(x Node) Node { return &MethodCall{Recv: x, Name: DisposeMethod, Func: ft} }
	}
	return nil
}

// NewAwait returns an await of x using the default registry.
func NewAwait(x Node) (*Await, error) { return DefaultRegistry.Await(x) }

// Await returns an await of x.
func (r *Registry) Await(x Node) (*Await, error) {
	shape, err := r.Awaitable(x.Type())
	if err != nil {
		return nil, err
	}
	return &Await{X: x, Shape: shape}, nil
}

// validResults reports whether ft's results are (), (R), (error) or (R, error).
func validResults(ft reflect.Type) bool {
	switch ft.NumOut() {
	case 0, 1:
		return true
	case 2:
		return ft.Out(1) == ErrorType
	}
	return false
}
