// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package expr

import (
	"fmt"
	"reflect"
)

// A Signature describes the Go func type of a Lambda.
//
// The results of Func must be one of (), (T), (error) or (T, error).
// Result is T, or Void. If HasError, errors thrown by the lambda body
// are returned through the error result instead of panicking.
type Signature struct {
	Func     reflect.Type
	In       []reflect.Type
	Result   reflect.Type
	HasError bool
}

// An AbstractSignatureError reports a function-type descriptor that
// does not denote a concrete func type.
type AbstractSignatureError struct {
	T   reflect.Type // may be nil
	Msg string
}

func (e *AbstractSignatureError) Error() string {
	if e.T == nil {
		return "abstract signature: " + e.Msg
	}
	return fmt.Sprintf("abstract signature %s: %s", e.T, e.Msg)
}

// SignatureOf returns the signature of the func type ft.
func SignatureOf(ft reflect.Type) (*Signature, error) {
	if ft == nil {
		return nil, &AbstractSignatureError{Msg: "nil type"}
	}
	switch ft.Kind() {
	case reflect.Func:
	case reflect.Interface:
		return nil, &AbstractSignatureError{T: ft, Msg: "interface type has no parameter list"}
	default:
		return nil, &AbstractSignatureError{T: ft, Msg: fmt.Sprintf("%s is not a func type", ft.Kind())}
	}

	sig := &Signature{Func: ft, Result: Void}
	for i := 0; i < ft.NumIn(); i++ {
		sig.In = append(sig.In, ft.In(i))
	}
	switch n := ft.NumOut(); {
	case n == 0:
	case n == 1 && ft.Out(0) == ErrorType:
		sig.HasError = true
	case n == 1:
		sig.Result = ft.Out(0)
	case n == 2 && ft.Out(1) == ErrorType:
		sig.Result = ft.Out(0)
		sig.HasError = true
	default:
		return nil, fmt.Errorf("unsupported signature %s: want results (), (T), (error) or (T, error)", ft)
	}
	return sig, nil
}

// MustSignature is like SignatureOf but panics on error.
// It is intended for signatures known at compile time.
func MustSignature(ft reflect.Type) *Signature {
	sig, err := SignatureOf(ft)
	if err != nil {
		panic(err)
	}
	return sig
}

func (sig *Signature) String() string { return sig.Func.String() }
