// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package expr_test

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"go.exprtree.net/expr"
)

type person struct {
	Name string
	Age  int
}

func (person) Greeting() string { return "hi" }

func TestMemberSuggestions(t *testing.T) {
	p := expr.NewVar("p", reflect.TypeOf(person{}))
	_, err := expr.FieldOf(p, "Nam")
	require.EqualError(t, err, "expr_test.person has no field or property Nam; did you mean Name?")
	_, err = expr.FieldOf(p, "Zzzzz")
	require.EqualError(t, err, "expr_test.person has no field or property Zzzzz")
	_, err = expr.Method(p, "Greting")
	require.EqualError(t, err, "expr_test.person has no method Greting; did you mean Greeting?")

	f, err := expr.FieldOf(p, "Greeting")
	require.NoError(t, err)
	require.IsType(t, &expr.MethodCall{}, f)
	require.Equal(t, reflect.TypeOf(""), f.Type())
}

func TestSignatureOf(t *testing.T) {
	intT := reflect.TypeOf(0)
	for i, test := range []struct {
		fn       interface{}
		in       int
		result   reflect.Type
		hasError bool
	}{
		{func() {}, 0, expr.Void, false},
		{func(int, string) int { return 0 }, 2, intT, false},
		{func() error { return nil }, 0, expr.Void, true},
		{func(int) (int, error) { return 0, nil }, 1, intT, true},
	} {
		sig, err := expr.SignatureOf(reflect.TypeOf(test.fn))
		if err != nil {
			t.Errorf("#%d: %v", i, err)
			continue
		}
		if len(sig.In) != test.in || sig.Result != test.result || sig.HasError != test.hasError {
			t.Errorf("#%d: got %d params, result %s, error %t", i, len(sig.In), expr.TypeName(sig.Result), sig.HasError)
		}
	}

	_, err := expr.SignatureOf(reflect.TypeOf((*io.Writer)(nil)).Elem())
	var abstract *expr.AbstractSignatureError
	require.True(t, errors.As(err, &abstract))
	_, err = expr.SignatureOf(reflect.TypeOf(func() (int, int) { return 0, 0 }))
	require.Error(t, err)
}

func TestWalk(t *testing.T) {
	x := expr.NewVar("x", expr.IntType)
	n := expr.NewBlock([]*expr.Var{x},
		expr.Set(x, expr.Constant(1)),
		expr.Add(x, expr.Constant(2)))

	var kinds []string
	depth, maxDepth := 0, 0
	expr.Walk(n, func(n expr.Node) bool {
		if n == nil {
			depth--
			return true
		}
		depth++
		if depth > maxDepth {
			maxDepth = depth
		}
		kinds = append(kinds, strings.TrimPrefix(reflect.TypeOf(n).String(), "*expr."))
		return true
	})
	want := []string{"Block", "Var", "Assign", "Var", "Const", "Binary", "Var", "Const"}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("Walk order (-want +got):\n%s", diff)
	}
	require.Equal(t, 0, depth)
	require.Equal(t, 3, maxDepth)

	// Returning false prunes the subtree.
	count := 0
	expr.Walk(n, func(n expr.Node) bool {
		if n != nil {
			count++
		}
		_, isAssign := n.(*expr.Assign)
		return !isAssign
	})
	require.Equal(t, 6, count)
}

func TestRewrite(t *testing.T) {
	x := expr.NewVar("x", expr.IntType)
	one := expr.Constant(1)
	orig := expr.Add(x, expr.Mul(x, one))
	got := expr.Rewrite(orig, func(n expr.Node) expr.Node {
		if n == one {
			return expr.Constant(2)
		}
		return nil
	})
	require.NotSame(t, orig, got)
	b := got.(*expr.Binary)
	require.Same(t, x, b.X, "variables must not be copied")
	require.Equal(t, "(x + (x * 2))", strings.TrimSpace(expr.String(got)))
	require.Equal(t, "(x + (x * 1))", strings.TrimSpace(expr.String(orig)))

	same := expr.Rewrite(orig, func(expr.Node) expr.Node { return nil })
	require.Same(t, orig, same)
}

// counter is awaited through registered functions.
type counter int

// box is an enumerable with a disposable enumerator.
type box []string

type boxIter struct {
	items []string
	i     int
}

func (b box) Enumerator() *boxIter  { return &boxIter{items: b} }
func (it *boxIter) Next() bool      { it.i++; return it.i <= len(it.items) }
func (it *boxIter) Current() string { return it.items[it.i-1] }
func (it *boxIter) Dispose()        {}

func TestRegistry(t *testing.T) {
	r := expr.NewRegistry()
	ct := reflect.TypeOf(counter(0))

	_, err := r.Awaitable(ct)
	var missing *expr.MissingAwaiterCapabilityError
	require.True(t, errors.As(err, &missing))

	require.Error(t, r.RegisterAwaitable(ct, func(int) {}, func(int) int { return 0 }))
	require.NoError(t, r.RegisterAwaitable(ct,
		func(c counter) int { return int(c) },
		func(n int) (string, error) { return "", nil }))
	shape, err := r.Awaitable(ct)
	require.NoError(t, err)
	require.Equal(t, reflect.TypeOf(0), shape.Awaiter)
	require.Equal(t, reflect.TypeOf(""), shape.Result)

	aw, err := r.Await(expr.Constant(counter(3)))
	require.NoError(t, err)
	require.Equal(t, reflect.TypeOf(""), aw.Type())

	enum, err := r.Enumerable(reflect.TypeOf(box(nil)))
	require.NoError(t, err)
	require.Equal(t, reflect.TypeOf(""), enum.Elem)
	require.NotNil(t, enum.Dispose)

	_, err = r.Enumerable(reflect.TypeOf(0))
	var notEnum *expr.MissingCapabilityError
	require.True(t, errors.As(err, &notEnum))
	require.Equal(t, "enumerable", notEnum.Capability)

	require.NotNil(t, expr.Disposer(reflect.TypeOf((*boxIter)(nil))))
	require.Nil(t, expr.Disposer(reflect.TypeOf(0)))
}
