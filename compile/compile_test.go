// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compile_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"go.exprtree.net/compile"
	"go.exprtree.net/expr"
)

var intT = reflect.TypeOf(0)

func sigOf(fn interface{}) *expr.Signature {
	return expr.MustSignature(reflect.TypeOf(fn))
}

type myErr struct{ Code int }

func (e *myErr) Error() string { return "myErr" }

func TestArithmetic(t *testing.T) {
	a, b := expr.NewVar("a", intT), expr.NewVar("b", intT)
	l := expr.NewLambda("f", sigOf(func(int, int) int { return 0 }), []*expr.Var{a, b},
		expr.Sub(expr.Add(a, expr.Mul(b, expr.Constant(2))), expr.Rem(a, expr.Constant(2))))
	f, err := compile.Func[func(int, int) int](l)
	require.NoError(t, err)
	for _, test := range []struct{ a, b, want int }{
		{3, 2, 6},
		{4, 0, 4},
		{-1, 1, 2},
	} {
		if got := f(test.a, test.b); got != test.want {
			t.Errorf("f(%d, %d) = %d, want %d", test.a, test.b, got, test.want)
		}
	}
}

func TestLoopBreakValue(t *testing.T) {
	n := expr.NewVar("n", intT)
	sum, i := expr.NewVar("sum", intT), expr.NewVar("i", intT)
	brk := expr.NewTarget("break", intT)
	body := expr.NewVoidBlock(nil,
		expr.If(expr.Greater(i, n), expr.Jump(brk, sum)),
		expr.Set(sum, expr.Add(sum, i)),
		expr.Set(i, expr.Add(i, expr.Constant(1))),
	)
	l := expr.NewLambda("sum", sigOf(func(int) int { return 0 }), []*expr.Var{n},
		expr.NewBlock([]*expr.Var{sum, i},
			expr.Set(i, expr.Constant(1)),
			expr.NewLoop(body, brk, nil)))
	f, err := compile.Func[func(int) int](l)
	require.NoError(t, err)
	require.Equal(t, 55, f(10))
	require.Equal(t, 0, f(0))
}

func TestContinue(t *testing.T) {
	// Sum the odd numbers below n.
	n := expr.NewVar("n", intT)
	sum, i := expr.NewVar("sum", intT), expr.NewVar("i", intT)
	brk, cont := expr.NewTarget("break", expr.Void), expr.NewTarget("continue", expr.Void)
	body := expr.NewVoidBlock(nil,
		expr.Set(i, expr.Add(i, expr.Constant(1))),
		expr.If(expr.GreaterEqual(i, n), expr.Break(brk)),
		expr.If(expr.Equal(expr.Rem(i, expr.Constant(2)), expr.Constant(0)), expr.Continue(cont)),
		expr.Set(sum, expr.Add(sum, i)),
	)
	l := expr.NewLambda("odd", sigOf(func(int) int { return 0 }), []*expr.Var{n},
		expr.NewBlock([]*expr.Var{sum, i},
			expr.NewLoop(body, brk, cont),
			sum))
	f, err := compile.Func[func(int) int](l)
	require.NoError(t, err)
	require.Equal(t, 1+3+5+7+9, f(10))
}

func TestLabelValue(t *testing.T) {
	x := expr.NewVar("x", intT)
	end := expr.NewTarget("end", intT)
	l := expr.NewLambda("pick", sigOf(func(int) int { return 0 }), []*expr.Var{x},
		expr.NewBlock(nil,
			expr.If(expr.Less(x, expr.Constant(0)), expr.Jump(end, expr.Negate(x))),
			expr.If(expr.Equal(x, expr.Constant(0)), expr.Jump(end, nil)),
			expr.NewLabel(end, expr.Mul(x, expr.Constant(10)))))
	f, err := compile.Func[func(int) int](l)
	require.NoError(t, err)
	for _, test := range []struct{ x, want int }{
		{-3, 3},  // goto with value
		{0, 0},   // goto without value yields zero
		{4, 40},  // fall-through yields the default
	} {
		if got := f(test.x); got != test.want {
			t.Errorf("pick(%d) = %d, want %d", test.x, got, test.want)
		}
	}
}

func TestTryOrder(t *testing.T) {
	var log []string
	record := func(s string) { log = append(log, s) }
	step := func(s string) expr.Node { return expr.Invoke(expr.Func(record), expr.Constant(s)) }
	boom := errors.New("boom")

	e := expr.NewVar("e", expr.ErrorType)
	me := expr.NewVar("me", reflect.TypeOf(&myErr{}))
	for i, test := range []struct {
		body    expr.Node
		catches []*expr.Catch
		fault   expr.Node
		want    []string
		wantErr error
	}{
		{
			body:    step("body"),
			catches: []*expr.Catch{{Var: e, Test: expr.ErrorType, Body: step("catch")}},
			want:    []string{"body", "finally"},
		},
		{
			body:    expr.NewVoidBlock(nil, step("body"), expr.Raise(expr.Constant(boom)), step("unreachable")),
			catches: []*expr.Catch{{Var: e, Test: expr.ErrorType, Body: step("catch")}},
			want:    []string{"body", "catch", "finally"},
		},
		{
			// Handlers are tried in order; a false filter and a type
			// mismatch both pass the error on.
			body: expr.Raise(expr.Constant(boom)),
			catches: []*expr.Catch{
				{Var: e, Test: expr.ErrorType, Filter: expr.Constant(false), Body: step("filtered")},
				{Var: me, Test: me.T, Body: step("typed")},
				{Test: expr.ErrorType, Body: step("any")},
				{Test: expr.ErrorType, Body: step("second")},
			},
			want: []string{"any", "finally"},
		},
		{
			body:    expr.Raise(expr.Constant(&myErr{Code: 7})),
			catches: []*expr.Catch{{Var: me, Test: me.T, Filter: expr.Equal(field(me, "Code"), expr.Constant(7)), Body: step("typed")}},
			want:    []string{"typed", "finally"},
		},
		{
			body:    expr.Raise(expr.Constant(boom)),
			fault:   step("fault"),
			want:    []string{"fault", "finally"},
			wantErr: boom,
		},
		{
			body: expr.Raise(expr.Constant(boom)),
			catches: []*expr.Catch{{Var: e, Test: expr.ErrorType,
				Body: expr.NewVoidBlock(nil, step("catch"), expr.Rethrow())}},
			fault:   step("fault"),
			want:    []string{"catch", "fault", "finally"},
			wantErr: boom,
		},
	} {
		log = nil
		try := &expr.Try{Body: test.body, Handlers: test.catches, Fault: test.fault, Finally: step("finally")}
		l := expr.NewLambda("try", sigOf(func() error { return nil }), nil, expr.NewVoidBlock(nil, try))
		f, err := compile.Func[func() error](l)
		if err != nil {
			t.Errorf("#%d: compile: %v", i, err)
			continue
		}
		if err := f(); err != test.wantErr {
			t.Errorf("#%d: got error %v, want %v", i, err, test.wantErr)
		}
		if diff := cmp.Diff(test.want, log); diff != "" {
			t.Errorf("#%d: unexpected sequence (-want +got):\n%s", i, diff)
		}
	}
}

func field(x expr.Node, name string) expr.Node {
	f, err := expr.FieldOf(x, name)
	if err != nil {
		panic(err)
	}
	return f
}

func TestFinallyErrorWins(t *testing.T) {
	first, second := errors.New("first"), errors.New("second")
	try := &expr.Try{Body: expr.Raise(expr.Constant(first)), Finally: expr.Raise(expr.Constant(second))}
	l := expr.NewLambda("", sigOf(func() error { return nil }), nil, try)
	f, err := compile.Func[func() error](l)
	require.NoError(t, err)
	require.Equal(t, second, f())
}

func TestThrowWithoutErrorResult(t *testing.T) {
	l := expr.NewLambda("", sigOf(func() int { return 0 }), nil,
		expr.NewBlock(nil, expr.Raise(expr.Constant(errors.New("boom"))), expr.Constant(1)))
	f, err := compile.Func[func() int](l)
	require.NoError(t, err)
	require.PanicsWithError(t, "uncaught error: boom", func() { f() })
}

func TestGoErrorResultIsThrown(t *testing.T) {
	parse := func(s string) (int, error) {
		if s == "" {
			return 0, &myErr{Code: 1}
		}
		return len(s), nil
	}
	s := expr.NewVar("s", reflect.TypeOf(""))
	me := expr.NewVar("me", reflect.TypeOf(&myErr{}))
	l := expr.NewLambda("", sigOf(func(string) int { return 0 }), []*expr.Var{s},
		&expr.Try{
			Body:     expr.Invoke(expr.Func(parse), s),
			Handlers: []*expr.Catch{{Var: me, Test: me.T, Body: expr.Constant(-1)}},
		})
	f, err := compile.Func[func(string) int](l)
	require.NoError(t, err)
	require.Equal(t, 3, f("abc"))
	require.Equal(t, -1, f(""))
}

func TestEvalError(t *testing.T) {
	x := expr.NewVar("x", intT)
	l := expr.NewLambda("div", sigOf(func(int) (int, error) { return 0, nil }), []*expr.Var{x},
		expr.Div(expr.Constant(10), x))
	f, err := compile.Func[func(int) (int, error)](l)
	require.NoError(t, err)

	v, err := f(2)
	require.NoError(t, err)
	require.Equal(t, 5, v)

	_, err = f(0)
	var evalErr *compile.EvalError
	require.ErrorAs(t, err, &evalErr)
	require.Equal(t, "Traceback (most recent call last):\n  in <lambda>\n  in div\nError: integer division by zero", evalErr.Backtrace())
}

func TestPanicInGoFunction(t *testing.T) {
	explode := func() int { panic("kaboom") }
	l := expr.NewLambda("", sigOf(func() (int, error) { return 0, nil }), nil, expr.Invoke(expr.Func(explode)))
	f, err := compile.Func[func() (int, error)](l)
	require.NoError(t, err)
	_, err = f()
	require.EqualError(t, err, "panic: kaboom")
}

func TestClosure(t *testing.T) {
	count := expr.NewVar("count", intT)
	inc := expr.NewLambda("inc", sigOf(func() int { return 0 }), nil,
		expr.Set(count, expr.Add(count, expr.Constant(1))))
	l := expr.NewLambda("counter", sigOf(func() func() int { return nil }), nil,
		expr.NewBlock([]*expr.Var{count}, inc))
	newCounter, err := compile.Func[func() func() int](l)
	require.NoError(t, err)

	c1 := newCounter()
	require.Equal(t, 1, c1())
	require.Equal(t, 2, c1())
	c2 := newCounter()
	require.Equal(t, 1, c2())
	require.Equal(t, 3, c1())
}

func TestRecursion(t *testing.T) {
	fibT := reflect.TypeOf(func(int) int { return 0 })
	self := expr.NewVar("fib", fibT)
	n := expr.NewVar("n", intT)
	body := expr.IfElse(expr.Less(n, expr.Constant(2)), n,
		expr.Add(
			expr.Invoke(self, expr.Sub(n, expr.Constant(1))),
			expr.Invoke(self, expr.Sub(n, expr.Constant(2)))))
	fib := expr.NewLambda("fib", expr.MustSignature(fibT), []*expr.Var{n}, body)
	f, err := compile.Func[func(int) int](expr.NewBlock([]*expr.Var{self}, expr.Set(self, fib), self))
	require.NoError(t, err)
	require.Equal(t, 55, f(10))
}

func TestConvertAndTypeIs(t *testing.T) {
	x := expr.NewVar("x", expr.AnyType)
	conv := expr.NewLambda("", sigOf(func(interface{}) (int, error) { return 0, nil }), []*expr.Var{x},
		expr.ConvertTo(x, intT))
	f, err := compile.Func[func(interface{}) (int, error)](conv)
	require.NoError(t, err)
	v, err := f(3)
	require.NoError(t, err)
	require.Equal(t, 3, v)
	_, err = f("three")
	require.EqualError(t, err, "interface conversion: interface {} is string, not int")

	e := expr.NewVar("e", expr.ErrorType)
	is := expr.NewLambda("", sigOf(func(error) bool { return false }), []*expr.Var{e},
		expr.IsType(e, reflect.TypeOf(&myErr{})))
	g, err := compile.Func[func(error) bool](is)
	require.NoError(t, err)
	require.True(t, g(&myErr{}))
	require.False(t, g(errors.New("x")))
	require.False(t, g(nil))
}

func TestResolveErrors(t *testing.T) {
	free := expr.NewVar("free", intT)
	other := expr.NewTarget("other", expr.Void)
	inner := expr.NewLambda("inner", sigOf(func() {}), nil, expr.Jump(other, nil))
	for i, test := range []struct {
		body expr.Node
		want string
	}{
		{free, "variable free used outside its scope"},
		{expr.Rethrow(), "rethrow outside catch handler"},
		{
			expr.NewVoidBlock(nil, inner, expr.NewLabel(other, nil)),
			"no such label in enclosing lambda",
		},
		{
			&expr.Await{X: expr.Constant(1), Shape: &expr.AwaitShape{Result: expr.Void}},
			"await outside async lambda",
		},
	} {
		l := expr.NewLambda("", sigOf(func() {}), nil, test.body)
		_, err := compile.Compile(l)
		var cerr *compile.Error
		if !errors.As(err, &cerr) {
			t.Errorf("#%d: got %v, want compile error", i, err)
			continue
		}
		if !strings.Contains(err.Error(), test.want) {
			t.Errorf("#%d: got %q, want %q", i, err, test.want)
		}
	}
}

func TestFuncTypeMismatch(t *testing.T) {
	l := expr.NewLambda("", sigOf(func() {}), nil, expr.Empty())
	_, err := compile.Func[func() int](l)
	require.Error(t, err)
	_, err = compile.Compile(expr.Constant(1))
	require.Error(t, err)
}
