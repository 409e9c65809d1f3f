// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package build_test

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"go.exprtree.net/build"
	"go.exprtree.net/expr"
	"go.exprtree.net/exprtest"
)

// lambda builds a lambda of type F whose body is populated by body.
func lambda[F any](t *testing.T, body func(lb *build.LambdaBuilder, s *build.Scope) error, names ...string) F {
	t.Helper()
	var zero F
	sess := build.NewSession()
	lb, err := sess.Lambda(reflect.TypeOf(zero), names...)
	require.NoError(t, err)
	require.NoError(t, body(lb, lb.Body()))
	n, err := lb.Build()
	require.NoError(t, err)
	require.Nil(t, sess.Current())
	return exprtest.MustCompile[F](t, n)
}

// steps records the order in which built code runs.
type steps []string

func (s *steps) record(name string) expr.Node {
	return expr.Invoke(expr.Func(func(x string) { *s = append(*s, x) }), expr.Constant(name))
}

type codeErr struct{ Code int }

func (e *codeErr) Error() string { return fmt.Sprintf("code %d", e.Code) }

var (
	errBoom  = errors.New("boom")
	codeErrT = reflect.TypeOf((*codeErr)(nil))
	boom     = expr.ConstantOf(errBoom, expr.ErrorType)
)

func TestWhile(t *testing.T) {
	sum := lambda[func(int) int](t, func(lb *build.LambdaBuilder, s *build.Scope) error {
		n := lb.Param(0)
		i, _ := s.Declare("i", intT)
		total, _ := s.Declare("total", intT)
		err := s.While(expr.Less(i, n), func(b *build.Scope, _ build.LoopContext) error {
			if err := b.Set(total, expr.Add(total, i)); err != nil {
				return err
			}
			return b.Set(i, expr.Add(i, expr.Constant(1)))
		})
		if err != nil {
			return err
		}
		return s.Return(total)
	}, "n")
	for n, want := range map[int]int{0: 0, 1: 0, 5: 10} {
		if got := sum(n); got != want {
			t.Errorf("sum(%d) = %d, want %d", n, got, want)
		}
	}
}

// evens sums the even numbers below 10, counting the iterations that
// reach the statement after the optional continue mark.
func evens(mark bool) func(lb *build.LambdaBuilder, s *build.Scope) error {
	return func(lb *build.LambdaBuilder, s *build.Scope) error {
		sum, _ := s.Declare("sum", intT)
		count, _ := s.Declare("count", intT)
		err := s.For("i", expr.Constant(0),
			func(i *expr.Var) expr.Node { return expr.Less(i, expr.Constant(10)) },
			func(i *expr.Var) expr.Node { return expr.Add(i, expr.Constant(1)) },
			func(b *build.Scope, i *expr.Var, lc build.LoopContext) error {
				odd := expr.Equal(expr.Rem(i, expr.Constant(2)), expr.Constant(1))
				if err := b.If(odd, func(c *build.Scope) error { return c.Continue() }).End(); err != nil {
					return err
				}
				if err := b.Set(sum, expr.Add(sum, i)); err != nil {
					return err
				}
				if mark {
					if err := lc.MarkContinue(); err != nil {
						return err
					}
				}
				return b.Set(count, expr.Add(count, expr.Constant(1)))
			})
		if err != nil {
			return err
		}
		return s.Return(expr.Add(expr.Mul(sum, expr.Constant(100)), count))
	}
}

func TestForContinue(t *testing.T) {
	require.Equal(t, 2005, lambda[func() int](t, evens(false))())
	require.Equal(t, 2010, lambda[func() int](t, evens(true))())
}

func TestMarkContinueOutsideFor(t *testing.T) {
	sess := build.NewSession()
	_, err := sess.Block(func(s *build.Scope) error {
		return s.Loop(func(body *build.Scope, lc build.LoopContext) error {
			var oos *build.OutOfScopeError
			require.True(t, errors.As(lc.MarkContinue(), &oos))
			return body.Break()
		})
	})
	require.NoError(t, err)
}

func TestDoWhileContinueRunsTest(t *testing.T) {
	// i = 0; do { i++; if i < 3 continue; count++ } while i < 5
	f := lambda[func() int](t, func(lb *build.LambdaBuilder, s *build.Scope) error {
		i, _ := s.Declare("i", intT)
		count, _ := s.Declare("count", intT)
		err := s.DoWhile(func(b *build.Scope, _ build.LoopContext) error {
			if err := b.Set(i, expr.Add(i, expr.Constant(1))); err != nil {
				return err
			}
			if err := b.If(expr.Less(i, expr.Constant(3)), func(c *build.Scope) error { return c.Continue() }).End(); err != nil {
				return err
			}
			return b.Set(count, expr.Add(count, expr.Constant(1)))
		}, expr.Less(i, expr.Constant(5)))
		if err != nil {
			return err
		}
		return s.Return(expr.Add(expr.Mul(i, expr.Constant(10)), count))
	})
	require.Equal(t, 53, f())
}

func TestForEachSlice(t *testing.T) {
	sum := lambda[func([]int) int](t, func(lb *build.LambdaBuilder, s *build.Scope) error {
		total, _ := s.Declare("total", intT)
		err := s.ForEach("x", lb.Param(0), func(b *build.Scope, x *expr.Var, _ build.LoopContext) error {
			return b.Set(total, expr.Add(total, x))
		})
		if err != nil {
			return err
		}
		return s.Return(total)
	}, "xs")
	require.Equal(t, 6, sum([]int{1, 2, 3}))
	require.Equal(t, 0, sum(nil))
}

// source is an enumerable whose cursors record their disposal.
type source struct {
	items  []int
	closed *bool
}

func (s source) Enumerator() *cursor { return &cursor{items: s.items, closed: s.closed} }

type cursor struct {
	items  []int
	i      int
	closed *bool
}

func (c *cursor) Next() bool   { c.i++; return c.i <= len(c.items) }
func (c *cursor) Current() int { return c.items[c.i-1] }
func (c *cursor) Close() error { *c.closed = true; return nil }

func TestForEachDisposesEnumerator(t *testing.T) {
	// for x in src { if x == 2 { throw boom } }
	f := lambda[func(source) error](t, func(lb *build.LambdaBuilder, s *build.Scope) error {
		return s.ForEach("x", lb.Param(0), func(b *build.Scope, x *expr.Var, _ build.LoopContext) error {
			return b.If(expr.Equal(x, expr.Constant(2)), func(c *build.Scope) error {
				return c.Throw(boom)
			}).End()
		})
	}, "src")

	closed := false
	require.ErrorIs(t, f(source{items: []int{1, 2, 3}, closed: &closed}), errBoom)
	require.True(t, closed, "enumerator not disposed after a throw")

	closed = false
	require.NoError(t, f(source{items: []int{1, 3}, closed: &closed}))
	require.True(t, closed, "enumerator not disposed after normal exit")
}

func TestForEachNotEnumerable(t *testing.T) {
	sess := build.NewSession()
	_, err := sess.Block(func(s *build.Scope) error {
		return s.ForEach("x", expr.Constant(1), func(*build.Scope, *expr.Var, build.LoopContext) error { return nil })
	})
	var missing *expr.MissingCapabilityError
	require.True(t, errors.As(err, &missing), "got %v", err)
	require.Equal(t, "enumerable", missing.Capability)
}

func TestCatchOrder(t *testing.T) {
	var log steps
	// try { throw &codeErr{7} }
	// catch (*codeErr e) when e.Code == 8 { A }
	// catch (*codeErr) { B }
	// catch { C }
	f := lambda[func()](t, func(lb *build.LambdaBuilder, s *build.Scope) error {
		return s.Try(func(b *build.Scope) error {
			return b.Throw(expr.Constant(&codeErr{Code: 7}))
		}).CatchWhen(codeErrT, func(e *expr.Var) expr.Node {
			code, err := expr.FieldOf(e, "Code")
			require.NoError(t, err)
			return expr.Equal(code, expr.Constant(8))
		}, func(c *build.Scope, _ *expr.Var) error {
			return c.Add(log.record("A"))
		}).Catch(codeErrT, func(c *build.Scope, _ *expr.Var) error {
			return c.Add(log.record("B"))
		}).CatchAll(func(c *build.Scope) error {
			return c.Add(log.record("C"))
		}).End()
	})
	f()
	if diff := cmp.Diff(steps{"B"}, log); diff != "" {
		t.Errorf("handlers run (-want +got):\n%s", diff)
	}
}

func TestRethrow(t *testing.T) {
	sess := build.NewSession()
	lb, err := sess.Lambda(reflect.TypeOf(func() error { return nil }))
	require.NoError(t, err)
	s := lb.Body()

	var invalid *build.InvalidRethrowError
	require.True(t, errors.As(s.Rethrow(), &invalid))

	var log steps
	err = s.Try(func(b *build.Scope) error {
		return b.Throw(boom)
	}).CatchAll(func(c *build.Scope) error {
		inner, err := c.Lambda(reflect.TypeOf(func() {}))
		require.NoError(t, err)
		require.True(t, errors.As(inner.Body().Rethrow(), &invalid), "rethrow crossed a lambda boundary")
		inner.Close()

		if err := c.Add(log.record("caught")); err != nil {
			return err
		}
		return c.Rethrow()
	}).End()
	require.NoError(t, err)

	n, err := lb.Build()
	require.NoError(t, err)
	f := exprtest.MustCompile[func() error](t, n)
	require.ErrorIs(t, f(), errBoom)
	require.Equal(t, steps{"caught"}, log)
}

func TestFaultAndFinally(t *testing.T) {
	var log steps
	try := func(s *build.Scope) error {
		return s.Try(func(b *build.Scope) error {
			return b.Throw(boom)
		}).Fault(func(c *build.Scope) error {
			return c.Add(log.record("fault"))
		}).Finally(func(c *build.Scope) error {
			return c.Add(log.record("finally"))
		}).End()
	}

	sess := build.NewSession()
	_, err := sess.Block(try)
	var ff *build.FaultFinallyError
	require.True(t, errors.As(err, &ff), "got %v", err)
	require.Nil(t, sess.Current())

	defer func(saved bool) { build.AllowFaultAndFinally = saved }(build.AllowFaultAndFinally)
	build.AllowFaultAndFinally = true
	f := lambda[func() error](t, func(_ *build.LambdaBuilder, s *build.Scope) error { return try(s) })
	require.ErrorIs(t, f(), errBoom)
	require.Equal(t, steps{"fault", "finally"}, log)
}

func TestFaultSkippedOnSuccess(t *testing.T) {
	var log steps
	f := lambda[func() int](t, func(lb *build.LambdaBuilder, s *build.Scope) error {
		err := s.Try(func(b *build.Scope) error {
			return b.Return(expr.Constant(1))
		}).Fault(func(c *build.Scope) error {
			return c.Add(log.record("fault"))
		}).End()
		if err != nil {
			return err
		}
		return s.Return(expr.Constant(2))
	})
	require.Equal(t, 1, f())
	require.Empty(t, log)
}

func TestMatch(t *testing.T) {
	name := lambda[func(int) string](t, func(lb *build.LambdaBuilder, s *build.Scope) error {
		n := lb.Param(0)
		m, err := s.Match(n, reflect.TypeOf("")).
			Case(expr.Equal(n, expr.Constant(1)), func(*build.Scope) (expr.Node, error) { return expr.Constant("one"), nil }).
			Case(expr.Equal(n, expr.Constant(2)), func(*build.Scope) (expr.Node, error) { return expr.Constant("two"), nil }).
			Default(func(*build.Scope) (expr.Node, error) { return expr.Constant("many"), nil }).
			Expr()
		if err != nil {
			return err
		}
		return s.Add(m)
	}, "n")
	for n, want := range map[int]string{1: "one", 2: "two", 3: "many"} {
		if got := name(n); got != want {
			t.Errorf("name(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestMatchWithoutDefaultYieldsZero(t *testing.T) {
	f := lambda[func(int) string](t, func(lb *build.LambdaBuilder, s *build.Scope) error {
		m, err := s.Match(expr.Add(lb.Param(0), expr.Constant(1)), reflect.TypeOf("")).
			Case(expr.Constant(false), func(*build.Scope) (expr.Node, error) { return expr.Constant("never"), nil }).
			Expr()
		if err != nil {
			return err
		}
		return s.Add(m)
	})
	require.Equal(t, "", f(1))
}

func TestMatchDefaultMustBeLast(t *testing.T) {
	sess := build.NewSession()
	_, err := sess.Block(func(s *build.Scope) error {
		return s.Match(expr.Constant(1), nil).
			Default(func(*build.Scope) (expr.Node, error) { return nil, nil }).
			Case(expr.Constant(true), func(*build.Scope) (expr.Node, error) { return nil, nil }).
			End()
	})
	require.EqualError(t, err, "Case after Default")
}

func TestCaseType(t *testing.T) {
	str := reflect.TypeOf("")
	describe := lambda[func(interface{}) string](t, func(lb *build.LambdaBuilder, s *build.Scope) error {
		m, err := s.Match(lb.Param(0), str).
			CaseType(intT, func(v *expr.Var) expr.Node { return expr.Greater(v, expr.Constant(10)) },
				func(*build.Scope, *expr.Var) (expr.Node, error) { return expr.Constant("big int"), nil }).
			CaseType(intT, nil, func(*build.Scope, *expr.Var) (expr.Node, error) { return expr.Constant("int"), nil }).
			CaseType(str, nil, func(_ *build.Scope, v *expr.Var) (expr.Node, error) { return v, nil }).
			Default(func(*build.Scope) (expr.Node, error) { return expr.Constant("other"), nil }).
			Expr()
		if err != nil {
			return err
		}
		return s.Add(m)
	})
	for _, test := range []struct {
		x    interface{}
		want string
	}{
		{42, "big int"},
		{3, "int"},
		{"hi", "hi"},
		{1.5, "other"},
		{nil, "other"},
	} {
		if got := describe(test.x); got != test.want {
			t.Errorf("describe(%v) = %q, want %q", test.x, got, test.want)
		}
	}
}

type point struct{ X, Y int }

func TestCaseShape(t *testing.T) {
	where := lambda[func(point) string](t, func(lb *build.LambdaBuilder, s *build.Scope) error {
		m, err := s.Match(lb.Param(0), reflect.TypeOf("")).
			CaseFields(nil, func(*build.Scope) (expr.Node, error) { return expr.Constant("never"), nil }).
			CaseShape(point{}, func(*build.Scope) (expr.Node, error) { return expr.Constant("origin"), nil }).
			CaseFields([]build.Member{{Name: "X", Value: expr.Constant(0)}},
				func(*build.Scope) (expr.Node, error) { return expr.Constant("y axis"), nil }).
			Default(func(*build.Scope) (expr.Node, error) { return expr.Constant("elsewhere"), nil }).
			Expr()
		if err != nil {
			return err
		}
		return s.Add(m)
	})
	require.Equal(t, "origin", where(point{}))
	require.Equal(t, "y axis", where(point{Y: 3}))
	require.Equal(t, "elsewhere", where(point{X: 1}))
}

// closer records whether it was closed.
type closer struct{ closed bool }

func (c *closer) Close() error { c.closed = true; return nil }

func TestUsing(t *testing.T) {
	f := lambda[func(*closer) error](t, func(lb *build.LambdaBuilder, s *build.Scope) error {
		return s.Using("r", lb.Param(0), func(c *build.Scope, r *expr.Var) error {
			return c.Throw(boom)
		})
	})
	var c closer
	require.ErrorIs(t, f(&c), errBoom)
	require.True(t, c.closed)
	require.ErrorIs(t, f(nil), errBoom, "nil resource must not be disposed")

	sess := build.NewSession()
	_, err := sess.Block(func(s *build.Scope) error {
		return s.Using("r", expr.Constant(1), func(*build.Scope, *expr.Var) error { return nil })
	})
	var missing *expr.MissingCapabilityError
	require.True(t, errors.As(err, &missing), "got %v", err)
	require.Equal(t, "disposable", missing.Capability)
}

func TestLock(t *testing.T) {
	var held bool
	probe := func(mu *sync.Mutex) { held = !mu.TryLock() }
	f := lambda[func(*sync.Mutex)](t, func(lb *build.LambdaBuilder, s *build.Scope) error {
		mu := lb.Param(0)
		return s.Lock(mu, func(c *build.Scope) error {
			return c.Add(expr.Invoke(expr.Func(probe), mu))
		})
	}, "mu")
	var mu sync.Mutex
	f(&mu)
	require.True(t, held, "body ran without the lock")
	require.True(t, mu.TryLock(), "lock not released")
}

func TestWith(t *testing.T) {
	f := lambda[func() int](t, func(lb *build.LambdaBuilder, s *build.Scope) error {
		return s.With("x", expr.Constant(20), func(c *build.Scope, x *expr.Var) error {
			return c.Return(expr.Add(x, expr.Constant(1)))
		})
	})
	require.Equal(t, 21, f())
}
