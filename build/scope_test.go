// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package build_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"go.exprtree.net/build"
	"go.exprtree.net/expr"
	"go.exprtree.net/exprtest"
)

var intT = reflect.TypeOf(0)

func TestBlockCollapse(t *testing.T) {
	sess := build.NewSession()

	n, err := sess.Block(func(s *build.Scope) error { return nil })
	require.NoError(t, err)
	require.True(t, expr.IsEmpty(n), "empty scope built %s", expr.String(n))

	stmt := expr.Constant(1)
	n, err = sess.Block(func(s *build.Scope) error { return s.Add(stmt) })
	require.NoError(t, err)
	require.Same(t, stmt, n)

	n, err = sess.Block(func(s *build.Scope) error {
		x, err := s.Declare("x", intT)
		if err != nil {
			return err
		}
		return s.Set(x, expr.Constant(1))
	})
	require.NoError(t, err)
	b, ok := n.(*expr.Block)
	require.True(t, ok, "got %T", n)
	require.Len(t, b.Vars, 1)
	exprtest.EqualTree(t, n, `
{
  var x int
  x = 1
}`)
	require.Nil(t, sess.Current())
}

func TestLookupAndShadowing(t *testing.T) {
	sess := build.NewSession()
	_, err := sess.Block(func(s *build.Scope) error {
		outer, err := s.Declare("x", intT)
		require.NoError(t, err)

		_, err = s.Declare("x", intT)
		var dup *build.DuplicateNameError
		require.True(t, errors.As(err, &dup), "got %v", err)
		require.Equal(t, "x", dup.Name)

		return s.Block(func(c *build.Scope) error {
			v, ok := c.Lookup("x")
			require.True(t, ok)
			require.Same(t, outer, v)

			inner, err := c.Declare("x", reflect.TypeOf(""))
			require.NoError(t, err)
			v, _ = c.Lookup("x")
			require.Same(t, inner, v)

			_, ok = c.Lookup("nope")
			require.False(t, ok)
			return nil
		})
	})
	require.NoError(t, err)
}

func TestOutOfScope(t *testing.T) {
	sess := build.NewSession()
	var saved *build.Scope
	_, err := sess.Block(func(s *build.Scope) error {
		saved = s
		return s.Block(func(c *build.Scope) error {
			err := s.Add(expr.Constant(1))
			var oos *build.OutOfScopeError
			require.True(t, errors.As(err, &oos), "parent accepted a statement while a child was open: %v", err)
			return nil
		})
	})
	require.NoError(t, err)

	require.True(t, saved.Closed())
	err = saved.Add(expr.Constant(1))
	var oos *build.OutOfScopeError
	require.True(t, errors.As(err, &oos), "closed scope accepted a statement: %v", err)

	// A root construct cannot start while another scope is open.
	_, err = sess.Block(func(s *build.Scope) error {
		_, err := sess.Block(func(*build.Scope) error { return nil })
		require.True(t, errors.As(err, &oos), "got %v", err)
		_, err = sess.Lambda(reflect.TypeOf(func() {}))
		require.True(t, errors.As(err, &oos), "got %v", err)
		return nil
	})
	require.NoError(t, err)
}

func TestFailedPopulationClosesScopes(t *testing.T) {
	sess := build.NewSession()
	fail := errors.New("fail")
	var inner *build.Scope
	_, err := sess.Block(func(s *build.Scope) error {
		return s.Block(func(c *build.Scope) error {
			inner = c
			return fail
		})
	})
	require.ErrorIs(t, err, fail)
	require.Nil(t, sess.Current())
	require.True(t, inner.Closed())

	// The session is usable again.
	n, err := sess.Block(func(s *build.Scope) error { return s.Add(expr.Constant(2)) })
	require.NoError(t, err)
	require.Equal(t, intT, n.Type())
}

func TestLoopTargetsAreUnique(t *testing.T) {
	sess := build.NewSession()
	seen := make(map[*expr.Target]bool)
	names := make(map[string]bool)
	_, err := sess.Block(func(s *build.Scope) error {
		for i := 0; i < 2; i++ {
			err := s.Loop(func(body *build.Scope, lc build.LoopContext) error {
				brk, err := lc.BreakTarget()
				require.NoError(t, err)
				cont, err := lc.ContinueTarget()
				require.NoError(t, err)
				for _, target := range []*expr.Target{brk, cont} {
					seen[target] = true
					names[target.Name] = true
				}
				return body.Break()
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 4)
	require.Len(t, names, 4)
}

func TestStaleLoopContext(t *testing.T) {
	sess := build.NewSession()
	_, err := sess.Block(func(s *build.Scope) error {
		var saved build.LoopContext
		err := s.Loop(func(body *build.Scope, lc build.LoopContext) error {
			saved = lc
			return body.Break()
		})
		require.NoError(t, err)

		var stale *build.StaleHandleError
		require.True(t, errors.As(saved.Break(), &stale))
		_, err = saved.BreakTarget()
		require.True(t, errors.As(err, &stale))
		require.Equal(t, "loop", stale.Handle)
		return nil
	})
	require.NoError(t, err)
}

func TestJumpsDoNotCrossLambdas(t *testing.T) {
	sess := build.NewSession()
	_, err := sess.Block(func(s *build.Scope) error {
		var none *build.NoEnclosingConstructError
		require.True(t, errors.As(s.Break(), &none))
		require.True(t, errors.As(s.Return(nil), &none))

		return s.Loop(func(body *build.Scope, lc build.LoopContext) error {
			lb, err := body.Lambda(reflect.TypeOf(func() {}))
			require.NoError(t, err)
			var oos *build.OutOfScopeError
			require.True(t, errors.As(lc.Break(), &oos), "break crossed a lambda boundary")
			require.True(t, errors.As(lb.Body().Continue(), &none))
			lb.Close()
			lb.Close()
			require.Same(t, body, sess.Current())
			return body.Break()
		})
	})
	require.NoError(t, err)
}

func TestEnclosingLoopDepth(t *testing.T) {
	sess := build.NewSession()
	_, err := sess.Block(func(s *build.Scope) error {
		return s.Loop(func(outer *build.Scope, olc build.LoopContext) error {
			err := outer.Loop(func(inner *build.Scope, ilc build.LoopContext) error {
				lc, err := inner.EnclosingLoop(1)
				require.NoError(t, err)
				want, _ := olc.BreakTarget()
				got, err := lc.BreakTarget()
				require.NoError(t, err)
				require.Same(t, want, got)

				_, err = inner.EnclosingLoop(2)
				var none *build.NoEnclosingConstructError
				require.True(t, errors.As(err, &none))
				return olc.Break()
			})
			if err != nil {
				return err
			}
			return outer.Break()
		})
	})
	require.NoError(t, err)
}
