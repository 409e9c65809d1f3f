// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package build provides builders that assemble expression trees from
// nested lexical scopes.
//
// A Session tracks the single scope currently open for population.
// Every construct (block, conditional, loop, try, match, resource,
// lambda) opens a child scope, calls the caller's function exactly once
// to populate it, closes it and adds the resulting node to the parent.
// Scopes are passed to population functions explicitly; a scope that is
// not the session's current scope rejects all population with an
// *OutOfScopeError.
//
// A Session must not be used by more than one goroutine at a time.
// Independent sessions may be used concurrently.
//
//	sess := build.NewSession()
//	lb, err := sess.Lambda(reflect.TypeOf(func(int) int { return 0 }), "n")
//	...
//	lb.Body().While(cond, func(s *build.Scope, loop build.LoopContext) error { ... })
//	fn, err := lb.Build()
package build // import "go.exprtree.net/build"

import (
	"go.exprtree.net/expr"
)

// AllowFaultAndFinally permits a try to carry both a fault and a
// finally clause; they compose as try { try {...} fault {...} } finally {...}.
// Otherwise the combination is rejected with a *FaultFinallyError.
var AllowFaultAndFinally = false

// A slot is an arena entry for an open scope. Its generation is
// incremented each time the scope in it closes, invalidating handles.
type slot struct {
	scope *Scope
	gen   uint32
}

// A Session is one construction of expression trees.
type Session struct {
	current  *Scope
	slots    []slot
	free     []int
	registry *expr.Registry
}

// NewSession returns a session with no open scope, using the default
// capability registry.
func NewSession() *Session {
	return &Session{registry: expr.DefaultRegistry}
}

// SetRegistry sets the registry used to find await and enumeration
// capabilities.
func (sess *Session) SetRegistry(r *expr.Registry) { sess.registry = r }

// Registry returns the session's capability registry.
func (sess *Session) Registry() *expr.Registry { return sess.registry }

// Current returns the scope open for population, or nil.
func (sess *Session) Current() *Scope { return sess.current }

// Block builds a root block: it opens a scope, calls fn to populate it
// and returns the built node. No other scope may be open.
func (sess *Session) Block(fn func(*Scope) error) (expr.Node, error) {
	if sess.current != nil {
		return nil, &OutOfScopeError{Op: "Block", Reason: "another scope is open"}
	}
	c := sess.push(nil, BlockScope)
	return c.populate(func() error { return fn(c) })
}

func (sess *Session) push(parent *Scope, kind ScopeKind) *Scope {
	sc := &Scope{
		sess:   sess,
		parent: parent,
		kind:   kind,
		names:  make(map[string]*expr.Var),
	}
	if n := len(sess.free); n > 0 {
		sc.slot = sess.free[n-1]
		sess.free = sess.free[:n-1]
	} else {
		sc.slot = len(sess.slots)
		sess.slots = append(sess.slots, slot{})
	}
	sess.slots[sc.slot].scope = sc
	sc.gen = sess.slots[sc.slot].gen
	sess.current = sc
	return sc
}

func (sess *Session) release(i int) {
	sess.slots[i].scope = nil
	sess.slots[i].gen++
	sess.free = append(sess.free, i)
}

// lookup returns the scope of a handle, or nil if it has closed.
func (sess *Session) lookup(i int, gen uint32) *Scope {
	if i < 0 || i >= len(sess.slots) || sess.slots[i].gen != gen {
		return nil
	}
	return sess.slots[i].scope
}
