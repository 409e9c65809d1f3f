// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package build

import (
	"fmt"
	"reflect"

	"go.exprtree.net/expr"
)

// An Arm populates the scope of one match arm and returns the arm's
// value, which may be nil if the match has no result type.
type Arm func(arm *Scope) (expr.Node, error)

// A TypeArm is an Arm that receives the subject narrowed to the arm's type.
type TypeArm func(arm *Scope, v *expr.Var) (expr.Node, error)

// A Member is one member-equals-value test of a structural pattern.
type Member struct {
	Name  string
	Value expr.Node
}

// A MatchBuilder accumulates the arms of a match. Arms are tested in
// the order they are added; the first match jumps to the end of the
// match carrying its value. The first error is sticky.
//
// The match lowers to
//
//	{ subj = subject
//	  { if !test1 goto next1; ...; goto end v1 }
//	  next1:
//	  ...
//	  end: zero(T)
//	}
type MatchBuilder struct {
	sc      *Scope
	subject expr.Node
	cache   *expr.Var // nil if subject is evaluated in place
	init    expr.Node
	result  reflect.Type
	end     *expr.Target
	list    []expr.Node
	hasDef  bool
	err     error
}

// Match begins a match of subject producing values of resultType, or
// Void. A subject that is not a variable or constant is evaluated once
// into a hidden variable.
func (sc *Scope) Match(subject expr.Node, resultType reflect.Type) *MatchBuilder {
	if resultType == nil {
		resultType = expr.Void
	}
	b := &MatchBuilder{sc: sc, subject: subject, result: resultType}
	b.end = expr.NewTarget("match", resultType)
	switch subject.(type) {
	case *expr.Var, *expr.Const:
	default:
		b.cache = expr.NewVar("subject", subject.Type())
		b.init = expr.Set(b.cache, subject)
		b.subject = b.cache
	}
	return b
}

// Subject returns the node through which arms refer to the subject.
func (b *MatchBuilder) Subject() expr.Node { return b.subject }

// Case adds an arm selected if test, which may refer to Subject, is true.
func (b *MatchBuilder) Case(test expr.Node, arm Arm) *MatchBuilder {
	return b.add("Case", func(c *Scope, next *expr.Target) error {
		c.emit(expr.If(expr.Not(test), expr.Jump(next, nil)))
		return b.value(c, arm)
	})
}

// CaseType adds an arm selected if the subject's dynamic type is
// assignable to t and guard, if not nil, is true. The arm and guard
// receive a variable holding the subject converted to t.
func (b *MatchBuilder) CaseType(t reflect.Type, guard func(v *expr.Var) expr.Node, arm TypeArm) *MatchBuilder {
	return b.add("CaseType", func(c *Scope, next *expr.Target) error {
		c.emit(expr.If(expr.Not(expr.IsType(b.subject, t)), expr.Jump(next, nil)))
		v, err := c.Declare("", t)
		if err != nil {
			return err
		}
		c.emit(expr.Set(v, expr.ConvertTo(b.subject, t)))
		if guard != nil {
			c.emit(expr.If(expr.Not(guard(v)), expr.Jump(next, nil)))
		}
		return b.value(c, func(c *Scope) (expr.Node, error) { return arm(c, v) })
	})
}

// CaseFields adds an arm selected if every named member of the subject
// equals its value. With no members the arm is never selected.
func (b *MatchBuilder) CaseFields(members []Member, arm Arm) *MatchBuilder {
	return b.add("CaseFields", func(c *Scope, next *expr.Target) error {
		test, err := b.fields(members)
		if err != nil {
			return err
		}
		c.emit(expr.If(expr.Not(test), expr.Jump(next, nil)))
		return b.value(c, arm)
	})
}

// CaseShape adds an arm selected if every exported field of the struct
// record equals the same-named member of the subject.
func (b *MatchBuilder) CaseShape(record interface{}, arm Arm) *MatchBuilder {
	rv := reflect.ValueOf(record)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		if b.err == nil {
			b.err = fmt.Errorf("CaseShape: pattern %T is not a struct", record)
		}
		return b
	}
	var members []Member
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Type().Field(i)
		if f.IsExported() {
			members = append(members, Member{Name: f.Name, Value: expr.ConstantOf(rv.Field(i).Interface(), f.Type)})
		}
	}
	return b.CaseFields(members, arm)
}

// Default adds the arm selected when no other arm is. It must be last.
func (b *MatchBuilder) Default(arm Arm) *MatchBuilder {
	b = b.add("Default", func(c *Scope, _ *expr.Target) error { return b.value(c, arm) })
	b.hasDef = true
	return b
}

// fields returns the conjunction of the member tests.
func (b *MatchBuilder) fields(members []Member) (expr.Node, error) {
	if len(members) == 0 {
		return expr.Constant(false), nil
	}
	var test expr.Node
	for _, m := range members {
		f, err := expr.FieldOf(b.subject, m.Name)
		if err != nil {
			return nil, err
		}
		eq := expr.Equal(f, m.Value)
		if test == nil {
			test = eq
		} else {
			test = expr.AndAlso(test, eq)
		}
	}
	return test, nil
}

// add builds one arm in its own scope, followed by the label of the
// next arm.
func (b *MatchBuilder) add(op string, fn func(c *Scope, next *expr.Target) error) *MatchBuilder {
	if b.err != nil {
		return b
	}
	if b.hasDef {
		b.err = fmt.Errorf("%s after Default", op)
		return b
	}
	c, err := b.sc.open(op, MatchScope)
	if err != nil {
		b.err = err
		return b
	}
	next := expr.NewTarget("next", expr.Void)
	arm, err := c.populateBlock(func() error { return fn(c, next) })
	if err != nil {
		b.err = err
		return b
	}
	arm.T = expr.Void
	b.list = append(b.list, arm, expr.NewLabel(next, nil))
	return b
}

// value runs arm and ends the arm scope with the jump to the end label.
func (b *MatchBuilder) value(c *Scope, arm Arm) error {
	v, err := arm(c)
	if err != nil {
		return err
	}
	if expr.IsVoid(b.result) {
		if v != nil {
			c.emit(v)
		}
		v = nil
	} else if v == nil {
		return fmt.Errorf("match arm yields no value, want %s", b.result)
	}
	c.emit(expr.Jump(b.end, v))
	return nil
}

// Expr returns the match as a value node.
func (b *MatchBuilder) Expr() (expr.Node, error) {
	if b.err != nil {
		return nil, b.err
	}
	var vars []*expr.Var
	var list []expr.Node
	if b.cache != nil {
		vars = append(vars, b.cache)
		list = append(list, b.init)
	}
	list = append(list, b.list...)
	list = append(list, expr.NewLabel(b.end, nil))
	return &expr.Block{Vars: vars, List: list, T: b.result}, nil
}

// End adds the match to the scope as a statement.
func (b *MatchBuilder) End() error {
	n, err := b.Expr()
	if err != nil {
		return err
	}
	return b.sc.Add(n)
}
