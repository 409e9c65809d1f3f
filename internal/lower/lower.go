// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lower rewrites async lambdas into resumable state machines.
//
// The body of an async lambda of type func(...) *task.Task[T] becomes
// the body of a nested moveNext lambda driven by a task.Machine. Every
// await site k is split into
//
//	awaiter_k = x.Awaiter(); state = k; machine.Await(awaiter_k); goto exit
//	resume_k: state = -1; tmp = awaiter_k.Result()
//
// and a dispatch on the state variable at the top of moveNext (and at
// the top of every try region containing awaits) jumps back to
// resume_k when the machine resumes. Since a goto can only reach a
// label of an enclosing block, the constructs on the path to an await
// are flattened into labelled statement lists, and their variables are
// hoisted into the outer lambda so that they survive suspension.
package lower // import "go.exprtree.net/internal/lower"

import (
	"fmt"
	"log"
	"reflect"

	"go.exprtree.net/expr"
	"go.exprtree.net/task"
)

const debug = false

// Options configure the lowering.
type Options struct {
	// Cancellation, if not nil, is a context.Context-valued node
	// checked with task.CheckCanceled at every resumption.
	Cancellation expr.Node
}

// An Error reports a tree that cannot be lowered.
type Error struct {
	Node expr.Node
	Msg  string
}

func (e *Error) Error() string { return "lower: " + e.Msg }

var (
	machineType  = reflect.TypeOf((*task.Machine)(nil))
	moveNextType = reflect.TypeOf(func() {})
	typeType     = reflect.TypeOf((*reflect.Type)(nil)).Elem()
)

// Async lowers the async lambda l, whose result type must be
// *task.Task[T] and whose body yields a T (or nothing), into a
// synchronous lambda of the same signature that starts a state
// machine and returns its task.
func Async(l *expr.Lambda, opts Options) (*expr.Lambda, *Table, error) {
	if l.Sig == nil {
		return nil, nil, &Error{Node: l, Msg: "lambda has no signature"}
	}
	taskType := l.Sig.Result
	resultType, ok := task.ResultType(taskType)
	if !ok || l.Sig.HasError {
		return nil, nil, &Error{Node: l, Msg: fmt.Sprintf("async lambda %s must return *task.Task[T]", l.Sig)}
	}

	lw := &lowerer{
		opts:  opts,
		memo:  make(map[expr.Node]bool),
		temps: make(map[*expr.Var]bool),
		state: expr.NewVar("state", expr.IntType),
		mach:  expr.NewVar("machine", machineType),
		exit:  expr.NewNamedTarget("exit", expr.Void),
	}
	lw.table = &Table{State: lw.state}

	body := lw.untype(l.Body)

	start := expr.NewNamedTarget("start", expr.Void)
	top := lw.push()
	lw.emit(expr.NewLabel(start, nil))
	lw.emit(expr.Set(lw.state, expr.Constant(StateRunning)))
	residual := lw.value(body)
	lw.pop()
	if lw.err != nil {
		return nil, nil, lw.err
	}

	value := expr.NewVar("value", resultType)
	lw.table.Dispatch = append([]Entry{{State: StateEntry, Label: start}}, top.entries...)
	list := lw.dispatch(top)
	switch {
	case residual != nil && !expr.IsVoid(residual.Type()):
		list = append(list, expr.Set(value, residual))
	case !pure(residual):
		list = append(list, residual)
	}
	list = append(list,
		expr.Set(lw.state, expr.Constant(StateDone)),
		lw.call(lw.mach, "SetResult", value))

	name := l.Name
	if name == "" {
		name = "async"
	}
	e := expr.NewVar("err", expr.ErrorType)
	moveNext := expr.NewLambda(name+".moveNext", expr.MustSignature(moveNextType), nil,
		expr.NewVoidBlock(nil,
			&expr.Try{
				Body: &expr.Block{List: list, T: expr.Void},
				Handlers: []*expr.Catch{{
					Var:  e,
					Test: expr.ErrorType,
					Body: expr.NewVoidBlock(nil,
						expr.Set(lw.state, expr.Constant(StateDone)),
						lw.call(lw.mach, "SetException", e)),
				}},
			},
			expr.NewLabel(lw.exit, nil)))

	next := expr.NewVar("moveNext", moveNextType)
	vars := append([]*expr.Var{lw.state, lw.mach, next, value}, lw.hoisted...)
	outer := &expr.Block{
		Vars: vars,
		List: []expr.Node{
			expr.Set(lw.state, expr.Constant(StateEntry)),
			expr.Set(lw.mach, expr.Invoke(expr.Func(task.NewMachine), expr.ConstantOf(taskType, typeType))),
			expr.Set(next, moveNext),
			lw.call(lw.mach, "Start", next),
			expr.ConvertTo(lw.call(lw.mach, "Task"), taskType),
		},
		T: taskType,
	}
	lw.table.Hoisted = lw.hoisted
	if debug {
		log.Printf("lower: %s: %d await sites, %d hoisted variables", l.Sig, len(lw.table.Sites), len(lw.hoisted))
	}
	return expr.NewLambda(l.Name, l.Sig, l.Params, outer), lw.table, nil
}

type lowerer struct {
	opts    Options
	memo    map[expr.Node]bool // whether a subtree contains an await
	state   *expr.Var
	mach    *expr.Var
	exit    *expr.Target
	table   *Table
	hoisted []*expr.Var
	temps   map[*expr.Var]bool // variables introduced by lowering
	regions []*region
	names   map[string]int
	err     error
}

// A region is a flat statement list that is re-entered by a dispatch
// on the state variable: the moveNext body or a try body.
type region struct {
	entries []Entry
	out     []expr.Node
}

func (l *lowerer) push() *region {
	r := new(region)
	l.regions = append(l.regions, r)
	return r
}

func (l *lowerer) pop() { l.regions = l.regions[:len(l.regions)-1] }

func (l *lowerer) top() *region { return l.regions[len(l.regions)-1] }

func (l *lowerer) emit(n expr.Node) {
	r := l.top()
	r.out = append(r.out, n)
}

// dispatch returns the statements of r preceded by its dispatch.
func (l *lowerer) dispatch(r *region) []expr.Node {
	list := make([]expr.Node, 0, len(r.entries)+len(r.out))
	for _, e := range r.entries {
		list = append(list, expr.If(expr.Equal(l.state, expr.Constant(e.State)), expr.Jump(e.Label, nil)))
	}
	return append(list, r.out...)
}

func (l *lowerer) fail(n expr.Node, format string, args ...interface{}) {
	if l.err == nil {
		l.err = &Error{Node: n, Msg: fmt.Sprintf(format, args...)}
	}
}

// name returns a fresh name with the given prefix. Names depend only
// on the order of generation, so lowering is deterministic.
func (l *lowerer) name(prefix string) string {
	if l.names == nil {
		l.names = make(map[string]int)
	}
	l.names[prefix]++
	return fmt.Sprintf("%s%d", prefix, l.names[prefix])
}

func (l *lowerer) label(prefix string) *expr.Target {
	return expr.NewNamedTarget(l.name(prefix), expr.Void)
}

// temp returns a new variable hoisted into the outer lambda.
func (l *lowerer) temp(prefix string, t reflect.Type) *expr.Var {
	v := expr.NewVar(l.name(prefix), t)
	l.hoisted = append(l.hoisted, v)
	l.temps[v] = true
	return v
}

func (l *lowerer) call(recv expr.Node, name string, args ...expr.Node) expr.Node {
	m, err := expr.Method(recv, name, args...)
	if err != nil {
		panic(err) // methods of task.Machine
	}
	return m
}

// has reports whether n contains an await outside nested lambdas.
func (l *lowerer) has(n expr.Node) bool {
	if n == nil {
		return false
	}
	if v, ok := l.memo[n]; ok {
		return v
	}
	found := false
	switch n.(type) {
	case *expr.Await:
		found = true
	case *expr.Lambda:
	default:
		expr.Walk(n, func(x expr.Node) bool {
			if x == n {
				return true
			}
			if x != nil && l.has(x) {
				found = true
			}
			return false
		})
	}
	l.memo[n] = found
	return found
}

// pure reports whether evaluating n for effect does nothing.
func pure(n expr.Node) bool {
	switch n.(type) {
	case nil, *expr.Var, *expr.Const, *expr.Default, *expr.Lambda:
		return true
	}
	return false
}

// stmt lowers n, evaluated for effect, into the current region.
func (l *lowerer) stmt(n expr.Node) {
	if n == nil {
		return
	}
	if !l.has(n) {
		if !expr.IsEmpty(n) {
			l.emit(n)
		}
		return
	}
	switch n := n.(type) {
	case *expr.Block:
		l.block(n, false)
	case *expr.Cond:
		l.cond(n, false)
	case *expr.Loop:
		l.loop(n)
	case *expr.Try:
		l.try(n)
	case *expr.Label:
		l.stmt(n.Default)
		l.emit(&expr.Label{Target: n.Target})
	default:
		if v := l.value(n); !pure(v) {
			l.emit(v)
		}
	}
}

// value lowers the statements needed to compute n into the current
// region and returns an await-free node yielding its value, to be
// evaluated immediately after them.
func (l *lowerer) value(n expr.Node) expr.Node {
	if n == nil || !l.has(n) {
		return n
	}
	switch n := n.(type) {
	case *expr.Await:
		return l.await(n)
	case *expr.Assign:
		return l.assign(n)
	case *expr.Unary:
		return &expr.Unary{Op: n.Op, X: l.value(n.X)}
	case *expr.Binary:
		if n.Op.IsLogical() && l.has(n.Y) {
			return l.logical(n)
		}
		xs := l.operands(n.X, n.Y)
		return &expr.Binary{Op: n.Op, X: xs[0], Y: xs[1]}
	case *expr.Call:
		xs := l.operands(append([]expr.Node{n.Fn}, n.Args...)...)
		return &expr.Call{Fn: xs[0], Args: xs[1:]}
	case *expr.MethodCall:
		xs := l.operands(append([]expr.Node{n.Recv}, n.Args...)...)
		return &expr.MethodCall{Recv: xs[0], Name: n.Name, Func: n.Func, Args: xs[1:]}
	case *expr.Field:
		return &expr.Field{X: l.value(n.X), Name: n.Name, Index: n.Index, T: n.T}
	case *expr.Index:
		xs := l.operands(n.X, n.I)
		return &expr.Index{X: xs[0], I: xs[1], T: n.T}
	case *expr.Len:
		return &expr.Len{X: l.value(n.X)}
	case *expr.Convert:
		return &expr.Convert{X: l.value(n.X), T: n.T}
	case *expr.TypeIs:
		return &expr.TypeIs{X: l.value(n.X), T: n.T}
	case *expr.Cond:
		return l.cond(n, true)
	case *expr.Block:
		return l.block(n, true)
	case *expr.Loop:
		l.loop(n)
		return expr.Empty()
	case *expr.Label:
		l.stmt(n)
		return expr.Empty()
	case *expr.Goto:
		return &expr.Goto{Kind: n.Kind, Target: n.Target, Value: l.value(n.Value)}
	case *expr.Throw:
		return &expr.Throw{X: l.value(n.X)}
	case *expr.Try:
		if expr.IsVoid(n.Type()) {
			l.try(n)
			return expr.Empty()
		}
		tmp := l.temp("tmp", n.Type())
		t := &expr.Try{Body: setTo(tmp, n.Body), Fault: n.Fault, Finally: n.Finally}
		for _, h := range n.Handlers {
			t.Handlers = append(t.Handlers, &expr.Catch{Var: h.Var, Test: h.Test, Filter: h.Filter, Body: setTo(tmp, h.Body)})
		}
		l.try(t)
		return tmp
	}
	l.fail(n, "unexpected node %T", n)
	return expr.Empty()
}

// setTo returns the statement v = n, or n itself if it has no value.
func setTo(v *expr.Var, n expr.Node) expr.Node {
	if expr.IsVoid(n.Type()) {
		return n
	}
	return expr.NewVoidBlock(nil, expr.Set(v, n))
}

// fixed reports whether the value of n cannot change between the point
// where it is lowered and the point where it is used. A source variable
// may be assigned by a later operand; a temporary of the lowering is
// assigned once, just before the node that reads it.
func (l *lowerer) fixed(n expr.Node) bool {
	switch n := n.(type) {
	case *expr.Const, *expr.Default, *expr.Lambda:
		return true
	case *expr.Var:
		return l.temps[n]
	}
	return false
}

// operands lowers xs left to right. An operand evaluated before a
// later operand that suspends is spilled into a temporary, so that
// the order of evaluation is preserved across the suspension.
func (l *lowerer) operands(xs ...expr.Node) []expr.Node {
	last := -1
	for i, x := range xs {
		if l.has(x) {
			last = i
		}
	}
	out := make([]expr.Node, len(xs))
	for i, x := range xs {
		v := l.value(x)
		if i < last && !l.fixed(v) && !expr.IsVoid(v.Type()) {
			t := l.temp("tmp", v.Type())
			l.emit(expr.Set(t, v))
			v = t
		}
		out[i] = v
	}
	return out
}

func (l *lowerer) assign(n *expr.Assign) expr.Node {
	switch t := n.Target.(type) {
	case *expr.Field:
		xs := l.operands(t.X, n.Value)
		return expr.Set(&expr.Field{X: xs[0], Name: t.Name, Index: t.Index, T: t.T}, xs[1])
	case *expr.Index:
		xs := l.operands(t.X, t.I, n.Value)
		return expr.Set(&expr.Index{X: xs[0], I: xs[1], T: t.T}, xs[2])
	}
	return expr.Set(n.Target, l.value(n.Value))
}

// logical lowers a short-circuit operator whose right operand suspends.
func (l *lowerer) logical(n *expr.Binary) expr.Node {
	tmp := l.temp("tmp", expr.BoolType)
	skip := l.label("skip")
	l.emit(expr.Set(tmp, l.value(n.X)))
	var test expr.Node = tmp
	if n.Op == expr.ANDALSO {
		test = expr.Not(tmp)
	}
	l.emit(expr.If(test, expr.Jump(skip, nil)))
	l.emit(expr.Set(tmp, l.value(n.Y)))
	l.emit(expr.NewLabel(skip, nil))
	return tmp
}

func (l *lowerer) cond(n *expr.Cond, want bool) expr.Node {
	var tmp *expr.Var
	if want && !expr.IsVoid(n.T) {
		tmp = l.temp("tmp", n.T)
	}
	els, end := l.label("else"), l.label("endif")
	l.emit(expr.If(expr.Not(l.value(n.Test)), expr.Jump(els, nil)))
	l.arm(n.Then, tmp)
	l.emit(expr.Jump(end, nil))
	l.emit(expr.NewLabel(els, nil))
	l.arm(n.Else, tmp)
	l.emit(expr.NewLabel(end, nil))
	if tmp == nil {
		return expr.Empty()
	}
	return tmp
}

func (l *lowerer) arm(n expr.Node, tmp *expr.Var) {
	if tmp == nil {
		l.stmt(n)
		return
	}
	v := l.value(n)
	switch {
	case v == nil:
	case !expr.IsVoid(v.Type()):
		l.emit(expr.Set(tmp, v))
	case !pure(v):
		l.emit(v)
	}
}

// block flattens b into the current region. Its variables are hoisted
// and reset to zero where the block began.
func (l *lowerer) block(b *expr.Block, want bool) expr.Node {
	for _, v := range b.Vars {
		l.hoisted = append(l.hoisted, v)
		l.emit(expr.Set(v, expr.Zero(v.T)))
	}
	last := len(b.List) - 1
	for i, x := range b.List {
		if i == last && want && !expr.IsVoid(b.T) {
			return l.value(x)
		}
		l.stmt(x)
	}
	return expr.Empty()
}

// loop flattens n into top: body; goto top; break:
func (l *lowerer) loop(n *expr.Loop) {
	top := n.Continue
	if top == nil {
		top = l.label("loop")
	}
	l.emit(expr.NewLabel(top, nil))
	l.stmt(n.Body)
	l.emit(expr.Jump(top, nil))
	l.emit(expr.NewLabel(n.Break, nil))
}

func (l *lowerer) await(n *expr.Await) expr.Node {
	x := l.value(n.X)
	k := len(l.table.Sites) + 1
	a := l.temp("awaiter", n.Shape.Awaiter)
	resume := expr.NewNamedTarget(fmt.Sprintf("resume%d", k), expr.Void)
	l.table.Sites = append(l.table.Sites, Site{
		State:   k,
		Resume:  resume,
		Awaiter: a,
		Operand: n.Shape.Operand,
		Result:  n.Shape.Result,
	})
	r := l.top()
	r.entries = append(r.entries, Entry{State: k, Label: resume})

	l.emit(expr.Set(a, n.Shape.GetAwaiter(x)))
	l.emit(expr.Set(l.state, expr.Constant(k)))
	l.emit(l.call(l.mach, "Await", a))
	l.emit(expr.Jump(l.exit, nil))
	l.emit(expr.NewLabel(resume, nil))
	l.emit(expr.Set(l.state, expr.Constant(StateRunning)))
	if l.opts.Cancellation != nil {
		l.emit(expr.Invoke(expr.Func(task.CheckCanceled), l.opts.Cancellation))
	}
	res := n.Shape.GetResult(a)
	if expr.IsVoid(n.Shape.Result) {
		l.emit(res)
		return expr.Empty()
	}
	tmp := l.temp("tmp", n.Shape.Result)
	l.emit(expr.Set(tmp, res))
	return tmp
}
