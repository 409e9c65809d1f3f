// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package task provides a minimal awaitable, Task, and the Machine
// that drives the state machines produced by lowering async lambdas.
//
// A Task is completed once, with a value or an error. Its Awaiter
// satisfies the awaiter protocol recognised by package expr: Result
// blocks until completion, and IsCompleted and OnCompleted let a
// Machine suspend instead of blocking.
package task // import "go.exprtree.net/task"

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// A State is the completion state of a Task.
type State int

const (
	Pending State = iota
	Fulfilled
	Rejected
)

func (s State) String() string {
	switch s {
	case Pending:
		return "<pending>"
	case Fulfilled:
		return "<fulfilled>"
	case Rejected:
		return "<rejected>"
	}
	return "unknown"
}

// A Task is the eventual result of an asynchronous operation.
// The zero value is a pending task.
type Task[T any] struct {
	mu    sync.Mutex
	state State
	value T
	err   error
	done  chan struct{} // created lazily, closed on completion
	conts []func()
}

// New returns a pending task.
func New[T any]() *Task[T] { return new(Task[T]) }

// FromResult returns a task fulfilled with v.
func FromResult[T any](v T) *Task[T] {
	t := new(Task[T])
	t.Resolve(v)
	return t
}

// FromError returns a task rejected with err.
func FromError[T any](err error) *Task[T] {
	t := new(Task[T])
	t.Reject(err)
	return t
}

// Run calls f in a new goroutine and returns a task for its outcome.
func Run[T any](ctx context.Context, f func(context.Context) (T, error)) *Task[T] {
	t := new(Task[T])
	go func() {
		v, err := f(ctx)
		t.complete(v, err)
	}()
	return t
}

// Resolve fulfils the task with v. It reports whether the task was
// pending.
func (t *Task[T]) Resolve(v T) bool { return t.complete(v, nil) }

// Reject completes the task with the non-nil error err. It reports
// whether the task was pending.
func (t *Task[T]) Reject(err error) bool {
	if err == nil {
		panic("task: Reject with nil error")
	}
	var zero T
	return t.complete(zero, err)
}

func (t *Task[T]) complete(v T, err error) bool {
	t.mu.Lock()
	if t.state != Pending {
		t.mu.Unlock()
		return false
	}
	if err != nil {
		t.state, t.err = Rejected, err
	} else {
		t.state, t.value = Fulfilled, v
	}
	if t.done != nil {
		close(t.done)
	}
	conts := t.conts
	t.conts = nil
	t.mu.Unlock()

	for _, f := range conts {
		f()
	}
	return true
}

// State returns the current state of the task.
func (t *Task[T]) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Done returns a channel that is closed when the task completes.
func (t *Task[T]) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done == nil {
		t.done = make(chan struct{})
		if t.state != Pending {
			close(t.done)
		}
	}
	return t.done
}

// Wait blocks until the task completes or ctx is done.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.Done():
		return t.outcome()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (t *Task[T]) outcome() (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value, t.err
}

// Awaiter returns the awaiter of the task.
func (t *Task[T]) Awaiter() *Awaiter[T] { return &Awaiter[T]{t: t} }

func (t *Task[T]) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case Fulfilled:
		return fmt.Sprintf("Task(%s %v)", t.state, t.value)
	case Rejected:
		return fmt.Sprintf("Task(%s %v)", t.state, t.err)
	}
	return fmt.Sprintf("Task(%s)", t.state)
}

// An Awaiter waits for the completion of a Task.
type Awaiter[T any] struct {
	t *Task[T]
}

// IsCompleted reports whether the task has completed.
func (a *Awaiter[T]) IsCompleted() bool { return a.t.State() != Pending }

// OnCompleted arranges for f to be called once the task completes.
// If it already has, f is called immediately.
func (a *Awaiter[T]) OnCompleted(f func()) {
	t := a.t
	t.mu.Lock()
	if t.state == Pending {
		t.conts = append(t.conts, f)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	f()
}

// Result blocks until the task completes and returns its outcome.
func (a *Awaiter[T]) Result() (T, error) {
	<-a.t.Done()
	return a.t.outcome()
}

// A completer is a task whose element type is known only dynamically.
type completer interface {
	resultType() reflect.Type
	completeValue(v reflect.Value, err error) bool
}

func (t *Task[T]) resultType() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

func (t *Task[T]) completeValue(v reflect.Value, err error) bool {
	var x T
	if err == nil && v.IsValid() {
		reflect.ValueOf(&x).Elem().Set(v)
	}
	return t.complete(x, err)
}

// ResultType returns the element type T of the task type *Task[T].
func ResultType(taskType reflect.Type) (reflect.Type, bool) {
	if taskType == nil || taskType.Kind() != reflect.Ptr {
		return nil, false
	}
	c, ok := reflect.New(taskType.Elem()).Interface().(completer)
	if !ok {
		return nil, false
	}
	return c.resultType(), true
}
