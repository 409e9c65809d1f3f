// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package task

import (
	"context"
	"fmt"
	"reflect"
)

// A Machine drives the moveNext function of a lowered async lambda
// and owns the task it completes.
//
// moveNext runs until it either completes the task (SetResult,
// SetException) or suspends on an awaiter (Await). In the latter case
// the machine resumes it when the awaiter completes. moveNext never
// runs concurrently with itself: the continuation is registered only
// after it has returned.
type Machine struct {
	task     completer
	taskVal  reflect.Value
	moveNext func()
	awaiter  interface{}
}

// NewMachine returns a machine completing a new pending task of type
// taskType, which must be *Task[T] for some T.
func NewMachine(taskType reflect.Type) *Machine {
	if _, ok := ResultType(taskType); !ok {
		panic(fmt.Sprintf("task: %s is not a *Task type", taskType))
	}
	v := reflect.New(taskType.Elem())
	return &Machine{task: v.Interface().(completer), taskVal: v}
}

// Task returns the task completed by the machine, as a *Task[T].
func (m *Machine) Task() interface{} { return m.taskVal.Interface() }

// Start runs moveNext for the first time.
func (m *Machine) Start(moveNext func()) {
	m.moveNext = moveNext
	m.run()
}

// Await records that moveNext is about to suspend on awaiter.
func (m *Machine) Await(awaiter interface{}) { m.awaiter = awaiter }

// SetResult fulfils the task with v.
func (m *Machine) SetResult(v interface{}) {
	var rv reflect.Value
	if v != nil {
		rv = reflect.ValueOf(v)
	}
	m.task.completeValue(rv, nil)
}

// SetException rejects the task with err.
func (m *Machine) SetException(err error) {
	m.task.completeValue(reflect.Value{}, err)
}

type completionNotifier interface {
	OnCompleted(func())
}

type completionChecker interface {
	IsCompleted() bool
}

func (m *Machine) run() {
	for {
		m.awaiter = nil
		if err := m.step(); err != nil {
			m.SetException(err)
			return
		}
		a := m.awaiter
		if a == nil {
			return
		}
		if c, ok := a.(completionChecker); ok && c.IsCompleted() {
			continue
		}
		n, ok := a.(completionNotifier)
		if !ok {
			// Resume at once; the awaiter's Result blocks.
			continue
		}
		n.OnCompleted(m.run)
		return
	}
}

// step calls moveNext, converting a panic into an error.
func (m *Machine) step() (err error) {
	defer func() {
		if x := recover(); x != nil {
			if e, ok := x.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("task: panic in state machine: %v", x)
			}
		}
	}()
	m.moveNext()
	return nil
}

// CheckCanceled returns the error of ctx if it is done.
// A nil ctx is never canceled.
func CheckCanceled(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
