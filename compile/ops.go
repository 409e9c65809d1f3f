// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compile

import (
	"reflect"

	"go.exprtree.net/expr"
)

func isNumber(k reflect.Kind) bool {
	return isInt(k) || isUint(k) || isFloat(k)
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func (fr *frame) unary(op expr.Op, x reflect.Value) (reflect.Value, error) {
	if x.Kind() == reflect.Interface && !x.IsNil() {
		x = x.Elem()
	}
	switch op {
	case expr.NOT:
		if x.Kind() == reflect.Bool {
			return reflect.ValueOf(!x.Bool()), nil
		}
	case expr.NEGATE:
		z := reflect.New(x.Type()).Elem()
		switch k := x.Kind(); {
		case isInt(k):
			z.SetInt(-x.Int())
			return z, nil
		case isUint(k):
			z.SetUint(-x.Uint())
			return z, nil
		case isFloat(k):
			z.SetFloat(-x.Float())
			return z, nil
		}
	}
	return reflect.Value{}, fr.errorf("unknown unary op: %s%s", op, x.Type())
}

func (fr *frame) binary(n *expr.Binary) (reflect.Value, error) {
	switch n.Op {
	case expr.ANDALSO, expr.ORELSE:
		x, err := fr.test(n.X)
		if err != nil {
			return reflect.Value{}, err
		}
		if x == (n.Op == expr.ORELSE) {
			return reflect.ValueOf(x), nil
		}
		y, err := fr.test(n.Y)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(y), nil
	}

	x, err := fr.eval(n.X)
	if err != nil {
		return reflect.Value{}, err
	}
	y, err := fr.eval(n.Y)
	if err != nil {
		return reflect.Value{}, err
	}
	if n.Op == expr.EQL || n.Op == expr.NEQ {
		eq, err := fr.equal(x, y)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(eq == (n.Op == expr.EQL)), nil
	}

	if x.Kind() == reflect.Interface && !x.IsNil() {
		x = x.Elem()
	}
	if y.Kind() == reflect.Interface && !y.IsNil() {
		y = y.Elem()
	}
	if x.Type() != y.Type() {
		if y, err = fr.assignTo(y, x.Type()); err != nil {
			return reflect.Value{}, fr.errorf("unknown binary op: %s %s %s", x.Type(), n.Op, y.Type())
		}
	}
	if n.Op.IsComparison() {
		c, ok := compare(x, y)
		if !ok {
			return reflect.Value{}, fr.errorf("%s not ordered", x.Type())
		}
		var r bool
		switch n.Op {
		case expr.LT:
			r = c < 0
		case expr.LE:
			r = c <= 0
		case expr.GT:
			r = c > 0
		case expr.GE:
			r = c >= 0
		}
		return reflect.ValueOf(r), nil
	}
	return fr.arith(n.Op, x, y)
}

// equal compares x and y with Go's == semantics. Comparing
// uncomparable values is an error.
func (fr *frame) equal(x, y reflect.Value) (eq bool, err error) {
	if isNil(x) || isNil(y) {
		return isNil(x) && isNil(y), nil
	}
	err = fr.protect(func() {
		eq = x.Interface() == y.Interface()
	})
	return eq, err
}

// compare returns the ordering of x and y, which have the same type.
func compare(x, y reflect.Value) (int, bool) {
	switch k := x.Kind(); {
	case isInt(k):
		return sign3(x.Int() < y.Int(), x.Int() > y.Int()), true
	case isUint(k):
		return sign3(x.Uint() < y.Uint(), x.Uint() > y.Uint()), true
	case isFloat(k):
		return sign3(x.Float() < y.Float(), x.Float() > y.Float()), true
	case k == reflect.String:
		return sign3(x.String() < y.String(), x.String() > y.String()), true
	}
	return 0, false
}

func sign3(lt, gt bool) int {
	switch {
	case lt:
		return -1
	case gt:
		return +1
	}
	return 0
}

func (fr *frame) arith(op expr.Op, x, y reflect.Value) (reflect.Value, error) {
	z := reflect.New(x.Type()).Elem()
	switch k := x.Kind(); {
	case isInt(k):
		a, b := x.Int(), y.Int()
		switch op {
		case expr.ADD:
			z.SetInt(a + b)
		case expr.SUB:
			z.SetInt(a - b)
		case expr.MUL:
			z.SetInt(a * b)
		case expr.DIV, expr.REM:
			if b == 0 {
				return reflect.Value{}, fr.errorf("integer division by zero")
			}
			if op == expr.DIV {
				z.SetInt(a / b)
			} else {
				z.SetInt(a % b)
			}
		default:
			return reflect.Value{}, fr.errorf("unknown binary op: %s %s %s", x.Type(), op, y.Type())
		}
		return z, nil

	case isUint(k):
		a, b := x.Uint(), y.Uint()
		switch op {
		case expr.ADD:
			z.SetUint(a + b)
		case expr.SUB:
			z.SetUint(a - b)
		case expr.MUL:
			z.SetUint(a * b)
		case expr.DIV, expr.REM:
			if b == 0 {
				return reflect.Value{}, fr.errorf("integer division by zero")
			}
			if op == expr.DIV {
				z.SetUint(a / b)
			} else {
				z.SetUint(a % b)
			}
		default:
			return reflect.Value{}, fr.errorf("unknown binary op: %s %s %s", x.Type(), op, y.Type())
		}
		return z, nil

	case isFloat(k):
		a, b := x.Float(), y.Float()
		switch op {
		case expr.ADD:
			z.SetFloat(a + b)
		case expr.SUB:
			z.SetFloat(a - b)
		case expr.MUL:
			z.SetFloat(a * b)
		case expr.DIV:
			z.SetFloat(a / b)
		default:
			return reflect.Value{}, fr.errorf("unknown binary op: %s %s %s", x.Type(), op, y.Type())
		}
		return z, nil

	case k == reflect.String && op == expr.ADD:
		z.SetString(x.String() + y.String())
		return z, nil
	}
	return reflect.Value{}, fr.errorf("unknown binary op: %s %s %s", x.Type(), op, y.Type())
}
