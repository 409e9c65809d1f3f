// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package expr

// An Op is a unary or binary operator.
type Op uint8

const (
	ILLEGAL Op = iota

	// unary
	NOT    // !x
	NEGATE // -x

	// binary arithmetic
	ADD // x + y
	SUB // x - y
	MUL // x * y
	DIV // x / y
	REM // x % y

	// comparisons
	EQL // x == y
	NEQ // x != y
	LT  // x < y
	LE  // x <= y
	GT  // x > y
	GE  // x >= y

	// short-circuit logic
	ANDALSO // x && y
	ORELSE  // x || y
)

var opNames = [...]string{
	ILLEGAL: "illegal",
	NOT:     "!",
	NEGATE:  "-",
	ADD:     "+",
	SUB:     "-",
	MUL:     "*",
	DIV:     "/",
	REM:     "%",
	EQL:     "==",
	NEQ:     "!=",
	LT:      "<",
	LE:      "<=",
	GT:      ">",
	GE:      ">=",
	ANDALSO: "&&",
	ORELSE:  "||",
}

func (op Op) String() string { return opNames[op] }

// IsComparison reports whether op yields a boolean from two operands
// of the same type.
func (op Op) IsComparison() bool { return EQL <= op && op <= GE }

// IsLogical reports whether op is a short-circuit operator.
func (op Op) IsLogical() bool { return op == ANDALSO || op == ORELSE }

// A GotoKind records why a Goto was emitted. It affects only printing.
type GotoKind uint8

const (
	GotoJump GotoKind = iota
	GotoBreak
	GotoContinue
	GotoReturn
)

var gotoNames = [...]string{
	GotoJump:     "goto",
	GotoBreak:    "break",
	GotoContinue: "continue",
	GotoReturn:   "return",
}

func (k GotoKind) String() string { return gotoNames[k] }
