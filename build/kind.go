// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package build

// A ScopeKind identifies the construct that opened a scope.
type ScopeKind uint8

const (
	BlockScope    ScopeKind = iota // plain block, if arm, for wrapper
	LambdaScope                    // body of a lambda
	LoopScope                      // body of a loop; owns break and continue targets
	TryScope                       // protected region
	CatchScope                     // catch clause; binds the caught error
	FinallyScope                   // finally clause
	FaultScope                     // fault clause
	MatchScope                     // one arm of a match
	ResourceScope                  // body of using, lock or with
)

var scopeKindNames = [...]string{
	BlockScope:    "block",
	LambdaScope:   "lambda",
	LoopScope:     "loop",
	TryScope:      "try",
	CatchScope:    "catch",
	FinallyScope:  "finally",
	FaultScope:    "fault",
	MatchScope:    "match",
	ResourceScope: "resource",
}

func (k ScopeKind) String() string { return scopeKindNames[k] }
