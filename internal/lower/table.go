// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lower

import (
	"fmt"
	"reflect"
	"strings"

	"go.exprtree.net/expr"
)

// Distinguished values of the state variable. Await sites are
// numbered densely from 1.
const (
	StateEntry   = 0
	StateRunning = -1
	StateDone    = -2
)

// A Site is one await of the lowered lambda.
type Site struct {
	State   int
	Resume  *expr.Target // label at which execution resumes
	Awaiter *expr.Var    // hoisted, of the site's awaiter type
	Operand reflect.Type
	Result  reflect.Type
}

// An Entry of the dispatch maps a state to the label jumped to by the
// dispatch at the top of the state machine. For an await inside a try
// region the label precedes the try, whose body dispatches again.
type Entry struct {
	State int
	Label *expr.Target
}

// A Table describes the state machine produced by Async.
type Table struct {
	State    *expr.Var
	Sites    []Site  // Sites[i].State == i+1
	Dispatch []Entry // the entry state, then one entry per site
	Hoisted  []*expr.Var
}

// Len returns the number of await sites.
func (t *Table) Len() int { return len(t.Sites) }

// Resume returns the resumption label of state k, or nil.
func (t *Table) Resume(k int) *expr.Target {
	if k < 1 || k > len(t.Sites) {
		return nil
	}
	return t.Sites[k-1].Resume
}

func (t *Table) String() string {
	var buf strings.Builder
	for _, e := range t.Dispatch {
		fmt.Fprintf(&buf, "state %d -> %s", e.State, e.Label)
		if e.State > 0 {
			s := t.Sites[e.State-1]
			fmt.Fprintf(&buf, " (resume %s, awaiter %s %s)", s.Resume, s.Awaiter, expr.TypeName(s.Awaiter.T))
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}
