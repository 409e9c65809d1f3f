// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package expr

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"runtime"
	"strconv"
	"strings"
)

// Fprint writes a human-readable rendering of the tree n to w.
// The format is intended for debugging and tests, not for parsing.
func Fprint(w io.Writer, n Node) error {
	p := &printer{}
	p.stmt(n)
	_, err := w.Write(p.buf.Bytes())
	return err
}

// String returns the rendering of n produced by Fprint.
func String(n Node) string {
	var buf bytes.Buffer
	Fprint(&buf, n)
	return buf.String()
}

type printer struct {
	buf    bytes.Buffer
	indent int
}

func (p *printer) line(format string, args ...interface{}) {
	p.buf.WriteString(strings.Repeat("  ", p.indent))
	fmt.Fprintf(&p.buf, format, args...)
	p.buf.WriteByte('\n')
}

// stmt prints n as a statement on its own lines.
func (p *printer) stmt(n Node) {
	switch n := n.(type) {
	case *Block:
		p.line("{")
		p.indent++
		p.body(n)
		p.indent--
		p.line("}")
	case *Cond:
		if IsVoid(n.T) {
			p.line("if %s {", p.expr(n.Test))
			p.nested(n.Then)
			if !IsEmpty(n.Else) {
				p.line("} else {")
				p.nested(n.Else)
			}
			p.line("}")
			return
		}
		p.line("%s", p.expr(n))
	case *Loop:
		if n.Continue != nil {
			p.line("loop %s %s {", n.Break, n.Continue)
		} else {
			p.line("loop %s {", n.Break)
		}
		p.nested(n.Body)
		p.line("}")
	case *Label:
		if n.Default != nil && !IsVoid(n.Target.T) {
			p.line("%s: %s", n.Target, p.expr(n.Default))
		} else {
			p.line("%s:", n.Target)
		}
	case *Try:
		p.line("try {")
		p.nested(n.Body)
		for _, h := range n.Handlers {
			clause := TypeName(h.Test)
			if h.Var != nil {
				clause = h.Var.Name + " " + clause
			}
			if h.Filter != nil {
				p.line("} catch (%s) when %s {", clause, p.expr(h.Filter))
			} else {
				p.line("} catch (%s) {", clause)
			}
			p.nested(h.Body)
		}
		if n.Fault != nil {
			p.line("} fault {")
			p.nested(n.Fault)
		}
		if n.Finally != nil {
			p.line("} finally {")
			p.nested(n.Finally)
		}
		p.line("}")
	case *Lambda:
		p.line("%s {", p.lambdaHeader(n))
		p.nested(n.Body)
		p.line("}")
	default:
		p.line("%s", p.expr(n))
	}
}

// nested prints the statements of n, unwrapping a block.
func (p *printer) nested(n Node) {
	p.indent++
	if b, ok := n.(*Block); ok {
		p.body(b)
	} else if !IsEmpty(n) {
		p.stmt(n)
	}
	p.indent--
}

func (p *printer) body(b *Block) {
	for _, v := range b.Vars {
		p.line("var %s %s", v.Name, TypeName(v.T))
	}
	for _, x := range b.List {
		p.stmt(x)
	}
}

func (p *printer) lambdaHeader(n *Lambda) string {
	var params []string
	for _, v := range n.Params {
		params = append(params, v.Name+" "+TypeName(v.T))
	}
	hdr := "func"
	if n.Name != "" {
		hdr += " " + n.Name
	}
	hdr += "(" + strings.Join(params, ", ") + ")"
	if !IsVoid(n.Sig.Result) {
		hdr += " " + TypeName(n.Sig.Result)
	}
	if n.Sig.HasError {
		hdr += " !"
	}
	return hdr
}

// expr returns the single-line rendering of n.
// Statement nodes appearing in expression position are rendered
// on one line with braces.
func (p *printer) expr(n Node) string {
	switch n := n.(type) {
	case nil:
		return "<nil>"
	case *Const:
		return constString(n)
	case *Default:
		if IsVoid(n.T) {
			return "nop"
		}
		return fmt.Sprintf("zero(%s)", n.T)
	case *Var:
		return n.Name
	case *Assign:
		return p.expr(n.Target) + " = " + p.expr(n.Value)
	case *Unary:
		return n.Op.String() + p.expr(n.X)
	case *Binary:
		return "(" + p.expr(n.X) + " " + n.Op.String() + " " + p.expr(n.Y) + ")"
	case *Call:
		return p.expr(n.Fn) + "(" + p.list(n.Args) + ")"
	case *MethodCall:
		return p.expr(n.Recv) + "." + n.Name + "(" + p.list(n.Args) + ")"
	case *Field:
		return p.expr(n.X) + "." + n.Name
	case *Index:
		return p.expr(n.X) + "[" + p.expr(n.I) + "]"
	case *Len:
		return "len(" + p.expr(n.X) + ")"
	case *Convert:
		return TypeName(n.T) + "(" + p.expr(n.X) + ")"
	case *TypeIs:
		return "(" + p.expr(n.X) + " is " + TypeName(n.T) + ")"
	case *Cond:
		return "(" + p.expr(n.Test) + " ? " + p.expr(n.Then) + " : " + p.expr(n.Else) + ")"
	case *Goto:
		if n.Value != nil {
			return n.Kind.String() + " " + n.Target.Name + " " + p.expr(n.Value)
		}
		return n.Kind.String() + " " + n.Target.Name
	case *Throw:
		if n.X == nil {
			return "rethrow"
		}
		return "throw " + p.expr(n.X)
	case *Await:
		return "await " + p.expr(n.X)
	case *Lambda:
		return p.lambdaHeader(n) + " { " + p.inline(n.Body) + " }"
	default:
		return "{ " + p.inline(n) + " }"
	}
}

// inline renders a statement node on a single line.
func (p *printer) inline(n Node) string {
	sub := &printer{}
	sub.stmt(n)
	return strings.Join(strings.Fields(strings.ReplaceAll(sub.buf.String(), "\n", "; ")), " ")
}

func (p *printer) list(args []Node) string {
	s := make([]string, len(args))
	for i, a := range args {
		s[i] = p.expr(a)
	}
	return strings.Join(s, ", ")
}

func constString(c *Const) string {
	if !c.Value.IsValid() {
		return "nil"
	}
	v := c.Value
	switch v.Kind() {
	case reflect.String:
		return strconv.Quote(v.String())
	case reflect.Func:
		if v.IsNil() {
			return "nil"
		}
		if fn := runtime.FuncForPC(v.Pointer()); fn != nil {
			name := fn.Name()
			if i := strings.LastIndexByte(name, '/'); i >= 0 {
				name = name[i+1:]
			}
			return name
		}
		return v.Type().String()
	case reflect.Interface, reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan:
		if v.IsNil() {
			return "nil"
		}
	}
	if v.CanInterface() {
		if t, ok := v.Interface().(reflect.Type); ok {
			return t.String()
		}
		return fmt.Sprintf("%v", v.Interface())
	}
	return v.Type().String()
}
