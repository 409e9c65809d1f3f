// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package exprpb encodes expression trees and async state tables as
// protobuf Struct values, for snapshots and structural comparison.
//
// Each node becomes a struct with an "op" field naming its kind, a
// "type" field for nodes with a value, and one field per child.
// Variables and targets are encoded by name, so two trees built the
// same way encode identically only if their names are deterministic.
package exprpb // import "go.exprtree.net/exprpb"

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"go.exprtree.net/expr"
	"go.exprtree.net/internal/lower"
)

// Encode returns the snapshot of the tree n.
func Encode(n expr.Node) (*structpb.Struct, error) {
	if n == nil {
		return nil, fmt.Errorf("exprpb: nil node")
	}
	return structpb.NewStruct(node(n))
}

// EncodeTable returns the snapshot of a state table.
func EncodeTable(t *lower.Table) (*structpb.Struct, error) {
	var sites, dispatch, hoisted []interface{}
	for _, s := range t.Sites {
		sites = append(sites, map[string]interface{}{
			"state":   s.State,
			"resume":  s.Resume.Name,
			"awaiter": s.Awaiter.Name,
			"type":    expr.TypeName(s.Awaiter.T),
			"operand": expr.TypeName(s.Operand),
			"result":  expr.TypeName(s.Result),
		})
	}
	for _, e := range t.Dispatch {
		dispatch = append(dispatch, map[string]interface{}{"state": e.State, "label": e.Label.Name})
	}
	for _, v := range t.Hoisted {
		hoisted = append(hoisted, v.Name)
	}
	return structpb.NewStruct(map[string]interface{}{
		"state":    t.State.Name,
		"sites":    sites,
		"dispatch": dispatch,
		"hoisted":  hoisted,
	})
}

// Marshal returns the snapshot of n as indented JSON.
func Marshal(n expr.Node) ([]byte, error) {
	s, err := Encode(n)
	if err != nil {
		return nil, err
	}
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
}

// Equal reports whether the snapshots of a and b are equal.
func Equal(a, b expr.Node) (bool, error) {
	x, err := Encode(a)
	if err != nil {
		return false, err
	}
	y, err := Encode(b)
	if err != nil {
		return false, err
	}
	return proto.Equal(x, y), nil
}

type fields = map[string]interface{}

func node(n expr.Node) fields {
	f := fields{"op": strings.TrimPrefix(fmt.Sprintf("%T", n), "*expr.")}
	if t := n.Type(); !expr.IsVoid(t) {
		f["type"] = expr.TypeName(t)
	}
	switch n := n.(type) {
	case *expr.Const:
		f["value"] = strings.TrimSpace(expr.String(n))
	case *expr.Default:
	case *expr.Var:
		f["name"] = n.Name
	case *expr.Assign:
		f["target"] = node(n.Target)
		f["value"] = node(n.Value)
	case *expr.Unary:
		f["operator"] = n.Op.String()
		f["x"] = node(n.X)
	case *expr.Binary:
		f["operator"] = n.Op.String()
		f["x"] = node(n.X)
		f["y"] = node(n.Y)
	case *expr.Call:
		f["fn"] = node(n.Fn)
		f["args"] = list(n.Args)
	case *expr.MethodCall:
		f["recv"] = node(n.Recv)
		f["name"] = n.Name
		f["args"] = list(n.Args)
	case *expr.Field:
		f["x"] = node(n.X)
		f["name"] = n.Name
	case *expr.Index:
		f["x"] = node(n.X)
		f["index"] = node(n.I)
	case *expr.Len:
		f["x"] = node(n.X)
	case *expr.Convert:
		f["x"] = node(n.X)
	case *expr.TypeIs:
		f["x"] = node(n.X)
		f["test"] = expr.TypeName(n.T)
	case *expr.Cond:
		f["test"] = node(n.Test)
		f["then"] = node(n.Then)
		if n.Else != nil {
			f["else"] = node(n.Else)
		}
	case *expr.Block:
		f["vars"] = vars(n.Vars)
		f["list"] = list(n.List)
	case *expr.Loop:
		f["break"] = n.Break.Name
		if n.Continue != nil {
			f["continue"] = n.Continue.Name
		}
		f["body"] = node(n.Body)
	case *expr.Label:
		f["target"] = n.Target.Name
		if n.Default != nil {
			f["default"] = node(n.Default)
		}
	case *expr.Goto:
		f["kind"] = n.Kind.String()
		f["target"] = n.Target.Name
		if n.Value != nil {
			f["value"] = node(n.Value)
		}
	case *expr.Try:
		f["body"] = node(n.Body)
		var hs []interface{}
		for _, h := range n.Handlers {
			c := fields{"test": expr.TypeName(h.Test), "body": node(h.Body)}
			if h.Var != nil {
				c["var"] = h.Var.Name
			}
			if h.Filter != nil {
				c["filter"] = node(h.Filter)
			}
			hs = append(hs, c)
		}
		f["handlers"] = hs
		if n.Fault != nil {
			f["fault"] = node(n.Fault)
		}
		if n.Finally != nil {
			f["finally"] = node(n.Finally)
		}
	case *expr.Throw:
		if n.X != nil {
			f["x"] = node(n.X)
		}
	case *expr.Lambda:
		f["name"] = n.Name
		f["params"] = vars(n.Params)
		f["body"] = node(n.Body)
	case *expr.Await:
		f["x"] = node(n.X)
		f["awaiter"] = expr.TypeName(n.Shape.Awaiter)
	}
	return f
}

func list(ns []expr.Node) []interface{} {
	out := make([]interface{}, len(ns))
	for i, n := range ns {
		out[i] = node(n)
	}
	return out
}

func vars(vs []*expr.Var) []interface{} {
	out := make([]interface{}, len(vs))
	for i, v := range vs {
		out[i] = fields{"name": v.Name, "type": expr.TypeName(v.T)}
	}
	return out
}
