// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package optimizer

import "coreql/pkg/ast"

// exprFn is applied once to every node of an expression tree, bottom-up.
// It returns the (possibly unchanged) replacement and whether it changed
// anything.
type exprFn func(ast.Expr) (ast.Expr, bool)

// rewriteExpr rewrites e bottom-up: children are rewritten first, then fn
// runs on the (possibly rebuilt) node. Returns the new tree and whether
// anything changed anywhere in it. Expression nodes are never mutated in
// place here — a changed node is a fresh copy — so a caller holding onto
// the original AST (e.g. for EXPLAIN of the pre-rewrite plan) is unaffected.
func rewriteExpr(e ast.Expr, fn exprFn) (ast.Expr, bool) {
	if e == nil {
		return nil, false
	}
	changed := false
	switch n := e.(type) {
	case *ast.Literal, *ast.ColumnRef, *ast.Parameter:
		// leaves: nothing to recurse into

	case *ast.ScalarFn:
		args, argsChanged := rewriteExprList(n.Args, fn)
		if argsChanged {
			cp := *n
			cp.Args = args
			e = &cp
			changed = true
		}

	case *ast.AggregateFn:
		args, argsChanged := rewriteExprList(n.Args, fn)
		if argsChanged {
			cp := *n
			cp.Args = args
			e = &cp
			changed = true
		}

	case *ast.BinaryOp:
		left, lc := rewriteExpr(n.Left, fn)
		right, rc := rewriteExpr(n.Right, fn)
		if lc || rc {
			cp := *n
			cp.Left, cp.Right = left, right
			e = &cp
			changed = true
		}

	case *ast.UnaryOp:
		arg, ac := rewriteExpr(n.Arg, fn)
		if ac {
			cp := *n
			cp.Arg = arg
			e = &cp
			changed = true
		}

	case *ast.Case:
		whens := n.Whens
		whensChanged := false
		for i, w := range whens {
			when, wc := rewriteExpr(w.When, fn)
			then, tc := rewriteExpr(w.Then, fn)
			if wc || tc {
				if !whensChanged {
					whens = append([]ast.WhenClause(nil), n.Whens...)
					whensChanged = true
				}
				whens[i] = ast.WhenClause{When: when, Then: then}
			}
		}
		els, ec := rewriteExpr(n.Else, fn)
		if whensChanged || ec {
			cp := *n
			cp.Whens = whens
			cp.Else = els
			e = &cp
			changed = true
		}

	case *ast.In:
		inner, ic := rewriteExpr(n.Expr, fn)
		list, lc := rewriteExprList(n.List, fn)
		if ic || lc {
			cp := *n
			cp.Expr = inner
			cp.List = list
			e = &cp
			changed = true
		}

	case *ast.Cast:
		inner, ic := rewriteExpr(n.Expr, fn)
		if ic {
			cp := *n
			cp.Expr = inner
			e = &cp
			changed = true
		}

	case *ast.Try:
		inner, ic := rewriteExpr(n.Expr, fn)
		if ic {
			cp := *n
			cp.Expr = inner
			e = &cp
			changed = true
		}
	}

	out, top := fn(e)
	return out, changed || top
}

func rewriteExprList(list []ast.Expr, fn exprFn) ([]ast.Expr, bool) {
	if len(list) == 0 {
		return list, false
	}
	out := list
	anyChanged := false
	for i, item := range list {
		rewritten, changed := rewriteExpr(item, fn)
		if changed {
			if !anyChanged {
				out = append([]ast.Expr(nil), list...)
				anyChanged = true
			}
			out[i] = rewritten
		}
	}
	return out, anyChanged
}

// columnsIn collects the distinct unqualified column names referenced
// anywhere in e.
func columnsIn(e ast.Expr, into map[string]bool) {
	switch n := e.(type) {
	case nil, *ast.Literal, *ast.Parameter:
	case *ast.ColumnRef:
		into[n.Name] = true
	case *ast.ScalarFn:
		for _, a := range n.Args {
			columnsIn(a, into)
		}
	case *ast.AggregateFn:
		for _, a := range n.Args {
			columnsIn(a, into)
		}
	case *ast.BinaryOp:
		columnsIn(n.Left, into)
		columnsIn(n.Right, into)
	case *ast.UnaryOp:
		columnsIn(n.Arg, into)
	case *ast.Case:
		for _, w := range n.Whens {
			columnsIn(w.When, into)
			columnsIn(w.Then, into)
		}
		columnsIn(n.Else, into)
	case *ast.In:
		columnsIn(n.Expr, into)
		for _, item := range n.List {
			columnsIn(item, into)
		}
	case *ast.Cast:
		columnsIn(n.Expr, into)
	case *ast.Try:
		columnsIn(n.Expr, into)
	}
}
