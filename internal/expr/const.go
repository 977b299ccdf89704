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

package expr

import (
	"coreql/pkg/ast"
	"coreql/pkg/vector"
)

// IsConstant reports whether e contains no ColumnRef, Parameter, or
// aggregate/subquery reference, i.e. it can be folded to a literal once
// and reused for every row (optimizer phase 1, SPEC_FULL §4.5).
func IsConstant(e ast.Expr) bool {
	switch n := e.(type) {
	case nil:
		return true
	case *ast.Literal:
		return true
	case *ast.ColumnRef, *ast.Parameter, *ast.AggregateFn:
		return false
	case *ast.ScalarFn:
		for _, a := range n.Args {
			if !IsConstant(a) {
				return false
			}
		}
		return true
	case *ast.BinaryOp:
		return IsConstant(n.Left) && IsConstant(n.Right)
	case *ast.UnaryOp:
		return IsConstant(n.Arg)
	case *ast.Case:
		for _, w := range n.Whens {
			if !IsConstant(w.When) || !IsConstant(w.Then) {
				return false
			}
		}
		return IsConstant(n.Else)
	case *ast.In:
		if n.Subquery != nil {
			return false
		}
		if !IsConstant(n.Expr) {
			return false
		}
		for _, item := range n.List {
			if !IsConstant(item) {
				return false
			}
		}
		return true
	case *ast.Cast:
		return IsConstant(n.Expr)
	case *ast.Try:
		return IsConstant(n.Expr)
	default:
		return false
	}
}

// EvalConst evaluates a constant expression (IsConstant(e) must be true)
// and returns it as an *ast.Literal, so the optimizer can splice the
// result back into the plan in place of the original subtree. ok is
// false if e errors during evaluation (e.g. division by zero) — the
// caller should leave the original expression in place and let the
// error surface at execution time instead.
func EvalConst(e ast.Expr) (*ast.Literal, bool) {
	if lit, ok := e.(*ast.Literal); ok {
		return lit, true
	}
	v, err := evalRow(e, nil, 0)
	if err != nil {
		return nil, false
	}
	if v.null {
		return &ast.Literal{Kind: ast.LitNull}, true
	}
	switch v.typ {
	case vector.Bool:
		return &ast.Literal{Kind: ast.LitBool, Bool: v.b}, true
	case vector.Int64:
		return &ast.Literal{Kind: ast.LitInt, Int: v.i}, true
	case vector.Float64:
		return &ast.Literal{Kind: ast.LitFloat, Flt: v.f}, true
	case vector.String:
		return &ast.Literal{Kind: ast.LitString, Str: v.s}, true
	default:
		return nil, false
	}
}
