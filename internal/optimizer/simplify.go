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

// Phase 1: expression simplification (SPEC_FULL §4.5).

package optimizer

import (
	"coreql/internal/expr"
	"coreql/internal/plan"
	"coreql/pkg/ast"
)

// ConstantFold evaluates any subexpression that contains no column
// reference down to a single Literal (e.g. `1+2` -> `3`), and collapses
// arithmetic identities against a non-constant operand (`x*1` -> `x`,
// `x*0` -> `0`, `x+0` -> `x`, `x/1` -> `x`).
type ConstantFold struct{}

func (ConstantFold) Name() string { return "ConstantFold" }

func (ConstantFold) Apply(a *plan.Arena, id plan.NodeID) bool {
	return rewriteNodeExprs(a.Node(id), foldOne)
}

func foldOne(e ast.Expr) (ast.Expr, bool) {
	if out, ok := foldIdentity(e); ok {
		return out, true
	}
	if _, isLit := e.(*ast.Literal); isLit || e == nil {
		return e, false
	}
	if !expr.IsConstant(e) {
		return e, false
	}
	if lit, ok := expr.EvalConst(e); ok {
		return lit, true
	}
	return e, false
}

func foldIdentity(e ast.Expr) (ast.Expr, bool) {
	bin, ok := e.(*ast.BinaryOp)
	if !ok {
		return nil, false
	}
	switch bin.Kind {
	case ast.OpMul:
		if isIntLiteral(bin.Left, 0) || isIntLiteral(bin.Right, 0) {
			return &ast.Literal{Kind: ast.LitInt, Int: 0}, true
		}
		if isIntLiteral(bin.Left, 1) {
			return bin.Right, true
		}
		if isIntLiteral(bin.Right, 1) {
			return bin.Left, true
		}
	case ast.OpAdd:
		if isIntLiteral(bin.Left, 0) {
			return bin.Right, true
		}
		if isIntLiteral(bin.Right, 0) {
			return bin.Left, true
		}
	case ast.OpDiv:
		if isIntLiteral(bin.Right, 1) {
			return bin.Left, true
		}
	}
	return nil, false
}

func isIntLiteral(e ast.Expr, want int64) bool {
	lit, ok := e.(*ast.Literal)
	return ok && lit.Kind == ast.LitInt && lit.Int == want
}

// BooleanSimplify applies boolean algebra rewrites: double negation
// (`NOT NOT x` -> `x`), De Morgan's laws (`NOT (a AND b)` ->
// `NOT a OR NOT b`, `NOT (a OR b)` -> `NOT a AND NOT b`), and short-circuit collapse
// against a literal operand (`TRUE AND x` -> `x`, `FALSE OR x` -> `x`,
// `FALSE AND x` -> `FALSE`, `TRUE OR x` -> `TRUE`).
type BooleanSimplify struct{}

func (BooleanSimplify) Name() string { return "BooleanSimplify" }

func (BooleanSimplify) Apply(a *plan.Arena, id plan.NodeID) bool {
	return rewriteNodeExprs(a.Node(id), simplifyBoolOne)
}

func simplifyBoolOne(e ast.Expr) (ast.Expr, bool) {
	switch n := e.(type) {
	case *ast.UnaryOp:
		if n.Kind != ast.OpNot {
			return e, false
		}
		if inner, ok := n.Arg.(*ast.UnaryOp); ok && inner.Kind == ast.OpNot {
			return inner.Arg, true
		}
		if lit, ok := boolLiteral(n.Arg); ok {
			return &ast.Literal{Kind: ast.LitBool, Bool: !lit}, true
		}
		if inner, ok := n.Arg.(*ast.BinaryOp); ok && (inner.Kind == ast.OpAnd || inner.Kind == ast.OpOr) {
			var flipped ast.BinaryOpKind = ast.OpOr
			if inner.Kind == ast.OpOr {
				flipped = ast.OpAnd
			}
			return &ast.BinaryOp{
				Kind:  flipped,
				Left:  &ast.UnaryOp{Kind: ast.OpNot, Arg: inner.Left},
				Right: &ast.UnaryOp{Kind: ast.OpNot, Arg: inner.Right},
			}, true
		}

	case *ast.BinaryOp:
		switch n.Kind {
		case ast.OpAnd:
			if lit, ok := boolLiteral(n.Left); ok {
				if lit {
					return n.Right, true
				}
				return &ast.Literal{Kind: ast.LitBool, Bool: false}, true
			}
			if lit, ok := boolLiteral(n.Right); ok {
				if lit {
					return n.Left, true
				}
				return &ast.Literal{Kind: ast.LitBool, Bool: false}, true
			}
		case ast.OpOr:
			if lit, ok := boolLiteral(n.Left); ok {
				if lit {
					return &ast.Literal{Kind: ast.LitBool, Bool: true}, true
				}
				return n.Right, true
			}
			if lit, ok := boolLiteral(n.Right); ok {
				if lit {
					return &ast.Literal{Kind: ast.LitBool, Bool: true}, true
				}
				return n.Left, true
			}
		}
	}
	return e, false
}

func boolLiteral(e ast.Expr) (bool, bool) {
	lit, ok := e.(*ast.Literal)
	if !ok || lit.Kind != ast.LitBool {
		return false, false
	}
	return lit.Bool, true
}

// ConjunctionSplit rewrites a Filter whose predicate is a top-level AND
// conjunction into two stacked Filter nodes, one conjunct each. Splitting
// lets phase 2's pushdown move each conjunct independently — a predicate
// referencing only the left join input can clear a join even when its
// sibling conjunct can't.
type ConjunctionSplit struct{}

func (ConjunctionSplit) Name() string { return "ConjunctionSplit" }

func (ConjunctionSplit) Apply(a *plan.Arena, id plan.NodeID) bool {
	n := a.Node(id)
	if n.Kind != plan.FilterKind {
		return false
	}
	bin, ok := n.Predicate.(*ast.BinaryOp)
	if !ok || bin.Kind != ast.OpAnd {
		return false
	}
	// n keeps its NodeID and becomes the outer Filter (left conjunct);
	// a new Filter node is inserted between n and n's current child,
	// carrying the right conjunct.
	child := n.Children[0]
	inner := a.Add(plan.Node{
		Kind:      plan.FilterKind,
		Predicate: bin.Right,
		Children:  []plan.NodeID{child},
	})
	n.Predicate = bin.Left
	n.Children = []plan.NodeID{inner}
	return true
}
