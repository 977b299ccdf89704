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

// Phase 6: cleanup (SPEC_FULL §4.5). Runs after every structural rewrite
// has settled, to tidy up the shapes the earlier phases leave behind.

package optimizer

import (
	"coreql/internal/plan"
	"coreql/pkg/ast"
)

// CombineAdjacentFilters merges two directly-stacked Filter nodes into
// one ANDed predicate — the inverse of phase 1's ConjunctionSplit, which
// needed the conjuncts separated while pushdown could still move them
// independently. Once pushdown has settled, recombining means the
// physical Filter operator evaluates one mask pass instead of two.
type CombineAdjacentFilters struct{}

func (CombineAdjacentFilters) Name() string { return "CombineAdjacentFilters" }

func (CombineAdjacentFilters) Apply(a *plan.Arena, id plan.NodeID) bool {
	n := a.Node(id)
	if n.Kind != plan.FilterKind {
		return false
	}
	child := a.Node(n.Children[0])
	if child.Kind != plan.FilterKind {
		return false
	}
	n.Predicate = &ast.BinaryOp{Kind: ast.OpAnd, Left: n.Predicate, Right: child.Predicate}
	n.Correlated = n.Correlated || child.Correlated
	n.Children = child.Children
	return true
}

// PredicateCostOrdering reorders a Filter's top-level AND conjuncts
// cheapest-first, so evaluation fails fast on the common case instead of
// running an expensive LIKE/function check before a plain column
// comparison that would have short-circuited the whole AND.
type PredicateCostOrdering struct{}

func (PredicateCostOrdering) Name() string { return "PredicateCostOrdering" }

func (PredicateCostOrdering) Apply(a *plan.Arena, id plan.NodeID) bool {
	n := a.Node(id)
	if n.Kind != plan.FilterKind {
		return false
	}
	conjuncts := flattenAnd(n.Predicate)
	if len(conjuncts) < 2 {
		return false
	}
	costs := make([]int, len(conjuncts))
	for i, c := range conjuncts {
		costs[i] = exprCost(c)
	}
	changed := false
	for i := 1; i < len(conjuncts); i++ {
		for j := i; j > 0 && costs[j-1] > costs[j]; j-- {
			conjuncts[j-1], conjuncts[j] = conjuncts[j], conjuncts[j-1]
			costs[j-1], costs[j] = costs[j], costs[j-1]
			changed = true
		}
	}
	if !changed {
		return false
	}
	n.Predicate = rebuildAnd(conjuncts)
	return true
}

func flattenAnd(e ast.Expr) []ast.Expr {
	bin, ok := e.(*ast.BinaryOp)
	if !ok || bin.Kind != ast.OpAnd {
		return []ast.Expr{e}
	}
	return append(flattenAnd(bin.Left), flattenAnd(bin.Right)...)
}

func rebuildAnd(conjuncts []ast.Expr) ast.Expr {
	result := conjuncts[0]
	for _, c := range conjuncts[1:] {
		result = &ast.BinaryOp{Kind: ast.OpAnd, Left: result, Right: c}
	}
	return result
}

// exprCost is a static, data-free cost heuristic: column comparisons are
// cheap, LIKE and scalar functions are expensive, everything else falls
// in between. It exists purely to order conjuncts, not to estimate
// selectivity.
func exprCost(e ast.Expr) int {
	switch n := e.(type) {
	case *ast.Literal:
		return 0
	case *ast.ColumnRef:
		return 1
	case *ast.BinaryOp:
		switch n.Kind {
		case ast.OpLike:
			return 5
		case ast.OpEq, ast.OpNeq, ast.OpLt, ast.OpLte, ast.OpGt, ast.OpGte:
			return 2 + exprCost(n.Left) + exprCost(n.Right)
		default:
			return 3 + exprCost(n.Left) + exprCost(n.Right)
		}
	case *ast.UnaryOp:
		return 1 + exprCost(n.Arg)
	case *ast.In:
		return 3 + len(n.List)
	case *ast.ScalarFn, *ast.Case:
		return 6
	default:
		return 4
	}
}

// RedundantProjectionRemoval drops a Project that sits directly below
// another Project when the inner one is a pure column passthrough (no
// Star, no alias, no computed expression) and every column the outer
// Project needs is among the columns the inner one exposes. The outer
// Project then reads straight from the inner Project's own input.
type RedundantProjectionRemoval struct{}

func (RedundantProjectionRemoval) Name() string { return "RedundantProjectionRemoval" }

func (RedundantProjectionRemoval) Apply(a *plan.Arena, id plan.NodeID) bool {
	n := a.Node(id)
	if n.Kind != plan.ProjectKind {
		return false
	}
	child := a.Node(n.Children[0])
	if child.Kind != plan.ProjectKind {
		return false
	}
	exposed := map[string]bool{}
	for _, p := range child.Projections {
		if p.Star || p.Alias != "" {
			return false
		}
		ref, ok := p.Expr.(*ast.ColumnRef)
		if !ok {
			return false
		}
		exposed[ref.Name] = true
	}
	needed := map[string]bool{}
	for _, p := range n.Projections {
		columnsIn(p.Expr, needed)
	}
	for name := range needed {
		if !exposed[name] {
			return false
		}
	}
	n.Children = child.Children
	return true
}
