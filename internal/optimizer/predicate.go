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

// Phase 2: predicate optimization (SPEC_FULL §4.5).

package optimizer

import (
	"coreql/internal/plan"
	"coreql/pkg/ast"
)

// CorrelatedFilterExtraction marks a Filter whose predicate references a
// subquery so that PredicatePushdown never separates it from the join or
// scan it must stay paired with; phase 1's ConjunctionSplit has already
// isolated it into its own single-conjunct Filter.
type CorrelatedFilterExtraction struct{}

func (CorrelatedFilterExtraction) Name() string { return "CorrelatedFilterExtraction" }

func (CorrelatedFilterExtraction) Apply(a *plan.Arena, id plan.NodeID) bool {
	n := a.Node(id)
	if n.Kind != plan.FilterKind || n.Correlated {
		return false
	}
	if containsSubquery(n.Predicate) {
		n.Correlated = true
		return true
	}
	return false
}

func containsSubquery(e ast.Expr) bool {
	found := false
	walkExpr(e, func(x ast.Expr) {
		if in, ok := x.(*ast.In); ok && in.Subquery != nil {
			found = true
		}
	})
	return found
}

// walkExpr visits every node of e, including e itself.
func walkExpr(e ast.Expr, visit func(ast.Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch n := e.(type) {
	case *ast.ScalarFn:
		for _, a := range n.Args {
			walkExpr(a, visit)
		}
	case *ast.AggregateFn:
		for _, a := range n.Args {
			walkExpr(a, visit)
		}
	case *ast.BinaryOp:
		walkExpr(n.Left, visit)
		walkExpr(n.Right, visit)
	case *ast.UnaryOp:
		walkExpr(n.Arg, visit)
	case *ast.Case:
		for _, w := range n.Whens {
			walkExpr(w.When, visit)
			walkExpr(w.Then, visit)
		}
		walkExpr(n.Else, visit)
	case *ast.In:
		walkExpr(n.Expr, visit)
		for _, item := range n.List {
			walkExpr(item, visit)
		}
	case *ast.Cast:
		walkExpr(n.Expr, visit)
	case *ast.Try:
		walkExpr(n.Expr, visit)
	}
}

// PredicateRewrite normalizes predicate shapes so later phases (and the
// fused-kernel dispatch in internal/expr) see a canonical form:
// STARTS_WITH(col, 'prefix') becomes `col LIKE 'prefix%'`, and negated
// comparisons are flipped to their direct form (`NOT (a = b)` -> `a != b`).
type PredicateRewrite struct{}

func (PredicateRewrite) Name() string { return "PredicateRewrite" }

func (PredicateRewrite) Apply(a *plan.Arena, id plan.NodeID) bool {
	return rewriteNodeExprs(a.Node(id), rewritePredicateOne)
}

func rewritePredicateOne(e ast.Expr) (ast.Expr, bool) {
	switch n := e.(type) {
	case *ast.ScalarFn:
		if len(n.Args) == 2 && isUpperName(n.Name, "STARTS_WITH") {
			if lit, ok := n.Args[1].(*ast.Literal); ok && lit.Kind == ast.LitString {
				return &ast.BinaryOp{
					Kind:  ast.OpLike,
					Left:  n.Args[0],
					Right: &ast.Literal{Kind: ast.LitString, Str: lit.Str + "%"},
				}, true
			}
		}

	case *ast.UnaryOp:
		if n.Kind != ast.OpNot {
			return e, false
		}
		if bin, ok := n.Arg.(*ast.BinaryOp); ok {
			if flipped, ok := negateComparison(bin.Kind); ok {
				return &ast.BinaryOp{Kind: flipped, Left: bin.Left, Right: bin.Right}, true
			}
		}
	}
	return e, false
}

func isUpperName(name, want string) bool {
	if len(name) != len(want) {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c != want[i] {
			return false
		}
	}
	return true
}

func negateComparison(k ast.BinaryOpKind) (ast.BinaryOpKind, bool) {
	switch k {
	case ast.OpEq:
		return ast.OpNeq, true
	case ast.OpNeq:
		return ast.OpEq, true
	case ast.OpLt:
		return ast.OpGte, true
	case ast.OpLte:
		return ast.OpGt, true
	case ast.OpGt:
		return ast.OpLte, true
	case ast.OpGte:
		return ast.OpLt, true
	default:
		return 0, false
	}
}

// PredicatePushdown moves a Filter as close to its Scan as the tree shape
// allows: below a Project (Project's own computed columns aside), below
// the Join side it solely depends on, and finally into Scan.PushedFilter
// when it references nothing but that scan's own columns. A Correlated
// filter never moves past a Join, since its correlation context lives
// there.
type PredicatePushdown struct{}

func (PredicatePushdown) Name() string { return "PredicatePushdown" }

func (PredicatePushdown) Apply(a *plan.Arena, id plan.NodeID) bool {
	n := a.Node(id)
	if n.Kind != plan.FilterKind {
		return false
	}
	child := a.Node(n.Children[0])

	switch child.Kind {
	case plan.ProjectKind:
		return pushFilterPastProject(a, n, child)
	case plan.JoinKind:
		if n.Correlated {
			return false
		}
		return pushFilterIntoJoinSide(a, n, child)
	case plan.ScanKind:
		if n.Correlated {
			return false
		}
		return pushFilterIntoScan(a, n, child)
	}
	return false
}

// pushFilterPastProject swaps Filter and Project when the predicate only
// references columns the Project passes through unrenamed (i.e. it
// doesn't depend on a computed expression), so the filter runs on fewer,
// pre-projection columns but — more importantly — can keep moving toward
// the scan on the next pass.
func pushFilterPastProject(a *plan.Arena, filter, project *plan.Node) bool {
	if dependsOnComputedColumn(filter.Predicate, project.Projections) {
		return false
	}
	grandchild := project.Children[0]
	newFilter := a.Add(plan.Node{
		Kind:       plan.FilterKind,
		Predicate:  filter.Predicate,
		Correlated: filter.Correlated,
		Children:   []plan.NodeID{grandchild},
	})
	filter.Kind = plan.ProjectKind
	filter.Projections = project.Projections
	filter.Predicate = nil
	filter.Correlated = false
	filter.Children = []plan.NodeID{newFilter}
	return true
}

func dependsOnComputedColumn(predicate ast.Expr, projections []ast.SelectItem) bool {
	computed := map[string]bool{}
	for _, p := range projections {
		if p.Alias != "" {
			if ref, isRef := p.Expr.(*ast.ColumnRef); !isRef || ref.Name != p.Alias {
				computed[p.Alias] = true
			}
		}
	}
	if len(computed) == 0 {
		return false
	}
	used := map[string]bool{}
	columnsIn(predicate, used)
	for col := range used {
		if computed[col] {
			return true
		}
	}
	return false
}

// pushFilterIntoJoinSide moves a Filter below a Join when the predicate
// references only one side's columns, determined by the relation
// alias(es) reachable under that side.
func pushFilterIntoJoinSide(a *plan.Arena, filter, join *plan.Node) bool {
	used := map[string]bool{}
	columnsIn(filter.Predicate, used)
	if len(used) == 0 {
		return false
	}
	left, right := join.Children[0], join.Children[1]
	if sideOwnsColumns(a, left, used) {
		return insertFilterAboveChild(a, join, 0, filter)
	}
	if sideOwnsColumns(a, right, used) {
		return insertFilterAboveChild(a, join, 1, filter)
	}
	return false
}

func insertFilterAboveChild(a *plan.Arena, join *plan.Node, slot int, filter *plan.Node) bool {
	child := join.Children[slot]
	newFilter := a.Add(plan.Node{
		Kind:      plan.FilterKind,
		Predicate: filter.Predicate,
		Children:  []plan.NodeID{child},
	})
	join.Children[slot] = newFilter
	// The Filter's parent still points at filter.ID, so filter.ID must
	// survive the copy: take over Join's contents in place, preserving
	// our own identity. join's original arena slot becomes unreferenced
	// garbage, which the append-only arena simply leaves behind.
	id := filter.ID
	*filter = *join
	filter.ID = id
	return true
}

// sideOwnsColumns reports whether every name in used is produced
// somewhere under root (a conservative approximation: it checks whether
// the name appears as a Scan/Project output anywhere in the subtree).
func sideOwnsColumns(a *plan.Arena, root plan.NodeID, used map[string]bool) bool {
	produced := map[string]bool{}
	a.Walk(root, func(n *plan.Node) bool {
		switch n.Kind {
		case plan.ScanKind:
			if len(n.ColumnMask) == 0 {
				// unrestricted scan: assume it can produce anything not
				// otherwise accounted for elsewhere in the tree.
				for name := range used {
					produced[name] = true
				}
			} else {
				for _, c := range n.ColumnMask {
					produced[c] = true
				}
			}
		case plan.ProjectKind:
			for _, p := range n.Projections {
				if ref, ok := p.Expr.(*ast.ColumnRef); ok {
					produced[ref.Name] = true
				} else if p.Alias != "" {
					produced[p.Alias] = true
				}
			}
		}
		return true
	})
	for name := range used {
		if !produced[name] {
			return false
		}
	}
	return true
}

// pushFilterIntoScan folds a Filter directly above a Scan into the
// Scan's PushedFilter, letting the connector (or the physical Scan
// operator) apply it at the earliest possible point.
func pushFilterIntoScan(a *plan.Arena, filter, scan *plan.Node) bool {
	if scan.PushedFilter != nil {
		scan.PushedFilter = &ast.BinaryOp{Kind: ast.OpAnd, Left: scan.PushedFilter, Right: filter.Predicate}
	} else {
		scan.PushedFilter = filter.Predicate
	}
	id := filter.ID
	*filter = *scan
	filter.ID = id
	return true
}
