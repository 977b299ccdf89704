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

import (
	"coreql/internal/plan"
	"coreql/pkg/ast"
)

// rewriteNodeExprs applies fn (bottom-up, via rewriteExpr) to every
// expression held directly by n, writing results back into n's fields.
// Reports whether anything changed.
func rewriteNodeExprs(n *plan.Node, fn exprFn) bool {
	changed := false

	rewriteOne := func(e ast.Expr) ast.Expr {
		out, c := rewriteExpr(e, fn)
		if c {
			changed = true
		}
		return out
	}

	switch n.Kind {
	case plan.FilterKind:
		n.Predicate = rewriteOne(n.Predicate)

	case plan.JoinKind:
		n.On = rewriteOne(n.On)

	case plan.ProjectKind:
		for i := range n.Projections {
			n.Projections[i].Expr = rewriteOne(n.Projections[i].Expr)
		}

	case plan.AggregateKind:
		for i := range n.GroupBy {
			n.GroupBy[i] = rewriteOne(n.GroupBy[i])
		}
		for i := range n.Aggs {
			n.Aggs[i].Expr = rewriteOne(n.Aggs[i].Expr)
		}

	case plan.SortKind:
		for i := range n.OrderBy {
			n.OrderBy[i].Expr = rewriteOne(n.OrderBy[i].Expr)
		}

	case plan.UnnestKind:
		n.UnnestExpr = rewriteOne(n.UnnestExpr)

	case plan.ScanKind:
		if n.PushedFilter != nil {
			n.PushedFilter = rewriteOne(n.PushedFilter)
		}
	}

	return changed
}

// nodePredicate returns the single expression that gates whether a node
// passes a row through, if any (Filter.Predicate or Join.On).
func nodePredicate(n *plan.Node) (ast.Expr, bool) {
	switch n.Kind {
	case plan.FilterKind:
		return n.Predicate, true
	case plan.JoinKind:
		return n.On, true
	default:
		return nil, false
	}
}
