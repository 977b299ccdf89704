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

// Phase 4: join optimization (SPEC_FULL §4.5).

package optimizer

import (
	"coreql/internal/plan"
	"coreql/pkg/ast"
)

// CrossJoinToInner collapses `CROSS JOIN ... WHERE l.a = r.b` into a
// single InnerJoin node carrying `l.a = r.b` as its ON clause, so the
// physical builder never materializes the full cross product.
type CrossJoinToInner struct{}

func (CrossJoinToInner) Name() string { return "CrossJoinToInner" }

func (CrossJoinToInner) Apply(a *plan.Arena, id plan.NodeID) bool {
	n := a.Node(id)
	if n.Kind != plan.FilterKind || n.Correlated {
		return false
	}
	child := a.Node(n.Children[0])
	if child.Kind != plan.JoinKind || child.JoinVariant != plan.CrossJoin {
		return false
	}
	bin, ok := n.Predicate.(*ast.BinaryOp)
	if !ok || bin.Kind != ast.OpEq {
		return false
	}
	leftCol, leftOK := bin.Left.(*ast.ColumnRef)
	rightCol, rightOK := bin.Right.(*ast.ColumnRef)
	if !leftOK || !rightOK {
		return false
	}

	onLeft := map[string]bool{leftCol.Name: true}
	onRight := map[string]bool{rightCol.Name: true}
	straight := sideOwnsColumns(a, child.Children[0], onLeft) && sideOwnsColumns(a, child.Children[1], onRight)
	swapped := sideOwnsColumns(a, child.Children[0], onRight) && sideOwnsColumns(a, child.Children[1], onLeft)

	switch {
	case straight && !swapped:
		child.On = bin
	case swapped && !straight:
		child.On = &ast.BinaryOp{Kind: ast.OpEq, Left: bin.Right, Right: bin.Left}
	default:
		// Ambiguous (both sides could own either column, or neither
		// does) — leave the CROSS JOIN + Filter shape alone rather than
		// risk silently dropping the predicate.
		return false
	}

	child.JoinVariant = plan.InnerJoin
	savedID := n.ID
	*n = *child
	n.ID = savedID
	return true
}

// BuildSideReorder puts the cheaper-to-build side of an Inner/Cross join
// first (Children[0]), the convention the physical hash-join operator
// uses to decide which side to build a hash table over. Row-count
// estimation here is a static, schema-free heuristic — there is no live
// statistics collector wired into the planner yet (see DESIGN.md), so
// this reorders on a best-effort signal rather than real selectivity.
type BuildSideReorder struct{}

func (BuildSideReorder) Name() string { return "BuildSideReorder" }

func (BuildSideReorder) Apply(a *plan.Arena, id plan.NodeID) bool {
	n := a.Node(id)
	if n.Kind != plan.JoinKind {
		return false
	}
	if n.JoinVariant != plan.InnerJoin && n.JoinVariant != plan.CrossJoin {
		return false
	}
	left := estimateRows(a, n.Children[0])
	right := estimateRows(a, n.Children[1])
	if left <= right {
		return false
	}
	n.Children[0], n.Children[1] = n.Children[1], n.Children[0]
	if bin, ok := n.On.(*ast.BinaryOp); ok && bin.Kind == ast.OpEq {
		n.On = &ast.BinaryOp{Kind: ast.OpEq, Left: bin.Right, Right: bin.Left}
	}
	return true
}

// estimateRows returns a rough output-cardinality estimate for id,
// using fixed selectivity guesses rather than actual data statistics.
func estimateRows(a *plan.Arena, id plan.NodeID) int64 {
	n := a.Node(id)
	switch n.Kind {
	case plan.ScanKind:
		if n.PushedLimit != nil {
			return *n.PushedLimit
		}
		if n.TemporalRange != nil {
			return 10_000 // a bound relation is assumed narrower than an unbound one
		}
		return 100_000

	case plan.FilterKind:
		return estimateRows(a, n.Children[0])/2 + 1

	case plan.JoinKind:
		l := estimateRows(a, n.Children[0])
		r := estimateRows(a, n.Children[1])
		if l < r {
			return l
		}
		return r

	case plan.AggregateKind:
		return estimateRows(a, n.Children[0])/10 + 1

	case plan.DistinctKind:
		return estimateRows(a, n.Children[0])/2 + 1

	case plan.LimitKind:
		child := estimateRows(a, n.Children[0])
		if n.Count < child {
			return n.Count
		}
		return child

	default:
		if len(n.Children) == 0 {
			return 1
		}
		return estimateRows(a, n.Children[0])
	}
}
