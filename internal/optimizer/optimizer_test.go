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
	"testing"

	"github.com/stretchr/testify/require"

	"coreql/internal/plan"
	"coreql/pkg/ast"
)

func TestConstantFoldCollapsesArithmeticAndIdentities(t *testing.T) {
	a := plan.NewArena()
	scan := a.Add(plan.Node{Kind: plan.ScanKind, Relation: "$planets"})
	filter := a.Add(plan.Node{
		Kind: plan.FilterKind,
		// id = (1 + 2) AND massEarths * 1 > 0
		Predicate: &ast.BinaryOp{
			Kind: ast.OpAnd,
			Left: &ast.BinaryOp{
				Kind: ast.OpEq,
				Left: &ast.ColumnRef{Name: "id"},
				Right: &ast.BinaryOp{
					Kind:  ast.OpAdd,
					Left:  &ast.Literal{Kind: ast.LitInt, Int: 1},
					Right: &ast.Literal{Kind: ast.LitInt, Int: 2},
				},
			},
			Right: &ast.BinaryOp{
				Kind: ast.OpGt,
				Left: &ast.BinaryOp{
					Kind:  ast.OpMul,
					Left:  &ast.ColumnRef{Name: "massEarths"},
					Right: &ast.Literal{Kind: ast.LitInt, Int: 1},
				},
				Right: &ast.Literal{Kind: ast.LitInt, Int: 0},
			},
		},
		Children: []plan.NodeID{scan},
	})
	a.SetRoot(filter)

	changed := ConstantFold{}.Apply(a, filter)
	require.True(t, changed)

	pred := a.Node(filter).Predicate.(*ast.BinaryOp)
	rightCmp := pred.Left.(*ast.BinaryOp)
	require.Equal(t, int64(3), rightCmp.Right.(*ast.Literal).Int)
	leftOfAnd := pred.Right.(*ast.BinaryOp)
	require.IsType(t, &ast.ColumnRef{}, leftOfAnd.Left)
}

func TestBooleanSimplifyCollapsesLiteralAndDoubleNegation(t *testing.T) {
	a := plan.NewArena()
	scan := a.Add(plan.Node{Kind: plan.ScanKind, Relation: "$planets"})
	filter := a.Add(plan.Node{
		Kind: plan.FilterKind,
		Predicate: &ast.BinaryOp{
			Kind: ast.OpAnd,
			Left: &ast.Literal{Kind: ast.LitBool, Bool: true},
			Right: &ast.UnaryOp{
				Kind: ast.OpNot,
				Arg:  &ast.UnaryOp{Kind: ast.OpNot, Arg: &ast.ColumnRef{Name: "hasRings"}},
			},
		},
		Children: []plan.NodeID{scan},
	})
	a.SetRoot(filter)

	changed := BooleanSimplify{}.Apply(a, filter)
	require.True(t, changed)
	require.Equal(t, &ast.ColumnRef{Name: "hasRings"}, a.Node(filter).Predicate)
}

func TestConjunctionSplitThenCombineRoundTrips(t *testing.T) {
	a := plan.NewArena()
	scan := a.Add(plan.Node{Kind: plan.ScanKind, Relation: "$planets"})
	left := &ast.BinaryOp{Kind: ast.OpEq, Left: &ast.ColumnRef{Name: "id"}, Right: &ast.Literal{Kind: ast.LitInt, Int: 1}}
	right := &ast.BinaryOp{Kind: ast.OpEq, Left: &ast.ColumnRef{Name: "name"}, Right: &ast.Literal{Kind: ast.LitString, Str: "Mercury"}}
	filter := a.Add(plan.Node{
		Kind:      plan.FilterKind,
		Predicate: &ast.BinaryOp{Kind: ast.OpAnd, Left: left, Right: right},
		Children:  []plan.NodeID{scan},
	})
	a.SetRoot(filter)

	require.True(t, ConjunctionSplit{}.Apply(a, filter))
	require.Equal(t, left, a.Node(filter).Predicate)
	require.Len(t, a.Node(filter).Children, 1)
	inner := a.Node(filter).Children[0]
	require.Equal(t, plan.FilterKind, a.Node(inner).Kind)
	require.Equal(t, right, a.Node(inner).Predicate)
	require.Equal(t, scan, a.Node(inner).Children[0])

	require.True(t, CombineAdjacentFilters{}.Apply(a, filter))
	combined := a.Node(filter).Predicate.(*ast.BinaryOp)
	require.Equal(t, ast.OpAnd, combined.Kind)
	require.Equal(t, left, combined.Left)
	require.Equal(t, right, combined.Right)
	require.Equal(t, scan, a.Node(filter).Children[0])
}

func TestPredicatePushdownFoldsIntoScan(t *testing.T) {
	a := plan.NewArena()
	scan := a.Add(plan.Node{Kind: plan.ScanKind, Relation: "$planets"})
	filter := a.Add(plan.Node{
		Kind:      plan.FilterKind,
		Predicate: &ast.BinaryOp{Kind: ast.OpEq, Left: &ast.ColumnRef{Name: "id"}, Right: &ast.Literal{Kind: ast.LitInt, Int: 3}},
		Children:  []plan.NodeID{scan},
	})
	a.SetRoot(filter)

	changed := PredicatePushdown{}.Apply(a, filter)
	require.True(t, changed)
	require.Equal(t, plan.ScanKind, a.Node(filter).Kind)
	require.NotNil(t, a.Node(filter).PushedFilter)
}

func TestPredicatePushdownLeavesCorrelatedFilterAtJoin(t *testing.T) {
	a := plan.NewArena()
	left := a.Add(plan.Node{Kind: plan.ScanKind, Relation: "$planets"})
	right := a.Add(plan.Node{Kind: plan.ScanKind, Relation: "$satellites"})
	join := a.Add(plan.Node{Kind: plan.JoinKind, JoinVariant: plan.InnerJoin, Children: []plan.NodeID{left, right}})
	filter := a.Add(plan.Node{
		Kind:       plan.FilterKind,
		Correlated: true,
		Predicate:  &ast.In{Expr: &ast.ColumnRef{Name: "id"}, Subquery: &ast.Select{}},
		Children:   []plan.NodeID{join},
	})
	a.SetRoot(filter)

	changed := PredicatePushdown{}.Apply(a, filter)
	require.False(t, changed)
	require.Equal(t, plan.FilterKind, a.Node(filter).Kind)
}

func TestProjectionPushdownNarrowsScanColumnMask(t *testing.T) {
	a := plan.NewArena()
	scan := a.Add(plan.Node{Kind: plan.ScanKind, Relation: "$planets"})
	filter := a.Add(plan.Node{
		Kind:      plan.FilterKind,
		Predicate: &ast.BinaryOp{Kind: ast.OpGt, Left: &ast.ColumnRef{Name: "massEarths"}, Right: &ast.Literal{Kind: ast.LitInt, Int: 1}},
		Children:  []plan.NodeID{scan},
	})
	project := a.Add(plan.Node{
		Kind:        plan.ProjectKind,
		Projections: []ast.SelectItem{{Expr: &ast.ColumnRef{Name: "name"}}},
		Children:    []plan.NodeID{filter},
	})
	a.SetRoot(project)

	changed := ProjectionPushdown{}.Apply(a, project)
	require.True(t, changed)
	require.Equal(t, []string{"massEarths", "name"}, a.Node(scan).ColumnMask)
}

func TestProjectionPushdownLeavesScanUnmaskedForStar(t *testing.T) {
	a := plan.NewArena()
	scan := a.Add(plan.Node{Kind: plan.ScanKind, Relation: "$planets", ColumnMask: []string{"stale"}})
	project := a.Add(plan.Node{
		Kind:        plan.ProjectKind,
		Projections: []ast.SelectItem{{Star: true}},
		Children:    []plan.NodeID{scan},
	})
	a.SetRoot(project)

	changed := ProjectionPushdown{}.Apply(a, project)
	require.True(t, changed)
	require.Nil(t, a.Node(scan).ColumnMask)
}

func TestCrossJoinToInnerCollapsesEquiFilter(t *testing.T) {
	a := plan.NewArena()
	left := a.Add(plan.Node{Kind: plan.ScanKind, Relation: "$planets", ColumnMask: []string{"id"}})
	right := a.Add(plan.Node{Kind: plan.ScanKind, Relation: "$satellites", ColumnMask: []string{"planetId"}})
	join := a.Add(plan.Node{Kind: plan.JoinKind, JoinVariant: plan.CrossJoin, Children: []plan.NodeID{left, right}})
	filter := a.Add(plan.Node{
		Kind:      plan.FilterKind,
		Predicate: &ast.BinaryOp{Kind: ast.OpEq, Left: &ast.ColumnRef{Name: "id"}, Right: &ast.ColumnRef{Name: "planetId"}},
		Children:  []plan.NodeID{join},
	})
	a.SetRoot(filter)

	changed := CrossJoinToInner{}.Apply(a, filter)
	require.True(t, changed)
	out := a.Node(filter)
	require.Equal(t, plan.JoinKind, out.Kind)
	require.Equal(t, plan.InnerJoin, out.JoinVariant)
	require.Equal(t, []plan.NodeID{left, right}, out.Children)
}

func TestSortLimitFusionSetsFuseAndCount(t *testing.T) {
	a := plan.NewArena()
	scan := a.Add(plan.Node{Kind: plan.ScanKind, Relation: "$satellites"})
	sort := a.Add(plan.Node{
		Kind:     plan.SortKind,
		OrderBy:  []ast.OrderItem{{Expr: &ast.ColumnRef{Name: "radiusKm"}, Desc: true}},
		Children: []plan.NodeID{scan},
	})
	offset := a.Add(plan.Node{Kind: plan.OffsetKind, Count: 2, Children: []plan.NodeID{sort}})
	limit := a.Add(plan.Node{Kind: plan.LimitKind, Count: 3, Children: []plan.NodeID{offset}})
	a.SetRoot(limit)

	changed := SortLimitFusion{}.Apply(a, limit)
	require.True(t, changed)
	require.True(t, a.Node(sort).FuseLimit)
	require.Equal(t, int64(5), a.Node(sort).Count)
}

func TestLimitPushdownReachesScanThroughProject(t *testing.T) {
	a := plan.NewArena()
	scan := a.Add(plan.Node{Kind: plan.ScanKind, Relation: "$planets"})
	project := a.Add(plan.Node{
		Kind:        plan.ProjectKind,
		Projections: []ast.SelectItem{{Expr: &ast.ColumnRef{Name: "name"}}},
		Children:    []plan.NodeID{scan},
	})
	limit := a.Add(plan.Node{Kind: plan.LimitKind, Count: 5, Children: []plan.NodeID{project}})
	a.SetRoot(limit)

	changed := LimitPushdown{}.Apply(a, limit)
	require.True(t, changed)
	require.NotNil(t, a.Node(scan).PushedLimit)
	require.Equal(t, int64(5), *a.Node(scan).PushedLimit)
}

func TestPredicateCostOrderingPutsColumnComparisonsBeforeLike(t *testing.T) {
	a := plan.NewArena()
	scan := a.Add(plan.Node{Kind: plan.ScanKind, Relation: "$planets"})
	likeClause := &ast.BinaryOp{Kind: ast.OpLike, Left: &ast.ColumnRef{Name: "name"}, Right: &ast.Literal{Kind: ast.LitString, Str: "M%"}}
	eqClause := &ast.BinaryOp{Kind: ast.OpEq, Left: &ast.ColumnRef{Name: "id"}, Right: &ast.Literal{Kind: ast.LitInt, Int: 1}}
	filter := a.Add(plan.Node{
		Kind:      plan.FilterKind,
		Predicate: &ast.BinaryOp{Kind: ast.OpAnd, Left: likeClause, Right: eqClause},
		Children:  []plan.NodeID{scan},
	})
	a.SetRoot(filter)

	changed := PredicateCostOrdering{}.Apply(a, filter)
	require.True(t, changed)
	pred := a.Node(filter).Predicate.(*ast.BinaryOp)
	require.Equal(t, eqClause, pred.Left)
	require.Equal(t, likeClause, pred.Right)
}

func TestRedundantProjectionRemovalSkipsOverPassthroughProject(t *testing.T) {
	a := plan.NewArena()
	scan := a.Add(plan.Node{Kind: plan.ScanKind, Relation: "$planets"})
	inner := a.Add(plan.Node{
		Kind: plan.ProjectKind,
		Projections: []ast.SelectItem{
			{Expr: &ast.ColumnRef{Name: "id"}},
			{Expr: &ast.ColumnRef{Name: "name"}},
		},
		Children: []plan.NodeID{scan},
	})
	outer := a.Add(plan.Node{
		Kind:        plan.ProjectKind,
		Projections: []ast.SelectItem{{Expr: &ast.ColumnRef{Name: "name"}}},
		Children:    []plan.NodeID{inner},
	})
	a.SetRoot(outer)

	changed := RedundantProjectionRemoval{}.Apply(a, outer)
	require.True(t, changed)
	require.Equal(t, scan, a.Node(outer).Children[0])
}

func TestRunFixedPointPipelineCollapsesCrossJoinAndPushesDownEverything(t *testing.T) {
	a := plan.NewArena()
	planets := a.Add(plan.Node{Kind: plan.ScanKind, Relation: "$planets"})
	satellites := a.Add(plan.Node{Kind: plan.ScanKind, Relation: "$satellites"})
	join := a.Add(plan.Node{Kind: plan.JoinKind, JoinVariant: plan.CrossJoin, Children: []plan.NodeID{planets, satellites}})
	filter := a.Add(plan.Node{
		Kind:      plan.FilterKind,
		Predicate: &ast.BinaryOp{Kind: ast.OpEq, Left: &ast.ColumnRef{Name: "id"}, Right: &ast.ColumnRef{Name: "planetId"}},
		Children:  []plan.NodeID{join},
	})
	project := a.Add(plan.Node{
		Kind:        plan.ProjectKind,
		Projections: []ast.SelectItem{{Expr: &ast.ColumnRef{Name: "name"}}},
		Children:    []plan.NodeID{filter},
	})
	a.SetRoot(project)

	result, err := Run(a)
	require.NoError(t, err)
	require.Greater(t, result.Counters["CrossJoinToInner"], 0)

	root := a.Node(a.Root())
	require.Equal(t, plan.ProjectKind, root.Kind)
	joinNode := a.Node(root.Children[0])
	require.Equal(t, plan.JoinKind, joinNode.Kind)
	require.Equal(t, plan.InnerJoin, joinNode.JoinVariant)
	require.NoError(t, a.ValidateAcyclic(a.Root()))
}
