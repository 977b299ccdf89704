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

package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"coreql/internal/temporal"
	"coreql/pkg/ast"
)

func noTemporalSupport(string) bool { return false }

func TestBuildSelectEnforcesCanonicalOrderRegardlessOfStructOrder(t *testing.T) {
	b := temporal.NewBinder(time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC), nil)
	limit := int64(5)
	offset := int64(2)
	stmt := &ast.Select{
		Limit:   &limit,
		Offset:  &offset,
		OrderBy: []ast.OrderItem{{Expr: &ast.ColumnRef{Name: "name"}}},
		Distinct: true,
		From:     []ast.TableExpr{&ast.TableRef{Name: "$planets"}},
		Where:    &ast.BinaryOp{Kind: ast.OpEq, Left: &ast.ColumnRef{Name: "id"}, Right: &ast.Literal{Kind: ast.LitInt, Int: 3}},
		Projections: []ast.SelectItem{
			{Expr: &ast.ColumnRef{Name: "name"}},
		},
	}
	arena, err := Build(stmt, b, noTemporalSupport)
	require.NoError(t, err)

	// Root must be Limit -> Offset -> Sort -> Distinct -> Project -> Filter -> Scan.
	cur := arena.Root()
	order := []Kind{LimitKind, OffsetKind, SortKind, DistinctKind, ProjectKind, FilterKind, ScanKind}
	for _, k := range order {
		n := arena.Node(cur)
		require.Equal(t, k, n.Kind)
		if len(n.Children) == 0 {
			break
		}
		cur = n.Children[0]
	}
}

func TestBuildSelectWithGroupByProducesAggregateNode(t *testing.T) {
	b := temporal.NewBinder(time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC), nil)
	stmt := &ast.Select{
		From:    []ast.TableExpr{&ast.TableRef{Name: "$satellites"}},
		GroupBy: []ast.Expr{&ast.ColumnRef{Name: "planetId"}},
		Projections: []ast.SelectItem{
			{Expr: &ast.ColumnRef{Name: "planetId"}},
			{Expr: &ast.AggregateFn{Name: "COUNT", Args: []ast.Expr{&ast.ColumnRef{Name: "id"}}}},
		},
	}
	arena, err := Build(stmt, b, noTemporalSupport)
	require.NoError(t, err)
	root := arena.Node(arena.Root())
	require.Equal(t, AggregateKind, root.Kind)
	require.Len(t, root.GroupBy, 1)
}

func TestBuildJoinProducesJoinNodeWithBothChildren(t *testing.T) {
	b := temporal.NewBinder(time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC), nil)
	stmt := &ast.Select{
		Projections: []ast.SelectItem{{Star: true}},
		From: []ast.TableExpr{
			&ast.Join{
				Kind: ast.LeftOuterJoin,
				Left: &ast.TableRef{Name: "$planets", Alias: "p"},
				Right: &ast.TableRef{Name: "$satellites", Alias: "s"},
				On: &ast.BinaryOp{
					Kind: ast.OpEq,
					Left: &ast.ColumnRef{Table: "p", Name: "id"},
					Right: &ast.ColumnRef{Table: "s", Name: "planetId"},
				},
			},
		},
	}
	arena, err := Build(stmt, b, noTemporalSupport)
	require.NoError(t, err)
	// Project -> Join
	proj := arena.Node(arena.Root())
	require.Equal(t, ProjectKind, proj.Kind)
	join := arena.Node(proj.Children[0])
	require.Equal(t, JoinKind, join.Kind)
	require.Equal(t, LeftOuterJoin, join.JoinVariant)
	require.Len(t, join.Children, 2)
}

func TestBuildTemporalRefBindsWhenSupported(t *testing.T) {
	b := temporal.NewBinder(time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC), nil)
	stmt := &ast.Select{
		Projections: []ast.SelectItem{{Star: true}},
		From:        []ast.TableExpr{&ast.TableRef{Name: "$planets", For: &ast.ForClause{Kind: ast.ForDate, Date: "1846-01-01"}}},
	}
	supports := func(name string) bool { return name == "$planets" }
	arena, err := Build(stmt, b, supports)
	require.NoError(t, err)
	proj := arena.Node(arena.Root())
	scan := arena.Node(proj.Children[0])
	require.Equal(t, ScanKind, scan.Kind)
	require.NotNil(t, scan.TemporalRange)
	require.Equal(t, "1846-01-01", temporal.FormatDate(scan.TemporalRange.Start))
}

func TestExplainRendersIndentedTreeWithCounters(t *testing.T) {
	b := temporal.NewBinder(time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC), nil)
	stmt := &ast.Select{
		Projections: []ast.SelectItem{{Star: true}},
		From:        []ast.TableExpr{&ast.TableRef{Name: "$planets"}},
	}
	arena, err := Build(stmt, b, noTemporalSupport)
	require.NoError(t, err)
	out := arena.Explain(map[string]int{"predicate_pushdown": 2})
	require.Contains(t, out, "Project")
	require.Contains(t, out, "Scan($planets")
	require.Contains(t, out, "predicate_pushdown: 2")
}

func TestValidateAcyclicPassesForFreshlyBuiltPlan(t *testing.T) {
	b := temporal.NewBinder(time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC), nil)
	stmt := &ast.Select{
		Projections: []ast.SelectItem{{Star: true}},
		From:        []ast.TableExpr{&ast.TableRef{Name: "$planets"}},
	}
	arena, err := Build(stmt, b, noTemporalSupport)
	require.NoError(t, err)
	require.NoError(t, arena.ValidateAcyclic(arena.Root()))
}
