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

package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"coreql/pkg/ast"
)

func newTestQueryContext(t *testing.T) *QueryContext {
	t.Helper()
	qc, err := New(Options{
		Today: time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return qc
}

func TestExecuteOrdersAndFiltersRows(t *testing.T) {
	qc := newTestQueryContext(t)
	stmt := &ast.Select{
		Projections: []ast.SelectItem{
			{Expr: &ast.ColumnRef{Name: "name"}},
		},
		From: []ast.TableExpr{&ast.TableRef{Name: "$planets"}},
		Where: &ast.BinaryOp{
			Kind:  ast.OpEq,
			Left:  &ast.ColumnRef{Name: "hasRings"},
			Right: &ast.Literal{Kind: ast.LitBool, Bool: true},
		},
		OrderBy: []ast.OrderItem{{Expr: &ast.ColumnRef{Name: "name"}}},
	}

	cur, err := Execute(context.Background(), qc, stmt, nil)
	require.NoError(t, err)
	defer cur.Cancel()

	rows, err := cur.FetchAll()
	require.NoError(t, err)
	require.Len(t, rows, 4) // Jupiter, Neptune, Saturn, Uranus
	require.Equal(t, "Jupiter", rows[0]["name"])
	require.Equal(t, "Neptune", rows[1]["name"])
	require.Equal(t, "Saturn", rows[2]["name"])
	require.Equal(t, "Uranus", rows[3]["name"])
}

func TestExecuteLeftOuterJoinNullFillsUnmatchedRight(t *testing.T) {
	qc := newTestQueryContext(t)
	stmt := &ast.Select{
		Projections: []ast.SelectItem{
			{Expr: &ast.ColumnRef{Table: "p", Name: "name"}, Alias: "planet"},
			{Expr: &ast.ColumnRef{Table: "s", Name: "name"}, Alias: "moon"},
		},
		From: []ast.TableExpr{
			&ast.Join{
				Kind: ast.LeftOuterJoin,
				Left: &ast.TableRef{Name: "$planets", Alias: "p"},
				Right: &ast.TableRef{Name: "$satellites", Alias: "s"},
				On: &ast.BinaryOp{
					Kind:  ast.OpEq,
					Left:  &ast.ColumnRef{Table: "p", Name: "id"},
					Right: &ast.ColumnRef{Table: "s", Name: "planetId"},
				},
			},
		},
		Where: &ast.BinaryOp{
			Kind:  ast.OpEq,
			Left:  &ast.ColumnRef{Table: "p", Name: "name"},
			Right: &ast.Literal{Kind: ast.LitString, Str: "Mercury"},
		},
	}

	cur, err := Execute(context.Background(), qc, stmt, nil)
	require.NoError(t, err)
	defer cur.Cancel()

	rows, err := cur.FetchAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Mercury", rows[0]["planet"])
	require.Nil(t, rows[0]["moon"])
}

func TestExecuteSelfJoinOnBooleanKeyCountsBothPartitions(t *testing.T) {
	qc := newTestQueryContext(t)
	// $planets has 4 ringed and 5 unringed rows; an inner self-join on
	// hasRings pairs every ringed planet with every ringed planet, itself
	// included (4x4 = 16 pairs), and every unringed planet with every
	// unringed planet (5x5 = 25 pairs) — a hash-join build/probe correctness check that
	// doesn't depend on a connector-provided join key.
	stmt := &ast.Select{
		Projections: []ast.SelectItem{{Star: true}},
		From: []ast.TableExpr{
			&ast.Join{
				Kind: ast.InnerJoin,
				Left: &ast.TableRef{Name: "$planets", Alias: "a"},
				Right: &ast.TableRef{Name: "$planets", Alias: "b"},
				On: &ast.BinaryOp{
					Kind:  ast.OpEq,
					Left:  &ast.ColumnRef{Table: "a", Name: "hasRings"},
					Right: &ast.ColumnRef{Table: "b", Name: "hasRings"},
				},
			},
		},
	}

	cur, err := Execute(context.Background(), qc, stmt, nil)
	require.NoError(t, err)
	defer cur.Cancel()

	rows, err := cur.FetchAll()
	require.NoError(t, err)
	require.Len(t, rows, 16+25)
}

func TestExecuteOrderByLimitFusesToTopN(t *testing.T) {
	qc := newTestQueryContext(t)
	limit := int64(3)
	stmt := &ast.Select{
		Projections: []ast.SelectItem{{Expr: &ast.ColumnRef{Name: "name"}}},
		From:        []ast.TableExpr{&ast.TableRef{Name: "$satellites"}},
		OrderBy:     []ast.OrderItem{{Expr: &ast.ColumnRef{Name: "radiusKm"}, Desc: true}},
		Limit:       &limit,
	}

	cur, err := Execute(context.Background(), qc, stmt, nil)
	require.NoError(t, err)
	defer cur.Cancel()

	rows, err := cur.FetchAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "Ganymede", rows[0]["name"])
	require.Equal(t, "Titan", rows[1]["name"])
	require.Equal(t, "Callisto", rows[2]["name"])
}

func TestExecuteForDateBindsTemporalRange(t *testing.T) {
	qc := newTestQueryContext(t)
	stmt := &ast.Select{
		Projections: []ast.SelectItem{{Star: true}},
		From: []ast.TableExpr{&ast.TableRef{
			Name: "$planets",
			For:  &ast.ForClause{Kind: ast.ForDate, Date: "1846-01-01"},
		}},
	}

	cur, err := Execute(context.Background(), qc, stmt, nil)
	require.NoError(t, err)
	defer cur.Cancel()

	rows, err := cur.FetchAll()
	require.NoError(t, err)
	// Mercury..Neptune (7 rows): Neptune was "known as of" 1846-01-01
	// exactly, Uranus (1850) and Pluto (1930) are not yet visible.
	require.Len(t, rows, 7)
	for _, r := range rows {
		require.NotEqual(t, "Uranus", r["name"])
		require.NotEqual(t, "Pluto", r["name"])
	}
}

func TestExecuteDistinctOverCompositeKey(t *testing.T) {
	qc := newTestQueryContext(t)
	stmt := &ast.Select{
		Distinct: true,
		Projections: []ast.SelectItem{
			{Expr: &ast.ColumnRef{Name: "missionCount"}},
			{Expr: &ast.ColumnRef{Name: "active"}},
		},
		From: []ast.TableExpr{&ast.TableRef{Name: "$astronauts"}},
	}

	cur, err := Execute(context.Background(), qc, stmt, nil)
	require.NoError(t, err)
	defer cur.Cancel()

	rows, err := cur.FetchAll()
	require.NoError(t, err)
	// 20 rows collapse to 7 distinct (missionCount, active) pairs.
	require.Len(t, rows, 7)

	seen := make(map[[2]any]bool)
	for _, r := range rows {
		key := [2]any{r["missionCount"], r["active"]}
		require.False(t, seen[key], "duplicate composite key %v survived DISTINCT", key)
		seen[key] = true
	}
}

func TestExecuteExplainShowsScanAndNoFilterNodeAfterPushdown(t *testing.T) {
	qc := newTestQueryContext(t)
	stmt := &ast.Explain{Stmt: &ast.Select{
		Projections: []ast.SelectItem{{Expr: &ast.ColumnRef{Name: "name"}}},
		From:        []ast.TableExpr{&ast.TableRef{Name: "$planets"}},
		Where: &ast.BinaryOp{
			Kind:  ast.OpEq,
			Left:  &ast.ColumnRef{Name: "hasRings"},
			Right: &ast.Literal{Kind: ast.LitBool, Bool: true},
		},
	}}

	cur, err := Execute(context.Background(), qc, stmt, nil)
	require.NoError(t, err)
	defer cur.Cancel()

	text := cur.Explain(false)
	require.Contains(t, text, "Scan($planets")
	require.NotContains(t, text, "Filter\n")
}

func TestExecuteBindsParametersBeforePlanning(t *testing.T) {
	qc := newTestQueryContext(t)
	stmt := &ast.Select{
		Projections: []ast.SelectItem{{Expr: &ast.ColumnRef{Name: "name"}}},
		From:        []ast.TableExpr{&ast.TableRef{Name: "$planets"}},
		Where: &ast.BinaryOp{
			Kind:  ast.OpEq,
			Left:  &ast.ColumnRef{Name: "name"},
			Right: &ast.Parameter{Name: "planet"},
		},
	}

	cur, err := Execute(context.Background(), qc, stmt, map[string]any{"planet": "Earth"})
	require.NoError(t, err)
	defer cur.Cancel()

	rows, err := cur.FetchAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Earth", rows[0]["name"])
}

func TestExecuteToArrowExportsRemainingRows(t *testing.T) {
	qc := newTestQueryContext(t)
	stmt := &ast.Select{
		Projections: []ast.SelectItem{
			{Expr: &ast.ColumnRef{Name: "name"}},
			{Expr: &ast.ColumnRef{Name: "massEarths"}},
		},
		From:    []ast.TableExpr{&ast.TableRef{Name: "$planets"}},
		OrderBy: []ast.OrderItem{{Expr: &ast.ColumnRef{Name: "id"}}},
	}

	cur, err := Execute(context.Background(), qc, stmt, nil)
	require.NoError(t, err)
	defer cur.Cancel()

	first, err := cur.FetchOne()
	require.NoError(t, err)
	require.Equal(t, "Mercury", first["name"])

	table, err := cur.ToArrow()
	require.NoError(t, err)
	defer table.Release()
	require.Equal(t, int64(8), table.NumRows()) // 9 planets minus the one already fetched
}

func TestExecutePlainExplainNeverBuildsPhysicalOperators(t *testing.T) {
	qc := newTestQueryContext(t)
	stmt := &ast.Explain{Stmt: &ast.Select{
		Projections: []ast.SelectItem{{Star: true}},
		From:        []ast.TableExpr{&ast.TableRef{Name: "$planets"}},
	}}

	cur, err := Execute(context.Background(), qc, stmt, nil)
	require.NoError(t, err)
	defer cur.Cancel()

	text := cur.Explain(false)
	require.True(t, strings.Contains(text, "Scan($planets"))

	rows, err := cur.FetchAll()
	require.NoError(t, err)
	require.Empty(t, rows)

	_, err = cur.ToArrow()
	require.Error(t, err)
}
