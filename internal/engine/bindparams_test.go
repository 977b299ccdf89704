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
	"testing"

	"github.com/stretchr/testify/require"

	"coreql/pkg/ast"
	"coreql/pkg/cqlerr"
)

func TestBindParametersReplacesParameterWithLiteral(t *testing.T) {
	stmt := &ast.Select{
		Projections: []ast.SelectItem{{Expr: &ast.ColumnRef{Name: "name"}}},
		From:        []ast.TableExpr{&ast.TableRef{Name: "$planets"}},
		Where: &ast.BinaryOp{
			Kind:  ast.OpEq,
			Left:  &ast.ColumnRef{Name: "id"},
			Right: &ast.Parameter{Name: "id"},
		},
	}

	bound, err := bindParameters(stmt, map[string]any{"id": int64(3)})
	require.NoError(t, err)

	sel := bound.(*ast.Select)
	where := sel.Where.(*ast.BinaryOp)
	lit := where.Right.(*ast.Literal)
	require.Equal(t, ast.LitInt, lit.Kind)
	require.Equal(t, int64(3), lit.Int)

	// The input tree must be left untouched so a caller can re-bind it.
	originalWhere := stmt.Where.(*ast.BinaryOp)
	_, stillParam := originalWhere.Right.(*ast.Parameter)
	require.True(t, stillParam)
}

func TestBindParametersMissingNameErrors(t *testing.T) {
	stmt := &ast.Select{
		Projections: []ast.SelectItem{{Star: true}},
		From:        []ast.TableExpr{&ast.TableRef{Name: "$planets"}},
		Where: &ast.BinaryOp{
			Kind:  ast.OpEq,
			Left:  &ast.ColumnRef{Name: "id"},
			Right: &ast.Parameter{Name: "missing"},
		},
	}

	_, err := bindParameters(stmt, map[string]any{"other": int64(1)})
	require.Error(t, err)
	require.True(t, cqlerr.Is(err, cqlerr.InvalidInput))
}

func TestBindParametersNoopWhenNoParamsGiven(t *testing.T) {
	stmt := &ast.Select{
		Projections: []ast.SelectItem{{Star: true}},
		From:        []ast.TableExpr{&ast.TableRef{Name: "$planets"}},
	}
	bound, err := bindParameters(stmt, nil)
	require.NoError(t, err)
	require.Same(t, ast.Statement(stmt), bound)
}

func TestBindParametersWalksJoinAndSubqueryTableExprs(t *testing.T) {
	stmt := &ast.With{
		CTEs: []ast.CTE{{
			Name: "ringed",
			Query: &ast.Select{
				Projections: []ast.SelectItem{{Star: true}},
				From:        []ast.TableExpr{&ast.TableRef{Name: "$planets"}},
				Where: &ast.BinaryOp{
					Kind:  ast.OpEq,
					Left:  &ast.ColumnRef{Name: "hasRings"},
					Right: &ast.Parameter{Name: "rings"},
				},
			},
		}},
		Body: &ast.Select{
			Projections: []ast.SelectItem{{Star: true}},
			From: []ast.TableExpr{
				&ast.Join{
					Kind: ast.InnerJoin,
					Left: &ast.TableRef{Name: "ringed"},
					Right: &ast.SubqueryAlias{
						Alias: "s",
						Query: &ast.Select{
							Projections: []ast.SelectItem{{Star: true}},
							From:        []ast.TableExpr{&ast.TableRef{Name: "$satellites"}},
							Where: &ast.BinaryOp{
								Kind:  ast.OpGt,
								Left:  &ast.ColumnRef{Name: "radiusKm"},
								Right: &ast.Parameter{Name: "minRadius"},
							},
						},
					},
					On: &ast.Literal{Kind: ast.LitBool, Bool: true},
				},
			},
		},
	}

	bound, err := bindParameters(stmt, map[string]any{"rings": true, "minRadius": 1000.0})
	require.NoError(t, err)

	with := bound.(*ast.With)
	cteWhere := with.CTEs[0].Query.(*ast.Select).Where.(*ast.BinaryOp)
	require.Equal(t, ast.LitBool, cteWhere.Right.(*ast.Literal).Kind)

	join := with.Body.(*ast.Select).From[0].(*ast.Join)
	sub := join.Right.(*ast.SubqueryAlias)
	subWhere := sub.Query.(*ast.Select).Where.(*ast.BinaryOp)
	lit := subWhere.Right.(*ast.Literal)
	require.Equal(t, ast.LitFloat, lit.Kind)
	require.Equal(t, 1000.0, lit.Flt)
}
