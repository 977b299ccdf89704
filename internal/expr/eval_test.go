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
	"testing"

	"github.com/stretchr/testify/require"

	"coreql/pkg/ast"
	"coreql/pkg/vector"
)

func buildMorsel(t *testing.T) *vector.Morsel {
	t.Helper()
	idB := vector.NewFixedWidthBuilder(vector.Field{Name: "id", Type: vector.Int64})
	nameB := vector.NewStringVectorBuilder(vector.Field{Name: "name", Nullable: true})
	for i, n := range []string{"Mercury", "Venus", "Earth"} {
		idB.AppendInt64(int64(i + 1))
		if n == "Venus" {
			nameB.AppendNull()
		} else {
			nameB.AppendString(n)
		}
	}
	idV := idB.Finish()
	nameV := nameB.Finish()
	schema := vector.Schema{Fields: []vector.Field{idV.Field(), nameV.Field()}}
	m, err := vector.NewMorsel(schema, []*vector.Vector{idV, nameV})
	require.NoError(t, err)
	return m
}

func TestEvalComparisonAgainstLiteral(t *testing.T) {
	m := buildMorsel(t)
	e := &ast.BinaryOp{Kind: ast.OpGt, Left: &ast.ColumnRef{Name: "id"}, Right: &ast.Literal{Kind: ast.LitInt, Int: 1}}
	out, err := Eval(e, m)
	require.NoError(t, err)
	require.False(t, out.Bool(0))
	require.True(t, out.Bool(1))
	require.True(t, out.Bool(2))
}

func TestEvalMaskTreatsNullPredicateAsFalse(t *testing.T) {
	m := buildMorsel(t)
	e := &ast.BinaryOp{Kind: ast.OpEq, Left: &ast.ColumnRef{Name: "name"}, Right: &ast.Literal{Kind: ast.LitString, Str: "Venus"}}
	mask, err := EvalMask(e, m)
	require.NoError(t, err)
	require.Equal(t, []bool{false, false, false}, mask)
}

func TestEvalAndShortCircuitsOnFalse(t *testing.T) {
	m := buildMorsel(t)
	e := &ast.BinaryOp{
		Kind: ast.OpAnd,
		Left: &ast.Literal{Kind: ast.LitBool, Bool: false},
		Right: &ast.BinaryOp{ // would error if evaluated: unknown column
			Kind: ast.OpEq,
			Left: &ast.ColumnRef{Name: "missing"},
			Right: &ast.Literal{Kind: ast.LitInt, Int: 1},
		},
	}
	mask, err := EvalMask(e, m)
	require.NoError(t, err)
	require.Equal(t, []bool{false, false, false}, mask)
}

func TestFusedEqConjunctsMatchesGeneralEvaluator(t *testing.T) {
	m := buildMorsel(t)
	e := &ast.BinaryOp{
		Kind: ast.OpAnd,
		Left: &ast.BinaryOp{Kind: ast.OpEq, Left: &ast.ColumnRef{Name: "id"}, Right: &ast.Literal{Kind: ast.LitInt, Int: 1}},
		Right: &ast.BinaryOp{Kind: ast.OpEq, Left: &ast.ColumnRef{Name: "name"}, Right: &ast.Literal{Kind: ast.LitString, Str: "Mercury"}},
	}
	_, isFused := tryFuse(e)
	require.True(t, isFused)
	mask, err := EvalMask(e, m)
	require.NoError(t, err)
	require.Equal(t, []bool{true, false, false}, mask)
}

func TestFusedColumnInMatchesExpected(t *testing.T) {
	m := buildMorsel(t)
	e := &ast.In{
		Expr: &ast.ColumnRef{Name: "id"},
		List: []ast.Expr{
			&ast.Literal{Kind: ast.LitInt, Int: 1},
			&ast.Literal{Kind: ast.LitInt, Int: 3},
		},
	}
	_, isFused := tryFuse(e)
	require.True(t, isFused)
	mask, err := EvalMask(e, m)
	require.NoError(t, err)
	require.Equal(t, []bool{true, false, true}, mask)
}

func TestEvalCaseReturnsElseWhenNoWhenMatches(t *testing.T) {
	m := buildMorsel(t)
	e := &ast.Case{
		Whens: []ast.WhenClause{
			{When: &ast.BinaryOp{Kind: ast.OpEq, Left: &ast.ColumnRef{Name: "id"}, Right: &ast.Literal{Kind: ast.LitInt, Int: 99}}, Then: &ast.Literal{Kind: ast.LitString, Str: "match"}},
		},
		Else: &ast.Literal{Kind: ast.LitString, Str: "none"},
	}
	out, err := Eval(e, m)
	require.NoError(t, err)
	require.Equal(t, "none", out.String(0))
}

func TestEvalDivisionByZeroFails(t *testing.T) {
	m := buildMorsel(t)
	e := &ast.BinaryOp{Kind: ast.OpDiv, Left: &ast.ColumnRef{Name: "id"}, Right: &ast.Literal{Kind: ast.LitInt, Int: 0}}
	_, err := Eval(e, m)
	require.Error(t, err)
}

func TestEvalTryConvertsFailureToNull(t *testing.T) {
	m := buildMorsel(t)
	e := &ast.Try{Expr: &ast.BinaryOp{Kind: ast.OpDiv, Left: &ast.ColumnRef{Name: "id"}, Right: &ast.Literal{Kind: ast.LitInt, Int: 0}}}
	out, err := Eval(e, m)
	require.NoError(t, err)
	require.True(t, out.IsNull(0))
}
