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
	"coreql/pkg/ast"
	"coreql/pkg/vector"
)

// fusedFn is a pre-recognized shortcut that evaluates a mask without going
// through the general evalRow recursion.
type fusedFn func(m *vector.Morsel) ([]bool, error)

// tryFuse recognizes two shapes by a direct walk of the expression (no
// fingerprint lookup): a conjunction of column=literal equalities, and
// `col IN (literal_list)`. Any other shape falls back to the general
// evaluator.
func tryFuse(e ast.Expr) (fusedFn, bool) {
	if clauses, ok := flattenEqConjuncts(e); ok && len(clauses) > 0 {
		return fuseEqConjuncts(clauses), true
	}
	if in, ok := e.(*ast.In); ok && in.Subquery == nil && !in.Negate {
		if col, ok := in.Expr.(*ast.ColumnRef); ok {
			if literals, ok := allLiterals(in.List); ok {
				return fuseColumnIn(col.Name, literals), true
			}
		}
	}
	return nil, false
}

type eqClause struct {
	column string
	lit    *ast.Literal
}

// flattenEqConjuncts walks an AND-tree and returns every leaf that is a
// `column = literal` (or `literal = column`) comparison; ok is false if
// any conjunct doesn't match that shape, in which case the caller must
// not use the fused path.
func flattenEqConjuncts(e ast.Expr) ([]eqClause, bool) {
	bin, ok := e.(*ast.BinaryOp)
	if !ok {
		return nil, false
	}
	if bin.Kind == ast.OpAnd {
		left, ok := flattenEqConjuncts(bin.Left)
		if !ok {
			return nil, false
		}
		right, ok := flattenEqConjuncts(bin.Right)
		if !ok {
			return nil, false
		}
		return append(left, right...), true
	}
	if bin.Kind != ast.OpEq {
		return nil, false
	}
	if col, lit, ok := asColumnLiteral(bin.Left, bin.Right); ok {
		return []eqClause{{column: col, lit: lit}}, true
	}
	return nil, false
}

func asColumnLiteral(a, b ast.Expr) (string, *ast.Literal, bool) {
	if col, ok := a.(*ast.ColumnRef); ok {
		if lit, ok := b.(*ast.Literal); ok {
			return col.Name, lit, true
		}
	}
	if col, ok := b.(*ast.ColumnRef); ok {
		if lit, ok := a.(*ast.Literal); ok {
			return col.Name, lit, true
		}
	}
	return "", nil, false
}

func allLiterals(list []ast.Expr) ([]*ast.Literal, bool) {
	out := make([]*ast.Literal, 0, len(list))
	for _, item := range list {
		lit, ok := item.(*ast.Literal)
		if !ok {
			return nil, false
		}
		out = append(out, lit)
	}
	return out, true
}

func fuseEqConjuncts(clauses []eqClause) fusedFn {
	return func(m *vector.Morsel) ([]bool, error) {
		cols := make([]*vector.Vector, len(clauses))
		lits := make([]scalar, len(clauses))
		for i, c := range clauses {
			col := m.Column(c.column)
			if col == nil {
				return boolFalseMask(m.NumRows()), nil
			}
			cols[i] = col
			lit, err := evalLiteral(c.lit)
			if err != nil {
				return nil, err
			}
			lits[i] = lit
		}
		n := m.NumRows()
		mask := make([]bool, n)
	rows:
		for row := 0; row < n; row++ {
			for i, col := range cols {
				v, err := readVectorScalar(col, row)
				if err != nil {
					return nil, err
				}
				eq, err := evalCompare(ast.OpEq, v, lits[i])
				if err != nil || eq.null || !eq.b {
					continue rows
				}
			}
			mask[row] = true
		}
		return mask, nil
	}
}

func fuseColumnIn(column string, literals []*ast.Literal) fusedFn {
	return func(m *vector.Morsel) ([]bool, error) {
		col := m.Column(column)
		if col == nil {
			return boolFalseMask(m.NumRows()), nil
		}
		wanted := make([]scalar, len(literals))
		for i, lit := range literals {
			v, err := evalLiteral(lit)
			if err != nil {
				return nil, err
			}
			wanted[i] = v
		}
		n := m.NumRows()
		mask := make([]bool, n)
		for row := 0; row < n; row++ {
			v, err := readVectorScalar(col, row)
			if err != nil {
				return nil, err
			}
			if v.null {
				continue
			}
			for _, w := range wanted {
				if eq, err := evalCompare(ast.OpEq, v, w); err == nil && eq.b {
					mask[row] = true
					break
				}
			}
		}
		return mask, nil
	}
}

func boolFalseMask(n int) []bool { return make([]bool, n) }
