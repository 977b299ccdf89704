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
	"coreql/pkg/cqlerr"
	"coreql/pkg/vector"
)

// EvalMask evaluates a boolean predicate over every row of m, returning a
// keep/drop mask. Per three-valued logic, NULL predicate results are
// treated as false (never kept) — the same rule spec §4.3 applies to
// arithmetic and comparisons propagating through a WHERE/HAVING/JOIN ON
// clause. If a fused kernel recognizes e's shape, it is used instead of
// the general row-by-row evaluator (spec §4.3's "compiled evaluators").
func EvalMask(e ast.Expr, m *vector.Morsel) ([]bool, error) {
	if fn, ok := tryFuse(e); ok {
		return fn(m)
	}
	n := m.NumRows()
	mask := make([]bool, n)
	for i := 0; i < n; i++ {
		v, err := evalRow(e, m, i)
		if err != nil {
			return nil, err
		}
		if v.typ != vector.Bool && !v.null {
			return nil, cqlerr.New(cqlerr.TypeMismatch, "expr: predicate must evaluate to bool, got %s", v.typ)
		}
		mask[i] = !v.null && v.b
	}
	return mask, nil
}
