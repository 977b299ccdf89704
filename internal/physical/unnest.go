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

package physical

import (
	"context"

	"coreql/internal/expr"
	"coreql/internal/stats"
	"coreql/pkg/ast"
	"coreql/pkg/vector"
)

// CrossJoinUnnest expands a list-valued column against every input row,
// duplicating the surrounding columns across the expansion (spec §4.6:
// "for an input list column, emits one output row per element; the
// surrounding columns are duplicated across the expansion"). It is a
// lateral cross-apply, not a symmetric join: the logical builder produces
// a CrossJoin between the FROM source and a bare UnnestKind leaf whose
// list expression is correlated against that same source, and the
// Builder flattens that shape into this single operator rather than
// constructing two independent operator legs.
type CrossJoinUnnest struct {
	base
	input      Operator
	listExpr   ast.Expr
	columnName string
	outer      bool
	stats      *stats.Collector

	elemField vector.Field
}

// NewCrossJoinUnnest wraps input, expanding listExpr (evaluated against
// each input row) into a new trailing column named columnName. When outer
// is true, rows whose list is empty or NULL still produce one output row
// with that column NULL (spec §4.6: "Produces empty output for empty
// lists unless an OUTER UNNEST variant is requested").
func NewCrossJoinUnnest(input Operator, listExpr ast.Expr, columnName string, outer bool, st *stats.Collector) *CrossJoinUnnest {
	return &CrossJoinUnnest{base: newBase("CrossJoinUnnest"), input: input, listExpr: listExpr, columnName: columnName, outer: outer, stats: st}
}

func (u *CrossJoinUnnest) Open(ctx context.Context) error {
	if err := u.checkOpen(); err != nil {
		return err
	}
	if err := u.input.Open(ctx); err != nil {
		return err
	}
	inSchema := u.input.Schema()
	u.elemField = elementFieldOf(u.listExpr, inSchema)
	u.elemField.Name = u.columnName
	fields := append(append([]vector.Field{}, inSchema.Fields...), u.elemField)
	u.schema = vector.Schema{Fields: fields}
	return nil
}

// elementFieldOf resolves the element field of a list expression's output.
// When the expression is a plain column reference, the source column's
// own Children[0] (the Arrow-style list element field, spec §4.2) is
// reused directly so the unnested column keeps its true type; any other
// expression shape falls back to a nullable Int64 element, the same
// conservative default Aggregate's MIN/MAX uses when it can't otherwise
// determine a type upfront.
func elementFieldOf(e ast.Expr, schema vector.Schema) vector.Field {
	if ref, ok := e.(*ast.ColumnRef); ok {
		idx := schema.IndexOf(ref.Name)
		if idx >= 0 {
			f := schema.Fields[idx]
			if len(f.Children) > 0 {
				return f.Children[0]
			}
		}
	}
	return vector.Field{Name: "value", Type: vector.Int64, Nullable: true}
}

func (u *CrossJoinUnnest) Next(ctx context.Context) (*vector.Morsel, error) {
	cancelled, err := u.checkNext()
	if err != nil {
		return nil, err
	}
	if cancelled {
		return nil, cancelledErr("CrossJoinUnnest")
	}
	defer stats.Timer(u.stats, "CrossJoinUnnest")()

	for {
		m, err := u.input.Next(ctx)
		if err != nil {
			return nil, err
		}
		if m == nil {
			u.finish()
			return nil, nil
		}
		out, err := u.expand(m)
		if err != nil {
			return nil, err
		}
		if emptyMorselOK(out) {
			continue
		}
		u.stats.EmittedRows("CrossJoinUnnest", out.NumRows())
		return out, nil
	}
}

// expand evaluates listExpr once for the whole morsel, then walks every
// input row's [start,end) element range to build the (inputRow,
// childIndex) pairs the output is gathered from. childIndex -1 marks an
// OUTER UNNEST null-fill row for an empty/NULL list.
func (u *CrossJoinUnnest) expand(m *vector.Morsel) (*vector.Morsel, error) {
	listVec, err := expr.Eval(u.listExpr, m)
	if err != nil {
		return nil, err
	}
	var inputIdx []int32
	var childIdx []int32
	for r := 0; r < m.NumRows(); r++ {
		if listVec.IsNull(r) {
			if u.outer {
				inputIdx = append(inputIdx, int32(r))
				childIdx = append(childIdx, -1)
			}
			continue
		}
		start, end := listVec.ListRange(r)
		if start == end {
			if u.outer {
				inputIdx = append(inputIdx, int32(r))
				childIdx = append(childIdx, -1)
			}
			continue
		}
		for ci := start; ci < end; ci++ {
			inputIdx = append(inputIdx, int32(r))
			childIdx = append(childIdx, ci)
		}
	}
	if len(inputIdx) == 0 {
		return emptyMorselFor(u.schema), nil
	}

	outerCols := make([]*vector.Vector, len(m.Columns))
	for i, c := range m.Columns {
		v, err := vector.Take(c, inputIdx)
		if err != nil {
			return nil, err
		}
		outerCols[i] = v
	}

	child := listVec.ListChild()
	elemParts := make([]*vector.Vector, len(childIdx))
	for i, ci := range childIdx {
		if ci < 0 {
			elemParts[i] = allNullVector(u.elemField, 1)
			continue
		}
		v, err := vector.Take(child, []int32{ci})
		if err != nil {
			return nil, err
		}
		elemParts[i] = v
	}
	elemCol, err := concatVectors(elemParts)
	if err != nil {
		return nil, err
	}

	cols := append(outerCols, elemCol)
	return vector.NewMorsel(u.schema, cols)
}

func (u *CrossJoinUnnest) Close() error {
	u.close()
	return u.input.Close()
}

func (u *CrossJoinUnnest) Cancel() {
	u.cancel()
	u.input.Cancel()
}
