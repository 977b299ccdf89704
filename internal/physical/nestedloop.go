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
	"coreql/internal/plan"
	"coreql/internal/stats"
	"coreql/pkg/ast"
	"coreql/pkg/vector"
)

// NestedLoopJoin evaluates an arbitrary ON predicate (not just equalities)
// by materializing one input once (the builder always passes the join's
// Children[1]) and rescanning it against every probe row. The builder
// picks it for CROSS, RIGHT OUTER and FULL OUTER joins and for any join
// whose ON clause yields no usable equi-key; input row counts play no
// part in that choice, however small one side is. It supports every
// JoinVariant, including RIGHT OUTER and FULL OUTER, which HashJoin does
// not — those need to track which materialized-side rows were ever
// matched, which a full in-memory scan makes trivial.
type NestedLoopJoin struct {
	base
	materialize Operator
	probe       Operator
	variant     plan.JoinVariant
	on          ast.Expr
	stats       *stats.Collector

	matRows      []buildRow // the materialized (right-hand, in ON-clause terms) side
	matSchema    vector.Schema
	matSeen      []bool // for RIGHT/FULL OUTER: did this materialized row ever match
	rightDrained bool
}

// NewNestedLoopJoin wraps probe (streamed) and materialize (buffered
// in full before the first Next): materialize plays the role HashJoin
// calls "build", probe the role it calls "probe". on is the full ON
// predicate, evaluated row-by-row.
func NewNestedLoopJoin(materialize, probe Operator, variant plan.JoinVariant, on ast.Expr, st *stats.Collector) *NestedLoopJoin {
	return &NestedLoopJoin{base: newBase("NestedLoopJoin"), materialize: materialize, probe: probe, variant: variant, on: on, stats: st}
}

func (n *NestedLoopJoin) Open(ctx context.Context) error {
	if err := n.checkOpen(); err != nil {
		return err
	}
	if err := n.materialize.Open(ctx); err != nil {
		return err
	}
	n.matSchema = n.materialize.Schema()
	for {
		m, err := n.materialize.Next(ctx)
		if err != nil {
			return err
		}
		if m == nil {
			break
		}
		for r := 0; r < m.NumRows(); r++ {
			n.matRows = append(n.matRows, buildRow{morsel: m, row: r})
		}
	}
	if n.variant == plan.RightOuterJoin || n.variant == plan.FullOuterJoin {
		n.matSeen = make([]bool, len(n.matRows))
	}
	if err := n.materialize.Close(); err != nil {
		return err
	}
	if err := n.probe.Open(ctx); err != nil {
		return err
	}
	n.schema = concatSchema(n.matSchema, n.probe.Schema(), n.variant)
	return nil
}

func (n *NestedLoopJoin) Next(ctx context.Context) (*vector.Morsel, error) {
	cancelled, err := n.checkNext()
	if err != nil {
		return nil, err
	}
	if cancelled {
		return nil, cancelledErr("NestedLoopJoin")
	}
	defer stats.Timer(n.stats, "NestedLoopJoin")()

	for {
		m, err := n.probe.Next(ctx)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return n.drainRightPreserved()
		}
		out, err := n.probeMorsel(m)
		if err != nil {
			return nil, err
		}
		if out != nil && out.NumRows() > 0 {
			n.stats.EmittedRows("NestedLoopJoin", out.NumRows())
			return out, nil
		}
	}
}

func (n *NestedLoopJoin) probeMorsel(m *vector.Morsel) (*vector.Morsel, error) {
	var probeIdx, matIdx []int32
	var unmatchedProbe []int32
	for r := 0; r < m.NumRows(); r++ {
		matchedAny := false
		for mi, br := range n.matRows {
			matches := true
			if n.on != nil {
				combined, err := combineRows(br.morsel, br.row, m, r)
				if err != nil {
					return nil, err
				}
				mask, err := expr.EvalMask(n.on, combined)
				if err != nil {
					return nil, err
				}
				matches = mask[0]
			}
			if !matches {
				continue
			}
			matchedAny = true
			if n.matSeen != nil {
				n.matSeen[mi] = true
			}
			switch n.variant {
			case plan.LeftSemiJoin:
				// handled below, no row materialized here
			case plan.LeftAntiJoin:
				// handled below
			default:
				probeIdx = append(probeIdx, int32(r))
				matIdx = append(matIdx, int32(mi))
			}
			if n.variant == plan.LeftSemiJoin {
				break
			}
		}
		switch n.variant {
		case plan.LeftSemiJoin:
			if matchedAny {
				probeIdx = append(probeIdx, int32(r))
			}
		case plan.LeftAntiJoin:
			if !matchedAny {
				probeIdx = append(probeIdx, int32(r))
			}
		case plan.LeftOuterJoin, plan.FullOuterJoin:
			if !matchedAny {
				unmatchedProbe = append(unmatchedProbe, int32(r))
			}
		}
	}

	switch n.variant {
	case plan.LeftSemiJoin, plan.LeftAntiJoin:
		return takeMorsel(m, probeIdx)
	case plan.LeftOuterJoin, plan.FullOuterJoin:
		matched, err := n.combine(m, probeIdx, matIdx)
		if err != nil {
			return nil, err
		}
		nullFilled, err := n.nullFillProbeSide(m, unmatchedProbe)
		if err != nil {
			return nil, err
		}
		return concatMorsels(matched, nullFilled)
	default:
		return n.combine(m, probeIdx, matIdx)
	}
}

func (n *NestedLoopJoin) combine(probeM *vector.Morsel, probeIdx, matIdx []int32) (*vector.Morsel, error) {
	if len(probeIdx) == 0 {
		return emptyMorselFor(n.schema), nil
	}
	matCols := make([]*vector.Vector, len(n.matSchema.Fields))
	for fi := range n.matSchema.Fields {
		parts := make([]*vector.Vector, len(matIdx))
		for i, mi := range matIdx {
			br := n.matRows[mi]
			v, err := vector.Take(br.morsel.Columns[fi], []int32{int32(br.row)})
			if err != nil {
				return nil, err
			}
			parts[i] = v
		}
		v, err := concatVectors(parts)
		if err != nil {
			return nil, err
		}
		matCols[fi] = v
	}
	probeCols := make([]*vector.Vector, len(probeM.Columns))
	for i, c := range probeM.Columns {
		v, err := vector.Take(c, probeIdx)
		if err != nil {
			return nil, err
		}
		probeCols[i] = v
	}
	cols := append(matCols, probeCols...)
	return vector.NewMorsel(n.schema, cols)
}

func (n *NestedLoopJoin) nullFillProbeSide(probeM *vector.Morsel, unmatched []int32) (*vector.Morsel, error) {
	if len(unmatched) == 0 {
		return emptyMorselFor(n.schema), nil
	}
	matCols := make([]*vector.Vector, len(n.matSchema.Fields))
	for i, f := range n.matSchema.Fields {
		matCols[i] = allNullVector(f, len(unmatched))
	}
	probeCols := make([]*vector.Vector, len(probeM.Columns))
	for i, c := range probeM.Columns {
		v, err := vector.Take(c, unmatched)
		if err != nil {
			return nil, err
		}
		probeCols[i] = v
	}
	cols := append(matCols, probeCols...)
	return vector.NewMorsel(n.schema, cols)
}

// drainRightPreserved emits the RIGHT/FULL OUTER null-filled rows for
// materialized-side rows that were never matched by any probe row, once
// the probe side is exhausted. It runs exactly once: the first call
// computes and returns the (possibly empty) drain batch, every call after
// that finishes immediately without recomputing it.
func (n *NestedLoopJoin) drainRightPreserved() (*vector.Morsel, error) {
	if n.rightDrained {
		n.finish()
		return nil, nil
	}
	n.rightDrained = true
	if n.matSeen == nil {
		n.finish()
		return nil, nil
	}
	var idx []int32
	for i, seen := range n.matSeen {
		if !seen {
			idx = append(idx, int32(i))
		}
	}
	if len(idx) == 0 {
		n.finish()
		return nil, nil
	}
	matCols := make([]*vector.Vector, len(n.matSchema.Fields))
	for fi := range n.matSchema.Fields {
		parts := make([]*vector.Vector, len(idx))
		for i, mi := range idx {
			br := n.matRows[mi]
			v, err := vector.Take(br.morsel.Columns[fi], []int32{int32(br.row)})
			if err != nil {
				return nil, err
			}
			parts[i] = v
		}
		v, err := concatVectors(parts)
		if err != nil {
			return nil, err
		}
		matCols[fi] = v
	}
	probeFieldCount := len(n.schema.Fields) - len(n.matSchema.Fields)
	probeCols := make([]*vector.Vector, probeFieldCount)
	for i := 0; i < probeFieldCount; i++ {
		probeCols[i] = allNullVector(n.schema.Fields[len(n.matSchema.Fields)+i], len(idx))
	}
	cols := append(matCols, probeCols...)
	return vector.NewMorsel(n.schema, cols)
}

func (n *NestedLoopJoin) Close() error {
	n.close()
	n.matRows = nil
	return n.probe.Close()
}

func (n *NestedLoopJoin) Cancel() {
	n.cancel()
	n.probe.Cancel()
}
