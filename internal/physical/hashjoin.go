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
	"coreql/pkg/cqlerr"
	"coreql/pkg/rowhash"
	"coreql/pkg/vector"
)

// EquiKey is one column pulled from each side of a join's ON clause for
// equality testing (`left.a = right.b`).
type EquiKey struct {
	Left  ast.Expr
	Right ast.Expr
}

// HashJoin implements INNER/LEFT OUTER/LEFT SEMI/LEFT ANTI over an
// equi-join predicate (spec §4.2): build a hash table over the build side
// keyed by the hash identity contract in pkg/vector, then probe it one
// morsel at a time from the other (probe) side. The builder passes the
// join's Children[0] as the build side for INNER (BuildSideReorder puts
// the cheaper input there) and the right input for LEFT OUTER/SEMI/ANTI,
// whatever its size. A bloom filter over the build keys is built for
// every non-empty build side of at most pkg/rowhash.MaxBloomKeys rows and
// checked before each hash-table lookup.
//
// Grounded on pkg/vsa.VSA's striped build discipline generalized from
// atomic counters to a sharded open-addressed map, and on the probe-phase
// shape of a classic build-then-stream hash join.
type HashJoin struct {
	base
	build, probe     Operator
	keys             []EquiKey
	variant          plan.JoinVariant
	residual         ast.Expr // extra ON conjunct(s) beyond the equi-keys, re-checked per candidate pair
	bloomFPRate      float64
	stats            *stats.Collector

	buildSchema vector.Schema
	buildRows   []buildRow
	buildTable  *rowhash.FlatHashMap
	bloom       *rowhash.BloomFilter
}

type buildRow struct {
	morsel *vector.Morsel
	row    int
}

// NewHashJoin constructs a hash join. build becomes the hashed side (see
// HashJoin for which input the builder passes); variant selects
// join semantics; residual is evaluated per candidate pair on top of the
// equi-key match (e.g. non-equi conjuncts ANDed into the original ON).
func NewHashJoin(build, probe Operator, keys []EquiKey, variant plan.JoinVariant, residual ast.Expr, bloomFPRate float64, st *stats.Collector) *HashJoin {
	return &HashJoin{
		base:        newBase("HashJoin"),
		build:       build,
		probe:       probe,
		keys:        keys,
		variant:     variant,
		residual:    residual,
		bloomFPRate: bloomFPRate,
		stats:       st,
	}
}

func (h *HashJoin) Open(ctx context.Context) error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	if err := h.build.Open(ctx); err != nil {
		return err
	}
	if err := h.probe.Open(ctx); err != nil {
		return err
	}
	h.buildSchema = h.build.Schema()
	h.schema = concatSchema(h.buildSchema, h.probe.Schema(), h.variant)
	return h.buildPhase(ctx)
}

func (h *HashJoin) buildPhase(ctx context.Context) error {
	defer stats.Timer(h.stats, "HashJoin.build")()
	h.buildTable = rowhash.NewFlatHashMap(1024, shardCountFor())
	var rowIdx int64
	for {
		m, err := h.build.Next(ctx)
		if err != nil {
			return err
		}
		if m == nil {
			break
		}
		hashes := make([]uint64, m.NumRows())
		for _, k := range h.keys {
			v, err := expr.Eval(k.Left, m)
			if err != nil {
				return err
			}
			vector.HashInto(v, hashes, 0)
		}
		for r := 0; r < m.NumRows(); r++ {
			h.buildTable.Insert(hashes[r], rowIdx)
			h.buildRows = append(h.buildRows, buildRow{morsel: m, row: r})
			rowIdx++
		}
	}
	if n := len(h.buildRows); n > rowhash.MaxBloomKeys {
		h.bloom = nil
	} else if n > 0 {
		h.bloom = rowhash.NewBloomFilter(n, h.bloomFPRate)
		for _, br := range h.buildRows {
			hashes := make([]uint64, 1)
			for _, k := range h.keys {
				v, err := expr.Eval(k.Left, sliceMorsel(br.morsel, br.row))
				if err != nil {
					return err
				}
				vector.HashInto(v, hashes, 0)
			}
			h.bloom.Add(hashes[0])
		}
	}
	return nil
}

func shardCountFor() int { return 8 }

// sliceMorsel returns a length-1 morsel over a single row of m, used by
// the bloom pre-population pass and the null-fill pass that need to
// re-evaluate an expression against one build row in isolation.
func sliceMorsel(m *vector.Morsel, row int) *vector.Morsel {
	idx := []int32{int32(row)}
	cols := make([]*vector.Vector, len(m.Columns))
	for i, c := range m.Columns {
		v, err := vector.Take(c, idx)
		if err != nil {
			panic(err) // row is always in range by construction
		}
		cols[i] = v
	}
	nm, err := vector.NewMorsel(m.Schema, cols)
	if err != nil {
		panic(err)
	}
	return nm
}

func (h *HashJoin) Next(ctx context.Context) (*vector.Morsel, error) {
	cancelled, err := h.checkNext()
	if err != nil {
		return nil, err
	}
	if cancelled {
		return nil, cancelledErr("HashJoin")
	}
	defer stats.Timer(h.stats, "HashJoin.probe")()

	for {
		m, err := h.probe.Next(ctx)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return h.drainUnmatchedBuildRows()
		}
		out, err := h.probeMorsel(ctx, m)
		if err != nil {
			return nil, err
		}
		if out != nil && out.NumRows() > 0 {
			h.stats.EmittedRows("HashJoin", out.NumRows())
			return out, nil
		}
	}
}

// probeMorsel hashes m's key columns, looks up candidate build rows, and
// re-checks raw-value equality (the stored u64 is a bucket identity, never
// a substitute for comparing actual values — spec's hash identity
// contract guarantee (a)) before applying any residual predicate.
func (h *HashJoin) probeMorsel(ctx context.Context, m *vector.Morsel) (*vector.Morsel, error) {
	hashes := make([]uint64, m.NumRows())
	for _, k := range h.keys {
		v, err := expr.Eval(k.Right, m)
		if err != nil {
			return nil, err
		}
		vector.HashInto(v, hashes, 0)
	}

	var probeIdx, buildIdx []int32
	var unmatched []int32
	for r := 0; r < m.NumRows(); r++ {
		if h.bloom != nil && h.bloom.Enabled() && !h.bloom.MaybeContains(hashes[r]) {
			if h.variant == plan.LeftOuterJoin {
				unmatched = append(unmatched, int32(r))
			} else if h.variant == plan.LeftAntiJoin {
				probeIdx = append(probeIdx, int32(r))
			}
			continue
		}
		candidates := h.buildTable.Get(hashes[r])
		matchedAny := false
		for _, c := range candidates {
			ok, err := h.keysEqual(m, r, h.buildRows[c])
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if h.residual != nil {
				ok, err := h.residualHolds(m, r, h.buildRows[c])
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
			}
			matchedAny = true
			switch h.variant {
			case plan.LeftSemiJoin:
				// emit the probe row once; no need to keep scanning candidates
			case plan.LeftAntiJoin:
				// disqualifies this probe row entirely
			default:
				probeIdx = append(probeIdx, int32(r))
				buildIdx = append(buildIdx, int32(c))
			}
			if h.variant == plan.LeftSemiJoin {
				break
			}
		}
		switch h.variant {
		case plan.LeftSemiJoin:
			if matchedAny {
				probeIdx = append(probeIdx, int32(r))
			}
		case plan.LeftAntiJoin:
			if !matchedAny {
				probeIdx = append(probeIdx, int32(r))
			}
		default:
			if !matchedAny && h.variant == plan.LeftOuterJoin {
				unmatched = append(unmatched, int32(r))
			}
		}
	}

	switch h.variant {
	case plan.LeftSemiJoin, plan.LeftAntiJoin:
		return takeMorsel(m, probeIdx)
	case plan.LeftOuterJoin:
		matched, err := h.combine(m, probeIdx, buildIdx)
		if err != nil {
			return nil, err
		}
		nullFilled, err := h.nullFillProbeSide(m, unmatched)
		if err != nil {
			return nil, err
		}
		return concatMorsels(matched, nullFilled)
	default: // InnerJoin
		return h.combine(m, probeIdx, buildIdx)
	}
}

func (h *HashJoin) keysEqual(probeM *vector.Morsel, probeRow int, br buildRow) (bool, error) {
	for _, k := range h.keys {
		lv, err := expr.Eval(k.Left, sliceMorsel(br.morsel, br.row))
		if err != nil {
			return false, err
		}
		rv, err := expr.Eval(k.Right, sliceMorsel(probeM, probeRow))
		if err != nil {
			return false, err
		}
		if lv.IsNull(0) || rv.IsNull(0) {
			return false, nil // SQL: NULL = NULL is never true, even at hash-identity level
		}
		res, nullMask, err := vector.Compare(vector.Eq, lv, rv)
		if err != nil {
			return false, err
		}
		if nullMask[0] || !res[0] {
			return false, nil
		}
	}
	return true, nil
}

func (h *HashJoin) residualHolds(probeM *vector.Morsel, probeRow int, br buildRow) (bool, error) {
	combined, err := combineRows(br.morsel, br.row, probeM, probeRow)
	if err != nil {
		return false, err
	}
	mask, err := expr.EvalMask(h.residual, combined)
	if err != nil {
		return false, err
	}
	return mask[0], nil
}

// combineRows builds a single-row morsel concatenating build row brow of
// buildM with probe row prow of probeM, the shape the residual predicate
// and ON-clause evaluator expect (build columns first, then probe).
func combineRows(buildM *vector.Morsel, brow int, probeM *vector.Morsel, prow int) (*vector.Morsel, error) {
	bm := sliceMorsel(buildM, brow)
	pm := sliceMorsel(probeM, prow)
	schema := vector.Schema{Fields: append(append([]vector.Field{}, bm.Schema.Fields...), pm.Schema.Fields...)}
	cols := append(append([]*vector.Vector{}, bm.Columns...), pm.Columns...)
	return vector.NewMorsel(schema, cols)
}

// combine materializes the join output for matched (probeIdx[i], buildIdx[i])
// pairs: build columns (gathered via Take over the logical build-row
// index, spanning whichever source morsel each came from) followed by
// probe columns.
func (h *HashJoin) combine(probeM *vector.Morsel, probeIdx, buildIdx []int32) (*vector.Morsel, error) {
	if len(probeIdx) == 0 {
		return emptyMorselFor(h.schema), nil
	}
	buildCols, err := h.gatherBuildRows(buildIdx)
	if err != nil {
		return nil, err
	}
	probeCols := make([]*vector.Vector, len(probeM.Columns))
	for i, c := range probeM.Columns {
		v, err := vector.Take(c, probeIdx)
		if err != nil {
			return nil, err
		}
		probeCols[i] = v
	}
	cols := append(buildCols, probeCols...)
	return vector.NewMorsel(h.schema, cols)
}

// gatherBuildRows produces one column per build-schema field, gathering
// each logical build row index (possibly spanning several source morsels)
// by slicing and concatenating.
func (h *HashJoin) gatherBuildRows(buildIdx []int32) ([]*vector.Vector, error) {
	cols := make([]*vector.Vector, len(h.buildSchema.Fields))
	for fi := range h.buildSchema.Fields {
		parts := make([]*vector.Vector, len(buildIdx))
		for i, bi := range buildIdx {
			br := h.buildRows[bi]
			v, err := vector.Take(br.morsel.Columns[fi], []int32{int32(br.row)})
			if err != nil {
				return nil, err
			}
			parts[i] = v
		}
		concatenated, err := concatVectors(parts)
		if err != nil {
			return nil, err
		}
		cols[fi] = concatenated
	}
	return cols, nil
}

// nullFillProbeSide produces the LEFT OUTER rows for probe indices that
// matched nothing: build columns are all-null, probe columns are the
// actual row values.
func (h *HashJoin) nullFillProbeSide(probeM *vector.Morsel, unmatched []int32) (*vector.Morsel, error) {
	if len(unmatched) == 0 {
		return emptyMorselFor(h.schema), nil
	}
	buildCols := make([]*vector.Vector, len(h.buildSchema.Fields))
	for i, f := range h.buildSchema.Fields {
		buildCols[i] = allNullVector(f, len(unmatched))
	}
	probeCols := make([]*vector.Vector, len(probeM.Columns))
	for i, c := range probeM.Columns {
		v, err := vector.Take(c, unmatched)
		if err != nil {
			return nil, err
		}
		probeCols[i] = v
	}
	cols := append(buildCols, probeCols...)
	return vector.NewMorsel(h.schema, cols)
}

// drainUnmatchedBuildRows ends the stream once the probe side is
// exhausted. HashJoin never emits unmatched build rows: LEFT OUTER builds
// the right-hand relation and streams the preserved left one, so its
// unmatched rows are probe rows, null-filled in probeMorsel. Nothing to
// drain here; kept as the single place Next transitions to Exhausted.
func (h *HashJoin) drainUnmatchedBuildRows() (*vector.Morsel, error) {
	h.finish()
	return nil, nil
}

func (h *HashJoin) Close() error {
	h.close()
	h.buildRows = nil
	h.buildTable = nil
	err1 := h.build.Close()
	err2 := h.probe.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func (h *HashJoin) Cancel() {
	h.cancel()
	h.build.Cancel()
	h.probe.Cancel()
}

func concatSchema(left, right vector.Schema, variant plan.JoinVariant) vector.Schema {
	switch variant {
	case plan.LeftSemiJoin, plan.LeftAntiJoin:
		return right
	default:
		fields := make([]vector.Field, 0, len(left.Fields)+len(right.Fields))
		fields = append(fields, left.Fields...)
		fields = append(fields, right.Fields...)
		return vector.Schema{Fields: fields}
	}
}

func takeMorsel(m *vector.Morsel, idx []int32) (*vector.Morsel, error) {
	cols := make([]*vector.Vector, len(m.Columns))
	for i, c := range m.Columns {
		v, err := vector.Take(c, idx)
		if err != nil {
			return nil, err
		}
		cols[i] = v
	}
	return vector.NewMorsel(m.Schema, cols)
}

func emptyMorselFor(schema vector.Schema) *vector.Morsel {
	cols := make([]*vector.Vector, len(schema.Fields))
	for i, f := range schema.Fields {
		cols[i] = allNullVector(f, 0)
	}
	m, err := vector.NewMorsel(schema, cols)
	if err != nil {
		return &vector.Morsel{Schema: schema}
	}
	return m
}

func allNullVector(f vector.Field, n int) *vector.Vector {
	if f.Type == vector.String || f.Type == vector.Binary {
		b := vector.NewStringVectorBuilder(f)
		for i := 0; i < n; i++ {
			b.AppendNull()
		}
		return b.Finish()
	}
	b := vector.NewFixedWidthBuilder(vector.Field{Type: fallbackFixed(f.Type), Nullable: true})
	for i := 0; i < n; i++ {
		b.AppendNull()
	}
	return b.Finish()
}

func fallbackFixed(t vector.Type) vector.Type {
	if t.IsFixedWidth() {
		return t
	}
	return vector.Int64
}

func concatVectors(parts []*vector.Vector) (*vector.Vector, error) {
	if len(parts) == 0 {
		return nil, cqlerr.New(cqlerr.InternalError, "physical: concatVectors called with no parts")
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	total := 0
	for _, p := range parts {
		total += p.Len()
	}
	// Concatenation is implemented via Take over a synthetic "whichever
	// part, whichever row" walk, reusing the single-vector Take kernel
	// rather than a dedicated concat kernel: build a combined vector by
	// taking every row in order from a merged view. Since the parts may
	// differ in identity but share type, the simplest correct route is to
	// round-trip through a builder keyed on the shared type.
	return concatViaBuilder(parts)
}

func concatViaBuilder(parts []*vector.Vector) (*vector.Vector, error) {
	typ := parts[0].Type()
	field := parts[0].Field()
	switch typ {
	case vector.String, vector.Binary:
		b := vector.NewStringVectorBuilder(field)
		for _, p := range parts {
			for i := 0; i < p.Len(); i++ {
				if p.IsNull(i) {
					b.AppendNull()
				} else if typ == vector.String {
					b.AppendString(p.String(i))
				} else {
					b.Append(p.Binary(i))
				}
			}
		}
		return b.Finish(), nil
	default:
		b := vector.NewFixedWidthBuilder(vector.Field{Type: typ, Nullable: true})
		for _, p := range parts {
			for i := 0; i < p.Len(); i++ {
				if p.IsNull(i) {
					b.AppendNull()
					continue
				}
				appendFixedFrom(b, p, i)
			}
		}
		return b.Finish(), nil
	}
}

func appendFixedFrom(b *vector.FixedWidthBuilder, v *vector.Vector, i int) {
	switch v.Type() {
	case vector.Bool:
		b.AppendBool(v.Bool(i))
	case vector.Int8:
		b.AppendInt8(v.Int8(i))
	case vector.Int16, vector.Time32:
		b.AppendInt16(v.Int16(i))
	case vector.Int32, vector.Date32:
		b.AppendInt32(v.Int32(i))
	case vector.Int64, vector.Timestamp64, vector.Time64:
		b.AppendInt64(v.Int64(i))
	case vector.Float32:
		b.AppendFloat32(v.Float32(i))
	case vector.Float64:
		b.AppendFloat64(v.Float64(i))
	}
}

func concatMorsels(ms ...*vector.Morsel) (*vector.Morsel, error) {
	nonEmpty := make([]*vector.Morsel, 0, len(ms))
	for _, m := range ms {
		if m != nil && m.NumRows() > 0 {
			nonEmpty = append(nonEmpty, m)
		}
	}
	if len(nonEmpty) == 0 {
		if len(ms) > 0 {
			return ms[0], nil
		}
		return nil, nil
	}
	if len(nonEmpty) == 1 {
		return nonEmpty[0], nil
	}
	schema := nonEmpty[0].Schema
	cols := make([]*vector.Vector, len(schema.Fields))
	for fi := range schema.Fields {
		parts := make([]*vector.Vector, len(nonEmpty))
		for i, m := range nonEmpty {
			parts[i] = m.Columns[fi]
		}
		v, err := concatVectors(parts)
		if err != nil {
			return nil, err
		}
		cols[fi] = v
	}
	return vector.NewMorsel(schema, cols)
}
