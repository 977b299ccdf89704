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
	"strconv"
	"strings"

	"coreql/internal/expr"
	"coreql/internal/stats"
	"coreql/pkg/ast"
	"coreql/pkg/cqlerr"
	"coreql/pkg/rowhash"
	"coreql/pkg/vector"
)

// AggSpec is one output aggregate column.
type AggSpec struct {
	Fn   *ast.AggregateFn
	Name string // output column name
}

// Aggregate groups input rows by GroupBy (hash-based, spec §4.6) and
// computes one accumulator per AggSpec per group. Grouping is entirely
// buffered: every group's running state lives in memory for the lifetime
// of the operator, materialized during Open rather than streamed, since a
// group's final value can't be known until every input row has been seen.
// A bare `SELECT agg(...)` with no GROUP BY is the single-group case.
type Aggregate struct {
	base
	input      Operator
	groupBy    []ast.Expr
	groupNames []string
	aggs       []AggSpec
	stats      *stats.Collector

	groupIndex map[uint64][]int32 // hash -> candidate group indices
	groupKeys  []*vector.Morsel   // one-row morsel per group, the GROUP BY key values
	accs       [][]*accumulator   // accs[groupIdx][aggIdx]

	emitted bool
}

type aggKind uint8

const (
	aggCount aggKind = iota
	aggSum
	aggAvg
	aggMin
	aggMax
)

func parseAggKind(name string) (aggKind, error) {
	switch strings.ToUpper(name) {
	case "COUNT":
		return aggCount, nil
	case "SUM":
		return aggSum, nil
	case "AVG":
		return aggAvg, nil
	case "MIN":
		return aggMin, nil
	case "MAX":
		return aggMax, nil
	default:
		return 0, cqlerr.New(cqlerr.UnsupportedOperation, "physical: unsupported aggregate %q", name)
	}
}

// accumulator tracks one group's running state for one AggSpec.
type accumulator struct {
	kind     aggKind
	distinct bool
	seen     *rowhash.FlatHashSet // non-nil only when distinct

	count int64
	sum   float64

	// best holds the current MIN/MAX winner as a single-row slice of the
	// source column, so the final value keeps its original type (string,
	// date, etc.) without this package needing a parallel scalar union.
	best *vector.Vector
}

func newAccumulator(kind aggKind, distinct bool) *accumulator {
	a := &accumulator{kind: kind, distinct: distinct}
	if distinct {
		a.seen = rowhash.NewFlatHashSet(64, 4)
	}
	return a
}

// NewAggregate constructs a grouping Aggregate over input. groupNames
// supplies the output column name for each groupBy expression (the
// Builder derives these from the SELECT list alias when a GROUP BY
// expression also appears projected, falling back to a synthesized name).
func NewAggregate(input Operator, groupBy []ast.Expr, groupNames []string, aggs []AggSpec, st *stats.Collector) *Aggregate {
	return &Aggregate{base: newBase("Aggregate"), input: input, groupBy: groupBy, groupNames: groupNames, aggs: aggs, stats: st}
}

func (a *Aggregate) Open(ctx context.Context) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	if err := a.input.Open(ctx); err != nil {
		return err
	}
	defer stats.Timer(a.stats, "Aggregate")()

	a.groupIndex = make(map[uint64][]int32)
	for {
		m, err := a.input.Next(ctx)
		if err != nil {
			return err
		}
		if m == nil {
			break
		}
		if err := a.consume(m); err != nil {
			return err
		}
	}
	if err := a.input.Close(); err != nil {
		return err
	}
	if len(a.groupBy) == 0 && len(a.groupKeys) == 0 {
		// A bare aggregate with no GROUP BY always produces exactly one
		// row, even over zero input rows (e.g. COUNT(*) = 0).
		a.groupKeys = []*vector.Morsel{nil}
		a.accs = [][]*accumulator{a.freshAccumulators()}
	}
	a.schema = a.buildSchema()
	return nil
}

func (a *Aggregate) freshAccumulators() []*accumulator {
	accs := make([]*accumulator, len(a.aggs))
	for i, spec := range a.aggs {
		kind, _ := parseAggKind(spec.Fn.Name)
		accs[i] = newAccumulator(kind, spec.Fn.Distinct)
	}
	return accs
}

func (a *Aggregate) buildSchema() vector.Schema {
	fields := make([]vector.Field, 0, len(a.groupBy)+len(a.aggs))
	for i := range a.groupBy {
		fields = append(fields, vector.Field{Name: a.groupColName(i), Type: vector.Int64, Nullable: true})
	}
	for i, spec := range a.aggs {
		t := vector.Int64
		switch accKindOf(spec) {
		case aggSum, aggAvg:
			t = vector.Float64
		case aggCount:
			t = vector.Int64
		default:
			if len(a.accs) > 0 && a.accs[0][i].best != nil {
				t = a.accs[0][i].best.Type()
			}
		}
		fields = append(fields, vector.Field{Name: spec.Name, Type: t, Nullable: true})
	}
	return vector.Schema{Fields: fields}
}

func accKindOf(spec AggSpec) aggKind {
	k, _ := parseAggKind(spec.Fn.Name)
	return k
}

func (a *Aggregate) groupColName(i int) string {
	if i < len(a.groupNames) && a.groupNames[i] != "" {
		return a.groupNames[i]
	}
	return "group" + strconv.Itoa(i)
}

func (a *Aggregate) consume(m *vector.Morsel) error {
	keyCols := make([]*vector.Vector, len(a.groupBy))
	hashes := make([]uint64, m.NumRows())
	for ki, ge := range a.groupBy {
		v, err := expr.Eval(ge, m)
		if err != nil {
			return err
		}
		keyCols[ki] = v
		vector.HashInto(v, hashes, 0)
	}

	argCols := make([][]*vector.Vector, len(a.aggs))
	for ai, spec := range a.aggs {
		argCols[ai] = make([]*vector.Vector, len(spec.Fn.Args))
		for j, arg := range spec.Fn.Args {
			v, err := expr.Eval(arg, m)
			if err != nil {
				return err
			}
			argCols[ai][j] = v
		}
	}

	for r := 0; r < m.NumRows(); r++ {
		gi, err := a.findOrCreateGroup(hashes[r], keyCols, r)
		if err != nil {
			return err
		}
		for ai, spec := range a.aggs {
			if err := a.updateAccumulator(a.accs[gi][ai], spec, argCols[ai], r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *Aggregate) findOrCreateGroup(hash uint64, keyCols []*vector.Vector, row int) (int, error) {
	for _, gi := range a.groupIndex[hash] {
		ok, err := a.groupKeyEquals(int(gi), keyCols, row)
		if err != nil {
			return 0, err
		}
		if ok {
			return int(gi), nil
		}
	}
	gi := len(a.groupKeys)
	keyVec := make([]*vector.Vector, len(keyCols))
	for i, c := range keyCols {
		v, err := vector.Take(c, []int32{int32(row)})
		if err != nil {
			return 0, err
		}
		keyVec[i] = v
	}
	schema := make([]vector.Field, len(keyCols))
	for i, c := range keyCols {
		schema[i] = vector.Field{Name: a.groupColName(i), Type: c.Type(), Nullable: true}
	}
	km, err := vector.NewMorsel(vector.Schema{Fields: schema}, keyVec)
	if err != nil {
		return 0, err
	}
	a.groupKeys = append(a.groupKeys, km)
	a.accs = append(a.accs, a.freshAccumulators())
	a.groupIndex[hash] = append(a.groupIndex[hash], int32(gi))
	return gi, nil
}

// groupKeyEquals compares row of keyCols against the stored key for group
// gi. Unlike join equality, GROUP BY treats two NULLs in the same key
// position as equal (SQL grouping semantics, spec §4.6).
func (a *Aggregate) groupKeyEquals(gi int, keyCols []*vector.Vector, row int) (bool, error) {
	stored := a.groupKeys[gi]
	for i, c := range keyCols {
		sv := stored.Columns[i]
		lNull, rNull := c.IsNull(row), sv.IsNull(0)
		if lNull != rNull {
			return false, nil
		}
		if lNull && rNull {
			continue
		}
		lone, err := vector.Take(c, []int32{int32(row)})
		if err != nil {
			return false, err
		}
		res, nullMask, err := vector.Compare(vector.Eq, lone, sv)
		if err != nil {
			return false, err
		}
		if nullMask[0] || !res[0] {
			return false, nil
		}
	}
	return true, nil
}

func (a *Aggregate) updateAccumulator(acc *accumulator, spec AggSpec, args []*vector.Vector, row int) error {
	switch acc.kind {
	case aggCount:
		if len(args) == 0 {
			acc.count++
			return nil
		}
		if args[0].IsNull(row) {
			return nil
		}
		if acc.distinct {
			h := make([]uint64, 1)
			vector.HashInto(args[0], h, 0)
			if !acc.seen.Insert(h[0]) {
				return nil
			}
		}
		acc.count++
	case aggSum, aggAvg:
		if len(args) == 0 || args[0].IsNull(row) {
			return nil
		}
		if acc.distinct {
			h := make([]uint64, 1)
			vector.HashInto(args[0], h, 0)
			if !acc.seen.Insert(h[0]) {
				return nil
			}
		}
		val, err := numericScalar(args[0], row)
		if err != nil {
			return err
		}
		acc.sum += val
		acc.count++
	case aggMin, aggMax:
		if len(args) == 0 || args[0].IsNull(row) {
			return nil
		}
		cand, err := vector.Take(args[0], []int32{int32(row)})
		if err != nil {
			return err
		}
		if acc.best == nil {
			acc.best = cand
			return nil
		}
		op := vector.Gt
		if acc.kind == aggMin {
			op = vector.Lt
		}
		res, nullMask, err := vector.Compare(op, cand, acc.best)
		if err != nil {
			return err
		}
		if !nullMask[0] && res[0] {
			acc.best = cand
		}
	}
	return nil
}

func numericScalar(v *vector.Vector, i int) (float64, error) {
	switch v.Type() {
	case vector.Int8:
		return float64(v.Int8(i)), nil
	case vector.Int16:
		return float64(v.Int16(i)), nil
	case vector.Int32:
		return float64(v.Int32(i)), nil
	case vector.Int64:
		return float64(v.Int64(i)), nil
	case vector.Float32:
		return float64(v.Float32(i)), nil
	case vector.Float64:
		return v.Float64(i), nil
	default:
		return 0, cqlerr.New(cqlerr.TypeMismatch, "physical: aggregate over non-numeric type %s", v.Type())
	}
}

func (a *Aggregate) Next(ctx context.Context) (*vector.Morsel, error) {
	cancelled, err := a.checkNext()
	if err != nil {
		return nil, err
	}
	if cancelled {
		return nil, cancelledErr("Aggregate")
	}
	if a.emitted {
		a.finish()
		return nil, nil
	}
	a.emitted = true

	n := len(a.groupKeys)
	cols := make([]*vector.Vector, 0, len(a.groupBy)+len(a.aggs))
	for ki := range a.groupBy {
		parts := make([]*vector.Vector, n)
		for gi := range a.groupKeys {
			if a.groupKeys[gi] == nil {
				parts[gi] = allNullVector(vector.Field{Type: vector.Int64}, 1)
				continue
			}
			parts[gi] = a.groupKeys[gi].Columns[ki]
		}
		v, err := concatVectors(parts)
		if err != nil {
			return nil, err
		}
		cols = append(cols, v)
	}
	for ai, spec := range a.aggs {
		v, err := a.finalizeAgg(ai, spec, n)
		if err != nil {
			return nil, err
		}
		cols = append(cols, v)
	}
	out, err := vector.NewMorsel(a.schema, cols)
	if err != nil {
		return nil, err
	}
	a.stats.EmittedRows("Aggregate", out.NumRows())
	return out, nil
}

func (a *Aggregate) finalizeAgg(ai int, spec AggSpec, n int) (*vector.Vector, error) {
	kind := accKindOf(spec)
	switch kind {
	case aggCount:
		b := vector.NewFixedWidthBuilder(vector.Field{Type: vector.Int64, Nullable: true})
		for gi := 0; gi < n; gi++ {
			b.AppendInt64(a.accs[gi][ai].count)
		}
		return b.Finish(), nil
	case aggSum:
		b := vector.NewFixedWidthBuilder(vector.Field{Type: vector.Float64, Nullable: true})
		for gi := 0; gi < n; gi++ {
			acc := a.accs[gi][ai]
			if acc.count == 0 {
				b.AppendNull()
				continue
			}
			b.AppendFloat64(acc.sum)
		}
		return b.Finish(), nil
	case aggAvg:
		b := vector.NewFixedWidthBuilder(vector.Field{Type: vector.Float64, Nullable: true})
		for gi := 0; gi < n; gi++ {
			acc := a.accs[gi][ai]
			if acc.count == 0 {
				b.AppendNull()
				continue
			}
			b.AppendFloat64(acc.sum / float64(acc.count))
		}
		return b.Finish(), nil
	case aggMin, aggMax:
		parts := make([]*vector.Vector, n)
		var typ vector.Type = vector.Int64
		for gi := 0; gi < n; gi++ {
			if a.accs[gi][ai].best != nil {
				typ = a.accs[gi][ai].best.Type()
				break
			}
		}
		for gi := 0; gi < n; gi++ {
			best := a.accs[gi][ai].best
			if best == nil {
				parts[gi] = allNullVector(vector.Field{Type: typ}, 1)
				continue
			}
			parts[gi] = best
		}
		return concatVectors(parts)
	default:
		return nil, cqlerr.New(cqlerr.InternalError, "physical: unknown aggregate kind")
	}
}

func (a *Aggregate) Close() error {
	a.close()
	a.groupKeys = nil
	a.accs = nil
	a.groupIndex = nil
	return nil
}

func (a *Aggregate) Cancel() {
	a.cancel()
	a.input.Cancel()
}
