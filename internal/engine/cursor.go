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
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"coreql/internal/physical"
	"coreql/internal/plan"
	"coreql/internal/stats"
	"coreql/pkg/cqlerr"
	"coreql/pkg/vector"
)

// Row is one logical result row, keyed by output column name. The
// physical layer is columnar (vector.Morsel); Row exists only at the
// cursor boundary, where spec §6's row-oriented fetch_one/fetch_many/
// fetch_all API needs a value shape a caller that never heard of a
// Vector can consume directly.
type Row map[string]any

// Cursor implements spec §6's result API: FetchOne, FetchMany, FetchAll,
// ToArrow, Cancel, plus Explain for the EXPLAIN/EXPLAIN ANALYZE surface.
// One Cursor is returned per Execute call and is not safe to share across
// queries; it is safe to call its methods from a single goroutine at a
// time (the internal mutex only guards against accidental concurrent use,
// it does not parallelize fetches).
type Cursor struct {
	mu sync.Mutex

	id    uuid.UUID
	root  physical.Operator // nil for a plain (non-ANALYZE) EXPLAIN cursor
	arena *plan.Arena
	rules map[string]int
	stats *stats.Collector
	log   *zap.Logger

	ctx       context.Context
	cancelCtx context.CancelFunc

	opened     bool
	exhausted  bool
	err        error
	pending    *vector.Morsel
	pendingRow int

	explainText string // set for a plain EXPLAIN cursor (root == nil)
}

// newCursor wires a built operator tree behind the pull API, deriving its
// own cancellable context from parent so Cancel (spec §5) works without
// the caller needing to thread one through every Fetch call.
func newCursor(parent context.Context, root physical.Operator, arena *plan.Arena, rules map[string]int, qc *QueryContext) *Cursor {
	ctx, cancel := context.WithCancel(parent)
	if qc.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, qc.Timeout)
	}
	return &Cursor{
		id:        uuid.New(),
		root:      root,
		arena:     arena,
		rules:     rules,
		stats:     qc.Stats,
		log:       qc.Logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}
}

// newExplainCursor builds a cursor for a plain (non-ANALYZE) EXPLAIN
// statement: no operator is ever built or run (build.go's design note:
// "a caller inspects the Arena's root Kind itself before calling Build").
func newExplainCursor(arena *plan.Arena, rules map[string]int, text string) *Cursor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Cursor{
		id:          uuid.New(),
		arena:       arena,
		rules:       rules,
		ctx:         ctx,
		cancelCtx:   cancel,
		exhausted:   true,
		explainText: text,
	}
}

// ID is the per-cursor identifier used to correlate stats and log lines
// across a single query's lifetime.
func (c *Cursor) ID() uuid.UUID { return c.id }

// FetchOne returns the next row, or (nil, nil) once the result set is
// exhausted. Per spec §7's propagation rule, a non-nil error is sticky:
// once returned it is returned again by every subsequent call, and rows
// already delivered before the error remain valid.
func (c *Cursor) FetchOne() (Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	row, ok, err := c.nextRowLocked()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return row, nil
}

// FetchMany returns up to n rows, stopping early at end-of-stream or at
// the first error. A short read (fewer than n rows, nil error) means the
// result set is exhausted; rows already collected are returned alongside
// a non-nil error rather than discarded.
func (c *Cursor) FetchMany(n int) ([]Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 {
		return nil, nil
	}
	rows := make([]Row, 0, n)
	for len(rows) < n {
		row, ok, err := c.nextRowLocked()
		if err != nil {
			return rows, err
		}
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// FetchAll drains the entire result set.
func (c *Cursor) FetchAll() ([]Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var rows []Row
	for {
		row, ok, err := c.nextRowLocked()
		if err != nil {
			return rows, err
		}
		if !ok {
			return rows, nil
		}
		rows = append(rows, row)
	}
}

// Cancel requests cooperative shutdown (spec §5): the operator tree's
// in-flight Next completes, then every later Next call returns Cancelled.
// Safe to call more than once and from a different goroutine than the one
// driving FetchOne/Many/All.
func (c *Cursor) Cancel() {
	c.mu.Lock()
	root := c.root
	c.mu.Unlock()
	c.cancelCtx()
	if root != nil {
		root.Cancel()
	}
}

// Explain renders the logical plan as a text tree annotated with
// optimizer rule-application counters (spec §6). When analyze is true and
// the cursor has an operator tree, it is fully drained first so the
// counters and per-operator prometheus metrics in the collector's
// registry (qc.Stats.Registry) reflect what actually ran, not just what
// the optimizer predicted.
func (c *Cursor) Explain(analyze bool) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if analyze && c.root != nil {
		for {
			_, ok, err := c.nextRowLocked()
			if err != nil || !ok {
				break
			}
		}
	}
	if c.explainText != "" {
		return c.explainText
	}
	return c.arena.Explain(c.rules)
}

// ToArrow materializes the remainder of the result set as a single Arrow
// table (spec §6's to_arrow()), one record per morsel pulled from the
// operator tree; a cursor already partially drained via FetchOne/Many
// only exports what's left, matching FetchAll's same "whatever remains"
// contract.
func (c *Cursor) ToArrow() (arrow.Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.root == nil {
		return nil, cqlerr.New(cqlerr.InvalidState, "engine: ToArrow called on a plain EXPLAIN cursor")
	}
	if err := c.ensureOpenLocked(); err != nil {
		return nil, err
	}
	mem := memory.NewGoAllocator()
	schema := c.root.Schema()

	var records []arrow.Record
	var arrowSchema *arrow.Schema
	if c.pending != nil && c.pendingRow < c.pending.NumRows() {
		rest, err := remainingRows(c.pending, c.pendingRow)
		if err != nil {
			c.fail(err)
			return nil, err
		}
		rec, as, err := morselToRecord(rest, mem, arrowSchema)
		if err != nil {
			c.fail(err)
			return nil, err
		}
		arrowSchema = as
		records = append(records, rec)
		c.pending = nil
		c.pendingRow = 0
	}
	for {
		m, err := c.root.Next(c.ctx)
		if err != nil {
			c.fail(err)
			return nil, err
		}
		if m == nil {
			c.exhausted = true
			break
		}
		if m.NumRows() == 0 {
			continue
		}
		rec, as, err := morselToRecord(m, mem, arrowSchema)
		if err != nil {
			c.fail(err)
			return nil, err
		}
		arrowSchema = as
		records = append(records, rec)
	}
	if arrowSchema == nil {
		empty, as, err := emptyRecord(schema, mem)
		if err != nil {
			return nil, err
		}
		arrowSchema, records = as, []arrow.Record{empty}
	}
	return array.NewTableFromRecords(arrowSchema, records), nil
}

func (c *Cursor) fail(err error) {
	if c.err == nil {
		c.err = err
		if c.log != nil {
			c.log.Error("query failed", zap.String("cursor", c.id.String()), zap.Error(err))
		}
	}
}

func (c *Cursor) ensureOpenLocked() error {
	if c.err != nil {
		return c.err
	}
	if c.opened {
		return nil
	}
	c.opened = true
	if err := c.root.Open(c.ctx); err != nil {
		c.fail(err)
		return err
	}
	return nil
}

// nextRowLocked is the single place that pulls morsels from the root
// operator and slices them one row at a time; callers must hold c.mu.
func (c *Cursor) nextRowLocked() (Row, bool, error) {
	if c.err != nil {
		return nil, false, c.err
	}
	if c.root == nil {
		return nil, false, nil // plain EXPLAIN cursor: no rows, ever
	}
	if err := c.ensureOpenLocked(); err != nil {
		return nil, false, err
	}
	for {
		if c.pending != nil && c.pendingRow < c.pending.NumRows() {
			row := rowAt(c.pending, c.pendingRow)
			c.pendingRow++
			return row, true, nil
		}
		if c.exhausted {
			return nil, false, nil
		}
		m, err := c.root.Next(c.ctx)
		if err != nil {
			c.fail(err)
			return nil, false, err
		}
		if m == nil {
			c.exhausted = true
			return nil, false, nil
		}
		c.pending = m
		c.pendingRow = 0
	}
}

// rowAt reads logical row i of m into a Row, typed by each column's
// vector.Type (spec §3's primitive type set).
func rowAt(m *vector.Morsel, i int) Row {
	row := make(Row, len(m.Schema.Fields))
	for fi, f := range m.Schema.Fields {
		col := m.Columns[fi]
		row[f.Name] = valueAt(col, i)
	}
	return row
}

func valueAt(v *vector.Vector, i int) any {
	if v.IsNull(i) {
		return nil
	}
	switch v.Type() {
	case vector.Bool:
		return v.Bool(i)
	case vector.Int8:
		return v.Int8(i)
	case vector.Int16, vector.Time32:
		return v.Int16(i)
	case vector.Int32, vector.Date32:
		return v.Int32(i)
	case vector.Int64, vector.Timestamp64, vector.Time64:
		return v.Int64(i)
	case vector.Float32:
		return v.Float32(i)
	case vector.Float64:
		return v.Float64(i)
	case vector.String:
		return v.String(i)
	case vector.Binary:
		return v.Binary(i)
	case vector.List:
		start, end := v.ListRange(i)
		child := v.ListChild()
		out := make([]any, 0, end-start)
		for ci := start; ci < end; ci++ {
			out = append(out, valueAt(child, int(ci)))
		}
		return out
	case vector.Struct:
		return nil // struct columns aren't part of the row-map surface yet
	default:
		return nil
	}
}

// remainingRows slices m down to rows [from, NumRows), used by ToArrow to
// export only what a partially-drained cursor has left to give.
func remainingRows(m *vector.Morsel, from int) (*vector.Morsel, error) {
	idx := make([]int32, 0, m.NumRows()-from)
	for r := from; r < m.NumRows(); r++ {
		idx = append(idx, int32(r))
	}
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

// morselToRecord converts one morsel into an arrow.Record. schema is nil
// on the first call (it's derived from the first morsel's arrow types)
// and reused afterwards, since every morsel pulled from the same operator
// shares one logical output schema.
func morselToRecord(m *vector.Morsel, mem memory.Allocator, schema *arrow.Schema) (arrow.Record, *arrow.Schema, error) {
	cols := make([]arrow.Array, len(m.Columns))
	fields := make([]arrow.Field, len(m.Columns))
	for i, col := range m.Columns {
		arr, err := vector.ToArrow(col, mem)
		if err != nil {
			return nil, nil, cqlerr.Wrap(cqlerr.UnsupportedOperation, err, "engine: to_arrow: column %q", m.Schema.Fields[i].Name)
		}
		cols[i] = arr
		fields[i] = arrow.Field{Name: m.Schema.Fields[i].Name, Type: arr.DataType(), Nullable: m.Schema.Fields[i].Nullable}
	}
	if schema == nil {
		schema = arrow.NewSchema(fields, nil)
	}
	return array.NewRecord(schema, cols, int64(m.NumRows())), schema, nil
}

// emptyRecord builds a zero-row record for a query whose result set is
// empty outright, so ToArrow never returns a table with no schema.
func emptyRecord(schema vector.Schema, mem memory.Allocator) (arrow.Record, *arrow.Schema, error) {
	cols := make([]*vector.Vector, len(schema.Fields))
	for i, f := range schema.Fields {
		if f.Type == vector.String || f.Type == vector.Binary {
			cols[i] = vector.NewStringVectorBuilder(f).Finish()
		} else {
			cols[i] = vector.NewFixedWidthBuilder(f).Finish()
		}
	}
	m, err := vector.NewMorsel(schema, cols)
	if err != nil {
		return nil, nil, err
	}
	return morselToRecord(m, mem, nil)
}
