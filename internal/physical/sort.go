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
	"sort"

	"coreql/internal/expr"
	"coreql/internal/stats"
	"coreql/pkg/ast"
	"coreql/pkg/vector"
)

// Sort buffers its entire input, then emits it back out in ORDER BY
// order (spec §4.6). When the logical plan paired Sort with a LIMIT, the
// optimizer sets FuseLimit and the Builder constructs a HeapSortLimit
// instead, which never buffers more than `limit` rows at once.
type Sort struct {
	base
	input   Operator
	orderBy []ast.OrderItem
	stats   *stats.Collector

	rows  []buildRow
	order []int32
	pos   int
}

// NewSort wraps input, fully buffering and reordering it by orderBy.
func NewSort(input Operator, orderBy []ast.OrderItem, st *stats.Collector) *Sort {
	return &Sort{base: newBase("Sort"), input: input, orderBy: orderBy, stats: st}
}

func (s *Sort) Open(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.input.Open(ctx); err != nil {
		return err
	}
	s.schema = s.input.Schema()
	defer stats.Timer(s.stats, "Sort")()

	for {
		m, err := s.input.Next(ctx)
		if err != nil {
			return err
		}
		if m == nil {
			break
		}
		for r := 0; r < m.NumRows(); r++ {
			s.rows = append(s.rows, buildRow{morsel: m, row: r})
		}
	}
	if err := s.input.Close(); err != nil {
		return err
	}

	keyCols, err := s.evalKeys()
	if err != nil {
		return err
	}
	s.order = make([]int32, len(s.rows))
	for i := range s.order {
		s.order[i] = int32(i)
	}
	cmp := orderItemComparator(s.orderBy, keyCols)
	sort.SliceStable(s.order, func(i, j int) bool {
		return cmp(int(s.order[i]), int(s.order[j])) < 0
	})
	return nil
}

// evalKeys evaluates each ORDER BY expression against every buffered row,
// producing one single-row vector per (row, key) pair — a simple, if not
// maximally efficient, way to reuse the per-row Eval path rather than
// requiring every sort key expression to be re-derivable from a shared
// schema across heterogeneous source morsels.
func (s *Sort) evalKeys() ([][]*vector.Vector, error) {
	keyCols := make([][]*vector.Vector, len(s.rows))
	for i, br := range s.rows {
		row := sliceMorsel(br.morsel, br.row)
		cols := make([]*vector.Vector, len(s.orderBy))
		for ki, oi := range s.orderBy {
			v, err := expr.Eval(oi.Expr, row)
			if err != nil {
				return nil, err
			}
			cols[ki] = v
		}
		keyCols[i] = cols
	}
	return keyCols, nil
}

// orderItemComparator returns a three-way comparator over row indices
// into keyCols, honoring each ORDER BY item's direction and SQL's NULLS
// LAST default (nulls sort after every non-null value regardless of
// ASC/DESC, the common convention the other comparisons in this package
// follow).
func orderItemComparator(items []ast.OrderItem, keyCols [][]*vector.Vector) func(i, j int) int {
	return func(i, j int) int {
		for k, item := range items {
			a, b := keyCols[i][k], keyCols[j][k]
			aNull, bNull := a.IsNull(0), b.IsNull(0)
			switch {
			case aNull && bNull:
				continue
			case aNull:
				return 1
			case bNull:
				return -1
			}
			res, _, err := vector.Compare(vector.Lt, a, b)
			if err == nil && res[0] {
				if item.Desc {
					return 1
				}
				return -1
			}
			res, _, err = vector.Compare(vector.Gt, a, b)
			if err == nil && res[0] {
				if item.Desc {
					return -1
				}
				return 1
			}
		}
		return 0
	}
}

func (s *Sort) Next(ctx context.Context) (*vector.Morsel, error) {
	cancelled, err := s.checkNext()
	if err != nil {
		return nil, err
	}
	if cancelled {
		return nil, cancelledErr("Sort")
	}
	if s.pos >= len(s.order) {
		s.finish()
		return nil, nil
	}
	const chunk = vector.DefaultMorselLen
	end := s.pos + chunk
	if end > len(s.order) {
		end = len(s.order)
	}
	idx := s.order[s.pos:end]
	s.pos = end

	out, err := s.gather(idx)
	if err != nil {
		return nil, err
	}
	s.stats.EmittedRows("Sort", out.NumRows())
	return out, nil
}

func (s *Sort) gather(idx []int32) (*vector.Morsel, error) {
	cols := make([]*vector.Vector, len(s.schema.Fields))
	for fi := range s.schema.Fields {
		parts := make([]*vector.Vector, len(idx))
		for i, ri := range idx {
			br := s.rows[ri]
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
		cols[fi] = v
	}
	return vector.NewMorsel(s.schema, cols)
}

func (s *Sort) Close() error {
	s.close()
	s.rows = nil
	s.order = nil
	return nil
}

func (s *Sort) Cancel() {
	s.cancel()
	s.input.Cancel()
}

// HeapSortLimit fuses ORDER BY with a following LIMIT n (spec §4.6,
// optimizer phase 5): it keeps only the n best rows seen so far in a
// bounded buffer (rowHeap), so at no point does it
// buffer more than n rows regardless of input size.
type HeapSortLimit struct {
	base
	input   Operator
	orderBy []ast.OrderItem
	limit   int64
	stats   *stats.Collector

	heap *rowHeap
	out  []int32
	pos  int
}

// NewHeapSortLimit wraps input, retaining only the top `limit` rows in
// orderBy order.
func NewHeapSortLimit(input Operator, orderBy []ast.OrderItem, limit int64, st *stats.Collector) *HeapSortLimit {
	return &HeapSortLimit{base: newBase("HeapSortLimit"), input: input, orderBy: orderBy, limit: limit, stats: st}
}

func (h *HeapSortLimit) Open(ctx context.Context) error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	if err := h.input.Open(ctx); err != nil {
		return err
	}
	h.schema = h.input.Schema()
	defer stats.Timer(h.stats, "HeapSortLimit")()

	if h.limit <= 0 {
		if err := h.input.Close(); err != nil {
			return err
		}
		return nil
	}
	h.heap = newRowHeap(h.orderBy, int(h.limit))
	for {
		m, err := h.input.Next(ctx)
		if err != nil {
			return err
		}
		if m == nil {
			break
		}
		for r := 0; r < m.NumRows(); r++ {
			row := sliceMorsel(m, r)
			keys := make([]*vector.Vector, len(h.orderBy))
			for ki, oi := range h.orderBy {
				v, err := expr.Eval(oi.Expr, row)
				if err != nil {
					return err
				}
				keys[ki] = v
			}
			h.heap.offer(buildRow{morsel: m, row: r}, keys)
		}
	}
	if err := h.input.Close(); err != nil {
		return err
	}
	h.out = h.heap.sortedIndices()
	return nil
}

func (h *HeapSortLimit) Next(ctx context.Context) (*vector.Morsel, error) {
	cancelled, err := h.checkNext()
	if err != nil {
		return nil, err
	}
	if cancelled {
		return nil, cancelledErr("HeapSortLimit")
	}
	if h.pos >= len(h.out) {
		h.finish()
		return nil, nil
	}
	const chunk = vector.DefaultMorselLen
	end := h.pos + chunk
	if end > len(h.out) {
		end = len(h.out)
	}
	idx := h.out[h.pos:end]
	h.pos = end

	cols := make([]*vector.Vector, len(h.schema.Fields))
	for fi := range h.schema.Fields {
		parts := make([]*vector.Vector, len(idx))
		for i, ri := range idx {
			br := h.heap.rows[ri]
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
		cols[fi] = v
	}
	out, err := vector.NewMorsel(h.schema, cols)
	if err != nil {
		return nil, err
	}
	h.stats.EmittedRows("HeapSortLimit", out.NumRows())
	return out, nil
}

func (h *HeapSortLimit) Close() error {
	h.close()
	h.heap = nil
	return nil
}

func (h *HeapSortLimit) Cancel() {
	h.cancel()
	h.input.Cancel()
}

// rowHeap is an unordered buffer (not a heap: worstIndex finds the worst
// kept row by linear scan) over at most `cap` rows: offering a row worse than the current
// worst-of-the-kept-n is a no-op, keeping memory bounded at exactly cap.
type rowHeap struct {
	orderBy []ast.OrderItem
	cap     int
	rows    []buildRow
	keys    [][]*vector.Vector
}

func newRowHeap(orderBy []ast.OrderItem, cap int) *rowHeap {
	return &rowHeap{orderBy: orderBy, cap: cap}
}

func (h *rowHeap) offer(br buildRow, keys []*vector.Vector) {
	if len(h.rows) < h.cap {
		h.rows = append(h.rows, br)
		h.keys = append(h.keys, keys)
		return
	}
	worstIdx := h.worstIndex()
	cmp := orderItemComparator(h.orderBy, append(append([][]*vector.Vector{}, h.keys...), keys))
	if cmp(len(h.keys), worstIdx) < 0 {
		h.rows[worstIdx] = br
		h.keys[worstIdx] = keys
	}
}

// worstIndex does a linear scan for the current worst-kept row; cap is
// expected to be small relative to the input (a LIMIT clause), so this
// trades heap-invariant bookkeeping for a simpler, obviously-correct scan.
func (h *rowHeap) worstIndex() int {
	cmp := orderItemComparator(h.orderBy, h.keys)
	worst := 0
	for i := 1; i < len(h.rows); i++ {
		if cmp(i, worst) > 0 {
			worst = i
		}
	}
	return worst
}

func (h *rowHeap) sortedIndices() []int32 {
	idx := make([]int32, len(h.rows))
	for i := range idx {
		idx[i] = int32(i)
	}
	cmp := orderItemComparator(h.orderBy, h.keys)
	sort.SliceStable(idx, func(i, j int) bool {
		return cmp(int(idx[i]), int(idx[j])) < 0
	})
	return idx
}
