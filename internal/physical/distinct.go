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

	"coreql/internal/stats"
	"coreql/pkg/vector"
)

// Distinct suppresses rows whose full column tuple has already been seen
// (spec §4.6: it backs both bare SELECT DISTINCT and the Distinct node
// the logical builder splices in under a UNION's set-union). Two NULLs in
// the same column position are treated as equal for this purpose, the
// same convention GROUP BY uses (distinct from JOIN ON's any-null-means-
// no-match rule) — DISTINCT and GROUP BY are both "collapse identical
// rows" operations, just with differing output shapes.
type Distinct struct {
	base
	input Operator
	stats *stats.Collector

	seen map[uint64][]rowRef
}

// rowRef pins a previously-accepted distinct row, for the bucket recheck
// that keeps a hash collision from silently dropping a distinct row.
type rowRef struct {
	morsel *vector.Morsel
	row    int
}

// NewDistinct wraps input, emitting only the first occurrence of each
// distinct row.
func NewDistinct(input Operator, st *stats.Collector) *Distinct {
	return &Distinct{base: newBase("Distinct"), input: input, stats: st, seen: make(map[uint64][]rowRef)}
}

func (d *Distinct) Open(ctx context.Context) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	if err := d.input.Open(ctx); err != nil {
		return err
	}
	d.schema = d.input.Schema()
	return nil
}

func (d *Distinct) Next(ctx context.Context) (*vector.Morsel, error) {
	cancelled, err := d.checkNext()
	if err != nil {
		return nil, err
	}
	if cancelled {
		return nil, cancelledErr("Distinct")
	}
	defer stats.Timer(d.stats, "Distinct")()

	for {
		m, err := d.input.Next(ctx)
		if err != nil {
			return nil, err
		}
		if m == nil {
			d.finish()
			return nil, nil
		}
		keep, err := d.keepMask(m)
		if err != nil {
			return nil, err
		}
		out, err := takeMorsel(m, keep)
		if err != nil {
			return nil, err
		}
		if emptyMorselOK(out) {
			continue
		}
		d.stats.EmittedRows("Distinct", out.NumRows())
		return out, nil
	}
}

// keepMask computes, for every row in m, a composite hash over all
// columns and checks it against rows already accepted. A bucket recheck
// via rowEquals (not a bare hash compare) prevents hash collisions from
// being mistaken for true duplicates.
func (d *Distinct) keepMask(m *vector.Morsel) ([]int32, error) {
	n := m.NumRows()
	hashes := make([]uint64, n)
	for _, c := range m.Columns {
		vector.HashInto(c, hashes, 0)
	}
	var keep []int32
	for r := 0; r < n; r++ {
		h := hashes[r]
		dup := false
		for _, ref := range d.seen[h] {
			eq, err := rowEquals(m, r, ref.morsel, ref.row)
			if err != nil {
				return nil, err
			}
			if eq {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		d.seen[h] = append(d.seen[h], rowRef{morsel: m, row: r})
		keep = append(keep, int32(r))
	}
	return keep, nil
}

// rowEquals compares every column of row ra in a against row rb in b,
// treating NULL as equal to NULL (grouping/distinct semantics, not join
// semantics).
func rowEquals(a *vector.Morsel, ra int, b *vector.Morsel, rb int) (bool, error) {
	for fi := range a.Columns {
		av, bv := a.Columns[fi], b.Columns[fi]
		aNull, bNull := av.IsNull(ra), bv.IsNull(rb)
		if aNull && bNull {
			continue
		}
		if aNull != bNull {
			return false, nil
		}
		lone, err := vector.Take(av, []int32{int32(ra)})
		if err != nil {
			return false, err
		}
		rone, err := vector.Take(bv, []int32{int32(rb)})
		if err != nil {
			return false, err
		}
		res, _, err := vector.Compare(vector.Eq, lone, rone)
		if err != nil {
			return false, err
		}
		if !res[0] {
			return false, nil
		}
	}
	return true, nil
}

func (d *Distinct) Close() error {
	d.close()
	d.seen = nil
	return d.input.Close()
}

func (d *Distinct) Cancel() {
	d.cancel()
	d.input.Cancel()
}
