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
	"coreql/pkg/cqlerr"
	"coreql/pkg/vector"
)

// UnionAll concatenates left then right, preserving left's row order
// followed by right's (spec §4.6: "UNION ALL is a simple concatenation of
// streams... Set operations preserve the order of the first argument for
// UNION ALL only"). Plain (non-ALL) UNION is not a distinct physical
// operator: the logical builder lowers it to a UnionAll feeding a
// Distinct node, the same way GROUP BY and DISTINCT share one equality
// convention rather than each reimplementing it.
type UnionAll struct {
	base
	left, right Operator
	stats       *stats.Collector

	onLeft bool
}

// NewUnionAll wraps left and right, both assumed to share a schema by
// position (spec §4.6's "positional column matching").
func NewUnionAll(left, right Operator, st *stats.Collector) *UnionAll {
	return &UnionAll{base: newBase("UnionAll"), left: left, right: right, stats: st, onLeft: true}
}

func (u *UnionAll) Open(ctx context.Context) error {
	if err := u.checkOpen(); err != nil {
		return err
	}
	if err := u.left.Open(ctx); err != nil {
		return err
	}
	if err := u.right.Open(ctx); err != nil {
		return err
	}
	u.schema = u.left.Schema()
	return nil
}

func (u *UnionAll) Next(ctx context.Context) (*vector.Morsel, error) {
	cancelled, err := u.checkNext()
	if err != nil {
		return nil, err
	}
	if cancelled {
		return nil, cancelledErr("UnionAll")
	}
	defer stats.Timer(u.stats, "UnionAll")()

	for {
		if u.onLeft {
			m, err := u.left.Next(ctx)
			if err != nil {
				return nil, err
			}
			if m == nil {
				u.onLeft = false
				continue
			}
			u.stats.EmittedRows("UnionAll", m.NumRows())
			return m, nil
		}
		m, err := u.right.Next(ctx)
		if err != nil {
			return nil, err
		}
		if m == nil {
			u.finish()
			return nil, nil
		}
		u.stats.EmittedRows("UnionAll", m.NumRows())
		return m, nil
	}
}

func (u *UnionAll) Close() error {
	u.close()
	if err := u.left.Close(); err != nil {
		return err
	}
	return u.right.Close()
}

func (u *UnionAll) Cancel() {
	u.cancel()
	u.left.Cancel()
	u.right.Cancel()
}

// setOpMode distinguishes INTERSECT from EXCEPT; both are built the same
// way (hash the right side once, then stream the left side through a
// keep/drop membership test), differing only in whether membership keeps
// or drops a row.
type setOpMode uint8

const (
	intersectMode setOpMode = iota
	exceptMode
)

// SetOp implements INTERSECT and EXCEPT via set-algebra on a hash set
// built from the right side (spec §4.6: "INTERSECT/EXCEPT use set-algebra
// on the hash set of one side"). Both operate with SET semantics — the
// output is itself deduplicated, matching every SQL dialect's default
// (non-ALL) behavior, which is the only variant the logical builder
// produces.
type SetOp struct {
	base
	left, right Operator
	mode        setOpMode
	stats       *stats.Collector

	rightSeen map[uint64][]rowRef
	leftSeen  map[uint64][]rowRef
	built     bool
}

// NewSetOp wraps left and right for INTERSECT (mode=intersectMode) or
// EXCEPT (mode=exceptMode).
func NewSetOp(left, right Operator, mode setOpMode, st *stats.Collector) *SetOp {
	return &SetOp{base: newBase("SetOp"), left: left, right: right, mode: mode, stats: st}
}

func (s *SetOp) Open(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.left.Open(ctx); err != nil {
		return err
	}
	if err := s.right.Open(ctx); err != nil {
		return err
	}
	s.schema = s.left.Schema()
	s.rightSeen = make(map[uint64][]rowRef)
	s.leftSeen = make(map[uint64][]rowRef)
	return s.buildRight(ctx)
}

func (s *SetOp) buildRight(ctx context.Context) error {
	if s.built {
		return nil
	}
	s.built = true
	defer stats.Timer(s.stats, "SetOp")()
	for {
		m, err := s.right.Next(ctx)
		if err != nil {
			return err
		}
		if m == nil {
			break
		}
		hashes := make([]uint64, m.NumRows())
		for _, c := range m.Columns {
			vector.HashInto(c, hashes, 0)
		}
		for r := 0; r < m.NumRows(); r++ {
			s.rightSeen[hashes[r]] = append(s.rightSeen[hashes[r]], rowRef{morsel: m, row: r})
		}
	}
	return s.right.Close()
}

func (s *SetOp) Next(ctx context.Context) (*vector.Morsel, error) {
	cancelled, err := s.checkNext()
	if err != nil {
		return nil, err
	}
	if cancelled {
		return nil, cancelledErr("SetOp")
	}
	defer stats.Timer(s.stats, "SetOp")()

	for {
		m, err := s.left.Next(ctx)
		if err != nil {
			return nil, err
		}
		if m == nil {
			s.finish()
			return nil, nil
		}
		keep, err := s.keepMask(m)
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
		s.stats.EmittedRows("SetOp", out.NumRows())
		return out, nil
	}
}

func (s *SetOp) keepMask(m *vector.Morsel) ([]int32, error) {
	n := m.NumRows()
	hashes := make([]uint64, n)
	for _, c := range m.Columns {
		vector.HashInto(c, hashes, 0)
	}
	var keep []int32
	for r := 0; r < n; r++ {
		h := hashes[r]
		inRight, err := bucketContains(s.rightSeen[h], m, r)
		if err != nil {
			return nil, err
		}
		var wanted bool
		switch s.mode {
		case intersectMode:
			wanted = inRight
		case exceptMode:
			wanted = !inRight
		}
		if !wanted {
			continue
		}
		// Output is deduplicated regardless of how many times this row
		// repeats on the left (set, not bag, semantics).
		alreadyEmitted, err := bucketContains(s.leftSeen[h], m, r)
		if err != nil {
			return nil, err
		}
		if alreadyEmitted {
			continue
		}
		s.leftSeen[h] = append(s.leftSeen[h], rowRef{morsel: m, row: r})
		keep = append(keep, int32(r))
	}
	return keep, nil
}

func bucketContains(bucket []rowRef, m *vector.Morsel, row int) (bool, error) {
	for _, ref := range bucket {
		eq, err := rowEquals(m, row, ref.morsel, ref.row)
		if err != nil {
			return false, err
		}
		if eq {
			return true, nil
		}
	}
	return false, nil
}

func (s *SetOp) Close() error {
	s.close()
	s.rightSeen = nil
	s.leftSeen = nil
	return s.left.Close()
}

func (s *SetOp) Cancel() {
	s.cancel()
	s.left.Cancel()
	s.right.Cancel()
}

// setOpModeFor maps a set-op kind name ("Intersect" or "Except") to its
// setOpMode. Nothing calls it: the Builder passes intersectMode or
// exceptMode to buildSetOp directly.
func setOpModeFor(kindName string) (setOpMode, error) {
	switch kindName {
	case "Intersect":
		return intersectMode, nil
	case "Except":
		return exceptMode, nil
	default:
		return 0, cqlerr.New(cqlerr.InternalError, "physical: unknown set-op kind %q", kindName)
	}
}
