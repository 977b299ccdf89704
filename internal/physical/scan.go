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

	"coreql/internal/connector"
	"coreql/internal/expr"
	"coreql/internal/stats"
	"coreql/internal/temporal"
	"coreql/pkg/cqlerr"
	"coreql/pkg/vector"
)

// Scan produces morsels from a Connector (spec §4.6). It pushes down a
// column mask, a connector-interpretable filter, and an optional limit,
// but always re-applies PushedFilter itself once morsels come back: the
// connector's pushdown is an optimization a connector is free to ignore
// (spec §6), so correctness can never depend on it having honored the
// filter.
type Scan struct {
	base
	conn          connector.Connector
	relation      string
	temporalRange *temporal.Range
	columnMask    []string
	pushedFilter  Filter
	pushedLimit   *int64
	parallelism   int
	stats         *stats.Collector

	buffered []*vector.Morsel
	pos      int
	emitted  int64
}

// Filter is the connector-interpretable predicate shape Scan pushes down;
// aliased here so physical doesn't need to import pkg/ast directly for
// this one field's type.
type Filter = connector.Filter

// NewScan constructs a Scan against relationName, resolved through conn.
func NewScan(relationName string, conn connector.Connector, temporalRange *temporal.Range, columnMask []string, pushedFilter Filter, pushedLimit *int64, parallelism int, st *stats.Collector) *Scan {
	return &Scan{
		base:          newBase("Scan"),
		conn:          conn,
		relation:      relationName,
		temporalRange: temporalRange,
		columnMask:    columnMask,
		pushedFilter:  pushedFilter,
		pushedLimit:   pushedLimit,
		parallelism:   parallelism,
		stats:         st,
	}
}

func (s *Scan) Open(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.stats.Open("Scan")
	defer stats.Timer(s.stats, "Scan")()

	units, err := s.conn.ListUnits(ctx, s.relation, s.temporalRange)
	if err != nil {
		return cqlerr.Wrap(cqlerr.IoError, err, "physical: scan %s: ListUnits failed", s.relation)
	}
	if len(units) > 0 {
		sch, err := s.conn.ProbeSchema(ctx, units[0])
		if err != nil {
			return cqlerr.Wrap(cqlerr.IoError, err, "physical: scan %s: ProbeSchema failed", s.relation)
		}
		s.schema = narrowSchema(*sch, s.columnMask)
		if len(s.schema.Fields) > 0 && len(s.schema.Fields) < len(s.columnMask) {
			kept := make([]string, len(s.schema.Fields))
			for i, f := range s.schema.Fields {
				kept[i] = f.Name
			}
			s.columnMask = kept
		}
	}

	pf := connector.Filter(nil)
	if s.conn.Supports(connector.FilterPushdown) {
		pf = s.pushedFilter
	}
	// A connector may ignore the pushed filter, so it only gets the limit
	// when no filter or temporal range is applied here after the read.
	pl := (*int64)(nil)
	if s.conn.Supports(connector.LimitPushdown) && s.pushedFilter == nil && s.temporalRange == nil {
		pl = s.pushedLimit
	}
	proj := []string(nil)
	if s.conn.Supports(connector.ProjectionPushdown) {
		proj = s.columnMask
	}

	prefetcher := connector.NewPrefetcher(s.conn, units, proj, pf, pl, s.parallelism)
	morsels, err := prefetcher.Run(ctx)
	if err != nil {
		return err
	}

	// The demo connectors don't interpret an opaque ast.Expr filter, and
	// no demo relation other than $planets carries a discoverable
	// temporal dimension; both are instead applied here, against the
	// concrete type, exactly as internal/connector/demo.go documents.
	if s.temporalRange != nil {
		if demo, ok := connector.AsDemoRelation(s.conn); ok {
			morsels = applyRowFilter(morsels, demo.FilterByDiscoveryDate(*s.temporalRange))
		}
	}
	if s.pushedFilter != nil {
		morsels, err = filterMorsels(morsels, s.pushedFilter)
		if err != nil {
			return err
		}
	}
	if s.columnMask != nil {
		morsels, err = projectMorsels(morsels, s.columnMask)
		if err != nil {
			return err
		}
	}
	if s.pushedLimit != nil {
		morsels = limitMorsels(morsels, *s.pushedLimit)
	}

	s.buffered = morsels
	return nil
}

func (s *Scan) Next(ctx context.Context) (*vector.Morsel, error) {
	cancelled, err := s.checkNext()
	if err != nil {
		return nil, err
	}
	if cancelled {
		return nil, cancelledErr("Scan")
	}
	if s.pos >= len(s.buffered) {
		s.finish()
		return nil, nil
	}
	m := s.buffered[s.pos]
	s.pos++
	s.emitted += int64(m.NumRows())
	s.stats.ScannedRows(s.relation, m.NumRows())
	return m, nil
}

func (s *Scan) Close() error {
	s.close()
	return nil
}

func (s *Scan) Cancel() { s.cancel() }

func narrowSchema(full vector.Schema, mask []string) vector.Schema {
	if len(mask) == 0 {
		return full
	}
	fields := make([]vector.Field, 0, len(mask))
	for _, name := range mask {
		if idx := full.IndexOf(name); idx >= 0 {
			fields = append(fields, full.Fields[idx])
		}
	}
	return vector.Schema{Fields: fields}
}

func applyRowFilter(morsels []*vector.Morsel, keep []int32) []*vector.Morsel {
	if keep == nil {
		return morsels
	}
	out := make([]*vector.Morsel, 0, len(morsels))
	rowOffset := int32(0)
	for _, m := range morsels {
		n := int32(m.NumRows())
		var local []int32
		for _, idx := range keep {
			if idx >= rowOffset && idx < rowOffset+n {
				local = append(local, idx-rowOffset)
			}
		}
		rowOffset += n
		if len(local) == 0 {
			continue
		}
		cols := make([]*vector.Vector, len(m.Columns))
		for i, c := range m.Columns {
			taken, err := vector.Take(c, local)
			if err != nil {
				continue
			}
			cols[i] = taken
		}
		nm, err := vector.NewMorsel(m.Schema, cols)
		if err == nil {
			out = append(out, nm)
		}
	}
	return out
}

func filterMorsels(morsels []*vector.Morsel, predicate Filter) ([]*vector.Morsel, error) {
	out := make([]*vector.Morsel, 0, len(morsels))
	for _, m := range morsels {
		mask, err := expr.EvalMask(predicate, m)
		if err != nil {
			return nil, err
		}
		cols := make([]*vector.Vector, len(m.Columns))
		for i, c := range m.Columns {
			filtered, err := vector.Filter(c, mask)
			if err != nil {
				return nil, err
			}
			cols[i] = filtered
		}
		nm, err := vector.NewMorsel(m.Schema, cols)
		if err != nil {
			return nil, err
		}
		if nm.NumRows() == 0 {
			continue
		}
		out = append(out, nm)
	}
	return out, nil
}

func projectMorsels(morsels []*vector.Morsel, names []string) ([]*vector.Morsel, error) {
	out := make([]*vector.Morsel, 0, len(morsels))
	for _, m := range morsels {
		pm, err := m.Project(names)
		if err != nil {
			return nil, err
		}
		out = append(out, pm)
	}
	return out, nil
}

func limitMorsels(morsels []*vector.Morsel, limit int64) []*vector.Morsel {
	out := make([]*vector.Morsel, 0, len(morsels))
	var seen int64
	for _, m := range morsels {
		if seen >= limit {
			break
		}
		remaining := limit - seen
		if int64(m.NumRows()) <= remaining {
			out = append(out, m)
			seen += int64(m.NumRows())
			continue
		}
		idx := make([]int32, remaining)
		for i := range idx {
			idx[i] = int32(i)
		}
		cols := make([]*vector.Vector, len(m.Columns))
		for i, c := range m.Columns {
			taken, err := vector.Take(c, idx)
			if err != nil {
				return out
			}
			cols[i] = taken
		}
		nm, err := vector.NewMorsel(m.Schema, cols)
		if err == nil {
			out = append(out, nm)
		}
		break
	}
	return out
}
