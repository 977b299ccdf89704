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

package connector

import (
	"context"
	"time"

	"coreql/internal/temporal"
	"coreql/pkg/vector"
)

// demoRelation is a single-unit, fully in-memory Connector backing one of
// the three built-in demo datasets. discoveryDates, when non-nil, gives a
// per-row "known as of" date used to honor FOR clauses; only $planets
// populates it (the others don't advertise TemporalPartitioning).
type demoRelation struct {
	name           string
	morsel         *vector.Morsel
	discoveryDates []time.Time // len == morsel.NumRows(), or nil
}

// NewDemoConnectors returns the three built-in read-only relations named
// in spec §6: $planets, $satellites, $astronauts.
func NewDemoConnectors() map[string]Connector {
	return map[string]Connector{
		"$planets":    buildPlanets(),
		"$satellites": buildSatellites(),
		"$astronauts": buildAstronauts(),
	}
}

func (d *demoRelation) ListUnits(ctx context.Context, relationName string, temporalRange *temporal.Range) ([]Unit, error) {
	return []Unit{{ID: d.name, Size: int64(d.morsel.NumRows())}}, nil
}

func (d *demoRelation) ProbeSchema(ctx context.Context, unit Unit) (*vector.Schema, error) {
	s := d.morsel.Schema
	return &s, nil
}

func (d *demoRelation) Supports(cap Capability) bool {
	switch cap {
	case ProjectionPushdown, FilterPushdown, LimitPushdown:
		return true
	case TemporalPartitioning:
		return d.discoveryDates != nil
	default:
		return false
	}
}

func (d *demoRelation) Read(ctx context.Context, unit Unit, projection []string, filter Filter, limit *int64) (MorselIterator, error) {
	m := d.morsel
	if len(projection) > 0 {
		projected, err := m.Project(projection)
		if err != nil {
			return nil, err
		}
		m = projected
	}
	if limit != nil && int64(m.NumRows()) > *limit {
		idx := make([]int32, *limit)
		for i := range idx {
			idx[i] = int32(i)
		}
		cols := make([]*vector.Vector, len(m.Columns))
		for i, c := range m.Columns {
			taken, err := vector.Take(c, idx)
			if err != nil {
				return nil, err
			}
			cols[i] = taken
		}
		limited, err := vector.NewMorsel(m.Schema, cols)
		if err != nil {
			return nil, err
		}
		m = limited
	}
	return NewSliceIterator([]*vector.Morsel{m}), nil
}

// FilterByDiscoveryDate returns the row indices of d whose discoveryDate
// falls within [rng.Start, rng.End], the mechanism behind the $planets
// FOR-clause scenarios in the seed test suite. It is exported so
// internal/physical's Scan operator can apply it as connector-side
// pushdown when the caller recognizes a *demoRelation by type assertion
// (a real connector would instead interpret an opaque Filter expression).
func (d *demoRelation) FilterByDiscoveryDate(rng temporal.Range) []int32 {
	if d.discoveryDates == nil {
		return nil
	}
	// "Known as of" semantics: a row discovered on or before rng.End is
	// visible, regardless of rng.Start — a planet known in 1846 is still
	// known in 1930. rng.Start is unused here but kept on the signature
	// for symmetry with other FOR-clause consumers.
	var idx []int32
	for i, dd := range d.discoveryDates {
		if !dd.After(rng.End) {
			idx = append(idx, int32(i))
		}
	}
	return idx
}

// AsDemoRelation exposes the type assertion physical.Scan needs without
// making demoRelation itself exported.
func AsDemoRelation(c Connector) (*demoRelation, bool) {
	d, ok := c.(*demoRelation)
	return d, ok
}
