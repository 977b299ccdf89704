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

// Package connector defines the Connector capability boundary (spec §6):
// storage backends are an external collaborator out of this module's
// scope, modeled only through this interface. The three read-only
// in-memory demo relations ($planets, $satellites, $astronauts) are the
// one exception carried in-repo, because the seed test suite and the
// demo CLI need something real to query.
package connector

import (
	"context"
	"time"

	"coreql/internal/temporal"
	"coreql/pkg/ast"
	"coreql/pkg/vector"
)

// Capability is one optional pushdown or feature a Connector may support.
type Capability uint8

const (
	ProjectionPushdown Capability = iota
	FilterPushdown
	LimitPushdown
	TemporalPartitioning
)

// Unit is one independently-readable partition of a relation (a blob, a
// file, a date-partition directory — the connector defines what a unit
// means for its backend).
type Unit struct {
	ID   string
	Size int64 // advisory, used for parallel-read scheduling
}

// Filter is the connector-interpretable subset of a predicate pushed down
// to Scan; connectors that don't understand a given shape should ignore
// it and let the physical Filter operator re-evaluate it above the scan
// (pushdown is an optimization, never a correctness requirement).
type Filter = ast.Expr

// Connector is the capability surface any data source implements.
type Connector interface {
	// ListUnits enumerates the partitions of relationName, optionally
	// restricted to a temporal range (nil when no FOR clause applies or
	// the connector doesn't support TemporalPartitioning).
	ListUnits(ctx context.Context, relationName string, temporalRange *temporal.Range) ([]Unit, error)

	// ProbeSchema returns the schema of a single unit. Units of the same
	// relation are expected to share a schema; the planner does not
	// reconcile divergent per-unit schemas.
	ProbeSchema(ctx context.Context, unit Unit) (*vector.Schema, error)

	// Read streams morsels from unit, honoring projection/filter/limit
	// pushdown to whatever extent the connector supports.
	Read(ctx context.Context, unit Unit, projection []string, filter Filter, limit *int64) (MorselIterator, error)

	// Supports reports whether the connector advertises a capability.
	Supports(cap Capability) bool
}

// MorselIterator is the per-unit pull interface a Connector.Read returns.
type MorselIterator interface {
	Next(ctx context.Context) (*vector.Morsel, error) // nil, nil at EOS
	Close() error
}

// sliceIterator adapts a pre-materialized slice of morsels (the shape
// every in-memory demo connector produces) into a MorselIterator.
type sliceIterator struct {
	morsels []*vector.Morsel
	pos     int
}

func (it *sliceIterator) Next(ctx context.Context) (*vector.Morsel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.pos >= len(it.morsels) {
		return nil, nil
	}
	m := it.morsels[it.pos]
	it.pos++
	return m, nil
}

func (it *sliceIterator) Close() error { return nil }

// NewSliceIterator is exported for connectors (in-repo or host-provided)
// that materialize their entire unit's output up front.
func NewSliceIterator(morsels []*vector.Morsel) MorselIterator {
	return &sliceIterator{morsels: morsels}
}

// nowUTCDay truncates t to a UTC midnight boundary. No code in this
// module calls it.
func nowUTCDay(t time.Time) time.Time { return t.UTC().Truncate(24 * time.Hour) }
