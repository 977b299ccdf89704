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

	"coreql/pkg/vector"
)

// singleRowSeedColumn names the one placeholder column SingleRow
// produces, so a bare `FROM UNNEST(...)` (no table to correlate against)
// has a one-row stream to drive a CrossJoinUnnest from. The Builder
// always wraps a bare unnest in a Project that drops this column before
// it reaches a caller.
const singleRowSeedColumn = "_seed"

// SingleRow emits exactly one row with a single placeholder column, then
// exhausts. It exists only to give CrossJoinUnnest a row-context to
// expand against when a query unnests a constant/parameter list with no
// other FROM source (spec §4.2's UNNEST can stand alone in a FROM
// clause).
type SingleRow struct {
	base
	emitted bool
}

// NewSingleRow returns a stream of exactly one row.
func NewSingleRow() *SingleRow { return &SingleRow{base: newBase("SingleRow")} }

func (s *SingleRow) Open(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.schema = vector.Schema{Fields: []vector.Field{{Name: singleRowSeedColumn, Type: vector.Bool, Nullable: false}}}
	return nil
}

func (s *SingleRow) Next(ctx context.Context) (*vector.Morsel, error) {
	cancelled, err := s.checkNext()
	if err != nil {
		return nil, err
	}
	if cancelled {
		return nil, cancelledErr("SingleRow")
	}
	if s.emitted {
		s.finish()
		return nil, nil
	}
	s.emitted = true
	b := vector.NewFixedWidthBuilder(s.schema.Fields[0])
	b.AppendBool(true)
	return vector.NewMorsel(s.schema, []*vector.Vector{b.Finish()})
}

func (s *SingleRow) Close() error {
	s.close()
	return nil
}

func (s *SingleRow) Cancel() { s.cancel() }
