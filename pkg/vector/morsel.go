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

package vector

import "fmt"

// DefaultMorselLen is the target row count per morsel handed between
// operators; this is a guideline for producers, not an invariant
// enforced by Morsel itself.
const DefaultMorselLen = 16384

// Morsel is an ordered tuple of equally-long vectors plus a schema. It is
// the unit of inter-operator data transfer.
type Morsel struct {
	Schema  Schema
	Columns []*Vector
}

// NewMorsel validates that every column shares a single length and that
// the column count matches the schema, then returns the assembled Morsel.
func NewMorsel(schema Schema, columns []*Vector) (*Morsel, error) {
	if len(columns) != len(schema.Fields) {
		return nil, fmt.Errorf("vector: schema has %d fields, got %d columns", len(schema.Fields), len(columns))
	}
	if len(columns) > 0 {
		n := columns[0].Len()
		for i, c := range columns[1:] {
			if c.Len() != n {
				return nil, fmt.Errorf("vector: column %d length %d != column 0 length %d", i+1, c.Len(), n)
			}
		}
	}
	return &Morsel{Schema: schema, Columns: columns}, nil
}

// NumRows returns the morsel's row count (0 for a column-less morsel).
func (m *Morsel) NumRows() int {
	if len(m.Columns) == 0 {
		return 0
	}
	return m.Columns[0].Len()
}

// Column returns the named column, or nil if absent.
func (m *Morsel) Column(name string) *Vector {
	idx := m.Schema.IndexOf(name)
	if idx < 0 {
		return nil
	}
	return m.Columns[idx]
}

// Release releases every column's buffers (or foreign references).
func (m *Morsel) Release() {
	for _, c := range m.Columns {
		c.Release()
	}
}

// Project returns a new Morsel retaining only the named columns, in the
// given order. Used by the physical Project operator to drop unreferenced
// columns without copying vector data.
func (m *Morsel) Project(names []string) (*Morsel, error) {
	fields := make([]Field, len(names))
	cols := make([]*Vector, len(names))
	for i, name := range names {
		idx := m.Schema.IndexOf(name)
		if idx < 0 {
			return nil, fmt.Errorf("vector: column %q not found in morsel", name)
		}
		fields[i] = m.Schema.Fields[idx]
		cols[i] = m.Columns[idx]
	}
	return &Morsel{Schema: Schema{Fields: fields}, Columns: cols}, nil
}
