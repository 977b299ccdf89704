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
	"time"

	"coreql/pkg/vector"
)

// The helpers below exist only to keep the three fixture builders
// (demo_planets.go, demo_satellites.go, demo_astronauts.go) free of
// repeated vector.Field boilerplate; none of it is part of the public
// Connector surface.

func newInt32Builder(name string, nullable bool) *vector.FixedWidthBuilder {
	return vector.NewFixedWidthBuilder(vector.Field{Name: name, Type: vector.Int32, Nullable: nullable})
}

func newFloat64Builder(name string, nullable bool) *vector.FixedWidthBuilder {
	return vector.NewFixedWidthBuilder(vector.Field{Name: name, Type: vector.Float64, Nullable: nullable})
}

func newBoolBuilder(name string, nullable bool) *vector.FixedWidthBuilder {
	return vector.NewFixedWidthBuilder(vector.Field{Name: name, Type: vector.Bool, Nullable: nullable})
}

func newStringBuilder(name string, nullable bool) *vector.StringVectorBuilder {
	return vector.NewStringVectorBuilder(vector.Field{Name: name, Nullable: nullable})
}

type namedCol struct {
	name string
	vec  *vector.Vector
}

func namedVector(name string, v *vector.Vector) namedCol { return namedCol{name: name, vec: v} }

// mustMorsel assembles a Morsel from named columns, panicking on the sole
// failure mode (mismatched column lengths) since these fixtures are
// constructed once at process start from data under our control.
func mustMorsel(cols ...namedCol) *vector.Morsel {
	fields := make([]vector.Field, len(cols))
	vecs := make([]*vector.Vector, len(cols))
	for i, c := range cols {
		f := c.vec.Field()
		f.Name = c.name
		fields[i] = f
		vecs[i] = c.vec
	}
	m, err := vector.NewMorsel(vector.Schema{Fields: fields}, vecs)
	if err != nil {
		panic("connector: demo fixture malformed: " + err.Error())
	}
	return m
}

const dayLayout = "2006-01-02"

func mustParseDay(s string) time.Time {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		panic("connector: demo fixture has invalid date " + s + ": " + err.Error())
	}
	return t
}
