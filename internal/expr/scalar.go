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

// Package expr evaluates the scalar/boolean expression algebra (pkg/ast)
// over one Morsel at a time, producing an output vector of the same
// length. Constant folding is the optimizer's job (SPEC_FULL §4.3); this
// package assumes no folding is needed at runtime.
package expr

import "coreql/pkg/vector"

// scalar is one row's evaluated value, tagged by the vector.Type it holds.
// It is the evaluator's internal per-row currency; callers never see it.
type scalar struct {
	typ  vector.Type
	null bool
	b    bool
	i    int64
	f    float64
	s    string
}

func nullScalar(t vector.Type) scalar { return scalar{typ: t, null: true} }

func boolScalar(b bool) scalar   { return scalar{typ: vector.Bool, b: b} }
func intScalar(i int64) scalar   { return scalar{typ: vector.Int64, i: i} }
func fltScalar(f float64) scalar { return scalar{typ: vector.Float64, f: f} }
func strScalar(s string) scalar  { return scalar{typ: vector.String, s: s} }

// asFloat widens an Int64 or Float64 scalar to float64. Any other type
// returns the f field (zero) without complaint; callers only invoke it
// after arithmetic-eligibility has already been checked.
func (s scalar) asFloat() float64 {
	if s.typ == vector.Int64 {
		return float64(s.i)
	}
	return s.f
}

func isNumeric(t vector.Type) bool { return t == vector.Int64 || t == vector.Float64 }
