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

import "coreql/pkg/cqlerr"

// CmpOp is a three-valued comparison kernel. Comparison kernels return a
// bool mask (NULL compares yield false) plus a parallel null mask so SQL
// three-valued logic can be reconstructed by the caller.
type CmpOp int

const (
	Eq CmpOp = iota
	Neq
	Lt
	Lte
	Gt
	Gte
)

// Compare applies op element-wise between two equal-length, equal-type
// vectors, returning (result, nullMask). A row is null in the result
// whenever either input row is null; its bool value is false in that case.
func Compare(op CmpOp, a, b *Vector) (result, nullMask []bool, err error) {
	if a.Len() != b.Len() {
		return nil, nil, cqlerr.New(cqlerr.InvalidInput, "compare: length mismatch %d != %d", a.Len(), b.Len())
	}
	if a.typ != b.typ {
		return nil, nil, cqlerr.New(cqlerr.TypeMismatch, "compare: type mismatch %s vs %s", a.typ, b.typ)
	}
	n := a.Len()
	result = make([]bool, n)
	nullMask = make([]bool, n)
	for i := 0; i < n; i++ {
		if a.IsNull(i) || b.IsNull(i) {
			nullMask[i] = true
			continue
		}
		result[i] = compareScalar(op, a, b, i)
	}
	return result, nullMask, nil
}

func compareScalar(op CmpOp, a, b *Vector, i int) bool {
	switch a.typ {
	case Int8, Int16, Int32, Int64, Date32, Timestamp64, Time32, Time64:
		x, y := asInt64(a, i), asInt64(b, i)
		return applyOrdered(op, cmp64(x, y))
	case Float32, Float64:
		x, y := asFloat64(a, i), asFloat64(b, i)
		return applyOrdered(op, cmpF64(x, y))
	case Bool:
		x, y := a.Bool(i), b.Bool(i)
		switch op {
		case Eq:
			return x == y
		case Neq:
			return x != y
		default:
			return applyOrdered(op, cmpBool(x, y))
		}
	case String, Binary:
		x, y := stringOrBytes(a, i), stringOrBytes(b, i)
		return applyOrdered(op, cmpBytes(x, y))
	default:
		panic("vector: Compare unsupported for type " + a.typ.String())
	}
}

func asInt64(v *Vector, i int) int64 {
	switch v.typ {
	case Int8:
		return int64(v.Int8(i))
	case Int16, Time32:
		return int64(v.Int16(i))
	case Int32, Date32:
		return int64(v.Int32(i))
	default:
		return v.Int64(i)
	}
}

func asFloat64(v *Vector, i int) float64 {
	if v.typ == Float32 {
		return float64(v.Float32(i))
	}
	return v.Float64(i)
}

func stringOrBytes(v *Vector, i int) []byte {
	if v.typ == String {
		return []byte(v.String(i))
	}
	return v.Binary(i)
}

func cmp64(x, y int64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func cmpF64(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func cmpBool(x, y bool) int {
	switch {
	case x == y:
		return 0
	case !x:
		return -1
	default:
		return 1
	}
}

func cmpBytes(x, y []byte) int {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	for i := 0; i < n; i++ {
		if x[i] != y[i] {
			if x[i] < y[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(x) < len(y):
		return -1
	case len(x) > len(y):
		return 1
	default:
		return 0
	}
}

func applyOrdered(op CmpOp, c int) bool {
	switch op {
	case Eq:
		return c == 0
	case Neq:
		return c != 0
	case Lt:
		return c < 0
	case Lte:
		return c <= 0
	case Gt:
		return c > 0
	case Gte:
		return c >= 0
	default:
		return false
	}
}
