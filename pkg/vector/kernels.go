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

import (
	"math"

	"coreql/pkg/cqlerr"
)

// Take gathers rows of v at the given i32 indices, producing a new vector
// of len(indices) rows. An index outside [0, v.Len()) fails with
// InvalidInput. A null source row yields a null destination row.
func Take(v *Vector, indices []int32) (*Vector, error) {
	for _, idx := range indices {
		if idx < 0 || int(idx) >= v.Len() {
			return nil, cqlerr.New(cqlerr.InvalidInput, "take: index %d out of range [0,%d)", idx, v.Len())
		}
	}
	return takeUnchecked(v, indices), nil
}

func takeUnchecked(v *Vector, indices []int32) *Vector {
	switch v.typ {
	case Bool:
		b := NewFixedWidthBuilder(v.field)
		for _, idx := range indices {
			if v.IsNull(int(idx)) {
				b.AppendNull()
			} else {
				b.AppendBool(v.Bool(int(idx)))
			}
		}
		return b.Finish()
	case Int8, Int16, Int32, Int64, Float32, Float64, Date32, Timestamp64, Time32, Time64:
		return takeFixed(v, indices)
	case String, Binary:
		b := &StringVectorBuilder{field: v.field, offsets: []int32{0}}
		for _, idx := range indices {
			if v.IsNull(int(idx)) {
				b.AppendNull()
			} else {
				lo, hi := v.offsets[idx], v.offsets[idx+1]
				b.Append(v.data[lo:hi])
			}
		}
		return b.Finish()
	case List:
		lb := NewListVectorBuilder(v.field)
		var childIdx []int32
		for _, idx := range indices {
			if v.IsNull(int(idx)) {
				lb.AppendNull()
				continue
			}
			lo, hi := v.ListRange(int(idx))
			for j := lo; j < hi; j++ {
				childIdx = append(childIdx, j)
			}
			lb.AppendLength(hi - lo)
		}
		child := takeUnchecked(v.child, childIdx)
		return lb.Finish(child)
	case Struct:
		children := make([]*Vector, len(v.children))
		for i, c := range v.children {
			children[i] = takeUnchecked(c, indices)
		}
		return NewStructVector(v.field, children)
	default:
		panic("vector: Take unsupported for type " + v.typ.String())
	}
}

func takeFixed(v *Vector, indices []int32) *Vector {
	b := NewFixedWidthBuilder(v.field)
	for _, idx := range indices {
		i := int(idx)
		if v.IsNull(i) {
			b.AppendNull()
			continue
		}
		switch v.typ {
		case Int8:
			b.AppendInt8(v.Int8(i))
		case Int16, Time32:
			b.AppendInt16(v.Int16(i))
		case Int32, Date32:
			b.AppendInt32(v.Int32(i))
		case Int64, Timestamp64, Time64:
			b.AppendInt64(v.Int64(i))
		case Float32:
			b.AppendFloat32(v.Float32(i))
		case Float64:
			b.AppendFloat64(v.Float64(i))
		}
	}
	return b.Finish()
}

// Filter selects rows of v where mask[i] is true, preserving order. mask's
// length must equal v.Len().
func Filter(v *Vector, mask []bool) (*Vector, error) {
	if len(mask) != v.Len() {
		return nil, cqlerr.New(cqlerr.InvalidInput, "filter: mask length %d != vector length %d", len(mask), v.Len())
	}
	indices := make([]int32, 0, v.Len())
	for i, keep := range mask {
		if keep {
			indices = append(indices, int32(i))
		}
	}
	return takeUnchecked(v, indices), nil
}

// IsNullMask returns a bool mask, true where the row is null.
func IsNullMask(v *Vector) []bool {
	out := make([]bool, v.Len())
	for i := range out {
		out[i] = v.IsNull(i)
	}
	return out
}

// NullSentinel is the distinguished hash value shared across all types for
// a NULL row, satisfying the hash identity contract's guarantee (b).
const NullSentinel uint64 = 0xA5A5A5A5A5A5A5A5

// fnvMix64 is the engine's identity-preserving mixing step: it is applied
// once per raw value to scramble it into hash space, after which hash
// tables must treat the result as opaque bucket identity and never rehash
// it (spec's "hash identity contract").
func fnvMix64(seed uint64, b []byte) uint64 {
	const prime = 1099511628211
	h := seed
	for _, c := range b {
		h ^= uint64(c)
		h *= prime
	}
	return h
}

// HashInto writes one u64 hash per row of v into out[offset:offset+v.Len()].
// Composite keys are produced by calling HashInto once per key column with
// the same out/offset and letting each call mix into the prior value
// (order-sensitive, matching guarantee (c) of the hash identity contract).
func HashInto(v *Vector, out []uint64, offset int) {
	for i := 0; i < v.Len(); i++ {
		seed := out[offset+i]
		if seed == 0 {
			seed = 1469598103934665603 // FNV offset basis, first column in the mix
		}
		if v.IsNull(i) {
			out[offset+i] = mix2(seed, NullSentinel)
			continue
		}
		out[offset+i] = mix2(seed, hashScalar(v, i))
	}
}

func mix2(a, b uint64) uint64 {
	h := a ^ b
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	return h
}

func hashScalar(v *Vector, i int) uint64 {
	switch v.typ {
	case Bool:
		if v.Bool(i) {
			return 1
		}
		return 0
	case Int8:
		return uint64(v.Int8(i))
	case Int16, Time32:
		return uint64(v.Int16(i))
	case Int32, Date32:
		return uint64(uint32(v.Int32(i)))
	case Int64, Timestamp64, Time64:
		return uint64(v.Int64(i))
	case Float32:
		// normalize -0.0 == 0.0 for hash purposes
		f := v.Float32(i)
		if f == 0 {
			f = 0
		}
		return uint64(math.Float32bits(f))
	case Float64:
		f := v.Float64(i)
		if f == 0 {
			f = 0
		}
		return math.Float64bits(f)
	case String, Binary:
		lo, hi := v.offsets[i], v.offsets[i+1]
		return fnvMix64(1469598103934665603, v.data[lo:hi])
	default:
		panic("vector: HashInto unsupported for type " + v.typ.String())
	}
}
