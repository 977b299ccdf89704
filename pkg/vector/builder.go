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
	"encoding/binary"
	"math"
)

// builderInitialCap is the first allocation size for a builder's backing
// slices; growth beyond this is geometric (matching the over-padded,
// pre-sized-stripe allocation discipline pkg/vsa uses for its atomic
// counters, generalized here to byte buffers instead of stripes).
const builderInitialCap = 64

// growCap doubles cap (or grows to need, whichever is larger), mirroring
// a geometric growth strategy rather than growing one element at a time.
func growCap(cur, need int) int {
	if cur == 0 {
		cur = builderInitialCap
	}
	for cur < need {
		cur *= 2
	}
	return cur
}

// FixedWidthBuilder appends scalar values of a single fixed-width Type.
type FixedWidthBuilder struct {
	typ      Type
	field    Field
	width    int
	fixed    []byte
	validity []byte
	length   int
	hasNull  bool
}

// NewFixedWidthBuilder constructs a builder for one of the fixed-width
// primitive types (Bool, Int*, Float*, Date32, Timestamp64, Time*, Interval).
func NewFixedWidthBuilder(field Field) *FixedWidthBuilder {
	if !field.Type.IsFixedWidth() {
		panic("vector: NewFixedWidthBuilder requires a fixed-width type, got " + field.Type.String())
	}
	w := elementWidth(field.Type)
	return &FixedWidthBuilder{typ: field.Type, field: field, width: w}
}

func elementWidth(t Type) int {
	switch t {
	case Bool:
		return 0 // packed bitmap, handled specially
	case Int8:
		return 1
	case Int16, Time32:
		return 2
	case Int32, Float32, Date32:
		return 4
	case Int64, Float64, Timestamp64, Time64:
		return 8
	case Interval:
		return 16 // months(4) + days(4) + nanos(8)
	default:
		panic("vector: unsupported fixed-width type " + t.String())
	}
}

func (b *FixedWidthBuilder) reserveValidity(n int) {
	need := (n + 7) / 8
	if len(b.validity) < need {
		grown := make([]byte, growCap(len(b.validity), need))
		copy(grown, b.validity)
		b.validity = grown
	}
}

func (b *FixedWidthBuilder) setValid(i int, valid bool) {
	if !valid {
		b.hasNull = true
	}
	b.reserveValidity(i + 1)
	byteIdx, bit := i/8, uint(i%8)
	if valid {
		b.validity[byteIdx] |= 1 << bit
	} else {
		b.validity[byteIdx] &^= 1 << bit
	}
}

func (b *FixedWidthBuilder) reserveFixed(nbytes int) {
	if len(b.fixed) < nbytes {
		grown := make([]byte, growCap(len(b.fixed), nbytes))
		copy(grown, b.fixed)
		b.fixed = grown
	}
}

func (b *FixedWidthBuilder) appendRaw(bytes []byte) {
	i := b.length
	if b.typ == Bool {
		b.reserveFixed((i/8 + 1))
		if bytes[0] != 0 {
			b.fixed[i/8] |= 1 << uint(i%8)
		} else {
			b.fixed[i/8] &^= 1 << uint(i%8)
		}
	} else {
		b.reserveFixed((i + 1) * b.width)
		copy(b.fixed[i*b.width:(i+1)*b.width], bytes)
	}
	b.setValid(i, true)
	b.length++
}

func (b *FixedWidthBuilder) AppendBool(val bool) {
	var x byte
	if val {
		x = 1
	}
	b.appendRaw([]byte{x})
}

func (b *FixedWidthBuilder) AppendInt8(val int8) { b.appendRaw([]byte{byte(val)}) }

func (b *FixedWidthBuilder) AppendInt16(val int16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(val))
	b.appendRaw(buf[:])
}

func (b *FixedWidthBuilder) AppendInt32(val int32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(val))
	b.appendRaw(buf[:])
}

func (b *FixedWidthBuilder) AppendInt64(val int64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(val))
	b.appendRaw(buf[:])
}

func (b *FixedWidthBuilder) AppendFloat32(val float32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(val))
	b.appendRaw(buf[:])
}

func (b *FixedWidthBuilder) AppendFloat64(val float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(val))
	b.appendRaw(buf[:])
}

// AppendNull appends a null row; the underlying bytes are left zeroed.
func (b *FixedWidthBuilder) AppendNull() {
	i := b.length
	if b.typ == Bool {
		b.reserveFixed(i/8 + 1)
	} else {
		b.reserveFixed((i + 1) * b.width)
	}
	b.setValid(i, false)
	b.length++
}

// Finish transfers ownership of the builder's buffers to the resulting
// Vector; the builder must not be reused afterward.
func (b *FixedWidthBuilder) Finish() *Vector {
	v := &Vector{
		typ:      b.typ,
		field:    b.field,
		length:   b.length,
		fixed:    b.fixed,
		width:    b.width,
		ownsData: true,
	}
	if b.hasNull {
		v.validity = b.validity
	}
	return v
}

// StringVectorBuilder appends variable-length UTF-8 strings. Offsets are
// guaranteed monotonically non-decreasing; Finish transfers ownership of
// the offsets and packed-bytes buffers to the resulting Vector.
type StringVectorBuilder struct {
	field    Field
	offsets  []int32
	data     []byte
	validity []byte
	length   int
	hasNull  bool
}

func NewStringVectorBuilder(field Field) *StringVectorBuilder {
	field.Type = String
	return &StringVectorBuilder{field: field, offsets: []int32{0}}
}

func (b *StringVectorBuilder) reserveValidity(n int) {
	need := (n + 7) / 8
	if len(b.validity) < need {
		grown := make([]byte, growCap(len(b.validity), need))
		copy(grown, b.validity)
		b.validity = grown
	}
}

func (b *StringVectorBuilder) setValid(i int, valid bool) {
	if !valid {
		b.hasNull = true
	}
	b.reserveValidity(i + 1)
	byteIdx, bit := i/8, uint(i%8)
	if valid {
		b.validity[byteIdx] |= 1 << bit
	} else {
		b.validity[byteIdx] &^= 1 << bit
	}
}

// Append appends one row's raw bytes (interpreted as UTF-8 for String,
// arbitrary for Binary — BinaryVectorBuilder is a thin alias below).
func (b *StringVectorBuilder) Append(val []byte) {
	b.data = append(b.data, val...)
	last := b.offsets[len(b.offsets)-1]
	b.offsets = append(b.offsets, last+int32(len(val)))
	b.setValid(b.length, true)
	b.length++
}

func (b *StringVectorBuilder) AppendString(val string) { b.Append([]byte(val)) }

func (b *StringVectorBuilder) AppendNull() {
	last := b.offsets[len(b.offsets)-1]
	b.offsets = append(b.offsets, last) // zero-length, monotonic
	b.setValid(b.length, false)
	b.length++
}

func (b *StringVectorBuilder) Finish() *Vector {
	v := &Vector{
		typ:      b.field.Type,
		field:    b.field,
		length:   b.length,
		offsets:  b.offsets,
		data:     b.data,
		ownsData: true,
	}
	if b.hasNull {
		v.validity = b.validity
	}
	return v
}

// BinaryVectorBuilder is StringVectorBuilder specialized to the Binary
// type; the on-wire shape (offsets + packed bytes) is identical, only the
// type tag differs, so it wraps the same implementation rather than
// duplicating it.
type BinaryVectorBuilder struct{ inner *StringVectorBuilder }

func NewBinaryVectorBuilder(field Field) *BinaryVectorBuilder {
	field.Type = Binary
	return &BinaryVectorBuilder{inner: &StringVectorBuilder{field: field, offsets: []int32{0}}}
}

func (b *BinaryVectorBuilder) Append(val []byte) { b.inner.Append(val) }
func (b *BinaryVectorBuilder) AppendNull()        { b.inner.AppendNull() }
func (b *BinaryVectorBuilder) Finish() *Vector    { return b.inner.Finish() }

// ListVectorBuilder appends variable-length lists over a child builder.
// Offsets are monotonic row boundaries into the child Vector passed to
// Finish.
type ListVectorBuilder struct {
	field    Field
	offsets  []int32
	validity []byte
	length   int
	hasNull  bool
	child    *Vector // never set: Finish takes the child Vector as its argument
}

func NewListVectorBuilder(field Field) *ListVectorBuilder {
	field.Type = List
	return &ListVectorBuilder{field: field, offsets: []int32{0}}
}

// AppendLength records that the next `n` rows already appended to the
// child vector belong to this row. Callers build the child vector
// alongside calls to AppendLength in lockstep (the child's own builder is
// owned by the caller, matching the recursive nature of list-of-T).
func (b *ListVectorBuilder) AppendLength(n int32) {
	last := b.offsets[len(b.offsets)-1]
	b.offsets = append(b.offsets, last+n)
	b.setValid(b.length, true)
	b.length++
}

func (b *ListVectorBuilder) AppendNull() {
	last := b.offsets[len(b.offsets)-1]
	b.offsets = append(b.offsets, last)
	b.setValid(b.length, false)
	b.length++
}

func (b *ListVectorBuilder) setValid(i int, valid bool) {
	if !valid {
		b.hasNull = true
	}
	need := (i + 1 + 7) / 8
	if len(b.validity) < need {
		grown := make([]byte, growCap(len(b.validity), need))
		copy(grown, b.validity)
		b.validity = grown
	}
	byteIdx, bit := i/8, uint(i%8)
	if valid {
		b.validity[byteIdx] |= 1 << bit
	} else {
		b.validity[byteIdx] &^= 1 << bit
	}
}

// Finish attaches the (already-built) child Vector and transfers ownership
// of the list's own offsets buffer to the resulting Vector.
func (b *ListVectorBuilder) Finish(child *Vector) *Vector {
	v := &Vector{
		typ:      List,
		field:    b.field,
		length:   b.length,
		offsets:  b.offsets,
		child:    child,
		ownsData: true,
	}
	if b.hasNull {
		v.validity = b.validity
	}
	return v
}

// NewStructVector assembles a Struct vector from already-built,
// equally-long child vectors; there is no incremental StructBuilder
// because struct columns are typically produced by Project evaluating
// each field expression into its own vector in one pass.
func NewStructVector(field Field, children []*Vector) *Vector {
	n := 0
	if len(children) > 0 {
		n = children[0].Len()
	}
	for _, c := range children {
		if c.Len() != n {
			panic("vector: NewStructVector children must share length")
		}
	}
	return &Vector{
		typ:      Struct,
		field:    field,
		length:   n,
		children: children,
		ownsData: true,
	}
}
