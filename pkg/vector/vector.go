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
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
)

// Vector is a typed, length-N column. It is immutable once published: no
// exported method mutates a Vector in place. A Vector either owns its
// buffers outright, or was imported zero-copy from a foreign (Arrow)
// allocation, in which case foreign holds a retained reference and
// Release must be called when the Vector is no longer needed.
type Vector struct {
	typ    Type
	field  Field
	length int

	// validity is the null bitmap; bit i == 1 means row i is non-null.
	// nil means "no nulls" (a common, cheap fast path).
	validity []byte

	// fixed-width values buffer, valid when typ.IsFixedWidth().
	fixed []byte
	width int // bytes per element for fixed-width types

	// variable-width: monotonic offsets (len+1) plus packed bytes.
	offsets []int32
	data    []byte

	// List: offsets (len+1) into child.
	child *Vector

	// Struct: one child Vector per named field, each of length `length`.
	children []*Vector

	// ownsData is false when this Vector was constructed from a foreign
	// Arrow buffer; Release (not the GC) is responsible for freeing it.
	ownsData bool
	foreign  arrow.ArrayData // retained when !ownsData; nil otherwise
}

// Type returns the element type.
func (v *Vector) Type() Type { return v.typ }

// Len returns the number of rows.
func (v *Vector) Len() int { return v.length }

// Field returns the column's name/type/nullability triple.
func (v *Vector) Field() Field { return v.field }

// OwnsData reports whether this Vector exclusively owns its buffers.
func (v *Vector) OwnsData() bool { return v.ownsData }

// IsValid reports whether row i is non-null. Panics if i is out of range.
func (v *Vector) IsValid(i int) bool {
	v.checkIndex(i)
	if v.validity == nil {
		return true
	}
	return v.validity[i/8]&(1<<uint(i%8)) != 0
}

// IsNull is the complement of IsValid.
func (v *Vector) IsNull(i int) bool { return !v.IsValid(i) }

func (v *Vector) checkIndex(i int) {
	if i < 0 || i >= v.length {
		panic(fmt.Sprintf("vector: index %d out of range [0,%d)", i, v.length))
	}
}

// NullCount returns the number of null rows.
func (v *Vector) NullCount() int {
	if v.validity == nil {
		return 0
	}
	n := 0
	for i := 0; i < v.length; i++ {
		if !v.IsValid(i) {
			n++
		}
	}
	return n
}

// Release frees the Vector's buffers. If the Vector was imported
// zero-copy from Arrow, this releases the retained arrow.ArrayData
// instead of touching the Vector's own (absent) buffers.
func (v *Vector) Release() {
	if !v.ownsData && v.foreign != nil {
		v.foreign.Release()
		v.foreign = nil
		return
	}
	if v.child != nil {
		v.child.Release()
	}
	for _, c := range v.children {
		c.Release()
	}
}

// --- typed scalar accessors -------------------------------------------------
//
// These assume IsValid(i); reading a null row's underlying bytes is
// well-defined (zero value) but semantically meaningless.

func (v *Vector) Bool(i int) bool {
	v.checkIndex(i)
	return v.fixed[i/8]&(1<<uint(i%8)) != 0
}

func (v *Vector) Int8(i int) int8 { v.checkIndex(i); return int8(v.fixed[i]) }

func (v *Vector) Int16(i int) int16 {
	v.checkIndex(i)
	return int16(le16(v.fixed[i*2:]))
}

func (v *Vector) Int32(i int) int32 {
	v.checkIndex(i)
	return int32(le32(v.fixed[i*4:]))
}

func (v *Vector) Int64(i int) int64 {
	v.checkIndex(i)
	return int64(le64(v.fixed[i*8:]))
}

func (v *Vector) Float32(i int) float32 {
	v.checkIndex(i)
	return math.Float32frombits(le32(v.fixed[i*4:]))
}

func (v *Vector) Float64(i int) float64 {
	v.checkIndex(i)
	return math.Float64frombits(le64(v.fixed[i*8:]))
}

// Date32 returns days-since-epoch for a Date32 column.
func (v *Vector) Date32(i int) int32 { return v.Int32(i) }

// Timestamp64 returns microseconds-UTC for a Timestamp64 column.
func (v *Vector) Timestamp64(i int) int64 { return v.Int64(i) }

// String returns row i of a String column as a Go string (no copy; the
// returned string aliases the Vector's backing buffer).
func (v *Vector) String(i int) string {
	v.checkIndex(i)
	lo, hi := v.offsets[i], v.offsets[i+1]
	return string(v.data[lo:hi])
}

// Binary returns row i of a Binary column.
func (v *Vector) Binary(i int) []byte {
	v.checkIndex(i)
	lo, hi := v.offsets[i], v.offsets[i+1]
	return v.data[lo:hi]
}

// ListRange returns the [start,end) child-vector range for row i of a
// List column.
func (v *Vector) ListRange(i int) (start, end int32) {
	v.checkIndex(i)
	return v.offsets[i], v.offsets[i+1]
}

// ListChild returns the child Vector backing a List column's elements.
func (v *Vector) ListChild() *Vector { return v.child }

// StructField returns the named child Vector of a Struct column.
func (v *Vector) StructField(name string) *Vector {
	for i, f := range v.field.Children {
		if f.Name == name {
			return v.children[i]
		}
	}
	return nil
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func le64(b []byte) uint64 {
	var u uint64
	for i := 0; i < 8; i++ {
		u |= uint64(b[i]) << (8 * uint(i))
	}
	return u
}
