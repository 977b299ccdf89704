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
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"coreql/pkg/cqlerr"
)

// FromArrow constructs a Vector from an arrow.Array with zero-copy
// semantics whenever the array's buffer layout is directly compatible
// (values + validity, a single contiguous chunk). Chunked inputs outside
// this function's purview (arrow.Chunked) must be flattened by the caller
// to exactly one chunk; a multi-chunk Chunked passed indirectly fails
// with InvalidInput via FromArrowChunked below.
func FromArrow(name string, nullable bool, a arrow.Array) (*Vector, error) {
	typ, err := typeFromArrow(a.DataType())
	if err != nil {
		return nil, err
	}
	data := a.Data()
	data.Retain() // the Vector now holds a reference until Release

	v := &Vector{
		typ:      typ,
		field:    Field{Name: name, Type: typ, Nullable: nullable},
		length:   a.Len(),
		ownsData: false,
		foreign:  data,
	}

	buffers := data.Buffers()
	if len(buffers) > 0 && buffers[0] != nil && a.NullN() > 0 {
		v.validity = buffers[0].Bytes()
	}

	switch arr := a.(type) {
	case *array.Boolean:
		v.fixed = packBoolBuffer(arr)
	case *array.Int8:
		v.fixed, v.width = buffers[1].Bytes(), 1
	case *array.Int16:
		v.fixed, v.width = buffers[1].Bytes(), 2
	case *array.Int32:
		v.fixed, v.width = buffers[1].Bytes(), 4
	case *array.Int64:
		v.fixed, v.width = buffers[1].Bytes(), 8
	case *array.Float32:
		v.fixed, v.width = buffers[1].Bytes(), 4
	case *array.Float64:
		v.fixed, v.width = buffers[1].Bytes(), 8
	case *array.Date32:
		v.fixed, v.width = buffers[1].Bytes(), 4
	case *array.Timestamp:
		v.fixed, v.width = buffers[1].Bytes(), 8
	case *array.String:
		v.offsets = int32FromBytes(buffers[1].Bytes(), a.Len()+1)
		v.data = buffers[2].Bytes()
	case *array.Binary:
		v.offsets = int32FromBytes(buffers[1].Bytes(), a.Len()+1)
		v.data = buffers[2].Bytes()
	case *array.List:
		v.offsets = int32FromBytes(buffers[1].Bytes(), a.Len()+1)
		child, err := FromArrow("item", true, arr.ListValues())
		if err != nil {
			data.Release()
			return nil, err
		}
		v.child = child
	case *array.Struct:
		st := a.DataType().(*arrow.StructType)
		children := make([]*Vector, arr.NumField())
		fields := make([]Field, arr.NumField())
		for i := 0; i < arr.NumField(); i++ {
			c, err := FromArrow(st.Field(i).Name, st.Field(i).Nullable, arr.Field(i))
			if err != nil {
				data.Release()
				return nil, err
			}
			children[i] = c
			fields[i] = c.field
		}
		v.children = children
		v.field.Children = fields
	default:
		data.Release()
		return nil, cqlerr.New(cqlerr.InvalidInput, "from_arrow: unsupported arrow type %s", a.DataType())
	}
	return v, nil
}

// FromArrowChunked requires exactly one chunk; a multi-chunk input fails
// with InvalidInput per spec.
func FromArrowChunked(name string, nullable bool, chunked *arrow.Chunked) (*Vector, error) {
	if len(chunked.Chunks()) != 1 {
		return nil, cqlerr.New(cqlerr.InvalidInput, "from_arrow: expected exactly one chunk, got %d", len(chunked.Chunks()))
	}
	return FromArrow(name, nullable, chunked.Chunk(0))
}

// packBoolBuffer returns the raw bit-packed buffer bytes for a boolean
// array (Arrow already stores booleans bit-packed, matching this engine's
// own fixed-width-bitmap representation for Bool).
func packBoolBuffer(arr *array.Boolean) []byte {
	data := arr.Data()
	bufs := data.Buffers()
	if len(bufs) > 1 && bufs[1] != nil {
		return bufs[1].Bytes()
	}
	return nil
}

func int32FromBytes(b []byte, n int) []int32 {
	out := make([]int32, n)
	for i := 0; i < n; i++ {
		out[i] = int32(le32(b[i*4:]))
	}
	return out
}

// ToArrow exports v as an arrow.Array. A Vector that was imported from
// Arrow is exported zero-copy; a Vector that owns its buffers is always
// copied through a type-specific builder, which handles Bool, Int32,
// Date32 (as Int32), Int64, Timestamp64 (as Int64), Float64, String and
// Binary and fails with UnsupportedOperation for any other type.
func ToArrow(v *Vector, mem memory.Allocator) (arrow.Array, error) {
	if !v.ownsData && v.foreign != nil {
		return array.MakeFromData(v.foreign), nil
	}
	return copyToArrow(v, mem)
}

func copyToArrow(v *Vector, mem memory.Allocator) (arrow.Array, error) {
	switch v.typ {
	case Bool:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		for i := 0; i < v.Len(); i++ {
			if v.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(v.Bool(i))
			}
		}
		return b.NewArray(), nil
	case Int32, Date32:
		b := array.NewInt32Builder(mem)
		defer b.Release()
		for i := 0; i < v.Len(); i++ {
			if v.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(v.Int32(i))
			}
		}
		return b.NewArray(), nil
	case Int64, Timestamp64:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		for i := 0; i < v.Len(); i++ {
			if v.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(v.Int64(i))
			}
		}
		return b.NewArray(), nil
	case Float64:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		for i := 0; i < v.Len(); i++ {
			if v.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(v.Float64(i))
			}
		}
		return b.NewArray(), nil
	case String:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		for i := 0; i < v.Len(); i++ {
			if v.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(v.String(i))
			}
		}
		return b.NewArray(), nil
	case Binary:
		b := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
		defer b.Release()
		for i := 0; i < v.Len(); i++ {
			if v.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(v.Binary(i))
			}
		}
		return b.NewArray(), nil
	default:
		return nil, cqlerr.New(cqlerr.UnsupportedOperation, "to_arrow: unsupported type %s for copy export", v.typ)
	}
}

func typeFromArrow(dt arrow.DataType) (Type, error) {
	switch dt.ID() {
	case arrow.BOOL:
		return Bool, nil
	case arrow.INT8:
		return Int8, nil
	case arrow.INT16:
		return Int16, nil
	case arrow.INT32:
		return Int32, nil
	case arrow.INT64:
		return Int64, nil
	case arrow.FLOAT32:
		return Float32, nil
	case arrow.FLOAT64:
		return Float64, nil
	case arrow.DATE32:
		return Date32, nil
	case arrow.TIMESTAMP:
		return Timestamp64, nil
	case arrow.STRING, arrow.LARGE_STRING:
		return String, nil
	case arrow.BINARY, arrow.LARGE_BINARY:
		return Binary, nil
	case arrow.LIST:
		return List, nil
	case arrow.STRUCT:
		return Struct, nil
	default:
		return Other, cqlerr.New(cqlerr.InvalidInput, "from_arrow: unsupported arrow type id %v", dt.ID())
	}
}
