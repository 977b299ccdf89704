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

// Package vector provides the typed columnar container at the heart of
// the engine: a fixed-length, immutable-once-published Vector, the
// Morsel batch it travels in, and zero-copy Arrow interop.
package vector

import "fmt"

// Type is the closed set of column element types the engine understands.
type Type uint8

const (
	Invalid Type = iota
	Bool
	Int8
	Int16
	Int32
	Int64
	Float32
	Float64
	Date32      // days since epoch
	Timestamp64 // microseconds UTC
	Time32
	Time64
	Interval // month-day-nanosecond
	String   // variable-length UTF-8
	Binary   // variable-length bytes
	List
	Struct
	Other // opaque fallback
)

func (t Type) String() string {
	switch t {
	case Bool:
		return "bool"
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Date32:
		return "date32"
	case Timestamp64:
		return "timestamp64"
	case Time32:
		return "time32"
	case Time64:
		return "time64"
	case Interval:
		return "interval"
	case String:
		return "string"
	case Binary:
		return "binary"
	case List:
		return "list"
	case Struct:
		return "struct"
	case Other:
		return "other"
	default:
		return "invalid"
	}
}

// IsFixedWidth reports whether the type is stored in a flat values buffer
// indexed directly by row (as opposed to offsets + packed bytes/children).
func (t Type) IsFixedWidth() bool {
	switch t {
	case Bool, Int8, Int16, Int32, Int64, Float32, Float64, Date32,
		Timestamp64, Time32, Time64, Interval:
		return true
	default:
		return false
	}
}

// Field describes one column of a Schema: a stable name, element type,
// and nullability. For List and Struct columns, Children describes the
// nested shape (one entry for List's element type, N entries for Struct's
// named fields).
type Field struct {
	Name     string
	Type     Type
	Nullable bool
	Children []Field
}

func (f Field) String() string {
	n := ""
	if f.Nullable {
		n = "?"
	}
	return fmt.Sprintf("%s:%s%s", f.Name, f.Type, n)
}

// Schema is an ordered list of columns with stable names.
type Schema struct {
	Fields []Field
}

// IndexOf returns the position of the named column, or -1 if absent.
// Lookup is case-sensitive; identifier case-folding is the planner's job.
func (s *Schema) IndexOf(name string) int {
	for i, f := range s.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func (s *Schema) Len() int { return len(s.Fields) }

// Equal reports positional type equality (field names are not compared),
// the compatibility check set operations require.
func (s *Schema) Equal(o *Schema) bool {
	if len(s.Fields) != len(o.Fields) {
		return false
	}
	for i := range s.Fields {
		if s.Fields[i].Type != o.Fields[i].Type {
			return false
		}
	}
	return true
}
