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
	"testing"

	"github.com/stretchr/testify/require"
)

func buildInts(t *testing.T, vals []int64, nulls []bool) *Vector {
	t.Helper()
	b := NewFixedWidthBuilder(Field{Name: "n", Type: Int64, Nullable: true})
	for i, v := range vals {
		if nulls != nil && nulls[i] {
			b.AppendNull()
			continue
		}
		b.AppendInt64(v)
	}
	return b.Finish()
}

func TestFixedWidthBuilderRoundTrip(t *testing.T) {
	v := buildInts(t, []int64{1, 2, 3, 4}, []bool{false, true, false, false})
	require.Equal(t, 4, v.Len())
	require.True(t, v.IsNull(1))
	require.Equal(t, int64(1), v.Int64(0))
	require.Equal(t, int64(3), v.Int64(2))
	require.Equal(t, int64(4), v.Int64(3))
}

func TestStringVectorBuilderMonotonicOffsets(t *testing.T) {
	b := NewStringVectorBuilder(Field{Name: "s", Type: String, Nullable: true})
	b.AppendString("hello")
	b.AppendNull()
	b.AppendString("")
	b.AppendString("world")
	v := b.Finish()

	require.Equal(t, 4, v.Len())
	require.Equal(t, "hello", v.String(0))
	require.True(t, v.IsNull(1))
	require.Equal(t, "", v.String(2))
	require.Equal(t, "world", v.String(3))
	for i := 1; i < len(v.offsets); i++ {
		require.GreaterOrEqual(t, v.offsets[i], v.offsets[i-1])
	}
}

func TestTakeGathersAndPropagatesNulls(t *testing.T) {
	v := buildInts(t, []int64{10, 20, 30}, []bool{false, true, false})
	out, err := Take(v, []int32{2, 1, 0, 0})
	require.NoError(t, err)
	require.Equal(t, 4, out.Len())
	require.Equal(t, int64(30), out.Int64(0))
	require.True(t, out.IsNull(1))
	require.Equal(t, int64(10), out.Int64(2))
	require.Equal(t, int64(10), out.Int64(3))
}

func TestTakeOutOfRangeFails(t *testing.T) {
	v := buildInts(t, []int64{1, 2}, nil)
	_, err := Take(v, []int32{5})
	require.Error(t, err)
}

func TestFilterPreservesOrderAndLengthMustMatch(t *testing.T) {
	v := buildInts(t, []int64{1, 2, 3, 4}, nil)
	out, err := Filter(v, []bool{true, false, true, false})
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	require.Equal(t, int64(1), out.Int64(0))
	require.Equal(t, int64(3), out.Int64(1))

	_, err = Filter(v, []bool{true})
	require.Error(t, err)
}

func TestHashIntoEqualValuesEqualHash(t *testing.T) {
	a := buildInts(t, []int64{7}, nil)
	b := buildInts(t, []int64{7}, nil)
	out := make([]uint64, 2)
	HashInto(a, out, 0)
	HashInto(b, out, 1)
	require.Equal(t, out[0], out[1])
}

func TestHashIntoNullSentinelSharedAcrossTypes(t *testing.T) {
	ints := buildInts(t, []int64{0}, []bool{true})
	sb := NewStringVectorBuilder(Field{Name: "s", Type: String, Nullable: true})
	sb.AppendNull()
	strs := sb.Finish()

	out := make([]uint64, 2)
	HashInto(ints, out, 0)
	HashInto(strs, out, 1)
	require.Equal(t, out[0], out[1])
}

func TestHashIntoCompositeKeyIsOrderSensitive(t *testing.T) {
	a := buildInts(t, []int64{1}, nil)
	b := buildInts(t, []int64{2}, nil)

	forward := make([]uint64, 1)
	HashInto(a, forward, 0)
	HashInto(b, forward, 0)

	backward := make([]uint64, 1)
	HashInto(b, backward, 0)
	HashInto(a, backward, 0)

	require.NotEqual(t, forward[0], backward[0])
}

func TestCompareNullYieldsFalseWithNullMask(t *testing.T) {
	a := buildInts(t, []int64{1, 2}, []bool{false, true})
	b := buildInts(t, []int64{1, 2}, nil)
	res, nullMask, err := Compare(Eq, a, b)
	require.NoError(t, err)
	require.True(t, res[0])
	require.False(t, res[1])
	require.True(t, nullMask[1])
}

func TestMorselRequiresEqualLengthColumns(t *testing.T) {
	a := buildInts(t, []int64{1, 2, 3}, nil)
	b := buildInts(t, []int64{1, 2}, nil)
	schema := Schema{Fields: []Field{{Name: "a", Type: Int64}, {Name: "b", Type: Int64}}}
	_, err := NewMorsel(schema, []*Vector{a, b})
	require.Error(t, err)
}

func TestMorselProjectDropsColumns(t *testing.T) {
	a := buildInts(t, []int64{1, 2}, nil)
	b := buildInts(t, []int64{3, 4}, nil)
	schema := Schema{Fields: []Field{{Name: "a", Type: Int64}, {Name: "b", Type: Int64}}}
	m, err := NewMorsel(schema, []*Vector{a, b})
	require.NoError(t, err)

	projected, err := m.Project([]string{"b"})
	require.NoError(t, err)
	require.Equal(t, 1, len(projected.Columns))
	require.Equal(t, int64(3), projected.Columns[0].Int64(0))
}
