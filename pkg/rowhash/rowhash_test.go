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

package rowhash

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlatHashMapInsertGet(t *testing.T) {
	m := NewFlatHashMap(8, 4)
	m.Insert(42, 0)
	m.Insert(42, 1)
	m.Insert(7, 2)

	require.ElementsMatch(t, []int64{0, 1}, m.Get(42))
	require.ElementsMatch(t, []int64{2}, m.Get(7))
	require.Nil(t, m.Get(999))
	require.Equal(t, 2, m.Len())
}

func TestFlatHashMapGrowsAndPreservesEntries(t *testing.T) {
	m := NewFlatHashMap(1, 1)
	const n = 5000
	for i := 0; i < n; i++ {
		m.Insert(uint64(i), int64(i))
	}
	for i := 0; i < n; i++ {
		require.Equal(t, []int64{int64(i)}, m.Get(uint64(i)))
	}
}

func TestFlatHashMapConcurrentShardedInserts(t *testing.T) {
	m := NewFlatHashMap(1000, 8)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := uint64(w*1000 + i)
				m.Insert(key, int64(key))
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1600, m.Len())
}

func TestFlatHashMapMerge(t *testing.T) {
	a := NewFlatHashMap(8, 2)
	b := NewFlatHashMap(8, 2)
	a.Insert(1, 10)
	b.Insert(1, 20)
	b.Insert(2, 30)
	a.Merge(b)
	require.ElementsMatch(t, []int64{10, 20}, a.Get(1))
	require.ElementsMatch(t, []int64{30}, a.Get(2))
}

func TestFlatHashSetInsertReportsNewness(t *testing.T) {
	s := NewFlatHashSet(8, 2)
	require.True(t, s.Insert(1))
	require.False(t, s.Insert(1))
	require.True(t, s.Insert(2))
	require.Equal(t, 2, s.Len())
}

func TestFlatHashSetFindNewIndicesImplementsDistinct(t *testing.T) {
	s := NewFlatHashSet(8, 2)
	hashes := []uint64{1, 2, 1, 3, 2}
	out := make([]int32, len(hashes))
	n := s.FindNewIndices(hashes, out)
	require.Equal(t, 3, n)
	require.Equal(t, []int32{0, 1, 3}, out[:n])
}

func TestBloomFilterNoFalseNegatives(t *testing.T) {
	f := NewBloomFilter(1000, 0.05)
	require.True(t, f.Enabled())
	for i := uint64(0); i < 1000; i++ {
		f.Add(i)
	}
	for i := uint64(0); i < 1000; i++ {
		require.True(t, f.MaybeContains(i))
	}
}

func TestBloomFilterDisabledAboveMaxKeys(t *testing.T) {
	f := NewBloomFilter(MaxBloomKeys+1, 0.05)
	require.False(t, f.Enabled())
	require.True(t, f.MaybeContains(12345)) // disabled filter never skips a probe
}
