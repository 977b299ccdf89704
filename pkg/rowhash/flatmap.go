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

import "sync"

// entry is one open-addressed slot: a pre-hashed key and the row indices
// that hashed to it.
type entry struct {
	hash     uint64
	occupied bool
	values   []int64
}

// mapShard is one stripe of a FlatHashMap, independently lockable.
type mapShard struct {
	mu      sync.Mutex
	buckets []entry
	count   int
	_       [padSize]byte
}

// FlatHashMap maps pre-hashed u64 keys to a list of row indices (the
// build side of a hash join). insert never rehashes the provided key;
// collisions are resolved by linear-probing open addressing.
type FlatHashMap struct {
	shards    []mapShard
	shardMask uint64
}

// NewFlatHashMap constructs a map sharded across shardCount stripes (next
// power of two, >= 1), each pre-sized to hold roughly capacityHint/shardCount
// entries at the target load factor. Reserve-before-insert this way
// whenever the final cardinality is known, as recommended for the build
// side of a hash join.
func NewFlatHashMap(capacityHint, shardCount int) *FlatHashMap {
	if shardCount < 1 {
		shardCount = 1
	}
	shardCount = nextPow2OrOne(shardCount)
	m := &FlatHashMap{
		shards:    make([]mapShard, shardCount),
		shardMask: uint64(shardCount - 1),
	}
	perShard := capacityHint / shardCount
	for i := range m.shards {
		m.shards[i].buckets = make([]entry, nextPow2(perShard*maxLoadFactorDen/maxLoadFactorNum))
	}
	return m
}

func nextPow2OrOne(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}

// Insert appends row index v to the value list for key k, creating the
// slot if it doesn't exist yet.
func (m *FlatHashMap) Insert(k uint64, v int64) {
	s := &m.shards[shardForMap(k, m.shardMask)]
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeGrow()
	i := s.find(k)
	if s.buckets[i].occupied {
		s.buckets[i].values = append(s.buckets[i].values, v)
		return
	}
	s.buckets[i] = entry{hash: k, occupied: true, values: []int64{v}}
	s.count++
}

// Get returns the (possibly empty) list of row indices stored under key k.
func (m *FlatHashMap) Get(k uint64) []int64 {
	s := &m.shards[shardForMap(k, m.shardMask)]
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buckets) == 0 {
		return nil
	}
	i := s.find(k)
	if !s.buckets[i].occupied {
		return nil
	}
	out := make([]int64, len(s.buckets[i].values))
	copy(out, s.buckets[i].values)
	return out
}

// Len returns the total number of distinct keys across all shards.
func (m *FlatHashMap) Len() int {
	n := 0
	for i := range m.shards {
		n += m.shards[i].count
	}
	return n
}

func shardForMap(k uint64, mask uint64) int { return shardFor(k, mask) }

// find returns the bucket index for k, whether occupied by k itself or
// the first empty slot on its probe sequence.
func (s *mapShard) find(k uint64) int {
	mask := uint64(len(s.buckets) - 1)
	i := k & mask
	for {
		if !s.buckets[i].occupied || s.buckets[i].hash == k {
			return int(i)
		}
		i = (i + 1) & mask
	}
}

func (s *mapShard) maybeGrow() {
	if len(s.buckets) == 0 {
		s.buckets = make([]entry, minBuckets)
		return
	}
	if s.count*maxLoadFactorDen < len(s.buckets)*maxLoadFactorNum {
		return
	}
	old := s.buckets
	s.buckets = make([]entry, len(old)*2)
	s.count = 0
	for _, e := range old {
		if !e.occupied {
			continue
		}
		i := s.find(e.hash)
		s.buckets[i] = e
		s.count++
	}
}

// Merge absorbs all entries of other into m. No operator calls it:
// HashJoin builds a single map in one goroutine.
func (m *FlatHashMap) Merge(other *FlatHashMap) {
	for i := range other.shards {
		for _, e := range other.shards[i].buckets {
			if !e.occupied {
				continue
			}
			for _, v := range e.values {
				m.Insert(e.hash, v)
			}
		}
	}
}
