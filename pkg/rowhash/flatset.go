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

type setShard struct {
	mu      sync.Mutex
	buckets []uint64
	occ     []bool
	count   int
	_       [padSize]byte
}

// FlatHashSet is a pre-hashed membership set. physical.Aggregate uses it as
// the seen-set of DISTINCT aggregates; the Distinct operator and the joins
// do not use it.
type FlatHashSet struct {
	shards    []setShard
	shardMask uint64
}

// NewFlatHashSet constructs a set sharded across shardCount stripes.
func NewFlatHashSet(capacityHint, shardCount int) *FlatHashSet {
	if shardCount < 1 {
		shardCount = 1
	}
	shardCount = nextPow2OrOne(shardCount)
	s := &FlatHashSet{
		shards:    make([]setShard, shardCount),
		shardMask: uint64(shardCount - 1),
	}
	perShard := capacityHint / shardCount
	for i := range s.shards {
		n := nextPow2(perShard * maxLoadFactorDen / maxLoadFactorNum)
		s.shards[i].buckets = make([]uint64, n)
		s.shards[i].occ = make([]bool, n)
	}
	return s
}

// Insert reports whether k was newly added (true) or already present (false).
func (s *FlatHashSet) Insert(k uint64) bool {
	sh := &s.shards[shardFor(k, s.shardMask)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.insertLocked(k)
}

// Contains reports whether k is a member, without inserting it.
func (s *FlatHashSet) Contains(k uint64) bool {
	sh := &s.shards[shardFor(k, s.shardMask)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if len(sh.buckets) == 0 {
		return false
	}
	i := sh.find(k)
	return sh.occ[i]
}

// FindNewIndices consumes a batch of already-computed hashes and writes
// into out the positions (indices into hashes) of keys that were freshly
// inserted by this call, in one pass over a morsel; no operator calls it.
// Returns the count written, so callers can reuse out across calls
// without reallocating.
func (s *FlatHashSet) FindNewIndices(hashes []uint64, out []int32) int {
	n := 0
	for i, h := range hashes {
		if s.Insert(h) {
			out[n] = int32(i)
			n++
		}
	}
	return n
}

func (sh *setShard) insertLocked(k uint64) bool {
	sh.maybeGrow()
	i := sh.find(k)
	if sh.occ[i] {
		return false
	}
	sh.buckets[i] = k
	sh.occ[i] = true
	sh.count++
	return true
}

func (sh *setShard) find(k uint64) int {
	mask := uint64(len(sh.buckets) - 1)
	i := k & mask
	for {
		if !sh.occ[i] || sh.buckets[i] == k {
			return int(i)
		}
		i = (i + 1) & mask
	}
}

func (sh *setShard) maybeGrow() {
	if len(sh.buckets) == 0 {
		sh.buckets = make([]uint64, minBuckets)
		sh.occ = make([]bool, minBuckets)
		return
	}
	if sh.count*maxLoadFactorDen < len(sh.buckets)*maxLoadFactorNum {
		return
	}
	oldB, oldO := sh.buckets, sh.occ
	sh.buckets = make([]uint64, len(oldB)*2)
	sh.occ = make([]bool, len(oldB)*2)
	sh.count = 0
	for i, occ := range oldO {
		if !occ {
			continue
		}
		j := sh.find(oldB[i])
		sh.buckets[j] = oldB[i]
		sh.occ[j] = true
		sh.count++
	}
}

// Len returns the total number of distinct members across all shards.
func (s *FlatHashSet) Len() int {
	n := 0
	for i := range s.shards {
		n += s.shards[i].count
	}
	return n
}
