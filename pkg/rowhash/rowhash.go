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

// Package rowhash provides the two hash structures the physical join,
// aggregate, distinct, and set-op operators build on: a multimap from
// pre-hashed u64 keys to row-index lists (FlatHashMap) and a pre-hashed
// membership set (FlatHashSet), plus a 2-hash BloomFilter used to skip
// probes that cannot possibly match.
//
// Both structures are identity-hash: the caller supplies an already-mixed
// u64 (see pkg/vector.HashInto) and neither structure ever rehashes it.
// Both are sharded into power-of-two-sized stripes, the same cache-line
// padded striping pkg/vsa used for its atomic counters, so a build phase
// can be split across goroutines without a global lock.
package rowhash

const (
	maxLoadFactorNum = 3
	maxLoadFactorDen = 4
	minBuckets       = 16
	// padSize pads each shard's mutex+header away from its neighbors
	// on the same cache line, mirroring pkg/vsa's stripe padding.
	padSize = 64
)

func nextPow2(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	if p < minBuckets {
		p = minBuckets
	}
	return p
}

func shardFor(hash uint64, shardMask uint64) int {
	// top bits pick the shard, low bits pick the in-shard bucket, so
	// the two partitions of the hash don't correlate for small key sets.
	return int((hash >> 56) & shardMask)
}
