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

import "math/bits"

// MaxBloomKeys is the build-side cardinality above which the hash join
// disables its bloom filter automatically (the filter's false-positive
// rate and memory footprint both stop paying for themselves past this
// size, per spec).
const MaxBloomKeys = 16_000_000

// BloomFilter is a 2-hash filter (two derived probe positions per key)
// sized for a target false-positive rate. It is a pure probabilistic
// pre-check: a negative answer is certain, a positive answer must still
// be confirmed against the real hash table.
type BloomFilter struct {
	bits    []uint64
	nbits   uint64
	enabled bool
}

// NewBloomFilter sizes a filter for n expected keys at the given target
// false-positive rate (e.g. 0.05 for <=5%, the spec's default). Returns a
// filter with enabled=false when n exceeds MaxBloomKeys, matching the
// "disabled automatically when build side > 16 million keys" rule; a
// disabled filter's MaybeContains always returns true (never skips a
// probe) so callers don't need to special-case it.
func NewBloomFilter(n int, falsePositiveRate float64) *BloomFilter {
	if n > MaxBloomKeys || n <= 0 {
		return &BloomFilter{enabled: false}
	}
	m := optimalBits(n, falsePositiveRate)
	words := (m + 63) / 64
	return &BloomFilter{
		bits:    make([]uint64, words),
		nbits:   uint64(words * 64),
		enabled: true,
	}
}

func optimalBits(n int, p float64) int {
	// m = -(n * ln(p)) / (ln(2)^2), computed without math.Log to avoid
	// pulling in floating point surprises for p close to 0 or 1; a small
	// fixed-point approximation is sufficient since this only sizes an
	// allocation, never affects correctness.
	lnp := approxLn(p)
	ln2sq := 0.4804530139182014 // ln(2)^2
	m := -(float64(n) * lnp) / ln2sq
	if m < 64 {
		m = 64
	}
	return int(m)
}

// approxLn is a minimal natural-log approximation adequate for sizing a
// bloom filter (not used anywhere correctness-sensitive).
func approxLn(x float64) float64 {
	if x <= 0 {
		return -40 // effectively -inf for our purposes
	}
	// ln(x) via the identity ln(x) = 2*atanh((x-1)/(x+1)), a few terms
	// of the atanh series is plenty accurate for x in (0,1].
	y := (x - 1) / (x + 1)
	y2 := y * y
	sum := y
	term := y
	for i := 1; i < 8; i++ {
		term *= y2
		sum += term / float64(2*i+1)
	}
	return 2 * sum
}

func (f *BloomFilter) hashPositions(key uint64) (uint64, uint64) {
	h1 := key
	h2 := bits.RotateLeft64(key, 31) ^ 0x9E3779B97F4A7C15
	return h1 % f.nbits, h2 % f.nbits
}

// Add records key as a probable member.
func (f *BloomFilter) Add(key uint64) {
	if !f.enabled {
		return
	}
	p1, p2 := f.hashPositions(key)
	f.bits[p1/64] |= 1 << (p1 % 64)
	f.bits[p2/64] |= 1 << (p2 % 64)
}

// MaybeContains returns false only when key is certainly absent. A
// disabled filter always returns true.
func (f *BloomFilter) MaybeContains(key uint64) bool {
	if !f.enabled {
		return true
	}
	p1, p2 := f.hashPositions(key)
	return f.bits[p1/64]&(1<<(p1%64)) != 0 && f.bits[p2/64]&(1<<(p2%64)) != 0
}

// Enabled reports whether the filter is active (false once build-side
// cardinality exceeded MaxBloomKeys at construction time).
func (f *BloomFilter) Enabled() bool { return f.enabled }
