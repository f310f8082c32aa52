/*
 * Copyright 2020 Dgraph Labs, Inc. and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package z

import (
	"math"
	"unsafe"
)

// Bloom is a fixed-size bit-set Bloom filter used as TinyLFU's doorkeeper.
// Unlike a counting Bloom filter it only ever records membership, not
// frequency: a key is either in or it isn't, which is exactly what's needed
// to tell a key's first occurrence from its second.
type Bloom struct {
	bits  []uint64
	size  uint64 // number of bits, always a power of two
	shift uint64 // 64 - log2(size)
	k     uint64 // number of hash positions
	alloc Allocator
}

// NewBloom returns a Bloom filter sized for numEntries items at a false
// positive rate of roughly 1%.
func NewBloom(numEntries uint64) *Bloom {
	return NewBloomWithAllocator(numEntries, NewAllocator())
}

// NewBloomWithAllocator lets callers share a single Allocator across
// multiple filters/sketches.
func NewBloomWithAllocator(numEntries uint64, alloc Allocator) *Bloom {
	if numEntries == 0 {
		numEntries = 1
	}
	// Bits needed for a ~1% false positive rate, m = -n*ln(0.01)/ln(2)^2,
	// rounded up to a power of two.
	bitsWanted := math.Ceil(-float64(numEntries) * math.Log(0.01) / (math.Ln2 * math.Ln2))
	size := nextPow2(uint64(bitsWanted))
	// k = ceil(ln(2) * size / numEntries), clamped to a sane minimum.
	k := uint64(math.Ceil(math.Ln2 * float64(size) / float64(numEntries)))
	if k < 1 {
		k = 1
	}
	words := size / 64
	if words == 0 {
		words = 1
	}
	b := &Bloom{
		size:  size,
		shift: 64 - log2(size),
		k:     k,
		alloc: alloc,
	}
	raw := alloc.Calloc(int(words) * 8)
	b.bits = bytesAsUint64(raw, int(words))
	return b
}

// positions returns the k bit indices the doorkeeper derives from hash via
// the classic double-hashing trick: take h as the top log2(size) bits of the
// hash and l as its bottom log2(size) bits, then probe h+i*l for i in [0, k).
func (b *Bloom) positions(hash uint64) []uint64 {
	h := hash >> b.shift
	l := (hash << b.shift) >> b.shift
	pos := make([]uint64, b.k)
	for i := uint64(0); i < b.k; i++ {
		pos[i] = (h + i*l) & (b.size - 1)
	}
	return pos
}

func (b *Bloom) get(bit uint64) bool {
	return b.bits[bit/64]&(1<<(bit%64)) != 0
}

func (b *Bloom) set(bit uint64) {
	b.bits[bit/64] |= 1 << (bit % 64)
}

// Add sets all k bits for hash.
func (b *Bloom) Add(hash uint64) {
	for _, bit := range b.positions(hash) {
		b.set(bit)
	}
}

// Has reports whether all k bits for hash are already set.
func (b *Bloom) Has(hash uint64) bool {
	for _, bit := range b.positions(hash) {
		if !b.get(bit) {
			return false
		}
	}
	return true
}

// AddIfNotPresent adds hash and returns true, unless it was already
// present, in which case it's a no-op and returns false.
func (b *Bloom) AddIfNotPresent(hash uint64) bool {
	if b.Has(hash) {
		return false
	}
	b.Add(hash)
	return true
}

// Clear zeroes every bit without reallocating.
func (b *Bloom) Clear() {
	for i := range b.bits {
		b.bits[i] = 0
	}
}

func nextPow2(x uint64) uint64 {
	if x == 0 {
		return 1
	}
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	x++
	return x
}

func log2(x uint64) uint64 {
	var n uint64
	for x > 1 {
		x >>= 1
		n++
	}
	return n
}

// bytesAsUint64 reinterprets an allocator-provided byte buffer as a uint64
// slice of length n, avoiding a second allocation + copy. The buffer must
// be at least n*8 bytes, which NewBloomWithAllocator guarantees.
func bytesAsUint64(b []byte, n int) []uint64 {
	if len(b) < n*8 {
		return make([]uint64, n)
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&b[0])), n)
}
