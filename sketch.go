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

package tinycache

import (
	"crypto/rand"
	"encoding/binary"
	"math"

	"github.com/tushar-zomato/tinycache/z"
)

// cmDepth is the number of independent rows in the count-min sketch. Each
// row uses its own seed, so a collision in one row is unlikely to also
// collide in the others.
const cmDepth = 4

// cmSketch is a Count-Min sketch with 4-bit saturating counters, two per
// byte. It heavily borrows from Damian Gryski's CM4, but keeps cmDepth
// independent rows (and seeds) rather than one shared hash function.
type cmSketch struct {
	rows [cmDepth]cmRow
	seed [cmDepth]uint64
	mask uint64
}

func newCmSketch(numCounters int64) *cmSketch {
	return newCmSketchWithAllocator(numCounters, z.NewAllocator())
}

// newCmSketchWithAllocator lets a policy share one Allocator between its
// sketch rows and its doorkeeper, so both live in the same off-heap arena.
func newCmSketchWithAllocator(numCounters int64, alloc z.Allocator) *cmSketch {
	if numCounters <= 0 {
		panic("newCmSketch: bad numCounters")
	}
	width := nextPow2(uint64(numCounters))
	if width < 512 {
		width = 512
	}
	s := &cmSketch{mask: width - 1}
	for i := 0; i < cmDepth; i++ {
		s.seed[i] = randSeed()
		s.rows[i] = cmRow(alloc.Calloc(int(width / 2)))
	}
	return s
}

// randSeed draws one independent 64-bit seed per call. A correct TinyLFU
// needs cmDepth independent seeds; drawing one seed and reusing it across
// rows collapses all rows onto the same hash function and defeats the
// point of having multiple rows.
func randSeed() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	return binary.LittleEndian.Uint64(buf[:])
}

func (s *cmSketch) Increment(hashed uint64) {
	for i := range s.rows {
		s.rows[i].increment((hashed ^ s.seed[i]) & s.mask)
	}
}

func (s *cmSketch) Estimate(hashed uint64) int64 {
	min := byte(math.MaxUint8)
	for i := range s.rows {
		if v := s.rows[i].get((hashed ^ s.seed[i]) & s.mask); v < min {
			min = v
		}
	}
	return int64(min)
}

// Reset halves every counter, giving the sketch a recency bias instead of
// letting counts grow without bound.
func (s *cmSketch) Reset() {
	for _, r := range s.rows {
		r.reset()
	}
}

func (s *cmSketch) Clear() {
	for _, r := range s.rows {
		r.clear()
	}
}

// cmRow packs two 4-bit counters per byte.
type cmRow []byte

func newCmRow(width uint64) cmRow {
	return make(cmRow, width/2)
}

func (r cmRow) get(n uint64) byte {
	return byte(r[n/2]>>((n&1)*4)) & 0x0f
}

func (r cmRow) increment(n uint64) {
	i := n / 2
	shift := (n & 1) * 4
	v := (r[i] >> shift) & 0x0f
	if v < 15 {
		r[i] += 1 << shift
	}
}

func (r cmRow) reset() {
	for i := range r {
		r[i] = (r[i] >> 1) & 0x77
	}
}

func (r cmRow) clear() {
	for i := range r {
		r[i] = 0
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
