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

import "github.com/tushar-zomato/tinycache/z"

// tinyLFU is the admission side of the policy: a count-min sketch fronted
// by a doorkeeper. Most keys in a real workload are seen exactly once;
// letting the doorkeeper absorb that first touch for free keeps the sketch
// from being swamped by one-hit wonders.
type tinyLFU struct {
	freq    *cmSketch
	door    *z.Bloom
	incrs   int64
	resetAt int64
}

func newTinyLFU(numCounters int64) *tinyLFU {
	alloc := z.NewAllocator()
	return &tinyLFU{
		freq:    newCmSketchWithAllocator(numCounters, alloc),
		door:    z.NewBloomWithAllocator(uint64(numCounters), alloc),
		resetAt: numCounters,
	}
}

// Push runs Increment over a batch of keys, as delivered by a ring drain.
func (t *tinyLFU) Push(keys []uint64) {
	for _, k := range keys {
		t.Increment(k)
	}
}

// Increment records one occurrence of key. The first occurrence only flips
// the doorkeeper bit; the sketch isn't touched until the second.
func (t *tinyLFU) Increment(key uint64) {
	if added := t.door.AddIfNotPresent(key); !added {
		t.freq.Increment(key)
	}
	t.incrs++
	if t.incrs >= t.resetAt {
		t.reset()
	}
}

// Estimate returns the doorkeeper-adjusted frequency estimate for key.
func (t *tinyLFU) Estimate(key uint64) int64 {
	hits := t.freq.Estimate(key)
	if t.door.Has(key) {
		hits++
	}
	return hits
}

func (t *tinyLFU) reset() {
	t.incrs = 0
	t.door.Clear()
	t.freq.Reset()
}

func (t *tinyLFU) clear() {
	t.incrs = 0
	t.door.Clear()
	t.freq.Clear()
}
