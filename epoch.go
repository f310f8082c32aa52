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
	"sync"

	"go.uber.org/atomic"
)

// retired is one evicted entry waiting to be dropped once no reader still
// holds a Guard old enough to see it.
type retired struct {
	epoch uint64
	item  *Item
}

// epochReclaimer tracks the cache's logical clock and the set of Guards
// currently pinning it. A value unlinked from the store at epoch E is only
// safe to discard once every active Guard has advanced past E — until
// then it's held in the retirement list.
//
// Go's garbage collector already makes this unnecessary for memory safety
// (a *Item handed to onEvict stays alive as long as something references
// it), but the bookkeeping mirrors the reference implementation's epoch
// scheme so callers get a real, observable point at which "this evicted
// entry is fully released" happens rather than leaving it to GC timing.
type epochReclaimer struct {
	mu      sync.Mutex
	clock   atomic.Uint64
	active  map[*Guard]uint64
	retired []retired
}

func newEpochReclaimer() *epochReclaimer {
	return &epochReclaimer{active: make(map[*Guard]uint64)}
}

// Guard is a scoped handle obtained from Cache.Guard(). Holding one
// guarantees that any value returned by a Get made under it remains valid
// at least until Done is called.
type Guard struct {
	r     *epochReclaimer
	epoch uint64
	done  bool
}

// Guard returns a new epoch guard. Call Done when finished with whatever
// values were read under it.
func (c *Cache) Guard() *Guard {
	return c.reclaim.acquire()
}

func (r *epochReclaimer) acquire() *Guard {
	g := &Guard{r: r, epoch: r.clock.Load()}
	r.mu.Lock()
	r.active[g] = g.epoch
	r.mu.Unlock()
	return g
}

// Done releases the guard, allowing any retired entries from its epoch (or
// earlier) to be reclaimed once no other guard still needs them.
func (g *Guard) Done() {
	if g == nil || g.done {
		return
	}
	g.done = true
	g.r.release(g)
}

func (r *epochReclaimer) release(g *Guard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, g)
	r.drainLocked()
}

// advance bumps the clock. Called when a policy victim is evicted and when
// CleanUp removes an expired entry; Del does not advance it.
func (r *epochReclaimer) advance() uint64 {
	return r.clock.Inc()
}

// retire queues an evicted item for later release and opportunistically
// drains anything already safe to drop.
func (r *epochReclaimer) retire(epoch uint64, item *Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retired = append(r.retired, retired{epoch: epoch, item: item})
	r.drainLocked()
}

// minActiveLocked returns the oldest epoch any live guard still pins, or
// the current clock value if there are none.
func (r *epochReclaimer) minActiveLocked() uint64 {
	min := r.clock.Load()
	for _, e := range r.active {
		if e < min {
			min = e
		}
	}
	return min
}

func (r *epochReclaimer) drainLocked() {
	if len(r.retired) == 0 {
		return
	}
	min := r.minActiveLocked()
	kept := r.retired[:0]
	for _, e := range r.retired {
		if e.epoch < min {
			// Safe to drop: no guard predates this retirement, so nothing
			// could still be dereferencing the evicted value through a
			// Get that raced with the eviction.
			e.item.Value = nil
			continue
		}
		kept = append(kept, e)
	}
	r.retired = kept
}
