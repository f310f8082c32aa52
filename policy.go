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
	"math"
	"sync"
)

const (
	// lfuSampleSize is the number of items to sample when looking at eviction
	// candidates. 5 seems to be the most optimal number [citation needed].
	lfuSampleSize = 5
)

// sampledLFU tracks the cost of every resident key without tracking
// frequency itself (that's tinyLFU's job) or ordering (no LRU list). It
// answers two questions: is there room for a new cost, and if not, which
// resident keys are candidates for eviction.
type sampledLFU struct {
	keyCosts map[uint64]int64
	maxCost  int64
	used     int64
	metrics  *Metrics
}

func newSampledLFU(maxCost int64) *sampledLFU {
	return &sampledLFU{
		keyCosts: make(map[uint64]int64),
		maxCost:  maxCost,
	}
}

func (s *sampledLFU) getMaxCost() int64 {
	return s.maxCost
}

func (s *sampledLFU) updateMaxCost(maxCost int64) {
	if maxCost == 0 {
		return
	}
	s.maxCost = maxCost
}

func (s *sampledLFU) roomLeft(cost int64) int64 {
	return s.maxCost - (s.used + cost)
}

// fillSample tops up `in` with arbitrary (key, cost) pairs from keyCosts
// until it reaches lfuSampleSize or the map is exhausted. Map iteration
// order is unspecified in Go, which is exactly what "random sampling" means
// here — callers must not rely on any particular order or on repeatability.
func (s *sampledLFU) fillSample(in []*policyPair) []*policyPair {
	if len(in) >= lfuSampleSize {
		return in
	}
	for key, cost := range s.keyCosts {
		in = append(in, &policyPair{key, cost})
		if len(in) >= lfuSampleSize {
			return in
		}
	}
	return in
}

func (s *sampledLFU) del(key uint64) {
	cost, ok := s.keyCosts[key]
	if !ok {
		return
	}
	s.used -= cost
	delete(s.keyCosts, key)
	if s.metrics != nil {
		s.metrics.add(costEvict, key, uint64(cost))
		s.metrics.add(keyEvict, key, 1)
	}
}

func (s *sampledLFU) add(key uint64, cost int64) {
	s.keyCosts[key] = cost
	s.used += cost
}

func (s *sampledLFU) updateIfHas(key uint64, cost int64) bool {
	prev, ok := s.keyCosts[key]
	if !ok {
		return false
	}
	if s.metrics != nil {
		s.metrics.add(keyUpdate, key, 1)
		if prev > cost {
			// Subtract the decrease: adding ^(d-1) is adding -d.
			s.metrics.add(costAdd, key, ^uint64(prev-cost-1))
		} else if cost > prev {
			s.metrics.add(costAdd, key, uint64(cost-prev))
		}
	}
	s.used += cost - prev
	s.keyCosts[key] = cost
	return true
}

func (s *sampledLFU) clear() {
	s.used = 0
	s.keyCosts = make(map[uint64]int64)
}

// policyPair is one (key, cost) sample drawn from sampledLFU.keyCosts.
type policyPair struct {
	key  uint64
	cost int64
}

// lfuPolicy glues tinyLFU (admission) and sampledLFU (eviction) behind a
// single mutex. Everything below Lock()/Unlock() runs without blocking on
// anything except that mutex.
type lfuPolicy struct {
	sync.Mutex
	admit         *tinyLFU
	costs         *sampledLFU
	lfuSampleSize int
	itemsCh       chan []uint64
	stop          chan struct{}
	isClosed      bool
	metrics       *Metrics
}

func newPolicy(numCounters, maxCost int64) *lfuPolicy {
	return newPolicyWithSampleSize(numCounters, maxCost, lfuSampleSize)
}

func newPolicyWithSampleSize(numCounters, maxCost int64, sampleSize int) *lfuPolicy {
	p := &lfuPolicy{
		admit:         newTinyLFU(numCounters),
		costs:         newSampledLFU(maxCost),
		itemsCh:       make(chan []uint64, 3),
		stop:          make(chan struct{}),
		lfuSampleSize: sampleSize,
	}
	go p.processItems()
	return p
}

func (p *lfuPolicy) CollectMetrics(metrics *Metrics) {
	p.metrics = metrics
	p.costs.metrics = metrics
}

// processItems drains the ring buffer's batches into tinyLFU. Running this
// on its own goroutine means the reader that triggered a ring drain never
// blocks on the policy mutex.
func (p *lfuPolicy) processItems() {
	for {
		select {
		case items := <-p.itemsCh:
			p.Lock()
			p.admit.Push(items)
			p.Unlock()
		case <-p.stop:
			return
		}
	}
}

// Push is the ring buffer's non-blocking handoff into the policy. If a
// batch is already queued up to three deep, the new batch is dropped
// rather than waiting — that's the lossy part of the ring design.
func (p *lfuPolicy) Push(keys []uint64) bool {
	if p.isClosed {
		return false
	}
	if len(keys) == 0 {
		return true
	}
	select {
	case p.itemsCh <- keys:
		p.metrics.add(keepGets, keys[0], uint64(len(keys)))
		return true
	default:
		p.metrics.add(dropGets, keys[0], uint64(len(keys)))
		return false
	}
}

// Add decides whether the item with the given key and cost should be
// accepted by the policy. It returns the list of victims evicted to make
// room and a boolean indicating whether the incoming item was admitted.
func (p *lfuPolicy) Add(key uint64, cost int64) ([]*Item, bool) {
	p.Lock()
	defer p.Unlock()

	// Cannot add an item bigger than the entire cache.
	if cost > p.costs.getMaxCost() {
		return nil, false
	}

	// Already resident: this is an update, not a new admission.
	if has := p.costs.updateIfHas(key, cost); has {
		return nil, false
	}

	room := p.costs.roomLeft(cost)
	if room >= 0 {
		p.costs.add(key, cost)
		p.metrics.add(costAdd, key, uint64(cost))
		p.metrics.add(keyAdd, key, 1)
		return nil, true
	}

	incHits := p.admit.Estimate(key)
	sample := make([]*policyPair, 0, p.lfuSampleSize)
	victims := make([]*Item, 0)

	for ; room < 0; room = p.costs.roomLeft(cost) {
		sample = p.costs.fillSample(sample)

		minKey, minHits, minId, minCost := uint64(0), int64(math.MaxInt64), 0, int64(0)
		for i, pair := range sample {
			if hits := p.admit.Estimate(pair.key); hits < minHits {
				minKey, minHits, minId, minCost = pair.key, hits, i, pair.cost
			}
		}

		if incHits < minHits {
			p.metrics.add(rejectSets, key, 1)
			return victims, false
		}

		p.costs.del(minKey)
		sample[minId] = sample[len(sample)-1]
		sample = sample[:len(sample)-1]
		victims = append(victims, &Item{Key: minKey, Conflict: 0, Cost: minCost})
	}

	p.costs.add(key, cost)
	p.metrics.add(costAdd, key, uint64(cost))
	p.metrics.add(keyAdd, key, 1)
	return victims, true
}

func (p *lfuPolicy) Has(key uint64) bool {
	p.Lock()
	defer p.Unlock()
	_, ok := p.costs.keyCosts[key]
	return ok
}

func (p *lfuPolicy) Del(key uint64) {
	p.Lock()
	defer p.Unlock()
	p.costs.del(key)
}

func (p *lfuPolicy) Cap() int64 {
	p.Lock()
	defer p.Unlock()
	return p.costs.getMaxCost() - p.costs.used
}

func (p *lfuPolicy) Update(key uint64, cost int64) {
	p.Lock()
	defer p.Unlock()
	p.costs.updateIfHas(key, cost)
}

func (p *lfuPolicy) Cost(key uint64) int64 {
	p.Lock()
	defer p.Unlock()
	if cost, ok := p.costs.keyCosts[key]; ok {
		return cost
	}
	return -1
}

func (p *lfuPolicy) Clear() {
	p.Lock()
	defer p.Unlock()
	p.admit.clear()
	p.costs.clear()
}

func (p *lfuPolicy) Close() {
	if p.isClosed {
		return
	}
	p.stop <- struct{}{}
	close(p.stop)
	close(p.itemsCh)
	p.isClosed = true
}

func (p *lfuPolicy) MaxCost() int64 {
	if p == nil || p.costs == nil {
		return 0
	}
	return p.costs.getMaxCost()
}

func (p *lfuPolicy) UpdateMaxCost(maxCost int64) {
	if p == nil || p.costs == nil {
		return
	}
	p.costs.updateMaxCost(maxCost)
}
