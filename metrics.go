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
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/atomic"
)

type metricType int

const (
	hit metricType = iota
	miss
	keyAdd
	keyUpdate
	keyEvict
	costAdd
	costEvict
	dropSets
	rejectSets
	dropGets
	keepGets
	// doNotUse is a sentinel marking the end of the enumeration.
	doNotUse
)

func (t metricType) String() string {
	switch t {
	case hit:
		return "hit"
	case miss:
		return "miss"
	case keyAdd:
		return "keys-added"
	case keyUpdate:
		return "keys-updated"
	case keyEvict:
		return "keys-evicted"
	case costAdd:
		return "cost-added"
	case costEvict:
		return "cost-evicted"
	case dropSets:
		return "sets-dropped"
	case rejectSets:
		return "sets-rejected"
	case dropGets:
		return "gets-dropped"
	case keepGets:
		return "gets-kept"
	default:
		return "unidentified"
	}
}

// numShards is the length of each counter array below. add stripes writers
// over the slots (hash%5)*10, ten slots apart, and reads sum every slot.
const numShards = 256

// Metrics is a snapshot-friendly set of counters for cache behavior: hits,
// misses, and everything the admission/eviction policy does. All counters
// are safe for concurrent use. A nil *Metrics is safe to call add on — it's
// simply a no-op, since Config.Metrics == false means the cache never
// allocates one.
type Metrics struct {
	all [doNotUse][]*atomic.Uint64
}

func newMetrics() *Metrics {
	m := &Metrics{}
	for i := range m.all {
		m.all[i] = make([]*atomic.Uint64, numShards)
		for j := range m.all[i] {
			m.all[i][j] = atomic.NewUint64(0)
		}
	}
	return m
}

func (p *Metrics) add(t metricType, hash, delta uint64) {
	if p == nil {
		return
	}
	slot := (hash % 5) * 10
	p.all[t][slot].Add(delta)
}

func (p *Metrics) get(t metricType) uint64 {
	if p == nil {
		return 0
	}
	var total uint64
	for _, c := range p.all[t] {
		total += c.Load()
	}
	return total
}

// Hits is the number of Get calls that found a value.
func (p *Metrics) Hits() uint64 { return p.get(hit) }

// Misses is the number of Get calls that found nothing.
func (p *Metrics) Misses() uint64 { return p.get(miss) }

// Ratio is Hits / (Hits + Misses), or 0 if there have been no gets yet.
func (p *Metrics) Ratio() float64 {
	hits, misses := p.get(hit), p.get(miss)
	if hits == 0 && misses == 0 {
		return 0.0
	}
	return float64(hits) / float64(hits+misses)
}

// KeysAdded, KeysUpdated, KeysEvicted are resident-key bookkeeping counters.
func (p *Metrics) KeysAdded() uint64   { return p.get(keyAdd) }
func (p *Metrics) KeysUpdated() uint64 { return p.get(keyUpdate) }
func (p *Metrics) KeysEvicted() uint64 { return p.get(keyEvict) }

// CostAdded and CostEvicted track the raw Σcost that has flowed into and
// out of the cache over its lifetime (not the current resident cost).
func (p *Metrics) CostAdded() uint64   { return p.get(costAdd) }
func (p *Metrics) CostEvicted() uint64 { return p.get(costEvict) }

// SetsDropped, SetsRejected, GetsDropped, GetsKept expose the lossy-path
// counters from the ring buffer and the admission policy.
func (p *Metrics) SetsDropped() uint64  { return p.get(dropSets) }
func (p *Metrics) SetsRejected() uint64 { return p.get(rejectSets) }
func (p *Metrics) GetsDropped() uint64  { return p.get(dropGets) }
func (p *Metrics) GetsKept() uint64     { return p.get(keepGets) }

// Clear zeroes every counter in place.
func (p *Metrics) Clear() {
	if p == nil {
		return
	}
	for i := range p.all {
		for _, c := range p.all[i] {
			c.Store(0)
		}
	}
}

// String renders a human-readable summary, using byte-count formatting for
// the cost counters since cost is conventionally measured in bytes.
func (p *Metrics) String() string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	for t := metricType(0); t < doNotUse; t++ {
		v := p.get(t)
		switch t {
		case costAdd, costEvict:
			fmt.Fprintf(&b, "%s: %s\n", t, humanize.IBytes(v))
		default:
			fmt.Fprintf(&b, "%s: %d\n", t, v)
		}
	}
	fmt.Fprintf(&b, "gets-total: %d\n", p.get(hit)+p.get(miss))
	fmt.Fprintf(&b, "hit-ratio: %.2f\n", p.Ratio())
	return b.String()
}
