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
	"time"
)

// bucketDurationMs batches TTLs into 5-second windows so cleanup can evict
// a whole bucket's worth of expired keys in one pass instead of scanning
// every resident entry on every tick.
const bucketDurationMs = 5000

// bucket is the set of keys (key -> conflict) expiring in one time window.
type bucket map[uint64]uint64

// expirationMap indexes resident keys by their expiration bucket so
// cleanup can find everything due to expire without touching the store at
// all. It is the only non-lazy expiration mechanism in the cache;
// individual Get calls only ever do a per-entry lazy check.
type expirationMap struct {
	sync.Mutex
	buckets map[int64]bucket
}

func newExpirationMap() *expirationMap {
	return &expirationMap{buckets: make(map[int64]bucket)}
}

func storageBucket(t time.Time) int64 {
	return t.UnixMilli() / bucketDurationMs
}

func (m *expirationMap) add(key, conflict uint64, expiration time.Time) {
	if expiration.IsZero() {
		return
	}
	m.Lock()
	defer m.Unlock()
	b := storageBucket(expiration)
	if m.buckets[b] == nil {
		m.buckets[b] = make(bucket)
	}
	m.buckets[b][key] = conflict
}

func (m *expirationMap) update(key, conflict uint64, oldExp, newExp time.Time) {
	m.Lock()
	defer m.Unlock()
	if !oldExp.IsZero() {
		oldBucket := storageBucket(oldExp)
		if b, ok := m.buckets[oldBucket]; ok {
			delete(b, key)
		}
	}
	if !newExp.IsZero() {
		newBucket := storageBucket(newExp)
		if m.buckets[newBucket] == nil {
			m.buckets[newBucket] = make(bucket)
		}
		m.buckets[newBucket][key] = conflict
	}
}

func (m *expirationMap) del(key uint64, expiration time.Time) {
	if expiration.IsZero() {
		return
	}
	m.Lock()
	defer m.Unlock()
	b, ok := m.buckets[storageBucket(expiration)]
	if !ok {
		return
	}
	delete(b, key)
}

// cleanup returns every (key, conflict) pair whose bucket is due, and
// drops those buckets from the index. Buckets strictly before the current
// one are due; the current bucket may still receive writes for TTLs that
// land later in the same window.
func (m *expirationMap) cleanup(now time.Time) map[uint64]uint64 {
	m.Lock()
	defer m.Unlock()
	cur := storageBucket(now)
	out := make(map[uint64]uint64)
	for b, keys := range m.buckets {
		if b >= cur {
			continue
		}
		for key, conflict := range keys {
			out[key] = conflict
		}
		delete(m.buckets, b)
	}
	return out
}

func (m *expirationMap) clear() {
	m.Lock()
	defer m.Unlock()
	m.buckets = make(map[int64]bucket)
}
