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

// numStoreShards fixes the fan-out of the sharded map. 256 shards
// keeps per-shard contention low without the shard index computation itself
// (a mod) becoming the bottleneck.
const numStoreShards = 256

// storeItem is what's actually resident per key. Most of Item's fields
// (the flag byte, a WaitGroup for Cache.Wait) aren't relevant once the
// entry has settled into the store.
type storeItem struct {
	key        uint64
	conflict   uint64
	value      interface{}
	expiration time.Time
}

// shardedMap is numStoreShards independent mutex-guarded maps, selected by
// keyHash % numStoreShards. Operations on different shards never contend.
type shardedMap struct {
	shards    [numStoreShards]*lockedMap
	expiryMap *expirationMap
}

func newShardedMap() *shardedMap {
	sm := &shardedMap{expiryMap: newExpirationMap()}
	for i := range sm.shards {
		sm.shards[i] = newLockedMap(sm.expiryMap)
	}
	return sm
}

func (sm *shardedMap) shardFor(key uint64) *lockedMap {
	return sm.shards[key%numStoreShards]
}

func (sm *shardedMap) Get(key, conflict uint64) (interface{}, bool) {
	return sm.shardFor(key).get(key, conflict)
}

func (sm *shardedMap) Expiration(key uint64) time.Time {
	return sm.shardFor(key).expiration(key)
}

// Set inserts a new entry, or overwrites an existing one whose conflict
// hash matches. A conflict mismatch on an existing key is silently
// ignored — it means keyHash collided across two distinct logical keys,
// and we'd rather keep the resident value than clobber it.
func (sm *shardedMap) Set(item *Item) {
	if item == nil {
		return
	}
	sm.shardFor(item.Key).set(item)
}

// Update overwrites an entry in place only if it already exists and its
// conflict hash matches. It returns the value that was replaced (if any)
// so the caller can invoke the exit/eviction callback on it.
func (sm *shardedMap) Update(item *Item) (interface{}, bool) {
	return sm.shardFor(item.Key).update(item)
}

func (sm *shardedMap) Del(key, conflict uint64) (uint64, interface{}) {
	return sm.shardFor(key).del(key, conflict)
}

func (sm *shardedMap) Clear(onEvict itemCallback) {
	for _, s := range sm.shards {
		s.clear(onEvict)
	}
	sm.expiryMap.clear()
}

// Cleanup sweeps every expiration bucket whose deadline has passed,
// deleting each key from both the policy and the relevant shard and
// invoking onEvict for anything still resident.
func (sm *shardedMap) Cleanup(policy *lfuPolicy, onEvict itemCallback) {
	now := time.Now()
	expired := sm.expiryMap.cleanup(now)
	for key, conflict := range expired {
		shard := sm.shardFor(key)
		shard.Lock()
		item, ok := shard.data[key]
		match := ok && (conflict == 0 || item.conflict == conflict)
		if match {
			delete(shard.data, key)
		}
		shard.Unlock()
		if !match {
			continue
		}
		policy.Del(key)
		onEvict(&Item{Key: key, Conflict: item.conflict, Value: item.value})
	}
}

// lockedMap is one shard: a mutex and the map it guards.
type lockedMap struct {
	sync.Mutex
	data      map[uint64]storeItem
	expiryMap *expirationMap
}

func newLockedMap(em *expirationMap) *lockedMap {
	return &lockedMap{
		data:      make(map[uint64]storeItem),
		expiryMap: em,
	}
}

func (m *lockedMap) get(key, conflict uint64) (interface{}, bool) {
	m.Lock()
	item, ok := m.data[key]
	m.Unlock()
	if !ok {
		return nil, false
	}
	if conflict != 0 && conflict != item.conflict {
		return nil, false
	}
	if !item.expiration.IsZero() && time.Now().After(item.expiration) {
		return nil, false
	}
	return item.value, true
}

func (m *lockedMap) expiration(key uint64) time.Time {
	m.Lock()
	defer m.Unlock()
	return m.data[key].expiration
}

func (m *lockedMap) set(i *Item) {
	if i == nil {
		return
	}
	m.Lock()
	defer m.Unlock()
	old, ok := m.data[i.Key]
	if ok && i.Conflict != 0 && i.Conflict != old.conflict {
		return
	}
	m.data[i.Key] = storeItem{
		key:        i.Key,
		conflict:   i.Conflict,
		value:      i.Value,
		expiration: i.Expiration,
	}
	if ok {
		m.expiryMap.update(i.Key, old.conflict, old.expiration, i.Expiration)
	} else if !i.Expiration.IsZero() {
		m.expiryMap.add(i.Key, i.Conflict, i.Expiration)
	}
}

func (m *lockedMap) update(i *Item) (interface{}, bool) {
	m.Lock()
	defer m.Unlock()
	old, ok := m.data[i.Key]
	if !ok {
		return nil, false
	}
	if i.Conflict != 0 && i.Conflict != old.conflict {
		return nil, false
	}
	m.data[i.Key] = storeItem{
		key:        i.Key,
		conflict:   i.Conflict,
		value:      i.Value,
		expiration: i.Expiration,
	}
	m.expiryMap.update(i.Key, old.conflict, old.expiration, i.Expiration)
	return old.value, true
}

func (m *lockedMap) del(key, conflict uint64) (uint64, interface{}) {
	m.Lock()
	defer m.Unlock()
	item, ok := m.data[key]
	if !ok {
		return 0, nil
	}
	if conflict != 0 && conflict != item.conflict {
		return 0, nil
	}
	delete(m.data, key)
	if !item.expiration.IsZero() {
		m.expiryMap.del(key, item.expiration)
	}
	return item.conflict, item.value
}

func (m *lockedMap) clear(onEvict itemCallback) {
	m.Lock()
	items := m.data
	m.data = make(map[uint64]storeItem)
	m.Unlock()
	if onEvict == nil {
		return
	}
	for _, item := range items {
		onEvict(&Item{Key: item.key, Conflict: item.conflict, Value: item.value})
	}
}
