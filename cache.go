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

// Package tinycache is a concurrent, fixed-size, in-memory cache with a
// TinyLFU admission policy and a Sampled-LFU eviction policy. Add it to an
// existing system to keep the most valuable data resident under a fixed
// cost budget.
package tinycache

import (
	"sync"
	"time"
	"unsafe"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/tushar-zomato/tinycache/z"
)

// setBufSize bounds how many pending Set/Del items can queue up for the
// policy goroutine before Set starts returning false.
var setBufSize = 32 * 1024

type itemCallback func(*Item)

var itemSize = int64(unsafe.Sizeof(storeItem{}))

// Cache is a thread-safe hashmap fronted by a TinyLFU admission policy and
// a Sampled-LFU eviction policy. A single Cache instance can be shared by
// as many goroutines as needed.
type Cache struct {
	store              *shardedMap
	policy             *lfuPolicy
	getBuf             *ringBuffer
	setBuf             chan *Item
	reclaim            *epochReclaimer
	onEvict            itemCallback
	onReject           itemCallback
	onExit             func(interface{})
	keyToHash          func(interface{}) (uint64, uint64)
	stop               chan struct{}
	cleanupTicker      *time.Ticker
	cost               func(value interface{}) int64
	Metrics            *Metrics
	ignoreInternalCost bool
	isClosed           atomic.Bool
}

// Config configures a new Cache.
type Config struct {
	// OnExit is invoked once per value that leaves the cache for any
	// reason (eviction, deletion, overwrite, or rejection), after OnEvict
	// / OnReject if those are also set. Useful for releasing resources
	// the value itself owns.
	OnExit func(val interface{})
	// KeyToHash derives (keyHash, conflictHash) from a key. If nil,
	// z.KeyToHash is used, which handles string, []byte and the usual
	// integer kinds.
	KeyToHash func(key interface{}) (uint64, uint64)
	// OnEvict is invoked once per item the eviction policy kicks out to
	// make room for an admitted item, once per expired item CleanUp
	// removes, and once per item Clear discards.
	OnEvict func(item *Item)
	// OnReject is invoked once per item the admission policy declined to
	// let in at all.
	OnReject func(item *Item)
	// Cost computes a value's cost lazily, when Set/SetWithTTL is called
	// with a cost of 0.
	Cost func(value interface{}) int64
	// NumCounters is the number of frequency counters to keep. It should
	// be roughly 10x the number of items you expect the cache to hold at
	// once, for good eviction accuracy.
	NumCounters int64
	// MaxCost is the aggregate cost budget. Whatever units cost is
	// expressed in (bytes, "weight", item count), Σcost of resident items
	// never exceeds this. Unless IgnoreInternalCost is set, each item's cost
	// also includes itemSize bytes of per-entry overhead.
	MaxCost int64
	// BufferItems is the capacity of each ring stripe. 64 is a good
	// default for most workloads.
	BufferItems int64
	// Metrics turns on hit/miss/eviction counters. There is a small
	// overhead to maintaining them, so leave this off in the hot path
	// unless you need the numbers.
	Metrics bool
	// IgnoreInternalCost skips adding the cache's own per-entry bookkeeping
	// overhead (itemSize) to every item's cost.
	IgnoreInternalCost bool
}

func (c *Config) validate() error {
	switch {
	case c.NumCounters == 0:
		return errors.New("tinycache: Config.NumCounters can't be zero")
	case c.MaxCost == 0:
		return errors.New("tinycache: Config.MaxCost can't be zero")
	case c.BufferItems == 0:
		return errors.New("tinycache: Config.BufferItems can't be zero")
	}
	return nil
}

type itemFlag byte

const (
	itemNew itemFlag = iota
	itemDelete
	itemUpdate
)

// Item describes a key/value/cost triple as it moves through the cache's
// internal pipeline. It's also what OnEvict and OnReject receive.
type Item struct {
	Expiration time.Time
	Value      interface{}
	wg         *sync.WaitGroup
	Key        uint64
	Conflict   uint64
	Cost       int64
	flag       itemFlag
}

// NewCache builds a Cache from config, or returns an error describing the
// first thing wrong with it.
func NewCache(config *Config) (*Cache, error) {
	if config == nil {
		return nil, errors.New("tinycache: Config must not be nil")
	}
	if err := config.validate(); err != nil {
		return nil, errors.Wrap(err, "tinycache: invalid config")
	}

	policy := newPolicy(config.NumCounters, config.MaxCost)
	c := &Cache{
		store:              newShardedMap(),
		policy:             policy,
		getBuf:             newRingBuffer(policy, config.BufferItems),
		setBuf:             make(chan *Item, setBufSize),
		reclaim:            newEpochReclaimer(),
		keyToHash:          config.KeyToHash,
		stop:               make(chan struct{}),
		cost:               config.Cost,
		ignoreInternalCost: config.IgnoreInternalCost,
		cleanupTicker:      time.NewTicker(bucketDurationMs * time.Millisecond / 2),
	}
	c.onExit = func(val interface{}) {
		if config.OnExit != nil && val != nil {
			config.OnExit(val)
		}
	}
	c.onEvict = func(item *Item) {
		if config.OnEvict != nil {
			config.OnEvict(item)
		}
		c.onExit(item.Value)
	}
	c.onReject = func(item *Item) {
		if config.OnReject != nil {
			config.OnReject(item)
		}
		c.onExit(item.Value)
	}
	if c.keyToHash == nil {
		c.keyToHash = z.KeyToHash
	}
	if config.Metrics {
		c.collectMetrics()
	}
	glog.V(2).Infof("tinycache: new cache, numCounters=%d maxCost=%d bufferItems=%d",
		config.NumCounters, config.MaxCost, config.BufferItems)
	go c.processItems()
	return c, nil
}

func (c *Cache) collectMetrics() {
	c.Metrics = newMetrics()
	c.policy.CollectMetrics(c.Metrics)
}

// Wait blocks until every Set/Del issued before this call has been applied
// by the policy goroutine, by enqueueing a sentinel item behind them on the
// same channel and waiting for it to come out the other side.
func (c *Cache) Wait() {
	if c == nil || c.isClosed.Load() {
		return
	}
	wg := &sync.WaitGroup{}
	wg.Add(1)
	c.setBuf <- &Item{wg: wg}
	wg.Wait()
}

// Get returns the value for key and whether it was found. A nil value and
// a true bool can both be returned if the caller itself stored nil.
func (c *Cache) Get(key interface{}) (interface{}, bool) {
	if c == nil || c.isClosed.Load() || key == nil {
		return nil, false
	}
	keyHash, conflictHash := c.keyToHash(key)
	c.getBuf.Push(keyHash)
	value, ok := c.store.Get(keyHash, conflictHash)
	if ok {
		c.Metrics.add(hit, keyHash, 1)
	} else {
		c.Metrics.add(miss, keyHash, 1)
	}
	return value, ok
}

// GetTTL returns the remaining TTL for key and true if key is resident and
// not expired. A resident key with no expiration reports a zero Duration.
func (c *Cache) GetTTL(key interface{}) (time.Duration, bool) {
	if c == nil || key == nil {
		return 0, false
	}
	keyHash, conflictHash := c.keyToHash(key)
	if _, ok := c.store.Get(keyHash, conflictHash); !ok {
		return 0, false
	}
	expiration := c.store.Expiration(keyHash)
	if expiration.IsZero() {
		return 0, true
	}
	if time.Now().After(expiration) {
		return 0, false
	}
	return time.Until(expiration), true
}

// Set is equivalent to SetWithTTL(key, value, cost, 0).
func (c *Cache) Set(key, value interface{}, cost int64) bool {
	return c.SetWithTTL(key, value, cost, 0)
}

// SetWithTTL adds key/value to the cache with the given cost, expiring
// after ttl. A zero ttl never expires; a negative ttl is a no-op that
// discards the value and returns false.
//
// If it returns true, the item still might not end up resident — the
// admission policy can reject it asynchronously — but the attempt was at
// least queued.
func (c *Cache) SetWithTTL(key, value interface{}, cost int64, ttl time.Duration) bool {
	if c == nil || c.isClosed.Load() || key == nil {
		return false
	}

	var expiration time.Time
	switch {
	case ttl == 0:
	case ttl < 0:
		return false
	default:
		expiration = time.Now().Add(ttl)
	}

	keyHash, conflictHash := c.keyToHash(key)
	item := &Item{
		flag:       itemNew,
		Key:        keyHash,
		Conflict:   conflictHash,
		Value:      value,
		Cost:       cost,
		Expiration: expiration,
	}

	if prev, ok := c.store.Update(item); ok {
		c.onExit(prev)
		item.flag = itemUpdate
	}

	select {
	case c.setBuf <- item:
		return true
	default:
		if item.flag == itemUpdate {
			return true
		}
		c.Metrics.add(dropSets, keyHash, 1)
		return false
	}
}

// Del removes key from the cache, if present.
func (c *Cache) Del(key interface{}) {
	if c == nil || c.isClosed.Load() || key == nil {
		return
	}
	keyHash, conflictHash := c.keyToHash(key)
	_, prev := c.store.Del(keyHash, conflictHash)
	c.onExit(prev)
	c.setBuf <- &Item{flag: itemDelete, Key: keyHash, Conflict: conflictHash}
}

// Close stops the cache's background goroutine and releases its channels.
// The Cache must not be used afterward.
func (c *Cache) Close() {
	if c == nil || c.isClosed.Load() {
		return
	}
	c.Clear()
	c.stop <- struct{}{}
	close(c.stop)
	close(c.setBuf)
	c.policy.Close()
	c.cleanupTicker.Stop()
	c.isClosed.Store(true)
}

// Clear empties the cache and resets every policy and metrics counter.
func (c *Cache) Clear() {
	if c == nil || c.isClosed.Load() {
		return
	}
	c.stop <- struct{}{}

loop:
	for {
		select {
		case i := <-c.setBuf:
			if i.wg != nil {
				i.wg.Done()
				continue
			}
			if i.flag != itemUpdate {
				c.onEvict(i)
			}
		default:
			break loop
		}
	}

	c.policy.Clear()
	c.store.Clear(c.onEvict)
	if c.Metrics != nil {
		c.Metrics.Clear()
	}
	go c.processItems()
}

// CleanUp sweeps the expiration index for buckets that are due and evicts
// everything in them. It's idempotent and safe to call concurrently with
// any other Cache operation — it's the only non-lazy expiration path; Get
// only ever performs a per-entry lazy check.
func (c *Cache) CleanUp() {
	if c == nil || c.isClosed.Load() {
		return
	}
	c.store.Cleanup(c.policy, func(item *Item) {
		epoch := c.reclaim.advance()
		c.reclaim.retire(epoch, item)
		c.onEvict(item)
	})
}

// MaxCost returns the current cost budget.
func (c *Cache) MaxCost() int64 {
	if c == nil {
		return 0
	}
	return c.policy.MaxCost()
}

// UpdateMaxCost resizes the cost budget without rebuilding the cache.
func (c *Cache) UpdateMaxCost(maxCost int64) {
	if c == nil {
		return
	}
	c.policy.UpdateMaxCost(maxCost)
}

// processItems drains setBuf, applying each New/Update/Delete item to the
// policy and the store. Running on a single goroutine keeps policy
// decisions and store writes for a given key in the order they were
// enqueued, without needing the policy mutex held across the whole
// pipeline.
func (c *Cache) processItems() {
	for {
		select {
		case i, ok := <-c.setBuf:
			if !ok {
				return
			}
			if i.wg != nil {
				i.wg.Done()
				continue
			}
			if i.Cost == 0 && c.cost != nil && i.flag != itemDelete {
				i.Cost = c.cost(i.Value)
			}
			if !c.ignoreInternalCost {
				i.Cost += itemSize
			}

			switch i.flag {
			case itemNew:
				victims, added := c.policy.Add(i.Key, i.Cost)
				if added {
					c.store.Set(i)
				} else {
					c.onReject(i)
				}
				for _, victim := range victims {
					victim.Conflict, victim.Value = c.store.Del(victim.Key, 0)
					epoch := c.reclaim.advance()
					c.reclaim.retire(epoch, victim)
					c.onEvict(victim)
				}
			case itemUpdate:
				c.policy.Update(i.Key, i.Cost)
			case itemDelete:
				c.policy.Del(i.Key)
				_, val := c.store.Del(i.Key, i.Conflict)
				c.onExit(val)
			}
		case <-c.cleanupTicker.C:
			c.CleanUp()
		case <-c.stop:
			return
		}
	}
}
