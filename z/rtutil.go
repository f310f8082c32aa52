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

// Package z holds the low-level primitives the cache core is built on:
// hashing, the doorkeeper Bloom filter, and the off-heap allocator backing
// both. None of this package knows what a cache is.
package z

import (
	"github.com/cespare/xxhash/v2"
	farm "github.com/dgryski/go-farm"
)

// KeyToHash derives the (keyHash, conflictHash) pair the cache core uses
// for shard selection and collision disambiguation. keyHash and
// conflictHash are deliberately produced by two different hash families so
// a collision in one is not correlated with a collision in the other.
//
// string and []byte keys dominate real workloads, so they get dedicated,
// allocation-free paths. Anything else falls back to a type switch over the
// usual integer kinds; callers with exotic key types should supply their
// own KeyToHash via Config.
func KeyToHash(key interface{}) (uint64, uint64) {
	if key == nil {
		return 0, 0
	}
	switch k := key.(type) {
	case uint64:
		return k, 0
	case string:
		return xxhash.Sum64String(k), farm.Fingerprint64([]byte(k))
	case []byte:
		return farm.Fingerprint64(k), xxhash.Sum64(k)
	case byte:
		return uint64(k), 0
	case int:
		return uint64(k), 0
	case int32:
		return uint64(k), 0
	case uint32:
		return uint64(k), 0
	case int64:
		return uint64(k), 0
	default:
		panic("KeyToHash: unsupported key type")
	}
}
