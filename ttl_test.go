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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStorageBucketArithmetic(t *testing.T) {
	t1 := time.UnixMilli(0)
	t2 := time.UnixMilli(bucketDurationMs - 1)
	t3 := time.UnixMilli(bucketDurationMs)
	require.Equal(t, storageBucket(t1), storageBucket(t2), "times within one window share a bucket")
	require.NotEqual(t, storageBucket(t2), storageBucket(t3))
}

func TestExpirationMapAddAndCleanup(t *testing.T) {
	em := newExpirationMap()
	past := time.Now().Add(-2 * bucketDurationMs * time.Millisecond)
	em.add(1, 9, past)

	due := em.cleanup(time.Now())
	require.Equal(t, uint64(9), due[1])
}

func TestExpirationMapCleanupKeepsFutureBucket(t *testing.T) {
	em := newExpirationMap()
	future := time.Now().Add(time.Hour)
	em.add(1, 0, future)

	due := em.cleanup(time.Now())
	require.Empty(t, due, "a key expiring in a future bucket must not be swept yet")
}

func TestExpirationMapUpdateMovesBucket(t *testing.T) {
	em := newExpirationMap()
	oldExp := time.Now().Add(-2 * bucketDurationMs * time.Millisecond)
	newExp := time.Now().Add(time.Hour)
	em.add(1, 0, oldExp)
	em.update(1, 0, oldExp, newExp)

	due := em.cleanup(time.Now())
	require.Empty(t, due, "moving a key's expiration forward must remove it from the old bucket")
}

func TestExpirationMapDel(t *testing.T) {
	em := newExpirationMap()
	exp := time.Now().Add(-2 * bucketDurationMs * time.Millisecond)
	em.add(1, 0, exp)
	em.del(1, exp)

	due := em.cleanup(time.Now())
	require.Empty(t, due)
}

func TestExpirationMapClear(t *testing.T) {
	em := newExpirationMap()
	em.add(1, 0, time.Now().Add(time.Hour))
	em.clear()
	require.Empty(t, em.buckets)
}
