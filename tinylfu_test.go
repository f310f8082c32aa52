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

	"github.com/stretchr/testify/require"
)

func TestTinyLFUDoorkeeperFirstTouch(t *testing.T) {
	lfu := newTinyLFU(16)
	require.EqualValues(t, 0, lfu.Estimate(1))

	lfu.Increment(1)
	require.EqualValues(t, 1, lfu.Estimate(1), "first increment only flips the doorkeeper bit")

	lfu.Increment(1)
	require.EqualValues(t, 2, lfu.Estimate(1), "second increment also touches the sketch")
}

func TestTinyLFUResetsAtNumCounters(t *testing.T) {
	lfu := newTinyLFU(4)
	for i := 0; i < 4; i++ {
		lfu.Increment(uint64(i))
	}
	require.EqualValues(t, 0, lfu.incrs, "incrs should reset once resetAt is reached")
}

func TestTinyLFUClearIsIdempotent(t *testing.T) {
	lfu := newTinyLFU(16)
	lfu.Increment(1)
	lfu.Increment(1)
	lfu.clear()
	state1 := lfu.Estimate(1)
	lfu.clear()
	state2 := lfu.Estimate(1)
	require.Equal(t, state1, state2)
	require.EqualValues(t, 0, state1)
}

func TestTinyLFUPushBatch(t *testing.T) {
	lfu := newTinyLFU(64)
	lfu.Push([]uint64{1, 1, 2, 3})
	require.EqualValues(t, 2, lfu.Estimate(1))
	require.EqualValues(t, 1, lfu.Estimate(2))
}
