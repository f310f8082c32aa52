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

func TestEpochReclaimerRetireHeldByActiveGuard(t *testing.T) {
	r := newEpochReclaimer()
	g := r.acquire()

	item := &Item{Value: "alive"}
	epoch := r.advance()
	r.retire(epoch, item)

	require.Equal(t, "alive", item.Value, "an item retired at or after a live guard's epoch must not be cleared")
	g.Done()
}

func TestEpochReclaimerDrainsOnceGuardReleased(t *testing.T) {
	r := newEpochReclaimer()
	g := r.acquire()

	item := &Item{Value: "stale"}
	r.retire(r.clock.Load(), item)

	g.Done()
	epoch := r.advance()
	r.retire(epoch, &Item{Value: "fresh"})

	require.Nil(t, item.Value, "releasing the only guard that pinned an older epoch must allow it to drain")
}

func TestEpochGuardDoneIsIdempotent(t *testing.T) {
	r := newEpochReclaimer()
	g := r.acquire()
	g.Done()
	require.NotPanics(t, g.Done)
}

func TestCacheGuardAcquireRelease(t *testing.T) {
	c := newTestCache(t)
	g := c.Guard()
	require.NotNil(t, g)
	g.Done()
}
