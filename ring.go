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

import "sync"

// ringConsumer is whatever a ring buffer drains into. The policy's Push
// implements this: it returns false when it's too busy to accept a batch,
// in which case the batch is simply dropped.
type ringConsumer interface {
	Push([]uint64) bool
}

// ringStripe is one lossy, bounded queue of keyHashes. Draining it doesn't
// block: if the consumer rejects the batch, it's thrown away.
type ringStripe struct {
	cons     ringConsumer
	data     []uint64
	capacity int
}

func newRingStripe(cons ringConsumer, capacity int) *ringStripe {
	return &ringStripe{
		cons:     cons,
		data:     make([]uint64, 0, capacity),
		capacity: capacity,
	}
}

// Push appends keyHash and drains when the stripe fills up. After an
// accepted drain the stripe allocates a fresh data slice, so it never
// mutates a slice the consumer might still be reading; after a rejected
// drain it reuses its own slice from the start.
func (s *ringStripe) Push(keyHash uint64) {
	s.data = append(s.data, keyHash)
	if len(s.data) >= s.capacity {
		if s.cons.Push(s.data) {
			s.data = make([]uint64, 0, s.capacity)
		} else {
			s.data = s.data[:0]
		}
	}
}

// ringBuffer is a pool of ringStripes. Concurrent readers each get handed
// whichever stripe happens to be idle in the pool, which is what keeps the
// policy mutex off the hot Get path: many readers can push without ever
// touching the same stripe (or the policy) at once.
type ringBuffer struct {
	pool *sync.Pool
}

func newRingBuffer(cons ringConsumer, capacity int64) *ringBuffer {
	return &ringBuffer{
		pool: &sync.Pool{
			New: func() interface{} {
				return newRingStripe(cons, int(capacity))
			},
		},
	}
}

// Push is safe from any number of concurrent goroutines. It never blocks on
// the policy mutex: the worst it does is drop a batch when the policy is
// already draining one.
func (b *ringBuffer) Push(keyHash uint64) {
	stripe := b.pool.Get().(*ringStripe)
	stripe.Push(keyHash)
	b.pool.Put(stripe)
}
