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

package z

// Allocator hands out byte buffers for the sketch counter rows and the
// doorkeeper's bit-set. Sketch memory scales with numCounters, which for a
// cache sized for millions of keys can run into tens of megabytes; keeping
// it off the Go heap means the GC never has to scan or move it.
//
// Calloc zeroes the returned buffer. Free is a no-op on platforms without a
// real mmap-backed implementation (see allocator_other.go); callers must
// not assume Free actually releases memory, only that it's safe to call.
type Allocator interface {
	Calloc(n int) []byte
	Free(b []byte)
}

// NewAllocator returns the platform's Allocator implementation.
func NewAllocator() Allocator {
	return newAllocator()
}
