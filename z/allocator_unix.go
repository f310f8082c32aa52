//go:build linux || darwin

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

import (
	"github.com/golang/glog"
	"golang.org/x/sys/unix"
)

// mmapAllocator backs Calloc with anonymous private mmap regions. Small
// requests (under a page) aren't worth the syscall, so those fall back to a
// plain make().
type mmapAllocator struct {
	pageSize int
}

func newAllocator() Allocator {
	return &mmapAllocator{pageSize: unix.Getpagesize()}
}

func (a *mmapAllocator) Calloc(n int) []byte {
	if n <= 0 {
		return nil
	}
	if n < a.pageSize {
		return make([]byte, n)
	}
	b, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		glog.V(2).Infof("z: mmap of %d bytes failed (%v), falling back to heap", n, err)
		return make([]byte, n)
	}
	return b
}

func (a *mmapAllocator) Free(b []byte) {
	if len(b) < a.pageSize {
		return
	}
	if err := unix.Munmap(b); err != nil {
		glog.V(2).Infof("z: munmap failed: %v", err)
	}
}
