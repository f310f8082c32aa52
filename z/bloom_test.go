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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBloomAddHas(t *testing.T) {
	b := NewBloom(1000)
	require.False(t, b.Has(42))
	b.Add(42)
	require.True(t, b.Has(42))
}

func TestBloomAddIfNotPresent(t *testing.T) {
	b := NewBloom(1000)
	require.True(t, b.AddIfNotPresent(7))
	require.False(t, b.AddIfNotPresent(7))
	require.True(t, b.Has(7))
}

func TestBloomClear(t *testing.T) {
	b := NewBloom(1000)
	b.Add(1)
	b.Add(2)
	b.Clear()
	require.False(t, b.Has(1))
	require.False(t, b.Has(2))
}

func TestBloomDoesNotFalseNegative(t *testing.T) {
	b := NewBloom(2000)
	for i := uint64(0); i < 1000; i++ {
		b.Add(i)
	}
	for i := uint64(0); i < 1000; i++ {
		require.True(t, b.Has(i), "bloom filter must never false-negative on an added key")
	}
}
