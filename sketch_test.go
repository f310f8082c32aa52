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

func TestCmSketchSaturates(t *testing.T) {
	s := newCmSketch(16)
	for i := 0; i < 100; i++ {
		s.Increment(1)
	}
	require.EqualValues(t, 15, s.Estimate(1))
}

func TestCmSketchEstimateZeroForUnseenKey(t *testing.T) {
	s := newCmSketch(16)
	s.Increment(1)
	require.EqualValues(t, 0, s.Estimate(2))
}

func TestCmSketchResetHalves(t *testing.T) {
	s := newCmSketch(16)
	for i := 0; i < 10; i++ {
		s.Increment(1)
	}
	before := s.Estimate(1)
	s.Reset()
	after := s.Estimate(1)
	require.LessOrEqual(t, after, before/2+1)
}

func TestCmSketchClear(t *testing.T) {
	s := newCmSketch(16)
	s.Increment(1)
	s.Increment(1)
	s.Clear()
	require.EqualValues(t, 0, s.Estimate(1))
}

func TestCmSketchRowsUseIndependentSeeds(t *testing.T) {
	s := newCmSketch(64)
	seen := make(map[uint64]bool)
	for _, seed := range s.seed {
		require.False(t, seen[seed], "sketch rows must draw independent seeds")
		seen[seed] = true
	}
}

func TestNextPow2(t *testing.T) {
	cases := map[uint64]uint64{
		0: 1, 1: 1, 2: 2, 3: 4, 5: 8, 512: 512, 513: 1024,
	}
	for in, want := range cases {
		require.Equal(t, want, nextPow2(in), "nextPow2(%d)", in)
	}
}
