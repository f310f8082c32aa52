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

func TestMetricsNilIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.add(hit, 1, 1)
		m.Clear()
		_ = m.String()
	})
	require.EqualValues(t, 0, m.Hits())
	require.EqualValues(t, 0, m.Ratio())
}

func TestMetricsHitsAndMisses(t *testing.T) {
	m := newMetrics()
	m.add(hit, 1, 1)
	m.add(hit, 2, 1)
	m.add(miss, 3, 1)
	require.EqualValues(t, 2, m.Hits())
	require.EqualValues(t, 1, m.Misses())
	require.InDelta(t, 2.0/3.0, m.Ratio(), 0.0001)
}

func TestMetricsRatioWithNoTraffic(t *testing.T) {
	m := newMetrics()
	require.EqualValues(t, 0, m.Ratio())
}

func TestMetricsStripedAcrossShards(t *testing.T) {
	m := newMetrics()
	for i := uint64(0); i < numShards*2; i++ {
		m.add(keyAdd, i, 1)
	}
	require.EqualValues(t, numShards*2, m.KeysAdded())
}

func TestMetricsClearZeroesEverything(t *testing.T) {
	m := newMetrics()
	m.add(hit, 1, 5)
	m.add(costAdd, 1, 5)
	m.Clear()
	require.EqualValues(t, 0, m.Hits())
	require.EqualValues(t, 0, m.CostAdded())
}

func TestMetricsStringIncludesHitRatio(t *testing.T) {
	m := newMetrics()
	m.add(hit, 1, 1)
	s := m.String()
	require.Contains(t, s, "hit-ratio")
	require.Contains(t, s, "gets-total")
}
