/*
 * Copyright 2025 CloudWeGo Authors
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

package mpool

import "github.com/prometheus/client_golang/prometheus"

var (
	poolLabels = []string{"pool"}

	descFreeBytes = prometheus.NewDesc(
		"kmem_pool_free_bytes",
		"Bytes held by free blocks of the pool, headers included.",
		poolLabels, nil,
	)
	descFreeBlocks = prometheus.NewDesc(
		"kmem_pool_free_blocks",
		"Number of free blocks in the pool.",
		poolLabels, nil,
	)
	descInUseBytes = prometheus.NewDesc(
		"kmem_pool_inuse_bytes",
		"Bytes held by allocated blocks of the pool, headers included.",
		poolLabels, nil,
	)
	descInUseBlocks = prometheus.NewDesc(
		"kmem_pool_inuse_blocks",
		"Number of allocated blocks in the pool.",
		poolLabels, nil,
	)
	descAllocs = prometheus.NewDesc(
		"kmem_pool_allocs_total",
		"Successful allocations since the pool was created.",
		poolLabels, nil,
	)
	descFrees = prometheus.NewDesc(
		"kmem_pool_frees_total",
		"Successful deallocations since the pool was created.",
		poolLabels, nil,
	)
	descFailures = prometheus.NewDesc(
		"kmem_pool_alloc_failures_total",
		"Rejected requests since the pool was created, by reason.",
		[]string{"pool", "reason"}, nil,
	)
)

// Collector exports the statistics of every created pool of a Manager.
type Collector struct {
	m *Manager
}

// NewCollector returns a prometheus.Collector reading m.
func NewCollector(m *Manager) *Collector {
	return &Collector{m: m}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descFreeBytes
	ch <- descFreeBlocks
	ch <- descInUseBytes
	ch <- descInUseBlocks
	ch <- descAllocs
	ch <- descFrees
	ch <- descFailures
}

// Collect implements prometheus.Collector. Pools not created yet are skipped.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, p := range c.m.pools {
		s, err := p.snapshot()
		if err != nil {
			continue
		}
		gauge := func(d *prometheus.Desc, v uint64) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v), p.name)
		}
		counter := func(d *prometheus.Desc, v uint64, labels ...string) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), append([]string{p.name}, labels...)...)
		}
		gauge(descFreeBytes, s.FreeBytes)
		gauge(descFreeBlocks, s.FreeBlocks)
		gauge(descInUseBytes, s.InUseBytes)
		gauge(descInUseBlocks, s.InUseBlocks)
		counter(descAllocs, s.Allocs)
		counter(descFrees, s.Frees)
		counter(descFailures, s.Failures.Oversized, "oversized")
		counter(descFailures, s.Failures.Exhausted, "exhausted")
		counter(descFailures, s.Failures.Access, "access")
	}
}
