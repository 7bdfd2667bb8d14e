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

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/cloudwego/kmem/sizeclass"
)

const (
	// HeaderSize is the size of the in-place header at the start of every block.
	HeaderSize = 8

	// Alignment is the granularity requests are rounded up to.
	// Every pointer returned by Alloc is aligned to it.
	Alignment = 8

	// DefaultMinOrder is log2 of the smallest block (32 bytes).
	DefaultMinOrder = 5

	// minOrderLimit keeps room for the header and both free-list links.
	minOrderLimit = 4

	// maxOrderLimit is the largest order a uint32 block size can hold.
	maxOrderLimit = 31
)

// Region is one statically known memory range managed as a pool.
type Region struct {
	// Name is used in logs, reports and metric labels.
	Name string `yaml:"name"`
	// Start is the first address of the region.
	Start Addr `yaml:"start"`
	// End is the first address past the region.
	End Addr `yaml:"end"`
}

// Size returns the number of bytes covered by the region.
func (r Region) Size() uint32 {
	return uint32(r.End - r.Start)
}

// Config describes the memory layout of the board.
// The index of a region in Regions is its PoolID.
type Config struct {
	// MinOrder is log2 of the smallest allocatable block, shared by all pools.
	MinOrder uint8 `yaml:"minOrder"`

	Regions []Region `yaml:"regions"`
}

// DefaultConfig returns the layout the kernel is built with.
func DefaultConfig() *Config {
	return &Config{
		MinOrder: DefaultMinOrder,
		Regions: []Region{
			IRAM1: {Name: "IRAM1", Start: 0x10000000, End: 0x10008000}, // 32KB
			IRAM2: {Name: "IRAM2", Start: 0x20000000, End: 0x20001000}, // 4KB
		},
	}
}

// ParseConfig decodes a YAML board profile and validates it.
// Omitted minOrder defaults to DefaultMinOrder.
func ParseConfig(data []byte) (*Config, error) {
	c := &Config{MinOrder: DefaultMinOrder}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse memory layout: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that every region can be managed by a buddy pool.
func (c *Config) Validate() error {
	if c.MinOrder < minOrderLimit || c.MinOrder > maxOrderLimit {
		return fmt.Errorf("minOrder must be in [%d, %d], got %d", minOrderLimit, maxOrderLimit, c.MinOrder)
	}
	if len(c.Regions) == 0 {
		return fmt.Errorf("at least one region is required")
	}
	names := make(map[string]struct{}, len(c.Regions))
	for i, r := range c.Regions {
		if r.Name == "" {
			return fmt.Errorf("region %d: name is required", i)
		}
		if _, ok := names[r.Name]; ok {
			return fmt.Errorf("region %s: duplicated name", r.Name)
		}
		names[r.Name] = struct{}{}

		if r.Start == Null || r.Start%Alignment != 0 {
			return fmt.Errorf("region %s: start %#x must be non-zero and %d-byte aligned", r.Name, r.Start, Alignment)
		}
		if r.End <= r.Start {
			return fmt.Errorf("region %s: end %#x must be above start %#x", r.Name, r.End, r.Start)
		}
		size := r.Size()
		if !sizeclass.IsPow2(size) {
			return fmt.Errorf("region %s: size %d must be a power of two", r.Name, size)
		}
		if size < 1<<c.MinOrder {
			return fmt.Errorf("region %s: size %d is below the minimum block size %d", r.Name, size, 1<<c.MinOrder)
		}
		for _, o := range c.Regions[:i] {
			if r.Start < o.End && o.Start < r.End {
				return fmt.Errorf("region %s overlaps region %s", r.Name, o.Name)
			}
		}
	}
	return nil
}

// lookup returns the region exactly matching [start, end).
func (c *Config) lookup(start, end Addr) (PoolID, bool) {
	for i, r := range c.Regions {
		if r.Start == start && r.End == end {
			return PoolID(i), true
		}
	}
	return 0, false
}
