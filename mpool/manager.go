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

// Package mpool implements the kernel memory pools: statically configured
// regions, each carved into power-of-two blocks by a buddy allocator.
//
// A Manager owns one Pool per configured region. Pools are created once at
// startup, then serve Alloc and Free until shutdown. Every operation on a
// pool runs under that pool's lock; different pools never contend.
package mpool

import (
	"fmt"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Addr is an address in the managed address space.
type Addr uint32

// Null is returned by Alloc when nothing was allocated.
const Null Addr = 0

// PoolID identifies a pool. It is the index of its region in Config.Regions.
type PoolID int

// Pools of DefaultConfig.
const (
	IRAM1 PoolID = iota
	IRAM2
)

// Algorithm selects the allocation strategy of a pool.
type Algorithm int

const (
	// Buddy is the binary buddy system, the only supported strategy.
	Buddy Algorithm = iota
)

func (a Algorithm) String() string {
	if a == Buddy {
		return "buddy"
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

// Manager routes requests to the pool owning each configured region.
type Manager struct {
	cfg   *Config
	pools []*Pool
}

// NewManager reserves the backing memory of every region in cfg.
// A nil cfg means DefaultConfig. Pools must still be created with Create or
// Init before use.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		cfg:   cfg,
		pools: make([]*Pool, len(cfg.Regions)),
	}
	for i, r := range cfg.Regions {
		m.pools[i] = newPool(PoolID(i), r, cfg.MinOrder)
	}
	return m, nil
}

// Init creates every configured pool, in order.
func (m *Manager) Init(algo Algorithm) error {
	for _, r := range m.cfg.Regions {
		if _, err := m.Create(algo, r.Start, r.End); err != nil {
			return err
		}
	}
	return nil
}

// Create turns the region [start, end) into a single free block and returns
// its pool. The range must match a configured region exactly.
//
// Creating a pool again discards everything allocated from it.
func (m *Manager) Create(algo Algorithm, start, end Addr) (PoolID, error) {
	klog.V(4).Infof("mpool: create algo=%s range=[%#x, %#x)", algo, start, end)
	if algo != Buddy {
		err := errors.Wrapf(ErrInvalidArgument, "unsupported algorithm %s", algo)
		klog.V(2).Info(err)
		return 0, err
	}
	id, ok := m.cfg.lookup(start, end)
	if !ok {
		err := errors.Wrapf(ErrInvalidArgument, "range [%#x, %#x) matches no region", start, end)
		klog.V(2).Info(err)
		return 0, err
	}
	p := m.pools[id]
	p.create()
	klog.Infof("mpool: created pool %s [%#x, %#x), orders %d..%d", p.name, p.start, p.end, p.minOrder, p.maxOrder)
	return id, nil
}

// Alloc returns the address of at least size bytes from pool id.
// The address is Alignment-aligned. On failure it returns Null and an error
// wrapping ErrInvalidArgument or ErrResourceExhausted.
func (m *Manager) Alloc(id PoolID, size int) (Addr, error) {
	klog.V(4).Infof("mpool: alloc pool=%d size=%d", id, size)
	p, err := m.pool(id)
	if err != nil {
		return Null, err
	}
	addr, err := p.alloc(size)
	if err != nil {
		klog.V(2).Info(err)
		return Null, err
	}
	klog.V(4).Infof("mpool: alloc pool=%s size=%d -> %#x", p.name, size, addr)
	return addr, nil
}

// Free returns the block at ptr, an address obtained from Alloc on the same
// pool, and merges it with its free buddies. On failure nothing changes.
func (m *Manager) Free(id PoolID, ptr Addr) error {
	klog.V(4).Infof("mpool: free pool=%d ptr=%#x", id, ptr)
	p, err := m.pool(id)
	if err != nil {
		return err
	}
	if err = p.free(ptr); err != nil {
		klog.V(2).Info(err)
	}
	return err
}

// Dump lists the free blocks of pool id without modifying it.
func (m *Manager) Dump(id PoolID) (*Report, error) {
	klog.V(4).Infof("mpool: dump pool=%d", id)
	p, err := m.pool(id)
	if err != nil {
		return nil, err
	}
	return p.dump()
}

// Payload returns the caller-owned bytes of the live allocation at ptr.
// The slice excludes the block header and ends at the block boundary.
func (m *Manager) Payload(id PoolID, ptr Addr) ([]byte, error) {
	p, err := m.pool(id)
	if err != nil {
		return nil, err
	}
	return p.payload(ptr)
}

// Stats returns the counters of pool id.
func (m *Manager) Stats(id PoolID) (Stats, error) {
	p, err := m.pool(id)
	if err != nil {
		return Stats{}, err
	}
	return p.snapshot()
}

// Pool returns the pool with the given id.
func (m *Manager) Pool(id PoolID) (*Pool, error) {
	return m.pool(id)
}

// Pools returns the number of configured pools.
func (m *Manager) Pools() int {
	return len(m.pools)
}

func (m *Manager) pool(id PoolID) (*Pool, error) {
	if id < 0 || int(id) >= len(m.pools) {
		return nil, errors.Wrapf(ErrInvalidArgument, "unknown pool %d", id)
	}
	return m.pools[id], nil
}

// Stats counts the activity of a pool since it was created.
type Stats struct {
	Allocs uint64
	Frees  uint64

	Failures Failures

	InUseBlocks uint64
	InUseBytes  uint64
	FreeBlocks  uint64
	FreeBytes   uint64

	// Splits and Merges count single halving and doubling steps.
	Splits uint64
	Merges uint64
}

// Failures counts rejected requests by reason.
type Failures struct {
	Oversized uint64
	Exhausted uint64
	Access    uint64
}
