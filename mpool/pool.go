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
	"sync"

	"github.com/bytedance/gopkg/lang/dirtmake"
	"github.com/pkg/errors"

	"github.com/cloudwego/kmem/sizeclass"
)

// Pool is a buddy-system allocator over one configured region.
//
// Blocks live in place inside arena: each one starts with a header (see
// block.go) and free blocks are chained into one doubly linked list per
// order. Offsets, not addresses, are stored in headers; the address of a
// block is start+offset.
//
// All methods hold mu for their whole duration.
type Pool struct {
	mu sync.Mutex

	id    PoolID
	name  string
	start Addr
	end   Addr

	// arena is the backing store of [start, end).
	arena []byte

	minOrder uint
	maxOrder uint

	// freeLists[i] is the offset of the first free block of order minOrder+i.
	freeLists []uint32

	// ready is set by create. Nothing else is valid before that.
	ready bool

	stats Stats
}

func newPool(id PoolID, r Region, minOrder uint8) *Pool {
	size := r.Size()
	maxOrder := sizeclass.FloorLog2(size)
	return &Pool{
		id:        id,
		name:      r.Name,
		start:     r.Start,
		end:       r.End,
		arena:     dirtmake.Bytes(int(size), int(size)),
		minOrder:  uint(minOrder),
		maxOrder:  maxOrder,
		freeLists: make([]uint32, maxOrder-uint(minOrder)+1),
	}
}

// ID returns the pool identifier.
func (p *Pool) ID() PoolID { return p.id }

// Name returns the configured region name.
func (p *Pool) Name() string { return p.name }

// Start returns the first address of the pool.
func (p *Pool) Start() Addr { return p.start }

// End returns the first address past the pool.
func (p *Pool) End() Addr { return p.end }

// Size returns the total number of bytes managed by the pool.
func (p *Pool) Size() uint32 { return uint32(p.end - p.start) }

// MinOrder returns log2 of the smallest block.
func (p *Pool) MinOrder() uint { return p.minOrder }

// MaxOrder returns log2 of the whole pool.
func (p *Pool) MaxOrder() uint { return p.maxOrder }

// create discards every block and makes the whole region one free block.
func (p *Pool) create() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.freeLists {
		p.freeLists[i] = nilLink
	}
	p.stats = Stats{}
	p.block(0).setSize(1 << p.maxOrder)
	p.push(0, p.maxOrder)
	p.ready = true
}

func (p *Pool) alloc(size int) (Addr, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		return Null, errors.Wrapf(ErrInvalidArgument, "pool %s is not created", p.name)
	}
	if size < 0 {
		return Null, errors.Wrapf(ErrInvalidArgument, "pool %s: negative size %d", p.name, size)
	}
	order, ok := p.orderFor(size)
	if !ok {
		p.stats.Failures.Oversized++
		return Null, errors.Wrapf(ErrResourceExhausted,
			"pool %s: %d bytes exceeds the largest block (%d bytes)", p.name, size, 1<<p.maxOrder)
	}

	// first non-empty list at or above the target order
	found := order
	for found <= p.maxOrder && p.freeLists[found-p.minOrder] == nilLink {
		found++
	}
	if found > p.maxOrder {
		p.stats.Failures.Exhausted++
		return Null, errors.Wrapf(ErrResourceExhausted,
			"pool %s: no free block of order >= %d for %d bytes", p.name, order, size)
	}

	off := p.freeLists[found-p.minOrder]
	p.unlink(off, found)

	// The lower half keeps the offset, the upper half goes back as a free buddy.
	for found > order {
		found--
		buddy := off + 1<<found
		p.block(buddy).setSize(1 << found)
		p.push(buddy, found)
		p.stats.Splits++
	}

	b := p.block(off)
	b.setSize(1 << order)
	b.setState(stateUsed)

	p.stats.Allocs++
	p.stats.InUseBlocks++
	p.stats.InUseBytes += 1 << order
	return p.start + Addr(off) + HeaderSize, nil
}

func (p *Pool) free(ptr Addr) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		return errors.Wrapf(ErrInvalidArgument, "pool %s is not created", p.name)
	}
	off, err := p.liveBlock(ptr)
	if err != nil {
		p.stats.Failures.Access++
		return err
	}

	size := p.block(off).size()
	order := sizeclass.FloorLog2(size)
	p.stats.Frees++
	p.stats.InUseBlocks--
	p.stats.InUseBytes -= uint64(size)

	for order < p.maxOrder {
		buddyOff := off ^ size
		if int(buddyOff)+linkedHeaderSize > len(p.arena) {
			break
		}
		// a buddy that has been split further carries a smaller size
		buddy := p.block(buddyOff)
		if !buddy.isFree() || buddy.size() != size {
			break
		}
		p.unlink(buddyOff, order)

		// the upper header is now interior to the merged block
		off &^= size
		p.block(off + size).setState(0)

		size <<= 1
		order++
		p.block(off).setSize(size)
		p.stats.Merges++
	}
	p.push(off, order)
	return nil
}

func (p *Pool) payload(ptr Addr) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		return nil, errors.Wrapf(ErrInvalidArgument, "pool %s is not created", p.name)
	}
	off, err := p.liveBlock(ptr)
	if err != nil {
		return nil, err
	}
	end := off + p.block(off).size()
	return p.arena[off+HeaderSize : end : end], nil
}

func (p *Pool) dump() (*Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		return nil, errors.Wrapf(ErrInvalidArgument, "pool %s is not created", p.name)
	}
	r := &Report{
		Pool:   p.id,
		Name:   p.name,
		Blocks: make([]BlockInfo, 0, p.stats.FreeBlocks),
	}
	// a well-formed pool never holds more blocks than minimum-size slots
	limit := len(p.arena) >> p.minOrder
	for order := p.minOrder; order <= p.maxOrder; order++ {
		for off := p.freeLists[order-p.minOrder]; off != nilLink && len(r.Blocks) < limit; off = p.block(off).next() {
			size := uint32(1) << order
			r.Blocks = append(r.Blocks, BlockInfo{
				Addr:     p.start + Addr(off),
				Order:    order,
				Size:     size,
				Capacity: size - HeaderSize,
			})
		}
	}
	return r, nil
}

func (p *Pool) snapshot() (Stats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		return Stats{}, errors.Wrapf(ErrInvalidArgument, "pool %s is not created", p.name)
	}
	return p.stats, nil
}

// orderFor returns the order of the smallest block holding size bytes of
// payload, or false if no block of the pool is large enough.
func (p *Pool) orderFor(size int) (uint, bool) {
	if size > len(p.arena) {
		return 0, false
	}
	need := sizeclass.AlignUp(uint32(size)+HeaderSize, Alignment)
	order := sizeclass.CeilLog2(need)
	if order < p.minOrder {
		order = p.minOrder
	}
	return order, order <= p.maxOrder
}

// liveBlock validates ptr and returns the offset of its block header.
func (p *Pool) liveBlock(ptr Addr) (uint32, error) {
	if ptr < p.start+HeaderSize || ptr >= p.end {
		return 0, errors.Wrapf(ErrAccessViolation,
			"pool %s: %#x is outside [%#x, %#x)", p.name, ptr, p.start+HeaderSize, p.end)
	}
	off := uint32(ptr - p.start - HeaderSize)
	if off&(1<<p.minOrder-1) != 0 {
		return 0, errors.Wrapf(ErrAccessViolation, "pool %s: %#x is not a block boundary", p.name, ptr)
	}
	b := p.block(off)
	if b.state() != stateUsed {
		return 0, errors.Wrapf(ErrAccessViolation, "pool %s: no live allocation at %#x", p.name, ptr)
	}
	size := b.size()
	if !sizeclass.IsPow2(size) || size < 1<<p.minOrder || size > 1<<p.maxOrder || off&(size-1) != 0 {
		return 0, errors.Wrapf(ErrAccessViolation, "pool %s: corrupted header at %#x (size %d)", p.name, ptr, size)
	}
	return off, nil
}

func (p *Pool) block(off uint32) block {
	return block{b: p.arena[off : off+linkedHeaderSize]}
}

// push marks the block at off free and makes it the head of its order's list.
func (p *Pool) push(off uint32, order uint) {
	i := order - p.minOrder
	head := p.freeLists[i]

	b := p.block(off)
	b.setState(stateFree)
	b.setNext(head)
	b.setPrev(nilLink)
	if head != nilLink {
		p.block(head).setPrev(off)
	}
	p.freeLists[i] = off

	p.stats.FreeBlocks++
	p.stats.FreeBytes += 1 << order
}

// unlink removes the free block at off from its order's list.
// The caller decides the block's next state.
func (p *Pool) unlink(off uint32, order uint) {
	b := p.block(off)
	next, prev := b.next(), b.prev()
	if prev != nilLink {
		p.block(prev).setNext(next)
	} else {
		p.freeLists[order-p.minOrder] = next
	}
	if next != nilLink {
		p.block(next).setPrev(prev)
	}

	p.stats.FreeBlocks--
	p.stats.FreeBytes -= 1 << order
}
