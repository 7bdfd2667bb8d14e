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
	"encoding/binary"
	"io"
	"sort"
	"strconv"

	"github.com/bytedance/gopkg/lang/mcache"
	"github.com/bytedance/gopkg/util/xxhash3"
)

// BlockInfo describes one free block.
type BlockInfo struct {
	Addr  Addr
	Order uint
	// Size is the whole block, header included.
	Size uint32
	// Capacity is what an allocation of this block leaves to the caller.
	Capacity uint32
}

// Report is the free-block listing of a pool, lowest order first.
type Report struct {
	Pool   PoolID
	Name   string
	Blocks []BlockInfo
}

// Count returns the number of free blocks.
func (r *Report) Count() int {
	return len(r.Blocks)
}

// FreeBytes returns the total size of the free blocks.
func (r *Report) FreeBytes() uint64 {
	var n uint64
	for _, b := range r.Blocks {
		n += uint64(b.Size)
	}
	return n
}

// Fingerprint hashes the free-block layout. It does not depend on the
// order of blocks inside a free list, so two reports of the same layout
// always have the same fingerprint.
func (r *Report) Fingerprint() uint64 {
	blocks := make([]BlockInfo, len(r.Blocks))
	copy(blocks, r.Blocks)
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Addr < blocks[j].Addr })

	buf := mcache.Malloc(len(blocks) * 8)
	defer mcache.Free(buf)
	for i, b := range blocks {
		binary.LittleEndian.PutUint32(buf[i*8:], uint32(b.Addr))
		binary.LittleEndian.PutUint32(buf[i*8+4:], uint32(b.Order))
	}
	return xxhash3.Hash(buf)
}

// WriteTo renders the report, one "address: size" line per block followed
// by the block count.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	buf := r.appendText(mcache.Malloc(0, 32*len(r.Blocks)+64))
	n, err := w.Write(buf)
	mcache.Free(buf)
	return int64(n), err
}

func (r *Report) String() string {
	buf := r.appendText(mcache.Malloc(0, 32*len(r.Blocks)+64))
	s := string(buf)
	mcache.Free(buf)
	return s
}

func (r *Report) appendText(buf []byte) []byte {
	for _, b := range r.Blocks {
		buf = append(buf, "0x"...)
		buf = strconv.AppendUint(buf, uint64(b.Addr), 16)
		buf = append(buf, ": 0x"...)
		buf = strconv.AppendUint(buf, uint64(b.Size), 16)
		buf = append(buf, '\n')
	}
	buf = strconv.AppendInt(buf, int64(len(r.Blocks)), 10)
	buf = append(buf, " free memory block(s) found\n"...)
	return buf
}
