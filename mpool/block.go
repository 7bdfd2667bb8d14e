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

import "encoding/binary"

// Block header layout, little-endian, at the block's offset in the arena:
//
//	[0:4]   size, always a power of two
//	[4:8]   state, stateFree or stateUsed
//	[8:12]  next free block (free blocks only)
//	[12:16] prev free block (free blocks only)
//
// Bytes from HeaderSize on belong to the caller while the block is in use,
// so the links are only meaningful while the block sits in a free list.
const (
	stateFree uint32 = 0xF4EEB10C
	stateUsed uint32 = 0xA110CA7E

	// nilLink terminates a free list.
	nilLink uint32 = 0xFFFFFFFF

	nextOff = HeaderSize
	prevOff = HeaderSize + 4

	// linkedHeaderSize is the footprint of a free block's header plus links.
	linkedHeaderSize = HeaderSize + 8
)

// block is a view of one block header overlaid on the pool arena.
// Accessors slice the arena, so an offset past its end panics instead of
// reading foreign memory.
type block struct {
	b []byte
}

func (b block) size() uint32      { return binary.LittleEndian.Uint32(b.b[0:4]) }
func (b block) setSize(n uint32)  { binary.LittleEndian.PutUint32(b.b[0:4], n) }
func (b block) state() uint32     { return binary.LittleEndian.Uint32(b.b[4:8]) }
func (b block) setState(s uint32) { binary.LittleEndian.PutUint32(b.b[4:8], s) }
func (b block) isFree() bool      { return b.state() == stateFree }
func (b block) next() uint32      { return binary.LittleEndian.Uint32(b.b[nextOff : nextOff+4]) }
func (b block) setNext(o uint32)  { binary.LittleEndian.PutUint32(b.b[nextOff:nextOff+4], o) }
func (b block) prev() uint32      { return binary.LittleEndian.Uint32(b.b[prevOff : prevOff+4]) }
func (b block) setPrev(o uint32)  { binary.LittleEndian.PutUint32(b.b[prevOff:prevOff+4], o) }
