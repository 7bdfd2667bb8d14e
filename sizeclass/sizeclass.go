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

// Package sizeclass maps byte counts to power-of-two orders.
package sizeclass

// log2Table[i] is floor(log2(i)) for a single byte, log2Table[0] is 0.
var log2Table [256]uint8

func init() {
	for i := 2; i < len(log2Table); i++ {
		log2Table[i] = log2Table[i>>1] + 1
	}
}

// FloorLog2 returns the index of the highest set bit of n.
// The result for n == 0 is 0; callers never ask for it.
func FloorLog2(n uint32) uint {
	if hi := n >> 16; hi != 0 {
		if t := hi >> 8; t != 0 {
			return 24 + uint(log2Table[t])
		}
		return 16 + uint(log2Table[hi])
	}
	if t := n >> 8; t != 0 {
		return 8 + uint(log2Table[t])
	}
	return uint(log2Table[n])
}

// CeilLog2 returns the smallest k such that 1<<k >= n.
// CeilLog2(0) and CeilLog2(1) are both 0.
func CeilLog2(n uint32) uint {
	if n <= 1 {
		return 0
	}
	if IsPow2(n) {
		return FloorLog2(n)
	}
	return FloorLog2(n) + 1
}

// IsPow2 reports whether n is an exact power of two.
func IsPow2(n uint32) bool {
	return n != 0 && n&(n-1) == 0
}

// AlignUp rounds n up to a multiple of align, which must be a power of two.
func AlignUp(n, align uint32) uint32 {
	return (n + align - 1) &^ (align - 1)
}
