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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestManagerInit(t *testing.T) {
	m, err := NewManager(nil)
	require.NoError(t, err)
	require.Equal(t, 2, m.Pools())
	require.NoError(t, m.Init(Buddy))

	for _, tt := range []struct {
		id       PoolID
		start    Addr
		size     uint32
		maxOrder uint
	}{
		{IRAM1, 0x10000000, 32 << 10, 15},
		{IRAM2, 0x20000000, 4 << 10, 12},
	} {
		p, err := m.Pool(tt.id)
		require.NoError(t, err)
		assert.Equal(t, tt.start, p.Start())
		assert.Equal(t, tt.start+Addr(tt.size), p.End())
		assert.Equal(t, tt.size, p.Size())
		assert.Equal(t, tt.maxOrder, p.MaxOrder())
		assert.Equal(t, uint(DefaultMinOrder), p.MinOrder())

		r, err := m.Dump(tt.id)
		require.NoError(t, err)
		require.Equal(t, 1, r.Count())
		assert.Equal(t, tt.start, r.Blocks[0].Addr)
		assert.Equal(t, tt.size-HeaderSize, r.Blocks[0].Capacity)
	}
}

func TestManagerInitBadAlgorithm(t *testing.T) {
	m, err := NewManager(nil)
	require.NoError(t, err)
	err = m.Init(Algorithm(3))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, StatusInvalid, Code(err))
}

func TestCreateInvalid(t *testing.T) {
	m, err := NewManager(nil)
	require.NoError(t, err)

	tests := []struct {
		name  string
		algo  Algorithm
		start Addr
		end   Addr
	}{
		{"algorithm", Algorithm(1), 0x10000000, 0x10008000},
		{"unknown_range", Buddy, 0x30000000, 0x30001000},
		{"start_only", Buddy, 0x10000000, 0x10004000},
		{"end_only", Buddy, 0x10004000, 0x10008000},
		{"swapped", Buddy, 0x10008000, 0x10000000},
		{"mixed_regions", Buddy, 0x10000000, 0x20001000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Create(tt.algo, tt.start, tt.end)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}

	// nothing got created
	_, err = m.Dump(IRAM1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCreateReturnsMatchingPool(t *testing.T) {
	m, err := NewManager(nil)
	require.NoError(t, err)

	id, err := m.Create(Buddy, 0x20000000, 0x20001000)
	require.NoError(t, err)
	assert.Equal(t, IRAM2, id)

	id, err = m.Create(Buddy, 0x10000000, 0x10008000)
	require.NoError(t, err)
	assert.Equal(t, IRAM1, id)
}

func TestCreateAgainDiscardsAllocations(t *testing.T) {
	m := newTestManager(t)

	addr, err := m.Alloc(0, 100)
	require.NoError(t, err)
	_, err = m.Alloc(0, 500)
	require.NoError(t, err)

	_, err = m.Create(Buddy, testStart, testStart+testSize)
	require.NoError(t, err)

	r, err := m.Dump(0)
	require.NoError(t, err)
	require.Equal(t, 1, r.Count())
	assert.Equal(t, uint32(testSize), r.Blocks[0].Size)

	s, err := m.Stats(0)
	require.NoError(t, err)
	assert.Equal(t, Stats{FreeBlocks: 1, FreeBytes: testSize}, s)

	// the old block is gone
	assert.ErrorIs(t, m.Free(0, addr), ErrAccessViolation)
}

func TestUnknownPool(t *testing.T) {
	m := newTestManager(t)

	for _, id := range []PoolID{-1, 1, 100} {
		_, err := m.Alloc(id, 10)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.ErrorIs(t, m.Free(id, testStart+HeaderSize), ErrInvalidArgument)
		_, err = m.Dump(id)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		_, err = m.Payload(id, testStart+HeaderSize)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		_, err = m.Stats(id)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		_, err = m.Pool(id)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	}
}

func TestPoolsAreIndependent(t *testing.T) {
	m, err := NewManager(nil)
	require.NoError(t, err)
	require.NoError(t, m.Init(Buddy))

	addr, err := m.Alloc(IRAM2, 100)
	require.NoError(t, err)

	// an IRAM2 address is outside IRAM1
	assert.ErrorIs(t, m.Free(IRAM1, addr), ErrAccessViolation)

	r, err := m.Dump(IRAM1)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Count())

	require.NoError(t, m.Free(IRAM2, addr))
}

func TestConcurrentPools(t *testing.T) {
	m, err := NewManager(nil)
	require.NoError(t, err)
	require.NoError(t, m.Init(Buddy))

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		id := PoolID(w % 2)
		seed := int64(w)
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seed))
			var addrs []Addr
			for i := 0; i < 2000; i++ {
				if len(addrs) > 0 && rng.Intn(2) == 0 {
					idx := rng.Intn(len(addrs))
					if err := m.Free(id, addrs[idx]); err != nil {
						return err
					}
					addrs[idx] = addrs[len(addrs)-1]
					addrs = addrs[:len(addrs)-1]
					continue
				}
				addr, err := m.Alloc(id, rng.Intn(200))
				if err != nil {
					if Code(err) == StatusNoMem {
						continue
					}
					return err
				}
				addrs = append(addrs, addr)
			}
			for _, addr := range addrs {
				if err := m.Free(id, addr); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for _, id := range []PoolID{IRAM1, IRAM2} {
		r, err := m.Dump(id)
		require.NoError(t, err)
		assert.Equal(t, 1, r.Count(), "pool %d", id)
		checkInvariants(t, m, id)
	}
}

func TestAlgorithmString(t *testing.T) {
	assert.Equal(t, "buddy", Buddy.String())
	assert.Equal(t, "Algorithm(7)", Algorithm(7).String())
}
