package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexon/memown"
)

type point struct {
	X, Y int32
}

// TestMap_PutGetDelete covers the basic associative operations.
func TestMap_PutGetDelete(t *testing.T) {
	a := memown.NewTracking(nil)
	m := NewMap[int, point](memown.NewAdapter[int](a))

	require.True(t, m.Put(1, point{1, 1}))
	require.True(t, m.Put(2, point{2, 2}))
	require.True(t, m.Put(1, point{10, 10}))
	assert.Equal(t, 2, m.Len())

	p, ok := m.Get(1)
	require.True(t, ok)
	assert.Equal(t, point{10, 10}, p)

	assert.True(t, m.Delete(2))
	assert.False(t, m.Delete(2))
	_, ok = m.Get(2)
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())

	assert.Equal(t, 3, a.Stats().LiveBlocks, "keys, values and slot states")
	m.Release()
	assert.NoError(t, a.Check())
}

// TestMap_Growth keeps every entry across rehashes and tombstones.
func TestMap_Growth(t *testing.T) {
	a := memown.NewTracking(nil)
	m := NewMap[uint64, uint64](memown.NewAdapter[uint64](a))
	defer m.Release()

	for i := uint64(0); i < 1000; i++ {
		require.True(t, m.Put(i, i*i))
	}
	for i := uint64(0); i < 1000; i += 2 {
		require.True(t, m.Delete(i))
	}
	for i := uint64(1000); i < 1500; i++ {
		require.True(t, m.Put(i, i*i))
	}
	assert.Equal(t, 1000, m.Len())

	for i := uint64(0); i < 1500; i++ {
		v, ok := m.Get(i)
		if i < 1000 && i%2 == 0 {
			assert.False(t, ok, "key %d was deleted", i)
			continue
		}
		require.True(t, ok, "key %d", i)
		assert.Equal(t, i*i, v)
	}
	assert.Equal(t, 3, a.Stats().LiveBlocks)
	assert.Equal(t, 0, a.Stats().BadFrees)
}

// TestMap_Range visits every entry once and stops early on request.
func TestMap_Range(t *testing.T) {
	m := NewMap[int16, bool](memown.NewAdapter[int16](memown.NewDefaultAllocator()))
	defer m.Release()
	for i := int16(0); i < 20; i++ {
		require.True(t, m.Put(i, i%2 == 0))
	}

	seen := map[int16]bool{}
	m.Range(func(k int16, v bool) bool {
		seen[k] = v
		return true
	})
	assert.Len(t, seen, 20)
	assert.True(t, seen[4])
	assert.False(t, seen[5])

	calls := 0
	m.Range(func(int16, bool) bool {
		calls++
		return false
	})
	assert.Equal(t, 1, calls)
}

// TestMap_GrowthFailure leaves the map usable and unchanged.
func TestMap_GrowthFailure(t *testing.T) {
	// Room for the first table of 8 slots: 64 + 64 + 8 bytes.
	a := memown.NewTracking(nil, memown.WithLimit(136))
	m := NewMap[int64, int64](memown.NewAdapter[int64](a))
	defer m.Release()

	inserted := 0
	for i := int64(0); i < 100; i++ {
		if !m.Put(i, i) {
			break
		}
		inserted++
	}
	require.Equal(t, 6, inserted)
	assert.Equal(t, inserted, m.Len())
	for i := int64(0); i < int64(inserted); i++ {
		v, ok := m.Get(i)
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	assert.Equal(t, 3, a.Stats().LiveBlocks, "partial allocations of the failed growth were returned")
}

// TestMap_MoveFrom takes over storage and allocator.
func TestMap_MoveFrom(t *testing.T) {
	a1 := memown.NewTracking(nil)
	a2 := memown.NewTracking(nil)
	dst := NewMap[int, int](memown.NewAdapter[int](a1))
	src := NewMap[int, int](memown.NewAdapter[int](a2))
	require.True(t, dst.Put(1, 1))
	require.True(t, src.Put(2, 2))

	dst.MoveFrom(src)
	assert.NoError(t, a1.Check())
	assert.Equal(t, 0, src.Len())
	v, ok := dst.Get(2)
	require.True(t, ok)
	assert.Equal(t, 2, v)
	_, ok = dst.Get(1)
	assert.False(t, ok)

	dst.Release()
	assert.NoError(t, a2.Check())
}
