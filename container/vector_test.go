package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexon/memown"
	debug "github.com/hexon/memown/internal/assert"
)

// TestVector_BasicOperations pushes, inspects and pops like a queue.
func TestVector_BasicOperations(t *testing.T) {
	a := memown.NewTracking(nil)
	v := NewVector(memown.NewAdapter[int](a))

	require.True(t, v.Push(1))
	require.True(t, v.Push(2))
	require.True(t, v.Push(3))
	assert.Equal(t, 3, v.Len())
	assert.Equal(t, []int{1, 2, 3}, v.Values())

	x, ok := v.PopFront()
	require.True(t, ok)
	assert.Equal(t, 1, x)
	assert.Equal(t, 2, v.Len())
	front, ok := v.Front()
	require.True(t, ok)
	assert.Equal(t, 2, front)

	v.Set(1, 30)
	assert.Equal(t, 30, v.At(1))
	last, ok := v.Pop()
	require.True(t, ok)
	assert.Equal(t, 30, last)

	v.Release()
	assert.NoError(t, a.Check())
}

// TestVector_Growth reallocates through the adapter and frees the old storage.
func TestVector_Growth(t *testing.T) {
	a := memown.NewTracking(nil)
	v := NewVector(memown.NewAdapter[int64](a))

	for i := range 100 {
		require.True(t, v.Push(int64(i)))
	}
	assert.GreaterOrEqual(t, v.Cap(), 100)
	assert.Equal(t, 1, a.Stats().LiveBlocks, "only the current storage is live")
	for i := range 100 {
		assert.Equal(t, int64(i), v.At(i))
	}

	v.Clear()
	assert.Equal(t, 0, v.Len())
	assert.Equal(t, 1, a.Stats().LiveBlocks, "Clear keeps the storage")

	v.Release()
	assert.NoError(t, a.Check())
	assert.Equal(t, 0, a.Stats().BadFrees)
}

// TestVector_AllocationFailure leaves the vector as it was.
func TestVector_AllocationFailure(t *testing.T) {
	a := memown.NewTracking(nil, memown.WithLimit(4*8))
	v := NewVector(memown.NewAdapter[int64](a))
	defer v.Release()

	for i := range 4 {
		require.True(t, v.Push(int64(i)))
	}
	assert.False(t, v.Push(4))
	assert.Equal(t, []int64{0, 1, 2, 3}, v.Values())
	assert.False(t, v.Reserve(100))
}

// TestVector_Empty pops nothing.
func TestVector_Empty(t *testing.T) {
	v := NewVector(memown.NewAdapter[int](memown.NewDefaultAllocator()))

	_, ok := v.Pop()
	assert.False(t, ok)
	_, ok = v.PopFront()
	assert.False(t, ok)
	_, ok = v.Front()
	assert.False(t, ok)
	assert.NotPanics(t, v.Release)
}

// TestVector_MoveFrom propagates the allocator with the storage.
func TestVector_MoveFrom(t *testing.T) {
	a1 := memown.NewTracking(nil)
	a2 := memown.NewTracking(nil)
	dst := NewVector(memown.NewAdapter[int](a1))
	src := NewVector(memown.NewAdapter[int](a2))
	require.True(t, dst.Push(1))
	require.True(t, src.Push(2))

	dst.MoveFrom(src)
	assert.Equal(t, []int{2}, dst.Values())
	assert.Equal(t, 0, src.Len())
	assert.True(t, dst.Adapter().Equal(memown.NewAdapter[int](a2)))
	assert.NoError(t, a1.Check(), "the old storage went back to its own allocator")

	// Growing after the move allocates from the propagated allocator.
	for i := range 10 {
		require.True(t, dst.Push(i))
	}
	assert.Equal(t, 0, a1.Stats().LiveBlocks)
	dst.Release()
	assert.NoError(t, a2.Check())
}

// TestVector_Swap requires equal adapters.
func TestVector_Swap(t *testing.T) {
	a := memown.NewTracking(nil)
	x := NewVector(memown.NewAdapter[int](a))
	y := NewVector(memown.NewAdapter[int](a))
	defer x.Release()
	defer y.Release()
	require.True(t, x.Push(1))
	require.True(t, y.Push(2))
	require.True(t, y.Push(3))

	x.Swap(y)
	assert.Equal(t, []int{2, 3}, x.Values())
	assert.Equal(t, []int{1}, y.Values())

	if debug.Enabled {
		z := NewVector(memown.NewAdapter[int](memown.NewDefaultAllocator()))
		assert.Panics(t, func() { x.Swap(z) })
	}
}

// TestVector_Clone copies into another allocator.
func TestVector_Clone(t *testing.T) {
	a1 := memown.NewTracking(nil)
	a2 := memown.NewTracking(nil)
	v := NewVector(memown.NewAdapter[int32](a1))
	for i := range 5 {
		require.True(t, v.Push(int32(i)))
	}

	c, ok := v.Clone(memown.NewAdapter[int32](a2))
	require.True(t, ok)
	assert.Equal(t, v.Values(), c.Values())
	assert.Equal(t, 1, a2.Stats().LiveBlocks)

	v.Release()
	c.Release()
	assert.NoError(t, a1.Check())
	assert.NoError(t, a2.Check())
}
