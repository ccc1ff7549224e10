//go:build unix

package mmapalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexon/memown"
	"github.com/hexon/memown/container"
)

func TestAllocator_PageAligned(t *testing.T) {
	a := New()

	b := a.Alloc(100, 64)
	require.NotNil(t, b)
	assert.Len(t, b, 100)
	assert.True(t, memown.Aligned(b, a.PageSize()))
	assert.Equal(t, a.PageSize(), a.Mapped())
	for i := range b {
		b[i] = byte(i)
	}

	big := a.Alloc(3*a.PageSize()+1, 8)
	require.NotNil(t, big)
	assert.Equal(t, 5*a.PageSize(), a.Mapped())

	a.Free(b)
	a.Free(big)
	assert.Equal(t, 0, a.Mapped())
}

func TestAllocator_Rejects(t *testing.T) {
	a := New()
	assert.Nil(t, a.Alloc(8, 2*a.PageSize()), "alignment above the page size")
	assert.Nil(t, a.Alloc(8, 3))
	assert.Nil(t, a.Alloc(-1, 8))
	assert.Equal(t, 0, a.Mapped())
}

func TestAllocator_FreeByStartAddress(t *testing.T) {
	a := New()

	b := a.Alloc(64, 8)
	require.NotNil(t, b)
	a.Free(b[:1:1])
	assert.Equal(t, 0, a.Mapped())

	// Unknown and repeated frees are ignored.
	a.Free(b)
	a.Free(make([]byte, 8))
	a.Free(nil)
	assert.Equal(t, 0, a.Mapped())
}

// TestAllocator_BacksVector runs a container on mapped memory.
func TestAllocator_BacksVector(t *testing.T) {
	a := New()
	v := container.NewVector(memown.NewAdapter[uint32](a))

	for i := range 10000 {
		require.True(t, v.Push(uint32(i)))
	}
	assert.Equal(t, uint32(9999), v.At(9999))
	v.Release()
	assert.Equal(t, 0, a.Mapped())
}
