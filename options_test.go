package memown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// partLog records embedded part teardown in call order. Destroy methods take
// no arguments and allocator memory cannot hold a pointer to a test-local
// recorder.
var partLog []int32

type closerA struct{ id int32 }

func (c *closerA) Destroy() { partLog = append(partLog, c.id) }

type closerB struct{ id int32 }

func (c *closerB) Destroy() { partLog = append(partLog, c.id) }

// twoParts embeds two parts whose Destroy methods collide, so *twoParts has
// no Destroy of its own.
type twoParts struct {
	closerA
	closerB
	v int32
}

func (p *twoParts) V1() int { return int(p.closerA.id) }
func (p *twoParts) V2() int { return int(p.closerB.id) }

type nestedParts struct {
	pad int64
	twoParts
}

type onePart struct {
	closerA
}

type ownsParts struct {
	twoParts
}

func (o *ownsParts) Destroy() { partLog = append(partLog, 0) }

func resetPartLog(t *testing.T) {
	t.Helper()
	partLog = nil
	t.Cleanup(func() { partLog = nil })
}

// TestRelease_EmbeddedDestroyers tears down every embedded part exactly once,
// last embedded first, whichever view owns the object.
func TestRelease_EmbeddedDestroyers(t *testing.T) {
	resetPartLog(t)
	a := NewTracking(nil)

	h := New(a, twoParts{closerA{1}, closerB{2}, 3})
	require.True(t, h.Valid())
	first, ok := Convert[interface{ V1() int }](&h)
	require.True(t, ok)
	assert.Equal(t, 1, first.Get().V1())
	assert.Empty(t, partLog)

	first.Release()
	assert.Equal(t, []int32{2, 1}, partLog)
	first.Release()
	assert.Equal(t, []int32{2, 1}, partLog, "released once")

	partLog = nil
	h = New(a, twoParts{closerA{1}, closerB{2}, 3})
	second, ok := Convert[interface{ V2() int }](&h)
	require.True(t, ok)
	assert.Equal(t, 2, second.Get().V2())
	second.Release()
	assert.Equal(t, []int32{2, 1}, partLog)

	assert.NoError(t, a.Check())
}

func TestRelease_NestedEmbeddedDestroyers(t *testing.T) {
	resetPartLog(t)

	h := New(Default, nestedParts{pad: 7, twoParts: twoParts{closerA{5}, closerB{6}, 0}})
	require.True(t, h.Valid())
	h.Release()
	assert.Equal(t, []int32{6, 5}, partLog)
}

// TestRelease_PromotedDestroyer calls a single promoted Destroy once.
func TestRelease_PromotedDestroyer(t *testing.T) {
	resetPartLog(t)

	h := New(Default, onePart{closerA{9}})
	h.Release()
	assert.Equal(t, []int32{9}, partLog)
}

// TestRelease_OwnDestroyerWins leaves the parts to the outer Destroy.
func TestRelease_OwnDestroyerWins(t *testing.T) {
	resetPartLog(t)

	h := New(Default, ownsParts{twoParts{closerA{1}, closerB{2}, 0}})
	h.Release()
	assert.Equal(t, []int32{0}, partLog)
}

func TestArray_EmbeddedDestroyers(t *testing.T) {
	resetPartLog(t)
	a := NewTracking(nil)

	arr, err := NewArrayFunc(a, 2, func(i int, p *twoParts) error {
		p.closerA.id = int32(10*i + 1)
		p.closerB.id = int32(10*i + 2)
		return nil
	})
	require.NoError(t, err)
	arr.Release()
	assert.Equal(t, []int32{2, 1, 12, 11}, partLog)
	assert.NoError(t, a.Check())
}
