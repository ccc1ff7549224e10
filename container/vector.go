package container

import (
	"github.com/hexon/memown"
	"github.com/hexon/memown/internal/assert"
)

const minCapacity = 4

// Vector is a growable sequence whose storage comes from an adapter. Methods
// that need memory report allocation failure by returning false and leave
// the vector unchanged.
type Vector[T any] struct {
	alloc memown.Adapter[T]
	buf   []T // len(buf) is the capacity
	n     int
}

func NewVector[T any](a memown.Adapter[T]) *Vector[T] {
	return &Vector[T]{alloc: a}
}

// Adapter returns the adapter the storage comes from.
func (v *Vector[T]) Adapter() memown.Adapter[T] {
	return v.alloc
}

func (v *Vector[T]) Len() int { return v.n }

func (v *Vector[T]) Cap() int { return len(v.buf) }

// Reserve makes room for at least n elements.
func (v *Vector[T]) Reserve(n int) bool {
	if n <= len(v.buf) {
		return true
	}
	buf := v.alloc.AllocateElements(n)
	if buf == nil {
		return false
	}
	copy(buf, v.buf[:v.n])
	v.alloc.DeallocateElements(v.buf, len(v.buf))
	v.buf = buf
	return true
}

func (v *Vector[T]) Push(x T) bool {
	if v.n == len(v.buf) && !v.Reserve(max(minCapacity, 2*len(v.buf))) {
		return false
	}
	v.buf[v.n] = x
	v.n++
	return true
}

func (v *Vector[T]) Pop() (T, bool) {
	var zero T
	if v.n == 0 {
		return zero, false
	}
	v.n--
	x := v.buf[v.n]
	v.buf[v.n] = zero
	return x, true
}

// PopFront removes the first element, shifting the rest down.
func (v *Vector[T]) PopFront() (T, bool) {
	var zero T
	if v.n == 0 {
		return zero, false
	}
	x := v.buf[0]
	copy(v.buf, v.buf[1:v.n])
	v.n--
	v.buf[v.n] = zero
	return x, true
}

func (v *Vector[T]) Front() (T, bool) {
	if v.n == 0 {
		var zero T
		return zero, false
	}
	return v.buf[0], true
}

// At returns element i, which must be in [0, Len()).
func (v *Vector[T]) At(i int) T {
	assert.Assert(i >= 0 && i < v.n, "index %d out of range [0, %d)", i, v.n)
	return v.buf[:v.n][i]
}

func (v *Vector[T]) Set(i int, x T) {
	assert.Assert(i >= 0 && i < v.n, "index %d out of range [0, %d)", i, v.n)
	v.buf[:v.n][i] = x
}

// Values returns the elements. The slice aliases the storage and is valid
// until the next call that changes the vector.
func (v *Vector[T]) Values() []T {
	return v.buf[:v.n]
}

// Clear drops the elements and keeps the storage.
func (v *Vector[T]) Clear() {
	clear(v.buf[:v.n])
	v.n = 0
}

// Release drops the elements and returns the storage.
func (v *Vector[T]) Release() {
	v.alloc.DeallocateElements(v.buf, len(v.buf))
	v.buf = nil
	v.n = 0
}

// MoveFrom releases v's storage and takes over src's. The adapter propagates
// with the storage, so v allocates from src's allocator afterwards. src is
// left empty.
func (v *Vector[T]) MoveFrom(src *Vector[T]) {
	if v == src {
		return
	}
	v.Release()
	v.buf, v.n, v.alloc = src.buf, src.n, src.alloc
	src.buf, src.n = nil, 0
}

// Swap exchanges contents with other. Both vectors must allocate from the
// same allocator, as storage cannot change hands otherwise.
func (v *Vector[T]) Swap(other *Vector[T]) {
	assert.Assert(v.alloc.AlwaysEqual() || v.alloc.Equal(other.alloc), "swapping vectors with different allocators")
	v.buf, other.buf = other.buf, v.buf
	v.n, other.n = other.n, v.n
}

// Clone copies v into a new vector allocating from a.
func (v *Vector[T]) Clone(a memown.Adapter[T]) (*Vector[T], bool) {
	c := NewVector(a)
	if !c.Reserve(v.n) {
		return nil, false
	}
	c.n = copy(c.buf, v.buf[:v.n])
	return c, true
}
