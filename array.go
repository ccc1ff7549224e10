package memown

import (
	"fmt"
	"math"
	"reflect"
	"unsafe"

	"github.com/hexon/memown/internal/assert"
)

// Array exclusively owns a contiguous run of T living in one block obtained
// from an Allocator. Like Owned it must not be copied, and the allocator must
// outlive it.
type Array[T any] struct {
	noCopy noCopy

	alloc   Allocator
	elems   []T
	block   []byte
	destroy func(*T)
}

// NewArray places n zero-valued elements in memory from a. The handle is
// empty if n <= 0, if a is nil, if T holds Go pointers, or if the allocation
// fails.
func NewArray[T any](a Allocator, n int, opts ...Option[T]) Array[T] {
	elems, block, err := placeArray[T](a, n)
	if err != nil || elems == nil {
		return Array[T]{}
	}
	return Array[T]{alloc: a, elems: elems, block: block, destroy: destroyer(opts)}
}

// NewArrayFunc places n zero-valued elements in memory from a and runs ctor on
// each in index order. If ctor fails for element i, elements i-1 down to 0 are
// destroyed, the block is freed, and the error is returned.
func NewArrayFunc[T any](a Allocator, n int, ctor func(i int, p *T) error, opts ...Option[T]) (Array[T], error) {
	elems, block, err := placeArray[T](a, n)
	if err != nil || elems == nil {
		return Array[T]{}, err
	}
	destroy := destroyer(opts)
	if ctor != nil {
		for i := range elems {
			if err := ctor(i, &elems[i]); err != nil {
				for j := i - 1; j >= 0; j-- {
					destroy(&elems[j])
				}
				a.Free(block)
				return Array[T]{}, fmt.Errorf("memown: constructing %v element %d: %w", reflect.TypeFor[T](), i, err)
			}
		}
	}
	return Array[T]{alloc: a, elems: elems, block: block, destroy: destroy}, nil
}

func placeArray[T any](a Allocator, n int) ([]T, []byte, error) {
	if a == nil {
		return nil, nil, ErrNilAllocator
	}
	if n <= 0 {
		return nil, nil, nil
	}
	l := layoutOf[T]()
	if !l.pointerFree {
		rejectLayout(reflect.TypeFor[T]())
		return nil, nil, ErrPointerType
	}
	if l.size != 0 && n > math.MaxInt/int(l.size) {
		return nil, nil, ErrAllocFailed
	}
	block := a.Alloc(n*int(l.size), int(l.align))
	if block == nil {
		return nil, nil, ErrAllocFailed
	}
	assert.Assert(len(block) >= n*int(l.size) && Aligned(block, int(l.align)),
		"allocator returned a %d byte block at %#x for %d elements of %d bytes, %d aligned", len(block), blockAddr(block), n, l.size, l.align)
	elems := unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(block))), n)
	clear(elems)
	return elems, block, nil
}

// Len returns the number of elements, 0 for an empty handle.
func (a *Array[T]) Len() int {
	return len(a.elems)
}

// At returns a pointer to element i. i must be in [0, Len()).
func (a *Array[T]) At(i int) *T {
	assert.Assert(i >= 0 && i < len(a.elems), "index %d out of range [0, %d)", i, len(a.elems))
	return &a.elems[i]
}

// Slice returns the elements. The slice is valid until the handle releases them.
func (a *Array[T]) Slice() []T {
	return a.elems
}

// Valid reports whether the handle owns elements.
func (a *Array[T]) Valid() bool {
	return a.block != nil
}

// Allocator returns the allocator the elements came from, or nil.
func (a *Array[T]) Allocator() Allocator {
	return a.alloc
}

// Take moves ownership into the returned handle and leaves a empty.
func (a *Array[T]) Take() Array[T] {
	alloc, elems, block, destroy := a.alloc, a.elems, a.block, a.destroy
	a.clear()
	return Array[T]{alloc: alloc, elems: elems, block: block, destroy: destroy}
}

// MoveFrom releases whatever a owns and takes ownership of src's elements.
func (a *Array[T]) MoveFrom(src *Array[T]) {
	if a == src {
		return
	}
	tmp := src.Take()
	a.Swap(&tmp)
	tmp.Release()
}

// Swap exchanges the contents of two handles, counts included.
func (a *Array[T]) Swap(other *Array[T]) {
	a.alloc, other.alloc = other.alloc, a.alloc
	a.elems, other.elems = other.elems, a.elems
	a.block, other.block = other.block, a.block
	a.destroy, other.destroy = other.destroy, a.destroy
}

// Release destroys every element in index order, then returns the block to
// the allocator. It is a no-op on an empty handle.
func (a *Array[T]) Release() {
	if a.block == nil {
		return
	}
	for i := range a.elems {
		a.destroy(&a.elems[i])
	}
	a.alloc.Free(a.block)
	a.clear()
}

func (a *Array[T]) clear() {
	a.alloc = nil
	a.elems = nil
	a.block = nil
	a.destroy = nil
}
