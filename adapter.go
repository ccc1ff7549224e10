package memown

import (
	"math"
	"reflect"
	"unsafe"

	"github.com/hexon/memown/internal/assert"
)

// Adapter exposes an Allocator in the shape containers need: typed element
// storage with per-element-type allocate and deallocate. It holds a
// non-owning reference; the allocator must outlive every adapter and every
// container built on it.
//
// Two adapters are equal only if they wrap the same allocator instance, so a
// container may hand storage to another container only when their adapters
// compare equal. Allocators held by pointer compare by address, so two
// identical DefaultAllocators are different allocators. Allocators passed by
// value, such as the stateless cmalloc.Allocator{}, compare by value; see
// SameAllocator.
type Adapter[T any] struct {
	alloc Allocator
}

func NewAdapter[T any](a Allocator) Adapter[T] {
	assert.Assert(a != nil, "adapter needs an allocator")
	return Adapter[T]{alloc: a}
}

// Rebind returns an adapter for element type U over the same allocator.
func Rebind[U, T any](a Adapter[T]) Adapter[U] {
	return Adapter[U]{alloc: a.alloc}
}

// AllocateElements returns uninitialized room for n elements, or nil if the
// allocator refused. For n <= 0 it returns nil without calling the allocator.
func (a Adapter[T]) AllocateElements(n int) []T {
	if n <= 0 {
		return nil
	}
	l := layoutOf[T]()
	if !l.pointerFree {
		rejectLayout(reflect.TypeFor[T]())
		return nil
	}
	if l.size != 0 && n > math.MaxInt/int(l.size) {
		return nil
	}
	block := a.alloc.Alloc(n*int(l.size), int(l.align))
	if block == nil {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(block))), n)
}

// DeallocateElements returns storage obtained from AllocateElements with the
// same n. A nil p is a no-op.
func (a Adapter[T]) DeallocateElements(p []T, n int) {
	if p == nil {
		return
	}
	assert.Assert(n >= 0 && n <= cap(p), "deallocating %d elements from storage of %d", n, cap(p))
	size := int(layoutOf[T]().size)
	a.alloc.Free(unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(p))), n*size))
}

// Allocator returns the wrapped allocator.
func (a Adapter[T]) Allocator() Allocator {
	return a.alloc
}

// Equal reports whether both adapters wrap the same allocator instance.
func (a Adapter[T]) Equal(other Adapter[T]) bool {
	return SameAllocator(a.alloc, other.alloc)
}

// PropagateOnMove reports that moving a container moves its allocator binding
// along with the storage.
func (Adapter[T]) PropagateOnMove() bool { return true }

// AlwaysEqual reports that distinct adapters are not interchangeable; they
// have to be compared before storage is shared.
func (Adapter[T]) AlwaysEqual() bool { return false }
