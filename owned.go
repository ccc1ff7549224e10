package memown

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/hexon/memown/internal/assert"
)

// noCopy may be embedded into structs which must not be copied after first
// use. See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Owned exclusively owns one object living in a block obtained from an
// Allocator. P is the static view of the object: *T for the type it was
// constructed as, or an interface *T implements after Convert.
//
// The zero value is an empty handle. An Owned must not be copied; move it
// with Take, MoveFrom or Convert. Release destroys the object through its
// construction-time type and returns the block to the same allocator. The
// allocator must outlive the handle.
type Owned[P any] struct {
	noCopy noCopy

	alloc   Allocator
	view    P
	block   []byte
	destroy func()
}

// New places a copy of v in memory from a and returns a handle owning it. The
// handle is empty if a is nil, if T holds Go pointers, or if the allocation
// fails; nothing is constructed in that case.
func New[T any](a Allocator, v T, opts ...Option[T]) Owned[*T] {
	p, block, err := place[T](a)
	if err != nil {
		return Owned[*T]{}
	}
	*p = v
	return Owned[*T]{alloc: a, view: p, block: block, destroy: bindDestroy(p, opts)}
}

// NewFunc places a zeroed T in memory from a and runs ctor on it. If ctor
// fails the block is freed and its error returned.
func NewFunc[T any](a Allocator, ctor func(*T) error, opts ...Option[T]) (Owned[*T], error) {
	p, block, err := place[T](a)
	if err != nil {
		return Owned[*T]{}, err
	}
	var zero T
	*p = zero
	if ctor != nil {
		if err := ctor(p); err != nil {
			a.Free(block)
			return Owned[*T]{}, fmt.Errorf("memown: constructing %v: %w", reflect.TypeFor[T](), err)
		}
	}
	return Owned[*T]{alloc: a, view: p, block: block, destroy: bindDestroy(p, opts)}, nil
}

func place[T any](a Allocator) (*T, []byte, error) {
	if a == nil {
		return nil, nil, ErrNilAllocator
	}
	l := layoutOf[T]()
	if !l.pointerFree {
		rejectLayout(reflect.TypeFor[T]())
		return nil, nil, ErrPointerType
	}
	block := a.Alloc(int(l.size), int(l.align))
	if block == nil {
		return nil, nil, ErrAllocFailed
	}
	assert.Assert(len(block) >= int(l.size) && Aligned(block, int(l.align)),
		"allocator returned a %d byte block at %#x for a %d byte, %d aligned request", len(block), blockAddr(block), l.size, l.align)
	return (*T)(unsafe.Pointer(unsafe.SliceData(block))), block, nil
}

func bindDestroy[T any](p *T, opts []Option[T]) func() {
	destroy := destroyer(opts)
	return func() { destroy(p) }
}

// Get returns the owned object, or the zero P if the handle is empty.
func (o *Owned[P]) Get() P {
	return o.view
}

// Deref returns the owned object. Calling it on an empty handle is a
// precondition violation.
func (o *Owned[P]) Deref() P {
	assert.Assert(o.block != nil, "dereferencing an empty handle")
	return o.view
}

// Valid reports whether the handle owns an object.
func (o *Owned[P]) Valid() bool {
	return o.block != nil
}

// Allocator returns the allocator the object came from, or nil.
func (o *Owned[P]) Allocator() Allocator {
	return o.alloc
}

// Take moves ownership into the returned handle and leaves o empty.
func (o *Owned[P]) Take() Owned[P] {
	alloc, view, block, destroy := o.alloc, o.view, o.block, o.destroy
	o.clear()
	return Owned[P]{alloc: alloc, view: view, block: block, destroy: destroy}
}

// MoveFrom releases whatever o owns and takes ownership of src's object.
// src is left empty.
func (o *Owned[P]) MoveFrom(src *Owned[P]) {
	if o == src {
		return
	}
	tmp := src.Take()
	o.Swap(&tmp)
	tmp.Release()
}

// Swap exchanges the contents of two handles.
func (o *Owned[P]) Swap(other *Owned[P]) {
	o.alloc, other.alloc = other.alloc, o.alloc
	o.view, other.view = other.view, o.view
	o.block, other.block = other.block, o.block
	o.destroy, other.destroy = other.destroy, o.destroy
}

// Release destroys the owned object and returns its block to the allocator.
// It is a no-op on an empty handle.
func (o *Owned[P]) Release() {
	if o.block == nil {
		return
	}
	o.destroy()
	o.alloc.Free(o.block)
	o.clear()
}

func (o *Owned[P]) clear() {
	var zero P
	o.alloc = nil
	o.view = zero
	o.block = nil
	o.destroy = nil
}

// Convert moves ownership from src into a handle viewing the object as To,
// typically an interface the constructed type implements. Destruction still
// goes through the construction-time type. If the object is not a To, src is
// left untouched and false is returned. Converting an empty handle yields an empty
// handle.
func Convert[To, From any](src *Owned[From]) (Owned[To], bool) {
	if src.block == nil {
		return Owned[To]{}, true
	}
	view, ok := any(src.view).(To)
	if !ok {
		return Owned[To]{}, false
	}
	alloc, block, destroy := src.alloc, src.block, src.destroy
	src.clear()
	return Owned[To]{alloc: alloc, view: view, block: block, destroy: destroy}, true
}
