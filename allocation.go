package memown

import (
	"math"
	"math/bits"
	"reflect"
	"sync"
	"unsafe"
)

// Allocator hands out raw memory blocks.
//
// Alloc returns a block of exactly size bytes whose first byte sits at an
// address that is a multiple of alignment, or nil if the request cannot be
// satisfied. Alignment must be a power of two. Blocks carry no type
// information and their contents are undefined.
//
// Free returns a block to the allocator that produced it. Blocks are
// identified by their start address, so the slice passed to Free may be
// shorter than the one Alloc returned. Free(nil) is a no-op. Freeing a block
// twice, or freeing it on a different allocator, is a caller error.
type Allocator interface {
	Alloc(size, alignment int) []byte
	Free(b []byte)
}

// Default is a process-wide DefaultAllocator.
var Default Allocator = NewDefaultAllocator()

// DefaultAllocator allocates from the Go heap and leaves reclamation to the
// garbage collector. It keeps no bookkeeping and is safe for concurrent use.
type DefaultAllocator struct {
	// Distinct instances need distinct addresses for SameAllocator.
	_ byte
}

func NewDefaultAllocator() *DefaultAllocator { return &DefaultAllocator{} }

func (*DefaultAllocator) Alloc(size, alignment int) []byte {
	if !validRequest(size, alignment) {
		return nil
	}
	// The extra alignment bytes leave room to shift and guarantee that even
	// a zero-size block has an address of its own.
	return alignBlock(makeBlock(size+alignment), size, alignment)
}

func (*DefaultAllocator) Free(b []byte) {
}

const (
	SyncPoolAllocatorMinSize       = (1 << (SyncPoolAllocatorSkipBuckets - 1)) + 1
	SyncPoolAllocatorSkipBuckets   = 6
	SyncPoolAllocatorLargestBucket = 33
)

// SyncPoolAllocator recycles freed blocks through a sync.Pool per power-of-two
// size class. Every slab kept in bucket c has a capacity of at least 1<<c.
type SyncPoolAllocator struct {
	Pools [SyncPoolAllocatorLargestBucket - SyncPoolAllocatorSkipBuckets]sync.Pool
}

func (a *SyncPoolAllocator) Alloc(size, alignment int) []byte {
	if !validRequest(size, alignment) {
		return nil
	}
	need := size + alignment
	if need < SyncPoolAllocatorMinSize {
		// Too small for the overhead of using a pool.
		return alignBlock(makeBlock(need), size, alignment)
	}
	class := bucketForSize(need)
	if class >= SyncPoolAllocatorLargestBucket {
		// Too big for the predeclared classes.
		return alignBlock(makeBlock(need), size, alignment)
	}
	if ret := a.Pools[class-SyncPoolAllocatorSkipBuckets].Get(); ret != nil {
		slab := ret.([]byte)
		return alignBlock(slab[:cap(slab)], size, alignment)
	}
	return alignBlock(makeBlock(1<<class), size, alignment)
}

func (a *SyncPoolAllocator) Free(b []byte) {
	if b == nil || cap(b) < SyncPoolAllocatorMinSize {
		return
	}
	// Round down: an aligned block lost its head padding.
	class := 63 - bits.LeadingZeros64(uint64(cap(b)))
	if class < SyncPoolAllocatorSkipBuckets || class >= SyncPoolAllocatorLargestBucket {
		return
	}
	a.Pools[class-SyncPoolAllocatorSkipBuckets].Put(b[:0])
}

func bucketForSize(n int) int {
	return 64 - bits.LeadingZeros64(uint64(n)-1)
}

// SameAllocator reports whether a and b are the same allocator instance.
// Pointer-shaped allocators compare by address; comparable value allocators
// (such as a stateless struct) compare by value.
func SameAllocator(a, b Allocator) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Chan:
		return va.Pointer() == vb.Pointer()
	}
	return va.Comparable() && va.Equal(vb)
}

func validAlignment(alignment int) bool {
	return alignment > 0 && alignment&(alignment-1) == 0
}

func validRequest(size, alignment int) bool {
	return size >= 0 && validAlignment(alignment) && size <= math.MaxInt-alignment
}

// makeBlock returns nil when the runtime refuses the length. Real memory
// exhaustion is fatal in Go and cannot be reported.
func makeBlock(n int) (b []byte) {
	defer func() {
		if recover() != nil {
			b = nil
		}
	}()
	return make([]byte, n)
}

// alignBlock carves a size byte block starting at an alignment boundary out
// of buf. buf must be at least size+alignment-1 bytes.
func alignBlock(buf []byte, size, alignment int) []byte {
	if buf == nil {
		return nil
	}
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	shift := int((uintptr(alignment) - addr%uintptr(alignment)) % uintptr(alignment))
	return buf[shift : shift+size]
}

func blockAddr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

// Aligned reports whether b starts at a multiple of alignment.
func Aligned(b []byte, alignment int) bool {
	return validAlignment(alignment) && blockAddr(b)%uintptr(alignment) == 0
}

var (
	_ Allocator = (*DefaultAllocator)(nil)
	_ Allocator = (*SyncPoolAllocator)(nil)
)
