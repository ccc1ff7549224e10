// Package memown binds allocations to the allocator that produced them.
//
// # Allocators
//
// An [Allocator] hands out raw, aligned byte blocks and takes them back.
// Several strategies coexist behind the one interface:
//
//   - [DefaultAllocator]: the Go heap, aligned by over-allocating.
//   - [SyncPoolAllocator]: power-of-two buckets recycled through sync.Pool.
//   - [CachingAllocator]: keeps recently freed blocks for same-shaped reuse.
//   - [TrackingAllocator]: records live blocks, rejects bad frees, reports leaks.
//   - github.com/hexon/memown/cmalloc: C heap via cgo.
//   - github.com/hexon/memown/mmapalloc: anonymous memory mappings.
//
// Allocation failure is reported by a nil block, never by a panic.
//
// # Handles
//
// [Owned] and [Array] own objects constructed in allocator memory. A handle
// remembers the allocator, so releasing it always returns the memory to the
// right place:
//
//	a := memown.NewTracking(nil)
//	h := memown.New(a, point{X: 1, Y: 2})
//	if !h.Valid() {
//	    return memown.ErrAllocFailed
//	}
//	defer h.Release()
//	h.Get().X++
//
// Handles must not be copied (go vet reports copies); ownership moves with
// Take, MoveFrom and Convert. Convert re-types a handle as an interface the
// object implements while destruction keeps going through the original type:
// [Destroyer] and [OnDestroy] hooks captured at construction run exactly once.
//
// Allocator memory is not scanned by the garbage collector, so only types
// without Go pointers can be placed in it; see [Storable].
//
// # Containers
//
// [Adapter] exposes an allocator as typed element storage for containers, see
// github.com/hexon/memown/container. Adapters compare equal only when they
// wrap the same allocator instance. github.com/hexon/memown/s2seek serves
// random reads from S2 streams out of blocks held in [Array] handles.
//
// # Thread Safety
//
// Handles, adapters and containers are not synchronized. Allocators document
// their own guarantees; every allocator in this module is safe for concurrent
// use.
//
// Allocators are never owned by the handles, adapters or containers built on
// them. The caller keeps each allocator alive for as long as anything built
// from it exists.
package memown
