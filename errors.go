package memown

import (
	"errors"
	"fmt"
)

var (
	// ErrAllocFailed indicates that the allocator returned no block.
	ErrAllocFailed = errors.New("memown: allocation failed")

	// ErrNilAllocator indicates a factory was called without an allocator.
	ErrNilAllocator = errors.New("memown: nil allocator")

	// ErrPointerType indicates a type that holds Go pointers. Allocator memory
	// is not scanned by the garbage collector, so such types cannot live there.
	ErrPointerType = errors.New("memown: type holds Go pointers")
)

// LeakError describes a block that was still live when a TrackingAllocator
// was checked.
type LeakError struct {
	Addr      uintptr
	Size      int
	Alignment int
}

func (e *LeakError) Error() string {
	return fmt.Sprintf("memown: leaked block %#x (%d bytes, align %d)", e.Addr, e.Size, e.Alignment)
}
