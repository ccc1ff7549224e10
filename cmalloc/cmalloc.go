//go:build cgo

package cmalloc

// #include <stdlib.h>
import "C"

import (
	"unsafe"

	"github.com/hexon/memown"
)

const minAlignment = int(unsafe.Sizeof(uintptr(0)))

// Allocator is an allocator that uses posix_memalign(3) and free(3). It is
// stateless, so all Allocator values are the same allocator: a block from one
// may be freed through another.
type Allocator struct{}

func (Allocator) Alloc(size, alignment int) []byte {
	if size < 0 || alignment <= 0 || alignment&(alignment-1) != 0 {
		return nil
	}
	// posix_memalign wants a multiple of sizeof(void *).
	alignment = max(alignment, minAlignment)
	// A zero-byte request may legally return NULL; ask for one byte so every
	// block has its own address.
	n := max(size, 1)
	var p unsafe.Pointer
	if rc := C.posix_memalign(&p, C.size_t(alignment), C.size_t(n)); rc != 0 || p == nil {
		return nil
	}
	return unsafe.Slice((*byte)(p), n)[:size]
}

func (Allocator) Free(b []byte) {
	if b == nil {
		return
	}
	C.free(unsafe.Pointer(unsafe.SliceData(b)))
}

var _ memown.Allocator = Allocator{}
