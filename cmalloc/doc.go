// Package cmalloc provides a memown.Allocator that uses posix_memalign(3) and
// free(3). It requires cgo; without cgo the package is empty.
package cmalloc
