// Package mmapalloc provides a memown.Allocator backed by anonymous private
// memory mappings. Every block gets its own mapping, so it suits large,
// page-aligned, long-lived blocks. It is only available on unix systems.
package mmapalloc
