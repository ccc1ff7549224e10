//go:build unix

package mmapalloc

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/hexon/memown"
)

// Allocator maps fresh anonymous memory for every block and unmaps it on
// Free. Alignments above the page size cannot be satisfied. It is safe for
// concurrent use.
type Allocator struct {
	pageSize int

	mtx    sync.Mutex
	maps   map[uintptr][]byte
	mapped int
}

func New() *Allocator {
	return &Allocator{
		pageSize: unix.Getpagesize(),
		maps:     map[uintptr][]byte{},
	}
}

func (a *Allocator) Alloc(size, alignment int) []byte {
	if size < 0 || alignment <= 0 || alignment&(alignment-1) != 0 || alignment > a.pageSize {
		return nil
	}
	n := (max(size, 1) + a.pageSize - 1) / a.pageSize * a.pageSize
	if n < size {
		return nil
	}
	m, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		memown.Logger().WithError(err).WithField("size", n).Debug("mmap failed")
		return nil
	}
	a.mtx.Lock()
	a.maps[uintptr(unsafe.Pointer(unsafe.SliceData(m)))] = m
	a.mapped += n
	a.mtx.Unlock()
	return m[:size]
}

func (a *Allocator) Free(b []byte) {
	if b == nil {
		return
	}
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	a.mtx.Lock()
	m, ok := a.maps[addr]
	if ok {
		delete(a.maps, addr)
		a.mapped -= len(m)
	}
	a.mtx.Unlock()
	if !ok {
		memown.Logger().WithField("addr", fmt.Sprintf("%#x", addr)).Warn("mmapalloc: free of an unknown block; ignoring")
		return
	}
	if err := unix.Munmap(m); err != nil {
		memown.Logger().WithFields(logrus.Fields{
			"addr": fmt.Sprintf("%#x", addr),
			"size": len(m),
		}).WithError(err).Error("munmap failed")
	}
}

// Mapped returns the number of bytes currently mapped.
func (a *Allocator) Mapped() int {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	return a.mapped
}

// PageSize returns the alignment every block has.
func (a *Allocator) PageSize() int {
	return a.pageSize
}

var _ memown.Allocator = (*Allocator)(nil)
