package memown

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Jille/easymutex"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// TrackingAllocator wraps another Allocator and records every live block. It
// refuses frees of blocks it did not hand out (double frees included) instead
// of forwarding them, and can cap the number of live bytes. It is safe for
// concurrent use if the wrapped allocator is.
type TrackingAllocator struct {
	inner Allocator
	log   logrus.FieldLogger
	limit int

	mtx   sync.Mutex
	live  map[uintptr]liveBlock
	seq   uint64
	stats TrackingStats
}

type liveBlock struct {
	seq       uint64
	size      int
	alignment int
}

// TrackingStats is a snapshot of a TrackingAllocator's counters.
type TrackingStats struct {
	Allocs     int // successful allocations
	Frees      int // accepted frees
	Failures   int // allocations refused by the limit or the wrapped allocator
	BadFrees   int // frees of blocks that were not live
	LiveBlocks int
	LiveBytes  int
	PeakBytes  int
}

type TrackingOption func(*TrackingAllocator)

// WithLogger sets the logger that reports bad frees and refused allocations.
func WithLogger(l logrus.FieldLogger) TrackingOption {
	return func(t *TrackingAllocator) {
		t.log = l
	}
}

// WithLimit makes allocations fail once the live bytes would exceed limit.
func WithLimit(limit int) TrackingOption {
	return func(t *TrackingAllocator) {
		t.limit = limit
	}
}

// NewTracking wraps inner, or a fresh DefaultAllocator if inner is nil.
func NewTracking(inner Allocator, opts ...TrackingOption) *TrackingAllocator {
	if inner == nil {
		inner = NewDefaultAllocator()
	}
	t := &TrackingAllocator{
		inner: inner,
		log:   log,
		live:  map[uintptr]liveBlock{},
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *TrackingAllocator) Alloc(size, alignment int) []byte {
	em := easymutex.LockMutex(&t.mtx)
	defer em.Unlock()
	if !validRequest(size, alignment) {
		t.stats.Failures++
		return nil
	}
	if t.limit > 0 && size > t.limit-t.stats.LiveBytes {
		t.stats.Failures++
		t.log.WithFields(logrus.Fields{
			"size":  size,
			"live":  t.stats.LiveBytes,
			"limit": t.limit,
		}).Debug("allocation refused by limit")
		return nil
	}
	// Reserve the bytes so concurrent callers respect the limit while the
	// lock is dropped.
	t.stats.LiveBytes += size
	em.Unlock()
	b := t.inner.Alloc(size, alignment)
	em.Lock()
	if b == nil {
		t.stats.LiveBytes -= size
		t.stats.Failures++
		return nil
	}
	t.seq++
	t.live[blockAddr(b)] = liveBlock{seq: t.seq, size: size, alignment: alignment}
	t.stats.Allocs++
	t.stats.LiveBlocks++
	if t.stats.LiveBytes > t.stats.PeakBytes {
		t.stats.PeakBytes = t.stats.LiveBytes
	}
	return b
}

func (t *TrackingAllocator) Free(b []byte) {
	if b == nil {
		return
	}
	addr := blockAddr(b)
	em := easymutex.LockMutex(&t.mtx)
	defer em.Unlock()
	info, ok := t.live[addr]
	if !ok {
		t.stats.BadFrees++
		t.log.WithFields(logrus.Fields{
			"addr": fmt.Sprintf("%#x", addr),
			"len":  len(b),
		}).Error("free of a block that is not live; ignoring")
		return
	}
	delete(t.live, addr)
	t.stats.Frees++
	t.stats.LiveBlocks--
	t.stats.LiveBytes -= info.size
	em.Unlock()
	t.inner.Free(b)
}

// Owns reports whether b is a live block handed out by t.
func (t *TrackingAllocator) Owns(b []byte) bool {
	if b == nil {
		return false
	}
	t.mtx.Lock()
	defer t.mtx.Unlock()
	_, ok := t.live[blockAddr(b)]
	return ok
}

func (t *TrackingAllocator) Stats() TrackingStats {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.stats
}

// Check returns one LeakError per live block, oldest first, or nil.
func (t *TrackingAllocator) Check() error {
	t.mtx.Lock()
	leaks := make([]*LeakError, 0, len(t.live))
	seqs := make(map[*LeakError]uint64, len(t.live))
	for addr, info := range t.live {
		e := &LeakError{Addr: addr, Size: info.size, Alignment: info.alignment}
		leaks = append(leaks, e)
		seqs[e] = info.seq
	}
	t.mtx.Unlock()
	sort.Slice(leaks, func(i, j int) bool { return seqs[leaks[i]] < seqs[leaks[j]] })

	var result *multierror.Error
	for _, e := range leaks {
		result = multierror.Append(result, e)
	}
	return result.ErrorOrNil()
}

var _ Allocator = (*TrackingAllocator)(nil)
