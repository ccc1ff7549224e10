package memown

import (
	"sync"

	"github.com/Jille/easymutex"
	lru "github.com/hashicorp/golang-lru/v2"
)

// CachingAllocator keeps freed blocks around for reuse by later allocations of
// the same size and alignment. At most a fixed number of idle blocks are kept;
// the least recently freed ones are returned to the wrapped allocator first.
// Reused blocks are not cleared. It is safe for concurrent use if the wrapped
// allocator is.
type CachingAllocator struct {
	inner Allocator

	// mtx guards everything below, including every call into cache. The
	// eviction callback runs synchronously inside those calls.
	mtx    sync.Mutex
	cache  *lru.Cache[uint64, *idleBlock]
	idle   map[blockShape][]*idleBlock
	out    map[uintptr]blockShape
	nextID uint64
	stats  CacheStats
}

type blockShape struct {
	size      int
	alignment int
}

type idleBlock struct {
	id uint64
	blockShape
	block []byte
	taken bool
}

// CacheStats is a snapshot of a CachingAllocator's counters.
type CacheStats struct {
	Hits      int
	Misses    int
	Evictions int
	Idle      int
}

// NewCaching wraps inner and keeps up to size idle blocks.
func NewCaching(inner Allocator, size int) (*CachingAllocator, error) {
	c := &CachingAllocator{
		inner: inner,
		idle:  map[blockShape][]*idleBlock{},
		out:   map[uintptr]blockShape{},
	}
	cache, err := lru.NewWithEvict[uint64, *idleBlock](size, c.onEvicted)
	if err != nil {
		return nil, err
	}
	c.cache = cache
	return c, nil
}

func (c *CachingAllocator) Alloc(size, alignment int) []byte {
	if !validRequest(size, alignment) {
		return nil
	}
	s := blockShape{size, alignment}
	em := easymutex.LockMutex(&c.mtx)
	defer em.Unlock()
	if stack := c.idle[s]; len(stack) > 0 {
		ib := stack[len(stack)-1]
		c.setIdle(s, stack[:len(stack)-1])
		// Removing from the cache triggers onEvicted, which must leave this one alone.
		ib.taken = true
		c.cache.Remove(ib.id)
		c.out[blockAddr(ib.block)] = s
		c.stats.Hits++
		return ib.block
	}
	em.Unlock()
	b := c.inner.Alloc(size, alignment)
	if b == nil {
		return nil
	}
	em.Lock()
	c.out[blockAddr(b)] = s
	c.stats.Misses++
	return b
}

func (c *CachingAllocator) Free(b []byte) {
	if b == nil {
		return
	}
	addr := blockAddr(b)
	em := easymutex.LockMutex(&c.mtx)
	defer em.Unlock()
	s, ok := c.out[addr]
	delete(c.out, addr)
	if !ok || cap(b) < s.size {
		// Not ours, or too short to hand out again.
		em.Unlock()
		c.inner.Free(b)
		return
	}
	ib := &idleBlock{id: c.nextID, blockShape: s, block: b[:s.size]}
	c.nextID++
	c.idle[s] = append(c.idle[s], ib)
	c.cache.Add(ib.id, ib)
}

// onEvicted is called with c.mtx held.
func (c *CachingAllocator) onEvicted(_ uint64, ib *idleBlock) {
	if ib.taken {
		return
	}
	stack := c.idle[ib.blockShape]
	for i, other := range stack {
		if other == ib {
			c.setIdle(ib.blockShape, append(stack[:i], stack[i+1:]...))
			break
		}
	}
	c.stats.Evictions++
	c.inner.Free(ib.block)
	ib.block = nil
}

func (c *CachingAllocator) setIdle(s blockShape, stack []*idleBlock) {
	if len(stack) == 0 {
		delete(c.idle, s)
		return
	}
	c.idle[s] = stack
}

// Purge returns every idle block to the wrapped allocator.
func (c *CachingAllocator) Purge() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.cache.Purge()
}

// Resize changes the number of idle blocks kept, freeing the excess.
func (c *CachingAllocator) Resize(size int) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.cache.Resize(size)
}

func (c *CachingAllocator) Stats() CacheStats {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	s := c.stats
	s.Idle = c.cache.Len()
	return s
}

var _ Allocator = (*CachingAllocator)(nil)
