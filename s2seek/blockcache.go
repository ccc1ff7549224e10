package s2seek

import (
	"fmt"

	"github.com/Jille/easymutex"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/s2"

	"github.com/hexon/memown"
)

// globalLRU contains *decompressedBlocks that contain decompressed data, but are not actively in use.
var globalLRU, _ = lru.NewWithEvict[lruKey, *decompressedBlock](100, onEvicted)

type lruKey struct {
	state       *state
	blockOffset int64
}

type decompressedBlock struct {
	lruKey
	data     memown.Array[byte]
	refcount int // guarded by state.mtx
}

// deref is called when a user of this library is done with the slice they got from Get().
func (d *decompressedBlock) deref() {
	d.state.mtx.Lock()
	defer d.state.mtx.Unlock()
	d.refcount--
	if d.refcount > 0 {
		return
	}
	delete(d.state.active, d.blockOffset)
	if d.state.dying {
		d.free()
		return
	}
	switch cached, ok := globalLRU.Peek(d.lruKey); {
	case !ok:
		globalLRU.Add(d.lruKey, d)
	case cached.refcount < 0:
		// The cached copy was freed by an eviction that raced with a Get.
		globalLRU.Add(d.lruKey, d)
	case cached != d:
		// Decompressed twice at the same time and the other copy won. (We're not holding any lock during decompression, so this can happen.)
		d.free()
	}
}

// onEvicted is called when a decompressedBlock is thrown out of the LRU cache.
func onEvicted(k lruKey, d *decompressedBlock) {
	if d.state.mtx.TryLock() {
		onEvictedLocked(d)
	} else {
		// Someone has the lock, possibly this eviction was caused by an Add() holding this lock. Clean up asynchronously.
		go func() {
			d.state.mtx.Lock()
			onEvictedLocked(d)
		}()
	}
}

func onEvictedLocked(d *decompressedBlock) {
	if d.refcount == 0 {
		d.free()
	}
	d.state.mtx.Unlock()
}

func (d *decompressedBlock) free() {
	d.refcount = -666
	d.data.Release()
}

// getDecompressedBlock finds the S2 block at offset in the active set or the
// global cache, or decompresses it into memory from the Seeker's allocator.
func (s *Seeker) getDecompressedBlock(offset int64, compressedLength, uncompressedLength int) ([]byte, func(), error) {
	em := easymutex.LockMutex(&s.mtx)
	defer em.Unlock()
	if db, ok := s.active[offset]; ok {
		db.refcount++
		return db.data.Slice(), db.deref, nil
	}
	k := lruKey{s.state, offset}
	if db, ok := globalLRU.Get(k); ok && db.refcount >= 0 {
		db.refcount++
		s.active[offset] = db
		return db.data.Slice(), db.deref, nil
	}
	em.Unlock()
	db := &decompressedBlock{lruKey: k, refcount: 1}
	db.data = memown.NewArray[byte](s.alloc, uncompressedLength)
	if !db.data.Valid() {
		return nil, nil, fmt.Errorf("s2seek: decompressing block at %d: %w", offset, memown.ErrAllocFailed)
	}
	if _, err := s2.Decode(db.data.Slice(), s.data[offset:][:compressedLength]); err != nil {
		db.data.Release()
		return nil, nil, err
	}
	em.Lock()
	if other, ok := s.active[offset]; ok {
		db.data.Release()
		other.refcount++
		return other.data.Slice(), other.deref, nil
	}
	s.active[offset] = db
	return db.data.Slice(), db.deref, nil
}

// SetGlobalLRUSize configures the number of blocks that can be in the global compressed blocks LRU at any time.
func SetGlobalLRUSize(n int) {
	globalLRU.Resize(n)
}

// PurgeGlobalCache purges the global LRU cache that holds decompressed blocks.
// It is safe to call this function at any time.
func PurgeGlobalCache() {
	globalLRU.Purge()
}

func (st *state) removeFromGlobalCache() {
	st.mtx.Lock()
	st.dying = true
	st.mtx.Unlock()
	for _, d := range globalLRU.Values() {
		if d.state == st {
			// Remove triggers onEvicted.
			globalLRU.Remove(d.lruKey)
		}
	}
}
