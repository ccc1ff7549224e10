package container

import (
	"hash/maphash"

	"github.com/hexon/memown"
)

const (
	slotEmpty uint8 = iota
	slotFull
	slotDeleted
)

const minSlots = 8

// Map is an open-addressing hash map whose keys, values and slot states live
// in three arrays obtained from one allocator through rebound adapters.
// Keys and values must be free of Go pointers.
type Map[K comparable, V any] struct {
	keyAlloc memown.Adapter[K]
	valAlloc memown.Adapter[V]
	ctlAlloc memown.Adapter[uint8]

	keys []K
	vals []V
	ctl  []uint8
	n    int // live entries
	used int // live entries plus tombstones
	seed maphash.Seed
}

func NewMap[K comparable, V any](a memown.Adapter[K]) *Map[K, V] {
	return &Map[K, V]{
		keyAlloc: a,
		valAlloc: memown.Rebind[V](a),
		ctlAlloc: memown.Rebind[uint8](a),
		seed:     maphash.MakeSeed(),
	}
}

func (m *Map[K, V]) Len() int { return m.n }

// find returns the slot holding k, or the slot an insert of k should use.
func (m *Map[K, V]) find(k K) (int, bool) {
	if len(m.ctl) == 0 {
		return -1, false
	}
	mask := uint64(len(m.ctl) - 1)
	i := maphash.Comparable(m.seed, k) & mask
	tomb := -1
	for range m.ctl {
		switch m.ctl[i] {
		case slotEmpty:
			if tomb >= 0 {
				return tomb, false
			}
			return int(i), false
		case slotDeleted:
			if tomb < 0 {
				tomb = int(i)
			}
		case slotFull:
			if m.keys[i] == k {
				return int(i), true
			}
		}
		i = (i + 1) & mask
	}
	return tomb, false
}

func (m *Map[K, V]) Get(k K) (V, bool) {
	i, ok := m.find(k)
	if !ok {
		var zero V
		return zero, false
	}
	return m.vals[i], true
}

// Put inserts or replaces k. It returns false if growing the table failed, in
// which case the map is unchanged.
func (m *Map[K, V]) Put(k K, v V) bool {
	i, ok := m.find(k)
	if ok {
		m.vals[i] = v
		return true
	}
	if i < 0 || (m.used+1)*4 > len(m.ctl)*3 {
		slots := max(minSlots, len(m.ctl))
		if (m.n+1)*2 > slots {
			slots *= 2
		}
		if !m.rehash(slots) {
			return false
		}
		i, _ = m.find(k)
	}
	if m.ctl[i] == slotEmpty {
		m.used++
	}
	m.ctl[i] = slotFull
	m.keys[i] = k
	m.vals[i] = v
	m.n++
	return true
}

func (m *Map[K, V]) Delete(k K) bool {
	i, ok := m.find(k)
	if !ok {
		return false
	}
	var (
		zk K
		zv V
	)
	m.ctl[i] = slotDeleted
	m.keys[i] = zk
	m.vals[i] = zv
	m.n--
	return true
}

// Range calls fn for every entry until fn returns false. The map must not be
// changed during the iteration.
func (m *Map[K, V]) Range(fn func(K, V) bool) {
	for i, c := range m.ctl {
		if c == slotFull && !fn(m.keys[i], m.vals[i]) {
			return
		}
	}
}

// rehash moves every live entry into fresh arrays of the given number of
// slots, dropping tombstones.
func (m *Map[K, V]) rehash(slots int) bool {
	keys := m.keyAlloc.AllocateElements(slots)
	vals := m.valAlloc.AllocateElements(slots)
	ctl := m.ctlAlloc.AllocateElements(slots)
	if keys == nil || vals == nil || ctl == nil {
		m.keyAlloc.DeallocateElements(keys, slots)
		m.valAlloc.DeallocateElements(vals, slots)
		m.ctlAlloc.DeallocateElements(ctl, slots)
		return false
	}
	clear(ctl)
	old := Map[K, V]{keys: m.keys, vals: m.vals, ctl: m.ctl}
	m.keys, m.vals, m.ctl = keys, vals, ctl
	m.n, m.used = 0, 0
	old.Range(func(k K, v V) bool {
		i, _ := m.find(k)
		m.ctl[i] = slotFull
		m.keys[i] = k
		m.vals[i] = v
		m.n++
		m.used++
		return true
	})
	m.free(old.keys, old.vals, old.ctl)
	return true
}

func (m *Map[K, V]) free(keys []K, vals []V, ctl []uint8) {
	m.keyAlloc.DeallocateElements(keys, len(keys))
	m.valAlloc.DeallocateElements(vals, len(vals))
	m.ctlAlloc.DeallocateElements(ctl, len(ctl))
}

// Release drops every entry and returns the storage.
func (m *Map[K, V]) Release() {
	m.free(m.keys, m.vals, m.ctl)
	m.keys, m.vals, m.ctl = nil, nil, nil
	m.n, m.used = 0, 0
}

// MoveFrom releases m's storage and takes over src's, adapters included.
func (m *Map[K, V]) MoveFrom(src *Map[K, V]) {
	if m == src {
		return
	}
	m.Release()
	m.keyAlloc, m.valAlloc, m.ctlAlloc = src.keyAlloc, src.valAlloc, src.ctlAlloc
	m.keys, m.vals, m.ctl = src.keys, src.vals, src.ctl
	m.n, m.used, m.seed = src.n, src.used, src.seed
	src.keys, src.vals, src.ctl = nil, nil, nil
	src.n, src.used = 0, 0
}
