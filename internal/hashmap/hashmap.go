// Package hashmap implements a pointer-keyed open-addressing hashmap with
// tombstone deletion, matching the table used to back the reclamation
// core's O(1) coalescing and membership checks (deferred-decrement queue,
// region object index, SCC traversal state and group-membership index).
//
// Keys are compared by pointer identity, never by value: two distinct
// allocations with equal contents are distinct keys.
package hashmap

import (
	"encoding/binary"
	"unsafe"

	"github.com/cespare/xxhash/v2"
)

const (
	minCapacity    = 16
	maxLoadFactor  = 0.75
)

type slotState uint8

const (
	slotEmpty slotState = iota
	slotOccupied
	slotTombstone
)

type slot[V any] struct {
	key   unsafe.Pointer
	value V
	state slotState
}

// Map is an open-addressing hashmap keyed by pointer identity.
type Map[V any] struct {
	slots    []slot[V]
	size     int  // occupied entries
	occupied int  // occupied + tombstones, used for load-factor growth
}

// New creates an empty Map with the minimum capacity (16).
func New[V any]() *Map[V] {
	return &Map[V]{slots: make([]slot[V], minCapacity)}
}

func hashPointer(p unsafe.Pointer) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(uintptr(p)))
	return xxhash.Sum64(b[:])
}

func (m *Map[V]) index(h uint64, cap int) int {
	return int(h % uint64(cap))
}

// Insert adds or overwrites the value for key. Returns true if key was
// newly inserted, false if an existing entry was overwritten. A nil key
// is a no-op and always returns false.
func (m *Map[V]) Insert(key unsafe.Pointer, value V) bool {
	if key == nil {
		return false
	}
	if float64(m.occupied+1) > maxLoadFactor*float64(len(m.slots)) {
		m.grow()
	}

	h := hashPointer(key)
	cap := len(m.slots)
	idx := m.index(h, cap)
	firstTombstone := -1

	for i := 0; i < cap; i++ {
		s := &m.slots[idx]
		switch s.state {
		case slotEmpty:
			target := idx
			if firstTombstone != -1 {
				target = firstTombstone
			}
			m.slots[target] = slot[V]{key: key, value: value, state: slotOccupied}
			m.size++
			if firstTombstone == -1 {
				m.occupied++
			}
			return true
		case slotTombstone:
			if firstTombstone == -1 {
				firstTombstone = idx
			}
		case slotOccupied:
			if s.key == key {
				s.value = value
				return false
			}
		}
		idx = (idx + 1) % cap
	}

	// Table full of tombstones/occupied with no empty slot found: grow and
	// retry (can only happen transiently right at the load-factor edge).
	m.grow()
	return m.Insert(key, value)
}

// Get returns the value for key and whether it was present.
func (m *Map[V]) Get(key unsafe.Pointer) (V, bool) {
	var zero V
	if len(m.slots) == 0 {
		return zero, false
	}
	h := hashPointer(key)
	cap := len(m.slots)
	idx := m.index(h, cap)

	for i := 0; i < cap; i++ {
		s := &m.slots[idx]
		switch s.state {
		case slotEmpty:
			return zero, false
		case slotOccupied:
			if s.key == key {
				return s.value, true
			}
		}
		idx = (idx + 1) % cap
	}
	return zero, false
}

// Contains reports whether key is present.
func (m *Map[V]) Contains(key unsafe.Pointer) bool {
	_, ok := m.Get(key)
	return ok
}

// Remove deletes key, leaving a tombstone behind. Returns true if key was
// present. A nil key is a no-op and always returns false.
func (m *Map[V]) Remove(key unsafe.Pointer) bool {
	if key == nil || len(m.slots) == 0 {
		return false
	}
	h := hashPointer(key)
	cap := len(m.slots)
	idx := m.index(h, cap)

	for i := 0; i < cap; i++ {
		s := &m.slots[idx]
		switch s.state {
		case slotEmpty:
			return false
		case slotOccupied:
			if s.key == key {
				s.state = slotTombstone
				var zero V
				s.value = zero
				s.key = nil
				m.size--
				return true
			}
		}
		idx = (idx + 1) % cap
	}
	return false
}

// Size returns the number of live entries.
func (m *Map[V]) Size() int { return m.size }

// Clear removes all entries, resetting capacity to the minimum.
func (m *Map[V]) Clear() {
	m.slots = make([]slot[V], minCapacity)
	m.size = 0
	m.occupied = 0
}

// ForEach calls fn for every live entry. fn must not mutate the map.
func (m *Map[V]) ForEach(fn func(key unsafe.Pointer, value V)) {
	for i := range m.slots {
		if m.slots[i].state == slotOccupied {
			fn(m.slots[i].key, m.slots[i].value)
		}
	}
}

func (m *Map[V]) grow() {
	newCap := len(m.slots) * 2
	if newCap < minCapacity {
		newCap = minCapacity
	}
	old := m.slots
	m.slots = make([]slot[V], newCap)
	m.size = 0
	m.occupied = 0

	for _, s := range old {
		if s.state == slotOccupied {
			m.Insert(s.key, s.value)
		}
	}
}
